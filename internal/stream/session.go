// Package stream manages one live, incrementally-arriving audio stream:
// buffer incoming PCM frames, gate transcription on detected voice
// activity, and emit transcript events in arrival order.
package stream

import (
	"context"

	"github.com/rs/zerolog/log"

	"voice-rag/internal/audio"
	"voice-rag/internal/speech"
)

// Event is one transcript produced from a batch of buffered audio.
type Event struct {
	Transcription string `json:"transcription"`
}

// Session accumulates decoded audio chunks until a full batch has arrived,
// then runs VAD over the concatenated signal. If any speech is present the
// whole buffer is transcribed (not just the flagged regions). The buffer
// is cleared after every full batch, speech or not: a silent batch is
// discarded rather than retried, so an utterance tail that straddles a
// batch boundary can be lost.
//
// A Session is owned by a single connection goroutine; it is not safe for
// concurrent use and never shares state with other sessions.
type Session struct {
	vad         audio.Detector
	transcriber speech.Transcriber
	batchSize   int
	sampleRate  int

	buffer     [][]float32
	chunkCount int
}

func NewSession(vad audio.Detector, t speech.Transcriber, batchSize int) *Session {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Session{
		vad:         vad,
		transcriber: t,
		batchSize:   batchSize,
		sampleRate:  vad.SampleRate,
	}
}

// Push decodes one raw PCM frame into the buffer and, once more than
// batchSize chunks have accumulated, runs the VAD-gated transcription over
// the whole buffer. It returns a non-nil Event when a transcript was
// produced.
//
// A malformed frame (length not a multiple of the sample width) is dropped
// and the session stays alive; one mangled frame from a flaky client is
// not worth killing a live microphone stream over.
func (s *Session) Push(ctx context.Context, frame []byte) (*Event, error) {
	samples, err := audio.DecodePCM16(frame)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed audio frame")
		return nil, nil
	}
	s.buffer = append(s.buffer, samples)
	s.chunkCount++

	if s.chunkCount <= s.batchSize {
		return nil, nil
	}

	signal := audio.Concat(s.buffer)
	s.buffer = nil
	s.chunkCount = 0

	intervals := s.vad.Detect(signal)
	if len(intervals) == 0 {
		log.Debug().Int("samples", len(signal)).Msg("no speech in batch, discarding buffer")
		return nil, nil
	}

	text, err := s.transcriber.Transcribe(ctx, audio.EncodeWAV(signal, s.sampleRate))
	if err != nil {
		return nil, err
	}
	return &Event{Transcription: text}, nil
}

// BufferedChunks reports how many chunks are waiting for the next batch.
func (s *Session) BufferedChunks() int {
	return s.chunkCount
}
