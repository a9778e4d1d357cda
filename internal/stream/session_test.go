package stream

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-rag/internal/audio"
)

type countingTranscriber struct {
	calls int
	err   error
}

func (c *countingTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("transcript %d", c.calls), nil
}

func testVAD() audio.Detector {
	return audio.Detector{Threshold: 0.01, MinSilence: 0.5, SampleRate: 16000}
}

// 1000 samples per frame keeps batches well under the min-silence run so
// trailing-open-interval emission is what gates transcription.
func silentFrame() []byte {
	return audio.EncodePCM16(make([]float32, 1000))
}

func speechFrame() []byte {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.5
	}
	return audio.EncodePCM16(samples)
}

func TestPushBelowThresholdNeverTranscribes(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	for i := 0; i < 5; i++ {
		ev, err := s.Push(context.Background(), speechFrame())
		require.NoError(t, err)
		assert.Nil(t, ev)
	}
	assert.Zero(t, tr.calls)
	assert.Equal(t, 5, s.BufferedChunks())
}

func TestPushSilentBatchDiscardsWithoutEvent(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	for i := 0; i < 6; i++ {
		ev, err := s.Push(context.Background(), silentFrame())
		require.NoError(t, err)
		assert.Nil(t, ev)
	}
	assert.Zero(t, tr.calls)
	assert.Zero(t, s.BufferedChunks())
}

func TestPushSpeechBatchEmitsOneEvent(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	var events []*Event
	for i := 0; i < 6; i++ {
		ev, err := s.Push(context.Background(), speechFrame())
		require.NoError(t, err)
		if ev != nil {
			events = append(events, ev)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, "transcript 1", events[0].Transcription)
	assert.Equal(t, 1, tr.calls)
	assert.Zero(t, s.BufferedChunks())
}

func TestPushEmitsOneEventPerBatchInOrder(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	var events []*Event
	for i := 0; i < 12; i++ {
		ev, err := s.Push(context.Background(), speechFrame())
		require.NoError(t, err)
		if ev != nil {
			events = append(events, ev)
		}
	}
	require.Len(t, events, 2)
	assert.Equal(t, "transcript 1", events[0].Transcription)
	assert.Equal(t, "transcript 2", events[1].Transcription)
}

// A speech region at the tail of an otherwise silent batch triggers
// transcription of the whole accumulated buffer, not just the flagged
// region.
func TestPushAnySpeechTranscribesWholeBuffer(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	frames := [][]byte{silentFrame(), silentFrame(), silentFrame(), silentFrame(), silentFrame(), speechFrame()}
	var events []*Event
	for _, f := range frames {
		ev, err := s.Push(context.Background(), f)
		require.NoError(t, err)
		if ev != nil {
			events = append(events, ev)
		}
	}
	assert.Len(t, events, 1)
	assert.Equal(t, 1, tr.calls)
}

func TestPushMalformedFrameDroppedSessionAlive(t *testing.T) {
	tr := &countingTranscriber{}
	s := NewSession(testVAD(), tr, 5)

	ev, err := s.Push(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Zero(t, s.BufferedChunks())

	for i := 0; i < 6; i++ {
		_, err := s.Push(context.Background(), speechFrame())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tr.calls)
}

func TestPushTranscriberFailurePropagatesAndClearsBuffer(t *testing.T) {
	tr := &countingTranscriber{err: fmt.Errorf("model down")}
	s := NewSession(testVAD(), tr, 5)

	var lastErr error
	for i := 0; i < 6; i++ {
		_, err := s.Push(context.Background(), speechFrame())
		if err != nil {
			lastErr = err
		}
	}
	require.Error(t, lastErr)
	assert.Zero(t, s.BufferedChunks())
}
