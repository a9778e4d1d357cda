package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voice-rag/internal/stream"
)

// handleAudioSocket runs one streaming transcription session per
// connection. The client pushes raw 16-bit LE PCM frames as binary
// messages; transcript events go back as JSON, unprompted. Events for one
// session are emitted in the order their audio batches arrived.
func (s *Server) handleAudioSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session := stream.NewSession(s.vad, s.transcriber, s.cfg.Stream.BatchSize)
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("audio session started")

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Info().Msg("client disconnected")
			} else {
				log.Error().Err(err).Msg("audio session read failed")
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		event, err := session.Push(r.Context(), data)
		if err != nil {
			// Transcriber failure: log and close, the client reconnects.
			log.Error().Err(err).Msg("audio session transcription failed")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "transcription failed"),
				writeDeadline())
			return
		}
		if event != nil {
			if err := conn.WriteJSON(event); err != nil {
				log.Error().Err(err).Msg("failed to push transcript event")
				return
			}
		}
	}
}
