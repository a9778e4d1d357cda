// Package server is the HTTP boundary: document ingestion, query answering,
// summaries, one-shot transcription, and the live audio websocket. All
// collaborators are injected; nothing here owns model lifecycles.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"

	"voice-rag/internal/audio"
	"voice-rag/internal/config"
	"voice-rag/internal/helper"
	"voice-rag/internal/ingest"
	"voice-rag/internal/rag"
	"voice-rag/internal/speech"
	"voice-rag/internal/store"
	"voice-rag/internal/summarizer"
)

type Server struct {
	cfg         *config.Config
	store       store.Store
	ingest      *ingest.Service
	pipeline    *rag.Pipeline
	summarizer  *summarizer.Summarizer
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	vad         audio.Detector
	upgrader    websocket.Upgrader
}

func New(cfg *config.Config, st store.Store, ing *ingest.Service, pipe *rag.Pipeline,
	summ *summarizer.Summarizer, tr speech.Transcriber, syn speech.Synthesizer) *Server {
	return &Server{
		cfg:         cfg,
		store:       st,
		ingest:      ing,
		pipeline:    pipe,
		summarizer:  summ,
		transcriber: tr,
		synthesizer: syn,
		vad: audio.Detector{
			Threshold:     float32(cfg.VAD.Threshold),
			MinSilence:    cfg.VAD.MinSilence,
			SampleRate:    cfg.VAD.SampleRate,
			StrictSilence: cfg.VAD.StrictSilence,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /collections", s.handleListCollections)
	mux.HandleFunc("DELETE /collections/{name}", s.handleDeleteCollection)
	mux.HandleFunc("GET /ws/audio", s.handleAudioSocket)
	mux.Handle("GET /audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(s.cfg.Server.TempDir))))
	if s.cfg.Server.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	}
	return mux
}

// synthesizeToFile renders text to a WAV in the temp dir and returns the
// path it is served under. Files here are owned by the janitor.
func (s *Server) synthesizeToFile(ctx context.Context, text, prefix string) (string, error) {
	wav, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return "", errE(KindUpstream, "speech synthesis failed", err)
	}
	name := fmt.Sprintf("%s_%s.wav", prefix, helper.ShortID())
	if err := os.WriteFile(filepath.Join(s.cfg.Server.TempDir, name), wav, 0o644); err != nil {
		return "", errE(KindStorage, "failed to write audio file", err)
	}
	return "/audio/" + name, nil
}
