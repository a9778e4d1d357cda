package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-rag/internal/config"
	"voice-rag/internal/embedding"
	"voice-rag/internal/helper"
	"voice-rag/internal/ingest"
	"voice-rag/internal/llmservice"
	"voice-rag/internal/rag"
	"voice-rag/internal/server"
	"voice-rag/internal/speech"
	"voice-rag/internal/store"
	"voice-rag/internal/summarizer"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	for _, dir := range []string{cfg.Server.UploadDir, cfg.Server.TempDir} {
		if err := helper.CreateFolder(dir); err != nil {
			log.Fatal().Err(err).Msg("Error creating folder")
		}
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	generator, err := llmservice.NewClient(&cfg.InferenceLLM, &cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	transcriber := speech.NewWhisperClient(&cfg.STT)
	synthesizer := speech.NewTTSClient(&cfg.TTS)

	ingestSvc := ingest.NewService(st, embedder, cfg.EmbedLLM.Model, &cfg.RAG)
	pipeline := rag.NewPipeline(st, embedder, generator, cfg.EmbedLLM.Model)
	summ := summarizer.New(generator)

	srv := server.New(cfg, st, ingestSvc, pipeline, summ, transcriber, synthesizer)

	janitor := server.NewJanitor(cfg.Server.TempDir, time.Duration(cfg.Server.TempTTLMinutes)*time.Minute)
	go janitor.Run()
	defer janitor.Stop()

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "pgvector":
		pg, err := store.ConnectPgvector(&cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Init(context.Background(), cfg.Storage.VectorSize); err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		cs, err := store.NewChromemStore(cfg.Storage.Path, false)
		if err != nil {
			return nil, nil, err
		}
		return cs, func() {}, nil
	}
}
