// Package ingest turns an uploaded document into an indexed collection:
// extract text, split into overlapping chunks, embed each chunk, upsert
// with stable IDs.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"voice-rag/internal/config"
	"voice-rag/internal/embedding"
	"voice-rag/internal/parser"
	"voice-rag/internal/store"
)

type Service struct {
	store    store.Store
	embedder embedding.Embedder
	model    string
	splitter textsplitter.RecursiveCharacter
}

func NewService(s store.Store, e embedding.Embedder, embeddingModel string, cfg *config.RAGConfig) *Service {
	return &Service{
		store:    s,
		embedder: e,
		model:    embeddingModel,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
	}
}

// Ingest indexes the document at filePath under the given collection name
// and returns the collection info plus the full extracted text (the caller
// summarizes it). The collection is created complete or not at all: any
// failure before the index write leaves no trace in the store.
func (s *Service) Ingest(ctx context.Context, filePath, collection string) (*store.CollectionInfo, string, error) {
	text, err := parser.ExtractText(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("error extracting text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("document contains no extractable text")
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, "", fmt.Errorf("error splitting text: %w", err)
	}
	if len(chunks) == 0 {
		return nil, "", fmt.Errorf("document contains no extractable text")
	}

	docs, err := embedding.EmbedChunks(ctx, s.embedder, collection, chunks)
	if err != nil {
		return nil, "", err
	}

	info := store.CollectionInfo{
		Name:           collection,
		EmbeddingModel: s.model,
		SourceFile:     filePath,
		Chunks:         len(docs),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateCollection(ctx, info); err != nil {
		return nil, "", err
	}
	if err := s.store.AddDocuments(ctx, collection, docs); err != nil {
		// Don't leave a registered but empty collection behind.
		if delErr := s.store.DeleteCollection(ctx, collection); delErr != nil {
			log.Warn().Err(delErr).Str("collection", collection).Msg("rollback of partial collection failed")
		}
		return nil, "", err
	}

	log.Info().Str("collection", collection).Int("chunks", len(docs)).Msg("document indexed")
	return &info, text, nil
}

// FullText re-extracts the original document, for summaries over the
// complete text rather than stored chunks.
func (s *Service) FullText(filePath string) (string, error) {
	return parser.ExtractText(filePath)
}
