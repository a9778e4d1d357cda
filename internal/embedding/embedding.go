package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"voice-rag/internal/config"
	"voice-rag/internal/store"
)

// NewEmbedder builds a langchaingo embedder from the configured provider.
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch cfg.Provider {
	case "", "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("error initializing ollama embedder: %v", err)
		}
		return embeddings.NewEmbedder(llm)
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("error initializing openai embedder: %v", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// Embedder is the one-text interface the pipeline components consume;
// embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedChunks embeds every chunk with the same embedder configuration and
// assigns stable per-collection IDs. Mixing embedding models within one
// collection corrupts distance comparisons, so all of a collection's
// vectors are produced here in one pass.
func EmbedChunks(ctx context.Context, embedder Embedder, collection string, chunks []string) ([]store.Document, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	docs := make([]store.Document, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := embedder.EmbedQuery(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("error embedding chunk %d: %v", i, err)
		}
		docs = append(docs, store.Document{
			ID:        store.ChunkID(collection, i),
			Content:   chunk,
			Embedding: vec,
		})
	}
	return docs, nil
}
