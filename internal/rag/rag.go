// Package rag answers natural-language queries against one ingested
// document by combining semantic retrieval with generative synthesis.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"voice-rag/internal/embedding"
	"voice-rag/internal/llmservice"
	"voice-rag/internal/store"
)

const answerSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.
If the context doesn't contain relevant information, admit that you don't know.
Always ground your answers in the context provided and be precise.`

// ErrModelMismatch is returned when a query would be embedded with a
// different model than the collection was built with. Mixing embedding
// spaces degrades relevance silently, so it is refused outright.
var ErrModelMismatch = fmt.Errorf("query embedding model does not match the collection's")

// RetrievedChunk is one piece of evidence used for an answer. The ID is
// citable provenance back into the collection.
type RetrievedChunk struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float32 `json:"distance"`
}

// Result is the ephemeral outcome of one query; it is never persisted.
type Result struct {
	Query  string           `json:"query"`
	Answer string           `json:"answer"`
	Chunks []RetrievedChunk `json:"chunks"`
}

type Pipeline struct {
	store     store.Store
	embedder  embedding.Embedder
	generator llmservice.Generator
	model     string // embedding model this pipeline embeds queries with
}

func NewPipeline(s store.Store, e embedding.Embedder, g llmservice.Generator, embeddingModel string) *Pipeline {
	return &Pipeline{store: s, embedder: e, generator: g, model: embeddingModel}
}

// Answer runs the full pipeline: embed the query, retrieve the topK nearest
// chunks, assemble the prompt, and generate. The returned chunks are in
// rank order, best match first.
func (p *Pipeline) Answer(ctx context.Context, query, collection string, topK int) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	info, err := p.store.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if info.EmbeddingModel != p.model {
		return nil, fmt.Errorf("collection %s was embedded with %s, queries use %s: %w",
			collection, info.EmbeddingModel, p.model, ErrModelMismatch)
	}

	queryVec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error embedding query: %w", err)
	}

	hits, err := p.store.Search(ctx, collection, queryVec, topK)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("collection", collection).Int("hits", len(hits)).Msg("retrieved context chunks")

	answer, err := p.generator.Generate(ctx, answerSystemPrompt, buildPrompt(query, hits))
	if err != nil {
		return nil, fmt.Errorf("error generating answer: %w", err)
	}

	chunks := make([]RetrievedChunk, len(hits))
	for i, h := range hits {
		chunks[i] = RetrievedChunk{ID: h.ID, Content: h.Content, Distance: h.Distance}
	}
	return &Result{Query: query, Answer: answer, Chunks: chunks}, nil
}

// buildPrompt enumerates the retrieved chunks as labeled context blocks in
// rank order and appends the literal query.
func buildPrompt(query string, hits []store.Hit) string {
	var b strings.Builder
	b.WriteString("I have the following contexts:\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, h.Content)
	}
	b.WriteString("Based on these contexts, please answer the following question:\n")
	b.WriteString(query)
	return b.String()
}
