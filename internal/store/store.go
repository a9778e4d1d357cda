// Package store holds the per-document vector collections. Two backends are
// provided: an embedded chromem-go database persisted to a local directory
// (the default) and a pgvector-backed Postgres store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for operations on a collection that was never
// ingested or has been deleted.
var ErrNotFound = errors.New("collection not found")

// Document is one retrievable chunk with its embedding.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
}

// Hit is one search result. Distance is the backend's metric (cosine
// distance for chromem, the <-> operator's value for pgvector); lower is
// a better match and results come back sorted ascending.
type Hit struct {
	ID       string
	Content  string
	Distance float32
}

// CollectionInfo describes one ingested document's collection. The
// embedding model is recorded at creation so queries can refuse to mix
// embedding spaces.
type CollectionInfo struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	SourceFile     string    `json:"source_file"`
	Chunks         int       `json:"chunks"`
	CreatedAt      time.Time `json:"created_at"`
}

type Store interface {
	// CreateCollection registers a collection. Info.Chunks is the final
	// chunk count; collections are never mutated after ingestion.
	CreateCollection(ctx context.Context, info CollectionInfo) error
	AddDocuments(ctx context.Context, collection string, docs []Document) error
	// Search returns up to k hits sorted by ascending distance. k is
	// clamped to the collection size.
	Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error)
	// Documents returns up to limit chunks in ingestion order.
	Documents(ctx context.Context, collection string, limit int) ([]Document, error)
	Collection(ctx context.Context, name string) (*CollectionInfo, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
}

// ChunkID returns the stable identifier of the n-th chunk of a collection.
// IDs are pre-generated from the ingestion order, which keeps index writes
// idempotent and lets stores enumerate chunks without a separate listing.
func ChunkID(collection string, n int) string {
	return fmt.Sprintf("%s-chunk-%d", collection, n)
}
