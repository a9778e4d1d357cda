package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps one chromem collection per ingested document, persisted
// under a local directory. Collection metadata (embedding model, chunk
// count, source file) lives in a JSON manifest next to the database files;
// chromem itself only stores documents.
type ChromemStore struct {
	db       *chromem.DB
	path     string
	inMemory bool

	mu        sync.RWMutex
	manifests map[string]CollectionInfo
}

const manifestSuffix = ".manifest.json"

// NewChromemStore opens (or creates) the store. With inMemory set, nothing
// touches disk; used by tests.
func NewChromemStore(path string, inMemory bool) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	s := &ChromemStore{
		db:        db,
		path:      path,
		inMemory:  inMemory,
		manifests: make(map[string]CollectionInfo),
	}
	if !inMemory {
		if err := s.loadManifests(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ChromemStore) loadManifests() error {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.path, e.Name()))
		if err != nil {
			return err
		}
		var info CollectionInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("corrupt manifest %s: %v", e.Name(), err)
		}
		s.manifests[info.Name] = info
	}
	return nil
}

func (s *ChromemStore) manifestPath(name string) string {
	return filepath.Join(s.path, name+manifestSuffix)
}

func (s *ChromemStore) CreateCollection(ctx context.Context, info CollectionInfo) error {
	if _, err := s.db.GetOrCreateCollection(info.Name, nil, nil); err != nil {
		return fmt.Errorf("failed to create collection: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[info.Name] = info
	if s.inMemory {
		return nil
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.manifestPath(info.Name), data, 0o644)
}

func (s *ChromemStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	c := s.db.GetCollection(collection, nil)
	if c == nil {
		return ErrNotFound
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
		}
	}
	if err := c.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	info, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	c := s.db.GetCollection(collection, nil)
	if c == nil {
		return nil, ErrNotFound
	}

	if k > info.Chunks {
		k = info.Chunks
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		// chromem reports cosine similarity, higher is better; expose it
		// as cosine distance so hits sort ascending like every backend.
		hits[i] = Hit{ID: r.ID, Content: r.Content, Distance: 1 - r.Similarity}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

func (s *ChromemStore) Documents(ctx context.Context, collection string, limit int) ([]Document, error) {
	info, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	c := s.db.GetCollection(collection, nil)
	if c == nil {
		return nil, ErrNotFound
	}

	n := info.Chunks
	if limit > 0 && limit < n {
		n = limit
	}
	docs := make([]Document, 0, n)
	for i := 0; i < n; i++ {
		doc, err := c.GetByID(ctx, ChunkID(collection, i))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %v", i, err)
		}
		docs = append(docs, Document{ID: doc.ID, Content: doc.Content, Embedding: doc.Embedding})
	}
	return docs, nil
}

func (s *ChromemStore) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.manifests[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &info, nil
}

func (s *ChromemStore) Collections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]CollectionInfo, 0, len(s.manifests))
	for _, info := range s.manifests {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manifests[name]; !ok {
		return ErrNotFound
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	delete(s.manifests, name)
	if s.inMemory {
		return nil
	}
	if err := os.Remove(s.manifestPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
