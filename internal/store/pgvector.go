package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"voice-rag/internal/config"
)

type collectionRow struct {
	bun.BaseModel  `bun:"table:collections,alias:c"`
	Name           string    `bun:"name,pk"`
	EmbeddingModel string    `bun:"embedding_model,notnull"`
	SourceFile     string    `bun:"source_file"`
	Chunks         int       `bun:"chunks,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string `bun:"id,pk"`
	Collection    string `bun:"collection,notnull"`
	Seq           int    `bun:"seq,notnull"`
	Content       string `bun:"content,notnull"`
	Embedding     string `bun:"embedding,notnull"`
}

// PgvectorStore keeps all collections in two Postgres tables and orders
// searches with pgvector's <-> operator.
type PgvectorStore struct {
	db *bun.DB
}

func ConnectPgvector(cfg *config.StorageConfig) (*PgvectorStore, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "sslmode") {
		dsn += "?sslmode=disable"
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &PgvectorStore{db: db}, nil
}

// Init creates the extension and tables. vectorSize must match the
// embedder's output dimensionality.
func (s *PgvectorStore) Init(ctx context.Context, vectorSize int) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}
	if _, err := s.db.NewCreateTable().Model((*collectionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS documents (
			id text PRIMARY KEY,
			collection text NOT NULL REFERENCES collections (name) ON DELETE CASCADE,
			seq int NOT NULL,
			content text NOT NULL,
			embedding vector(%d) NOT NULL
		)`, vectorSize))
	return err
}

func (s *PgvectorStore) Close() error {
	return s.db.Close()
}

func (s *PgvectorStore) CreateCollection(ctx context.Context, info CollectionInfo) error {
	row := &collectionRow{
		Name:           info.Name,
		EmbeddingModel: info.EmbeddingModel,
		SourceFile:     info.SourceFile,
		Chunks:         info.Chunks,
		CreatedAt:      info.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (name) DO NOTHING").Exec(ctx)
	return err
}

func (s *PgvectorStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]documentRow, len(docs))
	for i, d := range docs {
		rows[i] = documentRow{
			ID:         d.ID,
			Collection: collection,
			Seq:        i,
			Content:    d.Content,
			Embedding:  vectorLiteral(d.Embedding),
		}
	}
	// Stable pre-generated IDs make a retried insert a no-op.
	_, err := s.db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	return err
}

func (s *PgvectorStore) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	info, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if k > info.Chunks {
		k = info.Chunks
	}
	if k <= 0 {
		return nil, nil
	}

	vec := vectorLiteral(query)
	var rows []struct {
		ID       string  `bun:"id"`
		Content  string  `bun:"content"`
		Distance float32 `bun:"distance"`
	}
	err = s.db.NewSelect().
		TableExpr("documents AS d").
		ColumnExpr("d.id, d.content").
		ColumnExpr("d.embedding <-> ?::vector AS distance", vec).
		Where("d.collection = ?", collection).
		OrderExpr("d.embedding <-> ?::vector", vec).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(rows))
	for i, r := range rows {
		hits[i] = Hit{ID: r.ID, Content: r.Content, Distance: r.Distance}
	}
	return hits, nil
}

func (s *PgvectorStore) Documents(ctx context.Context, collection string, limit int) ([]Document, error) {
	if _, err := s.Collection(ctx, collection); err != nil {
		return nil, err
	}
	var rows []documentRow
	q := s.db.NewSelect().Model(&rows).
		Where("collection = ?", collection).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = Document{ID: r.ID, Content: r.Content}
	}
	return docs, nil
}

func (s *PgvectorStore) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	var row collectionRow
	err := s.db.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:           row.Name,
		EmbeddingModel: row.EmbeddingModel,
		SourceFile:     row.SourceFile,
		Chunks:         row.Chunks,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (s *PgvectorStore) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var rows []collectionRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	infos := make([]CollectionInfo, len(rows))
	for i, r := range rows {
		infos[i] = CollectionInfo{
			Name:           r.Name,
			EmbeddingModel: r.EmbeddingModel,
			SourceFile:     r.SourceFile,
			Chunks:         r.Chunks,
			CreatedAt:      r.CreatedAt,
		}
	}
	return infos, nil
}

func (s *PgvectorStore) DeleteCollection(ctx context.Context, name string) error {
	res, err := s.db.NewDelete().Model((*collectionRow)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}
