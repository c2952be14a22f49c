// Package vectorstore keeps embedded chunks in PostgreSQL with pgvector and
// answers similarity queries over them.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// SearchQuery selects the nearest chunks of one tenant.
type SearchQuery struct {
	TenantID  string
	Vector    []float32
	Threshold float64
	Limit     int
}

// Store wraps the pgx connection pool
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// New connects to the vector database
func New(ctx context.Context, cfg config.VectorConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector database: %w", err)
	}

	return &Store{pool: pool, dimension: cfg.Dimension}, nil
}

// Close closes the pool
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the extension, table and indexes
func (s *Store) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			sibling_count INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_tenant ON document_chunks(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id)`,
	}

	for i, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("vector migration %d failed: %w", i, err)
		}
	}
	return nil
}

// Insert stores chunks in one batch
func (s *Store) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		if len(c.Embedding) != s.dimension {
			return fmt.Errorf("chunk %s: %w: got %d, want %d", c.ID, domain.ErrDimensionMismatch, len(c.Embedding), s.dimension)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		batch.Queue(
			`INSERT INTO document_chunks (id, tenant_id, document_id, ordinal, sibling_count, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.TenantID, c.DocumentID, c.Ordinal, c.SiblingCount, c.Content,
			pgvector.NewVector(c.Embedding), string(meta),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	return nil
}

// DeleteByDocument removes every chunk of a document
func (s *Store) DeleteByDocument(ctx context.Context, tenantID, documentID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM document_chunks WHERE tenant_id = $1 AND document_id = $2`,
		tenantID, documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByDocument returns the number of stored chunks of a document
func (s *Store) CountByDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE tenant_id = $1 AND document_id = $2`,
		tenantID, documentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Search returns the tenant's chunks nearest to the query vector, most
// similar first. Similarity is 1 - cosine distance.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]domain.RetrievalResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(q.Vector)
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, content, COALESCE(metadata->>'filename', ''),
		        1 - (embedding <=> $2) AS similarity
		 FROM document_chunks
		 WHERE tenant_id = $1 AND 1 - (embedding <=> $2) >= $3
		 ORDER BY embedding <=> $2
		 LIMIT $4`,
		q.TenantID, vec, q.Threshold, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.Filename, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
