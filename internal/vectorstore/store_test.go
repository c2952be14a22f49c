package vectorstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a PostgreSQL server with the pgvector extension, e.g.
// ASKDESK_TEST_VECTOR_DSN=postgres://postgres@localhost:5432/askdesk_test?sslmode=disable
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ASKDESK_TEST_VECTOR_DSN")
	if dsn == "" {
		t.Skip("ASKDESK_TEST_VECTOR_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, config.VectorConfig{DSN: dsn, Dimension: 3, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, _ = s.pool.Exec(ctx, `DROP TABLE IF EXISTS document_chunks`)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func chunk(tenant, doc string, ordinal int, vec []float32) domain.Chunk {
	return domain.Chunk{
		ID:           uuid.New().String(),
		TenantID:     tenant,
		DocumentID:   doc,
		Content:      "chunk content",
		Embedding:    vec,
		Ordinal:      ordinal,
		SiblingCount: 2,
		Metadata:     map[string]any{domain.MetadataKeyFilename: "faq.md"},
	}
}

func TestStore_InsertSearchDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []domain.Chunk{
		chunk("t1", "d1", 0, []float32{1, 0, 0}),
		chunk("t1", "d1", 1, []float32{0.9, 0.1, 0}),
		chunk("t2", "d2", 0, []float32{1, 0, 0}),
	}))

	n, err := s.CountByDocument(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := s.Search(ctx, SearchQuery{TenantID: "t1", Vector: []float32{1, 0, 0}, Threshold: 0.5, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, "faq.md", results[0].Filename)

	none, err := s.Search(ctx, SearchQuery{TenantID: "t1", Vector: []float32{0, 0, 1}, Threshold: 0.7, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, none)

	deleted, err := s.DeleteByDocument(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err = s.CountByDocument(ctx, "t2", "d2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_InsertRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert(context.Background(), []domain.Chunk{chunk("t1", "d1", 0, []float32{1, 0})})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
