package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const previewLength = 100

// RetrievalService finds the document chunks most relevant to a query.
// Retrieval only ever enriches a turn, so it never fails: any problem is
// logged and yields no results.
type RetrievalService struct {
	embedder  Embedder
	vectors   VectorStore
	threshold float64
	logger    *zap.Logger
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(cfg *config.Config, embedder Embedder, vectors VectorStore, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{
		embedder:  embedder,
		vectors:   vectors,
		threshold: cfg.RAG.SimilarityThreshold,
		logger:    logger.Named("retrieval"),
	}
}

// Search returns at most k results for the tenant, most similar first
func (s *RetrievalService) Search(ctx context.Context, tenantID, query string, k int) (results []domain.RetrievalResult) {
	results = []domain.RetrievalResult{}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return results
	}

	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.Int("k", k))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("retrieval panicked", zap.String("tenant_id", tenantID), zap.String("panic", fmt.Sprint(r)))
			results = []domain.RetrievalResult{}
		}
	}()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return results
	}

	found, err := s.vectors.Search(ctx, vectorstore.SearchQuery{
		TenantID:  tenantID,
		Vector:    vector,
		Threshold: s.threshold,
		Limit:     k,
	})
	if err != nil {
		s.logger.Warn("similarity search failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return results
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Similarity > found[j].Similarity
	})
	if len(found) > k {
		found = found[:k]
	}
	for i := range found {
		found[i].Preview = preview(found[i].Content)
	}

	span.SetAttributes(attribute.Int("results", len(found)))
	return append(results, found...)
}

func preview(content string) string {
	r := []rune(content)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return string(r) + "..."
}
