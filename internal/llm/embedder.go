// Package llm wraps the OpenAI-compatible model endpoints used for embeddings
// and chat completions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EmbedResult is one slot of a batch, aligned with the input position.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// Embedder turns text into fixed-dimension vectors.
type Embedder struct {
	client    embeddings.Embedder
	limiter   *rate.Limiter
	pool      *ants.Pool
	cfg       config.EmbeddingConfig
	dimension int
	logger    *zap.Logger
}

// NewEmbedder creates an embedder against the configured OpenAI-compatible endpoint.
func NewEmbedder(cfg *config.Config, logger *zap.Logger) (*Embedder, error) {
	token := cfg.Embedding.APIKey
	if token == "" {
		// Local OpenAI-compatible servers ignore the token but the client requires one
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.Embedding.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Embedding.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return NewEmbedderWithClient(embedder, cfg, logger)
}

// NewEmbedderWithClient wraps an existing langchaingo embedder.
func NewEmbedderWithClient(client embeddings.Embedder, cfg *config.Config, logger *zap.Logger) (*Embedder, error) {
	size := cfg.Embedding.BatchSize
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}

	limit := rate.Inf
	if cfg.Embedding.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Embedding.RequestsPerSecond)
	}
	burst := cfg.Embedding.Burst
	if burst < 1 {
		burst = 1
	}

	return &Embedder{
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		pool:      pool,
		cfg:       cfg.Embedding,
		dimension: cfg.Vector.Dimension,
		logger:    logger.Named("embedder"),
	}, nil
}

// Dimension is the vector length every result has.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed returns the vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ValidationError{Field: "text", Message: "text to embed is empty", Err: domain.ErrInvalidRequest}
	}

	var vector []float32
	attempts, err := RetryWithBackoff(ctx, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := withTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		v, err := e.client.EmbedQuery(callCtx, text)
		if err != nil {
			e.logger.Debug("embedding attempt failed", zap.Error(err))
			return err
		}
		vector = v
		return nil
	}, e.cfg.MaxAttempts, e.cfg.RetryDelay, func(err error) bool {
		return ctx.Err() == nil && IsTransient(err)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMaxAttempts) || ctx.Err() != nil || !IsTransient(err) {
			return nil, fmt.Errorf("embed: %w", err)
		}
		return nil, &domain.TransientError{Op: "embed", Attempts: attempts, Err: err}
	}

	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vector), e.dimension)
	}
	return vector, nil
}

// EmbedBatch embeds texts in groups of the configured batch size, pausing
// between groups. A failed item is recorded in its own slot and never fails
// its siblings.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) []EmbedResult {
	results := make([]EmbedResult, len(texts))
	size := e.pool.Cap()

	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			if err := e.pool.Submit(func() {
				defer wg.Done()
				v, err := e.Embed(ctx, texts[i])
				results[i] = EmbedResult{Vector: v, Err: err}
			}); err != nil {
				wg.Done()
				results[i] = EmbedResult{Err: fmt.Errorf("submit embedding: %w", err)}
			}
		}
		wg.Wait()

		if end < len(texts) && e.cfg.BatchPause > 0 {
			timer := time.NewTimer(e.cfg.BatchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				for i := end; i < len(texts); i++ {
					results[i] = EmbedResult{Err: ctx.Err()}
				}
				return results
			case <-timer.C:
			}
		}
	}

	return results
}

// Close releases the worker pool.
func (e *Embedder) Close() {
	e.pool.Release()
}
