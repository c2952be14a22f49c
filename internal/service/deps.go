package service

import (
	"context"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/tools"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("askdesk/service")

// Embedder turns text into vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) []llm.EmbedResult
}

// VectorStore holds embedded chunks
type VectorStore interface {
	Insert(ctx context.Context, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, tenantID, documentID string) (int64, error)
	CountByDocument(ctx context.Context, tenantID, documentID string) (int, error)
	Search(ctx context.Context, q vectorstore.SearchQuery) ([]domain.RetrievalResult, error)
}

// ChatModel completes a conversation, optionally offering tools
type ChatModel interface {
	Complete(ctx context.Context, messages []llm.Message, tools []domain.ToolDefinition) (*llm.Completion, error)
}

// ToolExecutor runs validated tool calls
type ToolExecutor interface {
	Execute(ctx context.Context, env tools.Env, call tools.Call) tools.Result
	Registry() *tools.Registry
}

// TenantStore reads tenants
type TenantStore interface {
	Get(ctx context.Context, id string) (*domain.Tenant, error)
}

// DocumentStore persists documents and their ingestion state
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
	UpdateResult(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
}

// MessageStore is the append-only conversation log
type MessageStore interface {
	Append(ctx context.Context, message *domain.Message) error
	Recent(ctx context.Context, tenantID, userID string, limit int) ([]*domain.Message, error)
}

// Retriever finds context for a query and never fails
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, k int) []domain.RetrievalResult
}
