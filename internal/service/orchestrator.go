package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ApologyMessage is returned when the model cannot produce an answer
const ApologyMessage = "I'm sorry, I encountered an error processing your request. Please try again."

const (
	contextHeader = "\n\nRelevant information from documents:\n"
	contextFooter = "\nUse this information to answer the user's questions accurately."
)

// Turn is one user message and the options it was sent with
type Turn struct {
	TenantID     string
	UserID       string
	UserEmail    string
	Message      string
	History      []domain.HistoryMessage
	UseRetrieval bool
	EnableTools  bool
	Credentials  domain.Credentials
}

// Reply is the assistant's answer to a turn
type Reply struct {
	Message    string
	Sources    []domain.Source
	ToolsUsed  []domain.ToolUse
	HasContext bool
}

// Orchestrator answers chat turns with retrieved context and tools
type Orchestrator struct {
	cfg       *config.Config
	tenants   TenantStore
	messages  MessageStore
	retriever Retriever
	model     ChatModel
	loop      *LoopController
	logger    *zap.Logger
}

// NewOrchestrator creates a new conversation orchestrator
func NewOrchestrator(
	cfg *config.Config,
	tenants TenantStore,
	messages MessageStore,
	retriever Retriever,
	model ChatModel,
	loop *LoopController,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		tenants:   tenants,
		messages:  messages,
		retriever: retriever,
		model:     model,
		loop:      loop,
		logger:    logger.Named("orchestrator"),
	}
}

// Chat answers a turn. Apart from invalid input or an unknown tenant it
// always resolves to a reply: a failing model yields an apology and
// failing persistence is only logged.
func (o *Orchestrator) Chat(ctx context.Context, turn Turn) (*Reply, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, domain.NewValidationError("message", "is required")
	}
	if strings.TrimSpace(turn.TenantID) == "" {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}

	ctx, span := tracer.Start(ctx, "orchestrator.Chat", trace.WithAttributes(
		attribute.String("tenant.id", turn.TenantID),
		attribute.Bool("retrieval", turn.UseRetrieval),
		attribute.Bool("tools", turn.EnableTools),
	))
	defer span.End()

	tenant, err := o.tenants.Get(ctx, turn.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s: %w", turn.TenantID, domain.ErrNotFound)
	}
	logger := o.logger.With(zap.String("tenant_id", turn.TenantID), zap.String("user_id", turn.UserID))

	reply := &Reply{Sources: []domain.Source{}, ToolsUsed: []domain.ToolUse{}}

	var found []domain.RetrievalResult
	if turn.UseRetrieval {
		found = o.retriever.Search(ctx, turn.TenantID, turn.Message, o.cfg.RAG.TopK)
		for _, r := range found {
			reply.Sources = append(reply.Sources, r.Source())
		}
		reply.HasContext = len(found) > 0
	}

	messages := make([]llm.Message, 0, o.cfg.RAG.HistoryTurns+2)
	messages = append(messages, llm.Message{Role: domain.RoleSystem, Content: systemPrompt(tenant, found)})
	messages = append(messages, trimHistory(turn.History, o.cfg.RAG.HistoryTurns)...)
	messages = append(messages, llm.Message{Role: domain.RoleUser, Content: turn.Message})

	if turn.EnableTools {
		env := tools.Env{
			TenantID:    turn.TenantID,
			UserID:      turn.UserID,
			UserEmail:   turn.UserEmail,
			CalendarID:  tenant.CalendarID,
			Timezone:    tenant.Timezone,
			Credentials: turn.Credentials,
		}
		res, err := o.loop.Run(ctx, messages, env)
		if res != nil {
			reply.ToolsUsed = append(reply.ToolsUsed, res.ToolsUsed...)
			reply.Message = res.Answer
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model")
			logger.Error("model call failed", zap.Error(err), zap.Int("tools_used", len(reply.ToolsUsed)))
			reply.Message = ApologyMessage
		}
	} else {
		completion, err := o.model.Complete(ctx, messages, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model")
			logger.Error("model call failed", zap.Error(err))
			reply.Message = ApologyMessage
		} else {
			reply.Message = finalAnswer(completion.Content)
		}
	}

	o.persist(ctx, logger, turn, reply)
	return reply, nil
}

// History returns a user's most recent stored messages, oldest first
func (o *Orchestrator) History(ctx context.Context, tenantID, userID string, limit int) ([]*domain.Message, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	messages, err := o.messages.Recent(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return messages, nil
}

func (o *Orchestrator) persist(ctx context.Context, logger *zap.Logger, turn Turn, reply *Reply) {
	ctx = context.WithoutCancel(ctx)

	user := &domain.Message{
		TenantID: turn.TenantID,
		UserID:   turn.UserID,
		Role:     domain.RoleUser,
		Content:  turn.Message,
	}
	if err := o.messages.Append(ctx, user); err != nil {
		logger.Warn("failed to store user message", zap.Error(err))
	}

	assistant := &domain.Message{
		TenantID: turn.TenantID,
		UserID:   turn.UserID,
		Role:     domain.RoleAssistant,
		Content:  reply.Message,
		Sources:  reply.Sources,
	}
	if err := o.messages.Append(ctx, assistant); err != nil {
		logger.Warn("failed to store assistant message", zap.Error(err))
	}
}

func systemPrompt(tenant *domain.Tenant, found []domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(tenant.Prompt())
	if len(found) == 0 {
		return b.String()
	}

	b.WriteString(contextHeader)
	for i, r := range found {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Content)
	}
	b.WriteString(contextFooter)
	return b.String()
}

// trimHistory keeps the last n user and assistant messages
func trimHistory(history []domain.HistoryMessage, n int) []llm.Message {
	kept := make([]llm.Message, 0, len(history))
	for _, h := range history {
		if h.Role != domain.RoleUser && h.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		kept = append(kept, llm.Message{Role: h.Role, Content: h.Content})
	}
	if n <= 0 {
		return nil
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}
