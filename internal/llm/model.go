package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ToolCall is a structured tool request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of a model conversation.
type Message struct {
	Role       domain.Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Completion is the model's reply to a conversation.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel calls an OpenAI-compatible chat completion endpoint.
type ChatModel struct {
	model  llms.Model
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewChatModel creates a chat model for the configured endpoint.
func NewChatModel(cfg *config.Config, logger *zap.Logger) (*ChatModel, error) {
	token := cfg.LLM.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.LLM.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	return NewChatModelWith(client, cfg, logger), nil
}

// NewChatModelWith wraps an existing langchaingo model.
func NewChatModelWith(model llms.Model, cfg *config.Config, logger *zap.Logger) *ChatModel {
	return &ChatModel{
		model:  model,
		cfg:    cfg.LLM,
		logger: logger.Named("model"),
	}
}

// Complete sends the conversation, offering tools when any are given.
// Failures are returned as-is and never retried.
func (m *ChatModel) Complete(ctx context.Context, messages []Message, tools []domain.ToolDefinition) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	opts := []llms.CallOption{llms.WithTemperature(m.cfg.Temperature)}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toolSpecs(tools)))
	}

	resp, err := m.model.GenerateContent(ctx, toMessageContent(messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: empty response")
	}

	choice := resp.Choices[0]
	out := &Completion{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	m.logger.Debug("completion received",
		zap.Int("messages", len(messages)),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}

func toolSpecs(defs []domain.ToolDefinition) []llms.Tool {
	specs := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema(),
			},
		})
	}
	return specs
}

func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		case domain.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, mc)
		case domain.RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
