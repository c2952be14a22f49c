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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FallbackAnswer replaces a blank final answer
const FallbackAnswer = "I'm sorry, I wasn't able to put together an answer. Could you rephrase your question?"

const textualFollowUp = "The %s tool returned:\n%s\n\nUsing this result, answer my previous message in natural language. Do not include any function calls or function syntax in your reply."

// LoopResult is the outcome of a tool-calling loop
type LoopResult struct {
	Answer    string
	ToolsUsed []domain.ToolUse
	Rounds    int
}

// LoopController alternates model calls and tool execution until the model
// answers in plain text or the round cap is reached.
type LoopController struct {
	model     ChatModel
	executor  ToolExecutor
	detector  CallDetector
	maxRounds int
	logger    *zap.Logger
}

// NewLoopController creates a loop controller with the default detectors
func NewLoopController(cfg *config.Config, model ChatModel, executor ToolExecutor, logger *zap.Logger) *LoopController {
	maxRounds := cfg.Tools.MaxRounds
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &LoopController{
		model:     model,
		executor:  executor,
		detector:  DefaultDetector(),
		maxRounds: maxRounds,
		logger:    logger.Named("loop"),
	}
}

// WithDetector replaces the call detector
func (l *LoopController) WithDetector(d CallDetector) *LoopController {
	l.detector = d
	return l
}

// Run drives the conversation. At most maxRounds model calls are made; when
// the cap is hit the last model output is returned as the answer. A model
// error ends the loop and is returned with the tools used so far.
func (l *LoopController) Run(ctx context.Context, messages []llm.Message, env tools.Env) (*LoopResult, error) {
	ctx, span := tracer.Start(ctx, "loop.Run")
	defer span.End()

	registry := l.executor.Registry()
	defs := registry.Definitions()
	convo := append([]llm.Message(nil), messages...)

	res := &LoopResult{}
	var last string
	for round := 1; round <= l.maxRounds; round++ {
		res.Rounds = round

		completion, err := l.model.Complete(ctx, convo, defs)
		if err != nil {
			span.SetAttributes(attribute.Int("rounds", round))
			return res, err
		}
		last = completion.Content

		calls, mode := l.detector.Detect(completion, registry)
		if mode == DetectNone {
			res.Answer = finalAnswer(completion.Content)
			span.SetAttributes(attribute.Int("rounds", round))
			return res, nil
		}

		l.logger.Debug("tool calls requested",
			zap.String("tenant_id", env.TenantID),
			zap.Int("round", round),
			zap.String("mode", mode.String()),
			zap.Int("calls", len(calls)),
		)

		switch mode {
		case DetectStructured:
			results := l.executeAll(ctx, env, calls)

			assistant := llm.Message{Role: domain.RoleAssistant, Content: completion.Content}
			for i, c := range calls {
				args := ""
				if i < len(completion.ToolCalls) {
					args = completion.ToolCalls[i].Arguments
				}
				assistant.ToolCalls = append(assistant.ToolCalls, llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: args})
			}
			convo = append(convo, assistant)

			for i, c := range calls {
				convo = append(convo, llm.Message{
					Role:       domain.RoleTool,
					ToolCallID: c.ID,
					Name:       c.Name,
					Content:    results[i].Content(),
				})
				res.ToolsUsed = append(res.ToolsUsed, toolUse(c, results[i]))
			}

		case DetectTextual:
			call := calls[0]
			result := l.executor.Execute(ctx, env, call)
			convo = append(convo,
				llm.Message{Role: domain.RoleAssistant, Content: completion.Content},
				llm.Message{Role: domain.RoleUser, Content: fmt.Sprintf(textualFollowUp, call.Name, result.Content())},
			)
			res.ToolsUsed = append(res.ToolsUsed, toolUse(call, result))
		}
	}

	l.logger.Warn("tool round cap reached",
		zap.String("tenant_id", env.TenantID),
		zap.Int("max_rounds", l.maxRounds),
	)
	span.SetAttributes(attribute.Int("rounds", res.Rounds), attribute.Bool("capped", true))
	res.Answer = finalAnswer(last)
	return res, nil
}

// executeAll runs one round's calls concurrently; results keep call order
func (l *LoopController) executeAll(ctx context.Context, env tools.Env, calls []tools.Call) []tools.Result {
	results := make([]tools.Result, len(calls))

	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			results[i] = l.executor.Execute(ctx, env, c)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func toolUse(c tools.Call, r tools.Result) domain.ToolUse {
	return domain.ToolUse{Name: c.Name, Args: c.Arguments, Result: r.Payload()}
}

func finalAnswer(text string) string {
	if strings.TrimSpace(text) == "" {
		return FallbackAnswer
	}
	return strings.TrimSpace(text)
}
