package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Call is one tool request taken from a model response
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
	// ParseErr is set when the model's argument text was not valid JSON
	ParseErr error
}

// Auditor records every executed tool call
type Auditor interface {
	AppendInvocation(ctx context.Context, inv *domain.ToolInvocation) error
}

// Executor validates, runs and audits tool calls
type Executor struct {
	registry *Registry
	handlers Handlers
	audit    Auditor
	cfg      config.ToolsConfig
	logger   *zap.Logger
}

// NewExecutor creates a tool executor
func NewExecutor(cfg *config.Config, registry *Registry, handlers Handlers, audit Auditor, logger *zap.Logger) *Executor {
	return &Executor{
		registry: registry,
		handlers: handlers,
		audit:    audit,
		cfg:      cfg.Tools,
		logger:   logger.Named("executor"),
	}
}

// Registry returns the catalog the executor dispatches over
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs one call. Invalid arguments are rejected before any
// collaborator is touched. Read-only tools are retried when an attempt
// times out; mutating tools run at most once.
func (e *Executor) Execute(ctx context.Context, env Env, call Call) Result {
	ctx, span := otel.Tracer("askdesk/tools").Start(ctx, "tools.Execute")
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tenant.id", env.TenantID),
	)
	defer span.End()

	start := time.Now()
	result := e.execute(ctx, env, call)
	if result.Failure != nil {
		span.SetStatus(codes.Error, string(result.Failure.Kind))
	}

	e.record(ctx, env, call, result, time.Since(start))
	return result
}

func (e *Executor) execute(ctx context.Context, env Env, call Call) Result {
	if call.ParseErr != nil {
		return Fail(FailureValidation, fmt.Sprintf("arguments for %s are not valid JSON: %v", call.Name, call.ParseErr))
	}

	def, ok := e.registry.Lookup(call.Name)
	if !ok {
		return Fail(FailureValidation, fmt.Sprintf("unknown tool %q", call.Name))
	}

	args, err := Decode(def, call.Arguments)
	if err != nil {
		return Fail(FailureValidation, err.Error())
	}

	attempts := 1
	if !def.Mutating && e.cfg.ReadRetries > 0 {
		attempts += e.cfg.ReadRetries
	}

	var result Result
	for attempt := 1; attempt <= attempts; attempt++ {
		result = e.attempt(ctx, env, args)
		if result.Failure == nil || result.Failure.Kind != FailureTimeout || ctx.Err() != nil {
			break
		}
		e.logger.Warn("tool attempt timed out",
			zap.String("tool", def.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
		)
	}

	if def.Mutating && result.Failure != nil && result.Failure.Kind == FailureTimeout {
		return Fail(FailureMutation, fmt.Sprintf("%s timed out; it was not retried and may or may not have taken effect", def.Name))
	}
	return result
}

func (e *Executor) attempt(ctx context.Context, env Env, args Args) Result {
	var cancel context.CancelFunc
	if e.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool handler panicked", zap.String("tool", args.Tool()), zap.Any("panic", r))
				done <- Fail(FailureUpstream, fmt.Sprintf("%s failed unexpectedly", args.Tool()))
			}
		}()
		done <- args.dispatch(ctx, env, e.handlers)
	}()

	select {
	case r := <-done:
		if r.Failure != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && r.Failure.Kind == FailureUpstream {
			r.Failure.Kind = FailureTimeout
		}
		return r
	case <-ctx.Done():
		return Fail(FailureTimeout, fmt.Sprintf("%s timed out", args.Tool()))
	}
}

func (e *Executor) record(ctx context.Context, env Env, call Call, result Result, elapsed time.Duration) {
	if e.audit == nil {
		return
	}

	argsJSON, _ := json.Marshal(call.Arguments)
	payload, _ := json.Marshal(result.Payload())

	inv := &domain.ToolInvocation{
		ID:         uuid.New().String(),
		TenantID:   env.TenantID,
		UserID:     env.UserID,
		ToolName:   call.Name,
		Arguments:  argsJSON,
		OK:         result.OK,
		Message:    result.Message,
		Result:     payload,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if result.Failure != nil {
		inv.FailureKind = string(result.Failure.Kind)
	}

	if err := e.audit.AppendInvocation(context.WithoutCancel(ctx), inv); err != nil {
		e.logger.Error("failed to record tool invocation",
			zap.String("tool", call.Name),
			zap.String("tenant_id", env.TenantID),
			zap.Error(err),
		)
	}
}
