package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/events"
)

// Auditor receives one record per executed tool call.
type Auditor interface {
	PublishToolAudit(ctx context.Context, record events.ToolAuditRecord) error
}

// ToolExecutorExt defines lifecycle hooks that can be overridden.
type ToolExecutorExt interface {
	// PreExecute may mutate the request (e.g. inject defaults) or reject it.
	PreExecute(ctx context.Context, req conversation.ToolRequest) (conversation.ToolRequest, error)

	// IsAllowed adds authorization beyond the allow/deny patterns of the config.
	IsAllowed(ctx context.Context, req conversation.ToolRequest) bool

	// MaskArguments returns the arguments as they may appear in logs and audit records.
	MaskArguments(ctx context.Context, req conversation.ToolRequest) json.RawMessage

	// PublishResult is called once per request after execution.
	PublishResult(ctx context.Context, req conversation.ToolRequest, payload Payload, duration time.Duration)

	// ShouldRetry decides retry and backoff after a failed attempt.
	ShouldRetry(ctx context.Context, attempt int, execErr error) (retry bool, backoff time.Duration)

	// MaxParallel decides concurrency for a batch; 0 means unbounded.
	MaxParallel(ctx context.Context, reqs []conversation.ToolRequest) int
}

// BaseToolExecutor validates requests against the registry and delegates the
// actual call to an Invoker. Outer types can embed it and override hooks by
// setting ToolExecutorExt to themselves.
type BaseToolExecutor struct {
	ToolExecutorExt // self reference used for dynamic dispatch
	registry        ToolRegistry
	invoker         Invoker
	config          ToolConfig
	auditor         Auditor
}

type ExecutorOption func(*BaseToolExecutor)

func WithAuditor(auditor Auditor) ExecutorOption {
	return func(b *BaseToolExecutor) {
		b.auditor = auditor
	}
}

func WithToolConfig(cfg ToolConfig) ExecutorOption {
	return func(b *BaseToolExecutor) {
		b.config = cfg
	}
}

func NewBaseToolExecutor(registry ToolRegistry, invoker Invoker, options ...ExecutorOption) *BaseToolExecutor {
	b := &BaseToolExecutor{
		registry: registry,
		invoker:  invoker,
		config:   DefaultToolConfig(),
	}
	for _, o := range options {
		o(b)
	}
	b.ToolExecutorExt = b // default to self; outer types overwrite this
	return b
}

var _ ToolExecutorExt = (*BaseToolExecutor)(nil)
var _ Executor = (*BaseToolExecutor)(nil)

func (b *BaseToolExecutor) PreExecute(_ context.Context, req conversation.ToolRequest) (conversation.ToolRequest, error) {
	return req, nil
}

func (b *BaseToolExecutor) IsAllowed(_ context.Context, req conversation.ToolRequest) bool {
	return b.config.IsToolAllowed(req.Name)
}

func (b *BaseToolExecutor) MaskArguments(_ context.Context, req conversation.ToolRequest) json.RawMessage {
	if len(req.Arguments) == 0 {
		return nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil
	}
	for _, key := range b.config.MaskedArguments {
		if _, ok := args[key]; ok {
			args[key] = "***"
		}
	}
	ret, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	return ret
}

func (b *BaseToolExecutor) PublishResult(ctx context.Context, req conversation.ToolRequest, payload Payload, duration time.Duration) {
	log.Debug().
		Str("tool", req.Name).
		Str("id", req.ID).
		Bool("success", payload.Success).
		Str("error", payload.Error).
		Dur("duration", duration).
		Msg("tools: executed tool")

	if b.auditor == nil {
		return
	}
	record := events.ToolAuditRecord{
		RunID:      events.RunIDFromContext(ctx),
		RequestID:  req.ID,
		Tool:       req.Name,
		Arguments:  b.ToolExecutorExt.MaskArguments(ctx, req),
		Success:    payload.Success,
		Error:      payload.Error,
		DurationMS: duration.Milliseconds(),
		Retries:    payload.Retries,
	}
	if payload.Success {
		record.Output = payload.Data
	}
	if err := b.auditor.PublishToolAudit(ctx, record); err != nil {
		log.Warn().Err(err).Str("tool", req.Name).Msg("tools: could not publish audit record")
	}
}

// ShouldRetry retries transient failures only, and only when the config asks for it.
func (b *BaseToolExecutor) ShouldRetry(_ context.Context, attempt int, execErr error) (bool, time.Duration) {
	if b.config.ToolErrorHandling != ToolErrorRetry {
		return false, 0
	}
	if attempt >= b.config.RetryConfig.MaxRetries {
		return false, 0
	}
	if !IsTransient(execErr) {
		return false, 0
	}
	return true, b.config.RetryConfig.Backoff(attempt)
}

func (b *BaseToolExecutor) MaxParallel(_ context.Context, _ []conversation.ToolRequest) int {
	return b.config.MaxParallelTools
}

// Execute runs one request through the hook pipeline and converts every
// failure, including panics in invokers, into a failed payload.
func (b *BaseToolExecutor) Execute(ctx context.Context, req conversation.ToolRequest) (payload Payload) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("tool", req.Name).Msg("tools: tool execution panicked")
			payload = Failure(fmt.Sprintf("tool %s failed: %v", req.Name, r))
		}
		b.ToolExecutorExt.PublishResult(ctx, req, payload, time.Since(start))
	}()

	return b.execute(ctx, req)
}

func (b *BaseToolExecutor) execute(ctx context.Context, req conversation.ToolRequest) Payload {
	req, err := b.ToolExecutorExt.PreExecute(ctx, req)
	if err != nil {
		return Failure(err.Error())
	}

	def, err := b.registry.GetTool(req.Name)
	if err != nil {
		return Failure(fmt.Sprintf("unknown tool: %s", req.Name))
	}
	if !b.ToolExecutorExt.IsAllowed(ctx, req) {
		return Failure(fmt.Sprintf("tool not allowed: %s", req.Name))
	}
	if err := ValidateArguments(def, req.Arguments); err != nil {
		return Failure(err.Error())
	}

	args := req.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	for attempt := 0; ; attempt++ {
		data, err := b.invokeOnce(ctx, req.Name, args)
		if err == nil {
			p := Success(data)
			p.Retries = attempt
			return p
		}

		retry, backoff := b.ToolExecutorExt.ShouldRetry(ctx, attempt, err)
		if !retry {
			p := Failure(err.Error())
			p.Retries = attempt
			return p
		}
		log.Debug().Err(err).Str("tool", req.Name).Int("attempt", attempt).Dur("backoff", backoff).Msg("tools: retrying tool")

		select {
		case <-ctx.Done():
			return Failure("context cancelled during retry backoff")
		case <-time.After(backoff):
		}
	}
}

func (b *BaseToolExecutor) invokeOnce(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "execution cancelled")
	}

	execCtx := ctx
	if b.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, b.config.ExecutionTimeout)
		defer cancel()
	}
	return b.invoker.Invoke(execCtx, name, args)
}

func (b *BaseToolExecutor) ExecuteAll(
	ctx context.Context,
	reqs []conversation.ToolRequest,
	onDone func(conversation.ToolRequest, Payload),
) []conversation.ToolResult {
	results := make([]conversation.ToolResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	// a plain group: one failing tool must not cancel its siblings
	var g errgroup.Group
	if n := b.ToolExecutorExt.MaxParallel(ctx, reqs); n > 0 {
		g.SetLimit(n)
	}

	var mu sync.Mutex
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			p := b.Execute(ctx, req)
			results[i] = p.ToolResult(req)
			if onDone != nil {
				mu.Lock()
				defer mu.Unlock()
				onDone(req, p)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
