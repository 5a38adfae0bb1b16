package toolloop

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/events"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

// ErrMaxIterations matches the error returned when a run hits its
// iteration cap.
var ErrMaxIterations = errors.New("maximum iterations reached")

// MaxIterationsError is returned (and emitted as an error event) when the
// model still requests tools after the last allowed iteration.
type MaxIterationsError struct {
	MaxIterations int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("maximum iterations reached (%d): the model kept requesting tools", e.MaxIterations)
}

func (e *MaxIterationsError) Is(target error) bool {
	return target == ErrMaxIterations
}

// SinkError is returned when an event could not be delivered. The run stops
// at the first undeliverable event.
type SinkError struct {
	Event events.EventType
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("could not deliver %s event: %v", e.Event, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Loop alternates model calls and tool executions until the model answers
// without requesting tools. A Loop is immutable once built and may serve
// concurrent runs; all per-run state lives in Run.
type Loop struct {
	adapter      engine.Adapter
	executor     tools.Executor
	registry     tools.ToolRegistry
	toolCfg      *tools.ToolConfig
	loopCfg      LoopConfig
	sinks        []events.EventSink
	runID        string
	systemPrompt string
	snapshotHook SnapshotHook
}

type Option func(*Loop)

func New(adapter engine.Adapter, executor tools.Executor, opts ...Option) *Loop {
	l := &Loop{
		adapter:  adapter,
		executor: executor,
		loopCfg:  DefaultLoopConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// WithRegistry sets the tools advertised to the model.
func WithRegistry(reg tools.ToolRegistry) Option {
	return func(l *Loop) { l.registry = reg }
}

// WithToolConfig filters the advertised tools with the config's allow and
// deny patterns.
func WithToolConfig(cfg tools.ToolConfig) Option {
	return func(l *Loop) { l.toolCfg = &cfg }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.loopCfg = cfg }
}

func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.loopCfg.MaxIterations = n }
}

// WithEventSinks adds sinks every run publishes to, in addition to the
// sinks carried by the run's context.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(l *Loop) { l.sinks = append(l.sinks, sinks...) }
}

// WithRunID fixes the run id. Without it each run uses the id found in its
// context, or a new one.
func WithRunID(id string) Option {
	return func(l *Loop) { l.runID = id }
}

// WithSystemPrompt sets the system prompt used when a run passes no
// override.
func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) { l.systemPrompt = prompt }
}

func WithSnapshotHook(h SnapshotHook) Option {
	return func(l *Loop) { l.snapshotHook = h }
}

// Provider names the model backend the loop talks to.
func (l *Loop) Provider() string {
	if l == nil || l.adapter == nil {
		return ""
	}
	return l.adapter.Name()
}

// Tools returns the definitions advertised to the model.
func (l *Loop) Tools() []tools.ToolDefinition {
	return l.toolDefinitions()
}

func (l *Loop) snapshot(ctx context.Context, c conversation.Conversation, phase string) {
	if l.snapshotHook != nil {
		l.snapshotHook(ctx, c, phase)
	}
}

func (l *Loop) toolDefinitions() []tools.ToolDefinition {
	if l.registry == nil {
		return nil
	}
	defs := l.registry.ListTools()
	if l.toolCfg != nil {
		defs = l.toolCfg.FilterTools(defs)
	}
	return defs
}

// Run answers the last user turn of conv. Events are published to the
// loop's sinks and to the sinks attached to ctx. It returns the transcript
// extended with every assistant and tool result turn of the run.
//
// Exactly one terminal event (done or error) is published, unless ctx is
// cancelled, in which case Run returns ctx.Err() without further events.
func (l *Loop) Run(ctx context.Context, conv conversation.Conversation, systemPromptOverride string) (conversation.Conversation, error) {
	if l == nil || l.adapter == nil {
		return nil, errors.New("tool loop has no model adapter")
	}
	if l.executor == nil {
		return nil, errors.New("tool loop has no tool executor")
	}
	if len(conv) == 0 {
		return nil, conversation.ErrEmptyConversation
	}

	runID := l.runID
	if runID == "" {
		runID = events.RunIDFromContext(ctx)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = events.WithRunID(ctx, runID)

	maxIterations := l.loopCfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	systemPrompt := l.systemPrompt
	if systemPromptOverride != "" {
		systemPrompt = systemPromptOverride
	}

	pub := &publisher{
		ctx:   ctx,
		sinks: append(append([]events.EventSink{}, l.sinks...), events.GetEventSinks(ctx)...),
		meta:  events.EventMetadata{RunID: runID},
	}
	defs := l.toolDefinitions()
	transcript := conv.Clone()

	logger := log.With().Str("run_id", runID).Str("provider", l.adapter.Name()).Logger()
	logger.Debug().Int("turns", len(transcript)).Int("tools", len(defs)).Msg("toolloop: run started")

	for i := 1; i <= maxIterations; i++ {
		pub.meta.Iteration = i
		if err := ctx.Err(); err != nil {
			return transcript, err
		}

		l.snapshot(ctx, transcript, PhasePreInference)
		req := engine.Request{
			Conversation: transcript,
			SystemPrompt: systemPrompt,
			Tools:        defs,
		}
		completion, err := l.complete(ctx, req, pub)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return transcript, ctxErr
			}
			var sinkErr *SinkError
			if errors.As(err, &sinkErr) {
				return transcript, err
			}
			backendErr := errors.Wrap(err, "model backend error")
			logger.Warn().Err(err).Int("iteration", i).Msg("toolloop: model call failed")
			return transcript, pub.fail(backendErr)
		}

		transcript = transcript.Append(l.adapter.FormatAssistantTurn(completion))
		l.snapshot(ctx, transcript, PhasePostInference)

		logger.Debug().
			Int("iteration", i).
			Str("stop_reason", string(completion.StopReason)).
			Int("tool_requests", len(completion.ToolRequests)).
			Int("text_len", len(completion.Text)).
			Msg("toolloop: model call finished")

		if len(completion.ToolRequests) == 0 {
			if err := pub.publish(events.NewDoneEvent(pub.meta)); err != nil {
				return transcript, err
			}
			logger.Debug().Int("iterations", i).Msg("toolloop: run done")
			return transcript, nil
		}

		results, err := l.executeTools(ctx, completion.ToolRequests, pub)
		if err != nil {
			return transcript, err
		}
		transcript = transcript.Append(l.adapter.FormatToolResults(results))
		l.snapshot(ctx, transcript, PhasePostTools)
	}

	logger.Warn().Int("max_iterations", maxIterations).Msg("toolloop: maximum iterations reached")
	return transcript, pub.fail(&MaxIterationsError{MaxIterations: maxIterations})
}

// complete performs one model call, publishing text as it arrives.
func (l *Loop) complete(ctx context.Context, req engine.Request, pub *publisher) (*engine.Completion, error) {
	onText := func(text string) error {
		return pub.publish(events.NewTextEvent(pub.meta, text))
	}

	if !l.loopCfg.Streaming {
		completion, err := l.adapter.RequestCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if completion.Text != "" {
			if err := onText(completion.Text); err != nil {
				return nil, err
			}
		}
		return completion, nil
	}

	stream, err := l.adapter.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return engine.Drain(ctx, stream, onText)
}

// executeTools announces the requests, runs them concurrently and publishes
// one completion event per request as each finishes.
func (l *Loop) executeTools(
	ctx context.Context,
	reqs []conversation.ToolRequest,
	pub *publisher,
) ([]conversation.ToolResult, error) {
	refs := make([]events.ToolRef, 0, len(reqs))
	for _, r := range reqs {
		refs = append(refs, events.ToolRef{Name: r.Name, ID: r.ID})
	}
	if err := pub.publish(events.NewToolsStartedEvent(pub.meta, refs)); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var publishErr error
	results := l.executor.ExecuteAll(execCtx, reqs, func(req conversation.ToolRequest, p tools.Payload) {
		if publishErr != nil {
			return
		}
		if err := pub.publish(events.NewToolCompletedEvent(pub.meta, req.ID, req.Name, p.Success)); err != nil {
			publishErr = err
			cancel()
		}
	})
	if publishErr != nil {
		return nil, publishErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type publisher struct {
	ctx    context.Context
	sinks  []events.EventSink
	meta   events.EventMetadata
	failed error
}

// publish delivers e to every sink. Once a sink failed, every later publish
// fails too. A cancelled context suppresses all events.
func (p *publisher) publish(e events.Event) error {
	if p.failed != nil {
		return p.failed
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	for i, sink := range p.sinks {
		if err := sink.PublishEvent(e); err != nil {
			if ctxErr := p.ctx.Err(); ctxErr != nil {
				p.failed = ctxErr
				return ctxErr
			}
			p.failed = &SinkError{Event: e.Type(), Err: err}
			log.Warn().Err(err).Str("run_id", p.meta.RunID).Str("event_type", string(e.Type())).Msg("toolloop: event sink failed, stopping run")

			errEvent := events.NewErrorEvent(p.meta, p.failed)
			for j, other := range p.sinks {
				if j != i {
					_ = other.PublishEvent(errEvent)
				}
			}
			return p.failed
		}
	}
	return nil
}

// fail publishes the terminal error event and returns err, or the delivery
// error if the event could not be published.
func (p *publisher) fail(err error) error {
	if pubErr := p.publish(events.NewErrorEvent(p.meta, err)); pubErr != nil {
		return pubErr
	}
	return err
}
