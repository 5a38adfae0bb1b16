package claude

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

const Name = string(settings.ProviderClaude)

// Adapter talks to the Anthropic Messages API.
type Adapter struct {
	settings *settings.Settings
	client   *api.Client
}

var _ engine.Adapter = (*Adapter)(nil)

// NewAdapter creates a Claude adapter. The settings must carry a
// claude-api-key.
func NewAdapter(s *settings.Settings) (*Adapter, error) {
	if s == nil {
		return nil, errors.New("no claude settings")
	}
	apiKey := s.APIKey(settings.ProviderClaude)
	if apiKey == "" {
		return nil, &engine.ConfigurationError{
			Message: "no claude API key",
			Checked: []string{settings.APIKeyName(settings.ProviderClaude)},
		}
	}
	s = s.Clone()
	return &Adapter{
		settings: s,
		client:   api.NewClient(apiKey, s.BaseURL(settings.ProviderClaude), s.Client()),
	}, nil
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) prepare(req engine.Request) (*api.MessageRequest, error) {
	if err := tools.ValidateForProvider(req.Tools, tools.ClaudeLimits); err != nil {
		return nil, engine.NewAdapterError(Name, engine.ErrorKindLimitExceeded, err)
	}
	if err := engine.CheckTokenBudget(Name, req, a.settings.TokenBudget); err != nil {
		return nil, err
	}
	return MakeMessageRequest(a.settings, req)
}

func (a *Adapter) StreamCompletion(ctx context.Context, req engine.Request) (engine.Stream, error) {
	msgReq, err := a.prepare(req)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("model", msgReq.Model).
		Int("messages", len(msgReq.Messages)).
		Int("tools", len(msgReq.Tools)).
		Msg("claude: starting streaming request")

	events, err := a.client.StreamMessage(ctx, msgReq)
	if err != nil {
		return nil, wrapError(err)
	}
	return &stream{events: events, merger: NewContentBlockMerger()}, nil
}

func (a *Adapter) RequestCompletion(ctx context.Context, req engine.Request) (*engine.Completion, error) {
	msgReq, err := a.prepare(req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.SendMessage(ctx, msgReq)
	if err != nil {
		return nil, wrapError(err)
	}
	return completionFromResponse(resp)
}

func (a *Adapter) FormatAssistantTurn(c *engine.Completion) conversation.Turn {
	turn := conversation.NewAssistantTurn(c.Text, c.ToolRequests)
	if len(c.Segments) > 0 {
		turn.Segments = append([]conversation.Segment(nil), c.Segments...)
	}
	return turn
}

// FormatToolResults answers tool requests with a user turn made of
// tool_result blocks.
func (a *Adapter) FormatToolResults(results []conversation.ToolResult) conversation.Turn {
	return conversation.NewToolResultsTurn(conversation.RoleUser, results)
}

type stream struct {
	events     *api.EventStream
	merger     *ContentBlockMerger
	completion *engine.Completion
	err        error
	done       bool
}

func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		event, err := s.events.Recv()
		if err == io.EOF {
			s.done = true
			s.finish()
			if s.err != nil {
				return "", s.err
			}
			return "", io.EOF
		}
		if err != nil {
			return "", wrapError(err)
		}

		delta, err := s.merger.Add(event)
		if err != nil {
			return "", engine.NewAdapterError(Name, engine.ErrorKindMalformed, err)
		}
		if apiErr := s.merger.Error(); apiErr != nil {
			return "", streamError(apiErr)
		}
		if delta != "" {
			return delta, nil
		}
	}
}

func (s *stream) finish() {
	resp, err := s.merger.Response()
	if err != nil {
		s.err = engine.NewAdapterError(Name, engine.ErrorKindMalformed, err)
		return
	}
	s.completion, s.err = completionFromResponse(resp)
	if s.completion != nil {
		log.Debug().
			Int("text_len", len(s.completion.Text)).
			Int("tool_requests", len(s.completion.ToolRequests)).
			Str("stop_reason", resp.StopReason).
			Int("output_tokens", resp.Usage.OutputTokens).
			Msg("claude: stream finished")
	}
}

func (s *stream) Completion() (*engine.Completion, error) {
	if !s.done {
		return nil, errors.New("claude stream has not finished")
	}
	return s.completion, s.err
}

func (s *stream) Close() error {
	return s.events.Close()
}

// wrapError classifies errors of the Claude client.
func wrapError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &engine.AdapterError{
			Provider:   Name,
			Kind:       engine.KindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	var parseErr *api.ParseError
	if errors.As(err, &parseErr) {
		return engine.NewAdapterError(Name, engine.ErrorKindMalformed, err)
	}
	return engine.WrapTransportError(Name, err)
}

// streamError classifies an error event received mid-stream.
func streamError(e *api.Error) error {
	kind := engine.ErrorKindAPI
	switch e.Type {
	case "overloaded_error", "api_error":
		kind = engine.ErrorKindUnreachable
	case "rate_limit_error":
		kind = engine.ErrorKindRateLimited
	case "request_too_large":
		kind = engine.ErrorKindLimitExceeded
	}
	return engine.NewAdapterError(Name, kind, errors.Errorf("%s: %s", e.Type, e.Message))
}
