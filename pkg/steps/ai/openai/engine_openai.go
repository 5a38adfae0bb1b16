package openai

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

const Name = string(settings.ProviderOpenAI)

// Adapter talks to the chat completions API, either OpenAI's or a
// compatible server's.
type Adapter struct {
	name         string
	settings     *settings.Settings
	model        string
	limits       tools.ProviderLimits
	client       *go_openai.Client
	includeUsage bool
}

var _ engine.Adapter = (*Adapter)(nil)

// NewAdapter creates an OpenAI adapter. The settings must carry an
// openai-api-key.
func NewAdapter(s *settings.Settings) (*Adapter, error) {
	if s == nil {
		return nil, errors.New("no openai settings")
	}
	apiKey := s.APIKey(settings.ProviderOpenAI)
	if apiKey == "" {
		return nil, &engine.ConfigurationError{
			Message: "no openai API key",
			Checked: []string{settings.APIKeyName(settings.ProviderOpenAI)},
		}
	}

	config := go_openai.DefaultConfig(apiKey)
	if baseURL := s.BaseURL(settings.ProviderOpenAI); baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = s.Client()

	a := NewCompatibleAdapter(Name, s, config, s.ModelFor(settings.ProviderOpenAI), tools.OpenAILimits)
	a.includeUsage = true
	return a, nil
}

// NewCompatibleAdapter creates an adapter for a server speaking the chat
// completions protocol under another name.
func NewCompatibleAdapter(
	name string,
	s *settings.Settings,
	config go_openai.ClientConfig,
	model string,
	limits tools.ProviderLimits,
) *Adapter {
	return &Adapter{
		name:     name,
		settings: s.Clone(),
		model:    model,
		limits:   limits,
		client:   go_openai.NewClientWithConfig(config),
	}
}

func (a *Adapter) Name() string {
	return a.name
}

// Model returns the model requests are sent to.
func (a *Adapter) Model() string {
	return a.model
}

func (a *Adapter) prepare(req engine.Request) (*go_openai.ChatCompletionRequest, error) {
	if err := tools.ValidateForProvider(req.Tools, a.limits); err != nil {
		return nil, engine.NewAdapterError(a.name, engine.ErrorKindLimitExceeded, err)
	}
	if err := engine.CheckTokenBudget(a.name, req, a.settings.TokenBudget); err != nil {
		return nil, err
	}
	return MakeCompletionRequest(a.settings, a.model, req)
}

func (a *Adapter) StreamCompletion(ctx context.Context, req engine.Request) (engine.Stream, error) {
	chatReq, err := a.prepare(req)
	if err != nil {
		return nil, err
	}
	chatReq.Stream = true
	if a.includeUsage {
		chatReq.StreamOptions = &go_openai.StreamOptions{IncludeUsage: true}
	}

	log.Debug().
		Str("provider", a.name).
		Str("model", chatReq.Model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Msg("openai: starting streaming request")

	inner, err := a.client.CreateChatCompletionStream(ctx, *chatReq)
	if err != nil {
		return nil, wrapError(a.name, err)
	}
	return &stream{provider: a.name, inner: inner, merger: NewToolCallMerger()}, nil
}

func (a *Adapter) RequestCompletion(ctx context.Context, req engine.Request) (*engine.Completion, error) {
	chatReq, err := a.prepare(req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateChatCompletion(ctx, *chatReq)
	if err != nil {
		return nil, wrapError(a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, engine.NewAdapterError(a.name, engine.ErrorKindMalformed, errors.New("response has no choices"))
	}
	msg := resp.Choices[0].Message
	return completionFromMessage(a.name, msg.Content, msg.ToolCalls)
}

func (a *Adapter) FormatAssistantTurn(c *engine.Completion) conversation.Turn {
	return conversation.NewAssistantTurn(c.Text, c.ToolRequests)
}

// FormatToolResults answers tool requests with a tool role turn; it is sent
// as one tool message per result.
func (a *Adapter) FormatToolResults(results []conversation.ToolResult) conversation.Turn {
	return conversation.NewToolResultsTurn(conversation.RoleTool, results)
}

type stream struct {
	provider     string
	inner        *go_openai.ChatCompletionStream
	merger       *ToolCallMerger
	text         strings.Builder
	finishReason go_openai.FinishReason
	chunks       int
	completion   *engine.Completion
	err          error
	done         bool
}

func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		response, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.finish()
			if s.err != nil {
				return "", s.err
			}
			return "", io.EOF
		}
		if err != nil {
			return "", wrapError(s.provider, err)
		}
		s.chunks++

		if response.Usage != nil {
			log.Debug().
				Str("provider", s.provider).
				Int("prompt_tokens", response.Usage.PromptTokens).
				Int("completion_tokens", response.Usage.CompletionTokens).
				Msg("openai: usage")
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if len(choice.Delta.ToolCalls) > 0 {
			s.merger.AddToolCalls(choice.Delta.ToolCalls)
		}
		if choice.FinishReason != "" {
			s.finishReason = choice.FinishReason
		}
		if delta := choice.Delta.Content; delta != "" {
			s.text.WriteString(delta)
			return delta, nil
		}
	}
}

func (s *stream) finish() {
	if s.finishReason == "" {
		s.err = engine.NewAdapterError(s.provider, engine.ErrorKindMalformed,
			errors.Errorf("stream ended after %d chunks without a finish reason", s.chunks))
		return
	}
	s.completion, s.err = completionFromMessage(s.provider, s.text.String(), s.merger.GetToolCalls())
	if s.completion != nil {
		log.Debug().
			Str("provider", s.provider).
			Int("chunks", s.chunks).
			Str("finish_reason", string(s.finishReason)).
			Int("text_len", len(s.completion.Text)).
			Int("tool_requests", len(s.completion.ToolRequests)).
			Msg("openai: stream finished")
	}
}

func (s *stream) Completion() (*engine.Completion, error) {
	if !s.done {
		return nil, errors.New("openai stream has not finished")
	}
	return s.completion, s.err
}

func (s *stream) Close() error {
	return s.inner.Close()
}

// wrapError classifies errors of the go-openai client.
func wrapError(provider string, err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return &engine.AdapterError{
			Provider:   provider,
			Kind:       engine.KindForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &engine.AdapterError{
			Provider:   provider,
			Kind:       engine.KindForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, go_openai.ErrTooManyEmptyStreamMessages) {
		return engine.NewAdapterError(provider, engine.ErrorKindMalformed, err)
	}
	return engine.WrapTransportError(provider, err)
}
