package factory

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/claude"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/ollama"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/openai"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

const defaultCheckTimeout = 3 * time.Second

// AdapterFactory creates the model adapter used by the process. Selection
// happens once, at startup; the adapter is then shared by all runs.
type AdapterFactory interface {
	// CreateAdapter returns the first backend for which credentials are
	// present, or a ConfigurationError listing everything it checked.
	CreateAdapter(ctx context.Context, s *settings.Settings) (engine.Adapter, error)

	// SupportedProviders returns the provider names in selection order.
	SupportedProviders() []string
}

// StandardAdapterFactory tries Claude, then OpenAI, then a local Ollama
// server.
type StandardAdapterFactory struct {
	// ListOllamaModels checks that the Ollama host answers and lists its models.
	ListOllamaModels func(ctx context.Context, host string) ([]string, error)
	CheckTimeout     time.Duration
}

var _ AdapterFactory = (*StandardAdapterFactory)(nil)

func NewStandardAdapterFactory() *StandardAdapterFactory {
	return &StandardAdapterFactory{
		ListOllamaModels: ollama.ListModels,
		CheckTimeout:     defaultCheckTimeout,
	}
}

// NewAdapterFromSettings selects the backend with the standard factory.
func NewAdapterFromSettings(ctx context.Context, s *settings.Settings) (engine.Adapter, error) {
	return NewStandardAdapterFactory().CreateAdapter(ctx, s)
}

func (f *StandardAdapterFactory) SupportedProviders() []string {
	return []string{
		string(settings.ProviderClaude),
		string(settings.ProviderOpenAI),
		string(settings.ProviderOllama),
	}
}

func (f *StandardAdapterFactory) CreateAdapter(ctx context.Context, s *settings.Settings) (engine.Adapter, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}

	checked := []string{}

	checked = append(checked, settings.APIKeyName(settings.ProviderClaude)+" (ANTHROPIC_API_KEY)")
	if s.APIKey(settings.ProviderClaude) != "" {
		log.Info().Str("provider", claude.Name).Str("model", s.ModelFor(settings.ProviderClaude)).Msg("factory: selected model backend")
		a, err := claude.NewAdapter(s)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	checked = append(checked, settings.APIKeyName(settings.ProviderOpenAI)+" (OPENAI_API_KEY)")
	if s.APIKey(settings.ProviderOpenAI) != "" {
		log.Info().Str("provider", openai.Name).Str("model", s.ModelFor(settings.ProviderOpenAI)).Msg("factory: selected model backend")
		a, err := openai.NewAdapter(s)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	checked = append(checked, "ollama-host (OLLAMA_HOST)")
	message := "no model backend credentials found"
	if s.OllamaHost != "" {
		a, err := f.createOllama(ctx, s)
		if err == nil {
			return a, nil
		}
		log.Warn().Err(err).Str("host", s.OllamaHost).Msg("factory: ollama is configured but not usable")
		message = "no model backend credentials found and " + err.Error()
	}

	return nil, &engine.ConfigurationError{Message: message, Checked: checked}
}

func (f *StandardAdapterFactory) createOllama(ctx context.Context, s *settings.Settings) (engine.Adapter, error) {
	list := f.ListOllamaModels
	if list == nil {
		list = ollama.ListModels
	}
	timeout := f.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	models, err := list(listCtx, s.OllamaHost)
	if err != nil {
		return nil, err
	}

	model := s.ModelFor(settings.ProviderOllama)
	if !ollama.HasModel(models, model) {
		log.Warn().Str("model", model).Strs("available", models).Msg("factory: ollama model has not been pulled")
	}
	log.Info().Str("provider", ollama.Name).Str("model", model).Msg("factory: selected model backend")
	a, err := ollama.NewAdapter(s)
	if err != nil {
		return nil, err
	}
	return a, nil
}
