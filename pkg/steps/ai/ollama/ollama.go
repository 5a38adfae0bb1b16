package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/openai"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

const (
	Name = string(settings.ProviderOllama)
	// DefaultHost is where a local ollama server listens.
	DefaultHost = "http://127.0.0.1:11434"
)

// ListModels checks that an Ollama server answers on host and returns the names
// of the models it has pulled. The process environment is left untouched.
func ListModels(ctx context.Context, host string) ([]string, error) {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(host)+"/api/tags", nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ollama host %q", host)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "ollama at %s is not reachable", host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := api.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		_ = json.NewDecoder(resp.Body).Decode(&statusErr)
		return nil, errors.Wrapf(statusErr, "ollama at %s answered", host)
	}

	var list api.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "could not list ollama models")
	}
	ret := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ret = append(ret, m.Name)
	}
	return ret, nil
}

// HasModel reports whether model is among the pulled models. A name
// without a tag matches its :latest tag.
func HasModel(models []string, model string) bool {
	for _, m := range models {
		if m == model || m == model+":latest" {
			return true
		}
	}
	return false
}

// CompatibleBaseURL returns the OpenAI-compatible endpoint of an Ollama
// host. Hosts without a scheme are reached over http.
func CompatibleBaseURL(host string) string {
	return baseURL(host) + "/v1"
}

func baseURL(host string) string {
	host = strings.TrimSpace(host)
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

// NewAdapter creates an adapter for the Ollama server at the configured
// ollama-host. Ollama speaks the chat completions protocol, tool calls
// included, so the OpenAI adapter serves it under its own name.
func NewAdapter(s *settings.Settings) (*openai.Adapter, error) {
	if s == nil {
		return nil, errors.New("no ollama settings")
	}
	if s.OllamaHost == "" {
		return nil, &engine.ConfigurationError{
			Message: "no ollama host",
			Checked: []string{"ollama-host"},
		}
	}

	// the compatible endpoint ignores the key but the client always sends one
	config := go_openai.DefaultConfig(Name)
	config.BaseURL = CompatibleBaseURL(s.OllamaHost)
	config.HTTPClient = s.Client()

	model := s.ModelFor(settings.ProviderOllama)
	log.Debug().Str("base_url", config.BaseURL).Str("model", model).Msg("ollama: creating adapter")
	return openai.NewCompatibleAdapter(Name, s, config, model, tools.OllamaLimits), nil
}
