package factory

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

func newFactory(listErr error) (*StandardAdapterFactory, *int) {
	calls := 0
	f := NewStandardAdapterFactory()
	f.ListOllamaModels = func(ctx context.Context, host string) ([]string, error) {
		calls++
		if listErr != nil {
			return nil, listErr
		}
		return []string{"llama3.1:latest"}, nil
	}
	return f, &calls
}

func TestStandardAdapterFactory_SupportedProviders(t *testing.T) {
	f := NewStandardAdapterFactory()
	assert.Equal(t, []string{"claude", "openai", "ollama"}, f.SupportedProviders())
}

func TestCreateAdapter_NilSettings(t *testing.T) {
	f, _ := newFactory(nil)
	a, err := f.CreateAdapter(context.Background(), nil)
	assert.Nil(t, a)
	assert.Error(t, err)
}

func TestCreateAdapter_PriorityOrder(t *testing.T) {
	cases := []struct {
		name       string
		claudeKey  string
		openaiKey  string
		ollamaHost string
		expected   string
	}{
		{"claude wins over everything", "sk-ant", "sk-openai", "http://localhost:11434", "claude"},
		{"openai without claude", "", "sk-openai", "http://localhost:11434", "openai"},
		{"ollama last", "", "", "http://localhost:11434", "ollama"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := settings.NewSettings()
			if tc.claudeKey != "" {
				s.APIKeys["claude-api-key"] = tc.claudeKey
			}
			if tc.openaiKey != "" {
				s.APIKeys["openai-api-key"] = tc.openaiKey
			}
			s.OllamaHost = tc.ollamaHost

			f, calls := newFactory(nil)
			a, err := f.CreateAdapter(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, a.Name())
			if tc.expected != "ollama" {
				assert.Equal(t, 0, *calls, "ollama must not be contacted when a key is present")
			}
		})
	}
}

func TestCreateAdapter_NothingConfigured(t *testing.T) {
	f, calls := newFactory(nil)
	_, err := f.CreateAdapter(context.Background(), settings.NewSettings())

	var cfgErr *engine.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, *calls)
	require.Len(t, cfgErr.Checked, 3)
	assert.Contains(t, err.Error(), "claude-api-key")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "ollama-host")
}

func TestCreateAdapter_OllamaUnreachable(t *testing.T) {
	s := settings.NewSettings()
	s.OllamaHost = "http://localhost:1"

	f, calls := newFactory(errors.New("connection refused"))
	_, err := f.CreateAdapter(context.Background(), s)

	var cfgErr *engine.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, *calls)
	assert.Contains(t, cfgErr.Message, "connection refused")
}
