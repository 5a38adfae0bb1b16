package settings

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.Set("claude-api-key", " sk-ant ")
	v.Set("openai-base-url", "http://proxy.local/v1")
	v.Set("max-tokens", 1024)
	v.Set("temperature", 0.2)
	v.Set("ollama-host", "http://127.0.0.1:11434")
	v.Set("client-timeout", "30s")
	v.Set("context-token-budget", 100000)

	s := FromViper(v)
	assert.Equal(t, "sk-ant", s.APIKey(ProviderClaude))
	assert.Equal(t, "", s.APIKey(ProviderOpenAI))
	assert.Equal(t, "http://proxy.local/v1", s.BaseURL(ProviderOpenAI))
	assert.Equal(t, 1024, s.MaxTokens)
	require.NotNil(t, s.Temperature)
	assert.InDelta(t, 0.2, *s.Temperature, 1e-9)
	assert.Equal(t, "http://127.0.0.1:11434", s.OllamaHost)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, 100000, s.TokenBudget)
}

func TestDefaults(t *testing.T) {
	s := FromViper(viper.New())
	assert.Equal(t, DefaultMaxTokens, s.MaxTokens)
	assert.Nil(t, s.Temperature)
	assert.Equal(t, "claude-sonnet-4-20250514", s.ModelFor(ProviderClaude))
	assert.Equal(t, "gpt-4o", s.ModelFor(ProviderOpenAI))

	s.Model = "gpt-4o-mini"
	assert.Equal(t, "gpt-4o-mini", s.ModelFor(ProviderOpenAI))
	client := s.Client()
	assert.Zero(t, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultClientTimeout, transport.ResponseHeaderTimeout)
}

func TestClient_StreamOutlivesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for i := 0; i < 5; i++ {
			time.Sleep(50 * time.Millisecond)
			_, _ = fmt.Fprintf(w, "data: %d\n\n", i)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	s := NewSettings()
	s.Timeout = 100 * time.Millisecond

	resp, err := s.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(body), "data: "))
}

func TestClient_SlowHeadersTimeOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := NewSettings()
	s.Timeout = 50 * time.Millisecond

	_, err := s.Client().Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout awaiting response headers")
}

func TestClone(t *testing.T) {
	s := NewSettings()
	s.APIKeys[APIKeyName(ProviderOpenAI)] = "sk-1"
	c := s.Clone()
	c.APIKeys[APIKeyName(ProviderOpenAI)] = "sk-2"
	assert.Equal(t, "sk-1", s.APIKey(ProviderOpenAI))
}
