package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

func TestCompatibleBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:11434/v1", CompatibleBaseURL("127.0.0.1:11434"))
	assert.Equal(t, "https://ollama.internal/v1", CompatibleBaseURL("https://ollama.internal/"))
}

func TestHasModel(t *testing.T) {
	models := []string{"llama3.1:latest", "mistral:7b"}
	assert.True(t, HasModel(models, "llama3.1"))
	assert.True(t, HasModel(models, "mistral:7b"))
	assert.False(t, HasModel(models, "mistral"))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:latest"}, models)
}

func TestListModels_LeavesEnvironmentAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b"}]}`))
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_HOST", "http://127.0.0.1:1")
	models, err := ListModels(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"mistral:7b"}, models)
	assert.Equal(t, "http://127.0.0.1:1", os.Getenv("OLLAMA_HOST"))
}

func TestListModels_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model store is locked"}`))
	}))
	defer srv.Close()

	_, err := ListModels(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model store is locked")
}

func TestListModels_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	_, err := ListModels(context.Background(), host)
	assert.Error(t, err)
}

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(settings.NewSettings())
	var cfgErr *engine.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req["model"])
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hello\"},\"finish_reason\":\"stop\"}]}\n\ndata: [DONE]\n\n"))
	}))
	defer srv.Close()

	s := settings.NewSettings()
	s.OllamaHost = srv.URL
	a, err := NewAdapter(s)
	require.NoError(t, err)
	assert.Equal(t, "ollama", a.Name())

	stream, err := a.StreamCompletion(context.Background(), engine.Request{
		Conversation: conversation.Conversation{conversation.NewUserTurn("hi")},
	})
	require.NoError(t, err)
	c, err := engine.Drain(context.Background(), stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", c.Text)
	assert.Equal(t, conversation.RoleTool, a.FormatToolResults(nil).Role)
}
