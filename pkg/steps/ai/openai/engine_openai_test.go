package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

type searchArgs struct {
	Status string `json:"status,omitempty"`
}

func writeChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := settings.NewSettings()
	s.APIKeys[settings.APIKeyName(settings.ProviderOpenAI)] = "sk-test"
	s.BaseURLs[settings.BaseURLName(settings.ProviderOpenAI)] = srv.URL + "/v1"
	s.HTTPClient = srv.Client()
	a, err := NewAdapter(s)
	require.NoError(t, err)
	return a
}

func testRequest() engine.Request {
	return engine.Request{
		Conversation: conversation.Conversation{conversation.NewUserTurn("How many active members do we have?")},
		SystemPrompt: "You are the church assistant.",
		Tools: []tools.ToolDefinition{
			tools.MustNewToolDefinition[searchArgs]("search_members", "Search church members"),
		},
	}
}

func TestNewAdapter_MissingKey(t *testing.T) {
	_, err := NewAdapter(settings.NewSettings())
	var cfgErr *engine.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Checked, "openai-api-key")
}

func TestAdapter_StreamText(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req go_openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, 4096, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
		}
		assert.Len(t, req.Tools, 1)

		writeChunks(w,
			`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"You have "}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"142 members."}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`{"id":"c1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`,
		)
	})

	s, err := a.StreamCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	var deltas []string
	c, err := engine.Drain(context.Background(), s, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"You have ", "142 members."}, deltas)
	assert.Equal(t, "You have 142 members.", c.Text)
	assert.Equal(t, engine.StopReasonDone, c.StopReason)
	assert.Empty(t, c.ToolRequests)
}

func TestAdapter_StreamToolCalls(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w,
			`{"choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search_members","arguments":""}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"status\":"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"get_member_statistics","arguments":""}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"ACTIVE\"}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		)
	})

	s, err := a.StreamCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	c, err := engine.Drain(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, engine.StopReasonContinue, c.StopReason)
	require.Len(t, c.ToolRequests, 2)
	assert.Equal(t, "call_1", c.ToolRequests[0].ID)
	assert.JSONEq(t, `{"status":"ACTIVE"}`, string(c.ToolRequests[0].Arguments))
	assert.Equal(t, "get_member_statistics", c.ToolRequests[1].Name)
	assert.Equal(t, "{}", string(c.ToolRequests[1].Arguments))
}

func TestAdapter_StreamWithoutFinishReason(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, `{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`)
	})
	s, err := a.StreamCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = engine.Drain(context.Background(), s, nil)
	assert.True(t, engine.IsKind(err, engine.ErrorKindMalformed), "got %v", err)
}

func TestAdapter_StreamMalformedChunk(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, `{"choices":[{"index":0,`)
	})
	s, err := a.StreamCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = engine.Drain(context.Background(), s, nil)
	assert.True(t, engine.IsKind(err, engine.ErrorKindMalformed), "got %v", err)
}

func TestAdapter_HTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		kind   engine.ErrorKind
	}{
		{429, engine.ErrorKindRateLimited},
		{400, engine.ErrorKindAPI},
		{503, engine.ErrorKindUnreachable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
			})
			_, err := a.StreamCompletion(context.Background(), testRequest())
			var ae *engine.AdapterError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.kind, ae.Kind)
			assert.Equal(t, tc.status, ae.StatusCode)
			assert.Equal(t, "openai", ae.Provider)
		})
	}
}

func TestAdapter_RequestCompletion(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var req go_openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,
			"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_members","arguments":"{\"status\":\"ACTIVE\"}"}}]},
			"finish_reason":"tool_calls"}]}`))
	})
	c, err := a.RequestCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, c.ToolRequests, 1)
	assert.Equal(t, "search_members", c.ToolRequests[0].Name)
	assert.Equal(t, engine.StopReasonContinue, c.StopReason)
}

func TestAdapter_TooManyTools(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	req := testRequest()
	req.Tools = nil
	for i := 0; i < tools.OpenAILimits.MaxToolsPerRequest+1; i++ {
		req.Tools = append(req.Tools, tools.MustNewToolDefinition[searchArgs](fmt.Sprintf("tool_%d", i), "x"))
	}
	_, err := a.StreamCompletion(context.Background(), req)
	assert.True(t, engine.IsKind(err, engine.ErrorKindLimitExceeded), "got %v", err)
}

func TestAdapter_FormatToolResults(t *testing.T) {
	a := &Adapter{name: Name}
	results := []conversation.ToolResult{{RequestID: "call_1", Payload: json.RawMessage(`{}`)}}
	turn := a.FormatToolResults(results)
	assert.Equal(t, conversation.RoleTool, turn.Role)
	assert.Equal(t, turn, a.FormatToolResults(results))
}
