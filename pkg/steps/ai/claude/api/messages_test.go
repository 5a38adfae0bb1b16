package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRequestMarshal(t *testing.T) {
	req := MessageRequest{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		System:    "You are helpful.",
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{NewTextContent("How many active members?")}},
			{Role: "assistant", Content: []ContentBlock{NewToolUseContent("toolu_1", "search_members", nil)}},
			{Role: "user", Content: []ContentBlock{NewToolResultContent("toolu_1", `{"count":142}`, false)}},
		},
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model":"claude-sonnet-4-20250514",
		"max_tokens":4096,
		"stream":false,
		"system":"You are helpful.",
		"messages":[
			{"role":"user","content":[{"type":"text","text":"How many active members?"}]},
			{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"search_members","input":{}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"{\"count\":142}"}]}
		]
	}`, string(b))
}

func TestEventStream(t *testing.T) {
	body := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","message":{"id":"msg_1","role":"assistant","content":[],"model":"claude"}}`,
		"",
		": keep-alive comment",
		"",
		"event: ping",
		`data: {"type":"ping"}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"sta"}}`,
		"",
		`data: {"type":"message_stop"}`,
	}, "\n")

	s := NewEventStream(io.NopCloser(strings.NewReader(body)))
	var types []StreamingEventType
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
		if ev.Type == ContentBlockDeltaType {
			assert.Equal(t, 1, ev.Index)
			assert.Equal(t, `{"sta`, ev.Delta.PartialJSON)
		}
	}
	assert.Equal(t, []StreamingEventType{MessageStartType, PingType, ContentBlockDeltaType, MessageStopType}, types)
}

func TestEventStream_ParseError(t *testing.T) {
	s := NewEventStream(io.NopCloser(strings.NewReader("data: {nope\n\n")))
	_, err := s.Recv()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "{nope", pe.Data)
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, defaultAPIVersion, r.Header.Get("anthropic-version"))

		var req MessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"Checking. "},{"type":"tool_use","id":"toolu_1","name":"search_members","input":{"status":"ACTIVE"}}],
			"stop_reason":"tool_use","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL+"/", srv.Client())
	resp, err := c.SendMessage(context.Background(), &MessageRequest{Model: "claude", MaxTokens: 10, Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "Checking. ", resp.FullText())
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.JSONEq(t, `{"status":"ACTIVE"}`, string(uses[0].Input))
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestClient_APIError(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		errType string
		message string
	}{
		{"rate limit", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`, "rate_limit_error", "Number of requests has exceeded your rate limit"},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "overloaded_error", "Overloaded"},
		{"plain text", 502, `bad gateway`, "", "bad gateway"},
		{"empty", 500, ``, "", "Internal Server Error"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient("sk-test", srv.URL, nil)
			_, err := c.StreamMessage(context.Background(), &MessageRequest{Model: "claude"})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.errType, apiErr.Type)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}
