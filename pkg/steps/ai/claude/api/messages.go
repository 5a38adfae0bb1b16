package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	maxErrorBodyBytes = 1 << 20
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// MessageRequest represents the Messages API request payload.
type MessageRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Tools         []Tool    `json:"tools,omitempty"`
}

// Tool represents a tool that the model can use.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one block of a message. Which fields are set depends on
// Type.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

func NewToolUseContent(id, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return ContentBlock{Type: ContentTypeToolUse, ID: id, Name: name, Input: input}
}

func NewToolResultContent(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentTypeToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// MessageResponse represents the Messages API response payload.
type MessageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// FullText concatenates the text blocks of the response.
func (m *MessageResponse) FullText() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the response in order.
func (m *MessageResponse) ToolUses() []ContentBlock {
	if m == nil {
		return nil
	}
	var ret []ContentBlock
	for _, c := range m.Content {
		if c.Type == ContentTypeToolUse {
			ret = append(ret, c)
		}
	}
	return ret
}

// Usage represents the billing and rate-limit usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error Error  `json:"error"`
}

// APIError is a non-200 answer of the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("claude api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("claude api error %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// Client represents the Claude API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
}

// NewClient initializes and returns a new API client. An empty baseURL
// selects the public endpoint.
func NewClient(apiKey string, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIVersion: defaultAPIVersion,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) post(ctx context.Context, req *MessageRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal message request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var errorResp ErrorResponse
	if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
		apiErr.Type = errorResp.Error.Type
		apiErr.Message = errorResp.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(respBody))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// SendMessage sends a message request and returns the response.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	r := *req
	r.Stream = false
	resp, err := c.post(ctx, &r)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	var messageResp MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&messageResp); err != nil {
		return nil, errors.Wrap(err, "could not decode message response")
	}
	return &messageResp, nil
}

// StreamMessage sends a streaming message request. The caller must close
// the returned stream.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (*EventStream, error) {
	r := *req
	r.Stream = true
	resp, err := c.post(ctx, &r)
	if err != nil {
		return nil, err
	}
	return &EventStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}
