package tools

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/shepherd/pkg/conversation"
)

// Payload is the normalized outcome of one tool execution.
type Payload struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Retries int             `json:"-"`
}

func Success(data json.RawMessage) Payload {
	return Payload{Success: true, Data: data}
}

func Failure(msg string) Payload {
	return Payload{Success: false, Error: msg}
}

// Content is what the model sees: the tool's data on success, an
// {"error": ...} object otherwise.
func (p Payload) Content() json.RawMessage {
	if !p.Success {
		b, err := json.Marshal(map[string]string{"error": p.Error})
		if err != nil {
			return json.RawMessage(`{"error":"tool execution failed"}`)
		}
		return b
	}
	if len(p.Data) == 0 {
		return json.RawMessage("{}")
	}
	return p.Data
}

// ToolResult correlates the payload with the request it answers.
func (p Payload) ToolResult(req conversation.ToolRequest) conversation.ToolResult {
	return conversation.ToolResult{
		RequestID: req.ID,
		Name:      req.Name,
		Payload:   p.Content(),
		IsError:   !p.Success,
	}
}

// Executor runs tool requests. Execute never fails across its boundary:
// unknown tools, invalid arguments and transport failures all come back as
// unsuccessful payloads.
type Executor interface {
	Execute(ctx context.Context, req conversation.ToolRequest) Payload
	// ExecuteAll runs all requests concurrently and waits for every one of
	// them. Results are returned in request order; onDone is called in
	// completion order, never concurrently.
	ExecuteAll(ctx context.Context, reqs []conversation.ToolRequest, onDone func(conversation.ToolRequest, Payload)) []conversation.ToolResult
}

// Invoker performs the side-effecting call bound to a tool name and returns
// the raw JSON response.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)

func (f InvokerFunc) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return f(ctx, name, args)
}
