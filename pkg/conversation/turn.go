package conversation

import (
	"encoding/json"

	"github.com/huandu/go-clone"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool is used by backends that carry tool results in their own
	// message role instead of inside a user turn.
	RoleTool Role = "tool"
)

// ToolRequest is a tool invocation requested by the model. ID is opaque and
// must be echoed back in the matching ToolResult.
type ToolRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers one ToolRequest. Payload is a JSON value: either the
// tool's data or an error descriptor.
type ToolResult struct {
	RequestID string          `json:"request_id"`
	Name      string          `json:"name,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Segment is one text block or tool request of an assistant turn.
type Segment struct {
	Text        string       `json:"text,omitempty"`
	ToolRequest *ToolRequest `json:"tool_request,omitempty"`
}

// Turn is one message-equivalent unit of a conversation. Assistant turns may
// carry text and tool requests; user (or tool) turns carry text, tool results
// or both.
//
// Segments, when set, hold the blocks of an assistant turn in the order the
// model produced them. Text and ToolRequests are always the complete view.
type Turn struct {
	Role         Role          `json:"role"`
	Text         string        `json:"text,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
	ToolResults  []ToolResult  `json:"tool_results,omitempty"`
	Segments     []Segment     `json:"segments,omitempty"`
}

func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func NewAssistantTurn(text string, requests []ToolRequest) Turn {
	return Turn{Role: RoleAssistant, Text: text, ToolRequests: requests}
}

// NewToolResultsTurn builds the turn answering tool requests. role is
// RoleUser or RoleTool depending on the backend.
func NewToolResultsTurn(role Role, results []ToolResult) Turn {
	return Turn{Role: role, ToolResults: results}
}

func (t Turn) HasToolResults() bool {
	return len(t.ToolResults) > 0
}

func (t Turn) HasToolRequests() bool {
	return len(t.ToolRequests) > 0
}

// Conversation is the ordered transcript resent to the backend on every
// iteration. Within a run it is append-only.
type Conversation []Turn

// Clone returns a deep copy. Runs clone the client supplied conversation so
// that appending never aliases the caller's slices.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	return clone.Clone(c).(Conversation)
}

// Append returns a new conversation with the turns appended. The receiver is
// left untouched.
func (c Conversation) Append(turns ...Turn) Conversation {
	ret := make(Conversation, 0, len(c)+len(turns))
	ret = append(ret, c...)
	return append(ret, turns...)
}

func (c Conversation) Last() (Turn, bool) {
	if len(c) == 0 {
		return Turn{}, false
	}
	return c[len(c)-1], true
}
