package conversation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Message is the wire shape of one client supplied message. Content is
// either a string or an array of content blocks. OpenAI style transcripts
// use ToolCalls on assistant messages and ToolCallID on tool messages.
type Message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ErrEmptyConversation is returned when a client sends no messages.
var ErrEmptyConversation = errors.New("messages must be a non-empty array")

// DecodeMessages parses a client transcript into a Conversation and checks
// that it can be replayed to a backend.
func DecodeMessages(raw json.RawMessage) (Conversation, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrEmptyConversation
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errors.Wrap(err, "messages must be an array of {role, content}")
	}
	return FromMessages(msgs)
}

func FromMessages(msgs []Message) (Conversation, error) {
	if len(msgs) == 0 {
		return nil, ErrEmptyConversation
	}

	ret := Conversation{}
	for i, m := range msgs {
		turn, err := m.toTurn()
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		// consecutive tool messages form a single results turn
		if turn.Role == RoleTool {
			if last, ok := ret.Last(); ok && last.Role == RoleTool {
				ret[len(ret)-1].ToolResults = append(ret[len(ret)-1].ToolResults, turn.ToolResults...)
				continue
			}
		}
		ret = append(ret, turn)
	}

	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (m Message) toTurn() (Turn, error) {
	switch Role(m.Role) {
	case RoleUser, RoleAssistant:
	case RoleTool:
		if m.ToolCallID == "" {
			return Turn{}, errors.New("tool message without tool_call_id")
		}
		return NewToolResultsTurn(RoleTool, []ToolResult{{
			RequestID: m.ToolCallID,
			Payload:   payloadFromContent(m.Content),
		}}), nil
	default:
		return Turn{}, errors.Errorf("unsupported role %q", m.Role)
	}

	turn := Turn{Role: Role(m.Role)}
	for _, tc := range m.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if strings.TrimSpace(tc.Function.Arguments) == "" {
			args = json.RawMessage("{}")
		}
		turn.ToolRequests = append(turn.ToolRequests, ToolRequest{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	content := bytes.TrimSpace(m.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return turn, nil
	}

	if content[0] == '"' {
		if err := json.Unmarshal(content, &turn.Text); err != nil {
			return Turn{}, errors.Wrap(err, "invalid content string")
		}
		return turn, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return Turn{}, errors.Wrap(err, "content must be a string or an array of blocks")
	}
	var text strings.Builder
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
			if turn.Role == RoleAssistant && b.Text != "" {
				turn.Segments = append(turn.Segments, Segment{Text: b.Text})
			}
		case "tool_use":
			if turn.Role != RoleAssistant {
				return Turn{}, errors.New("tool_use block outside an assistant message")
			}
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			req := ToolRequest{ID: b.ID, Name: b.Name, Arguments: input}
			turn.ToolRequests = append(turn.ToolRequests, req)
			turn.Segments = append(turn.Segments, Segment{ToolRequest: &req})
		case "tool_result":
			if turn.Role != RoleUser {
				return Turn{}, errors.New("tool_result block outside a user message")
			}
			turn.ToolResults = append(turn.ToolResults, ToolResult{
				RequestID: b.ToolUseID,
				Payload:   payloadFromContent(b.Content),
				IsError:   b.IsError,
			})
		default:
			return Turn{}, errors.Errorf("unsupported content block %q", b.Type)
		}
	}
	turn.Text = text.String()
	// tool_calls carry no position relative to the content blocks
	if len(m.ToolCalls) > 0 {
		turn.Segments = nil
	}
	return turn, nil
}

// payloadFromContent keeps JSON payloads as they are. Tool results sent back
// by clients are usually JSON encoded into a string; those are unwrapped
// when the string itself holds JSON.
func payloadFromContent(content json.RawMessage) json.RawMessage {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return json.RawMessage("null")
	}
	if content[0] != '"' {
		return content
	}
	var s string
	if err := json.Unmarshal(content, &s); err != nil {
		return content
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return content
}

// Validate checks that every assistant tool request is answered by the turn
// immediately following it, and that results only answer such requests.
func (c Conversation) Validate() error {
	for i, t := range c {
		if t.HasToolResults() {
			if i == 0 || !c[i-1].HasToolRequests() {
				return errors.Errorf("turn %d: tool results without preceding tool requests", i)
			}
		}
		if !t.HasToolRequests() {
			continue
		}
		if i == len(c)-1 {
			return errors.Errorf("turn %d: tool requests are not answered", i)
		}
		answered := map[string]int{}
		for _, r := range c[i+1].ToolResults {
			answered[r.RequestID]++
		}
		for _, r := range t.ToolRequests {
			if r.ID == "" {
				return errors.Errorf("turn %d: tool request %q without id", i, r.Name)
			}
			if answered[r.ID] != 1 {
				return errors.Errorf("turn %d: tool request %s must have exactly one result", i, r.ID)
			}
		}
		if len(c[i+1].ToolResults) != len(t.ToolRequests) {
			return errors.Errorf("turn %d: %d results for %d tool requests", i+1, len(c[i+1].ToolResults), len(t.ToolRequests))
		}
	}
	return nil
}
