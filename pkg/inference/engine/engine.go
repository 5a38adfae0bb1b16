package engine

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

// StopReason tells the loop whether the assistant expects tool results.
type StopReason string

const (
	StopReasonContinue StopReason = "continue"
	StopReasonDone     StopReason = "done"
)

// Request is one model call: the transcript so far, the system prompt and
// the tools advertised to the backend.
type Request struct {
	Conversation conversation.Conversation
	SystemPrompt string
	Tools        []tools.ToolDefinition
}

// Completion is the authoritative final state of one assistant turn.
type Completion struct {
	Text         string
	ToolRequests []conversation.ToolRequest
	// Segments keeps text and tool requests in the order the backend
	// produced them. Only backends with ordered content blocks set it.
	Segments   []conversation.Segment
	StopReason StopReason
	// Raw is the backend's own representation of the assistant message,
	// kept for logging and debugging.
	Raw json.RawMessage
}

// Stream yields the text deltas of one assistant turn as they arrive.
type Stream interface {
	// Recv returns the next text delta, or io.EOF once the backend finished
	// the turn.
	Recv() (string, error)
	// Completion returns the assembled turn. It is only valid after Recv
	// returned io.EOF.
	Completion() (*Completion, error)
	Close() error
}

// Adapter normalizes one model backend. Exactly one adapter is active per
// process; it is immutable and shared by all runs.
type Adapter interface {
	Name() string

	// StreamCompletion starts a turn. The stream is not resumable; to retry
	// call StreamCompletion again.
	StreamCompletion(ctx context.Context, req Request) (Stream, error)

	// RequestCompletion performs the same turn without streaming.
	RequestCompletion(ctx context.Context, req Request) (*Completion, error)

	// FormatAssistantTurn and FormatToolResults are pure. They produce the
	// turns this backend expects when the transcript is replayed to it.
	FormatAssistantTurn(c *Completion) conversation.Turn
	FormatToolResults(results []conversation.ToolResult) conversation.Turn
}

// Drain reads s to the end, calling onDelta for every text delta, and
// returns the authoritative completion. The stream is closed on return.
func Drain(ctx context.Context, s Stream, onDelta func(string) error) (*Completion, error) {
	defer func() { _ = s.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		delta, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if delta == "" || onDelta == nil {
			continue
		}
		if err := onDelta(delta); err != nil {
			return nil, err
		}
	}
	return s.Completion()
}

// StopReasonFor derives the stop reason from the tool requests of a turn.
// A turn that requests tools always continues, whatever the backend's own
// finish reason says.
func StopReasonFor(requests []conversation.ToolRequest) StopReason {
	if len(requests) > 0 {
		return StopReasonContinue
	}
	return StopReasonDone
}

// NormalizeArguments returns args as a JSON object. Empty arguments become
// {}; invalid JSON is reported as a malformed response.
func NormalizeArguments(provider, tool, args string) (json.RawMessage, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(args)) {
		return nil, NewAdapterError(provider, ErrorKindMalformed,
			errorf("tool %s: arguments are not valid JSON: %q", tool, truncate(args, 200)))
	}
	return json.RawMessage(args), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
