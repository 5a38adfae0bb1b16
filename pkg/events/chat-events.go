package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeText carries an incremental fragment of assistant text.
	EventTypeText EventType = "text"
	// EventTypeToolStart announces the tool requests of one assistant turn.
	EventTypeToolStart EventType = "tool_start"
	// EventTypeToolComplete is emitted once per finished tool request, in completion order.
	EventTypeToolComplete EventType = "tool_complete"
	EventTypeDone         EventType = "done"
	EventTypeError        EventType = "error"
)

// Event is one unit of the outward streaming protocol.
// Payload returns the exact JSON object written to clients.
type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() ([]byte, error)
}

// EventMetadata is carried alongside an event but never serialized into the
// client payload. Sinks that forward events to other systems (watermill)
// expose it as message metadata.
type EventMetadata struct {
	RunID     string `json:"-" yaml:"run_id"`
	Iteration int    `json:"-" yaml:"iteration"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", em.RunID)
	e.Int("iteration", em.Iteration)
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"-"`
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

// SetMetadata replaces the metadata of an event, used by the loop to stamp
// run information on events produced by adapters.
func (e *EventImpl) SetMetadata(metadata EventMetadata) {
	e.Metadata_ = metadata
}

type EventText struct {
	EventImpl
	Content string `json:"content"`
}

func NewTextEvent(metadata EventMetadata, content string) *EventText {
	return &EventText{
		EventImpl: EventImpl{Type_: EventTypeText, Metadata_: metadata},
		Content:   content,
	}
}

func (e *EventText) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e *EventText) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Int("content_length", len(e.Content))
}

var _ Event = &EventText{}

// ToolRef identifies a pending tool request in a tool_start event.
type ToolRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type EventToolsStarted struct {
	EventImpl
	Tools []ToolRef `json:"tools"`
}

func NewToolsStartedEvent(metadata EventMetadata, tools []ToolRef) *EventToolsStarted {
	if tools == nil {
		tools = []ToolRef{}
	}
	return &EventToolsStarted{
		EventImpl: EventImpl{Type_: EventTypeToolStart, Metadata_: metadata},
		Tools:     tools,
	}
}

func (e *EventToolsStarted) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e *EventToolsStarted) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Int("tool_count", len(e.Tools))
}

var _ Event = &EventToolsStarted{}

type EventToolCompleted struct {
	EventImpl
	Name    string `json:"name"`
	Success bool   `json:"success"`
	// ID is the request id of the completed tool call. It is not part of the
	// client payload.
	ID string `json:"-"`
}

func NewToolCompletedEvent(metadata EventMetadata, id string, name string, success bool) *EventToolCompleted {
	return &EventToolCompleted{
		EventImpl: EventImpl{Type_: EventTypeToolComplete, Metadata_: metadata},
		Name:      name,
		Success:   success,
		ID:        id,
	}
}

func (e *EventToolCompleted) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e *EventToolCompleted) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("name", e.Name).Str("id", e.ID).Bool("success", e.Success)
}

var _ Event = &EventToolCompleted{}

type EventDone struct {
	EventImpl
}

func NewDoneEvent(metadata EventMetadata) *EventDone {
	return &EventDone{
		EventImpl: EventImpl{Type_: EventTypeDone, Metadata_: metadata},
	}
}

func (e *EventDone) Payload() ([]byte, error) {
	return json.Marshal(e)
}

var _ Event = &EventDone{}

type EventError struct {
	EventImpl
	Message string `json:"message"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{Type_: EventTypeError, Metadata_: metadata},
		Message:   err.Error(),
	}
}

func (e *EventError) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e *EventError) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("message", e.Message)
}

var _ Event = &EventError{}

// NewEventFromJson decodes a client payload back into a typed event.
// Metadata is not part of the payload and is left empty.
func NewEventFromJson(b []byte) (Event, error) {
	var e EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}

	var ret Event
	switch e.Type_ {
	case EventTypeText:
		ret = &EventText{}
	case EventTypeToolStart:
		ret = &EventToolsStarted{}
	case EventTypeToolComplete:
		ret = &EventToolCompleted{}
	case EventTypeDone:
		ret = &EventDone{}
	case EventTypeError:
		ret = &EventError{}
	default:
		return nil, errors.Errorf("unknown event type: %q", e.Type_)
	}

	if err := json.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s event", e.Type_)
	}
	return ret, nil
}
