package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type StreamingEventType string

const (
	PingType              StreamingEventType = "ping"
	MessageStartType      StreamingEventType = "message_start"
	ContentBlockStartType StreamingEventType = "content_block_start"
	ContentBlockDeltaType StreamingEventType = "content_block_delta"
	ContentBlockStopType  StreamingEventType = "content_block_stop"
	MessageDeltaType      StreamingEventType = "message_delta"
	MessageStopType       StreamingEventType = "message_stop"
	ErrorType             StreamingEventType = "error"
)

type StreamingDeltaType string

const (
	TextDeltaType      StreamingDeltaType = "text_delta"
	InputJSONDeltaType StreamingDeltaType = "input_json_delta"
)

type StreamingEvent struct {
	Type         StreamingEventType `json:"type"`
	Message      *MessageResponse   `json:"message,omitempty"`
	Delta        *Delta             `json:"delta,omitempty"`
	Error        *Error             `json:"error,omitempty"`
	Index        int                `json:"index"`
	Usage        *Usage             `json:"usage,omitempty"`
	ContentBlock *ContentBlock      `json:"content_block,omitempty"`
}

func (s StreamingEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(s.Type))
	e.Int("index", s.Index)
	if s.Delta != nil {
		e.Object("delta", s.Delta)
	}
	if s.Error != nil {
		e.Object("error", s.Error)
	}
	if s.ContentBlock != nil {
		e.Str("content_block_type", string(s.ContentBlock.Type))
		if s.ContentBlock.Name != "" {
			e.Str("content_block_name", s.ContentBlock.Name)
		}
	}
}

var _ zerolog.LogObjectMarshaler = StreamingEvent{}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (err Error) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", err.Type)
	e.Str("message", err.Message)
}

type Delta struct {
	Type         StreamingDeltaType `json:"type"`
	Text         string             `json:"text,omitempty"`
	PartialJSON  string             `json:"partial_json,omitempty"`
	StopReason   string             `json:"stop_reason,omitempty"`
	StopSequence string             `json:"stop_sequence,omitempty"`
}

func (d Delta) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(d.Type))
	if d.Text != "" {
		e.Int("text_len", len(d.Text))
	}
	if d.PartialJSON != "" {
		e.Int("partial_json_len", len(d.PartialJSON))
	}
	if d.StopReason != "" {
		e.Str("stop_reason", d.StopReason)
	}
}

// ParseError is returned for events whose data is not valid JSON.
type ParseError struct {
	Data string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse streaming event %q: %v", e.Data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EventStream reads server-sent events of a streaming Messages API answer.
type EventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	count  int
}

// NewEventStream wraps an SSE body.
func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, reader: bufio.NewReader(body)}
}

// Recv returns the next event, or io.EOF at the end of the body. Events
// without data lines are skipped.
func (s *EventStream) Recv() (StreamingEvent, error) {
	var eventLines [][]byte
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return StreamingEvent{}, err
		}
		eof := err == io.EOF

		if len(bytes.TrimSpace(line)) > 0 {
			// Accumulate the lines for the current event
			eventLines = append(eventLines, line)
		}
		if (len(bytes.TrimSpace(line)) == 0 || eof) && len(eventLines) > 0 {
			var event StreamingEvent
			ok, parseErr := parseSSEEvent(eventLines, &event)
			eventLines = eventLines[:0]
			if parseErr != nil {
				return StreamingEvent{}, parseErr
			}
			if ok {
				s.count++
				log.Trace().Int("event_number", s.count).Object("event", event).Msg("claude: parsed streaming event")
				return event, nil
			}
		}
		if eof {
			log.Debug().Int("total_events_processed", s.count).Msg("claude: streaming reader finished")
			return StreamingEvent{}, io.EOF
		}
	}
}

func (s *EventStream) Close() error {
	return s.body.Close()
}

// parseSSEEvent parses an SSE event from multiple lines. It reports false
// for events without data.
func parseSSEEvent(lines [][]byte, event *StreamingEvent) (bool, error) {
	var data [][]byte
	for _, line := range lines {
		line = bytes.TrimRight(line, "\r\n")
		field, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		if string(field) == "data" {
			data = append(data, bytes.TrimPrefix(value, []byte(" ")))
		}
	}
	if len(data) == 0 {
		return false, nil
	}

	eventData := bytes.Join(data, []byte("\n"))
	if err := json.Unmarshal(eventData, event); err != nil {
		return false, &ParseError{Data: string(eventData), Err: err}
	}
	return true, nil
}
