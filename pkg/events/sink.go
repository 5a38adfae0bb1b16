package events

// EventSink represents a destination for stream events: a client
// connection, a message bus, a test recorder.
type EventSink interface {
	// PublishEvent returns an error if the event could not be delivered.
	PublishEvent(event Event) error
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(event Event) error

func (f SinkFunc) PublishEvent(event Event) error {
	return f(event)
}
