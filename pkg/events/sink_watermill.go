package events

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

const (
	// TopicChat receives a copy of every stream event of every run.
	TopicChat = "chat"

	MetadataRunID     = "run_id"
	MetadataIteration = "iteration"
	MetadataEventType = "event_type"
	MetadataToolID    = "tool_id"
)

// WatermillSink publishes events to a watermill Publisher.
// The message payload is the client payload of the event; run metadata
// travels in the message metadata.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := event.Payload()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	meta := event.Metadata()
	msg.Metadata.Set(MetadataRunID, meta.RunID)
	msg.Metadata.Set(MetadataIteration, strconv.Itoa(meta.Iteration))
	msg.Metadata.Set(MetadataEventType, string(event.Type()))
	if tc, ok := event.(*EventToolCompleted); ok {
		msg.Metadata.Set(MetadataToolID, tc.ID)
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
