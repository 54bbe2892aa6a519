package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"gitevents/pkg/storage"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ErrMissingEventType is returned when a message carries no event type.
var ErrMissingEventType = errors.New("message has no event type")

// Codec is an interface for decoding messages from a message broker into an Event.
type Codec interface {
	// Decode transforms a Watermill message into an Event.
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DefaultCodec decodes the JSON event record published by the receiver.
type DefaultCodec struct{}

// Decode unmarshals a Watermill message into an Event.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	var record storage.EventRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		return nil, fmt.Errorf("decode event record: %w", err)
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	eventType := record.EventType
	if eventType == "" {
		eventType = storage.EventType(msg.Metadata.Get("event_type"))
		record.EventType = eventType
	}
	if eventType == "" {
		return nil, ErrMissingEventType
	}

	return &Event{
		Provider: msg.Metadata.Get("provider"),
		Type:     eventType,
		Topic:    topic,
		Metadata: metadata,
		Record:   record,
		Payload:  json.RawMessage(msg.Payload),
	}, nil
}
