package worker

import (
	"encoding/json"

	"gitevents/pkg/storage"
)

// Event is a recorded event delivered to a worker.
type Event struct {
	// Provider is the webhook source, e.g. "github".
	Provider string `json:"provider"`
	// Type is the recorded event type (PUSH, PULL_REQUEST or MERGE).
	Type storage.EventType `json:"type"`
	// Topic is the topic the message was received on.
	Topic string `json:"topic"`
	// Metadata contains message-broker metadata such as request_id and delivery_id.
	Metadata map[string]string `json:"metadata"`
	// Record is the decoded event record.
	Record storage.EventRecord `json:"record"`
	// Payload is the raw message payload.
	Payload json.RawMessage `json:"payload"`
}
