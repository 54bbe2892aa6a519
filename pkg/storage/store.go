package storage

import (
	"context"
	"time"
)

// EventType identifies the kind of recorded repository event.
type EventType string

const (
	EventPush        EventType = "PUSH"
	EventPullRequest EventType = "PULL_REQUEST"
	EventMerge       EventType = "MERGE"
)

// EventRecord is the normalized representation of one ingested webhook.
// Records are written once and never updated.
type EventRecord struct {
	ID           string     `json:"id"`
	DeliveryID   string     `json:"delivery_id,omitempty"`
	EventType    EventType  `json:"event_type"`
	Author       string     `json:"author"`
	FromBranch   string     `json:"from_branch,omitempty"`
	ToBranch     string     `json:"to_branch"`
	Timestamp    *time.Time `json:"timestamp"`
	RawTimestamp string     `json:"raw_timestamp,omitempty"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EventWriter inserts event records.
type EventWriter interface {
	InsertEvent(ctx context.Context, record EventRecord) error
}

// EventFinder reads event records ordered by timestamp, newest first.
type EventFinder interface {
	FindRecentEvents(ctx context.Context, limit int) ([]EventRecord, error)
}

// EventStore defines the persistence interface for event records.
type EventStore interface {
	EventWriter
	EventFinder
	Close() error
}
