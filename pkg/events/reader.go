package events

import (
	"context"
	"fmt"

	"gitevents/pkg/storage"
)

// RecentLimit is the number of events returned by Reader.Recent.
const RecentLimit = 10

// Message is the display projection of an event record.
type Message struct {
	Message string `json:"message"`
}

// Reader serves the most recent event messages.
type Reader struct {
	store storage.EventFinder
}

func NewReader(store storage.EventFinder) *Reader {
	return &Reader{store: store}
}

// Recent returns up to RecentLimit messages, newest first.
func (r *Reader) Recent(ctx context.Context) ([]Message, error) {
	records, err := r.store.FindRecentEvents(ctx, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("find recent events: %w", err)
	}
	if len(records) > RecentLimit {
		records = records[:RecentLimit]
	}
	out := make([]Message, 0, len(records))
	for _, record := range records {
		out = append(out, Message{Message: record.Message})
	}
	return out, nil
}
