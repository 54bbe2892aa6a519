package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// riverQueuePublisher enqueues recorded events as jobs in a RiverQueue jobs table.
type riverQueuePublisher struct {
	db  *sql.DB
	cfg RiverQueueConfig
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueuePublisher{db: db, cfg: cfg}, nil
}

// Publish inserts one job whose args are the event record.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, event Event) error {
	query, args, err := riverJobInsert(p.cfg, topic, event)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return err
}

func riverJobInsert(cfg RiverQueueConfig, topic string, event Event) (string, []interface{}, error) {
	argsPayload, err := json.Marshal(event.Record)
	if err != nil {
		return "", nil, err
	}
	metadataPayload, err := json.Marshal(map[string]interface{}{
		"provider":   event.Provider,
		"name":       event.Name,
		"event_type": event.Record.EventType,
		"topic":      topic,
	})
	if err != nil {
		return "", nil, err
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "river_job"
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		pq.QuoteIdentifier(table),
	)
	priority := cfg.Priority
	if priority < 1 {
		priority = 1
	}
	tags := cfg.Tags
	if tags == nil {
		tags = []string{}
	}
	args := []interface{}{
		string(argsPayload),
		cfg.Kind,
		cfg.MaxAttempts,
		string(metadataPayload),
		priority,
		cfg.Queue,
		pq.Array(tags),
	}
	return query, args, nil
}

func (p *riverQueuePublisher) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	return p.Publish(ctx, topic, event)
}
