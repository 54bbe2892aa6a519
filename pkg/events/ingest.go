package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gitevents/pkg/storage"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-playground/webhooks/v6/github"
	"github.com/google/uuid"
)

// Delivery is one inbound webhook notification.
type Delivery struct {
	// Kind is the event name taken from the X-GitHub-Event header.
	Kind string
	// ID is the delivery id, if the sender supplied one.
	ID      string
	Payload []byte
}

// Ingestor normalizes push and pull request deliveries into event records.
type Ingestor struct {
	store storage.EventWriter
	now   func() time.Time
	newID func() string
}

// NewIngestor creates an Ingestor writing to store.
func NewIngestor(store storage.EventWriter) *Ingestor {
	return &Ingestor{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Ingest validates the delivery payload and records at most one event.
// Untracked kinds and pull request actions return a nil record and no error.
func (i *Ingestor) Ingest(ctx context.Context, d Delivery) (*storage.EventRecord, error) {
	doc, err := decodePayload(d.Payload)
	if err != nil {
		return nil, err
	}

	var record *storage.EventRecord
	switch github.Event(d.Kind) {
	case github.PushEvent:
		record, err = pushRecord(doc)
	case github.PullRequestEvent:
		record, err = pullRequestRecord(doc)
	default:
		return nil, nil
	}
	if err != nil || record == nil {
		return nil, err
	}

	record.ID = i.newID()
	record.DeliveryID = d.ID
	record.CreatedAt = i.now()
	if err := i.store.InsertEvent(ctx, *record); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return record, nil
}

func decodePayload(payload []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrInvalidPayload
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(doc) == 0 {
		return nil, ErrInvalidPayload
	}
	return doc, nil
}

func pushRecord(doc map[string]interface{}) (*storage.EventRecord, error) {
	author := stringAt(doc, "$.pusher.name", "Unknown")
	toBranch := "unknown"
	if ref := stringAt(doc, "$.ref", ""); ref != "" {
		toBranch = ref[strings.LastIndex(ref, "/")+1:]
	}
	raw := stringAt(doc, "$.head_commit.timestamp", "")
	parsed, err := ParseTime(raw)
	if err != nil {
		return nil, err
	}

	return &storage.EventRecord{
		EventType:    storage.EventPush,
		Author:       author,
		ToBranch:     toBranch,
		Timestamp:    utc(parsed),
		RawTimestamp: raw,
		Message:      fmt.Sprintf("%s pushed to \"%s\" on %s", author, toBranch, formatParsed(parsed)),
	}, nil
}

func pullRequestRecord(doc map[string]interface{}) (*storage.EventRecord, error) {
	action := stringAt(doc, "$.action", "")
	merged, _ := lookup(doc, "$.pull_request.merged")

	var (
		eventType storage.EventType
		timeField string
		verb      string
	)
	switch {
	case action == "opened":
		eventType, timeField = storage.EventPullRequest, "created_at"
		verb = "submitted a pull request from"
	case action == "closed" && merged == true:
		eventType, timeField = storage.EventMerge, "merged_at"
		verb = "merged branch"
	default:
		return nil, nil
	}

	fields := make(map[string]string, 4)
	for _, field := range []string{"user.login", "head.ref", "base.ref", timeField} {
		value, ok := requiredString(doc, "$.pull_request."+field)
		if !ok {
			return nil, fmt.Errorf("%w: pull_request.%s is missing", ErrMalformedPullRequest, field)
		}
		fields[field] = value
	}
	parsed, err := ParseTime(fields[timeField])
	if err != nil {
		return nil, err
	}

	author, from, to := fields["user.login"], fields["head.ref"], fields["base.ref"]
	return &storage.EventRecord{
		EventType:  eventType,
		Author:     author,
		FromBranch: from,
		ToBranch:   to,
		Timestamp:  utc(parsed),
		Message:    fmt.Sprintf("%s %s \"%s\" to \"%s\" on %s", author, verb, from, to, formatParsed(parsed)),
	}, nil
}

func lookup(doc interface{}, path string) (interface{}, bool) {
	value, err := jsonpath.Get(path, doc)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// stringAt returns the string at path, or fallback when it is absent, null or not a string.
func stringAt(doc interface{}, path, fallback string) string {
	value, ok := lookup(doc, path)
	if !ok {
		return fallback
	}
	s, ok := value.(string)
	if !ok {
		return fallback
	}
	return s
}

func requiredString(doc interface{}, path string) (string, bool) {
	value, ok := lookup(doc, path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
