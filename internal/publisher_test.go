package internal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gitevents/pkg/storage"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPublisher is a mock publisher for testing.
type stubPublisher struct {
	published    int
	failures     int
	lastTopic    string
	lastPayload  []byte
	lastMetadata message.Metadata
}

// Publish increments the published count and records the topic.
func (s *stubPublisher) Publish(topic string, msgs ...*message.Message) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.published += len(msgs)
	s.lastTopic = topic
	if len(msgs) > 0 {
		s.lastPayload = append([]byte(nil), msgs[0].Payload...)
		s.lastMetadata = msgs[0].Metadata
	}
	return nil
}

// Close is a no-op.
func (s *stubPublisher) Close() error {
	return nil
}

func registerStub(t *testing.T, name string, stub *stubPublisher, closeFn func() error) {
	t.Helper()
	orig, had := publisherFactories[name]
	t.Cleanup(func() {
		if had {
			publisherFactories[name] = orig
		} else {
			delete(publisherFactories, name)
		}
	})
	RegisterPublisherDriver(name, func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return stub, closeFn, nil
	})
}

func mergeEvent() Event {
	return Event{
		Provider:  "github",
		Name:      "pull_request",
		RequestID: "req-123",
		Record: storage.EventRecord{
			ID:         "evt-1",
			DeliveryID: "delivery-1",
			EventType:  storage.EventMerge,
			Author:     "octocat",
			FromBranch: "feature",
			ToBranch:   "main",
			Message:    `octocat merged branch "feature" to "main" on Unknown time`,
		},
	}
}

// TestRegisterPublisherDriver tests that a custom publisher driver can be registered and used.
func TestRegisterPublisherDriver(t *testing.T) {
	stub := &stubPublisher{}
	closed := false
	registerStub(t, "custom", stub, func() error { closed = true; return nil })

	pub, err := NewPublisher(WatermillConfig{Driver: "custom"})
	require.NoError(t, err)

	require.NoError(t, pub.PublishForDrivers(context.Background(), "custom.topic", mergeEvent(), nil))
	assert.Equal(t, 1, stub.published)
	assert.Equal(t, "custom.topic", stub.lastTopic)

	require.NoError(t, pub.Close())
	assert.True(t, closed, "expected custom close to be called")
}

// TestHTTPURLTarget tests that the HTTP target URL is constructed correctly.
func TestHTTPURLTarget(t *testing.T) {
	url, err := httpTargetURL(HTTPConfig{Mode: "base_url", BaseURL: "http://localhost:8080/hooks/"}, "/topic")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/hooks/topic", url)

	url, err = httpTargetURL(HTTPConfig{Mode: "topic_url"}, "http://sink/events")
	require.NoError(t, err)
	assert.Equal(t, "http://sink/events", url)

	_, err = httpTargetURL(HTTPConfig{Mode: "bogus"}, "topic")
	require.Error(t, err)
}

// TestMultipleDrivers tests that the publisher can be configured to publish to multiple drivers.
func TestMultipleDrivers(t *testing.T) {
	a := &stubPublisher{}
	b := &stubPublisher{}
	registerStub(t, "multi-a", a, nil)
	registerStub(t, "multi-b", b, nil)

	pub, err := NewPublisher(WatermillConfig{Drivers: []string{"multi-a", "multi-b"}})
	require.NoError(t, err)

	require.NoError(t, pub.PublishForDrivers(context.Background(), "multi.topic", mergeEvent(), nil))
	assert.Equal(t, 1, a.published)
	assert.Equal(t, 1, b.published)

	require.NoError(t, pub.PublishForDrivers(context.Background(), "multi.topic", mergeEvent(), []string{"multi-b"}))
	assert.Equal(t, 1, a.published)
	assert.Equal(t, 2, b.published)

	err = pub.PublishForDrivers(context.Background(), "multi.topic", mergeEvent(), []string{"missing"})
	require.Error(t, err)
}

// TestPublishEncodesRecordAndMetadata ensures the record is the payload and delivery details are metadata.
func TestPublishEncodesRecordAndMetadata(t *testing.T) {
	stub := &stubPublisher{}
	registerStub(t, "payload", stub, nil)

	pub, err := NewPublisher(WatermillConfig{Driver: "payload"})
	require.NoError(t, err)
	require.NoError(t, pub.PublishForDrivers(context.Background(), "payload.topic", mergeEvent(), nil))

	var record storage.EventRecord
	require.NoError(t, json.Unmarshal(stub.lastPayload, &record))
	assert.Equal(t, "evt-1", record.ID)
	assert.Equal(t, storage.EventMerge, record.EventType)
	assert.Equal(t, "github", stub.lastMetadata.Get("provider"))
	assert.Equal(t, "pull_request", stub.lastMetadata.Get("event"))
	assert.Equal(t, "MERGE", stub.lastMetadata.Get("event_type"))
	assert.Equal(t, "req-123", stub.lastMetadata.Get("request_id"))
	assert.Equal(t, "delivery-1", stub.lastMetadata.Get("delivery_id"))
}

// TestPublishRetries ensures transient publish failures are retried.
func TestPublishRetries(t *testing.T) {
	stub := &stubPublisher{failures: 2}
	registerStub(t, "flaky", stub, nil)

	pub, err := NewPublisher(WatermillConfig{Driver: "flaky", PublishRetry: PublishRetryConfig{Attempts: 3, DelayMS: 1}})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), "retry.topic", mergeEvent()))
	assert.Equal(t, 1, stub.published)

	stub.failures = 5
	err = pub.Publish(context.Background(), "retry.topic", mergeEvent())
	require.Error(t, err)
}

// TestRiverJobInsert checks the job row built for a recorded event.
func TestRiverJobInsert(t *testing.T) {
	cfg := RiverQueueConfig{Table: "river_job", Queue: "default", Kind: "gitevents.event", MaxAttempts: 25}
	query, args, err := riverJobInsert(cfg, "events.merged", mergeEvent())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, `INSERT INTO "river_job"`))
	require.Len(t, args, 7)
	assert.Contains(t, args[0].(string), `"event_type":"MERGE"`)
	assert.Equal(t, "gitevents.event", args[1])
	assert.Contains(t, args[3].(string), `"topic":"events.merged"`)
	assert.Equal(t, 1, args[4])
}

func TestSQLSchemaAdapter(t *testing.T) {
	_, err := sqlSchemaAdapter("postgres")
	require.NoError(t, err)
	_, err = sqlSchemaAdapter("oracle")
	require.Error(t, err)
}
