package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"gitevents/internal"
	"gitevents/pkg/events"
	"gitevents/pkg/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu        sync.Mutex
	records   []storage.EventRecord
	insertErr error
}

func (s *recordingStore) InsertEvent(_ context.Context, record storage.EventRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

type published struct {
	topic   string
	event   internal.Event
	drivers []string
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event internal.Event) error {
	return p.PublishForDrivers(ctx, topic, event, nil)
}

func (p *recordingPublisher) PublishForDrivers(_ context.Context, topic string, event internal.Event, drivers []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{topic: topic, event: event, drivers: drivers})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestHandler(t *testing.T, store *recordingStore, pub *recordingPublisher) *GitHubHandler {
	t.Helper()
	rules, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules: []internal.Rule{
			{When: `event_type == "MERGE"`, Emit: internal.EmitList{"events.merged"}, Drivers: []string{"gochannel"}},
		},
	})
	require.NoError(t, err)
	return NewGitHubHandler(events.NewIngestor(store), rules, pub, nil, 1<<10, true)
}

func deliver(handler http.Handler, kind, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/receiver", strings.NewReader(body))
	if kind != "" {
		req.Header.Set("X-GitHub-Event", kind)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func pullRequestBody(action string, merged bool, author string) string {
	payload := map[string]interface{}{
		"action": action,
		"pull_request": map[string]interface{}{
			"user":       map[string]interface{}{"login": author},
			"head":       map[string]interface{}{"ref": "feature"},
			"base":       map[string]interface{}{"ref": "main"},
			"created_at": "2024-03-01T09:00:00Z",
			"merged_at":  "2024-03-01T13:05:00Z",
			"merged":     merged,
		},
		"repository": map[string]interface{}{"full_name": "octo/repo"},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestGitHubHandlerRecordsPush(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	body := `{"ref":"refs/heads/main","pusher":{"name":"octocat"},"head_commit":{"timestamp":"2024-03-01T13:05:00Z"}}`
	rec := deliver(handler, "push", "application/json", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "delivery-1", rec.Header().Get("X-Request-Id"))
	require.Len(t, store.records, 1)
	assert.Equal(t, storage.EventPush, store.records[0].EventType)
	assert.Equal(t, "delivery-1", store.records[0].DeliveryID)
	assert.Equal(t, `octocat pushed to "main" on 01 March 2024 - 01:05 PM UTC`, store.records[0].Message)
}

func TestGitHubHandlerFormEncodedPayload(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	author := gofakeit.New(7).Username()
	form := url.Values{"payload": {pullRequestBody("opened", false, author)}}
	rec := deliver(handler, "pull_request", "application/x-www-form-urlencoded", form.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.records, 1)
	assert.Equal(t, storage.EventPullRequest, store.records[0].EventType)
	assert.Equal(t, author, store.records[0].Author)
}

func TestGitHubHandlerPublishesMatchedMerge(t *testing.T) {
	store := &recordingStore{}
	pub := &recordingPublisher{}
	handler := newTestHandler(t, store, pub)

	rec := deliver(handler, "pull_request", "application/json", pullRequestBody("closed", true, "octocat"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.records, 1)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "events.merged", pub.calls[0].topic)
	assert.Equal(t, []string{"gochannel"}, pub.calls[0].drivers)
	assert.Equal(t, storage.EventMerge, pub.calls[0].event.Record.EventType)
	assert.Equal(t, "delivery-1", pub.calls[0].event.RequestID)

	rec = deliver(handler, "pull_request", "application/json", pullRequestBody("opened", false, "octocat"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, pub.calls, 1)
}

func TestGitHubHandlerPublishFailureStillAccepted(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{err: errors.New("broker down")})

	rec := deliver(handler, "pull_request", "application/json", pullRequestBody("closed", true, "octocat"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.records, 1)
}

func TestGitHubHandlerNoOps(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	for name, tc := range map[string]struct{ kind, body string }{
		"ping":            {"ping", `{"zen":"Keep it logically awesome."}`},
		"issues":          {"issues", `{"action":"opened"}`},
		"closed unmerged": {"pull_request", pullRequestBody("closed", false, "octocat")},
		"synchronize":     {"pull_request", pullRequestBody("synchronize", false, "octocat")},
	} {
		t.Run(name, func(t *testing.T) {
			rec := deliver(handler, tc.kind, "application/json", tc.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		})
	}
	assert.Empty(t, store.records)
}

func TestGitHubHandlerInvalidPayload(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	for _, body := range []string{"", "not json", "{}", "[1,2]"} {
		rec := deliver(handler, "push", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.JSONEq(t, `{"message":"Invalid or empty payload"}`, rec.Body.String())
	}
	rec := deliver(handler, "push", "application/x-www-form-urlencoded", "other=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.records)
}

func TestGitHubHandlerMalformedPullRequest(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	body := `{"action":"opened","pull_request":{"head":{"ref":"f"},"base":{"ref":"main"},"created_at":"2024-03-01T09:00:00Z"}}`
	rec := deliver(handler, "pull_request", "application/json", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, store.records)

	body = `{"ref":"refs/heads/main","head_commit":{"timestamp":"yesterday"}}`
	rec = deliver(handler, "push", "application/json", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, store.records)
}

func TestGitHubHandlerStoreFailure(t *testing.T) {
	store := &recordingStore{insertErr: errors.New("connection refused")}
	handler := newTestHandler(t, store, &recordingPublisher{})

	rec := deliver(handler, "push", "application/json", `{"ref":"refs/heads/main"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal error"}`, rec.Body.String())
}

func TestGitHubHandlerBodyTooLarge(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(t, store, &recordingPublisher{})

	body := `{"ref":"refs/heads/main","pad":"` + strings.Repeat("x", 2048) + `"}`
	rec := deliver(handler, "push", "application/json", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, store.records)
}

func TestGitHubHandlerMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, &recordingStore{}, &recordingPublisher{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/receiver", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGitHubHandlerGeneratesRequestID(t *testing.T) {
	handler := newTestHandler(t, &recordingStore{}, &recordingPublisher{})
	req := httptest.NewRequest(http.MethodPost, "/webhook/receiver", strings.NewReader(`{"zen":"x"}`))
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}

func TestDeliveryPayload(t *testing.T) {
	assert.Equal(t, []byte(`{"a":1}`), deliveryPayload("application/json", []byte(`{"a":1}`)))
	assert.Equal(t, []byte(`{"a":1}`), deliveryPayload("", []byte(`{"a":1}`)))
	form := url.Values{"payload": {`{"a":1}`}}.Encode()
	assert.Equal(t, []byte(`{"a":1}`), deliveryPayload("application/x-www-form-urlencoded; charset=utf-8", []byte(form)))
}
