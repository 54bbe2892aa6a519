package webhook

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"gitevents/internal"
	"gitevents/pkg/events"

	gh "github.com/google/go-github/v57/github"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invalidPayloadMessage = "Invalid or empty payload"

// GitHubHandler receives GitHub webhook deliveries and records push and
// pull request events.
type GitHubHandler struct {
	ingestor    *events.Ingestor
	rules       *internal.RuleEngine
	publisher   internal.Publisher
	logger      *zap.SugaredLogger
	maxBody     int64
	debugEvents bool
}

// NewGitHubHandler creates a new GitHubHandler. rules and publisher may be nil,
// in which case recorded events are not published.
func NewGitHubHandler(ingestor *events.Ingestor, rules *internal.RuleEngine, publisher internal.Publisher, logger *zap.SugaredLogger, maxBody int64, debugEvents bool) *GitHubHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GitHubHandler{
		ingestor:    ingestor,
		rules:       rules,
		publisher:   publisher,
		logger:      logger,
		maxBody:     maxBody,
		debugEvents: debugEvents,
	}
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	deliveryID := gh.DeliveryID(r)
	reqID := deliveryID
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", reqID)
	logger := internal.WithRequestID(h.logger, reqID)

	kind := gh.WebHookType(r)
	internal.IncRequest(kind)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			internal.IncIngestError("too_large")
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"message": "payload too large"})
			return
		}
		internal.IncIngestError("invalid_payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": invalidPayloadMessage})
		return
	}
	payload := deliveryPayload(r.Header.Get("Content-Type"), rawBody)

	if h.debugEvents {
		logger.Debugw("github delivery", "event", kind, "body", string(payload))
	}

	record, err := h.ingestor.Ingest(r.Context(), events.Delivery{
		Kind:    kind,
		ID:      deliveryID,
		Payload: payload,
	})
	if err != nil {
		status, message, reason := classify(err)
		internal.IncIngestError(reason)
		if status == http.StatusInternalServerError {
			logger.Errorw("github delivery failed", "event", kind, "error", err)
		} else {
			logger.Warnw("github delivery rejected", "event", kind, "error", err)
		}
		writeJSON(w, status, map[string]string{"message": message})
		return
	}

	if record != nil {
		internal.IncRecorded(string(record.EventType))
		logger.Infow("event recorded", "event", kind, "event_type", record.EventType, "id", record.ID)
		h.emit(r.Context(), logger, internal.Event{
			Provider:   "github",
			Name:       kind,
			RequestID:  reqID,
			Record:     *record,
			RawPayload: payload,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GitHubHandler) emit(ctx context.Context, logger *zap.SugaredLogger, event internal.Event) {
	if h.rules == nil || h.publisher == nil {
		return
	}
	matches := h.rules.EvaluateWithLogger(event, logger)
	logger.Debugw("rules evaluated", "event_type", event.Record.EventType, "matches", len(matches))
	for _, match := range matches {
		if err := h.publisher.PublishForDrivers(ctx, match.Topic, event, match.Drivers); err != nil {
			internal.IncPublishError(match.Topic)
			logger.Errorw("publish failed", "topic", match.Topic, "error", err)
		}
	}
}

// deliveryPayload returns the JSON document of a delivery. GitHub sends it in
// a "payload" form field when the hook content type is form-encoded.
func deliveryPayload(contentType string, body []byte) []byte {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return body
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil
	}
	return []byte(form.Get("payload"))
}

func classify(err error) (status int, message, reason string) {
	switch {
	case errors.Is(err, events.ErrInvalidPayload):
		return http.StatusBadRequest, invalidPayloadMessage, "invalid_payload"
	case errors.Is(err, events.ErrMalformedPullRequest):
		return http.StatusUnprocessableEntity, "Malformed pull request payload", "malformed_pull_request"
	case errors.Is(err, events.ErrUnparseableTimestamp):
		return http.StatusUnprocessableEntity, "Unparseable timestamp", "unparseable_timestamp"
	default:
		return http.StatusInternalServerError, "internal error", "store"
	}
}
