package api

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"gitevents/pkg/events"
	"gitevents/pkg/storage"

	"go.uber.org/zap"
)

//go:embed templates/home.html
var templateFS embed.FS

var homeTemplate = template.Must(template.ParseFS(templateFS, "templates/home.html"))

// EventsHandler lists the most recent event messages, newest first.
type EventsHandler struct {
	Reader *events.Reader
	Logger *zap.SugaredLogger
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	messages, err := h.Reader.Recent(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Errorw("list recent events failed", "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// HomeHandler serves the landing page, which polls EventsPath.
type HomeHandler struct {
	EventsPath string
	// PollInterval defaults to 15 seconds.
	PollInterval time.Duration
	Logger       *zap.SugaredLogger
}

func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	interval := h.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := homeTemplate.Execute(w, struct {
		EventsPath     string
		PollIntervalMS int64
	}{
		EventsPath:     h.EventsPath,
		PollIntervalMS: interval.Milliseconds(),
	})
	if err != nil && h.Logger != nil {
		h.Logger.Errorw("render home page failed", "error", err)
	}
}

// HealthHandler reports whether the event store answers a read.
type HealthHandler struct {
	Store   storage.EventFinder
	Timeout time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if _, err := h.Store.FindRecentEvents(ctx, 1); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
