package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitevents_requests_total",
		Help: "Webhook deliveries received, labelled by event kind.",
	}, []string{"event"})

	eventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitevents_events_recorded_total",
		Help: "Event records written to the store, labelled by event type.",
	}, []string{"event_type"})

	ingestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitevents_ingest_errors_total",
		Help: "Deliveries that failed ingestion, labelled by reason.",
	}, []string{"reason"})

	publishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitevents_publish_errors_total",
		Help: "Failed publications of recorded events, labelled by topic.",
	}, []string{"topic"})
)

// IncRequest counts a delivery. Kinds outside the tracked set share the
// "other" label so header values cannot grow the series count.
func IncRequest(event string) {
	switch event {
	case "push", "pull_request", "ping":
	default:
		event = "other"
	}
	requestsTotal.WithLabelValues(event).Inc()
}

func IncRecorded(eventType string) {
	eventsRecorded.WithLabelValues(eventType).Inc()
}

func IncIngestError(reason string) {
	ingestErrors.WithLabelValues(reason).Inc()
}

func IncPublishError(topic string) {
	publishErrors.WithLabelValues(topic).Inc()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
