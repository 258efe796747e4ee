// Package metrics holds the Prometheus collectors for webhook ingestion and
// the HTTP surface. Collectors register with the default registry on import.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook payloads applied, by event and showing outcome",
		},
		[]string{"event_status", "showing_status"},
	)

	WebhookIngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_ingest_errors_total",
			Help: "Webhook payloads rejected or failed, by error kind",
		},
		[]string{"kind"}, // "validation", "conflict", "store_unavailable", "internal"
	)

	WebhookIngestRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_ingest_retries_total",
			Help: "Units of work retried after a unique constraint race",
		},
	)

	WebhookIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_ingest_duration_seconds",
			Help:    "Time to normalize and apply one webhook payload",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
		[]string{"route"},
	)
)

// RecordIngest records one successfully applied payload.
func RecordIngest(eventStatus, showingStatus string, d time.Duration) {
	WebhookEventsTotal.WithLabelValues(eventStatus, showingStatus).Inc()
	WebhookIngestDuration.Observe(d.Seconds())
}

// RecordIngestError records one failed payload.
func RecordIngestError(kind string, d time.Duration) {
	WebhookIngestErrors.WithLabelValues(kind).Inc()
	WebhookIngestDuration.Observe(d.Seconds())
}

// RecordHTTPRequest records one served request. Unmatched routes are folded
// into a single label to keep cardinality bounded.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
