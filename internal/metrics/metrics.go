// Package metrics holds the Prometheus collectors exported on the metrics path.
//
// HTTP metrics are labelled with the echo route template (c.Path()), never the
// raw URL, so file names and dates in admin URLs do not inflate cardinality.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by method, route template and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "twin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route template.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// WebhookChecks counts authenticator outcomes: check is user_agent, signature or source_ip,
	// outcome is pass, fail, warn or skip.
	WebhookChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "webhook_checks_total",
			Help:      "Webhook authentication check outcomes.",
		},
		[]string{"check", "outcome"},
	)

	WebhookRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "webhook_rejections_total",
			Help:      "Rejected webhook deliveries, by reason.",
		},
		[]string{"reason"},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "events_dispatched_total",
			Help:      "Dispatched webhook events, by event type and result (handled, ignored, failed).",
		},
		[]string{"event", "result"},
	)

	AuditWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "audit_writes_total",
			Help:      "Audit record writes to the log directory, by result.",
		},
		[]string{"result"},
	)

	AuditShipments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "audit_shipments_total",
			Help:      "Audit record deliveries to secondary sinks, by sink and result.",
		},
		[]string{"sink", "result"},
	)

	LogsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "logs_pruned_files_total",
			Help:      "Log files removed by retention cleanup.",
		},
	)
)
