// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_leads_created_total",
			Help: "Total number of leads created at registration",
		},
	)

	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_turns_processed_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"step"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_turns_failed_total",
			Help: "Total number of conversation turns that failed",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "concierge_turn_duration_seconds",
			Help: "Duration of conversation turn processing in seconds",
		},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_status_updates_total",
			Help: "Total number of operator status updates",
		},
		[]string{"status"},
	)

	ExportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_exports_generated_total",
			Help: "Total number of lead reports exported",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "concierge_http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route", "method", "status"},
	)
)
