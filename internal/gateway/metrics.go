package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NormalizationErrorsTotal counts raw events dropped by normalization.
	NormalizationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_gateway_normalization_errors_total",
			Help: "Total number of raw venue events dropped during normalization",
		},
		[]string{"venue"},
	)

	// SnapshotPollErrorsTotal counts failed IBKR snapshot sweeps.
	SnapshotPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_gateway_snapshot_poll_errors_total",
		Help: "Total number of failed market-data snapshot polls",
	})

	// RequestDurationSeconds tracks venue REST round-trips.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_arb_gateway_request_duration_seconds",
			Help:    "Venue REST API request duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"venue", "method"},
	)
)
