package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesAppliedTotal tracks tick updates run through the pipeline.
	UpdatesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_feed_updates_applied_total",
			Help: "Total number of tick updates applied by the feed",
		},
		[]string{"venue"},
	)

	// UpdatesRejectedTotal tracks updates the feed refused, by reason.
	UpdatesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_feed_updates_rejected_total",
			Help: "Total number of tick updates rejected by the feed",
		},
		[]string{"venue", "reason"},
	)

	// MarkedStaleTotal tracks symbols invalidated on reconnect, by venue.
	MarkedStaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_feed_marked_stale_total",
			Help: "Total number of symbols marked stale after a gateway reconnect",
		},
		[]string{"venue"},
	)
)
