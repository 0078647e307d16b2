package book

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksAppliedTotal tracks ticks accepted into the book, by venue.
	TicksAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_book_ticks_applied_total",
			Help: "Total number of ticks applied to the book",
		},
		[]string{"venue"},
	)

	// TicksRejectedTotal tracks ticks dropped by validation, by venue.
	TicksRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_book_ticks_rejected_total",
			Help: "Total number of ticks rejected by book validation",
		},
		[]string{"venue"},
	)

	// UpdateDuration tracks the store-and-detect critical path.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_arb_book_update_duration_seconds",
		Help:    "Duration of a book update including detection",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// OpportunitiesDroppedTotal tracks opportunities lost to a full
	// emission channel.
	OpportunitiesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_book_opportunities_dropped_total",
		Help: "Total number of detected opportunities dropped because the emission channel was full",
	})
)
