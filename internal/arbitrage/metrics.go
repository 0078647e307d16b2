package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpportunitiesDetectedTotal tracks parity gaps the detector emitted.
	OpportunitiesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_opportunities_detected_total",
		Help: "Total number of cross-venue opportunities detected",
	})

	// PairingsRejectedTotal tracks candidate pairings rejected by the
	// detector, by reason.
	PairingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_pairings_rejected_total",
			Help: "Total number of candidate pairings rejected during detection",
		},
		[]string{"reason"},
	)

	// NetProfitPerPair tracks detector net profit per contract pair in USD.
	NetProfitPerPair = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_arb_net_profit_per_pair_usd",
		Help:    "Net profit per contract pair after fees and slippage",
		Buckets: []float64{0.01, 0.02, 0.05, 0.10, 0.15, 0.20, 0.30, 0.50},
	})

	// OpportunitiesAdmittedTotal tracks opportunities that cleared the gate.
	OpportunitiesAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_opportunities_admitted_total",
		Help: "Total number of opportunities admitted for execution",
	})

	// OpportunitiesGatedTotal tracks opportunities the gate refused, by reason.
	OpportunitiesGatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_opportunities_gated_total",
			Help: "Total number of opportunities refused by the admission gate",
		},
		[]string{"reason"},
	)

	// OpportunityQuantity tracks sized quantities leaving the gate.
	OpportunityQuantity = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_arb_opportunity_quantity",
		Help:    "Contracts per leg for admitted opportunities",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1, 2, 4, ..., 512
	})

	// TickToGateSeconds tracks latency from tick receipt to gate decision.
	TickToGateSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_arb_tick_to_gate_seconds",
		Help:    "Latency from oldest source tick receipt to gate decision",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)
