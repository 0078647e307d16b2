package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerEnabled is 1 while live executions are allowed.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_arb_breaker_enabled",
		Help: "Whether the execution circuit breaker currently allows trading",
	})

	// ConsecutiveFailures tracks the current non-committed streak.
	ConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_arb_breaker_consecutive_failures",
		Help: "Current streak of executions that did not commit",
	})

	// TripsTotal counts breaker trips by reason.
	TripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"reason"},
	)

	// StateChangesTotal counts enable/disable transitions.
	StateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions",
	})

	// BlockedExecutionsTotal counts executions refused while tripped.
	BlockedExecutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_breaker_blocked_executions_total",
		Help: "Total number of executions blocked by the circuit breaker",
	})
)
