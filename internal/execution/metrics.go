package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks terminal execution results, by outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_executions_total",
			Help: "Total number of execution attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	// ExecutionDurationSeconds tracks wall time from reserve to terminal.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_arb_execution_duration_seconds",
		Help:    "Duration of an execution attempt",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// RollbacksTotal tracks leg-B failures that triggered a hedge.
	RollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_rollbacks_total",
		Help: "Total number of executions rolled back onto a hedge order",
	})

	// ManualInterventionTotal tracks results flagged for a human.
	ManualInterventionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_manual_intervention_total",
		Help: "Total number of executions requiring manual intervention",
	})

	// OrderErrorsTotal tracks venue order-call failures by operation.
	OrderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_order_errors_total",
			Help: "Total number of failed venue order calls",
		},
		[]string{"venue", "op"},
	)

	// RealizedProfitUSD accumulates net profit over the session; it can
	// go negative after rollbacks.
	RealizedProfitUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_arb_realized_profit_usd",
		Help: "Cumulative realized net profit in USD",
	})
)
