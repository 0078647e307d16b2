package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CashAvailable tracks spendable cash per venue.
	CashAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_arb_cash_available_usd",
			Help: "Spendable cash per venue",
		},
		[]string{"venue"},
	)

	// CashReserved tracks cash earmarked against pending orders per venue.
	CashReserved = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_arb_cash_reserved_usd",
			Help: "Cash reserved against pending orders per venue",
		},
		[]string{"venue"},
	)
)
