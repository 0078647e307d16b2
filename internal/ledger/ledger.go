package ledger

import (
	"github.com/crossbook/event-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger owns both venue accounts.
type Ledger struct {
	accounts map[types.Venue]*Account
	logger   *zap.Logger
}

// Config holds ledger construction parameters.
type Config struct {
	KalshiBalance decimal.Decimal
	IBKRBalance   decimal.Decimal
	Logger        *zap.Logger
}

// New creates a ledger with both accounts funded at their initial balances.
func New(cfg Config) *Ledger {
	l := &Ledger{
		accounts: map[types.Venue]*Account{
			types.VenueKalshi: NewAccount(types.VenueKalshi, cfg.KalshiBalance),
			types.VenueIBKR:   NewAccount(types.VenueIBKR, cfg.IBKRBalance),
		},
		logger: cfg.Logger,
	}

	l.logger.Info("ledger-initialized",
		zap.String("kalshi-balance", cfg.KalshiBalance.StringFixed(2)),
		zap.String("ibkr-balance", cfg.IBKRBalance.StringFixed(2)))

	return l
}

// Account returns the account for a venue.
func (l *Ledger) Account(venue types.Venue) (*Account, bool) {
	a, ok := l.accounts[venue]
	return a, ok
}

// Snapshots returns cash snapshots for all venues.
func (l *Ledger) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(l.accounts))
	for _, v := range types.Venues() {
		if a, ok := l.accounts[v]; ok {
			out = append(out, a.Snapshot())
		}
	}
	return out
}
