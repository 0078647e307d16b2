package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadSnapshot is a periodic per-symbol view of both venues' books,
// recorded by the spread sweeper for offline analysis. It is only built
// when both venues hold a complete tick for the symbol.
type SpreadSnapshot struct {
	Symbol string

	KalshiYesAsk decimal.Decimal
	KalshiNoAsk  decimal.Decimal
	IBKRYesAsk   decimal.Decimal
	IBKRNoAsk    decimal.Decimal

	KalshiSum decimal.Decimal // YES + NO on Kalshi
	IBKRSum   decimal.Decimal // YES + NO on IBKR

	// Cross-venue parity sums for the two orthogonal pairings.
	CrossYesKalshiNoIBKR decimal.Decimal
	CrossNoKalshiYesIBKR decimal.Decimal

	At time.Time
}

// NewSpreadSnapshot computes all sums from the four asks.
func NewSpreadSnapshot(symbol string, kYes, kNo, iYes, iNo decimal.Decimal, at time.Time) *SpreadSnapshot {
	return &SpreadSnapshot{
		Symbol:               symbol,
		KalshiYesAsk:         kYes,
		KalshiNoAsk:          kNo,
		IBKRYesAsk:           iYes,
		IBKRNoAsk:            iNo,
		KalshiSum:            kYes.Add(kNo),
		IBKRSum:              iYes.Add(iNo),
		CrossYesKalshiNoIBKR: kYes.Add(iNo),
		CrossNoKalshiYesIBKR: kNo.Add(iYes),
		At:                   at,
	}
}
