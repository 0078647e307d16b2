package arbitrage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crossbook/event-arb/pkg/types"
)

// Leg is one side of a paired trade: which venue, which side, and the ask
// it was priced against.
type Leg struct {
	Venue types.Venue
	Side  types.Side
	Price decimal.Decimal
	Size  int64 // depth available at the ask
}

// Opportunity is a priced cross-venue parity gap. The detector emits it at
// unit quantity; the gate produces a sized copy. Instances are shared by
// reference and never mutated after construction.
type Opportunity struct {
	ID     string
	Symbol string

	// LegA is always the Kalshi leg, LegB the IBKR leg; the two sides are
	// opposite by construction.
	LegA Leg
	LegB Leg

	Quantity       int64
	GrossProfit    decimal.Decimal // at Quantity
	FeeA           decimal.Decimal
	FeeB           decimal.Decimal
	SlippageBuffer decimal.Decimal
	NetProfit      decimal.Decimal

	// Local receipt times of the ticks this opportunity was derived from.
	TickAReceivedAt time.Time
	TickBReceivedAt time.Time

	DetectedAt time.Time
}

func newOpportunity(symbol string, legA, legB Leg, gross, feeA, feeB, slippage, net decimal.Decimal, tickA, tickB time.Time) *Opportunity {
	return &Opportunity{
		ID:              uuid.New().String(),
		Symbol:          symbol,
		LegA:            legA,
		LegB:            legB,
		Quantity:        1,
		GrossProfit:     gross,
		FeeA:            feeA,
		FeeB:            feeB,
		SlippageBuffer:  slippage,
		NetProfit:       net,
		TickAReceivedAt: tickA,
		TickBReceivedAt: tickB,
		DetectedAt:      time.Now(),
	}
}

// CostPerPair is the combined price of buying both legs once.
func (o *Opportunity) CostPerPair() decimal.Decimal {
	return o.LegA.Price.Add(o.LegB.Price)
}

// String returns a compact human-readable summary.
func (o *Opportunity) String() string {
	return fmt.Sprintf("Opportunity[%s] %s: %s %s@%s + %s %s@%s qty=%d net=%s",
		o.ID[:8], o.Symbol,
		o.LegA.Side, o.LegA.Venue, o.LegA.Price,
		o.LegB.Side, o.LegB.Venue, o.LegB.Price,
		o.Quantity, o.NetProfit)
}
