package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a price level with the depth available at it.
type Quote struct {
	Price decimal.Decimal
	Size  int64
}

// NormalizedTick is the venue-independent top-of-book record for one
// unified symbol. Prices are the cost to BUY the named side: event
// contract books expose bids, so the ask to buy YES is derived as
// 1.00 - best NO bid (and symmetrically for NO). A nil quote means the
// venue has published no usable price for that side yet.
//
// Ticks are immutable once constructed; the Book replaces them wholesale.
type NormalizedTick struct {
	Venue   Venue
	Symbol  string
	YesAsk  *Quote
	NoAsk   *Quote
	TSVenue time.Time // venue-reported event time, may be zero
	TSLocal time.Time // local receipt time
}

// Complete reports whether both sides carry a quote.
func (t *NormalizedTick) Complete() bool {
	return t.YesAsk != nil && t.NoAsk != nil
}

// Validate checks the tick invariants: prices within [0.00, 1.00] and
// non-negative sizes.
func (t *NormalizedTick) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("tick missing symbol")
	}
	for side, q := range map[Side]*Quote{SideYes: t.YesAsk, SideNo: t.NoAsk} {
		if q == nil {
			continue
		}
		if q.Price.IsNegative() || q.Price.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s %s ask %s out of range", t.Venue, side, q.Price)
		}
		if q.Size < 0 {
			return fmt.Errorf("%s %s ask size %d negative", t.Venue, side, q.Size)
		}
	}
	return nil
}
