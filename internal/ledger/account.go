// Package ledger implements the per-venue capital reservation book. Cash
// moves between available and reserved via reserve/release; it leaves the
// system only through ConfirmSpend. A broken transition here is a broken
// P&L, so violations panic rather than continue.
package ledger

import (
	"fmt"
	"sync"

	"github.com/crossbook/event-arb/pkg/types"
	"github.com/shopspring/decimal"
)

// Position is a held quantity with its weighted-average cost per contract.
type Position struct {
	Qty     int64
	AvgCost decimal.Decimal
}

type positionKey struct {
	Symbol string
	Side   types.Side
}

// Account is one venue's cash and positions. All methods are atomic from
// the caller's viewpoint.
type Account struct {
	venue types.Venue

	mu        sync.Mutex
	available decimal.Decimal
	reserved  decimal.Decimal
	positions map[positionKey]Position
}

// NewAccount creates an account with an initial cash balance.
func NewAccount(venue types.Venue, initial decimal.Decimal) *Account {
	if initial.IsNegative() {
		panic(fmt.Sprintf("ledger: negative initial balance %s for %s", initial, venue))
	}
	return &Account{
		venue:     venue,
		available: initial,
		reserved:  decimal.Zero,
		positions: make(map[positionKey]Position),
	}
}

// Venue returns the account's venue.
func (a *Account) Venue() types.Venue {
	return a.venue
}

// Reserve moves amount from available to reserved. Returns
// types.ErrInsufficientCapital if available cash does not cover it.
func (a *Account) Reserve(amount decimal.Decimal) error {
	if amount.IsNegative() {
		panic(fmt.Sprintf("ledger: negative reserve %s on %s", amount, a.venue))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.available.LessThan(amount) {
		return fmt.Errorf("reserve %s on %s (available %s): %w",
			amount, a.venue, a.available, types.ErrInsufficientCapital)
	}

	a.available = a.available.Sub(amount)
	a.reserved = a.reserved.Add(amount)
	a.observe()
	return nil
}

// Release returns reserved funds to available. Releasing more than is
// reserved is a programming error.
func (a *Account) Release(amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(fmt.Sprintf("ledger: negative release %s on %s", amount, a.venue))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reserved.LessThan(amount) {
		panic(fmt.Sprintf("ledger: release %s exceeds reserved %s on %s",
			amount, a.reserved, a.venue))
	}

	a.reserved = a.reserved.Sub(amount)
	a.available = a.available.Add(amount)
	a.observe()
}

// ConfirmSpend debits reserved funds after a fill; the cash leaves the
// system. This is the only transition that changes available + reserved.
func (a *Account) ConfirmSpend(amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(fmt.Sprintf("ledger: negative spend %s on %s", amount, a.venue))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reserved.LessThan(amount) {
		panic(fmt.Sprintf("ledger: spend %s exceeds reserved %s on %s",
			amount, a.reserved, a.venue))
	}

	a.reserved = a.reserved.Sub(amount)
	a.observe()
}

// AddPosition folds a fill into the (symbol, side) position, recomputing
// the weighted-average cost per contract.
func (a *Account) AddPosition(symbol string, side types.Side, qty int64, price decimal.Decimal) {
	if qty <= 0 {
		panic(fmt.Sprintf("ledger: non-positive fill qty %d on %s", qty, a.venue))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := positionKey{Symbol: symbol, Side: side}
	pos := a.positions[key]

	oldQty := decimal.NewFromInt(pos.Qty)
	addQty := decimal.NewFromInt(qty)
	newQty := oldQty.Add(addQty)

	pos.AvgCost = pos.AvgCost.Mul(oldQty).Add(price.Mul(addQty)).Div(newQty)
	pos.Qty += qty
	a.positions[key] = pos
}

// PositionQty returns the held quantity for a (symbol, side).
func (a *Account) PositionQty(symbol string, side types.Side) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[positionKey{Symbol: symbol, Side: side}].Qty
}

// Position returns the full position record for a (symbol, side).
func (a *Account) Position(symbol string, side types.Side) Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[positionKey{Symbol: symbol, Side: side}]
}

// Positions returns all non-empty positions as venue position records.
func (a *Account) Positions() []types.VenuePosition {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.VenuePosition, 0, len(a.positions))
	for key, pos := range a.positions {
		if pos.Qty == 0 {
			continue
		}
		out = append(out, types.VenuePosition{
			Symbol:  key.Symbol,
			Side:    key.Side,
			Qty:     pos.Qty,
			AvgCost: pos.AvgCost,
		})
	}
	return out
}

// Available returns spendable cash.
func (a *Account) Available() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available
}

// Reserved returns cash earmarked against pending orders.
func (a *Account) Reserved() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

// Snapshot is a consistent read of the account's cash state.
type Snapshot struct {
	Venue     types.Venue
	Available decimal.Decimal
	Reserved  decimal.Decimal
}

// Snapshot returns cash balances read under one lock acquisition.
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Venue: a.venue, Available: a.available, Reserved: a.reserved}
}

// observe updates gauges; callers hold a.mu.
func (a *Account) observe() {
	v := string(a.venue)
	avail, _ := a.available.Float64()
	res, _ := a.reserved.Float64()
	CashAvailable.WithLabelValues(v).Set(avail)
	CashReserved.WithLabelValues(v).Set(res)
}
