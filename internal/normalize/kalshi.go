// Package normalize converts raw venue events into TickUpdates keyed by
// unified symbols. Normalizers are pure: no state, no side effects, and a
// types.ErrNotTick for any frame that carries no price information.
//
// Price semantics: event-contract books expose bids, so the ask to buy
// YES is derived from the best NO bid (yes_ask = 1.00 - best NO bid) and
// symmetrically for NO. The size at an ask is the depth at the opposing
// side's best bid.
package normalize

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

var one = decimal.NewFromInt(1)

// kalshiEnvelope is the websocket frame wrapper; Type routes the payload.
type kalshiEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// kalshiBookSnapshot is the orderbook_snapshot payload. Price levels are
// [price_cents, quantity] pairs on the bid side of each instrument.
type kalshiBookSnapshot struct {
	MarketTicker string     `json:"market_ticker"`
	Yes          [][2]int64 `json:"yes"`
	No           [][2]int64 `json:"no"`
	TS           int64      `json:"ts"`
}

// Kalshi normalizes Kalshi websocket frames.
type Kalshi struct {
	symbols *symbolmap.Map
}

// NewKalshi creates a Kalshi normalizer over an immutable symbol map.
func NewKalshi(symbols *symbolmap.Map) *Kalshi {
	return &Kalshi{symbols: symbols}
}

// Normalize converts one frame into a two-sided tick update. Non-book
// frames (subscription acks, heartbeats, fills) return types.ErrNotTick.
func (n *Kalshi) Normalize(raw []byte) (*types.TickUpdate, error) {
	var env kalshiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("kalshi frame: %w", err)
	}

	if env.Type != "orderbook_snapshot" {
		return nil, types.ErrNotTick
	}

	var snap kalshiBookSnapshot
	if err := json.Unmarshal(env.Msg, &snap); err != nil {
		return nil, fmt.Errorf("kalshi orderbook_snapshot: %w", err)
	}

	symbol, ok := n.symbols.ByKalshiTicker(snap.MarketTicker)
	if !ok {
		return nil, fmt.Errorf("kalshi ticker %q: %w", snap.MarketTicker, types.ErrUnknownSymbol)
	}

	u := &types.TickUpdate{
		Venue:   types.VenueKalshi,
		Symbol:  symbol,
		TSLocal: time.Now(),
	}
	if snap.TS > 0 {
		u.TSVenue = time.Unix(snap.TS, 0)
	}

	// The ask to buy YES comes from the best NO bid, and vice versa.
	if q, err := askFromBids(snap.No); err == nil {
		u.YesAsk = q
	}
	if q, err := askFromBids(snap.Yes); err == nil {
		u.NoAsk = q
	}

	if u.YesAsk == nil && u.NoAsk == nil {
		return nil, types.ErrNoData
	}
	return u, nil
}

// askFromBids finds the best (highest) bid level and converts it to the
// opposing side's ask. Cent prices outside (0, 100) are sentinels for an
// empty or crossed book.
func askFromBids(levels [][2]int64) (*types.Quote, error) {
	if len(levels) == 0 {
		return nil, types.ErrNoData
	}

	var bestCents, bestQty int64
	for _, lvl := range levels {
		if lvl[0] > bestCents {
			bestCents, bestQty = lvl[0], lvl[1]
		}
	}

	if bestCents <= 0 || bestCents >= 100 || bestQty <= 0 {
		return nil, types.ErrNoData
	}

	bid := decimal.NewFromInt(bestCents).Shift(-2)
	return &types.Quote{Price: one.Sub(bid), Size: bestQty}, nil
}
