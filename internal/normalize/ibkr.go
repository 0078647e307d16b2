package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

// IBKRSnapshot is one row of the Client Portal market-data snapshot
// endpoint. Numeric fields arrive as strings keyed by field id: 84 bid,
// 86 ask, 85 ask size, 88 bid size.
type IBKRSnapshot struct {
	ConID   int64  `json:"conid"`
	Bid     string `json:"84"`
	Ask     string `json:"86"`
	AskSize string `json:"85"`
	BidSize string `json:"88"`
	Updated int64  `json:"_updated"` // epoch millis
}

// IBKR normalizes Client Portal snapshot rows. Each conid is one side of
// one event (a YES or a NO contract); the normalizer emits the explicit
// ask for that side and, when the bid is usable, a derived approximation
// for the opposite side (opposite_ask ~= 1.00 - bid). The feed assembler
// keeps derived halves from shadowing explicit ones.
type IBKR struct {
	symbols *symbolmap.Map
}

// NewIBKR creates an IBKR normalizer over an immutable symbol map.
func NewIBKR(symbols *symbolmap.Map) *IBKR {
	return &IBKR{symbols: symbols}
}

// Normalize converts one snapshot row into a tick update.
func (n *IBKR) Normalize(snap *IBKRSnapshot) (*types.TickUpdate, error) {
	symbol, side, ok := n.symbols.ByConID(snap.ConID)
	if !ok {
		return nil, fmt.Errorf("ibkr conid %d: %w", snap.ConID, types.ErrUnknownSymbol)
	}

	ask, askErr := parsePrice(snap.Ask)
	bid, bidErr := parsePrice(snap.Bid)
	if askErr != nil && bidErr != nil {
		return nil, types.ErrNoData
	}

	u := &types.TickUpdate{
		Venue:   types.VenueIBKR,
		Symbol:  symbol,
		TSLocal: time.Now(),
	}
	if snap.Updated > 0 {
		u.TSVenue = time.UnixMilli(snap.Updated)
	}

	if askErr == nil {
		q := &types.Quote{Price: ask, Size: parseSize(snap.AskSize)}
		setSide(u, side, q, false)
	}
	if bidErr == nil {
		q := &types.Quote{Price: one.Sub(bid), Size: parseSize(snap.BidSize)}
		setSide(u, side.Opposite(), q, true)
	}

	return u, nil
}

func setSide(u *types.TickUpdate, side types.Side, q *types.Quote, derived bool) {
	if side == types.SideYes {
		u.YesAsk = q
		u.YesDerived = derived
	} else {
		u.NoAsk = q
		u.NoDerived = derived
	}
}

// parsePrice rejects Client Portal sentinels: empty fields, "-1" for no
// quote, NaN, halted markers ("C"/"H" prefixes), and anything outside
// the contract's (0.00, 1.00) price range.
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-1" || strings.EqualFold(s, "nan") {
		return decimal.Zero, types.ErrNoData
	}
	if strings.HasPrefix(s, "C") || strings.HasPrefix(s, "H") {
		return decimal.Zero, types.ErrNoData
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ibkr price %q: %w", s, err)
	}
	if !d.IsPositive() || d.GreaterThanOrEqual(one) {
		return decimal.Zero, types.ErrNoData
	}
	return d, nil
}

// parseSize is forgiving: a malformed or missing size becomes zero depth,
// which downstream treats as "price known, depth unknown".
func parseSize(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
