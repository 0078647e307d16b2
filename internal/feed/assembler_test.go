package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crossbook/event-arb/pkg/types"
)

func quote(price string, size int64) *types.Quote {
	return &types.Quote{Price: decimal.RequireFromString(price), Size: size}
}

func halfUpdate(side types.Side, price string, derived bool, at time.Time) *types.TickUpdate {
	u := &types.TickUpdate{
		Venue:   types.VenueIBKR,
		Symbol:  "FED-CUT-DEC",
		TSLocal: at,
	}
	if side == types.SideYes {
		u.YesAsk = quote(price, 10)
		u.YesDerived = derived
	} else {
		u.NoAsk = quote(price, 10)
		u.NoDerived = derived
	}
	return u
}

func TestAssembler_EmitsOnlyWhenBothHalvesPresent(t *testing.T) {
	a := NewAssembler(types.VenueIBKR)
	t0 := time.Unix(1000, 0)

	if _, ok := a.Apply(halfUpdate(types.SideYes, "0.55", false, t0)); ok {
		t.Fatal("one half must not produce a tick")
	}

	tick, ok := a.Apply(halfUpdate(types.SideNo, "0.43", false, t0.Add(time.Second)))
	if !ok {
		t.Fatal("both halves present, expected a tick")
	}
	if !tick.YesAsk.Price.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("yes ask = %s", tick.YesAsk.Price)
	}
	if !tick.NoAsk.Price.Equal(decimal.RequireFromString("0.43")) {
		t.Errorf("no ask = %s", tick.NoAsk.Price)
	}
	if !tick.TSLocal.Equal(t0.Add(time.Second)) {
		t.Errorf("receipt time = %v, want the latest half's", tick.TSLocal)
	}
}

func TestAssembler_ReceiptTimeAdvancesOnEveryHalf(t *testing.T) {
	a := NewAssembler(types.VenueIBKR)
	t0 := time.Unix(1000, 0)

	a.Apply(halfUpdate(types.SideYes, "0.55", false, t0))
	a.Apply(halfUpdate(types.SideNo, "0.43", false, t0.Add(time.Second)))

	tick, ok := a.Apply(halfUpdate(types.SideYes, "0.56", false, t0.Add(5*time.Second)))
	if !ok {
		t.Fatal("expected a tick")
	}
	if !tick.TSLocal.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("receipt time = %v, want advanced", tick.TSLocal)
	}
}

func TestAssembler_DerivedNeverOverwritesExplicit(t *testing.T) {
	a := NewAssembler(types.VenueIBKR)
	t0 := time.Unix(1000, 0)

	// Explicit NO quote, then a derived approximation for the same side.
	a.Apply(halfUpdate(types.SideNo, "0.43", false, t0))
	tick, ok := a.Apply(&types.TickUpdate{
		Venue:      types.VenueIBKR,
		Symbol:     "FED-CUT-DEC",
		YesAsk:     quote("0.55", 10),
		NoAsk:      quote("0.47", 10),
		NoDerived:  true,
		TSLocal:    t0.Add(time.Second),
	})
	if !ok {
		t.Fatal("expected a tick")
	}
	if !tick.NoAsk.Price.Equal(decimal.RequireFromString("0.43")) {
		t.Errorf("no ask = %s, explicit 0.43 must win over derived 0.47", tick.NoAsk.Price)
	}

	// A later explicit NO replaces the held one.
	tick, _ = a.Apply(halfUpdate(types.SideNo, "0.44", false, t0.Add(2*time.Second)))
	if !tick.NoAsk.Price.Equal(decimal.RequireFromString("0.44")) {
		t.Errorf("no ask = %s, want explicit replacement 0.44", tick.NoAsk.Price)
	}
}

func TestAssembler_DerivedFillsEmptySideAndUpgrades(t *testing.T) {
	a := NewAssembler(types.VenueIBKR)
	t0 := time.Unix(1000, 0)

	a.Apply(halfUpdate(types.SideYes, "0.55", false, t0))

	// A derived NO is better than no NO at all.
	tick, ok := a.Apply(halfUpdate(types.SideNo, "0.47", true, t0.Add(time.Second)))
	if !ok {
		t.Fatal("derived half should complete the tick")
	}
	if !tick.NoAsk.Price.Equal(decimal.RequireFromString("0.47")) {
		t.Errorf("no ask = %s", tick.NoAsk.Price)
	}

	// Derived replaces derived.
	tick, _ = a.Apply(halfUpdate(types.SideNo, "0.46", true, t0.Add(2*time.Second)))
	if !tick.NoAsk.Price.Equal(decimal.RequireFromString("0.46")) {
		t.Errorf("no ask = %s, derived should refresh derived", tick.NoAsk.Price)
	}
}

func TestAssembler_ResetDropsHeldHalves(t *testing.T) {
	a := NewAssembler(types.VenueIBKR)
	t0 := time.Unix(1000, 0)

	a.Apply(halfUpdate(types.SideYes, "0.55", false, t0))
	a.Reset()

	if _, ok := a.Apply(halfUpdate(types.SideNo, "0.43", false, t0.Add(time.Second))); ok {
		t.Fatal("after reset the YES half must be gone")
	}
}
