package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tick(venue types.Venue, yesAsk, noAsk string) *types.NormalizedTick {
	now := time.Now()
	t := &types.NormalizedTick{
		Venue:   venue,
		Symbol:  "FED-CUT-DEC",
		TSVenue: now,
		TSLocal: now,
	}
	if yesAsk != "" {
		t.YesAsk = &types.Quote{Price: dec(yesAsk), Size: 100}
	}
	if noAsk != "" {
		t.NoAsk = &types.Quote{Price: dec(noAsk), Size: 100}
	}
	return t
}

func newTestDetector(minProfit, slippage string) *Detector {
	return New(Config{
		SlippageBuffer: dec(slippage),
		MinNetProfit:   dec(minProfit),
		Logger:         zap.NewNop(),
	}, fees.NewBook())
}

func TestDetector_ClearArb(t *testing.T) {
	d := newTestDetector("0", "0.01")

	kalshi := tick(types.VenueKalshi, "0.40", "0.60")
	ibkr := tick(types.VenueIBKR, "0.55", "0.43")

	opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	if opp.LegA.Venue != types.VenueKalshi || opp.LegA.Side != types.SideYes {
		t.Errorf("leg A = %s %s, want KALSHI YES", opp.LegA.Venue, opp.LegA.Side)
	}
	if !opp.LegA.Price.Equal(dec("0.40")) {
		t.Errorf("leg A price = %s, want 0.40", opp.LegA.Price)
	}
	if opp.LegB.Venue != types.VenueIBKR || opp.LegB.Side != types.SideNo {
		t.Errorf("leg B = %s %s, want IBKR NO", opp.LegB.Venue, opp.LegB.Side)
	}
	if !opp.LegB.Price.Equal(dec("0.43")) {
		t.Errorf("leg B price = %s, want 0.43", opp.LegB.Price)
	}
	if !opp.GrossProfit.Equal(dec("0.17")) {
		t.Errorf("gross = %s, want 0.17", opp.GrossProfit)
	}
	if !opp.FeeA.Equal(dec("0.02")) {
		t.Errorf("fee A = %s, want 0.02", opp.FeeA)
	}
	if !opp.FeeB.Equal(dec("0.01")) {
		t.Errorf("fee B = %s, want 0.01", opp.FeeB)
	}
	if !opp.NetProfit.Equal(dec("0.13")) {
		t.Errorf("net = %s, want 0.13", opp.NetProfit)
	}
	if opp.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", opp.Quantity)
	}
}

func TestDetector_NoArbWhenSumsExceedParity(t *testing.T) {
	d := newTestDetector("0", "0")

	kalshi := tick(types.VenueKalshi, "0.52", "0.49")
	ibkr := tick(types.VenueIBKR, "0.52", "0.49")

	if opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr); opp != nil {
		t.Fatalf("expected nil, got %s", opp)
	}
}

func TestDetector_ParityBoundary(t *testing.T) {
	d := newTestDetector("0", "0")

	tests := []struct {
		name             string
		kalshiYes, ibkrNo string
		want             bool
	}{
		{"sum-above-one", "0.60", "0.50", false},
		{"sum-exactly-one", "0.50", "0.50", false},
		{"sum-below-one", "0.40", "0.43", true},
		{"deep-discount", "0.10", "0.10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kalshi := tick(types.VenueKalshi, tt.kalshiYes, "")
			ibkr := tick(types.VenueIBKR, "", tt.ibkrNo)

			opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr)
			if got := opp != nil; got != tt.want {
				t.Errorf("got opportunity=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_PicksBetterPairing(t *testing.T) {
	d := newTestDetector("0", "0")

	// YES+NO sums: pairing one 0.45+0.45=0.90, pairing two 0.40+0.40=0.80.
	kalshi := tick(types.VenueKalshi, "0.45", "0.40")
	ibkr := tick(types.VenueIBKR, "0.40", "0.45")

	opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.LegA.Side != types.SideNo {
		t.Errorf("leg A side = %s, want NO (the wider pairing)", opp.LegA.Side)
	}
	if opp.LegB.Side != types.SideYes {
		t.Errorf("leg B side = %s, want YES", opp.LegB.Side)
	}
	if !opp.GrossProfit.Equal(dec("0.20")) {
		t.Errorf("gross = %s, want 0.20", opp.GrossProfit)
	}
}

func TestDetector_TieGoesToYesOnKalshi(t *testing.T) {
	d := newTestDetector("0", "0")

	// Both pairings cost 0.80 at the same prices, so fees and nets match.
	kalshi := tick(types.VenueKalshi, "0.40", "0.40")
	ibkr := tick(types.VenueIBKR, "0.40", "0.40")

	opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.LegA.Side != types.SideYes {
		t.Errorf("tie broke to leg A side %s, want YES", opp.LegA.Side)
	}
	if opp.LegB.Side != types.SideNo {
		t.Errorf("tie broke to leg B side %s, want NO", opp.LegB.Side)
	}
}

func TestDetector_MinProfitFilters(t *testing.T) {
	d := newTestDetector("0.20", "0.01")

	// Same ticks net 0.13, below the 0.20 floor.
	kalshi := tick(types.VenueKalshi, "0.40", "0.60")
	ibkr := tick(types.VenueIBKR, "0.55", "0.43")

	if opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr); opp != nil {
		t.Fatalf("expected nil, got net %s", opp.NetProfit)
	}
}

func TestDetector_SlippageErodesNet(t *testing.T) {
	withSlip := newTestDetector("0", "0.05")
	noSlip := newTestDetector("0", "0")

	kalshi := tick(types.VenueKalshi, "0.40", "0.60")
	ibkr := tick(types.VenueIBKR, "0.55", "0.43")

	a := noSlip.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	b := withSlip.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	if a == nil || b == nil {
		t.Fatal("expected opportunities from both")
	}
	if !a.NetProfit.Sub(b.NetProfit).Equal(dec("0.05")) {
		t.Errorf("net gap = %s, want 0.05", a.NetProfit.Sub(b.NetProfit))
	}
}

func TestDetector_MissingQuotes(t *testing.T) {
	d := newTestDetector("0", "0")

	tests := []struct {
		name   string
		kalshi *types.NormalizedTick
		ibkr   *types.NormalizedTick
		want   bool
	}{
		{"nil-kalshi", nil, tick(types.VenueIBKR, "0.40", "0.40"), false},
		{"nil-ibkr", tick(types.VenueKalshi, "0.40", "0.40"), nil, false},
		{"only-first-pairing-quotable",
			tick(types.VenueKalshi, "0.40", ""),
			tick(types.VenueIBKR, "", "0.43"),
			true},
		{"no-overlapping-sides",
			tick(types.VenueKalshi, "0.40", ""),
			tick(types.VenueIBKR, "0.43", ""),
			false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := d.Evaluate("FED-CUT-DEC", tt.kalshi, tt.ibkr)
			if got := opp != nil; got != tt.want {
				t.Errorf("got opportunity=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_NetIsExactDecimal(t *testing.T) {
	d := newTestDetector("0", "0")

	// Prices chosen so float arithmetic would drift.
	kalshi := tick(types.VenueKalshi, "0.33", "0.70")
	ibkr := tick(types.VenueIBKR, "0.72", "0.31")

	opp := d.Evaluate("FED-CUT-DEC", kalshi, ibkr)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	// gross = 1 - (0.33 + 0.31) = 0.36; kalshi fee at 0.33 is
	// ceil(0.07*0.33*0.67) = ceil(0.015477) = 0.02; ibkr fee 0.01.
	if !opp.GrossProfit.Equal(dec("0.36")) {
		t.Errorf("gross = %s, want 0.36", opp.GrossProfit)
	}
	if !opp.NetProfit.Equal(dec("0.33")) {
		t.Errorf("net = %s, want 0.33", opp.NetProfit)
	}
}
