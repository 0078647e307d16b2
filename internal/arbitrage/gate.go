package arbitrage

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/internal/ledger"
	"github.com/crossbook/event-arb/pkg/cache"
	"github.com/crossbook/event-arb/pkg/config"
	"github.com/crossbook/event-arb/pkg/types"
)

// Staleness reports how old the latest tick for a venue/symbol pair is.
// Implemented by the feed's staleness cache; an interface here keeps the
// detection layer independent of feed internals.
type Staleness interface {
	// Age returns the time since the last tick was received, and false
	// when no tick has been seen at all.
	Age(venue types.Venue, symbol string) (time.Duration, bool)
}

// GateStats is a point-in-time snapshot of gate counters, reported in the
// session summary.
type GateStats struct {
	Considered int64
	Admitted   int64
	Stale      int64
	Rejected   int64
}

// Gate decides whether a detected opportunity is actionable: its source
// ticks must be fresh, the symbol must not be in cooldown, and a positive
// quantity must survive capital and position limits. Admitted
// opportunities come back as sized copies; the detector's original is
// never touched.
type Gate struct {
	exec        *config.ExecutionConfig
	ledger      *ledger.Ledger
	staleness   Staleness
	feeBook     *fees.Book
	cooldown    cache.Cache
	cooldownTTL time.Duration
	logger      *zap.Logger

	considered atomic.Int64
	admitted   atomic.Int64
	stale      atomic.Int64
	rejected   atomic.Int64
}

// GateConfig wires the gate's collaborators. Cooldown is optional; when
// nil the gate admits repeat opportunities for the same symbol
// back-to-back.
type GateConfig struct {
	Exec        *config.ExecutionConfig
	Ledger      *ledger.Ledger
	Staleness   Staleness
	FeeBook     *fees.Book
	Cooldown    cache.Cache
	CooldownTTL time.Duration
	Logger      *zap.Logger
}

// NewGate creates an admission gate.
func NewGate(cfg GateConfig) *Gate {
	ttl := cfg.CooldownTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Gate{
		exec:        cfg.Exec,
		ledger:      cfg.Ledger,
		staleness:   cfg.Staleness,
		feeBook:     cfg.FeeBook,
		cooldown:    cfg.Cooldown,
		cooldownTTL: ttl,
		logger:      cfg.Logger,
	}
}

// Admit checks freshness and cooldown, sizes the opportunity against
// capital and position limits, and re-prices it at the chosen quantity.
// It returns a sized copy and true, or nil and false.
func (g *Gate) Admit(opp *Opportunity) (*Opportunity, bool) {
	g.considered.Add(1)
	defer g.observeLatency(opp)

	if !g.fresh(opp.LegA.Venue, opp.Symbol) || !g.fresh(opp.LegB.Venue, opp.Symbol) {
		g.stale.Add(1)
		OpportunitiesGatedTotal.WithLabelValues("stale_tick").Inc()
		g.logger.Debug("opportunity-gated-stale",
			zap.String("opportunity-id", opp.ID),
			zap.String("symbol", opp.Symbol))
		return nil, false
	}

	if g.inCooldown(opp.Symbol) {
		g.rejected.Add(1)
		OpportunitiesGatedTotal.WithLabelValues("cooldown").Inc()
		return nil, false
	}

	qty := g.size(opp)
	if qty <= 0 {
		g.rejected.Add(1)
		OpportunitiesGatedTotal.WithLabelValues("no_size").Inc()
		g.logger.Debug("opportunity-gated-no-size",
			zap.String("opportunity-id", opp.ID),
			zap.String("symbol", opp.Symbol))
		return nil, false
	}

	sized := g.repriceAt(opp, qty)
	if !sized.NetProfit.IsPositive() {
		g.rejected.Add(1)
		OpportunitiesGatedTotal.WithLabelValues("negative_net_at_size").Inc()
		g.logger.Debug("opportunity-gated-negative-net",
			zap.String("opportunity-id", opp.ID),
			zap.String("symbol", opp.Symbol),
			zap.Int64("quantity", qty),
			zap.String("net-profit", sized.NetProfit.String()))
		return nil, false
	}

	g.markCooldown(opp.Symbol)
	g.admitted.Add(1)
	OpportunitiesAdmittedTotal.Inc()
	OpportunityQuantity.Observe(float64(qty))

	g.logger.Info("opportunity-admitted",
		zap.String("opportunity-id", sized.ID),
		zap.String("symbol", sized.Symbol),
		zap.Int64("quantity", sized.Quantity),
		zap.String("leg-a-side", string(sized.LegA.Side)),
		zap.String("leg-a-price", sized.LegA.Price.String()),
		zap.String("leg-b-side", string(sized.LegB.Side)),
		zap.String("leg-b-price", sized.LegB.Price.String()),
		zap.String("net-profit", sized.NetProfit.String()))

	return sized, true
}

// Stats returns the current gate counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Considered: g.considered.Load(),
		Admitted:   g.admitted.Load(),
		Stale:      g.stale.Load(),
		Rejected:   g.rejected.Load(),
	}
}

func (g *Gate) fresh(venue types.Venue, symbol string) bool {
	age, ok := g.staleness.Age(venue, symbol)
	return ok && age <= g.exec.MaxStale()
}

func (g *Gate) inCooldown(symbol string) bool {
	if g.cooldown == nil {
		return false
	}
	_, found := g.cooldown.Get(cooldownKey(symbol))
	return found
}

func (g *Gate) markCooldown(symbol string) {
	if g.cooldown == nil {
		return
	}
	g.cooldown.Set(cooldownKey(symbol), time.Now(), g.cooldownTTL)
}

func cooldownKey(symbol string) string {
	return "cooldown:" + symbol
}

// size returns the largest quantity the limits allow: capital cap per
// market, per-event position caps on each leg, and available (unreserved)
// cash on each venue.
func (g *Gate) size(opp *Opportunity) int64 {
	costPerPair := opp.CostPerPair()
	qty := g.exec.MaxCapitalPerMarket.Div(costPerPair).Floor().IntPart()

	acctA, okA := g.ledger.Account(opp.LegA.Venue)
	acctB, okB := g.ledger.Account(opp.LegB.Venue)
	if !okA || !okB {
		return 0
	}

	if room := g.exec.MaxContractsPerEvent - acctA.PositionQty(opp.Symbol, opp.LegA.Side); room < qty {
		qty = room
	}
	if room := g.exec.MaxContractsPerEvent - acctB.PositionQty(opp.Symbol, opp.LegB.Side); room < qty {
		qty = room
	}

	if cash := acctA.Available().Div(opp.LegA.Price).Floor().IntPart(); cash < qty {
		qty = cash
	}
	if cash := acctB.Available().Div(opp.LegB.Price).Floor().IntPart(); cash < qty {
		qty = cash
	}

	if qty < 0 {
		return 0
	}
	return qty
}

// repriceAt returns a copy of opp with profit and fees recomputed at qty.
// Kalshi's fee is convex in quantity, so the unit net cannot simply be
// multiplied.
func (g *Gate) repriceAt(opp *Opportunity, qty int64) *Opportunity {
	q := decimal.NewFromInt(qty)

	gross := one.Sub(opp.CostPerPair()).Mul(q)
	feeA := g.feeBook.TakerFee(opp.LegA.Venue, opp.LegA.Price, qty)
	feeB := g.feeBook.TakerFee(opp.LegB.Venue, opp.LegB.Price, qty)
	slippage := opp.SlippageBuffer.Mul(q)
	net := gross.Sub(feeA).Sub(feeB).Sub(slippage)

	sized := *opp
	sized.Quantity = qty
	sized.GrossProfit = gross
	sized.FeeA = feeA
	sized.FeeB = feeB
	sized.SlippageBuffer = slippage
	sized.NetProfit = net
	return &sized
}

func (g *Gate) observeLatency(opp *Opportunity) {
	oldest := opp.TickAReceivedAt
	if opp.TickBReceivedAt.Before(oldest) {
		oldest = opp.TickBReceivedAt
	}
	if oldest.IsZero() {
		return
	}
	TickToGateSeconds.Observe(time.Since(oldest).Seconds())
}
