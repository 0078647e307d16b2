package arbitrage

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/pkg/types"
)

var one = decimal.NewFromInt(1)

// Detector evaluates tick pairs for cross-venue parity gaps. It is pure
// and stateless: equal inputs always yield equal outputs (modulo the
// generated opportunity id), so the Book may call it from inside its
// update critical section.
type Detector struct {
	feeBook   *fees.Book
	slippage  decimal.Decimal
	minProfit decimal.Decimal
	logger    *zap.Logger
}

// Config holds detector parameters.
type Config struct {
	// SlippageBuffer is subtracted per pair to absorb adverse fills.
	SlippageBuffer decimal.Decimal
	// MinNetProfit is the per-pair net below which a pairing is rejected.
	MinNetProfit decimal.Decimal
	Logger       *zap.Logger
}

// New creates a detector.
func New(cfg Config, feeBook *fees.Book) *Detector {
	return &Detector{
		feeBook:   feeBook,
		slippage:  cfg.SlippageBuffer,
		minProfit: cfg.MinNetProfit,
		logger:    cfg.Logger,
	}
}

// Evaluate prices both orthogonal pairings at unit quantity and returns
// the better one, or nil when neither clears the threshold. Ties go to
// the YES-on-Kalshi pairing.
func (d *Detector) Evaluate(symbol string, kalshi, ibkr *types.NormalizedTick) *Opportunity {
	p1 := d.evaluatePairing(symbol, kalshi, types.SideYes, ibkr, types.SideNo)
	p2 := d.evaluatePairing(symbol, kalshi, types.SideNo, ibkr, types.SideYes)

	best := p1
	if best == nil || (p2 != nil && p2.NetProfit.GreaterThan(best.NetProfit)) {
		best = p2
	}

	if best != nil {
		OpportunitiesDetectedTotal.Inc()
		net, _ := best.NetProfit.Float64()
		NetProfitPerPair.Observe(net)

		d.logger.Debug("opportunity-detected",
			zap.String("symbol", symbol),
			zap.String("leg-a-side", string(best.LegA.Side)),
			zap.String("leg-a-price", best.LegA.Price.String()),
			zap.String("leg-b-side", string(best.LegB.Side)),
			zap.String("leg-b-price", best.LegB.Price.String()),
			zap.String("net-profit", best.NetProfit.String()))
	}

	return best
}

// evaluatePairing prices buying sideA on Kalshi plus sideB on IBKR for one
// contract each.
func (d *Detector) evaluatePairing(symbol string, kalshi *types.NormalizedTick, sideA types.Side, ibkr *types.NormalizedTick, sideB types.Side) *Opportunity {
	qa := quoteFor(kalshi, sideA)
	qb := quoteFor(ibkr, sideB)
	if qa == nil || qb == nil {
		PairingsRejectedTotal.WithLabelValues("missing_quote").Inc()
		return nil
	}

	sum := qa.Price.Add(qb.Price)
	if sum.GreaterThanOrEqual(one) {
		PairingsRejectedTotal.WithLabelValues("parity").Inc()
		return nil
	}

	gross := one.Sub(sum)
	feeA := d.feeBook.TakerFee(types.VenueKalshi, qa.Price, 1)
	feeB := d.feeBook.TakerFee(types.VenueIBKR, qb.Price, 1)
	net := gross.Sub(feeA).Sub(feeB).Sub(d.slippage)

	if net.LessThan(d.minProfit) {
		PairingsRejectedTotal.WithLabelValues("below_min_profit").Inc()
		return nil
	}

	legA := Leg{Venue: types.VenueKalshi, Side: sideA, Price: qa.Price, Size: qa.Size}
	legB := Leg{Venue: types.VenueIBKR, Side: sideB, Price: qb.Price, Size: qb.Size}

	return newOpportunity(symbol, legA, legB, gross, feeA, feeB, d.slippage, net,
		kalshi.TSLocal, ibkr.TSLocal)
}

func quoteFor(t *types.NormalizedTick, side types.Side) *types.Quote {
	if t == nil {
		return nil
	}
	if side == types.SideYes {
		return t.YesAsk
	}
	return t.NoAsk
}
