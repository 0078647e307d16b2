// Package execution runs admitted opportunities through the two-legged
// state machine: reserve both legs, fill leg A, fill leg B for leg A's
// actual quantity, commit - with rollback onto a hedge order when leg B
// cannot be completed. Capital consistency is the package's contract: no
// terminal result leaves a reservation behind.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/internal/ledger"
	"github.com/crossbook/event-arb/pkg/types"
)

// OrderClient is the order surface of one venue's gateway.
type OrderClient interface {
	PlaceOrder(ctx context.Context, req *types.OrderRequest) (*types.OrderState, error)
	CancelOrder(ctx context.Context, orderID string) (*types.OrderState, error)
	GetOrder(ctx context.Context, orderID string) (*types.OrderState, error)
}

// DefaultHedgePrice is the near-certainty limit used to unwind a naked
// leg: buying the opposite side at 99 cents caps the loss at one cent
// per contract plus fees.
var DefaultHedgePrice = decimal.RequireFromString("0.99")

// Executor is the two-legged state machine.
type Executor struct {
	clients      map[types.Venue]OrderClient
	ledger       *ledger.Ledger
	feeBook      *fees.Book
	pollInterval time.Duration
	legTimeout   time.Duration
	hedgeWait    time.Duration
	hedgePrice   decimal.Decimal
	logger       *zap.Logger

	locks *symbolLocks
}

// Config wires the executor's collaborators and deadlines.
type Config struct {
	Clients map[types.Venue]OrderClient
	Ledger  *ledger.Ledger
	FeeBook *fees.Book
	// PollInterval spaces order-status polls within a leg.
	PollInterval time.Duration
	// LegTimeout bounds each leg's fill wait before cancellation.
	LegTimeout time.Duration
	// HedgeWait bounds the rollback hedge's fill wait.
	HedgeWait time.Duration
	// HedgePrice overrides DefaultHedgePrice when set.
	HedgePrice decimal.Decimal
	Logger     *zap.Logger
}

// New creates an executor.
func New(cfg Config) *Executor {
	hedgePrice := cfg.HedgePrice
	if hedgePrice.IsZero() {
		hedgePrice = DefaultHedgePrice
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Executor{
		clients:      cfg.Clients,
		ledger:       cfg.Ledger,
		feeBook:      cfg.FeeBook,
		pollInterval: pollInterval,
		legTimeout:   cfg.LegTimeout,
		hedgeWait:    cfg.HedgeWait,
		hedgePrice:   hedgePrice,
		logger:       cfg.Logger,
		locks:        newSymbolLocks(),
	}
}

// attempt carries one execution's mutable state, including how much of
// each reservation is still outstanding so any exit path (and the panic
// guard) can release exactly what is left.
type attempt struct {
	opp    *arbitrage.Opportunity
	result *types.ExecutionResult

	acctA, acctB         *ledger.Account
	reservedA, reservedB decimal.Decimal
	reservedHedge        decimal.Decimal
}

// Execute runs one admitted opportunity to a terminal result. Executions
// for the same symbol are serialized; the call blocks until terminal.
func (e *Executor) Execute(ctx context.Context, opp *arbitrage.Opportunity) *types.ExecutionResult {
	lock := e.locks.get(opp.Symbol)
	lock.Lock()
	defer lock.Unlock()

	timer := time.Now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(timer).Seconds())
	}()

	at := &attempt{
		opp: opp,
		result: &types.ExecutionResult{
			ID:            uuid.New().String(),
			OpportunityID: opp.ID,
			Symbol:        opp.Symbol,
			ExecutedAt:    time.Now(),
		},
		reservedA:     decimal.Zero,
		reservedB:     decimal.Zero,
		reservedHedge: decimal.Zero,
	}

	// A panic after reservation must not strand reserved cash.
	defer func() {
		if r := recover(); r != nil {
			e.releaseOutstanding(at)
			panic(r)
		}
	}()

	e.run(ctx, at)

	ExecutionsTotal.WithLabelValues(string(at.result.Outcome)).Inc()
	if at.result.ManualIntervention {
		ManualInterventionTotal.Inc()
	}
	e.logResult(at.result)

	return at.result
}

func (e *Executor) run(ctx context.Context, at *attempt) {
	opp := at.opp
	qty := decimal.NewFromInt(opp.Quantity)
	costA := opp.LegA.Price.Mul(qty)
	costB := opp.LegB.Price.Mul(qty)

	var ok bool
	at.acctA, ok = e.ledger.Account(opp.LegA.Venue)
	if !ok {
		e.fail(at, fmt.Sprintf("no account for venue %s", opp.LegA.Venue))
		return
	}
	at.acctB, ok = e.ledger.Account(opp.LegB.Venue)
	if !ok {
		e.fail(at, fmt.Sprintf("no account for venue %s", opp.LegB.Venue))
		return
	}

	// Idle -> Reserved: both legs or neither.
	if err := at.acctA.Reserve(costA); err != nil {
		e.fail(at, fmt.Sprintf("reserve leg A: %v", err))
		return
	}
	at.reservedA = costA

	if err := at.acctB.Reserve(costB); err != nil {
		at.acctA.Release(at.reservedA)
		at.reservedA = decimal.Zero
		e.fail(at, fmt.Sprintf("reserve leg B: %v", err))
		return
	}
	at.reservedB = costB

	// Reserved -> LegA-Open -> terminal.
	legA := e.runLeg(ctx, opp.LegA, opp.Symbol, opp.Quantity, e.legTimeout)
	at.result.LegA = legA

	if legA.Quantity == 0 {
		// Aborted: nothing filled anywhere.
		at.acctA.Release(at.reservedA)
		at.acctB.Release(at.reservedB)
		at.reservedA, at.reservedB = decimal.Zero, decimal.Zero
		e.fail(at, "leg A did not fill")
		return
	}

	// Settle leg A at its actual cost; the overhang (unfilled quantity
	// plus limit-vs-fill price improvement) goes back to available.
	filledA := decimal.NewFromInt(legA.Quantity)
	actualA := legA.Price.Mul(filledA)
	at.acctA.ConfirmSpend(actualA)
	at.acctA.Release(at.reservedA.Sub(actualA))
	at.reservedA = decimal.Zero
	at.acctA.AddPosition(opp.Symbol, opp.LegA.Side, legA.Quantity, legA.Price)

	// Release leg B's reservation for quantity leg A never filled.
	if legA.Quantity < opp.Quantity {
		unfilled := decimal.NewFromInt(opp.Quantity - legA.Quantity)
		at.acctB.Release(opp.LegB.Price.Mul(unfilled))
		at.reservedB = at.reservedB.Sub(opp.LegB.Price.Mul(unfilled))
	}

	// LegA-Filled -> LegB-Open, for the actually-filled quantity.
	legB := e.runLeg(ctx, opp.LegB, opp.Symbol, legA.Quantity, e.legTimeout)
	at.result.LegB = legB

	if legB.Quantity > 0 {
		filledB := decimal.NewFromInt(legB.Quantity)
		actualB := legB.Price.Mul(filledB)
		at.acctB.ConfirmSpend(actualB)
		at.reservedB = at.reservedB.Sub(actualB)
		at.acctB.AddPosition(opp.Symbol, opp.LegB.Side, legB.Quantity, legB.Price)
	}

	// Whatever leg B left unspent goes back.
	if at.reservedB.IsPositive() {
		at.acctB.Release(at.reservedB)
		at.reservedB = decimal.Zero
	}

	unmatched := legA.Quantity - legB.Quantity
	if unmatched == 0 {
		e.commit(at)
		return
	}

	// LegB failed (fully or partially): Rolled-Back via hedge.
	e.rollback(ctx, at, unmatched)
}

// runLeg submits one limit order and polls it to a terminal state within
// the leg timeout. Submit errors are non-fills. The returned fill always
// reflects what the venue reports, including partial fills recovered
// after a cancel.
func (e *Executor) runLeg(ctx context.Context, leg arbitrage.Leg, symbol string, qty int64, wait time.Duration) types.LegFill {
	fill := types.LegFill{Venue: leg.Venue, Side: leg.Side}

	client, ok := e.clients[leg.Venue]
	if !ok {
		e.logger.Error("no-order-client", zap.String("venue", string(leg.Venue)))
		return fill
	}

	req := &types.OrderRequest{
		Venue:      leg.Venue,
		Symbol:     symbol,
		Side:       leg.Side,
		Quantity:   qty,
		LimitPrice: leg.Price,
	}

	state, err := client.PlaceOrder(ctx, req)
	if err != nil {
		OrderErrorsTotal.WithLabelValues(string(leg.Venue), "place").Inc()
		e.logger.Warn("order-place-failed",
			zap.Error(err),
			zap.String("venue", string(leg.Venue)),
			zap.String("symbol", symbol))
		return fill
	}
	fill.OrderID = state.OrderID

	state = e.awaitTerminal(ctx, leg.Venue, client, state, wait)
	return fillFromState(fill, state)
}

// awaitTerminal polls an order until it reaches a terminal status or the
// deadline passes, then cancels and returns the venue's final word.
func (e *Executor) awaitTerminal(ctx context.Context, venue types.Venue, client OrderClient, state *types.OrderState, wait time.Duration) *types.OrderState {
	if state.Status.Terminal() {
		return state
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.cancel(ctx, venue, client, state)
		case <-deadline.C:
			return e.cancel(ctx, venue, client, state)
		case <-ticker.C:
			next, err := client.GetOrder(ctx, state.OrderID)
			if err != nil {
				OrderErrorsTotal.WithLabelValues(string(venue), "poll").Inc()
				e.logger.Warn("order-poll-failed",
					zap.Error(err),
					zap.String("order-id", state.OrderID))
				continue
			}
			state = next
			if state.Status.Terminal() {
				return state
			}
		}
	}
}

// cancel tears down a non-terminal order. The cancel response carries any
// fills that landed before cancellation; those are kept.
func (e *Executor) cancel(ctx context.Context, venue types.Venue, client OrderClient, state *types.OrderState) *types.OrderState {
	// Cancellation must proceed even when the surrounding context is done.
	cancelCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelFn()

	final, err := client.CancelOrder(cancelCtx, state.OrderID)
	if err != nil {
		OrderErrorsTotal.WithLabelValues(string(venue), "cancel").Inc()
		e.logger.Error("order-cancel-failed",
			zap.Error(err),
			zap.String("order-id", state.OrderID))
		return state
	}
	return final
}

func fillFromState(fill types.LegFill, state *types.OrderState) types.LegFill {
	if state == nil {
		return fill
	}
	fill.OrderID = state.OrderID
	fill.Quantity = state.FilledQty
	fill.Price = state.AvgFillPrice
	fill.Filled = state.Status == types.OrderStatusFilled
	return fill
}

// commit finalizes a fully-matched execution using actual fill prices.
func (e *Executor) commit(at *attempt) {
	res := at.result
	matched := decimal.NewFromInt(res.LegB.Quantity)

	res.LegA.Fee = e.feeBook.TakerFee(res.LegA.Venue, res.LegA.Price, res.LegA.Quantity)
	res.LegB.Fee = e.feeBook.TakerFee(res.LegB.Venue, res.LegB.Price, res.LegB.Quantity)

	res.TotalCost = res.LegA.Price.Mul(decimal.NewFromInt(res.LegA.Quantity)).
		Add(res.LegB.Price.Mul(decimal.NewFromInt(res.LegB.Quantity)))
	res.TotalFees = res.LegA.Fee.Add(res.LegB.Fee)
	// Each matched pair settles at exactly $1.00.
	res.NetProfit = matched.Sub(res.TotalCost).Sub(res.TotalFees)
	res.Outcome = types.OutcomeCommitted

	net, _ := res.NetProfit.Float64()
	RealizedProfitUSD.Add(net)
}

// rollback hedges the unmatched leg-A quantity: buy the opposite side on
// leg A's venue at a near-certainty price, capping the loss. The result
// is rolled_back whether or not the hedge fills; an unfilled hedge is
// flagged for manual intervention and never halts the system.
//
// The hedge runs on a context detached from the run context: shutdown
// cancels the run context while executions drain, and a canceled
// context must force the rollback through, not starve it.
func (e *Executor) rollback(ctx context.Context, at *attempt, unmatched int64) {
	opp := at.opp
	res := at.result
	res.Outcome = types.OutcomeRolledBack
	res.Reason = "leg B did not fill"

	RollbacksTotal.Inc()
	e.logger.Warn("execution-rolling-back",
		zap.String("execution-id", res.ID),
		zap.String("symbol", opp.Symbol),
		zap.Int64("unmatched", unmatched))

	hedgeSide := opp.LegA.Side.Opposite()
	hedgeCost := e.hedgePrice.Mul(decimal.NewFromInt(unmatched))

	if err := at.acctA.Reserve(hedgeCost); err != nil {
		// Hedge is unaffordable; surface it rather than over-draw.
		res.ManualIntervention = true
		res.Reason = fmt.Sprintf("hedge reserve failed: %v", err)
		e.finalizeRollback(at, nil)
		return
	}
	at.reservedHedge = hedgeCost

	hedgeCtx, hedgeCancel := context.WithTimeout(context.WithoutCancel(ctx), e.hedgeWait+10*time.Second)
	defer hedgeCancel()

	hedgeLeg := arbitrage.Leg{Venue: opp.LegA.Venue, Side: hedgeSide, Price: e.hedgePrice}
	hedge := e.runLeg(hedgeCtx, hedgeLeg, opp.Symbol, unmatched, e.hedgeWait)
	res.Hedge = &hedge

	if hedge.Quantity > 0 {
		actual := hedge.Price.Mul(decimal.NewFromInt(hedge.Quantity))
		at.acctA.ConfirmSpend(actual)
		at.reservedHedge = at.reservedHedge.Sub(actual)
		at.acctA.AddPosition(opp.Symbol, hedgeSide, hedge.Quantity, hedge.Price)
	}
	if at.reservedHedge.IsPositive() {
		at.acctA.Release(at.reservedHedge)
		at.reservedHedge = decimal.Zero
	}

	if hedge.Quantity < unmatched {
		res.ManualIntervention = true
	}

	e.finalizeRollback(at, res.Hedge)
}

// finalizeRollback prices the damage: matched pairs settle at $1.00,
// hedged pairs settle at $1.00 against leg A plus the hedge price, and
// fees accrue on everything that traded.
func (e *Executor) finalizeRollback(at *attempt, hedge *types.LegFill) {
	res := at.result

	res.LegA.Fee = e.feeBook.TakerFee(res.LegA.Venue, res.LegA.Price, res.LegA.Quantity)
	res.LegB.Fee = e.feeBook.TakerFee(res.LegB.Venue, res.LegB.Price, res.LegB.Quantity)
	res.TotalFees = res.LegA.Fee.Add(res.LegB.Fee)

	res.TotalCost = res.LegA.Price.Mul(decimal.NewFromInt(res.LegA.Quantity)).
		Add(res.LegB.Price.Mul(decimal.NewFromInt(res.LegB.Quantity)))

	var hedgeQty int64
	if hedge != nil && hedge.Quantity > 0 {
		hedgeQty = hedge.Quantity
		hedge.Fee = e.feeBook.TakerFee(hedge.Venue, hedge.Price, hedge.Quantity)
		res.TotalFees = res.TotalFees.Add(hedge.Fee)
		res.TotalCost = res.TotalCost.Add(hedge.Price.Mul(decimal.NewFromInt(hedge.Quantity)))
	}

	// Matched and hedged pairs each settle at exactly $1.00. Unhedged
	// leg-A contracts carry open risk: their cost is excluded from net
	// profit, and the position is flagged via ManualIntervention.
	settled := decimal.NewFromInt(res.LegB.Quantity + hedgeQty)
	unsettled := res.LegA.Quantity - res.LegB.Quantity - hedgeQty
	openCost := res.LegA.Price.Mul(decimal.NewFromInt(unsettled))

	res.NetProfit = settled.Sub(res.TotalCost.Sub(openCost)).Sub(res.TotalFees)

	net, _ := res.NetProfit.Float64()
	RealizedProfitUSD.Add(net)
}

func (e *Executor) fail(at *attempt, reason string) {
	at.result.Outcome = types.OutcomeFailed
	at.result.Reason = reason
}

// releaseOutstanding returns any still-reserved cash; the panic guard's
// last line of defense.
func (e *Executor) releaseOutstanding(at *attempt) {
	if at.acctA != nil && at.reservedA.IsPositive() {
		at.acctA.Release(at.reservedA)
	}
	if at.acctB != nil && at.reservedB.IsPositive() {
		at.acctB.Release(at.reservedB)
	}
	if at.acctA != nil && at.reservedHedge.IsPositive() {
		at.acctA.Release(at.reservedHedge)
	}
}

func (e *Executor) logResult(res *types.ExecutionResult) {
	fields := []zap.Field{
		zap.String("execution-id", res.ID),
		zap.String("opportunity-id", res.OpportunityID),
		zap.String("symbol", res.Symbol),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("leg-a-filled", res.LegA.Quantity),
		zap.Int64("leg-b-filled", res.LegB.Quantity),
		zap.String("net-profit", res.NetProfit.String()),
	}

	switch {
	case res.ManualIntervention:
		e.logger.Error("execution-requires-manual-intervention", fields...)
	case res.Outcome == types.OutcomeRolledBack:
		e.logger.Warn("execution-rolled-back", fields...)
	case res.Outcome == types.OutcomeFailed:
		e.logger.Info("execution-failed", append(fields, zap.String("reason", res.Reason))...)
	default:
		e.logger.Info("execution-committed", fields...)
	}
}
