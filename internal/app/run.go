package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("session-id", a.sessionID),
		zap.String("mode", a.execCfg.Mode),
		zap.Int("symbols", a.symbols.Len()),
		zap.String("kalshi-balance", a.opts.KalshiBalance.String()),
		zap.String("ibkr-balance", a.opts.IBKRBalance.String()))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("kalshi-ws-url", a.cfg.KalshiWSURL),
		zap.String("ibkr-gateway-url", a.cfg.IBKRGatewayURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.runPersistLoop()

	a.kalshiFeed.Start(a.ctx)
	a.ibkrFeed.Start(a.ctx)

	err := a.kalshi.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start kalshi gateway: %w", err)
	}

	err = a.ibkr.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start ibkr gateway: %w", err)
	}

	a.pipelineWg.Add(1)
	go a.runOpportunityLoop()

	a.pipelineWg.Add(1)
	go a.runSpreadSweeper()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// runOpportunityLoop drains the book's detections through the gate and,
// in live mode, hands admitted opportunities to the executor. Executions
// run in their own goroutines; the executor serializes per symbol, so
// different symbols trade concurrently while the loop keeps draining.
func (a *App) runOpportunityLoop() {
	defer a.pipelineWg.Done()

	for opp := range a.book.Opportunities() {
		sized, ok := a.gate.Admit(opp)
		if !ok {
			continue
		}

		a.persist(sized)

		if a.executor == nil {
			continue
		}
		if !a.breaker.Allow() {
			a.logger.Warn("execution-blocked-by-breaker",
				zap.String("symbol", sized.Symbol),
				zap.String("opportunity-id", sized.ID))
			continue
		}

		a.pipelineWg.Add(1)
		go a.execute(sized)
	}
}

func (a *App) execute(opp *arbitrage.Opportunity) {
	defer a.pipelineWg.Done()

	res := a.executor.Execute(a.ctx, opp)
	a.breaker.RecordResult(res)
	a.persist(res)
	a.persistPositions(res)
}

// positionRecord carries one venue position row to the persistence loop.
type positionRecord struct {
	venue types.Venue
	pos   types.VenuePosition
}

// persistPositions upserts every position an execution touched, so the
// stored positions survive a mid-session crash; the shutdown sweep is
// only the final snapshot.
func (a *App) persistPositions(res *types.ExecutionResult) {
	fills := []types.LegFill{res.LegA, res.LegB}
	if res.Hedge != nil {
		fills = append(fills, *res.Hedge)
	}

	for _, f := range fills {
		if f.Quantity == 0 {
			continue
		}
		acct, ok := a.ledger.Account(f.Venue)
		if !ok {
			continue
		}
		pos := acct.Position(res.Symbol, f.Side)
		a.persist(&positionRecord{
			venue: f.Venue,
			pos: types.VenuePosition{
				Symbol:  res.Symbol,
				Side:    f.Side,
				Qty:     pos.Qty,
				AvgCost: pos.AvgCost,
			},
		})
	}
}

// runSpreadSweeper periodically records every symbol's parity sums and
// logs a session heartbeat.
func (a *App) runSpreadSweeper() {
	defer a.pipelineWg.Done()

	ticker := time.NewTicker(a.logInterval())
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range a.book.Symbols() {
				snap, ok := a.book.Spread(symbol)
				if !ok {
					continue
				}
				a.persist(snap)
			}

			stats := a.gate.Stats()
			a.logger.Info("session-heartbeat",
				zap.String("session-id", a.sessionID),
				zap.Int64("opportunities-considered", stats.Considered),
				zap.Int64("opportunities-admitted", stats.Admitted),
				zap.Int64("rejected-stale", stats.Stale),
				zap.Int64("rejected-other", stats.Rejected),
				zap.Bool("kalshi-connected", a.kalshi.Connected()))
		}
	}
}

// persist enqueues an item for the persistence loop; a full queue blocks
// briefly rather than dropping the trading record.
func (a *App) persist(item interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.persistQueue.Put(ctx, item)
	if err != nil {
		a.logger.Error("persist-enqueue-failed", zap.Error(err))
	}
}

// runPersistLoop is the single consumer of the persistence queue. It
// keeps draining until the queue is closed and empty, so records
// enqueued during shutdown still land.
func (a *App) runPersistLoop() {
	defer a.wg.Done()

	for {
		item, err := a.persistQueue.Get(context.Background())
		if err != nil {
			return
		}

		a.storeItem(item)
	}
}

func (a *App) storeItem(item interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch v := item.(type) {
	case *arbitrage.Opportunity:
		err = a.store.StoreOpportunity(ctx, v)
	case *types.ExecutionResult:
		err = a.store.StoreExecution(ctx, v)
	case *types.SpreadSnapshot:
		err = a.store.StoreSpread(ctx, v)
	case *positionRecord:
		err = a.store.UpsertPosition(ctx, v.venue, v.pos)
	default:
		a.logger.Error("persist-unknown-item-type")
		return
	}

	if err != nil {
		a.logger.Error("persist-store-failed", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var durationChan <-chan time.Time
	if a.opts.Duration > 0 {
		timer := time.NewTimer(a.opts.Duration)
		defer timer.Stop()
		durationChan = timer.C
	}

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-durationChan:
		a.logger.Info("session-duration-elapsed", zap.Duration("duration", a.opts.Duration))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
