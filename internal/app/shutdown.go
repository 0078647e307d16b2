package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/pkg/types"
)

// Shutdown drains the pipeline in dependency order: gateways first so no
// new data arrives, then feeds, then the book, then the persistence
// queue so every record enqueued on the way down still lands. The
// session summary is written last.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down", zap.String("session-id", a.sessionID))

	a.healthChecker.SetReady(false)

	// Stop the inflow.
	err := a.kalshi.Close()
	if err != nil {
		a.logger.Error("kalshi-gateway-close-error", zap.Error(err))
	}
	err = a.ibkr.Close()
	if err != nil {
		a.logger.Error("ibkr-gateway-close-error", zap.Error(err))
	}

	// Cancel the run context: feeds, sweeper, and in-flight executions
	// wind down. The executor's own cancel path still runs detached.
	a.cancel()

	a.kalshiQueue.Close()
	a.ibkrQueue.Close()
	a.kalshiFeed.Close()
	a.ibkrFeed.Close()

	// Closing the book ends the opportunity loop; wait for it and any
	// in-flight executions before the persistence queue stops accepting.
	a.book.Close()
	a.pipelineWg.Wait()

	a.recordFinalPositions()

	// Let the persistence loop drain what is already queued, then stop it.
	a.persistQueue.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logSessionSummary(shutdownCtx)

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete", zap.String("session-id", a.sessionID))

	return nil
}

// recordFinalPositions writes the ledger's positions straight to storage;
// the persistence queue may already be winding down.
func (a *App) recordFinalPositions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, venue := range types.Venues() {
		account, ok := a.ledger.Account(venue)
		if !ok {
			continue
		}
		for _, pos := range account.Positions() {
			err := a.store.UpsertPosition(ctx, venue, pos)
			if err != nil {
				a.logger.Error("position-store-failed",
					zap.String("venue", string(venue)),
					zap.String("symbol", pos.Symbol),
					zap.Error(err))
			}
		}
	}
}

func (a *App) logSessionSummary(ctx context.Context) {
	summary, err := a.store.SessionSummary(ctx)
	if err != nil {
		a.logger.Error("session-summary-failed", zap.Error(err))
		return
	}

	stats := a.gate.Stats()
	fields := []zap.Field{
		zap.String("session-id", summary.SessionID),
		zap.Int64("opportunities-admitted", summary.Opportunities),
		zap.Int64("opportunities-considered", stats.Considered),
		zap.Int64("executions", summary.Executions),
		zap.Int64("committed", summary.Committed),
		zap.Int64("rolled-back", summary.RolledBack),
		zap.Int64("failed", summary.Failed),
		zap.String("net-profit", summary.NetProfit.String()),
	}

	for _, snap := range a.ledger.Snapshots() {
		fields = append(fields,
			zap.String("final-cash-"+string(snap.Venue), snap.Available.String()))
	}

	a.logger.Info("session-summary", fields...)
}
