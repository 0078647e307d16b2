package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

// ConsoleStorage implements Storage by pretty-printing to the console and
// keeping in-memory aggregates. It is the dry-run default when no
// database is configured.
type ConsoleStorage struct {
	sessionID string
	logger    *zap.Logger

	mu      sync.Mutex
	summary Summary
}

// NewConsoleStorage creates a console storage for one session.
func NewConsoleStorage(sessionID string, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized", zap.String("session-id", sessionID))
	return &ConsoleStorage{
		sessionID: sessionID,
		logger:    logger,
		summary:   Summary{SessionID: sessionID},
	}
}

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// StoreOpportunity pretty-prints an admitted opportunity.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	c.mu.Lock()
	c.summary.Opportunities++
	c.mu.Unlock()

	fmt.Println("\n" + rule)
	fmt.Printf("🎯 ARBITRAGE OPPORTUNITY\n")
	fmt.Println(rule)
	fmt.Printf("ID:       %s\n", opp.ID[:8])
	fmt.Printf("Symbol:   %s\n", opp.Symbol)
	fmt.Printf("Time:     %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Leg A:    %s %s @ %s x%d\n", opp.LegA.Venue, opp.LegA.Side, opp.LegA.Price, opp.Quantity)
	fmt.Printf("Leg B:    %s %s @ %s x%d\n", opp.LegB.Venue, opp.LegB.Side, opp.LegB.Price, opp.Quantity)
	fmt.Printf("Gross:    $%s/pair  Fees: $%s + $%s  Net: $%s/pair\n",
		opp.GrossProfit, opp.FeeA, opp.FeeB, opp.NetProfit)
	fmt.Println(rule)

	return nil
}

// StoreExecution pretty-prints a terminal execution result.
func (c *ConsoleStorage) StoreExecution(ctx context.Context, res *types.ExecutionResult) error {
	c.mu.Lock()
	c.summary.Executions++
	switch res.Outcome {
	case types.OutcomeCommitted:
		c.summary.Committed++
	case types.OutcomeRolledBack:
		c.summary.RolledBack++
	case types.OutcomeFailed:
		c.summary.Failed++
	}
	c.summary.NetProfit = c.summary.NetProfit.Add(res.NetProfit)
	c.mu.Unlock()

	fmt.Println("\n" + rule)
	fmt.Printf("⚡ EXECUTION %s\n", res.Outcome)
	fmt.Println(rule)
	fmt.Printf("ID:        %s (opportunity %s)\n", res.ID[:8], res.OpportunityID[:8])
	fmt.Printf("Symbol:    %s\n", res.Symbol)
	fmt.Printf("Leg A:     %s %s filled %d @ %s\n", res.LegA.Venue, res.LegA.Side, res.LegA.Quantity, res.LegA.Price)
	fmt.Printf("Leg B:     %s %s filled %d @ %s\n", res.LegB.Venue, res.LegB.Side, res.LegB.Quantity, res.LegB.Price)
	if res.Hedge != nil {
		fmt.Printf("Hedge:     %s %s filled %d @ %s\n", res.Hedge.Venue, res.Hedge.Side, res.Hedge.Quantity, res.Hedge.Price)
	}
	fmt.Printf("Cost:      $%s  Fees: $%s  Net: $%s\n", res.TotalCost, res.TotalFees, res.NetProfit)
	if res.ManualIntervention {
		fmt.Printf("⚠️  MANUAL INTERVENTION REQUIRED: unhedged exposure remains\n")
	}
	if res.Reason != "" {
		fmt.Printf("Reason:    %s\n", res.Reason)
	}
	fmt.Println(rule)

	return nil
}

// StoreSpread logs a spread snapshot at debug level; snapshots are too
// frequent for the console.
func (c *ConsoleStorage) StoreSpread(ctx context.Context, snap *types.SpreadSnapshot) error {
	c.logger.Debug("spread-snapshot",
		zap.String("symbol", snap.Symbol),
		zap.String("kalshi-sum", snap.KalshiSum.String()),
		zap.String("ibkr-sum", snap.IBKRSum.String()),
		zap.String("cross-yes-kalshi", snap.CrossYesKalshiNoIBKR.String()),
		zap.String("cross-no-kalshi", snap.CrossNoKalshiYesIBKR.String()))
	return nil
}

// UpsertPosition logs the position change.
func (c *ConsoleStorage) UpsertPosition(ctx context.Context, venue types.Venue, pos types.VenuePosition) error {
	c.logger.Info("position-updated",
		zap.String("venue", string(venue)),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Int64("quantity", pos.Qty),
		zap.String("avg-cost", pos.AvgCost.String()))
	return nil
}

// SessionSummary returns the in-memory aggregates.
func (c *ConsoleStorage) SessionSummary(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.summary
	return &out, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
