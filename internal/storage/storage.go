// Package storage persists the session's trading record: admitted
// opportunities, execution results, spread snapshots, and positions.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

// Storage is the persistence interface for one trading session.
type Storage interface {
	// StoreOpportunity records an admitted opportunity.
	StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error

	// StoreExecution records a terminal execution result.
	StoreExecution(ctx context.Context, res *types.ExecutionResult) error

	// StoreSpread records a periodic spread snapshot.
	StoreSpread(ctx context.Context, snap *types.SpreadSnapshot) error

	// UpsertPosition records the current position for a venue/symbol/side.
	UpsertPosition(ctx context.Context, venue types.Venue, pos types.VenuePosition) error

	// SessionSummary aggregates this session's record.
	SessionSummary(ctx context.Context) (*Summary, error)

	// Close releases the underlying connection.
	Close() error
}

// Summary is the end-of-session aggregate.
type Summary struct {
	SessionID     string
	Opportunities int64
	Executions    int64
	Committed     int64
	RolledBack    int64
	Failed        int64
	NetProfit     decimal.Decimal
}
