package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionOutcome is the single terminal outcome of an execution attempt.
type ExecutionOutcome string

const (
	// OutcomeCommitted means both legs filled and positions are held.
	OutcomeCommitted ExecutionOutcome = "committed"
	// OutcomeFailed means nothing filled and all reservations were released.
	OutcomeFailed ExecutionOutcome = "failed"
	// OutcomeRolledBack means leg A filled, leg B did not, and a hedging
	// order was placed on leg A's venue.
	OutcomeRolledBack ExecutionOutcome = "rolled_back"
)

// LegFill records what actually happened on one leg.
type LegFill struct {
	Venue    Venue
	Side     Side
	OrderID  string
	Quantity int64
	Price    decimal.Decimal // average fill price
	Fee      decimal.Decimal
	Filled   bool
}

// ExecutionResult is emitted exactly once per execution attempt and never
// mutated afterwards.
type ExecutionResult struct {
	ID            string
	OpportunityID string
	Symbol        string
	Outcome       ExecutionOutcome

	LegA  LegFill
	LegB  LegFill
	Hedge *LegFill // set only on rollback

	TotalCost decimal.Decimal
	TotalFees decimal.Decimal
	NetProfit decimal.Decimal

	// ManualIntervention flags a rollback whose hedge did not fill.
	// Such a result is surfaced prominently but never halts the system.
	ManualIntervention bool

	Reason     string
	ExecutedAt time.Time
}
