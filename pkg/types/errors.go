package types

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by a bounded queue with the Reject policy
	// when the queue is at capacity.
	ErrQueueFull = errors.New("event queue full")

	// ErrQueueClosed is returned once a bounded queue has been closed and
	// drained.
	ErrQueueClosed = errors.New("event queue closed")

	// ErrInsufficientCapital means a reservation exceeded available cash.
	// Rejections for this reason are expected and not counted as failures.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrUnknownSymbol means a message referenced a symbol with no mapping.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrNotTick means a raw gateway event carries no price information.
	ErrNotTick = errors.New("not a tick-bearing event")

	// ErrNoData means a raw event carried sentinel no-data values.
	ErrNoData = errors.New("no usable price data")
)

// OrderError wraps a failure talking to a venue about a specific order.
type OrderError struct {
	Venue   Venue
	Op      string // "place", "cancel", "status"
	OrderID string
	Err     error
}

func (e *OrderError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s order %s: %v", e.Venue, e.Op, e.Err)
	}
	return fmt.Sprintf("%s order %s %s: %v", e.Venue, e.Op, e.OrderID, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}
