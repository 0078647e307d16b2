package types

import "github.com/shopspring/decimal"

// OrderStatus is the lifecycle state of a venue order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether no further fills can occur.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

// OrderRequest is a limit buy for a number of contracts on one side.
// The system only buys; unwinding happens by buying the opposite side.
type OrderRequest struct {
	Venue      Venue
	Symbol     string
	Side       Side
	Quantity   int64
	LimitPrice decimal.Decimal
}

// OrderState is a venue's view of an order at a point in time.
type OrderState struct {
	OrderID      string
	Status       OrderStatus
	FilledQty    int64
	AvgFillPrice decimal.Decimal
}

// VenuePosition is a position as reported by a venue.
type VenuePosition struct {
	Symbol  string
	Side    Side
	Qty     int64
	AvgCost decimal.Decimal
}
