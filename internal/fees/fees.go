// Package fees implements the per-venue fee schedules. All math is exact
// decimal; outputs are quantized to the cent.
package fees

import (
	"github.com/crossbook/event-arb/pkg/types"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Schedule prices the fee for buying qty contracts at a given price.
// Maker fees currently mirror taker fees on both venues; the split exists
// so a future maker rate only needs a constructor change.
type Schedule interface {
	TakerFee(price decimal.Decimal, qty int64) decimal.Decimal
	MakerFee(price decimal.Decimal, qty int64) decimal.Decimal
}

// KalshiSchedule charges rate * qty * price * (1 - price), rounded up to
// the next cent. The fee peaks at price 0.50.
type KalshiSchedule struct {
	takerRate decimal.Decimal
	makerRate decimal.Decimal
}

// DefaultKalshiRate is the published taker rate.
var DefaultKalshiRate = decimal.RequireFromString("0.07")

// NewKalshiSchedule creates the schedule at the default rate.
func NewKalshiSchedule() *KalshiSchedule {
	return NewKalshiScheduleWithRates(DefaultKalshiRate, DefaultKalshiRate)
}

// NewKalshiScheduleWithRates creates a schedule with explicit taker and
// maker rates.
func NewKalshiScheduleWithRates(taker, maker decimal.Decimal) *KalshiSchedule {
	return &KalshiSchedule{takerRate: taker, makerRate: maker}
}

// TakerFee computes ceil_cents(rate * qty * price * (1 - price)).
func (s *KalshiSchedule) TakerFee(price decimal.Decimal, qty int64) decimal.Decimal {
	return kalshiFee(s.takerRate, price, qty)
}

// MakerFee uses the maker rate with the same formula.
func (s *KalshiSchedule) MakerFee(price decimal.Decimal, qty int64) decimal.Decimal {
	return kalshiFee(s.makerRate, price, qty)
}

func kalshiFee(rate, price decimal.Decimal, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	raw := rate.
		Mul(decimal.NewFromInt(qty)).
		Mul(price).
		Mul(one.Sub(price))
	return ceilCents(raw)
}

// IBKRSchedule charges a flat per-contract commission.
type IBKRSchedule struct {
	perContract decimal.Decimal
}

// DefaultIBKRPerContract is the flat commission per contract.
var DefaultIBKRPerContract = decimal.RequireFromString("0.01")

// NewIBKRSchedule creates the schedule at the default commission.
func NewIBKRSchedule() *IBKRSchedule {
	return &IBKRSchedule{perContract: DefaultIBKRPerContract}
}

// NewIBKRScheduleWithCommission creates a schedule with an explicit
// per-contract commission.
func NewIBKRScheduleWithCommission(perContract decimal.Decimal) *IBKRSchedule {
	return &IBKRSchedule{perContract: perContract}
}

// TakerFee is per-contract and independent of price.
func (s *IBKRSchedule) TakerFee(_ decimal.Decimal, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return s.perContract.Mul(decimal.NewFromInt(qty)).Round(2)
}

// MakerFee matches TakerFee.
func (s *IBKRSchedule) MakerFee(price decimal.Decimal, qty int64) decimal.Decimal {
	return s.TakerFee(price, qty)
}

// Book maps venues to their schedules.
type Book struct {
	schedules map[types.Venue]Schedule
}

// NewBook creates a Book with both venues at default rates.
func NewBook() *Book {
	return &Book{
		schedules: map[types.Venue]Schedule{
			types.VenueKalshi: NewKalshiSchedule(),
			types.VenueIBKR:   NewIBKRSchedule(),
		},
	}
}

// NewBookWithSchedules creates a Book from explicit schedules.
func NewBookWithSchedules(schedules map[types.Venue]Schedule) *Book {
	return &Book{schedules: schedules}
}

// TakerFee returns the taker fee for a venue, or zero for an unknown venue.
func (b *Book) TakerFee(venue types.Venue, price decimal.Decimal, qty int64) decimal.Decimal {
	s, ok := b.schedules[venue]
	if !ok {
		return decimal.Zero
	}
	return s.TakerFee(price, qty)
}

// ceilCents rounds up toward the next cent.
func ceilCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Ceil().Shift(-2)
}
