package types

import "time"

// TickUpdate is one venue event after normalization: one or both sides of
// the top of book for a unified symbol. Venues that publish YES and NO as
// separate instruments produce single-sided updates; the feed's assembler
// merges them.
//
// Derived flags mark asks approximated from the opposite side's bid
// rather than quoted explicitly; the assembler never lets a derived half
// replace an explicit one.
type TickUpdate struct {
	Venue  Venue
	Symbol string

	YesAsk     *Quote
	NoAsk      *Quote
	YesDerived bool
	NoDerived  bool

	TSVenue time.Time
	TSLocal time.Time
}
