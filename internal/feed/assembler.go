package feed

import (
	"sync"
	"time"

	"github.com/crossbook/event-arb/pkg/types"
)

// Assembler merges single-sided tick updates into full ticks for one
// venue. It holds the latest YES and NO halves per symbol with a shared
// receipt timestamp that advances on every half-update, and emits a full
// tick only when both halves are present. The assembler does not age
// entries; freshness is the staleness cache's job.
type Assembler struct {
	venue types.Venue

	mu      sync.Mutex
	entries map[string]*assemblerEntry
}

type assemblerEntry struct {
	yes        *types.Quote
	no         *types.Quote
	yesDerived bool
	noDerived  bool
	tsVenue    time.Time
	tsLocal    time.Time
}

// NewAssembler creates an assembler for one venue.
func NewAssembler(venue types.Venue) *Assembler {
	return &Assembler{
		venue:   venue,
		entries: make(map[string]*assemblerEntry),
	}
}

// Apply merges an update and returns the resulting full tick, or false
// when one side is still missing. A derived half never overwrites an
// explicit one; explicit halves overwrite anything.
func (a *Assembler) Apply(u *types.TickUpdate) (*types.NormalizedTick, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[u.Symbol]
	if !ok {
		e = &assemblerEntry{}
		a.entries[u.Symbol] = e
	}

	if u.YesAsk != nil && (e.yes == nil || e.yesDerived || !u.YesDerived) {
		e.yes = u.YesAsk
		e.yesDerived = u.YesDerived
	}
	if u.NoAsk != nil && (e.no == nil || e.noDerived || !u.NoDerived) {
		e.no = u.NoAsk
		e.noDerived = u.NoDerived
	}

	// Receipt time advances on every half-update, even a suppressed one:
	// the venue proved it is alive for this symbol.
	e.tsLocal = u.TSLocal
	if !u.TSVenue.IsZero() {
		e.tsVenue = u.TSVenue
	}

	if e.yes == nil || e.no == nil {
		return nil, false
	}

	return &types.NormalizedTick{
		Venue:   a.venue,
		Symbol:  u.Symbol,
		YesAsk:  e.yes,
		NoAsk:   e.no,
		TSVenue: e.tsVenue,
		TSLocal: e.tsLocal,
	}, true
}

// Reset drops all held halves, used alongside MarkAllStale on reconnect.
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.entries = make(map[string]*assemblerEntry)
	a.mu.Unlock()
}
