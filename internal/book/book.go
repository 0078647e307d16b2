// Package book holds the central top-of-book state for every unified
// symbol across both venues and drives detection: each accepted tick is
// evaluated against the other venue's latest tick before the update lock
// is released, so no later write can interleave between store and detect.
package book

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

const defaultOpportunityBuffer = 1024

// Book is the venue-indexed tick store.
type Book struct {
	mu    sync.RWMutex
	ticks map[string]map[types.Venue]*types.NormalizedTick // symbol -> venue -> latest

	detector *arbitrage.Detector
	oppChan  chan *arbitrage.Opportunity
	logger   *zap.Logger

	closeOnce sync.Once
}

// Config holds book construction parameters.
type Config struct {
	Detector *arbitrage.Detector
	Logger   *zap.Logger
	// OpportunityBuffer sizes the emission channel; 0 means the default.
	OpportunityBuffer int
}

// New creates an empty book.
func New(cfg Config) *Book {
	buf := cfg.OpportunityBuffer
	if buf <= 0 {
		buf = defaultOpportunityBuffer
	}
	return &Book{
		ticks:    make(map[string]map[types.Venue]*types.NormalizedTick),
		detector: cfg.Detector,
		oppChan:  make(chan *arbitrage.Opportunity, buf),
		logger:   cfg.Logger,
	}
}

// Update replaces the (venue, symbol) cell with the new tick and runs
// detection against the counterpart venue's latest tick. Invalid ticks
// are dropped. Detected opportunities are emitted without blocking; a
// full channel drops the opportunity, not the tick.
func (b *Book) Update(tick *types.NormalizedTick) {
	if err := tick.Validate(); err != nil {
		TicksRejectedTotal.WithLabelValues(string(tick.Venue)).Inc()
		b.logger.Warn("tick-rejected",
			zap.Error(err),
			zap.String("venue", string(tick.Venue)),
			zap.String("symbol", tick.Symbol))
		return
	}

	timer := prometheus.NewTimer(UpdateDuration)
	defer timer.ObserveDuration()

	var opp *arbitrage.Opportunity

	b.mu.Lock()
	byVenue, ok := b.ticks[tick.Symbol]
	if !ok {
		byVenue = make(map[types.Venue]*types.NormalizedTick, len(types.Venues()))
		b.ticks[tick.Symbol] = byVenue
	}
	byVenue[tick.Venue] = tick

	kalshi := byVenue[types.VenueKalshi]
	ibkr := byVenue[types.VenueIBKR]
	if kalshi != nil && ibkr != nil {
		opp = b.detector.Evaluate(tick.Symbol, kalshi, ibkr)
	}
	b.mu.Unlock()

	TicksAppliedTotal.WithLabelValues(string(tick.Venue)).Inc()

	if opp == nil {
		return
	}

	select {
	case b.oppChan <- opp:
	default:
		OpportunitiesDroppedTotal.Inc()
		b.logger.Error("opportunity-channel-full-dropping",
			zap.String("opportunity-id", opp.ID),
			zap.String("symbol", opp.Symbol),
			zap.Int("buffer-size", cap(b.oppChan)))
	}
}

// Opportunities returns the emission channel. It is closed by Close.
func (b *Book) Opportunities() <-chan *arbitrage.Opportunity {
	return b.oppChan
}

// Tick returns the latest tick for a (venue, symbol), if any.
func (b *Book) Tick(venue types.Venue, symbol string) (*types.NormalizedTick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.ticks[symbol][venue]
	return t, ok
}

// Symbols returns every symbol the book has seen a tick for.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.ticks))
	for sym := range b.ticks {
		out = append(out, sym)
	}
	return out
}

// Spread builds a spread snapshot for a symbol. It returns false unless
// both venues hold a complete (two-sided) tick.
func (b *Book) Spread(symbol string) (*types.SpreadSnapshot, bool) {
	b.mu.RLock()
	kalshi := b.ticks[symbol][types.VenueKalshi]
	ibkr := b.ticks[symbol][types.VenueIBKR]
	b.mu.RUnlock()

	if kalshi == nil || ibkr == nil || !kalshi.Complete() || !ibkr.Complete() {
		return nil, false
	}

	return types.NewSpreadSnapshot(symbol,
		kalshi.YesAsk.Price, kalshi.NoAsk.Price,
		ibkr.YesAsk.Price, ibkr.NoAsk.Price,
		time.Now()), true
}

// Snapshot returns a copy of the full tick table, for the HTTP surface.
func (b *Book) Snapshot() map[string]map[types.Venue]*types.NormalizedTick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]map[types.Venue]*types.NormalizedTick, len(b.ticks))
	for sym, byVenue := range b.ticks {
		inner := make(map[types.Venue]*types.NormalizedTick, len(byVenue))
		for v, t := range byVenue {
			inner[v] = t
		}
		out[sym] = inner
	}
	return out
}

// Close closes the opportunity channel. Update must not be called after.
func (b *Book) Close() {
	b.closeOnce.Do(func() {
		close(b.oppChan)
		b.logger.Info("book-closed")
	})
}
