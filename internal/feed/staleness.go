package feed

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/pkg/types"
)

type stalenessKey struct {
	Venue  types.Venue
	Symbol string
}

// StalenessCache records the local receipt time of the latest tick per
// (venue, symbol). The gate consults it before admitting an opportunity;
// a reconnecting gateway wipes its venue so quotes from before the gap
// cannot be traded on.
type StalenessCache struct {
	mu   sync.RWMutex
	seen map[stalenessKey]time.Time

	now    func() time.Time
	logger *zap.Logger
}

// NewStalenessCache creates an empty cache.
func NewStalenessCache(logger *zap.Logger) *StalenessCache {
	return &StalenessCache{
		seen:   make(map[stalenessKey]time.Time),
		now:    time.Now,
		logger: logger,
	}
}

// Touch records a tick receipt for (venue, symbol) at the current time.
func (c *StalenessCache) Touch(venue types.Venue, symbol string) {
	c.mu.Lock()
	c.seen[stalenessKey{Venue: venue, Symbol: symbol}] = c.now()
	c.mu.Unlock()
}

// Age returns the time since the last receipt, and false when the pair
// has never been touched.
func (c *StalenessCache) Age(venue types.Venue, symbol string) (time.Duration, bool) {
	c.mu.RLock()
	at, ok := c.seen[stalenessKey{Venue: venue, Symbol: symbol}]
	c.mu.RUnlock()

	if !ok {
		return 0, false
	}
	return c.now().Sub(at), true
}

// MarkAllStale forgets every symbol for a venue. Used on gateway
// reconnect: the gap's length is unknown, so everything received before
// it is untrusted until the venue ticks again.
func (c *StalenessCache) MarkAllStale(venue types.Venue) {
	c.mu.Lock()
	n := 0
	for k := range c.seen {
		if k.Venue == venue {
			delete(c.seen, k)
			n++
		}
	}
	c.mu.Unlock()

	MarkedStaleTotal.WithLabelValues(string(venue)).Add(float64(n))
	c.logger.Warn("venue-marked-stale",
		zap.String("venue", string(venue)),
		zap.Int("symbols", n))
}
