// Package circuitbreaker guards live order submission. A streak of
// executions that did not commit usually means something environmental is
// wrong (venue degradation, stale feed, drained account), and continuing
// to fire two-legged orders into it compounds losses.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/pkg/types"
)

const (
	defaultMaxConsecutiveFailures = 3
	defaultCooldown               = time.Minute
)

// ExecutionCircuitBreaker trips after a streak of non-committed
// executions and re-enables itself once the cooldown has passed.
// A rollback that required manual intervention trips it immediately:
// there is unhedged exposure outstanding and a human is in the loop.
type ExecutionCircuitBreaker struct {
	enabled atomic.Bool // lock-free reads on the hot path

	maxConsecutiveFailures int
	cooldown               time.Duration
	logger                 *zap.Logger
	now                    func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	trippedAt           time.Time
}

// Config holds circuit breaker configuration.
type Config struct {
	// MaxConsecutiveFailures trips the breaker; 0 means the default (3).
	MaxConsecutiveFailures int
	// Cooldown is how long the breaker stays tripped; 0 means 1 minute.
	Cooldown time.Duration
	Logger   *zap.Logger
}

// Status is the current breaker state for debugging and HTTP endpoints.
type Status struct {
	Enabled             bool
	ConsecutiveFailures int
	TrippedAt           time.Time
}

// New creates a circuit breaker. It starts enabled.
func New(cfg Config) *ExecutionCircuitBreaker {
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxConsecutiveFailures
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	b := &ExecutionCircuitBreaker{
		maxConsecutiveFailures: maxFailures,
		cooldown:               cooldown,
		logger:                 cfg.Logger,
		now:                    time.Now,
	}
	b.enabled.Store(true)
	BreakerEnabled.Set(1)

	return b
}

// Allow reports whether a live execution may proceed. A tripped breaker
// re-enables itself once the cooldown has elapsed, with the failure
// streak cleared.
func (b *ExecutionCircuitBreaker) Allow() bool {
	if b.enabled.Load() {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enabled.Load() {
		return true
	}

	if b.now().Sub(b.trippedAt) < b.cooldown {
		BlockedExecutionsTotal.Inc()
		return false
	}

	b.consecutiveFailures = 0
	b.enabled.Store(true)
	BreakerEnabled.Set(1)
	StateChangesTotal.Inc()

	b.logger.Info("circuit-breaker-re-enabled",
		zap.Duration("cooldown", b.cooldown))

	return true
}

// RecordResult feeds a terminal execution result into the breaker.
func (b *ExecutionCircuitBreaker) RecordResult(res *types.ExecutionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if res.Outcome == types.OutcomeCommitted {
		b.consecutiveFailures = 0
		ConsecutiveFailures.Set(0)
		return
	}

	b.consecutiveFailures++
	ConsecutiveFailures.Set(float64(b.consecutiveFailures))

	if res.ManualIntervention {
		b.trip("manual-intervention-required", res)
		return
	}
	if b.consecutiveFailures >= b.maxConsecutiveFailures {
		b.trip("consecutive-failures", res)
	}
}

// trip must be called with the mutex held.
func (b *ExecutionCircuitBreaker) trip(reason string, res *types.ExecutionResult) {
	if !b.enabled.Load() {
		return
	}

	b.enabled.Store(false)
	b.trippedAt = b.now()
	BreakerEnabled.Set(0)
	StateChangesTotal.Inc()
	TripsTotal.WithLabelValues(reason).Inc()

	b.logger.Warn("circuit-breaker-tripped",
		zap.String("reason", reason),
		zap.Int("consecutive-failures", b.consecutiveFailures),
		zap.String("last-outcome", string(res.Outcome)),
		zap.String("last-symbol", res.Symbol),
		zap.Duration("cooldown", b.cooldown))
}

// GetStatus returns the current breaker state.
func (b *ExecutionCircuitBreaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		Enabled:             b.enabled.Load(),
		ConsecutiveFailures: b.consecutiveFailures,
		TrippedAt:           b.trippedAt,
	}
}
