package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig controls the backoff between reconnect attempts.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = up to 20% added on top
}

// ReconnectManager retries a connect function with exponential backoff.
// Jitter keeps multiple feeds from reconnecting in lockstep after a
// shared network blip.
type ReconnectManager struct {
	config ReconnectConfig
	logger *zap.Logger

	mu      sync.Mutex
	current time.Duration
}

// NewReconnectManager creates a reconnection manager.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	return &ReconnectManager{
		config:  cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Reconnect calls connectFunc until it succeeds or ctx is cancelled,
// sleeping the current backoff (plus jitter) before each attempt.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connectFunc func(context.Context) error) error {
	for {
		delay := rm.delay()

		rm.logger.Info("attempting-reconnection", zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connectFunc(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful")
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
		rm.advance()
	}
}

// Reset returns the backoff to its initial delay.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.current = rm.config.InitialDelay
}

func (rm *ReconnectManager) delay() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	jitter := 1.0 + rand.Float64()*rm.config.JitterPercent
	return time.Duration(float64(rm.current) * jitter)
}

func (rm *ReconnectManager) advance() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	next := time.Duration(float64(rm.current) * rm.config.BackoffMultiplier)
	if next > rm.config.MaxDelay {
		next = rm.config.MaxDelay
	}
	rm.current = next
}
