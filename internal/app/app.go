// Package app wires the whole pipeline together: venue gateways feed
// per-venue queues, feeds assemble ticks into the central book, the book
// detects parity breaks, the gate sizes and admits them, and in live
// mode the executor trades them. Everything the session does is pushed
// through a persistence queue into storage.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/internal/circuitbreaker"
	"github.com/crossbook/event-arb/internal/execution"
	"github.com/crossbook/event-arb/internal/feed"
	"github.com/crossbook/event-arb/internal/gateway"
	"github.com/crossbook/event-arb/internal/ledger"
	"github.com/crossbook/event-arb/internal/storage"
	"github.com/crossbook/event-arb/pkg/config"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/healthprobe"
	"github.com/crossbook/event-arb/pkg/httpserver"
	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

// App is the main application orchestrator.
type App struct {
	cfg       *config.Config
	execCfg   *config.ExecutionConfig
	opts      *Options
	logger    *zap.Logger
	sessionID string

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	symbols   *symbolmap.Map
	ledger    *ledger.Ledger
	staleness *feed.StalenessCache
	book      *book.Book
	gate      *arbitrage.Gate

	kalshiQueue *eventqueue.Queue[*types.TickUpdate]
	ibkrQueue   *eventqueue.Queue[*types.TickUpdate]
	kalshiFeed  *feed.Feed
	ibkrFeed    *feed.Feed
	kalshi      *gateway.Kalshi
	ibkr        *gateway.IBKR

	// executor and breaker are nil in dry mode.
	executor *execution.Executor
	breaker  *circuitbreaker.ExecutionCircuitBreaker

	store        storage.Storage
	persistQueue *eventqueue.Queue[interface{}]

	ctx    context.Context
	cancel context.CancelFunc
	// pipelineWg covers the opportunity loop, executions, and the spread
	// sweeper; wg covers the HTTP server and the persistence loop, which
	// must outlive the pipeline so late records still land.
	pipelineWg sync.WaitGroup
	wg         sync.WaitGroup
}

// Options holds per-run options from the command line.
type Options struct {
	// ExecConfigPath is the JSON execution config (trading parameters).
	ExecConfigPath string
	// SymbolMapPath is the JSON symbol mapping file.
	SymbolMapPath string
	// ModeOverride replaces the execution config's mode when non-empty.
	ModeOverride string
	// Duration ends the session after this long; zero runs until a signal.
	Duration time.Duration
	// LogInterval paces the spread sweeper and status log.
	LogInterval time.Duration
	// KalshiBalance and IBKRBalance seed the session ledger.
	KalshiBalance decimal.Decimal
	IBKRBalance   decimal.Decimal
}
