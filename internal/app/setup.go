package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/internal/circuitbreaker"
	"github.com/crossbook/event-arb/internal/execution"
	"github.com/crossbook/event-arb/internal/feed"
	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/internal/gateway"
	"github.com/crossbook/event-arb/internal/ledger"
	"github.com/crossbook/event-arb/internal/storage"
	"github.com/crossbook/event-arb/pkg/cache"
	"github.com/crossbook/event-arb/pkg/config"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/healthprobe"
	"github.com/crossbook/event-arb/pkg/httpserver"
	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

// New creates a fully wired application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	execCfg, err := config.LoadExecutionConfig(opts.ExecConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load execution config: %w", err)
	}
	if opts.ModeOverride != "" {
		execCfg.Mode = opts.ModeOverride
		if err := execCfg.Validate(); err != nil {
			return nil, fmt.Errorf("mode override: %w", err)
		}
	}

	symbols, err := symbolmap.Load(opts.SymbolMapPath)
	if err != nil {
		return nil, fmt.Errorf("load symbol map: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		execCfg:       execCfg,
		opts:          opts,
		logger:        logger,
		sessionID:     uuid.New().String(),
		healthChecker: healthprobe.New(),
		symbols:       symbols,
		ctx:           ctx,
		cancel:        cancel,
	}

	a.ledger = ledger.New(ledger.Config{
		KalshiBalance: opts.KalshiBalance,
		IBKRBalance:   opts.IBKRBalance,
		Logger:        logger,
	})

	feeBook := fees.NewBook()

	a.book = book.New(book.Config{
		Detector: arbitrage.New(arbitrage.Config{
			SlippageBuffer: execCfg.SlippageBuffer,
			MinNetProfit:   execCfg.MinNetProfit,
			Logger:         logger,
		}, feeBook),
		Logger: logger,
	})

	a.staleness = feed.NewStalenessCache(logger)

	err = a.setupGate(feeBook)
	if err != nil {
		cancel()
		return nil, err
	}

	a.setupFeeds()
	a.setupGateways()

	a.store, err = setupStorage(cfg, a.sessionID, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	a.persistQueue = eventqueue.New[interface{}](eventqueue.Config[interface{}]{
		Name:     "persist",
		Capacity: cfg.PersistQueueCapacity,
		Policy:   eventqueue.Block,
	})

	if execCfg.Mode == config.ModeLive {
		a.setupExecutor(feeBook)
	} else {
		logger.Info("executor-disabled-dry-mode",
			zap.String("note", "opportunities will be detected, sized, and recorded only"))
	}

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Book:          a.book,
	})

	return a, nil
}

func (a *App) setupGate(feeBook *fees.Book) error {
	cooldown, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup cooldown cache: %w", err)
	}

	a.gate = arbitrage.NewGate(arbitrage.GateConfig{
		Exec:      a.execCfg,
		Ledger:    a.ledger,
		Staleness: a.staleness,
		FeeBook:   feeBook,
		Cooldown:  cooldown,
		Logger:    a.logger,
	})
	return nil
}

func (a *App) setupFeeds() {
	a.kalshiQueue = eventqueue.New[*types.TickUpdate](eventqueue.Config[*types.TickUpdate]{
		Name:     "kalshi-feed",
		Capacity: a.cfg.FeedQueueCapacity,
		Policy:   eventqueue.DropOldest,
	})
	a.ibkrQueue = eventqueue.New[*types.TickUpdate](eventqueue.Config[*types.TickUpdate]{
		Name:     "ibkr-feed",
		Capacity: a.cfg.FeedQueueCapacity,
		Policy:   eventqueue.DropOldest,
	})

	a.kalshiFeed = feed.New(feed.Config{
		Venue:     types.VenueKalshi,
		Queue:     a.kalshiQueue,
		Staleness: a.staleness,
		Book:      a.book,
		Logger:    a.logger,
	})
	a.ibkrFeed = feed.New(feed.Config{
		Venue:     types.VenueIBKR,
		Queue:     a.ibkrQueue,
		Staleness: a.staleness,
		Book:      a.book,
		Logger:    a.logger,
	})
}

func (a *App) setupGateways() {
	a.kalshi = gateway.NewKalshi(gateway.KalshiConfig{
		APIURL:                a.cfg.KalshiAPIURL,
		WSURL:                 a.cfg.KalshiWSURL,
		APIKey:                a.cfg.KalshiAPIKey,
		Symbols:               a.symbols,
		Updates:               a.kalshiQueue,
		OnReconnect:           a.kalshiFeed.OnReconnect,
		DialTimeout:           a.cfg.WSDialTimeout,
		PongTimeout:           a.cfg.WSPongTimeout,
		PingInterval:          a.cfg.WSPingInterval,
		ReconnectInitialDelay: a.cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     a.cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  a.cfg.WSReconnectBackoffMult,
		FrameBufferSize:       a.cfg.FeedQueueCapacity,
		Logger:                a.logger,
	})

	a.ibkr = gateway.NewIBKR(gateway.IBKRConfig{
		GatewayURL:   a.cfg.IBKRGatewayURL,
		AccountID:    a.cfg.IBKRAccountID,
		Symbols:      a.symbols,
		Updates:      a.ibkrQueue,
		PollInterval: a.cfg.IBKRPollInterval,
		Logger:       a.logger,
	})
}

func (a *App) setupExecutor(feeBook *fees.Book) {
	a.breaker = circuitbreaker.New(circuitbreaker.Config{
		Logger: a.logger,
	})

	a.executor = execution.New(execution.Config{
		Clients: map[types.Venue]execution.OrderClient{
			types.VenueKalshi: a.kalshi,
			types.VenueIBKR:   a.ibkr,
		},
		Ledger:       a.ledger,
		FeeBook:      feeBook,
		PollInterval: a.cfg.OrderPollInterval,
		LegTimeout:   a.cfg.LegTimeout,
		HedgeWait:    a.cfg.HedgeWait,
		Logger:       a.logger,
	})

	a.logger.Info("executor-enabled-live-mode",
		zap.Duration("leg-timeout", a.cfg.LegTimeout),
		zap.Duration("hedge-wait", a.cfg.HedgeWait))
}

func setupStorage(cfg *config.Config, sessionID string, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:      cfg.PostgresHost,
			Port:      cfg.PostgresPort,
			User:      cfg.PostgresUser,
			Password:  cfg.PostgresPass,
			Database:  cfg.PostgresDB,
			SSLMode:   cfg.PostgresSSL,
			SessionID: sessionID,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(sessionID, logger), nil
}

// logInterval returns the configured sweep interval or the default.
func (a *App) logInterval() time.Duration {
	if a.opts.LogInterval > 0 {
		return a.opts.LogInterval
	}
	return 30 * time.Second
}
