// Package feed runs the per-venue market-data pipeline: gateway updates
// come off a bounded queue, get assembled into full ticks, stamp the
// staleness cache, and land in the central book.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/types"
)

// Feed consumes one venue's tick updates.
type Feed struct {
	venue     types.Venue
	queue     *eventqueue.Queue[*types.TickUpdate]
	assembler *Assembler
	staleness *StalenessCache
	book      *book.Book
	logger    *zap.Logger

	wg sync.WaitGroup
}

// Config wires a feed's collaborators.
type Config struct {
	Venue     types.Venue
	Queue     *eventqueue.Queue[*types.TickUpdate]
	Staleness *StalenessCache
	Book      *book.Book
	Logger    *zap.Logger
}

// New creates a feed for one venue.
func New(cfg Config) *Feed {
	return &Feed{
		venue:     cfg.Venue,
		queue:     cfg.Queue,
		assembler: NewAssembler(cfg.Venue),
		staleness: cfg.Staleness,
		book:      cfg.Book,
		logger:    cfg.Logger,
	}
}

// Start launches the drain loop. It returns immediately.
func (f *Feed) Start(ctx context.Context) {
	f.logger.Info("feed-starting", zap.String("venue", string(f.venue)))

	f.wg.Add(1)
	go f.drain(ctx)
}

func (f *Feed) drain(ctx context.Context) {
	defer f.wg.Done()

	for {
		u, err := f.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, types.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				f.logger.Info("feed-stopping", zap.String("venue", string(f.venue)))
				return
			}
			f.logger.Warn("feed-get-error",
				zap.Error(err),
				zap.String("venue", string(f.venue)))
			continue
		}

		f.apply(u)
	}
}

// apply runs one update through assembly, staleness, and the book.
func (f *Feed) apply(u *types.TickUpdate) {
	if u.Venue != f.venue {
		UpdatesRejectedTotal.WithLabelValues(string(f.venue), "wrong_venue").Inc()
		f.logger.Warn("update-wrong-venue",
			zap.String("feed-venue", string(f.venue)),
			zap.String("update-venue", string(u.Venue)),
			zap.String("symbol", u.Symbol))
		return
	}
	if u.YesAsk == nil && u.NoAsk == nil {
		UpdatesRejectedTotal.WithLabelValues(string(f.venue), "empty").Inc()
		return
	}

	f.staleness.Touch(u.Venue, u.Symbol)
	UpdatesAppliedTotal.WithLabelValues(string(f.venue)).Inc()

	tick, complete := f.assembler.Apply(u)
	if !complete {
		return
	}

	f.book.Update(tick)
}

// OnReconnect invalidates everything this venue has published: held
// halves are dropped and the staleness cache forgets the venue.
func (f *Feed) OnReconnect() {
	f.assembler.Reset()
	f.staleness.MarkAllStale(f.venue)
}

// Close waits for the drain loop to exit. Callers close the queue (or
// cancel the context) first.
func (f *Feed) Close() {
	f.wg.Wait()
	f.logger.Info("feed-closed", zap.String("venue", string(f.venue)))
}
