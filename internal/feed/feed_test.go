package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/types"
)

type feedFixture struct {
	feed      *Feed
	queue     *eventqueue.Queue[*types.TickUpdate]
	staleness *StalenessCache
	book      *book.Book
}

func newFeedFixture(t *testing.T, venue types.Venue) *feedFixture {
	t.Helper()

	det := arbitrage.New(arbitrage.Config{
		SlippageBuffer: decimal.RequireFromString("0.01"),
		MinNetProfit:   decimal.Zero,
		Logger:         zap.NewNop(),
	}, fees.NewBook())

	b := book.New(book.Config{Detector: det, Logger: zap.NewNop()})
	sc := NewStalenessCache(zap.NewNop())
	q := eventqueue.New[*types.TickUpdate](eventqueue.Config[*types.TickUpdate]{
		Name:     "test-feed",
		Capacity: 64,
		Policy:   eventqueue.DropOldest,
	})

	f := New(Config{
		Venue:     venue,
		Queue:     q,
		Staleness: sc,
		Book:      b,
		Logger:    zap.NewNop(),
	})

	return &feedFixture{feed: f, queue: q, staleness: sc, book: b}
}

func fullUpdate(venue types.Venue, symbol, yesAsk, noAsk string) *types.TickUpdate {
	u := &types.TickUpdate{Venue: venue, Symbol: symbol, TSLocal: time.Now()}
	if yesAsk != "" {
		u.YesAsk = &types.Quote{Price: decimal.RequireFromString(yesAsk), Size: 10}
	}
	if noAsk != "" {
		u.NoAsk = &types.Quote{Price: decimal.RequireFromString(noAsk), Size: 10}
	}
	return u
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestFeed_DeliversTicksToBook(t *testing.T) {
	fx := newFeedFixture(t, types.VenueKalshi)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.feed.Start(ctx)
	defer func() {
		fx.queue.Close()
		fx.feed.Close()
	}()

	if err := fx.queue.Put(ctx, fullUpdate(types.VenueKalshi, "FED-CUT-DEC", "0.52", "0.49")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok := fx.book.Tick(types.VenueKalshi, "FED-CUT-DEC")
		return ok
	})

	if _, ok := fx.staleness.Age(types.VenueKalshi, "FED-CUT-DEC"); !ok {
		t.Error("staleness cache must be touched on delivery")
	}
}

func TestFeed_HalfUpdatesAssembleBeforeBook(t *testing.T) {
	fx := newFeedFixture(t, types.VenueIBKR)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.feed.Start(ctx)
	defer func() {
		fx.queue.Close()
		fx.feed.Close()
	}()

	if err := fx.queue.Put(ctx, fullUpdate(types.VenueIBKR, "FED-CUT-DEC", "0.55", "")); err != nil {
		t.Fatal(err)
	}

	// The half touches staleness but cannot reach the book yet.
	waitFor(t, func() bool {
		_, ok := fx.staleness.Age(types.VenueIBKR, "FED-CUT-DEC")
		return ok
	})
	if _, ok := fx.book.Tick(types.VenueIBKR, "FED-CUT-DEC"); ok {
		t.Fatal("half tick must not reach the book")
	}

	if err := fx.queue.Put(ctx, fullUpdate(types.VenueIBKR, "FED-CUT-DEC", "", "0.43")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok := fx.book.Tick(types.VenueIBKR, "FED-CUT-DEC")
		return ok
	})
}

func TestFeed_RejectsWrongVenueUpdate(t *testing.T) {
	fx := newFeedFixture(t, types.VenueKalshi)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.feed.Start(ctx)

	if err := fx.queue.Put(ctx, fullUpdate(types.VenueIBKR, "FED-CUT-DEC", "0.52", "0.49")); err != nil {
		t.Fatal(err)
	}

	fx.queue.Close()
	fx.feed.Close()

	if _, ok := fx.book.Tick(types.VenueIBKR, "FED-CUT-DEC"); ok {
		t.Error("wrong-venue update must be dropped")
	}
	if _, ok := fx.staleness.Age(types.VenueIBKR, "FED-CUT-DEC"); ok {
		t.Error("wrong-venue update must not touch staleness")
	}
}

func TestFeed_OnReconnectInvalidatesVenue(t *testing.T) {
	fx := newFeedFixture(t, types.VenueIBKR)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.feed.Start(ctx)
	defer func() {
		fx.queue.Close()
		fx.feed.Close()
	}()

	if err := fx.queue.Put(ctx, fullUpdate(types.VenueIBKR, "FED-CUT-DEC", "0.55", "")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, ok := fx.staleness.Age(types.VenueIBKR, "FED-CUT-DEC")
		return ok
	})

	fx.feed.OnReconnect()

	if _, ok := fx.staleness.Age(types.VenueIBKR, "FED-CUT-DEC"); ok {
		t.Error("reconnect must forget the venue's receipt times")
	}

	// The held YES half is also gone: a lone NO cannot complete a tick.
	if err := fx.queue.Put(ctx, fullUpdate(types.VenueIBKR, "FED-CUT-DEC", "", "0.43")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, ok := fx.staleness.Age(types.VenueIBKR, "FED-CUT-DEC")
		return ok
	})
	if _, ok := fx.book.Tick(types.VenueIBKR, "FED-CUT-DEC"); ok {
		t.Error("post-reconnect half must not complete a pre-reconnect tick")
	}
}

func TestFeed_StopsWhenQueueCloses(t *testing.T) {
	fx := newFeedFixture(t, types.VenueKalshi)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.feed.Start(ctx)
	fx.queue.Close()

	done := make(chan struct{})
	go func() {
		fx.feed.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after queue close")
	}
}
