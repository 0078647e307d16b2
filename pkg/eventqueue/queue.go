// Package eventqueue provides the bounded FIFO used between producers and
// consumers whose rates may diverge: gateway feeds ahead of normalization,
// and execution results ahead of persistence.
package eventqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crossbook/event-arb/pkg/types"
)

// Policy selects what Put does when the queue is at capacity.
type Policy int

const (
	// Block suspends the producer until space frees up, the context is
	// done, or the queue is closed. On deadline the item is dropped and
	// the context error is returned.
	Block Policy = iota
	// DropOldest evicts the head to make room; eviction and insertion are
	// atomic with respect to other producers.
	DropOldest
	// DropNewest rejects the incoming item and leaves the queue unchanged.
	DropNewest
	// Reject fails the Put with types.ErrQueueFull.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// waitWindowSize bounds the rolling window of queue sojourn times.
const waitWindowSize = 256

// Stats is a point-in-time view of queue counters. Counters are updated
// atomically but read without coordination, so a snapshot may be slightly
// behind concurrent activity.
type Stats struct {
	Offered  uint64 // Put calls observed, accepted or not
	Dequeued uint64
	Dropped  uint64 // evicted, rejected, or timed out items
	Depth    int
	Capacity int
	AvgWait  time.Duration // enqueue-to-dequeue, over the rolling window
	MaxWait  time.Duration
}

type item[T any] struct {
	v  T
	at time.Time
}

// Queue is a bounded FIFO with a fixed overflow policy.
type Queue[T any] struct {
	name   string
	policy Policy
	ch     chan item[T]
	done   chan struct{}

	// closeMu also serializes DropOldest's evict+insert so no producer
	// observes a transiently empty full queue.
	closeMu sync.Mutex
	closed  bool

	offered  atomic.Uint64
	dequeued atomic.Uint64
	dropped  atomic.Uint64

	overflow func(T)

	waitMu   sync.Mutex
	waits    [waitWindowSize]time.Duration
	waitLen  int
	waitNext int
}

// Config holds queue construction parameters.
type Config[T any] struct {
	// Name labels metrics and the overflow hook's log lines.
	Name     string
	Capacity int
	Policy   Policy
	// OverflowHook, if set, receives every evicted or rejected item. It
	// runs on the producer goroutine and must return quickly.
	OverflowHook func(T)
}

// New creates a bounded queue. Capacity must be positive.
func New[T any](cfg Config[T]) *Queue[T] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	return &Queue[T]{
		name:     cfg.Name,
		policy:   cfg.Policy,
		ch:       make(chan item[T], cfg.Capacity),
		done:     make(chan struct{}),
		overflow: cfg.OverflowHook,
	}
}

// Put offers one item to the queue. The error is nil whenever the policy
// accepted or silently dropped per its contract: Block returns the context
// error on deadline, Reject returns types.ErrQueueFull at capacity, and a
// closed queue always returns types.ErrQueueClosed.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	q.offered.Add(1)
	it := item[T]{v: v, at: time.Now()}

	switch q.policy {
	case Block:
		if q.isClosed() {
			q.drop(v)
			return types.ErrQueueClosed
		}
		select {
		case q.ch <- it:
			return nil
		default:
		}
		QueueBlockedTotal.WithLabelValues(q.name).Inc()
		select {
		case q.ch <- it:
			return nil
		case <-q.done:
			q.drop(v)
			return types.ErrQueueClosed
		case <-ctx.Done():
			q.drop(v)
			return ctx.Err()
		}

	case DropOldest:
		q.closeMu.Lock()
		defer q.closeMu.Unlock()
		if q.closed {
			q.drop(v)
			return types.ErrQueueClosed
		}
		for {
			select {
			case q.ch <- it:
				return nil
			default:
			}
			// Full: evict the head, then retry the insert. The lock keeps
			// concurrent producers from interleaving evictions.
			select {
			case old := <-q.ch:
				q.drop(old.v)
			default:
				// A consumer raced us and made room; retry.
			}
		}

	case DropNewest:
		if q.isClosed() {
			q.drop(v)
			return types.ErrQueueClosed
		}
		select {
		case q.ch <- it:
			return nil
		default:
			q.drop(v)
			return nil
		}

	case Reject:
		if q.isClosed() {
			return types.ErrQueueClosed
		}
		select {
		case q.ch <- it:
			return nil
		default:
			q.dropped.Add(1)
			QueueDroppedTotal.WithLabelValues(q.name, q.policy.String()).Inc()
			return types.ErrQueueFull
		}
	}
	return nil
}

// Get removes the head item, blocking until one is available, the context
// is done, or the queue is closed and drained.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	// Drain items enqueued before close.
	select {
	case it := <-q.ch:
		q.record(it)
		return it.v, nil
	default:
	}

	select {
	case it := <-q.ch:
		q.record(it)
		return it.v, nil
	case <-q.done:
		// One more non-blocking attempt: close may have raced a Put.
		select {
		case it := <-q.ch:
			q.record(it)
			return it.v, nil
		default:
			return zero, types.ErrQueueClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close marks the queue closed. Pending items remain readable via Get;
// subsequent Puts fail with types.ErrQueueClosed.
func (q *Queue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Depth returns the current number of queued items.
func (q *Queue[T]) Depth() int {
	return len(q.ch)
}

// Capacity returns the fixed capacity.
func (q *Queue[T]) Capacity() int {
	return cap(q.ch)
}

// Snapshot returns current counters and wait-window aggregates.
func (q *Queue[T]) Snapshot() Stats {
	s := Stats{
		Offered:  q.offered.Load(),
		Dequeued: q.dequeued.Load(),
		Dropped:  q.dropped.Load(),
		Depth:    len(q.ch),
		Capacity: cap(q.ch),
	}

	q.waitMu.Lock()
	var sum, max time.Duration
	for i := 0; i < q.waitLen; i++ {
		w := q.waits[i]
		sum += w
		if w > max {
			max = w
		}
	}
	n := q.waitLen
	q.waitMu.Unlock()

	if n > 0 {
		s.AvgWait = sum / time.Duration(n)
		s.MaxWait = max
	}
	return s
}

func (q *Queue[T]) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) drop(v T) {
	q.dropped.Add(1)
	QueueDroppedTotal.WithLabelValues(q.name, q.policy.String()).Inc()
	if q.overflow != nil {
		q.overflow(v)
	}
}

func (q *Queue[T]) record(it item[T]) {
	q.dequeued.Add(1)
	wait := time.Since(it.at)
	QueueWaitSeconds.WithLabelValues(q.name).Observe(wait.Seconds())

	q.waitMu.Lock()
	q.waits[q.waitNext] = wait
	q.waitNext = (q.waitNext + 1) % waitWindowSize
	if q.waitLen < waitWindowSize {
		q.waitLen++
	}
	q.waitMu.Unlock()
}
