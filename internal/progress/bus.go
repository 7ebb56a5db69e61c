// Package progress implements the Progress Bus (C7): a bounded,
// multi-subscriber event stream for a single plan execution. A subscriber
// whose queue is full loses events; the producer is never blocked.
//
// Grounded on the teacher's internal/queue/producer.go (bounded, non-
// blocking publish with a logged-and-dropped overflow policy) and
// common/logger/context.go (context-scoped structured fields), applied to
// original_source/backend/models/streaming_progress.py's ProgressCallback
// contract and percentage formulas.
package progress

import (
	"context"
	"log/slog"
	"sync"

	"veritas.app/relay/internal/domain"
)

// queueSize is the bounded per-subscription buffer. A slow subscriber that
// fills its queue starts losing events (drop-newest) rather than ever
// blocking the producer.
const queueSize = 256

// Handler receives one accepted event. Each subscription's handler runs on
// that subscription's own goroutine and sees its events in the order they
// were emitted; it must not block indefinitely.
type Handler func(ctx context.Context, event domain.ProgressEvent)

type subscription struct {
	id      int
	handler Handler
	filter  map[domain.EventKind]bool
	queue   chan domain.ProgressEvent
	done    chan struct{}
}

// Bus is the C7 implementation. It is safe for concurrent Emit and
// Subscribe/Unsubscribe calls. One Bus is owned by exactly one scheduler
// for the lifetime of one query, per spec's no-global-state design note.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscription
	nextID int
	log    *slog.Logger
}

// New constructs an empty Bus. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscription is the handle returned by Subscribe, used to Unsubscribe.
type Subscription struct {
	bus *Bus
	id  int
}

// Subscribe registers handler to be invoked for every event, or, if kinds
// is non-empty, only for events whose kind is in that set. Emit queues each
// event to subscriptions in registration order, but every handler runs on
// its own goroutine so a slow handler cannot stall delivery to others; the
// order in which different handlers run for the same event is not defined.
func (b *Bus) Subscribe(ctx context.Context, handler Handler, kinds ...domain.EventKind) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID

	var filter map[domain.EventKind]bool
	if len(kinds) > 0 {
		filter = make(map[domain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}

	sub := &subscription{
		id:      id,
		handler: handler,
		filter:  filter,
		queue:   make(chan domain.ProgressEvent, queueSize),
		done:    make(chan struct{}),
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go b.drain(ctx, sub)

	return &Subscription{bus: b, id: id}
}

// Unsubscribe stops delivery to the subscription and releases its queue.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for i, sub := range s.bus.subs {
		if sub.id == s.id {
			close(sub.done)
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) drain(ctx context.Context, sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case event := <-sub.queue:
			b.invoke(ctx, sub, event)
		}
	}
}

// invoke calls the handler, recovering from a panic the way the teacher's
// worker wraps message processing — a misbehaving subscriber must not take
// down the bus or any other subscriber.
func (b *Bus) invoke(ctx context.Context, sub *subscription, event domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("progress handler panicked", "panic", r, "event_kind", event.EventKind)
		}
	}()
	sub.handler(ctx, event)
}

// Emit publishes event to every matching subscriber. It is non-blocking:
// a subscriber whose queue is full has the event dropped with a logged
// warning, never delaying the producer.
func (b *Bus) Emit(event domain.ProgressEvent) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.filter != nil && !sub.filter[event.EventKind] {
			continue
		}
		select {
		case sub.queue <- event:
		default:
			b.log.Warn("progress subscriber queue full, dropping event", "event_kind", event.EventKind, "step_id", event.StepID)
		}
	}
}
