// Package eventbus delivers recorded domain events to in-process consumers.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/event"
)

// Handler consumes one event. Returned errors are logged, never retried.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Stats counts events since the bus was created.
type Stats struct {
	Published uint64
	Dropped   uint64
	Failed    uint64
}

// Bus queues events on a buffered channel and hands each one to every
// subscriber, in subscription order, from a single goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	queue  chan event.DomainEvent
	done   chan struct{}
	logger *zap.Logger

	published, dropped, failed atomic.Uint64
}

type subscription struct {
	name string
	h    Handler
}

// New returns a bus holding up to bufSize undelivered events (256 when bufSize < 1).
func New(bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		queue:  make(chan event.DomainEvent, bufSize),
		done:   make(chan struct{}),
		logger: logger.Named("eventbus"),
	}
}

// Subscribe adds a named handler. Call it before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, h: h})
}

// Publish enqueues evt without blocking. A full queue drops the event.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	select {
	case b.queue <- evt:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("buffer full, dropping event",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.ID))
	}
}

// Start delivers events until Stop is called or ctx is done. On ctx done
// the events already queued are still delivered.
func (b *Bus) Start(ctx context.Context) {
	go b.run(ctx)
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case evt, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(ctx, evt)
		case <-ctx.Done():
			b.drain(ctx)
			return
		}
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(ctx, evt)
		default:
			return
		}
	}
}

// Stop closes the queue and waits for delivery to finish. Publishing after
// Stop panics.
func (b *Bus) Stop() {
	close(b.queue)
	<-b.done
	s := b.Stats()
	b.logger.Info("stopped",
		zap.Uint64("published", s.Published),
		zap.Uint64("dropped", s.Dropped),
		zap.Uint64("failed", s.Failed))
}

func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
		Failed:    b.failed.Load(),
	}
}

func (b *Bus) deliver(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.h.HandleEvent(ctx, evt); err != nil {
			b.failed.Add(1)
			b.logger.Error("handler failed",
				zap.String("subscriber", s.name),
				zap.String("event_type", evt.EventType),
				zap.Error(err))
		}
	}
}
