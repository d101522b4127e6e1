package events

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/panics"
)

// Bus is an in-memory fan-out of events to the current subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]Subscriber
	nextID uint64
	logger *slog.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[uint64]Subscriber),
		logger: logger.With("component", "notification_bus"),
	}
}

// Subscribe registers s and returns the function that removes it. The
// returned function is safe to call more than once.
func (b *Bus) Subscribe(s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("subscriber registered", "subscriber_id", id, "subscriber_count", count)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			count := len(b.subs)
			b.mu.Unlock()
			b.logger.Debug("subscriber removed", "subscriber_id", id, "subscriber_count", count)
		})
	}
}

// Count returns the number of registered subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers event to every subscriber registered at the time of the
// call, in registration order. Subscriber failures are logged and otherwise
// ignored.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	subs := make(map[uint64]Subscriber, len(b.subs))
	for id, s := range b.subs {
		subs[id] = s
	}
	b.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		b.deliver(ctx, id, subs[id], event)
	}
}

func (b *Bus) deliver(ctx context.Context, id uint64, s Subscriber, event Event) {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = s.Notify(ctx, event) })

	if r := pc.Recovered(); r != nil {
		b.logger.Error("subscriber panicked",
			"subscriber_id", id,
			"kind", event.Kind,
			"task_id", event.Task.ID,
			"panic", r.Value)
		return
	}

	switch {
	case err == nil, errors.Is(err, ErrSubscriberClosed):
	default:
		b.logger.Warn("subscriber failed to accept event",
			"subscriber_id", id,
			"kind", event.Kind,
			"task_id", event.Task.ID,
			"error", err)
	}
}
