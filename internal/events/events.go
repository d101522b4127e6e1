package events

import (
	"context"
	"errors"

	"github.com/phrazzld/dayreport/internal/domain"
)

// Kind distinguishes progress refreshes from final results.
type Kind string

const (
	// KindTaskUpdate is sent on every task transition and progress change.
	KindTaskUpdate Kind = "task-update"
	// KindTaskCompleted is sent once, after the final update of a completed task.
	KindTaskCompleted Kind = "task-completed"
	// KindError is sent once, after the final update of a failed task.
	KindError Kind = "error"
)

// ErrSubscriberClosed is returned by a subscriber that can no longer accept
// events. The bus skips it without logging.
var ErrSubscriberClosed = errors.New("subscriber closed")

// ErrSubscriberBackedUp is returned when a subscriber's buffer is full and
// the event was dropped.
var ErrSubscriberBackedUp = errors.New("subscriber buffer full")

// Event is one notification. Task is a snapshot, never shared with the registry.
type Event struct {
	Kind Kind        `json:"kind"`
	Task domain.Task `json:"task"`
}

// Subscriber receives events. Notify may be called from many goroutines
// and must not block for long.
type Subscriber interface {
	Notify(ctx context.Context, event Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

// Notify implements Subscriber.
func (f SubscriberFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the sending side of the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
