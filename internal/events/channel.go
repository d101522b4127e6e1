package events

import (
	"context"
	"sync"
)

// ChannelSubscriber buffers events on a channel for a consumer goroutine.
// Delivery never blocks: when the buffer is full the event is dropped,
// Notify returns ErrSubscriberBackedUp and Overflowed is closed so the
// consumer can tell its stream has a gap.
type ChannelSubscriber struct {
	mu       sync.Mutex
	ch       chan Event
	closed   bool
	overflow chan struct{}
	once     sync.Once
}

var _ Subscriber = (*ChannelSubscriber)(nil)

// NewChannelSubscriber creates a subscriber with the given buffer size.
func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSubscriber{
		ch:       make(chan Event, buffer),
		overflow: make(chan struct{}),
	}
}

// Overflowed is closed the first time an event is dropped.
func (c *ChannelSubscriber) Overflowed() <-chan struct{} {
	return c.overflow
}

// Events returns the receive side. It is closed by Close.
func (c *ChannelSubscriber) Events() <-chan Event {
	return c.ch
}

// Notify implements Subscriber.
func (c *ChannelSubscriber) Notify(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSubscriberClosed
	}
	select {
	case c.ch <- event:
		return nil
	default:
		c.once.Do(func() { close(c.overflow) })
		return ErrSubscriberBackedUp
	}
}

// Close stops delivery and closes the channel. Buffered events can still
// be drained.
func (c *ChannelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
