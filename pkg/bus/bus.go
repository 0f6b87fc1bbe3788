package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrBusClosed is returned when publishing to a closed EventBus.
	ErrBusClosed = errors.New("event bus closed")
	// ErrBusFull is returned by TryPublish when the buffer is full.
	ErrBusFull = errors.New("event bus full")
)

type EventBus struct {
	events chan Event
	done   chan struct{}
	closed atomic.Bool
}

func NewEventBus(size int) *EventBus {
	if size <= 0 {
		size = 100
	}
	return &EventBus{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// TryPublish never blocks; a full buffer drops ev.
func (b *EventBus) TryPublish(ev Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	stamp(&ev)
	select {
	case b.events <- ev:
		return nil
	case <-b.done:
		return ErrBusClosed
	default:
		return ErrBusFull
	}
}

// Consume blocks for the next event. After Close it keeps returning events
// that were buffered before the close, then reports false.
func (b *EventBus) Consume(ctx context.Context) (Event, bool) {
	select {
	case ev := <-b.events:
		return ev, true
	case <-b.done:
		return b.TryConsume()
	case <-ctx.Done():
		return Event{}, false
	}
}

// TryConsume returns a buffered event without blocking.
func (b *EventBus) TryConsume() (Event, bool) {
	select {
	case ev := <-b.events:
		return ev, true
	default:
		return Event{}, false
	}
}

func (b *EventBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}

func stamp(ev *Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
}
