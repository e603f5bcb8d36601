package events

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a closed MemoryBus.
var ErrClosed = errors.New("event bus closed")

// MemoryBus is an in-process Bus backed by a buffered channel.
type MemoryBus struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryBus creates a MemoryBus holding up to size undelivered events.
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{ch: make(chan Event, size)}
}

// Publish enqueues event, blocking while the buffer is full.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- event:
		return nil
	}
}

// Consume delivers events to handler until ctx is done or the bus closes.
func (b *MemoryBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-b.ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, event)
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		close(b.ch)
		b.closed = true
	}
	b.mu.Unlock()
	return nil
}
