// Package bus carries Messages from the compression worker and the update
// checker to the presentation layer.
package bus

import (
	"context"
	"sync"
)

// Bus is an unbounded FIFO queue of Messages. Any number of goroutines may
// Send; ordering is global across senders. Send never blocks and nothing is
// ever dropped.
type Bus struct {
	mu    sync.Mutex
	queue []Message

	// ready holds at most one pending wake-up for a blocked Receive.
	ready chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		ready: make(chan struct{}, 1),
	}
}

// Send enqueues msg.
func (b *Bus) Send(msg Message) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// TryReceive dequeues the oldest message without blocking.
func (b *Bus) TryReceive() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, false
	}
	msg := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	if len(b.queue) == 0 {
		// Release the backing array once drained.
		b.queue = nil
	}
	return msg, true
}

// Receive dequeues the oldest message, waiting until one is sent or ctx is done.
func (b *Bus) Receive(ctx context.Context) (Message, error) {
	for {
		if msg, ok := b.TryReceive(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.ready:
		}
	}
}

// Len returns the number of queued messages.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
