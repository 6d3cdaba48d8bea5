package events

import (
	"context"
	"sync/atomic"
)

// DefaultCapacity is the bus depth used by the daemon.
const DefaultCapacity = 32

// Bus is a bounded FIFO with many producers and one consumer.
// Producers choose their policy per send: Send blocks for space, TrySend
// drops and counts.
type Bus struct {
	ch      chan Message
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// NewBus creates a bus holding up to capacity messages.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ch: make(chan Message, capacity)}
}

// Send enqueues m, blocking while the bus is full.
func (b *Bus) Send(ctx context.Context, m Message) error {
	select {
	case b.ch <- m:
		b.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues m if there is room and reports whether it did.
func (b *Bus) TrySend(m Message) bool {
	select {
	case b.ch <- m:
		b.sent.Add(1)
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Drain appends every queued message to dst without blocking.
func (b *Bus) Drain(dst []Message) []Message {
	for {
		select {
		case m := <-b.ch:
			dst = append(dst, m)
		default:
			return dst
		}
	}
}

// Len reports the number of queued messages.
func (b *Bus) Len() int { return len(b.ch) }

// Cap reports the bus capacity.
func (b *Bus) Cap() int { return cap(b.ch) }

// Dropped reports how many TrySend calls found the bus full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Sent reports how many messages were enqueued.
func (b *Bus) Sent() uint64 { return b.sent.Load() }
