package mqtt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
	"github.com/pocketgadget/gadgetd/internal/logger"
)

// DefaultForwardQueue is the power event queue length of a Forwarder.
const DefaultForwardQueue = 16

// Forwarder hands power events from the dispatcher to a Publisher on its
// own goroutine, so a slow broker never stalls a frame.
type Forwarder struct {
	pub     Publisher
	queue   chan PowerEvent
	log     *logger.Logger
	dropped atomic.Uint64
}

// NewForwarder creates a Forwarder with a queue of n events.
func NewForwarder(pub Publisher, n int, log *logger.Logger) *Forwarder {
	if n <= 0 {
		n = DefaultForwardQueue
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Forwarder{pub: pub, queue: make(chan PowerEvent, n), log: log}
}

// PublishPower queues r. It never blocks; a full queue drops the event.
func (f *Forwarder) PublishPower(r axp2101.Reason) {
	select {
	case f.queue <- PowerEvent{Timestamp: time.Now(), Reason: r}:
	default:
		if f.dropped.Add(1) == 1 {
			f.log.Warnf("power event queue full, dropping %s", r)
		}
	}
}

// Dropped reports events lost to a full queue.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Run publishes queued events until ctx is done. It always returns nil.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.queue:
			if err := f.pub.PublishPower(ev); err != nil {
				f.log.Warnf("publish %s: %v", ev.Reason, err)
			}
		}
	}
}
