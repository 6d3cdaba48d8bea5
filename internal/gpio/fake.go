package gpio

import (
	"context"
	"sync"
)

// FakeLine is a test double whose Wait returns once per Fire.
type FakeLine struct {
	fired chan struct{}
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	waits   int
	waitErr error
	closed  bool
}

// NewFakeLine creates a FakeLine with pending signals already queued.
func NewFakeLine(pending int) *FakeLine {
	f := &FakeLine{
		fired: make(chan struct{}, 64),
		done:  make(chan struct{}),
	}
	for i := 0; i < pending; i++ {
		f.fired <- struct{}{}
	}
	return f
}

// Fire queues one signal.
func (f *FakeLine) Fire() {
	f.fired <- struct{}{}
}

// FailWith makes every later Wait return err.
func (f *FakeLine) FailWith(err error) {
	f.mu.Lock()
	f.waitErr = err
	f.mu.Unlock()
}

// Wait returns on the next queued signal, ctx cancellation, or Close.
func (f *FakeLine) Wait(ctx context.Context) error {
	f.mu.Lock()
	f.waits++
	err := f.waitErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-f.fired:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waits reports how many times Wait was called.
func (f *FakeLine) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the line closed and releases pending waits.
func (f *FakeLine) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}
