// Package clock holds the process start instant and a context-aware sleep.
// The first call to Start fixes the instant for the lifetime of the process;
// later calls return the same value.
package clock

import (
	"context"
	"sync"
	"time"
)

var (
	once  sync.Once
	start time.Time
)

// Start returns the process start instant, initialising it on first use.
func Start() time.Time {
	once.Do(func() {
		start = time.Now()
	})
	return start
}

// Since returns the monotonic time elapsed since Start.
func Since() time.Duration {
	return time.Since(Start())
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
