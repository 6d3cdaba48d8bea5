//go:build linux

package gpio

import (
	"context"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealLine waits on an interrupt line through the GPIO character device.
type RealLine struct {
	line    *gpiocdev.Line
	trigger Trigger
	events  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewRealLine requests offset on chip as a pulled-up input with edge
// detection. Both supported interrupt sources are active-low.
func NewRealLine(chip string, offset int, trigger Trigger) (*RealLine, error) {
	l := &RealLine{
		trigger: trigger,
		events:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	edge := gpiocdev.WithFallingEdge
	if trigger == LowLevel {
		edge = gpiocdev.WithBothEdges
	}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("gadgetd"),
		edge,
		gpiocdev.WithEventHandler(l.handle))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	l.line = line
	return l, nil
}

func (l *RealLine) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	select {
	case l.events <- struct{}{}:
	default:
	}
}

// Wait blocks until the line signals, ctx is done, or the line is closed.
func (l *RealLine) Wait(ctx context.Context) error {
	if l.trigger == LowLevel {
		return l.waitLow(ctx)
	}
	return l.waitEvent(ctx)
}

func (l *RealLine) waitEvent(ctx context.Context) error {
	select {
	case <-l.events:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *RealLine) waitLow(ctx context.Context) error {
	for {
		// Discard edges seen before the level check; the read is authoritative.
		select {
		case <-l.events:
		default:
		}
		v, err := l.line.Value()
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		if v == 0 {
			return nil
		}
		if err := l.waitEvent(ctx); err != nil {
			return err
		}
	}
}

// Close releases the line. Pending and later Wait calls return ErrClosed.
func (l *RealLine) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if l.line != nil {
			if cerr := l.line.Close(); cerr != nil {
				err = fmt.Errorf("close line: %w", cerr)
			}
		}
	})
	return err
}
