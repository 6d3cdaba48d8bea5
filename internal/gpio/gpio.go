// Package gpio provides interrupt-line waiting with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"errors"
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("gpio: line closed")

// Line is an interrupt input.
type Line interface {
	// Wait blocks until the line signals or ctx is done.
	Wait(ctx context.Context) error

	// Close releases GPIO resources.
	Close() error
}

// Trigger selects how a line signals.
type Trigger int

const (
	// FallingEdge returns from Wait once per high-to-low transition.
	// Edges that arrive while nobody waits are coalesced into one.
	FallingEdge Trigger = iota

	// LowLevel returns from Wait whenever the line reads low, including
	// immediately if it is already low.
	LowLevel
)

func (t Trigger) String() string {
	switch t {
	case FallingEdge:
		return "falling-edge"
	case LowLevel:
		return "low-level"
	}
	return "unknown"
}
