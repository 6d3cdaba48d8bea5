// Package i2cbus shares one physical I2C bus between device drivers.
//
// The bus is owned by a reference count: New returns the first Handle, Clone
// hands out more, and the underlying connection is closed when the last
// Handle is released. Every Tx holds the bus lock for exactly one
// write/read transaction, so no caller can keep the bus across a sleep.
//
// Handle satisfies tinygo.org/x/drivers.I2C.
package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// ErrReleased is returned by Tx on a Handle that has been released.
var ErrReleased = errors.New("i2cbus: handle released")

// Conn is the raw bus. periph's i2c.BusCloser satisfies it.
type Conn interface {
	Tx(addr uint16, w, r []byte) error
	Close() error
}

type shared struct {
	mu   sync.Mutex
	conn Conn
	refs int
}

// Handle is one reference to a shared bus.
type Handle struct {
	s        *shared
	once     sync.Once
	released bool
	mu       sync.Mutex
}

var _ drivers.I2C = (*Handle)(nil)

// New takes ownership of conn and returns the first reference to it.
func New(conn Conn) *Handle {
	return &Handle{s: &shared{conn: conn, refs: 1}}
}

// Clone returns another reference to the same bus.
func (h *Handle) Clone() *Handle {
	h.s.mu.Lock()
	h.s.refs++
	h.s.mu.Unlock()
	return &Handle{s: h.s}
}

// Tx performs a single write-then-read transaction under the bus lock.
func (h *Handle) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return ErrReleased
	}

	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.s.conn == nil {
		return ErrReleased
	}
	if err := h.s.conn.Tx(addr, w, r); err != nil {
		return fmt.Errorf("i2c tx 0x%02x: %w", addr, err)
	}
	return nil
}

// Refs reports the live reference count.
func (h *Handle) Refs() int {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.refs
}

// Release drops this reference. Releasing twice is a no-op.
// The last release closes the bus.
func (h *Handle) Release() error {
	var err error
	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()

		h.s.mu.Lock()
		defer h.s.mu.Unlock()
		h.s.refs--
		if h.s.refs == 0 && h.s.conn != nil {
			err = h.s.conn.Close()
			h.s.conn = nil
		}
	})
	return err
}
