package i2cbus

import (
	"errors"
	"sync"
)

// FakeConn is a register-map test double for register-addressed devices.
// A Tx with a read buffer reads consecutive registers starting at w[0];
// a Tx without one writes w[1:] starting at w[0].
type FakeConn struct {
	mu sync.Mutex

	regs map[uint16]*[256]byte

	// Writes records every write transaction in order.
	Writes []Write

	// TxError, if set, is returned by the next FailCount transactions
	// (or every transaction when FailCount is zero).
	TxError   error
	FailCount int

	// Closed tracks if Close was called.
	Closed bool
}

// Write is one recorded register write.
type Write struct {
	Addr uint16
	Reg  byte
	Data []byte
}

// NewFakeConn creates an empty register map.
func NewFakeConn() *FakeConn {
	return &FakeConn{regs: make(map[uint16]*[256]byte)}
}

func (f *FakeConn) bank(addr uint16) *[256]byte {
	b, ok := f.regs[addr]
	if !ok {
		b = new([256]byte)
		f.regs[addr] = b
	}
	return b
}

// Set seeds registers without recording a write.
func (f *FakeConn) Set(addr uint16, reg byte, data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bank(addr)
	for i, v := range data {
		b[(int(reg)+i)&0xFF] = v
	}
}

// Reg returns the current value of one register.
func (f *FakeConn) Reg(addr uint16, reg byte) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bank(addr)[reg]
}

// WritesTo returns the recorded writes to one register.
func (f *FakeConn) WritesTo(addr uint16, reg byte) []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Write
	for _, w := range f.Writes {
		if w.Addr == addr && w.Reg == reg {
			out = append(out, w)
		}
	}
	return out
}

// Tx implements Conn.
func (f *FakeConn) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return errors.New("fake i2c: closed")
	}
	if f.TxError != nil {
		if f.FailCount == 0 {
			return f.TxError
		}
		f.FailCount--
		if f.FailCount == 0 {
			err := f.TxError
			f.TxError = nil
			return err
		}
		return f.TxError
	}
	if len(w) == 0 {
		return errors.New("fake i2c: empty write")
	}
	b := f.bank(addr)
	reg := w[0]
	if len(r) > 0 {
		for i := range r {
			r[i] = b[(int(reg)+i)&0xFF]
		}
		return nil
	}
	data := append([]byte(nil), w[1:]...)
	for i, v := range data {
		b[(int(reg)+i)&0xFF] = v
	}
	f.Writes = append(f.Writes, Write{Addr: addr, Reg: reg, Data: data})
	return nil
}

// Close marks the connection closed.
func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
