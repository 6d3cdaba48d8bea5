// Package ft6336 provides a driver for the FocalTech FT6336 capacitive
// touch controller.
//
// The controller tracks at most two contacts. One call to TouchPoints reads
// the status register and both point slots in a single transaction:
//
//	n, err := d.TouchPoints(buf[:])
//
// In pulse (trigger) mode the INT line pulses low whenever new coordinates
// are latched, which is what the daemon waits on.
package ft6336

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x38

// MaxPoints is the number of contacts the controller tracks.
const MaxPoints = 2

// Registers.
const (
	regDevMode    = 0x00
	regTDStatus   = 0x02
	regP1XH       = 0x03
	regThreshold  = 0x80
	regGMode      = 0xA4
	regVendorID   = 0xA8
	pointStride   = 6
	statusReadLen = 1 + MaxPoints*pointStride

	devModeWorking = 0x00
	gModePolling   = 0x00
	gModeTrigger   = 0x01

	// FocalTech panel vendor id.
	VendorID = 0x11
)

// Errors returned by the driver.
var (
	ErrWrongChip = errors.New("ft6336: unexpected vendor id")
)

// Action is the event flag latched with a point.
type Action uint8

const (
	PressDown Action = iota
	LiftUp
	Contact
	NoEvent
)

func (a Action) String() string {
	switch a {
	case PressDown:
		return "press-down"
	case LiftUp:
		return "lift-up"
	case Contact:
		return "contact"
	}
	return "none"
}

// Point is one reported contact.
type Point struct {
	ID     uint8
	Action Action
	X, Y   uint16
}

// Device wraps an I2C connection to an FT6336.
type Device struct {
	bus     drivers.I2C
	Address uint16
}

// New creates a Device on an already configured bus. It does not touch the chip.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:     bus,
		Address: Address,
	}
}

func (d *Device) readReg(reg byte) (byte, error) {
	var v [1]byte
	err := d.bus.Tx(d.Address, []byte{reg}, v[:])
	return v[0], err
}

func (d *Device) writeReg(reg, val byte) error {
	return d.bus.Tx(d.Address, []byte{reg, val}, nil)
}

// Init checks the vendor id and puts the controller in working mode.
func (d *Device) Init() error {
	id, err := d.readReg(regVendorID)
	if err != nil {
		return fmt.Errorf("ft6336: read vendor id: %w", err)
	}
	if id != VendorID {
		return fmt.Errorf("%w: 0x%02x", ErrWrongChip, id)
	}
	if err := d.writeReg(regDevMode, devModeWorking); err != nil {
		return fmt.Errorf("ft6336: set working mode: %w", err)
	}
	return nil
}

// InterruptByPulse makes INT pulse on each new sample instead of holding
// low while touched.
func (d *Device) InterruptByPulse() error {
	if err := d.writeReg(regGMode, gModeTrigger); err != nil {
		return fmt.Errorf("ft6336: set trigger mode: %w", err)
	}
	return nil
}

// InterruptByLevel restores the polling (level) interrupt mode.
func (d *Device) InterruptByLevel() error {
	if err := d.writeReg(regGMode, gModePolling); err != nil {
		return fmt.Errorf("ft6336: set polling mode: %w", err)
	}
	return nil
}

// SetThreshold sets the touch detection threshold.
func (d *Device) SetThreshold(v byte) error {
	if err := d.writeReg(regThreshold, v); err != nil {
		return fmt.Errorf("ft6336: set threshold: %w", err)
	}
	return nil
}

// TouchPoints reads the current contacts into dst and returns how many were
// written. An out-of-range status count is reported as no contacts.
func (d *Device) TouchPoints(dst []Point) (int, error) {
	var buf [statusReadLen]byte
	if err := d.bus.Tx(d.Address, []byte{regTDStatus}, buf[:]); err != nil {
		return 0, fmt.Errorf("ft6336: read points: %w", err)
	}
	n := int(buf[0] & 0x0F)
	if n > MaxPoints {
		return 0, nil
	}
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		p := buf[1+i*pointStride:]
		dst[i] = Point{
			Action: Action(p[0] >> 6),
			X:      uint16(p[0]&0x0F)<<8 | uint16(p[1]),
			ID:     p[2] >> 4,
			Y:      uint16(p[2]&0x0F)<<8 | uint16(p[3]),
		}
	}
	return n, nil
}
