// Package axp2101 provides a driver for the X-Powers AXP2101 PMU.
//
// Only the parts the daemon uses are covered: chip identification, the
// three IRQ enable/status banks, the BLDO1 regulator that feeds the
// display backlight, the CHGLED output and software power-off.
//
// Register writes that touch a single field are read-modify-write so that
// neighbouring bits configured by the bootloader are preserved.
package axp2101

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x34

// ChipID is the value of the chip-id register on an AXP2101.
const ChipID = 0x4A

// Registers.
const (
	regChipID       = 0x03
	regCommonConfig = 0x10
	regIRQEnable0   = 0x40
	regIRQStatus0   = 0x48
	regChgLED       = 0x69
	regLDOOnOff0    = 0x90
	regBLDO1Voltage = 0x96
)

// Bit fields.
const (
	commonPowerOff = 1 << 0
	ldoBLDO1Enable = 1 << 4

	chgLEDKeepMask = 0xC8
	chgLEDManual   = 0x05 // enable + register-controlled output

	bldoVoltageMask = 0x1F
)

// BLDO1 output range in millivolts.
const (
	BLDOMinMillivolts  = 500
	BLDOMaxMillivolts  = 3500
	BLDOStepMillivolts = 100
)

// Errors returned by the driver.
var (
	ErrWrongChip = errors.New("axp2101: unexpected chip id")
	ErrRange     = errors.New("axp2101: value out of range")
)

// LEDMode is the CHGLED output in register-controlled mode.
type LEDMode uint8

const (
	LEDOff LEDMode = iota
	LEDBlink1Hz
	LEDBlink4Hz
	LEDOn
)

func (m LEDMode) String() string {
	switch m {
	case LEDOff:
		return "off"
	case LEDBlink1Hz:
		return "blink-1hz"
	case LEDBlink4Hz:
		return "blink-4hz"
	case LEDOn:
		return "on"
	}
	return fmt.Sprintf("LEDMode(%d)", uint8(m))
}

// Device wraps an I2C connection to an AXP2101. It holds no buffers and is
// safe for concurrent use when the bus is. Read-modify-write sequences are
// not atomic; callers that share a register must serialise themselves.
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

func (d *Device) read(reg byte, out []byte) error {
	return d.bus.Tx(d.Address, []byte{reg}, out)
}

func (d *Device) write(reg byte, data ...byte) error {
	w := make([]byte, 0, 1+len(data))
	w = append(w, reg)
	w = append(w, data...)
	return d.bus.Tx(d.Address, w, nil)
}

func (d *Device) update(reg, clear, set byte) error {
	var v [1]byte
	if err := d.read(reg, v[:]); err != nil {
		return err
	}
	return d.write(reg, (v[0]&^clear)|set)
}

// ChipID reads the chip-id register.
func (d *Device) ChipID() (byte, error) {
	var v [1]byte
	if err := d.read(regChipID, v[:]); err != nil {
		return 0, fmt.Errorf("axp2101: read chip id: %w", err)
	}
	return v[0], nil
}

// Probe verifies the chip id.
func (d *Device) Probe() error {
	id, err := d.ChipID()
	if err != nil {
		return err
	}
	if id != ChipID {
		return fmt.Errorf("%w: 0x%02x", ErrWrongChip, id)
	}
	return nil
}

// IRQStatus reads the three status banks in one transaction.
func (d *Device) IRQStatus() ([3]byte, error) {
	var s [3]byte
	if err := d.read(regIRQStatus0, s[:]); err != nil {
		return s, fmt.Errorf("axp2101: read irq status: %w", err)
	}
	return s, nil
}

// IRQClearAll clears every latched IRQ flag. Status bits are write-1-to-clear.
func (d *Device) IRQClearAll() error {
	if err := d.write(regIRQStatus0, 0xFF, 0xFF, 0xFF); err != nil {
		return fmt.Errorf("axp2101: clear irq status: %w", err)
	}
	return nil
}

// EnableIRQs writes the three enable banks.
func (d *Device) EnableIRQs(mask [3]byte) error {
	if err := d.write(regIRQEnable0, mask[0], mask[1], mask[2]); err != nil {
		return fmt.Errorf("axp2101: write irq enable: %w", err)
	}
	return nil
}

// SetBLDO1Voltage sets the backlight regulator output in 100 mV steps.
func (d *Device) SetBLDO1Voltage(mv int) error {
	if mv < BLDOMinMillivolts || mv > BLDOMaxMillivolts || mv%BLDOStepMillivolts != 0 {
		return fmt.Errorf("%w: bldo1 %d mV", ErrRange, mv)
	}
	code := byte((mv - BLDOMinMillivolts) / BLDOStepMillivolts)
	if err := d.update(regBLDO1Voltage, bldoVoltageMask, code); err != nil {
		return fmt.Errorf("axp2101: set bldo1 voltage: %w", err)
	}
	return nil
}

// BLDO1Voltage returns the configured regulator output.
func (d *Device) BLDO1Voltage() (int, error) {
	var v [1]byte
	if err := d.read(regBLDO1Voltage, v[:]); err != nil {
		return 0, fmt.Errorf("axp2101: read bldo1 voltage: %w", err)
	}
	return BLDOMinMillivolts + int(v[0]&bldoVoltageMask)*BLDOStepMillivolts, nil
}

// SetBLDO1Enabled switches the backlight regulator.
func (d *Device) SetBLDO1Enabled(on bool) error {
	var err error
	if on {
		err = d.update(regLDOOnOff0, 0, ldoBLDO1Enable)
	} else {
		err = d.update(regLDOOnOff0, ldoBLDO1Enable, 0)
	}
	if err != nil {
		return fmt.Errorf("axp2101: switch bldo1: %w", err)
	}
	return nil
}

// SetChargeLED puts CHGLED under register control with the given output.
func (d *Device) SetChargeLED(mode LEDMode) error {
	if mode > LEDOn {
		return fmt.Errorf("%w: led mode %d", ErrRange, mode)
	}
	var v [1]byte
	if err := d.read(regChgLED, v[:]); err != nil {
		return fmt.Errorf("axp2101: read chgled: %w", err)
	}
	val := v[0]&chgLEDKeepMask | chgLEDManual | byte(mode)<<4
	if err := d.write(regChgLED, val); err != nil {
		return fmt.Errorf("axp2101: write chgled: %w", err)
	}
	return nil
}

// PowerOff requests a software shutdown. On real hardware the call does
// not return once the write lands.
func (d *Device) PowerOff() error {
	if err := d.update(regCommonConfig, 0, commonPowerOff); err != nil {
		return fmt.Errorf("axp2101: power off: %w", err)
	}
	return nil
}
