package dispatch

import "github.com/pocketgadget/gadgetd/internal/drivers/axp2101"

// PMIC implements Power on an AXP2101 whose BLDO1 rail feeds the backlight.
type PMIC struct {
	dev *axp2101.Device
	// sync flushes filesystems before the rails drop.
	sync func()
}

// NewPMIC wraps dev.
func NewPMIC(dev *axp2101.Device) *PMIC {
	return &PMIC{dev: dev, sync: syncFilesystems}
}

func (p *PMIC) SetBacklightEnabled(on bool) error       { return p.dev.SetBLDO1Enabled(on) }
func (p *PMIC) SetBacklightVoltage(mv int) error        { return p.dev.SetBLDO1Voltage(mv) }
func (p *PMIC) SetChargeLED(mode axp2101.LEDMode) error { return p.dev.SetChargeLED(mode) }

// PowerOff syncs filesystems and asks the PMIC to cut all rails.
func (p *PMIC) PowerOff() error {
	p.sync()
	return p.dev.PowerOff()
}
