package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketgadget/gadgetd/internal/advert"
	"github.com/pocketgadget/gadgetd/internal/config"
	"github.com/pocketgadget/gadgetd/internal/dispatch"
	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
	"github.com/pocketgadget/gadgetd/internal/drivers/bluez"
	"github.com/pocketgadget/gadgetd/internal/drivers/ft6336"
	"github.com/pocketgadget/gadgetd/internal/drivers/hci"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/gpio"
	"github.com/pocketgadget/gadgetd/internal/i2cbus"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/pmu"
	"github.com/pocketgadget/gadgetd/internal/retry"
	"github.com/pocketgadget/gadgetd/internal/status"
	"github.com/pocketgadget/gadgetd/internal/touch"
	"github.com/pocketgadget/gadgetd/internal/ui"
)

// hardware is everything on the shared I2C bus plus the interrupt lines.
type hardware struct {
	buses    []*i2cbus.Handle
	pmic     *axp2101.Device
	panel    *ft6336.Device
	touchIRQ gpio.Line
	pmuIRQ   gpio.Line
}

// bringUp opens the bus, checks the PMU and arms its interrupts. Each
// driver gets its own handle so the bus closes with the last one.
func bringUp(cfg *config.Config, log *logger.Logger) (*hardware, error) {
	root, err := i2cbus.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, err
	}
	hw := &hardware{buses: []*i2cbus.Handle{root}}

	pmuBus, touchBus := root.Clone(), root.Clone()
	hw.buses = append(hw.buses, pmuBus, touchBus)
	hw.pmic = axp2101.New(pmuBus)
	hw.panel = ft6336.New(touchBus)

	if err := hw.initPMU(); err != nil {
		hw.Close()
		return nil, err
	}
	log.Infof("pmu ready, irq mask % x", pmu.Mask)

	touchIRQ, err := gpio.NewRealLine(cfg.Touch.Chip, cfg.Touch.Line, gpio.FallingEdge)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("touch irq: %w", err)
	}
	hw.touchIRQ = touchIRQ
	pmuIRQ, err := gpio.NewRealLine(cfg.PMU.Chip, cfg.PMU.Line, gpio.LowLevel)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("pmu irq: %w", err)
	}
	hw.pmuIRQ = pmuIRQ
	// The root handle only existed to hand out clones.
	root.Release()
	hw.buses = hw.buses[1:]
	return hw, nil
}

func (hw *hardware) initPMU() error {
	if err := hw.pmic.Probe(); err != nil {
		return err
	}
	if err := hw.pmic.EnableIRQs(pmu.Mask); err != nil {
		return err
	}
	// Stale flags would hold the level-triggered line low forever.
	return hw.pmic.IRQClearAll()
}

// setBacklight applies a brightness step before the dispatcher takes over.
func (hw *hardware) setBacklight(step int, p retry.Policy) error {
	if step < 0 || step >= len(dispatch.BrightnessMillivolts) {
		step = dispatch.DefaultBrightness
	}
	return p.Do(context.Background(), func() error {
		if err := hw.pmic.SetBLDO1Voltage(dispatch.BrightnessMillivolts[step]); err != nil {
			return err
		}
		return hw.pmic.SetBLDO1Enabled(true)
	})
}

func (hw *hardware) touchTask(bus *events.Bus, cfg *config.Config, p retry.Policy, log *logger.Logger) *touch.Task {
	return touch.NewTask(touch.NewFT6336Sampler(hw.panel), hw.touchIRQ, bus, touch.Config{
		Poll:  ms(cfg.Touch.PollMs),
		Retry: p,
	}, log)
}

func (hw *hardware) pmuTask(bus *events.Bus, cfg *config.Config, p retry.Policy, log *logger.Logger) *pmu.Task {
	return pmu.NewTask(hw.pmic, hw.pmuIRQ, bus, pmu.Config{
		Guard: ms(cfg.PMU.GuardMs),
		Retry: p,
	}, log)
}

// Close releases the lines and every bus handle.
func (hw *hardware) Close() {
	if hw.touchIRQ != nil {
		hw.touchIRQ.Close()
	}
	if hw.pmuIRQ != nil {
		hw.pmuIRQ.Close()
	}
	for _, b := range hw.buses {
		b.Release()
	}
	hw.buses = nil
}

// advertiser is a Randomizer and the radio it owns.
type advertiser struct {
	*advert.Randomizer
	close func() error
}

func (a *advertiser) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// openAdvertiser opens the configured radio backend. It returns nil, nil
// when advertising is off.
func openAdvertiser(cfg *config.Config, tracker *status.Tracker, view *ui.Headless, p retry.Policy, log *logger.Logger) (*advertiser, error) {
	var (
		radio   advert.Radio
		closeFn func() error
	)
	switch cfg.Advert.Backend {
	case "off":
		return nil, nil
	case "hci":
		r, err := hci.Open(cfg.Advert.HCIDevice)
		if err != nil {
			return nil, err
		}
		radio, closeFn = r, r.Close
	case "bluez":
		r, err := bluez.Open()
		if err != nil {
			return nil, err
		}
		radio = r
	default:
		return nil, fmt.Errorf("unknown radio backend %q", cfg.Advert.Backend)
	}

	power, err := advert.ParsePowerLevel(cfg.Advert.DefaultPower)
	if err != nil {
		power = advert.DefaultPowerLevel
	}
	long, short := cfg.DecodePools()
	opts := []advert.Option{
		advert.WithPools(long, short),
		advert.WithTiming(ms(cfg.Advert.HoldMs), ms(cfg.Advert.SettleMs), ms(cfg.Advert.IdleMs)),
		advert.WithPower(power),
		advert.WithRetry(p),
		advert.WithLogger(log),
		advert.WithObserver(func(st advert.State) {
			tracker.SetAdvert(st)
			view.SetAdvertising(st.Running, int(st.Power))
		}),
	}
	if cfg.Advert.AutoStart {
		opts = append(opts, advert.WithAutoStart())
	}
	log.Infof("radio backend %s, %d long and %d short payloads", cfg.Advert.Backend, len(long), len(short))
	return &advertiser{Randomizer: advert.New(radio, opts...), close: closeFn}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
