// Package dispatch drains the event bus once per frame and applies power
// policy, the screen lock and UI forwarding.
package dispatch

import (
	"context"
	"time"

	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/retry"
)

// Frame delays.
const (
	AnimatingDelay = 10 * time.Millisecond
	IdleDelay      = 50 * time.Millisecond
)

// PMIC calls run inside Tick, so their retries are capped to keep a failing
// call within one animation frame: at most 2ms + 4ms of backoff.
const (
	MaxRetries   = 2
	MaxRetryBase = 2 * time.Millisecond
)

// BrightnessMillivolts maps brightness steps to backlight LDO voltages.
var BrightnessMillivolts = [...]int{2400, 2600, 2800, 3000, 3200}

// DefaultBrightness is the step applied at boot.
const DefaultBrightness = 2

// Source is the consumer side of the event bus.
type Source interface {
	Drain(dst []events.Message) []events.Message
	Dropped() uint64
}

// UI is the UI runtime driven by the dispatcher.
type UI interface {
	DispatchEvent(e events.WindowEvent)
	HasPendingDamage() bool
	Draw() error
	HasActiveAnimations() bool
}

// Power is the PMIC surface the dispatcher controls.
type Power interface {
	SetBacklightEnabled(on bool) error
	SetBacklightVoltage(mv int) error
	SetChargeLED(mode axp2101.LEDMode) error
	PowerOff() error
}

// Publisher forwards power events off-device. It must not block.
type Publisher interface {
	PublishPower(r axp2101.Reason)
}

// Recorder receives dispatcher state for observability.
type Recorder interface {
	SetLocked(locked bool)
	SetBrightness(step, mv int)
	RecordWindow(kind events.WindowEventKind, delivered bool)
	RecordPower(r axp2101.Reason)
	SetBusDropped(n uint64)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPublisher forwards power events to p.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.pub = p }
}

// WithRecorder reports state to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.rec = r }
}

// WithAdvertiser lets Controls forward advertising commands to a.
func WithAdvertiser(a Advertiser) Option {
	return func(d *Dispatcher) { d.advert = a }
}

// WithRetry sets the policy for PMIC calls, capped to MaxRetries and
// MaxRetryBase.
func WithRetry(p retry.Policy) Option {
	return func(d *Dispatcher) { d.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithBrightness sets the step reported before the first SetBrightness.
func WithBrightness(step int) Option {
	return func(d *Dispatcher) { d.brightness = step }
}

// Dispatcher is the single consumer of the event bus.
type Dispatcher struct {
	bus    Source
	ui     UI
	power  Power
	reqs   chan Request
	advert Advertiser
	pub    Publisher
	rec    Recorder
	retry  retry.Policy
	log    *logger.Logger

	locked     bool
	brightness int
	poweredOff bool
	msgs       []events.Message
}

// New creates an unlocked dispatcher.
func New(bus Source, ui UI, power Power, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bus:        bus,
		ui:         ui,
		power:      power,
		reqs:       make(chan Request, RequestCapacity),
		log:        logger.Discard(),
		brightness: DefaultBrightness,
	}
	for _, o := range opts {
		o(d)
	}
	d.retry = frameBounded(d.retry)
	if d.brightness < 0 || d.brightness >= len(BrightnessMillivolts) {
		d.brightness = DefaultBrightness
	}
	if d.rec != nil {
		d.rec.SetLocked(false)
		d.rec.SetBrightness(d.brightness, BrightnessMillivolts[d.brightness])
	}
	return d
}

// Controls returns the command surface for the UI and remote surfaces.
func (d *Dispatcher) Controls() Controls {
	return Controls{reqs: d.reqs, advert: d.advert}
}

// Locked reports the screen lock. Only safe from the dispatcher goroutine
// or after Run returns.
func (d *Dispatcher) Locked() bool { return d.locked }

// Brightness reports the current step, with the same caveat as Locked.
func (d *Dispatcher) Brightness() int { return d.brightness }

// Run ticks until ctx is done. It always returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		delay := d.Tick(ctx)
		if clock.Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// Tick processes one frame and returns the delay before the next.
func (d *Dispatcher) Tick(ctx context.Context) time.Duration {
	d.msgs = d.bus.Drain(d.msgs[:0])
	for _, m := range d.msgs {
		switch {
		case m.Window != nil:
			d.window(*m.Window)
		case m.Power != nil:
			d.powerEvent(ctx, m.Power.Reason)
		}
	}
	d.drainRequests(ctx)

	if d.rec != nil {
		d.rec.SetBusDropped(d.bus.Dropped())
	}

	if d.ui.HasPendingDamage() {
		if err := d.ui.Draw(); err != nil {
			d.log.Warnf("draw: %v", err)
		}
	}
	if d.ui.HasActiveAnimations() {
		return AnimatingDelay
	}
	return IdleDelay
}

func (d *Dispatcher) window(e events.WindowEvent) {
	delivered := !d.locked
	if delivered {
		d.ui.DispatchEvent(e)
	}
	if d.rec != nil {
		d.rec.RecordWindow(e.Kind, delivered)
	}
}

func (d *Dispatcher) powerEvent(ctx context.Context, r axp2101.Reason) {
	if d.rec != nil {
		d.rec.RecordPower(r)
	}
	if d.pub != nil {
		d.pub.PublishPower(r)
	}

	switch r {
	case axp2101.PowerKeyShort:
		d.setLocked(ctx, !d.locked)
	case axp2101.BatteryWarningLevel2:
		d.log.Warnf("battery low, charge LED blinking")
		d.hw(ctx, "charge led", func() error { return d.power.SetChargeLED(axp2101.LEDBlink1Hz) })
	case axp2101.BatteryWarningLevel1:
		d.log.Errorf("battery critical, powering off")
		d.powerOff(ctx)
	default:
		d.log.Infof("power event %s", r)
	}
}

func (d *Dispatcher) setLocked(ctx context.Context, locked bool) {
	d.locked = locked
	d.log.Infof("screen locked=%v", locked)
	d.hw(ctx, "backlight", func() error { return d.power.SetBacklightEnabled(!locked) })
	if d.rec != nil {
		d.rec.SetLocked(locked)
	}
}

func (d *Dispatcher) drainRequests(ctx context.Context) {
	for {
		select {
		case r := <-d.reqs:
			switch r.Kind {
			case ReqPowerOff:
				d.log.Infof("power off requested")
				d.powerOff(ctx)
			case ReqSetBrightness:
				d.setBrightness(ctx, r.Step)
			}
		default:
			return
		}
	}
}

func (d *Dispatcher) setBrightness(ctx context.Context, step int) {
	if step < 0 || step >= len(BrightnessMillivolts) {
		return
	}
	mv := BrightnessMillivolts[step]
	if err := d.hw(ctx, "backlight voltage", func() error { return d.power.SetBacklightVoltage(mv) }); err != nil {
		return
	}
	d.brightness = step
	if d.rec != nil {
		d.rec.SetBrightness(step, mv)
	}
}

func (d *Dispatcher) powerOff(ctx context.Context) {
	if d.poweredOff {
		return
	}
	if d.hw(ctx, "power off", d.power.PowerOff) == nil {
		d.poweredOff = true
	}
}

func frameBounded(p retry.Policy) retry.Policy {
	if p.Retries > MaxRetries {
		p.Retries = MaxRetries
	}
	if p.Base <= 0 || p.Base > MaxRetryBase {
		p.Base = MaxRetryBase
	}
	return p
}

// hw runs a PMIC call under the retry policy. Failures are logged; the
// dispatcher keeps running.
func (d *Dispatcher) hw(ctx context.Context, what string, op func() error) error {
	err := d.retry.Do(ctx, op)
	if err != nil {
		d.log.Errorf("%s: %v", what, err)
	}
	return err
}
