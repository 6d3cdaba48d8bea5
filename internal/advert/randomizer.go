package advert

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/retry"
)

// Timing defaults.
const (
	DefaultHold   = 1000 * time.Millisecond
	DefaultSettle = 50 * time.Millisecond
	DefaultIdle   = 500 * time.Millisecond

	// ControlCapacity bounds the command channel.
	ControlCapacity = 3
)

// CommandKind names a control command.
type CommandKind uint8

const (
	CmdStart CommandKind = iota
	CmdStop
	CmdSetPower
	CmdTerminate
)

func (k CommandKind) String() string {
	switch k {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdSetPower:
		return "set-power"
	case CmdTerminate:
		return "terminate"
	}
	return fmt.Sprintf("command(%d)", uint8(k))
}

// Command is one control message. Level is used by CmdSetPower only.
type Command struct {
	Kind  CommandKind
	Level PowerLevel
}

// Controller sends commands to a Randomizer. Sends block while the channel
// is full and give up when ctx is done.
type Controller struct {
	ch chan<- Command
}

func (c Controller) send(ctx context.Context, cmd Command) error {
	select {
	case c.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c Controller) Start(ctx context.Context) error { return c.send(ctx, Command{Kind: CmdStart}) }
func (c Controller) Stop(ctx context.Context) error  { return c.send(ctx, Command{Kind: CmdStop}) }

// SetPower changes the level used from the next cycle on.
func (c Controller) SetPower(ctx context.Context, level PowerLevel) error {
	if level > MaxPowerLevel {
		return fmt.Errorf("%w: %d", ErrInvalidPowerLevel, level)
	}
	return c.send(ctx, Command{Kind: CmdSetPower, Level: level})
}

// Terminate ends Run after the current cycle.
func (c Controller) Terminate(ctx context.Context) error {
	return c.send(ctx, Command{Kind: CmdTerminate})
}

// State is a point-in-time view of the randomizer.
type State struct {
	Running bool
	Power   PowerLevel
	Cycles  uint64
	Last    Profile
}

// Option configures a Randomizer.
type Option func(*Randomizer)

// WithRand replaces crypto/rand as the source of draws.
func WithRand(r io.Reader) Option {
	return func(a *Randomizer) { a.rand = r }
}

// WithPools sets the payload pools.
func WithPools(long, short [][]byte) Option {
	return func(a *Randomizer) { a.long, a.short = long, short }
}

// WithTiming overrides hold, settle and idle durations. Zero keeps the default.
func WithTiming(hold, settle, idle time.Duration) Option {
	return func(a *Randomizer) {
		if hold > 0 {
			a.hold = hold
		}
		if settle > 0 {
			a.settle = settle
		}
		if idle > 0 {
			a.idle = idle
		}
	}
}

// WithPower sets the initial level.
func WithPower(level PowerLevel) Option {
	return func(a *Randomizer) {
		if level > MaxPowerLevel {
			level = MaxPowerLevel
		}
		a.state.Power = level
	}
}

// WithAutoStart begins advertising without waiting for a Start command.
func WithAutoStart() Option {
	return func(a *Randomizer) { a.state.Running = true }
}

// WithRetry sets the policy for radio calls.
func WithRetry(p retry.Policy) Option {
	return func(a *Randomizer) { a.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Randomizer) { a.log = l }
}

// WithObserver registers fn to receive the state after every change.
// fn runs on the randomizer goroutine and must not block.
func WithObserver(fn func(State)) Option {
	return func(a *Randomizer) { a.observe = fn }
}

// Randomizer cycles the radio through synthesized profiles while running.
type Randomizer struct {
	radio Radio
	cmds  chan Command

	rand               io.Reader
	long, short        [][]byte
	hold, settle, idle time.Duration
	retry              retry.Policy
	log                *logger.Logger
	observe            func(State)

	// set once the radio reports the setting unsupported
	noAddress, noTxPower, noReconfigure bool

	mu    sync.Mutex
	state State
}

// New creates a stopped Randomizer at DefaultPowerLevel.
func New(radio Radio, opts ...Option) *Randomizer {
	a := &Randomizer{
		radio:  radio,
		cmds:   make(chan Command, ControlCapacity),
		rand:   rand.Reader,
		hold:   DefaultHold,
		settle: DefaultSettle,
		idle:   DefaultIdle,
		log:    logger.Discard(),
		state:  State{Power: DefaultPowerLevel},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Controller returns a handle for sending commands.
func (a *Randomizer) Controller() Controller {
	return Controller{ch: a.cmds}
}

// State returns a copy of the current state.
func (a *Randomizer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Randomizer) update(fn func(*State)) {
	a.mu.Lock()
	fn(&a.state)
	s := a.state
	a.mu.Unlock()
	if a.observe != nil {
		a.observe(s)
	}
}

// Run services commands and advertises until Terminate or ctx is done,
// both of which return nil. A radio failure past the retry budget is returned.
func (a *Randomizer) Run(ctx context.Context) error {
	for {
		if a.drain() {
			a.log.Infof("terminated")
			return nil
		}
		if !a.State().Running {
			if clock.Sleep(ctx, a.idle) != nil {
				return nil
			}
			continue
		}
		if err := a.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// drain applies queued commands and reports whether Terminate was seen.
func (a *Randomizer) drain() bool {
	for {
		select {
		case cmd := <-a.cmds:
			a.log.Debugf("command %s", cmd.Kind)
			switch cmd.Kind {
			case CmdStart:
				a.update(func(s *State) { s.Running = true })
			case CmdStop:
				a.update(func(s *State) { s.Running = false })
			case CmdSetPower:
				a.update(func(s *State) { s.Power = cmd.Level })
			case CmdTerminate:
				a.update(func(s *State) { s.Running = false })
				return true
			}
		default:
			return false
		}
	}
}

func (a *Randomizer) draw() (uint32, uint32, error) {
	var b [8]byte
	if _, err := io.ReadFull(a.rand, b[:]); err != nil {
		return 0, 0, fmt.Errorf("advert: random source: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:4]), binary.LittleEndian.Uint32(b[4:]), nil
}

func (a *Randomizer) cycle(ctx context.Context) error {
	r1, r2, err := a.draw()
	if err != nil {
		return err
	}
	p := Synthesize(r1, r2, a.long, a.short, a.State().Power)
	if err := a.apply(ctx, p); err != nil {
		return err
	}

	if err := a.call(ctx, "start", a.radio.Start); err != nil {
		return err
	}
	a.update(func(s *State) {
		s.Cycles++
		s.Last = p
	})
	a.log.Debugf("advertising %s %s power %s", p.AddressString(), p.Mode, p.Power)

	holdErr := clock.Sleep(ctx, a.hold)
	if err := a.call(context.WithoutCancel(ctx), "stop", a.radio.Stop); err != nil {
		return err
	}
	if holdErr != nil {
		return holdErr
	}
	return clock.Sleep(ctx, a.settle)
}

func (a *Randomizer) apply(ctx context.Context, p Profile) error {
	err := a.optional(ctx, "set address", &a.noAddress, func() error {
		return a.radio.SetRandomAddress(p.Address)
	})
	if err != nil {
		return err
	}
	err = a.optional(ctx, "set power", &a.noTxPower, func() error {
		return a.radio.SetTxPower(p.Power.DBm())
	})
	if err != nil {
		return err
	}
	return a.optional(ctx, "configure", &a.noReconfigure, func() error {
		return a.radio.Configure(p.Mode, p.Payload)
	})
}

// optional runs op unless the radio has already reported it unsupported.
// The first ErrUnsupported is logged and the setting is skipped from then on.
func (a *Randomizer) optional(ctx context.Context, what string, skip *bool, op func() error) error {
	if *skip {
		return nil
	}
	err := a.call(ctx, what, op)
	if errors.Is(err, ErrUnsupported) {
		*skip = true
		a.log.Debugf("radio cannot %s, keeping its current setting", what)
		return nil
	}
	return err
}

// call runs one radio operation under the retry policy. ErrUnsupported is
// not retried.
func (a *Randomizer) call(ctx context.Context, what string, op func() error) error {
	err := a.retry.Do(ctx, func() error {
		err := op()
		if errors.Is(err, ErrUnsupported) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("advert: %s: %w", what, err)
	}
	return nil
}
