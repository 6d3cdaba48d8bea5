package touch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/gpio"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/retry"
)

// DefaultPoll is the sampling interval inside a polling session.
const DefaultPoll = 20 * time.Millisecond

// Sampler reads the touch controller.
type Sampler interface {
	Init() error
	InterruptByPulse() error
	// TouchPoints appends the current contacts to dst.
	TouchPoints(dst []events.TouchPoint) ([]events.TouchPoint, error)
}

// Sender is the blocking side of the event bus.
type Sender interface {
	Send(ctx context.Context, m events.Message) error
}

// Config tunes a Task.
type Config struct {
	Poll  time.Duration
	Retry retry.Policy
}

// Task waits for the touch interrupt and runs polling sessions.
type Task struct {
	sampler Sampler
	irq     gpio.Line
	bus     Sender
	cfg     Config
	log     *logger.Logger
	arb     *Arbiter

	sessions atomic.Uint64
	emitted  atomic.Uint64
}

// NewTask wires a touch task. A zero Poll uses DefaultPoll.
func NewTask(s Sampler, irq gpio.Line, bus Sender, cfg Config, log *logger.Logger) *Task {
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Task{
		sampler: s,
		irq:     irq,
		bus:     bus,
		cfg:     cfg,
		log:     log,
		arb:     NewArbiter(),
	}
}

// Sessions reports how many polling sessions have completed.
func (t *Task) Sessions() uint64 { return t.sessions.Load() }

// Emitted reports how many window events were sent.
func (t *Task) Emitted() uint64 { return t.emitted.Load() }

// Run initialises the controller and loops until ctx is done or the
// controller fails past its retry budget. Cancellation returns nil.
func (t *Task) Run(ctx context.Context) error {
	err := t.run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Task) run(ctx context.Context) error {
	if err := t.cfg.Retry.Do(ctx, t.sampler.Init); err != nil {
		return fmt.Errorf("touch: init controller: %w", err)
	}
	if err := t.cfg.Retry.Do(ctx, t.sampler.InterruptByPulse); err != nil {
		return fmt.Errorf("touch: arm pulse interrupt: %w", err)
	}
	t.log.Infof("controller ready, poll=%v", t.cfg.Poll)

	for {
		if err := t.irq.Wait(ctx); err != nil {
			if errors.Is(err, gpio.ErrClosed) {
				return nil
			}
			return fmt.Errorf("touch: wait interrupt: %w", err)
		}
		if err := t.session(ctx); err != nil {
			return err
		}
		t.sessions.Add(1)
	}
}

// session polls until a sample has no contacts.
func (t *Task) session(ctx context.Context) error {
	buf := make([]events.TouchPoint, 0, 2)
	for {
		var points []events.TouchPoint
		err := t.cfg.Retry.Do(ctx, func() error {
			var rerr error
			points, rerr = t.sampler.TouchPoints(buf[:0])
			return rerr
		})
		if err != nil {
			return fmt.Errorf("touch: read points: %w", err)
		}

		for _, e := range t.arb.Process(points) {
			t.log.Debugf("%s", e)
			if err := t.bus.Send(ctx, events.Window(e)); err != nil {
				return err
			}
			t.emitted.Add(1)
		}

		if err := clock.Sleep(ctx, t.cfg.Poll); err != nil {
			return err
		}
		if t.arb.Idle() {
			return nil
		}
	}
}
