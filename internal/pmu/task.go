package pmu

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

// DefaultGuard is the pause after each interrupt cycle.
const DefaultGuard = 50 * time.Millisecond

// Device is the IRQ side of the PMU.
type Device interface {
	IRQStatus() ([3]byte, error)
	IRQClearAll() error
}

// TrySender is the best-effort side of the event bus.
type TrySender interface {
	TrySend(m events.Message) bool
}

// Config tunes a Task.
type Config struct {
	Guard time.Duration
	Retry retry.Policy
}

// Task services the PMU interrupt line.
type Task struct {
	dev Device
	irq gpio.Line
	bus TrySender
	cfg Config
	log *logger.Logger

	cycles  atomic.Uint64
	emitted atomic.Uint64
	dropped atomic.Uint64
}

// NewTask wires a PMU task. A zero Guard uses DefaultGuard.
func NewTask(dev Device, irq gpio.Line, bus TrySender, cfg Config, log *logger.Logger) *Task {
	if cfg.Guard <= 0 {
		cfg.Guard = DefaultGuard
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Task{dev: dev, irq: irq, bus: bus, cfg: cfg, log: log}
}

// Cycles reports how many interrupts were serviced.
func (t *Task) Cycles() uint64 { return t.cycles.Load() }

// Emitted reports how many power events reached the bus.
func (t *Task) Emitted() uint64 { return t.emitted.Load() }

// Dropped reports how many power events were lost to a full bus.
func (t *Task) Dropped() uint64 { return t.dropped.Load() }

// Run loops until ctx is done or the PMU fails past its retry budget.
// Cancellation returns nil.
func (t *Task) Run(ctx context.Context) error {
	for {
		if err := t.irq.Wait(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, gpio.ErrClosed) {
				return nil
			}
			return fmt.Errorf("pmu: wait interrupt: %w", err)
		}
		if err := t.service(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := clock.Sleep(ctx, t.cfg.Guard); err != nil {
			return nil
		}
	}
}

// service reads then clears the latched flags and forwards what survives
// the mask. The read must happen before the clear or events are lost.
func (t *Task) service(ctx context.Context) error {
	var status [3]byte
	err := t.cfg.Retry.Do(ctx, func() error {
		var rerr error
		status, rerr = t.dev.IRQStatus()
		return rerr
	})
	if err != nil {
		return fmt.Errorf("pmu: read status: %w", err)
	}
	if err := t.cfg.Retry.Do(ctx, t.dev.IRQClearAll); err != nil {
		return fmt.Errorf("pmu: clear status: %w", err)
	}
	t.cycles.Add(1)
	t.log.Debugf("irq status % x", status[:])

	for _, r := range Decode(status) {
		if t.bus.TrySend(events.Power(r)) {
			t.emitted.Add(1)
			continue
		}
		t.dropped.Add(1)
		t.log.Warnf("event bus full, dropped %s", r)
	}
	return nil
}
