package pmu

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/gpio"
	"github.com/pocketgadget/gadgetd/internal/i2cbus"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/retry"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		status [3]byte
		want   []axp2101.Reason
	}{
		{"empty", [3]byte{}, nil},
		{"bank0 unmasked", [3]byte{0xC0, 0, 0}, []axp2101.Reason{
			axp2101.BatteryWarningLevel1, axp2101.BatteryWarningLevel2,
		}},
		{"key edges masked", [3]byte{0, 0x03, 0}, nil},
		{"short press", [3]byte{0, 0x0B, 0}, []axp2101.Reason{axp2101.PowerKeyShort}},
		{"bank2 masked bits", [3]byte{0, 0, 0xA0}, nil},
		{"bank2 kept bits", [3]byte{0, 0, 0x5F}, []axp2101.Reason{
			axp2101.BatteryOverVoltage, axp2101.ChargerTimer, axp2101.DieOverTemp,
			axp2101.ChargeStarted, axp2101.ChargeDone, axp2101.LDOOverCurrent,
		}},
		{"register order", [3]byte{0x10, 0x80, 0x01}, []axp2101.Reason{
			axp2101.GaugeNewSOC, axp2101.VbusInserted, axp2101.BatteryOverVoltage,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.status)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeAllSetCount(t *testing.T) {
	got := Decode([3]byte{0xFF, 0xFF, 0xFF})
	if len(got) != 8+6+6 {
		t.Errorf("got %d reasons, want 20", len(got))
	}
}

// fakeDevice records the order of status reads and clears.
type fakeDevice struct {
	mu       sync.Mutex
	statuses [][3]byte
	ops      []string
	readErr  error
	clearErr error
}

func (f *fakeDevice) IRQStatus() ([3]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "read")
	if f.readErr != nil {
		return [3]byte{}, f.readErr
	}
	if len(f.statuses) == 0 {
		return [3]byte{}, nil
	}
	s := f.statuses[0]
	f.statuses = f.statuses[1:]
	return s, nil
}

func (f *fakeDevice) IRQClearAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "clear")
	return f.clearErr
}

func (f *fakeDevice) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func testConfig() Config {
	return Config{Guard: time.Millisecond, Retry: retry.Policy{Retries: 1, Base: time.Millisecond}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTaskReadsThenClearsAndSends(t *testing.T) {
	dev := &fakeDevice{statuses: [][3]byte{
		{0x40, 0x08, 0x00},
		{0x00, 0x03, 0x20},
	}}
	irq := gpio.NewFakeLine(2)
	bus := events.NewBus(events.DefaultCapacity)
	task := NewTask(dev, irq, bus, testConfig(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	waitFor(t, func() bool { return task.Cycles() == 2 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := dev.Ops(); !reflect.DeepEqual(got, []string{"read", "clear", "read", "clear"}) {
		t.Errorf("ops: got %v", got)
	}

	msgs := bus.Drain(nil)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages %v, want 2", len(msgs), msgs)
	}
	if msgs[0].Power.Reason != axp2101.BatteryWarningLevel1 || msgs[1].Power.Reason != axp2101.PowerKeyShort {
		t.Errorf("got %v", msgs)
	}
}

func TestTaskDropsWhenBusFull(t *testing.T) {
	dev := &fakeDevice{statuses: [][3]byte{{0xF0, 0, 0}}}
	bus := events.NewBus(2)
	task := NewTask(dev, gpio.NewFakeLine(1), bus, testConfig(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	waitFor(t, func() bool { return task.Cycles() == 1 && task.Dropped() == 2 })
	if task.Emitted() != 2 {
		t.Errorf("emitted: got %d, want 2", task.Emitted())
	}
	if bus.Dropped() != 2 {
		t.Errorf("bus dropped: got %d, want 2", bus.Dropped())
	}
}

func TestTaskReadFailureIsFatal(t *testing.T) {
	boom := errors.New("nack")
	dev := &fakeDevice{readErr: boom}
	task := NewTask(dev, gpio.NewFakeLine(1), events.NewBus(1), testConfig(), logger.Discard())

	err := task.Run(context.Background())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "read status") {
		t.Fatalf("got %v", err)
	}
	for _, op := range dev.Ops() {
		if op == "clear" {
			t.Fatal("flags cleared without a successful read")
		}
	}
}

func TestTaskClearFailureIsFatal(t *testing.T) {
	dev := &fakeDevice{clearErr: errors.New("nack")}
	task := NewTask(dev, gpio.NewFakeLine(1), events.NewBus(1), testConfig(), logger.Discard())
	err := task.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "clear status") {
		t.Fatalf("got %v", err)
	}
}

func TestTaskWithRealDriver(t *testing.T) {
	conn := i2cbus.NewFakeConn()
	h := i2cbus.New(conn)
	defer h.Release()
	conn.Set(axp2101.Address, 0x48, 0x80, 0x00, 0x00)

	bus := events.NewBus(4)
	task := NewTask(axp2101.New(h), gpio.NewFakeLine(1), bus, testConfig(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	waitFor(t, func() bool { return task.Cycles() == 1 })
	msgs := bus.Drain(nil)
	if len(msgs) != 1 || msgs[0].Power.Reason != axp2101.BatteryWarningLevel2 {
		t.Errorf("got %v", msgs)
	}
	if len(conn.WritesTo(axp2101.Address, 0x48)) != 1 {
		t.Error("expected one clear write")
	}
}
