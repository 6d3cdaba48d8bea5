package gpio

import (
	"context"
	"errors"
	"testing"
	"time"
)

var _ Line = (*FakeLine)(nil)
var _ Line = (*RealLine)(nil)

func TestFakeLinePending(t *testing.T) {
	l := NewFakeLine(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if got := l.Waits(); got != 2 {
		t.Errorf("Waits: got %d, want 2", got)
	}
}

func TestFakeLineFireUnblocks(t *testing.T) {
	l := NewFakeLine(0)
	errc := make(chan error, 1)
	go func() { errc <- l.Wait(context.Background()) }()

	select {
	case err := <-errc:
		t.Fatalf("Wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	l.Fire()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Fire")
	}
}

func TestFakeLineContextCancel(t *testing.T) {
	l := NewFakeLine(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestFakeLineClose(t *testing.T) {
	l := NewFakeLine(0)
	l.Close()
	l.Close()
	if !l.Closed() {
		t.Error("expected Closed")
	}
	if err := l.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestFakeLineFailWith(t *testing.T) {
	l := NewFakeLine(1)
	boom := errors.New("line gone")
	l.FailWith(boom)
	if err := l.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestTriggerString(t *testing.T) {
	if FallingEdge.String() != "falling-edge" || LowLevel.String() != "low-level" {
		t.Errorf("unexpected names: %s %s", FallingEdge, LowLevel)
	}
}
