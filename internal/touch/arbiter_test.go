package touch

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/pocketgadget/gadgetd/internal/events"
)

func pt(id uint8, x, y uint16, s events.PointState) events.TouchPoint {
	return events.TouchPoint{ID: id, X: x, Y: y, State: s}
}

func pointer(kind events.WindowEventKind, x, y uint16) events.WindowEvent {
	return events.Pointer(kind, x, y)
}

var exited = events.WindowEvent{Kind: events.PointerExited}

func key(kind events.WindowEventKind, k events.Key) events.WindowEvent {
	return events.KeyEvent(kind, k)
}

// run feeds samples and collects all events.
func run(a *Arbiter, samples ...[]events.TouchPoint) []events.WindowEvent {
	var out []events.WindowEvent
	for _, s := range samples {
		out = append(out, a.Process(s)...)
	}
	return out
}

func assertEvents(t *testing.T, got, want []events.WindowEvent) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events:\n got  %v\n want %v", got, want)
	}
}

func TestZoneOf(t *testing.T) {
	tests := []struct {
		x, y uint16
		want Zone
	}{
		{0, 0, Gesture},
		{319, 239, Gesture},
		{0, 240, ButtonLeft},
		{106, 279, ButtonLeft},
		{107, 240, ButtonCenter},
		{213, 260, ButtonCenter},
		{214, 260, ButtonRight},
		{319, 279, ButtonRight},
	}
	for _, tt := range tests {
		if got := ZoneOf(tt.x, tt.y); got != tt.want {
			t.Errorf("ZoneOf(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestZoneKey(t *testing.T) {
	tests := []struct {
		z    Zone
		want events.Key
		ok   bool
	}{
		{ButtonLeft, events.KeyLeft, true},
		{ButtonCenter, events.KeySelect, true},
		{ButtonRight, events.KeyRight, true},
		{Gesture, 0, false},
	}
	for _, tt := range tests {
		k, ok := tt.z.Key()
		if k != tt.want || ok != tt.ok {
			t.Errorf("%v.Key() = %v, %v", tt.z, k, ok)
		}
	}
}

func TestScenarioPointerPressDedupRelease(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 50, 50, events.Pressed)},
		[]events.TouchPoint{pt(0, 50, 50, events.Moved)},
		nil,
	)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 50, 50),
		pointer(events.PointerReleased, 50, 50),
		exited,
	})
	if !a.Idle() {
		t.Error("expected idle after empty sample")
	}
}

func TestScenarioButtonPressRelease(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 200, 260, events.Pressed)},
		nil,
	)
	assertEvents(t, got, []events.WindowEvent{
		key(events.KeyPressed, events.KeySelect),
		key(events.KeyReleased, events.KeySelect),
	})
}

func TestScenarioPointerAndButtonCoexist(t *testing.T) {
	a := NewArbiter()
	got := a.Process([]events.TouchPoint{
		pt(0, 100, 100, events.Pressed),
		pt(1, 300, 270, events.Pressed),
	})
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 100, 100),
		key(events.KeyPressed, events.KeyRight),
	})
	if id, ok := a.Pointer(); !ok || id != 0 {
		t.Fatalf("pointer: got %d,%v want 0", id, ok)
	}

	// Button lifts first; pointer keeps moving.
	got = a.Process([]events.TouchPoint{pt(0, 110, 100, events.Moved)})
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerMoved, 110, 100),
		key(events.KeyReleased, events.KeyRight),
	})

	got = a.Process(nil)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerReleased, 110, 100),
		exited,
	})
	if _, ok := a.Pointer(); ok {
		t.Error("pointer not cleared")
	}
}

func TestSecondGestureContactIgnored(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 10, 10, events.Pressed)},
		[]events.TouchPoint{pt(0, 10, 10, events.Moved), pt(1, 200, 200, events.Pressed)},
		[]events.TouchPoint{pt(0, 12, 10, events.Moved), pt(1, 210, 200, events.Moved)},
	)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 10, 10),
		pointer(events.PointerMoved, 12, 10),
	})
	if a.Active(1) {
		t.Error("ignored contact must not become active")
	}
}

func TestIgnoredGestureContactKeepsZone(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 50, 50, events.Pressed), pt(1, 100, 100, events.Pressed)},
		[]events.TouchPoint{pt(0, 50, 50, events.Moved), pt(1, 50, 260, events.Moved)},
		[]events.TouchPoint{pt(0, 50, 50, events.Moved), pt(1, 200, 270, events.Moved)},
	)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 50, 50),
	})
	if z, ok := a.ContactZone(1); !ok || z != Gesture {
		t.Errorf("zone of contact 1: got %v,%v want gesture", z, ok)
	}

	// Lifting it ends the contact without a key release.
	got = a.Process([]events.TouchPoint{pt(0, 50, 50, events.Moved)})
	assertEvents(t, got, nil)
	if _, ok := a.ContactZone(1); ok {
		t.Error("zone kept after contact lifted")
	}

	// The same id landing on a key later is a new contact.
	got = a.Process([]events.TouchPoint{pt(0, 50, 50, events.Moved), pt(1, 50, 260, events.Pressed)})
	assertEvents(t, got, []events.WindowEvent{
		key(events.KeyPressed, events.KeyLeft),
	})
}

func TestContactZoneAssignedOnFirstSample(t *testing.T) {
	a := NewArbiter()
	a.Process([]events.TouchPoint{pt(0, 10, 10, events.Pressed), pt(2, 300, 270, events.Pressed)})
	tests := []struct {
		id   uint8
		want Zone
		ok   bool
	}{
		{0, Gesture, true},
		{2, ButtonRight, true},
		{1, 0, false},
		{20, 0, false},
	}
	for _, tt := range tests {
		z, ok := a.ContactZone(tt.id)
		if z != tt.want || ok != tt.ok {
			t.Errorf("ContactZone(%d) = %v,%v want %v,%v", tt.id, z, ok, tt.want, tt.ok)
		}
	}
}

func TestPointerHandover(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 10, 10, events.Pressed), pt(1, 50, 50, events.Pressed)},
		[]events.TouchPoint{pt(1, 50, 50, events.Moved)},
		[]events.TouchPoint{pt(1, 50, 50, events.Moved)},
	)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 10, 10),
		pointer(events.PointerReleased, 10, 10),
		exited,
		pointer(events.PointerPressed, 50, 50),
	})
}

func TestPointerDraggedIntoButtonZone(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 60, 200, events.Pressed)},
		[]events.TouchPoint{pt(0, 60, 250, events.Moved)},
		nil,
	)
	// The pointer never produces key events and releases at its last
	// gesture-zone position.
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 60, 200),
		pointer(events.PointerReleased, 60, 200),
		exited,
	})
}

func TestButtonDraggedIntoGestureZone(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 20, 260, events.Pressed)},
		[]events.TouchPoint{pt(0, 20, 100, events.Moved)},
		[]events.TouchPoint{pt(0, 250, 100, events.Moved)},
		nil,
	)
	assertEvents(t, got, []events.WindowEvent{
		key(events.KeyPressed, events.KeyLeft),
		key(events.KeyReleased, events.KeyLeft),
	})
	if _, ok := a.Pointer(); ok {
		t.Error("button contact must never own the pointer")
	}
}

func TestButtonNoRepeat(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(1, 5, 270, events.Pressed)},
		[]events.TouchPoint{pt(1, 6, 271, events.Moved)},
		[]events.TouchPoint{pt(1, 150, 271, events.Moved)},
		nil,
	)
	assertEvents(t, got, []events.WindowEvent{
		key(events.KeyPressed, events.KeyLeft),
		key(events.KeyReleased, events.KeyLeft),
	})
}

func TestRetouchSamePositionAfterRelease(t *testing.T) {
	a := NewArbiter()
	got := run(a,
		[]events.TouchPoint{pt(0, 30, 30, events.Pressed)},
		nil,
		[]events.TouchPoint{pt(0, 30, 30, events.Pressed)},
	)
	assertEvents(t, got, []events.WindowEvent{
		pointer(events.PointerPressed, 30, 30),
		pointer(events.PointerReleased, 30, 30),
		exited,
		pointer(events.PointerPressed, 30, 30),
	})
}

func TestIdleTracksLastSample(t *testing.T) {
	a := NewArbiter()
	if !a.Idle() {
		t.Error("new arbiter should be idle")
	}
	a.Process([]events.TouchPoint{pt(0, 1, 1, events.Pressed)})
	if a.Idle() {
		t.Error("not idle with a contact")
	}
	a.Process(nil)
	if !a.Idle() {
		t.Error("idle after empty sample")
	}
}

func TestOutOfRangeIDIgnored(t *testing.T) {
	a := NewArbiter()
	got := a.Process([]events.TouchPoint{pt(20, 10, 10, events.Pressed)})
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

// TestRandomSequencesInvariants drives random two-contact samples and
// checks single ownership and press/release pairing.
func TestRandomSequencesInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		a := NewArbiter()
		pointerDown := false
		keysDown := map[events.Key]int{}

		for step := 0; step < 60; step++ {
			var sample []events.TouchPoint
			for id := uint8(0); id < 2; id++ {
				if rng.Intn(3) == 0 {
					continue
				}
				sample = append(sample, pt(id, uint16(rng.Intn(320)), uint16(rng.Intn(280)), events.Moved))
			}
			if step == 59 {
				sample = nil
			}
			for _, e := range a.Process(sample) {
				switch e.Kind {
				case events.PointerPressed:
					if pointerDown {
						t.Fatalf("round %d: second PointerPressed without release", round)
					}
					pointerDown = true
				case events.PointerMoved:
					if !pointerDown {
						t.Fatalf("round %d: PointerMoved without press", round)
					}
				case events.PointerReleased:
					if !pointerDown {
						t.Fatalf("round %d: PointerReleased without press", round)
					}
					pointerDown = false
				case events.KeyPressed:
					keysDown[e.Key]++
				case events.KeyReleased:
					keysDown[e.Key]--
					if keysDown[e.Key] < 0 {
						t.Fatalf("round %d: KeyReleased(%v) without press", round, e.Key)
					}
				}
			}
			if _, ok := a.Pointer(); ok != pointerDown {
				t.Fatalf("round %d step %d: pointer owned=%v but pressed=%v", round, step, ok, pointerDown)
			}
		}
		if pointerDown {
			t.Fatalf("round %d: pointer left pressed", round)
		}
		for k, n := range keysDown {
			if n != 0 {
				t.Fatalf("round %d: key %v unbalanced (%d)", round, k, n)
			}
		}
		if _, ok := a.Pointer(); ok {
			t.Fatalf("round %d: pointer owned after empty sample", round)
		}
	}
}
