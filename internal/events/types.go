// Package events defines the messages producers hand to the dispatcher
// and the bounded bus that carries them.
package events

import (
	"fmt"

	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
)

// PointState is the phase of a raw touch contact.
type PointState uint8

const (
	Pressed PointState = iota
	Moved
	Released
)

func (s PointState) String() string {
	switch s {
	case Pressed:
		return "pressed"
	case Moved:
		return "moved"
	case Released:
		return "released"
	}
	return "unknown"
}

// TouchPoint is one raw contact from the touch controller.
type TouchPoint struct {
	ID    uint8
	State PointState
	X, Y  uint16
}

// Position is a logical pointer position.
type Position struct {
	X, Y float32
}

// Button is the pointer button carried by press/release events.
type Button uint8

const (
	ButtonLeft Button = iota
)

// Key is one of the three touch keys under the display.
type Key uint8

const (
	KeyLeft Key = iota
	KeySelect
	KeyRight
)

func (k Key) String() string {
	switch k {
	case KeyLeft:
		return "left"
	case KeySelect:
		return "select"
	case KeyRight:
		return "right"
	}
	return "unknown"
}

// WindowEventKind tags a WindowEvent.
type WindowEventKind uint8

const (
	PointerPressed WindowEventKind = iota
	PointerMoved
	PointerReleased
	PointerExited
	KeyPressed
	KeyReleased

	// NumWindowEventKinds is the number of kinds above.
	NumWindowEventKinds = iota
)

var windowEventNames = [NumWindowEventKinds]string{
	PointerPressed:  "pointer-pressed",
	PointerMoved:    "pointer-moved",
	PointerReleased: "pointer-released",
	PointerExited:   "pointer-exited",
	KeyPressed:      "key-pressed",
	KeyReleased:     "key-released",
}

func (k WindowEventKind) String() string {
	if int(k) < len(windowEventNames) {
		return windowEventNames[k]
	}
	return "unknown"
}

// WindowEvent is an input event for the UI runtime. Pos and Button are set
// for pointer kinds; Key is set for key kinds.
type WindowEvent struct {
	Kind   WindowEventKind
	Pos    Position
	Button Button
	Key    Key
}

func (e WindowEvent) String() string {
	switch e.Kind {
	case PointerPressed, PointerMoved, PointerReleased:
		return fmt.Sprintf("%s(%.0f,%.0f)", e.Kind, e.Pos.X, e.Pos.Y)
	case KeyPressed, KeyReleased:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Key)
	}
	return e.Kind.String()
}

// Pointer builds a pointer event at (x, y).
func Pointer(kind WindowEventKind, x, y uint16) WindowEvent {
	return WindowEvent{Kind: kind, Pos: Position{X: float32(x), Y: float32(y)}, Button: ButtonLeft}
}

// KeyEvent builds a key press or release.
func KeyEvent(kind WindowEventKind, k Key) WindowEvent {
	return WindowEvent{Kind: kind, Key: k}
}

// PowerEvent is one decoded PMU interrupt source.
type PowerEvent struct {
	Reason axp2101.Reason
}

// Message is either a window event or a power event.
type Message struct {
	Window *WindowEvent
	Power  *PowerEvent
}

// Window wraps a WindowEvent.
func Window(e WindowEvent) Message {
	return Message{Window: &e}
}

// Power wraps a PowerEvent.
func Power(r axp2101.Reason) Message {
	return Message{Power: &PowerEvent{Reason: r}}
}

func (m Message) String() string {
	switch {
	case m.Window != nil:
		return "window:" + m.Window.String()
	case m.Power != nil:
		return "power:" + m.Power.Reason.String()
	}
	return "empty"
}
