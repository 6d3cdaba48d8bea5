// Package touch turns raw touch-controller samples into window events.
//
// The panel is 320x280. The top 240 rows are the gesture zone and drive a
// single pointer. The bottom 40 rows are three touch keys. The Arbiter is a
// pure state machine: no I/O and no clock; the Task feeds it from hardware.
package touch

import "github.com/pocketgadget/gadgetd/internal/events"

// Panel geometry in device pixels.
const (
	Width        = 320
	GestureRows  = 240
	leftKeyEnd   = 107
	centerKeyEnd = 214
)

// maxIDs covers the 4-bit contact id the controller reports.
const maxIDs = 16

// Zone is the region a contact falls in.
type Zone uint8

const (
	Gesture Zone = iota
	ButtonLeft
	ButtonCenter
	ButtonRight
)

func (z Zone) String() string {
	switch z {
	case Gesture:
		return "gesture"
	case ButtonLeft:
		return "button-left"
	case ButtonCenter:
		return "button-center"
	case ButtonRight:
		return "button-right"
	}
	return "unknown"
}

// ZoneOf classifies a position.
func ZoneOf(x, y uint16) Zone {
	if y < GestureRows {
		return Gesture
	}
	return buttonZone(x)
}

func buttonZone(x uint16) Zone {
	switch {
	case x < leftKeyEnd:
		return ButtonLeft
	case x < centerKeyEnd:
		return ButtonCenter
	default:
		return ButtonRight
	}
}

// Key maps a button zone to its key. ok is false for the gesture zone.
func (z Zone) Key() (events.Key, bool) {
	switch z {
	case ButtonLeft:
		return events.KeyLeft, true
	case ButtonCenter:
		return events.KeySelect, true
	case ButtonRight:
		return events.KeyRight, true
	}
	return 0, false
}

// contact is the per-id state. zone is decided when the id is first seen
// and held until the id disappears from a sample, including for gesture
// contacts that never get the pointer.
type contact struct {
	tracked bool
	zone    Zone
	active  bool
	x, y    uint16
}

// Arbiter tracks contacts across samples and owns the pointer.
type Arbiter struct {
	contacts [maxIDs]contact
	pointer  int // -1 when free
	idle     bool
}

// NewArbiter returns an arbiter with no active contacts.
func NewArbiter() *Arbiter {
	return &Arbiter{pointer: -1, idle: true}
}

// Pointer returns the id owning the pointer.
func (a *Arbiter) Pointer() (uint8, bool) {
	if a.pointer < 0 {
		return 0, false
	}
	return uint8(a.pointer), true
}

// Active reports whether id is a tracked contact.
func (a *Arbiter) Active(id uint8) bool {
	return int(id) < maxIDs && a.contacts[id].active
}

// ContactZone returns the zone id was assigned when first seen. ok is false
// when id is not in contact.
func (a *Arbiter) ContactZone(id uint8) (Zone, bool) {
	if int(id) >= maxIDs || !a.contacts[id].tracked {
		return 0, false
	}
	return a.contacts[id].zone, true
}

// Idle reports whether the last sample had no points, which ends a polling
// session.
func (a *Arbiter) Idle() bool {
	return a.idle
}

// Process consumes one sample and returns the events it produces, in order:
// observed points first, then releases of contacts that disappeared.
func (a *Arbiter) Process(points []events.TouchPoint) []events.WindowEvent {
	var out []events.WindowEvent
	var seen [maxIDs]bool

	for _, p := range points {
		if int(p.ID) >= maxIDs {
			continue
		}
		seen[p.ID] = true
		c := &a.contacts[p.ID]
		if !c.tracked {
			c.tracked, c.zone = true, ZoneOf(p.X, p.Y)
		}

		if c.zone == Gesture {
			// Pointer events only while the contact is over the gesture rows.
			if p.Y >= GestureRows {
				continue
			}
			if a.pointer < 0 && !c.active {
				a.pointer = int(p.ID)
			}
			if a.pointer != int(p.ID) {
				continue
			}
			if c.active && c.x == p.X && c.y == p.Y {
				continue
			}
			kind := events.PointerMoved
			if !c.active {
				kind = events.PointerPressed
			}
			out = append(out, events.Pointer(kind, p.X, p.Y))
			c.active, c.x, c.y = true, p.X, p.Y
			continue
		}

		if c.active {
			continue
		}
		key, _ := c.zone.Key()
		out = append(out, events.KeyEvent(events.KeyPressed, key))
		c.active, c.x, c.y = true, p.X, p.Y
	}

	for id := range a.contacts {
		c := &a.contacts[id]
		if !c.tracked || seen[id] {
			continue
		}
		c.tracked = false
		if !c.active {
			continue
		}
		c.active = false
		if a.pointer == id {
			out = append(out,
				events.Pointer(events.PointerReleased, c.x, c.y),
				events.WindowEvent{Kind: events.PointerExited})
			a.pointer = -1
			continue
		}
		key, _ := buttonZone(c.x).Key()
		out = append(out, events.KeyEvent(events.KeyReleased, key))
	}

	a.idle = len(points) == 0
	return out
}

// Reset forgets every contact without emitting releases.
func (a *Arbiter) Reset() {
	*a = Arbiter{pointer: -1, idle: true}
}
