// Package ui is a headless UI runtime: a one-row menu driven by the three
// touch keys, with damage and animation tracking for the dispatcher.
package ui

import (
	"context"
	"sync"
	"time"

	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/logger"
)

// Highlight is how long a selection animates after a key press.
const Highlight = 150 * time.Millisecond

// commandTimeout bounds a command issued from an event handler, which runs
// on the dispatcher goroutine that drains the same channels.
const commandTimeout = 100 * time.Millisecond

// Commands is what menu items may trigger.
type Commands interface {
	PowerOff(ctx context.Context) error
	SetBrightness(ctx context.Context, step int) error
	StartAdvertising(ctx context.Context) error
	StopAdvertising(ctx context.Context) error
	SetAdvertisingPower(ctx context.Context, level int) error
}

// Item is a menu entry.
type Item uint8

const (
	ItemAdvertise Item = iota
	ItemTxPower
	ItemBrightness
	ItemPowerOff
	numItems
)

var itemNames = [numItems]string{"advertise", "tx-power", "brightness", "power-off"}

func (i Item) String() string {
	if i < numItems {
		return itemNames[i]
	}
	return "unknown"
}

// View is the state a renderer would draw.
type View struct {
	Focus       Item
	Advertising bool
	TxPower     int
	Brightness  int
	Pointer     *events.Position
	Frames      int
}

// Headless implements the dispatcher's UI without a display.
type Headless struct {
	mu        sync.Mutex
	cmds      Commands
	log       *logger.Logger
	now       func() time.Duration
	view      View
	damage    bool
	animUntil time.Duration
}

// New creates a Headless UI with every item at its default. Bind must be
// called before key presses have an effect.
func New(log *logger.Logger) *Headless {
	if log == nil {
		log = logger.Discard()
	}
	return &Headless{
		log:    log,
		now:    clock.Since,
		view:   View{TxPower: 7, Brightness: 2},
		damage: true,
	}
}

// Bind attaches the command surface.
func (h *Headless) Bind(cmds Commands) {
	h.mu.Lock()
	h.cmds = cmds
	h.mu.Unlock()
}

// SetAdvertising mirrors the randomizer state without issuing commands.
func (h *Headless) SetAdvertising(running bool, txPower int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.view.Advertising != running || h.view.TxPower != txPower {
		h.view.Advertising = running
		h.view.TxPower = txPower
		h.damage = true
	}
}

// SetBrightness mirrors the backlight step without issuing commands.
func (h *Headless) SetBrightness(step int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.view.Brightness != step {
		h.view.Brightness = step
		h.damage = true
	}
}

// View returns the current view.
func (h *Headless) View() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.view
	if v.Pointer != nil {
		p := *v.Pointer
		v.Pointer = &p
	}
	return v
}

func (h *Headless) DispatchEvent(e events.WindowEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.damage = true

	switch e.Kind {
	case events.PointerPressed, events.PointerMoved, events.PointerReleased:
		p := e.Pos
		h.view.Pointer = &p
	case events.PointerExited:
		h.view.Pointer = nil
	case events.KeyPressed:
		h.animUntil = h.now() + Highlight
	case events.KeyReleased:
		h.key(e.Key)
	}
}

// key acts on release so a press held across a lock toggle does nothing.
func (h *Headless) key(k events.Key) {
	switch k {
	case events.KeyLeft:
		h.view.Focus = (h.view.Focus + numItems - 1) % numItems
	case events.KeyRight:
		h.view.Focus = (h.view.Focus + 1) % numItems
	case events.KeySelect:
		h.activate()
	}
}

func (h *Headless) activate() {
	if h.cmds == nil {
		h.log.Warnf("%s selected before commands were bound", h.view.Focus)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch h.view.Focus {
	case ItemAdvertise:
		if h.view.Advertising {
			err = h.cmds.StopAdvertising(ctx)
		} else {
			err = h.cmds.StartAdvertising(ctx)
		}
		if err == nil {
			h.view.Advertising = !h.view.Advertising
		}
	case ItemTxPower:
		next := (h.view.TxPower + 1) % 8
		if err = h.cmds.SetAdvertisingPower(ctx, next); err == nil {
			h.view.TxPower = next
		}
	case ItemBrightness:
		next := (h.view.Brightness + 1) % 5
		if err = h.cmds.SetBrightness(ctx, next); err == nil {
			h.view.Brightness = next
		}
	case ItemPowerOff:
		err = h.cmds.PowerOff(ctx)
	}
	if err != nil {
		h.log.Warnf("%s: %v", h.view.Focus, err)
	}
}

func (h *Headless) HasPendingDamage() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.damage
}

// Draw renders nothing; it clears damage and counts frames.
func (h *Headless) Draw() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.damage = false
	h.view.Frames++
	return nil
}

func (h *Headless) HasActiveAnimations() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now() < h.animUntil
}
