package touch

import (
	"github.com/pocketgadget/gadgetd/internal/drivers/ft6336"
	"github.com/pocketgadget/gadgetd/internal/events"
)

// FT6336Sampler adapts the FT6336 driver to Sampler.
type FT6336Sampler struct {
	dev *ft6336.Device
}

// NewFT6336Sampler wraps dev.
func NewFT6336Sampler(dev *ft6336.Device) *FT6336Sampler {
	return &FT6336Sampler{dev: dev}
}

func (s *FT6336Sampler) Init() error             { return s.dev.Init() }
func (s *FT6336Sampler) InterruptByPulse() error { return s.dev.InterruptByPulse() }

// TouchPoints maps controller actions onto point states: press-down is
// Pressed, contact is Moved, anything else is Released.
func (s *FT6336Sampler) TouchPoints(dst []events.TouchPoint) ([]events.TouchPoint, error) {
	var raw [ft6336.MaxPoints]ft6336.Point
	n, err := s.dev.TouchPoints(raw[:])
	if err != nil {
		return dst, err
	}
	for _, p := range raw[:n] {
		state := events.Released
		switch p.Action {
		case ft6336.PressDown:
			state = events.Pressed
		case ft6336.Contact:
			state = events.Moved
		}
		dst = append(dst, events.TouchPoint{ID: p.ID, State: state, X: p.X, Y: p.Y})
	}
	return dst, nil
}
