package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pocketgadget/gadgetd/internal/advert"
)

// RequestCapacity bounds the dispatcher's request channel.
const RequestCapacity = 4

// ErrInvalidBrightness is returned for steps outside the table.
var ErrInvalidBrightness = errors.New("dispatch: invalid brightness step")

// ErrNoAdvertiser is returned when no advertiser was attached.
var ErrNoAdvertiser = errors.New("dispatch: advertising not available")

// RequestKind names a dispatcher request.
type RequestKind uint8

const (
	ReqPowerOff RequestKind = iota
	ReqSetBrightness
)

// Request is a command for the dispatcher itself.
type Request struct {
	Kind RequestKind
	Step int
}

// Advertiser is the command side of the advertisement randomizer.
type Advertiser interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPower(ctx context.Context, level advert.PowerLevel) error
}

// Controls is what the UI and the remote surfaces may ask for. Every call
// only enqueues a command; sends block until there is room or ctx is done.
type Controls struct {
	reqs   chan<- Request
	advert Advertiser
}

func (c Controls) request(ctx context.Context, r Request) error {
	select {
	case c.reqs <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PowerOff asks the dispatcher to cut power.
func (c Controls) PowerOff(ctx context.Context) error {
	return c.request(ctx, Request{Kind: ReqPowerOff})
}

// SetBrightness asks for backlight step 0..4.
func (c Controls) SetBrightness(ctx context.Context, step int) error {
	if step < 0 || step >= len(BrightnessMillivolts) {
		return fmt.Errorf("%w: %d", ErrInvalidBrightness, step)
	}
	return c.request(ctx, Request{Kind: ReqSetBrightness, Step: step})
}

func (c Controls) StartAdvertising(ctx context.Context) error {
	if c.advert == nil {
		return ErrNoAdvertiser
	}
	return c.advert.Start(ctx)
}

func (c Controls) StopAdvertising(ctx context.Context) error {
	if c.advert == nil {
		return ErrNoAdvertiser
	}
	return c.advert.Stop(ctx)
}

// SetAdvertisingPower validates level before forwarding it.
func (c Controls) SetAdvertisingPower(ctx context.Context, level int) error {
	if c.advert == nil {
		return ErrNoAdvertiser
	}
	p, err := advert.ParsePowerLevel(level)
	if err != nil {
		return err
	}
	return c.advert.SetPower(ctx, p)
}
