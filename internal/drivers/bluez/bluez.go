// Package bluez advertises through the host BlueZ daemon.
//
// BlueZ picks the address and TX power itself and accepts one advertisement
// configuration per process, so those calls report advert.ErrUnsupported.
// The advertisement is registered as a broadcast, which is always
// non-connectable; the requested connection mode is ignored.
package bluez

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/pocketgadget/gadgetd/internal/advert"
)

// Radio implements advert.Radio on a BlueZ adapter.
type Radio struct {
	mu         sync.Mutex
	adv        *bluetooth.Advertisement
	configured bool
}

var _ advert.Radio = (*Radio)(nil)

// Open enables the default adapter.
func Open() (*Radio, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("bluez: enable adapter: %w", err)
	}
	return &Radio{adv: adapter.DefaultAdvertisement()}, nil
}

func (r *Radio) SetRandomAddress([6]byte) error {
	return fmt.Errorf("bluez: random address: %w", advert.ErrUnsupported)
}

func (r *Radio) SetTxPower(int8) error {
	return fmt.Errorf("bluez: tx power: %w", advert.ErrUnsupported)
}

// Mode is the only connection mode this backend advertises with.
const Mode = advert.NonConnectable

// Configure registers the advertisement the first time it is called. The
// mode argument is ignored; see Mode.
func (r *Radio) Configure(_ advert.ConnMode, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.configured {
		return fmt.Errorf("bluez: reconfigure: %w", advert.ErrUnsupported)
	}
	opts, err := Options(payload)
	if err != nil {
		return err
	}
	if err := r.adv.Configure(opts); err != nil {
		return fmt.Errorf("bluez: configure: %w", err)
	}
	r.configured = true
	return nil
}

func (r *Radio) Start() error {
	if err := r.adv.Start(); err != nil {
		return fmt.Errorf("bluez: start: %w", err)
	}
	return nil
}

func (r *Radio) Stop() error {
	if err := r.adv.Stop(); err != nil {
		return fmt.Errorf("bluez: stop: %w", err)
	}
	return nil
}

// Options converts raw AD structures into BlueZ advertisement options.
// Manufacturer data and the local name are carried over; BlueZ builds
// flags itself and other AD types are dropped.
func Options(payload []byte) (bluetooth.AdvertisementOptions, error) {
	opts := bluetooth.AdvertisementOptions{
		Interval: bluetooth.NewDuration(100 * time.Millisecond),
	}
	structs, err := ParseAD(payload)
	if err != nil {
		return opts, err
	}
	for _, s := range structs {
		switch s.Type {
		case adManufacturer:
			if len(s.Data) < 2 {
				return opts, fmt.Errorf("bluez: manufacturer data too short")
			}
			opts.ManufacturerData = append(opts.ManufacturerData, bluetooth.ManufacturerDataElement{
				CompanyID: uint16(s.Data[0]) | uint16(s.Data[1])<<8,
				Data:      s.Data[2:],
			})
		case adCompleteName, adShortName:
			opts.LocalName = string(s.Data)
		}
	}
	return opts, nil
}
