package advert

import "errors"

// ErrUnsupported is returned by radios that cannot honour a setting.
// The randomizer carries on without it.
var ErrUnsupported = errors.New("advert: not supported by radio")

// Radio is the advertising side of a BLE controller.
type Radio interface {
	SetRandomAddress(addr [6]byte) error
	SetTxPower(dBm int8) error
	Configure(mode ConnMode, payload []byte) error
	Start() error
	Stop() error
}
