// Package advert rotates BLE advertisements through randomized profiles.
package advert

import (
	"errors"
	"fmt"
)

// PowerLevel indexes the TX power table.
type PowerLevel uint8

// MaxPowerLevel is the highest valid level.
const MaxPowerLevel PowerLevel = 7

// DefaultPowerLevel is the level a randomizer starts with.
const DefaultPowerLevel = MaxPowerLevel

var powerTable = [MaxPowerLevel + 1]int8{-12, -9, -6, -3, 0, 3, 6, 9}

// ErrInvalidPowerLevel is returned for levels above MaxPowerLevel.
var ErrInvalidPowerLevel = errors.New("advert: invalid power level")

// DBm maps the level to transmit power. Out-of-range levels clamp to the top step.
func (p PowerLevel) DBm() int8 {
	if p > MaxPowerLevel {
		p = MaxPowerLevel
	}
	return powerTable[p]
}

func (p PowerLevel) String() string {
	return fmt.Sprintf("%d (%+d dBm)", uint8(p), p.DBm())
}

// ParsePowerLevel validates n as a level.
func ParsePowerLevel(n int) (PowerLevel, error) {
	if n < 0 || n > int(MaxPowerLevel) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPowerLevel, n)
	}
	return PowerLevel(n), nil
}

// ConnMode is the advertising PDU type.
type ConnMode uint8

const (
	NonConnectable ConnMode = iota
	Undirected
)

func (m ConnMode) String() string {
	if m == Undirected {
		return "undirected"
	}
	return "non-connectable"
}

// Profile is one advertising identity.
type Profile struct {
	Payload []byte
	Address [6]byte
	Mode    ConnMode
	Power   PowerLevel
}

// AddressString formats the address in the usual colon form. Address[0]
// is the most significant byte.
func (p Profile) AddressString() string {
	a := p.Address
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Synthesize builds a profile from two random draws.
//
// Bit 8 of r1 picks the long pool, otherwise the short one, and r1 modulo the
// pool size picks the entry. The address takes r1's top half and all of r2;
// its first byte always has the two static-random bits set. Bit 0 of r2
// selects undirected advertising. When the chosen pool is empty the other is
// used; with both empty the payload is nil.
func Synthesize(r1, r2 uint32, long, short [][]byte, power PowerLevel) Profile {
	pool := short
	if (r1>>8)&1 == 1 {
		pool = long
	}
	if len(pool) == 0 {
		if len(long) == 0 {
			pool = short
		} else {
			pool = long
		}
	}
	var payload []byte
	if len(pool) > 0 {
		payload = pool[r1%uint32(len(pool))]
	}

	mode := NonConnectable
	if r2&1 != 0 {
		mode = Undirected
	}
	return Profile{
		Payload: payload,
		Address: [6]byte{
			byte(r1>>16) | 0xC0,
			byte(r1 >> 24),
			byte(r2),
			byte(r2 >> 8),
			byte(r2 >> 16),
			byte(r2 >> 24),
		},
		Mode:  mode,
		Power: power,
	}
}
