// Package hci drives LE extended advertising over a raw HCI transport.
package hci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pocketgadget/gadgetd/internal/advert"
)

// Packet indicators.
const (
	pktCommand = 0x01
	pktEvent   = 0x04
)

// Event codes.
const (
	evtCommandComplete = 0x0E
	evtCommandStatus   = 0x0F
)

// Opcodes used by Radio.
const (
	OpReset                  uint16 = 0x0C03
	OpLESetAdvSetRandomAddr  uint16 = 0x2035
	OpLESetExtAdvParams      uint16 = 0x2036
	OpLESetExtAdvData        uint16 = 0x2037
	OpLESetExtAdvEnable      uint16 = 0x2039
	OpLERemoveAdvertisingSet uint16 = 0x203C
)

// Legacy advertising event properties.
const (
	propsNonConnectable uint16 = 0x0010 // ADV_NONCONN_IND
	propsUndirected     uint16 = 0x0013 // ADV_IND
)

// advHandle is the single advertising set Radio uses.
const advHandle = 0x00

// maxLegacyData is the AD payload limit for legacy PDUs.
const maxLegacyData = 31

// DefaultInterval is the advertising interval in 0.625 ms units (100 ms).
const DefaultInterval = 0x00A0

var (
	// ErrTimeout is returned when the controller does not answer a command.
	ErrTimeout = errors.New("hci: command timeout")
	// ErrPayloadTooLong is returned for payloads over 31 bytes.
	ErrPayloadTooLong = errors.New("hci: advertising data too long")
)

// StatusError is a non-zero controller status for a command.
type StatusError struct {
	Opcode uint16
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hci: command 0x%04x failed: status 0x%02x", e.Opcode, e.Status)
}

// Radio implements advert.Radio on one advertising set.
//
// The address and TX power are latched and sent with the next Configure,
// since the controller needs the set parameters before its random address.
type Radio struct {
	mu       sync.Mutex
	conn     io.ReadWriteCloser
	interval uint32
	addr     [6]byte
	txPower  int8
	buf      [260]byte
}

var _ advert.Radio = (*Radio)(nil)

// NewRadio wraps a transport that carries H4 framed packets. Reads must
// return one packet each and fail with ErrTimeout when the controller is
// silent.
func NewRadio(conn io.ReadWriteCloser) *Radio {
	return &Radio{conn: conn, interval: DefaultInterval, txPower: 0x7F}
}

// Reset resets the controller.
func (r *Radio) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.command(OpReset, nil)
	return err
}

func (r *Radio) SetRandomAddress(addr [6]byte) error {
	r.mu.Lock()
	r.addr = addr
	r.mu.Unlock()
	return nil
}

func (r *Radio) SetTxPower(dBm int8) error {
	r.mu.Lock()
	r.txPower = dBm
	r.mu.Unlock()
	return nil
}

// Configure sends the set parameters, the latched random address and the
// advertising data.
func (r *Radio) Configure(mode advert.ConnMode, payload []byte) error {
	if len(payload) > maxLegacyData {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(payload))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.command(OpLESetExtAdvParams, advParams(mode, r.interval, r.txPower)); err != nil {
		return err
	}
	if _, err := r.command(OpLESetAdvSetRandomAddr, randomAddr(r.addr)); err != nil {
		return err
	}
	_, err := r.command(OpLESetExtAdvData, advData(payload))
	return err
}

func (r *Radio) Start() error { return r.enable(true) }
func (r *Radio) Stop() error  { return r.enable(false) }

func (r *Radio) enable(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.command(OpLESetExtAdvEnable, advEnable(on))
	return err
}

// Close removes the advertising set and closes the transport.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, rerr := r.command(OpLERemoveAdvertisingSet, []byte{advHandle})
	if err := r.conn.Close(); err != nil {
		return err
	}
	return rerr
}

// command sends one command and waits for its completion. It returns the
// return parameters after the status byte.
func (r *Radio) command(op uint16, params []byte) ([]byte, error) {
	if _, err := r.conn.Write(encodeCommand(op, params)); err != nil {
		return nil, fmt.Errorf("hci: write 0x%04x: %w", op, err)
	}
	for {
		n, err := r.conn.Read(r.buf[:])
		if err != nil {
			return nil, fmt.Errorf("hci: read 0x%04x: %w", op, err)
		}
		ret, done, err := parseCompletion(r.buf[:n], op)
		if done {
			return ret, err
		}
	}
}

func encodeCommand(op uint16, params []byte) []byte {
	pkt := make([]byte, 4, 4+len(params))
	pkt[0] = pktCommand
	binary.LittleEndian.PutUint16(pkt[1:], op)
	pkt[3] = byte(len(params))
	return append(pkt, params...)
}

// parseCompletion reports whether pkt completes op. Unrelated packets are
// skipped with done false.
func parseCompletion(pkt []byte, op uint16) (ret []byte, done bool, err error) {
	if len(pkt) < 3 || pkt[0] != pktEvent {
		return nil, false, nil
	}
	body := pkt[3:]
	if int(pkt[2]) < len(body) {
		body = body[:pkt[2]]
	}
	switch pkt[1] {
	case evtCommandComplete:
		// ncmd, opcode, status, return params
		if len(body) < 4 || binary.LittleEndian.Uint16(body[1:]) != op {
			return nil, false, nil
		}
		if body[3] != 0 {
			return nil, true, &StatusError{Opcode: op, Status: body[3]}
		}
		return body[4:], true, nil
	case evtCommandStatus:
		// status, ncmd, opcode
		if len(body) < 4 || binary.LittleEndian.Uint16(body[2:]) != op {
			return nil, false, nil
		}
		if body[0] != 0 {
			return nil, true, &StatusError{Opcode: op, Status: body[0]}
		}
		return nil, true, nil
	}
	return nil, false, nil
}

func advParams(mode advert.ConnMode, interval uint32, txPower int8) []byte {
	props := propsNonConnectable
	if mode == advert.Undirected {
		props = propsUndirected
	}
	p := make([]byte, 25)
	p[0] = advHandle
	binary.LittleEndian.PutUint16(p[1:], props)
	putUint24(p[3:], interval)
	putUint24(p[6:], interval)
	p[9] = 0x07  // all primary channels
	p[10] = 0x01 // own address: random
	// 11..18: peer address type, peer address and filter policy stay zero
	p[19] = byte(txPower)
	p[20] = 0x01 // primary PHY: LE 1M
	p[22] = 0x01 // secondary PHY: LE 1M
	// 21, 23, 24: secondary max skip, SID and scan request notifications off
	return p
}

// randomAddr encodes addr least significant byte first. addr[0] is the most
// significant byte.
func randomAddr(addr [6]byte) []byte {
	p := make([]byte, 7)
	p[0] = advHandle
	for i := 0; i < 6; i++ {
		p[1+i] = addr[5-i]
	}
	return p
}

func advData(payload []byte) []byte {
	p := make([]byte, 4, 4+len(payload))
	p[0] = advHandle
	p[1] = 0x03 // complete data
	p[2] = 0x01 // no fragmentation
	p[3] = byte(len(payload))
	return append(p, payload...)
}

func advEnable(on bool) []byte {
	p := []byte{0x00, 0x01, advHandle, 0x00, 0x00, 0x00}
	if on {
		p[0] = 0x01
	}
	return p
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
