package hci

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pocketgadget/gadgetd/internal/advert"
)

// fakeController answers every command with Command Complete, optionally
// preceded by noise and with a scripted status per opcode.
type fakeController struct {
	sent    [][]byte
	pending [][]byte
	status  map[uint16]byte
	noise   bool
	silent  bool
	closed  bool
}

func newFakeController() *fakeController {
	return &fakeController{status: map[uint16]byte{}}
}

func (f *fakeController) Write(p []byte) (int, error) {
	f.sent = append(f.sent, append([]byte(nil), p...))
	if f.silent {
		return len(p), nil
	}
	op := binary.LittleEndian.Uint16(p[1:])
	if f.noise {
		// completion for another opcode, then an unrelated event
		f.pending = append(f.pending, []byte{pktEvent, evtCommandComplete, 4, 1, 0xFF, 0xFF, 0})
		f.pending = append(f.pending, []byte{pktEvent, 0x3E, 1, 0x0D})
	}
	ev := []byte{pktEvent, evtCommandComplete, 4, 1, byte(op), byte(op >> 8), f.status[op]}
	f.pending = append(f.pending, ev)
	return len(p), nil
}

func (f *fakeController) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		return 0, ErrTimeout
	}
	ev := f.pending[0]
	f.pending = f.pending[1:]
	return copy(p, ev), nil
}

func (f *fakeController) Close() error {
	f.closed = true
	return nil
}

func opcodes(sent [][]byte) []uint16 {
	var ops []uint16
	for _, p := range sent {
		ops = append(ops, binary.LittleEndian.Uint16(p[1:]))
	}
	return ops
}

func TestEncodeCommand(t *testing.T) {
	got := encodeCommand(OpLESetExtAdvEnable, advEnable(true))
	want := []byte{0x01, 0x39, 0x20, 6, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestAdvParams(t *testing.T) {
	p := advParams(advert.Undirected, DefaultInterval, -12)
	if len(p) != 25 {
		t.Fatalf("length %d, want 25", len(p))
	}
	if props := binary.LittleEndian.Uint16(p[1:]); props != 0x0013 {
		t.Errorf("props: got 0x%04x", props)
	}
	if p[3] != 0xA0 || p[6] != 0xA0 || p[9] != 0x07 || p[10] != 0x01 {
		t.Errorf("interval/channels/own address: % x", p[:11])
	}
	if int8(p[19]) != -12 || p[20] != 1 || p[22] != 1 {
		t.Errorf("power/phy: % x", p[19:])
	}

	p = advParams(advert.NonConnectable, DefaultInterval, 9)
	if props := binary.LittleEndian.Uint16(p[1:]); props != 0x0010 {
		t.Errorf("non-connectable props: got 0x%04x", props)
	}
}

func TestRandomAddrByteOrder(t *testing.T) {
	got := randomAddr([6]byte{0xC1, 0x02, 0x03, 0x04, 0x05, 0x06})
	want := []byte{advHandle, 0x06, 0x05, 0x04, 0x03, 0x02, 0xC1}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestRadioCycle(t *testing.T) {
	ctrl := newFakeController()
	ctrl.noise = true
	r := NewRadio(ctrl)

	payload := []byte{0x02, 0x01, 0x06}
	if err := r.SetRandomAddress([6]byte{0xC0, 1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetTxPower(3); err != nil {
		t.Fatal(err)
	}
	if err := r.Configure(advert.NonConnectable, payload); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	want := []uint16{OpLESetExtAdvParams, OpLESetAdvSetRandomAddr, OpLESetExtAdvData, OpLESetExtAdvEnable, OpLESetExtAdvEnable}
	got := opcodes(ctrl.sent)
	if len(got) != len(want) {
		t.Fatalf("got ops %04x, want %04x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op %d: got 0x%04x, want 0x%04x", i, got[i], want[i])
		}
	}
	if int8(ctrl.sent[0][4+19]) != 3 {
		t.Errorf("tx power not latched: % x", ctrl.sent[0])
	}
	if ctrl.sent[1][4+6] != 0xC0 {
		t.Errorf("address MSB not last on the wire: % x", ctrl.sent[1])
	}
	if data := ctrl.sent[2][4+4:]; !bytes.Equal(data, payload) {
		t.Errorf("data: got % x", data)
	}
	if ctrl.sent[3][4] != 1 || ctrl.sent[4][4] != 0 {
		t.Error("enable flags wrong")
	}
}

func TestRadioStatusError(t *testing.T) {
	ctrl := newFakeController()
	ctrl.status[OpLESetExtAdvEnable] = 0x0C
	r := NewRadio(ctrl)

	err := r.Start()
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 0x0C || se.Opcode != OpLESetExtAdvEnable {
		t.Fatalf("got %v", err)
	}
}

func TestRadioTimeout(t *testing.T) {
	ctrl := newFakeController()
	ctrl.silent = true
	r := NewRadio(ctrl)
	if err := r.Reset(); !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v", err)
	}
}

func TestConfigureRejectsLongPayload(t *testing.T) {
	ctrl := newFakeController()
	r := NewRadio(ctrl)
	err := r.Configure(advert.Undirected, make([]byte, 32))
	if !errors.Is(err, ErrPayloadTooLong) {
		t.Errorf("got %v", err)
	}
	if len(ctrl.sent) != 0 {
		t.Error("commands sent for rejected payload")
	}
}

func TestCommandStatusCompletes(t *testing.T) {
	ret, done, err := parseCompletion([]byte{pktEvent, evtCommandStatus, 4, 0x00, 1, 0x03, 0x0C}, OpReset)
	if !done || err != nil || ret != nil {
		t.Errorf("got %v %v %v", ret, done, err)
	}
	_, done, err = parseCompletion([]byte{pktEvent, evtCommandStatus, 4, 0x01, 1, 0x03, 0x0C}, OpReset)
	if !done || err == nil {
		t.Errorf("failed status: got %v %v", done, err)
	}
}

func TestCloseRemovesSet(t *testing.T) {
	ctrl := newFakeController()
	r := NewRadio(ctrl)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if ops := opcodes(ctrl.sent); len(ops) != 1 || ops[0] != OpLERemoveAdvertisingSet {
		t.Errorf("got %04x", ops)
	}
	if !ctrl.closed {
		t.Error("transport not closed")
	}
}
