package i2cbus

import (
	"errors"
	"sync"
	"testing"
)

func TestHandleTxReadWrite(t *testing.T) {
	conn := NewFakeConn()
	h := New(conn)
	defer h.Release()

	if err := h.Tx(0x34, []byte{0x90, 0x10}, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1)
	if err := h.Tx(0x34, []byte{0x90}, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf[0] != 0x10 {
		t.Errorf("read back 0x%02x, want 0x10", buf[0])
	}
	if n := len(conn.WritesTo(0x34, 0x90)); n != 1 {
		t.Errorf("recorded %d writes, want 1", n)
	}
}

func TestLastReleaseClosesBus(t *testing.T) {
	conn := NewFakeConn()
	a := New(conn)
	b := a.Clone()
	c := b.Clone()

	if got := a.Refs(); got != 3 {
		t.Fatalf("Refs: got %d, want 3", got)
	}

	a.Release()
	a.Release() // second release is a no-op
	if conn.Closed {
		t.Fatal("bus closed with live handles")
	}
	if got := b.Refs(); got != 2 {
		t.Errorf("Refs after release: got %d, want 2", got)
	}
	if err := a.Tx(0x38, []byte{0x02}, make([]byte, 1)); !errors.Is(err, ErrReleased) {
		t.Errorf("Tx on released handle: got %v, want ErrReleased", err)
	}

	b.Release()
	if conn.Closed {
		t.Fatal("bus closed with one live handle")
	}
	if err := c.Tx(0x38, []byte{0x02}, make([]byte, 1)); err != nil {
		t.Errorf("Tx on live handle: %v", err)
	}

	c.Release()
	if !conn.Closed {
		t.Error("expected bus closed after last release")
	}
}

func TestTxWrapsError(t *testing.T) {
	conn := NewFakeConn()
	conn.TxError = errors.New("nack")
	h := New(conn)
	defer h.Release()

	err := h.Tx(0x34, []byte{0x48}, make([]byte, 3))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, conn.TxError) {
		t.Errorf("error not wrapped: %v", err)
	}
}

func TestFakeFailCount(t *testing.T) {
	conn := NewFakeConn()
	conn.TxError = errors.New("busy")
	conn.FailCount = 2
	h := New(conn)
	defer h.Release()

	buf := make([]byte, 1)
	for i := 0; i < 2; i++ {
		if err := h.Tx(0x34, []byte{0x00}, buf); err == nil {
			t.Fatalf("tx %d: expected failure", i)
		}
	}
	if err := h.Tx(0x34, []byte{0x00}, buf); err != nil {
		t.Errorf("tx after failures: %v", err)
	}
}

func TestConcurrentHandles(t *testing.T) {
	conn := NewFakeConn()
	root := New(conn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		h := root.Clone()
		wg.Add(1)
		go func(h *Handle, reg byte) {
			defer wg.Done()
			defer h.Release()
			for j := 0; j < 50; j++ {
				if err := h.Tx(0x34, []byte{reg, byte(j)}, nil); err != nil {
					t.Errorf("tx: %v", err)
					return
				}
			}
		}(h, byte(i))
	}
	wg.Wait()
	root.Release()

	if !conn.Closed {
		t.Error("expected bus closed")
	}
	if got := len(conn.Writes); got != 8*50 {
		t.Errorf("writes: got %d, want %d", got, 8*50)
	}
}
