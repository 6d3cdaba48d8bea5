//go:build linux

package hci

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTimeout bounds each wait for a command completion.
const DefaultTimeout = 2 * time.Second

// socket is an HCI user channel. The controller must be down in BlueZ
// (hciconfig hciN down) for the bind to succeed.
type socket struct {
	fd int
}

// Open binds the user channel of hciN and resets the controller.
func Open(dev int) (*Radio, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("hci: socket: %w", err)
	}
	sa := &unix.SockaddrHCI{Dev: uint16(dev), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hci: bind hci%d: %w", dev, err)
	}
	tv := unix.NsecToTimeval(DefaultTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hci: set timeout: %w", err)
	}

	r := NewRadio(&socket{fd: fd})
	if err := r.Reset(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

func (s *socket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrTimeout
		case err != nil:
			return 0, err
		}
		return n, nil
	}
}

func (s *socket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

func (s *socket) Close() error {
	return unix.Close(s.fd)
}
