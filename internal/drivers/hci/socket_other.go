//go:build !linux

package hci

import "errors"

// Open is only available on Linux.
func Open(dev int) (*Radio, error) {
	return nil, errors.New("hci: raw sockets require linux")
}
