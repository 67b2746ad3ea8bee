//go:build !linux
// +build !linux

package spidev

import "errors"

// Device is unavailable on this platform.
type Device struct{}

// Open always fails off Linux.
func Open(conf Config) (*Device, error) {
	return nil, errors.New("spidev: only supported on linux")
}

// Close implements io.Closer.
func (d *Device) Close() error {
	return nil
}

// Transfer implements bus.Transferer.
func (d *Device) Transfer(tx, rx []byte) error {
	return errors.New("spidev: only supported on linux")
}
