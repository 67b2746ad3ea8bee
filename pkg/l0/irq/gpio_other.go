//go:build !linux
// +build !linux

package irq

import (
	"context"
	"errors"
)

// GPIO is unavailable on this platform.
type GPIO struct{}

// OpenGPIO always fails off Linux.
func OpenGPIO(line int) (*GPIO, error) {
	return nil, errors.New("gpio: only supported on linux")
}

// WaitEvent implements Source.
func (g *GPIO) WaitEvent(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close implements io.Closer.
func (g *GPIO) Close() error {
	return nil
}
