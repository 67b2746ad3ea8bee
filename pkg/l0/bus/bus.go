// Package bus defines the duplex transfer primitive the link runs on.
package bus

import (
	"errors"
	"fmt"
)

// Transferer performs one synchronous full-duplex exchange.
// tx and rx have the same length; rx is filled while tx is sent.
type Transferer interface {
	Transfer(tx, rx []byte) error
}

// TransferFunc is func type of Transferer.
type TransferFunc func(tx, rx []byte) error

// Transfer implements Transferer.
func (f TransferFunc) Transfer(tx, rx []byte) error {
	return f(tx, rx)
}

var (
	// ErrClosed indicates the bus was closed.
	ErrClosed = errors.New("bus closed")
)

// SizeError indicates the peer didn't exchange a whole frame.
type SizeError struct {
	Expected int
	Actual   int
}

// Error implements error.
func (e *SizeError) Error() string {
	return fmt.Sprintf("short transfer: %d of %d bytes", e.Actual, e.Expected)
}

// CheckSize validates tx and rx have equal length.
func CheckSize(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return &SizeError{Expected: len(tx), Actual: len(rx)}
	}
	return nil
}
