package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates the outbound frame can't hold the sub-packet.
	// Flush and retry, or reduce the payload.
	ErrNoSpace = errors.New("no space in frame")
	// ErrInvalidChecksum indicates the frame header checksum doesn't match.
	ErrInvalidChecksum = errors.New("invalid frame checksum")
	// ErrMalformedPacket indicates a sub-packet header or payload runs past
	// the declared frame size.
	ErrMalformedPacket = errors.New("malformed sub-packet")
	// ErrInvalidChannel indicates the channel is out of the supported range.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrPayloadTooLarge indicates the payload can't be encoded in a sub-packet.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// TransportError wraps a failure reported by the duplex transfer primitive.
type TransportError struct {
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
