// Package stream runs the link over a byte stream (TCP, serial, pipes).
package stream

import (
	"io"

	"github.com/robotalks/h7link/pkg/l0/bus"
)

// Transferer implements bus.Transferer.
// A transfer writes the whole outbound frame then reads exactly one frame back.
type Transferer struct {
	io.ReadWriter
}

// New creates a Transferer with io.ReadWriter.
func New(s io.ReadWriter) *Transferer {
	return &Transferer{s}
}

// Transfer implements bus.Transferer.
func (t *Transferer) Transfer(tx, rx []byte) error {
	if err := bus.CheckSize(tx, rx); err != nil {
		return err
	}
	if _, err := t.Write(tx); err != nil {
		return err
	}
	n, err := io.ReadFull(t, rx)
	if err == io.ErrUnexpectedEOF {
		return &bus.SizeError{Expected: len(rx), Actual: n}
	}
	return err
}

// Close implements io.Closer if the underlying stream does.
func (t *Transferer) Close() error {
	if closer, ok := t.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Serve runs the co-processor side of the exchange on s. Every frame of
// size bytes read is passed to respond, whose result is written back,
// padded or cut to size. It returns when s fails, io.EOF included.
func Serve(s io.ReadWriter, size int, respond func(in []byte) []byte) error {
	in, out := make([]byte, size), make([]byte, size)
	for {
		if _, err := io.ReadFull(s, in); err != nil {
			return err
		}
		for i := range out {
			out[i] = 0
		}
		copy(out, respond(in))
		if _, err := s.Write(out); err != nil {
			return err
		}
	}
}
