// Package websocket runs the link over a websocket, one binary message per frame.
package websocket

import (
	"golang.org/x/net/websocket"

	"github.com/robotalks/h7link/pkg/l0/bus"
)

// Transferer implements bus.Transferer.
type Transferer websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Transferer {
	return (*Transferer)(conn)
}

// Dial connects to a websocket endpoint serving frames.
func Dial(url string) (*Transferer, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Transfer implements bus.Transferer.
func (t *Transferer) Transfer(tx, rx []byte) error {
	if err := bus.CheckSize(tx, rx); err != nil {
		return err
	}
	conn := (*websocket.Conn)(t)
	if err := websocket.Message.Send(conn, tx); err != nil {
		return err
	}
	var reply []byte
	if err := websocket.Message.Receive(conn, &reply); err != nil {
		return err
	}
	if len(reply) != len(rx) {
		return &bus.SizeError{Expected: len(rx), Actual: len(reply)}
	}
	copy(rx, reply)
	return nil
}

// Close closes the connection.
func (t *Transferer) Close() error {
	return (*websocket.Conn)(t).Close()
}

// Handler serves the co-processor side over websocket, see stream.Serve.
func Handler(size int, respond func(in []byte) []byte) websocket.Handler {
	return func(conn *websocket.Conn) {
		defer conn.Close()
		out := make([]byte, size)
		for {
			var in []byte
			if err := websocket.Message.Receive(conn, &in); err != nil {
				return
			}
			for i := range out {
				out[i] = 0
			}
			copy(out, respond(in))
			if err := websocket.Message.Send(conn, out); err != nil {
				return
			}
		}
	}
}
