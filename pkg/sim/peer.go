// Package sim emulates the co-processor side of the link, so the engine,
// the bridge and the shell can run without hardware over stream or
// websocket buses.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/l0/link"
)

// PacketFunc handles a sub-packet received by the peer. Replies go to the
// pending frame, returned by the next exchange.
type PacketFunc func(p *Peer, pkt *link.Packet)

// Peer is an emulated co-processor.
type Peer struct {
	pending  *link.Frame
	handlers map[link.Channel]PacketFunc
	lock     sync.Mutex
}

// NewPeer creates a Peer exchanging frames of size bytes.
func NewPeer(size int) *Peer {
	return &Peer{
		pending:  link.NewFrame(size),
		handlers: make(map[link.Channel]PacketFunc),
	}
}

// Handle sets the handler of a channel.
func (p *Peer) Handle(ch link.Channel, fn PacketFunc) *Peer {
	p.lock.Lock()
	p.handlers[ch] = fn
	p.lock.Unlock()
	return p
}

// Inject queues a sub-packet for the host.
func (p *Peer) Inject(ch link.Channel, opcode byte, data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.inject(ch, opcode, data)
}

func (p *Peer) inject(ch link.Channel, opcode byte, data []byte) error {
	err := p.pending.Append(ch, opcode, data)
	if err != nil {
		glog.Warningf("peer: channel %s opcode %d dropped: %v", ch, opcode, err)
	}
	return err
}

// Pending returns the size of the sub-packets waiting for an exchange.
func (p *Peer) Pending() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.pending.Size()
}

// Respond exchanges one frame: it returns the pending frame and handles
// the sub-packets of in. Its signature fits stream.Serve and
// websocket.Handler.
func (p *Peer) Respond(in []byte) []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	out := append([]byte(nil), p.pending.Bytes()...)
	p.pending.Reset()

	if !link.ValidFrameSize(len(in)) {
		glog.Warningf("peer: invalid frame of %d bytes", len(in))
		return out
	}
	if glog.V(4) {
		link.DumpFrame("peer recv", link.FrameFrom(in))
	}
	s := link.FrameFrom(in).Scan()
	for s.Next() {
		pkt := s.Packet()
		if fn := p.handlers[pkt.Channel]; fn != nil {
			fn(p, pkt)
		}
	}
	if err := s.Err(); err != nil {
		glog.Errorf("peer: inbound frame: %v", err)
	}
	return out
}

// Reply queues a sub-packet from inside a PacketFunc.
func (p *Peer) Reply(ch link.Channel, opcode byte, data []byte) error {
	return p.inject(ch, opcode, data)
}

// Echo returns the sub-packet to the host.
func Echo(p *Peer, pkt *link.Packet) {
	p.Reply(pkt.Channel, pkt.Opcode, pkt.Data)
}

// Ticker injects a sub-packet from gen periodically until ctx is done.
func (p *Peer) Ticker(ctx context.Context, interval time.Duration, ch link.Channel, opcode byte, gen func(time.Time) []byte) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			p.Inject(ch, opcode, gen(t))
		}
	}
}

// UnixNano encodes t as a little endian int64, the way the RTC channel
// reports time.
func UnixNano(t time.Time) []byte {
	b := make([]byte, 8)
	link.ByteOrder.PutUint64(b, uint64(t.UnixNano()))
	return b
}
