package link

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handler is called for each inbound sub-packet on a registered channel.
// It runs on the transfer path with the engine lock held: it must not block
// and must not call SendSync or Flush. Use DeferrerFrom to queue replies.
// pkt.Data is only valid during the call.
type Handler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of Handler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements Handler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// DebugTap receives raw inbound frames instead of the normal dispatch.
// The same constraints as Handler apply; raw is only valid during the call.
type DebugTap interface {
	HandleFrame(ctx context.Context, raw []byte)
}

// HandleFrameFunc is func type of DebugTap.
type HandleFrameFunc func(context.Context, []byte)

// HandleFrame implements DebugTap.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, raw []byte) {
	f(ctx, raw)
}

// Registration is the token of a handler bound to a channel.
// It's invalidated by Close, Unregister or a later Register on the same channel.
type Registration struct {
	table   *dispatchTable
	channel Channel
	handler Handler
	closed  int32
}

// Channel returns the registered channel.
func (r *Registration) Channel() Channel {
	return r.channel
}

// Active indicates the registration still receives packets.
func (r *Registration) Active() bool {
	return atomic.LoadInt32(&r.closed) == 0
}

// Close unbinds the handler. It's a no-op if the registration was already
// replaced or closed.
func (r *Registration) Close() error {
	r.table.remove(r)
	return nil
}

func (r *Registration) invalidate() {
	atomic.StoreInt32(&r.closed, 1)
}

type dispatchTable struct {
	entries [MaxChannels]*Registration
	lock    sync.RWMutex
}

func (t *dispatchTable) register(ch Channel, h Handler) (*Registration, error) {
	if !ch.IsValid() || h == nil {
		return nil, ErrInvalidChannel
	}
	reg := &Registration{table: t, channel: ch, handler: h}
	t.lock.Lock()
	prev := t.entries[ch]
	t.entries[ch] = reg
	t.lock.Unlock()
	if prev != nil {
		prev.invalidate()
	}
	return reg, nil
}

func (t *dispatchTable) unregister(ch Channel) {
	if !ch.IsValid() {
		return
	}
	t.lock.Lock()
	prev := t.entries[ch]
	t.entries[ch] = nil
	t.lock.Unlock()
	if prev != nil {
		prev.invalidate()
	}
}

func (t *dispatchTable) remove(reg *Registration) {
	t.lock.Lock()
	if t.entries[reg.channel] == reg {
		t.entries[reg.channel] = nil
	}
	t.lock.Unlock()
	reg.invalidate()
}

func (t *dispatchTable) lookup(ch Channel) *Registration {
	if !ch.IsValid() {
		return nil
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.entries[ch]
}

// snapshot copies the table so a dispatch cycle isn't affected by
// registrations made while it runs.
func (t *dispatchTable) snapshot() (entries [MaxChannels]*Registration) {
	t.lock.RLock()
	entries = t.entries
	t.lock.RUnlock()
	return
}
