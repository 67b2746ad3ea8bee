package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/l0/bus"
	"github.com/robotalks/h7link/pkg/l0/irq"
)

// Config configures an Engine.
type Config struct {
	// FrameSize is the fixed transfer size, DefaultFrameSize if 0.
	FrameSize int
	// MaxPayload limits inbound payloads, longer ones are truncated.
	// MaxPayload(FrameSize) if 0.
	MaxPayload int
}

// Stats are the counters of an Engine.
type Stats struct {
	Transfers        uint64
	TransportErrors  uint64
	PacketsOut       uint64
	PacketsIn        uint64
	PacketsDropped   uint64
	ChecksumErrors   uint64
	MalformedPackets uint64
	Truncated        uint64
	TapFrames        uint64
}

// Engine owns the frame buffers and the bus. All transfers are serialized:
// sends from clients and transfers triggered by the co-processor contend
// for the same lock.
type Engine struct {
	stats Stats // 64-bit aligned for atomic access

	bus        bus.Transferer
	tx         *Frame
	rx         *Frame
	maxPayload int
	lock       sync.Mutex

	table   dispatchTable
	tap     DebugTap
	tapLock sync.RWMutex
}

// NewEngine creates an Engine with the default configuration.
func NewEngine(t bus.Transferer) *Engine {
	return Config{}.NewEngine(t)
}

// NewEngine creates an Engine using the config.
func (c Config) NewEngine(t bus.Transferer) *Engine {
	size := c.FrameSize
	if size == 0 {
		size = DefaultFrameSize
	}
	maxPayload := c.MaxPayload
	if maxPayload <= 0 || maxPayload > MaxPayload(size) {
		maxPayload = MaxPayload(size)
	}
	rx := NewFrame(size)
	rx.Clear()
	return &Engine{
		bus:        t,
		tx:         NewFrame(size),
		rx:         rx,
		maxPayload: maxPayload,
	}
}

// FrameSize returns the fixed transfer size.
func (e *Engine) FrameSize() int {
	return e.tx.Cap()
}

// MaxPayload returns the inbound payload limit.
func (e *Engine) MaxPayload() int {
	return e.maxPayload
}

// SendSync queues a sub-packet and performs a transfer. When it returns
// without error, the inbound frame of the same transfer has been dispatched.
func (e *Engine) SendSync(ch Channel, opcode byte, data []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.enqueue(ch, opcode, data); err != nil {
		return err
	}
	return e.transfer()
}

// SendDeferred queues a sub-packet for the next transfer. It takes the
// engine lock: a Handler or DebugTap must queue through DeferrerFrom
// instead, since the lock is held while it runs.
func (e *Engine) SendDeferred(ch Channel, opcode byte, data []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.enqueue(ch, opcode, data)
}

// Flush performs a transfer, even with nothing queued, so data pending on
// the co-processor is received.
func (e *Engine) Flush() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.transfer()
}

// HandleEvent is called when the co-processor signals pending data.
func (e *Engine) HandleEvent() error {
	return e.Flush()
}

// Serve runs a transfer each time src fires until ctx is done. Transfer
// failures are logged and don't stop serving.
func (e *Engine) Serve(ctx context.Context, src irq.Source) error {
	for {
		if err := src.WaitEvent(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if err := e.HandleEvent(); err != nil {
			glog.Errorf("event transfer: %v", err)
		}
	}
}

// Register binds a handler to a channel, replacing the existing one.
// It takes effect from the next transfer.
func (e *Engine) Register(ch Channel, h Handler) (*Registration, error) {
	return e.table.register(ch, h)
}

// Unregister unbinds the handler of a channel. A client must unregister
// (or close its Registration) before its handler becomes unusable.
func (e *Engine) Unregister(ch Channel) {
	e.table.unregister(ch)
}

// Registered indicates a handler is bound to the channel.
func (e *Engine) Registered(ch Channel) bool {
	return e.table.lookup(ch) != nil
}

// SetDebugTap installs the tap. While installed, inbound frames go to the
// tap verbatim and per-channel dispatch is suspended.
func (e *Engine) SetDebugTap(tap DebugTap) {
	e.tapLock.Lock()
	e.tap = tap
	e.tapLock.Unlock()
}

// ClearDebugTap removes the tap and resumes dispatch.
func (e *Engine) ClearDebugTap() {
	e.SetDebugTap(nil)
}

func (e *Engine) debugTap() DebugTap {
	e.tapLock.RLock()
	defer e.tapLock.RUnlock()
	return e.tap
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Transfers:        atomic.LoadUint64(&e.stats.Transfers),
		TransportErrors:  atomic.LoadUint64(&e.stats.TransportErrors),
		PacketsOut:       atomic.LoadUint64(&e.stats.PacketsOut),
		PacketsIn:        atomic.LoadUint64(&e.stats.PacketsIn),
		PacketsDropped:   atomic.LoadUint64(&e.stats.PacketsDropped),
		ChecksumErrors:   atomic.LoadUint64(&e.stats.ChecksumErrors),
		MalformedPackets: atomic.LoadUint64(&e.stats.MalformedPackets),
		Truncated:        atomic.LoadUint64(&e.stats.Truncated),
		TapFrames:        atomic.LoadUint64(&e.stats.TapFrames),
	}
}

// enqueue must be called with lock held.
func (e *Engine) enqueue(ch Channel, opcode byte, data []byte) error {
	if err := e.tx.Append(ch, opcode, data); err != nil {
		return err
	}
	atomic.AddUint64(&e.stats.PacketsOut, 1)
	return nil
}

// transfer must be called with lock held.
func (e *Engine) transfer() error {
	atomic.AddUint64(&e.stats.Transfers, 1)
	if glog.V(4) {
		DumpFrame("send", e.tx)
	}
	err := e.bus.Transfer(e.tx.Bytes(), e.rx.Bytes())
	// outbound is reset before dispatch so handlers can queue into the
	// next frame.
	e.tx.Reset()
	defer e.rx.Clear()
	if err != nil {
		atomic.AddUint64(&e.stats.TransportErrors, 1)
		return &TransportError{Err: err}
	}
	e.dispatch()
	return nil
}

func (e *Engine) dispatch() {
	d := &cycleDeferrer{engine: e, active: 1}
	defer d.close()
	ctx := context.WithValue(context.Background(), deferrerKey, d)

	if tap := e.debugTap(); tap != nil {
		atomic.AddUint64(&e.stats.TapFrames, 1)
		tap.HandleFrame(ctx, e.rx.Bytes())
		return
	}
	if e.rx.Size() == 0 {
		return
	}
	if glog.V(4) {
		DumpFrame("recv", e.rx)
	}

	entries := e.table.snapshot()

	s := e.rx.ScanLimit(e.maxPayload)
	for s.Next() {
		pkt := s.Packet()
		atomic.AddUint64(&e.stats.PacketsIn, 1)
		var reg *Registration
		if pkt.Channel.IsValid() {
			reg = entries[pkt.Channel]
		}
		if reg == nil || !reg.Active() {
			atomic.AddUint64(&e.stats.PacketsDropped, 1)
			glog.V(3).Infof("no handler for channel %s, opcode %d dropped", pkt.Channel, pkt.Opcode)
			continue
		}
		reg.handler.HandlePacket(ctx, pkt)
	}
	atomic.AddUint64(&e.stats.Truncated, uint64(s.Truncated()))
	switch err := s.Err(); err {
	case nil:
	case ErrInvalidChecksum:
		atomic.AddUint64(&e.stats.ChecksumErrors, 1)
		glog.Errorf("inbound frame dropped: size %d checksum %04X: %v", e.rx.Size(), e.rx.Checksum(), err)
	default:
		atomic.AddUint64(&e.stats.MalformedPackets, 1)
		glog.Errorf("inbound frame aborted: %v", err)
	}
}

// Deferrer queues sub-packets for the next transfer.
type Deferrer interface {
	SendDeferred(ch Channel, opcode byte, data []byte) error
}

type deferrerCtxKey struct{}

var deferrerKey = deferrerCtxKey{}

// DeferrerFrom gets the Deferrer usable inside a Handler or DebugTap.
// It returns nil if ctx doesn't come from a dispatch.
func DeferrerFrom(ctx context.Context) Deferrer {
	d, _ := ctx.Value(deferrerKey).(Deferrer)
	return d
}

// cycleDeferrer enqueues without taking the lock which is already held by
// the dispatching transfer. Once the cycle ends it falls back to the
// locking SendDeferred.
type cycleDeferrer struct {
	engine *Engine
	active int32
}

func (d *cycleDeferrer) SendDeferred(ch Channel, opcode byte, data []byte) error {
	if atomic.LoadInt32(&d.active) != 0 {
		return d.engine.enqueue(ch, opcode, data)
	}
	return d.engine.SendDeferred(ch, opcode, data)
}

func (d *cycleDeferrer) close() {
	atomic.StoreInt32(&d.active, 0)
}

// EventLoop runs Engine.Serve as a Runnable.
type EventLoop struct {
	Engine *Engine
	Source irq.Source
}

// Run implements Runnable.
func (l *EventLoop) Run(ctx context.Context) error {
	return l.Engine.Serve(ctx, l.Source)
}
