// Package capture records raw inbound frames through the link's debug tap
// and reads them back.
package capture

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/l0/link"
	"github.com/robotalks/h7link/pkg/msgs"
)

// Writer implements link.DebugTap, appending every tapped frame as a
// FrameRecord.
type Writer struct {
	// SkipEmpty drops frames declaring no sub-packets.
	SkipEmpty bool
	// Clock is used to timestamp records, time.Now if nil.
	Clock func() time.Time

	w      *bufio.Writer
	closer io.Closer
	seq    uint64
	err    error
	lock   sync.Mutex
}

// NewWriter creates a Writer. If w is an io.Closer, it's closed by Close.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{w: bufio.NewWriter(w)}
	if closer, ok := w.(io.Closer); ok {
		cw.closer = closer
	}
	return cw
}

// HandleFrame implements link.DebugTap.
func (w *Writer) HandleFrame(ctx context.Context, raw []byte) {
	if w.SkipEmpty && len(raw) >= 2 && link.ByteOrder.Uint16(raw) == 0 {
		return
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.err != nil {
		return
	}
	now := time.Now
	if w.Clock != nil {
		now = w.Clock
	}
	w.seq++
	data, err := msgs.Encode(msgs.NewFrameRecord(w.seq, now(), raw))
	if err == nil {
		err = writeRecord(w.w, data)
	}
	if err != nil {
		glog.Errorf("capture frame %d: %v", w.seq, err)
		w.err = err
	}
}

// Count returns the number of frames recorded.
func (w *Writer) Count() uint64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.seq
}

// Flush writes buffered records.
func (w *Writer) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Close flushes and closes the underlying writer.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader reads FrameRecords written by Writer.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next reads the next record. It returns io.EOF at the end of the capture.
func (r *Reader) Next() (*msgs.FrameRecord, error) {
	data, err := readRecord(r.r)
	if err != nil {
		return nil, err
	}
	return msgs.DecodeFrameRecord(data)
}

// Replay feeds every recorded frame to tap, until the end of the capture or
// ctx is done.
func (r *Reader) Replay(ctx context.Context, tap link.DebugTap) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		tap.HandleFrame(ctx, rec.Raw)
	}
}

// Dispatch replays recorded frames as packets, the way the engine would
// dispatch them. Frames failing checks are logged and skipped.
func (r *Reader) Dispatch(ctx context.Context, h link.Handler) error {
	return r.Replay(ctx, link.HandleFrameFunc(func(ctx context.Context, raw []byte) {
		if !link.ValidFrameSize(len(raw)) {
			glog.Warningf("replay frame: %d bytes: %v", len(raw), link.ErrMalformedPacket)
			return
		}
		s := link.FrameFrom(raw).Scan()
		for s.Next() {
			h.HandlePacket(ctx, s.Packet())
		}
		if err := s.Err(); err != nil {
			glog.Warningf("replay frame: %v", err)
		}
	}))
}
