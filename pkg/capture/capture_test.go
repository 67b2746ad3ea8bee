package capture

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/bus"
	"github.com/robotalks/h7link/pkg/l0/link"
)

type nopCloser struct {
	bytes.Buffer
	closed bool
}

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func TestRecordReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRecordReadWriter(&buf)
	require.NoError(t, rw.WriteRecord([]byte("abc")))
	require.NoError(t, rw.WriteRecord(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())

	rec, err := rw.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), rec)
	rec, err = rw.ReadRecord()
	require.NoError(t, err)
	require.Empty(t, rec)
	_, err = rw.ReadRecord()
	require.Equal(t, io.EOF, err)

	buf.Write([]byte{5, 0, 0, 0, 1})
	_, err = rw.ReadRecord()
	require.Equal(t, io.ErrUnexpectedEOF, err)

	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	_, err = rw.ReadRecord()
	require.Error(t, err)
}

func TestCaptureEngine(t *testing.T) {
	out := &nopCloser{}
	w := NewWriter(out)
	w.SkipEmpty = true
	base := time.Unix(1000, 0)
	w.Clock = func() time.Time { return base }

	echo := bus.TransferFunc(func(tx, rx []byte) error {
		copy(rx, tx)
		return nil
	})
	e := link.NewEngine(echo)
	e.SetDebugTap(w)
	require.NoError(t, e.SendSync(link.ChannelADC, 1, []byte{1, 2}))
	require.NoError(t, e.Flush())
	require.NoError(t, e.SendSync(link.ChannelUART, 2, []byte("x")))
	e.ClearDebugTap()
	require.NoError(t, e.SendSync(link.ChannelUART, 3, []byte("y")))
	require.Equal(t, uint64(2), w.Count())
	require.NoError(t, w.Close())
	require.True(t, out.closed)

	r := NewReader(bytes.NewReader(out.Bytes()))
	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Seq)
	require.True(t, base.Equal(rec.Time()))
	require.Len(t, rec.Raw, link.DefaultFrameSize)

	var pkts []*link.Packet
	require.NoError(t, r.Dispatch(context.Background(), link.HandlePacketFunc(func(ctx context.Context, pkt *link.Packet) {
		pkts = append(pkts, &link.Packet{Channel: pkt.Channel, Opcode: pkt.Opcode, Data: append([]byte(nil), pkt.Data...)})
	})))
	require.Equal(t, []*link.Packet{{Channel: link.ChannelUART, Opcode: 2, Data: []byte("x")}}, pkts)

	_, err = r.Next()
	require.Equal(t, io.EOF, err)
}

func TestReplayCanceled(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.HandleFrame(context.Background(), link.NewFrame(16).Bytes())
	require.NoError(t, w.Flush())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewReader(&buf).Replay(ctx, link.HandleFrameFunc(func(context.Context, []byte) {
		t.Fatal("unexpected frame")
	}))
	require.Equal(t, context.Canceled, err)
}

func TestDispatchSkipsInvalidFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.HandleFrame(context.Background(), []byte{1, 0})
	w.HandleFrame(context.Background(), make([]byte, link.MaxFrameSize+1))
	f := link.NewFrame(link.DefaultFrameSize)
	require.NoError(t, f.Append(link.ChannelGPIO, 4, []byte{1}))
	w.HandleFrame(context.Background(), f.Bytes())
	require.NoError(t, w.Flush())

	var pkts []*link.Packet
	require.NoError(t, NewReader(&buf).Dispatch(context.Background(), link.HandlePacketFunc(func(ctx context.Context, pkt *link.Packet) {
		pkts = append(pkts, &link.Packet{Channel: pkt.Channel, Opcode: pkt.Opcode, Data: append([]byte(nil), pkt.Data...)})
	})))
	require.Equal(t, []*link.Packet{{Channel: link.ChannelGPIO, Opcode: 4, Data: []byte{1}}}, pkts)
}
