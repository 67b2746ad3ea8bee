package msgs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/link"
)

func TestPacket(t *testing.T) {
	src := &link.Packet{Channel: link.ChannelFDCAN2, Opcode: 9, Data: []byte{1, 2, 3}}
	m := PacketFrom(src)
	src.Data[0] = 0xff
	data, err := Encode(m)
	require.NoError(t, err)

	decoded, err := DecodePacket(data)
	require.NoError(t, err)
	pkt, err := decoded.LinkPacket()
	require.NoError(t, err)
	require.Equal(t, &link.Packet{Channel: link.ChannelFDCAN2, Opcode: 9, Data: []byte{1, 2, 3}}, pkt)

	_, err = (&Packet{Channel: 0x100}).LinkPacket()
	require.True(t, errors.Is(err, ErrOutOfRange))
	_, err = (&Packet{Channel: 1, Opcode: 0x100}).LinkPacket()
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestSendRequest(t *testing.T) {
	data, err := Encode(&SendRequest{Opcode: 3, Data: []byte("hi"), Sync: true})
	require.NoError(t, err)
	req, err := DecodeSendRequest(data)
	require.NoError(t, err)
	require.True(t, req.Sync)
	require.Equal(t, []byte("hi"), req.Data)
	op, err := req.OpcodeByte()
	require.NoError(t, err)
	require.Equal(t, byte(3), op)

	_, err = (&SendRequest{Opcode: 256}).OpcodeByte()
	require.True(t, errors.Is(err, ErrOutOfRange))

	_, err = DecodeSendRequest([]byte{0xff})
	require.Error(t, err)
}

func TestFrameRecord(t *testing.T) {
	f := link.NewFrame(16)
	require.NoError(t, f.Append(link.ChannelADC, 1, []byte{7}))
	now := time.Unix(100, 5)
	data, err := Encode(NewFrameRecord(4, now, f.Bytes()))
	require.NoError(t, err)

	rec, err := DecodeFrameRecord(data)
	require.NoError(t, err)
	require.Equal(t, uint64(4), rec.Seq)
	require.True(t, now.Equal(rec.Time()))
	frame, err := rec.Frame()
	require.NoError(t, err)
	pkts, err := frame.Packets()
	require.NoError(t, err)
	require.Equal(t, []*link.Packet{{Channel: link.ChannelADC, Opcode: 1, Data: []byte{7}}}, pkts)

	_, err = (&FrameRecord{Raw: []byte{1, 2}}).Frame()
	require.True(t, errors.Is(err, link.ErrMalformedPacket))
	_, err = (&FrameRecord{Raw: make([]byte, link.MaxFrameSize+1)}).Frame()
	require.True(t, errors.Is(err, link.ErrMalformedPacket))
}
