package link

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacket(t *testing.T) {
	testCases := []struct {
		name   string
		packet Packet
		expect []byte
	}{
		{"no data", Packet{Channel: ChannelADC, Opcode: 2}, []byte{1, 2, 0, 0}},
		{"small data", Packet{Channel: ChannelFDCAN1, Opcode: 7, Data: []byte{0xaa}}, []byte{3, 7, 1, 0, 0xaa}},
		{"little endian size", Packet{Channel: ChannelUI, Opcode: 0x10, Data: make([]byte, 0x102)}, append([]byte{0x0a, 0x10, 0x02, 0x01}, make([]byte, 0x102)...)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.packet.Bytes())
			require.Equal(t, len(tc.expect), tc.packet.Size())
			var buf bytes.Buffer
			n, err := tc.packet.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.EqualValues(t, len(tc.expect), n)
		})
	}
}

func TestDecodePacket(t *testing.T) {
	testCases := []struct {
		name     string
		in       []byte
		expect   *Packet
		consumed int
		err      error
	}{
		{"packet", []byte{3, 7, 1, 0, 0xaa}, &Packet{Channel: 3, Opcode: 7, Data: []byte{0xaa}}, 5, nil},
		{"trailing bytes", []byte{5, 1, 2, 0, 1, 2, 9, 9}, &Packet{Channel: 5, Opcode: 1, Data: []byte{1, 2}}, 6, nil},
		{"sentinel", []byte{0, 0, 0, 0}, &Packet{Data: []byte{}}, 4, nil},
		{"short header", []byte{3, 7, 1}, nil, 0, ErrMalformedPacket},
		{"payload past end", []byte{3, 7, 4, 0, 1, 2}, nil, 0, ErrMalformedPacket},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkt, n, err := DecodePacket(tc.in)
			if tc.err != nil {
				require.Equal(t, tc.err, err)
				require.Nil(t, pkt)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.consumed, n)
			require.Equal(t, tc.expect.Channel, pkt.Channel)
			require.Equal(t, tc.expect.Opcode, pkt.Opcode)
			require.Equal(t, tc.expect.Data, pkt.Data)
		})
	}
}

func TestPacketIsSentinel(t *testing.T) {
	require.True(t, (&Packet{Channel: 0, Data: []byte{1}}).IsSentinel())
	require.True(t, (&Packet{Channel: 3}).IsSentinel())
	require.False(t, (&Packet{Channel: 3, Data: []byte{1}}).IsSentinel())
}
