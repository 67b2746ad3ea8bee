package link

import (
	"encoding/binary"
	"io"
)

// ByteOrder is the byte order of all multi-byte header fields.
var ByteOrder = binary.LittleEndian

// PacketHeaderSize is the encoded size of a sub-packet header.
const PacketHeaderSize = 4

// Packet is a channel tagged message carried in a frame.
type Packet struct {
	Channel Channel
	Opcode  byte
	Data    []byte
}

// Size returns the encoded size.
func (p *Packet) Size() int {
	return PacketHeaderSize + len(p.Data)
}

// Bytes returns encoded bytes.
func (p *Packet) Bytes() []byte {
	b := make([]byte, p.Size())
	p.encode(b)
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// IsSentinel indicates the packet terminates a frame.
func (p *Packet) IsSentinel() bool {
	return p.Channel == ChannelNone || len(p.Data) == 0
}

// encode writes the packet into b which must hold at least Size bytes.
func (p *Packet) encode(b []byte) {
	b[0], b[1] = byte(p.Channel), p.Opcode
	ByteOrder.PutUint16(b[2:], uint16(len(p.Data)))
	copy(b[PacketHeaderSize:], p.Data)
}

// packetHeader is the decoded header of a sub-packet.
type packetHeader struct {
	channel Channel
	opcode  byte
	size    int
}

func decodePacketHeader(b []byte) (h packetHeader, err error) {
	if len(b) < PacketHeaderSize {
		return h, ErrMalformedPacket
	}
	h.channel, h.opcode = Channel(b[0]), b[1]
	h.size = int(ByteOrder.Uint16(b[2:]))
	return
}

// DecodePacket decodes one sub-packet from b. b must be bounded by the
// declared frame size, not the buffer capacity. It returns the packet, whose
// Data is a view into b, and the number of bytes consumed.
func DecodePacket(b []byte) (*Packet, int, error) {
	h, err := decodePacketHeader(b)
	if err != nil {
		return nil, 0, err
	}
	end := PacketHeaderSize + h.size
	if end > len(b) {
		return nil, 0, ErrMalformedPacket
	}
	return &Packet{
		Channel: h.channel,
		Opcode:  h.opcode,
		Data:    b[PacketHeaderSize:end:end],
	}, end, nil
}
