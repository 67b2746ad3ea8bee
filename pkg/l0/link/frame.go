package link

import (
	"fmt"

	"github.com/golang/glog"
)

const (
	// DefaultFrameSize is the fixed transfer size used by the H7 firmware.
	DefaultFrameSize = 256
	// FrameHeaderSize is the encoded size of the frame header.
	FrameHeaderSize = 4
	// MinFrameSize holds a header and one sub-packet header.
	MinFrameSize = FrameHeaderSize + PacketHeaderSize
	// MaxFrameSize is the largest size the header can declare.
	MaxFrameSize = FrameHeaderSize + 0xffff

	checksumKey uint16 = 0x5555
)

// Checksum computes the header checksum for a declared size.
func Checksum(size uint16) uint16 {
	return size ^ checksumKey
}

// MaxPayload returns the maximum sub-packet payload for a frame size.
func MaxPayload(frameSize int) int {
	return frameSize - FrameHeaderSize - PacketHeaderSize
}

// ValidFrameSize checks a frame size is within MinFrameSize and
// MaxFrameSize.
func ValidFrameSize(size int) bool {
	return size >= MinFrameSize && size <= MaxFrameSize
}

// Frame is one fixed size transfer unit.
type Frame struct {
	buf []byte
	// sealed is set once an empty sub-packet is appended: it ends the frame
	// for the receiver.
	sealed bool
}

// NewFrame creates an empty frame of the given size. It panics if the size
// isn't valid, see ValidFrameSize.
func NewFrame(size int) *Frame {
	if !ValidFrameSize(size) {
		panic(fmt.Sprintf("invalid frame size %d", size))
	}
	f := &Frame{buf: make([]byte, size)}
	f.Reset()
	return f
}

// FrameFrom creates a frame of len(b) bytes with a copy of b. Like
// NewFrame it panics if len(b) isn't a valid frame size.
func FrameFrom(b []byte) *Frame {
	f := NewFrame(len(b))
	copy(f.buf, b)
	return f
}

// Bytes returns the whole frame buffer, header included.
// The returned slice aliases the frame.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// Cap returns the fixed frame size.
func (f *Frame) Cap() int {
	return len(f.buf)
}

// Size returns the declared size of sub-packets in the frame.
func (f *Frame) Size() int {
	return int(ByteOrder.Uint16(f.buf[0:]))
}

// Checksum returns the checksum field of the header.
func (f *Frame) Checksum() uint16 {
	return ByteOrder.Uint16(f.buf[2:])
}

// Valid checks the header checksum.
func (f *Frame) Valid() bool {
	return f.Checksum() == Checksum(uint16(f.Size()))
}

// Free returns the number of bytes left for sub-packets.
func (f *Frame) Free() int {
	return len(f.buf) - FrameHeaderSize - f.Size()
}

// Reset empties the frame.
func (f *Frame) Reset() {
	for i := range f.buf {
		f.buf[i] = 0
	}
	f.sealed = false
	f.setSize(0)
}

// Clear zeroes the whole buffer, checksum included. This is how the
// inbound scratch frame is left between transfers.
func (f *Frame) Clear() {
	for i := range f.buf {
		f.buf[i] = 0
	}
	f.sealed = false
}

func (f *Frame) setSize(size int) {
	ByteOrder.PutUint16(f.buf[0:], uint16(size))
	ByteOrder.PutUint16(f.buf[2:], Checksum(uint16(size)))
}

// Append encodes a sub-packet at the end of the frame. Nothing is written
// if the sub-packet doesn't fit. A sub-packet without payload terminates
// the frame on the wire, so it must be the last one: any Append after it
// fails with ErrNoSpace until the frame is reset.
func (f *Frame) Append(ch Channel, opcode byte, data []byte) error {
	if ch == ChannelNone {
		return ErrInvalidChannel
	}
	need := PacketHeaderSize + len(data)
	if f.sealed || need > f.Free() {
		return ErrNoSpace
	}
	size := f.Size()
	pkt := Packet{Channel: ch, Opcode: opcode, Data: data}
	pkt.encode(f.buf[FrameHeaderSize+size:])
	f.setSize(size + need)
	f.sealed = len(data) == 0
	return nil
}

// Scan starts a lazy parse of the frame. Sub-packet payloads are
// truncated to the frame's MaxPayload.
func (f *Frame) Scan() *Scanner {
	return f.ScanLimit(MaxPayload(len(f.buf)))
}

// ScanLimit is Scan with an explicit payload limit.
func (f *Frame) ScanLimit(maxPayload int) *Scanner {
	s := &Scanner{frame: f, maxPayload: maxPayload, pos: FrameHeaderSize}
	if !f.Valid() {
		s.err, s.done = ErrInvalidChecksum, true
		return s
	}
	s.end = FrameHeaderSize + f.Size()
	if s.end > len(f.buf) {
		glog.Warningf("frame declares %d bytes, clamped to %d", f.Size(), len(f.buf)-FrameHeaderSize)
		s.end, s.clamped = len(f.buf), true
	}
	return s
}

// Scanner yields the sub-packets of a frame one by one.
//
//	s := frame.Scan()
//	for s.Next() {
//		pkt := s.Packet()
//	}
//	if err := s.Err(); err != nil {
//	}
type Scanner struct {
	frame      *Frame
	maxPayload int
	pos        int
	end        int
	pkt        *Packet
	err        error
	done       bool
	truncated  int
	clamped    bool
}

// Next advances to the next sub-packet. It returns false on the end of the
// frame, a sentinel or an error.
func (s *Scanner) Next() bool {
	s.pkt = nil
	if s.done {
		return false
	}
	if s.pos >= s.end {
		s.done = true
		return false
	}
	h, err := decodePacketHeader(s.frame.buf[s.pos:s.end])
	if err != nil {
		return s.fail(err)
	}
	if h.channel == ChannelNone || h.size == 0 {
		s.done = true
		return false
	}
	size := h.size
	if size > s.maxPayload {
		glog.Warningf("channel %s opcode %d: payload size %d truncated to %d", h.channel, h.opcode, h.size, s.maxPayload)
		size = s.maxPayload
		s.truncated++
	}
	start := s.pos + PacketHeaderSize
	if start+size > s.end {
		return s.fail(ErrMalformedPacket)
	}
	s.pkt = &Packet{
		Channel: h.channel,
		Opcode:  h.opcode,
		Data:    s.frame.buf[start : start+size : start+size],
	}
	s.pos = start + h.size
	return true
}

func (s *Scanner) fail(err error) bool {
	s.err, s.done = err, true
	return false
}

// Packet returns the current sub-packet. Data aliases the frame buffer and
// is only valid until the frame is reset.
func (s *Scanner) Packet() *Packet {
	return s.pkt
}

// Err returns the error which stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Truncated returns the number of payloads truncated so far.
func (s *Scanner) Truncated() int {
	return s.truncated
}

// Clamped indicates the declared frame size exceeded the buffer.
func (s *Scanner) Clamped() bool {
	return s.clamped
}

// Packets scans the whole frame and returns copies of all sub-packets.
func (f *Frame) Packets() ([]*Packet, error) {
	var pkts []*Packet
	s := f.Scan()
	for s.Next() {
		pkt := s.Packet()
		data := make([]byte, len(pkt.Data))
		copy(data, pkt.Data)
		pkts = append(pkts, &Packet{Channel: pkt.Channel, Opcode: pkt.Opcode, Data: data})
	}
	return pkts, s.Err()
}
