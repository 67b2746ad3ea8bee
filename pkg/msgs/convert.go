package msgs

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/h7link/pkg/l0/link"
)

var (
	// ErrOutOfRange indicates a field doesn't fit the link's header.
	ErrOutOfRange = errors.New("field out of range")
)

// PacketFrom converts a link packet. Data is copied.
func PacketFrom(pkt *link.Packet) *Packet {
	return &Packet{
		Channel: uint32(pkt.Channel),
		Opcode:  uint32(pkt.Opcode),
		Data:    append([]byte(nil), pkt.Data...),
	}
}

// LinkPacket converts back to a link packet.
func (m *Packet) LinkPacket() (*link.Packet, error) {
	if m.Channel > 0xff {
		return nil, fmt.Errorf("channel %d: %w", m.Channel, ErrOutOfRange)
	}
	if m.Opcode > 0xff {
		return nil, fmt.Errorf("opcode %d: %w", m.Opcode, ErrOutOfRange)
	}
	return &link.Packet{Channel: link.Channel(m.Channel), Opcode: byte(m.Opcode), Data: m.Data}, nil
}

// OpcodeByte validates and returns the opcode.
func (m *SendRequest) OpcodeByte() (byte, error) {
	if m.Opcode > 0xff {
		return 0, fmt.Errorf("opcode %d: %w", m.Opcode, ErrOutOfRange)
	}
	return byte(m.Opcode), nil
}

// NewFrameRecord creates a record with a copy of raw.
func NewFrameRecord(seq uint64, t time.Time, raw []byte) *FrameRecord {
	return &FrameRecord{
		Seq:       seq,
		Timestamp: t.UnixNano(),
		Raw:       append([]byte(nil), raw...),
	}
}

// Time returns the capture time.
func (m *FrameRecord) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Frame wraps the raw bytes as a link frame.
func (m *FrameRecord) Frame() (*link.Frame, error) {
	if !link.ValidFrameSize(len(m.Raw)) {
		return nil, fmt.Errorf("record %d: %d bytes: %w", m.Seq, len(m.Raw), link.ErrMalformedPacket)
	}
	return link.FrameFrom(m.Raw), nil
}

// Encode marshals a record.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodePacket unmarshals a Packet.
func DecodePacket(data []byte) (*Packet, error) {
	var m Packet
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeSendRequest unmarshals a SendRequest.
func DecodeSendRequest(data []byte) (*SendRequest, error) {
	var m SendRequest
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeFrameRecord unmarshals a FrameRecord.
func DecodeFrameRecord(data []byte) (*FrameRecord, error) {
	var m FrameRecord
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
