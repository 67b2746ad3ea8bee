package msgs

import (
	"github.com/golang/protobuf/proto"
)

// Packet is a sub-packet received from or sent to a channel.
type Packet struct {
	Channel              uint32   `protobuf:"varint,1,opt,name=channel,proto3" json:"channel,omitempty"`
	Opcode               uint32   `protobuf:"varint,2,opt,name=opcode,proto3" json:"opcode,omitempty"`
	Data                 []byte   `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *Packet) Reset() { *m = Packet{} }

// String implements proto.Message.
func (m *Packet) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Packet) ProtoMessage() {}

// SendRequest asks the bridge to queue a sub-packet on the channel named
// by the topic. With Sync set, a transfer is performed immediately.
type SendRequest struct {
	Opcode               uint32   `protobuf:"varint,1,opt,name=opcode,proto3" json:"opcode,omitempty"`
	Data                 []byte   `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Sync                 bool     `protobuf:"varint,3,opt,name=sync,proto3" json:"sync,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *SendRequest) Reset() { *m = SendRequest{} }

// String implements proto.Message.
func (m *SendRequest) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*SendRequest) ProtoMessage() {}

// FrameRecord is a raw inbound frame captured by the debug tap.
type FrameRecord struct {
	Seq                  uint64   `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Timestamp            int64    `protobuf:"varint,2,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Raw                  []byte   `protobuf:"bytes,3,opt,name=raw,proto3" json:"raw,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *FrameRecord) Reset() { *m = FrameRecord{} }

// String implements proto.Message.
func (m *FrameRecord) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*FrameRecord) ProtoMessage() {}

func init() {
	proto.RegisterType((*Packet)(nil), "h7link.v1.Packet")
	proto.RegisterType((*SendRequest)(nil), "h7link.v1.SendRequest")
	proto.RegisterType((*FrameRecord)(nil), "h7link.v1.FrameRecord")
}
