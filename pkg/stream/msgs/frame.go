// Package msgs defines the messages frames are forwarded as.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/robotalks/strata.go/pkg/bridge"
)

// Frame is a data frame tagged with its origin.
type Frame struct {
	Board     string `protobuf:"bytes,1,opt,name=board,proto3" json:"board,omitempty"`
	Host      string `protobuf:"bytes,2,opt,name=host,proto3" json:"host,omitempty"`
	Channel   uint32 `protobuf:"varint,3,opt,name=channel,proto3" json:"channel,omitempty"`
	Sequence  uint64 `protobuf:"varint,4,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Timestamp int64  `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Data      []byte `protobuf:"bytes,6,opt,name=data,proto3" json:"data,omitempty"`
}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Frame) ProtoMessage() {}

// Time returns the receive time.
func (m *Frame) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// NewFrame copies f. The bridge frame can be released afterwards.
func NewFrame(board, host string, seq uint64, f *bridge.Frame) *Frame {
	return &Frame{
		Board:     board,
		Host:      host,
		Channel:   uint32(f.VirtualChannel),
		Sequence:  seq,
		Timestamp: f.Timestamp.UnixNano(),
		Data:      append([]byte(nil), f.Data...),
	}
}

// Encode serializes m.
func (m *Frame) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeFrame parses an encoded Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var m Frame
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
