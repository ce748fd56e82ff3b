// Package protocol defines the framing of the vendor command protocol.
//
//	Request  : [bmRequestType 1][bRequest 1][wValue 2][wIndex 2][wLength 2] [payload wLength]
//	Response : [status 2][wLength 2] [payload wLength]
//
// All multi-byte fields are little-endian.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/robotalks/strata.go/pkg/status"
)

// Header sizes.
const (
	RequestHeaderSize  = 8
	ResponseHeaderSize = 4
)

// Request types.
const (
	VendorWriteType byte = 0x40
	VendorReadType  byte = 0xC0
)

// Request codes.
const (
	ReqBoardInfo    byte = 0x10
	ReqLastError    byte = 0x11
	ReqI2C          byte = 0x20
	ReqSPITransfer  byte = 0x21
	ReqSPIConfigure byte = 0x22
	ReqGPIO         byte = 0x23
	ReqData         byte = 0x24
	ReqComponent    byte = 0x30
	ReqModule       byte = 0x31
)

// wValue of ReqBoardInfo.
const (
	BoardInfoValue       uint16 = 0x00
	VersionInfoValue     uint16 = 0x01
	ExtendedVersionValue uint16 = 0x02
	UUIDValue            uint16 = 0x03
)

// wIndex of ReqGPIO.
const (
	GPIOConfigure uint16 = 0
	GPIOSet       uint16 = 1
	GPIOGet       uint16 = 2
)

// wIndex of ReqData.
const (
	DataConfigure uint16 = 0
	DataStart     uint16 = 1
	DataStop      uint16 = 2
)

// UVC extension unit property selectors.
const (
	PropertyRequest  byte = 0x01
	PropertyResponse byte = 0x02
)

// ProtocolVersionBatch is the first protocol version handling register
// batches in one request.
const ProtocolVersionBatch uint32 = 0x00010000

// RequestHeader is the fixed header of a request.
type RequestHeader struct {
	RequestType byte
	Request     byte
	Value       uint16
	Index       uint16
	Length      uint16
}

// IsWrite reports whether the request carries a payload.
func (h RequestHeader) IsWrite() bool {
	return h.RequestType == VendorWriteType
}

// String implements fmt.Stringer.
func (h RequestHeader) String() string {
	return fmt.Sprintf("req=%02x/%02x value=%04x index=%04x len=%d",
		h.RequestType, h.Request, h.Value, h.Index, h.Length)
}

// Append appends the encoded header to b.
func (h RequestHeader) Append(b []byte) []byte {
	var buf [RequestHeaderSize]byte
	h.Encode(buf[:])
	return append(b, buf[:]...)
}

// Encode writes the header into b.
func (h RequestHeader) Encode(b []byte) {
	b[0] = h.RequestType
	b[1] = h.Request
	binary.LittleEndian.PutUint16(b[2:], h.Value)
	binary.LittleEndian.PutUint16(b[4:], h.Index)
	binary.LittleEndian.PutUint16(b[6:], h.Length)
}

// DecodeRequestHeader parses a request header.
func DecodeRequestHeader(b []byte) (h RequestHeader, err error) {
	if len(b) < RequestHeaderSize {
		return h, status.Errorf(status.KindProtocol, status.CodeUnderflow, "decodeRequest", "%d header bytes", len(b))
	}
	h.RequestType = b[0]
	h.Request = b[1]
	h.Value = binary.LittleEndian.Uint16(b[2:])
	h.Index = binary.LittleEndian.Uint16(b[4:])
	h.Length = binary.LittleEndian.Uint16(b[6:])
	if h.RequestType != VendorWriteType && h.RequestType != VendorReadType {
		return h, status.Errorf(status.KindProtocol, status.CodeUnexpectedValue, "decodeRequest", "request type 0x%02x", h.RequestType)
	}
	return h, nil
}

// ResponseHeader is the fixed header of a response.
type ResponseHeader struct {
	Status status.Code
	Length uint16
}

// Append appends the encoded header to b.
func (h ResponseHeader) Append(b []byte) []byte {
	var buf [ResponseHeaderSize]byte
	h.Encode(buf[:])
	return append(b, buf[:]...)
}

// Encode writes the header into b.
func (h ResponseHeader) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b, uint16(h.Status))
	binary.LittleEndian.PutUint16(b[2:], h.Length)
}

// DecodeResponseHeader parses a response header.
func DecodeResponseHeader(b []byte) (h ResponseHeader, err error) {
	if len(b) < ResponseHeaderSize {
		return h, status.Errorf(status.KindProtocol, status.CodeUnderflow, "decodeResponse", "%d header bytes", len(b))
	}
	h.Status = status.Code(binary.LittleEndian.Uint16(b))
	h.Length = binary.LittleEndian.Uint16(b[2:])
	return h, nil
}

// EncodeRequest builds a complete request frame.
func EncodeRequest(h RequestHeader, payload []byte) []byte {
	b := make([]byte, 0, RequestHeaderSize+len(payload))
	return append(h.Append(b), payload...)
}

// EncodeResponse builds a complete response frame.
func EncodeResponse(code status.Code, payload []byte) []byte {
	b := make([]byte, 0, ResponseHeaderSize+len(payload))
	b = ResponseHeader{Status: code, Length: uint16(len(payload))}.Append(b)
	return append(b, payload...)
}
