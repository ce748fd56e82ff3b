// Package status defines the error code space shared with board firmware
// and the error kinds surfaced by the library.
package status

import "fmt"

// Code is a 16-bit status code as carried in the response header.
type Code uint16

// Status codes. The values are observable on the wire and must not change.
const (
	CodeSuccess          Code = 0x00
	CodeFailed           Code = 0x01
	CodeInvalidSize      Code = 0x02
	CodeInvalidParameter Code = 0x03
	CodeMissingParameter Code = 0x04
	CodeUnexpectedValue  Code = 0x05
	CodeOutOfBounds      Code = 0x06
	CodeOverflow         Code = 0x07
	CodeTimeout          Code = 0x08
	CodeBusy             Code = 0x09
	CodeAborted          Code = 0x0A
	CodeUnderflow        Code = 0x0B
	CodeOutOfMemory      Code = 0x0C
	CodeInvalidAddress   Code = 0x0D

	CodeNotImplemented Code = 0x10
	CodeNotPossible    Code = 0x11
	CodeNotAvailable   Code = 0x12
	CodeNotAllowed     Code = 0x13
	CodeNotInitialized Code = 0x14
	CodeNotConfigured  Code = 0x15
	CodeNotOpen        Code = 0x16
	CodeNotSupported   Code = 0x17

	CodeFwLoadFailed Code = 0x70
	CodeFwNotFound   Code = 0x71
	CodeFwInvalid    Code = 0x72
	CodeFwVersion    Code = 0x73
	CodeFwFunction   Code = 0x74
	CodeFwChecksum   Code = 0x75
	CodeFwBusy       Code = 0x76
)

var codeNames = map[Code]string{
	CodeSuccess:          "success",
	CodeFailed:           "failed",
	CodeInvalidSize:      "invalid size",
	CodeInvalidParameter: "invalid parameter",
	CodeMissingParameter: "missing parameter",
	CodeUnexpectedValue:  "unexpected value",
	CodeOutOfBounds:      "out of bounds",
	CodeOverflow:         "overflow",
	CodeTimeout:          "timeout",
	CodeBusy:             "busy",
	CodeAborted:          "aborted",
	CodeUnderflow:        "underflow",
	CodeOutOfMemory:      "out of memory",
	CodeInvalidAddress:   "invalid address",
	CodeNotImplemented:   "not implemented",
	CodeNotPossible:      "not possible",
	CodeNotAvailable:     "not available",
	CodeNotAllowed:       "not allowed",
	CodeNotInitialized:   "not initialized",
	CodeNotConfigured:    "not configured",
	CodeNotOpen:          "not open",
	CodeNotSupported:     "not supported",
	CodeFwLoadFailed:     "firmware load failed",
	CodeFwNotFound:       "firmware function not found",
	CodeFwInvalid:        "firmware image invalid",
	CodeFwVersion:        "firmware version mismatch",
	CodeFwFunction:       "firmware function failed",
	CodeFwChecksum:       "firmware checksum mismatch",
	CodeFwBusy:           "firmware busy",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code 0x%02x", uint16(c))
}

// IsFirmware indicates the code belongs to the firmware load/function range.
func (c Code) IsFirmware() bool {
	return c >= CodeFwLoadFailed && c <= CodeFwBusy
}
