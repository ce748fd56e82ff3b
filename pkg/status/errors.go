package status

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by the layer which raised it.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindConnection
	KindProtocol
	KindCommand
	KindSPI
	KindRegister
	KindNonvolatileMemory
	KindUninitialized
	KindMemory
	KindInUse
	KindNotImplemented
)

var kindNames = [...]string{
	KindUnknown:           "error",
	KindConnection:        "connection error",
	KindProtocol:          "protocol error",
	KindCommand:           "firmware command error",
	KindSPI:               "SPI protocol error",
	KindRegister:          "register error",
	KindNonvolatileMemory: "non-volatile memory error",
	KindUninitialized:     "uninitialized",
	KindMemory:            "memory error",
	KindInUse:             "in use",
	KindNotImplemented:    "not implemented",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind %d", int(k))
}

// Error is the error type returned by all library operations.
// Code always holds a wire status code. Connection errors raised by the
// operating system carry its error number in Errno.
type Error struct {
	Kind  Kind
	Code  Code
	Errno uint16
	Op    string
	Msg   string
	Err   error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	switch {
	case e.Errno != 0:
		fmt.Fprintf(&b, " (errno %d)", e.Errno)
	case e.Code != CodeSuccess && !(e.Kind == KindConnection && e.Code == CodeFailed):
		fmt.Fprintf(&b, " (%s, 0x%02x)", e.Code, uint16(e.Code))
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind and Code. A zero Code in target
// matches any code of the same kind. Errno only takes part when the
// target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Errno != 0 && t.Errno != e.Errno {
		return false
	}
	return t.Code == CodeSuccess || t.Code == e.Code
}

var (
	// ErrTimeout matches any error reporting CodeTimeout as a connection error.
	ErrTimeout = &Error{Kind: KindConnection, Code: CodeTimeout}
	// ErrNotOpen indicates use of a link which is not open.
	ErrNotOpen = &Error{Kind: KindConnection, Code: CodeNotOpen}
	// ErrInUse indicates a resource already acquired exclusively.
	ErrInUse = &Error{Kind: KindInUse}
	// ErrNotImplemented indicates a stubbed operation.
	ErrNotImplemented = &Error{Kind: KindNotImplemented}
	// ErrUninitialized indicates use before initialization.
	ErrUninitialized = &Error{Kind: KindUninitialized}
	// ErrUnderflow indicates a short response payload.
	ErrUnderflow = &Error{Kind: KindProtocol, Code: CodeUnderflow}
)

// New creates an Error.
func New(kind Kind, code Code, op, msg string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Msg: msg}
}

// Errorf creates an Error with formatted message.
func Errorf(kind Kind, code Code, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with kind and op.
func Wrap(kind Kind, code Code, op string, err error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

// Connection creates a connection error carrying an OS error number,
// zero when there is none. The code is CodeFailed.
func Connection(op string, errno uint16, err error) *Error {
	return &Error{Kind: KindConnection, Code: CodeFailed, Errno: errno, Op: op, Err: err}
}

// Protocol creates a protocol error with the remote status code.
func Protocol(op string, code Code) *Error {
	return &Error{Kind: KindProtocol, Code: code, Op: op}
}

// Command creates a firmware command error naming the command id.
func Command(command uint16, code Code) *Error {
	return &Error{Kind: KindCommand, Code: code, Msg: fmt.Sprintf("command 0x%04x", command)}
}

// Timeout creates a timeout error with the elapsed limit in the message.
func Timeout(kind Kind, op string, limit fmt.Stringer) *Error {
	return &Error{Kind: kind, Code: CodeTimeout, Op: op, Msg: "timed out after " + limit.String()}
}

// NotImplemented creates a not-implemented error for op.
func NotImplemented(op string) *Error {
	return &Error{Kind: KindNotImplemented, Code: CodeNotImplemented, Op: op}
}

// KindOf extracts the kind of err, KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf extracts the code of err, CodeFailed for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeFailed
}

// ErrnoOf extracts the operating system error number of err, zero when
// there is none.
func ErrnoOf(err error) uint16 {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno
	}
	return 0
}

// IsKind checks whether err is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
