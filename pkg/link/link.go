// Package link defines the transport contracts bridges are built on.
package link

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/robotalks/strata.go/pkg/status"
)

// Payload limits and ports shared by all transports.
const (
	EthTCPMaxPayload     = 32768
	EthUDPMaxPayload     = 1472
	EthControlPort       = 55055
	EthDataPort          = 55057
	SerialMaxPayload     = 4096
	UsbControlMaxPayload = 4096

	DefaultTimeout = time.Second
)

// Link is a byte transport to a device.
type Link interface {
	Open() error
	Close() error
	// Send blocks until the whole buffer is accepted or fails.
	Send(p []byte) error
	// Receive reads up to len(p) bytes within timeout. Stream links may
	// return partial reads.
	Receive(p []byte, timeout time.Duration) (int, error)
	// MaxPayload is the largest single packet carried atomically.
	MaxPayload() int
	ClearInput() error
}

// Datagram marks message-oriented links. Sends larger than MaxPayload
// are rejected and a Receive consumes exactly one message.
type Datagram interface {
	Link
	IsDatagram() bool
}

// Setup is the setup stage of a vendor control transfer.
type Setup struct {
	Request byte
	Value   uint16
	Index   uint16
}

// ControlLink is a vendor control endpoint.
type ControlLink interface {
	Open() error
	Close() error
	VendorWrite(setup Setup, data []byte) error
	// VendorRead reads into data and returns the byte count received.
	VendorRead(setup Setup, data []byte) (int, error)
	MaxPayload() int
}

// PropertyLink is a UVC extension unit. Lock must be held around a
// SetProperty/GetProperty pair so no other pair interleaves.
type PropertyLink interface {
	sync.Locker
	Open() error
	Close() error
	SetProperty(selector byte, data []byte) error
	GetProperty(selector byte, data []byte) error
	PropertySize(selector byte) (int, error)
}

// IsDatagram reports whether l is message oriented.
func IsDatagram(l Link) bool {
	d, ok := l.(Datagram)
	return ok && d.IsDatagram()
}

// ConnectionError classifies a transport failure as a connection error
// carrying the operating system error number.
func ConnectionError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *status.Error
	if errors.As(err, &se) {
		return err
	}
	if IsTimeout(err) {
		return status.Wrap(status.KindConnection, status.CodeTimeout, op, err)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return status.Connection(op, uint16(errno), err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return status.Connection(op, uint16(syscall.EPIPE), err)
	}
	return status.Connection(op, 0, err)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
