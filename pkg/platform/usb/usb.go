// Package usb reaches boards over their USB vendor control endpoint and
// bulk data endpoint.
package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Endpoint and timing defaults.
const (
	DataEndpoint   = 1
	ControlTimeout = time.Second
)

// Endpoint is a bulk IN endpoint.
type Endpoint interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

// Device is an opened USB device.
type Device interface {
	Control(rType, request uint8, value, index uint16, data []byte) (int, error)
	// BulkIn claims the default interface and returns endpoint ep, done
	// releases the interface.
	BulkIn(ep int) (Endpoint, func(), error)
	Close() error
}

// Error maps a libusb error to a connection error.
func Error(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	var usbErr gousb.Error
	var xfer gousb.TransferStatus
	switch {
	case errors.As(err, &usbErr):
		switch usbErr {
		case gousb.ErrorTimeout:
			return status.Wrap(status.KindConnection, status.CodeTimeout, op, err)
		case gousb.ErrorPipe:
			errno = syscall.EPIPE
		case gousb.ErrorNoDevice:
			errno = syscall.ENODEV
		case gousb.ErrorBusy:
			errno = syscall.EBUSY
		case gousb.ErrorAccess:
			errno = syscall.EACCES
		case gousb.ErrorNotFound:
			errno = syscall.ENOENT
		case gousb.ErrorOverflow:
			errno = syscall.EOVERFLOW
		default:
			errno = syscall.EIO
		}
	case errors.As(err, &xfer):
		switch xfer {
		case gousb.TransferTimedOut, gousb.TransferCancelled:
			return status.Wrap(status.KindConnection, status.CodeTimeout, op, err)
		case gousb.TransferStall:
			errno = syscall.EPIPE
		case gousb.TransferNoDevice:
			errno = syscall.ENODEV
		case gousb.TransferOverflow:
			errno = syscall.EOVERFLOW
		default:
			errno = syscall.EIO
		}
	default:
		return link.ConnectionError(op, err)
	}
	return status.Connection(op, uint16(errno), err)
}

// session shares one opened device between the control and data links.
type session struct {
	lock   sync.Mutex
	opener func() (Device, error)
	dev    Device
	refs   int
}

func (s *session) acquire() (Device, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dev == nil {
		dev, err := s.opener()
		if err != nil {
			return nil, Error("open", err)
		}
		s.dev = dev
	}
	s.refs++
	return s.dev, nil
}

func (s *session) release() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return Error("close", err)
}

// ControlLink is the vendor control endpoint of a device.
type ControlLink struct {
	s   *session
	dev Device
}

var _ link.ControlLink = &ControlLink{}

// Open implements link.ControlLink.
func (l *ControlLink) Open() error {
	if l.dev != nil {
		return nil
	}
	dev, err := l.s.acquire()
	if err != nil {
		return err
	}
	l.dev = dev
	return nil
}

// Close implements link.ControlLink.
func (l *ControlLink) Close() error {
	if l.dev == nil {
		return nil
	}
	l.dev = nil
	return l.s.release()
}

// MaxPayload implements link.ControlLink.
func (l *ControlLink) MaxPayload() int {
	return link.UsbControlMaxPayload
}

// VendorWrite implements link.ControlLink.
func (l *ControlLink) VendorWrite(setup link.Setup, data []byte) error {
	if l.dev == nil {
		return status.ErrNotOpen
	}
	n, err := l.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice, setup.Request, setup.Value, setup.Index, data)
	if err != nil {
		return Error("vendorWrite", err)
	}
	if n != len(data) {
		return status.Errorf(status.KindConnection, status.CodeInvalidSize, "vendorWrite", "%d of %d bytes sent", n, len(data))
	}
	return nil
}

// VendorRead implements link.ControlLink.
func (l *ControlLink) VendorRead(setup link.Setup, data []byte) (int, error) {
	if l.dev == nil {
		return 0, status.ErrNotOpen
	}
	n, err := l.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice, setup.Request, setup.Value, setup.Index, data)
	if err != nil {
		return n, Error("vendorRead", err)
	}
	return n, nil
}

// DataLink receives frames from the bulk IN endpoint.
type DataLink struct {
	Endpoint int

	s    *session
	ep   Endpoint
	done func()
}

var _ link.Datagram = &DataLink{}

// Open implements link.Link.
func (l *DataLink) Open() error {
	if l.ep != nil {
		return nil
	}
	dev, err := l.s.acquire()
	if err != nil {
		return err
	}
	ep, done, err := dev.BulkIn(l.Endpoint)
	if err != nil {
		l.s.release()
		return Error("claim", err)
	}
	l.ep, l.done = ep, done
	return nil
}

// Close implements link.Link.
func (l *DataLink) Close() error {
	if l.ep == nil {
		return nil
	}
	l.done()
	l.ep, l.done = nil, nil
	return l.s.release()
}

// Send implements link.Link. The data endpoint is receive only.
func (l *DataLink) Send([]byte) error {
	return status.NotImplemented("send")
}

// Receive implements link.Link.
func (l *DataLink) Receive(p []byte, timeout time.Duration) (int, error) {
	if l.ep == nil {
		return 0, status.ErrNotOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := l.ep.ReadContext(ctx, p)
	if n > 0 {
		return n, nil
	}
	return 0, Error("receive", err)
}

// MaxPayload implements link.Link.
func (l *DataLink) MaxPayload() int {
	return link.UsbControlMaxPayload
}

// ClearInput implements link.Link.
func (l *DataLink) ClearInput() error {
	return nil
}

// IsDatagram implements link.Datagram.
func (l *DataLink) IsDatagram() bool {
	return true
}

// Links creates the control and data links of one device. opener is
// called when the first of them opens.
func Links(opener func() (Device, error)) (*ControlLink, *DataLink) {
	s := &session{opener: opener}
	return &ControlLink{s: s}, &DataLink{s: s, Endpoint: DataEndpoint}
}

// Location identifies a device on the host buses.
type Location struct {
	Bus     int
	Address int
}

func (l Location) String() string {
	return fmt.Sprintf("usb:%d:%d", l.Bus, l.Address)
}
