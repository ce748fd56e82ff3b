package linktest

import (
	"encoding/binary"
	"sync"
	"syscall"
	"time"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/mock"
)

// ControlLink returns a vendor control endpoint attached to the device.
func (d *Device) ControlLink(maxPayload int) *ControlLink {
	return &ControlLink{Device: d, Max: maxPayload}
}

// ControlLink is an in-memory link.ControlLink. Failed requests stall the
// endpoint like a USB device does. Transfers larger than Max fail with
// EOVERFLOW without reaching the device.
type ControlLink struct {
	Device *Device
	Max    int

	Transfers int
	// Largest is the size of the largest data stage seen.
	Largest int
}

func (l *ControlLink) transfer(op string, n int) error {
	l.Transfers++
	if n > l.Largest {
		l.Largest = n
	}
	if n > l.Max {
		return status.Connection(op, uint16(syscall.EOVERFLOW), nil)
	}
	return nil
}

// Open implements link.ControlLink.
func (l *ControlLink) Open() error { return nil }

// Close implements link.ControlLink.
func (l *ControlLink) Close() error { return nil }

// MaxPayload implements link.ControlLink.
func (l *ControlLink) MaxPayload() int { return l.Max }

// VendorWrite implements link.ControlLink.
func (l *ControlLink) VendorWrite(setup link.Setup, data []byte) error {
	if err := l.transfer("vendorWrite", len(data)); err != nil {
		return err
	}
	code, _ := l.Device.Serve(protocol.RequestHeader{
		RequestType: protocol.VendorWriteType,
		Request:     setup.Request,
		Value:       setup.Value,
		Index:       setup.Index,
		Length:      uint16(len(data)),
	}, data)
	if code != status.CodeSuccess {
		return status.Connection("vendorWrite", uint16(syscall.EPIPE), nil)
	}
	return nil
}

// VendorRead implements link.ControlLink.
func (l *ControlLink) VendorRead(setup link.Setup, data []byte) (int, error) {
	if err := l.transfer("vendorRead", len(data)); err != nil {
		return 0, err
	}
	code, resp := l.Device.Serve(protocol.RequestHeader{
		RequestType: protocol.VendorReadType,
		Request:     setup.Request,
		Value:       setup.Value,
		Index:       setup.Index,
		Length:      uint16(len(data)),
	}, nil)
	if code != status.CodeSuccess {
		return 0, status.Connection("vendorRead", uint16(syscall.EPIPE), nil)
	}
	return copy(data, resp), nil
}

// PropertyLink returns an extension unit attached to the device. size is
// the byte size of both properties.
func (d *Device) PropertyLink(size int) *PropertyLink {
	return &PropertyLink{Device: d, Size: size}
}

// PropertyLink is an in-memory link.PropertyLink. It counts lock
// acquisitions and property accesses made without the lock.
type PropertyLink struct {
	Device *Device
	Size   int

	Locks    int
	Unlocked int

	mutex   sync.Mutex
	locked  bool
	pending []byte
	header  *protocol.RequestHeader
	out     [][]byte
}

// Lock implements sync.Locker.
func (l *PropertyLink) Lock() {
	l.mutex.Lock()
	l.locked = true
	l.Locks++
}

// Unlock implements sync.Locker.
func (l *PropertyLink) Unlock() {
	l.locked = false
	l.mutex.Unlock()
}

// Open implements link.PropertyLink.
func (l *PropertyLink) Open() error { return nil }

// Close implements link.PropertyLink.
func (l *PropertyLink) Close() error { return nil }

// PropertySize implements link.PropertyLink.
func (l *PropertyLink) PropertySize(selector byte) (int, error) {
	if selector != protocol.PropertyRequest && selector != protocol.PropertyResponse {
		return 0, status.Connection("propertySize", uint16(syscall.EINVAL), nil)
	}
	return l.Size, nil
}

// SetProperty implements link.PropertyLink.
func (l *PropertyLink) SetProperty(selector byte, data []byte) error {
	if !l.locked {
		l.Unlocked++
	}
	if selector != protocol.PropertyRequest || len(data) != l.Size {
		return status.Connection("setProperty", uint16(syscall.EINVAL), nil)
	}
	if l.header == nil {
		h, err := protocol.DecodeRequestHeader(data)
		if err != nil {
			return err
		}
		l.header = &h
		data = data[protocol.RequestHeaderSize:]
		l.pending = l.pending[:0]
	}
	if l.header.IsWrite() {
		l.pending = append(l.pending, data...)
		if len(l.pending) < int(l.header.Length) {
			return nil
		}
		l.pending = l.pending[:l.header.Length]
	}
	code, resp := l.Device.Serve(*l.header, l.pending)
	l.header = nil
	msg := protocol.EncodeResponse(code, resp)
	l.out = l.out[:0]
	for len(msg) > l.Size {
		l.out = append(l.out, msg[:l.Size])
		msg = msg[l.Size:]
	}
	l.out = append(l.out, msg)
	return nil
}

// GetProperty implements link.PropertyLink.
func (l *PropertyLink) GetProperty(selector byte, data []byte) error {
	if !l.locked {
		l.Unlocked++
	}
	if selector != protocol.PropertyResponse || len(data) != l.Size {
		return status.Connection("getProperty", uint16(syscall.EINVAL), nil)
	}
	if len(l.out) == 0 {
		return status.Connection("getProperty", uint16(syscall.EIO), nil)
	}
	for i := range data {
		data[i] = 0
	}
	copy(data, l.out[0])
	l.out = l.out[1:]
	return nil
}

// DataLink is a link.Link delivering queued data packets.
type DataLink struct {
	packets chan []byte
	closed  chan struct{}
	once    sync.Once
}

// NewDataLink creates a DataLink.
func NewDataLink() *DataLink {
	return &DataLink{packets: make(chan []byte, 64), closed: make(chan struct{})}
}

// Push queues a data packet [channel][flags][length u16][payload].
func (l *DataLink) Push(channel byte, last bool, payload []byte) {
	pkt := make([]byte, 4, 4+len(payload))
	pkt[0] = channel
	if last {
		pkt[1] = 1
	}
	binary.LittleEndian.PutUint16(pkt[2:], uint16(len(payload)))
	l.packets <- append(pkt, payload...)
}

// Open implements link.Link.
func (l *DataLink) Open() error { return nil }

// Close implements link.Link.
func (l *DataLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

// IsDatagram implements link.Datagram.
func (l *DataLink) IsDatagram() bool { return true }

// MaxPayload implements link.Link.
func (l *DataLink) MaxPayload() int { return link.EthUDPMaxPayload }

// ClearInput implements link.Link.
func (l *DataLink) ClearInput() error { return nil }

// Send implements link.Link.
func (l *DataLink) Send(p []byte) error {
	return status.NotImplemented("send")
}

// Receive implements link.Link.
func (l *DataLink) Receive(p []byte, timeout time.Duration) (int, error) {
	select {
	case <-l.closed:
		return 0, status.Connection("receive", uint16(syscall.EBADF), nil)
	case pkt := <-l.packets:
		return copy(p, pkt), nil
	case <-time.After(timeout):
		return 0, status.Wrap(status.KindConnection, status.CodeTimeout, "receive", nil)
	}
}

// MockLink is a testify mock of link.Link.
type MockLink struct {
	mock.Mock
}

// Open implements link.Link.
func (m *MockLink) Open() error {
	return m.Called().Error(0)
}

// Close implements link.Link.
func (m *MockLink) Close() error {
	return m.Called().Error(0)
}

// Send implements link.Link.
func (m *MockLink) Send(p []byte) error {
	return m.Called(p).Error(0)
}

// Receive implements link.Link. A []byte first return value is copied
// into p.
func (m *MockLink) Receive(p []byte, timeout time.Duration) (int, error) {
	args := m.Called(p, timeout)
	if data, ok := args.Get(0).([]byte); ok {
		return copy(p, data), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

// MaxPayload implements link.Link.
func (m *MockLink) MaxPayload() int {
	return m.Called().Int(0)
}

// ClearInput implements link.Link.
func (m *MockLink) ClearInput() error {
	return m.Called().Error(0)
}

var (
	_ link.ControlLink  = &ControlLink{}
	_ link.PropertyLink = &PropertyLink{}
	_ link.Datagram     = &DataLink{}
	_ link.Link         = &MockLink{}
)
