//go:build linux

package uvc

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
	"golang.org/x/sys/unix"
)

// uvcioc_ctrl_query and its queries, from linux/uvcvideo.h.
const (
	uvciocCtrlQueryBase = 0xC0007521

	uvcSetCur = 0x01
	uvcGetCur = 0x81
	uvcGetLen = 0x85
)

type xuControlQuery struct {
	unit     uint8
	selector uint8
	query    uint8
	_        uint8
	size     uint16
	_        uint16
	data     uintptr
}

// UVCIOC_CTRL_QUERY encodes the struct size, 0xC0107521 on 64 bit hosts.
var uvciocCtrlQuery = uintptr(uvciocCtrlQueryBase) | unsafe.Sizeof(xuControlQuery{})<<16

// Link is an extension unit of a video device node.
type Link struct {
	sync.Mutex

	Device string
	Unit   uint8

	fd int
}

var _ link.PropertyLink = &Link{}

// NewLink creates the link to unit on device.
func NewLink(device string, unit uint8) *Link {
	return &Link{Device: device, Unit: unit, fd: -1}
}

// Open implements link.PropertyLink.
func (l *Link) Open() error {
	if l.fd >= 0 {
		return nil
	}
	fd, err := unix.Open(l.Device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return link.ConnectionError("open "+l.Device, err)
	}
	l.fd = fd
	return nil
}

// Close implements link.PropertyLink.
func (l *Link) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return link.ConnectionError("close", err)
}

func (l *Link) query(op string, selector, query byte, data []byte) error {
	if l.fd < 0 {
		return status.ErrNotOpen
	}
	q := xuControlQuery{
		unit:     l.Unit,
		selector: selector,
		query:    query,
		size:     uint16(len(data)),
	}
	if len(data) > 0 {
		q.data = uintptr(unsafe.Pointer(&data[0]))
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(l.fd), uvciocCtrlQuery, uintptr(unsafe.Pointer(&q)))
	runtime.KeepAlive(data)
	if errno != 0 {
		return status.Connection(op, uint16(errno), errno)
	}
	return nil
}

// SetProperty implements link.PropertyLink.
func (l *Link) SetProperty(selector byte, data []byte) error {
	return l.query("setProperty", selector, uvcSetCur, data)
}

// GetProperty implements link.PropertyLink.
func (l *Link) GetProperty(selector byte, data []byte) error {
	return l.query("getProperty", selector, uvcGetCur, data)
}

// PropertySize implements link.PropertyLink.
func (l *Link) PropertySize(selector byte) (int, error) {
	var size [2]byte
	if err := l.query("propertySize", selector, uvcGetLen, size[:]); err != nil {
		return 0, err
	}
	return int(size[0]) | int(size[1])<<8, nil
}
