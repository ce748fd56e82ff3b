// Package bridge implements the vendor command protocol and the bus and
// data access built on it.
package bridge

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/common"
	"github.com/robotalks/strata.go/pkg/status"
)

// VersionInfoWords is the number of words returned by ReadVersionInfo.
const VersionInfoWords = 6

// Control issues vendor commands. Requests are serialised, at most one is
// in flight per Control.
type Control interface {
	VendorWrite(request byte, value, index uint16, data []byte) error
	// VendorRead reads exactly len(buf) bytes.
	VendorRead(request byte, value, index uint16, buf []byte) error
	// VendorTransfer writes data then reads buf without releasing the bridge.
	VendorTransfer(request byte, value, index uint16, data, buf []byte) error
	ReadVersionInfo(words []uint16) error
	ProtocolVersion() uint32
	// MaxTransfer is the largest payload of one request.
	MaxTransfer() int
	Close() error
}

type transport interface {
	open() error
	close() error
	write(op string, h protocol.RequestHeader, data []byte) error
	read(op string, h protocol.RequestHeader, buf []byte) error
	maxTransfer() int
}

// VendorControl implements Control over a transport.
type VendorControl struct {
	Metrics *Metrics

	t       transport
	lock    sync.Mutex
	opened  bool
	version atomic.Uint32
}

func newVendorControl(t transport) *VendorControl {
	return &VendorControl{t: t}
}

// Open opens the underlying link.
func (c *VendorControl) Open() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.opened {
		return nil
	}
	if err := c.t.open(); err != nil {
		return err
	}
	c.opened = true
	return nil
}

// Close implements Control.
func (c *VendorControl) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.opened {
		return nil
	}
	c.opened = false
	return c.t.close()
}

// VendorWrite implements Control.
func (c *VendorControl) VendorWrite(request byte, value, index uint16, data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.write(request, value, index, data)
}

// VendorRead implements Control.
func (c *VendorControl) VendorRead(request byte, value, index uint16, buf []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.read(request, value, index, buf)
}

// VendorTransfer implements Control.
func (c *VendorControl) VendorTransfer(request byte, value, index uint16, data, buf []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.write(request, value, index, data); err != nil {
		return err
	}
	return c.read(request, value, index, buf)
}

func (c *VendorControl) write(request byte, value, index uint16, data []byte) error {
	if !c.opened {
		return status.ErrNotOpen
	}
	if len(data) > math.MaxUint16 {
		return status.Errorf(status.KindProtocol, status.CodeInvalidSize, "vendorWrite", "%d bytes", len(data))
	}
	h := protocol.RequestHeader{
		RequestType: protocol.VendorWriteType,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      uint16(len(data)),
	}
	err := c.t.write("vendorWrite", h, data)
	c.trace(h, err)
	return err
}

func (c *VendorControl) read(request byte, value, index uint16, buf []byte) error {
	if !c.opened {
		return status.ErrNotOpen
	}
	if len(buf) > math.MaxUint16 {
		return status.Errorf(status.KindProtocol, status.CodeInvalidSize, "vendorRead", "%d bytes", len(buf))
	}
	h := protocol.RequestHeader{
		RequestType: protocol.VendorReadType,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      uint16(len(buf)),
	}
	err := c.t.read("vendorRead", h, buf)
	c.trace(h, err)
	return err
}

func (c *VendorControl) trace(h protocol.RequestHeader, err error) {
	c.Metrics.request(h.Request, err)
	if err != nil {
		glog.V(2).Infof("%s: %v", h, err)
	} else if glog.V(4) {
		glog.Infof("%s: ok", h)
	}
}

// ReadVersionInfo implements Control. words must hold VersionInfoWords
// entries; the protocol version is taken from words 4 and 5.
func (c *VendorControl) ReadVersionInfo(words []uint16) error {
	if len(words) < VersionInfoWords {
		return status.Errorf(status.KindProtocol, status.CodeInvalidSize, "readVersionInfo", "%d words", len(words))
	}
	buf := make([]byte, 2*len(words))
	if err := c.VendorRead(protocol.ReqBoardInfo, protocol.VersionInfoValue, 0, buf); err != nil {
		return err
	}
	copy(words, common.LittleToHost16(buf))
	c.version.Store(uint32(words[4])<<16 | uint32(words[5]))
	return nil
}

// ProtocolVersion implements Control. It is zero until ReadVersionInfo
// succeeds.
func (c *VendorControl) ProtocolVersion() uint32 {
	return c.version.Load()
}

// MaxTransfer implements Control.
func (c *VendorControl) MaxTransfer() int {
	return c.t.maxTransfer()
}

// BoardInfo is the identity a board reports.
type BoardInfo struct {
	VID  uint16
	PID  uint16
	Name string
}

// BoardInfoSize is the size of the identity reply: VID, PID and a
// NUL padded name.
const BoardInfoSize = 36

// ReadBoardInfo reads the board identity.
func ReadBoardInfo(c Control) (info BoardInfo, err error) {
	buf := make([]byte, BoardInfoSize)
	if err = c.VendorRead(protocol.ReqBoardInfo, protocol.BoardInfoValue, 0, buf); err != nil {
		return info, err
	}
	info.VID = binary.LittleEndian.Uint16(buf)
	info.PID = binary.LittleEndian.Uint16(buf[2:])
	info.Name = strings.TrimRight(string(buf[4:]), "\x00")
	return info, nil
}

// ReadUUID reads the board UUID.
func ReadUUID(c Control) (uuid.UUID, error) {
	var buf [16]byte
	if err := c.VendorRead(protocol.ReqBoardInfo, protocol.UUIDValue, 0, buf[:]); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(buf[:])
}

// ReadExtendedVersion reads the firmware version string.
func ReadExtendedVersion(c Control, size int) (string, error) {
	buf := make([]byte, size)
	if err := c.VendorRead(protocol.ReqBoardInfo, protocol.ExtendedVersionValue, 0, buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}
