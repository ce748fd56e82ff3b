package flash

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/common"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/robotalks/strata.go/pkg/status"
)

// Default readiness polling.
const (
	DefaultIdleTimeout = time.Second
	DefaultIdleStep    = 10 * time.Millisecond
)

// Config describes the geometry of a flash device.
type Config struct {
	PageSize   uint32 `yaml:"pageSize"`
	SectorSize uint32 `yaml:"sectorSize"`
	BlockSize  uint32 `yaml:"blockSize"`
	Capacity   uint32 `yaml:"capacity"`
}

// Nonvolatile is a flash memory component. Accesses wait for the device
// to be idle first, writes are split at page boundaries and each chunk
// waits for the device to finish programming.
type Nonvolatile struct {
	IdleTimeout time.Duration
	IdleStep    time.Duration

	access Access
	devID  uint8
	id     uint8
	config Config
	lock   sync.Mutex
	ready  bool
}

var _ memory.Memory[uint32, uint8] = &Nonvolatile{}

// New creates a Nonvolatile on the device devID of access.
func New(access Access, devID uint8, config Config, id uint8) (*Nonvolatile, error) {
	if config.PageSize == 0 {
		return nil, status.Errorf(status.KindNonvolatileMemory, status.CodeInvalidParameter, "flash", "zero page size")
	}
	if max := access.MaxTransfer(); max < int(config.PageSize) {
		return nil, status.Errorf(status.KindNonvolatileMemory, status.CodeInvalidSize, "flash",
			"max transfer %d below page size %d", max, config.PageSize)
	}
	return &Nonvolatile{
		IdleTimeout: DefaultIdleTimeout,
		IdleStep:    DefaultIdleStep,
		access:      access,
		devID:       devID,
		id:          id,
		config:      config,
	}, nil
}

// Type implements component.Component.
func (n *Nonvolatile) Type() component.TypeID {
	return component.TypeNonvolatileMemory
}

// ID implements component.Component.
func (n *Nonvolatile) ID() uint8 {
	return n.id
}

// Config returns the geometry.
func (n *Nonvolatile) Config() Config {
	return n.config
}

func (n *Nonvolatile) checkBounds(op string, address uint32, size int) error {
	if n.config.Capacity != 0 && uint64(address)+uint64(size) > uint64(n.config.Capacity) {
		return status.Errorf(status.KindNonvolatileMemory, status.CodeOutOfBounds, op,
			"0x%x+%d beyond 0x%x", address, size, n.config.Capacity)
	}
	return nil
}

func (n *Nonvolatile) checkReady() error {
	if n.ready {
		return nil
	}
	return n.waitUntilIdle()
}

func (n *Nonvolatile) waitUntilIdle() error {
	var err error
	idle := common.WaitFor(func() bool {
		var st uint8
		if st, err = n.access.ReadStatus(n.devID); err != nil {
			return true
		}
		return st&StatusBusy == 0
	}, n.IdleTimeout, n.IdleStep)
	if err != nil {
		n.ready = false
		return err
	}
	if !idle {
		n.ready = false
		glog.Warningf("flash %d still busy after %s", n.devID, n.IdleTimeout)
		return status.Timeout(status.KindNonvolatileMemory, "waitUntilIdle", n.IdleTimeout)
	}
	n.ready = true
	return nil
}

// Read implements memory.Memory.
func (n *Nonvolatile) Read(address uint32) (uint8, error) {
	var v [1]uint8
	err := n.ReadBurst(address, v[:])
	return v[0], err
}

// Write implements memory.Memory.
func (n *Nonvolatile) Write(address uint32, value uint8) error {
	return n.WriteBurst(address, []uint8{value})
}

// ReadBurst implements memory.Memory.
func (n *Nonvolatile) ReadBurst(address uint32, values []uint8) error {
	if err := n.checkBounds("read", address, len(values)); err != nil {
		return err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if err := n.checkReady(); err != nil {
		return err
	}
	return n.access.Read(n.devID, address, values)
}

// WriteBurst implements memory.Memory.
func (n *Nonvolatile) WriteBurst(address uint32, values []uint8) error {
	if err := n.checkBounds("write", address, len(values)); err != nil {
		return err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if err := n.checkReady(); err != nil {
		return err
	}
	page := n.config.PageSize
	for len(values) > 0 {
		size := page - address%page
		if size > uint32(len(values)) {
			size = uint32(len(values))
		}
		n.ready = false
		if err := n.access.Write(n.devID, address, values[:size]); err != nil {
			return err
		}
		if err := n.waitUntilIdle(); err != nil {
			return err
		}
		values = values[size:]
		address += size
	}
	return nil
}

// Erase erases the sector containing address.
func (n *Nonvolatile) Erase(address uint32) error {
	return n.erase(address, n.config.SectorSize)
}

// EraseBlock erases the block containing address.
func (n *Nonvolatile) EraseBlock(address uint32) error {
	return n.erase(address, n.config.BlockSize)
}

func (n *Nonvolatile) erase(address, size uint32) error {
	if size == 0 {
		return status.Errorf(status.KindNonvolatileMemory, status.CodeNotConfigured, "erase", "no erase size")
	}
	address -= address % size
	if err := n.checkBounds("erase", address, int(size)); err != nil {
		return err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if err := n.checkReady(); err != nil {
		return err
	}
	n.ready = false
	if err := n.access.Erase(n.devID, address, size); err != nil {
		return err
	}
	return n.waitUntilIdle()
}

// SetBits is not supported by flash memories.
func (n *Nonvolatile) SetBits(uint32, uint8) error {
	return status.NotImplemented("setBits")
}

// ClearBits is not supported by flash memories.
func (n *Nonvolatile) ClearBits(uint32, uint8) error {
	return status.NotImplemented("clearBits")
}

// ModifyBits is not supported by flash memories.
func (n *Nonvolatile) ModifyBits(uint32, uint8, uint8) error {
	return status.NotImplemented("modifyBits")
}

// Batch is not supported by flash memories.
func (n *Nonvolatile) Batch([]memory.BatchEntry[uint32, uint8], bool) ([]uint8, error) {
	return nil, status.NotImplemented("batch")
}
