// Package wiggler reaches bare chips through an on-chip debugger probe.
// The probe gives access to the chip memory only, the vendor command
// protocol is not available.
package wiggler

import (
	"context"
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/robotalks/strata.go/pkg/status"
)

// Adapter is an opened debugger probe attached to a chip.
type Adapter interface {
	memory.Accessor[uint32, uint32]
	// IDCode reads the JTAG IDCODE of the chip.
	IDCode() (uint32, error)
	Close() error
}

// Driver finds and opens the probes of one kind.
type Driver interface {
	Name() string
	Probes() ([]string, error)
	Open(probe string) (Adapter, error)
}

var (
	driversLock sync.RWMutex
	drivers     = make(map[string]Driver)
)

// Register makes a driver available to enumerators without an explicit
// driver list. Registering a name twice panics.
func Register(d Driver) {
	driversLock.Lock()
	defer driversLock.Unlock()
	if _, dup := drivers[d.Name()]; dup {
		panic("wiggler: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Drivers returns the registered drivers sorted by name.
func Drivers() []Driver {
	driversLock.RLock()
	defer driversLock.RUnlock()
	list := make([]Driver, 0, len(drivers))
	for _, d := range drivers {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// JEDEC manufacturer field of IDCODE bits [11:1].
const ManufacturerInfineon = 0x041

// Identify maps an IDCODE to the board identity: the vendor id for
// Infineon silicon and the part number as product id.
func Identify(idcode uint32) (vid, pid uint16, ok bool) {
	if idcode&1 == 0 {
		return 0, 0, false
	}
	if (idcode>>1)&0x7ff != ManufacturerInfineon {
		return 0, 0, false
	}
	return VendorID, uint16(idcode >> 12), true
}

// VendorID reported for chips identified by IDCODE.
const VendorID uint16 = 0x058B

// Bridge exposes the chip memory of an adapter. It has no vendor command
// channel.
type Bridge struct {
	adapter Adapter
	memory  *memory.Local[uint32, uint32]
}

var _ bridge.MemoryBridge = &Bridge{}

// NewBridge takes ownership of adapter.
func NewBridge(adapter Adapter) *Bridge {
	return &Bridge{adapter: adapter, memory: memory.NewLocal[uint32, uint32](adapter)}
}

// Memory implements bridge.MemoryBridge.
func (b *Bridge) Memory() memory.Memory[uint32, uint32] {
	return b.memory
}

// Control implements bridge.Bridge.
func (b *Bridge) Control() bridge.Control {
	return noControl{}
}

// I2C implements bridge.Bridge.
func (b *Bridge) I2C() bridge.I2C { return nil }

// SPI implements bridge.Bridge.
func (b *Bridge) SPI() bridge.SPI { return nil }

// GPIO implements bridge.Bridge.
func (b *Bridge) GPIO() bridge.GPIO { return nil }

// Data implements bridge.Bridge.
func (b *Bridge) Data() bridge.Data { return nil }

// Close implements bridge.Bridge.
func (b *Bridge) Close() error {
	return b.adapter.Close()
}

type noControl struct{}

func (noControl) VendorWrite(byte, uint16, uint16, []byte) error {
	return status.NotImplemented("vendorWrite")
}

func (noControl) VendorRead(byte, uint16, uint16, []byte) error {
	return status.NotImplemented("vendorRead")
}

func (noControl) VendorTransfer(byte, uint16, uint16, []byte, []byte) error {
	return status.NotImplemented("vendorTransfer")
}

func (noControl) ReadVersionInfo([]uint16) error {
	return status.NotImplemented("readVersionInfo")
}

func (noControl) ProtocolVersion() uint32 { return 0 }

func (noControl) MaxTransfer() int { return 0 }

func (noControl) Close() error { return nil }

// Candidate is a probe not yet identified. Identify leaves the adapter
// open for Open to take over.
type Candidate struct {
	Driver Driver
	Probe  string

	lock    sync.Mutex
	adapter Adapter
}

var _ enumerate.Candidate = &Candidate{}

// Address implements enumerate.Candidate.
func (c *Candidate) Address() string {
	return c.Driver.Name() + ":" + c.Probe
}

func (c *Candidate) open() (Adapter, error) {
	if c.adapter != nil {
		return c.adapter, nil
	}
	a, err := c.Driver.Open(c.Probe)
	if err != nil {
		return nil, status.Wrap(status.KindConnection, status.CodeNotAvailable, "open "+c.Address(), err)
	}
	c.adapter = a
	return a, nil
}

// Identify implements enumerate.Candidate.
func (c *Candidate) Identify() (uint16, uint16, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	a, err := c.open()
	if err != nil {
		return 0, 0, err
	}
	idcode, err := a.IDCode()
	if err != nil {
		return 0, 0, err
	}
	vid, pid, ok := Identify(idcode)
	if !ok {
		glog.V(2).Infof("%s: foreign IDCODE 0x%08x", c.Address(), idcode)
	}
	return vid, pid, nil
}

// Open implements board.Handle.
func (c *Candidate) Open() (bridge.Bridge, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	a, err := c.open()
	if err != nil {
		return nil, err
	}
	c.adapter = nil
	return NewBridge(a), nil
}

// Close implements board.Handle.
func (c *Candidate) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.adapter == nil {
		return nil
	}
	err := c.adapter.Close()
	c.adapter = nil
	return err
}

// Enumerator probes debugger adapters for known chips.
type Enumerator struct {
	// Drivers defaults to the registered drivers.
	Drivers []Driver
}

var _ enumerate.Enumerator = &Enumerator{}

// Enumerate implements enumerate.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context, listener enumerate.Listener, list board.List) error {
	ds := e.Drivers
	if ds == nil {
		ds = Drivers()
	}
	var candidates []enumerate.Candidate
	for _, d := range ds {
		probes, err := d.Probes()
		if err != nil {
			glog.Warningf("wiggler %s: %v", d.Name(), err)
			continue
		}
		for _, p := range probes {
			candidates = append(candidates, &Candidate{Driver: d, Probe: p})
		}
	}
	return enumerate.Scan(ctx, candidates, list, listener, 1)
}
