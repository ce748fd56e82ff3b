package usb

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/status"
)

// Info is the descriptor of an attached device.
type Info struct {
	Location
	VID uint16
	PID uint16
}

// Host lists and opens the attached devices.
type Host interface {
	// Find lists devices for which match is true without opening them.
	Find(match func(vid, pid uint16) bool) ([]Info, error)
	Open(loc Location) (Device, error)
	Close() error
}

// LibusbHost is the Host of the local libusb context.
type LibusbHost struct {
	ctx *gousb.Context
}

var _ Host = &LibusbHost{}

// NewLibusbHost initialises libusb.
func NewLibusbHost() *LibusbHost {
	return &LibusbHost{ctx: gousb.NewContext()}
}

// Find implements Host.
func (h *LibusbHost) Find(match func(vid, pid uint16) bool) ([]Info, error) {
	var found []Info
	// Returning false from the callback keeps gousb from opening.
	_, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if match(uint16(desc.Vendor), uint16(desc.Product)) {
			found = append(found, Info{
				Location: Location{Bus: desc.Bus, Address: desc.Address},
				VID:      uint16(desc.Vendor),
				PID:      uint16(desc.Product),
			})
		}
		return false
	})
	if err != nil {
		return nil, Error("listDevices", err)
	}
	return found, nil
}

// Open implements Host.
func (h *LibusbHost) Open(loc Location) (Device, error) {
	devs, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == loc.Bus && desc.Address == loc.Address
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		return nil, err
	}
	if len(devs) == 0 {
		return nil, status.Errorf(status.KindConnection, status.CodeNotAvailable, "open", "%s is gone", loc)
	}
	dev := devs[0]
	for _, d := range devs[1:] {
		d.Close()
	}
	dev.ControlTimeout = ControlTimeout
	if err := dev.SetAutoDetach(true); err != nil {
		glog.Warningf("%s: auto detach: %v", loc, err)
	}
	return &libusbDevice{Device: dev}, nil
}

// Close implements Host.
func (h *LibusbHost) Close() error {
	return Error("exit", h.ctx.Close())
}

type libusbDevice struct {
	*gousb.Device
}

func (d *libusbDevice) BulkIn(ep int) (Endpoint, func(), error) {
	intf, done, err := d.DefaultInterface()
	if err != nil {
		return nil, nil, err
	}
	in, err := intf.InEndpoint(ep)
	if err != nil {
		done()
		return nil, nil, err
	}
	return in, done, nil
}

// Candidate is a device whose descriptor matched a board. Its identity
// comes from the descriptor so nothing is opened before Open.
type Candidate struct {
	Info
	Host      Host
	NoData    bool
	QueueSize int
	Metrics   *bridge.Metrics
}

var _ enumerate.Candidate = &Candidate{}

// Address implements enumerate.Candidate.
func (c *Candidate) Address() string {
	return c.Location.String()
}

// Identify implements enumerate.Candidate.
func (c *Candidate) Identify() (uint16, uint16, error) {
	return c.VID, c.PID, nil
}

// Open implements board.Handle.
func (c *Candidate) Open() (bridge.Bridge, error) {
	ctl, data := Links(func() (Device, error) { return c.Host.Open(c.Location) })
	var b *bridge.VendorBridge
	if c.NoData {
		b = bridge.NewVendorBridge(bridge.NewUsbControl(ctl), nil)
	} else {
		b = bridge.NewVendorBridge(bridge.NewUsbControl(ctl), data)
	}
	b.QueueSize = c.QueueSize
	b.Metrics = c.Metrics
	if err := b.Open(); err != nil {
		return nil, err
	}
	return b, nil
}

// Close implements board.Handle.
func (c *Candidate) Close() error {
	return nil
}

// Enumerator lists the USB devices of the board list.
type Enumerator struct {
	NoData    bool
	QueueSize int
	Metrics   *bridge.Metrics

	// NewHost overrides libusb, for tests.
	NewHost func() Host

	once sync.Once
	host Host
}

var _ enumerate.Enumerator = &Enumerator{}

// Host returns the host, creating it on first use.
func (e *Enumerator) Host() Host {
	e.once.Do(func() {
		if e.NewHost != nil {
			e.host = e.NewHost()
		} else {
			e.host = NewLibusbHost()
		}
	})
	return e.host
}

// Enumerate implements enumerate.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context, listener enumerate.Listener, list board.List) error {
	infos, err := e.Host().Find(func(vid, pid uint16) bool {
		_, ok := list.Search(vid, pid)
		return ok
	})
	if err != nil {
		return err
	}
	glog.V(2).Infof("usb: %d matching devices", len(infos))
	candidates := make([]enumerate.Candidate, 0, len(infos))
	for _, info := range infos {
		candidates = append(candidates, &Candidate{
			Info:      info,
			Host:      e.Host(),
			NoData:    e.NoData,
			QueueSize: e.QueueSize,
			Metrics:   e.Metrics,
		})
	}
	return enumerate.Scan(ctx, candidates, list, listener, 1)
}

// Close releases the host.
func (e *Enumerator) Close() error {
	if e.host == nil {
		return nil
	}
	return e.host.Close()
}

func (i Info) String() string {
	return fmt.Sprintf("%04x:%04x at %s", i.VID, i.PID, i.Location)
}
