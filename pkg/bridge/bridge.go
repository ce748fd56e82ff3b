package bridge

import (
	"context"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/memory"
)

// Bridge is the command channel to a board. Accessors return nil when the
// transport has no such path.
type Bridge interface {
	Control() Control
	I2C() I2C
	SPI() SPI
	GPIO() GPIO
	Data() Data
	Close() error
}

// MemoryBridge is a Bridge giving direct access to the chip address space.
type MemoryBridge interface {
	Bridge
	Memory() memory.Memory[uint32, uint32]
}

// VendorBridge composes a Bridge from a VendorControl and an optional
// data link.
type VendorBridge struct {
	QueueSize int
	Metrics   *Metrics

	control  *VendorControl
	dataLink link.Link
	data     *VendorData
	runner   *framework.Runner
	cancel   context.CancelFunc
	version  [VersionInfoWords]uint16
}

// NewVendorBridge creates a VendorBridge. dataLink may be nil.
func NewVendorBridge(control *VendorControl, dataLink link.Link) *VendorBridge {
	return &VendorBridge{control: control, dataLink: dataLink}
}

// Open opens the control path, reads the version information and starts
// the data reader.
func (b *VendorBridge) Open() error {
	b.control.Metrics = b.Metrics
	if err := b.control.Open(); err != nil {
		return err
	}
	if err := b.control.ReadVersionInfo(b.version[:]); err != nil {
		b.control.Close()
		return err
	}
	glog.V(2).Infof("bridge protocol version 0x%08x", b.control.ProtocolVersion())
	if b.dataLink == nil {
		return nil
	}
	if err := b.dataLink.Open(); err != nil {
		b.control.Close()
		return link.ConnectionError("open", err)
	}
	queue := NewFrameQueue(b.QueueSize)
	queue.Metrics = b.Metrics
	b.data = &VendorData{Control: b.control, Frames: queue}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.runner = framework.NewRunnerWith(ctx)
	b.runner.Go(&DataReader{Link: b.dataLink, Queue: queue})
	return nil
}

// VersionInfo returns the words read on Open.
func (b *VendorBridge) VersionInfo() []uint16 {
	return b.version[:]
}

// Control implements Bridge.
func (b *VendorBridge) Control() Control {
	return b.control
}

// I2C implements Bridge.
func (b *VendorBridge) I2C() I2C {
	return &VendorI2C{Control: b.control}
}

// SPI implements Bridge.
func (b *VendorBridge) SPI() SPI {
	return &VendorSPI{Control: b.control}
}

// GPIO implements Bridge.
func (b *VendorBridge) GPIO() GPIO {
	return &VendorGPIO{Control: b.control}
}

// Data implements Bridge.
func (b *VendorBridge) Data() Data {
	if b.data == nil {
		return nil
	}
	return b.data
}

// Close implements Bridge. The data reader is stopped before the control
// path closes.
func (b *VendorBridge) Close() error {
	var errs framework.AggregatedError
	if b.runner != nil {
		b.cancel()
		errs.Add(b.runner.Wait())
		b.data.Frames.Close()
		b.runner = nil
	}
	errs.Add(b.control.Close())
	return errs.Aggregate()
}
