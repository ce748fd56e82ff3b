package bridge

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Data formats of DataProperties.
const (
	DataFormatRaw8  uint16 = 0x00
	DataFormatRaw12 uint16 = 0x01
	DataFormatRaw16 uint16 = 0x02
)

// DataProperties describes the frames of one data index.
type DataProperties struct {
	Format uint16
	Width  uint16
	Height uint16
}

func (p DataProperties) append(b []byte) []byte {
	var buf [6]byte
	binary.LittleEndian.PutUint16(buf[0:], p.Format)
	binary.LittleEndian.PutUint16(buf[2:], p.Width)
	binary.LittleEndian.PutUint16(buf[4:], p.Height)
	return append(b, buf[:]...)
}

// Flags of AurixDataSettings.
const (
	AurixLSBFirst   uint8 = 1 << 0
	AurixCRCEnabled uint8 = 1 << 1
)

// AurixDataSettings are the platform settings of Aurix based boards.
type AurixDataSettings struct {
	Flags uint8
}

// Bytes encodes the settings: flags then three reserved bytes.
func (s AurixDataSettings) Bytes() []byte {
	return []byte{s.Flags, 0, 0, 0}
}

// Data controls the streaming endpoint.
type Data interface {
	Configure(index uint8, props DataProperties, settings []byte) error
	Start(index uint8) error
	Stop(index uint8) error
	Queue() *FrameQueue
}

// VendorData implements Data with vendor commands.
type VendorData struct {
	Control Control
	Frames  *FrameQueue
}

// Configure implements Data.
func (d *VendorData) Configure(index uint8, props DataProperties, settings []byte) error {
	payload := append(props.append(nil), settings...)
	return d.Control.VendorWrite(protocol.ReqData, uint16(index), protocol.DataConfigure, payload)
}

// Start implements Data.
func (d *VendorData) Start(index uint8) error {
	return d.Control.VendorWrite(protocol.ReqData, uint16(index), protocol.DataStart, nil)
}

// Stop implements Data.
func (d *VendorData) Stop(index uint8) error {
	return d.Control.VendorWrite(protocol.ReqData, uint16(index), protocol.DataStop, nil)
}

// Queue implements Data.
func (d *VendorData) Queue() *FrameQueue {
	return d.Frames
}

const (
	dataHeaderSize = 4
	dataFlagLast   = 1 << 0
)

// DataReader reads data packets from a link and publishes reassembled
// frames to a queue in arrival order. Packets are
// [channel][flags][length u16][payload].
type DataReader struct {
	Link    link.Link
	Queue   *FrameQueue
	Timeout time.Duration

	buf     []byte
	partial map[uint8][]byte
}

// Name implements framework.Named.
func (r *DataReader) Name() string {
	return "data-reader"
}

// Run implements framework.Runnable. Cancelling ctx closes the link.
func (r *DataReader) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, r.Link, func() error {
		return r.loop(ctx)
	})
}

func (r *DataReader) loop(ctx context.Context) error {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = link.DefaultTimeout
	}
	r.partial = make(map[uint8][]byte)
	pkt := make([]byte, r.Link.MaxPayload())
	for {
		n, err := r.Link.Receive(pkt, timeout)
		if err != nil {
			if status.CodeOf(err) == status.CodeTimeout || link.IsTimeout(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			glog.Errorf("data reader stopped: %v", err)
			return err
		}
		r.feed(pkt[:n])
	}
}

// feed consumes received bytes, which may hold partial or several packets.
func (r *DataReader) feed(b []byte) {
	r.buf = append(r.buf, b...)
	for len(r.buf) >= dataHeaderSize {
		channel, flags := r.buf[0], r.buf[1]
		size := dataHeaderSize + int(binary.LittleEndian.Uint16(r.buf[2:]))
		if len(r.buf) < size {
			if link.IsDatagram(r.Link) {
				glog.Warningf("data packet truncated: %d of %d bytes", len(r.buf), size)
				delete(r.partial, channel)
				r.buf = r.buf[:0]
			}
			return
		}
		r.partial[channel] = append(r.partial[channel], r.buf[dataHeaderSize:size]...)
		if flags&dataFlagLast != 0 {
			r.publish(channel, r.partial[channel])
			r.partial[channel] = r.partial[channel][:0]
		}
		r.buf = r.buf[size:]
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
}

func (r *DataReader) publish(channel uint8, data []byte) {
	f := r.Queue.Get(len(data))
	copy(f.Data, data)
	f.Timestamp = time.Now()
	f.VirtualChannel = channel
	r.Queue.Push(f)
}
