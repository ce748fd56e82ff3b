package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushFrame(q *FrameQueue, channel uint8) *Frame {
	f := q.Get(1)
	f.VirtualChannel = channel
	q.Push(f)
	return f
}

func TestFrameQueueDropsOldest(t *testing.T) {
	q := NewFrameQueue(2)
	first := pushFrame(q, 1)
	pushFrame(q, 2)
	pushFrame(q, 3)
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())

	for _, channel := range []uint8{2, 3} {
		f, err := q.Acquire(time.Second)
		require.NoError(t, err)
		assert.Equal(t, channel, f.VirtualChannel)
		f.Release()
	}

	_, err := q.Acquire(0)
	assert.ErrorIs(t, err, status.ErrTimeout)

	// the dropped frame buffer went back to the free list
	assert.Same(t, &first.Data[0], &q.Get(1).Data[0])
}

func TestFrameReleaseOnce(t *testing.T) {
	q := NewFrameQueue(4)
	f := q.Get(8)
	buf := &f.Data[0]
	f.Release()
	f.Release()
	a := q.Get(8)
	b := q.Get(8)
	assert.NotSame(t, f, a)
	assert.Same(t, buf, &a.Data[0])
	assert.NotSame(t, &a.Data[0], &b.Data[0])
	assert.Len(t, a.Data, 8)
}

func TestStaleReleaseKeepsQueuedFrame(t *testing.T) {
	q := NewFrameQueue(4)
	tests := []struct {
		name  string
		stale func(*Frame)
	}{
		{"second release", func(f *Frame) { f.Release() }},
		{"release twice more", func(f *Frame) { f.Release(); f.Release() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := pushFrame(q, 1)
			got, err := q.Acquire(0)
			require.NoError(t, err)
			got.Release()

			// the buffer is reused by a frame that is queued again
			queued := q.Get(1)
			queued.Data[0] = 0x5A
			queued.VirtualChannel = 2
			q.Push(queued)

			tc.stale(old)
			next := q.Get(1)
			assert.NotSame(t, &queued.Data[0], &next.Data[0])
			next.Data[0] = 0xFF

			f, err := q.Acquire(0)
			require.NoError(t, err)
			assert.Same(t, queued, f)
			assert.Equal(t, byte(0x5A), f.Data[0])
			f.Release()
			next.Release()
		})
	}
}

func TestFrameQueueAcquireTimeout(t *testing.T) {
	q := NewFrameQueue(1)
	start := time.Now()
	_, err := q.Acquire(20 * time.Millisecond)
	assert.ErrorIs(t, err, status.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFrameQueueClose(t *testing.T) {
	q := NewFrameQueue(1)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Acquire(-1)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		assert.Equal(t, ErrQueueClosed, err)
	case <-time.After(time.Second):
		t.Fatal("Acquire not woken by Close")
	}
	pushFrame(q, 1)
	assert.Zero(t, q.Len())
}

func TestDataReaderReassembles(t *testing.T) {
	dl := linktest.NewDataLink()
	q := NewFrameQueue(4)
	r := &DataReader{Link: dl, Queue: q, Timeout: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	dl.Push(1, false, []byte("ab"))
	dl.Push(2, true, []byte("xyz"))
	dl.Push(1, true, []byte("cd"))

	start := time.Now()
	f, err := q.Acquire(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), f.VirtualChannel)
	assert.Equal(t, []byte("xyz"), f.Data)
	assert.False(t, f.Timestamp.Before(start.Add(-time.Second)))
	f.Release()

	f, err = q.Acquire(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.VirtualChannel)
	assert.Equal(t, []byte("abcd"), f.Data)
	f.Release()

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestDataReaderStreamFraming(t *testing.T) {
	q := NewFrameQueue(4)
	r := &DataReader{Link: &linktest.MockLink{}, Queue: q, partial: make(map[uint8][]byte)}
	packets := []byte{
		3, 1, 2, 0, 0xAA, 0xBB,
		4, 1, 1, 0, 0xCC,
	}
	r.feed(packets[:3])
	assert.Zero(t, q.Len())
	r.feed(packets[3:8])
	assert.Equal(t, 1, q.Len())
	r.feed(packets[8:])
	assert.Equal(t, 2, q.Len())

	f, _ := q.Acquire(0)
	assert.Equal(t, []byte{0xAA, 0xBB}, f.Data)
	f, _ = q.Acquire(0)
	assert.Equal(t, uint8(4), f.VirtualChannel)
	assert.Equal(t, []byte{0xCC}, f.Data)
}

func TestVendorData(t *testing.T) {
	dev := linktest.NewDevice().Handle(protocol.ReqData, func(protocol.RequestHeader, []byte) (status.Code, []byte) {
		return status.CodeSuccess, nil
	})
	c := NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload))
	require.NoError(t, c.Open())
	d := &VendorData{Control: c}
	props := DataProperties{Format: DataFormatRaw12, Width: 128, Height: 64}
	require.NoError(t, d.Configure(1, props, AurixDataSettings{Flags: AurixLSBFirst | AurixCRCEnabled}.Bytes()))
	require.NoError(t, d.Start(1))
	require.NoError(t, d.Stop(1))

	reqs := dev.RequestsOf(protocol.ReqData)
	require.Len(t, reqs, 3)
	assert.Equal(t, []byte{0x01, 0x00, 0x80, 0x00, 0x40, 0x00, 0x03, 0x00, 0x00, 0x00}, reqs[0].Payload)
	assert.Equal(t, protocol.DataConfigure, reqs[0].Header.Index)
	assert.Equal(t, protocol.DataStart, reqs[1].Header.Index)
	assert.Equal(t, protocol.DataStop, reqs[2].Header.Index)
	assert.Equal(t, uint16(1), reqs[2].Header.Value)
}

func TestVendorBridge(t *testing.T) {
	dev := linktest.NewDevice().HandleBoardInfo(0x058B, 0x0251, "MCU7", []uint16{2, 5, 0, 1, 1, 0})
	dl := linktest.NewDataLink()
	b := NewVendorBridge(NewUsbControl(dev.ControlLink(link.UsbControlMaxPayload)), dl)
	b.Metrics = NewMetrics("strata_test")
	require.NoError(t, b.Open())
	assert.Equal(t, protocol.ProtocolVersionBatch, b.Control().ProtocolVersion())
	assert.Equal(t, []uint16{2, 5, 0, 1, 1, 0}, b.VersionInfo())
	require.NotNil(t, b.Data())
	require.NotNil(t, b.I2C())

	dl.Push(0, true, []byte{1, 2, 3})
	f, err := b.Data().Queue().Acquire(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, f.Data)
	f.Release()

	require.NoError(t, b.Close())
}

func TestVendorBridgeWithoutData(t *testing.T) {
	dev := linktest.NewDevice().HandleBoardInfo(0x058B, 0x0251, "MCU7", []uint16{2, 5, 0, 1, 0, 3})
	b := NewVendorBridge(NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload)), nil)
	require.NoError(t, b.Open())
	assert.Nil(t, b.Data())
	assert.Equal(t, uint32(3), b.Control().ProtocolVersion())
	require.NoError(t, b.Close())
}

func TestVendorBridgeOpenFails(t *testing.T) {
	dev := linktest.NewDevice()
	b := NewVendorBridge(NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload)), nil)
	err := b.Open()
	assert.True(t, status.IsKind(err, status.KindProtocol))
	assert.Equal(t, status.CodeNotImplemented, status.CodeOf(err))
}
