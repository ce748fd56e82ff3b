package flash

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccess struct {
	lock sync.Mutex
	max  int
	busy func() bool
	ops  []string
	mem  map[uint32]byte
}

func newFakeAccess(max int) *fakeAccess {
	return &fakeAccess{max: max, busy: func() bool { return false }, mem: make(map[uint32]byte)}
}

func (a *fakeAccess) record(format string, args ...interface{}) {
	a.lock.Lock()
	a.ops = append(a.ops, fmt.Sprintf(format, args...))
	a.lock.Unlock()
}

func (a *fakeAccess) Read(devID uint8, address uint32, buf []byte) error {
	a.record("read 0x%x %d", address, len(buf))
	for i := range buf {
		buf[i] = a.mem[address+uint32(i)]
	}
	return nil
}

func (a *fakeAccess) Write(devID uint8, address uint32, data []byte) error {
	a.record("write 0x%x %d", address, len(data))
	for i, b := range data {
		a.mem[address+uint32(i)] = b
	}
	return nil
}

func (a *fakeAccess) Erase(devID uint8, address uint32, size uint32) error {
	a.record("erase 0x%x %d", address, size)
	return nil
}

func (a *fakeAccess) ReadStatus(devID uint8) (uint8, error) {
	a.record("status")
	if a.busy() {
		return StatusBusy, nil
	}
	return 0, nil
}

func (a *fakeAccess) MaxTransfer() int {
	return a.max
}

var testConfig = Config{PageSize: 256, SectorSize: 4096, BlockSize: 65536, Capacity: 1 << 20}

func TestNewRejectsSmallTransfer(t *testing.T) {
	_, err := New(newFakeAccess(128), 0, testConfig, 0)
	assert.True(t, status.IsKind(err, status.KindNonvolatileMemory))
	_, err = New(newFakeAccess(256), 0, testConfig, 0)
	assert.NoError(t, err)
}

func TestWriteSplitsPages(t *testing.T) {
	access := newFakeAccess(512)
	nv, err := New(access, 0, testConfig, 0)
	require.NoError(t, err)

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, nv.WriteBurst(0x1000, data))
	assert.Equal(t, []string{
		"status",
		"write 0x1000 256",
		"status",
		"write 0x1100 256",
		"status",
	}, access.ops)

	buf := make([]byte, 4)
	require.NoError(t, nv.ReadBurst(0x10FE, buf))
	assert.Equal(t, []byte{0xFE, 0xFF, 0x00, 0x01}, buf)
}

func TestWriteUnalignedStart(t *testing.T) {
	access := newFakeAccess(512)
	nv, err := New(access, 0, testConfig, 0)
	require.NoError(t, err)
	require.NoError(t, nv.WriteBurst(0x10F0, make([]byte, 0x20)))
	assert.Contains(t, access.ops, "write 0x10f0 16")
	assert.Contains(t, access.ops, "write 0x1100 16")
}

func TestWriteWaitsForIdle(t *testing.T) {
	access := newFakeAccess(512)
	until := time.Now().Add(50 * time.Millisecond)
	access.busy = func() bool { return time.Now().Before(until) }
	nv, err := New(access, 0, testConfig, 0)
	require.NoError(t, err)
	require.NoError(t, nv.Write(0x20, 0x5A))
	assert.False(t, time.Now().Before(until))
}

func TestBusyTimesOut(t *testing.T) {
	access := newFakeAccess(512)
	access.busy = func() bool { return true }
	nv, err := New(access, 0, testConfig, 0)
	require.NoError(t, err)

	start := time.Now()
	err = nv.Write(0x20, 0x5A)
	elapsed := time.Since(start)
	assert.True(t, status.IsKind(err, status.KindNonvolatileMemory))
	assert.Equal(t, status.CodeTimeout, status.CodeOf(err))
	assert.GreaterOrEqual(t, elapsed, DefaultIdleTimeout)
	assert.LessOrEqual(t, elapsed, DefaultIdleTimeout+10*time.Millisecond)
	assert.NotContains(t, access.ops, "write 0x20 1")

	polls := 0
	for _, op := range access.ops {
		if op == "status" {
			polls++
		}
	}
	// one poll per step over the timeout, plus the one at the deadline
	assert.LessOrEqual(t, polls, int(DefaultIdleTimeout/DefaultIdleStep)+2)
	assert.GreaterOrEqual(t, polls, int(DefaultIdleTimeout/DefaultIdleStep)*9/10)
}

func TestBusyTimeoutFollowsConfig(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		step    time.Duration
	}{
		{50 * time.Millisecond, 10 * time.Millisecond},
		{100 * time.Millisecond, 5 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.timeout.String(), func(t *testing.T) {
			access := newFakeAccess(512)
			access.busy = func() bool { return true }
			nv, err := New(access, 0, testConfig, 0)
			require.NoError(t, err)
			nv.IdleTimeout, nv.IdleStep = tc.timeout, tc.step

			start := time.Now()
			_, err = nv.Read(0x20)
			elapsed := time.Since(start)
			assert.Equal(t, status.CodeTimeout, status.CodeOf(err))
			assert.GreaterOrEqual(t, elapsed, tc.timeout)
			assert.LessOrEqual(t, elapsed, tc.timeout+10*time.Millisecond)
		})
	}
}

func TestErase(t *testing.T) {
	access := newFakeAccess(512)
	nv, err := New(access, 0, testConfig, 0)
	require.NoError(t, err)
	require.NoError(t, nv.Erase(0x1234))
	require.NoError(t, nv.EraseBlock(0x12345))
	assert.Equal(t, []string{
		"status",
		"erase 0x1000 4096",
		"status",
		"erase 0x10000 65536",
		"status",
	}, access.ops)
}

func TestUnsupportedAndBounds(t *testing.T) {
	nv, err := New(newFakeAccess(512), 0, testConfig, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, nv.SetBits(0, 1), status.ErrNotImplemented)
	assert.ErrorIs(t, nv.ModifyBits(0, 1, 1), status.ErrNotImplemented)
	_, err = nv.Batch(nil, false)
	assert.ErrorIs(t, err, status.ErrNotImplemented)

	err = nv.WriteBurst(testConfig.Capacity-1, make([]byte, 2))
	assert.Equal(t, status.CodeOutOfBounds, status.CodeOf(err))
}

func TestSPIAccess(t *testing.T) {
	var statusReads int
	dev := linktest.NewDevice().Handle(protocol.ReqSPITransfer, func(h protocol.RequestHeader, payload []byte) (status.Code, []byte) {
		if h.IsWrite() {
			return status.CodeSuccess, nil
		}
		statusReads++
		return status.CodeSuccess, make([]byte, h.Length)
	})
	c := bridge.NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload))
	require.NoError(t, c.Open())
	access := &SPIAccess{SPI: &bridge.VendorSPI{Control: c}, SectorSize: 4096}

	require.NoError(t, access.Write(2, 0x012345, []byte{0xAA, 0xBB}))
	reqs := dev.RequestsOf(protocol.ReqSPITransfer)
	require.Len(t, reqs, 3)
	assert.Equal(t, []byte{CmdWriteEnable}, reqs[0].Payload)
	assert.Equal(t, []byte{CmdPageProgram, 0x01, 0x23, 0x45}, reqs[1].Payload)
	assert.Equal(t, uint16(1), reqs[1].Header.Index)
	assert.Equal(t, []byte{0xAA, 0xBB}, reqs[2].Payload)
	assert.Equal(t, uint16(0), reqs[2].Header.Index)
	assert.Equal(t, uint16(2), reqs[2].Header.Value)

	dev.Reset()
	st, err := access.ReadStatus(2)
	require.NoError(t, err)
	assert.Zero(t, st)
	assert.Equal(t, 1, statusReads)

	dev.Reset()
	require.NoError(t, access.Erase(2, 0x10000, 65536))
	reqs = dev.RequestsOf(protocol.ReqSPITransfer)
	require.Len(t, reqs, 2)
	assert.Equal(t, []byte{CmdBlockErase, 0x01, 0x00, 0x00}, reqs[1].Payload)
}
