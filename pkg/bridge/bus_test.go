package bridge

import (
	"testing"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busDevice(t *testing.T) (*linktest.Device, *VendorControl) {
	dev := linktest.NewDevice()
	ok := func(h protocol.RequestHeader, _ []byte) (status.Code, []byte) {
		if h.IsWrite() {
			return status.CodeSuccess, nil
		}
		return status.CodeSuccess, make([]byte, h.Length)
	}
	dev.Handle(protocol.ReqI2C, ok).
		Handle(protocol.ReqSPITransfer, ok).
		Handle(protocol.ReqSPIConfigure, ok).
		Handle(protocol.ReqGPIO, func(h protocol.RequestHeader, _ []byte) (status.Code, []byte) {
			if h.Index == protocol.GPIOGet {
				return status.CodeSuccess, []byte{1}
			}
			return status.CodeSuccess, nil
		})
	c := NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload))
	require.NoError(t, c.Open())
	return dev, c
}

func TestI2CAddressing(t *testing.T) {
	dev, c := busDevice(t)
	i2c := &VendorI2C{Control: c}
	addr := I2CDevice(2, 0x48)
	assert.Equal(t, uint16(0x2048), addr)

	require.NoError(t, i2c.ReadWith8BitPrefix(addr, 0x01, make([]byte, 2)))
	require.NoError(t, i2c.WriteWith16BitPrefix(addr, 0xBEEF, []byte{1}))
	require.NoError(t, i2c.Read(addr, make([]byte, 1)))

	reqs := dev.RequestsOf(protocol.ReqI2C)
	require.Len(t, reqs, 3)
	assert.Equal(t, uint16(0x2448), reqs[0].Header.Value)
	assert.Equal(t, uint16(0x01), reqs[0].Header.Index)
	assert.Equal(t, uint16(2), reqs[0].Header.Length)
	assert.Equal(t, uint16(0x2848), reqs[1].Header.Value)
	assert.Equal(t, uint16(0xBEEF), reqs[1].Header.Index)
	assert.Equal(t, []byte{1}, reqs[1].Payload)
	assert.Equal(t, uint16(0x2048), reqs[2].Header.Value)
}

func TestSPI(t *testing.T) {
	dev, c := busDevice(t)
	spi := &VendorSPI{Control: c}
	require.NoError(t, spi.Configure(3, SPICpha|SPICpol, 8, 10000000))
	require.NoError(t, spi.Write(3, []byte{0x9F}, true))
	require.NoError(t, spi.Read(3, make([]byte, 3), false))

	cfg := dev.RequestsOf(protocol.ReqSPIConfigure)
	require.Len(t, cfg, 1)
	assert.Equal(t, []byte{0x03, 0x08, 0x80, 0x96, 0x98, 0x00}, cfg[0].Payload)
	assert.Equal(t, uint16(3), cfg[0].Header.Value)

	xfer := dev.RequestsOf(protocol.ReqSPITransfer)
	require.Len(t, xfer, 2)
	assert.Equal(t, uint16(1), xfer[0].Header.Index)
	assert.Equal(t, uint16(0), xfer[1].Header.Index)

	err := spi.Configure(3, 0, 0, 1)
	assert.True(t, status.IsKind(err, status.KindSPI))
}

func TestSPIMaxTransfer(t *testing.T) {
	dev := linktest.NewDevice()
	c := NewUsbControl(dev.ControlLink(64))
	require.NoError(t, c.Open())
	spi := &VendorSPI{Control: c}
	err := spi.Write(0, make([]byte, 65), false)
	assert.True(t, status.IsKind(err, status.KindSPI))
	assert.Equal(t, status.CodeInvalidSize, status.CodeOf(err))
	assert.Empty(t, dev.Requests())
}

func TestGPIO(t *testing.T) {
	dev, c := busDevice(t)
	gpio := &VendorGPIO{Control: c}
	require.NoError(t, gpio.Configure(7, GPIOOutput|GPIOPullUp))
	require.NoError(t, gpio.SetLevel(7, true))
	level, err := gpio.GetLevel(7)
	require.NoError(t, err)
	assert.True(t, level)

	reqs := dev.RequestsOf(protocol.ReqGPIO)
	require.Len(t, reqs, 3)
	assert.Equal(t, []byte{0x03}, reqs[0].Payload)
	assert.Equal(t, []byte{0x01}, reqs[1].Payload)
	assert.Equal(t, protocol.GPIOSet, reqs[1].Header.Index)
}
