package bridge

import (
	"encoding/binary"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/status"
)

// I2CDevice combines a bus number and a 7 or 10 bit device address.
func I2CDevice(bus uint8, address uint16) uint16 {
	return uint16(bus&0x0f)<<12 | address&0x03ff
}

// I2C accesses devices on the board's I2C buses. devAddr is built with
// I2CDevice.
type I2C interface {
	Read(devAddr uint16, buf []byte) error
	ReadWith8BitPrefix(devAddr uint16, prefix uint8, buf []byte) error
	ReadWith16BitPrefix(devAddr uint16, prefix uint16, buf []byte) error
	Write(devAddr uint16, data []byte) error
	WriteWith8BitPrefix(devAddr uint16, prefix uint8, data []byte) error
	WriteWith16BitPrefix(devAddr uint16, prefix uint16, data []byte) error
	MaxTransfer() int
}

// SPI flags for Configure.
const (
	SPICpha        uint8 = 1 << 0
	SPICpol        uint8 = 1 << 1
	SPILSBFirst    uint8 = 1 << 2
	SPIHighSelect  uint8 = 1 << 3
	SPIModeDefault uint8 = 0
)

// SPI accesses devices on the board's SPI buses.
type SPI interface {
	Configure(devID uint8, flags uint8, wordSize uint8, speed uint32) error
	// Read clocks len(buf) bytes in. With keepSelected the chip select stays
	// asserted for a following transfer.
	Read(devID uint8, buf []byte, keepSelected bool) error
	Write(devID uint8, data []byte, keepSelected bool) error
	Transfer(devID uint8, data, buf []byte, keepSelected bool) error
	MaxTransfer() int
}

// GPIO flags for Configure.
const (
	GPIOInput     uint8 = 0
	GPIOOutput    uint8 = 1 << 0
	GPIOPullUp    uint8 = 1 << 1
	GPIOPullDown  uint8 = 1 << 2
	GPIOOpenDrain uint8 = 1 << 3
)

// GPIO accesses the board's general purpose pins.
type GPIO interface {
	Configure(gpio uint16, flags uint8) error
	SetLevel(gpio uint16, level bool) error
	GetLevel(gpio uint16) (bool, error)
}

// VendorI2C implements I2C with vendor commands.
type VendorI2C struct {
	Control Control
}

func i2cValue(devAddr uint16, prefixBytes uint16) uint16 {
	return devAddr&0xf3ff | prefixBytes<<10
}

// Read implements I2C.
func (i *VendorI2C) Read(devAddr uint16, buf []byte) error {
	return i.Control.VendorRead(protocol.ReqI2C, i2cValue(devAddr, 0), 0, buf)
}

// ReadWith8BitPrefix implements I2C.
func (i *VendorI2C) ReadWith8BitPrefix(devAddr uint16, prefix uint8, buf []byte) error {
	return i.Control.VendorRead(protocol.ReqI2C, i2cValue(devAddr, 1), uint16(prefix), buf)
}

// ReadWith16BitPrefix implements I2C.
func (i *VendorI2C) ReadWith16BitPrefix(devAddr uint16, prefix uint16, buf []byte) error {
	return i.Control.VendorRead(protocol.ReqI2C, i2cValue(devAddr, 2), prefix, buf)
}

// Write implements I2C.
func (i *VendorI2C) Write(devAddr uint16, data []byte) error {
	return i.Control.VendorWrite(protocol.ReqI2C, i2cValue(devAddr, 0), 0, data)
}

// WriteWith8BitPrefix implements I2C.
func (i *VendorI2C) WriteWith8BitPrefix(devAddr uint16, prefix uint8, data []byte) error {
	return i.Control.VendorWrite(protocol.ReqI2C, i2cValue(devAddr, 1), uint16(prefix), data)
}

// WriteWith16BitPrefix implements I2C.
func (i *VendorI2C) WriteWith16BitPrefix(devAddr uint16, prefix uint16, data []byte) error {
	return i.Control.VendorWrite(protocol.ReqI2C, i2cValue(devAddr, 2), prefix, data)
}

// MaxTransfer implements I2C.
func (i *VendorI2C) MaxTransfer() int {
	return i.Control.MaxTransfer()
}

// VendorSPI implements SPI with vendor commands.
type VendorSPI struct {
	Control Control
}

func spiIndex(keepSelected bool) uint16 {
	if keepSelected {
		return 1
	}
	return 0
}

// Configure implements SPI.
func (s *VendorSPI) Configure(devID uint8, flags uint8, wordSize uint8, speed uint32) error {
	if wordSize == 0 || wordSize > 32 {
		return status.Errorf(status.KindSPI, status.CodeInvalidParameter, "spiConfigure", "word size %d", wordSize)
	}
	payload := make([]byte, 6)
	payload[0] = flags
	payload[1] = wordSize
	binary.LittleEndian.PutUint32(payload[2:], speed)
	return s.Control.VendorWrite(protocol.ReqSPIConfigure, uint16(devID), 0, payload)
}

// Read implements SPI.
func (s *VendorSPI) Read(devID uint8, buf []byte, keepSelected bool) error {
	if err := s.check(len(buf)); err != nil {
		return err
	}
	return s.Control.VendorRead(protocol.ReqSPITransfer, uint16(devID), spiIndex(keepSelected), buf)
}

// Write implements SPI.
func (s *VendorSPI) Write(devID uint8, data []byte, keepSelected bool) error {
	if err := s.check(len(data)); err != nil {
		return err
	}
	return s.Control.VendorWrite(protocol.ReqSPITransfer, uint16(devID), spiIndex(keepSelected), data)
}

// Transfer implements SPI.
func (s *VendorSPI) Transfer(devID uint8, data, buf []byte, keepSelected bool) error {
	if err := s.check(len(data)); err != nil {
		return err
	}
	if err := s.check(len(buf)); err != nil {
		return err
	}
	return s.Control.VendorTransfer(protocol.ReqSPITransfer, uint16(devID), spiIndex(keepSelected), data, buf)
}

// MaxTransfer implements SPI.
func (s *VendorSPI) MaxTransfer() int {
	return s.Control.MaxTransfer()
}

func (s *VendorSPI) check(n int) error {
	if max := s.Control.MaxTransfer(); n > max {
		return status.Errorf(status.KindSPI, status.CodeInvalidSize, "spiTransfer", "%d bytes exceeds %d", n, max)
	}
	return nil
}

// VendorGPIO implements GPIO with vendor commands.
type VendorGPIO struct {
	Control Control
}

// Configure implements GPIO.
func (g *VendorGPIO) Configure(gpio uint16, flags uint8) error {
	return g.Control.VendorWrite(protocol.ReqGPIO, gpio, protocol.GPIOConfigure, []byte{flags})
}

// SetLevel implements GPIO.
func (g *VendorGPIO) SetLevel(gpio uint16, level bool) error {
	var b byte
	if level {
		b = 1
	}
	return g.Control.VendorWrite(protocol.ReqGPIO, gpio, protocol.GPIOSet, []byte{b})
}

// GetLevel implements GPIO.
func (g *VendorGPIO) GetLevel(gpio uint16) (bool, error) {
	var b [1]byte
	if err := g.Control.VendorRead(protocol.ReqGPIO, gpio, protocol.GPIOGet, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}
