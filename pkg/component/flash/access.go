// Package flash drives SPI NOR flash memories attached to a board.
package flash

import (
	"github.com/robotalks/strata.go/pkg/bridge"
)

// JEDEC commands.
const (
	CmdRead        byte = 0x03
	CmdWriteEnable byte = 0x06
	CmdPageProgram byte = 0x02
	CmdReadStatus  byte = 0x05
	CmdSectorErase byte = 0x20
	CmdBlockErase  byte = 0xD8
)

// Status register bits.
const (
	StatusBusy         uint8 = 1 << 0
	StatusWriteEnabled uint8 = 1 << 1
)

// Access is the raw command access to a flash device.
type Access interface {
	Read(devID uint8, address uint32, buf []byte) error
	Write(devID uint8, address uint32, data []byte) error
	// Erase erases the sector or block of size containing address.
	Erase(devID uint8, address uint32, size uint32) error
	ReadStatus(devID uint8) (uint8, error)
	MaxTransfer() int
}

// SPIAccess implements Access with JEDEC commands over a board SPI bus.
type SPIAccess struct {
	SPI bridge.SPI
	// SectorSize selects the erase command: sizes above it use block erase.
	SectorSize uint32
}

func command(cmd byte, address uint32) []byte {
	return []byte{cmd, byte(address >> 16), byte(address >> 8), byte(address)}
}

// Read implements Access.
func (a *SPIAccess) Read(devID uint8, address uint32, buf []byte) error {
	max := a.SPI.MaxTransfer()
	for len(buf) > 0 {
		n := len(buf)
		if n > max {
			n = max
		}
		if err := a.SPI.Write(devID, command(CmdRead, address), true); err != nil {
			return err
		}
		if err := a.SPI.Read(devID, buf[:n], false); err != nil {
			return err
		}
		buf = buf[n:]
		address += uint32(n)
	}
	return nil
}

// Write implements Access. data must not cross a page boundary.
func (a *SPIAccess) Write(devID uint8, address uint32, data []byte) error {
	if err := a.SPI.Write(devID, []byte{CmdWriteEnable}, false); err != nil {
		return err
	}
	if err := a.SPI.Write(devID, command(CmdPageProgram, address), true); err != nil {
		return err
	}
	return a.SPI.Write(devID, data, false)
}

// Erase implements Access.
func (a *SPIAccess) Erase(devID uint8, address uint32, size uint32) error {
	cmd := CmdSectorErase
	if size > a.SectorSize {
		cmd = CmdBlockErase
	}
	if err := a.SPI.Write(devID, []byte{CmdWriteEnable}, false); err != nil {
		return err
	}
	return a.SPI.Write(devID, command(cmd, address), false)
}

// ReadStatus implements Access.
func (a *SPIAccess) ReadStatus(devID uint8) (uint8, error) {
	var st [1]byte
	if err := a.SPI.Write(devID, []byte{CmdReadStatus}, true); err != nil {
		return 0, err
	}
	if err := a.SPI.Read(devID, st[:], false); err != nil {
		return 0, err
	}
	return st[0], nil
}

// MaxTransfer implements Access.
func (a *SPIAccess) MaxTransfer() int {
	return a.SPI.MaxTransfer()
}
