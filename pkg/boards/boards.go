// Package boards lists the boards known to the library and builds their
// component trees.
package boards

import (
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/component/flash"
	"github.com/robotalks/strata.go/pkg/status"
)

// VendorID of the radar evaluation boards.
const VendorID uint16 = 0x058B

// Product ids.
const (
	PIDRadarBaseboardMCU7  uint16 = 0x0251
	PIDRadarBaseboardAurix uint16 = 0x0252
	PIDAtr22               uint16 = 0x0253
	PIDLtr11               uint16 = 0x0254
	PIDSmartar             uint16 = 0x0256
	PIDRadarBaseboardEth   uint16 = 0xFAFB
	// PIDAvianDebug is the IDCODE part number of bare Avian silicon.
	PIDAvianDebug uint16 = 0x6010
)

// Board resources of the MCU7 baseboard.
const (
	MCU7FlashDevice uint8 = 1
	MCU7TempBus     uint8 = 0
)

// MCU7Flash is the geometry of the MCU7 baseboard flash.
var MCU7Flash = flash.Config{
	PageSize:   256,
	SectorSize: 4096,
	BlockSize:  65536,
	Capacity:   4 << 20,
}

// DefaultList is the list searched when enumerating without an explicit
// list.
var DefaultList = board.List{
	{VID: VendorID, PID: PIDRadarBaseboardMCU7, Name: "RadarBaseboardMCU7", Factory: NewMCU7},
	{VID: VendorID, PID: PIDRadarBaseboardAurix, Name: "RadarBaseboardAurix", Factory: NewAurix},
	{VID: VendorID, PID: PIDAtr22, Name: "BGT60ATR24 Atr22", Factory: NewAtr22},
	{VID: VendorID, PID: PIDLtr11, Name: "BGT24LTR11", Factory: NewLtr11},
	{VID: VendorID, PID: PIDSmartar, Name: "Smartar", Factory: NewSmartar},
	{VID: VendorID, PID: PIDRadarBaseboardEth, Name: "RadarBaseboardMCU7 Ethernet", Factory: NewMCU7},
	{VID: VendorID, PID: PIDAvianDebug, Name: "Avian (debugger)", Factory: NewDebugTarget},
}

// NewMCU7 builds the MCU7 baseboard: an Avian front-end with its radar
// module, a TMP102 sensor and the configuration flash.
func NewMCU7(b bridge.Bridge) (*board.Board, error) {
	brd := board.New()
	avian := component.NewAvian(b.Control(), 0)
	if err := brd.AddComponent(avian); err != nil {
		return nil, err
	}
	if i2c := b.I2C(); i2c != nil {
		tmp := component.NewTmp102(i2c, bridge.I2CDevice(MCU7TempBus, component.Tmp102Address), 0)
		if err := brd.AddComponent(tmp); err != nil {
			return nil, err
		}
	}
	if spi := b.SPI(); spi != nil {
		access := &flash.SPIAccess{SPI: spi, SectorSize: MCU7Flash.SectorSize}
		nv, err := flash.New(access, MCU7FlashDevice, MCU7Flash, 0)
		if err != nil {
			return nil, err
		}
		if err := brd.AddComponent(nv); err != nil {
			return nil, err
		}
	}
	if err := brd.AddModule(component.NewRadarModule(b.Control(), b.Data(), avian, 0)); err != nil {
		return nil, err
	}
	return brd, nil
}

// NewAurix builds the Aurix baseboard with two RXS front-ends.
func NewAurix(b bridge.Bridge) (*board.Board, error) {
	brd := board.New()
	for id := uint8(0); id < 2; id++ {
		rxs := component.NewRxs(b.Control(), id)
		if err := brd.AddComponent(rxs); err != nil {
			return nil, err
		}
		if err := brd.AddModule(component.NewRadarModule(b.Control(), b.Data(), rxs, id)); err != nil {
			return nil, err
		}
	}
	return brd, nil
}

func single(c component.Component) (*board.Board, error) {
	brd := board.New()
	if err := brd.AddComponent(c); err != nil {
		return nil, err
	}
	return brd, nil
}

// NewAtr22 builds an Atr22 board.
func NewAtr22(b bridge.Bridge) (*board.Board, error) {
	return single(component.NewAtr22(b.Control(), 0))
}

// NewLtr11 builds an Ltr11 board.
func NewLtr11(b bridge.Bridge) (*board.Board, error) {
	return single(component.NewLtr11(b.Control(), 0))
}

// NewSmartar builds a Smartar board.
func NewSmartar(b bridge.Bridge) (*board.Board, error) {
	return single(component.NewSmartar(b.Control(), 0))
}

// NewDebugTarget builds a board from a chip reached by its debugger. Only
// the chip memory is available.
func NewDebugTarget(b bridge.Bridge) (*board.Board, error) {
	mb, ok := b.(bridge.MemoryBridge)
	if !ok {
		return nil, status.Errorf(status.KindNotImplemented, status.CodeNotSupported, "debugTarget", "bridge has no memory access")
	}
	return single(component.NewDebugMemory(mb.Memory(), 0))
}
