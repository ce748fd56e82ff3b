// Package component implements the capabilities a board exposes: radar
// front-ends, temperature sensors and their register, pin and protocol
// views.
package component

import (
	"fmt"

	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
)

// TypeID identifies a component or module type.
type TypeID uint16

// Component types.
const (
	TypeRadarRxs          TypeID = 0x0101
	TypeRadarCtrx         TypeID = 0x0102
	TypeRadarAvian        TypeID = 0x0103
	TypeRadarAtr22        TypeID = 0x0104
	TypeRadarLtr11        TypeID = 0x0105
	TypeRadarRps          TypeID = 0x0106
	TypeRadarSmartar      TypeID = 0x0107
	TypeTemperature       TypeID = 0x0201
	TypeNonvolatileMemory TypeID = 0x0202
	TypeDebugMemory       TypeID = 0x0203
)

// Module types.
const (
	ModuleTypeRadar TypeID = 0x0301
)

var typeNames = map[TypeID]string{
	TypeRadarRxs:          "RXS",
	TypeRadarCtrx:         "CTRX",
	TypeRadarAvian:        "Avian",
	TypeRadarAtr22:        "Atr22",
	TypeRadarLtr11:        "Ltr11",
	TypeRadarRps:          "RPS",
	TypeRadarSmartar:      "Smartar",
	TypeTemperature:       "temperature",
	TypeNonvolatileMemory: "non-volatile memory",
	TypeDebugMemory:       "debug memory",
	ModuleTypeRadar:       "radar module",
}

// String implements fmt.Stringer.
func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type 0x%04x", uint16(t))
}

// Sub-interfaces of a component.
const (
	InterfaceFunction  uint8 = 0x00
	InterfaceRegisters uint8 = 0x01
	InterfacePins      uint8 = 0x02
	InterfaceProtocol  uint8 = 0x03
)

// Radar functions.
const (
	FnRadarReset        uint8 = 0x00
	FnRadarInitialize   uint8 = 0x01
	FnRadarGetDataIndex uint8 = 0x02
	FnRadarStartData    uint8 = 0x03
	FnRadarStopData     uint8 = 0x04
)

// Register functions.
const (
	FnRegistersClearBits  uint8 = 0x00
	FnRegistersSetBits    uint8 = 0x01
	FnRegistersModifyBits uint8 = 0x02
	FnRegistersWriteBurst uint8 = 0x03
	FnRegistersReadBurst  uint8 = 0x04
	FnRegistersBatch      uint8 = 0x05
)

// Avian pin functions.
const (
	FnPinsConfigure  uint8 = 0x00
	FnPinsSetReset   uint8 = 0x01
	FnPinsGetOk      uint8 = 0x02
	FnPinsResetPulse uint8 = 0x03
)

// Avian protocol functions.
const (
	FnProtocolExecute uint8 = 0x00
	FnProtocolSetBits uint8 = 0x01
)

// Radar module functions.
const (
	FnModuleConfigure uint8 = 0x00
	FnModuleStartData uint8 = 0x01
	FnModuleStopData  uint8 = 0x02
)

// Component is a capability of a board, unique by type and id.
type Component interface {
	Type() TypeID
	ID() uint8
}

// Remote routes function calls of one component sub-interface as vendor
// commands: wValue is the type, wIndex is id<<8 | sub-interface and the
// payload is [function][args].
type Remote struct {
	Control   bridge.Control
	Request   byte
	Type      TypeID
	ID        uint8
	Interface uint8
}

// NewRemote creates the route of a component sub-interface.
func NewRemote(c bridge.Control, t TypeID, id uint8, iface uint8) Remote {
	return Remote{Control: c, Request: protocol.ReqComponent, Type: t, ID: id, Interface: iface}
}

func (r Remote) index() uint16 {
	return uint16(r.ID)<<8 | uint16(r.Interface)
}

func (r Remote) payload(function uint8, args []byte) []byte {
	return append([]byte{function}, args...)
}

// Call invokes function without result.
func (r Remote) Call(function uint8, args ...byte) error {
	return r.Control.VendorWrite(r.Request, uint16(r.Type), r.index(), r.payload(function, args))
}

// CallWith invokes function and reads len(result) bytes of result.
func (r Remote) CallWith(function uint8, args []byte, result []byte) error {
	return r.Control.VendorTransfer(r.Request, uint16(r.Type), r.index(), r.payload(function, args), result)
}

// MaxArgs is the largest argument size of one call.
func (r Remote) MaxArgs() int {
	return r.Control.MaxTransfer() - 1
}
