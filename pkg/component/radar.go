package component

import (
	"encoding/binary"

	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/robotalks/strata.go/pkg/status"
)

// Radar is the function interface shared by radar front-ends.
type Radar interface {
	Component
	Reset(soft bool) error
	Initialize() error
	// DataIndex returns the data index the front-end streams on.
	DataIndex() (uint8, error)
	StartData() error
	StopData() error
}

// RadarRegisters is a radar front-end with a register map of the given
// widths.
type RadarRegisters[A memory.Address, V memory.Value] interface {
	Radar
	Registers() memory.Memory[A, V]
}

// Front-ends by family.
type (
	Avian interface {
		RadarRegisters[uint8, uint32]
		Pins() PinsAvian
		Protocol() ProtocolAvian
	}
	Rxs     = RadarRegisters[uint16, uint32]
	Atr22   = RadarRegisters[uint16, uint16]
	Ltr11   = RadarRegisters[uint8, uint16]
	Smartar = RadarRegisters[uint32, uint32]
)

type radarFunctions struct {
	remote Remote
}

func (f radarFunctions) Type() TypeID {
	return f.remote.Type
}

func (f radarFunctions) ID() uint8 {
	return f.remote.ID
}

func (f radarFunctions) Reset(soft bool) error {
	var arg byte
	if soft {
		arg = 1
	}
	return f.remote.Call(FnRadarReset, arg)
}

func (f radarFunctions) Initialize() error {
	return f.remote.Call(FnRadarInitialize)
}

func (f radarFunctions) DataIndex() (uint8, error) {
	var index [1]byte
	if err := f.remote.CallWith(FnRadarGetDataIndex, nil, index[:]); err != nil {
		return 0, err
	}
	return index[0], nil
}

func (f radarFunctions) StartData() error {
	return f.remote.Call(FnRadarStartData)
}

func (f radarFunctions) StopData() error {
	return f.remote.Call(FnRadarStopData)
}

// RemoteRadar is a radar front-end driven by the board firmware.
type RemoteRadar[A memory.Address, V memory.Value] struct {
	radarFunctions
	registers *Registers[A, V]
}

// NewRadar creates a front-end of type t.
func NewRadar[A memory.Address, V memory.Value](c bridge.Control, t TypeID, id uint8) *RemoteRadar[A, V] {
	return &RemoteRadar[A, V]{
		radarFunctions: radarFunctions{remote: NewRemote(c, t, id, InterfaceFunction)},
		registers:      NewRegisters[A, V](c, t, id),
	}
}

// Registers implements RadarRegisters.
func (r *RemoteRadar[A, V]) Registers() memory.Memory[A, V] {
	return r.registers
}

// NewRxs creates an RXS front-end.
func NewRxs(c bridge.Control, id uint8) *RemoteRadar[uint16, uint32] {
	return NewRadar[uint16, uint32](c, TypeRadarRxs, id)
}

// NewAtr22 creates an Atr22 front-end.
func NewAtr22(c bridge.Control, id uint8) *RemoteRadar[uint16, uint16] {
	return NewRadar[uint16, uint16](c, TypeRadarAtr22, id)
}

// NewLtr11 creates an Ltr11 front-end.
func NewLtr11(c bridge.Control, id uint8) *RemoteRadar[uint8, uint16] {
	return NewRadar[uint8, uint16](c, TypeRadarLtr11, id)
}

// NewSmartar creates a Smartar front-end.
func NewSmartar(c bridge.Control, id uint8) *RemoteRadar[uint32, uint32] {
	return NewRadar[uint32, uint32](c, TypeRadarSmartar, id)
}

// PinsAvianConfig assigns board GPIOs to the Avian control lines.
type PinsAvianConfig struct {
	Reset uint16
	Irq   uint16
	Ok    uint16
}

// PinsAvian drives the Avian control lines.
type PinsAvian interface {
	Configure(config PinsAvianConfig) error
	SetResetPin(state bool) error
	GetOkPin() (bool, error)
	ResetPulse() error
}

// RemotePinsAvian implements PinsAvian by vendor commands.
type RemotePinsAvian struct {
	remote Remote
}

// Configure implements PinsAvian.
func (p *RemotePinsAvian) Configure(config PinsAvianConfig) error {
	args := make([]byte, 6)
	binary.LittleEndian.PutUint16(args, config.Reset)
	binary.LittleEndian.PutUint16(args[2:], config.Irq)
	binary.LittleEndian.PutUint16(args[4:], config.Ok)
	return p.remote.Call(FnPinsConfigure, args...)
}

// SetResetPin implements PinsAvian.
func (p *RemotePinsAvian) SetResetPin(state bool) error {
	var arg byte
	if state {
		arg = 1
	}
	return p.remote.Call(FnPinsSetReset, arg)
}

// GetOkPin implements PinsAvian.
func (p *RemotePinsAvian) GetOkPin() (bool, error) {
	var state [1]byte
	if err := p.remote.CallWith(FnPinsGetOk, nil, state[:]); err != nil {
		return false, err
	}
	return state[0] != 0, nil
}

// ResetPulse implements PinsAvian.
func (p *RemotePinsAvian) ResetPulse() error {
	return p.remote.Call(FnPinsResetPulse)
}

// AvianWriteCommand builds the SPI command word writing value to address.
func AvianWriteCommand(address uint8, value uint32) uint32 {
	return uint32(address&0x7f)<<25 | 1<<24 | value&0xffffff
}

// AvianReadCommand builds the SPI command word reading address.
func AvianReadCommand(address uint8) uint32 {
	return uint32(address&0x7f) << 25
}

// ProtocolAvian executes raw SPI command words on the Avian.
type ProtocolAvian interface {
	// Execute sends commands; results, if not nil, receives one word per
	// command.
	Execute(commands []uint32, results []uint32) error
	SetBits(address uint8, mask uint32) error
}

// RemoteProtocolAvian implements ProtocolAvian by vendor commands.
type RemoteProtocolAvian struct {
	remote Remote
}

// Execute implements ProtocolAvian.
func (p *RemoteProtocolAvian) Execute(commands []uint32, results []uint32) error {
	if results != nil && len(results) != len(commands) {
		return status.Errorf(status.KindSPI, status.CodeInvalidSize, "execute", "%d results for %d commands", len(results), len(commands))
	}
	args := binary.LittleEndian.AppendUint16(nil, uint16(len(commands)))
	for _, c := range commands {
		args = binary.LittleEndian.AppendUint32(args, c)
	}
	if max := p.remote.MaxArgs(); len(args) > max {
		return status.Errorf(status.KindSPI, status.CodeInvalidSize, "execute", "%d bytes exceeds %d", len(args), max)
	}
	if results == nil {
		return p.remote.Call(FnProtocolExecute, args...)
	}
	buf := make([]byte, 4*len(results))
	if err := p.remote.CallWith(FnProtocolExecute, args, buf); err != nil {
		return err
	}
	for i := range results {
		results[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return nil
}

// SetBits implements ProtocolAvian.
func (p *RemoteProtocolAvian) SetBits(address uint8, mask uint32) error {
	args := binary.LittleEndian.AppendUint32([]byte{address}, mask)
	return p.remote.Call(FnProtocolSetBits, args...)
}

// RadarAvian is an Avian front-end driven by the board firmware.
type RadarAvian struct {
	*RemoteRadar[uint8, uint32]
	pins     *RemotePinsAvian
	protocol *RemoteProtocolAvian
}

// NewAvian creates an Avian front-end.
func NewAvian(c bridge.Control, id uint8) *RadarAvian {
	return &RadarAvian{
		RemoteRadar: NewRadar[uint8, uint32](c, TypeRadarAvian, id),
		pins:        &RemotePinsAvian{remote: NewRemote(c, TypeRadarAvian, id, InterfacePins)},
		protocol:    &RemoteProtocolAvian{remote: NewRemote(c, TypeRadarAvian, id, InterfaceProtocol)},
	}
}

// Pins implements Avian.
func (r *RadarAvian) Pins() PinsAvian {
	return r.pins
}

// Protocol implements Avian.
func (r *RadarAvian) Protocol() ProtocolAvian {
	return r.protocol
}

var (
	_ Avian   = &RadarAvian{}
	_ Rxs     = &RemoteRadar[uint16, uint32]{}
	_ Atr22   = &RemoteRadar[uint16, uint16]{}
	_ Ltr11   = &RemoteRadar[uint8, uint16]{}
	_ Smartar = &RemoteRadar[uint32, uint32]{}
)
