package component

import (
	"encoding/binary"
	"sync"

	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/robotalks/strata.go/pkg/status"
)

// Batch flags.
const (
	batchReadBack uint8 = 1 << 0
	batchMasked   uint8 = 1 << 1
)

// Registers is the register map of a component accessed by vendor
// commands. Batches are sent in one request when the firmware supports
// it, otherwise they are split into single register operations. All
// operations are serialised per component.
type Registers[A memory.Address, V memory.Value] struct {
	remote Remote
	lock   sync.Mutex
}

// Register maps of the device families.
type (
	Registers8x32  = Registers[uint8, uint32]
	Registers16x32 = Registers[uint16, uint32]
	Registers16x16 = Registers[uint16, uint16]
	Registers32x32 = Registers[uint32, uint32]
	Registers8x16  = Registers[uint8, uint16]
)

// NewRegisters creates the register view of component (t, id).
func NewRegisters[A memory.Address, V memory.Value](c bridge.Control, t TypeID, id uint8) *Registers[A, V] {
	return &Registers[A, V]{remote: NewRemote(c, t, id, InterfaceRegisters)}
}

var _ memory.Memory[uint8, uint32] = &Registers8x32{}

func (r *Registers[A, V]) sizes() (int, int) {
	return memory.SizeOf[A](), memory.SizeOf[V]()
}

// burstCount is the number of values fitting one request.
func (r *Registers[A, V]) burstCount() (int, error) {
	sa, sv := r.sizes()
	n := (r.remote.MaxArgs() - sa - 2) / sv
	if n <= 0 {
		return 0, status.Errorf(status.KindRegister, status.CodeInvalidSize, "registers", "max transfer %d", r.remote.Control.MaxTransfer())
	}
	return n, nil
}

// Read implements memory.Memory.
func (r *Registers[A, V]) Read(address A) (V, error) {
	var v [1]V
	err := r.ReadBurst(address, v[:])
	return v[0], err
}

// Write implements memory.Memory.
func (r *Registers[A, V]) Write(address A, value V) error {
	return r.WriteBurst(address, []V{value})
}

// ReadBurst implements memory.Memory.
func (r *Registers[A, V]) ReadBurst(address A, values []V) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.readBurst(address, values)
}

func (r *Registers[A, V]) readBurst(address A, values []V) error {
	max, err := r.burstCount()
	if err != nil {
		return err
	}
	_, sv := r.sizes()
	for len(values) > 0 {
		n := len(values)
		if n > max {
			n = max
		}
		args := memory.Append(nil, address)
		args = binary.LittleEndian.AppendUint16(args, uint16(n))
		result := make([]byte, n*sv)
		if err := r.remote.CallWith(FnRegistersReadBurst, args, result); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			values[i] = memory.Get[V](result[i*sv:])
		}
		values = values[n:]
		address += A(n)
	}
	return nil
}

// WriteBurst implements memory.Memory.
func (r *Registers[A, V]) WriteBurst(address A, values []V) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.writeBurst(address, values)
}

func (r *Registers[A, V]) writeBurst(address A, values []V) error {
	max, err := r.burstCount()
	if err != nil {
		return err
	}
	for len(values) > 0 {
		n := len(values)
		if n > max {
			n = max
		}
		args := memory.Append(nil, address)
		args = binary.LittleEndian.AppendUint16(args, uint16(n))
		for _, v := range values[:n] {
			args = memory.Append(args, v)
		}
		if err := r.remote.Call(FnRegistersWriteBurst, args...); err != nil {
			return err
		}
		values = values[n:]
		address += A(n)
	}
	return nil
}

// SetBits implements memory.Memory.
func (r *Registers[A, V]) SetBits(address A, mask V) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.remote.Call(FnRegistersSetBits, memory.Append(memory.Append(nil, address), mask)...)
}

// ClearBits implements memory.Memory.
func (r *Registers[A, V]) ClearBits(address A, mask V) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.remote.Call(FnRegistersClearBits, memory.Append(memory.Append(nil, address), mask)...)
}

// ModifyBits implements memory.Memory.
func (r *Registers[A, V]) ModifyBits(address A, clearMask, setMask V) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.modifyBits(address, clearMask, setMask)
}

func (r *Registers[A, V]) modifyBits(address A, clearMask, setMask V) error {
	args := memory.Append(memory.Append(memory.Append(nil, address), clearMask), setMask)
	return r.remote.Call(FnRegistersModifyBits, args...)
}

// Batch implements memory.Memory.
func (r *Registers[A, V]) Batch(entries []memory.BatchEntry[A, V], readBack bool) ([]V, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.remote.Control.ProtocolVersion() >= protocol.ProtocolVersionBatch {
		return r.batch(entries, readBack)
	}
	return r.decompose(entries, readBack)
}

// batch sends entries in as few batch calls as fit a request. Values are
// read back in the same call when the batch fits one request, otherwise
// after all chunks were written.
func (r *Registers[A, V]) batch(entries []memory.BatchEntry[A, V], readBack bool) ([]V, error) {
	var flags uint8
	for _, e := range entries {
		if e.Mask != 0 {
			flags |= batchMasked
			break
		}
	}
	sa, sv := r.sizes()
	entrySize := sa + sv
	if flags&batchMasked != 0 {
		entrySize += sv
	}
	max := (r.remote.MaxArgs() - 4) / entrySize
	if max <= 0 {
		return nil, status.Errorf(status.KindRegister, status.CodeInvalidSize, "batch", "max transfer %d", r.remote.Control.MaxTransfer())
	}

	if readBack && len(entries) <= max && len(entries)*sv <= r.remote.Control.MaxTransfer() {
		result := make([]byte, len(entries)*sv)
		if err := r.remote.CallWith(FnRegistersBatch, r.batchArgs(flags|batchReadBack, entries), result); err != nil {
			return nil, err
		}
		values := make([]V, len(entries))
		for i := range values {
			values[i] = memory.Get[V](result[i*sv:])
		}
		return values, nil
	}

	for rest := entries; len(rest) > 0; {
		n := len(rest)
		if n > max {
			n = max
		}
		if err := r.remote.Call(FnRegistersBatch, r.batchArgs(flags, rest[:n])...); err != nil {
			return nil, err
		}
		rest = rest[n:]
	}
	if !readBack {
		return nil, nil
	}
	values := make([]V, len(entries))
	for i, e := range entries {
		if err := r.readBurst(e.Address, values[i:i+1]); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (r *Registers[A, V]) batchArgs(flags uint8, entries []memory.BatchEntry[A, V]) []byte {
	args := []byte{flags}
	args = binary.LittleEndian.AppendUint16(args, uint16(len(entries)))
	for _, e := range entries {
		args = memory.Append(args, e.Address)
		args = memory.Append(args, e.Value)
		if flags&batchMasked != 0 {
			args = memory.Append(args, e.Mask)
		}
	}
	return args
}

// decompose runs a batch as single register operations for firmware
// without batch support.
func (r *Registers[A, V]) decompose(entries []memory.BatchEntry[A, V], readBack bool) ([]V, error) {
	for _, e := range entries {
		var err error
		if e.Mask == 0 {
			err = r.writeBurst(e.Address, []V{e.Value})
		} else {
			err = r.modifyBits(e.Address, e.Mask, e.Value&e.Mask)
		}
		if err != nil {
			return nil, err
		}
	}
	if !readBack {
		return nil, nil
	}
	values := make([]V, len(entries))
	for i, e := range entries {
		if err := r.readBurst(e.Address, values[i:i+1]); err != nil {
			return nil, err
		}
	}
	return values, nil
}
