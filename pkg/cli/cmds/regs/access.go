package regs

import (
	"fmt"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/memory"
)

// Access is a register map with its widths erased for the shell.
type Access struct {
	Name      string
	AddrBits  int
	ValueBits int

	read  func(address uint64, values []uint64) error
	write func(address, value uint64) error
}

func newAccess[A memory.Address, V memory.Value](name string, m memory.Memory[A, V]) *Access {
	return &Access{
		Name:      name,
		AddrBits:  8 * memory.SizeOf[A](),
		ValueBits: 8 * memory.SizeOf[V](),
		read: func(address uint64, values []uint64) error {
			buf := make([]V, len(values))
			if err := m.ReadBurst(A(address), buf); err != nil {
				return err
			}
			for i, v := range buf {
				values[i] = uint64(v)
			}
			return nil
		},
		write: func(address, value uint64) error {
			return m.Write(A(address), V(value))
		},
	}
}

// Find returns the register map of the first component having one.
func Find(b *board.Board) *Access {
	for _, c := range b.Components() {
		name := fmt.Sprintf("%s %d", c.Type(), c.ID())
		switch r := c.(type) {
		case component.RadarRegisters[uint8, uint32]:
			return newAccess(name, r.Registers())
		case component.RadarRegisters[uint16, uint32]:
			return newAccess(name, r.Registers())
		case component.RadarRegisters[uint16, uint16]:
			return newAccess(name, r.Registers())
		case component.RadarRegisters[uint8, uint16]:
			return newAccess(name, r.Registers())
		case component.RadarRegisters[uint32, uint32]:
			return newAccess(name, r.Registers())
		case *component.DebugMemory:
			return newAccess[uint32, uint32](name, r)
		}
	}
	return nil
}

func (a *Access) checkAddress(address uint64, count int) error {
	last := address + uint64(count) - 1
	if count < 1 || last>>a.AddrBits != 0 || last < address {
		return fmt.Errorf("address 0x%x count %d out of %d bit range", address, count, a.AddrBits)
	}
	return nil
}

// Read reads count registers from address.
func (a *Access) Read(address uint64, count int) ([]uint64, error) {
	if err := a.checkAddress(address, count); err != nil {
		return nil, err
	}
	values := make([]uint64, count)
	if err := a.read(address, values); err != nil {
		return nil, err
	}
	return values, nil
}

// Write writes one register.
func (a *Access) Write(address, value uint64) error {
	if err := a.checkAddress(address, 1); err != nil {
		return err
	}
	if value>>a.ValueBits != 0 {
		return fmt.Errorf("value 0x%x exceeds %d bits", value, a.ValueBits)
	}
	return a.write(address, value)
}
