package component

import "github.com/robotalks/strata.go/pkg/memory"

// DebugMemory is the address space of a chip reached through an on-chip
// debugger instead of the vendor protocol.
type DebugMemory struct {
	memory.Memory[uint32, uint32]

	id uint8
}

var _ Component = &DebugMemory{}

// NewDebugMemory wraps mem as component id.
func NewDebugMemory(mem memory.Memory[uint32, uint32], id uint8) *DebugMemory {
	return &DebugMemory{Memory: mem, id: id}
}

// Type implements Component.
func (m *DebugMemory) Type() TypeID {
	return TypeDebugMemory
}

// ID implements Component.
func (m *DebugMemory) ID() uint8 {
	return m.id
}
