package regs

import (
	"testing"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugBoard(t *testing.T) (*board.Board, *memory.Map[uint32, uint32]) {
	m := memory.NewMap[uint32, uint32]()
	brd := board.New()
	require.NoError(t, brd.AddComponent(component.NewDebugMemory(memory.NewLocal[uint32, uint32](m), 0)))
	return brd, m
}

func TestFindNone(t *testing.T) {
	assert.Nil(t, Find(board.New()))
}

func TestDebugMemoryAccess(t *testing.T) {
	brd, m := debugBoard(t)
	a := Find(brd)
	require.NotNil(t, a)
	assert.Equal(t, 32, a.AddrBits)
	assert.Equal(t, 32, a.ValueBits)
	assert.Equal(t, "debug memory 0", a.Name)

	require.NoError(t, a.Write(0x10, 0xCAFE))
	v, err := m.ReadValue(0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFE), v)

	require.NoError(t, m.WriteValue(0x11, 7))
	values, err := a.Read(0x10, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0xCAFE, 7}, values)
}

func TestAccessRange(t *testing.T) {
	tests := []struct {
		address uint64
		count   int
		ok      bool
	}{
		{0xFF, 1, true},
		{0xFF, 2, false},
		{0x100, 1, false},
		{0, 0, false},
		{0, 256, true},
	}
	m := memory.NewLocal[uint8, uint16](memory.NewMap[uint8, uint16]())
	a := newAccess[uint8, uint16]("ltr11", m)
	for _, test := range tests {
		_, err := a.Read(test.address, test.count)
		if test.ok {
			assert.NoError(t, err, "0x%x+%d", test.address, test.count)
		} else {
			assert.Error(t, err, "0x%x+%d", test.address, test.count)
		}
	}
	assert.Error(t, a.Write(0, 0x10000))
	assert.NoError(t, a.Write(0, 0xFFFF))
}

func TestFormat(t *testing.T) {
	a := &Access{AddrBits: 8, ValueBits: 32}
	assert.Equal(t, "0x0a: 0x00000001\n0x0b: 0x00abcdef",
		a.Format([]Value{{Address: 10, Value: 1}, {Address: 11, Value: 0xABCDEF}}))
}
