package sensors

import (
	"errors"
	"testing"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/cli/sh"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	id  uint8
	val float32
	err error
}

func (s *fakeSensor) Type() component.TypeID        { return component.TypeTemperature }
func (s *fakeSensor) ID() uint8                     { return s.id }
func (s *fakeSensor) Temperature() (float32, error) { return s.val, s.err }

func shellWith(t *testing.T, comps ...component.Component) *sh.Shell {
	brd := board.New()
	for _, c := range comps {
		require.NoError(t, brd.AddComponent(c))
	}
	var b bridge.Bridge
	return &sh.Shell{Current: board.NewInstance(board.Entry{Name: "test"}, b, brd)}
}

func TestReadTemperatures(t *testing.T) {
	s := shellWith(t, &fakeSensor{id: 0, val: 25.5}, &fakeSensor{id: 1, val: -3})
	temps, err := ReadTemperatures(s)
	require.NoError(t, err)
	assert.Equal(t, []Temperature{{ID: 0, Celsius: 25.5}, {ID: 1, Celsius: -3}}, temps)

	s = shellWith(t, &fakeSensor{err: errors.New("nack")})
	_, err = ReadTemperatures(s)
	assert.Error(t, err)
}

func TestReadFlashWithoutFlash(t *testing.T) {
	s := shellWith(t, &fakeSensor{})
	_, err := ReadFlash(s, 0, 16)
	assert.EqualError(t, err, "board has no flash")
}
