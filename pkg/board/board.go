// Package board holds the component tree of an opened board and the
// descriptors handed out by enumeration.
package board

import (
	"io"

	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/status"
)

type key struct {
	t  component.TypeID
	id uint8
}

type entries struct {
	ordered []component.Component
	index   map[key]component.Component
}

func (e *entries) add(op string, c component.Component) error {
	k := key{c.Type(), c.ID()}
	if e.index == nil {
		e.index = make(map[key]component.Component)
	}
	if _, exists := e.index[k]; exists {
		return status.Errorf(status.KindInUse, status.CodeNotAllowed, op, "%s %d already present", k.t, k.id)
	}
	e.index[k] = c
	e.ordered = append(e.ordered, c)
	return nil
}

func (e *entries) count(t component.TypeID) int {
	n := 0
	for _, c := range e.ordered {
		if c.Type() == t {
			n++
		}
	}
	return n
}

// Board is the component tree of a board: components and modules, each
// unique by type and id.
type Board struct {
	components entries
	modules    entries
}

// New creates an empty Board.
func New() *Board {
	return &Board{}
}

// AddComponent adds c to the board.
func (b *Board) AddComponent(c component.Component) error {
	return b.components.add("addComponent", c)
}

// AddModule adds m to the board.
func (b *Board) AddModule(m component.Module) error {
	return b.modules.add("addModule", m)
}

// Component returns the component (t, id) or nil.
func (b *Board) Component(t component.TypeID, id uint8) component.Component {
	return b.components.index[key{t, id}]
}

// ComponentCount counts the components of type t.
func (b *Board) ComponentCount(t component.TypeID) int {
	return b.components.count(t)
}

// Components returns the components in the order they were added.
func (b *Board) Components() []component.Component {
	return append([]component.Component(nil), b.components.ordered...)
}

// Module returns the module (t, id) or nil.
func (b *Board) Module(t component.TypeID, id uint8) component.Component {
	return b.modules.index[key{t, id}]
}

// ModuleCount counts the modules of type t.
func (b *Board) ModuleCount(t component.TypeID) int {
	return b.modules.count(t)
}

// Modules returns the modules in the order they were added.
func (b *Board) Modules() []component.Component {
	return append([]component.Component(nil), b.modules.ordered...)
}

// Close closes modules then components holding resources, in reverse
// order of addition.
func (b *Board) Close() error {
	var errs framework.AggregatedError
	for _, list := range [][]component.Component{b.modules.ordered, b.components.ordered} {
		for i := len(list) - 1; i >= 0; i-- {
			if closer, ok := list[i].(io.Closer); ok {
				errs.Add(closer.Close())
			}
		}
	}
	return errs.Aggregate()
}

// GetComponent returns the component with id implementing T, or the zero
// value of T when there is none.
func GetComponent[T any](b *Board, id uint8) T {
	for _, c := range b.components.ordered {
		if c.ID() != id {
			continue
		}
		if typed, ok := c.(T); ok {
			return typed
		}
	}
	var zero T
	return zero
}

// GetComponentCount counts the components implementing T.
func GetComponentCount[T any](b *Board) int {
	n := 0
	for _, c := range b.components.ordered {
		if _, ok := c.(T); ok {
			n++
		}
	}
	return n
}

// GetModule returns the module with id implementing T, or the zero value
// of T when there is none.
func GetModule[T any](b *Board, id uint8) T {
	for _, m := range b.modules.ordered {
		if m.ID() != id {
			continue
		}
		if typed, ok := m.(T); ok {
			return typed
		}
	}
	var zero T
	return zero
}
