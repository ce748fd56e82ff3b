package memory

import "sync"

// Accessor is the single-value access a Local memory is built on.
type Accessor[A Address, V Value] interface {
	ReadValue(address A) (V, error)
	WriteValue(address A, value V) error
}

// Local implements Memory on top of an Accessor. Read-modify-write
// sequences are atomic relative to the Local instance.
type Local[A Address, V Value] struct {
	Accessor Accessor[A, V]

	lock sync.Mutex
}

// NewLocal creates a Local memory.
func NewLocal[A Address, V Value](accessor Accessor[A, V]) *Local[A, V] {
	return &Local[A, V]{Accessor: accessor}
}

// Read implements Memory.
func (m *Local[A, V]) Read(address A) (V, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.Accessor.ReadValue(address)
}

// Write implements Memory.
func (m *Local[A, V]) Write(address A, value V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.Accessor.WriteValue(address, value)
}

// ReadBurst implements Memory.
func (m *Local[A, V]) ReadBurst(address A, values []V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i := range values {
		v, err := m.Accessor.ReadValue(address + A(i))
		if err != nil {
			return err
		}
		values[i] = v
	}
	return nil
}

// WriteBurst implements Memory.
func (m *Local[A, V]) WriteBurst(address A, values []V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, v := range values {
		if err := m.Accessor.WriteValue(address+A(i), v); err != nil {
			return err
		}
	}
	return nil
}

// SetBits implements Memory.
func (m *Local[A, V]) SetBits(address A, mask V) error {
	return m.ModifyBits(address, 0, mask)
}

// ClearBits implements Memory.
func (m *Local[A, V]) ClearBits(address A, mask V) error {
	return m.ModifyBits(address, mask, 0)
}

// ModifyBits implements Memory.
func (m *Local[A, V]) ModifyBits(address A, clearMask, setMask V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.modify(address, clearMask, setMask)
}

func (m *Local[A, V]) modify(address A, clearMask, setMask V) error {
	v, err := m.Accessor.ReadValue(address)
	if err != nil {
		return err
	}
	return m.Accessor.WriteValue(address, v&^clearMask|setMask)
}

// Batch implements Memory.
func (m *Local[A, V]) Batch(entries []BatchEntry[A, V], readBack bool) ([]V, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, e := range entries {
		var err error
		if e.Mask == 0 {
			err = m.Accessor.WriteValue(e.Address, e.Value)
		} else {
			err = m.modify(e.Address, e.Mask, e.Value&e.Mask)
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
		v, err := m.Accessor.ReadValue(e.Address)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Map is an in-memory Accessor.
type Map[A Address, V Value] struct {
	Values map[A]V
}

// NewMap creates an empty Map.
func NewMap[A Address, V Value]() *Map[A, V] {
	return &Map[A, V]{Values: make(map[A]V)}
}

// ReadValue implements Accessor.
func (m *Map[A, V]) ReadValue(address A) (V, error) {
	return m.Values[address], nil
}

// WriteValue implements Accessor.
func (m *Map[A, V]) WriteValue(address A, value V) error {
	m.Values[address] = value
	return nil
}
