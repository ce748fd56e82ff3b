// Package memory provides the typed memory abstraction shared by register
// maps and non-volatile memories.
package memory

import (
	"encoding/binary"
	"unsafe"
)

// Address is the set of address widths used by device families.
type Address interface {
	~uint8 | ~uint16 | ~uint32
}

// Value is the set of value widths used by device families.
type Value interface {
	~uint8 | ~uint16 | ~uint32
}

// BatchEntry is one operation of a batch. A zero Mask writes Value as-is,
// otherwise only the bits in Mask are replaced by the bits of Value.
type BatchEntry[A Address, V Value] struct {
	Address A
	Value   V
	Mask    V
}

// Memory is the typed access to an addressable memory.
type Memory[A Address, V Value] interface {
	Read(address A) (V, error)
	Write(address A, value V) error
	// ReadBurst reads len(values) consecutive addresses starting at address.
	ReadBurst(address A, values []V) error
	// WriteBurst writes len(values) consecutive addresses starting at address.
	WriteBurst(address A, values []V) error
	SetBits(address A, mask V) error
	ClearBits(address A, mask V) error
	ModifyBits(address A, clearMask, setMask V) error
	// Batch executes entries in order. With readBack the value of each
	// entry's address after the batch is returned.
	Batch(entries []BatchEntry[A, V], readBack bool) ([]V, error)
}

// SizeOf returns the encoded width of T in bytes.
func SizeOf[T Value]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Put encodes v little-endian into b using the width of T.
func Put[T Value](b []byte, v T) {
	switch SizeOf[T]() {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

// Get decodes a little-endian T from b.
func Get[T Value](b []byte) T {
	switch SizeOf[T]() {
	case 1:
		return T(b[0])
	case 2:
		return T(binary.LittleEndian.Uint16(b))
	default:
		return T(binary.LittleEndian.Uint32(b))
	}
}

// Append appends the little-endian encoding of v to b.
func Append[T Value](b []byte, v T) []byte {
	n := len(b)
	for i := 0; i < SizeOf[T](); i++ {
		b = append(b, 0)
	}
	Put(b[n:], v)
	return b
}

// Masked applies a masked write of value onto old.
func Masked[V Value](old, value, mask V) V {
	if mask == 0 {
		return value
	}
	return old&^mask | value&mask
}
