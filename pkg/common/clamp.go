package common

import "unsafe"

// Signed is the set of signed integer types.
type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is the set of unsigned integer types.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is the set of integer types.
type Integer interface {
	Signed | Unsigned
}

func limits[T Integer]() (min int64, max uint64) {
	bits := uint(unsafe.Sizeof(T(0))) * 8
	var zero T
	if zero-1 < zero {
		// signed
		return -1 << (bits - 1), 1<<(bits-1) - 1
	}
	if bits == 64 {
		return 0, ^uint64(0)
	}
	return 0, 1<<bits - 1
}

// ClampValue converts v to T, saturating at the bounds of T.
func ClampValue[T Integer](v int64) T {
	min, max := limits[T]()
	if v < min {
		return T(min)
	}
	if v > 0 && uint64(v) > max {
		return T(max)
	}
	return T(v)
}

// ClampUnsigned converts an unsigned v to T, saturating at the maximum of T.
func ClampUnsigned[T Integer](v uint64) T {
	_, max := limits[T]()
	if v > max {
		return T(max)
	}
	return T(v)
}
