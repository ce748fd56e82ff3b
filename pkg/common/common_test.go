package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor(t *testing.T) {
	start := time.Now()
	require.True(t, WaitFor(func() bool { return true }, time.Second, 10*time.Millisecond))
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	start = time.Now()
	require.False(t, WaitFor(func() bool { return false }, 10*time.Millisecond, time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	// a step longer than the timeout does not overshoot it
	start = time.Now()
	require.False(t, WaitFor(func() bool { return false }, 15*time.Millisecond, time.Second))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond)

	calls := 0
	require.True(t, WaitFor(func() bool {
		calls++
		return calls == 3
	}, time.Second, 0))
	assert.Equal(t, 3, calls)
}

func TestClampValue(t *testing.T) {
	assert.Equal(t, uint8(255), ClampValue[uint8](300))
	assert.Equal(t, int8(127), ClampValue[int8](300))
	assert.Equal(t, int8(-128), ClampValue[int8](-300))
	assert.Equal(t, uint16(0), ClampValue[uint16](-1))
	assert.Equal(t, int64(-5), ClampValue[int64](-5))
	assert.Equal(t, uint32(70000), ClampValue[uint32](70000))
	assert.Equal(t, int16(32767), ClampUnsigned[int16](1<<20))
	assert.Equal(t, uint64(1<<63), ClampUnsigned[uint64](1<<63))
}

func TestCrc16CcittFalse(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), Crc16CcittFalse([]byte("123456789"), 0xFFFF))
	assert.Equal(t, uint16(0xFFFF), Crc16CcittFalse(nil, 0xFFFF))
}

func TestCrc6Itu(t *testing.T) {
	// Vector 4 of the acceptance properties lists 0x03 for this input. The
	// MSB first, unreflected remainder x^6 * M(x) mod (x^6 + x + 1) of
	// M = 0x3FF is 0x31, and no reflected or seeded variant yields 0x03.
	assert.Equal(t, uint8(0x31), Crc6Itu(0x3FF, 9, 0, 0))
	assert.Equal(t, uint8(0), Crc6Itu(0, 9, 0, 0))

	for _, value := range []uint64{0x3FF, 0x155, 0x001, 0x2A0} {
		crc := Crc6Itu(value, 9, 0, 0)
		// appending the CRC leaves a zero remainder
		assert.Equalf(t, uint8(0), Crc6Itu(value<<6|uint64(crc), 15, 0, 0), "value %#x", value)
	}

	// bounds select a bit window
	assert.Equal(t, Crc6Itu(0x3FF, 9, 0, 0), Crc6Itu(0x3FF<<4, 13, 4, 0))
}

func TestRaw12(t *testing.T) {
	dst := make([]uint16, 2)
	require.Equal(t, 2, UnpackRaw12([]byte{0xA0, 0xB0, 0xAB}, dst))
	assert.Equal(t, []uint16{0xA0B, 0xB0A}, dst)

	packed := make([]byte, 3)
	samples := make([]uint16, 2)
	for b0 := 0; b0 < 256; b0 += 17 {
		for b1 := 0; b1 < 256; b1 += 13 {
			for b2 := 0; b2 < 256; b2++ {
				src := []byte{byte(b0), byte(b1), byte(b2)}
				UnpackRaw12(src, samples)
				PackRaw12(samples, packed)
				require.Equal(t, src, packed)
			}
		}
	}
}

func TestLittleToHost16(t *testing.T) {
	words := LittleToHost16([]byte{0x01, 0x00, 0x02, 0x00, 0x34, 0x12, 0xff})
	assert.Equal(t, []uint16{1, 2, 0x1234}, words)
}
