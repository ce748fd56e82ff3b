package common

import "encoding/binary"

// UnpackRaw12 unpacks 12-bit samples packed two per three bytes.
// It returns the number of samples written to dst.
func UnpackRaw12(src []byte, dst []uint16) int {
	n := 0
	for i := 0; i+2 < len(src) && n+1 < len(dst); i += 3 {
		b0, b1, b2 := uint16(src[i]), uint16(src[i+1]), uint16(src[i+2])
		dst[n] = b0<<4 | b2&0x0f
		dst[n+1] = b1<<4 | b2>>4
		n += 2
	}
	return n
}

// PackRaw12 packs pairs of 12-bit samples into three bytes each.
// It returns the number of bytes written to dst.
func PackRaw12(src []uint16, dst []byte) int {
	n := 0
	for i := 0; i+1 < len(src) && n+2 < len(dst); i += 2 {
		a, b := src[i]&0xfff, src[i+1]&0xfff
		dst[n] = byte(a >> 4)
		dst[n+1] = byte(b >> 4)
		dst[n+2] = byte(b&0x0f)<<4 | byte(a&0x0f)
		n += 3
	}
	return n
}

// LittleToHost16 converts little-endian 16-bit words.
func LittleToHost16(buf []byte) []uint16 {
	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return words
}
