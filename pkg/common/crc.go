package common

import "github.com/sigurn/crc16"

var crc16CcittFalse = crc16.CRC16_CCITT_FALSE

// Crc16CcittFalse computes CRC-16/CCITT-FALSE (poly 0x1021, no reflection)
// over data, starting from seed. The standard seed is 0xFFFF.
func Crc16CcittFalse(data []byte, seed uint16) uint16 {
	params := crc16CcittFalse
	params.Init = seed
	return crc16.Checksum(data, crc16.MakeTable(params))
}

const crc6Poly = 0x03 // x^6 + x + 1

// Crc6Itu computes the 6-bit ITU CRC over the bits fromBit down to toBit
// (inclusive) of value, most significant bit first, without reflection.
func Crc6Itu(value uint64, fromBit, toBit uint8, seed uint8) uint8 {
	crc := seed & 0x3f
	for bit := int(fromBit); bit >= int(toBit); bit-- {
		in := uint8(value>>uint(bit)) & 1
		feedback := (crc>>5)&1 ^ in
		crc = (crc << 1) & 0x3f
		if feedback != 0 {
			crc ^= crc6Poly
		}
	}
	return crc
}
