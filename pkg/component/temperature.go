package component

import (
	"github.com/robotalks/strata.go/pkg/bridge"
)

// Temperature is a temperature sensor.
type Temperature interface {
	Component
	// Temperature returns degrees Celsius.
	Temperature() (float32, error)
}

// Tmp102Address is the default I2C address of a TMP102.
const Tmp102Address uint16 = 0x48

const tmp102RegTemperature uint8 = 0x00

// Tmp102 reads a TMP102 sensor on a board I2C bus.
type Tmp102 struct {
	i2c     bridge.I2C
	devAddr uint16
	id      uint8
}

// NewTmp102 creates the sensor at devAddr, built with bridge.I2CDevice.
func NewTmp102(i2c bridge.I2C, devAddr uint16, id uint8) *Tmp102 {
	return &Tmp102{i2c: i2c, devAddr: devAddr, id: id}
}

// Type implements Component.
func (t *Tmp102) Type() TypeID {
	return TypeTemperature
}

// ID implements Component.
func (t *Tmp102) ID() uint8 {
	return t.id
}

// Temperature implements Temperature.
func (t *Tmp102) Temperature() (float32, error) {
	var raw [2]byte
	if err := t.i2c.ReadWith8BitPrefix(t.devAddr, tmp102RegTemperature, raw[:]); err != nil {
		return 0, err
	}
	return DecodeTmp102(raw), nil
}

// DecodeTmp102 converts the temperature register: 12 bit two's complement,
// left aligned, 0.0625 °C per LSB.
func DecodeTmp102(raw [2]byte) float32 {
	v := int16(uint16(raw[0])<<8|uint16(raw[1])) >> 4
	return float32(v) * 0.0625
}
