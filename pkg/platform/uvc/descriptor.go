package uvc

import (
	"github.com/google/uuid"
	"github.com/robotalks/strata.go/pkg/status"
)

// Descriptor codes of the video control interface.
const (
	csInterface     = 0x24
	vcExtensionUnit = 0x06

	extensionUnitMinLength = 24
)

// ExtensionUnit is a VC_EXTENSION_UNIT descriptor.
type ExtensionUnit struct {
	ID          uint8
	GUID        uuid.UUID
	NumControls uint8
}

// GUIDFromWire converts a descriptor GUID, whose first three fields are
// little endian.
func GUIDFromWire(b []byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], b[:16])
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	return id
}

// GUIDToWire is the inverse of GUIDFromWire.
func GUIDToWire(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	return b
}

// ParseExtensionUnits walks raw USB descriptors and returns the
// extension units found.
func ParseExtensionUnits(b []byte) ([]ExtensionUnit, error) {
	var units []ExtensionUnit
	for len(b) > 0 {
		size := int(b[0])
		if size < 2 || size > len(b) {
			return units, status.Errorf(status.KindProtocol, status.CodeInvalidSize, "descriptor", "bad length %d with %d bytes left", size, len(b))
		}
		d := b[:size]
		b = b[size:]
		if d[1] != csInterface || size < 3 || d[2] != vcExtensionUnit {
			continue
		}
		if size < extensionUnitMinLength {
			return units, status.Errorf(status.KindProtocol, status.CodeInvalidSize, "descriptor", "extension unit of %d bytes", size)
		}
		units = append(units, ExtensionUnit{
			ID:          d[3],
			GUID:        GUIDFromWire(d[4:20]),
			NumControls: d[20],
		})
	}
	return units, nil
}
