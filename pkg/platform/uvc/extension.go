// Package uvc reaches boards through a vendor extension unit of their
// USB Video Class interface.
package uvc

import (
	"github.com/google/uuid"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Extension unit GUIDs.
var (
	UVCXUGUID     = uuid.MustParse("a96c3a0c-8a2b-4b6e-9d43-0f1c6f8b5e21")
	RealtekXUGUID = uuid.MustParse("1229a78c-47b4-4094-b0ce-db07386fb938")
)

// RealtekPropertySize is the fixed property size of the Realtek unit,
// which does not answer GET_LEN.
const RealtekPropertySize = 64

// ExtensionFactory creates the link to unit on the video device node.
type ExtensionFactory func(device string, unit uint8) link.PropertyLink

// Extension maps an extension unit GUID to its link.
type Extension struct {
	GUID    uuid.UUID
	Name    string
	Factory ExtensionFactory
}

// VendorExtensionList is searched in order.
var VendorExtensionList = []Extension{
	{GUID: UVCXUGUID, Name: "uvc", Factory: func(device string, unit uint8) link.PropertyLink {
		return NewLink(device, unit)
	}},
	{GUID: RealtekXUGUID, Name: "realtek", Factory: func(device string, unit uint8) link.PropertyLink {
		return &fixedSize{PropertyLink: NewLink(device, unit), size: RealtekPropertySize}
	}},
}

// FindExtension returns the first list entry implemented by one of units,
// with that unit.
func FindExtension(list []Extension, units []ExtensionUnit) (Extension, ExtensionUnit, bool) {
	for _, ext := range list {
		for _, unit := range units {
			if unit.GUID == ext.GUID {
				return ext, unit, true
			}
		}
	}
	return Extension{}, ExtensionUnit{}, false
}

type fixedSize struct {
	link.PropertyLink
	size int
}

func (f *fixedSize) PropertySize(selector byte) (int, error) {
	if selector == 0 {
		return 0, status.Errorf(status.KindConnection, status.CodeInvalidParameter, "propertySize", "selector 0")
	}
	return f.size, nil
}
