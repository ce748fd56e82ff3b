package uvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/boards"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extensionUnit(id uint8, guid uuid.UUID) []byte {
	d := []byte{27, csInterface, vcExtensionUnit, id}
	d = append(d, GUIDToWire(guid)...)
	// bNumControls, bNrInPins, baSourceID, bControlSize, bmControls, iExtension
	return append(d, 2, 1, 1, 2, 0x03, 0x00, 0)
}

func descriptors(units ...[]byte) []byte {
	b := make([]byte, 18)
	b[0], b[1] = 18, 0x01
	b = append(b, 9, 0x02, 0, 0, 1, 1, 0, 0x80, 50)
	b = append(b, 9, 0x04, 0, 0, 0, 0x0e, 0x01, 0, 0)
	for _, u := range units {
		b = append(b, u...)
	}
	return b
}

func TestGUIDWireOrder(t *testing.T) {
	wire := GUIDToWire(RealtekXUGUID)
	assert.Equal(t, []byte{0x8c, 0xa7, 0x29, 0x12, 0xb4, 0x47, 0x94, 0x40, 0xb0, 0xce}, wire[:10])
	assert.Equal(t, RealtekXUGUID, GUIDFromWire(wire))
}

func TestParseExtensionUnits(t *testing.T) {
	units, err := ParseExtensionUnits(descriptors(extensionUnit(3, RealtekXUGUID), extensionUnit(4, UVCXUGUID)))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, ExtensionUnit{ID: 3, GUID: RealtekXUGUID, NumControls: 2}, units[0])
	assert.Equal(t, uint8(4), units[1].ID)

	_, err = ParseExtensionUnits([]byte{9, 0x02, 0})
	assert.True(t, status.IsKind(err, status.KindProtocol))
	_, err = ParseExtensionUnits([]byte{4, csInterface, vcExtensionUnit, 1})
	assert.True(t, status.IsKind(err, status.KindProtocol))
}

func TestFindExtensionOrder(t *testing.T) {
	units := []ExtensionUnit{{ID: 3, GUID: RealtekXUGUID}, {ID: 4, GUID: UVCXUGUID}}
	ext, unit, ok := FindExtension(VendorExtensionList, units)
	require.True(t, ok)
	assert.Equal(t, "uvc", ext.Name)
	assert.Equal(t, uint8(4), unit.ID)

	ext, unit, ok = FindExtension(VendorExtensionList, units[:1])
	require.True(t, ok)
	assert.Equal(t, "realtek", ext.Name)
	assert.Equal(t, uint8(3), unit.ID)

	_, _, ok = FindExtension(VendorExtensionList, []ExtensionUnit{{GUID: uuid.New()}})
	assert.False(t, ok)
}

func TestRealtekFixedSize(t *testing.T) {
	l := VendorExtensionList[1].Factory("/dev/null", 3)
	size, err := l.PropertySize(1)
	require.NoError(t, err)
	assert.Equal(t, RealtekPropertySize, size)
}

func fakeSysfs(t *testing.T, vid, pid string, desc []byte) string {
	dir := t.TempDir()
	dev := filepath.Join(dir, "devices", "1-1")
	intf := filepath.Join(dev, "1-1:1.0")
	require.NoError(t, os.MkdirAll(intf, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dev, "idVendor"), []byte(vid+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dev, "idProduct"), []byte(pid+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dev, "descriptors"), desc, 0o644))
	root := filepath.Join(dir, "video4linux")
	for _, name := range []string{"video1", "video0", "video10"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
		require.NoError(t, os.Symlink(intf, filepath.Join(root, name, "device")))
	}
	return root
}

func TestListNodes(t *testing.T) {
	root := fakeSysfs(t, "058b", "0251", nil)
	nodes, err := ListNodes(root)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "video0", nodes[0].Name)
	assert.Equal(t, uint16(0x058B), nodes[0].VID)
	assert.Equal(t, uint16(0x0251), nodes[0].PID)

	nodes, err = ListNodes(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestEnumerateOpensExtensionUnit(t *testing.T) {
	root := fakeSysfs(t, "058b", "0253", descriptors(extensionUnit(5, UVCXUGUID)))
	dev := linktest.NewDevice().HandleBoardInfo(boards.VendorID, boards.PIDAtr22, "Atr22", []uint16{1, 0, 0, 1, 1, 0})
	prop := dev.PropertyLink(64)
	var opened []string
	var unitID uint8
	e := &Enumerator{
		SysfsRoot: root,
		DevDir:    "/dev",
		Extensions: []Extension{{GUID: UVCXUGUID, Name: "uvc", Factory: func(device string, unit uint8) link.PropertyLink {
			opened = append(opened, device)
			unitID = unit
			return prop
		}}},
	}
	var found []*board.Descriptor
	err := e.Enumerate(context.Background(), enumerate.ListenerFunc(func(d *board.Descriptor) bool {
		found = append(found, d)
		return true
	}), boards.DefaultList)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/dev/video0", found[0].Address)
	assert.Empty(t, opened)

	inst, err := found[0].Open()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/video0"}, opened)
	assert.Equal(t, uint8(5), unitID)
	assert.Nil(t, inst.Bridge().Data())
	assert.NotZero(t, prop.Locks)
	assert.Zero(t, prop.Unlocked)
	require.NoError(t, inst.Close())
}

func TestOpenWithoutKnownExtension(t *testing.T) {
	root := fakeSysfs(t, "058b", "0253", descriptors(extensionUnit(5, uuid.New())))
	nodes, err := ListNodes(root)
	require.NoError(t, err)
	c := &Candidate{Node: nodes[0], Device: "/dev/video0", Extensions: VendorExtensionList}
	_, err = c.Open()
	assert.Equal(t, status.CodeNotSupported, status.CodeOf(err))
}
