package uvc

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Default locations of the video device nodes.
const (
	DefaultSysfsRoot = "/sys/class/video4linux"
	DefaultDevDir    = "/dev"
)

// Node is a video device node with the identity of its USB device.
type Node struct {
	Name string
	// USBDevice is the sysfs directory of the owning USB device.
	USBDevice string
	VID       uint16
	PID       uint16
}

// ListNodes reads the video nodes under root. Nodes not backed by a USB
// device are skipped, as are further nodes of a device already listed.
func ListNodes(root string) ([]Node, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, link.ConnectionError("listNodes", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "video") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return nodeIndex(names[i]) < nodeIndex(names[j]) })

	seen := make(map[string]bool)
	var nodes []Node
	for _, name := range names {
		intf, err := filepath.EvalSymlinks(filepath.Join(root, name, "device"))
		if err != nil {
			continue
		}
		dev := filepath.Dir(intf)
		if seen[dev] {
			continue
		}
		vid, err1 := readHex(filepath.Join(dev, "idVendor"))
		pid, err2 := readHex(filepath.Join(dev, "idProduct"))
		if err1 != nil || err2 != nil {
			continue
		}
		seen[dev] = true
		nodes = append(nodes, Node{Name: name, USBDevice: dev, VID: vid, PID: pid})
	}
	return nodes, nil
}

func nodeIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	if err != nil {
		return -1
	}
	return n
}

func readHex(path string) (uint16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	return uint16(v), err
}

// Candidate is a video node whose USB identity matched a board.
type Candidate struct {
	Node
	Device     string
	Extensions []Extension
}

var _ enumerate.Candidate = &Candidate{}

// Address implements enumerate.Candidate.
func (c *Candidate) Address() string {
	return c.Device
}

// Identify implements enumerate.Candidate.
func (c *Candidate) Identify() (uint16, uint16, error) {
	return c.VID, c.PID, nil
}

// Open implements board.Handle. The extension unit is located from the
// raw descriptors of the USB device.
func (c *Candidate) Open() (bridge.Bridge, error) {
	raw, err := os.ReadFile(filepath.Join(c.USBDevice, "descriptors"))
	if err != nil {
		return nil, link.ConnectionError("descriptors", err)
	}
	units, err := ParseExtensionUnits(raw)
	if err != nil {
		return nil, err
	}
	ext, unit, ok := FindExtension(c.Extensions, units)
	if !ok {
		return nil, status.Errorf(status.KindConnection, status.CodeNotSupported, "open", "%s has no known extension unit", c.Device)
	}
	glog.V(2).Infof("%s: %s extension unit %d", c.Device, ext.Name, unit.ID)
	b := bridge.NewVendorBridge(bridge.NewPropertyControl(ext.Factory(c.Device, unit.ID)), nil)
	if err := b.Open(); err != nil {
		return nil, err
	}
	return b, nil
}

// Close implements board.Handle.
func (c *Candidate) Close() error {
	return nil
}

// Enumerator finds boards among the video nodes.
type Enumerator struct {
	// SysfsRoot and DevDir default to DefaultSysfsRoot and DefaultDevDir.
	SysfsRoot string
	DevDir    string
	// Extensions defaults to VendorExtensionList.
	Extensions []Extension
}

var _ enumerate.Enumerator = &Enumerator{}

// Enumerate implements enumerate.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context, listener enumerate.Listener, list board.List) error {
	root, devDir, exts := e.SysfsRoot, e.DevDir, e.Extensions
	if root == "" {
		root = DefaultSysfsRoot
	}
	if devDir == "" {
		devDir = DefaultDevDir
	}
	if exts == nil {
		exts = VendorExtensionList
	}
	nodes, err := ListNodes(root)
	if err != nil {
		return err
	}
	var candidates []enumerate.Candidate
	for _, node := range nodes {
		if _, ok := list.Search(node.VID, node.PID); !ok {
			continue
		}
		candidates = append(candidates, &Candidate{
			Node:       node,
			Device:     filepath.Join(devDir, node.Name),
			Extensions: exts,
		})
	}
	glog.V(2).Infof("uvc: %d matching video nodes", len(candidates))
	return enumerate.Scan(ctx, candidates, list, listener, 1)
}
