//go:build !linux

package uvc

import (
	"sync"

	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Link is an extension unit of a video device node. Extension units are
// only reachable on Linux.
type Link struct {
	sync.Mutex

	Device string
	Unit   uint8
}

var _ link.PropertyLink = &Link{}

// NewLink creates the link to unit on device.
func NewLink(device string, unit uint8) *Link {
	return &Link{Device: device, Unit: unit}
}

// Open implements link.PropertyLink.
func (l *Link) Open() error { return status.NotImplemented("uvc") }

// Close implements link.PropertyLink.
func (l *Link) Close() error { return nil }

// SetProperty implements link.PropertyLink.
func (l *Link) SetProperty(byte, []byte) error { return status.NotImplemented("setProperty") }

// GetProperty implements link.PropertyLink.
func (l *Link) GetProperty(byte, []byte) error { return status.NotImplemented("getProperty") }

// PropertySize implements link.PropertyLink.
func (l *Link) PropertySize(byte) (int, error) { return 0, status.NotImplemented("propertySize") }
