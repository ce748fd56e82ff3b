package board

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/status"
)

// Factory builds the component tree of a board on an opened bridge.
type Factory func(b bridge.Bridge) (*Board, error)

// Entry associates a board identity with its factory.
type Entry struct {
	VID     uint16
	PID     uint16
	Name    string
	Factory Factory
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%04x:%04x]", e.Name, e.VID, e.PID)
}

// List is an ordered list of known boards.
type List []Entry

// Search returns the first entry matching (vid, pid).
func (l List) Search(vid, pid uint16) (Entry, bool) {
	for _, e := range l {
		if e.VID == vid && e.PID == pid {
			return e, true
		}
	}
	return Entry{}, false
}

// Handle is the transport side of a found board, able to open its bridge
// once.
type Handle interface {
	Open() (bridge.Bridge, error)
	Close() error
}

// Descriptor is a found but not yet opened board. It owns the transport
// handle until Open transfers it to an Instance or Release drops it.
type Descriptor struct {
	Entry
	// Address locates the board on its transport, for display.
	Address string

	lock   sync.Mutex
	handle Handle
}

// NewDescriptor creates a Descriptor owning handle.
func NewDescriptor(entry Entry, address string, handle Handle) *Descriptor {
	return &Descriptor{Entry: entry, Address: address, handle: handle}
}

func (d *Descriptor) String() string {
	if d.Address == "" {
		return d.Entry.String()
	}
	return d.Entry.String() + " at " + d.Address
}

// Open opens the bridge and builds the board. The handle is consumed on
// success, a second Open fails with an InUse error.
func (d *Descriptor) Open() (*Instance, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.handle == nil {
		return nil, status.Errorf(status.KindInUse, status.CodeNotAvailable, "open", "%s already opened or released", d.Entry)
	}
	b, err := d.handle.Open()
	if err != nil {
		return nil, err
	}
	brd, err := d.Factory(b)
	if err != nil {
		b.Close()
		return nil, err
	}
	d.handle = nil
	glog.Infof("opened %s", d)
	return &Instance{bridge: b, board: brd, entry: d.Entry}, nil
}

// Release drops the handle without opening it.
func (d *Descriptor) Release() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.handle == nil {
		return nil
	}
	err := d.handle.Close()
	d.handle = nil
	return err
}

// Instance is an opened board owning its bridge and component tree.
type Instance struct {
	bridge bridge.Bridge
	board  *Board
	entry  Entry
}

// NewInstance creates an Instance from an opened bridge and board.
func NewInstance(entry Entry, b bridge.Bridge, brd *Board) *Instance {
	return &Instance{bridge: b, board: brd, entry: entry}
}

// Entry returns the board list entry the instance was created from.
func (i *Instance) Entry() Entry {
	return i.entry
}

// Bridge returns the command channel of the board.
func (i *Instance) Bridge() bridge.Bridge {
	return i.bridge
}

// Board returns the component tree.
func (i *Instance) Board() *Board {
	return i.board
}

// Close closes the components before the bridge.
func (i *Instance) Close() error {
	var errs framework.AggregatedError
	errs.Add(i.board.Close(), i.bridge.Close())
	return errs.Aggregate()
}
