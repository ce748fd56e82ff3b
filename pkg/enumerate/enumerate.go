// Package enumerate finds boards on the available transports and hands
// them out as descriptors.
package enumerate

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/board"
	"golang.org/x/sync/errgroup"
)

// Listener receives the boards found by an Enumerator. The listener owns
// the descriptor it receives and must Open or Release it. Returning true
// stops the enumeration.
type Listener interface {
	OnEnumerate(d *board.Descriptor) bool
}

// ListenerFunc is the func form of Listener.
type ListenerFunc func(d *board.Descriptor) bool

// OnEnumerate implements Listener.
func (f ListenerFunc) OnEnumerate(d *board.Descriptor) bool {
	return f(d)
}

// Enumerator finds boards of list on one transport.
type Enumerator interface {
	Enumerate(ctx context.Context, listener Listener, list board.List) error
}

// Candidate is a device found on a transport which is not identified yet.
type Candidate interface {
	board.Handle
	// Identify reads the (VID, PID) of the device.
	Identify() (vid, pid uint16, err error)
	// Address locates the device on its transport.
	Address() string
}

// SearchBoard identifies c and looks it up in list. On a match the
// listener receives a descriptor owning c, otherwise c is closed. It
// returns whether the listener asked to stop.
func SearchBoard(c Candidate, list board.List, listener Listener) (bool, error) {
	vid, pid, err := c.Identify()
	if err != nil {
		c.Close()
		return false, err
	}
	entry, ok := list.Search(vid, pid)
	if !ok {
		glog.V(2).Infof("%s: unknown board %04x:%04x", c.Address(), vid, pid)
		c.Close()
		return false, nil
	}
	return listener.OnEnumerate(board.NewDescriptor(entry, c.Address(), c)), nil
}

// Scan runs SearchBoard over candidates. Identification runs on up to
// parallel candidates at once, listener calls are serialised. Failing
// candidates are logged and skipped.
func Scan(ctx context.Context, candidates []Candidate, list board.List, listener Listener, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lock sync.Mutex
	stopped := false
	serial := ListenerFunc(func(d *board.Descriptor) bool {
		lock.Lock()
		defer lock.Unlock()
		if stopped {
			d.Release()
			return true
		}
		if listener.OnEnumerate(d) {
			stopped = true
			cancel()
		}
		return stopped
	})

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, c := range candidates {
		c := c
		if ctx.Err() != nil {
			c.Close()
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				c.Close()
				return nil
			}
			if _, err := SearchBoard(c, list, serial); err != nil {
				glog.Warningf("%s: %v", c.Address(), err)
			}
			return nil
		})
	}
	g.Wait()
	lock.Lock()
	defer lock.Unlock()
	if stopped {
		return nil
	}
	return ctx.Err()
}

// Discover runs enumerators concurrently and collects the descriptors
// found.
func Discover(ctx context.Context, list board.List, enumerators ...Enumerator) ([]*board.Descriptor, error) {
	var lock sync.Mutex
	var found []*board.Descriptor
	collect := ListenerFunc(func(d *board.Descriptor) bool {
		lock.Lock()
		found = append(found, d)
		lock.Unlock()
		return false
	})
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range enumerators {
		e := e
		g.Go(func() error {
			return e.Enumerate(ctx, collect, list)
		})
	}
	err := g.Wait()
	return found, err
}
