package enumerate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vendorCandidate(addr string, vid, pid uint16) *VendorCandidate {
	dev := linktest.NewDevice().HandleBoardInfo(vid, pid, "test", []uint16{1, 0, 0, 1, 1, 0})
	return &VendorCandidate{
		Addr: addr,
		NewControl: func() *bridge.VendorControl {
			return bridge.NewStreamControl(dev.StreamLink(link.EthTCPMaxPayload))
		},
	}
}

type staticEnumerator []Candidate

func (e staticEnumerator) Enumerate(ctx context.Context, listener Listener, list board.List) error {
	return Scan(ctx, e, list, listener, 1)
}

func TestSearchBoardFirstMatch(t *testing.T) {
	var invoked []string
	factory := func(name string) board.Factory {
		return func(bridge.Bridge) (*board.Board, error) {
			invoked = append(invoked, name)
			return board.New(), nil
		}
	}
	list := board.List{
		{VID: 0x1234, PID: 0x0001, Name: "F1", Factory: factory("F1")},
		{VID: 0x1234, PID: 0x0001, Name: "F2", Factory: factory("F2")},
	}
	var found []*board.Descriptor
	stop, err := SearchBoard(vendorCandidate("a", 0x1234, 0x0001), list, ListenerFunc(func(d *board.Descriptor) bool {
		found = append(found, d)
		return false
	}))
	require.NoError(t, err)
	assert.False(t, stop)
	require.Len(t, found, 1)
	assert.Equal(t, "F1", found[0].Name)

	inst, err := found[0].Open()
	require.NoError(t, err)
	assert.Equal(t, []string{"F1"}, invoked)
	require.NoError(t, inst.Close())
}

func TestSearchBoardUnknown(t *testing.T) {
	called := false
	stop, err := SearchBoard(vendorCandidate("a", 0x1234, 0x0009), board.List{{VID: 0x1234, PID: 0x0001}},
		ListenerFunc(func(*board.Descriptor) bool { called = true; return true }))
	require.NoError(t, err)
	assert.False(t, stop)
	assert.False(t, called)
}

func TestSearchBoardIdentifyFails(t *testing.T) {
	c := &VendorCandidate{Addr: "x", NewControl: func() *bridge.VendorControl {
		return bridge.NewStreamControl(linktest.NewDevice().StreamLink(link.EthTCPMaxPayload))
	}}
	_, err := SearchBoard(c, board.List{{VID: 1, PID: 1}}, ListenerFunc(func(*board.Descriptor) bool { return true }))
	assert.True(t, status.IsKind(err, status.KindProtocol))
}

func TestScanStops(t *testing.T) {
	list := board.List{{VID: 1, PID: 1, Name: "one"}, {VID: 1, PID: 2, Name: "two"}}
	candidates := staticEnumerator{
		vendorCandidate("bad", 9, 9),
		vendorCandidate("a", 1, 1),
		vendorCandidate("b", 1, 2),
	}
	var names []string
	err := candidates.Enumerate(context.Background(), ListenerFunc(func(d *board.Descriptor) bool {
		names = append(names, d.Name)
		return true
	}), list)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, names)
}

func TestDiscover(t *testing.T) {
	list := board.List{{VID: 1, PID: 1, Name: "one"}, {VID: 1, PID: 2, Name: "two"}}
	found, err := Discover(context.Background(), list,
		staticEnumerator{vendorCandidate("a", 1, 1)},
		staticEnumerator{vendorCandidate("b", 1, 2), vendorCandidate("c", 7, 7)},
	)
	require.NoError(t, err)
	var names []string
	for _, d := range found {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}

type flakyHandle struct {
	lock     sync.Mutex
	failures []error
	opens    int
	bridge   bridge.Bridge
}

func (h *flakyHandle) Open() (bridge.Bridge, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.opens++
	if len(h.failures) > 0 {
		err := h.failures[0]
		h.failures = h.failures[1:]
		return nil, err
	}
	return h.bridge, nil
}

func (h *flakyHandle) Close() error { return nil }

func openedBridge(t *testing.T) bridge.Bridge {
	c := vendorCandidate("a", 1, 1)
	b, err := c.Open()
	require.NoError(t, err)
	return b
}

func TestOpenWithBackoffRetriesConnectionErrors(t *testing.T) {
	refused := status.Connection("open", 111, nil)
	h := &flakyHandle{failures: []error{refused, refused}, bridge: openedBridge(t)}
	d := board.NewDescriptor(board.Entry{Factory: func(bridge.Bridge) (*board.Board, error) { return board.New(), nil }}, "", h)
	inst, err := OpenWithBackoff(context.Background(), d, backoff.NewConstantBackOff(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, h.opens)
	require.NoError(t, inst.Close())
}

func TestOpenWithBackoffPermanent(t *testing.T) {
	h := &flakyHandle{failures: []error{status.Protocol("open", status.CodeFailed), errors.New("unreachable")}}
	d := board.NewDescriptor(board.Entry{}, "", h)
	_, err := OpenWithBackoff(context.Background(), d, backoff.NewConstantBackOff(time.Millisecond))
	assert.True(t, status.IsKind(err, status.KindProtocol))
	assert.Equal(t, 1, h.opens)
}

func TestOpenWithBackoffGivesUp(t *testing.T) {
	refused := status.Connection("open", 111, nil)
	h := &flakyHandle{failures: []error{refused, refused, refused, refused}}
	d := board.NewDescriptor(board.Entry{}, "", h)
	_, err := OpenWithBackoff(context.Background(), d, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2))
	assert.True(t, status.IsKind(err, status.KindConnection))
	assert.Equal(t, 3, h.opens)
}
