package sh

import (
	"context"
	"errors"
	"testing"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/memory"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	closed int
}

func (b *fakeBridge) Control() bridge.Control { return nil }
func (b *fakeBridge) I2C() bridge.I2C         { return nil }
func (b *fakeBridge) SPI() bridge.SPI         { return nil }
func (b *fakeBridge) GPIO() bridge.GPIO       { return nil }
func (b *fakeBridge) Data() bridge.Data       { return nil }
func (b *fakeBridge) Close() error {
	b.closed++
	return nil
}

func (b *fakeBridge) VersionInfo() []uint16 { return []uint16{2, 1, 0, 3} }

type fakeHandle struct {
	bridge  *fakeBridge
	openErr error
	closed  int
}

func (h *fakeHandle) Open() (bridge.Bridge, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	return h.bridge, nil
}

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

var testEntry = board.Entry{VID: 0x058B, PID: 0x6010, Name: "debug", Factory: func(b bridge.Bridge) (*board.Board, error) {
	brd := board.New()
	err := brd.AddComponent(component.NewDebugMemory(memory.NewLocal[uint32, uint32](memory.NewMap[uint32, uint32]()), 0))
	return brd, err
}}

func testShell(handles ...*fakeHandle) *Shell {
	return &Shell{
		Discover: func(ctx context.Context) ([]*board.Descriptor, error) {
			found := make([]*board.Descriptor, len(handles))
			for n, h := range handles {
				found[n] = board.NewDescriptor(testEntry, "fake:"+string(rune('a'+n)), h)
			}
			return found, nil
		},
	}
}

func TestOpenReleasesOthers(t *testing.T) {
	handles := []*fakeHandle{{bridge: &fakeBridge{}}, {bridge: &fakeBridge{}}, {bridge: &fakeBridge{}}}
	s := testShell(handles...)
	found, err := s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 3)

	require.NoError(t, s.Open(context.Background(), 1))
	require.NotNil(t, s.Current)
	assert.Equal(t, "fake:b", s.Address)
	assert.Empty(t, s.Found)
	assert.Equal(t, 1, handles[0].closed)
	assert.Equal(t, 0, handles[1].closed)
	assert.Equal(t, 1, handles[2].closed)

	require.NoError(t, s.Close())
	assert.Nil(t, s.Current)
	assert.Equal(t, 1, handles[1].bridge.closed)
}

func TestOpenOutOfRange(t *testing.T) {
	s := testShell(&fakeHandle{bridge: &fakeBridge{}})
	_, err := s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	err = s.Open(context.Background(), 1)
	assert.Equal(t, status.CodeOutOfBounds, status.CodeOf(err))
	assert.Len(t, s.Found, 1)
}

func TestOpenFailureKeepsOthers(t *testing.T) {
	failing := &fakeHandle{openErr: status.Errorf(status.KindProtocol, status.CodeFailed, "open", "bad")}
	other := &fakeHandle{bridge: &fakeBridge{}}
	s := testShell(failing, other)
	_, err := s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	assert.Error(t, s.Open(context.Background(), 0))
	assert.Nil(t, s.Current)
	assert.Equal(t, 1, failing.closed)
	require.Len(t, s.Found, 1)
	require.NoError(t, s.Open(context.Background(), 0))
	assert.NotNil(t, s.Current)
}

func TestDiscoverReleasesPrevious(t *testing.T) {
	h := &fakeHandle{bridge: &fakeBridge{}}
	s := testShell(h)
	_, err := s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	_, err = s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.closed)

	s.Discover = func(context.Context) ([]*board.Descriptor, error) {
		return nil, errors.New("scan failed")
	}
	_, err = s.DiscoverBoards(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Found)
	assert.Equal(t, 2, h.closed)
}

func TestInfo(t *testing.T) {
	s := testShell(&fakeHandle{bridge: &fakeBridge{}})
	_, err := s.DiscoverBoards(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background(), 0))

	info := s.Info()
	assert.Equal(t, "debug", info.Name)
	assert.Equal(t, "fake:a", info.Address)
	assert.Equal(t, []uint16{2, 1, 0, 3}, info.Version)
	assert.Equal(t, []ComponentInfo{{Type: "debug memory", ID: 0}}, info.Components)
	assert.Equal(t, "debug [058b:6010] at fake:a\nversion [2 1 0 3]\n  debug memory 0", info.String())

	mem, ok := Component[*component.DebugMemory](s)
	assert.True(t, ok)
	assert.NotNil(t, mem)
	_, ok = Component[component.Temperature](s)
	assert.False(t, ok)
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		arg  string
		bits int
		val  uint64
		ok   bool
	}{
		{"0x10", 8, 16, true},
		{"255", 8, 255, true},
		{"256", 8, 0, false},
		{"-1", 16, 0, false},
		{"0xFFFFFFFF", 32, 0xFFFFFFFF, true},
	}
	for _, test := range tests {
		v, err := ParseUint("X", test.arg, test.bits)
		if !test.ok {
			assert.Error(t, err, test.arg)
			continue
		}
		require.NoError(t, err, test.arg)
		assert.Equal(t, test.val, v)
	}
}
