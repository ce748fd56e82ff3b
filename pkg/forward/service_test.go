package forward

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/boards"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/config"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/link/linktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcu7Descriptor(t *testing.T) *board.Descriptor {
	entry, ok := boards.DefaultList.Search(boards.VendorID, boards.PIDRadarBaseboardMCU7)
	require.True(t, ok)
	dev := linktest.NewDevice().HandleBoardInfo(boards.VendorID, boards.PIDRadarBaseboardMCU7, "mcu7", []uint16{1, 0, 0, 1, 1, 0})
	cand := &enumerate.VendorCandidate{
		Addr:        "test:0",
		NewControl:  func() *bridge.VendorControl { return bridge.NewUsbControl(dev.ControlLink(link.UsbControlMaxPayload)) },
		NewDataLink: func() link.Link { return linktest.NewDataLink() },
	}
	return board.NewDescriptor(entry, cand.Addr, cand)
}

func TestStartOpensBoards(t *testing.T) {
	conf := *config.Default()
	conf.MQTTURL = ""
	s := New(&conf)
	s.Discover = func(context.Context) ([]*board.Descriptor, error) {
		return []*board.Descriptor{mcu7Descriptor(t)}, nil
	}
	runner := framework.NewRunner()
	require.NoError(t, s.Start(runner.Context, runner))
	require.Len(t, s.Boards(), 1)
	assert.Equal(t, "058b-0251-0", BoardName(s.Boards()[0], 0))

	runner.Stop()
	assert.NoError(t, runner.Wait())
	s.Close()
	assert.Empty(t, s.Boards())
}

func TestMetricsHandler(t *testing.T) {
	s := New(config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(s.Handler(ctx))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "strata_data_frames_total")
}
