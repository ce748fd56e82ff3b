package enumerate

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// VendorCandidate is a device speaking the vendor command protocol. The
// constructors create fresh links each time so identification and opening
// use separate connections.
type VendorCandidate struct {
	Addr        string
	NewControl  func() *bridge.VendorControl
	NewDataLink func() link.Link
	QueueSize   int
	Metrics     *bridge.Metrics
}

// Address implements Candidate.
func (c *VendorCandidate) Address() string {
	return c.Addr
}

// Identify implements Candidate.
func (c *VendorCandidate) Identify() (uint16, uint16, error) {
	ctl := c.NewControl()
	if err := ctl.Open(); err != nil {
		return 0, 0, err
	}
	defer ctl.Close()
	info, err := bridge.ReadBoardInfo(ctl)
	if err != nil {
		return 0, 0, err
	}
	return info.VID, info.PID, nil
}

// Open implements board.Handle.
func (c *VendorCandidate) Open() (bridge.Bridge, error) {
	var data link.Link
	if c.NewDataLink != nil {
		data = c.NewDataLink()
	}
	b := bridge.NewVendorBridge(c.NewControl(), data)
	b.QueueSize = c.QueueSize
	b.Metrics = c.Metrics
	if err := b.Open(); err != nil {
		return nil, err
	}
	return b, nil
}

// Close implements board.Handle. Nothing is held between calls.
func (c *VendorCandidate) Close() error {
	return nil
}

// DefaultBackOff is the retry policy of OpenWithBackoff when none is
// given.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// OpenWithBackoff opens d, retrying connection errors with policy. Other
// errors fail immediately.
func OpenWithBackoff(ctx context.Context, d *board.Descriptor, policy backoff.BackOff) (*board.Instance, error) {
	if policy == nil {
		policy = DefaultBackOff()
	}
	var inst *board.Instance
	op := func() error {
		var err error
		inst, err = d.Open()
		if err != nil && !status.IsKind(err, status.KindConnection) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		glog.Warningf("open %s: %v, retry in %s", d, err, next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return inst, nil
}
