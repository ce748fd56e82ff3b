// Package stream forwards data frames of an opened board to remote
// consumers.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/status"
	"github.com/robotalks/strata.go/pkg/stream/msgs"
)

// DefaultPollInterval bounds how long the Forwarder waits for a frame
// before checking for cancellation.
const DefaultPollInterval = 100 * time.Millisecond

// Sink consumes forwarded frames.
type Sink interface {
	Write(ctx context.Context, f *msgs.Frame) error
}

// Forwarder moves frames from a queue to sinks. A frame is released once
// every sink has been written.
type Forwarder struct {
	Board string
	Host  string
	Queue *bridge.FrameQueue
	Sinks []Sink
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	sequence uint64
}

var _ framework.Runnable = &Forwarder{}

// Name implements framework.Named.
func (f *Forwarder) Name() string {
	return "forwarder[" + f.Board + "]"
}

// Run implements framework.Runnable. It returns nil when the queue is
// closed.
func (f *Forwarder) Run(ctx context.Context) error {
	poll := f.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := f.Queue.Acquire(poll)
		if err != nil {
			if errors.Is(err, bridge.ErrQueueClosed) {
				return nil
			}
			if errors.Is(err, status.ErrTimeout) {
				continue
			}
			return err
		}
		f.forward(ctx, frame)
	}
}

func (f *Forwarder) forward(ctx context.Context, frame *bridge.Frame) {
	defer frame.Release()
	msg := msgs.NewFrame(f.Board, f.Host, f.sequence, frame)
	f.sequence++
	for _, sink := range f.Sinks {
		if err := sink.Write(ctx, msg); err != nil {
			glog.Warningf("%s: frame %d: %v", f.Name(), msg.Sequence, err)
		}
	}
}

// SinkFunc is the func form of Sink.
type SinkFunc func(ctx context.Context, f *msgs.Frame) error

// Write implements Sink.
func (fn SinkFunc) Write(ctx context.Context, f *msgs.Frame) error {
	return fn(ctx, f)
}
