package mqtt

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/stream"
	"github.com/robotalks/strata.go/pkg/stream/msgs"
)

// DefaultPublishTimeout bounds the wait for a publish to complete.
const DefaultPublishTimeout = time.Second

// FrameTopic is where frames of board on channel are published.
func FrameTopic(board string, channel uint32) string {
	return fmt.Sprintf("boards/%s/frames/%d", board, channel)
}

// Publisher is a stream.Sink publishing encoded frames.
type Publisher struct {
	Queue   *Queue
	Timeout time.Duration
}

var _ stream.Sink = &Publisher{}

// Write implements stream.Sink.
func (p *Publisher) Write(ctx context.Context, f *msgs.Frame) error {
	payload, err := f.Encode()
	if err != nil {
		return err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Wait(ctx, "publish", p.Queue.Pub(FrameTopic(f.Board, f.Channel), payload))
}

// DataSwitch starts and stops the data of a board.
type DataSwitch interface {
	StartData() error
	StopData() error
}

// Commands serves data/start and data/stop on the topics of a board and
// reports the outcome on boards/<board>/status.
type Commands struct {
	Queue  *Queue
	Board  string
	Switch DataSwitch
}

// Subscribe registers the command handler.
func (c *Commands) Subscribe() *Subscription {
	return c.Queue.Sub("boards/"+c.Board+"/data/+", c.handle)
}

func (c *Commands) handle(topic string, _ []byte) {
	var err error
	switch cmd := path.Base(topic); cmd {
	case "start":
		err = c.Switch.StartData()
	case "stop":
		err = c.Switch.StopData()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	reply := "ok"
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		reply = err.Error()
	}
	c.Queue.Pub("boards/"+c.Board+"/status", []byte(reply))
}
