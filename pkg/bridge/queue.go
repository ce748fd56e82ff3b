package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotalks/strata.go/pkg/status"
)

// DefaultQueueSize is the default number of frames a FrameQueue holds.
const DefaultQueueSize = 16

// ErrQueueClosed is returned by Acquire after the queue is closed.
var ErrQueueClosed = status.New(status.KindConnection, status.CodeAborted, "acquire", "frame queue closed")

// Frame is a payload received from the streaming endpoint. Every acquired
// Frame must be released. Frames are not reused, only their Data buffers,
// so a late Release of a frame never touches a newer one.
type Frame struct {
	Timestamp      time.Time
	VirtualChannel uint8
	Data           []byte

	queue    *FrameQueue
	released atomic.Bool
}

// Release returns the frame buffer to its queue. Only the first call has
// effect, Data must not be used afterwards.
func (f *Frame) Release() {
	if f.released.CompareAndSwap(false, true) && f.queue != nil {
		f.queue.recycle(f.Data)
	}
}

// FrameQueue is a bounded FIFO of frames with a free list of buffers. When
// full, the oldest queued frame is dropped.
type FrameQueue struct {
	Metrics *Metrics

	ready   chan *Frame
	free    chan []byte
	done    chan struct{}
	pushing sync.Mutex
	closed  sync.Once
	dropped atomic.Uint64
}

// NewFrameQueue creates a FrameQueue holding up to size frames.
func NewFrameQueue(size int) *FrameQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &FrameQueue{
		ready: make(chan *Frame, size),
		free:  make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

// Get returns a new unqueued frame with room for size bytes, reusing a
// released buffer when one is large enough.
func (q *FrameQueue) Get(size int) *Frame {
	var buf []byte
	select {
	case buf = <-q.free:
	default:
	}
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	return &Frame{Data: buf[:size], queue: q}
}

// Push queues a frame obtained with Get.
func (q *FrameQueue) Push(f *Frame) {
	q.pushing.Lock()
	defer q.pushing.Unlock()
	select {
	case <-q.done:
		f.Release()
		return
	default:
	}
	q.Metrics.frame()
	select {
	case q.ready <- f:
		return
	default:
	}
	select {
	case old := <-q.ready:
		old.Release()
		q.dropped.Add(1)
		q.Metrics.drop()
	default:
	}
	q.ready <- f
}

// Acquire takes the oldest frame. A negative timeout waits until a frame
// arrives or the queue is closed, zero does not wait.
func (q *FrameQueue) Acquire(timeout time.Duration) (*Frame, error) {
	select {
	case f := <-q.ready:
		return f, nil
	default:
	}
	var expired <-chan time.Time
	if timeout == 0 {
		select {
		case <-q.done:
			return nil, ErrQueueClosed
		default:
			return nil, status.Timeout(status.KindConnection, "acquire", timeout)
		}
	} else if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case f := <-q.ready:
		return f, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-expired:
		return nil, status.Timeout(status.KindConnection, "acquire", timeout)
	}
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	return len(q.ready)
}

// Dropped returns the number of frames dropped on overflow.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close wakes waiting consumers and releases queued frames.
func (q *FrameQueue) Close() {
	q.closed.Do(func() {
		q.pushing.Lock()
		close(q.done)
		q.pushing.Unlock()
		for {
			select {
			case f := <-q.ready:
				f.Release()
			default:
				return
			}
		}
	})
}

func (q *FrameQueue) recycle(buf []byte) {
	select {
	case q.free <- buf:
	default:
	}
}
