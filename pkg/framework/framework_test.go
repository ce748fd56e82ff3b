package framework

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errA = errors.New("a")
	errB = errors.New("b")
)

func TestAggregatedError(t *testing.T) {
	tests := []struct {
		errs []error
		msg  string
	}{
		{nil, ""},
		{[]error{nil, errA}, "a"},
		{[]error{errA, nil, errB}, "2 errors: a; b"},
	}
	for _, test := range tests {
		var errs AggregatedError
		err := errs.Add(test.errs...).Aggregate()
		if test.msg == "" {
			assert.NoError(t, err)
			continue
		}
		assert.EqualError(t, err, test.msg)
		assert.ErrorIs(t, err, errA)
	}
}

func TestRunnerWait(t *testing.T) {
	r := NewRunner()
	started := make(chan struct{})
	r.Go(
		NamedRun("blocking", RunFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})),
		RunFunc(func(context.Context) error { return errA }),
	)
	<-started
	r.Stop()
	err := r.Wait()
	assert.Equal(t, errA, err)
}

func TestRunnerWaitEmpty(t *testing.T) {
	assert.NoError(t, NewRunner().Wait())
}

type countingCloser struct {
	closed int
	ch     chan struct{}
}

func (c *countingCloser) Close() error {
	c.closed++
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
	return nil
}

var _ io.Closer = &countingCloser{}

func TestRunWithContextCloser(t *testing.T) {
	c := &countingCloser{}
	require.NoError(t, RunWithContextCloser(context.Background(), c, func() error { return nil }))
	assert.Equal(t, 1, c.closed)

	ch := make(chan struct{})
	c = &countingCloser{ch: ch}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-ch
		return io.EOF
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.closed)
}
