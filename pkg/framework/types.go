// Package framework runs the background work of an opened board: data
// readers and frame forwarders.
package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable is a background task stopped by cancelling its context.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is a func as Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}
