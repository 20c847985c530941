// Package dma runs a ping-pong transfer chain between a device and a
// handler.
//
// The engine side moves one buffer at a time to or from the device while the
// next buffer waits in the armed slot. Each completed buffer goes to the
// handler, which returns the buffer to arm next. While the handler works on
// buffer k the engine is already transferring buffer k+1.
package dma

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var ErrRunning = errors.New("dma: chain already running")

// Chain is a two buffer transfer loop. Transfer and Handler must be set
// before Start and not changed while the chain runs.
type Chain[T any] struct {
	// Transfer moves buf to or from the device. It should return promptly
	// once ctx is cancelled.
	Transfer func(ctx context.Context, buf []T) error
	// Handler is called with each completed buffer and returns the buffer
	// to transfer after the one in flight.
	Handler func(done []T) []T

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	finished chan struct{}
	err      error

	completed atomic.Uint64
}

// Start launches the engine with first in flight and second armed.
func (c *Chain[T]) Start(first, second []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	armed := make(chan []T, 1)
	done := make(chan []T, 1)
	armed <- second

	g.Go(func() error { return c.engine(ctx, first, armed, done) })
	g.Go(func() error { return c.handle(ctx, armed, done) })

	c.running = true
	c.cancel = cancel
	c.err = nil
	c.finished = make(chan struct{})
	go func(finished chan struct{}) {
		err := g.Wait()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(finished)
	}(c.finished)

	return nil
}

func (c *Chain[T]) engine(ctx context.Context, buf []T, armed <-chan []T, done chan<- []T) error {
	for ctx.Err() == nil {
		if err := c.Transfer(ctx, buf); err != nil {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.completed.Add(1)

		select {
		case done <- buf:
		case <-ctx.Done():
			return nil
		}
		select {
		case buf = <-armed:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (c *Chain[T]) handle(ctx context.Context, armed chan<- []T, done <-chan []T) error {
	for {
		select {
		case buf := <-done:
			next := c.Handler(buf)
			select {
			case armed <- next:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop cancels the chain and waits for the in-flight transfer and handler to
// return. Stopping a stopped chain does nothing.
func (c *Chain[T]) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, finished := c.cancel, c.finished
	c.mu.Unlock()

	cancel()
	<-finished
}

// Done is closed when the chain has ended, by Stop or by a transfer error.
// It is nil before the first Start.
func (c *Chain[T]) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Running reports whether Start was called without a matching Stop.
func (c *Chain[T]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Err returns the transfer error that ended the last run, if any.
func (c *Chain[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Completed returns the number of transfers finished since the chain was
// created.
func (c *Chain[T]) Completed() uint64 {
	return c.completed.Load()
}
