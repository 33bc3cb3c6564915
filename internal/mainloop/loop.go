// Package mainloop provides the single execution context on which display
// state is mutated and change notifications are delivered.
package mainloop

import (
	"context"
	"errors"
	"log/slog"
)

var ErrStopped = errors.New("render loop stopped")

// Loop runs posted closures one at a time, in post order, on the goroutine
// that called Run.
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	logger  *slog.Logger
}

func New(queueSize int, logger *slog.Logger) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Loop{
		tasks:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		logger:  logger.With("component", "render-loop"),
	}
}

// Run executes tasks until ctx is done. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)

	l.logger.Debug("render loop started")
	for {
		select {
		case fn := <-l.tasks:
			l.run(fn)
		case <-ctx.Done():
			l.logger.Debug("render loop stopped", "reason", ctx.Err())
			return
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("render task panicked", "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn from any goroutine. Tasks posted after the loop stopped are dropped.
// Calling Post from a task while the queue is full blocks the loop; tasks
// should not post to their own loop.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopped:
	}
}

// Do posts fn and waits for it to finish
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
