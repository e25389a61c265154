// Package eventloop provides the single-threaded cooperative dispatcher the
// harness runs its callbacks on.
//
// The compute module instance is not safe for concurrent use, so every call
// into it (resize, input, worker messages) is dispatched onto one loop and
// runs to completion before the next one starts.
package eventloop

import (
	"context"
	"sync"

	"github.com/wippyai/canvas-harness/errors"
)

// Dispatcher schedules callbacks onto a single execution context.
// Dispatch never blocks; it reports false when the context no longer accepts work.
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func()) bool

func (f DispatcherFunc) Dispatch(fn func()) bool { return f(fn) }

// Inline runs callbacks immediately on the calling goroutine.
// Suitable when the caller already owns the module, as in tests.
var Inline Dispatcher = DispatcherFunc(func(fn func()) bool {
	fn()
	return true
})

// Loop is a FIFO callback queue drained by a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// New creates a loop. Call Run to start draining it.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Dispatch enqueues fn. Callbacks run in the order they were dispatched.
func (l *Loop) Dispatch(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is done or Stop is called.
// Callbacks already queued when Stop is called still run.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
			continue
		}
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			return
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.mu.Unlock()
			return
		}
	}
}

// Stop rejects further callbacks and lets Run return once the queue is drained.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Call runs fn on d and waits for it to finish. It must not be called from
// the dispatcher's own execution context.
func Call(ctx context.Context, d Dispatcher, fn func() error) error {
	result := make(chan error, 1)
	if !d.Dispatch(func() { result <- fn() }) {
		return errors.Closed("event loop")
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
