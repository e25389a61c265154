// Package channel implements the main-side worker channel: spawning a
// background execution context, the two-state handshake, and the relay of
// steady-state messages into the compute module.
//
// # Protocol
//
//	AwaitingHandshake ──"initialized"──▶ Ready
//	        │
//	        └── any other first message, closure, timeout ──▶ Failed
//
// Ready and Failed are terminal. No steady-state message is sent or accepted
// before the sentinel has been observed.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/eventloop"
)

// DefaultHandshakeTimeout bounds the wait for the worker's first message.
const DefaultHandshakeTimeout = 10 * time.Second

// State is the handshake state of a worker channel.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Spawner starts a background execution context and returns the main-side
// end of its port.
type Spawner interface {
	Spawn(ctx context.Context) (Port, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context) (Port, error)

func (f SpawnerFunc) Spawn(ctx context.Context) (Port, error) { return f(ctx) }

// Module is the part of the compute module the channel talks to.
type Module interface {
	SetWorker(ctx context.Context, worker harness.Sender) error
	OnWorkerMessage(ctx context.Context, msg harness.Message) error
}

// Config configures a Channel.
type Config struct {
	// HandshakeTimeout bounds the wait for the first worker message.
	// Zero waits indefinitely; negative uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Logger overrides the package logger.
	Logger *zap.Logger
}

// Channel opens workers for a module.
type Channel struct {
	spawner    Spawner
	module     Module
	dispatcher eventloop.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Channel. Module calls are scheduled through dispatcher.
func New(spawner Spawner, module Module, dispatcher eventloop.Dispatcher, cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}
	timeout := cfg.HandshakeTimeout
	if timeout < 0 {
		timeout = DefaultHandshakeTimeout
	}
	if dispatcher == nil {
		dispatcher = eventloop.Inline
	}
	return &Channel{
		spawner:    spawner,
		module:     module,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger,
	}
}

// Open spawns a worker and waits for its handshake. On success the module
// has been given the worker's send capability and every later worker message
// is forwarded to Module.OnWorkerMessage. There is no retry.
func (c *Channel) Open(ctx context.Context) (*Worker, error) {
	port, err := c.spawner.Spawn(ctx)
	if err != nil {
		return nil, errors.SpawnFailed(err)
	}

	w := &Worker{
		port:   port,
		logger: c.logger,
		done:   make(chan struct{}),
	}

	if err := c.awaitHandshake(ctx, port); err != nil {
		w.state.Store(int32(StateFailed))
		_ = port.Close()
		close(w.done)
		c.logger.Warn("worker handshake failed", zap.Error(err))
		return nil, err
	}
	w.state.Store(int32(StateReady))
	c.logger.Debug("worker handshake complete")

	err = eventloop.Call(ctx, c.dispatcher, func() error {
		return c.module.SetWorker(ctx, w)
	})
	if err != nil {
		_ = w.Close()
		return nil, errors.HandlerFailed("set_worker", err)
	}

	relayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	go c.relay(relayCtx, w)

	return w, nil
}

func (c *Channel) awaitHandshake(ctx context.Context, port Port) error {
	var timeout <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case msg, ok := <-port.Messages():
		if !ok {
			return errors.ChannelClosed()
		}
		if !msg.IsSentinel() {
			return errors.UnexpectedFirstMessage(msg)
		}
		return nil
	case <-timeout:
		return errors.HandshakeTimeout(c.timeout)
	case <-ctx.Done():
		return errors.HandshakeCanceled(ctx.Err())
	}
}

// relay forwards worker messages to the module in arrival order.
func (c *Channel) relay(ctx context.Context, w *Worker) {
	defer close(w.done)
	for msg := range w.port.Messages() {
		c.logger.Debug("main received", zap.ByteString("data", msg))
		ok := c.dispatcher.Dispatch(func() {
			if err := c.module.OnWorkerMessage(ctx, msg); err != nil {
				c.logger.Error("worker message handler failed",
					zap.Error(errors.HandlerFailed("on_worker_message", err)))
			}
		})
		if !ok {
			c.logger.Debug("event loop stopped, dropping worker messages")
			return
		}
	}
}

// Worker is the main-side handle of a background execution context.
// It is the send capability handed to the module via SetWorker.
type Worker struct {
	port      Port
	logger    *zap.Logger
	state     atomic.Int32
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// State returns the current handshake state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Post sends msg to the worker. Only valid once the handshake is complete.
func (w *Worker) Post(msg harness.Message) error {
	if s := w.State(); s != StateReady {
		return errors.NotReady(s.String())
	}
	return w.port.Post(msg)
}

// Done is closed when the relay stops, either because the worker closed its
// end or because Close was called.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Close terminates the worker channel and waits for the relay to stop.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		if w.State() == StateReady {
			w.state.Store(int32(StateClosed))
		}
		_ = w.port.Close()
		if w.cancel != nil {
			w.cancel()
		} else {
			// relay never started
			select {
			case <-w.done:
			default:
				close(w.done)
			}
		}
	})
	<-w.done
	return nil
}
