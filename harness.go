package harness

import "context"

const (
	// Sentinel is the first message a worker posts once its setup is complete.
	Sentinel = "initialized"

	// ErrorReply is the reply a request/response worker sends when its handler raises.
	ErrorReply = "error"
)

// Message is an opaque payload exchanged with a worker.
// Ports copy messages on post, so neither side may observe the other's mutations.
type Message []byte

// IsSentinel reports whether m is the handshake sentinel.
func (m Message) IsSentinel() bool {
	return string(m) == Sentinel
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	c := make(Message, len(m))
	copy(c, m)
	return c
}

// Sender is a capability to post messages into another execution context.
type Sender interface {
	Post(msg Message) error
}

// Module is the main-thread view of the compute module.
// Implementations are not safe for concurrent use; callers serialize access
// through a single event loop.
type Module interface {
	Entry(ctx context.Context) error
	SetScale(ctx context.Context, factor float64) error
	PushKeyEvent(ctx context.Context, key string) error
	PushTouchEvent(ctx context.Context, x, y float64, phase string) error
	SetWorker(ctx context.Context, worker Sender) error
	OnWorkerMessage(ctx context.Context, msg Message) error
}

// WorkerModule is the compute module as loaded inside a background worker.
type WorkerModule interface {
	// SetGlobalScope binds the worker's outbound port so the module can
	// post progress back to the main context.
	SetGlobalScope(ctx context.Context, scope Sender) error

	// OnMessage handles an inbound message in the relay variant.
	OnMessage(ctx context.Context, msg Message) error

	// Inc handles an inbound message in the request/response variant.
	Inc(ctx context.Context, msg Message) (Message, error)
}
