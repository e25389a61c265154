package channel

import (
	"sync"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
)

// Port is one end of an ordered, copy-semantics message pipe between two
// execution contexts.
type Port interface {
	// Post queues msg for the peer. It never blocks.
	Post(msg harness.Message) error

	// Messages delivers inbound messages in the order they were posted.
	// It is closed when the peer closes (after pending messages are
	// delivered) or when this end is closed.
	Messages() <-chan harness.Message

	// Close stops delivery in both directions.
	Close() error
}

// Pipe creates a connected pair of in-process ports.
func Pipe() (Port, Port) {
	ab := newQueue()
	ba := newQueue()
	return &pipeEnd{in: ba, out: ab}, &pipeEnd{in: ab, out: ba}
}

type pipeEnd struct {
	in  *queue
	out *queue
}

func (p *pipeEnd) Post(msg harness.Message) error {
	return p.out.push(msg)
}

func (p *pipeEnd) Messages() <-chan harness.Message {
	return p.in.out
}

func (p *pipeEnd) Close() error {
	p.out.close()
	p.in.abandon()
	return nil
}

// Inbox is the receiving half of a port backed by an external transport
// such as a Web Worker. Deliver never blocks, so it is safe to call from
// transport callbacks that must return promptly.
type Inbox struct {
	q *queue
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{q: newQueue()}
}

// Deliver queues msg for Messages. It fails once the inbox is closed.
func (in *Inbox) Deliver(msg harness.Message) error {
	return in.q.push(msg)
}

// Messages delivers queued messages in order.
func (in *Inbox) Messages() <-chan harness.Message {
	return in.q.out
}

// Close stops accepting messages; queued ones are still delivered.
func (in *Inbox) Close() {
	in.q.close()
}

// Abandon stops accepting messages and drops undelivered ones.
func (in *Inbox) Abandon() {
	in.q.abandon()
}

// queue is an unbounded FIFO drained into an unbuffered channel by a pump goroutine.
type queue struct {
	mu       sync.Mutex
	items    []harness.Message
	closed   bool
	wake     chan struct{}
	out      chan harness.Message
	stop     chan struct{}
	stopOnce sync.Once
}

func newQueue() *queue {
	q := &queue{
		wake: make(chan struct{}, 1),
		out:  make(chan harness.Message),
		stop: make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *queue) push(msg harness.Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.Closed("port")
	}
	q.items = append(q.items, msg.Clone())
	q.mu.Unlock()

	q.signal()
	return nil
}

// close stops accepting messages; queued ones are still delivered.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// abandon stops accepting and drops anything not yet delivered.
func (q *queue) abandon() {
	q.close()
	q.stopOnce.Do(func() { close(q.stop) })
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()

			select {
			case q.out <- msg:
			case <-q.stop:
				return
			}
			continue
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-q.wake:
		case <-q.stop:
			return
		}
	}
}
