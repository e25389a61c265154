//go:build js && wasm

package browser

import (
	"context"
	"sync"
	"syscall/js"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/channel"
	"github.com/wippyai/canvas-harness/errors"
)

// port bridges a JavaScript message target (a Worker, or the worker's own
// global scope) to channel.Port.
type port struct {
	target    js.Value
	inbox     *channel.Inbox
	onMessage js.Func
	onError   js.Func
	terminate bool

	closeOnce sync.Once
}

func newPort(target js.Value, terminate bool) *port {
	p := &port{target: target, inbox: channel.NewInbox(), terminate: terminate}
	p.onMessage = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if err := p.inbox.Deliver(messageData(arg(args, 0).Get("data"))); err != nil {
			Logger().Debug("message after close dropped")
		}
		return nil
	})
	// An uncaught error inside the worker ends the conversation.
	p.onError = js.FuncOf(func(_ js.Value, args []js.Value) any {
		Logger().Error("worker error", zap.String("message", arg(args, 0).Get("message").String()))
		p.inbox.Close()
		return nil
	})
	target.Set("onmessage", p.onMessage)
	target.Set("onerror", p.onError)
	return p
}

func (p *port) Post(msg harness.Message) error {
	if _, err := invoke(p.target, "postMessage", string(msg)); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindClosed, err, "postMessage")
	}
	return nil
}

func (p *port) Messages() <-chan harness.Message {
	return p.inbox.Messages()
}

func (p *port) Close() error {
	p.closeOnce.Do(func() {
		p.target.Set("onmessage", js.Null())
		p.target.Set("onerror", js.Null())
		p.onMessage.Release()
		p.onError.Release()
		if p.terminate {
			p.target.Call("terminate")
		}
		p.inbox.Abandon()
	})
	return nil
}

// Spawner starts Web Workers from a script URL.
type Spawner struct {
	URL string

	// Module loads the script as an ES module when set.
	Module bool
}

func (s Spawner) Spawn(context.Context) (channel.Port, error) {
	ctor := js.Global().Get("Worker")
	if ctor.Type() != js.TypeFunction {
		return nil, errors.SpawnFailed(errors.Load("Web Workers unavailable", nil))
	}

	var opts any = js.Undefined()
	if s.Module {
		opts = map[string]any{"type": "module"}
	}

	var (
		w   js.Value
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				if jsErr, ok := r.(js.Error); ok {
					err = jsErr
				} else {
					err = errors.Load("new Worker", nil)
				}
			}
		}()
		w = ctor.New(s.URL, opts)
	}()
	if err != nil {
		return nil, errors.SpawnFailed(err)
	}

	Logger().Debug("worker spawned", zap.String("url", s.URL))
	return newPort(w, true), nil
}

// ScopePort is the worker side of the channel: it posts to and receives
// from the worker's global scope.
func ScopePort() channel.Port {
	return newPort(js.Global(), false)
}
