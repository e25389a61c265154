//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"syscall/js"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/input"
)

// invoke calls obj[name](args...) and turns a thrown JavaScript exception
// into an error.
func invoke(obj js.Value, name string, args ...any) (result js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			err = fmt.Errorf("%s: %v", name, r)
		}
	}()
	return obj.Call(name, args...), nil
}

// await blocks until p settles. It must not be called from a JavaScript
// callback.
func await(ctx context.Context, p js.Value) (js.Value, error) {
	if p.Type() != js.TypeObject || p.Get("then").Type() != js.TypeFunction {
		return p, nil
	}

	type settled struct {
		v   js.Value
		err error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- settled{v: arg(args, 0)}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- settled{err: js.Error{Value: arg(args, 0)}}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	p.Call("then", onResolve, onReject)

	select {
	case s := <-done:
		return s.v, s.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

func arg(args []js.Value, i int) js.Value {
	if i < len(args) {
		return args[i]
	}
	return js.Undefined()
}

// listen adds a DOM event listener and returns its teardown.
func listen(target js.Value, typ string, opts map[string]any, fn func(ev js.Value)) input.Subscription {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		fn(arg(args, 0))
		return nil
	})
	if opts == nil {
		target.Call("addEventListener", typ, cb)
	} else {
		target.Call("addEventListener", typ, cb, opts)
	}
	return input.SubscriptionFunc(func() {
		target.Call("removeEventListener", typ, cb)
		cb.Release()
	})
}

// messageData converts a MessageEvent's data to a Message. Strings pass
// through; anything else is stringified the way console.log would.
func messageData(data js.Value) harness.Message {
	if data.Type() == js.TypeString {
		return harness.Message(data.String())
	}
	return harness.Message(js.Global().Get("String").Invoke(data).String())
}

// senderObject exposes a Sender to JavaScript as an object with a
// postMessage method, the shape compute modules expect for workers and
// worker scopes. The returned release frees the callback.
func senderObject(s harness.Sender) (js.Value, func()) {
	post := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if err := s.Post(messageData(arg(args, 0))); err != nil {
			Logger().Warn("post from module failed", zap.Error(err))
		}
		return nil
	})
	obj := js.Global().Get("Object").New()
	obj.Set("postMessage", post)
	return obj, post.Release
}

// ConfigGlobal is the page-level object the harness reads its settings from,
// for example window.canvasHarness = {module: "computeModule"}.
const ConfigGlobal = "canvasHarness"

// Setting reads a string option from ConfigGlobal, falling back to def when
// the object or the key is absent.
func Setting(key, def string) string {
	cfg := js.Global().Get(ConfigGlobal)
	if cfg.Type() != js.TypeObject {
		return def
	}
	v := cfg.Get(key)
	if v.Type() != js.TypeString || v.String() == "" {
		return def
	}
	return v.String()
}
