//go:build js && wasm

package browser

import (
	"context"
	"syscall/js"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/worker"
)

// Exports names the functions a JavaScript compute module provides.
type Exports struct {
	Entry           string
	SetScale        string
	PushKeyEvent    string
	PushTouchEvent  string
	SetWorker       string
	OnWorkerMessage string

	SetGlobalScope string
	OnMessage      string
	Inc            string
}

// DefaultExports matches the names a wasm-bindgen build of the compute
// module exports.
func DefaultExports() Exports {
	return Exports{
		Entry:           "main_wasm",
		SetScale:        "set_scale",
		PushKeyEvent:    "push_key_event",
		PushTouchEvent:  "push_touch_event",
		SetWorker:       "set_worker",
		OnWorkerMessage: "on_worker_message",
		SetGlobalScope:  "worker_set_global_scope",
		OnMessage:       "worker_on_message",
		Inc:             "worker_inc",
	}
}

// Module calls into a compute module loaded as a JavaScript object.
// It implements both harness.Module and harness.WorkerModule.
type Module struct {
	obj     js.Value
	exports Exports
	release []func()
}

// Load awaits the module published under global (a module object or a
// promise of one) and checks that it exports every function in names.
func Load(ctx context.Context, global string, exports Exports, names ...string) (*Module, error) {
	v := js.Global().Get(global)
	if !defined(v) {
		return nil, errors.Load("module not published as "+global, nil)
	}
	obj, err := await(ctx, v)
	if err != nil {
		return nil, errors.Load("import "+global, err)
	}
	for _, name := range names {
		if obj.Get(name).Type() != js.TypeFunction {
			return nil, errors.MissingExport(name)
		}
	}
	return &Module{obj: obj, exports: exports}, nil
}

// Main lists the functions the main context calls.
func (e Exports) Main() []string {
	return []string{e.Entry, e.SetScale, e.PushKeyEvent, e.PushTouchEvent, e.SetWorker, e.OnWorkerMessage}
}

// Worker lists the functions a worker running variant requires: the
// handler that variant calls. The scope hook is optional for both.
func (e Exports) Worker(variant worker.Variant) []string {
	if variant == worker.RequestResponse {
		return []string{e.Inc}
	}
	return []string{e.OnMessage}
}

func (m *Module) call(name string, args ...any) (js.Value, error) {
	if m.obj.Get(name).Type() != js.TypeFunction {
		return js.Undefined(), errors.MissingExport(name)
	}
	return invoke(m.obj, name, args...)
}

func (m *Module) handler(name string, args ...any) error {
	if _, err := m.call(name, args...); err != nil {
		return errors.HandlerFailed(name, err)
	}
	return nil
}

func (m *Module) Entry(context.Context) error {
	if _, err := m.call(m.exports.Entry); err != nil {
		return errors.EntryFailed(err)
	}
	return nil
}

func (m *Module) SetScale(_ context.Context, factor float64) error {
	return m.handler(m.exports.SetScale, factor)
}

func (m *Module) PushKeyEvent(_ context.Context, key string) error {
	return m.handler(m.exports.PushKeyEvent, key)
}

func (m *Module) PushTouchEvent(_ context.Context, x, y float64, phase string) error {
	return m.handler(m.exports.PushTouchEvent, x, y, phase)
}

// SetWorker hands the module an object whose postMessage forwards to w.
func (m *Module) SetWorker(_ context.Context, w harness.Sender) error {
	obj, release := senderObject(w)
	m.release = append(m.release, release)
	return m.handler(m.exports.SetWorker, obj)
}

func (m *Module) OnWorkerMessage(_ context.Context, msg harness.Message) error {
	return m.handler(m.exports.OnWorkerMessage, string(msg))
}

// SetGlobalScope is a no-op when the module does not export the hook; a
// module built that way posts through self directly.
func (m *Module) SetGlobalScope(_ context.Context, scope harness.Sender) error {
	if m.obj.Get(m.exports.SetGlobalScope).Type() != js.TypeFunction {
		return nil
	}
	obj, release := senderObject(scope)
	m.release = append(m.release, release)
	return m.handler(m.exports.SetGlobalScope, obj)
}

func (m *Module) OnMessage(_ context.Context, msg harness.Message) error {
	return m.handler(m.exports.OnMessage, string(msg))
}

func (m *Module) Inc(_ context.Context, msg harness.Message) (harness.Message, error) {
	v, err := m.call(m.exports.Inc, string(msg))
	if err != nil {
		return nil, errors.HandlerFailed(m.exports.Inc, err)
	}
	return messageData(v), nil
}

// Close releases the callbacks handed to the module.
func (m *Module) Close(context.Context) error {
	for _, release := range m.release {
		release()
	}
	m.release = nil
	return nil
}
