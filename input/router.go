// Package input normalizes keyboard and touch notifications into compute
// module calls and decides which browser default actions to suppress.
package input

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/canvas-harness/errors"
)

// BackspaceKey is forwarded from key-down because key-press does not fire for it.
const BackspaceKey = "Backspace"

// Module is the part of the compute module that consumes input.
type Module interface {
	PushKeyEvent(ctx context.Context, key string) error
	PushTouchEvent(ctx context.Context, x, y float64, phase string) error
}

// Router forwards input to the module. It is driven from a single event loop
// and is not safe for concurrent use.
type Router struct {
	module  Module
	canvas  Canvas
	session *Session
	logger  *zap.Logger
	sink    func(Event)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for module call failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSink registers an observer that sees every normalized event before it
// is forwarded to the module.
func WithSink(fn func(Event)) Option {
	return func(r *Router) {
		r.sink = fn
	}
}

// NewRouter creates a Router for module with canvas-relative touch coordinates.
func NewRouter(module Module, canvas Canvas, opts ...Option) *Router {
	r := &Router{
		module:  module,
		canvas:  canvas,
		session: NewSession(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the router's touch session.
func (r *Router) Session() *Session {
	return r.session
}

// HandleKey forwards a key event and reports whether the default action
// should be suppressed. Key-press is always forwarded and suppressed;
// key-down only for Backspace.
func (r *Router) HandleKey(ctx context.Context, ev KeyEvent) bool {
	switch ev.Type {
	case KeyPress:
		r.forward(ctx, Event{Kind: KindKey, Key: ev.Key})
		return true
	case KeyDown:
		if ev.Key != BackspaceKey {
			return false
		}
		r.forward(ctx, Event{Kind: KindKey, Key: ev.Key})
		return true
	default:
		return false
	}
}

// HandleTouch updates the touch session, forwards the first changed touch in
// canvas coordinates and reports whether the default action should be
// suppressed. Only single-finger touchmove is suppressed so native
// multi-touch gestures such as pinch-zoom keep working.
func (r *Router) HandleTouch(ctx context.Context, ev TouchEvent) bool {
	r.session.Apply(ev)

	if len(ev.ChangedTouches) > 0 {
		first := ev.ChangedTouches[0]
		var rect Rect
		if r.canvas != nil {
			rect = r.canvas.BoundingRect()
		}
		r.forward(ctx, Event{
			Kind:  KindTouch,
			X:     first.PageX - rect.Left,
			Y:     first.PageY - rect.Top,
			Phase: ev.Type,
		})
	}

	return ev.Type == TouchMove && r.session.Len() < 2
}

func (r *Router) forward(ctx context.Context, ev Event) {
	if r.sink != nil {
		r.sink(ev)
	}

	var err error
	var op string
	switch ev.Kind {
	case KindKey:
		op = "push_key_event"
		err = r.module.PushKeyEvent(ctx, ev.Key)
	case KindTouch:
		op = "push_touch_event"
		err = r.module.PushTouchEvent(ctx, ev.X, ev.Y, string(ev.Phase))
	}
	if err != nil {
		r.logger.Warn("input forward failed", zap.Error(errors.HandlerFailed(op, err)))
	}
}

// Attach subscribes the router to every key and touch notification of src.
// The returned subscription removes all of them.
func (r *Router) Attach(ctx context.Context, src Source) Subscription {
	key := func(ev KeyEvent) bool { return r.HandleKey(ctx, ev) }
	touch := func(ev TouchEvent) bool { return r.HandleTouch(ctx, ev) }

	return Group{
		src.OnKey(KeyPress, key),
		src.OnKey(KeyDown, key),
		src.OnTouch(TouchStart, touch),
		src.OnTouch(TouchMove, touch),
		src.OnTouch(TouchEnd, touch),
		src.OnTouch(TouchCancel, touch),
	}
}
