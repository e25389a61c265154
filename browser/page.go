//go:build js && wasm

package browser

import (
	"html"
	"strconv"
	"strings"
	"syscall/js"

	"github.com/wippyai/canvas-harness/input"
	"github.com/wippyai/canvas-harness/viewport"
)

// Element ids and class names the page markup provides.
const (
	CanvasID      = "canvas"
	PlaceholderID = "canvas-placeholder"
	TitleClass    = "title"
	ErrorClass    = "error"
)

// Page is the DOM-backed harness page.
type Page struct {
	window   js.Value
	document js.Value
}

// NewPage binds to the global window and document.
func NewPage() *Page {
	return &Page{
		window:   js.Global(),
		document: js.Global().Get("document"),
	}
}

func (p *Page) byID(id string) js.Value {
	return p.document.Call("getElementById", id)
}

func firstByClass(parent js.Value, class string) js.Value {
	if parent.IsNull() || parent.IsUndefined() {
		return js.Null()
	}
	list := parent.Call("getElementsByClassName", class)
	if list.Length() == 0 {
		return js.Null()
	}
	return list.Index(0)
}

func defined(v js.Value) bool {
	return !v.IsNull() && !v.IsUndefined()
}

// Document

func (p *Page) HideCanvas() {
	if canvas := p.byID(CanvasID); defined(canvas) {
		canvas.Get("style").Set("display", "none")
	}
}

func (p *Page) SetTitle(title string) {
	if header := firstByClass(p.byID(PlaceholderID), TitleClass); defined(header) {
		header.Set("textContent", title)
	}
}

// SetError renders text with line breaks preserved.
func (p *Page) SetError(text string) {
	el := firstByClass(p.document, ErrorClass)
	if !defined(el) {
		Logger().Warn("no error element on page")
		return
	}
	lines := strings.Split(html.EscapeString(text), "\n")
	el.Set("innerHTML", strings.Join(lines, "<br/>")+"<br/><br/>")
}

// Presentation

func (p *Page) SetPresentationSize(width, height float64) {
	root := p.document.Call("querySelector", ":root")
	style := root.Get("style")
	style.Call("setProperty", viewport.WidthProperty, px(width))
	style.Call("setProperty", viewport.HeightProperty, px(height))
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// Canvas

func (p *Page) BoundingRect() input.Rect {
	canvas := p.byID(CanvasID)
	if !defined(canvas) {
		return input.Rect{}
	}
	r := canvas.Call("getBoundingClientRect")
	return input.Rect{
		Left:   r.Get("left").Float(),
		Top:    r.Get("top").Float(),
		Width:  r.Get("width").Float(),
		Height: r.Get("height").Float(),
	}
}

// ViewportSize prefers the document element's client size and falls back to
// the window's inner size.
func (p *Page) ViewportSize() viewport.Size {
	el := p.document.Get("documentElement")
	return viewport.FirstAvailable(
		viewport.Size{Width: number(el.Get("clientWidth")), Height: number(el.Get("clientHeight"))},
		viewport.Size{Width: number(p.window.Get("innerWidth")), Height: number(p.window.Get("innerHeight"))},
	)
}

func number(v js.Value) float64 {
	if v.Type() != js.TypeNumber {
		return 0
	}
	return v.Float()
}

func (p *Page) OnResize(fn func(viewport.Size)) input.Subscription {
	return listen(p.window, "resize", nil, func(js.Value) {
		fn(p.ViewportSize())
	})
}

// Source

func (p *Page) OnKey(typ input.KeyType, h input.KeyHandler) input.Subscription {
	return listen(p.document, string(typ), nil, func(ev js.Value) {
		if h(input.KeyEvent{Type: typ, Key: ev.Get("key").String()}) {
			ev.Call("preventDefault")
		}
	})
}

// OnTouch listens non-passively so the handler can cancel scrolling.
func (p *Page) OnTouch(typ input.TouchType, h input.TouchHandler) input.Subscription {
	opts := map[string]any{"passive": false}
	return listen(p.document, string(typ), opts, func(ev js.Value) {
		if h(touchEvent(typ, ev)) {
			ev.Call("preventDefault")
		}
	})
}

func touchEvent(typ input.TouchType, ev js.Value) input.TouchEvent {
	list := ev.Get("changedTouches")
	n := 0
	if defined(list) {
		n = list.Length()
	}
	out := input.TouchEvent{Type: typ, ChangedTouches: make([]input.Touch, 0, n)}
	for i := 0; i < n; i++ {
		t := list.Index(i)
		out.ChangedTouches = append(out.ChangedTouches, input.Touch{
			Identifier: t.Get("identifier").Int(),
			PageX:      t.Get("pageX").Float(),
			PageY:      t.Get("pageY").Float(),
		})
	}
	return out
}
