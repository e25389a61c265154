package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/canvas-harness/input"
	"github.com/wippyai/canvas-harness/present"
	"github.com/wippyai/canvas-harness/viewport"
)

type sentMsgs struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sentMsgs) send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sentMsgs) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newTestPage() (*Page, *sentMsgs) {
	cfg := DefaultConfig()
	cfg.Columns, cfg.Rows = 80, 24
	p := New(cfg)
	sent := &sentMsgs{}
	p.Bind(sent.send)
	return p, sent
}

func TestKeyEvents(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []input.KeyEvent
	}{
		{
			"rune",
			tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")},
			[]input.KeyEvent{{Type: input.KeyDown, Key: "a"}, {Type: input.KeyPress, Key: "a"}},
		},
		{
			"backspace",
			tea.KeyMsg{Type: tea.KeyBackspace},
			[]input.KeyEvent{{Type: input.KeyDown, Key: "Backspace"}},
		},
		{
			"enter",
			tea.KeyMsg{Type: tea.KeyEnter},
			[]input.KeyEvent{{Type: input.KeyDown, Key: "Enter"}, {Type: input.KeyPress, Key: "Enter"}},
		},
		{
			"space",
			tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")},
			[]input.KeyEvent{{Type: input.KeyDown, Key: " "}, {Type: input.KeyPress, Key: " "}},
		},
		{
			"arrow",
			tea.KeyMsg{Type: tea.KeyUp},
			[]input.KeyEvent{{Type: input.KeyDown, Key: "ArrowUp"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keyEvents(tt.msg)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUpdate_KeysReachRouter(t *testing.T) {
	p, _ := newTestPage()
	var got []input.KeyEvent
	record := func(ev input.KeyEvent) bool { got = append(got, ev); return false }
	p.OnKey(input.KeyPress, record)
	p.OnKey(input.KeyDown, record)

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	p.Update(tea.KeyMsg{Type: tea.KeyBackspace})

	if len(got) != 3 {
		t.Fatalf("events = %v", got)
	}
	if got[2].Key != "Backspace" || got[2].Type != input.KeyDown {
		t.Errorf("last event = %v", got[2])
	}
}

func TestUpdate_CtrlCQuits(t *testing.T) {
	p, _ := newTestPage()
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestUpdate_MouseAsTouch(t *testing.T) {
	p, _ := newTestPage()
	var got []input.TouchEvent
	record := func(ev input.TouchEvent) bool { got = append(got, ev); return false }
	for _, typ := range []input.TouchType{input.TouchStart, input.TouchMove, input.TouchEnd} {
		p.OnTouch(typ, record)
	}

	// Motion without a press is hover, not a touch.
	p.Update(tea.MouseMsg{X: 1, Y: 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})
	p.Update(tea.MouseMsg{X: 2, Y: 3, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	p.Update(tea.MouseMsg{X: 4, Y: 3, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})
	p.Update(tea.MouseMsg{X: 4, Y: 3, Button: tea.MouseButtonNone, Action: tea.MouseActionRelease})
	p.Update(tea.MouseMsg{X: 4, Y: 3, Button: tea.MouseButtonNone, Action: tea.MouseActionRelease})

	want := []input.TouchType{input.TouchStart, input.TouchMove, input.TouchEnd}
	if len(got) != len(want) {
		t.Fatalf("got %d touch events, want %d", len(got), len(want))
	}
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, ev.Type, want[i])
		}
	}
	first := got[0].ChangedTouches[0]
	if first.Identifier != 0 || first.PageX != 32 || first.PageY != 48 {
		t.Errorf("touch = %+v, want id 0 at 32,48", first)
	}
}

func TestUpdate_ResizeRunsListeners(t *testing.T) {
	p, _ := newTestPage()
	if got := p.ViewportSize(); got != (viewport.Size{Width: 1280, Height: 384}) {
		t.Errorf("initial size = %v", got)
	}

	var sizes []viewport.Size
	sub := p.OnResize(func(s viewport.Size) { sizes = append(sizes, s) })
	p.Update(tea.WindowSizeMsg{Width: 100, Height: 60})
	sub.Unsubscribe()
	p.Update(tea.WindowSizeMsg{Width: 10, Height: 10})

	if len(sizes) != 1 || sizes[0] != (viewport.Size{Width: 1600, Height: 960}) {
		t.Errorf("resize sizes = %v", sizes)
	}
	if got := p.ViewportSize(); got.Width != 160 {
		t.Errorf("size after second resize = %v", got)
	}
}

func TestDispatch(t *testing.T) {
	p, sent := newTestPage()

	ran := false
	if !p.Dispatch(func() { ran = true }) {
		t.Fatal("Dispatch rejected")
	}
	if sent.len() != 1 {
		t.Fatalf("sent %d messages", sent.len())
	}
	p.Update(sent.msgs[0])
	if !ran {
		t.Error("dispatched fn did not run in Update")
	}

	p.Stop()
	if p.Dispatch(func() {}) {
		t.Error("Dispatch after Stop should be rejected")
	}
}

func TestDispatch_Unbound(t *testing.T) {
	if New(DefaultConfig()).Dispatch(func() {}) {
		t.Error("unbound page should reject dispatch")
	}
}

func TestPresenterRendersError(t *testing.T) {
	p, sent := newTestPage()
	present.New(p, nil).Present(errString("module not found"))

	view := p.View()
	if !strings.Contains(view, "Error") || !strings.Contains(view, "> module not found") {
		t.Errorf("view does not show the error:\n%s", view)
	}
	if strings.Contains(view, "loading") {
		t.Error("canvas should be hidden")
	}

	deadline := time.Now().Add(time.Second)
	for sent.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sent.len() < 3 {
		t.Error("document updates should wake the program")
	}
}

func TestView_Canvas(t *testing.T) {
	p, _ := newTestPage()
	p.SetPresentationSize(980, 544)
	p.Update(readyMsg{})

	view := p.View()
	if !strings.Contains(view, "ready") || !strings.Contains(view, "980x544 px") {
		t.Errorf("unexpected view:\n%s", view)
	}
	if r := p.BoundingRect(); r.Left != 16 || r.Top != 48 || r.Width != 980 {
		t.Errorf("rect = %+v", r)
	}
}

type touchRecorder struct{ x, y []float64 }

func (m *touchRecorder) PushKeyEvent(context.Context, string) error { return nil }

func (m *touchRecorder) PushTouchEvent(_ context.Context, x, y float64, _ string) error {
	m.x = append(m.x, x)
	m.y = append(m.y, y)
	return nil
}

func TestMouse_CanvasOrigin(t *testing.T) {
	p, _ := newTestPage()
	p.SetPresentationSize(980, 544)
	mod := &touchRecorder{}
	sub := input.NewRouter(mod, p).Attach(context.Background(), p)
	defer sub.Unsubscribe()

	// column 1, row 3 is the first cell inside the border
	p.Update(tea.MouseMsg{X: 1, Y: 3, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	p.Update(tea.MouseMsg{X: 3, Y: 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})

	if len(mod.x) != 2 {
		t.Fatalf("got %d touches", len(mod.x))
	}
	if mod.x[0] != 0 || mod.y[0] != 0 {
		t.Errorf("first inner cell = %g,%g, want 0,0", mod.x[0], mod.y[0])
	}
	if mod.x[1] != 32 || mod.y[1] != 16 {
		t.Errorf("move = %g,%g, want 32,16", mod.x[1], mod.y[1])
	}
}

type errString string

func (e errString) Error() string { return string(e) }
