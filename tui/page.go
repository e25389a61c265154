// Package tui renders the harness page in a terminal with bubbletea.
//
// The page is the terminal counterpart of the browser document: terminal
// cells stand in for CSS pixels, the mouse stands in for a single touch
// point, and bubbletea's Update loop is the single execution context every
// module call runs on.
package tui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wippyai/canvas-harness/input"
	"github.com/wippyai/canvas-harness/viewport"
)

// Config configures a Page.
type Config struct {
	// Cell is the pixel size of one terminal cell.
	Cell viewport.Size

	// Columns and Rows are the terminal size before the first resize.
	Columns int
	Rows    int

	Title  string
	Logger *zap.Logger
}

// DefaultConfig returns a page with square 16px cells.
func DefaultConfig() Config {
	return Config{
		Cell:  viewport.Size{Width: viewport.CellSize, Height: viewport.CellSize},
		Title: "canvas-harness",
	}
}

// canvasTop is the row the canvas box starts on, below the title bar.
const canvasTop = 2

// canvasBorder is the width in cells of the box drawn around the canvas.
const canvasBorder = 1

type (
	dispatchMsg struct{ fn func() }
	refreshMsg  struct{}
	readyMsg    struct{}
)

// Page is a bubbletea model that also serves as the harness page: document,
// presentation, input source, canvas and dispatcher.
type Page struct {
	*input.Bus

	cfg     Config
	logger  *zap.Logger
	spinner spinner.Model

	mu           sync.Mutex
	send         func(tea.Msg)
	stopped      bool
	size         viewport.Size
	presentation viewport.Size
	resize       map[int]func(viewport.Size)
	nextID       int
	canvasHidden bool
	title        string
	errorText    string
	ready        bool
	touching     bool
	lastEvent    string
}

// New creates a Page. Bind must be called before the page dispatches.
func New(cfg Config) *Page {
	if !cfg.Cell.Available() {
		cfg.Cell = DefaultConfig().Cell
	}
	if cfg.Title == "" {
		cfg.Title = DefaultConfig().Title
	}
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}
	return &Page{
		Bus:     input.NewBus(),
		cfg:     cfg,
		logger:  logger,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		size:    cellsToPixels(cfg.Cell, cfg.Columns, cfg.Rows),
		resize:  make(map[int]func(viewport.Size)),
	}
}

// Bind connects the page to the program that runs it, typically
// (*tea.Program).Send.
func (p *Page) Bind(send func(tea.Msg)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = send
}

// Stop rejects further dispatches. Call it once the program has exited.
func (p *Page) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

// Dispatch runs fn inside Update. It must not be called from Update itself.
func (p *Page) Dispatch(fn func()) bool {
	p.mu.Lock()
	send, stopped := p.send, p.stopped
	p.mu.Unlock()
	if send == nil || stopped {
		return false
	}
	send(dispatchMsg{fn: fn})
	return true
}

// SetReady switches the status line from loading to ready.
func (p *Page) SetReady() {
	p.notify(readyMsg{})
}

// notify wakes the program without blocking the caller, which may be
// running inside Update.
func (p *Page) notify(msg tea.Msg) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send != nil {
		go send(msg)
	}
}

func cellsToPixels(cell viewport.Size, cols, rows int) viewport.Size {
	return viewport.Size{Width: float64(cols) * cell.Width, Height: float64(rows) * cell.Height}
}

// Document

func (p *Page) HideCanvas() {
	p.mu.Lock()
	p.canvasHidden = true
	p.mu.Unlock()
	p.notify(refreshMsg{})
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
	p.notify(refreshMsg{})
}

func (p *Page) SetError(text string) {
	p.mu.Lock()
	p.errorText = text
	p.mu.Unlock()
	p.notify(refreshMsg{})
}

// Presentation

func (p *Page) SetPresentationSize(width, height float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presentation = viewport.Size{Width: width, Height: height}
}

// Canvas

// BoundingRect places the canvas inside its border, below the title bar.
func (p *Page) BoundingRect() input.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return input.Rect{
		Left:   canvasBorder * p.cfg.Cell.Width,
		Top:    (canvasTop + canvasBorder) * p.cfg.Cell.Height,
		Width:  p.presentation.Width,
		Height: p.presentation.Height,
	}
}

// ViewportSize returns the terminal size in pixels.
func (p *Page) ViewportSize() viewport.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// OnResize registers fn for terminal resizes. fn runs inside Update.
func (p *Page) OnResize(fn func(viewport.Size)) input.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.resize[id] = fn
	return input.SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.resize, id)
	})
}

// Model

func (p *Page) Init() tea.Cmd {
	return p.spinner.Tick
}

func (p *Page) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg.fn()

	case tea.WindowSizeMsg:
		p.handleResize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return p, tea.Quit
		}
		for _, ev := range keyEvents(msg) {
			p.Key(ev)
		}
		p.setLastEvent(fmt.Sprintf("key %s", msg.String()))

	case tea.MouseMsg:
		p.handleMouse(msg)

	case readyMsg:
		p.mu.Lock()
		p.ready = true
		p.mu.Unlock()

	case spinner.TickMsg:
		p.mu.Lock()
		loading := !p.ready && !p.canvasHidden
		p.mu.Unlock()
		if loading {
			var cmd tea.Cmd
			p.spinner, cmd = p.spinner.Update(msg)
			return p, cmd
		}
	}
	return p, nil
}

func (p *Page) handleResize(cols, rows int) {
	p.mu.Lock()
	size := cellsToPixels(p.cfg.Cell, cols, rows)
	p.size = size
	fns := make([]func(viewport.Size), 0, len(p.resize))
	for _, fn := range p.resize {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	p.logger.Debug("terminal resized", zap.Int("columns", cols), zap.Int("rows", rows))
	for _, fn := range fns {
		fn(size)
	}
}

func (p *Page) handleMouse(msg tea.MouseMsg) {
	typ, ok := touchType(msg)
	if !ok {
		return
	}

	p.mu.Lock()
	switch typ {
	case input.TouchStart:
		p.touching = true
	case input.TouchMove, input.TouchEnd:
		if !p.touching {
			p.mu.Unlock()
			return
		}
		p.touching = typ == input.TouchMove
	}
	cell := p.cfg.Cell
	p.mu.Unlock()

	x := float64(msg.X) * cell.Width
	y := float64(msg.Y) * cell.Height
	p.Touch(input.TouchEvent{
		Type:           typ,
		ChangedTouches: []input.Touch{{Identifier: 0, PageX: x, PageY: y}},
	})
	p.setLastEvent(fmt.Sprintf("%s %.0f,%.0f", typ, x, y))
}

func (p *Page) setLastEvent(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastEvent = s
}
