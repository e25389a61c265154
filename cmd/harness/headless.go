package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/canvas-harness/eventloop"
	"github.com/wippyai/canvas-harness/input"
	"github.com/wippyai/canvas-harness/viewport"
)

// headlessViewport is the viewport a headless page reports until resized:
// the default target plus its margins, so the canvas fits at scale 1.
var headlessViewport = viewport.Size{
	Width:  viewport.DefaultTarget.Width + viewport.DefaultMargin,
	Height: viewport.DefaultTarget.Height + viewport.DefaultMargin,
}

// headlessPage is a page without a display. Document updates are written to
// out as text.
type headlessPage struct {
	*input.Bus

	out io.Writer

	mu           sync.Mutex
	size         viewport.Size
	presentation viewport.Size
	resize       map[int]func(viewport.Size)
	nextID       int
}

func newHeadlessPage(out io.Writer, size viewport.Size) *headlessPage {
	return &headlessPage{
		Bus:    input.NewBus(),
		out:    out,
		size:   size,
		resize: make(map[int]func(viewport.Size)),
	}
}

func (p *headlessPage) HideCanvas() {}

func (p *headlessPage) SetTitle(title string) {
	fmt.Fprintf(p.out, "== %s ==\n", title)
}

func (p *headlessPage) SetError(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *headlessPage) SetPresentationSize(width, height float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presentation = viewport.Size{Width: width, Height: height}
}

func (p *headlessPage) BoundingRect() input.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return input.Rect{Width: p.presentation.Width, Height: p.presentation.Height}
}

func (p *headlessPage) ViewportSize() viewport.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *headlessPage) OnResize(fn func(viewport.Size)) input.Subscription {
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

func (p *headlessPage) setSize(size viewport.Size) {
	p.mu.Lock()
	p.size = size
	fns := make([]func(viewport.Size), 0, len(p.resize))
	for _, fn := range p.resize {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(size)
	}
}

// feedKeys reads stdin lines and turns them into page events on loop.
//
// Plain lines are typed rune by rune. Lines starting with ':' are commands:
//
//	:backspace
//	:touch start|move|end|cancel X Y
//	:resize WxH
func feedKeys(ctx context.Context, in io.Reader, page *headlessPage, loop eventloop.Dispatcher) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			apply, err := parseLine(line, page)
			if err != nil {
				fmt.Fprintf(page.out, "? %v\n", err)
				continue
			}
			if err := eventloop.Call(ctx, loop, func() error { apply(); return nil }); err != nil {
				return err
			}
		}
	}
}

// parseLine returns the page events for one input line.
func parseLine(line string, page *headlessPage) (func(), error) {
	if !strings.HasPrefix(line, ":") {
		return func() {
			for _, r := range line {
				k := string(r)
				page.Key(input.KeyEvent{Type: input.KeyDown, Key: k})
				page.Key(input.KeyEvent{Type: input.KeyPress, Key: k})
			}
		}, nil
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "backspace":
		return func() {
			page.Key(input.KeyEvent{Type: input.KeyDown, Key: input.BackspaceKey})
		}, nil

	case "touch":
		if len(fields) != 4 {
			return nil, fmt.Errorf("usage: :touch start|move|end|cancel X Y")
		}
		typ := input.TouchType("touch" + fields[1])
		switch typ {
		case input.TouchStart, input.TouchMove, input.TouchEnd, input.TouchCancel:
		default:
			return nil, fmt.Errorf("unknown touch phase %q", fields[1])
		}
		x, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("touch x: %w", err)
		}
		y, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("touch y: %w", err)
		}
		return func() {
			page.Touch(input.TouchEvent{
				Type:           typ,
				ChangedTouches: []input.Touch{{PageX: x, PageY: y}},
			})
		}, nil

	case "resize":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: :resize WxH")
		}
		size, err := parseSize(fields[1])
		if err != nil {
			return nil, err
		}
		return func() { page.setSize(size) }, nil
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}
