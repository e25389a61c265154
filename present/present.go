// Package present replaces the canvas with a human-readable error when the
// harness fails to start.
package present

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Title is the heading shown in place of the canvas.
const Title = "Error"

// Document is the page surface the presenter mutates.
type Document interface {
	HideCanvas()
	SetTitle(title string)
	SetError(text string)
}

// Format renders err as the body of the error region.
func Format(err error) string {
	return fmt.Sprintf("Unhandled error in the WASM backend!\n> %v\n\nCheck dev console for more info.", err)
}

// Presenter shows the first error it is given. The error state is terminal:
// later errors are logged but do not replace what is displayed.
type Presenter struct {
	doc    Document
	logger *zap.Logger

	mu    sync.Mutex
	shown error
}

// New creates a Presenter. A nil logger uses the package logger.
func New(doc Document, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = Logger()
	}
	return &Presenter{doc: doc, logger: logger}
}

// Present hides the canvas and displays err. It reports whether err is now
// the displayed error; nil errors are ignored.
func (p *Presenter) Present(err error) bool {
	if err == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shown != nil {
		p.logger.Warn("error after failure state", zap.Error(err))
		return false
	}
	p.shown = err

	p.logger.Error("unhandled error", zap.Error(err))
	p.doc.HideCanvas()
	p.doc.SetTitle(Title)
	p.doc.SetError(Format(err))
	return true
}

// Shown returns the displayed error, or nil.
func (p *Presenter) Shown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}
