// Package viewport fits a fixed-aspect-ratio canvas into the available viewport.
package viewport

import (
	"context"
	"math"

	"go.uber.org/zap"
)

const (
	// CellSize is the pixel size of one character cell on the canvas.
	CellSize = 16

	// DefaultMargin is subtracted from each viewport axis before fitting.
	DefaultMargin = 20

	// Presentation properties consumed by styling.
	WidthProperty  = "--term-width"
	HeightProperty = "--term-height"
)

// DefaultTarget is the canvas size at scale 1: 90x50 cells.
var DefaultTarget = Size{Width: 90 * CellSize, Height: 50 * CellSize}

// Size is a width/height pair in presentation units (CSS pixels).
type Size struct {
	Width  float64
	Height float64
}

// Ratio returns Width/Height.
func (s Size) Ratio() float64 {
	return s.Width / s.Height
}

// Available reports whether both dimensions are positive.
func (s Size) Available() bool {
	return s.Width > 0 && s.Height > 0
}

// FirstAvailable returns the first candidate with both dimensions positive,
// or the zero Size. Hosts pass the client size before the window inner size.
func FirstAvailable(candidates ...Size) Size {
	for _, c := range candidates {
		if c.Available() {
			return c
		}
	}
	return Size{}
}

// Metrics is the fitted canvas size and the uniform scale relative to the target.
type Metrics struct {
	Width  float64
	Height float64
	Scale  float64
}

// Scaler computes Metrics for a fixed target size.
// The zero value uses DefaultTarget and DefaultMargin.
type Scaler struct {
	Target Size
	Margin float64
}

// NewScaler creates a scaler with the default target and margin.
func NewScaler() Scaler {
	return Scaler{Target: DefaultTarget, Margin: DefaultMargin}
}

func (s Scaler) target() Size {
	if !s.Target.Available() {
		return DefaultTarget
	}
	return s.Target
}

func (s Scaler) margin() float64 {
	if s.Margin == 0 && s.Target == (Size{}) {
		return DefaultMargin
	}
	return s.Margin
}

// Recompute maps a viewport size to the fitted canvas metrics.
// It is pure: the same inputs always give the same outputs.
func (s Scaler) Recompute(viewportWidth, viewportHeight float64) Metrics {
	target := s.target()
	ratio := target.Ratio()
	margin := s.margin()

	// Effective size never drops below one unit so the scale stays positive.
	vw := math.Max(viewportWidth-margin, 1)
	vh := math.Max(viewportHeight-margin, 1)

	width, height := target.Width, target.Height
	switch {
	case target.Width <= vw && target.Height <= vh:
		// fits unscaled
	case vw/vh >= ratio:
		height = math.Min(vh, target.Height)
		width = height * ratio
	default:
		width = math.Min(vw, target.Width)
		height = width / ratio
	}

	return Metrics{
		Width:  width,
		Height: height,
		Scale:  width / target.Width,
	}
}

// Presentation receives the fitted size, e.g. as the two CSS custom properties.
type Presentation interface {
	SetPresentationSize(width, height float64)
}

// ScaleSetter is the part of the compute module that tracks the canvas scale.
type ScaleSetter interface {
	SetScale(ctx context.Context, factor float64) error
}

// Fitter applies recomputed metrics to the page and the module.
type Fitter struct {
	scaler Scaler
	page   Presentation
	module ScaleSetter
	logger *zap.Logger
	last   Metrics
}

// NewFitter creates a Fitter. A nil logger disables logging.
func NewFitter(scaler Scaler, page Presentation, module ScaleSetter, logger *zap.Logger) *Fitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fitter{
		scaler: scaler,
		page:   page,
		module: module,
		logger: logger,
	}
}

// Fit recomputes metrics for the viewport, updates the presentation size and
// pushes the scale into the module. Called at startup and on every resize.
func (f *Fitter) Fit(ctx context.Context, viewportWidth, viewportHeight float64) (Metrics, error) {
	m := f.scaler.Recompute(viewportWidth, viewportHeight)
	f.last = m

	if f.page != nil {
		f.page.SetPresentationSize(m.Width, m.Height)
	}

	f.logger.Debug("viewport fitted",
		zap.Float64("viewport_width", viewportWidth),
		zap.Float64("viewport_height", viewportHeight),
		zap.Float64("width", m.Width),
		zap.Float64("height", m.Height),
		zap.Float64("scale", m.Scale))

	if err := f.module.SetScale(ctx, m.Scale); err != nil {
		return m, err
	}
	return m, nil
}

// Last returns the metrics of the most recent Fit.
func (f *Fitter) Last() Metrics {
	return f.last
}
