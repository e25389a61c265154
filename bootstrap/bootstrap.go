// Package bootstrap loads the compute module, runs its entry point once and
// wires the viewport, input and worker components against it.
//
// Any failure during startup is terminal: it is shown by the error presenter
// and no partially wired session survives.
package bootstrap

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/channel"
	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/eventloop"
	"github.com/wippyai/canvas-harness/input"
	"github.com/wippyai/canvas-harness/present"
	"github.com/wippyai/canvas-harness/viewport"
)

// LoadFunc fetches and instantiates the compute module.
type LoadFunc func(ctx context.Context) (harness.Module, error)

// Page is the host surface: the document the presenter mutates, the
// presentation properties, the input source and the canvas geometry.
type Page interface {
	present.Document
	viewport.Presentation
	input.Source
	input.Canvas

	// ViewportSize reports the current viewport dimensions.
	ViewportSize() viewport.Size

	// OnResize registers fn for viewport changes. fn runs on the page's
	// event context.
	OnResize(fn func(viewport.Size)) input.Subscription
}

// Config aggregates the component configurations.
type Config struct {
	Scaler  viewport.Scaler
	Channel channel.Config
	Logger  *zap.Logger
}

// DefaultConfig returns the default configuration: a 1440x800 target with a
// 20 unit margin and a bounded handshake.
func DefaultConfig() Config {
	return Config{
		Scaler:  viewport.NewScaler(),
		Channel: channel.Config{HandshakeTimeout: channel.DefaultHandshakeTimeout},
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

// Loader loads the module and invokes its entry point at most once.
type Loader struct {
	load       LoadFunc
	dispatcher eventloop.Dispatcher
	presenter  *present.Presenter
	logger     *zap.Logger

	once   sync.Once
	module harness.Module
	err    error
}

// NewLoader creates a Loader. Entry runs on dispatcher; failures are shown
// through presenter when it is non-nil.
func NewLoader(load LoadFunc, dispatcher eventloop.Dispatcher, presenter *present.Presenter, logger *zap.Logger) *Loader {
	if dispatcher == nil {
		dispatcher = eventloop.Inline
	}
	if logger == nil {
		logger = Logger()
	}
	return &Loader{load: load, dispatcher: dispatcher, presenter: presenter, logger: logger}
}

// Initialize loads the module and runs its entry point. The first outcome is
// cached: later calls return it without loading or entering again. On
// failure no module is returned.
func (l *Loader) Initialize(ctx context.Context) (harness.Module, error) {
	l.once.Do(func() {
		l.module, l.err = l.initialize(ctx)
		if l.err != nil && l.presenter != nil {
			l.presenter.Present(l.err)
		}
	})
	return l.module, l.err
}

func (l *Loader) initialize(ctx context.Context) (harness.Module, error) {
	module, err := l.load(ctx)
	if err != nil {
		if !stderrors.Is(err, errors.ErrInit) {
			err = errors.LoadFailed(err)
		}
		return nil, err
	}
	l.logger.Debug("compute module loaded")

	err = eventloop.Call(ctx, l.dispatcher, func() error {
		return module.Entry(ctx)
	})
	if err != nil {
		if !stderrors.Is(err, errors.ErrInit) {
			err = errors.EntryFailed(err)
		}
		// a canceled wait can leave Entry queued on the loop
		releaseModule(ctx, l.dispatcher, module)
		return nil, err
	}
	l.logger.Debug("entry complete")
	return module, nil
}

// Harness runs the full startup sequence against a page.
type Harness struct {
	loader     *Loader
	spawner    channel.Spawner
	page       Page
	dispatcher eventloop.Dispatcher
	presenter  *present.Presenter
	cfg        Config
	logger     *zap.Logger
}

// New creates a Harness. Module calls are serialized through dispatcher,
// which must be the page's event context.
func New(load LoadFunc, spawner channel.Spawner, page Page, dispatcher eventloop.Dispatcher, cfg Config) *Harness {
	if dispatcher == nil {
		dispatcher = eventloop.Inline
	}
	logger := cfg.logger()
	presenter := present.New(page, logger)
	return &Harness{
		loader:     NewLoader(load, dispatcher, presenter, logger),
		spawner:    spawner,
		page:       page,
		dispatcher: dispatcher,
		presenter:  presenter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Presenter returns the harness's error presenter.
func (h *Harness) Presenter() *present.Presenter {
	return h.presenter
}

// Run initializes the module, fits the viewport, subscribes to resize and
// input, and opens the worker channel. It must not be called from the
// dispatcher's execution context, since it waits for the handshake.
//
// Any error is presented before it is returned, and everything subscribed
// up to that point is torn down.
func (h *Harness) Run(ctx context.Context) (*Session, error) {
	module, err := h.loader.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	s, err := h.wire(ctx, module)
	if err != nil {
		h.presenter.Present(err)
		return nil, err
	}
	return s, nil
}

func (h *Harness) wire(ctx context.Context, module harness.Module) (*Session, error) {
	s := &Session{
		module:     module,
		dispatcher: h.dispatcher,
		logger:     h.logger,
		fitter:     viewport.NewFitter(h.cfg.Scaler, h.page, module, h.logger),
	}

	s.subs = append(s.subs, h.page.OnResize(func(size viewport.Size) {
		if _, err := s.fitter.Fit(ctx, size.Width, size.Height); err != nil {
			h.logger.Warn("resize failed", zap.Error(errors.HandlerFailed("set_scale", err)))
		}
	}))

	err := eventloop.Call(ctx, h.dispatcher, func() error {
		size := h.page.ViewportSize()
		_, err := s.fitter.Fit(ctx, size.Width, size.Height)
		return err
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, errors.HandlerFailed("set_scale", err)
	}

	router := input.NewRouter(module, h.page, input.WithLogger(h.logger))
	s.subs = append(s.subs, router.Attach(ctx, h.page))

	worker, err := channel.New(h.spawner, module, h.dispatcher, h.channelConfig()).Open(ctx)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	s.worker = worker
	h.logger.Info("harness ready")
	return s, nil
}

func (h *Harness) channelConfig() channel.Config {
	cfg := h.cfg.Channel
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	return cfg
}

// Session is a running harness.
type Session struct {
	module     harness.Module
	worker     *channel.Worker
	fitter     *viewport.Fitter
	subs       input.Group
	dispatcher eventloop.Dispatcher
	logger     *zap.Logger
	closeOnce  sync.Once
}

// Module returns the initialized compute module.
func (s *Session) Module() harness.Module {
	return s.module
}

// Worker returns the ready worker channel.
func (s *Session) Worker() *channel.Worker {
	return s.worker
}

// Close unsubscribes every listener, closes the worker and releases the
// module. It must not be called from the dispatcher's execution context.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.subs.Unsubscribe()
		if s.worker != nil {
			_ = s.worker.Close()
		}
		err := eventloop.Call(ctx, s.dispatcher, func() error {
			closeModule(ctx, s.module)
			return nil
		})
		if stderrors.Is(err, errLoopClosed) {
			// nothing else can touch the module
			closeModule(ctx, s.module)
		}
	})
	return nil
}

var errLoopClosed = &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindClosed}

// releaseModule closes module on d behind any call still queued for it.
// It does not wait, and it closes directly once d rejects work.
func releaseModule(ctx context.Context, d eventloop.Dispatcher, module harness.Module) {
	ctx = context.WithoutCancel(ctx)
	if !d.Dispatch(func() { closeModule(ctx, module) }) {
		closeModule(ctx, module)
	}
}

func closeModule(ctx context.Context, module harness.Module) {
	if c, ok := module.(interface{ Close(context.Context) error }); ok {
		_ = c.Close(ctx)
	}
}
