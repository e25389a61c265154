// Command harness runs a compute module against a terminal canvas.
//
// The main module is instantiated on the UI loop; the worker module gets its
// own instance on a background goroutine and talks to the main module over
// the worker channel. Without a terminal (or with -headless) input is read
// line by line from stdin and the page is logged instead of drawn.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/bootstrap"
	"github.com/wippyai/canvas-harness/channel"
	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/eventloop"
	"github.com/wippyai/canvas-harness/guest"
	"github.com/wippyai/canvas-harness/present"
	"github.com/wippyai/canvas-harness/tui"
	"github.com/wippyai/canvas-harness/viewport"
	"github.com/wippyai/canvas-harness/worker"
)

type options struct {
	wasm             string
	workerWasm       string
	variant          string
	handshakeTimeout time.Duration
	target           string
	margin           float64
	cell             string
	memoryPages      uint
	entry            string
	wasi             bool
	headless         bool
	logLevel         string
	logFile          string
}

func main() {
	var o options
	flag.StringVar(&o.wasm, "wasm", "", "Path to the compute module")
	flag.StringVar(&o.workerWasm, "worker-wasm", "", "Path to the worker module (defaults to -wasm)")
	flag.StringVar(&o.variant, "variant", string(worker.RequestResponse), "Worker variant: relay or request-response")
	flag.DurationVar(&o.handshakeTimeout, "handshake-timeout", channel.DefaultHandshakeTimeout, "Worker handshake timeout (0 waits forever)")
	flag.StringVar(&o.target, "target", "1440x800", "Canvas size at scale 1 (WxH)")
	flag.Float64Var(&o.margin, "margin", viewport.DefaultMargin, "Margin subtracted from each viewport axis")
	flag.StringVar(&o.cell, "cell", "16x16", "Pixel size of one terminal cell (WxH)")
	flag.UintVar(&o.memoryPages, "memory-pages", 0, "Linear memory limit per instance in 64KiB pages (0 = default)")
	flag.StringVar(&o.entry, "entry", guest.DefaultEntryExport, "Entry export of the main module")
	flag.BoolVar(&o.wasi, "wasi", false, "Link wasi_snapshot_preview1 into both instances")
	flag.BoolVar(&o.headless, "headless", false, "Read keys from stdin instead of drawing a terminal UI")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&o.logFile, "log-file", "", "Log destination (defaults to stderr in headless mode, off otherwise)")
	flag.Parse()

	if o.wasm == "" {
		fmt.Fprintln(os.Stderr, "Usage: harness -wasm <module.wasm> [-worker-wasm <worker.wasm>] [-variant relay|request-response]")
		fmt.Fprintln(os.Stderr, "       harness -wasm <module.wasm> -headless  (read keys from stdin)")
		os.Exit(1)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options) error {
	stdoutFd := int(os.Stdout.Fd())
	headless := o.headless || !term.IsTerminal(stdoutFd)

	logger, err := newLogger(o.logLevel, o.logFile, headless)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	setLoggers(logger)

	cfg, err := harnessConfig(o, logger)
	if err != nil {
		return err
	}

	variant, err := worker.ParseVariant(o.variant)
	if err != nil {
		return err
	}

	workerPath := o.workerWasm
	if workerPath == "" {
		workerPath = o.wasm
	}
	workerWasm, err := os.ReadFile(workerPath)
	if err != nil {
		return fmt.Errorf("read worker module: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := wazero.NewCompilationCache()
	defer cache.Close(context.Background())

	gcfg := guest.DefaultConfig()
	gcfg.MemoryLimitPages = uint32(o.memoryPages)
	gcfg.EntryExport = o.entry
	gcfg.EnableWASI = o.wasi
	gcfg.Cache = cache
	gcfg.Logger = logger
	if headless {
		gcfg.Stdout, gcfg.Stderr = os.Stderr, os.Stderr
	}

	load := func(ctx context.Context) (harness.Module, error) {
		wasm, err := os.ReadFile(o.wasm)
		if err != nil {
			return nil, fmt.Errorf("read module: %w", err)
		}
		m, err := guest.LoadMain(ctx, wasm, gcfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	spawner := worker.NewSpawner(guest.NewWorkerFunc(workerWasm, variant, gcfg), worker.Options{Variant: variant, Logger: logger})

	if headless {
		return runHeadless(ctx, load, spawner, cfg, os.Stdin, os.Stderr, logger)
	}

	cols, rows, err := term.GetSize(stdoutFd)
	if err != nil {
		return fmt.Errorf("terminal size: %w", err)
	}
	cell, err := parseSize(o.cell)
	if err != nil {
		return fmt.Errorf("-cell: %w", err)
	}
	return runTUI(ctx, load, spawner, cfg, tui.Config{Cell: cell, Columns: cols, Rows: rows, Logger: logger}, logger)
}

func harnessConfig(o options, logger *zap.Logger) (bootstrap.Config, error) {
	cfg := bootstrap.DefaultConfig()
	cfg.Logger = logger
	cfg.Channel.HandshakeTimeout = o.handshakeTimeout

	target, err := parseSize(o.target)
	if err != nil {
		return cfg, fmt.Errorf("-target: %w", err)
	}
	cfg.Scaler = viewport.Scaler{Target: target, Margin: o.margin}
	return cfg, nil
}

func runTUI(ctx context.Context, load bootstrap.LoadFunc, spawner channel.Spawner, cfg bootstrap.Config, tcfg tui.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := tui.New(tcfg)
	prog := tea.NewProgram(page, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	page.Bind(prog.Send)

	sessions := make(chan *bootstrap.Session, 1)
	go func() {
		s, err := bootstrap.New(load, spawner, page, page, cfg).Run(ctx)
		if err != nil {
			// already on screen
			logger.Error("harness failed", zap.Error(err))
		} else {
			page.SetReady()
		}
		sessions <- s
	}()

	_, err := prog.Run()
	page.Stop()
	cancel()

	if s := <-sessions; s != nil {
		_ = s.Close(context.Background())
	}
	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

func runHeadless(ctx context.Context, load bootstrap.LoadFunc, spawner channel.Spawner, cfg bootstrap.Config, in io.Reader, out io.Writer, logger *zap.Logger) error {
	loop := eventloop.New()
	go loop.Run(ctx)
	defer loop.Stop()

	page := newHeadlessPage(out, headlessViewport)
	s, err := bootstrap.New(load, spawner, page, loop, cfg).Run(ctx)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	logger.Info("reading keys from stdin")
	return feedKeys(ctx, in, page, loop)
}

func newLogger(level, file string, headless bool) (*zap.Logger, error) {
	if file == "" {
		if !headless {
			// the terminal UI owns stdout and stderr
			return zap.NewNop(), nil
		}
		file = "stderr"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = lvl
	zcfg.OutputPaths = []string{file}
	zcfg.ErrorOutputPaths = []string{file}
	return zcfg.Build()
}

func setLoggers(l *zap.Logger) {
	bootstrap.SetLogger(l)
	channel.SetLogger(l)
	guest.SetLogger(l)
	present.SetLogger(l)
	tui.SetLogger(l)
	worker.SetLogger(l)
}

// parseSize parses "WxH" into a positive size.
func parseSize(s string) (viewport.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return viewport.Size{}, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("size %q: want WxH", s))
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return viewport.Size{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("size %q", s))
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return viewport.Size{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("size %q", s))
	}
	size := viewport.Size{Width: width, Height: height}
	if !size.Available() {
		return viewport.Size{}, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("size %q: dimensions must be positive", s))
	}
	return size, nil
}
