//go:build js && wasm

// Command harness-web runs the canvas harness in a web page.
//
// The page publishes the compute module (or a promise of it) on window and
// may configure the harness through window.canvasHarness:
//
//	window.canvasHarness = {
//		module: "computeModule",   // global holding the module
//		worker: "worker.js",       // worker script URL
//		workerType: "module",      // "module" or "classic"
//	};
package main

import (
	"context"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/bootstrap"
	"github.com/wippyai/canvas-harness/browser"
	"github.com/wippyai/canvas-harness/channel"
	"github.com/wippyai/canvas-harness/eventloop"
	"github.com/wippyai/canvas-harness/present"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	browser.SetLogger(logger)
	bootstrap.SetLogger(logger)
	channel.SetLogger(logger)
	present.SetLogger(logger)

	ctx := context.Background()
	loop := eventloop.New()
	go loop.Run(ctx)

	exports := browser.DefaultExports()
	global := browser.Setting("module", "computeModule")
	load := func(ctx context.Context) (harness.Module, error) {
		return browser.Load(ctx, global, exports, exports.Main()...)
	}
	spawner := browser.Spawner{
		URL:    browser.Setting("worker", "worker.js"),
		Module: browser.Setting("workerType", "module") == "module",
	}

	cfg := bootstrap.DefaultConfig()
	cfg.Logger = logger

	go func() {
		if _, err := bootstrap.New(load, spawner, browser.NewPage(), loop, cfg).Run(ctx); err != nil {
			logger.Error("harness failed", zap.Error(err))
		}
	}()

	// Keep the Go runtime alive for DOM callbacks.
	select {}
}
