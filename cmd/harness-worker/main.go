//go:build js && wasm

// Command harness-worker runs inside a Web Worker: it loads the compute
// module, binds the worker scope and answers messages from the main page.
//
// The worker script publishes the module the same way the page does and may
// set self.canvasHarness = {module: "computeModule", variant: "request-response"}.
package main

import (
	"context"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/browser"
	"github.com/wippyai/canvas-harness/worker"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	browser.SetLogger(logger)
	worker.SetLogger(logger)

	ctx := context.Background()
	port := browser.ScopePort()

	variant, err := worker.ParseVariant(browser.Setting("variant", string(worker.RequestResponse)))
	if err != nil {
		fail(port, logger, err)
		return
	}

	exports := browser.DefaultExports()
	module, err := browser.Load(ctx, browser.Setting("module", "computeModule"), exports, exports.Worker(variant)...)
	if err != nil {
		fail(port, logger, err)
		return
	}
	defer module.Close(ctx)

	if err := worker.Serve(ctx, port, module, worker.Options{Variant: variant, Logger: logger}); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}

// fail answers the handshake with a non-sentinel message so the page fails
// fast instead of waiting out the handshake timeout.
func fail(port interface{ Post(harness.Message) error }, logger *zap.Logger, err error) {
	logger.Error("worker setup failed", zap.Error(err))
	_ = port.Post(harness.Message(harness.ErrorReply))
}
