// Package harness defines the contract between the canvas harness and the
// compute module it boots.
//
// The harness loads an opaque compute module, invokes its entry point once,
// keeps a fixed-aspect-ratio canvas fitted to the viewport, forwards keyboard
// and touch input, and bridges the module to a background worker over an
// ordered message channel.
//
// # Architecture Overview
//
//	harness/        Root package with Module, WorkerModule, Sender and Message
//	├── bootstrap/  Module loading, single entry invocation, component wiring
//	├── viewport/   Viewport-to-canvas fitting and scale propagation
//	├── input/      Keyboard/touch normalization and touch sessions
//	├── channel/    Worker handshake protocol and main-side relay
//	├── worker/     Worker-side serve loops (relay, request/response)
//	├── present/    Terminal error state
//	├── cmd/        harness (terminal), harness-web and harness-worker (js/wasm)
//	├── guest/      wazero-backed compute module host
//	├── eventloop/  Single-goroutine callback dispatcher
//	├── tui/        Terminal page (bubbletea)
//	├── browser/    DOM/Web Worker page (js/wasm only)
//	└── errors/     Structured error types
//
// # Quick Start
//
//	cfg := guest.DefaultConfig()
//	load := func(ctx context.Context) (harness.Module, error) {
//	    return guest.LoadMain(ctx, mainWasm, cfg)
//	}
//	variant := worker.RequestResponse
//	spawner := worker.NewSpawner(guest.NewWorkerFunc(workerWasm, variant, cfg),
//	    worker.Options{Variant: variant})
//
//	loop := eventloop.New()
//	go loop.Run(ctx)
//
//	session, err := bootstrap.New(load, spawner, page, loop, bootstrap.DefaultConfig()).Run(ctx)
//	if err != nil {
//	    return err // already shown on the page
//	}
//	defer session.Close(ctx)
//
// # Thread Safety
//
// Module and WorkerModule implementations are NOT thread-safe. The main-side
// module is only touched from the event loop; each worker owns its module on
// its own goroutine. Messages cross between them by copy.
package harness
