// Package worker implements the worker side of the channel: binding the
// compute module to its outbound port, emitting the handshake sentinel, and
// serving inbound messages in one of two variants.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/channel"
	"github.com/wippyai/canvas-harness/errors"
)

// Variant selects the steady-state shape of a worker.
type Variant string

const (
	// Relay forwards inbound messages to the module; failures are logged
	// and the sender receives no reply.
	Relay Variant = "relay"

	// RequestResponse replies to every inbound message with the module's
	// result, or with "error" when the module raises.
	RequestResponse Variant = "request-response"
)

// ParseVariant parses a variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Relay, RequestResponse:
		return Variant(s), nil
	case "":
		return Relay, nil
	default:
		return "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown worker variant %q", s))
	}
}

// Options configures Serve.
type Options struct {
	Variant Variant
	Logger  *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return Logger()
}

// Serve runs a worker on port until the port closes or ctx is done.
//
// The module's scope is bound before the sentinel is emitted, so the main
// side never observes a Ready worker whose module cannot post. If binding
// fails the port is closed without a sentinel.
func Serve(ctx context.Context, port channel.Port, module harness.WorkerModule, opts Options) error {
	log := opts.logger()
	variant := opts.Variant
	if variant == "" {
		variant = Relay
	}

	if err := module.SetGlobalScope(ctx, port); err != nil {
		log.Error("worker setup failed", zap.Error(err))
		_ = port.Close()
		return errors.HandlerFailed("worker_set_global_scope", err)
	}

	if err := port.Post(harness.Message(harness.Sentinel)); err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-port.Messages():
			if !ok {
				return nil
			}
			switch variant {
			case RequestResponse:
				reply := respond(ctx, module, msg, log)
				if err := port.Post(reply); err != nil {
					log.Debug("reply dropped", zap.Error(err))
				}
			default:
				relay(ctx, module, msg, log)
			}
		case <-ctx.Done():
			_ = port.Close()
			return ctx.Err()
		}
	}
}

func relay(ctx context.Context, module harness.WorkerModule, msg harness.Message, log *zap.Logger) {
	log.Debug("worker message", zap.ByteString("data", msg))
	if err := module.OnMessage(ctx, msg); err != nil {
		log.Error("worker handler failed", zap.Error(errors.HandlerFailed("worker_on_message", err)))
	}
}

func respond(ctx context.Context, module harness.WorkerModule, msg harness.Message, log *zap.Logger) harness.Message {
	log.Debug("worker message", zap.ByteString("data", msg))
	result, err := module.Inc(ctx, msg)
	if err != nil {
		log.Error("worker handler failed", zap.Error(errors.HandlerFailed("worker_inc", err)))
		result = harness.Message(harness.ErrorReply)
	}
	log.Debug("worker result", zap.ByteString("data", result))
	return result
}

// NewModuleFunc creates the compute module instance a worker owns.
type NewModuleFunc func(ctx context.Context) (harness.WorkerModule, error)

// Spawner starts each worker on its own goroutine with a freshly created
// module. Worker and main share nothing but the port.
type Spawner struct {
	newModule NewModuleFunc
	opts      Options
}

// NewSpawner creates a Spawner.
func NewSpawner(newModule NewModuleFunc, opts Options) *Spawner {
	return &Spawner{newModule: newModule, opts: opts}
}

// Spawn implements channel.Spawner. Module creation happens on the worker
// goroutine; if it fails the worker closes its port and the main side's
// handshake fails.
func (s *Spawner) Spawn(ctx context.Context) (channel.Port, error) {
	main, port := channel.Pipe()
	workerCtx := context.WithoutCancel(ctx)
	log := s.opts.logger()

	go func() {
		module, err := s.newModule(workerCtx)
		if err != nil {
			log.Error("worker module load failed", zap.Error(err))
			_ = port.Close()
			return
		}
		if c, ok := module.(interface{ Close(context.Context) error }); ok {
			defer c.Close(workerCtx)
		}
		if err := Serve(workerCtx, port, module, s.opts); err != nil {
			log.Debug("worker stopped", zap.Error(err))
		}
	}()

	return main, nil
}
