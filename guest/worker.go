package guest

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/worker"
)

// Worker is a compute module loaded inside a background worker.
type Worker struct {
	inst  *instance
	scope uint32
}

var _ harness.WorkerModule = (*Worker)(nil)

// LoadWorker compiles, validates against the contract of variant and
// instantiates wasm. The handler of the other variant need not be exported.
func LoadWorker(ctx context.Context, wasm []byte, variant worker.Variant, cfg Config) (*Worker, error) {
	inst, err := instantiate(ctx, "worker", wasm, WorkerContract(variant), nil, cfg)
	if err != nil {
		return nil, errors.LoadFailed(err)
	}
	return &Worker{inst: inst}, nil
}

// NewWorkerFunc returns a constructor suitable for a worker spawner.
// Each call loads a fresh instance.
func NewWorkerFunc(wasm []byte, variant worker.Variant, cfg Config) worker.NewModuleFunc {
	return func(ctx context.Context) (harness.WorkerModule, error) {
		return LoadWorker(ctx, wasm, variant, cfg)
	}
}

func (w *Worker) SetGlobalScope(ctx context.Context, scope harness.Sender) error {
	h := w.inst.handles.insert(scope)
	if _, err := w.inst.call(ctx, "worker-set-global-scope", api.EncodeU32(h)); err != nil {
		w.inst.handles.remove(h)
		return errors.HandlerFailed("worker_set_global_scope", err)
	}
	w.scope = h
	return nil
}

func (w *Worker) OnMessage(ctx context.Context, msg harness.Message) error {
	ptr, n, err := w.inst.write(ctx, "worker_on_message", msg)
	if err != nil {
		return err
	}
	if _, err := w.inst.call(ctx, "worker-on-message", api.EncodeU32(ptr), api.EncodeU32(n)); err != nil {
		return errors.HandlerFailed("worker_on_message", err)
	}
	return nil
}

func (w *Worker) Inc(ctx context.Context, msg harness.Message) (harness.Message, error) {
	ptr, n, err := w.inst.write(ctx, "worker_inc", msg)
	if err != nil {
		return nil, err
	}
	res, err := w.inst.call(ctx, "worker-inc", api.EncodeU32(ptr), api.EncodeU32(n))
	if err != nil {
		return nil, errors.HandlerFailed("worker_inc", err)
	}
	return w.inst.unpack("worker_inc", res[0])
}

// Close releases the guest's runtime.
func (w *Worker) Close(ctx context.Context) error {
	return w.inst.close(ctx)
}
