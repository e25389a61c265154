package guest

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
)

// Main is a compute module loaded for the main context.
// It is not safe for concurrent use.
type Main struct {
	inst   *instance
	worker uint32
}

var _ harness.Module = (*Main)(nil)

// LoadMain compiles, validates against MainContract and instantiates wasm.
// Any failure is reported as an init error.
func LoadMain(ctx context.Context, wasm []byte, cfg Config) (*Main, error) {
	var rename map[string]string
	if cfg.EntryExport != "" && cfg.EntryExport != DefaultEntryExport {
		rename = map[string]string{"entry": cfg.EntryExport}
	}
	inst, err := instantiate(ctx, "main", wasm, MainContract, rename, cfg)
	if err != nil {
		return nil, errors.LoadFailed(err)
	}
	return &Main{inst: inst}, nil
}

func (m *Main) Entry(ctx context.Context) error {
	if _, err := m.inst.call(ctx, "entry"); err != nil {
		return errors.EntryFailed(err)
	}
	return nil
}

func (m *Main) SetScale(ctx context.Context, factor float64) error {
	if _, err := m.inst.call(ctx, "set-scale", api.EncodeF64(factor)); err != nil {
		return errors.HandlerFailed("set_scale", err)
	}
	return nil
}

func (m *Main) PushKeyEvent(ctx context.Context, key string) error {
	ptr, n, err := m.inst.write(ctx, "push_key_event", []byte(key))
	if err != nil {
		return err
	}
	if _, err := m.inst.call(ctx, "push-key-event", api.EncodeU32(ptr), api.EncodeU32(n)); err != nil {
		return errors.HandlerFailed("push_key_event", err)
	}
	return nil
}

func (m *Main) PushTouchEvent(ctx context.Context, x, y float64, phase string) error {
	ptr, n, err := m.inst.write(ctx, "push_touch_event", []byte(phase))
	if err != nil {
		return err
	}
	_, err = m.inst.call(ctx, "push-touch-event",
		api.EncodeF64(x), api.EncodeF64(y), api.EncodeU32(ptr), api.EncodeU32(n))
	if err != nil {
		return errors.HandlerFailed("push_touch_event", err)
	}
	return nil
}

// SetWorker hands the guest a handle it can pass to post_message.
// A later call replaces the previous worker.
func (m *Main) SetWorker(ctx context.Context, worker harness.Sender) error {
	h := m.inst.handles.insert(worker)
	if _, err := m.inst.call(ctx, "set-worker", api.EncodeU32(h)); err != nil {
		m.inst.handles.remove(h)
		return errors.HandlerFailed("set_worker", err)
	}
	if m.worker != 0 {
		m.inst.handles.remove(m.worker)
	}
	m.worker = h
	return nil
}

func (m *Main) OnWorkerMessage(ctx context.Context, msg harness.Message) error {
	ptr, n, err := m.inst.write(ctx, "on_worker_message", msg)
	if err != nil {
		return err
	}
	if _, err := m.inst.call(ctx, "on-worker-message", api.EncodeU32(ptr), api.EncodeU32(n)); err != nil {
		return errors.HandlerFailed("on_worker_message", err)
	}
	return nil
}

// Close releases the guest's runtime.
func (m *Main) Close(ctx context.Context) error {
	return m.inst.close(ctx)
}
