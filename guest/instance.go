package guest

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	harness "github.com/wippyai/canvas-harness"
	"github.com/wippyai/canvas-harness/errors"
)

const (
	// HostModule is the import module name guests use for host functions.
	HostModule = "harness"

	// DefaultEntryExport is the main module's entry export.
	DefaultEntryExport = "entry"
)

// Config configures guest loading.
type Config struct {
	// MemoryLimitPages caps linear memory per instance in 64KiB pages.
	// Zero keeps the wazero default.
	MemoryLimitPages uint32

	// EntryExport names the main module's entry function.
	EntryExport string

	// EnableWASI links wasi_snapshot_preview1 for guests built by
	// toolchains that import it.
	EnableWASI bool

	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Cache shares compiled code between the main and worker instances.
	Cache wazero.CompilationCache

	// Logger overrides the package logger.
	Logger *zap.Logger
}

// DefaultConfig returns the default guest configuration.
func DefaultConfig() Config {
	return Config{EntryExport: DefaultEntryExport}
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

// instance is one guest module in its own wazero runtime, with the host
// module bound to its handle table.
type instance struct {
	name    string
	rt      wazero.Runtime
	mod     api.Module
	fns     map[string]api.Function
	handles handleTable
	logger  *zap.Logger
}

func instantiate(ctx context.Context, name string, wasm []byte, contract string, rename map[string]string, cfg Config) (*instance, error) {
	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.Cache != nil {
		rc = rc.WithCompilationCache(cfg.Cache)
	}

	inst := &instance{
		name:   name,
		rt:     wazero.NewRuntimeWithConfig(ctx, rc),
		fns:    make(map[string]api.Function),
		logger: cfg.logger().With(zap.String("guest", name)),
	}

	mod, err := inst.load(ctx, wasm, contract, rename, cfg)
	if err != nil {
		_ = inst.rt.Close(ctx)
		return nil, err
	}
	inst.mod = mod
	return inst, nil
}

func (i *instance) load(ctx context.Context, wasm []byte, contract string, rename map[string]string, cfg Config) (api.Module, error) {
	_, err := i.rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().WithFunc(i.postMessage).Export("post_message").
		NewFunctionBuilder().WithFunc(i.hostLog).Export("log").
		Instantiate(ctx)
	if err != nil {
		return nil, errors.Load("link host module", err)
	}

	if cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, i.rt); err != nil {
			return nil, errors.Load("link wasi", err)
		}
	}

	compiled, err := i.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile", err)
	}

	bindings, err := validate(compiled, contract, rename)
	if err != nil {
		return nil, err
	}

	modCfg := wazero.NewModuleConfig().WithName(i.name).WithStartFunctions()
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}

	mod, err := i.rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, errors.Load("instantiate", err)
	}

	for name, b := range bindings {
		i.fns[name] = mod.ExportedFunction(b.export)
	}
	i.logger.Debug("guest loaded", zap.Int("exports", len(bindings)))
	return mod, nil
}

// call invokes a contract function. Traps come back as errors.
func (i *instance) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.fns[name]
	if !ok {
		// not part of the contract this instance was loaded with
		return nil, errors.MissingExport(exportName(name))
	}
	return fn.Call(ctx, params...)
}

// write copies data into guest memory obtained from the guest's allocator.
func (i *instance) write(ctx context.Context, op string, data []byte) (uint32, uint32, error) {
	res, err := i.call(ctx, "alloc", api.EncodeU32(uint32(len(data))))
	if err != nil {
		return 0, 0, errors.HandlerFailed("alloc", err)
	}
	ptr := api.DecodeU32(res[0])
	if !i.mod.Memory().Write(ptr, data) {
		return 0, 0, errors.OutOfBounds(op, ptr, uint32(len(data)))
	}
	return ptr, uint32(len(data)), nil
}

// read copies a guest memory range out.
func (i *instance) read(m api.Module, op string, ptr, length uint32) (harness.Message, error) {
	data, ok := m.Memory().Read(ptr, length)
	if !ok {
		return nil, errors.OutOfBounds(op, ptr, length)
	}
	return harness.Message(data).Clone(), nil
}

// unpack reads a string result packed as ptr<<32 | len.
func (i *instance) unpack(op string, packed uint64) (harness.Message, error) {
	return i.read(i.mod, op, uint32(packed>>32), uint32(packed))
}

// postMessage implements harness.post_message(handle, ptr, len).
// Bad handles and ranges trap the calling guest.
func (i *instance) postMessage(_ context.Context, m api.Module, handle, ptr, length uint32) {
	msg, err := i.read(m, "post_message", ptr, length)
	if err != nil {
		panic(err)
	}
	sender, ok := i.handles.get(handle)
	if !ok {
		panic(errors.InvalidHandle("post_message", handle))
	}
	if err := sender.Post(msg); err != nil {
		i.logger.Warn("guest post failed", zap.Uint32("handle", handle), zap.Error(err))
	}
}

// hostLog implements harness.log(ptr, len).
func (i *instance) hostLog(_ context.Context, m api.Module, ptr, length uint32) {
	msg, err := i.read(m, "log", ptr, length)
	if err != nil {
		panic(err)
	}
	i.logger.Info("guest log", zap.ByteString("message", msg))
}

func (i *instance) close(ctx context.Context) error {
	return i.rt.Close(ctx)
}
