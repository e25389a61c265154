package guest

import "github.com/wippyai/canvas-harness/guest/internal/wasmbin"

// Memory layout shared by the test guests.
const (
	addrScale  = 0
	addrTouchX = 8
	addrTouchY = 16
	addrHandle = 24
	addrReady  = 512
	heapBase   = 1024
)

var (
	sigPost  = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32, wasmbin.I32}}
	sigLog   = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32}}
	sigAlloc = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32}, Results: []wasmbin.ValType{wasmbin.I32}}
	sigVoid  = wasmbin.FuncType{}
	sigI32   = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32}}
	sigF64   = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.F64}}
	sigStr   = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32}}
	sigTouch = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.F64, wasmbin.F64, wasmbin.I32, wasmbin.I32}}
	sigInc   = wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32}, Results: []wasmbin.ValType{wasmbin.I64}}
)

type mainGuestOptions struct {
	entryName  string
	failEntry  bool
	omit       string
	scaleAsI32 bool
	noMemory   bool
	minPages   uint32
}

// guestBase declares harness.post_message (0) and harness.log (1), then the
// memory and bump allocator every guest shares. The memory is always
// defined so loads and stores compile; exportMemory controls whether the
// host can see it.
func guestBase(m *wasmbin.Module, minPages uint32, exportMemory bool) {
	m.ImportFunc(HostModule, "post_message", sigPost)
	m.ImportFunc(HostModule, "log", sigLog)
	if minPages == 0 {
		minPages = 1
	}
	m.Memory(minPages)
	if exportMemory {
		m.ExportMemory(MemoryExport)
	}
	heap := m.GlobalI32(heapBase)
	alloc := m.Func(sigAlloc, nil,
		wasmbin.GlobalGet(heap),
		wasmbin.GlobalGet(heap), wasmbin.LocalGet(0), wasmbin.I32Add(), wasmbin.GlobalSet(heap),
	)
	m.ExportFunc("alloc", alloc)
}

// mainGuest logs "ready" from entry, stores the scale and touch coordinates
// in memory, logs key and touch strings, forwards keys to the worker once
// one is set, and logs worker messages. The worker handle lives at
// addrHandle; push_key_event in text form is
//
//	(func (export "push_key_event") (param $p i32) (param $n i32)
//	  (call $log (local.get $p) (local.get $n))
//	  (if (i32.load offset=24 (i32.const 0))
//	    (then (call $post_message (i32.load offset=24 (i32.const 0)) (local.get $p) (local.get $n)))))
func mainGuest(opts mainGuestOptions) []byte {
	var m wasmbin.Module
	guestBase(&m, opts.minPages, !opts.noMemory)
	m.Data(addrReady, []byte("ready"))

	export := func(name string, idx uint32) {
		if name != opts.omit {
			m.ExportFunc(name, idx)
		}
	}

	entryBody := [][]byte{wasmbin.I32Const(addrReady), wasmbin.I32Const(5), wasmbin.Call(1)}
	if opts.failEntry {
		entryBody = [][]byte{wasmbin.Unreachable()}
	}
	entryName := opts.entryName
	if entryName == "" {
		entryName = "entry"
	}
	export(entryName, m.Func(sigVoid, nil, entryBody...))

	if opts.scaleAsI32 {
		export("set_scale", m.Func(sigI32, nil))
	} else {
		export("set_scale", m.Func(sigF64, nil,
			wasmbin.I32Const(0), wasmbin.LocalGet(0), wasmbin.F64Store(addrScale),
		))
	}

	export("push_key_event", m.Func(sigStr, nil,
		wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Call(1),
		wasmbin.I32Const(0), wasmbin.I32Load(addrHandle),
		wasmbin.If(
			wasmbin.I32Const(0), wasmbin.I32Load(addrHandle),
			wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Call(0),
		),
	))

	export("push_touch_event", m.Func(sigTouch, nil,
		wasmbin.I32Const(0), wasmbin.LocalGet(0), wasmbin.F64Store(addrTouchX),
		wasmbin.I32Const(0), wasmbin.LocalGet(1), wasmbin.F64Store(addrTouchY),
		wasmbin.LocalGet(2), wasmbin.LocalGet(3), wasmbin.Call(1),
	))

	export("set_worker", m.Func(sigI32, nil,
		wasmbin.I32Const(0), wasmbin.LocalGet(0), wasmbin.I32Store(addrHandle),
	))

	export("on_worker_message", m.Func(sigStr, nil,
		wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Call(1),
	))

	return m.Encode()
}

// workerGuest echoes relay messages through its scope and, for inc,
// increments the first byte in place. inc traps on empty input. Exports
// named in omit are left out. In text form:
//
//	(func (export "worker_set_global_scope") (param $h i32)
//	  (i32.store offset=24 (i32.const 0) (local.get $h)))
//	(func (export "worker_on_message") (param $p i32) (param $n i32)
//	  (call $post_message (i32.load offset=24 (i32.const 0)) (local.get $p) (local.get $n)))
//	(func (export "worker_inc") (param $p i32) (param $n i32) (result i64)
//	  (if (i32.eqz (local.get $n)) (then unreachable))
//	  (i32.store8 (local.get $p) (i32.add (i32.load8_u (local.get $p)) (i32.const 1)))
//	  (i64.or (i64.shl (i64.extend_i32_u (local.get $p)) (i64.const 32))
//	          (i64.extend_i32_u (local.get $n))))
func workerGuest(omit ...string) []byte {
	var m wasmbin.Module
	guestBase(&m, 1, true)

	export := func(name string, idx uint32) {
		for _, o := range omit {
			if o == name {
				return
			}
		}
		m.ExportFunc(name, idx)
	}

	export("worker_set_global_scope", m.Func(sigI32, nil,
		wasmbin.I32Const(0), wasmbin.LocalGet(0), wasmbin.I32Store(addrHandle),
	))

	export("worker_on_message", m.Func(sigStr, nil,
		wasmbin.I32Const(0), wasmbin.I32Load(addrHandle),
		wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Call(0),
	))

	export("worker_inc", m.Func(sigInc, nil,
		wasmbin.LocalGet(1), wasmbin.I32Eqz(), wasmbin.If(wasmbin.Unreachable()),
		wasmbin.LocalGet(0),
		wasmbin.LocalGet(0), wasmbin.I32Load8U(0), wasmbin.I32Const(1), wasmbin.I32Add(),
		wasmbin.I32Store8(0),
		wasmbin.LocalGet(0), wasmbin.I64ExtendI32U(), wasmbin.I64Const(32), wasmbin.I64Shl(),
		wasmbin.LocalGet(1), wasmbin.I64ExtendI32U(), wasmbin.I64Or(),
	))

	return m.Encode()
}
