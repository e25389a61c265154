package guest

import (
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/canvas-harness/errors"
	"github.com/wippyai/canvas-harness/worker"
)

// MainContract lists the exports a main-context compute module provides.
// Strings cross the boundary as (ptr, len) pairs in guest memory.
const MainContract = `
alloc: func(size: u32) -> u32;
entry: func();
set-scale: func(factor: f64);
push-key-event: func(key: string);
push-touch-event: func(x: f64, y: f64, phase: string);
set-worker: func(worker: u32);
on-worker-message: func(data: string);
`

// workerScopeContract is what every worker module provides regardless of
// how it answers messages.
const workerScopeContract = `
alloc: func(size: u32) -> u32;
worker-set-global-scope: func(scope: u32);
`

// RelayWorkerContract lists the exports of a worker that handles messages
// without replying.
const RelayWorkerContract = workerScopeContract + `
worker-on-message: func(data: string);
`

// RequestResponseWorkerContract lists the exports of a worker that answers
// every message. A string result is returned packed as ptr<<32 | len.
const RequestResponseWorkerContract = workerScopeContract + `
worker-inc: func(data: string) -> string;
`

// WorkerContract returns the contract a worker module must satisfy for
// variant. Only the handler the variant calls is required.
func WorkerContract(variant worker.Variant) string {
	if variant == worker.RequestResponse {
		return RequestResponseWorkerContract
	}
	return RelayWorkerContract
}

// MemoryExport is the name of the linear memory every guest exports.
const MemoryExport = "memory"

type funcSignature struct {
	params  []wit.Type
	results []wit.Type
}

type coreSignature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s coreSignature) String() string {
	return "(" + valueTypeNames(s.params) + ") -> (" + valueTypeNames(s.results) + ")"
}

func valueTypeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// parseContract extracts function signatures from WIT text.
// Pattern: name: func(params) -> result;
func parseContract(witText string) (map[string]*funcSignature, error) {
	funcs := make(map[string]*funcSignature)

	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		name := match[1]
		sig := &funcSignature{}

		for _, p := range splitParams(strings.TrimSpace(match[2])) {
			typStr := p
			if idx := strings.LastIndex(p, ":"); idx != -1 {
				typStr = p[idx+1:]
			}
			t, err := wit.ParseType(strings.TrimSpace(typStr))
			if err != nil {
				return nil, errors.Wrap(errors.PhaseContract, errors.KindInvalidInput, err, "parse param type "+typStr)
			}
			sig.params = append(sig.params, t)
		}

		if result := strings.TrimSpace(match[3]); result != "" && result != "()" {
			t, err := wit.ParseType(result)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseContract, errors.KindInvalidInput, err, "parse result type "+result)
			}
			sig.results = []wit.Type{t}
		}

		funcs[name] = sig
	}

	if len(funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseContract, "no functions found in contract")
	}
	return funcs, nil
}

// splitParams splits a parameter list, handling nested parens and angle brackets.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}

// flatten lowers a WIT signature to the core signature the guest exports.
func flatten(name string, sig *funcSignature) (coreSignature, error) {
	var core coreSignature
	for _, p := range sig.params {
		if _, ok := p.(wit.String); ok {
			core.params = append(core.params, api.ValueTypeI32, api.ValueTypeI32)
			continue
		}
		vt, err := scalar(name, p)
		if err != nil {
			return coreSignature{}, err
		}
		core.params = append(core.params, vt)
	}
	for _, r := range sig.results {
		if _, ok := r.(wit.String); ok {
			core.results = append(core.results, api.ValueTypeI64)
			continue
		}
		vt, err := scalar(name, r)
		if err != nil {
			return coreSignature{}, err
		}
		core.results = append(core.results, vt)
	}
	return core, nil
}

func scalar(name string, t wit.Type) (api.ValueType, error) {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.U64, wit.S64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	default:
		return 0, errors.InvalidInput(errors.PhaseContract, "unsupported type in "+name)
	}
}

// exportName maps a contract name to the core export name.
func exportName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// binding is a validated export: the contract name, the core export it maps
// to and the signature it was checked against.
type binding struct {
	name   string
	export string
	sig    coreSignature
}

// validate checks compiled against contract and returns the bindings keyed
// by contract name. rename maps contract names to non-default export names.
func validate(compiled wazero.CompiledModule, contract string, rename map[string]string) (map[string]binding, error) {
	funcs, err := parseContract(contract)
	if err != nil {
		return nil, err
	}

	if _, ok := compiled.ExportedMemories()[MemoryExport]; !ok {
		return nil, errors.MissingExport(MemoryExport)
	}

	exported := compiled.ExportedFunctions()
	bindings := make(map[string]binding, len(funcs))
	for name, sig := range funcs {
		want, err := flatten(name, sig)
		if err != nil {
			return nil, err
		}

		export := exportName(name)
		if r, ok := rename[name]; ok && r != "" {
			export = r
		}

		def, ok := exported[export]
		if !ok {
			return nil, errors.MissingExport(export)
		}
		got := coreSignature{params: def.ParamTypes(), results: def.ResultTypes()}
		if !sameTypes(want.params, got.params) || !sameTypes(want.results, got.results) {
			return nil, errors.SignatureMismatch(export, want.String(), got.String())
		}

		bindings[name] = binding{name: name, export: export, sig: want}
	}
	return bindings, nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
