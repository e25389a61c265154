package guest

import (
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/canvas-harness/worker"
)

func TestParseContract(t *testing.T) {
	funcs, err := parseContract(MainContract)
	if err != nil {
		t.Fatalf("parseContract: %v", err)
	}
	want := []string{"alloc", "entry", "set-scale", "push-key-event", "push-touch-event", "set-worker", "on-worker-message"}
	if len(funcs) != len(want) {
		t.Errorf("got %d functions, want %d", len(funcs), len(want))
	}
	for _, name := range want {
		if _, ok := funcs[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
	if sig := funcs["push-touch-event"]; len(sig.params) != 3 || len(sig.results) != 0 {
		t.Errorf("push-touch-event = %d params, %d results", len(sig.params), len(sig.results))
	}
}

func TestParseContract_Empty(t *testing.T) {
	if _, err := parseContract("// nothing here"); err == nil {
		t.Error("expected error")
	}
}

func TestFlatten(t *testing.T) {
	funcs, err := parseContract(MainContract + RelayWorkerContract + RequestResponseWorkerContract)
	if err != nil {
		t.Fatalf("parseContract: %v", err)
	}

	i32, i64, f64 := api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF64
	tests := []struct {
		name    string
		params  []api.ValueType
		results []api.ValueType
	}{
		{"alloc", []api.ValueType{i32}, []api.ValueType{i32}},
		{"entry", nil, nil},
		{"set-scale", []api.ValueType{f64}, nil},
		{"push-key-event", []api.ValueType{i32, i32}, nil},
		{"push-touch-event", []api.ValueType{f64, f64, i32, i32}, nil},
		{"worker-on-message", []api.ValueType{i32, i32}, nil},
		{"worker-inc", []api.ValueType{i32, i32}, []api.ValueType{i64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, err := flatten(tt.name, funcs[tt.name])
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
			if !sameTypes(core.params, tt.params) || !sameTypes(core.results, tt.results) {
				t.Errorf("got %s", core)
			}
		})
	}
}

func TestFlatten_Unsupported(t *testing.T) {
	sig := &funcSignature{params: []wit.Type{&wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}}}
	if _, err := flatten("bad", sig); err == nil {
		t.Error("expected unsupported type error")
	}
}

func TestExportName(t *testing.T) {
	if got := exportName("on-worker-message"); got != "on_worker_message" {
		t.Errorf("exportName = %q", got)
	}
}

func TestSplitParams(t *testing.T) {
	got := splitParams("a: u32, b: tuple<u32, u64>, c: string")
	if len(got) != 3 || got[1] != "b: tuple<u32, u64>" {
		t.Errorf("splitParams = %q", got)
	}
}

func TestWorkerContract(t *testing.T) {
	tests := []struct {
		variant worker.Variant
		want    string
		absent  string
	}{
		{worker.Relay, "worker-on-message", "worker-inc"},
		{worker.RequestResponse, "worker-inc", "worker-on-message"},
		{"", "worker-on-message", "worker-inc"},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			funcs, err := parseContract(WorkerContract(tt.variant))
			if err != nil {
				t.Fatalf("parseContract: %v", err)
			}
			for _, name := range []string{"alloc", "worker-set-global-scope", tt.want} {
				if _, ok := funcs[name]; !ok {
					t.Errorf("missing %s", name)
				}
			}
			if _, ok := funcs[tt.absent]; ok {
				t.Errorf("%s should not be required", tt.absent)
			}
		})
	}
}
