// Package wasmbin assembles small core WebAssembly modules in memory.
// It exists so tests can produce guest binaries without a toolchain.
package wasmbin

import "math"

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) equal(o FuncType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type global struct {
	typ     ValType
	mutable bool
	init    []byte
}

type segment struct {
	offset uint32
	data   []byte
}

// Module is a module under construction. Imports must be declared before
// any local function so that function indices stay stable.
type Module struct {
	types    []FuncType
	imports  []importFunc
	funcs    []function
	memory   *uint32
	globals  []global
	exports  []export
	segments []segment
}

func (m *Module) typeIndex(t FuncType) uint32 {
	for i, existing := range m.types {
		if existing.equal(t) {
			return uint32(i)
		}
	}
	m.types = append(m.types, t)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares an imported function and returns its index.
func (m *Module) ImportFunc(module, name string, t FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmbin: imports must precede local functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typeIdx: m.typeIndex(t)})
	return uint32(len(m.imports) - 1)
}

// Func adds a local function and returns its index. body is the
// instruction sequence without the trailing end opcode.
func (m *Module) Func(t FuncType, locals []ValType, body ...[]byte) uint32 {
	var code []byte
	for _, b := range body {
		code = append(code, b...)
	}
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(t), locals: locals, body: code})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module's single memory with min pages.
func (m *Module) Memory(min uint32) {
	m.memory = &min
}

// GlobalI32 adds a mutable i32 global and returns its index.
func (m *Module) GlobalI32(init int32) uint32 {
	m.globals = append(m.globals, global{typ: I32, mutable: true, init: I32Const(init)})
	return uint32(len(m.globals) - 1)
}

// Data places bytes at offset in memory 0 at instantiation.
func (m *Module) Data(offset uint32, data []byte) {
	m.segments = append(m.segments, segment{offset: offset, data: data})
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindMemory})
}

// ExportGlobal exports global idx under name.
func (m *Module) ExportGlobal(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindGlobal, idx: idx})
}

// Encode returns the binary encoding of the module.
func (m *Module) Encode() []byte {
	var w writer
	w.raw([]byte{0x00, 0x61, 0x73, 0x6d})
	w.u32le(1)

	if len(m.types) > 0 {
		var sec writer
		sec.u32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.byte(0x60)
			sec.valTypes(t.Params)
			sec.valTypes(t.Results)
		}
		w.section(sectionType, &sec)
	}

	if len(m.imports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(sectionFunction, &sec)
	}

	if m.memory != nil {
		var sec writer
		sec.u32(1)
		sec.byte(0x00) // no max
		sec.u32(*m.memory)
		w.section(sectionMemory, &sec)
	}

	if len(m.globals) > 0 {
		var sec writer
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.byte(byte(g.typ))
			if g.mutable {
				sec.byte(0x01)
			} else {
				sec.byte(0x00)
			}
			sec.raw(g.init)
			sec.byte(opEnd)
		}
		w.section(sectionGlobal, &sec)
	}

	if len(m.exports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.idx)
		}
		w.section(sectionExport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body writer
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.raw(f.body)
			body.byte(opEnd)

			sec.u32(uint32(len(body.bytes())))
			sec.raw(body.bytes())
		}
		w.section(sectionCode, &sec)
	}

	if len(m.segments) > 0 {
		var sec writer
		sec.u32(uint32(len(m.segments)))
		for _, s := range m.segments {
			sec.byte(0x00) // active, memory 0
			sec.raw(I32Const(int32(s.offset)))
			sec.byte(opEnd)
			sec.u32(uint32(len(s.data)))
			sec.raw(s.data)
		}
		w.section(sectionData, &sec)
	}

	return w.bytes()
}

const (
	opUnreachable   = 0x00
	opIf            = 0x04
	opEnd           = 0x0b
	opCall          = 0x10
	opDrop          = 0x1a
	opLocalGet      = 0x20
	opLocalSet      = 0x21
	opGlobalGet     = 0x23
	opGlobalSet     = 0x24
	opI32Load       = 0x28
	opI32Load8U     = 0x2d
	opI32Store      = 0x36
	opF64Store      = 0x39
	opI32Store8     = 0x3a
	opI32Const      = 0x41
	opI64Const      = 0x42
	opF64Const      = 0x44
	opI32Eqz        = 0x45
	opI32Add        = 0x6a
	opI64Or         = 0x84
	opI64Shl        = 0x86
	opI64ExtendI32U = 0xad
	blockEmpty      = 0x40
)

// Unreachable traps.
func Unreachable() []byte { return []byte{opUnreachable} }

// Drop discards the top of the stack.
func Drop() []byte { return []byte{opDrop} }

// Call calls function idx.
func Call(idx uint32) []byte { return appendU32([]byte{opCall}, idx) }

// LocalGet pushes local i.
func LocalGet(i uint32) []byte { return appendU32([]byte{opLocalGet}, i) }

// LocalSet pops into local i.
func LocalSet(i uint32) []byte { return appendU32([]byte{opLocalSet}, i) }

// GlobalGet pushes global i.
func GlobalGet(i uint32) []byte { return appendU32([]byte{opGlobalGet}, i) }

// GlobalSet pops into global i.
func GlobalSet(i uint32) []byte { return appendU32([]byte{opGlobalSet}, i) }

// I32Const pushes v.
func I32Const(v int32) []byte { return appendS64([]byte{opI32Const}, int64(v)) }

// I64Const pushes v.
func I64Const(v int64) []byte { return appendS64([]byte{opI64Const}, v) }

// F64Const pushes v.
func F64Const(v float64) []byte {
	b := []byte{opF64Const}
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b = append(b, byte(bits>>(8*i)))
	}
	return b
}

func memarg(op byte, align, offset uint32) []byte {
	return appendU32(appendU32([]byte{op}, align), offset)
}

// I32Load loads an i32 from address + offset.
func I32Load(offset uint32) []byte { return memarg(opI32Load, 2, offset) }

// I32Load8U loads a zero-extended byte from address + offset.
func I32Load8U(offset uint32) []byte { return memarg(opI32Load8U, 0, offset) }

// I32Store stores an i32 at address + offset.
func I32Store(offset uint32) []byte { return memarg(opI32Store, 2, offset) }

// I32Store8 stores the low byte of an i32 at address + offset.
func I32Store8(offset uint32) []byte { return memarg(opI32Store8, 0, offset) }

// F64Store stores an f64 at address + offset.
func F64Store(offset uint32) []byte { return memarg(opF64Store, 3, offset) }

// I32Eqz tests the top of the stack for zero.
func I32Eqz() []byte { return []byte{opI32Eqz} }

// I32Add adds two i32s.
func I32Add() []byte { return []byte{opI32Add} }

// I64ExtendI32U zero-extends an i32 to i64.
func I64ExtendI32U() []byte { return []byte{opI64ExtendI32U} }

// I64Shl shifts left.
func I64Shl() []byte { return []byte{opI64Shl} }

// I64Or ors two i64s.
func I64Or() []byte { return []byte{opI64Or} }

// If runs then when the popped i32 is non-zero.
func If(then ...[]byte) []byte {
	b := []byte{opIf, blockEmpty}
	for _, t := range then {
		b = append(b, t...)
	}
	return append(b, opEnd)
}
