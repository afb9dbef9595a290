package remap

import (
	"fmt"
	"slices"

	"asremap/internal/types"
)

// typeMapper rewrites the address spaces inside types. One mapper serves
// exactly one pass run: its memo ties every source type to a single result,
// which is what keeps recursive structs finite and shared types shared.
type typeMapper struct {
	in   *types.Interner
	fn   Func
	memo map[types.TypeID]types.TypeID

	// named lists identified structs that received a placeholder. Their
	// names move to the placeholder only when the pass commits.
	named []structPair

	remapped int
	err      error
}

type structPair struct {
	old, repl types.TypeID
}

func newTypeMapper(in *types.Interner, fn Func) *typeMapper {
	return &typeMapper{
		in:   in,
		fn:   fn,
		memo: make(map[types.TypeID]types.TypeID),
	}
}

// space applies the remap function, recording the first invalid result.
func (tm *typeMapper) space(as types.AddrSpace) types.AddrSpace {
	to := tm.fn(as)
	if to > types.MaxAddrSpace {
		if tm.err == nil {
			tm.err = fmt.Errorf("addrspace(%d) maps to %d: %w", as, to, ErrInvalidTag)
		}
		return as
	}
	return to
}

// remap returns the rewritten form of id.
func (tm *typeMapper) remap(id types.TypeID) types.TypeID {
	if id == types.NoTypeID {
		return id
	}
	if to, ok := tm.memo[id]; ok {
		return to
	}
	tt, ok := tm.in.Lookup(id)
	if !ok {
		return id
	}

	to := id
	switch tt.Kind {
	case types.KindPointer:
		to = tm.in.TypedPointer(tm.remap(tt.Elem), tm.space(tt.AddrSpace))
	case types.KindArray:
		to = tm.in.Array(tm.remap(tt.Elem), tt.Count)
	case types.KindVector:
		to = tm.in.Vector(tm.remap(tt.Elem), tt.Count, tt.Scalable)
	case types.KindFunc:
		to = tm.function(id)
	case types.KindStruct:
		to = tm.structure(id)
	}
	tm.memo[id] = to
	if to != id {
		tm.remapped++
	}
	return to
}

func (tm *typeMapper) function(id types.TypeID) types.TypeID {
	info, ok := tm.in.FnInfo(id)
	if !ok {
		return id
	}
	// Interning new signatures may grow the interner tables, so copy first.
	params := slices.Clone(info.Params)
	result, variadic := info.Result, info.Variadic
	for i, p := range params {
		params[i] = tm.remap(p)
	}
	return tm.in.Func(tm.remap(result), params, variadic)
}

func (tm *typeMapper) structure(id types.TypeID) types.TypeID {
	info, ok := tm.in.StructInfo(id)
	if !ok {
		return id
	}
	fields := slices.Clone(info.Fields)
	packed := info.Packed
	switch {
	case info.Literal:
		for i, f := range fields {
			fields[i] = tm.remap(f)
		}
		return tm.in.LiteralStruct(fields, packed)
	case !info.HasBody:
		return id
	}

	ph := tm.in.NewStruct("")
	tm.memo[id] = ph
	tm.named = append(tm.named, structPair{old: id, repl: ph})
	for i, f := range fields {
		fields[i] = tm.remap(f)
	}
	tm.in.SetStructBody(ph, fields, packed)
	return ph
}

// commitNames hands every struct name over to its replacement and marks
// the retired struct with a ".bad" suffix.
func (tm *typeMapper) commitNames() {
	for _, p := range tm.named {
		info, ok := tm.in.StructInfo(p.old)
		if !ok || info.Name == "" {
			continue
		}
		name := info.Name
		tm.in.SetStructName(p.old, name+".bad")
		tm.in.SetStructName(p.repl, name)
	}
}
