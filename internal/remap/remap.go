// Package remap rewrites the address spaces of every pointer in a module.
//
// Run rebuilds each global definition with rewritten types: new skeletons
// are created first, then populated from the old definitions, and only then
// are the old definitions detached and erased. Afterwards intrinsic names
// that spell their types are re-derived and no-op address space casts are
// removed.
package remap

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"asremap/internal/ir"
	"asremap/internal/trace"
	"asremap/internal/types"
)

var (
	// ErrInvalidTag reports a remap function result outside the encodable
	// address space range.
	ErrInvalidTag = errors.New("invalid address space")
	// ErrUnresolved reports a reference the pass cannot map into the
	// rewritten module.
	ErrUnresolved = errors.New("unresolved reference")
)

// Stats counts what one pass run did.
type Stats struct {
	TypesRemapped     int `json:"types_remapped" yaml:"types_remapped"`
	GlobalsRewritten  int `json:"globals_rewritten" yaml:"globals_rewritten"`
	ConstCastsFolded  int `json:"const_casts_folded" yaml:"const_casts_folded"`
	InstrCastsRemoved int `json:"instr_casts_removed" yaml:"instr_casts_removed"`
	IntrinsicsRenamed int `json:"intrinsics_renamed" yaml:"intrinsics_renamed"`
	IntrinsicsMerged  int `json:"intrinsics_merged" yaml:"intrinsics_merged"`
}

// Result is the outcome of Run.
type Result struct {
	Changed bool  `json:"changed" yaml:"changed"`
	Stats   Stats `json:"stats" yaml:"stats"`
}

// Run rewrites every address space in m through fn. The module is changed
// in place. When no address space used by m changes under fn, m is left
// untouched and Result.Changed is false. On error m is left as it was.
func Run(ctx context.Context, m *ir.Module, fn Func) (Result, error) {
	if m == nil {
		return Result{}, nil
	}
	if fn == nil {
		return Result{}, errors.New("remap: nil remap function")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ctx, span := trace.Start(ctx, trace.ScopePass, "remap "+m.Name)

	changed, err := Scan(m, fn)
	if err != nil {
		span.End("invalid")
		return Result{}, fmt.Errorf("remap %s: %w", m.Name, err)
	}
	if !changed {
		span.End("unchanged")
		return Result{}, nil
	}

	s := newSurgeon(m, fn)
	if err := s.run(ctx); err != nil {
		span.End("rolled back")
		return Result{}, fmt.Errorf("remap %s: %w", m.Name, err)
	}
	span.WithExtra("globals", strconv.Itoa(s.stats.GlobalsRewritten)).
		WithExtra("types", strconv.Itoa(s.stats.TypesRemapped)).
		End("changed")
	return Result{Changed: true, Stats: s.stats}, nil
}

// Scan reports whether fn changes any address space used by m, without
// touching m. Results above types.MaxAddrSpace are reported as
// ErrInvalidTag.
func Scan(m *ir.Module, fn Func) (bool, error) {
	in := m.Types
	checked := make(map[types.AddrSpace]struct{})
	var errs []error
	changed := false
	check := func(as types.AddrSpace) {
		if _, ok := checked[as]; ok {
			return
		}
		checked[as] = struct{}{}
		to := fn(as)
		switch {
		case to > types.MaxAddrSpace:
			errs = append(errs, fmt.Errorf("addrspace(%d) maps to %d: %w", as, to, ErrInvalidTag))
		case to != as:
			changed = true
		}
	}

	seen := make(map[types.TypeID]struct{})
	var walk func(types.TypeID)
	walk = func(id types.TypeID) {
		if _, ok := seen[id]; ok || id == types.NoTypeID {
			return
		}
		seen[id] = struct{}{}
		tt, ok := in.Lookup(id)
		if !ok {
			return
		}
		if tt.Kind == types.KindPointer {
			check(tt.AddrSpace)
		}
		for _, c := range in.Components(id) {
			walk(c)
		}
	}
	ir.CollectTypes(m, walk)
	for _, g := range m.Globals() {
		check(g.AddrSpace)
	}
	if err := errors.Join(errs...); err != nil {
		return false, err
	}
	return changed, nil
}
