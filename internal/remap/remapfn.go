package remap

import (
	"maps"
	"slices"

	"asremap/internal/types"
)

// Func maps an old address space to a new one. It must be pure and total.
type Func func(types.AddrSpace) types.AddrSpace

// Reserved address spaces used by the garbage-collected runtime. They are
// meaningful to GC-aware lowering only and can be collapsed afterwards.
const (
	Generic      types.AddrSpace = types.AddrSpaceGeneric
	Tracked      types.AddrSpace = 10
	Derived      types.AddrSpace = 11
	CalleeRooted types.AddrSpace = 12
	Loaded       types.AddrSpace = 13

	FirstSpecial = Tracked
	LastSpecial  = Loaded
)

// RemoveAll collapses every address space to Generic.
func RemoveAll(types.AddrSpace) types.AddrSpace { return Generic }

// RemoveReserved collapses [FirstSpecial, LastSpecial] to Generic and keeps
// every other address space.
func RemoveReserved(as types.AddrSpace) types.AddrSpace {
	if FirstSpecial <= as && as <= LastSpecial {
		return Generic
	}
	return as
}

// Identity keeps every address space.
func Identity(as types.AddrSpace) types.AddrSpace { return as }

// Range collapses [first, last] to target and keeps the rest.
func Range(first, last, target types.AddrSpace) Func {
	return func(as types.AddrSpace) types.AddrSpace {
		if first <= as && as <= last {
			return target
		}
		return as
	}
}

// Table remaps the listed address spaces and keeps the rest.
func Table(t map[types.AddrSpace]types.AddrSpace) Func {
	t = maps.Clone(t)
	return func(as types.AddrSpace) types.AddrSpace {
		if to, ok := t[as]; ok {
			return to
		}
		return as
	}
}

// Chain applies fns left to right.
func Chain(fns ...Func) Func {
	fns = slices.Clone(fns)
	return func(as types.AddrSpace) types.AddrSpace {
		for _, fn := range fns {
			as = fn(as)
		}
		return as
	}
}
