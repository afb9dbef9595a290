package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Void     TypeID
	Label    TypeID
	Metadata TypeID
	I1       TypeID
	I8       TypeID
	I16      TypeID
	I32      TypeID
	I64      TypeID
	Half     TypeID
	Float    TypeID
	Double   TypeID
	Ptr      TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// Every kind except identified structs is structurally shared: asking twice
// for the same shape yields the same TypeID. Identified structs get a fresh
// TypeID on every NewStruct call and carry a mutable body.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins

	fns      []FnInfo
	fnIndex  map[string]TypeID
	structs  []StructInfo
	litIndex map[string]TypeID
	names    map[string]TypeID
	nameSeq  map[string]int
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:    make(map[Type]TypeID, 64),
		fnIndex:  make(map[string]TypeID),
		litIndex: make(map[string]TypeID),
		names:    make(map[string]TypeID),
		nameSeq:  make(map[string]int),
	}
	in.types = append(in.types, Type{}) // reserve 0 as NoTypeID
	in.structs = append(in.structs, StructInfo{})
	in.fns = append(in.fns, FnInfo{})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Label = in.Intern(Type{Kind: KindLabel})
	in.builtins.Metadata = in.Intern(Type{Kind: KindMetadata})
	in.builtins.I1 = in.Intern(MakeInt(1))
	in.builtins.I8 = in.Intern(MakeInt(8))
	in.builtins.I16 = in.Intern(MakeInt(16))
	in.builtins.I32 = in.Intern(MakeInt(32))
	in.builtins.I64 = in.Intern(MakeInt(64))
	in.builtins.Half = in.Intern(MakeFloat(16))
	in.builtins.Float = in.Intern(MakeFloat(32))
	in.builtins.Double = in.Intern(MakeFloat(64))
	in.builtins.Ptr = in.Intern(MakePointer(AddrSpaceGeneric))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Len reports how many TypeIDs have been allocated, including NoTypeID.
func (in *Interner) Len() int {
	return len(in.types)
}

// Intern ensures the provided descriptor has a stable TypeID.
// Function and struct descriptors must go through Func, LiteralStruct or
// NewStruct instead.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid || t.Kind == KindFunc || t.Kind == KindStruct {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Int returns the integer type of the given width.
func (in *Interner) Int(bits uint32) TypeID {
	return in.Intern(MakeInt(bits))
}

// Pointer returns the opaque pointer type for as.
func (in *Interner) Pointer(as AddrSpace) TypeID {
	return in.Intern(MakePointer(as))
}

// TypedPointer returns the pointer to elem in as. A NoTypeID elem yields
// the opaque pointer.
func (in *Interner) TypedPointer(elem TypeID, as AddrSpace) TypeID {
	return in.Intern(MakeTypedPointer(elem, as))
}

// Array returns [count x elem].
func (in *Interner) Array(elem TypeID, count uint64) TypeID {
	return in.Intern(MakeArray(elem, count))
}

// Vector returns <count x elem> or <vscale x count x elem>.
func (in *Interner) Vector(elem TypeID, count uint64, scalable bool) TypeID {
	return in.Intern(MakeVector(elem, count, scalable))
}

// AddrSpaceOf returns the address space of a pointer or vector-of-pointers.
func (in *Interner) AddrSpaceOf(id TypeID) (AddrSpace, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return 0, false
	}
	switch tt.Kind {
	case KindPointer:
		return tt.AddrSpace, true
	case KindVector:
		return in.AddrSpaceOf(tt.Elem)
	default:
		return 0, false
	}
}

// IsPointer reports whether id is a pointer or vector-of-pointers type.
func (in *Interner) IsPointer(id TypeID) bool {
	_, ok := in.AddrSpaceOf(id)
	return ok
}

// Components returns the TypeIDs directly referenced by id: element,
// pointee, fields, result and params. Identified struct bodies are included.
func (in *Interner) Components(id TypeID) []TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case KindPointer:
		if tt.Elem == NoTypeID {
			return nil
		}
		return []TypeID{tt.Elem}
	case KindArray, KindVector:
		return []TypeID{tt.Elem}
	case KindFunc:
		info, ok := in.FnInfo(id)
		if !ok {
			return nil
		}
		out := make([]TypeID, 0, len(info.Params)+1)
		out = append(out, info.Result)
		return append(out, info.Params...)
	case KindStruct:
		info, ok := in.StructInfo(id)
		if !ok {
			return nil
		}
		return cloneTypeIDs(info.Fields)
	default:
		return nil
	}
}

func cloneTypeIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}
