package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// AddrSpace is the storage-class tag carried by pointer types.
type AddrSpace uint32

const (
	// AddrSpaceGeneric is the default, untagged address space.
	AddrSpaceGeneric AddrSpace = 0
	// MaxAddrSpace is the largest encodable address space (24 bits).
	MaxAddrSpace AddrSpace = 1<<24 - 1
)

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindLabel
	KindMetadata
	KindInt
	KindFloat
	KindPointer
	KindArray
	KindVector
	KindFunc
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindLabel:
		return "label"
	case KindMetadata:
		return "metadata"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindVector:
		return "vector"
	case KindFunc:
		return "func"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind      Kind
	Elem      TypeID    // arrays, vectors and typed pointers
	Count     uint64    // array length / vector lane count
	Bits      uint32    // integer and float widths
	AddrSpace AddrSpace // pointers
	Scalable  bool      // vectors
	Payload   uint32    // slot in fns/structs for KindFunc/KindStruct
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes an integer of the given bit width.
func MakeInt(bits uint32) Type {
	return Type{Kind: KindInt, Bits: bits}
}

// MakeFloat describes a floating-point type (16, 32, 64 or 128 bits).
func MakeFloat(bits uint32) Type {
	return Type{Kind: KindFloat, Bits: bits}
}

// MakePointer describes an opaque pointer into the given address space.
func MakePointer(as AddrSpace) Type {
	return Type{Kind: KindPointer, AddrSpace: as}
}

// MakeTypedPointer describes a pointer to elem in the given address space.
func MakeTypedPointer(elem TypeID, as AddrSpace) Type {
	return Type{Kind: KindPointer, Elem: elem, AddrSpace: as}
}

// MakeArray describes a fixed-length array of elem.
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeVector describes a vector of elem. Scalable vectors have count lanes
// per hardware-defined multiple.
func MakeVector(elem TypeID, count uint64, scalable bool) Type {
	return Type{Kind: KindVector, Elem: elem, Count: count, Scalable: scalable}
}
