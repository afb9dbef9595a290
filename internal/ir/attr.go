package ir

import (
	"fmt"

	"asremap/internal/types"
)

// AttrKind enumerates parameter, return and function attributes.
type AttrKind uint8

const (
	AttrNone AttrKind = iota
	AttrNoUnwind
	AttrReadOnly
	AttrReadNone
	AttrNoInline
	AttrAlwaysInline
	AttrNoReturn
	AttrNoAlias
	AttrNoCapture
	AttrNonNull
	AttrAlign
	AttrDereferenceable
	// Attributes below carry a type payload.
	AttrByVal
	AttrStructRet
	AttrByRef
	AttrInAlloca
	AttrPreallocated
	AttrElementType
	// AttrString is a free-form "key"="value" attribute.
	AttrString

	attrKindCount
)

var attrNames = [...]string{
	AttrNone:            "none",
	AttrNoUnwind:        "nounwind",
	AttrReadOnly:        "readonly",
	AttrReadNone:        "readnone",
	AttrNoInline:        "noinline",
	AttrAlwaysInline:    "alwaysinline",
	AttrNoReturn:        "noreturn",
	AttrNoAlias:         "noalias",
	AttrNoCapture:       "nocapture",
	AttrNonNull:         "nonnull",
	AttrAlign:           "align",
	AttrDereferenceable: "dereferenceable",
	AttrByVal:           "byval",
	AttrStructRet:       "sret",
	AttrByRef:           "byref",
	AttrInAlloca:        "inalloca",
	AttrPreallocated:    "preallocated",
	AttrElementType:     "elementtype",
	AttrString:          "string",
}

func (k AttrKind) String() string {
	if k < attrKindCount {
		return attrNames[k]
	}
	return fmt.Sprintf("attr%d", uint8(k))
}

// Known reports whether k is modelled by this package.
func (k AttrKind) Known() bool {
	return k > AttrNone && k < attrKindCount
}

// HasType reports whether attributes of kind k carry a type payload.
func (k AttrKind) HasType() bool {
	return k >= AttrByVal && k <= AttrElementType
}

// Attr is a single attribute. Int holds integer payloads (align,
// dereferenceable), Type holds type payloads, Key/Value string attributes.
type Attr struct {
	Kind  AttrKind
	Int   uint64
	Type  types.TypeID
	Key   string
	Value string
}

// AttrSet is an ordered list of attributes attached to one position.
type AttrSet []Attr

// Find returns the first attribute of kind k.
func (s AttrSet) Find(k AttrKind) (Attr, bool) {
	for _, a := range s {
		if a.Kind == k {
			return a, true
		}
	}
	return Attr{}, false
}

// Clone returns an independent copy of s.
func (s AttrSet) Clone() AttrSet {
	if len(s) == 0 {
		return nil
	}
	out := make(AttrSet, len(s))
	copy(out, s)
	return out
}

// AttrList holds the attributes of a function or call site.
type AttrList struct {
	Fn     AttrSet
	Ret    AttrSet
	Params []AttrSet
}

// Param returns the attribute set of parameter i.
func (l AttrList) Param(i int) AttrSet {
	if i < 0 || i >= len(l.Params) {
		return nil
	}
	return l.Params[i]
}

// Empty reports whether the list carries no attributes at all.
func (l AttrList) Empty() bool {
	if len(l.Fn) > 0 || len(l.Ret) > 0 {
		return false
	}
	for _, p := range l.Params {
		if len(p) > 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of l.
func (l AttrList) Clone() AttrList {
	out := AttrList{Fn: l.Fn.Clone(), Ret: l.Ret.Clone()}
	if len(l.Params) > 0 {
		out.Params = make([]AttrSet, len(l.Params))
		for i, p := range l.Params {
			out.Params[i] = p.Clone()
		}
	}
	return out
}

// Sets returns every attribute set in the list: function, return, then
// parameters in order.
func (l AttrList) Sets() []AttrSet {
	out := make([]AttrSet, 0, 2+len(l.Params))
	out = append(out, l.Fn, l.Ret)
	return append(out, l.Params...)
}
