package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Ptr == NoTypeID || b.I32 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	ptr, _ := in.Lookup(b.Ptr)
	if ptr.Kind != KindPointer || ptr.AddrSpace != AddrSpaceGeneric {
		t.Fatalf("expected generic pointer, got %+v", ptr)
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	p1 := in.Pointer(1)
	if in.Pointer(1) != p1 {
		t.Fatalf("pointer types should be deduplicated")
	}
	if in.Array(p1, 4) != in.Array(p1, 4) {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Vector(p1, 4, false) == in.Vector(p1, 4, true) {
		t.Fatalf("scalable and fixed vectors must differ")
	}
}

func TestAddrSpaceAffectsIdentity(t *testing.T) {
	in := NewInterner()
	if in.Pointer(0) == in.Pointer(3) {
		t.Fatalf("pointers into different address spaces must differ")
	}
}

func TestFuncSignaturesAreShared(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	f1 := in.Func(b.Void, []TypeID{b.Ptr, b.I64}, false)
	f2 := in.Func(b.Void, []TypeID{b.Ptr, b.I64}, false)
	if f1 != f2 {
		t.Fatalf("identical signatures should share a TypeID")
	}
	if in.Func(b.Void, []TypeID{b.Ptr, b.I64}, true) == f1 {
		t.Fatalf("variadic flag must affect identity")
	}
	info, ok := in.FnInfo(f1)
	if !ok || len(info.Params) != 2 || info.Result != b.Void {
		t.Fatalf("unexpected fn info: %+v", info)
	}
}

func TestLiteralStructsAreStructural(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	s1 := in.LiteralStruct([]TypeID{b.I32, in.Pointer(1)}, false)
	s2 := in.LiteralStruct([]TypeID{b.I32, in.Pointer(1)}, false)
	if s1 != s2 {
		t.Fatalf("literal structs should be deduplicated")
	}
	if in.LiteralStruct([]TypeID{b.I32, in.Pointer(1)}, true) == s1 {
		t.Fatalf("packed flag must affect identity")
	}
	in.SetStructBody(s1, []TypeID{b.I8}, false)
	if got := in.String(s1); got != "{ i32, ptr addrspace(1) }" {
		t.Fatalf("literal body must be immutable, got %s", got)
	}
}

func TestIdentifiedStructsAreNominal(t *testing.T) {
	in := NewInterner()
	a := in.NewStruct("node")
	b := in.NewStruct("node")
	if a == b {
		t.Fatalf("identified structs must not be shared")
	}
	if got := in.StructName(b); got != "%node.1" {
		t.Fatalf("expected uniqued name %%node.1, got %s", got)
	}
	info, _ := in.StructInfo(a)
	if !info.Opaque() {
		t.Fatalf("fresh identified struct should be opaque")
	}
	in.SetStructBody(a, []TypeID{in.Pointer(0)}, false)
	if info.Opaque() {
		t.Fatalf("struct with body should not be opaque")
	}
	if got := in.StructBody(a); got != "{ ptr }" {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestSetStructNameReleasesOldName(t *testing.T) {
	in := NewInterner()
	a := in.NewStruct("node")
	if got := in.SetStructName(a, "node.bad"); got != "node.bad" {
		t.Fatalf("rename failed: %s", got)
	}
	b := in.NewStruct("node")
	if got := in.StructName(b); got != "%node" {
		t.Fatalf("released name should be reusable, got %s", got)
	}
	if id, ok := in.StructByName("node"); !ok || id != b {
		t.Fatalf("lookup by name returned %d", id)
	}
}

func TestStringRendering(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	tests := []struct {
		id   TypeID
		want string
	}{
		{b.Ptr, "ptr"},
		{in.Pointer(3), "ptr addrspace(3)"},
		{in.Array(b.I8, 16), "[16 x i8]"},
		{in.Vector(in.Pointer(1), 2, false), "<2 x ptr addrspace(1)>"},
		{in.Vector(b.I32, 4, true), "<vscale x 4 x i32>"},
		{in.Func(b.I32, []TypeID{b.Ptr}, true), "i32 (ptr, ...)"},
		{in.LiteralStruct(nil, false), "{}"},
		{in.LiteralStruct([]TypeID{b.Double}, true), "<{ double }>"},
		{in.TypedPointer(b.I8, 0), "i8*"},
		{in.TypedPointer(b.I32, 11), "i32 addrspace(11)*"},
	}
	for _, tt := range tests {
		if got := in.String(tt.id); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestMangle(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	named := in.NewStruct("pair")
	tests := []struct {
		id   TypeID
		want string
	}{
		{in.Pointer(0), "p0"},
		{in.Pointer(11), "p11"},
		{b.I64, "i64"},
		{b.Float, "f32"},
		{in.Vector(b.I32, 4, false), "v4i32"},
		{in.Vector(b.I8, 8, true), "nxv8i8"},
		{in.Array(in.Pointer(1), 2), "a2p1"},
		{named, "s_pair"},
		{in.LiteralStruct([]TypeID{b.I32, b.Ptr}, false), "sl_i32p0s"},
		{in.Func(b.Void, []TypeID{b.Ptr}, false), "f_isVoidp0f"},
		{in.TypedPointer(b.I8, 1), "p1i8"},
	}
	for _, tt := range tests {
		if got := in.Mangle(tt.id); got != tt.want {
			t.Errorf("Mangle(%s) = %q, want %q", in.String(tt.id), got, tt.want)
		}
	}
}

func TestComponents(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	fn := in.Func(b.I32, []TypeID{b.Ptr, b.I64}, false)
	got := in.Components(fn)
	if len(got) != 3 || got[0] != b.I32 || got[1] != b.Ptr || got[2] != b.I64 {
		t.Fatalf("unexpected components %v", got)
	}
	if as, ok := in.AddrSpaceOf(in.Vector(in.Pointer(5), 2, false)); !ok || as != 5 {
		t.Fatalf("vector of pointers should report addrspace 5, got %d %v", as, ok)
	}
	if in.IsPointer(b.I64) {
		t.Fatalf("i64 is not a pointer")
	}
}

func TestTypedPointerSelfReference(t *testing.T) {
	in := NewInterner()
	node := in.NewStruct("node")
	self := in.TypedPointer(node, 1)
	in.SetStructBody(node, []TypeID{self}, false)

	if in.TypedPointer(node, 1) != self {
		t.Fatalf("typed pointers must be interned")
	}
	if in.TypedPointer(NoTypeID, 1) != in.Pointer(1) {
		t.Fatalf("a typed pointer without pointee is the opaque pointer")
	}
	if got := in.Components(self); len(got) != 1 || got[0] != node {
		t.Fatalf("pointee missing from components: %v", got)
	}
	if got := in.StructBody(node); got != "{ %node addrspace(1)* }" {
		t.Fatalf("StructBody = %q", got)
	}
}
