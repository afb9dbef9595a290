package remap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asremap/internal/ir"
	"asremap/internal/types"
)

func TestGlobalPropertiesCopied(t *testing.T) {
	m, in := newModule()
	i64 := in.Builtins().I64
	v := m.NewVariable("tls", i64, Tracked)
	v.Init = ir.NewInt(i64, 42)
	v.IsConstant = true
	v.Linkage = ir.LinkageInternal
	v.Props = ir.GlobalProps{
		Section:     ".tdata",
		Partition:   "part",
		Visibility:  ir.VisibilityHidden,
		DLLStorage:  ir.DLLStorageExport,
		UnnamedAddr: ir.UnnamedAddrLocal,
		ThreadLocal: ir.ThreadLocalInitialExec,
		Align:       16,
	}

	orig := v.Init

	mustRun(t, m, RemoveAll)

	nv := m.Lookup("tls")
	require.NotSame(t, v, nv)
	assert.Equal(t, v.Props, nv.Props)
	assert.Equal(t, ir.LinkageInternal, nv.Linkage)
	assert.True(t, nv.IsConstant)
	assert.Equal(t, types.AddrSpaceGeneric, nv.AddrSpace)
	assert.Same(t, orig, nv.Init, "literal initializers are shared")
	assert.Nil(t, v.Init)
}

func TestAliasRewritten(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	target := m.NewVariable("target", i32, Loaded)
	target.Init = ir.NewInt(i32, 0)
	a := m.NewAlias("alias", i32, Loaded)
	a.Aliasee = m.GlobalRef(target)
	a.Linkage = ir.LinkageWeak

	mustRun(t, m, RemoveReserved)

	na := m.Lookup("alias")
	require.NotSame(t, a, na)
	require.Equal(t, ir.GlobalAlias, na.Kind)
	require.Equal(t, ir.LinkageWeak, na.Linkage)
	require.Same(t, m.Lookup("target"), na.Aliasee.Global)
	require.Equal(t, types.AddrSpaceGeneric, na.AddrSpace)
	require.Nil(t, a.Aliasee)
}

func TestPointerArithmeticConstantNotFolded(t *testing.T) {
	m, in := newModule()
	b := in.Builtins()
	arr := in.Array(b.I32, 4)
	tbl := m.NewVariable("tbl", arr, Tracked)
	tbl.Init = ir.NewZero(arr)
	zero := ir.NewInt(b.I64, 0)
	gep := ir.NewGEP(arr, m.GlobalRef(tbl), []*ir.Const{zero, zero}, true, in.Pointer(Tracked))
	first := m.NewVariable("first", in.Pointer(Tracked), types.AddrSpaceGeneric)
	first.Init = gep

	mustRun(t, m, RemoveAll)

	init := m.Lookup("first").Init
	require.NotSame(t, gep, init)
	require.Equal(t, ir.ConstExpr, init.Kind)
	require.Equal(t, ir.OpGetElementPtr, init.Op, "an all-zero gep stays a gep")
	require.Len(t, init.Operands, 3)
	require.Same(t, m.Lookup("tbl"), init.Operands[0].Global)
	require.Same(t, zero, init.Operands[1])
	require.Equal(t, in.Pointer(0), init.Type)
	require.Equal(t, arr, init.SourceElem)
	require.True(t, init.InBounds)
}

func TestUnknownConstantOperatorPassesThrough(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	src := m.NewVariable("src", i32, Tracked)
	src.Init = ir.NewInt(i32, 1)
	odd := ir.ConstExprWithOperands(ir.Opcode(200), []*ir.Const{m.GlobalRef(src)}, in.Pointer(Tracked))
	holder := m.NewVariable("holder", in.Pointer(Tracked), types.AddrSpaceGeneric)
	holder.Init = odd

	mustRun(t, m, RemoveAll)

	init := m.Lookup("holder").Init
	require.Equal(t, ir.Opcode(200), init.Op)
	require.Equal(t, in.Pointer(0), init.Type)
	require.Same(t, m.Lookup("src"), init.Operands[0].Global)
}

func TestTypedAttributesRetyped(t *testing.T) {
	m, in := newModule()
	b := in.Builtins()
	st := in.LiteralStruct([]types.TypeID{in.Pointer(Tracked), b.I64}, false)
	f := m.NewFunction("take", in.Func(b.Void, []types.TypeID{b.Ptr, b.Ptr}, false), types.AddrSpaceGeneric)
	f.Params[0].Name = "agg"
	f.Attrs.Params = []ir.AttrSet{
		{{Kind: ir.AttrByVal, Type: st}, {Kind: ir.AttrAlign, Int: 8}},
		{{Kind: ir.AttrStructRet, Type: st}, {Kind: ir.AttrKind(250), Int: 7}},
	}
	f.Attrs.Fn = ir.AttrSet{{Kind: ir.AttrString, Key: "frame-pointer", Value: "all"}}

	mustRun(t, m, RemoveAll)

	want := in.LiteralStruct([]types.TypeID{b.Ptr, b.I64}, false)
	nf := m.Lookup("take")
	byval, ok := nf.Attrs.Param(0).Find(ir.AttrByVal)
	require.True(t, ok)
	require.Equal(t, want, byval.Type)
	align, ok := nf.Attrs.Param(0).Find(ir.AttrAlign)
	require.True(t, ok)
	require.Equal(t, uint64(8), align.Int)
	sret, _ := nf.Attrs.Param(1).Find(ir.AttrStructRet)
	require.Equal(t, want, sret.Type)
	unknown, ok := nf.Attrs.Param(1).Find(ir.AttrKind(250))
	require.True(t, ok, "unknown attribute kinds are copied verbatim")
	require.Equal(t, uint64(7), unknown.Int)
	require.Equal(t, f.Attrs.Fn, nf.Attrs.Fn)
	require.Equal(t, "agg", nf.Params[0].Name)

	require.Equal(t, st, f.Attrs.Params[0][0].Type, "old attributes are not mutated")
}

func TestUntypedAttributePayloadPassesThrough(t *testing.T) {
	m, in := newModule()
	b := in.Builtins()
	f := m.NewFunction("legacy", in.Func(b.Void, []types.TypeID{in.Pointer(Tracked)}, false), types.AddrSpaceGeneric)
	f.Attrs.Params = []ir.AttrSet{{{Kind: ir.AttrByVal}}}

	mustRun(t, m, RemoveAll)

	nf := m.Lookup("legacy")
	byval, ok := nf.Attrs.Param(0).Find(ir.AttrByVal)
	require.True(t, ok)
	require.Equal(t, types.NoTypeID, byval.Type)
	require.Equal(t, b.Ptr, nf.Params[0].Type)
}

func TestCallSiteAttributesAndTypesRemapped(t *testing.T) {
	m, in := newModule()
	b := in.Builtins()
	p10 := in.Pointer(Tracked)
	st := in.LiteralStruct([]types.TypeID{p10}, false)
	calleeTy := in.Func(b.Void, []types.TypeID{p10}, false)
	callee := m.NewFunction("callee", calleeTy, types.AddrSpaceGeneric)

	f := m.NewFunction("caller", in.Func(b.Void, nil, false), types.AddrSpaceGeneric)
	bd := ir.NewBuilder(in, f.NewBlock("entry"))
	slot := bd.Alloca("slot", st, Tracked)
	gep := bd.GEP("fld", st, ir.InstrValue(slot), ir.ConstValue(ir.NewInt(b.I32, 0)), ir.ConstValue(ir.NewInt(b.I32, 0)))
	call := bd.Call("", calleeTy, ir.ConstValue(m.GlobalRef(callee)), ir.InstrValue(gep))
	call.CallAttrs.Params = []ir.AttrSet{{{Kind: ir.AttrByVal, Type: st}}}
	bd.Ret(ir.Value{})

	mustRun(t, m, RemoveAll)

	want := in.LiteralStruct([]types.TypeID{b.Ptr}, false)
	instrs := m.Lookup("caller").Instrs()
	require.Len(t, instrs, 4)
	require.Equal(t, want, instrs[0].AllocType)
	require.Equal(t, b.Ptr, instrs[0].Type)
	require.Equal(t, want, instrs[1].SourceElem)
	require.Equal(t, ir.InstrValue(instrs[0]), instrs[1].Operands[0])
	require.Equal(t, in.Func(b.Void, []types.TypeID{b.Ptr}, false), instrs[2].FnType)
	require.Same(t, m.Lookup("callee"), instrs[2].Callee().Const.Global)
	byval, _ := instrs[2].CallAttrs.Param(0).Find(ir.AttrByVal)
	require.Equal(t, want, byval.Type)
}

func TestControlFlowCloned(t *testing.T) {
	m, in := newModule()
	b := in.Builtins()
	p10 := in.Pointer(Tracked)
	f := m.NewFunction("pick", in.Func(p10, []types.TypeID{b.I1, p10, p10}, false), types.AddrSpaceGeneric)
	entry, then, els, join := f.NewBlock("entry"), f.NewBlock("then"), f.NewBlock("else"), f.NewBlock("join")
	bd := ir.NewBuilder(in, entry)
	bd.CondBr(ir.ArgValue(f.Params[0]), then, els)
	bd.SetBlock(then)
	bd.Br(join)
	bd.SetBlock(els)
	bd.Br(join)
	bd.SetBlock(join)
	phi := bd.Phi("r", p10, []ir.Value{ir.ArgValue(f.Params[1]), ir.ArgValue(f.Params[2])}, []*ir.Block{then, els})
	bd.Ret(ir.InstrValue(phi))

	mustRun(t, m, RemoveAll)

	nf := m.Lookup("pick")
	require.Len(t, nf.Blocks, 4)
	nphi := nf.Blocks[3].Instrs[0]
	require.Equal(t, b.Ptr, nphi.Type)
	require.Equal(t, []*ir.Block{nf.Blocks[1], nf.Blocks[2]}, nphi.Incoming)
	require.Equal(t, ir.ArgValue(nf.Params[2]), nphi.Operands[1])
	require.Equal(t, []*ir.Block{nf.Blocks[1], nf.Blocks[2]}, nf.Blocks[0].Instrs[0].Targets)
}

func TestComdatLookedUpByName(t *testing.T) {
	m, in := newModule()
	i8 := in.Builtins().I8
	cd := m.GetOrInsertComdat("grp")
	cd.Selection = ir.SelectNoDeduplicate
	v := m.NewVariable("grp", i8, Tracked)
	v.Init = ir.NewInt(i8, 0)
	v.Comdat = cd
	f := m.NewFunction("helper", in.Func(in.Builtins().Void, nil, false), types.AddrSpaceGeneric)
	f.Comdat = cd

	mustRun(t, m, RemoveAll)

	require.Len(t, m.Comdats(), 1)
	require.Same(t, cd, m.Lookup("grp").Comdat)
	require.Same(t, cd, m.Lookup("helper").Comdat, "declarations keep their comdat")
	require.Equal(t, ir.SelectNoDeduplicate, cd.Selection)
}

func TestMetadataRemapped(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	v := m.NewVariable("V", i32, Tracked)
	v.Init = ir.NewInt(i32, 3)
	node := &ir.MDNode{Operands: []ir.MDOperand{ir.MDConst(m.GlobalRef(v)), ir.MDStr("keep"), {}}}
	loop := &ir.MDNode{Distinct: true}
	loop.Operands = []ir.MDOperand{ir.MDRef(loop), ir.MDRef(node)}
	v.AddMetadata("dbg", node)
	m.AddNamedMetadata("llvm.used").Operands = []*ir.MDNode{node, loop}

	mustRun(t, m, RemoveAll)

	nv := m.Lookup("V")
	used := m.NamedMetadata("llvm.used").Operands
	require.Len(t, used, 2)
	nn, nloop := used[0], used[1]
	require.NotSame(t, node, nn)
	require.Same(t, nv, nn.Operands[0].Value.Global)
	require.Equal(t, "keep", nn.Operands[1].String)
	require.Equal(t, ir.MDNull, nn.Operands[2].Kind)
	require.Same(t, nn, nv.Metadata[0].Node, "shared nodes stay shared")
	require.True(t, nloop.Distinct)
	require.Same(t, nloop, nloop.Operands[0].Node)
	require.Same(t, nn, nloop.Operands[1].Node)
	require.Equal(t, 0, m.Uses(v))
}

func TestUnresolvedReferenceRollsBack(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	other := ir.NewModule("other", in)
	foreign := other.NewVariable("foreign", i32, Tracked)

	v := m.NewVariable("V", in.Pointer(Tracked), Tracked)
	v.Init = other.GlobalRef(foreign)
	cd := m.GetOrInsertComdat("keep")
	v.Comdat = cd
	stray := m.NewVariable("stray", i32, types.AddrSpaceGeneric)
	stray.Comdat = &ir.Comdat{Name: "stray"}
	before := m.String()
	globals := m.Globals()

	_, err := Run(context.Background(), m, RemoveAll)

	require.ErrorIs(t, err, ErrUnresolved)
	require.ErrorContains(t, err, "@V initializer")
	require.Equal(t, before, m.String())
	require.Equal(t, globals, m.Globals())
	require.Same(t, v, m.Lookup("V"))
	require.Same(t, stray, m.Lookup("stray"))
	require.Len(t, m.Comdats(), 1)
	require.Same(t, foreign, v.Init.Global)
}

func TestUnlocatableAttributeTypeRollsBack(t *testing.T) {
	m, v, _ := loaderModule(t)
	in := m.Types
	decl := m.NewFunction("decl", in.Func(in.Builtins().Void, []types.TypeID{in.Builtins().Ptr}, false), types.AddrSpaceGeneric)
	decl.Attrs.Params = []ir.AttrSet{{{Kind: ir.AttrByVal, Type: types.TypeID(9999)}}}
	before := m.String()

	_, err := Run(context.Background(), m, RemoveAll)

	require.ErrorIs(t, err, ErrUnresolved)
	require.Equal(t, before, m.String())
	require.Same(t, v, m.Lookup("V"))
	require.Same(t, decl, m.Lookup("decl"))
}

func TestAnonymousGlobalsRewritten(t *testing.T) {
	m, in := newModule()
	i8 := in.Builtins().I8
	anon := m.NewVariable("", i8, Tracked)
	anon.Init = ir.NewInt(i8, 1)
	user := m.NewVariable("user", in.Pointer(Tracked), types.AddrSpaceGeneric)
	user.Init = m.GlobalRef(anon)

	mustRun(t, m, RemoveAll)

	vars := m.Variables()
	require.Len(t, vars, 2)
	require.Equal(t, "", vars[0].Name)
	require.Same(t, vars[0], m.Lookup("user").Init.Global)
	require.Contains(t, m.String(), "@user = global ptr @0")
}

func TestPhaseNames(t *testing.T) {
	want := []string{"collecting", "skeletons", "bodies", "detach", "done"}
	for i, name := range want {
		require.Equal(t, name, Phase(i).String())
	}
}
