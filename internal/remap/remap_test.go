package remap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"asremap/internal/ir"
	"asremap/internal/types"
)

func newModule() (*ir.Module, *types.Interner) {
	in := types.NewInterner()
	return ir.NewModule("test", in), in
}

func mustRun(t *testing.T, m *ir.Module, fn Func) Result {
	t.Helper()
	res, err := Run(context.Background(), m, fn)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(m))
	return res
}

// loaderModule holds a tracked variable V and a function F loading from it.
func loaderModule(t *testing.T) (m *ir.Module, v, f *ir.Global) {
	t.Helper()
	m, in := newModule()
	p10 := in.Pointer(Tracked)
	v = m.NewVariable("V", p10, Tracked)
	v.Init = ir.NewNull(p10)

	f = m.NewFunction("F", in.Func(p10, nil, false), types.AddrSpaceGeneric)
	bd := ir.NewBuilder(in, f.NewBlock("entry"))
	ld := bd.Load("x", p10, ir.ConstValue(m.GlobalRef(v)))
	bd.Ret(ir.InstrValue(ld))
	require.NoError(t, ir.Verify(m))
	return m, v, f
}

func TestIdentityRemapLeavesModuleUntouched(t *testing.T) {
	m, v, f := loaderModule(t)
	before := m.String()

	res := mustRun(t, m, Identity)

	require.False(t, res.Changed)
	require.Equal(t, Stats{}, res.Stats)
	require.Equal(t, before, m.String())
	require.Same(t, v, m.Lookup("V"))
	require.Same(t, f, m.Lookup("F"))
}

func TestCollapseAllReachesFixedPoint(t *testing.T) {
	m, _, _ := loaderModule(t)

	first := mustRun(t, m, RemoveAll)
	require.True(t, first.Changed)
	after := m.String()

	second := mustRun(t, m, RemoveAll)
	require.False(t, second.Changed)
	require.Equal(t, after, m.String())
}

func TestNoDanglingReferences(t *testing.T) {
	m, v, f := loaderModule(t)
	in := m.Types

	res := mustRun(t, m, RemoveAll)
	require.True(t, res.Changed)
	require.Equal(t, 2, res.Stats.GlobalsRewritten)

	nv, nf := m.Lookup("V"), m.Lookup("F")
	require.NotNil(t, nv)
	require.NotNil(t, nf)
	require.NotSame(t, v, nv)
	require.NotSame(t, f, nf)
	require.False(t, m.Contains(v))
	require.False(t, m.Contains(f))
	require.Len(t, m.Globals(), 2)
	require.Nil(t, m.Lookup("V.bad"))
	require.Nil(t, m.Lookup("F.bad"))

	require.Equal(t, types.AddrSpaceGeneric, nv.AddrSpace)
	require.Equal(t, in.Pointer(0), nv.ValueType)
	require.Equal(t, in.Pointer(0), nv.Init.Type)

	load := nf.Blocks[0].Instrs[0]
	require.Equal(t, ir.OpLoad, load.Op)
	require.Same(t, nv, load.Operands[0].Const.Global)
	require.Equal(t, in.Pointer(0), load.Type)
	require.Equal(t, in.Func(in.Pointer(0), nil, false), nf.ValueType)

	require.Equal(t, 0, m.Uses(v))
	require.Nil(t, v.Init)
	require.Empty(t, f.Blocks)
}

func TestSelfReferentialStructPointsToReplacement(t *testing.T) {
	m, in := newModule()
	node := in.NewStruct("node")
	self := in.TypedPointer(node, Tracked)
	in.SetStructBody(node, []types.TypeID{self, in.Builtins().I64}, false)
	head := m.NewVariable("head", node, types.AddrSpaceGeneric)
	head.Init = ir.NewZero(node)

	mustRun(t, m, RemoveAll)

	nh := m.Lookup("head")
	require.NotEqual(t, node, nh.ValueType)
	info, ok := in.StructInfo(nh.ValueType)
	require.True(t, ok)
	require.Equal(t, "node", info.Name)
	require.Len(t, info.Fields, 2)

	field := in.MustLookup(info.Fields[0])
	require.Equal(t, types.KindPointer, field.Kind)
	require.Equal(t, types.AddrSpaceGeneric, field.AddrSpace)
	require.Equal(t, nh.ValueType, field.Elem, "self reference must point at the new struct")
	require.Equal(t, in.Builtins().I64, info.Fields[1])

	old, _ := in.StructInfo(node)
	require.Equal(t, "node.bad", old.Name)
	require.Equal(t, self, old.Fields[0])
	require.Contains(t, m.String(), "%node = type { %node*, i64 }")
}

func TestLiteralStructKeepsBothRemappedTags(t *testing.T) {
	m, in := newModule()
	lit := in.LiteralStruct([]types.TypeID{in.Pointer(Tracked), in.Pointer(3)}, false)
	pair := m.NewVariable("pair", lit, types.AddrSpaceGeneric)
	pair.Init = ir.NewZero(lit)

	mustRun(t, m, Table(map[types.AddrSpace]types.AddrSpace{Tracked: 1, 3: 4}))

	want := in.LiteralStruct([]types.TypeID{in.Pointer(1), in.Pointer(4)}, false)
	np := m.Lookup("pair")
	require.Equal(t, want, np.ValueType)
	info, _ := in.StructInfo(np.ValueType)
	require.True(t, info.Literal)

	tm := newTypeMapper(in, RemoveAll)
	tm.remap(lit)
	require.Empty(t, tm.named, "literal structs need no placeholder")
}

func TestConstantCastFolded(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	src := m.NewVariable("src", i32, Tracked)
	src.Init = ir.NewInt(i32, 1)
	cast := ir.NewCast(ir.OpAddrSpaceCast, m.GlobalRef(src), in.Pointer(Derived))
	holder := m.NewVariable("holder", in.Pointer(Derived), types.AddrSpaceGeneric)
	holder.Init = cast

	res := mustRun(t, m, RemoveAll)

	init := m.Lookup("holder").Init
	require.Equal(t, ir.ConstGlobal, init.Kind, "no cast survives")
	require.Same(t, m.Lookup("src"), init.Global)
	require.Equal(t, 1, res.Stats.ConstCastsFolded)
}

func TestConstantCastKeptWhenSpacesDiffer(t *testing.T) {
	m, in := newModule()
	i32 := in.Builtins().I32
	src := m.NewVariable("src", i32, 3)
	src.Init = ir.NewInt(i32, 1)
	holder := m.NewVariable("holder", in.Pointer(Tracked), types.AddrSpaceGeneric)
	holder.Init = ir.NewCast(ir.OpAddrSpaceCast, m.GlobalRef(src), in.Pointer(Tracked))

	res := mustRun(t, m, RemoveReserved)

	init := m.Lookup("holder").Init
	require.Equal(t, ir.ConstExpr, init.Kind)
	require.Equal(t, ir.OpAddrSpaceCast, init.Op)
	require.Equal(t, in.Pointer(0), init.Type)
	require.Same(t, m.Lookup("src"), init.Operands[0].Global)
	require.Equal(t, 0, res.Stats.ConstCastsFolded)
}

func TestInstructionCastsRemoved(t *testing.T) {
	m, in := newModule()
	p10, p11, p12 := in.Pointer(Tracked), in.Pointer(Derived), in.Pointer(CalleeRooted)
	f := m.NewFunction("f", in.Func(p11, []types.TypeID{p10}, false), types.AddrSpaceGeneric)
	f.Params[0].Name = "p"
	bd := ir.NewBuilder(in, f.NewBlock("entry"))
	c1 := bd.Cast("c1", ir.OpAddrSpaceCast, ir.ArgValue(f.Params[0]), p11)
	c2 := bd.Cast("c2", ir.OpAddrSpaceCast, ir.InstrValue(c1), p12)
	c3 := bd.Cast("c3", ir.OpAddrSpaceCast, ir.InstrValue(c2), p11)
	bd.Ret(ir.InstrValue(c3))

	res := mustRun(t, m, RemoveAll)

	nf := m.Lookup("f")
	require.Equal(t, 3, res.Stats.InstrCastsRemoved)
	instrs := nf.Instrs()
	require.Len(t, instrs, 1)
	require.Equal(t, ir.OpRet, instrs[0].Op)
	require.Equal(t, ir.ArgValue(nf.Params[0]), instrs[0].Operands[0])
	require.Equal(t, "p", nf.Params[0].Name)
}

func TestInvalidTagLeavesModuleUntouched(t *testing.T) {
	m, v, _ := loaderModule(t)
	before := m.String()
	overflow := func(types.AddrSpace) types.AddrSpace { return types.MaxAddrSpace + 1 }

	_, err := Run(context.Background(), m, overflow)

	require.ErrorIs(t, err, ErrInvalidTag)
	require.Equal(t, before, m.String())
	require.Same(t, v, m.Lookup("V"))
}

func TestScan(t *testing.T) {
	m, _, _ := loaderModule(t)

	changed, err := Scan(m, RemoveReserved)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = Scan(m, Range(20, 30, 0))
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRemapFuncs(t *testing.T) {
	require.Equal(t, Generic, RemoveAll(7))
	require.Equal(t, Generic, RemoveReserved(Loaded))
	require.Equal(t, types.AddrSpace(3), RemoveReserved(3))
	require.Equal(t, types.AddrSpace(14), RemoveReserved(14))
	require.Equal(t, types.AddrSpace(9), Range(1, 2, 9)(2))
	require.Equal(t, types.AddrSpace(0), Chain(Table(map[types.AddrSpace]types.AddrSpace{5: 10}), RemoveReserved)(5))
}

func TestNilInputs(t *testing.T) {
	res, err := Run(context.Background(), nil, RemoveAll)
	require.NoError(t, err)
	require.False(t, res.Changed)

	m, _ := newModule()
	_, err = Run(context.Background(), m, nil)
	require.Error(t, err)
}
