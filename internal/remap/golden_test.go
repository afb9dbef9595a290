package remap

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"asremap/internal/ir"
	"asremap/internal/types"
)

// boxModule is a small module in the shape a tracing collector emits:
// a self-referential object layout, rooted globals and a field accessor
// going through a derived pointer.
func boxModule(t *testing.T) *ir.Module {
	t.Helper()
	m, in := newModule()
	m.Name = "jl"
	b := in.Builtins()
	p10, p11 := in.Pointer(Tracked), in.Pointer(Derived)

	box := in.NewStruct("jl_box")
	in.SetStructBody(box, []types.TypeID{in.TypedPointer(box, Tracked), b.I64}, false)

	root := m.NewVariable("root", p10, types.AddrSpaceGeneric)
	root.Init = ir.NewNull(p10)
	view := m.NewVariable("view", p11, types.AddrSpaceGeneric)
	view.Init = ir.NewCast(ir.OpAddrSpaceCast, m.GlobalRef(root), p11)
	head := m.NewVariable("head", box, types.AddrSpaceGeneric)
	head.Init = ir.NewZero(box)

	f := m.NewFunction("get", in.Func(b.I64, []types.TypeID{p10}, false), types.AddrSpaceGeneric)
	f.Params[0].Name = "obj"
	bd := ir.NewBuilder(in, f.NewBlock("entry"))
	d := bd.Cast("d", ir.OpAddrSpaceCast, ir.ArgValue(f.Params[0]), p11)
	fld := bd.GEP("fld", box, ir.InstrValue(d), ir.ConstValue(ir.NewInt(b.I32, 0)), ir.ConstValue(ir.NewInt(b.I32, 1)))
	v := bd.Load("v", b.I64, ir.InstrValue(fld))
	bd.Ret(ir.InstrValue(v))

	require.NoError(t, ir.Verify(m))
	return m
}

func TestCollapseGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	m := boxModule(t)
	g.Assert(t, "box_before", []byte(m.String()))

	res := mustRun(t, m, RemoveAll)

	g.Assert(t, "box_after", []byte(m.String()))
	require.Equal(t, Stats{
		TypesRemapped:     res.Stats.TypesRemapped,
		GlobalsRewritten:  4,
		ConstCastsFolded:  1,
		InstrCastsRemoved: 1,
	}, res.Stats)
	require.Positive(t, res.Stats.TypesRemapped)
}
