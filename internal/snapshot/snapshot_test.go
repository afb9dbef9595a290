package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asremap/internal/ir"
	"asremap/internal/types"
)

// listModule builds a module touching every table of the payload: a
// self-referential struct, a comdat, an alias over a pointer expression, a
// loop with a phi, call-site attributes and a metadata cycle.
func listModule(t *testing.T) *ir.Module {
	t.Helper()
	in := types.NewInterner()
	m := ir.NewModule("list", in)
	b := in.Builtins()

	node := in.NewStruct("node")
	in.SetStructBody(node, []types.TypeID{in.TypedPointer(node, 10), b.I64}, false)
	p10 := in.Pointer(10)

	head := m.NewVariable("head", node, 10)
	head.Init = ir.NewZero(node)
	head.Linkage = ir.LinkageInternal
	head.Props.Section = ".lists"
	head.Props.Align = 8
	grp := m.GetOrInsertComdat("grp")
	grp.Selection = ir.SelectLargest
	head.Comdat = grp

	msg := m.NewVariable("msg", in.Array(b.I8, 3), types.AddrSpaceGeneric)
	msg.Init = ir.NewData(in.Array(b.I8, 3), []byte("hi\x00"))
	msg.IsConstant = true

	zero := ir.NewInt(b.I32, 0)
	first := m.NewAlias("first", b.I64, 10)
	first.Aliasee = ir.NewGEP(node, m.GlobalRef(head), []*ir.Const{zero, ir.NewInt(b.I32, 1)}, true, p10)

	useTy := in.Func(b.Void, []types.TypeID{p10}, false)
	use := m.NewFunction("use", useTy, types.AddrSpaceGeneric)
	use.Attrs.Params = []ir.AttrSet{{{Kind: ir.AttrNoCapture}}}

	sum := m.NewFunction("sum", in.Func(b.I64, []types.TypeID{b.I64}, false), types.AddrSpaceGeneric)
	sum.Params[0].Name = "n"
	entry := sum.NewBlock("entry")
	loop := sum.NewBlock("loop")
	exit := sum.NewBlock("exit")
	bd := ir.NewBuilder(in, entry)
	bd.Br(loop)
	bd.SetBlock(loop)
	i := bd.Phi("i", b.I64, []ir.Value{ir.ConstValue(ir.NewInt(b.I64, 0)), {}}, []*ir.Block{entry, loop})
	next := bd.Binary("next", ir.OpAdd, ir.InstrValue(i), ir.ConstValue(ir.NewInt(b.I64, 1)))
	i.Operands[1] = ir.InstrValue(next)
	c := bd.ICmp("", ir.PredSLT, ir.InstrValue(next), ir.ArgValue(sum.Params[0]))
	bd.CondBr(ir.InstrValue(c), loop, exit)
	bd.SetBlock(exit)
	call := bd.Call("", useTy, ir.ConstValue(m.GlobalRef(use)), ir.ConstValue(m.GlobalRef(head)))
	call.CallAttrs.Params = []ir.AttrSet{{{Kind: ir.AttrAlign, Int: 8}}}
	bd.Ret(ir.InstrValue(next))

	self := &ir.MDNode{Distinct: true}
	self.Operands = []ir.MDOperand{ir.MDRef(self), ir.MDStr("head"), ir.MDConst(m.GlobalRef(head)), {}}
	head.AddMetadata("dbg", self)
	m.AddNamedMetadata("llvm.ident").Operands = []*ir.MDNode{{Operands: []ir.MDOperand{ir.MDStr("asremap")}}}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := listModule(t)

	data, err := Marshal(m)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)

	require.NotSame(t, m.Types, out.Types)
	assert.Equal(t, m.String(), out.String())
	require.Len(t, out.Globals(), len(m.Globals()))
}

func TestRoundTripKeepsSharedStructure(t *testing.T) {
	out, err := Unmarshal(mustMarshal(t, listModule(t)))
	require.NoError(t, err)
	in := out.Types

	node, ok := in.StructByName("node")
	require.True(t, ok)
	info, ok := in.StructInfo(node)
	require.True(t, ok)
	require.Len(t, info.Fields, 2)
	ptr := in.MustLookup(info.Fields[0])
	assert.Equal(t, node, ptr.Elem, "field points back at its struct")
	assert.Equal(t, types.AddrSpace(10), ptr.AddrSpace)

	head := out.Lookup("head")
	require.NotNil(t, head)
	grp, ok := out.Comdat("grp")
	require.True(t, ok)
	assert.Same(t, grp, head.Comdat)
	assert.Equal(t, ir.SelectLargest, grp.Selection)

	require.Len(t, head.Metadata, 1)
	self := head.Metadata[0].Node
	assert.True(t, self.Distinct)
	assert.Same(t, self, self.Operands[0].Node)
	assert.Same(t, head, self.Operands[2].Value.Global)
	assert.Equal(t, ir.MDNull, self.Operands[3].Kind)

	sum := out.Lookup("sum")
	require.Len(t, sum.Blocks, 3)
	phi := sum.Blocks[1].Instrs[0]
	next := sum.Blocks[1].Instrs[1]
	assert.Same(t, next, phi.Operands[1].Instr)
	assert.Equal(t, []*ir.Block{sum.Blocks[0], sum.Blocks[1]}, phi.Incoming)
	assert.Same(t, sum.Blocks[2], sum.Blocks[1].Terminator().Targets[1])
	assert.Same(t, sum.Params[0], sum.Blocks[1].Instrs[2].Operands[1].Arg)
	assert.Same(t, sum, sum.Blocks[0].Parent())
}

func TestFileRoundTrip(t *testing.T) {
	m := listModule(t)
	path := filepath.Join(t.TempDir(), "out", "list.snap")

	require.NoError(t, WriteFile(path, m))
	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.String(), out.String())

	entries, err := filepath.Glob(filepath.Join(filepath.Dir(path), "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files are cleaned up")
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Payload)
	}{
		{"schema", func(p *Payload) { p.Schema = SchemaVersion + 1 }},
		{"type ref", func(p *Payload) { p.Globals[0].ValueType = uint32(len(p.Types) + 1) }},
		{"constant ref", func(p *Payload) { p.Globals[0].Init = uint32(len(p.Consts) + 1) }},
		{"comdat ref", func(p *Payload) { p.Globals[0].Comdat = 9 }},
		{"type kind", func(p *Payload) { p.Types[0].Kind = 200 }},
		{"global kind", func(p *Payload) { p.Globals[0].Kind = 9 }},
		{"duplicate global", func(p *Payload) { p.Globals[1].Name = p.Globals[0].Name }},
		{"address space", func(p *Payload) { p.Globals[0].AddrSpace = uint32(types.MaxAddrSpace) + 1 }},
		{"metadata ref", func(p *Payload) { p.NamedMD[0].Operands[0] = 77 }},
		{"instruction ref", func(p *Payload) {
			for gi := range p.Globals {
				for bi := range p.Globals[gi].Blocks {
					for ii := range p.Globals[gi].Blocks[bi].Instrs {
						for oi, op := range p.Globals[gi].Blocks[bi].Instrs[ii].Operands {
							if ir.ValueKind(op.Kind) == ir.ValueInstr {
								p.Globals[gi].Blocks[bi].Instrs[ii].Operands[oi].Ref = 1000
								return
							}
						}
					}
				}
			}
		}},
		{"body on variable", func(p *Payload) {
			p.Globals[0].Blocks = []BlockRec{{Name: "entry"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(listModule(t))
			require.NoError(t, err)
			tt.mutate(p)
			_, err = Decode(p)
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xc1, 0x00})
	require.Error(t, err)
	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrSchema)
}

func TestEncodeOnlyWritesUsedTypes(t *testing.T) {
	in := types.NewInterner()
	m := ir.NewModule("tiny", in)
	in.NewStruct("unused")
	v := m.NewVariable("x", in.Builtins().I8, types.AddrSpaceGeneric)
	v.Init = ir.NewInt(in.Builtins().I8, 1)

	p, err := Encode(m)
	require.NoError(t, err)
	require.Len(t, p.Types, 1)
	assert.Equal(t, uint8(types.KindInt), p.Types[0].Kind)
	assert.Equal(t, uint32(8), p.Types[0].Bits)
}

func mustMarshal(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	data, err := Marshal(m)
	require.NoError(t, err)
	return data
}
