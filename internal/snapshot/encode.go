package snapshot

import (
	"fmt"

	"fortio.org/safecast"

	"asremap/internal/ir"
	"asremap/internal/types"
)

type encoder struct {
	m *ir.Module
	p *Payload

	types   map[types.TypeID]uint32
	consts  map[*ir.Const]uint32
	nodes   map[*ir.MDNode]uint32
	globals map[*ir.Global]uint32
	comdats map[*ir.Comdat]uint32
}

// Encode converts m into a payload. Only the types the module uses are
// written.
func Encode(m *ir.Module) (*Payload, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil module")
	}
	e := &encoder{
		m:       m,
		p:       &Payload{Schema: SchemaVersion, Name: m.Name},
		types:   make(map[types.TypeID]uint32),
		consts:  make(map[*ir.Const]uint32),
		nodes:   make(map[*ir.MDNode]uint32),
		globals: make(map[*ir.Global]uint32),
		comdats: make(map[*ir.Comdat]uint32),
	}
	globals := m.Globals()
	for i, g := range globals {
		r, err := ref(i)
		if err != nil {
			return nil, err
		}
		e.globals[g] = r
	}
	for _, c := range m.Comdats() {
		if _, err := e.comdat(c); err != nil {
			return nil, err
		}
	}
	for _, g := range globals {
		rec, err := e.global(g)
		if err != nil {
			return nil, fmt.Errorf("@%s: %w", g.Name, err)
		}
		e.p.Globals = append(e.p.Globals, rec)
	}
	for _, nmd := range m.NamedMD {
		rec := NamedMDRec{Name: nmd.Name}
		for _, n := range nmd.Operands {
			r, err := e.node(n)
			if err != nil {
				return nil, fmt.Errorf("!%s: %w", nmd.Name, err)
			}
			rec.Operands = append(rec.Operands, r)
		}
		e.p.NamedMD = append(e.p.NamedMD, rec)
	}
	return e.p, nil
}

// NamedMDRec is a named metadata list.
type NamedMDRec struct {
	Name     string
	Operands []uint32
}

// ref turns a slice position into a 1-based reference.
func ref(i int) (uint32, error) {
	r, err := safecast.Conv[uint32](i + 1)
	if err != nil {
		return 0, fmt.Errorf("table too large: %w", err)
	}
	return r, nil
}

func (e *encoder) typ(id types.TypeID) (uint32, error) {
	if id == types.NoTypeID {
		return 0, nil
	}
	if r, ok := e.types[id]; ok {
		return r, nil
	}
	in := e.m.Types
	tt, ok := in.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("unknown type id %d", id)
	}
	rec := TypeRec{Kind: uint8(tt.Kind)}

	if tt.Kind == types.KindStruct {
		info, ok := in.StructInfo(id)
		if !ok {
			return 0, fmt.Errorf("struct %d without info", id)
		}
		if !info.Literal {
			// Named structs are registered before their fields so that
			// self references resolve.
			r, err := ref(len(e.p.Types))
			if err != nil {
				return 0, err
			}
			e.types[id] = r
			e.p.Types = append(e.p.Types, TypeRec{Kind: rec.Kind, Name: info.Name, Packed: info.Packed, HasBody: info.HasBody})
			fields, err := e.typeList(info.Fields)
			if err != nil {
				return 0, err
			}
			e.p.Types[r-1].Fields = fields
			return r, nil
		}
		fields, err := e.typeList(info.Fields)
		if err != nil {
			return 0, err
		}
		rec.Fields, rec.Packed, rec.Literal, rec.HasBody = fields, info.Packed, true, true
	}

	var err error
	switch tt.Kind {
	case types.KindPointer, types.KindArray, types.KindVector:
		if rec.Elem, err = e.typ(tt.Elem); err != nil {
			return 0, err
		}
		rec.Count, rec.AddrSpace, rec.Scalable = tt.Count, uint32(tt.AddrSpace), tt.Scalable
	case types.KindFunc:
		info, ok := in.FnInfo(id)
		if !ok {
			return 0, fmt.Errorf("function type %d without info", id)
		}
		result, params, variadic := info.Result, append([]types.TypeID(nil), info.Params...), info.Variadic
		if rec.Result, err = e.typ(result); err != nil {
			return 0, err
		}
		if rec.Params, err = e.typeList(params); err != nil {
			return 0, err
		}
		rec.Variadic = variadic
	default:
		rec.Bits = tt.Bits
	}

	r, err := ref(len(e.p.Types))
	if err != nil {
		return 0, err
	}
	e.types[id] = r
	e.p.Types = append(e.p.Types, rec)
	return r, nil
}

func (e *encoder) typeList(ids []types.TypeID) ([]uint32, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ids = append([]types.TypeID(nil), ids...)
	out := make([]uint32, len(ids))
	for i, id := range ids {
		r, err := e.typ(id)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (e *encoder) constant(c *ir.Const) (uint32, error) {
	if c == nil {
		return 0, nil
	}
	if r, ok := e.consts[c]; ok {
		return r, nil
	}
	ty, err := e.typ(c.Type)
	if err != nil {
		return 0, err
	}
	rec := ConstRec{
		Kind:     uint8(c.Kind),
		Type:     ty,
		Int:      c.Int,
		Float:    c.Float,
		Data:     c.Data,
		Op:       uint8(c.Op),
		InBounds: c.InBounds,
		Pred:     uint8(c.Pred),
	}
	if rec.Elems, err = e.constList(c.Elems); err != nil {
		return 0, err
	}
	if rec.Operands, err = e.constList(c.Operands); err != nil {
		return 0, err
	}
	if rec.SourceElem, err = e.typ(c.SourceElem); err != nil {
		return 0, err
	}
	if c.Kind == ir.ConstGlobal {
		g, ok := e.globals[c.Global]
		if !ok {
			return 0, fmt.Errorf("reference to a global outside the module")
		}
		rec.Global = g
	}
	r, err := ref(len(e.p.Consts))
	if err != nil {
		return 0, err
	}
	e.consts[c] = r
	e.p.Consts = append(e.p.Consts, rec)
	return r, nil
}

func (e *encoder) constList(cs []*ir.Const) ([]uint32, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]uint32, len(cs))
	for i, c := range cs {
		r, err := e.constant(c)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (e *encoder) node(n *ir.MDNode) (uint32, error) {
	if n == nil {
		return 0, nil
	}
	if r, ok := e.nodes[n]; ok {
		return r, nil
	}
	r, err := ref(len(e.p.MD))
	if err != nil {
		return 0, err
	}
	e.nodes[n] = r
	e.p.MD = append(e.p.MD, MDRec{Distinct: n.Distinct})
	ops := make([]MDOperandRec, len(n.Operands))
	for i, op := range n.Operands {
		ops[i] = MDOperandRec{Kind: uint8(op.Kind), String: op.String}
		switch op.Kind {
		case ir.MDValue:
			if ops[i].Value, err = e.constant(op.Value); err != nil {
				return 0, err
			}
		case ir.MDNodeRef:
			if ops[i].Node, err = e.node(op.Node); err != nil {
				return 0, err
			}
		}
	}
	e.p.MD[r-1].Operands = ops
	return r, nil
}

func (e *encoder) comdat(c *ir.Comdat) (uint32, error) {
	if c == nil {
		return 0, nil
	}
	if r, ok := e.comdats[c]; ok {
		return r, nil
	}
	r, err := ref(len(e.p.Comdats))
	if err != nil {
		return 0, err
	}
	e.comdats[c] = r
	e.p.Comdats = append(e.p.Comdats, ComdatRec{Name: c.Name, Selection: uint8(c.Selection)})
	return r, nil
}

func (e *encoder) attrs(l ir.AttrList) (AttrListRec, error) {
	set := func(s ir.AttrSet) ([]AttrRec, error) {
		if len(s) == 0 {
			return nil, nil
		}
		out := make([]AttrRec, len(s))
		for i, a := range s {
			ty, err := e.typ(a.Type)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", a.Kind, err)
			}
			out[i] = AttrRec{Kind: uint8(a.Kind), Int: a.Int, Type: ty, Key: a.Key, Value: a.Value}
		}
		return out, nil
	}
	var rec AttrListRec
	var err error
	if rec.Fn, err = set(l.Fn); err != nil {
		return rec, err
	}
	if rec.Ret, err = set(l.Ret); err != nil {
		return rec, err
	}
	for _, p := range l.Params {
		ps, err := set(p)
		if err != nil {
			return rec, err
		}
		rec.Params = append(rec.Params, ps)
	}
	return rec, nil
}

func (e *encoder) global(g *ir.Global) (GlobalRec, error) {
	rec := GlobalRec{
		Kind:        uint8(g.Kind),
		Name:        g.Name,
		AddrSpace:   uint32(g.AddrSpace),
		Linkage:     uint8(g.Linkage),
		Section:     g.Props.Section,
		Partition:   g.Props.Partition,
		Visibility:  uint8(g.Props.Visibility),
		DLLStorage:  uint8(g.Props.DLLStorage),
		UnnamedAddr: uint8(g.Props.UnnamedAddr),
		ThreadLocal: uint8(g.Props.ThreadLocal),
		Align:       g.Props.Align,
		IsConstant:  g.IsConstant,
	}
	var err error
	if rec.ValueType, err = e.typ(g.ValueType); err != nil {
		return rec, err
	}
	if rec.Comdat, err = e.comdat(g.Comdat); err != nil {
		return rec, err
	}
	for _, att := range g.Metadata {
		n, err := e.node(att.Node)
		if err != nil {
			return rec, fmt.Errorf("!%s: %w", att.Kind, err)
		}
		rec.Metadata = append(rec.Metadata, AttachRec{Kind: att.Kind, Node: n})
	}
	if rec.Init, err = e.constant(g.Init); err != nil {
		return rec, fmt.Errorf("initializer: %w", err)
	}
	if rec.Aliasee, err = e.constant(g.Aliasee); err != nil {
		return rec, fmt.Errorf("aliasee: %w", err)
	}
	if rec.Attrs, err = e.attrs(g.Attrs); err != nil {
		return rec, err
	}
	if g.Kind != ir.GlobalFunc {
		return rec, nil
	}
	err = e.body(g, &rec)
	return rec, err
}

func (e *encoder) body(f *ir.Global, rec *GlobalRec) error {
	args := make(map[*ir.Arg]uint32, len(f.Params))
	for i, a := range f.Params {
		rec.ParamNames = append(rec.ParamNames, a.Name)
		r, err := ref(i)
		if err != nil {
			return err
		}
		args[a] = r
	}
	blocks := make(map[*ir.Block]uint32, len(f.Blocks))
	instrs := make(map[*ir.Instr]uint32)
	n := 0
	for i, b := range f.Blocks {
		r, err := ref(i)
		if err != nil {
			return err
		}
		blocks[b] = r
		for _, ins := range b.Instrs {
			if instrs[ins], err = ref(n); err != nil {
				return err
			}
			n++
		}
	}
	blockRefs := func(bs []*ir.Block) ([]uint32, error) {
		if len(bs) == 0 {
			return nil, nil
		}
		out := make([]uint32, len(bs))
		for i, b := range bs {
			r, ok := blocks[b]
			if !ok {
				return nil, fmt.Errorf("block outside the function")
			}
			out[i] = r
		}
		return out, nil
	}

	for bi, b := range f.Blocks {
		brec := BlockRec{Name: b.Name}
		for ii, ins := range b.Instrs {
			irec, err := e.instr(ins, args, instrs)
			if err == nil {
				irec.Targets, err = blockRefs(ins.Targets)
			}
			if err == nil {
				irec.Incoming, err = blockRefs(ins.Incoming)
			}
			if err != nil {
				return fmt.Errorf("bb%d/%d %s: %w", bi, ii, ins.Op, err)
			}
			brec.Instrs = append(brec.Instrs, irec)
		}
		rec.Blocks = append(rec.Blocks, brec)
	}
	return nil
}

func (e *encoder) instr(ins *ir.Instr, args map[*ir.Arg]uint32, instrs map[*ir.Instr]uint32) (InstrRec, error) {
	rec := InstrRec{
		Op:       uint8(ins.Op),
		Name:     ins.Name,
		InBounds: ins.InBounds,
		Pred:     uint8(ins.Pred),
		Align:    ins.Align,
		Volatile: ins.Volatile,
	}
	var err error
	for _, t := range []struct {
		dst *uint32
		id  types.TypeID
	}{
		{&rec.Type, ins.Type},
		{&rec.AllocType, ins.AllocType},
		{&rec.SourceElem, ins.SourceElem},
		{&rec.FnType, ins.FnType},
	} {
		if *t.dst, err = e.typ(t.id); err != nil {
			return rec, err
		}
	}
	if rec.CallAttrs, err = e.attrs(ins.CallAttrs); err != nil {
		return rec, err
	}
	for k, op := range ins.Operands {
		v := ValueRec{Kind: uint8(op.Kind)}
		var ok bool
		switch op.Kind {
		case ir.ValueConst:
			v.Ref, err = e.constant(op.Const)
			ok = err == nil
		case ir.ValueArg:
			v.Ref, ok = args[op.Arg]
		case ir.ValueInstr:
			v.Ref, ok = instrs[op.Instr]
		}
		if err != nil {
			return rec, fmt.Errorf("operand %d: %w", k, err)
		}
		if !ok {
			return rec, fmt.Errorf("operand %d does not belong to the function", k)
		}
		rec.Operands = append(rec.Operands, v)
	}
	return rec, nil
}
