package snapshot

import (
	"fmt"

	"asremap/internal/ir"
	"asremap/internal/types"
)

type decoder struct {
	p  *Payload
	in *types.Interner
	m  *ir.Module

	types   []types.TypeID
	consts  []*ir.Const
	nodes   []*ir.MDNode
	comdats []*ir.Comdat
	globals []*ir.Global
}

// Decode rebuilds a module from p into a fresh type interner.
func Decode(p *Payload) (*ir.Module, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload: %w", ErrSchema)
	}
	if p.Schema != SchemaVersion {
		return nil, fmt.Errorf("schema %d, want %d: %w", p.Schema, SchemaVersion, ErrSchema)
	}
	in := types.NewInterner()
	d := &decoder{p: p, in: in, m: ir.NewModule(p.Name, in)}
	steps := []struct {
		what string
		do   func() error
	}{
		{"types", d.decodeTypes},
		{"comdats", d.decodeComdats},
		{"globals", d.createGlobals},
		{"constants", d.decodeConsts},
		{"metadata", d.decodeNodes},
		{"bodies", d.fillGlobals},
		{"named metadata", d.decodeNamedMD},
	}
	for _, st := range steps {
		if err := st.do(); err != nil {
			return nil, fmt.Errorf("%s: %w", st.what, err)
		}
	}
	return d.m, nil
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrSchema)
}

// index turns a 1-based reference into a slice position.
func index(r uint32, n int) (int, bool) {
	if r == 0 || int(r) > n {
		return 0, false
	}
	return int(r) - 1, true
}

func (d *decoder) typ(r uint32) (types.TypeID, error) {
	if r == 0 {
		return types.NoTypeID, nil
	}
	i, ok := index(r, len(d.types))
	if !ok || d.types[i] == types.NoTypeID {
		return types.NoTypeID, schemaErr("type ref %d does not resolve", r)
	}
	return d.types[i], nil
}

func (d *decoder) typeList(rs []uint32) ([]types.TypeID, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	out := make([]types.TypeID, len(rs))
	for i, r := range rs {
		id, err := d.typ(r)
		if err != nil {
			return nil, err
		}
		if id == types.NoTypeID {
			return nil, schemaErr("missing type in list")
		}
		out[i] = id
	}
	return out, nil
}

func addrSpace(v uint32) (types.AddrSpace, error) {
	as := types.AddrSpace(v)
	if as > types.MaxAddrSpace {
		return 0, schemaErr("address space %d out of range", v)
	}
	return as, nil
}

func (d *decoder) decodeTypes() error {
	d.types = make([]types.TypeID, len(d.p.Types))
	named := func(rec TypeRec) bool {
		return types.Kind(rec.Kind) == types.KindStruct && !rec.Literal
	}
	for i, rec := range d.p.Types {
		if named(rec) {
			d.types[i] = d.in.NewStruct(rec.Name)
		}
	}
	for i, rec := range d.p.Types {
		if named(rec) {
			continue
		}
		id, err := d.decodeType(rec)
		if err != nil {
			return fmt.Errorf("type %d: %w", i+1, err)
		}
		d.types[i] = id
	}
	for i, rec := range d.p.Types {
		if !named(rec) || !rec.HasBody {
			continue
		}
		fields, err := d.typeList(rec.Fields)
		if err != nil {
			return fmt.Errorf("struct %q: %w", rec.Name, err)
		}
		d.in.SetStructBody(d.types[i], fields, rec.Packed)
	}
	return nil
}

func (d *decoder) decodeType(rec TypeRec) (types.TypeID, error) {
	kind := types.Kind(rec.Kind)
	switch kind {
	case types.KindVoid, types.KindLabel, types.KindMetadata, types.KindInt, types.KindFloat:
		return d.in.Intern(types.Type{Kind: kind, Bits: rec.Bits}), nil
	case types.KindPointer:
		elem, err := d.typ(rec.Elem)
		if err != nil {
			return 0, err
		}
		as, err := addrSpace(rec.AddrSpace)
		if err != nil {
			return 0, err
		}
		return d.in.TypedPointer(elem, as), nil
	case types.KindArray, types.KindVector:
		elem, err := d.typ(rec.Elem)
		if err != nil {
			return 0, err
		}
		if elem == types.NoTypeID {
			return 0, schemaErr("%s without element", kind)
		}
		if kind == types.KindArray {
			return d.in.Array(elem, rec.Count), nil
		}
		return d.in.Vector(elem, rec.Count, rec.Scalable), nil
	case types.KindFunc:
		result, err := d.typ(rec.Result)
		if err != nil {
			return 0, err
		}
		params, err := d.typeList(rec.Params)
		if err != nil {
			return 0, err
		}
		return d.in.Func(result, params, rec.Variadic), nil
	case types.KindStruct:
		fields, err := d.typeList(rec.Fields)
		if err != nil {
			return 0, err
		}
		return d.in.LiteralStruct(fields, rec.Packed), nil
	default:
		return 0, schemaErr("unknown type kind %d", rec.Kind)
	}
}

func (d *decoder) decodeComdats() error {
	for _, rec := range d.p.Comdats {
		if _, dup := d.m.Comdat(rec.Name); dup {
			return schemaErr("duplicate comdat $%s", rec.Name)
		}
		c := d.m.GetOrInsertComdat(rec.Name)
		c.Selection = ir.SelectionKind(rec.Selection)
		d.comdats = append(d.comdats, c)
	}
	return nil
}

func (d *decoder) createGlobals() error {
	for i, rec := range d.p.Globals {
		vt, err := d.typ(rec.ValueType)
		if err != nil {
			return fmt.Errorf("global %d: %w", i+1, err)
		}
		as, err := addrSpace(rec.AddrSpace)
		if err != nil {
			return fmt.Errorf("global %d: %w", i+1, err)
		}
		var g *ir.Global
		switch ir.GlobalKind(rec.Kind) {
		case ir.GlobalVar:
			g = d.m.NewVariable(rec.Name, vt, as)
		case ir.GlobalAlias:
			g = d.m.NewAlias(rec.Name, vt, as)
		case ir.GlobalFunc:
			g = d.m.NewFunction(rec.Name, vt, as)
			if len(rec.ParamNames) > len(g.Params) {
				return schemaErr("@%s has %d param names for %d params", rec.Name, len(rec.ParamNames), len(g.Params))
			}
			for k, name := range rec.ParamNames {
				g.Params[k].Name = name
			}
		default:
			return schemaErr("global %d has unknown kind %d", i+1, rec.Kind)
		}
		if g.Name != rec.Name {
			return schemaErr("duplicate global @%s", rec.Name)
		}
		g.Linkage = ir.Linkage(rec.Linkage)
		g.Props = ir.GlobalProps{
			Section:     rec.Section,
			Partition:   rec.Partition,
			Visibility:  ir.Visibility(rec.Visibility),
			DLLStorage:  ir.DLLStorage(rec.DLLStorage),
			UnnamedAddr: ir.UnnamedAddr(rec.UnnamedAddr),
			ThreadLocal: ir.ThreadLocalMode(rec.ThreadLocal),
			Align:       rec.Align,
		}
		g.IsConstant = rec.IsConstant
		if rec.Comdat != 0 {
			k, ok := index(rec.Comdat, len(d.comdats))
			if !ok {
				return schemaErr("@%s comdat ref %d does not resolve", rec.Name, rec.Comdat)
			}
			g.Comdat = d.comdats[k]
		}
		d.globals = append(d.globals, g)
	}
	return nil
}

func (d *decoder) constant(r uint32) (*ir.Const, error) {
	if r == 0 {
		return nil, nil
	}
	i, ok := index(r, len(d.consts))
	if !ok {
		return nil, schemaErr("constant ref %d does not resolve", r)
	}
	return d.consts[i], nil
}

func (d *decoder) constList(rs []uint32) ([]*ir.Const, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	out := make([]*ir.Const, len(rs))
	for i, r := range rs {
		c, err := d.constant(r)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, schemaErr("missing constant in list")
		}
		out[i] = c
	}
	return out, nil
}

// decodeConsts relies on operands preceding their users, so every
// reference points at an already decoded constant.
func (d *decoder) decodeConsts() error {
	d.consts = make([]*ir.Const, 0, len(d.p.Consts))
	for i, rec := range d.p.Consts {
		c, err := d.decodeConst(rec)
		if err != nil {
			return fmt.Errorf("constant %d: %w", i+1, err)
		}
		d.consts = append(d.consts, c)
	}
	return nil
}

func (d *decoder) decodeConst(rec ConstRec) (*ir.Const, error) {
	ty, err := d.typ(rec.Type)
	if err != nil {
		return nil, err
	}
	c := &ir.Const{
		Kind:     ir.ConstKind(rec.Kind),
		Type:     ty,
		Int:      rec.Int,
		Float:    rec.Float,
		Data:     rec.Data,
		Op:       ir.Opcode(rec.Op),
		InBounds: rec.InBounds,
		Pred:     ir.Predicate(rec.Pred),
	}
	if c.Elems, err = d.constList(rec.Elems); err != nil {
		return nil, err
	}
	if c.Operands, err = d.constList(rec.Operands); err != nil {
		return nil, err
	}
	if c.SourceElem, err = d.typ(rec.SourceElem); err != nil {
		return nil, err
	}
	if c.Kind == ir.ConstGlobal {
		k, ok := index(rec.Global, len(d.globals))
		if !ok {
			return nil, schemaErr("global ref %d does not resolve", rec.Global)
		}
		c.Global = d.globals[k]
	}
	return c, nil
}

func (d *decoder) node(r uint32) (*ir.MDNode, error) {
	if r == 0 {
		return nil, nil
	}
	i, ok := index(r, len(d.nodes))
	if !ok {
		return nil, schemaErr("metadata ref %d does not resolve", r)
	}
	return d.nodes[i], nil
}

func (d *decoder) decodeNodes() error {
	d.nodes = make([]*ir.MDNode, len(d.p.MD))
	for i, rec := range d.p.MD {
		d.nodes[i] = &ir.MDNode{Distinct: rec.Distinct}
	}
	for i, rec := range d.p.MD {
		ops := make([]ir.MDOperand, len(rec.Operands))
		for k, op := range rec.Operands {
			kind := ir.MDOperandKind(op.Kind)
			switch kind {
			case ir.MDNull:
			case ir.MDString:
				ops[k] = ir.MDStr(op.String)
			case ir.MDValue:
				c, err := d.constant(op.Value)
				if err != nil {
					return fmt.Errorf("node %d: %w", i+1, err)
				}
				ops[k] = ir.MDConst(c)
			case ir.MDNodeRef:
				n, err := d.node(op.Node)
				if err != nil {
					return fmt.Errorf("node %d: %w", i+1, err)
				}
				ops[k] = ir.MDRef(n)
			default:
				return schemaErr("node %d has operand kind %d", i+1, op.Kind)
			}
		}
		d.nodes[i].Operands = ops
	}
	return nil
}

func (d *decoder) attrs(rec AttrListRec) (ir.AttrList, error) {
	set := func(rs []AttrRec) (ir.AttrSet, error) {
		if len(rs) == 0 {
			return nil, nil
		}
		out := make(ir.AttrSet, len(rs))
		for i, a := range rs {
			ty, err := d.typ(a.Type)
			if err != nil {
				return nil, err
			}
			out[i] = ir.Attr{Kind: ir.AttrKind(a.Kind), Int: a.Int, Type: ty, Key: a.Key, Value: a.Value}
		}
		return out, nil
	}
	var l ir.AttrList
	var err error
	if l.Fn, err = set(rec.Fn); err != nil {
		return l, err
	}
	if l.Ret, err = set(rec.Ret); err != nil {
		return l, err
	}
	for _, p := range rec.Params {
		ps, err := set(p)
		if err != nil {
			return l, err
		}
		l.Params = append(l.Params, ps)
	}
	return l, nil
}

func (d *decoder) fillGlobals() error {
	for i, rec := range d.p.Globals {
		g := d.globals[i]
		if err := d.fillGlobal(g, rec); err != nil {
			return fmt.Errorf("@%s: %w", g.Name, err)
		}
	}
	return nil
}

func (d *decoder) fillGlobal(g *ir.Global, rec GlobalRec) error {
	for _, att := range rec.Metadata {
		n, err := d.node(att.Node)
		if err != nil {
			return fmt.Errorf("!%s: %w", att.Kind, err)
		}
		g.AddMetadata(att.Kind, n)
	}
	var err error
	if g.Init, err = d.constant(rec.Init); err != nil {
		return err
	}
	if g.Aliasee, err = d.constant(rec.Aliasee); err != nil {
		return err
	}
	if g.Attrs, err = d.attrs(rec.Attrs); err != nil {
		return err
	}
	if len(rec.Blocks) == 0 {
		return nil
	}
	if g.Kind != ir.GlobalFunc {
		return schemaErr("%s with a body", g.Kind)
	}
	return d.body(g, rec.Blocks)
}

func (d *decoder) body(f *ir.Global, recs []BlockRec) error {
	blocks := make([]*ir.Block, len(recs))
	for i, rec := range recs {
		blocks[i] = f.NewBlock(rec.Name)
	}
	var flat []*ir.Instr
	for bi, rec := range recs {
		for _, irec := range rec.Instrs {
			ins := &ir.Instr{
				Op:       ir.Opcode(irec.Op),
				Name:     irec.Name,
				InBounds: irec.InBounds,
				Pred:     ir.Predicate(irec.Pred),
				Align:    irec.Align,
				Volatile: irec.Volatile,
			}
			var err error
			for _, t := range []struct {
				dst *types.TypeID
				r   uint32
			}{
				{&ins.Type, irec.Type},
				{&ins.AllocType, irec.AllocType},
				{&ins.SourceElem, irec.SourceElem},
				{&ins.FnType, irec.FnType},
			} {
				if *t.dst, err = d.typ(t.r); err != nil {
					return err
				}
			}
			if ins.CallAttrs, err = d.attrs(irec.CallAttrs); err != nil {
				return err
			}
			flat = append(flat, blocks[bi].Append(ins))
		}
	}

	blockList := func(rs []uint32) ([]*ir.Block, error) {
		if len(rs) == 0 {
			return nil, nil
		}
		out := make([]*ir.Block, len(rs))
		for i, r := range rs {
			k, ok := index(r, len(blocks))
			if !ok {
				return nil, schemaErr("block ref %d does not resolve", r)
			}
			out[i] = blocks[k]
		}
		return out, nil
	}
	n := 0
	for _, rec := range recs {
		for _, irec := range rec.Instrs {
			ins := flat[n]
			n++
			for _, v := range irec.Operands {
				op, err := d.value(f, flat, v)
				if err != nil {
					return err
				}
				ins.Operands = append(ins.Operands, op)
			}
			var err error
			if ins.Targets, err = blockList(irec.Targets); err != nil {
				return err
			}
			if ins.Incoming, err = blockList(irec.Incoming); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) value(f *ir.Global, flat []*ir.Instr, v ValueRec) (ir.Value, error) {
	switch ir.ValueKind(v.Kind) {
	case ir.ValueConst:
		c, err := d.constant(v.Ref)
		if err != nil {
			return ir.Value{}, err
		}
		if c == nil {
			return ir.Value{}, schemaErr("missing constant operand")
		}
		return ir.ConstValue(c), nil
	case ir.ValueArg:
		k, ok := index(v.Ref, len(f.Params))
		if !ok {
			return ir.Value{}, schemaErr("argument ref %d does not resolve", v.Ref)
		}
		return ir.ArgValue(f.Params[k]), nil
	case ir.ValueInstr:
		k, ok := index(v.Ref, len(flat))
		if !ok {
			return ir.Value{}, schemaErr("instruction ref %d does not resolve", v.Ref)
		}
		return ir.InstrValue(flat[k]), nil
	default:
		return ir.Value{}, schemaErr("operand kind %d", v.Kind)
	}
}

func (d *decoder) decodeNamedMD() error {
	for _, rec := range d.p.NamedMD {
		nmd := d.m.AddNamedMetadata(rec.Name)
		for _, r := range rec.Operands {
			n, err := d.node(r)
			if err != nil {
				return fmt.Errorf("!%s: %w", rec.Name, err)
			}
			nmd.Operands = append(nmd.Operands, n)
		}
	}
	return nil
}
