package ir

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"asremap/internal/types"
)

// Dump writes a human-readable, deterministic listing of m in IR assembly
// syntax.
func Dump(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	p := newPrinter(m)
	p.module()
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// String renders m with Dump.
func (m *Module) String() string {
	var sb strings.Builder
	_ = Dump(&sb, m) //nolint:errcheck
	return sb.String()
}

type printer struct {
	m       *Module
	in      *types.Interner
	sb      strings.Builder
	anon    map[*Global]int
	mdSlots map[*MDNode]int
	mdOrder []*MDNode
	locals  map[Value]string
	blocks  map[*Block]string
}

func newPrinter(m *Module) *printer {
	p := &printer{
		m:       m,
		in:      m.Types,
		anon:    make(map[*Global]int),
		mdSlots: make(map[*MDNode]int),
	}
	for _, g := range m.globals {
		if g.Name == "" {
			p.anon[g] = len(p.anon)
		}
	}
	for _, g := range m.globals {
		for _, att := range g.Metadata {
			p.numberMD(att.Node)
		}
	}
	for _, nmd := range m.NamedMD {
		for _, n := range nmd.Operands {
			p.numberMD(n)
		}
	}
	return p
}

func (p *printer) numberMD(n *MDNode) {
	walkMD(n, make(map[*MDNode]struct{}), func(node *MDNode) {
		if _, ok := p.mdSlots[node]; ok {
			return
		}
		p.mdSlots[node] = len(p.mdOrder)
		p.mdOrder = append(p.mdOrder, node)
	})
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.sb, format, args...)
}

func (p *printer) module() {
	p.printf("; ModuleID = '%s'\n", p.m.Name)
	structs := p.usedStructs()
	if len(structs) > 0 {
		p.printf("\n")
		for _, id := range structs {
			p.printf("%s = type %s\n", p.in.StructName(id), p.in.StructBody(id))
		}
	}
	if comdats := p.m.Comdats(); len(comdats) > 0 {
		p.printf("\n")
		for _, c := range comdats {
			p.printf("$%s = comdat %s\n", c.Name, c.Selection)
		}
	}
	vars := p.m.Variables()
	if len(vars) > 0 {
		p.printf("\n")
		for _, g := range vars {
			p.variable(g)
		}
	}
	aliases := p.m.Aliases()
	if len(aliases) > 0 {
		p.printf("\n")
		for _, g := range aliases {
			p.alias(g)
		}
	}
	for _, f := range p.m.Functions() {
		p.printf("\n")
		p.function(f)
	}
	if len(p.m.NamedMD) > 0 || len(p.mdOrder) > 0 {
		p.printf("\n")
	}
	for _, nmd := range p.m.NamedMD {
		slots := make([]string, len(nmd.Operands))
		for i, n := range nmd.Operands {
			slots[i] = p.mdRef(n)
		}
		p.printf("!%s = !{%s}\n", nmd.Name, strings.Join(slots, ", "))
	}
	for i, n := range p.mdOrder {
		prefix := ""
		if n.Distinct {
			prefix = "distinct "
		}
		p.printf("!%d = %s!{%s}\n", i, prefix, p.mdOperands(n))
	}
}

// usedStructs returns the identified structs reachable from the module in
// TypeID order.
func (p *printer) usedStructs() []types.TypeID {
	seen := make(map[types.TypeID]struct{})
	var out []types.TypeID
	var visit func(id types.TypeID)
	visit = func(id types.TypeID) {
		if id == types.NoTypeID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if info, ok := p.in.StructInfo(id); ok && !info.Literal {
			out = append(out, id)
		}
		for _, c := range p.in.Components(id) {
			visit(c)
		}
	}
	CollectTypes(p.m, visit)
	slices.Sort(out)
	return out
}

func (p *printer) globalName(g *Global) string {
	if g == nil {
		return "@<nil>"
	}
	if g.Name == "" {
		return "@" + strconv.Itoa(p.anon[g])
	}
	return "@" + g.Name
}

func (p *printer) prefixProps(g *Global, showLinkage bool) string {
	var parts []string
	if showLinkage {
		parts = append(parts, g.Linkage.String())
	}
	for _, s := range []string{
		g.Props.Visibility.String(),
		g.Props.DLLStorage.String(),
		g.Props.ThreadLocal.String(),
		g.Props.UnnamedAddr.String(),
	} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}

// suffixProps renders section, partition, comdat, alignment and metadata
// attachments, each preceded by sep.
func (p *printer) suffixProps(g *Global, sep string) string {
	var parts []string
	if g.Props.Section != "" {
		parts = append(parts, "section "+strconv.Quote(g.Props.Section))
	}
	if g.Props.Partition != "" {
		parts = append(parts, "partition "+strconv.Quote(g.Props.Partition))
	}
	if g.Comdat != nil {
		parts = append(parts, "comdat($"+g.Comdat.Name+")")
	}
	if g.Props.Align != 0 {
		parts = append(parts, "align "+strconv.FormatUint(uint64(g.Props.Align), 10))
	}
	for _, att := range g.Metadata {
		parts = append(parts, "!"+att.Kind+" "+p.mdRef(att.Node))
	}
	if len(parts) == 0 {
		return ""
	}
	return sep + strings.Join(parts, sep)
}

func (p *printer) variable(g *Global) {
	showLinkage := g.Linkage != LinkageExternal || g.IsDeclaration()
	kw := "global"
	if g.IsConstant {
		kw = "constant"
	}
	as := ""
	if g.AddrSpace != types.AddrSpaceGeneric {
		as = fmt.Sprintf("addrspace(%d) ", g.AddrSpace)
	}
	init := ""
	if g.Init != nil {
		init = " " + p.constValue(g.Init)
	}
	p.printf("%s = %s%s%s %s%s%s\n", p.globalName(g), p.prefixProps(g, showLinkage), as, kw,
		p.in.String(g.ValueType), init, p.suffixProps(g, ", "))
}

func (p *printer) alias(g *Global) {
	aliasee := "<null>"
	if g.Aliasee != nil {
		aliasee = p.typedConst(g.Aliasee)
	}
	p.printf("%s = %salias %s, %s%s\n", p.globalName(g), p.prefixProps(g, g.Linkage != LinkageExternal),
		p.in.String(g.ValueType), aliasee, p.suffixProps(g, ", "))
}

func (p *printer) function(f *Global) {
	p.locals = make(map[Value]string)
	p.blocks = make(map[*Block]string)
	p.numberLocals(f)

	info, _ := p.in.FnInfo(f.ValueType)
	result := "void"
	variadic := false
	if info != nil {
		result = p.in.String(info.Result)
		variadic = info.Variadic
	}
	kw := "define"
	if f.IsDeclaration() {
		kw = "declare"
	}
	showLinkage := f.Linkage != LinkageExternal
	params := make([]string, 0, len(f.Params)+1)
	for i, a := range f.Params {
		s := p.in.String(a.Type)
		if attrs := p.attrSet(f.Attrs.Param(i)); attrs != "" {
			s += " " + attrs
		}
		s += " " + p.locals[ArgValue(a)]
		params = append(params, s)
	}
	if variadic {
		params = append(params, "...")
	}
	ret := result
	if attrs := p.attrSet(f.Attrs.Ret); attrs != "" {
		ret = attrs + " " + result
	}
	p.printf("%s %s%s %s(%s)", kw, p.prefixProps(f, showLinkage), ret, p.globalName(f), strings.Join(params, ", "))
	if f.AddrSpace != types.AddrSpaceGeneric {
		p.printf(" addrspace(%d)", f.AddrSpace)
	}
	if attrs := p.attrSet(f.Attrs.Fn); attrs != "" {
		p.printf(" %s", attrs)
	}
	p.printf("%s", p.suffixProps(f, " "))
	if f.IsDeclaration() {
		p.printf("\n")
		return
	}
	p.printf(" {\n")
	for bi, b := range f.Blocks {
		if bi > 0 {
			p.printf("\n")
		}
		p.printf("%s:\n", p.blocks[b])
		for _, ins := range b.Instrs {
			p.printf("  %s\n", p.instr(ins))
		}
	}
	p.printf("}\n")
}

func (p *printer) numberLocals(f *Global) {
	slot := 0
	for _, a := range f.Params {
		if a.Name != "" {
			p.locals[ArgValue(a)] = "%" + a.Name
		} else {
			p.locals[ArgValue(a)] = "%" + strconv.Itoa(slot)
			slot++
		}
	}
	for bi, b := range f.Blocks {
		if b.Name != "" {
			p.blocks[b] = b.Name
		} else {
			p.blocks[b] = "bb" + strconv.Itoa(bi)
		}
		for _, ins := range b.Instrs {
			if ins.Name != "" {
				p.locals[InstrValue(ins)] = "%" + ins.Name
				continue
			}
			if t, ok := p.in.Lookup(ins.Type); ok && t.Kind != types.KindVoid {
				p.locals[InstrValue(ins)] = "%" + strconv.Itoa(slot)
				slot++
			}
		}
	}
}

func (p *printer) value(v Value) string {
	switch v.Kind {
	case ValueConst:
		return p.constValue(v.Const)
	case ValueArg, ValueInstr:
		if name, ok := p.locals[v]; ok {
			return name
		}
		return "%<detached>"
	default:
		return "<none>"
	}
}

func (p *printer) typedValue(v Value) string {
	return p.in.String(v.Type()) + " " + p.value(v)
}

func (p *printer) blockRef(b *Block) string {
	if name, ok := p.blocks[b]; ok {
		return "label %" + name
	}
	return "label %<detached>"
}

func (p *printer) operand(ins *Instr, k int) string {
	if k < len(ins.Operands) {
		return p.typedValue(ins.Operands[k])
	}
	return "<missing>"
}

func (p *printer) instr(ins *Instr) string {
	lhs := ""
	if name, ok := p.locals[InstrValue(ins)]; ok {
		lhs = name + " = "
	}
	volatile := ""
	if ins.Volatile {
		volatile = "volatile "
	}
	align := ""
	if ins.Align != 0 {
		align = ", align " + strconv.FormatUint(uint64(ins.Align), 10)
	}
	switch {
	case ins.Op == OpRet:
		if len(ins.Operands) == 0 {
			return "ret void"
		}
		return "ret " + p.operand(ins, 0)
	case ins.Op == OpBr:
		if len(ins.Targets) == 0 {
			return "br <missing>"
		}
		return "br " + p.blockRef(ins.Targets[0])
	case ins.Op == OpCondBr:
		if len(ins.Targets) < 2 {
			return "br <missing>"
		}
		return fmt.Sprintf("br %s, %s, %s", p.operand(ins, 0), p.blockRef(ins.Targets[0]), p.blockRef(ins.Targets[1]))
	case ins.Op == OpUnreachable:
		return "unreachable"
	case ins.Op == OpAlloca:
		s := lhs + "alloca " + p.in.String(ins.AllocType)
		if len(ins.Operands) > 0 {
			s += ", " + p.operand(ins, 0)
		}
		s += align
		if as, ok := p.in.AddrSpaceOf(ins.Type); ok && as != types.AddrSpaceGeneric {
			s += fmt.Sprintf(", addrspace(%d)", as)
		}
		return s
	case ins.Op == OpLoad:
		return fmt.Sprintf("%sload %s%s, %s%s", lhs, volatile, p.in.String(ins.Type), p.operand(ins, 0), align)
	case ins.Op == OpStore:
		return fmt.Sprintf("store %s%s, %s%s", volatile, p.operand(ins, 0), p.operand(ins, 1), align)
	case ins.Op == OpGetElementPtr:
		parts := []string{p.in.String(ins.SourceElem)}
		for k := range ins.Operands {
			parts = append(parts, p.operand(ins, k))
		}
		inb := ""
		if ins.InBounds {
			inb = "inbounds "
		}
		return lhs + "getelementptr " + inb + strings.Join(parts, ", ")
	case ins.Op.IsCast():
		return fmt.Sprintf("%s%s %s to %s", lhs, ins.Op, p.operand(ins, 0), p.in.String(ins.Type))
	case ins.Op == OpICmp:
		return fmt.Sprintf("%sicmp %s %s, %s", lhs, ins.Pred, p.operand(ins, 0), p.valueAt(ins, 1))
	case ins.Op >= OpAdd && ins.Op <= OpShl:
		return fmt.Sprintf("%s%s %s, %s", lhs, ins.Op, p.operand(ins, 0), p.valueAt(ins, 1))
	case ins.Op == OpPhi:
		arms := make([]string, len(ins.Operands))
		for k, v := range ins.Operands {
			blk := "%<missing>"
			if k < len(ins.Incoming) {
				blk = strings.TrimPrefix(p.blockRef(ins.Incoming[k]), "label ")
			}
			arms[k] = fmt.Sprintf("[ %s, %s ]", p.value(v), blk)
		}
		return fmt.Sprintf("%sphi %s %s", lhs, p.in.String(ins.Type), strings.Join(arms, ", "))
	case ins.Op == OpSelect:
		return fmt.Sprintf("%sselect %s, %s, %s", lhs, p.operand(ins, 0), p.operand(ins, 1), p.operand(ins, 2))
	case ins.Op == OpCall:
		return lhs + p.call(ins)
	default:
		ops := make([]string, len(ins.Operands))
		for k := range ins.Operands {
			ops[k] = p.operand(ins, k)
		}
		return fmt.Sprintf("%s%s %s", lhs, ins.Op, strings.Join(ops, ", "))
	}
}

func (p *printer) valueAt(ins *Instr, k int) string {
	if k < len(ins.Operands) {
		return p.value(ins.Operands[k])
	}
	return "<missing>"
}

func (p *printer) call(ins *Instr) string {
	result := p.in.String(ins.Type)
	if attrs := p.attrSet(ins.CallAttrs.Ret); attrs != "" {
		result = attrs + " " + result
	}
	args := make([]string, 0, len(ins.Operands))
	for k := 1; k < len(ins.Operands); k++ {
		s := p.in.String(ins.Operands[k].Type())
		if attrs := p.attrSet(ins.CallAttrs.Param(k - 1)); attrs != "" {
			s += " " + attrs
		}
		args = append(args, s+" "+p.value(ins.Operands[k]))
	}
	s := fmt.Sprintf("call %s %s(%s)", result, p.value(ins.Callee()), strings.Join(args, ", "))
	if attrs := p.attrSet(ins.CallAttrs.Fn); attrs != "" {
		s += " " + attrs
	}
	return s
}

func (p *printer) attrSet(set AttrSet) string {
	if len(set) == 0 {
		return ""
	}
	parts := make([]string, len(set))
	for i, a := range set {
		parts[i] = p.attr(a)
	}
	return strings.Join(parts, " ")
}

func (p *printer) attr(a Attr) string {
	switch {
	case a.Kind.HasType() && a.Type != types.NoTypeID:
		return fmt.Sprintf("%s(%s)", a.Kind, p.in.String(a.Type))
	case a.Kind == AttrAlign:
		return fmt.Sprintf("align %d", a.Int)
	case a.Kind == AttrDereferenceable:
		return fmt.Sprintf("dereferenceable(%d)", a.Int)
	case a.Kind == AttrString:
		if a.Value == "" {
			return strconv.Quote(a.Key)
		}
		return strconv.Quote(a.Key) + "=" + strconv.Quote(a.Value)
	default:
		return a.Kind.String()
	}
}

func (p *printer) typedConst(c *Const) string {
	if c == nil {
		return "<null>"
	}
	return p.in.String(c.Type) + " " + p.constValue(c)
}

func (p *printer) constValue(c *Const) string {
	if c == nil {
		return "<null>"
	}
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'e', 6, 64)
	case ConstNull:
		return "null"
	case ConstUndef:
		return "undef"
	case ConstPoison:
		return "poison"
	case ConstZero:
		return "zeroinitializer"
	case ConstData:
		return "c" + quoteData(c.Data)
	case ConstAggregate:
		elems := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			elems[i] = p.typedConst(e)
		}
		open, closing := "[", "]"
		if t, ok := p.in.Lookup(c.Type); ok {
			switch t.Kind {
			case types.KindStruct:
				open, closing = "{", "}"
				if info, _ := p.in.StructInfo(c.Type); info != nil && info.Packed {
					open, closing = "<{", "}>"
				}
			case types.KindVector:
				open, closing = "<", ">"
			}
		}
		if len(elems) == 0 {
			return open + closing
		}
		return open + " " + strings.Join(elems, ", ") + " " + closing
	case ConstGlobal:
		return p.globalName(c.Global)
	case ConstExpr:
		return p.constExpr(c)
	default:
		return fmt.Sprintf("<%s>", c.Kind)
	}
}

func (p *printer) constExpr(c *Const) string {
	ops := make([]string, len(c.Operands))
	for i, op := range c.Operands {
		ops[i] = p.typedConst(op)
	}
	switch {
	case c.Op.IsCast() && len(ops) == 1:
		return fmt.Sprintf("%s (%s to %s)", c.Op, ops[0], p.in.String(c.Type))
	case c.Op == OpGetElementPtr:
		inb := ""
		if c.InBounds {
			inb = "inbounds "
		}
		return fmt.Sprintf("getelementptr %s(%s)", inb, strings.Join(append([]string{p.in.String(c.SourceElem)}, ops...), ", "))
	case c.Op == OpICmp:
		return fmt.Sprintf("icmp %s (%s)", c.Pred, strings.Join(ops, ", "))
	default:
		return fmt.Sprintf("%s (%s)", c.Op, strings.Join(ops, ", "))
	}
}

func (p *printer) mdRef(n *MDNode) string {
	if n == nil {
		return "null"
	}
	if slot, ok := p.mdSlots[n]; ok {
		return "!" + strconv.Itoa(slot)
	}
	return "!<unnumbered>"
}

func (p *printer) mdOperands(n *MDNode) string {
	parts := make([]string, len(n.Operands))
	for i, op := range n.Operands {
		switch op.Kind {
		case MDString:
			parts[i] = "!" + strconv.Quote(op.String)
		case MDValue:
			parts[i] = p.typedConst(op.Value)
		case MDNodeRef:
			parts[i] = p.mdRef(op.Node)
		default:
			parts[i] = "null"
		}
	}
	return strings.Join(parts, ", ")
}

func quoteData(data []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, b := range data {
		if b >= 0x20 && b < 0x7f && b != '"' && b != '\\' {
			sb.WriteByte(b)
			continue
		}
		fmt.Fprintf(&sb, "\\%02X", b)
	}
	sb.WriteByte('"')
	return sb.String()
}
