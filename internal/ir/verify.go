package ir

import (
	"errors"
	"fmt"

	"asremap/internal/types"
)

// Verify checks module invariants: every reference resolves to a node that
// still belongs to the module, every type id resolves, instructions only use
// values of their own function and casts connect pointers.
// Returns error if any invariant is violated.
func Verify(m *Module) error {
	if m == nil {
		return nil
	}
	v := &verifier{m: m, seen: make(map[*Const]error)}
	var errs []error
	names := make(map[string]*Global, len(m.globals))
	for _, g := range m.globals {
		if g.Name != "" {
			if prev, dup := names[g.Name]; dup && prev != g {
				errs = append(errs, fmt.Errorf("duplicate global name @%s", g.Name))
			}
			names[g.Name] = g
		}
		if err := v.global(g); err != nil {
			errs = append(errs, fmt.Errorf("%s @%s: %w", g.Kind, g.Name, err))
		}
	}
	for _, nmd := range m.NamedMD {
		for i, n := range nmd.Operands {
			if err := v.md(n); err != nil {
				errs = append(errs, fmt.Errorf("!%s operand %d: %w", nmd.Name, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

type verifier struct {
	m    *Module
	seen map[*Const]error
}

func (v *verifier) typeOK(id types.TypeID) bool {
	_, ok := v.m.Types.Lookup(id)
	return ok
}

func (v *verifier) global(g *Global) error {
	var errs []error
	if g.module != v.m {
		errs = append(errs, errors.New("not owned by module"))
	}
	if !v.typeOK(g.ValueType) {
		errs = append(errs, fmt.Errorf("unknown value type %d", g.ValueType))
	}
	if g.Comdat != nil {
		if c, ok := v.m.comdats[g.Comdat.Name]; !ok || c != g.Comdat {
			errs = append(errs, fmt.Errorf("comdat $%s is not part of the module", g.Comdat.Name))
		}
	}
	for _, att := range g.Metadata {
		if err := v.md(att.Node); err != nil {
			errs = append(errs, fmt.Errorf("!%s: %w", att.Kind, err))
		}
	}
	switch g.Kind {
	case GlobalVar:
		if g.Init != nil {
			if err := v.constant(g.Init); err != nil {
				errs = append(errs, fmt.Errorf("initializer: %w", err))
			} else if g.Init.Type != g.ValueType {
				errs = append(errs, fmt.Errorf("initializer type %s does not match %s",
					v.m.Types.String(g.Init.Type), v.m.Types.String(g.ValueType)))
			}
		}
	case GlobalAlias:
		if g.Aliasee == nil {
			errs = append(errs, errors.New("alias without aliasee"))
		} else if err := v.constant(g.Aliasee); err != nil {
			errs = append(errs, fmt.Errorf("aliasee: %w", err))
		} else if as, ok := v.m.Types.AddrSpaceOf(g.Aliasee.Type); !ok || as != g.AddrSpace {
			errs = append(errs, fmt.Errorf("aliasee type %s does not point into addrspace(%d)",
				v.m.Types.String(g.Aliasee.Type), g.AddrSpace))
		}
	case GlobalFunc:
		if err := v.function(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *verifier) attrs(l AttrList) error {
	var errs []error
	for _, set := range l.Sets() {
		for _, a := range set {
			if a.Kind.HasType() && a.Type != types.NoTypeID && !v.typeOK(a.Type) {
				errs = append(errs, fmt.Errorf("attribute %s has unknown type %d", a.Kind, a.Type))
			}
		}
	}
	return errors.Join(errs...)
}

func (v *verifier) function(f *Global) error {
	var errs []error
	info, ok := v.m.Types.FnInfo(f.ValueType)
	if !ok {
		return fmt.Errorf("value type %s is not a function type", v.m.Types.String(f.ValueType))
	}
	if len(f.Params) != len(info.Params) {
		errs = append(errs, fmt.Errorf("has %d params, signature has %d", len(f.Params), len(info.Params)))
	}
	for i, a := range f.Params {
		if a.parent != f {
			errs = append(errs, fmt.Errorf("param %d belongs to another function", i))
		}
		if i < len(info.Params) && a.Type != info.Params[i] {
			errs = append(errs, fmt.Errorf("param %d type %s does not match signature %s",
				i, v.m.Types.String(a.Type), v.m.Types.String(info.Params[i])))
		}
	}
	if err := v.attrs(f.Attrs); err != nil {
		errs = append(errs, err)
	}
	for bi, b := range f.Blocks {
		if b.parent != f {
			errs = append(errs, fmt.Errorf("bb%d: block belongs to another function", bi))
		}
		if b.Terminator() == nil {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", bi))
		}
		for ii, ins := range b.Instrs {
			if err := v.instr(f, b, ins); err != nil {
				errs = append(errs, fmt.Errorf("bb%d/%d %s: %w", bi, ii, ins.Op, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (v *verifier) instr(f *Global, b *Block, ins *Instr) error {
	var errs []error
	if ins.parent != b {
		errs = append(errs, errors.New("instruction parent mismatch"))
	}
	if !v.typeOK(ins.Type) {
		errs = append(errs, fmt.Errorf("unknown result type %d", ins.Type))
	}
	for k, op := range ins.Operands {
		if err := v.operand(f, op); err != nil {
			errs = append(errs, fmt.Errorf("operand %d: %w", k, err))
		}
	}
	for _, t := range ins.Targets {
		if !f.owns(t) {
			errs = append(errs, errors.New("branch target outside function"))
		}
	}
	for _, t := range ins.Incoming {
		if !f.owns(t) {
			errs = append(errs, errors.New("phi incoming block outside function"))
		}
	}
	if err := v.attrs(ins.CallAttrs); err != nil {
		errs = append(errs, err)
	}
	switch ins.Op {
	case OpAddrSpaceCast:
		if len(ins.Operands) != 1 {
			errs = append(errs, errors.New("addrspacecast needs one operand"))
		} else if !v.m.Types.IsPointer(ins.Operands[0].Type()) || !v.m.Types.IsPointer(ins.Type) {
			errs = append(errs, errors.New("addrspacecast must convert between pointers"))
		}
	case OpLoad:
		if len(ins.Operands) != 1 || !v.m.Types.IsPointer(ins.Operands[0].Type()) {
			errs = append(errs, errors.New("load needs a pointer operand"))
		}
	case OpStore:
		if len(ins.Operands) != 2 || !v.m.Types.IsPointer(ins.Operands[1].Type()) {
			errs = append(errs, errors.New("store needs a value and a pointer operand"))
		}
	case OpAlloca:
		if !v.typeOK(ins.AllocType) {
			errs = append(errs, fmt.Errorf("unknown allocated type %d", ins.AllocType))
		}
	case OpGetElementPtr:
		if !v.typeOK(ins.SourceElem) {
			errs = append(errs, fmt.Errorf("unknown source element type %d", ins.SourceElem))
		}
	case OpCall:
		if len(ins.Operands) == 0 {
			errs = append(errs, errors.New("call without callee"))
		}
		if _, ok := v.m.Types.FnInfo(ins.FnType); !ok {
			errs = append(errs, fmt.Errorf("call type %d is not a function type", ins.FnType))
		}
	}
	return errors.Join(errs...)
}

func (v *verifier) operand(f *Global, op Value) error {
	switch op.Kind {
	case ValueConst:
		if op.Const == nil {
			return errors.New("nil constant")
		}
		return v.constant(op.Const)
	case ValueArg:
		if op.Arg == nil || op.Arg.parent != f {
			return errors.New("argument of another function")
		}
	case ValueInstr:
		if op.Instr == nil || op.Instr.parent == nil || op.Instr.parent.parent != f {
			return errors.New("instruction that is detached or belongs to another function")
		}
	default:
		return errors.New("empty operand")
	}
	return nil
}

func (v *verifier) constant(c *Const) error {
	if err, ok := v.seen[c]; ok {
		return err
	}
	v.seen[c] = nil
	err := v.checkConst(c)
	v.seen[c] = err
	return err
}

func (v *verifier) checkConst(c *Const) error {
	if !v.typeOK(c.Type) {
		return fmt.Errorf("constant has unknown type %d", c.Type)
	}
	switch c.Kind {
	case ConstNull:
		if !v.m.Types.IsPointer(c.Type) {
			return fmt.Errorf("null of non-pointer type %s", v.m.Types.String(c.Type))
		}
	case ConstGlobal:
		if c.Global == nil || !v.m.Contains(c.Global) {
			name := "<nil>"
			if c.Global != nil {
				name = c.Global.Name
			}
			return fmt.Errorf("reference to global @%s that is not part of the module", name)
		}
		if c.Type != v.m.Types.Pointer(c.Global.AddrSpace) {
			return fmt.Errorf("reference to @%s has type %s", c.Global.Name, v.m.Types.String(c.Type))
		}
	case ConstAggregate:
		for _, e := range c.Elems {
			if e == nil {
				return errors.New("nil aggregate element")
			}
			if err := v.constant(e); err != nil {
				return err
			}
		}
	case ConstExpr:
		for _, op := range c.Operands {
			if op == nil {
				return fmt.Errorf("%s with nil operand", c.Op)
			}
			if err := v.constant(op); err != nil {
				return err
			}
		}
		if c.Op == OpAddrSpaceCast {
			if len(c.Operands) != 1 || !v.m.Types.IsPointer(c.Operands[0].Type) || !v.m.Types.IsPointer(c.Type) {
				return errors.New("addrspacecast must convert between pointers")
			}
		}
	}
	return nil
}

func (v *verifier) md(n *MDNode) error {
	var errs []error
	walkMD(n, make(map[*MDNode]struct{}), func(node *MDNode) {
		for _, op := range node.Operands {
			if op.Kind == MDValue && op.Value != nil {
				if err := v.constant(op.Value); err != nil {
					errs = append(errs, err)
				}
			}
		}
	})
	return errors.Join(errs...)
}
