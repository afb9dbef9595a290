package remap

import (
	"fmt"

	"asremap/internal/ir"
	"asremap/internal/types"
)

// valueMapper rebuilds constants, metadata and attributes against the
// rewritten types and the old-to-new global correspondence.
type valueMapper struct {
	m       *ir.Module
	tm      *typeMapper
	globals map[*ir.Global]*ir.Global
	consts  map[*ir.Const]*ir.Const
	nodes   map[*ir.MDNode]*ir.MDNode

	folded int
}

func newValueMapper(m *ir.Module, tm *typeMapper) *valueMapper {
	return &valueMapper{
		m:       m,
		tm:      tm,
		globals: make(map[*ir.Global]*ir.Global),
		consts:  make(map[*ir.Const]*ir.Const),
		nodes:   make(map[*ir.MDNode]*ir.MDNode),
	}
}

// constant returns the rewritten form of c. Constants that neither change
// type nor reference a global are shared with the input.
func (vm *valueMapper) constant(c *ir.Const) (*ir.Const, error) {
	if c == nil {
		return nil, nil
	}
	if out, ok := vm.consts[c]; ok {
		return out, nil
	}
	out, err := vm.rebuild(c)
	if err != nil {
		return nil, err
	}
	vm.consts[c] = out
	return out, nil
}

func (vm *valueMapper) rebuild(c *ir.Const) (*ir.Const, error) {
	ty := vm.tm.remap(c.Type)
	switch c.Kind {
	case ir.ConstGlobal:
		repl, ok := vm.globals[c.Global]
		if !ok {
			name := "<nil>"
			if c.Global != nil {
				name = c.Global.Name
			}
			return nil, fmt.Errorf("reference to @%s: %w", name, ErrUnresolved)
		}
		return vm.m.GlobalRef(repl), nil
	case ir.ConstAggregate:
		elems, changed, err := vm.constants(c.Elems)
		if err != nil {
			return nil, err
		}
		if !changed && ty == c.Type {
			return c, nil
		}
		return ir.NewAggregate(ty, elems), nil
	case ir.ConstExpr:
		return vm.expr(c, ty)
	default:
		if ty == c.Type {
			return c, nil
		}
		cp := c.ShallowCopy()
		cp.Type = ty
		return cp, nil
	}
}

func (vm *valueMapper) expr(c *ir.Const, ty types.TypeID) (*ir.Const, error) {
	ops, changed, err := vm.constants(c.Operands)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case ir.OpAddrSpaceCast:
		if len(ops) == 1 && vm.sameSpace(ops[0].Type, ty) {
			vm.folded++
			return ops[0], nil
		}
	case ir.OpGetElementPtr:
		// Pointer arithmetic keeps its node shape: operands and types are
		// rewritten but nothing is folded.
		src := vm.tm.remap(c.SourceElem)
		if !changed && ty == c.Type && src == c.SourceElem {
			return c, nil
		}
		cp := c.ShallowCopy()
		cp.Type = ty
		cp.Operands = ops
		cp.SourceElem = src
		return cp, nil
	}
	if !changed && ty == c.Type {
		return c, nil
	}
	return c.WithOperands(ops, ty), nil
}

func (vm *valueMapper) constants(in []*ir.Const) ([]*ir.Const, bool, error) {
	if len(in) == 0 {
		return nil, false, nil
	}
	out := make([]*ir.Const, len(in))
	changed := false
	for i, c := range in {
		nc, err := vm.constant(c)
		if err != nil {
			return nil, false, err
		}
		out[i] = nc
		changed = changed || nc != c
	}
	return out, changed, nil
}

// sameSpace reports whether two pointer types share an address space.
func (vm *valueMapper) sameSpace(a, b types.TypeID) bool {
	as, ok := vm.m.Types.AddrSpaceOf(a)
	if !ok {
		return false
	}
	bs, ok := vm.m.Types.AddrSpaceOf(b)
	return ok && as == bs
}

// node clones a metadata graph, rewriting the constants it wraps. Cycles
// resolve through the memo, which holds the clone before its operands.
func (vm *valueMapper) node(n *ir.MDNode) (*ir.MDNode, error) {
	if n == nil {
		return nil, nil
	}
	if out, ok := vm.nodes[n]; ok {
		return out, nil
	}
	out := &ir.MDNode{Distinct: n.Distinct, Operands: make([]ir.MDOperand, len(n.Operands))}
	vm.nodes[n] = out
	for i, op := range n.Operands {
		switch op.Kind {
		case ir.MDValue:
			c, err := vm.constant(op.Value)
			if err != nil {
				return nil, err
			}
			out.Operands[i] = ir.MDConst(c)
		case ir.MDNodeRef:
			ref, err := vm.node(op.Node)
			if err != nil {
				return nil, err
			}
			out.Operands[i] = ir.MDRef(ref)
		default:
			out.Operands[i] = op
		}
	}
	return out, nil
}

func (vm *valueMapper) attachments(dst, src *ir.Global) error {
	for _, att := range src.Metadata {
		n, err := vm.node(att.Node)
		if err != nil {
			return fmt.Errorf("!%s: %w", att.Kind, err)
		}
		dst.AddMetadata(att.Kind, n)
	}
	return nil
}

// attrs copies an attribute list, re-typing attributes with a type payload.
// Kinds this package does not model and typed kinds without a payload are
// copied verbatim.
func (vm *valueMapper) attrs(l ir.AttrList) (ir.AttrList, error) {
	out := l.Clone()
	for _, set := range out.Sets() {
		for i := range set {
			if !set[i].Kind.HasType() || set[i].Type == types.NoTypeID {
				continue
			}
			if _, ok := vm.m.Types.Lookup(set[i].Type); !ok {
				return ir.AttrList{}, fmt.Errorf("attribute %s claims type %d: %w", set[i].Kind, set[i].Type, ErrUnresolved)
			}
			set[i].Type = vm.tm.remap(set[i].Type)
		}
	}
	return out, nil
}
