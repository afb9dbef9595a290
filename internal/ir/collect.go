package ir

import "asremap/internal/types"

// CollectTypes calls visit for every TypeID the module references directly:
// global value types, constant types, instruction types, parameter types and
// attribute payloads. Components of those types are not expanded.
func CollectTypes(m *Module, visit func(types.TypeID)) {
	if m == nil {
		return
	}
	constSeen := make(map[*Const]struct{})
	visitConst := func(c *Const) {
		walkConsts(c, constSeen, func(k *Const) {
			visit(k.Type)
			if k.Kind == ConstExpr && k.Op == OpGetElementPtr {
				visit(k.SourceElem)
			}
		})
	}
	visitAttrs := func(l AttrList) {
		for _, set := range l.Sets() {
			for _, a := range set {
				if a.Kind.HasType() {
					visit(a.Type)
				}
			}
		}
	}
	mdSeen := make(map[*MDNode]struct{})
	visitMD := func(n *MDNode) {
		walkMD(n, mdSeen, func(node *MDNode) {
			for _, op := range node.Operands {
				if op.Kind == MDValue {
					visitConst(op.Value)
				}
			}
		})
	}
	for _, g := range m.globals {
		visit(g.ValueType)
		visitConst(g.Init)
		visitConst(g.Aliasee)
		for _, att := range g.Metadata {
			visitMD(att.Node)
		}
		visitAttrs(g.Attrs)
		for _, a := range g.Params {
			visit(a.Type)
		}
		for _, b := range g.Blocks {
			for _, ins := range b.Instrs {
				visit(ins.Type)
				if ins.Op == OpAlloca {
					visit(ins.AllocType)
				}
				if ins.Op == OpGetElementPtr {
					visit(ins.SourceElem)
				}
				if ins.Op == OpCall {
					visit(ins.FnType)
				}
				visitAttrs(ins.CallAttrs)
				for _, op := range ins.Operands {
					if op.Kind == ValueConst {
						visitConst(op.Const)
					}
				}
			}
		}
	}
	for _, nmd := range m.NamedMD {
		for _, n := range nmd.Operands {
			visitMD(n)
		}
	}
}
