package ir

// ReplaceAllUsesWith redirects every reference to old, from initializers,
// aliasees, instruction operands and metadata, to repl. It returns the
// number of rewritten references.
func (m *Module) ReplaceAllUsesWith(old, repl *Global) int {
	if old == nil || repl == nil || old == repl {
		return 0
	}
	ty := m.Types.Pointer(repl.AddrSpace)
	n := 0
	m.walkConsts(func(c *Const) {
		if c.Kind == ConstGlobal && c.Global == old {
			c.Global = repl
			c.Type = ty
			n++
		}
	})
	return n
}

// Uses counts the references to g that are reachable from the module.
func (m *Module) Uses(g *Global) int {
	n := 0
	m.walkConsts(func(c *Const) {
		if c.Kind == ConstGlobal && c.Global == g {
			n++
		}
	})
	return n
}

// walkConsts visits every constant reachable from the module once.
func (m *Module) walkConsts(visit func(*Const)) {
	seen := make(map[*Const]struct{})
	mdSeen := make(map[*MDNode]struct{})
	visitMD := func(n *MDNode) {
		walkMD(n, mdSeen, func(node *MDNode) {
			for _, op := range node.Operands {
				if op.Kind == MDValue {
					walkConsts(op.Value, seen, visit)
				}
			}
		})
	}
	for _, g := range m.globals {
		walkConsts(g.Init, seen, visit)
		walkConsts(g.Aliasee, seen, visit)
		for _, att := range g.Metadata {
			visitMD(att.Node)
		}
		for _, b := range g.Blocks {
			for _, i := range b.Instrs {
				for _, op := range i.Operands {
					if op.Kind == ValueConst {
						walkConsts(op.Const, seen, visit)
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
