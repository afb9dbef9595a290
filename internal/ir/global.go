package ir

import (
	"fmt"
	"slices"

	"asremap/internal/types"
)

// GlobalKind distinguishes global definitions.
type GlobalKind uint8

const (
	// GlobalVar is a global variable.
	GlobalVar GlobalKind = iota
	// GlobalAlias is a named alias of another constant address.
	GlobalAlias
	// GlobalFunc is a function, either declared or defined.
	GlobalFunc
)

func (k GlobalKind) String() string {
	switch k {
	case GlobalVar:
		return "variable"
	case GlobalAlias:
		return "alias"
	case GlobalFunc:
		return "function"
	default:
		return fmt.Sprintf("GlobalKind(%d)", k)
	}
}

// GlobalProps groups the attributes every global definition carries besides
// its type and linkage. Copying the struct copies all of them.
type GlobalProps struct {
	Section     string
	Partition   string
	Visibility  Visibility
	DLLStorage  DLLStorage
	UnnamedAddr UnnamedAddr
	ThreadLocal ThreadLocalMode
	Align       uint32
}

// Global is a named module-level definition.
type Global struct {
	Kind      GlobalKind
	Name      string
	ValueType types.TypeID // variable/alias value type, function signature
	AddrSpace types.AddrSpace
	Linkage   Linkage
	Props     GlobalProps
	Comdat    *Comdat
	Metadata  []MDAttachment

	// Variables.
	IsConstant bool
	Init       *Const

	// Aliases.
	Aliasee *Const

	// Functions.
	Attrs  AttrList
	Params []*Arg
	Blocks []*Block

	module *Module
}

// Module returns the module holding g, nil once erased.
func (g *Global) Module() *Module { return g.module }

// IsDeclaration reports whether g has no definition in this module.
func (g *Global) IsDeclaration() bool {
	switch g.Kind {
	case GlobalVar:
		return g.Init == nil
	case GlobalAlias:
		return false
	case GlobalFunc:
		return len(g.Blocks) == 0
	default:
		return true
	}
}

// NewBlock appends an empty basic block to a function.
func (g *Global) NewBlock(name string) *Block {
	b := &Block{Name: name, parent: g}
	g.Blocks = append(g.Blocks, b)
	return b
}

// DeleteBody drops every block of a function, turning it into a declaration.
func (g *Global) DeleteBody() {
	for _, b := range g.Blocks {
		for _, i := range b.Instrs {
			i.parent = nil
			i.Operands = nil
			i.Targets = nil
			i.Incoming = nil
		}
		b.Instrs = nil
		b.parent = nil
	}
	g.Blocks = nil
}

// Instrs returns every instruction of a function in block order.
func (g *Global) Instrs() []*Instr {
	var out []*Instr
	for _, b := range g.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// AddMetadata attaches node under kind.
func (g *Global) AddMetadata(kind string, node *MDNode) {
	g.Metadata = append(g.Metadata, MDAttachment{Kind: kind, Node: node})
}

// ReplaceInstrUses rewrites every operand of the function that refers to
// old so that it refers to v instead. It returns the number of rewritten
// operands.
func (g *Global) ReplaceInstrUses(old *Instr, v Value) int {
	target := InstrValue(old)
	n := 0
	for _, b := range g.Blocks {
		for _, i := range b.Instrs {
			for k := range i.Operands {
				if i.Operands[k] == target {
					i.Operands[k] = v
					n++
				}
			}
		}
	}
	return n
}

// RemoveInstr detaches i from its block.
func (g *Global) RemoveInstr(i *Instr) bool {
	b := i.parent
	if b == nil || b.parent != g {
		return false
	}
	return b.Remove(i)
}

func (g *Global) makeParams(in *types.Interner) {
	info, ok := in.FnInfo(g.ValueType)
	if !ok {
		return
	}
	g.Params = make([]*Arg, len(info.Params))
	for i, p := range info.Params {
		g.Params[i] = &Arg{Type: p, Index: i, parent: g}
	}
}

// owns reports whether b belongs to the function.
func (g *Global) owns(b *Block) bool {
	return b != nil && b.parent == g && slices.Contains(g.Blocks, b)
}
