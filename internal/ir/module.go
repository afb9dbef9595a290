package ir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"asremap/internal/types"
)

// ErrNotInModule is returned when an operation targets a global that does
// not belong to the module.
var ErrNotInModule = errors.New("global is not part of the module")

// Module owns every global definition, comdat and named metadata list of a
// program. Globals keep their insertion order.
type Module struct {
	Name    string
	Types   *types.Interner
	NamedMD []*NamedMetadata

	globals []*Global
	symtab  map[string]*Global
	nameSeq map[string]int
	comdats map[string]*Comdat
	cdOrder []string
}

// NewModule creates an empty module using in for its types.
func NewModule(name string, in *types.Interner) *Module {
	if in == nil {
		in = types.NewInterner()
	}
	return &Module{
		Name:    name,
		Types:   in,
		symtab:  make(map[string]*Global),
		nameSeq: make(map[string]int),
		comdats: make(map[string]*Comdat),
	}
}

// Globals returns every global in insertion order.
func (m *Module) Globals() []*Global {
	return slices.Clone(m.globals)
}

// Variables returns the global variables in insertion order.
func (m *Module) Variables() []*Global { return m.byKind(GlobalVar) }

// Aliases returns the aliases in insertion order.
func (m *Module) Aliases() []*Global { return m.byKind(GlobalAlias) }

// Functions returns the functions in insertion order.
func (m *Module) Functions() []*Global { return m.byKind(GlobalFunc) }

func (m *Module) byKind(k GlobalKind) []*Global {
	var out []*Global
	for _, g := range m.globals {
		if g.Kind == k {
			out = append(out, g)
		}
	}
	return out
}

// Lookup finds a global by name.
func (m *Module) Lookup(name string) *Global {
	if name == "" {
		return nil
	}
	return m.symtab[name]
}

// Contains reports whether g currently belongs to m.
func (m *Module) Contains(g *Global) bool {
	return g != nil && g.module == m
}

// NewVariable adds a global variable. A taken name is made unique.
func (m *Module) NewVariable(name string, valueType types.TypeID, as types.AddrSpace) *Global {
	return m.add(&Global{Kind: GlobalVar, Name: name, ValueType: valueType, AddrSpace: as})
}

// NewAlias adds an alias with no aliasee yet.
func (m *Module) NewAlias(name string, valueType types.TypeID, as types.AddrSpace) *Global {
	return m.add(&Global{Kind: GlobalAlias, Name: name, ValueType: valueType, AddrSpace: as})
}

// NewFunction adds a function declaration with one Arg per parameter of
// the signature fnType.
func (m *Module) NewFunction(name string, fnType types.TypeID, as types.AddrSpace) *Global {
	g := &Global{Kind: GlobalFunc, Name: name, ValueType: fnType, AddrSpace: as}
	g.makeParams(m.Types)
	return m.add(g)
}

func (m *Module) add(g *Global) *Global {
	g.module = m
	g.Name = m.uniqueName(g.Name)
	if g.Name != "" {
		m.symtab[g.Name] = g
	}
	m.globals = append(m.globals, g)
	return g
}

func (m *Module) uniqueName(name string) string {
	if name == "" {
		return ""
	}
	final := name
	for {
		if _, taken := m.symtab[final]; !taken {
			return final
		}
		m.nameSeq[name]++
		final = name + "." + strconv.Itoa(m.nameSeq[name])
	}
}

// Rename changes the name of g and returns the name actually assigned.
func (m *Module) Rename(g *Global, name string) (string, error) {
	if !m.Contains(g) {
		return "", fmt.Errorf("rename %q: %w", g.Name, ErrNotInModule)
	}
	if g.Name == name {
		return name, nil
	}
	if g.Name != "" && m.symtab[g.Name] == g {
		delete(m.symtab, g.Name)
	}
	g.Name = m.uniqueName(name)
	if g.Name != "" {
		m.symtab[g.Name] = g
	}
	return g.Name, nil
}

// Erase removes g from the module. References to g must already be gone.
func (m *Module) Erase(g *Global) error {
	if !m.Contains(g) {
		return fmt.Errorf("erase %q: %w", g.Name, ErrNotInModule)
	}
	idx := slices.Index(m.globals, g)
	if idx >= 0 {
		m.globals = slices.Delete(m.globals, idx, idx+1)
	}
	if g.Name != "" && m.symtab[g.Name] == g {
		delete(m.symtab, g.Name)
	}
	g.module = nil
	return nil
}

// GetOrInsertComdat returns the comdat called name, creating it with
// SelectAny when missing.
func (m *Module) GetOrInsertComdat(name string) *Comdat {
	if c, ok := m.comdats[name]; ok {
		return c
	}
	c := &Comdat{Name: name}
	m.comdats[name] = c
	m.cdOrder = append(m.cdOrder, name)
	return c
}

// DropComdat removes the comdat called name. Globals still pointing at it
// fail verification.
func (m *Module) DropComdat(name string) {
	if _, ok := m.comdats[name]; !ok {
		return
	}
	delete(m.comdats, name)
	m.cdOrder = slices.DeleteFunc(m.cdOrder, func(n string) bool { return n == name })
}

// Comdat returns the comdat called name.
func (m *Module) Comdat(name string) (*Comdat, bool) {
	c, ok := m.comdats[name]
	return c, ok
}

// Comdats returns every comdat in creation order.
func (m *Module) Comdats() []*Comdat {
	out := make([]*Comdat, 0, len(m.cdOrder))
	for _, name := range m.cdOrder {
		out = append(out, m.comdats[name])
	}
	return out
}

// AddNamedMetadata returns the named metadata list called name, creating it
// when missing.
func (m *Module) AddNamedMetadata(name string) *NamedMetadata {
	if nmd := m.NamedMetadata(name); nmd != nil {
		return nmd
	}
	nmd := &NamedMetadata{Name: name}
	m.NamedMD = append(m.NamedMD, nmd)
	return nmd
}

// NamedMetadata finds a named metadata list.
func (m *Module) NamedMetadata(name string) *NamedMetadata {
	for _, nmd := range m.NamedMD {
		if nmd.Name == name {
			return nmd
		}
	}
	return nil
}

// GlobalRef returns the address of g as a constant.
func (m *Module) GlobalRef(g *Global) *Const {
	return NewGlobalRef(m.Types, g)
}
