package remap

import (
	"context"
	"errors"
	"fmt"

	"asremap/internal/ir"
	"asremap/internal/trace"
)

// Phase names the states a pass run moves through.
type Phase uint8

const (
	PhaseCollecting Phase = iota
	PhaseSkeletons
	PhaseBodies
	PhaseDetached
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseSkeletons:
		return "skeletons"
	case PhaseBodies:
		return "bodies"
	case PhaseDetached:
		return "detach"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// badSuffix marks retired globals and structs while their replacements
// take over the original names.
const badSuffix = ".bad"

type renamedGlobal struct {
	g    *ir.Global
	name string
}

// surgeon holds the state of one pass run over one module.
type surgeon struct {
	m  *ir.Module
	tm *typeMapper
	vm *valueMapper

	phase   Phase
	vars    []*ir.Global
	aliases []*ir.Global
	funcs   []*ir.Global

	// Undo log for a failed run.
	created    []*ir.Global
	renamed    []renamedGlobal
	newComdats []string

	namedOps [][]*ir.MDNode
	stats    Stats
}

func newSurgeon(m *ir.Module, fn Func) *surgeon {
	tm := newTypeMapper(m.Types, fn)
	return &surgeon{m: m, tm: tm, vm: newValueMapper(m, tm)}
}

func (s *surgeon) run(ctx context.Context) error {
	steps := []struct {
		phase Phase
		do    func(context.Context) error
	}{
		{PhaseCollecting, s.collect},
		{PhaseSkeletons, s.skeletons},
		{PhaseBodies, s.bodies},
	}
	for _, st := range steps {
		s.phase = st.phase
		pctx, span := trace.Start(ctx, trace.ScopePhase, st.phase.String())
		err := st.do(pctx)
		if err == nil {
			err = s.tm.err
		}
		if err != nil {
			span.End("failed")
			if rbErr := s.rollback(); rbErr != nil {
				return errors.Join(fmt.Errorf("%s: %w", st.phase, err), fmt.Errorf("rollback: %w", rbErr))
			}
			return fmt.Errorf("%s: %w", st.phase, err)
		}
		span.End("")
	}

	// Nothing below can fail: the rewritten module is complete.
	s.phase = PhaseDetached
	_, span := trace.Start(ctx, trace.ScopePhase, s.phase.String())
	s.detach()
	span.End("")

	s.phase = PhaseDone
	_, span = trace.Start(ctx, trace.ScopePhase, s.phase.String())
	s.finish()
	span.End("")
	return nil
}

func (s *surgeon) collect(context.Context) error {
	s.vars = s.m.Variables()
	s.aliases = s.m.Aliases()
	s.funcs = s.m.Functions()
	return nil
}

// skeletons creates an empty replacement for every global. The old global
// gives up its name first so the replacement can take it over.
func (s *surgeon) skeletons(ctx context.Context) error {
	tr, parent := trace.FromContext(ctx), trace.CurrentSpan(ctx)
	for _, list := range [][]*ir.Global{s.vars, s.aliases, s.funcs} {
		for _, g := range list {
			name := g.Name
			if name != "" {
				if _, err := s.m.Rename(g, name+badSuffix); err != nil {
					return err
				}
				s.renamed = append(s.renamed, renamedGlobal{g: g, name: name})
			}
			vt := s.tm.remap(g.ValueType)
			as := s.tm.space(g.AddrSpace)
			var ng *ir.Global
			switch g.Kind {
			case ir.GlobalVar:
				ng = s.m.NewVariable(name, vt, as)
				ng.IsConstant = g.IsConstant
			case ir.GlobalAlias:
				ng = s.m.NewAlias(name, vt, as)
			default:
				ng = s.m.NewFunction(name, vt, as)
			}
			ng.Linkage = g.Linkage
			ng.Props = g.Props
			s.created = append(s.created, ng)
			s.vm.globals[g] = ng
			trace.Point(tr, trace.ScopeGlobal, "@"+name, "skeleton", parent)
		}
	}
	return nil
}

// bodies fills every skeleton from its old global. Old globals are only
// read here.
func (s *surgeon) bodies(ctx context.Context) error {
	tr, parent := trace.FromContext(ctx), trace.CurrentSpan(ctx)
	for _, g := range s.vars {
		ng := s.vm.globals[g]
		init, err := s.vm.constant(g.Init)
		if err != nil {
			return fmt.Errorf("@%s initializer: %w", ng.Name, err)
		}
		ng.Init = init
		if err := s.common(ng, g); err != nil {
			return err
		}
		trace.Point(tr, trace.ScopeGlobal, "@"+ng.Name, "variable", parent)
	}
	for _, g := range s.aliases {
		ng := s.vm.globals[g]
		aliasee, err := s.vm.constant(g.Aliasee)
		if err != nil {
			return fmt.Errorf("@%s aliasee: %w", ng.Name, err)
		}
		ng.Aliasee = aliasee
		if err := s.common(ng, g); err != nil {
			return err
		}
		trace.Point(tr, trace.ScopeGlobal, "@"+ng.Name, "alias", parent)
	}
	for _, f := range s.funcs {
		nf := s.vm.globals[f]
		attrs, err := s.vm.attrs(f.Attrs)
		if err != nil {
			return fmt.Errorf("@%s: %w", nf.Name, err)
		}
		nf.Attrs = attrs
		if err := s.cloneBody(nf, f); err != nil {
			return fmt.Errorf("@%s: %w", nf.Name, err)
		}
		if err := s.common(nf, f); err != nil {
			return err
		}
		removed := RemoveNoopCasts(s.m.Types, nf)
		s.stats.InstrCastsRemoved += removed
		trace.Point(tr, trace.ScopeGlobal, "@"+nf.Name, fmt.Sprintf("function, %d casts removed", removed), parent)
	}

	s.namedOps = make([][]*ir.MDNode, len(s.m.NamedMD))
	for i, nmd := range s.m.NamedMD {
		ops := make([]*ir.MDNode, len(nmd.Operands))
		for k, n := range nmd.Operands {
			nn, err := s.vm.node(n)
			if err != nil {
				return fmt.Errorf("!%s: %w", nmd.Name, err)
			}
			ops[k] = nn
		}
		s.namedOps[i] = ops
	}
	return nil
}

// common copies metadata attachments and the comdat of g onto ng.
func (s *surgeon) common(ng, g *ir.Global) error {
	if err := s.vm.attachments(ng, g); err != nil {
		return fmt.Errorf("@%s %w", ng.Name, err)
	}
	if g.Comdat == nil {
		return nil
	}
	c, ok := s.m.Comdat(g.Comdat.Name)
	if !ok {
		c = s.m.GetOrInsertComdat(g.Comdat.Name)
		s.newComdats = append(s.newComdats, c.Name)
	}
	c.Selection = g.Comdat.Selection
	ng.Comdat = c
	return nil
}

// detach drops every reference held by the old globals and hands the
// struct names over to their replacements.
func (s *surgeon) detach() {
	for _, g := range s.vars {
		g.Init = nil
	}
	for _, g := range s.aliases {
		g.Aliasee = nil
	}
	for _, f := range s.funcs {
		f.DeleteBody()
	}
	for i, nmd := range s.m.NamedMD {
		nmd.Operands = s.namedOps[i]
	}
	s.tm.commitNames()
}

func (s *surgeon) finish() {
	for _, list := range [][]*ir.Global{s.vars, s.aliases, s.funcs} {
		for _, g := range list {
			_ = s.m.Erase(g) //nolint:errcheck
		}
	}
	s.stats.GlobalsRewritten = len(s.created)
	s.stats.ConstCastsFolded = s.vm.folded
	s.stats.IntrinsicsRenamed, s.stats.IntrinsicsMerged = Canonicalize(s.m)
	s.stats.TypesRemapped = s.tm.remapped
}

// rollback erases the skeletons and gives the old globals their names back.
func (s *surgeon) rollback() error {
	var errs []error
	for _, ng := range s.created {
		ng.DeleteBody()
		ng.Init = nil
		ng.Aliasee = nil
		if err := s.m.Erase(ng); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(s.renamed) - 1; i >= 0; i-- {
		r := s.renamed[i]
		if got, err := s.m.Rename(r.g, r.name); err != nil {
			errs = append(errs, err)
		} else if got != r.name {
			errs = append(errs, fmt.Errorf("@%s restored as @%s", r.name, got))
		}
	}
	for _, name := range s.newComdats {
		s.m.DropComdat(name)
	}
	s.created, s.renamed, s.newComdats = nil, nil, nil
	return errors.Join(errs...)
}
