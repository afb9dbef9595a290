package remap

import (
	"fmt"

	"asremap/internal/ir"
)

// bodyMap is the correspondence of one function's locals.
type bodyMap struct {
	args   map[*ir.Arg]*ir.Arg
	blocks map[*ir.Block]*ir.Block
	instrs map[*ir.Instr]*ir.Instr
}

// cloneBody copies parameter names and the body of f into nf. Instructions
// are created block by block first and wired up afterwards, so operands
// may refer to instructions that appear later in the listing.
func (s *surgeon) cloneBody(nf, f *ir.Global) error {
	bm := bodyMap{
		args:   make(map[*ir.Arg]*ir.Arg, len(f.Params)),
		blocks: make(map[*ir.Block]*ir.Block, len(f.Blocks)),
		instrs: make(map[*ir.Instr]*ir.Instr),
	}
	for i, a := range f.Params {
		if i >= len(nf.Params) {
			return fmt.Errorf("param %d has no counterpart: %w", i, ErrUnresolved)
		}
		nf.Params[i].Name = a.Name
		bm.args[a] = nf.Params[i]
	}

	for _, b := range f.Blocks {
		nb := nf.NewBlock(b.Name)
		bm.blocks[b] = nb
		for _, ins := range b.Instrs {
			ni, err := s.cloneInstr(ins)
			if err != nil {
				return fmt.Errorf("%s: %w", ins.Op, err)
			}
			bm.instrs[ins] = nb.Append(ni)
		}
	}

	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			if err := s.wire(bm.instrs[ins], ins, &bm); err != nil {
				return fmt.Errorf("%s in block %q: %w", ins.Op, b.Name, err)
			}
		}
	}
	return nil
}

// cloneInstr copies everything but operands and block references.
func (s *surgeon) cloneInstr(ins *ir.Instr) (*ir.Instr, error) {
	attrs, err := s.vm.attrs(ins.CallAttrs)
	if err != nil {
		return nil, err
	}
	return &ir.Instr{
		Op:         ins.Op,
		Name:       ins.Name,
		Type:       s.tm.remap(ins.Type),
		AllocType:  s.tm.remap(ins.AllocType),
		SourceElem: s.tm.remap(ins.SourceElem),
		InBounds:   ins.InBounds,
		FnType:     s.tm.remap(ins.FnType),
		CallAttrs:  attrs,
		Pred:       ins.Pred,
		Align:      ins.Align,
		Volatile:   ins.Volatile,
	}, nil
}

func (s *surgeon) wire(ni, ins *ir.Instr, bm *bodyMap) error {
	if len(ins.Operands) > 0 {
		ni.Operands = make([]ir.Value, len(ins.Operands))
	}
	for k, op := range ins.Operands {
		v, err := s.value(op, bm)
		if err != nil {
			return fmt.Errorf("operand %d: %w", k, err)
		}
		ni.Operands[k] = v
	}
	var err error
	if ni.Targets, err = bm.mapBlocks(ins.Targets); err != nil {
		return err
	}
	if ni.Incoming, err = bm.mapBlocks(ins.Incoming); err != nil {
		return err
	}
	return nil
}

func (s *surgeon) value(v ir.Value, bm *bodyMap) (ir.Value, error) {
	switch v.Kind {
	case ir.ValueConst:
		c, err := s.vm.constant(v.Const)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.ConstValue(c), nil
	case ir.ValueArg:
		if a, ok := bm.args[v.Arg]; ok {
			return ir.ArgValue(a), nil
		}
		return ir.Value{}, fmt.Errorf("argument of another function: %w", ErrUnresolved)
	case ir.ValueInstr:
		if i, ok := bm.instrs[v.Instr]; ok {
			return ir.InstrValue(i), nil
		}
		return ir.Value{}, fmt.Errorf("instruction of another function: %w", ErrUnresolved)
	default:
		return ir.Value{}, fmt.Errorf("empty operand: %w", ErrUnresolved)
	}
}

func (bm *bodyMap) mapBlocks(in []*ir.Block) ([]*ir.Block, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]*ir.Block, len(in))
	for i, b := range in {
		nb, ok := bm.blocks[b]
		if !ok {
			return nil, fmt.Errorf("block outside the function: %w", ErrUnresolved)
		}
		out[i] = nb
	}
	return out, nil
}
