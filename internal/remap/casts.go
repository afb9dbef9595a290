package remap

import (
	"asremap/internal/ir"
	"asremap/internal/types"
)

// RemoveNoopCasts deletes the addrspacecast instructions of f whose operand
// already lives in the destination address space. Every use of a removed
// cast is redirected to the cast's operand. It returns the number of
// removed instructions.
func RemoveNoopCasts(in *types.Interner, f *ir.Global) int {
	if f == nil || f.Kind != ir.GlobalFunc {
		return 0
	}
	dead := make(map[*ir.Instr]struct{})
	var order []*ir.Instr
	for _, ins := range f.Instrs() {
		if ins.Op != ir.OpAddrSpaceCast || len(ins.Operands) != 1 {
			continue
		}
		src, ok := in.AddrSpaceOf(ins.Operands[0].Type())
		if !ok {
			continue
		}
		dst, ok := in.AddrSpaceOf(ins.Type)
		if !ok || src != dst {
			continue
		}
		dead[ins] = struct{}{}
		order = append(order, ins)
	}
	for _, ins := range order {
		f.ReplaceInstrUses(ins, castSource(ins, dead))
	}
	for _, ins := range order {
		f.RemoveInstr(ins)
	}
	return len(order)
}

// castSource follows a chain of removed casts down to the surviving value.
func castSource(ins *ir.Instr, dead map[*ir.Instr]struct{}) ir.Value {
	v := ins.Operands[0]
	for v.Kind == ir.ValueInstr {
		if _, ok := dead[v.Instr]; !ok || len(v.Instr.Operands) != 1 {
			break
		}
		v = v.Instr.Operands[0]
	}
	return v
}
