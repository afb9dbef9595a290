package ir

import "asremap/internal/types"

// Builder appends instructions to a block.
type Builder struct {
	in *types.Interner
	b  *Block
}

// NewBuilder returns a builder positioned at the end of b.
func NewBuilder(in *types.Interner, b *Block) *Builder {
	return &Builder{in: in, b: b}
}

// SetBlock moves the builder to the end of b.
func (bd *Builder) SetBlock(b *Block) { bd.b = b }

func (bd *Builder) void() types.TypeID { return bd.in.Builtins().Void }

// Ret appends a return of v, or of nothing when v is the zero Value.
func (bd *Builder) Ret(v Value) *Instr {
	ins := &Instr{Op: OpRet, Type: bd.void()}
	if v.IsValid() {
		ins.Operands = []Value{v}
	}
	return bd.b.Append(ins)
}

// Br appends an unconditional branch.
func (bd *Builder) Br(target *Block) *Instr {
	return bd.b.Append(&Instr{Op: OpBr, Type: bd.void(), Targets: []*Block{target}})
}

// CondBr appends a conditional branch.
func (bd *Builder) CondBr(cond Value, then, els *Block) *Instr {
	return bd.b.Append(&Instr{Op: OpCondBr, Type: bd.void(), Operands: []Value{cond}, Targets: []*Block{then, els}})
}

// Alloca appends a stack allocation of ty in address space as.
func (bd *Builder) Alloca(name string, ty types.TypeID, as types.AddrSpace) *Instr {
	return bd.b.Append(&Instr{Op: OpAlloca, Name: name, Type: bd.in.Pointer(as), AllocType: ty})
}

// Load appends a load of ty from ptr.
func (bd *Builder) Load(name string, ty types.TypeID, ptr Value) *Instr {
	return bd.b.Append(&Instr{Op: OpLoad, Name: name, Type: ty, Operands: []Value{ptr}})
}

// Store appends a store of v to ptr.
func (bd *Builder) Store(v, ptr Value) *Instr {
	return bd.b.Append(&Instr{Op: OpStore, Type: bd.void(), Operands: []Value{v, ptr}})
}

// GEP appends a getelementptr over base.
func (bd *Builder) GEP(name string, sourceElem types.TypeID, base Value, indices ...Value) *Instr {
	ops := append([]Value{base}, indices...)
	return bd.b.Append(&Instr{
		Op:         OpGetElementPtr,
		Name:       name,
		Type:       base.Type(),
		Operands:   ops,
		SourceElem: sourceElem,
		InBounds:   true,
	})
}

// Cast appends a cast of v to ty.
func (bd *Builder) Cast(name string, op Opcode, v Value, ty types.TypeID) *Instr {
	return bd.b.Append(&Instr{Op: op, Name: name, Type: ty, Operands: []Value{v}})
}

// Binary appends an arithmetic instruction.
func (bd *Builder) Binary(name string, op Opcode, lhs, rhs Value) *Instr {
	return bd.b.Append(&Instr{Op: op, Name: name, Type: lhs.Type(), Operands: []Value{lhs, rhs}})
}

// ICmp appends an integer comparison.
func (bd *Builder) ICmp(name string, pred Predicate, lhs, rhs Value) *Instr {
	return bd.b.Append(&Instr{Op: OpICmp, Name: name, Type: bd.in.Builtins().I1, Pred: pred, Operands: []Value{lhs, rhs}})
}

// Phi appends a phi node of type ty.
func (bd *Builder) Phi(name string, ty types.TypeID, values []Value, blocks []*Block) *Instr {
	return bd.b.Append(&Instr{
		Op:       OpPhi,
		Name:     name,
		Type:     ty,
		Operands: append([]Value(nil), values...),
		Incoming: append([]*Block(nil), blocks...),
	})
}

// Call appends a call of callee with signature fnType.
func (bd *Builder) Call(name string, fnType types.TypeID, callee Value, args ...Value) *Instr {
	result := bd.void()
	if info, ok := bd.in.FnInfo(fnType); ok {
		result = info.Result
	}
	ops := append([]Value{callee}, args...)
	return bd.b.Append(&Instr{Op: OpCall, Name: name, Type: result, Operands: ops, FnType: fnType})
}
