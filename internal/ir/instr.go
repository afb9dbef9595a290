package ir

import (
	"slices"

	"asremap/internal/types"
)

// Instr represents a single instruction.
//
// Operand layout per opcode:
//
//	ret            [value]
//	br             Targets[0]
//	condbr         [cond], Targets[0] then, Targets[1] else
//	alloca         [count]?, AllocType
//	load           [ptr]
//	store          [value, ptr]
//	getelementptr  [base, indices...], SourceElem
//	casts          [value]
//	binary, icmp   [lhs, rhs]
//	phi            [values...] paired with Incoming
//	select         [cond, then, else]
//	call           [callee, args...], FnType, CallAttrs
type Instr struct {
	Op   Opcode
	Name string
	Type types.TypeID // result type; void for instructions without a result

	Operands []Value
	Targets  []*Block
	Incoming []*Block

	AllocType  types.TypeID
	SourceElem types.TypeID
	InBounds   bool
	FnType     types.TypeID
	CallAttrs  AttrList
	Pred       Predicate
	Align      uint32
	Volatile   bool

	parent *Block
}

// Parent returns the block holding the instruction, nil once removed.
func (i *Instr) Parent() *Block { return i.parent }

// Callee returns the call target of a call instruction.
func (i *Instr) Callee() Value {
	if i.Op != OpCall || len(i.Operands) == 0 {
		return Value{}
	}
	return i.Operands[0]
}

// Block is a basic block: a straight-line instruction list ending in a
// terminator.
type Block struct {
	Name   string
	Instrs []*Instr

	parent *Global
}

// Parent returns the function owning the block.
func (b *Block) Parent() *Global { return b.parent }

// Append adds i to the end of the block and returns it.
func (b *Block) Append(i *Instr) *Instr {
	i.parent = b
	b.Instrs = append(b.Instrs, i)
	return i
}

// Terminator returns the last instruction if it ends the block.
func (b *Block) Terminator() *Instr {
	if b == nil || len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Remove detaches i from the block. It reports whether i was present.
func (b *Block) Remove(i *Instr) bool {
	idx := slices.Index(b.Instrs, i)
	if idx < 0 {
		return false
	}
	b.Instrs = slices.Delete(b.Instrs, idx, idx+1)
	i.parent = nil
	return true
}
