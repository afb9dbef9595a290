package ir

import "fmt"

// Opcode enumerates instruction and constant-expression operators.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	// Terminators.
	OpRet
	OpBr
	OpCondBr
	OpUnreachable
	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr
	// Casts.
	OpAddrSpaceCast
	OpBitCast
	OpPtrToInt
	OpIntToPtr
	OpTrunc
	OpZExt
	OpSExt
	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	// Other.
	OpICmp
	OpPhi
	OpSelect
	OpCall

	opcodeCount
)

var opcodeNames = [...]string{
	OpInvalid:       "invalid",
	OpRet:           "ret",
	OpBr:            "br",
	OpCondBr:        "br",
	OpUnreachable:   "unreachable",
	OpAlloca:        "alloca",
	OpLoad:          "load",
	OpStore:         "store",
	OpGetElementPtr: "getelementptr",
	OpAddrSpaceCast: "addrspacecast",
	OpBitCast:       "bitcast",
	OpPtrToInt:      "ptrtoint",
	OpIntToPtr:      "inttoptr",
	OpTrunc:         "trunc",
	OpZExt:          "zext",
	OpSExt:          "sext",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpAnd:           "and",
	OpOr:            "or",
	OpXor:           "xor",
	OpShl:           "shl",
	OpICmp:          "icmp",
	OpPhi:           "phi",
	OpSelect:        "select",
	OpCall:          "call",
}

func (op Opcode) String() string {
	if op.Known() {
		return opcodeNames[op]
	}
	return fmt.Sprintf("op%d", uint8(op))
}

// Known reports whether op is one of the operators this package models.
// Unknown operators are carried through untouched.
func (op Opcode) Known() bool {
	return op > OpInvalid && op < opcodeCount
}

// IsCast reports whether op takes one operand and only changes its type.
func (op Opcode) IsCast() bool {
	return op >= OpAddrSpaceCast && op <= OpSExt
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op >= OpRet && op <= OpUnreachable
}

// Predicate is an integer comparison predicate.
type Predicate uint8

const (
	PredEQ Predicate = iota
	PredNE
	PredUGT
	PredUGE
	PredULT
	PredULE
	PredSGT
	PredSGE
	PredSLT
	PredSLE
)

var predicateNames = [...]string{"eq", "ne", "ugt", "uge", "ult", "ule", "sgt", "sge", "slt", "sle"}

func (p Predicate) String() string {
	if int(p) < len(predicateNames) {
		return predicateNames[p]
	}
	return fmt.Sprintf("pred%d", uint8(p))
}
