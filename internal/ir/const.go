package ir

import (
	"fmt"

	"asremap/internal/types"
)

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstInt represents an integer literal.
	ConstInt ConstKind = iota
	// ConstFloat represents a floating-point literal.
	ConstFloat
	// ConstNull represents a null pointer.
	ConstNull
	// ConstUndef represents an undefined value.
	ConstUndef
	// ConstPoison represents a poison value.
	ConstPoison
	// ConstZero represents zeroinitializer of any type.
	ConstZero
	// ConstData represents a raw byte array such as c"..." strings.
	ConstData
	// ConstAggregate represents a struct, array or vector of constants.
	ConstAggregate
	// ConstGlobal represents the address of a global definition.
	ConstGlobal
	// ConstExpr represents an operator applied to constant operands.
	ConstExpr
)

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstNull:
		return "null"
	case ConstUndef:
		return "undef"
	case ConstPoison:
		return "poison"
	case ConstZero:
		return "zeroinitializer"
	case ConstData:
		return "data"
	case ConstAggregate:
		return "aggregate"
	case ConstGlobal:
		return "global"
	case ConstExpr:
		return "expr"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Const is an immutable constant. Every constant carries its type; the
// remaining fields are populated per Kind.
type Const struct {
	Kind ConstKind
	Type types.TypeID

	Int   int64
	Float float64
	Data  []byte

	// Elems holds the members of a ConstAggregate.
	Elems []*Const

	// Global is the referenced definition of a ConstGlobal.
	Global *Global

	// Constant-expression payload.
	Op         Opcode
	Operands   []*Const
	SourceElem types.TypeID // getelementptr
	InBounds   bool         // getelementptr
	Pred       Predicate    // icmp
}

// NewInt creates an integer literal of type ty.
func NewInt(ty types.TypeID, v int64) *Const {
	return &Const{Kind: ConstInt, Type: ty, Int: v}
}

// NewFloat creates a floating-point literal of type ty.
func NewFloat(ty types.TypeID, v float64) *Const {
	return &Const{Kind: ConstFloat, Type: ty, Float: v}
}

// NewNull creates a null pointer of pointer type ty.
func NewNull(ty types.TypeID) *Const {
	return &Const{Kind: ConstNull, Type: ty}
}

// NewUndef creates an undef value of type ty.
func NewUndef(ty types.TypeID) *Const {
	return &Const{Kind: ConstUndef, Type: ty}
}

// NewPoison creates a poison value of type ty.
func NewPoison(ty types.TypeID) *Const {
	return &Const{Kind: ConstPoison, Type: ty}
}

// NewZero creates zeroinitializer of type ty.
func NewZero(ty types.TypeID) *Const {
	return &Const{Kind: ConstZero, Type: ty}
}

// NewData creates a byte array constant of type ty.
func NewData(ty types.TypeID, data []byte) *Const {
	return &Const{Kind: ConstData, Type: ty, Data: append([]byte(nil), data...)}
}

// NewAggregate creates a struct, array or vector constant.
func NewAggregate(ty types.TypeID, elems []*Const) *Const {
	return &Const{Kind: ConstAggregate, Type: ty, Elems: append([]*Const(nil), elems...)}
}

// NewGlobalRef returns the address of g as a constant.
func NewGlobalRef(in *types.Interner, g *Global) *Const {
	return &Const{Kind: ConstGlobal, Type: in.Pointer(g.AddrSpace), Global: g}
}

// NewCast creates a cast expression, folding casts that do not change the
// operand type.
func NewCast(op Opcode, v *Const, ty types.TypeID) *Const {
	return ConstExprWithOperands(op, []*Const{v}, ty)
}

// NewGEP creates a getelementptr expression over base.
func NewGEP(sourceElem types.TypeID, base *Const, indices []*Const, inBounds bool, ty types.TypeID) *Const {
	ops := make([]*Const, 0, len(indices)+1)
	ops = append(ops, base)
	ops = append(ops, indices...)
	return &Const{
		Kind:       ConstExpr,
		Type:       ty,
		Op:         OpGetElementPtr,
		Operands:   ops,
		SourceElem: sourceElem,
		InBounds:   inBounds,
	}
}

// ConstExprWithOperands builds op(ops...) of type ty. Bitcasts and
// address-space casts whose operand already has type ty fold to the operand.
func ConstExprWithOperands(op Opcode, ops []*Const, ty types.TypeID) *Const {
	if (op == OpBitCast || op == OpAddrSpaceCast) && len(ops) == 1 && ops[0] != nil && ops[0].Type == ty {
		return ops[0]
	}
	return &Const{
		Kind:     ConstExpr,
		Type:     ty,
		Op:       op,
		Operands: append([]*Const(nil), ops...),
	}
}

// WithOperands rebuilds a constant expression with new operands and type,
// keeping its operator payload and applying the folding rules of
// ConstExprWithOperands.
func (c *Const) WithOperands(ops []*Const, ty types.TypeID) *Const {
	if c == nil || c.Kind != ConstExpr {
		return c
	}
	out := ConstExprWithOperands(c.Op, ops, ty)
	if len(ops) == 1 && out == ops[0] {
		return out
	}
	out.SourceElem = c.SourceElem
	out.InBounds = c.InBounds
	out.Pred = c.Pred
	return out
}

// ShallowCopy returns a copy of c that shares no slices with it.
func (c *Const) ShallowCopy() *Const {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Data = append([]byte(nil), c.Data...)
	cp.Elems = append([]*Const(nil), c.Elems...)
	cp.Operands = append([]*Const(nil), c.Operands...)
	return &cp
}

// walkConsts visits c and every constant reachable from it once.
func walkConsts(c *Const, seen map[*Const]struct{}, visit func(*Const)) {
	if c == nil {
		return
	}
	if _, ok := seen[c]; ok {
		return
	}
	seen[c] = struct{}{}
	visit(c)
	for _, e := range c.Elems {
		walkConsts(e, seen, visit)
	}
	for _, op := range c.Operands {
		walkConsts(op, seen, visit)
	}
}
