package ir

import "asremap/internal/types"

// ValueKind distinguishes operand sources.
type ValueKind uint8

const (
	// ValueNone is the zero Value.
	ValueNone ValueKind = iota
	// ValueConst refers to a constant, including global addresses.
	ValueConst
	// ValueArg refers to a function parameter.
	ValueArg
	// ValueInstr refers to the result of an instruction.
	ValueInstr
)

// Value is an instruction operand. It is comparable, so it can key maps and
// be tested with ==.
type Value struct {
	Kind  ValueKind
	Const *Const
	Arg   *Arg
	Instr *Instr
}

// ConstValue wraps a constant operand.
func ConstValue(c *Const) Value { return Value{Kind: ValueConst, Const: c} }

// ArgValue wraps a parameter operand.
func ArgValue(a *Arg) Value { return Value{Kind: ValueArg, Arg: a} }

// InstrValue wraps an instruction result operand.
func InstrValue(i *Instr) Value { return Value{Kind: ValueInstr, Instr: i} }

// Type returns the type of the value, or NoTypeID for the zero Value.
func (v Value) Type() types.TypeID {
	switch v.Kind {
	case ValueConst:
		if v.Const != nil {
			return v.Const.Type
		}
	case ValueArg:
		if v.Arg != nil {
			return v.Arg.Type
		}
	case ValueInstr:
		if v.Instr != nil {
			return v.Instr.Type
		}
	}
	return types.NoTypeID
}

// IsValid reports whether v refers to something.
func (v Value) IsValid() bool {
	switch v.Kind {
	case ValueConst:
		return v.Const != nil
	case ValueArg:
		return v.Arg != nil
	case ValueInstr:
		return v.Instr != nil
	default:
		return false
	}
}

// Arg is a formal parameter of a function.
type Arg struct {
	Name  string
	Type  types.TypeID
	Index int

	parent *Global
}

// Parent returns the function that owns the argument.
func (a *Arg) Parent() *Global { return a.parent }
