package types

import (
	"strconv"
	"strings"
)

// String renders id in IR assembly syntax. Identified structs are printed
// by reference (%name); use StructBody for their definition.
func (in *Interner) String(id TypeID) string {
	var sb strings.Builder
	in.writeType(&sb, id)
	return sb.String()
}

// StructName returns the printable reference of an identified struct.
func (in *Interner) StructName(id TypeID) string {
	info, ok := in.StructInfo(id)
	if !ok || info.Literal {
		return ""
	}
	if info.Name == "" {
		return "%" + strconv.FormatUint(uint64(id), 10)
	}
	return "%" + info.Name
}

// StructBody renders the body of an identified struct, or "opaque".
func (in *Interner) StructBody(id TypeID) string {
	info, ok := in.StructInfo(id)
	if !ok {
		return "<invalid>"
	}
	if !info.HasBody {
		return "opaque"
	}
	var sb strings.Builder
	in.writeFields(&sb, info)
	return sb.String()
}

func (in *Interner) writeType(sb *strings.Builder, id TypeID) {
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	switch tt.Kind {
	case KindVoid:
		sb.WriteString("void")
	case KindLabel:
		sb.WriteString("label")
	case KindMetadata:
		sb.WriteString("metadata")
	case KindInt:
		sb.WriteString("i")
		sb.WriteString(strconv.FormatUint(uint64(tt.Bits), 10))
	case KindFloat:
		sb.WriteString(floatName(tt.Bits))
	case KindPointer:
		if tt.Elem != NoTypeID {
			in.writeType(sb, tt.Elem)
		} else {
			sb.WriteString("ptr")
		}
		if tt.AddrSpace != AddrSpaceGeneric {
			sb.WriteString(" addrspace(")
			sb.WriteString(strconv.FormatUint(uint64(tt.AddrSpace), 10))
			sb.WriteString(")")
		}
		if tt.Elem != NoTypeID {
			sb.WriteString("*")
		}
	case KindArray:
		sb.WriteString("[")
		sb.WriteString(strconv.FormatUint(tt.Count, 10))
		sb.WriteString(" x ")
		in.writeType(sb, tt.Elem)
		sb.WriteString("]")
	case KindVector:
		sb.WriteString("<")
		if tt.Scalable {
			sb.WriteString("vscale x ")
		}
		sb.WriteString(strconv.FormatUint(tt.Count, 10))
		sb.WriteString(" x ")
		in.writeType(sb, tt.Elem)
		sb.WriteString(">")
	case KindFunc:
		info, _ := in.FnInfo(id)
		if info == nil {
			sb.WriteString("<invalid>")
			return
		}
		in.writeType(sb, info.Result)
		sb.WriteString(" (")
		for i, p := range info.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.writeType(sb, p)
		}
		if info.Variadic {
			if len(info.Params) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteString(")")
	case KindStruct:
		info, _ := in.StructInfo(id)
		if info == nil {
			sb.WriteString("<invalid>")
			return
		}
		if !info.Literal {
			sb.WriteString(in.StructName(id))
			return
		}
		in.writeFields(sb, info)
	default:
		sb.WriteString("<invalid>")
	}
}

func (in *Interner) writeFields(sb *strings.Builder, info *StructInfo) {
	if info.Packed {
		sb.WriteString("<")
	}
	if len(info.Fields) == 0 {
		sb.WriteString("{}")
	} else {
		sb.WriteString("{ ")
		for i, f := range info.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.writeType(sb, f)
		}
		sb.WriteString(" }")
	}
	if info.Packed {
		sb.WriteString(">")
	}
}

func floatName(bits uint32) string {
	switch bits {
	case 16:
		return "half"
	case 32:
		return "float"
	case 64:
		return "double"
	case 128:
		return "fp128"
	default:
		return "f" + strconv.FormatUint(uint64(bits), 10)
	}
}

// Mangle renders id the way overloaded intrinsic names encode their types,
// e.g. "p1" for ptr addrspace(1) or "v4i32" for <4 x i32>.
func (in *Interner) Mangle(id TypeID) string {
	var sb strings.Builder
	in.writeMangled(&sb, id)
	return sb.String()
}

func (in *Interner) writeMangled(sb *strings.Builder, id TypeID) {
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("invalid")
		return
	}
	switch tt.Kind {
	case KindVoid:
		sb.WriteString("isVoid")
	case KindLabel:
		sb.WriteString("label")
	case KindMetadata:
		sb.WriteString("Metadata")
	case KindInt:
		sb.WriteString("i")
		sb.WriteString(strconv.FormatUint(uint64(tt.Bits), 10))
	case KindFloat:
		sb.WriteString("f")
		sb.WriteString(strconv.FormatUint(uint64(tt.Bits), 10))
	case KindPointer:
		sb.WriteString("p")
		sb.WriteString(strconv.FormatUint(uint64(tt.AddrSpace), 10))
		if tt.Elem != NoTypeID {
			in.writeMangled(sb, tt.Elem)
		}
	case KindArray:
		sb.WriteString("a")
		sb.WriteString(strconv.FormatUint(tt.Count, 10))
		in.writeMangled(sb, tt.Elem)
	case KindVector:
		if tt.Scalable {
			sb.WriteString("nx")
		}
		sb.WriteString("v")
		sb.WriteString(strconv.FormatUint(tt.Count, 10))
		in.writeMangled(sb, tt.Elem)
	case KindFunc:
		info, _ := in.FnInfo(id)
		if info == nil {
			sb.WriteString("invalid")
			return
		}
		sb.WriteString("f_")
		in.writeMangled(sb, info.Result)
		for _, p := range info.Params {
			in.writeMangled(sb, p)
		}
		if info.Variadic {
			sb.WriteString("vararg")
		}
		sb.WriteString("f")
	case KindStruct:
		info, _ := in.StructInfo(id)
		if info == nil {
			sb.WriteString("invalid")
			return
		}
		if !info.Literal {
			sb.WriteString("s_")
			sb.WriteString(info.Name)
			return
		}
		sb.WriteString("sl_")
		for _, f := range info.Fields {
			in.writeMangled(sb, f)
		}
		sb.WriteString("s")
	default:
		sb.WriteString("invalid")
	}
}
