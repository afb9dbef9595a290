package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name    string
	Fields  []TypeID
	Packed  bool
	Literal bool
	HasBody bool
}

// Opaque reports whether an identified struct has no body yet.
func (s *StructInfo) Opaque() bool {
	return s != nil && !s.Literal && !s.HasBody
}

// LiteralStruct creates or finds the literal struct with the given fields.
// Literal structs are identified purely by structure and cannot refer to
// themselves.
func (in *Interner) LiteralStruct(fields []TypeID, packed bool) TypeID {
	key := literalKey(fields, packed)
	if id, ok := in.litIndex[key]; ok {
		return id
	}
	slot := in.appendStructInfo(StructInfo{
		Fields:  cloneTypeIDs(fields),
		Packed:  packed,
		Literal: true,
		HasBody: true,
	})
	id := in.internRaw(Type{Kind: KindStruct, Payload: slot})
	in.litIndex[key] = id
	return id
}

// NewStruct allocates an identified, opaque struct. An empty name leaves it
// anonymous; otherwise the name is made unique like SetStructName does.
func (in *Interner) NewStruct(name string) TypeID {
	slot := in.appendStructInfo(StructInfo{})
	id := in.internRaw(Type{Kind: KindStruct, Payload: slot})
	if name != "" {
		in.SetStructName(id, name)
	}
	return id
}

// SetStructBody stores the field list of an identified struct. Literal
// structs are immutable and are left untouched.
func (in *Interner) SetStructBody(id TypeID, fields []TypeID, packed bool) {
	info := in.structInfo(id)
	if info == nil || info.Literal {
		return
	}
	info.Fields = cloneTypeIDs(fields)
	info.Packed = packed
	info.HasBody = true
}

// SetStructName renames an identified struct and returns the name actually
// assigned. Names are unique per interner: a taken name gets a numeric
// suffix. An empty name makes the struct anonymous.
func (in *Interner) SetStructName(id TypeID, name string) string {
	info := in.structInfo(id)
	if info == nil || info.Literal {
		return ""
	}
	if info.Name == name {
		return name
	}
	if info.Name != "" && in.names[info.Name] == id {
		delete(in.names, info.Name)
	}
	if name == "" {
		info.Name = ""
		return ""
	}
	final := name
	for {
		if _, taken := in.names[final]; !taken {
			break
		}
		in.nameSeq[name]++
		final = name + "." + strconv.Itoa(in.nameSeq[name])
	}
	in.names[final] = id
	info.Name = final
	return final
}

// StructByName finds an identified struct by name.
func (in *Interner) StructByName(name string) (TypeID, bool) {
	id, ok := in.names[name]
	return id, ok
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	info := in.structInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

func (in *Interner) structInfo(id TypeID) *StructInfo {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

func (in *Interner) appendStructInfo(info StructInfo) uint32 {
	in.structs = append(in.structs, info)
	slot, err := safecast.Conv[uint32](len(in.structs) - 1)
	if err != nil {
		panic(fmt.Errorf("struct info overflow: %w", err))
	}
	return slot
}

func literalKey(fields []TypeID, packed bool) string {
	var sb strings.Builder
	if packed {
		sb.WriteByte('<')
	}
	sb.WriteByte('{')
	writeIDList(&sb, fields)
	sb.WriteByte('}')
	return sb.String()
}
