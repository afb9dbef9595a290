package types //nolint:revive

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// FnInfo stores metadata for function signature types.
type FnInfo struct {
	Params   []TypeID // Parameter types (in order)
	Result   TypeID   // Return type
	Variadic bool
}

// Func creates or finds a function signature type.
func (in *Interner) Func(result TypeID, params []TypeID, variadic bool) TypeID {
	key := signatureKey(result, params, variadic)
	if id, ok := in.fnIndex[key]; ok {
		return id
	}
	slot := in.appendFnInfo(FnInfo{
		Params:   cloneTypeIDs(params),
		Result:   result,
		Variadic: variadic,
	})
	id := in.internRaw(Type{Kind: KindFunc, Payload: slot})
	in.fnIndex[key] = id
	return id
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFunc {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

func (in *Interner) appendFnInfo(info FnInfo) uint32 {
	in.fns = append(in.fns, info)
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}

func signatureKey(result TypeID, params []TypeID, variadic bool) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(result), 10))
	sb.WriteByte('(')
	writeIDList(&sb, params)
	sb.WriteByte(')')
	if variadic {
		sb.WriteString("...")
	}
	return sb.String()
}

func writeIDList(sb *strings.Builder, ids []TypeID) {
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(id), 10))
	}
}
