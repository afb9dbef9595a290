package remap

import (
	"strings"

	"asremap/internal/ir"
	"asremap/internal/types"
)

// resultSlot selects the return type in an overload list.
const resultSlot = -1

// overloads lists, per intrinsic family, the signature positions whose
// types are spelled in the name suffix, in suffix order.
var overloads = map[string][]int{
	"llvm.memcpy":          {0, 1, 2},
	"llvm.memcpy.inline":   {0, 1, 2},
	"llvm.memmove":         {0, 1, 2},
	"llvm.memset":          {0, 2},
	"llvm.memset.inline":   {0, 2},
	"llvm.lifetime.start":  {1},
	"llvm.lifetime.end":    {1},
	"llvm.invariant.start": {1},
	"llvm.invariant.end":   {2},
	"llvm.ptrmask":         {resultSlot, 1},
	"llvm.prefetch":        {0},
}

// intrinsicFamily returns the longest known family name name belongs to.
func intrinsicFamily(name string) (string, bool) {
	if !strings.HasPrefix(name, "llvm.") {
		return "", false
	}
	best := ""
	for fam := range overloads {
		if (name == fam || strings.HasPrefix(name, fam+".")) && len(fam) > len(best) {
			best = fam
		}
	}
	return best, best != ""
}

// CanonicalName derives the name an intrinsic declaration must carry for
// its current signature, e.g. "llvm.memcpy.p0.p1.i64".
func CanonicalName(in *types.Interner, f *ir.Global) (string, bool) {
	if f == nil || f.Kind != ir.GlobalFunc {
		return "", false
	}
	fam, ok := intrinsicFamily(f.Name)
	if !ok {
		return "", false
	}
	info, ok := in.FnInfo(f.ValueType)
	if !ok {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString(fam)
	for _, slot := range overloads[fam] {
		ty := info.Result
		if slot != resultSlot {
			if slot >= len(info.Params) {
				return "", false
			}
			ty = info.Params[slot]
		}
		sb.WriteByte('.')
		sb.WriteString(in.Mangle(ty))
	}
	return sb.String(), true
}

// Canonicalize renames intrinsic declarations whose name no longer matches
// their signature. Defined functions keep their names. When the canonical name is already taken by a
// declaration of the same signature, references move to that declaration
// and the duplicate is erased.
func Canonicalize(m *ir.Module) (renamed, merged int) {
	if m == nil {
		return 0, 0
	}
	for _, f := range m.Functions() {
		if !m.Contains(f) {
			continue
		}
		if !f.IsDeclaration() {
			continue
		}
		want, ok := CanonicalName(m.Types, f)
		if !ok || want == f.Name {
			continue
		}
		if existing := m.Lookup(want); existing != nil {
			if existing.Kind != ir.GlobalFunc || existing.ValueType != f.ValueType {
				continue
			}
			m.ReplaceAllUsesWith(f, existing)
			if err := m.Erase(f); err == nil {
				merged++
			}
			continue
		}
		if _, err := m.Rename(f, want); err == nil {
			renamed++
		}
	}
	return renamed, merged
}
