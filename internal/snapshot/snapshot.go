// Package snapshot stores ir modules on disk as msgpack payloads.
//
// A payload is a flat table encoding: types, constants, metadata nodes,
// comdats and globals each live in their own list, and references between
// them are 1-based indices into those lists, with 0 meaning "none".
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"asremap/internal/ir"
)

// Current schema version - increment when Payload format changes
const SchemaVersion uint16 = 1

// ErrSchema reports a payload that does not match the current schema or
// holds references that do not resolve.
var ErrSchema = errors.New("snapshot schema mismatch")

// Payload is the serialized form of one module.
type Payload struct {
	Schema  uint16
	Name    string
	Types   []TypeRec
	Consts  []ConstRec
	MD      []MDRec
	Comdats []ComdatRec
	Globals []GlobalRec
	NamedMD []NamedMDRec
}

// TypeRec describes one type. Named structs come before their fields, every
// other type after its components.
type TypeRec struct {
	Kind      uint8
	Elem      uint32 `msgpack:",omitempty"`
	Count     uint64 `msgpack:",omitempty"`
	Bits      uint32 `msgpack:",omitempty"`
	AddrSpace uint32 `msgpack:",omitempty"`
	Scalable  bool   `msgpack:",omitempty"`

	Result   uint32   `msgpack:",omitempty"`
	Params   []uint32 `msgpack:",omitempty"`
	Variadic bool     `msgpack:",omitempty"`

	Name    string   `msgpack:",omitempty"`
	Fields  []uint32 `msgpack:",omitempty"`
	Packed  bool     `msgpack:",omitempty"`
	Literal bool     `msgpack:",omitempty"`
	HasBody bool     `msgpack:",omitempty"`
}

// ConstRec describes one constant. Operands precede their users.
type ConstRec struct {
	Kind       uint8
	Type       uint32
	Int        int64    `msgpack:",omitempty"`
	Float      float64  `msgpack:",omitempty"`
	Data       []byte   `msgpack:",omitempty"`
	Elems      []uint32 `msgpack:",omitempty"`
	Global     uint32   `msgpack:",omitempty"`
	Op         uint8    `msgpack:",omitempty"`
	Operands   []uint32 `msgpack:",omitempty"`
	SourceElem uint32   `msgpack:",omitempty"`
	InBounds   bool     `msgpack:",omitempty"`
	Pred       uint8    `msgpack:",omitempty"`
}

// MDRec is a metadata node. Node operands may point forward or at the node
// itself.
type MDRec struct {
	Distinct bool `msgpack:",omitempty"`
	Operands []MDOperandRec
}

// MDOperandRec is one metadata operand.
type MDOperandRec struct {
	Kind   uint8
	String string `msgpack:",omitempty"`
	Value  uint32 `msgpack:",omitempty"`
	Node   uint32 `msgpack:",omitempty"`
}

// ComdatRec is a comdat group.
type ComdatRec struct {
	Name      string
	Selection uint8
}

// AttrRec is a single attribute.
type AttrRec struct {
	Kind  uint8
	Int   uint64 `msgpack:",omitempty"`
	Type  uint32 `msgpack:",omitempty"`
	Key   string `msgpack:",omitempty"`
	Value string `msgpack:",omitempty"`
}

// AttrListRec is the attribute list of a function or call site.
type AttrListRec struct {
	Fn     []AttrRec   `msgpack:",omitempty"`
	Ret    []AttrRec   `msgpack:",omitempty"`
	Params [][]AttrRec `msgpack:",omitempty"`
}

// AttachRec is a metadata attachment.
type AttachRec struct {
	Kind string
	Node uint32
}

// GlobalRec is a global definition.
type GlobalRec struct {
	Kind      uint8
	Name      string
	ValueType uint32
	AddrSpace uint32
	Linkage   uint8

	Section     string `msgpack:",omitempty"`
	Partition   string `msgpack:",omitempty"`
	Visibility  uint8  `msgpack:",omitempty"`
	DLLStorage  uint8  `msgpack:",omitempty"`
	UnnamedAddr uint8  `msgpack:",omitempty"`
	ThreadLocal uint8  `msgpack:",omitempty"`
	Align       uint32 `msgpack:",omitempty"`

	Comdat   uint32      `msgpack:",omitempty"`
	Metadata []AttachRec `msgpack:",omitempty"`

	IsConstant bool   `msgpack:",omitempty"`
	Init       uint32 `msgpack:",omitempty"`
	Aliasee    uint32 `msgpack:",omitempty"`

	Attrs      AttrListRec
	ParamNames []string   `msgpack:",omitempty"`
	Blocks     []BlockRec `msgpack:",omitempty"`
}

// BlockRec is a basic block.
type BlockRec struct {
	Name   string
	Instrs []InstrRec
}

// InstrRec is an instruction. Targets and Incoming index the blocks of the
// enclosing function.
type InstrRec struct {
	Op         uint8
	Name       string     `msgpack:",omitempty"`
	Type       uint32     `msgpack:",omitempty"`
	Operands   []ValueRec `msgpack:",omitempty"`
	Targets    []uint32   `msgpack:",omitempty"`
	Incoming   []uint32   `msgpack:",omitempty"`
	AllocType  uint32     `msgpack:",omitempty"`
	SourceElem uint32     `msgpack:",omitempty"`
	InBounds   bool       `msgpack:",omitempty"`
	FnType     uint32     `msgpack:",omitempty"`
	CallAttrs  AttrListRec
	Pred       uint8  `msgpack:",omitempty"`
	Align      uint32 `msgpack:",omitempty"`
	Volatile   bool   `msgpack:",omitempty"`
}

// ValueRec is an operand: Ref indexes the constants, the parameters or the
// instructions of the function in block order, depending on Kind.
type ValueRec struct {
	Kind uint8
	Ref  uint32
}

// Write encodes m to w.
func Write(w io.Writer, m *ir.Module) error {
	p, err := Encode(m)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(p)
}

// Read decodes a module from r into a fresh type interner.
func Read(r io.Reader) (*ir.Module, error) {
	var p Payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return Decode(&p)
}

// Marshal returns the msgpack bytes of m.
func Marshal(m *ir.Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a module from data.
func Unmarshal(data []byte) (*ir.Module, error) {
	return Read(bytes.NewReader(data))
}

// WriteFile atomically replaces path with the snapshot of m.
func WriteFile(path string, m *ir.Module) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()
	if err := Write(f, m); err != nil {
		_ = f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadFile loads the snapshot at path.
func ReadFile(path string) (m *ir.Module, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	m, err = Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
