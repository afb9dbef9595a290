package ir

// MDOperandKind distinguishes metadata operand kinds.
type MDOperandKind uint8

const (
	// MDNull is an empty operand slot.
	MDNull MDOperandKind = iota
	// MDString is a string operand.
	MDString
	// MDValue wraps a constant.
	MDValue
	// MDNodeRef points at another node.
	MDNodeRef
)

// MDOperand is one operand of a metadata node.
type MDOperand struct {
	Kind   MDOperandKind
	String string
	Value  *Const
	Node   *MDNode
}

// MDNode is a metadata tuple. Distinct nodes keep their identity when
// printed; uniqued nodes may be shared.
type MDNode struct {
	Operands []MDOperand
	Distinct bool
}

// MDAttachment attaches a node to a global under a kind name such as "dbg".
type MDAttachment struct {
	Kind string
	Node *MDNode
}

// NamedMetadata is a module-level named list of nodes, e.g. !llvm.used.
type NamedMetadata struct {
	Name     string
	Operands []*MDNode
}

// MDStr builds a string operand.
func MDStr(s string) MDOperand { return MDOperand{Kind: MDString, String: s} }

// MDConst builds a constant operand.
func MDConst(c *Const) MDOperand { return MDOperand{Kind: MDValue, Value: c} }

// MDRef builds a node reference operand.
func MDRef(n *MDNode) MDOperand { return MDOperand{Kind: MDNodeRef, Node: n} }

// walkMD visits every node reachable from n once.
func walkMD(n *MDNode, seen map[*MDNode]struct{}, visit func(*MDNode)) {
	if n == nil {
		return
	}
	if _, ok := seen[n]; ok {
		return
	}
	seen[n] = struct{}{}
	visit(n)
	for _, op := range n.Operands {
		if op.Kind == MDNodeRef {
			walkMD(op.Node, seen, visit)
		}
	}
}
