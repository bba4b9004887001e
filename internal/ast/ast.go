// Package ast defines the untyped parse tree shared by the parser and
// the semantic analyzer. Per spec §3/§9, HolyC's historical surface
// syntax does not map cleanly onto a small closed set of node shapes at
// parse time (classes carry trailing declarators, switches carry
// parser-assigned null-cases, asm carries two incompatible surface
// forms); Node keeps the parser's open string `Kind` tag instead of a
// Go interface hierarchy, and the semantic analyzer mutates `Type` in
// place rather than building a second tree. The HIR lowerer (package
// hir) is where the open tags finally funnel into a closed variant set.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a ParsedNode before semantic analysis and a TypedNode after:
// the same struct serves both roles from spec §3. Type is empty until
// the semantic analyzer assigns it.
type Node struct {
	Kind     string
	Text     string
	Children []*Node
	Line     int
	Column   int
	Type     string
}

// New creates a node with no children.
func New(kind, text string, line, col int) *Node {
	return &Node{Kind: kind, Text: text, Line: line, Column: col}
}

// Add appends children and returns the receiver for chaining during
// parser construction.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)

	return n
}

// Child returns the i-th child or nil if out of range; parser and
// lowerer code leans on this instead of bounds-checking everywhere.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}

	return n.Children[i]
}

// Dump renders an indented (kind text :type) tree, matching the
// `ast-dump` CLI command's output shape in spec §6.1.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)

	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	if n == nil {
		return
	}

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind)

	if n.Text != "" {
		fmt.Fprintf(b, " %q", n.Text)
	}

	if n.Type != "" {
		fmt.Fprintf(b, " :%s", n.Type)
	}

	b.WriteString("\n")

	for _, c := range n.Children {
		c.dump(b, depth+1)
	}
}

// PointerDepth and BaseType split a type string like "I64**" or
// "class Foo*" into its pointer depth and the underlying base, per the
// type encoding in spec §3.
func PointerDepth(typ string) int {
	depth := 0
	for i := len(typ) - 1; i >= 0 && typ[i] == '*'; i-- {
		depth++
	}

	return depth
}

func BaseType(typ string) string {
	return strings.TrimRight(typ, "*")
}

// IsAggregateType reports whether a base type names a class or union.
func IsAggregateType(base string) (name string, isClass, isUnion bool) {
	switch {
	case strings.HasPrefix(base, "class "):
		return strings.TrimSpace(base[len("class "):]), true, false
	case strings.HasPrefix(base, "union "):
		return strings.TrimSpace(base[len("union "):]), false, true
	default:
		return "", false, false
	}
}

// IsFnType reports whether a base type names a function value, e.g.
// "fn I64".
func IsFnType(base string) (ret string, ok bool) {
	if strings.HasPrefix(base, "fn ") {
		return strings.TrimSpace(base[len("fn "):]), true
	}

	return "", false
}

// primitiveWidths gives the storage size in bytes of every primitive
// type named in spec §3 invariant 4; used by both the semantic
// analyzer's layout estimate and the IR builder's aggregate layout.
var primitiveWidths = map[string]int{
	"I8": 1, "U8": 1,
	"I16": 2, "U16": 2,
	"I32": 4, "U32": 4,
	"I64": 8, "U64": 8,
	"F64": 8,
	"Bool": 8, "U0": 0,
}

// PrimitiveWidth returns the byte width of a non-pointer, non-aggregate
// base type, or 0 with ok=false if typ is not a known primitive.
func PrimitiveWidth(typ string) (int, bool) {
	w, ok := primitiveWidths[typ]

	return w, ok
}

// IsIntegral reports whether a base primitive type is an integer type
// (as opposed to F64, Bool, or U0).
func IsIntegral(typ string) bool {
	switch typ {
	case "I8", "U8", "I16", "U16", "I32", "U32", "I64", "U64":
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether an integral base type is unsigned.
func IsUnsigned(typ string) bool {
	return strings.HasPrefix(typ, "U") && typ != "U0"
}

// ParseIntLiteral parses a HolyC integer literal token text, trying
// signed then unsigned base-0 parsing as the IR builder's expression
// lowering contract requires (spec §4.6, "Integer literals").
func ParseIntLiteral(text string) (value uint64, signed bool, err error) {
	clean := text
	if i := strings.IndexAny(text, "IUL"); i > 0 {
		clean = text[:i]
	}

	if v, e := strconv.ParseInt(clean, 0, 64); e == nil {
		return uint64(v), true, nil
	}

	v, e := strconv.ParseUint(clean, 0, 64)

	return v, false, e
}
