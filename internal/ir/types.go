package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/hir"
)

// irType maps a HIR/sema type string to this package's minimal type
// system. Every pointer depth collapses to the single opaque "ptr"
// type per spec §4.6; element types are carried separately on the
// instructions that need them (Alloca/Load/Store/GEP), the same
// opaque-pointer convention modern LLVM IR itself uses.
func (b *builder) irType(hirType string) string {
	t := strings.TrimSpace(hirType)
	if t == "" {
		return "i64"
	}

	if ast.PointerDepth(t) > 0 {
		return "ptr"
	}

	if _, ok := ast.IsFnType(t); ok {
		return "ptr"
	}

	if name, isClass, isUnion := ast.IsAggregateType(t); isClass || isUnion {
		return "%" + name
	}

	switch t {
	case "I8", "U8":
		return "i8"
	case "I16", "U16":
		return "i16"
	case "I32", "U32":
		return "i32"
	case "I64", "U64", "Bool":
		return "i64"
	case "F64":
		return "double"
	case "U0":
		return "void"
	}

	return "i64"
}

func stripOnePointerLevel(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasSuffix(t, "*") {
		return strings.TrimSpace(t[:len(t)-1])
	}

	return t
}

func normalizeAggregateName(t string) string {
	base := ast.BaseType(strings.TrimSpace(t))
	if name, isClass, isUnion := ast.IsAggregateType(base); isClass || isUnion {
		return name
	}

	return base
}

func wideOf(a, b string) string {
	if a == "double" || b == "double" {
		return "double"
	}

	if a == "ptr" || b == "ptr" {
		return "ptr"
	}

	if intWidth(a) >= intWidth(b) {
		return a
	}

	return b
}

func intWidth(t string) int {
	switch t {
	case "i1":
		return 1
	case "i8":
		return 8
	case "i16":
		return 16
	case "i32":
		return 32
	case "i64":
		return 64
	default:
		return 64
	}
}

func irLinkage(kind string) Linkage {
	if kind == "internal" {
		return Internal
	}

	return External
}

// irTypeSize is a coarse size ranking used only to pick a union's
// widest constituent field; GEP field access itself never needs exact
// byte offsets, since those are derived from the named struct
// definition at the point this IR is consumed.
func irTypeSize(t string) int {
	switch t {
	case "i1", "i8":
		return 1
	case "i16":
		return 2
	case "i32":
		return 4
	default:
		return 8
	}
}

func zeroInitializer(ty string) string {
	switch ty {
	case "double":
		return "0.0"
	case "ptr":
		return "null"
	case "void":
		return "0"
	}

	if strings.HasPrefix(ty, "%") {
		return "zeroinitializer"
	}

	return "0"
}

func boolLit(v bool) string {
	if v {
		return "1"
	}

	return "0"
}

func tryParseIntText(text string) (int64, bool) {
	v, err := strconv.ParseInt(text, 0, 64)
	if err == nil {
		return v, true
	}

	uv, uerr := strconv.ParseUint(text, 0, 64)
	if uerr == nil {
		return int64(uv), true
	}

	return 0, false
}

func charLiteralToInt(text string) int64 {
	if len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
		return 0
	}

	body := text[1 : len(text)-1]
	if body == "" {
		return 0
	}

	if len(body) >= 2 && body[0] == '\\' {
		switch body[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case 'r':
			return '\r'
		case '\\':
			return '\\'
		case '\'':
			return '\''
		default:
			return int64(body[1])
		}
	}

	return int64(body[0])
}

func decodeStringLiteral(text string) string {
	t := strings.TrimSpace(text)
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		t = t[1 : len(t)-1]
	}

	var b strings.Builder

	for i := 0; i < len(t); i++ {
		if t[i] == '\\' && i+1 < len(t) {
			i++

			switch t[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				b.WriteByte(t[i])
			}

			continue
		}

		b.WriteByte(t[i])
	}

	return b.String()
}

func quoteBytes(s string) string {
	var b strings.Builder

	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}

		fmt.Fprintf(&b, "\\%02X", c)
	}

	b.WriteByte('"')

	return b.String()
}

func hasExpr(e hir.Expr) bool { return e.Type != "" }
