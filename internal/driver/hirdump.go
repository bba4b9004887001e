package driver

import (
	"fmt"
	"strings"

	"github.com/holyc-lang/holycc/internal/hir"
)

// DumpHir renders an indented HIRModule dump for `emit-hir`, the HIR
// analogue of ast.Node.Dump() - spec.md §6.1 only requires "prints
// HIRModule dump" without prescribing an exact grammar, so this follows
// the same indented-tree shape the AST dumper already uses.
func DumpHir(m *hir.Module) string {
	var b strings.Builder

	for _, item := range m.TopLevelItems {
		dumpStmt(&b, item, 0)
	}

	for _, decl := range m.FunctionDecls {
		fmt.Fprintf(&b, "FunctionDecl %s %s(%s)\n", decl.ReturnType, decl.Name, paramList(decl.Params))
	}

	for _, fn := range m.Functions {
		fmt.Fprintf(&b, "Function %s %s(%s)\n", fn.ReturnType, fn.Name, paramList(fn.Params))

		for _, s := range fn.Body {
			dumpStmt(&b, s, 1)
		}
	}

	if len(m.Reflection.Fields) > 0 || len(m.Reflection.TypeAliases) > 0 {
		b.WriteString("Reflection\n")

		for _, alias := range m.Reflection.TypeAliases {
			fmt.Fprintf(&b, "  typedef %s\n", alias)
		}

		for _, f := range m.Reflection.Fields {
			fmt.Fprintf(&b, "  %s.%s :%s %v\n", f.AggregateName, f.FieldName, f.FieldType, f.Annotations)
		}
	}

	return b.String()
}

func paramList(params []hir.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type + " " + p.Name
	}

	return strings.Join(parts, ", ")
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func stmtKindName(k hir.StmtKind) string {
	names := [...]string{
		"VarDecl", "Assign", "Return", "Expr", "NoParenCall", "Print", "Lock",
		"Throw", "TryCatch", "Break", "Switch", "If", "While", "DoWhile",
		"Label", "Goto", "InlineAsm", "MetadataDecl", "LinkageDecl",
	}

	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}

	return names[k]
}

func exprKindName(k hir.ExprKind) string {
	names := [...]string{
		"IntLiteral", "StringLiteral", "Dollar", "Var", "Assign", "Unary",
		"Binary", "Call", "Cast", "Postfix", "Lane", "Member", "Index", "Comma",
	}

	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}

	return names[k]
}

func dumpExpr(b *strings.Builder, e hir.Expr, depth int) {
	indent(b, depth)
	b.WriteString(exprKindName(e.Kind))

	if e.Text != "" {
		fmt.Fprintf(b, " %q", e.Text)
	}

	if e.Type != "" {
		fmt.Fprintf(b, " :%s", e.Type)
	}

	b.WriteString("\n")

	for _, c := range e.Children {
		dumpExpr(b, c, depth+1)
	}
}

func dumpStmt(b *strings.Builder, s hir.Stmt, depth int) {
	indent(b, depth)
	b.WriteString(stmtKindName(s.Kind))

	if s.Name != "" {
		fmt.Fprintf(b, " %s", s.Name)
	}

	if s.Type != "" {
		fmt.Fprintf(b, " :%s", s.Type)
	}

	b.WriteString("\n")

	switch s.Kind {
	case hir.StmtReturn, hir.StmtExpr, hir.StmtNoParenCall:
		dumpExpr(b, s.Expr, depth+1)
	case hir.StmtAssign:
		dumpExpr(b, s.Expr, depth+1)
	case hir.StmtIf:
		dumpExpr(b, s.FlowCond, depth+1)

		for _, st := range s.FlowThen {
			dumpStmt(b, st, depth+1)
		}

		if len(s.FlowElse) > 0 {
			indent(b, depth)
			b.WriteString("Else\n")

			for _, st := range s.FlowElse {
				dumpStmt(b, st, depth+1)
			}
		}
	case hir.StmtWhile, hir.StmtDoWhile:
		dumpExpr(b, s.FlowCond, depth+1)

		for _, st := range s.FlowThen {
			dumpStmt(b, st, depth+1)
		}
	case hir.StmtSwitch:
		dumpExpr(b, s.SwitchCond, depth+1)

		for i, body := range s.SwitchCaseBodies {
			indent(b, depth+1)
			fmt.Fprintf(b, "Case %d..%d\n", s.SwitchCaseBegin[i], s.SwitchCaseEnd[i])

			for _, st := range body {
				dumpStmt(b, st, depth+2)
			}
		}

		if len(s.SwitchDefault) > 0 {
			indent(b, depth+1)
			b.WriteString("Default\n")

			for _, st := range s.SwitchDefault {
				dumpStmt(b, st, depth+2)
			}
		}
	case hir.StmtTryCatch:
		indent(b, depth+1)
		b.WriteString("Try\n")

		for _, st := range s.TryBody {
			dumpStmt(b, st, depth+2)
		}

		indent(b, depth+1)
		b.WriteString("Catch\n")

		for _, st := range s.CatchBody {
			dumpStmt(b, st, depth+2)
		}
	case hir.StmtPrint:
		dumpExpr(b, s.PrintFormat, depth+1)

		for _, arg := range s.PrintArgs {
			dumpExpr(b, arg, depth+1)
		}
	}
}
