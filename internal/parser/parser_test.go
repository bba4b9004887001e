package parser

import (
	"strings"
	"testing"

	"github.com/holyc-lang/holycc/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.Node {
	t.Helper()

	n, d := Parse(src, "t.hc")
	if d != nil {
		t.Fatalf("unexpected parse error: %s", d.Format())
	}

	return n
}

func TestParseFunctionDecl(t *testing.T) {
	prog := mustParse(t, "I64 Add(I64 a, I64 b) {\n  return a + b;\n}\n")

	if len(prog.Children) != 1 {
		t.Fatalf("expected one top-level decl, got %d", len(prog.Children))
	}

	fn := prog.Children[0]
	if fn.Kind != "FunctionDecl" {
		t.Fatalf("expected FunctionDecl, got %s", fn.Kind)
	}

	if !strings.Contains(fn.Text, "Add") {
		t.Fatalf("expected signature to mention Add, got %q", fn.Text)
	}

	params := fn.Child(0)
	if params.Kind != "ParamList" || len(params.Children) != 2 {
		t.Fatalf("expected 2 params, got %v", params)
	}

	block := fn.Child(1)
	if block.Kind != "Block" || len(block.Children) != 1 {
		t.Fatalf("expected single-statement body, got %v", block)
	}
}

func TestParseFunctionDeclWithDefaultParam(t *testing.T) {
	prog := mustParse(t, "I64 F(I64 a, I64 b = 5) { return a; }\n")

	params := prog.Children[0].Child(0)
	if len(params.Children) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params.Children))
	}

	second := params.Children[1]
	if len(second.Children) == 0 || second.Children[len(second.Children)-1].Kind != "Default" {
		t.Fatalf("expected trailing Default child, got %v", second)
	}
}

func TestParseVarDeclAndList(t *testing.T) {
	prog := mustParse(t, "I64 x = 1;\nI64 a, b, c;\n")

	if prog.Children[0].Kind != "VarDecl" {
		t.Fatalf("expected VarDecl, got %s", prog.Children[0].Kind)
	}

	list := prog.Children[1]
	if list.Kind != "VarDeclList" || len(list.Children) != 3 {
		t.Fatalf("expected VarDeclList with 3 declarators, got %v", list)
	}

	for _, decl := range list.Children {
		if decl.Kind != "VarDecl" {
			t.Fatalf("expected VarDecl entries, got %s", decl.Kind)
		}
	}
}

func TestParsePointerAndFunctionPointerDecl(t *testing.T) {
	prog := mustParse(t, "I64 *p;\nU8 (*fp)(I64);\n")

	if prog.Children[0].Kind != "VarDecl" {
		t.Fatalf("expected pointer VarDecl, got %s", prog.Children[0].Kind)
	}

	if prog.Children[1].Kind != "VarDecl" {
		t.Fatalf("expected function-pointer VarDecl, got %s", prog.Children[1].Kind)
	}
}

func TestParseIfForWhileDoReturn(t *testing.T) {
	src := `I64 Main() {
  I64 i;
  if (1) return 1; else return 2;
  for (i = 0; i < 10; i++) ;
  while (1) ;
  do ; while (1);
  return 0;
}
`
	prog := mustParse(t, src)
	body := prog.Children[0].Child(1)

	kinds := make([]string, len(body.Children))
	for i, c := range body.Children {
		kinds[i] = c.Kind
	}

	want := []string{"VarDecl", "IfStmt", "ForStmt", "WhileStmt", "DoWhileStmt", "ReturnStmt"}
	for i, w := range want {
		if kinds[i] != w {
			t.Fatalf("statement %d: got %s want %s (all: %v)", i, kinds[i], w, kinds)
		}
	}
}

func TestParseSwitchNullAndRangeCase(t *testing.T) {
	src := `I64 Main() {
  switch (x) {
    case 1: y = 1;
    case 2 ... 4: y = 2;
    case: y = 3;
    default: y = 4;
  }
}
`
	prog := mustParse(t, src)
	sw := prog.Children[0].Child(1).Child(0)

	if sw.Kind != "SwitchStmt" {
		t.Fatalf("expected SwitchStmt, got %s", sw.Kind)
	}

	block := sw.Child(1)

	if block.Children[0].Text != "" {
		t.Fatalf("expected plain case, got text %q", block.Children[0].Text)
	}

	if block.Children[1].Text != "range-case" {
		t.Fatalf("expected range-case, got %q", block.Children[1].Text)
	}

	if block.Children[2].Text != "null-case" {
		t.Fatalf("expected null-case, got %q", block.Children[2].Text)
	}

	if block.Children[3].Kind != "DefaultClause" {
		t.Fatalf("expected DefaultClause, got %s", block.Children[3].Kind)
	}
}

func TestParseGotoLabelAndContinueRejected(t *testing.T) {
	prog := mustParse(t, "I64 Main() {\nstart: goto start;\n}\n")
	body := prog.Children[0].Child(1)

	if body.Children[0].Kind != "StartLabel" {
		t.Fatalf("expected StartLabel, got %s", body.Children[0].Kind)
	}

	if body.Children[1].Kind != "GotoStmt" || body.Children[1].Text != "start" {
		t.Fatalf("expected GotoStmt(start), got %v", body.Children[1])
	}

	_, d := Parse("I64 Main() { continue; }\n", "t.hc")
	if d == nil {
		t.Fatalf("expected continue to be rejected")
	}
}

func TestParsePrintStmt(t *testing.T) {
	prog := mustParse(t, `I64 Main() { "Hello %d\n", x; }`+"\n")
	stmt := prog.Children[0].Child(1).Children[0]

	if stmt.Kind != "PrintStmt" {
		t.Fatalf("expected PrintStmt, got %s", stmt.Kind)
	}

	if len(stmt.Children) != 2 {
		t.Fatalf("expected format + one arg, got %d children", len(stmt.Children))
	}
}

func TestParseAdjacentStringConcat(t *testing.T) {
	prog := mustParse(t, `I64 Main() { "abc" "def"; }`+"\n")
	stmt := prog.Children[0].Child(1).Children[0]
	lit := stmt.Children[0]

	if lit.Kind != "Literal" {
		t.Fatalf("expected Literal, got %s", lit.Kind)
	}

	if lit.Text != `"abcdef"` {
		t.Fatalf("expected concatenated literal, got %q", lit.Text)
	}
}

func TestParseSparseCallArgs(t *testing.T) {
	prog := mustParse(t, "I64 Main() { F(1,,3); }\n")
	call := prog.Children[0].Child(1).Children[0].Children[0]

	if call.Kind != "CallExpr" {
		t.Fatalf("expected CallExpr, got %s", call.Kind)
	}

	args := call.Child(1)
	if len(args.Children) != 3 {
		t.Fatalf("expected 3 args (incl EmptyArg), got %d", len(args.Children))
	}

	if args.Children[1].Kind != "EmptyArg" {
		t.Fatalf("expected EmptyArg in middle slot, got %s", args.Children[1].Kind)
	}
}

func TestParseCastExprVsParenExpr(t *testing.T) {
	prog := mustParse(t, "I64 Main() { x = (I64)y; z = (a); }\n")
	body := prog.Children[0].Child(1)

	assign1 := body.Children[0].Children[0]
	rhs1 := assign1.Children[1]

	if rhs1.Kind != "CastExpr" || rhs1.Text != "I64" {
		t.Fatalf("expected CastExpr(I64), got %v", rhs1)
	}

	assign2 := body.Children[1].Children[0]
	rhs2 := assign2.Children[1]

	if rhs2.Kind != "Identifier" {
		t.Fatalf("expected plain parenthesized identifier, got %s", rhs2.Kind)
	}
}

func TestParseLaneAccess(t *testing.T) {
	prog := mustParse(t, "I64 Main() { x = p.u8[2]; }\n")
	assign := prog.Children[0].Child(1).Children[0].Children[0]
	rhs := assign.Children[1]

	if rhs.Kind != "LaneExpr" || rhs.Text != "u8" {
		t.Fatalf("expected LaneExpr(u8), got %v", rhs)
	}
}

func TestParseClassDeclWithTrailingDeclarator(t *testing.T) {
	prog := mustParse(t, "class Point { I64 x; I64 y; } origin, *ptr;\n")

	cls := prog.Children[0]
	if cls.Kind != "ClassDecl" {
		t.Fatalf("expected ClassDecl, got %s", cls.Kind)
	}

	var trailing []*ast.Node
	for _, c := range cls.Children {
		if c.Kind == "VarDecl" {
			trailing = append(trailing, c)
		}
	}

	if len(trailing) != 2 {
		t.Fatalf("expected 2 trailing declarators, got %d", len(trailing))
	}
}

func TestParseAnonymousAggregateNaming(t *testing.T) {
	prog := mustParse(t, "class { I64 x; } pt;\n")
	cls := prog.Children[0]

	if !strings.Contains(cls.Text, "__holyc_anon_aggregate_1") {
		t.Fatalf("expected synthesized anon aggregate name, got %q", cls.Text)
	}
}

func TestParseTryCatchAndThrow(t *testing.T) {
	prog := mustParse(t, "I64 Main() {\ntry { throw(1); } catch { x = 1; }\n}\n")
	stmt := prog.Children[0].Child(1).Children[0]

	if stmt.Kind != "TryStmt" || len(stmt.Children) != 2 {
		t.Fatalf("expected TryStmt with try+catch blocks, got %v", stmt)
	}
}

func TestParseInlineAsmBracedForm(t *testing.T) {
	prog := mustParse(t, "I64 Main() {\nasm { MOV RAX, 1 };\n}\n")
	stmt := prog.Children[0].Child(1).Children[0]

	if stmt.Kind != "AsmStmt" {
		t.Fatalf("expected AsmStmt, got %s", stmt.Kind)
	}

	if !strings.Contains(stmt.Text, "MOV") {
		t.Fatalf("expected opaque asm body text, got %q", stmt.Text)
	}
}

func TestParseInlineAsmParenForm(t *testing.T) {
	prog := mustParse(t, `I64 Main() {
asm("mov %0, %1", out, in);
}
`)
	stmt := prog.Children[0].Child(1).Children[0]

	if stmt.Kind != "AsmStmt" || len(stmt.Children) != 3 {
		t.Fatalf("expected AsmStmt with 3 operands, got %v", stmt)
	}
}

func TestParseLinkageAndTypedef(t *testing.T) {
	prog := mustParse(t, "extern I64 Foo;\ntypedef I64 MyInt;\n")

	if prog.Children[0].Kind != "LinkageDecl" {
		t.Fatalf("expected LinkageDecl, got %s", prog.Children[0].Kind)
	}

	if prog.Children[1].Kind != "TypeAliasDecl" {
		t.Fatalf("expected TypeAliasDecl, got %s", prog.Children[1].Kind)
	}
}

func TestParseErrorUnterminatedBlock(t *testing.T) {
	_, d := Parse("I64 Main() {\n", "t.hc")
	if d == nil {
		t.Fatalf("expected diagnostic for unterminated block")
	}
}
