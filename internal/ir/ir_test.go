package ir

import (
	"strings"
	"testing"

	"github.com/holyc-lang/holycc/internal/hir"
	"github.com/holyc-lang/holycc/internal/parser"
	"github.com/holyc-lang/holycc/internal/sema"
)

func mustBuild(t *testing.T, src string) *Module {
	t.Helper()

	prog, d := parser.Parse(src, "t.hc")
	if d != nil {
		t.Fatalf("unexpected parse error: %s", d.Format())
	}

	prog, d = sema.Analyze(prog, "t.hc", false)
	if d != nil {
		t.Fatalf("unexpected semantic error: %s", d.Format())
	}

	m, d := hir.LowerToHir(prog, "t.hc")
	if d != nil {
		t.Fatalf("unexpected lowering error: %s", d.Format())
	}

	mod, d := Build(m, "t", "t.hc")
	if d != nil {
		t.Fatalf("unexpected IR build error: %s", d.Format())
	}

	return mod
}

func TestBuildSimpleFunction(t *testing.T) {
	mod := mustBuild(t, "I64 Add(I64 a, I64 b) { return a + b; }\n")

	fn := mod.FunctionByName("Add")
	if fn == nil {
		t.Fatalf("expected function Add in module, got: %s", mod.String())
	}

	if fn.ReturnType != "i64" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function signature: %+v", fn)
	}

	text := fn.String()
	if !strings.Contains(text, "alloca i64") {
		t.Fatalf("expected parameter allocas in:\n%s", text)
	}

	if !strings.Contains(text, "add i64") {
		t.Fatalf("expected an add instruction in:\n%s", text)
	}
}

func TestBuildIfElse(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 x = 0; if (x == 0) { x = 1; } else { x = 2; } return x; }\n")

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	var labels []string
	for _, blk := range fn.Blocks {
		labels = append(labels, blk.Label)
	}

	wantAny := map[string]bool{"if.then": false, "if.else": false, "if.end": false}
	for _, l := range labels {
		if _, ok := wantAny[l]; ok {
			wantAny[l] = true
		}
	}

	for label, seen := range wantAny {
		if !seen {
			t.Fatalf("expected block %q among %v", label, labels)
		}
	}
}

func TestBuildWhileLoop(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 i = 0; while (i < 10) { i++; } return i; }\n")

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()
	for _, want := range []string{"while.cond:", "while.body:", "while.end:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
}

func TestBuildShortCircuitAnd(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 a = 1; I64 b = 0; if (a && b) { return 1; } return 0; }\n")

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()
	if !strings.Contains(text, "phi i1") {
		t.Fatalf("expected a phi merging the short-circuit branches in:\n%s", text)
	}
}

func TestBuildGlobalConstInitializer(t *testing.T) {
	mod := mustBuild(t, "I64 g = 1 + 2;\nI64 Main() { return g; }\n")

	g := func() *Global {
		for _, gg := range mod.Globals {
			if gg.Name == "g" {
				return gg
			}
		}

		return nil
	}()

	if g == nil {
		t.Fatalf("expected global g in module")
	}

	if g.Initializer != "3" {
		t.Fatalf("expected constant-folded initializer 3, got %q", g.Initializer)
	}
}

func TestBuildClassMemberAccess(t *testing.T) {
	mod := mustBuild(t, "class Point { I64 x; I64 y; };\nI64 Main() { Point p; p.x = 5; return p.x; }\n")

	st := mod.StructByName("Point")
	if st == nil {
		t.Fatalf("expected struct Point in module, got: %s", mod.String())
	}

	if len(st.Fields) != 2 {
		t.Fatalf("expected 2 fields on Point, got %+v", st.Fields)
	}

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()
	if !strings.Contains(text, "getelementptr %Point") {
		t.Fatalf("expected a getelementptr into %%Point in:\n%s", text)
	}
}

func TestBuildSwitchLinearChain(t *testing.T) {
	mod := mustBuild(t, `I64 Main() {
		I64 x = 1;
		switch (x) {
		case 1:
			return 10;
		case 2:
			return 20;
		default:
			return 0;
		}
	}
`)

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()
	for _, want := range []string{"sw.test0:", "sw.body0:", "sw.default:", "sw.end:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
}

func TestBuildSwitchNullCaseGetsOwnTestBlock(t *testing.T) {
	mod := mustBuild(t, `I64 Main() {
		I64 x = 1;
		switch (x) {
		case 1:
			return 1;
		case:
			return 2;
		case 3:
			return 3;
		}

		return 0;
	}
`)

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()

	for _, want := range []string{"sw.test0:", "sw.test1:", "sw.test2:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected a test block for every case, including the null case, in:\n%s", text)
		}
	}

	if !strings.Contains(text, ", 2\n") && !strings.Contains(text, ", 2\n\t") {
		t.Fatalf("expected the null case to resolve to last_end+1 (2) in:\n%s", text)
	}
}

func TestBuildPrintCharLiteralCallsPutChar(t *testing.T) {
	mod := mustBuild(t, "U0 Main() { 'A'; }\n")

	fn := mod.FunctionByName("Main")
	if fn == nil {
		t.Fatalf("expected function Main")
	}

	text := fn.String()
	if !strings.Contains(text, "call void @hc_put_char(i64 65)") {
		t.Fatalf("expected a direct hc_put_char call with the decoded char code in:\n%s", text)
	}

	if strings.Contains(text, "hc_print_fmt") {
		t.Fatalf("expected the char-literal print form not to route through hc_print_fmt, got:\n%s", text)
	}
}

func TestBuildHostMainWrapper(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { return 0; }\n")

	main := mod.FunctionByName("main")
	if main == nil {
		t.Fatalf("expected a synthesized host main wrapper, got: %s", mod.String())
	}

	if main.ReturnType != "i32" {
		t.Fatalf("expected host main to return i32, got %s", main.ReturnType)
	}

	text := main.String()
	if !strings.Contains(text, "call i64 @Main()") {
		t.Fatalf("expected host main to call Main, got:\n%s", text)
	}
}

func TestBuildHostMainWrapperForwardsArgcArgv(t *testing.T) {
	mod := mustBuild(t, "I64 Main(I64 argc, U8** argv) { return argc; }\n")

	main := mod.FunctionByName("main")
	if main == nil {
		t.Fatalf("expected a synthesized host main wrapper, got: %s", mod.String())
	}

	if len(main.Params) != 2 || main.Params[0].Name != "argc" || main.Params[1].Name != "argv" {
		t.Fatalf("expected host main to declare (argc, argv) params, got %+v", main.Params)
	}

	text := main.String()
	if !strings.Contains(text, "call i64 @Main(i64") {
		t.Fatalf("expected host main to forward argc into Main, got:\n%s", text)
	}

	if !strings.Contains(text, "ptr %argv") {
		t.Fatalf("expected host main to forward argv into Main, got:\n%s", text)
	}
}
