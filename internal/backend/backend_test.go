package backend

import (
	"strings"
	"testing"

	"github.com/holyc-lang/holycc/internal/hir"
	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/parser"
	"github.com/holyc-lang/holycc/internal/sema"
)

func mustBuildText(t *testing.T, src string) string {
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

	mod, d := ir.Build(m, "t", "t.hc")
	if d != nil {
		t.Fatalf("unexpected IR build error: %s", d.Format())
	}

	return mod.String()
}

func TestNormalizeIrRoundTrip(t *testing.T) {
	text := mustBuildText(t, "I64 Add(I64 a, I64 b) { return a + b; }\n")

	r := NormalizeIr(text)
	if !r.OK {
		t.Fatalf("expected NormalizeIr to succeed, got: %s", r.Output)
	}

	if !strings.Contains(r.Output, "@Add(") {
		t.Fatalf("expected normalized output to still contain Add, got:\n%s", r.Output)
	}
}

func TestNormalizeIrRejectsUnterminatedBlock(t *testing.T) {
	r := NormalizeIr("define i64 @f() {\nentry:\n  ret i64 0\n")
	if r.OK {
		t.Fatalf("expected NormalizeIr to fail on a missing closing brace")
	}
}

func TestExecuteIrJitReturnsEntryResult(t *testing.T) {
	text := mustBuildText(t, "I64 Main() { return 42; }\n")

	r := ExecuteIrJit(text, "", true, "main")
	if !r.OK {
		t.Fatalf("expected ExecuteIrJit to succeed, got: %s", r.Output)
	}

	if r.Output != "42" {
		t.Fatalf("expected entry result 42, got %q", r.Output)
	}
}

func TestExecuteIrJitResetsSessionAfterRun(t *testing.T) {
	text := mustBuildText(t, "I64 Main() { return 7; }\n")

	if r := ExecuteIrJit(text, "jit-reset-test", true, "main"); !r.OK {
		t.Fatalf("unexpected failure: %s", r.Output)
	}

	sessionsMu.Lock()
	_, present := sessions["jit-reset-test"]
	sessionsMu.Unlock()

	if present {
		t.Fatalf("expected session to be disposed after reset_after_run")
	}
}

func TestExecuteIrJitKeepsSessionWhenNotReset(t *testing.T) {
	text := mustBuildText(t, "I64 Main() { return 1; }\n")

	if r := ExecuteIrJit(text, "jit-keep-test", false, "main"); !r.OK {
		t.Fatalf("unexpected failure: %s", r.Output)
	}

	defer ResetJitSession("jit-keep-test")

	sessionsMu.Lock()
	_, present := sessions["jit-keep-test"]
	sessionsMu.Unlock()

	if !present {
		t.Fatalf("expected session to remain loaded when reset_after_run is false")
	}
}

func TestExecuteIrJitUnknownEntrySymbol(t *testing.T) {
	text := mustBuildText(t, "I64 Main() { return 0; }\n")

	r := ExecuteIrJit(text, "", true, "NoSuchEntry")
	if r.OK {
		t.Fatalf("expected failure for an undefined entry symbol")
	}
}

func TestLoadIrJitThenResetJitSession(t *testing.T) {
	text := mustBuildText(t, "I64 Main() { return 0; }\n")

	if r := LoadIrJit(text, "load-test"); !r.OK {
		t.Fatalf("unexpected LoadIrJit failure: %s", r.Output)
	}

	if r := ResetJitSession("load-test"); !r.OK {
		t.Fatalf("unexpected ResetJitSession failure: %s", r.Output)
	}

	sessionsMu.Lock()
	_, present := sessions["load-test"]
	sessionsMu.Unlock()

	if present {
		t.Fatalf("expected session to be gone after ResetJitSession")
	}
}

func TestResetJitSessionOnUnloadedNameIsNoOp(t *testing.T) {
	if r := ResetJitSession("never-loaded"); !r.OK {
		t.Fatalf("expected resetting an unloaded session to succeed, got: %s", r.Output)
	}
}
