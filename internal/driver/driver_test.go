package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holyc-lang/holycc/internal/cli"
	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/preprocessor"
)

func writeTempSource(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "t.hc")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	return path
}

func baseOpts() Options {
	return Options{Mode: preprocessor.ModeJIT, Strict: true}
}

func TestCheckSucceedsOnValidSource(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 0; }\n")

	var timer cli.Timer
	if d := Check(path, baseOpts(), &timer); d != nil {
		t.Fatalf("unexpected diagnostic: %s", d.Format())
	}

	if len(timer.Phases()) == 0 {
		t.Fatalf("expected phase timings to be recorded")
	}
}

func TestCheckReportsSemaError(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return undefined_name; }\n")

	var timer cli.Timer
	if d := Check(path, baseOpts(), &timer); d == nil {
		t.Fatalf("expected a diagnostic for an unknown identifier")
	}
}

func TestAstDumpContainsFunctionNode(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 1; }\n")

	var timer cli.Timer
	out, d := AstDump(path, baseOpts(), &timer)
	if d != nil {
		t.Fatalf("unexpected diagnostic: %s", d.Format())
	}

	if !strings.Contains(out, "Main") {
		t.Fatalf("expected ast dump to mention Main, got:\n%s", out)
	}
}

func TestEmitHirContainsFunction(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 2; }\n")

	var timer cli.Timer
	out, d := EmitHir(path, baseOpts(), &timer)
	if d != nil {
		t.Fatalf("unexpected diagnostic: %s", d.Format())
	}

	if !strings.Contains(out, "Function") || !strings.Contains(out, "Main") {
		t.Fatalf("expected hir dump to show the Main function, got:\n%s", out)
	}
}

func TestEmitLlvmProducesNormalizedIr(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 3; }\n")

	var timer cli.Timer
	out, d := EmitLlvm(path, baseOpts(), &timer)
	if d != nil {
		t.Fatalf("unexpected diagnostic: %s", d.Format())
	}

	if !strings.Contains(out, "@Main") {
		t.Fatalf("expected normalized ir to reference Main, got:\n%s", out)
	}
}

func TestJitExecutesMainAndReturnsValue(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 99; }\n")

	var timer cli.Timer
	ret, d := Jit(path, baseOpts(), &timer)
	if d != nil {
		t.Fatalf("unexpected diagnostic: %s", d.Format())
	}

	if ret != 99 {
		t.Fatalf("expected 99, got %d", ret)
	}
}

func TestRunMultiPreservesOrderAndReportsFirstError(t *testing.T) {
	good := writeTempSource(t, "I64 Main() { return 1; }\n")
	bad := writeTempSource(t, "I64 Main() { return undefined_name; }\n")

	results, d := RunMulti([]string{good, bad}, func(file string) (string, *diag.Diagnostic) {
		var timer cli.Timer
		return EmitHir(file, baseOpts(), &timer)
	})

	if d == nil {
		t.Fatalf("expected the bad file's diagnostic to surface")
	}

	if len(results) != 2 {
		t.Fatalf("expected results for both files, got %+v", results)
	}
}
