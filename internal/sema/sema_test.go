package sema

import (
	"testing"

	"github.com/holyc-lang/holycc/internal/parser"
)

func mustAnalyze(t *testing.T, src string, permissive bool) {
	t.Helper()

	prog, d := parser.Parse(src, "t.hc")
	if d != nil {
		t.Fatalf("unexpected parse error: %s", d.Format())
	}

	_, d = Analyze(prog, "t.hc", !permissive)
	if d != nil {
		t.Fatalf("unexpected semantic error: %s", d.Format())
	}
}

func wantAnalyzeError(t *testing.T, src string, permissive bool) *struct{} {
	t.Helper()

	prog, d := parser.Parse(src, "t.hc")
	if d != nil {
		t.Fatalf("unexpected parse error: %s", d.Format())
	}

	_, d = Analyze(prog, "t.hc", !permissive)
	if d == nil {
		t.Fatalf("expected semantic error, got none")
	}

	return nil
}

func TestAnalyzeSimpleFunctionAndReturnType(t *testing.T) {
	mustAnalyze(t, "I64 Add(I64 a, I64 b) { return a + b; }\n", false)
}

func TestAnalyzeUnknownIdentifierRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 Main() { return x; }\n", false)
}

func TestAnalyzeReturnTypeMismatchRejected(t *testing.T) {
	wantAnalyzeError(t, `I64 Main() { return "oops"; }`+"\n", false)
}

func TestAnalyzeGlobalAndLocalVarDecl(t *testing.T) {
	mustAnalyze(t, "I64 g = 1;\nI64 Main() { I64 x = g; return x; }\n", false)
}

func TestAnalyzeDuplicateLocalDeclRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 Main() { I64 x; I64 x; return 0; }\n", false)
}

func TestAnalyzeCallArgCountAndDefaults(t *testing.T) {
	mustAnalyze(t, "I64 F(I64 a, I64 b = 5) { return a + b; }\nI64 Main() { return F(1); }\n", false)
}

func TestAnalyzeCallTooManyArgsRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 F(I64 a) { return a; }\nI64 Main() { return F(1, 2); }\n", false)
}

func TestAnalyzeSparseCallArgUsesDefault(t *testing.T) {
	mustAnalyze(t, "I64 F(I64 a = 1, I64 b = 2) { return a + b; }\nI64 Main() { return F(,9); }\n", false)
}

func TestAnalyzePrintFormatArgCount(t *testing.T) {
	mustAnalyze(t, `I64 Main() { "%d %d\n", 1, 2; return 0; }`+"\n", false)
}

func TestAnalyzePrintFormatArgCountMismatchRejected(t *testing.T) {
	wantAnalyzeError(t, `I64 Main() { "%d\n", 1, 2; return 0; }`+"\n", false)
}

func TestAnalyzePrintStringArgMustBePointer(t *testing.T) {
	wantAnalyzeError(t, `I64 Main() { "%s\n", 1; return 0; }`+"\n", false)
}

func TestAnalyzeGotoUnknownLabelRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 Main() { goto nowhere; return 0; }\n", false)
}

func TestAnalyzeGotoKnownLabelAccepted(t *testing.T) {
	mustAnalyze(t, "I64 Main() {\nfoo: goto foo;\n}\n", false)
}

// start/end are parsed as their own StartLabel/EndLabel node kinds
// rather than ordinary LabelStmt targets, so a goto naming them still
// needs a real label to jump to.
func TestAnalyzeGotoToStartSentinelRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 Main() {\nstart: goto start;\n}\n", false)
}

func TestAnalyzeClassMemberAccess(t *testing.T) {
	mustAnalyze(t, "class Point { I64 x; I64 y; };\nPoint p;\nI64 Main() { return p.x; }\n", false)
}

func TestAnalyzeUnknownMemberRejected(t *testing.T) {
	wantAnalyzeError(t, "class Point { I64 x; };\nPoint p;\nI64 Main() { return p.z; }\n", false)
}

func TestAnalyzeLaneAccessRange(t *testing.T) {
	mustAnalyze(t, "I64 Main() { I64 v; return v.u8[0]; }\n", false)
}

func TestAnalyzeLaneAccessOutOfRangeRejected(t *testing.T) {
	wantAnalyzeError(t, "I64 Main() { I64 v; return v.u64[2]; }\n", false)
}

func TestAnalyzeStrictModeRejectsCompatModifier(t *testing.T) {
	wantAnalyzeError(t, "public I64 Main() { return 0; }\n", false)
}

func TestAnalyzePermissiveModeAllowsCompatModifier(t *testing.T) {
	mustAnalyze(t, "public I64 Main() { return 0; }\n", true)
}

func TestAnalyzeThrowRequiresIntegralPayload(t *testing.T) {
	mustAnalyze(t, "I64 Main() {\ntry { throw(1); } catch { I64 x = 1; }\n}\n", false)
}

func TestAnalyzePointerArithmetic(t *testing.T) {
	mustAnalyze(t, "I64 Main() { U8 *p; p = p + 1; return 0; }\n", false)
}
