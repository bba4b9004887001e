package repl

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsIncompleteDetectsUnbalancedBraces(t *testing.T) {
	if !isIncomplete("I64 Main() {") {
		t.Fatalf("expected an open brace to be incomplete")
	}

	if isIncomplete("I64 Main() { return 0; }") {
		t.Fatalf("expected a balanced cell to be complete")
	}
}

func TestIsIncompleteIgnoresBracketsInStringsAndComments(t *testing.T) {
	if isIncomplete(`Print("(");`) {
		t.Fatalf("expected a paren inside a string literal to be ignored")
	}

	if isIncomplete("// a stray ( in a comment\nreturn 0;") {
		t.Fatalf("expected a paren inside a line comment to be ignored")
	}
}

func TestIsIncompleteDetectsUnterminatedString(t *testing.T) {
	if !isIncomplete(`Print("unterminated`) {
		t.Fatalf("expected an unterminated string to be incomplete")
	}
}

func TestEvalSingleExpressionCellPrintsValue(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, true, "repl-test-expr", "", 100)

	r.evalCell("2 + 2")

	if !strings.Contains(out.String(), "4") {
		t.Fatalf("expected the evaluated expression's value in output, got %q", out.String())
	}
}

func TestEvalDeclarationCellUpdatesPreludeWithoutOutput(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, true, "repl-test-decl", "", 100)

	r.evalCell("I64 counter;\n")

	if len(r.prelude) != 1 {
		t.Fatalf("expected the declaration to join the prelude, got %+v", r.prelude)
	}

	if out.String() != "" {
		t.Fatalf("expected no output for a declaration-only cell, got %q", out.String())
	}
}

func TestEvalCellKeepsSessionIntactOnError(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, true, "repl-test-error", "", 100)

	r.evalCell("undefined_name + 1")

	if !strings.Contains(out.String(), "error") {
		t.Fatalf("expected a diagnostic to be printed, got %q", out.String())
	}

	if len(r.prelude) != 0 {
		t.Fatalf("expected the prelude to remain empty after a failed cell")
	}
}

func TestHistoryRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")

	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, true, "repl-test-history", path, 100)
	r.history = []string{"2 + 2", ":help"}
	r.SaveHistory()

	var out2 bytes.Buffer
	r2 := New(strings.NewReader(""), &out2, true, "repl-test-history-2", path, 100)
	r2.LoadHistory()

	if len(r2.history) != 2 || r2.history[0] != "2 + 2" {
		t.Fatalf("expected history to round trip, got %+v", r2.history)
	}
}
