package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrintVersionPlain(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, false)

	if !strings.Contains(buf.String(), "holyc "+Version) {
		t.Fatalf("expected version string, got %q", buf.String())
	}

	if strings.Contains(buf.String(), "llvm-enabled") {
		t.Fatalf("expected no llvm-enabled suffix, got %q", buf.String())
	}
}

func TestPrintVersionJson(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, true)

	if !strings.Contains(buf.String(), `"version"`) {
		t.Fatalf("expected json version field, got %q", buf.String())
	}
}

func TestPrintPhaseTableIncludesTotal(t *testing.T) {
	var buf bytes.Buffer
	PrintPhaseTable(&buf, []PhaseTiming{{Name: "parse", Seconds: 0.01}, {Name: "sema", Seconds: 0.02}})

	out := buf.String()
	if !strings.Contains(out, "parse") || !strings.Contains(out, "sema") || !strings.Contains(out, "total") {
		t.Fatalf("expected a phase table with a total row, got:\n%s", out)
	}
}

func TestWritePhaseReportRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phases.json")

	if err := WritePhaseReport(path, "check", []PhaseTiming{{Name: "parse", Seconds: 0.1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimerAccumulatesPhases(t *testing.T) {
	var timer Timer

	if err := timer.Time("parse", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(timer.Phases()) != 1 || timer.Phases()[0].Name != "parse" {
		t.Fatalf("expected one recorded phase named parse, got %+v", timer.Phases())
	}
}
