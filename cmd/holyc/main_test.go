package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempSource(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "t.hc")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	return path
}

func TestRunVersionExitsZero(t *testing.T) {
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRunUnknownCommandExitsUsage(t *testing.T) {
	if code := run([]string{"bogus"}); code != 2 {
		t.Fatalf("expected exit 2 for an unknown command, got %d", code)
	}
}

func TestRunNoArgsExitsUsage(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Fatalf("expected exit 2 with no arguments, got %d", code)
	}
}

func TestRunCheckSucceedsOnValidSource(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 0; }\n")

	if code := run([]string{"check", path}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRunCheckReportsDiagnosticExitOne(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return undefined_name; }\n")

	if code := run([]string{"check", path}); code != 1 {
		t.Fatalf("expected exit 1 for a semantic error, got %d", code)
	}
}

func TestRunCheckMissingFileArgExitsUsage(t *testing.T) {
	if code := run([]string{"check"}); code != 2 {
		t.Fatalf("expected exit 2 with no FILE argument, got %d", code)
	}
}

func TestRunJitSucceedsOnValidSource(t *testing.T) {
	path := writeTempSource(t, "I64 Main() { return 7; }\n")

	if code := run([]string{"jit", path}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestValidOptLevel(t *testing.T) {
	for _, ok := range []string{"", "0", "1", "2", "3", "s", "z"} {
		if !validOptLevel(ok) {
			t.Fatalf("expected %q to be a valid opt level", ok)
		}
	}

	if validOptLevel("9") {
		t.Fatalf("expected 9 to be rejected as an opt level")
	}
}
