package preprocessor

import (
	"strings"
	"testing"
)

func run(t *testing.T, files map[string]string, entry string, opts Options) (string, *string) {
	t.Helper()

	if opts.FS == nil {
		opts.FS = NewMemFS(files)
	}

	pp := New(opts)

	out, d := pp.Run(files[entry], entry)
	if d != nil {
		msg := d.Format()

		return "", &msg
	}

	return out, nil
}

func TestIdempotenceOnPureCode(t *testing.T) {
	src := "I64 Add(I64 a, I64 b) {\n  return a + b;\n}\n"

	out, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{})
	if errMsg != nil {
		t.Fatalf("unexpected error: %s", *errMsg)
	}

	if out != src {
		t.Fatalf("expected byte-for-byte passthrough, got %q want %q", out, src)
	}
}

func TestIncludeCycle(t *testing.T) {
	files := map[string]string{
		"a.hc": "#include \"b.hc\"\n",
		"b.hc": "#include \"a.hc\"\n",
	}

	_, errMsg := run(t, files, "a.hc", Options{})
	if errMsg == nil {
		t.Fatalf("expected include-cycle diagnostic")
	}

	if !strings.Contains(*errMsg, "HC1023") {
		t.Fatalf("expected HC1023, got %s", *errMsg)
	}

	if !strings.Contains(*errMsg, "a.hc -> b.hc -> a.hc") {
		t.Fatalf("expected chain text, got %s", *errMsg)
	}
}

func TestIfArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"1 + 2 == 3", true},
		{"1 << 4 == 16", true},
		{"(1 || 0) && (0 == 0)", true},
		{"5 / 0 == 0", true}, // division by zero silently yields 0 per spec open question
		{"~0 == -1", true},
		{"2 * 3 - 1 == 5", true},
	}

	for _, c := range cases {
		files := map[string]string{"a.hc": "#if " + c.expr + "\nYES\n#endif\n"}

		out, errMsg := run(t, files, "a.hc", Options{})
		if errMsg != nil {
			t.Fatalf("expr %q: unexpected error %s", c.expr, *errMsg)
		}

		got := strings.Contains(out, "YES")
		if got != c.want {
			t.Errorf("expr %q: got %v want %v (out=%q)", c.expr, got, c.want, out)
		}
	}
}

func TestDefineObjectAndFunctionMacros(t *testing.T) {
	src := "#define SIZE 10\n#define ADD(a, b) ((a) + (b))\nI64 x = SIZE;\nI64 y = ADD(1, 2);\n"

	out, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{})
	if errMsg != nil {
		t.Fatalf("unexpected error: %s", *errMsg)
	}

	if !strings.Contains(out, "I64 x = 10;") {
		t.Fatalf("object macro not expanded: %q", out)
	}

	if !strings.Contains(out, "I64 y = ((1) + (2));") {
		t.Fatalf("function macro not expanded: %q", out)
	}
}

func TestIfdefIfndefElse(t *testing.T) {
	src := "#define FOO 1\n#ifdef FOO\nA\n#else\nB\n#endif\n#ifndef FOO\nC\n#else\nD\n#endif\n"

	out, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{})
	if errMsg != nil {
		t.Fatalf("unexpected error: %s", *errMsg)
	}

	if !strings.Contains(out, "A") || strings.Contains(out, "B") {
		t.Fatalf("ifdef branch wrong: %q", out)
	}

	if !strings.Contains(out, "D") || strings.Contains(out, "C") {
		t.Fatalf("ifndef branch wrong: %q", out)
	}
}

func TestModeGates(t *testing.T) {
	src := "#ifjit\nJITONLY\n#endif\n#ifaot\nAOTONLY\n#endif\n"

	out, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{Mode: ModeJIT})
	if errMsg != nil {
		t.Fatalf("unexpected error: %s", *errMsg)
	}

	if !strings.Contains(out, "JITONLY") || strings.Contains(out, "AOTONLY") {
		t.Fatalf("mode gating wrong: %q", out)
	}
}

func TestExeStreamPrint(t *testing.T) {
	src := "#exe {\n  StreamPrint(\"I64 Generated() { return 1; }\");\n}\n"

	out, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{})
	if errMsg != nil {
		t.Fatalf("unexpected error: %s", *errMsg)
	}

	if !strings.Contains(out, "I64 Generated() { return 1; }") {
		t.Fatalf("exe output missing: %q", out)
	}
}

func TestAssertFailure(t *testing.T) {
	src := "#assert 0\n"

	_, errMsg := run(t, map[string]string{"a.hc": src}, "a.hc", Options{})
	if errMsg == nil || !strings.Contains(*errMsg, "HC1008") {
		t.Fatalf("expected HC1008 assert failure, got %v", errMsg)
	}
}
