package ir

import "testing"

func mustRoundTrip(t *testing.T, mod *Module) *Module {
	t.Helper()

	text := mod.String()

	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed on our own String() output: %v\n---\n%s", err, text)
	}

	if reparsed.String() != text {
		t.Fatalf("round trip mismatch:\n--- original ---\n%s\n--- reparsed ---\n%s", text, reparsed.String())
	}

	return reparsed
}

func TestParseRoundTripSimpleFunction(t *testing.T) {
	mod := mustBuild(t, "I64 Add(I64 a, I64 b) { return a + b; }\n")
	mustRoundTrip(t, mod)
}

func TestParseRoundTripIfElse(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 x = 0; if (x == 0) { x = 1; } else { x = 2; } return x; }\n")
	mustRoundTrip(t, mod)
}

func TestParseRoundTripWhileLoop(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 i = 0; while (i < 10) { i++; } return i; }\n")
	mustRoundTrip(t, mod)
}

func TestParseRoundTripClassMemberAccess(t *testing.T) {
	mod := mustBuild(t, "class Point { I64 x; I64 y; };\nI64 Main() { Point p; p.x = 5; return p.x; }\n")
	reparsed := mustRoundTrip(t, mod)

	st := reparsed.StructByName("Point")
	if st == nil || len(st.Fields) != 2 {
		t.Fatalf("expected Point struct with 2 fields to survive the round trip, got %+v", st)
	}
}

func TestParseRoundTripSwitch(t *testing.T) {
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
	mustRoundTrip(t, mod)
}

func TestParseRoundTripShortCircuitPhi(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { I64 a = 1; I64 b = 0; if (a && b) { return 1; } return 0; }\n")
	mustRoundTrip(t, mod)
}

func TestParseRoundTripHostMainWrapper(t *testing.T) {
	mod := mustBuild(t, "I64 Main() { return 0; }\n")
	reparsed := mustRoundTrip(t, mod)

	main := reparsed.FunctionByName("main")
	if main == nil || main.ReturnType != "i32" {
		t.Fatalf("expected synthesized i32 host main to survive the round trip, got %+v", main)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("this is not IR at all {{{"); err == nil {
		t.Fatalf("expected an error parsing garbage input")
	}
}

func TestParseMissingClosingBrace(t *testing.T) {
	_, err := Parse("define i64 @f() {\nentry:\n  ret i64 0\n")
	if err == nil {
		t.Fatalf("expected an error for a function missing its closing brace")
	}
}
