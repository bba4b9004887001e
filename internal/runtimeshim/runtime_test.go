package runtimeshim

import (
	"bytes"
	"strings"
	"testing"
)

type fakeMemory struct {
	arena map[int64][]byte
	next  int64
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{arena: map[int64][]byte{}, next: 1}
}

func (m *fakeMemory) ReadBytes(addr int64, n int64) []byte {
	buf := m.arena[addr]
	out := make([]byte, n)
	copy(out, buf)

	return out
}

func (m *fakeMemory) WriteBytes(addr int64, data []byte) {
	m.arena[addr] = append([]byte{}, data...)
}

func (m *fakeMemory) Alloc(size int64) int64 {
	addr := m.next
	m.next += size

	return addr
}

func (m *fakeMemory) Free(addr int64) {
	delete(m.arena, addr)
}

func TestAbiVersionPacksMajorMinor(t *testing.T) {
	got := AbiVersion()
	if major := got >> 32; major != 1 {
		t.Fatalf("major = %d, want 1", major)
	}

	if minor := got & 0xffffffff; minor != 0 {
		t.Fatalf("minor = %d, want 0", minor)
	}
}

func TestPrintFmtDecimalAndString(t *testing.T) {
	var buf bytes.Buffer

	r := &Runtime{Mem: newFakeMemory(), Stdout: &buf}
	strings := map[int64]string{100: "world"}

	r.PrintFmt("hello %s, count=%d\n", []int64{100, 42}, func(addr int64) string {
		return strings[addr]
	})

	want := "hello world, count=42\n"
	if buf.String() != want {
		t.Fatalf("PrintFmt = %q, want %q", buf.String(), want)
	}
}

func TestPrintFmtBinaryAndPercent(t *testing.T) {
	var buf bytes.Buffer

	r := &Runtime{Mem: newFakeMemory(), Stdout: &buf}
	r.PrintFmt("%b 100%%", []int64{5}, nil)

	want := "101 100%"
	if buf.String() != want {
		t.Fatalf("PrintFmt = %q, want %q", buf.String(), want)
	}
}

func TestTryPushThrowUnwindsToMatchingFrame(t *testing.T) {
	r := &Runtime{Mem: newFakeMemory()}
	r.TryPush(0x1000)

	defer func() {
		rec := recover()

		exc, ok := rec.(*ThrownException)
		if !ok {
			t.Fatalf("recover() = %v, want *ThrownException", rec)
		}

		if exc.Payload != 7 {
			t.Fatalf("Payload = %d, want 7", exc.Payload)
		}

		if r.TryDepth() != 0 {
			t.Fatalf("TryDepth() = %d, want 0 after throw pops the frame", r.TryDepth())
		}
	}()

	r.Throw(7)
}

func TestExceptionActiveReflectsFrameStack(t *testing.T) {
	r := &Runtime{Mem: newFakeMemory()}

	if r.ExceptionActive() != 0 {
		t.Fatalf("ExceptionActive() = %d, want 0 with no frames", r.ExceptionActive())
	}

	r.TryPush(1)

	if r.ExceptionActive() != 1 {
		t.Fatalf("ExceptionActive() = %d, want 1 with a live frame", r.ExceptionActive())
	}

	r.TryPop(1)

	if r.ExceptionActive() != 0 {
		t.Fatalf("ExceptionActive() = %d, want 0 after popping the only frame", r.ExceptionActive())
	}
}

func TestReflectionTableLookup(t *testing.T) {
	sh := NewShared()
	sh.RegisterReflectionTable([]ReflectionField{
		{AggregateName: "Point", FieldName: "x", FieldType: "I32"},
		{AggregateName: "Point", FieldName: "y", FieldType: "I32", Annotations: `units "px"`},
	})

	klass := sh.HashFind("Point")
	if klass == nil {
		t.Fatal("HashFind(\"Point\") = nil")
	}

	if len(klass.members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(klass.members))
	}

	y := klass.MemberByIndex(1)
	if y.offset != 4 {
		t.Fatalf("y.offset = %d, want 4", y.offset)
	}

	if got := MemberMetaData("units", y); got == 0 {
		t.Fatal("MemberMetaData(\"units\", y) = 0, want a nonzero handle")
	}

	if sh.HashFind("Missing") != nil {
		t.Fatal("HashFind(\"Missing\") = non-nil, want nil")
	}
}

func TestMemcpyAndMemset(t *testing.T) {
	r := &Runtime{Mem: newFakeMemory()}

	src := int64(10)
	r.Mem.WriteBytes(src, []byte("abcd"))

	dst := int64(20)
	r.Memcpy(dst, src, 4)

	if got := string(r.Mem.ReadBytes(dst, 4)); got != "abcd" {
		t.Fatalf("Memcpy result = %q, want %q", got, "abcd")
	}

	r.Memset(dst, 'z', 4)

	if got := string(r.Mem.ReadBytes(dst, 4)); got != "zzzz" {
		t.Fatalf("Memset result = %q, want %q", got, "zzzz")
	}
}

func TestSpawnAndWaitAll(t *testing.T) {
	sh := NewShared()

	var calls int
	sh.Caller = func(fnAddr, arg int64) int64 {
		calls++
		return arg * 2
	}

	sh.Spawn(1, 21)
	sh.SpawnWaitAll()

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestJobQueAndJobResGet(t *testing.T) {
	sh := NewShared()
	sh.Caller = func(fnAddr, arg int64) int64 { return arg + 1 }

	handle := sh.JobQue(1, 9)
	if got := sh.JobResGet(handle); got != 10 {
		t.Fatalf("JobResGet() = %d, want 10", got)
	}
}

func TestLookupZStringIndexesNulSeparatedTable(t *testing.T) {
	table := strings.Join([]string{"RED", "GREEN", "BLUE"}, "\x00")

	if got := lookupZString(table, 1); got != "GREEN" {
		t.Fatalf("lookupZString(table, 1) = %q, want %q", got, "GREEN")
	}

	if got := lookupZString(table, 9); got != "" {
		t.Fatalf("lookupZString(table, 9) = %q, want empty", got)
	}
}
