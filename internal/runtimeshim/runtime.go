// Package runtimeshim implements the hc_* runtime ABI spec §6.4 promises
// the emitted IR: printing, exception unwinding, reflection tables, and
// the cooperative Spawn/JobQue task helpers. Grounded on
// original_source/runtime/hc_runtime.cpp's own minimal stand-ins (it
// doesn't implement a real TempleOS hash-class system either, just a
// small process-wide table) - this package is that same shim rewritten
// over goroutines instead of pthreads, so internal/backend's
// interpreter can call it directly without cgo or a linked C runtime.
package runtimeshim

import (
	"io"
	"os"
	"sync"
)

// Memory is the byte-addressable store runtimeshim reads/writes through;
// internal/backend's interpreter owns the real arena and implements this
// narrow interface so this package never needs to know the interpreter's
// internals.
type Memory interface {
	ReadBytes(addr int64, n int64) []byte
	WriteBytes(addr int64, data []byte)
	Alloc(size int64) int64
	Free(addr int64)
}

// ReflectionField mirrors hc_reflection_field's four string columns.
type ReflectionField struct {
	AggregateName string
	FieldName     string
	FieldType     string
	Annotations   string
}

// HashClass is this shim's stand-in for CHashClass: one entry per
// aggregate name, with its fields in declaration order.
type HashClass struct {
	name    string
	fields  []ReflectionField
	members []*Member
	handle  int64
}

// Runtime is one virtual hc_runtime thread: the try-frame stack and
// exception payload are per-Runtime (hc_runtime.cpp keeps these
// thread_local), while the reflection table and task bookkeeping below
// are shared process-wide state guarded by their own locks, matching the
// original's globals-vs-thread_locals split.
type Runtime struct {
	Mem    Memory
	Stdout io.Writer

	shared *Shared

	tryStack   []int64 // frame addresses, innermost last
	exceptionPayload int64
	exceptionActive  bool
}

// Shared is the process-wide state one JIT session's family of Runtimes
// (main thread plus any Spawn/JobQue goroutines) all share: the
// reflection table, the hash-class lookup cache, and task bookkeeping.
type Shared struct {
	mu sync.Mutex

	reflection []ReflectionField
	hashCache  map[string]*HashClass

	nextTaskID int64

	spawnMu       sync.Mutex
	spawnCond     *sync.Cond
	spawnInFlight int

	jobs sync.Map // job handle (int64) -> *job
	nextJobID int64

	// Caller lets Spawn/JobQue invoke an IR function by its module-level
	// address (as produced by the interpreter's function symbol table)
	// without this package importing internal/backend.
	Caller func(fnAddr int64, arg int64) int64

	// ResolveSymbol backs the "&Symbol" form of a reflection annotation
	// value, resolving a name to its interpreter-assigned address in
	// place of dlsym(RTLD_DEFAULT, ...).
	ResolveSymbol func(name string) int64

	// CommandRunner backs hc_task_spawn's std::system(command) launch.
	// Left nil by default; internal/cli wires a SecureCommandExecutor-
	// style runner into it rather than shelling out unchecked.
	CommandRunner func(command string)
}

// NewShared builds a fresh Shared for one JIT session.
func NewShared() *Shared {
	s := &Shared{hashCache: map[string]*HashClass{}}
	s.spawnCond = sync.NewCond(&s.spawnMu)

	return s
}

// NewRuntime creates a fresh virtual thread sharing sh's process-wide
// state - the same relationship hc_runtime.cpp's thread_local state has
// to its handful of process globals.
func NewRuntime(mem Memory, sh *Shared) *Runtime {
	stdout := io.Writer(os.Stdout)

	return &Runtime{Mem: mem, Stdout: stdout, shared: sh}
}

// AbiVersion packs HC_RUNTIME_ABI_VERSION_MAJOR/MINOR the way
// hc_runtime_abi_version() does: major in the high 32 bits, minor in the
// low 32.
func AbiVersion() int64 {
	const major, minor = 1, 0
	return int64(major)<<32 | int64(minor)
}

// AbiVersionString is the semver form internal/backend negotiates
// against before trusting a linked/interpreted runtime.
const AbiVersionString = "1.0.0"

// AbiVersion is hc_runtime_abi_version as a Runtime method, for
// interpreter call sites that dispatch every hc_* symbol the same way.
func (r *Runtime) AbiVersion() int64 { return AbiVersion() }
