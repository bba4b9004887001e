// Package backend implements the "external collaborator" spec §4.7
// describes only by contract: normalize/verify text IR, interpret it
// directly for the JIT command paths, and compile it ahead-of-time for
// the build/run paths. There is no LLVM dependency anywhere in this
// tree - internal/ir's textual form is this package's own grammar, not
// LLVM IR, so "JIT" here means "load a Module into a Go-native
// interpreter session" rather than ORC/MCJIT.
package backend

import (
	"fmt"
	"sync"

	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/runtimeshim"
)

// Result mirrors the Result{ok, output} shape every backend operation
// returns: Output carries the normalized IR text, the diagnostic text
// of a failure, or (for ExecuteIrJit) the captured program output.
type Result struct {
	OK     bool
	Output string
}

func ok(output string) Result  { return Result{OK: true, Output: output} }
func fail(err error) Result    { return Result{OK: false, Output: err.Error()} }
func failMsg(msg string) Result { return Result{OK: false, Output: msg} }

// Reserved session names spec §4.7 calls out explicitly; both resolve
// through the same store as any other name, they just always exist by
// convention (the CLI's jit/repl paths default to one or the other
// depending on command).
const (
	DefaultSession = "__default__"
	ReplSession    = "__repl__"
)

var (
	sessionsMu sync.Mutex
	sessions   = map[string]*session{}
)

// NormalizeIr parses ir_text, verifies it, and prints it back out - the
// round-trip a `emit-llvm` command runs to confirm the IR builder's
// output is well-formed before handing it to a JIT or AOT path.
func NormalizeIr(irText string) Result {
	mod, err := ir.Parse(irText)
	if err != nil {
		return fail(fmt.Errorf("parse: %w", err))
	}

	if err := verifyModule(mod); err != nil {
		return fail(err)
	}

	return ok(mod.String())
}

// LoadIrJit parses, verifies, and installs ir_text as sessionName's
// module, replacing whatever was previously loaded under that name.
// Per spec §5 a JIT session is a process-wide singleton keyed by name;
// installing a fresh module supersedes the old one's address tables
// without needing a separate teardown call.
func LoadIrJit(irText string, sessionName string) Result {
	if sessionName == "" {
		sessionName = DefaultSession
	}

	if err := checkRuntimeAbi(); err != nil {
		return fail(err)
	}

	mod, err := ir.Parse(irText)
	if err != nil {
		return fail(fmt.Errorf("parse: %w", err))
	}

	if err := verifyModule(mod); err != nil {
		return fail(err)
	}

	s, d := newSession(sessionName, mod)
	if d != nil {
		return failMsg(d.Error())
	}

	sessionsMu.Lock()
	sessions[sessionName] = s
	sessionsMu.Unlock()

	return ok("")
}

// ExecuteIrJit loads ir_text into sessionName (see LoadIrJit) then calls
// entrySymbolName with no arguments, wrapping its return the way the
// real backend's `i32(...)` thunk would: the callee's raw return value
// truncated into entrySymbolName's declared width. It waits for every
// Spawn/hc_task_spawn background task the call started before
// returning, and tears the session down first unless reset_after_run is
// false.
func ExecuteIrJit(irText string, sessionName string, resetAfterRun bool, entrySymbolName string) Result {
	if sessionName == "" {
		sessionName = DefaultSession
	}

	if entrySymbolName == "" {
		entrySymbolName = "main"
	}

	if r := LoadIrJit(irText, sessionName); !r.OK {
		return r
	}

	sessionsMu.Lock()
	s := sessions[sessionName]
	sessionsMu.Unlock()

	if resetAfterRun {
		defer ResetJitSession(sessionName)
	}

	fn := s.mod.FunctionByName(entrySymbolName)
	if fn == nil {
		return failMsg(fmt.Sprintf("entry symbol %q not found in module", entrySymbolName))
	}

	result, err := runEntry(s, fn)
	if err != nil {
		return fail(err)
	}

	s.shared.SpawnWaitAll()

	return ok(fmt.Sprintf("%d", result))
}

// ResetJitSession disposes everything bound to sessionName, per spec
// §5's "ResetJitSession(name) disposes everything bound to that name".
// Resetting a name with nothing loaded is a no-op success, matching the
// REPL's `:reset` on a session that was never populated.
func ResetJitSession(sessionName string) Result {
	if sessionName == "" {
		sessionName = DefaultSession
	}

	sessionsMu.Lock()
	delete(sessions, sessionName)
	sessionsMu.Unlock()

	return ok("")
}

// verifyModule is NormalizeIr's "verify" half: every block must end in
// a terminator, and every branch/phi target must name a block that
// actually exists in the same function - the two well-formedness
// properties the interpreter's block-walking loop silently assumes.
func verifyModule(mod *ir.Module) error {
	for _, fn := range mod.Functions {
		if fn.IsDeclaration {
			continue
		}

		if len(fn.Blocks) == 0 {
			return fmt.Errorf("function %q has no blocks", fn.Name)
		}

		labels := map[string]bool{}
		for _, b := range fn.Blocks {
			labels[b.Label] = true
		}

		for _, b := range fn.Blocks {
			if len(b.Instrs) == 0 {
				return fmt.Errorf("function %q block %q is empty", fn.Name, b.Label)
			}

			if err := verifyTerminator(fn.Name, b, labels); err != nil {
				return err
			}
		}
	}

	return nil
}

func verifyTerminator(fnName string, b *ir.BasicBlock, labels map[string]bool) error {
	last := b.Instrs[len(b.Instrs)-1]

	switch t := last.(type) {
	case *ir.Br:
		if !labels[t.Target] {
			return fmt.Errorf("function %q block %q branches to undefined label %q", fnName, b.Label, t.Target)
		}
	case *ir.CondBr:
		if !labels[t.True] {
			return fmt.Errorf("function %q block %q branches to undefined label %q", fnName, b.Label, t.True)
		}

		if !labels[t.False] {
			return fmt.Errorf("function %q block %q branches to undefined label %q", fnName, b.Label, t.False)
		}
	case *ir.Ret, ir.RetVoid, ir.Unreachable:
		// terminator, nothing further to check
	default:
		return fmt.Errorf("function %q block %q does not end in a terminator", fnName, b.Label)
	}

	for _, in := range b.Instrs {
		if p, ok := in.(*ir.Phi); ok {
			for _, inc := range p.Incoming {
				if !labels[inc.Block] {
					return fmt.Errorf("function %q block %q phi names undefined predecessor %q", fnName, b.Label, inc.Block)
				}
			}
		}
	}

	return nil
}

// runEntry calls fn with no arguments on a fresh execCtx, the same
// per-goroutine Runtime every Spawn/JobQue call gets.
func runEntry(s *session, fn *ir.Function) (uint64, error) {
	ctx := &execCtx{s: s, rt: runtimeshim.NewRuntime(s.arena, s.shared)}
	return ctx.callFunction(fn, nil)
}
