package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/runtimeshim"
)

// funcAddrBase separates function handles from ordinary arena addresses
// so a "ptr" register holding either a data pointer or a function
// pointer can be told apart without a tag bit, the same opaque-address
// trick the runtime ABI's CTask/CJob handles already rely on.
const funcAddrBase = int64(1) << 48

// session is one JIT session's whole machine state: the loaded module,
// its function/global address tables, the byte arena, and the shared
// runtime bookkeeping Spawn/JobQue goroutines also touch.
type session struct {
	name    string
	mod     *ir.Module
	arena   *arena
	layouts *layouts

	globalAddr map[string]int64
	funcAddr   map[string]int64
	addrFunc   map[int64]string

	// hashClassAddr/memberAt cache the CHashClass/CMemberLst memory
	// reflect.go materializes into the arena, keyed by class name and by
	// each member node's own arena address.
	hashClassAddr map[string]int64
	memberAt      map[int64]*runtimeshim.Member

	shared *runtimeshim.Shared
}

// execCtx is the per-goroutine execution context: one runtimeshim
// Runtime (so the try-frame stack is goroutine-local, matching
// hc_runtime.cpp's thread_local state) threaded through every nested
// direct call on that goroutine.
type execCtx struct {
	s  *session
	rt *runtimeshim.Runtime
}

// frame is one function activation's SSA register file. catchStack holds
// the catch-block label of each currently open try region in this
// activation, innermost last - pushed when a hc_try_push call is seen,
// popped on the matching hc_try_pop, and consulted by runBlockSafe when
// an hc_throw_i64 panic needs somewhere local to resume.
type frame struct {
	vals       map[string]uint64
	catchStack []string
}

func newFrame() *frame { return &frame{vals: map[string]uint64{}} }

func newSession(name string, mod *ir.Module) (*session, *diag.Diagnostic) {
	s := &session{
		name:          name,
		mod:           mod,
		arena:         newArena(),
		layouts:       newLayouts(mod),
		globalAddr:    map[string]int64{},
		funcAddr:      map[string]int64{},
		addrFunc:      map[int64]string{},
		hashClassAddr: map[string]int64{},
		memberAt:      map[int64]*runtimeshim.Member{},
		shared:        runtimeshim.NewShared(),
	}

	for i, fn := range mod.Functions {
		addr := funcAddrBase + int64(i)
		s.funcAddr[fn.Name] = addr
		s.addrFunc[addr] = fn.Name
	}

	s.shared.ResolveSymbol = func(name string) int64 { return s.funcAddr[name] }

	if d := s.materializeGlobals(); d != nil {
		return nil, d
	}

	s.shared.Caller = func(fnAddr, arg int64) int64 {
		fnName, ok := s.addrFunc[fnAddr]
		if !ok {
			return 0
		}

		fn := s.mod.FunctionByName(fnName)
		if fn == nil {
			return 0
		}

		ctx := &execCtx{s: s, rt: runtimeshim.NewRuntime(s.arena, s.shared)}

		result, err := ctx.callFunction(fn, []uint64{uint64(arg)})
		if err != nil {
			return 0
		}

		return int64(result)
	}

	return s, nil
}

// materializeGlobals allocates and fills every module-level global in
// declaration order, resolving "@name" initializers in a second pass so
// forward references (a reflection-table entry pointing at a string
// literal declared earlier, or vice versa) always see a valid address.
func (s *session) materializeGlobals() *diag.Diagnostic {
	for _, g := range s.mod.Globals {
		if g.IsDeclaration {
			s.globalAddr[g.Name] = 0
			continue
		}

		size := s.layouts.sizeOf(g.Type)
		s.globalAddr[g.Name] = s.arena.Alloc(size)
	}

	for _, g := range s.mod.Globals {
		if g.IsDeclaration {
			continue
		}

		data := s.materializeConst(g.Type, g.Initializer)
		s.arena.WriteBytes(s.globalAddr[g.Name], data)
	}

	return nil
}

func runtimeError(format string, args ...interface{}) *diag.Diagnostic {
	return diag.Err("HC4900").Msg(format, args...).Build()
}

// callFunction executes fn from its entry block to a terminating Ret/
// RetVoid/Unreachable, threading ctx's runtime (and so its try-frame
// stack) through every nested direct Call.
func (c *execCtx) callFunction(fn *ir.Function, args []uint64) (uint64, error) {
	if fn.IsDeclaration {
		// evalCall dispatches every reachable intrinsic call with its
		// real per-call ArgTypes; a declaration only reaches here via
		// Spawn/JobQue's Caller hook invoking a function pointer that
		// turned out to be an extern rather than a defined task entry
		// point, which is a caller error, not a case this interpreter
		// needs to format a call for.
		return 0, fmt.Errorf("%s has no definition to execute", fn.Name)
	}

	fr := newFrame()

	for i, p := range fn.Params {
		if i < len(args) {
			fr.vals[p.Name] = args[i]
		}
	}

	block := fn.Blocks[0]
	fromLabel := ""

	for {
		next, ret, done, err := c.runBlockSafe(fn, block, fr, fromLabel)
		if err != nil {
			return 0, err
		}

		if done {
			return ret, nil
		}

		fromLabel = block.Label

		block = blockByLabel(fn, next)
		if block == nil {
			return 0, fmt.Errorf("branch to undefined block %q in %s", next, fn.Name)
		}
	}
}

// runBlockSafe wraps runBlock with a recover that implements
// hc_throw_i64's unwind: a panic carrying *runtimeshim.ThrownException
// is caught here, and if this activation has an open try region
// (fr.catchStack is non-empty), control resumes at that region's catch
// block exactly as if hc_try_push's setjmp-equivalent had returned
// nonzero. An activation with no open try region re-panics so an
// enclosing caller's own runBlockSafe gets a chance to catch it -
// nested callFunction invocations are separate Go stack frames, so this
// walks back up the real call stack the same way a native longjmp
// would walk back up real stack frames.
func (c *execCtx) runBlockSafe(fn *ir.Function, b *ir.BasicBlock, fr *frame, fromLabel string) (next string, ret uint64, done bool, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		te, ok := r.(*runtimeshim.ThrownException)
		if !ok {
			panic(r)
		}

		if len(fr.catchStack) == 0 {
			panic(r)
		}

		next = fr.catchStack[len(fr.catchStack)-1]
		fr.catchStack = fr.catchStack[:len(fr.catchStack)-1]
		fr.vals["__thrown_payload"] = uint64(te.Payload)
		ret, done, err = 0, false, nil
	}()

	return c.runBlock(fn, b, fr, fromLabel)
}

// catchLabelAfter finds the catch-block label for a try region whose
// hc_try_push call sits at idx: emitTryCatch always follows that call
// with "icmp eq i64 %disc, 0" then "br i1 %cond, label %try, label
// %catch", so the comparison's False edge is the catch block.
func catchLabelAfter(b *ir.BasicBlock, idx int) string {
	if idx+2 >= len(b.Instrs) {
		return ""
	}

	if _, ok := b.Instrs[idx+1].(*ir.ICmp); !ok {
		return ""
	}

	cb, ok := b.Instrs[idx+2].(*ir.CondBr)
	if !ok {
		return ""
	}

	return cb.False
}

func blockByLabel(fn *ir.Function, label string) *ir.BasicBlock {
	for _, b := range fn.Blocks {
		if b.Label == label {
			return b
		}
	}

	return nil
}

// runBlock executes one basic block's straight-line instructions and
// reports how control leaves it: either a successor label to jump to,
// or a final return value.
func (c *execCtx) runBlock(fn *ir.Function, b *ir.BasicBlock, fr *frame, fromLabel string) (next string, ret uint64, done bool, err error) {
	for idx, instr := range b.Instrs {
		switch in := instr.(type) {
		case *ir.Alloca:
			fr.vals[in.Dst] = uint64(c.s.arena.Alloc(c.s.layouts.sizeOf(in.Type)))

		case *ir.Store:
			ptr := c.eval("ptr", in.Ptr, fr)
			v := c.eval(in.Ty, in.Val, fr)
			c.s.arena.storeSized(int64(ptr), int(c.s.layouts.sizeOf(in.Ty)), v)

		case *ir.Load:
			ptr := c.eval("ptr", in.Ptr, fr)
			fr.vals[in.Dst] = c.s.arena.loadSized(int64(ptr), int(c.s.layouts.sizeOf(in.Ty)))

		case *ir.Br:
			return in.Target, 0, false, nil

		case *ir.CondBr:
			if c.eval("i1", in.Cond, fr) != 0 {
				return in.True, 0, false, nil
			}

			return in.False, 0, false, nil

		case *ir.Ret:
			return "", c.eval(in.Ty, in.Val, fr), true, nil

		case ir.RetVoid:
			return "", 0, true, nil

		case ir.Unreachable:
			return "", 0, true, nil

		case *ir.ICmp:
			lhs := c.eval(in.Ty, in.LHS, fr)
			rhs := c.eval(in.Ty, in.RHS, fr)
			fr.vals[in.Dst] = boolToU64(evalICmp(in.Pred, lhs, rhs, intWidthOf(in.Ty)))

		case *ir.FCmp:
			lhs := bitsToFloat64(c.eval(in.Ty, in.LHS, fr))
			rhs := bitsToFloat64(c.eval(in.Ty, in.RHS, fr))
			fr.vals[in.Dst] = boolToU64(evalFCmp(in.Pred, lhs, rhs))

		case *ir.BinOp:
			lhs := c.eval(in.Ty, in.LHS, fr)
			rhs := c.eval(in.Ty, in.RHS, fr)
			fr.vals[in.Dst] = evalBinOp(in.Op, in.Ty, lhs, rhs)

		case *ir.Cast:
			fr.vals[in.Dst] = evalCast(in.Op, in.FromTy, in.ToTy, c.eval(in.FromTy, in.Val, fr))

		case *ir.GEP:
			fr.vals[in.Dst] = uint64(c.evalGEP(in, fr))

		case *ir.Call:
			v, err := c.evalCall(fn, in, fr)
			if err != nil {
				return "", 0, false, err
			}

			if in.Dst != "" {
				fr.vals[in.Dst] = v
			}

			if in.Callee == "hc_try_push" {
				if label := catchLabelAfter(b, idx); label != "" {
					fr.catchStack = append(fr.catchStack, label)
				}
			} else if in.Callee == "hc_try_pop" && len(fr.catchStack) > 0 {
				fr.catchStack = fr.catchStack[:len(fr.catchStack)-1]
			}

		case *ir.AtomicRMW:
			ptr := c.eval("ptr", in.Ptr, fr)
			val := c.eval(in.Ty, in.Val, fr)
			fr.vals[in.Dst] = c.s.arena.atomicRMW(int64(ptr), int(c.s.layouts.sizeOf(in.Ty)), in.Op, val)

		case *ir.InlineAsm:
			// No real machine to execute a raw asm template against;
			// treated as a side-effect-free no-op returning zero, same
			// as an unsupported target in a real backend would stub it.
			if in.Dst != "" {
				fr.vals[in.Dst] = 0
			}

		case *ir.Phi:
			for _, inc := range in.Incoming {
				if inc.Block == fromLabel {
					fr.vals[in.Dst] = c.eval(in.Ty, inc.Val, fr)
					break
				}
			}

		case *ir.Comment:
			// no-op

		default:
			return "", 0, false, fmt.Errorf("unhandled IR instruction %T", in)
		}
	}

	return "", 0, false, fmt.Errorf("block %q in %s fell off the end with no terminator", b.Label, fn.Name)
}

// eval resolves one operand string to its raw bit pattern: an SSA
// register, a global/function address, or a literal.
func (c *execCtx) eval(ty, text string, fr *frame) uint64 {
	text = strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "%"):
		return fr.vals[text[1:]]

	case strings.HasPrefix(text, "@"):
		name := text[1:]
		if addr, ok := c.s.funcAddr[name]; ok {
			return uint64(addr)
		}

		addr := c.s.globalAddr[name]
		if ty == "ptr" {
			return uint64(addr)
		}

		// A non-pointer-typed reference to a global (e.g. the reflection
		// table's element-count argument) names its stored scalar value,
		// not its address - there is no separate load here because the
		// builder only ever does this for compile-time-constant scalars.
		return c.s.arena.loadSized(addr, int(c.s.layouts.sizeOf(ty)))

	case text == "null":
		return 0

	case text == "true":
		return 1

	case text == "false":
		return 0

	case ty == "double":
		f, _ := strconv.ParseFloat(text, 64)
		return float64bits(f)

	default:
		v, _ := strconv.ParseInt(text, 0, 64)
		return uint64(v)
	}
}

func intWidthOf(ty string) int {
	switch ty {
	case "i1":
		return 1
	case "i8":
		return 8
	case "i16":
		return 16
	case "i32":
		return 32
	default:
		return 64
	}
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
