package ir

import (
	"fmt"
	"strings"
)

// Alloca reserves stack storage in the current function's entry block;
// spec §4.6's parameter-alloca and local-variable-alloca convention
// both route through this instruction.
type Alloca struct {
	Dst  string
	Type string
}

func (a *Alloca) String() string { return fmt.Sprintf("%%%s = alloca %s", a.Dst, a.Type) }

// Store writes Val of type Ty to the pointer Ptr.
type Store struct {
	Ty, Val string
	Ptr     string
}

func (s *Store) String() string { return fmt.Sprintf("store %s %s, ptr %s", s.Ty, s.Val, s.Ptr) }

// Load reads a value of type Ty out of the pointer Ptr into Dst.
type Load struct {
	Dst, Ty string
	Ptr     string
}

func (l *Load) String() string { return fmt.Sprintf("%%%s = load %s, ptr %s", l.Dst, l.Ty, l.Ptr) }

// Br is an unconditional branch to Target.
type Br struct{ Target string }

func (b *Br) String() string { return fmt.Sprintf("br label %%%s", b.Target) }

// CondBr branches to True or False on the i1 value Cond.
type CondBr struct {
	Cond        string
	True, False string
}

func (c *CondBr) String() string {
	return fmt.Sprintf("br i1 %s, label %%%s, label %%%s", c.Cond, c.True, c.False)
}

// Ret returns Val of type Ty from the enclosing function.
type Ret struct{ Ty, Val string }

func (r *Ret) String() string { return fmt.Sprintf("ret %s %s", r.Ty, r.Val) }

// RetVoid returns from a U0-returning function.
type RetVoid struct{}

func (RetVoid) String() string { return "ret void" }

// Unreachable terminates a block that control can never fall through
// (the end of a Throw's lowering).
type Unreachable struct{}

func (Unreachable) String() string { return "unreachable" }

// ICmp computes a boolean (i1) comparison between two values of type
// Ty under predicate Pred (eq/ne/slt/sle/sgt/sge/ult/ule/ugt/uge).
type ICmp struct {
	Dst, Pred, Ty string
	LHS, RHS      string
}

func (c *ICmp) String() string {
	return fmt.Sprintf("%%%s = icmp %s %s %s, %s", c.Dst, c.Pred, c.Ty, c.LHS, c.RHS)
}

// FCmp is ICmp's floating-point counterpart for F64 comparisons.
type FCmp struct {
	Dst, Pred, Ty string
	LHS, RHS      string
}

func (c *FCmp) String() string {
	return fmt.Sprintf("%%%s = fcmp %s %s %s, %s", c.Dst, c.Pred, c.Ty, c.LHS, c.RHS)
}

// BinOp is an arithmetic/bitwise binary instruction (add/sub/mul/
// sdiv/srem/and/or/xor/shl/ashr/fadd/fsub/fmul/fdiv) over two values of
// type Ty.
type BinOp struct {
	Dst, Op, Ty string
	LHS, RHS    string
}

func (b *BinOp) String() string {
	return fmt.Sprintf("%%%s = %s %s %s, %s", b.Dst, b.Op, b.Ty, b.LHS, b.RHS)
}

// Cast covers every unary value conversion the builder needs: trunc,
// sext, zext, fptosi, sitofp, ptrtoint, inttoptr, bitcast.
type Cast struct {
	Dst, Op     string
	FromTy, Val string
	ToTy        string
}

func (c *Cast) String() string {
	return fmt.Sprintf("%%%s = %s %s %s to %s", c.Dst, c.Op, c.FromTy, c.Val, c.ToTy)
}

// GEP computes a pointer offset. Indices is a (type, value) list, the
// first always i64-typed per LLVM GEP convention (the base-pointer
// step), subsequent ones i32 for struct field indices.
type GEP struct {
	Dst        string
	ElemTy     string
	Ptr        string
	IndexTypes []string
	Indices    []string
}

func (g *GEP) String() string {
	parts := make([]string, len(g.Indices))
	for i := range g.Indices {
		parts[i] = fmt.Sprintf("%s %s", g.IndexTypes[i], g.Indices[i])
	}

	return fmt.Sprintf("%%%s = getelementptr %s, ptr %s, %s", g.Dst, g.ElemTy, g.Ptr, strings.Join(parts, ", "))
}

// Call invokes Callee (a function name or an SSA value holding a
// function pointer). Dst is empty for a void call.
type Call struct {
	Dst, RetTy string
	Callee     string
	Indirect   bool
	ArgTypes   []string
	Args       []string
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i := range c.Args {
		args[i] = fmt.Sprintf("%s %s", c.ArgTypes[i], c.Args[i])
	}

	callee := "@" + c.Callee
	if c.Indirect {
		callee = c.Callee
	}

	if c.Dst == "" {
		return fmt.Sprintf("call %s %s(%s)", c.RetTy, callee, strings.Join(args, ", "))
	}

	return fmt.Sprintf("%%%s = call %s %s(%s)", c.Dst, c.RetTy, callee, strings.Join(args, ", "))
}

// AtomicRMW implements the restricted Lock-statement body: a single
// atomic read-modify-write on a pointer, per spec §4.6's Lock lowering.
type AtomicRMW struct {
	Dst, Op, Ty string
	Ptr, Val    string
}

func (a *AtomicRMW) String() string {
	return fmt.Sprintf("%%%s = atomicrmw %s ptr %s, %s %s seq_cst", a.Dst, a.Op, a.Ptr, a.Ty, a.Val)
}

// InlineAsm emits a raw asm template with its constraint string and
// operand list, matching the statement-level inline-asm lowering.
type InlineAsm struct {
	Dst, RetTy          string
	Template, Constraints string
	ArgTypes            []string
	Args                []string
}

func (a *InlineAsm) String() string {
	args := make([]string, len(a.Args))
	for i := range a.Args {
		args[i] = fmt.Sprintf("%s %s", a.ArgTypes[i], a.Args[i])
	}

	call := fmt.Sprintf("call %s asm %q, %q(%s)", a.RetTy, a.Template, a.Constraints, strings.Join(args, ", "))
	if a.Dst == "" {
		return call
	}

	return fmt.Sprintf("%%%s = %s", a.Dst, call)
}

// PhiIncoming is one (value, predecessor-block) pair in a Phi.
type PhiIncoming struct{ Val, Block string }

// Phi merges values from multiple predecessor blocks; used to collapse
// the short-circuit branches of && and || into a single boolean.
type Phi struct {
	Dst, Ty  string
	Incoming []PhiIncoming
}

func (p *Phi) String() string {
	parts := make([]string, len(p.Incoming))
	for i, inc := range p.Incoming {
		parts[i] = fmt.Sprintf("[ %s, %%%s ]", inc.Val, inc.Block)
	}

	return fmt.Sprintf("%%%s = phi %s %s", p.Dst, p.Ty, strings.Join(parts, ", "))
}

// Comment is a non-executable annotation line, used sparingly to mark
// switch test-chain blocks and try/catch frame setup the way the
// teacher's lir package threads debug labels through its own Insns.
type Comment struct{ Text string }

func (c *Comment) String() string { return "; " + c.Text }
