package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/hir"
)

// emitStmts lowers a statement list into the current block, following
// blocks and labels as If/While/DoWhile/Switch/TryCatch introduce them.
func (b *builder) emitStmts(stmts []hir.Stmt) {
	for i := range stmts {
		b.emitStmt(&stmts[i])
	}
}

func (b *builder) emitStmt(s *hir.Stmt) {
	switch s.Kind {
	case hir.StmtVarDecl:
		b.emitVarDecl(s)
	case hir.StmtAssign:
		b.emitAssign(s)
	case hir.StmtReturn:
		b.emitReturnStmt(s)
	case hir.StmtExpr:
		b.emitExpr(s.Expr)
	case hir.StmtNoParenCall:
		b.emitExpr(s.Expr)
	case hir.StmtPrint:
		b.emitPrint(s)
	case hir.StmtLock:
		b.emitLock(s)
	case hir.StmtThrow:
		b.emitThrow(s)
	case hir.StmtTryCatch:
		b.emitTryCatch(s)
	case hir.StmtBreak:
		b.emitBreak(s)
	case hir.StmtSwitch:
		b.emitSwitch(s)
	case hir.StmtIf:
		b.emitIf(s)
	case hir.StmtWhile:
		b.emitWhile(s)
	case hir.StmtDoWhile:
		b.emitDoWhile(s)
	case hir.StmtLabel:
		b.emitLabel(s)
	case hir.StmtGoto:
		b.emitGoto(s)
	case hir.StmtInlineAsm:
		b.emitInlineAsm(s)
	case hir.StmtMetadataDecl, hir.StmtLinkageDecl:
		// handled at module scope in build.go; no per-function effect.
	default:
		b.errorf("unsupported statement kind in IR lowering: %d", int(s.Kind))
	}
}

// emitVarDecl allocates a stack slot for an ordinary local, or - for a
// static local - a private module global that outlives the call, named
// by function and variable so two functions' same-named statics never
// collide. A static local's non-constant initializer only runs once on
// the real TempleOS runtime; this builder folds constant initializers
// and zero-initializes the rest, leaving guarded first-call init out of
// scope for this IR.
func (b *builder) emitVarDecl(s *hir.Stmt) {
	ty := b.irType(s.Type)

	if s.DeclStorage == "static-local" {
		name := b.fn.Name + "." + s.Name

		g := &Global{Name: name, Type: ty, Linkage: Private}
		if hasExpr(s.Expr) && s.DeclHasConstInitializer {
			g.Initializer = b.foldConstExpr(s.Expr, ty)
		} else {
			g.Initializer = zeroInitializer(ty)
		}

		b.mod.Globals = append(b.mod.Globals, g)
		b.locals[s.Name] = localVar{Ptr: "@" + name, Type: ty}

		return
	}

	slot := b.newValue()
	b.emit(&Alloca{Dst: slot, Type: ty})
	b.locals[s.Name] = localVar{Ptr: "%" + slot, Type: ty}

	if hasExpr(s.Expr) {
		val, valTy := b.emitExpr(s.Expr)
		val = b.coerce(val, valTy, ty)
		b.emit(&Store{Ty: ty, Val: val, Ptr: "%" + slot})
	} else {
		b.emit(&Store{Ty: ty, Val: zeroInitializer(ty), Ptr: "%" + slot})
	}
}

// emitAssign lowers the simple-identifier assignment form HIR gives its
// own Kind (StmtAssign); member/index/lane assignment targets instead
// arrive as a StmtExpr wrapping an ExprAssign, handled in expr.go.
func (b *builder) emitAssign(s *hir.Stmt) {
	addr, addrTy := b.lvalue(s.Name)

	rhsVal, rhsTy := b.emitExpr(s.Expr)

	if s.AssignOp != "" && s.AssignOp != "=" {
		cur := b.newValue()
		b.emit(&Load{Dst: cur, Ty: addrTy, Ptr: addr})
		rhsVal = b.coerce(rhsVal, rhsTy, addrTy)
		rhsVal = b.emitBinOpValue(compoundOp(s.AssignOp), addrTy, "%"+cur, rhsVal)
	} else {
		rhsVal = b.coerce(rhsVal, rhsTy, addrTy)
	}

	b.emit(&Store{Ty: addrTy, Val: rhsVal, Ptr: addr})
}

func compoundOp(assignOp string) string {
	if len(assignOp) > 1 && assignOp[len(assignOp)-1] == '=' {
		return assignOp[:len(assignOp)-1]
	}

	return "+"
}

func (b *builder) emitReturnStmt(s *hir.Stmt) {
	if !hasExpr(s.Expr) {
		b.emit(RetVoid{})
		return
	}

	val, ty := b.emitExpr(s.Expr)
	val = b.coerce(val, ty, b.fn.ReturnType)
	b.emit(&Ret{Ty: b.fn.ReturnType, Val: val})
}

// emitPrint lowers a Print statement to hc_print_fmt(fmt, args...), the
// runtime entry point original_source/runtime/hc_runtime.h declares for
// HolyC's printf-style formatted output - except the char-literal form
// (`'A';`), which calls hc_put_char(c) directly instead of
// routing a decoded char code through hc_print_fmt's ptr/format-string
// argument.
func (b *builder) emitPrint(s *hir.Stmt) {
	if isCharLiteralText(s.Name) {
		b.emitPutChar(s)
		return
	}

	b.ensureFunctionDecl("hc_print_fmt", "void", []string{"ptr"}, true)

	fmtVal, _ := b.emitExpr(s.PrintFormat)

	argTypes := []string{"ptr"}
	args := []string{fmtVal}

	for _, a := range s.PrintArgs {
		v, ty := b.emitExpr(a)
		argTypes = append(argTypes, ty)
		args = append(args, v)
	}

	b.emit(&Call{RetTy: "void", Callee: "hc_print_fmt", ArgTypes: argTypes, Args: args})
}

func isCharLiteralText(name string) bool {
	return len(name) > 0 && name[0] == '\''
}

func (b *builder) emitPutChar(s *hir.Stmt) {
	b.ensureFunctionDecl("hc_put_char", "void", []string{"i64"}, false)

	val, ty := b.emitExpr(s.PrintFormat)
	val = b.coerce(val, ty, "i64")

	b.emit(&Call{RetTy: "void", Callee: "hc_put_char", ArgTypes: []string{"i64"}, Args: []string{val}})
}

// emitLock lowers the restricted single-statement Lock body to one
// atomic read-modify-write, per spec §4.6.
func (b *builder) emitLock(s *hir.Stmt) {
	if len(s.FlowThen) != 1 {
		b.errorf("lock body must be a single compound assignment")
		return
	}

	inner := s.FlowThen[0]

	var addr, addrTy, op string

	var rhs hir.Expr

	switch {
	case inner.Kind == hir.StmtAssign:
		addr, addrTy = b.lvalue(inner.Name)
		op, rhs = inner.AssignOp, inner.Expr
	case inner.Kind == hir.StmtExpr && inner.Expr.Kind == hir.ExprAssign:
		addr, addrTy = b.emitLvalueAddr(inner.Expr.Children[0])
		op, rhs = inner.Expr.Text, inner.Expr.Children[1]
	default:
		b.errorf("lock body must be a single compound assignment")
		return
	}

	rhsVal, rhsTy := b.emitExpr(rhs)
	rhsVal = b.coerce(rhsVal, rhsTy, addrTy)

	dst := b.newValue()
	b.emit(&AtomicRMW{Dst: dst, Op: atomicRMWOp(op), Ty: addrTy, Ptr: addr, Val: rhsVal})
}

func atomicRMWOp(assignOp string) string {
	switch compoundOp(assignOp) {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "&":
		return "and"
	case "|":
		return "or"
	case "^":
		return "xor"
	default:
		return "xchg"
	}
}

// emitThrow lowers Throw(expr) to hc_throw_i64, matching the runtime's
// single i64 exception-payload ABI.
func (b *builder) emitThrow(s *hir.Stmt) {
	b.ensureFunctionDecl("hc_throw_i64", "void", []string{"i64"}, false)

	val, ty := b.emitExpr(s.Expr)
	val = b.coerce(val, ty, "i64")

	b.emit(&Call{RetTy: "void", Callee: "hc_throw_i64", ArgTypes: []string{"i64"}, Args: []string{val}})
	b.emit(Unreachable{})
}

// emitTryCatch lowers to the hc_try_push/hc_try_pop setjmp-equivalent
// pair: hc_try_push itself performs (and returns the outcome of) the
// underlying setjmp, so no dedicated setjmp intrinsic is needed in this
// IR - a push returning 0 took the direct path into the try body, a
// nonzero return arrived via hc_throw_i64's unwind into the catch body.
func (b *builder) emitTryCatch(s *hir.Stmt) {
	b.ensureFunctionDecl("hc_try_push", "i64", []string{"ptr"}, false)
	b.ensureFunctionDecl("hc_try_pop", "void", nil, false)
	b.ensureTryFrameStruct()

	frame := b.newValue()
	b.emit(&Alloca{Dst: frame, Type: "%hc_try_frame"})

	disc := b.newValue()
	b.emit(&Call{Dst: disc, RetTy: "i64", Callee: "hc_try_push", ArgTypes: []string{"ptr"}, Args: []string{"%" + frame}})

	tryBlk := b.newBlock(b.newBlockLabel("try.body"))
	catchBlk := b.newBlock(b.newBlockLabel("try.catch"))
	endBlk := b.newBlock(b.newBlockLabel("try.end"))

	cond := b.newValue()
	b.emit(&ICmp{Dst: cond, Pred: "eq", Ty: "i64", LHS: "%" + disc, RHS: "0"})
	b.emit(&CondBr{Cond: "%" + cond, True: tryBlk.Label, False: catchBlk.Label})

	b.setBlock(tryBlk)
	b.emitStmts(s.TryBody)
	b.emit(&Call{RetTy: "void", Callee: "hc_try_pop"})
	b.emit(&Br{Target: endBlk.Label})

	b.setBlock(catchBlk)
	b.emitStmts(s.CatchBody)
	b.emit(&Br{Target: endBlk.Label})

	b.setBlock(endBlk)
}

func (b *builder) emitBreak(s *hir.Stmt) {
	if len(b.breakTargets) == 0 {
		b.errorf("break outside of a loop or switch")
		return
	}

	b.emit(&Br{Target: b.breakTargets[len(b.breakTargets)-1]})
}

func (b *builder) pushBreakTarget(label string) { b.breakTargets = append(b.breakTargets, label) }

func (b *builder) popBreakTarget() { b.breakTargets = b.breakTargets[:len(b.breakTargets)-1] }

func (b *builder) emitIf(s *hir.Stmt) {
	condVal, condTy := b.emitExpr(s.FlowCond)
	condVal = b.toBool(condVal, condTy)

	thenBlk := b.newBlock(b.newBlockLabel("if.then"))

	var elseBlk *BasicBlock
	if len(s.FlowElse) > 0 {
		elseBlk = b.newBlock(b.newBlockLabel("if.else"))
	}

	endBlk := b.newBlock(b.newBlockLabel("if.end"))

	falseTarget := endBlk.Label
	if elseBlk != nil {
		falseTarget = elseBlk.Label
	}

	b.emit(&CondBr{Cond: condVal, True: thenBlk.Label, False: falseTarget})

	b.setBlock(thenBlk)
	b.emitStmts(s.FlowThen)
	b.emit(&Br{Target: endBlk.Label})

	if elseBlk != nil {
		b.setBlock(elseBlk)
		b.emitStmts(s.FlowElse)
		b.emit(&Br{Target: endBlk.Label})
	}

	b.setBlock(endBlk)
}

func (b *builder) emitWhile(s *hir.Stmt) {
	condBlk := b.newBlock(b.newBlockLabel("while.cond"))
	bodyBlk := b.newBlock(b.newBlockLabel("while.body"))
	endBlk := b.newBlock(b.newBlockLabel("while.end"))

	b.emit(&Br{Target: condBlk.Label})

	b.setBlock(condBlk)

	condVal, condTy := b.emitExpr(s.FlowCond)
	condVal = b.toBool(condVal, condTy)
	b.emit(&CondBr{Cond: condVal, True: bodyBlk.Label, False: endBlk.Label})

	b.setBlock(bodyBlk)
	b.pushBreakTarget(endBlk.Label)
	b.emitStmts(s.FlowThen)
	b.popBreakTarget()
	b.emit(&Br{Target: condBlk.Label})

	b.setBlock(endBlk)
}

func (b *builder) emitDoWhile(s *hir.Stmt) {
	bodyBlk := b.newBlock(b.newBlockLabel("do.body"))
	condBlk := b.newBlock(b.newBlockLabel("do.cond"))
	endBlk := b.newBlock(b.newBlockLabel("do.end"))

	b.emit(&Br{Target: bodyBlk.Label})

	b.setBlock(bodyBlk)
	b.pushBreakTarget(endBlk.Label)
	b.emitStmts(s.FlowThen)
	b.popBreakTarget()
	b.emit(&Br{Target: condBlk.Label})

	b.setBlock(condBlk)

	condVal, condTy := b.emitExpr(s.FlowCond)
	condVal = b.toBool(condVal, condTy)
	b.emit(&CondBr{Cond: condVal, True: bodyBlk.Label, False: endBlk.Label})

	b.setBlock(endBlk)
}

// emitSwitch lowers to a linear test chain: every case, including a
// null case, gets its own test block comparing the switch value
// against its bounds (a range-case tests both bounds). A null case's
// value resolves to last_end+1 - the value one past whatever the
// preceding case (null or not) ended on - computed here the same way
// original_source/lowering/llvm_irbuilder_backend.cpp resolves it, so
// a null case is reached by a direct match, not only by fallthrough
// from the previous body. The default body - whose original source
// position HIR's flat SwitchDefault field doesn't preserve - is
// placed last in the chain.
func (b *builder) emitSwitch(s *hir.Stmt) {
	id := b.newBlockLabel("sw")

	condVal, condTy := b.emitExpr(s.SwitchCond)

	caseBegin := make([]int64, len(s.SwitchCaseBodies))
	caseEnd := make([]int64, len(s.SwitchCaseBodies))

	var lastEnd int64 = -1

	for i := range s.SwitchCaseBodies {
		isNull := i < len(s.SwitchCaseFlags) && s.SwitchCaseFlags[i]&1 != 0
		isRange := i < len(s.SwitchCaseFlags) && s.SwitchCaseFlags[i]&2 != 0

		switch {
		case isNull:
			caseBegin[i] = lastEnd + 1
			caseEnd[i] = caseBegin[i]
		case isRange:
			caseBegin[i] = s.SwitchCaseBegin[i]
			caseEnd[i] = s.SwitchCaseEnd[i]
		default:
			caseBegin[i] = s.SwitchCaseBegin[i]
			caseEnd[i] = s.SwitchCaseBegin[i]
		}

		lastEnd = caseEnd[i]
	}

	testBlocks := make([]*BasicBlock, len(s.SwitchCaseBodies))
	bodyBlocks := make([]*BasicBlock, len(s.SwitchCaseBodies))

	for i := range s.SwitchCaseBodies {
		testBlocks[i] = b.newBlock(fmt.Sprintf("%s.test%d", id, i))
		bodyBlocks[i] = b.newBlock(fmt.Sprintf("%s.body%d", id, i))
	}

	var defaultBlk *BasicBlock
	if len(s.SwitchDefault) > 0 {
		defaultBlk = b.newBlock(id + ".default")
	}

	endBlk := b.newBlock(id + ".end")

	firstTarget := endBlk.Label

	switch {
	case len(testBlocks) > 0:
		firstTarget = testBlocks[0].Label
	case defaultBlk != nil:
		firstTarget = defaultBlk.Label
	}

	b.emit(&Br{Target: firstTarget})

	for i := range s.SwitchCaseBodies {
		isRange := i < len(s.SwitchCaseFlags) && s.SwitchCaseFlags[i]&2 != 0

		nextTarget := endBlk.Label

		switch {
		case i+1 < len(testBlocks):
			nextTarget = testBlocks[i+1].Label
		case defaultBlk != nil:
			nextTarget = defaultBlk.Label
		}

		b.setBlock(testBlocks[i])

		lo := strconv.FormatInt(caseBegin[i], 10)

		eq := b.newValue()
		b.emit(&ICmp{Dst: eq, Pred: "eq", Ty: condTy, LHS: condVal, RHS: lo})
		matched := "%" + eq

		if isRange {
			hi := strconv.FormatInt(caseEnd[i], 10)

			ge := b.newValue()
			b.emit(&ICmp{Dst: ge, Pred: "sge", Ty: condTy, LHS: condVal, RHS: lo})

			le := b.newValue()
			b.emit(&ICmp{Dst: le, Pred: "sle", Ty: condTy, LHS: condVal, RHS: hi})

			and := b.newValue()
			b.emit(&BinOp{Dst: and, Op: "and", Ty: "i1", LHS: "%" + ge, RHS: "%" + le})
			matched = "%" + and
		}

		b.emit(&CondBr{Cond: matched, True: bodyBlocks[i].Label, False: nextTarget})

		b.setBlock(bodyBlocks[i])
		b.pushBreakTarget(endBlk.Label)
		b.emitStmts(s.SwitchCaseBodies[i])
		b.popBreakTarget()

		fallTo := endBlk.Label
		if i+1 < len(bodyBlocks) {
			fallTo = bodyBlocks[i+1].Label
		} else if defaultBlk != nil {
			fallTo = defaultBlk.Label
		}

		b.emit(&Br{Target: fallTo})
	}

	if defaultBlk != nil {
		b.setBlock(defaultBlk)
		b.pushBreakTarget(endBlk.Label)
		b.emitStmts(s.SwitchDefault)
		b.popBreakTarget()
		b.emit(&Br{Target: endBlk.Label})
	}

	b.setBlock(endBlk)
}

func (b *builder) emitLabel(s *hir.Stmt) {
	blk := b.labelBlockFor(s.LabelName)

	if !blockTerminated(b.block) {
		b.emit(&Br{Target: blk.Label})
	}

	b.setBlock(blk)
}

func (b *builder) emitGoto(s *hir.Stmt) {
	blk := b.labelBlockFor(s.GotoTarget)
	b.emit(&Br{Target: blk.Label})
}

// emitInlineAsm passes the statement's template/constraint/operand
// triple straight through to an InlineAsm instruction.
func (b *builder) emitInlineAsm(s *hir.Stmt) {
	argTypes := make([]string, 0, len(s.AsmOperands))
	args := make([]string, 0, len(s.AsmOperands))

	for i, op := range s.AsmOperands {
		if i < len(s.AsmOperandPresent) && !s.AsmOperandPresent[i] {
			continue
		}

		v, ty := b.emitExpr(op)
		argTypes = append(argTypes, ty)
		args = append(args, v)
	}

	b.emit(&InlineAsm{
		RetTy: "void", Template: s.AsmTemplate, Constraints: strings.Join(s.AsmConstraints, ","),
		ArgTypes: argTypes, Args: args,
	})
}
