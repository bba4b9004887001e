package ir

import (
	"strconv"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/hir"
)

func itoa(n int) string { return strconv.Itoa(n) }

// emitExpr lowers an expression to a (value, ir-type) pair, emitting
// whatever instructions are needed into the current block.
func (b *builder) emitExpr(e hir.Expr) (string, string) {
	switch e.Kind {
	case hir.ExprIntLiteral:
		v, ok := tryParseIntText(e.Text)
		if !ok {
			b.errorf("invalid integer literal in IR lowering: %s", e.Text)
		}

		return strconv.FormatInt(v, 10), "i64"

	case hir.ExprStringLiteral:
		return "@" + b.internString(decodeStringLiteral(e.Text)), "ptr"

	case hir.ExprDollar:
		// The raw "current address" operand has no meaning before this
		// textual IR is laid out into real machine code; callers of
		// Build get a stable placeholder instead of a bogus address.
		return "0", "i64"

	case hir.ExprVar:
		addr, ty := b.lvalue(e.Text)

		dst := b.newValue()
		b.emit(&Load{Dst: dst, Ty: ty, Ptr: addr})

		return "%" + dst, ty

	case hir.ExprAssign:
		return b.emitExprAssign(e)

	case hir.ExprUnary:
		return b.emitUnary(e)

	case hir.ExprBinary:
		return b.emitBinary(e)

	case hir.ExprCast:
		childVal, childTy := b.emitExpr(e.Children[0])
		toTy := b.irType(e.Text)

		return b.coerce(childVal, childTy, toTy), toTy

	case hir.ExprPostfix:
		return b.emitPostfix(e)

	case hir.ExprLane:
		return b.emitLaneLoad(e)

	case hir.ExprMember:
		addr, ty := b.emitMemberAddr(e)

		dst := b.newValue()
		b.emit(&Load{Dst: dst, Ty: ty, Ptr: addr})

		return "%" + dst, ty

	case hir.ExprIndex:
		addr, ty := b.emitIndexAddr(e)

		dst := b.newValue()
		b.emit(&Load{Dst: dst, Ty: ty, Ptr: addr})

		return "%" + dst, ty

	case hir.ExprCall:
		return b.emitCall(e)

	case hir.ExprComma:
		var val, ty string

		for _, child := range e.Children {
			val, ty = b.emitExpr(child)
		}

		return val, ty
	}

	b.errorf("unsupported expression kind in IR lowering: %d", int(e.Kind))

	return "0", "i64"
}

// emitLvalueAddr resolves e to an address and the ir type stored at it,
// covering every expression form HolyC allows on an assignment's left
// side or as the operand of & / ++ / --.
func (b *builder) emitLvalueAddr(e hir.Expr) (string, string) {
	switch e.Kind {
	case hir.ExprVar:
		return b.lvalue(e.Text)

	case hir.ExprUnary:
		if e.Text == "*" {
			val, _ := b.emitExpr(e.Children[0])
			return val, b.irType(e.Type)
		}

	case hir.ExprMember:
		return b.emitMemberAddr(e)

	case hir.ExprIndex:
		return b.emitIndexAddr(e)
	}

	b.errorf("expression is not assignable in IR lowering")

	return "", "i64"
}

// aggregateNameOf strips one pointer level (member access through a
// pointer dereferences implicitly) before resolving the struct name.
func (b *builder) aggregateNameOf(hirType string) string {
	t := hirType
	if ast.PointerDepth(t) > 0 {
		t = stripOnePointerLevel(t)
	}

	return normalizeAggregateName(t)
}

// emitMemberAddr resolves a.b / a->b to a field address. Unions collapse
// every member onto the same base address (store/load use the member's
// own type directly, the same way real codegen treats a union as one
// block of storage reinterpreted per access) while classes GEP into the
// named struct by field index.
func (b *builder) emitMemberAddr(e hir.Expr) (string, string) {
	base := e.Children[0]

	var baseAddr string

	if ast.PointerDepth(base.Type) > 0 {
		baseAddr, _ = b.emitExpr(base)
	} else {
		baseAddr, _ = b.emitLvalueAddr(base)
	}

	structName := b.aggregateNameOf(base.Type)

	layout, ok := b.structs[structName]
	if !ok {
		b.errorf("unknown aggregate type in member access: %s", structName)
		return "", "i64"
	}

	fieldIR, ok := layout.FieldIR[e.Text]
	if !ok {
		b.errorf("unknown field %q on %s", e.Text, structName)
		return "", "i64"
	}

	if layout.IsUnion {
		return baseAddr, fieldIR
	}

	dst := b.newValue()
	b.emit(&GEP{
		Dst: dst, ElemTy: "%" + structName, Ptr: baseAddr,
		IndexTypes: []string{"i64", "i32"}, Indices: []string{"0", itoa(layout.FieldIdx[e.Text])},
	})

	return "%" + dst, fieldIR
}

// emitIndexAddr resolves a[i] via a single-index GEP; HolyC arrays
// decay to pointers, so the base is always evaluated as an rvalue.
func (b *builder) emitIndexAddr(e hir.Expr) (string, string) {
	baseVal, _ := b.emitExpr(e.Children[0])
	idxVal, idxTy := b.emitExpr(e.Children[1])
	idxVal = b.coerce(idxVal, idxTy, "i64")

	elemTy := b.irType(e.Type)

	dst := b.newValue()
	b.emit(&GEP{Dst: dst, ElemTy: elemTy, Ptr: baseVal, IndexTypes: []string{"i64"}, Indices: []string{idxVal}})

	return "%" + dst, elemTy
}

// emitExprAssign lowers a general (non-simple-identifier) assignment
// expression: member/index/lane targets, and compound-assignment ops.
func (b *builder) emitExprAssign(e hir.Expr) (string, string) {
	lhs, rhs := e.Children[0], e.Children[1]

	if lhs.Kind == hir.ExprLane {
		return b.emitLaneAssign(lhs, rhs, e.Text)
	}

	addr, addrTy := b.emitLvalueAddr(lhs)

	rhsVal, rhsTy := b.emitExpr(rhs)
	rhsVal = b.coerce(rhsVal, rhsTy, addrTy)

	if e.Text != "" && e.Text != "=" {
		cur := b.newValue()
		b.emit(&Load{Dst: cur, Ty: addrTy, Ptr: addr})
		rhsVal = b.emitBinOpValue(compoundOp(e.Text), addrTy, "%"+cur, rhsVal)
	}

	b.emit(&Store{Ty: addrTy, Val: rhsVal, Ptr: addr})

	return rhsVal, addrTy
}

func (b *builder) emitUnary(e hir.Expr) (string, string) {
	switch e.Text {
	case "&":
		addr, _ := b.emitLvalueAddr(e.Children[0])
		return addr, "ptr"

	case "*":
		ptrVal, _ := b.emitExpr(e.Children[0])
		ty := b.irType(e.Type)

		dst := b.newValue()
		b.emit(&Load{Dst: dst, Ty: ty, Ptr: ptrVal})

		return "%" + dst, ty

	case "-":
		val, ty := b.emitExpr(e.Children[0])
		return b.emitBinOpValue("-", ty, zeroInitializer(ty), val), ty

	case "~":
		val, ty := b.emitExpr(e.Children[0])
		return b.emitBinOpValue("^", ty, val, "-1"), ty

	case "!":
		val, ty := b.emitExpr(e.Children[0])
		boolVal := b.toBool(val, ty)

		dst := b.newValue()
		b.emit(&ICmp{Dst: dst, Pred: "eq", Ty: "i1", LHS: boolVal, RHS: "0"})

		return b.coerce("%"+dst, "i1", b.irType(e.Type)), b.irType(e.Type)

	case "++", "--":
		addr, addrTy := b.emitLvalueAddr(e.Children[0])

		cur := b.newValue()
		b.emit(&Load{Dst: cur, Ty: addrTy, Ptr: addr})

		op := "+"
		if e.Text == "--" {
			op = "-"
		}

		next := b.emitBinOpValue(op, addrTy, "%"+cur, "1")
		b.emit(&Store{Ty: addrTy, Val: next, Ptr: addr})

		return next, addrTy
	}

	b.errorf("unsupported unary operator in IR lowering: %s", e.Text)

	return "0", "i64"
}

func (b *builder) emitPostfix(e hir.Expr) (string, string) {
	addr, addrTy := b.emitLvalueAddr(e.Children[0])

	cur := b.newValue()
	b.emit(&Load{Dst: cur, Ty: addrTy, Ptr: addr})

	op := "+"
	if e.Text == "--" {
		op = "-"
	}

	next := b.emitBinOpValue(op, addrTy, "%"+cur, "1")
	b.emit(&Store{Ty: addrTy, Val: next, Ptr: addr})

	return "%" + cur, addrTy
}

var comparisonPreds = map[string]string{
	"==": "eq", "!=": "ne", "<": "slt", "<=": "sle", ">": "sgt", ">=": "sge",
}

var fcomparisonPreds = map[string]string{
	"==": "oeq", "!=": "one", "<": "olt", "<=": "ole", ">": "ogt", ">=": "oge",
}

func (b *builder) emitBinary(e hir.Expr) (string, string) {
	if e.Text == "&&" || e.Text == "||" {
		return b.emitShortCircuit(e)
	}

	lhs, lty := b.emitExpr(e.Children[0])
	rhs, rty := b.emitExpr(e.Children[1])

	wide := wideOf(lty, rty)
	lhs, rhs = b.coerce(lhs, lty, wide), b.coerce(rhs, rty, wide)

	if pred, ok := comparisonPreds[e.Text]; ok {
		dst := b.newValue()

		if wide == "double" {
			b.emit(&FCmp{Dst: dst, Pred: fcomparisonPreds[e.Text], Ty: wide, LHS: lhs, RHS: rhs})
		} else {
			b.emit(&ICmp{Dst: dst, Pred: pred, Ty: wide, LHS: lhs, RHS: rhs})
		}

		resTy := b.irType(e.Type)

		return b.coerce("%"+dst, "i1", resTy), resTy
	}

	return b.emitBinOpValue(e.Text, wide, lhs, rhs), wide
}

var intBinOps = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "sdiv", "%": "srem",
	"&": "and", "|": "or", "^": "xor", "<<": "shl", ">>": "ashr",
}

var floatBinOps = map[string]string{"+": "fadd", "-": "fsub", "*": "fmul", "/": "fdiv"}

// emitBinOpValue emits one arithmetic/bitwise instruction over already-
// typed operands, shared by binary expressions, compound assignment,
// and ++/--/unary-minus/unary-not desugaring.
func (b *builder) emitBinOpValue(op, ty, lhs, rhs string) string {
	if ty == "double" {
		llvmOp, ok := floatBinOps[op]
		if !ok {
			b.errorf("unsupported floating point operator in IR lowering: %s", op)
		}

		dst := b.newValue()
		b.emit(&BinOp{Dst: dst, Op: llvmOp, Ty: ty, LHS: lhs, RHS: rhs})

		return "%" + dst
	}

	llvmOp, ok := intBinOps[op]
	if !ok {
		b.errorf("unsupported operator in IR lowering: %s", op)
	}

	dst := b.newValue()
	b.emit(&BinOp{Dst: dst, Op: llvmOp, Ty: ty, LHS: lhs, RHS: rhs})

	return "%" + dst
}

// emitShortCircuit lowers && and || to a branch-and-Phi rather than an
// eagerly evaluated BinOp, so the right operand's side effects only run
// when the left operand doesn't already decide the result.
func (b *builder) emitShortCircuit(e hir.Expr) (string, string) {
	lhsVal, lhsTy := b.emitExpr(e.Children[0])
	lhsBool := b.toBool(lhsVal, lhsTy)
	startBlk := b.block

	rhsBlk := b.newBlock(b.newBlockLabel("logic.rhs"))
	endBlk := b.newBlock(b.newBlockLabel("logic.end"))

	if e.Text == "&&" {
		b.emit(&CondBr{Cond: lhsBool, True: rhsBlk.Label, False: endBlk.Label})
	} else {
		b.emit(&CondBr{Cond: lhsBool, True: endBlk.Label, False: rhsBlk.Label})
	}

	b.setBlock(rhsBlk)

	rhsVal, rhsTy := b.emitExpr(e.Children[1])
	rhsBool := b.toBool(rhsVal, rhsTy)
	rhsEndBlk := b.block

	b.emit(&Br{Target: endBlk.Label})

	b.setBlock(endBlk)

	dst := b.newValue()
	b.emit(&Phi{Dst: dst, Ty: "i1", Incoming: []PhiIncoming{
		{Val: boolLit(e.Text == "||"), Block: startBlk.Label},
		{Val: rhsBool, Block: rhsEndBlk.Label},
	}})

	resTy := b.irType(e.Type)

	return b.coerce("%"+dst, "i1", resTy), resTy
}

// emitLaneLoad reads a byte-granularity subword lane out of an integer
// value: base >> (index*width*8), masked to width bytes, sign-extended
// back to i64 when the lane selector is signed.
func (b *builder) emitLaneLoad(e hir.Expr) (string, string) {
	baseVal, baseTy := b.emitExpr(e.Children[0])
	idxVal, idxTy := b.emitExpr(e.Children[1])
	idxVal = b.coerce(idxVal, idxTy, baseTy)

	widthBytes, signed := laneWidth(e.Text)

	bitShift := b.emitBinOpValue("*", baseTy, idxVal, itoa(widthBytes*8))

	shifted := b.emitBinOpValue(">>", baseTy, baseVal, bitShift)

	if widthBytes >= 8 {
		return shifted, baseTy
	}

	mask := itoa((int(1) << uint(widthBytes*8)) - 1)
	masked := b.emitBinOpValue("&", baseTy, shifted, mask)

	if !signed {
		return masked, baseTy
	}

	extraBits := itoa(64 - widthBytes*8)
	up := b.emitBinOpValue("<<", baseTy, masked, extraBits)

	return b.emitBinOpValue(">>", baseTy, up, extraBits), baseTy
}

// emitLaneAssign is the read-modify-write counterpart of emitLaneLoad:
// clear the target lane's bits in the base word, shift the new value
// into place, OR it in, and store the base back through its own
// lvalue address.
func (b *builder) emitLaneAssign(lane hir.Expr, rhs hir.Expr, assignOp string) (string, string) {
	baseAddr, baseTy := b.emitLvalueAddr(lane.Children[0])

	curBase := b.newValue()
	b.emit(&Load{Dst: curBase, Ty: baseTy, Ptr: baseAddr})

	idxVal, idxTy := b.emitExpr(lane.Children[1])
	idxVal = b.coerce(idxVal, idxTy, baseTy)

	widthBytes, _ := laneWidth(lane.Text)
	bitShift := b.emitBinOpValue("*", baseTy, idxVal, itoa(widthBytes*8))

	rhsVal, rhsTy := b.emitExpr(rhs)
	rhsVal = b.coerce(rhsVal, rhsTy, baseTy)

	if assignOp != "" && assignOp != "=" {
		oldLane, _ := b.emitLaneLoad(lane)
		rhsVal = b.emitBinOpValue(compoundOp(assignOp), baseTy, oldLane, rhsVal)
	}

	var mask string
	if widthBytes >= 8 {
		mask = "-1"
	} else {
		mask = itoa((int(1) << uint(widthBytes*8)) - 1)
	}

	maskedRhs := b.emitBinOpValue("&", baseTy, rhsVal, mask)
	shiftedRhs := b.emitBinOpValue("<<", baseTy, maskedRhs, bitShift)

	shiftedMask := b.emitBinOpValue("<<", baseTy, mask, bitShift)
	clearMask := b.emitBinOpValue("^", baseTy, shiftedMask, "-1")
	clearedBase := b.emitBinOpValue("&", baseTy, "%"+curBase, clearMask)

	newBase := b.emitBinOpValue("|", baseTy, clearedBase, shiftedRhs)
	b.emit(&Store{Ty: baseTy, Val: newBase, Ptr: baseAddr})

	return shiftedRhs, baseTy
}

func laneWidth(selector string) (widthBytes int, signed bool) {
	s := selector
	if len(s) == 0 {
		return 8, true
	}

	signed = s[0] == 'i' || s[0] == 'I'

	switch s[1:] {
	case "8":
		return 1, signed
	case "16":
		return 2, signed
	case "32":
		return 4, signed
	default:
		return 8, signed
	}
}

// emitCall lowers both direct calls (HIR resolves the callee to a known
// function signature, folding default arguments in) and indirect calls
// through a function-pointer value.
func (b *builder) emitCall(e hir.Expr) (string, string) {
	if e.Text != "" {
		sig, ok := b.funcSig[e.Text]
		if !ok {
			b.errorf("call to unknown function in IR lowering: %s", e.Text)
			return "0", "i64"
		}

		retTy := b.irType(sig.ReturnType)

		argTypes := make([]string, len(e.Children))
		args := make([]string, len(e.Children))

		for i, arg := range e.Children {
			v, ty := b.emitExpr(arg)

			want := ty
			if i < len(sig.Params) {
				want = b.irType(sig.Params[i].Type)
			}

			args[i] = b.coerce(v, ty, want)
			argTypes[i] = want
		}

		if retTy == "void" {
			b.emit(&Call{RetTy: "void", Callee: e.Text, ArgTypes: argTypes, Args: args})
			return "0", "void"
		}

		dst := b.newValue()
		b.emit(&Call{Dst: dst, RetTy: retTy, Callee: e.Text, ArgTypes: argTypes, Args: args})

		return "%" + dst, retTy
	}

	calleeVal, _ := b.emitExpr(e.Children[0])
	retTy := b.irType(e.Type)

	argTypes := make([]string, 0, len(e.Children)-1)
	args := make([]string, 0, len(e.Children)-1)

	for _, arg := range e.Children[1:] {
		v, ty := b.emitExpr(arg)
		argTypes = append(argTypes, ty)
		args = append(args, v)
	}

	if retTy == "void" {
		b.emit(&Call{RetTy: "void", Callee: calleeVal, Indirect: true, ArgTypes: argTypes, Args: args})
		return "0", "void"
	}

	dst := b.newValue()
	b.emit(&Call{Dst: dst, RetTy: retTy, Callee: calleeVal, Indirect: true, ArgTypes: argTypes, Args: args})

	return "%" + dst, retTy
}
