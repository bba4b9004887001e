package sema

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
)

func isRelationalOp(op string) bool {
	return op == "<" || op == ">" || op == "<=" || op == ">="
}

// analyzeExpr resolves and stamps node.Type for every expression node
// kind the parser produces, per spec §4.4's type-checking rules.
func (a *analyzer) analyzeExpr(n *ast.Node) string {
	switch n.Kind {
	case "Identifier":
		if ty, ok := a.lookup(n.Text); ok {
			n.Type = ty

			return n.Type
		}

		if sig, ok := a.functions[n.Text]; ok {
			n.Type = "fn " + sig.ReturnType

			return n.Type
		}

		a.errorf("unknown identifier: " + n.Text)

	case "Literal":
		switch {
		case n.Text != "" && n.Text[0] == '"':
			n.Type = "U8*"
		case n.Text != "" && n.Text[0] == '\'':
			n.Type = "I64"
		case strings.Contains(n.Text, "."):
			n.Type = "F64"
		default:
			n.Type = "I64"
		}

		return n.Type

	case "DollarExpr":
		n.Type = "I64"

		return n.Type

	case "UnaryExpr":
		return a.analyzeUnaryExpr(n)

	case "CastExpr":
		if len(n.Children) > 0 {
			a.analyzeExpr(n.Children[0])
		}

		n.Type = n.Text
		if n.Type == "" {
			n.Type = "I64"
		}

		return n.Type

	case "PostfixExpr":
		if len(n.Children) > 0 {
			operandTy := a.analyzeExpr(n.Children[0])
			info := parseTypeInfo(operandTy)

			if !isNumeric(info) && info.Kind != KindPointer && info.Kind != KindUnknown {
				a.errorf("postfix operator requires numeric or pointer operand")
			}

			n.Type = operandTy
		} else {
			n.Type = "I64"
		}

		return n.Type

	case "AssignExpr":
		if len(n.Children) == 2 {
			lhsTy := a.analyzeExpr(n.Children[0])
			rhsTy := a.analyzeExpr(n.Children[1])

			if !canImplicitConvert(rhsTy, lhsTy) {
				a.errorf("assignment type mismatch: cannot convert " + rhsTy + " to " + lhsTy)
			}

			n.Type = lhsTy
		}

		return n.Type

	case "BinaryExpr":
		return a.analyzeBinaryExpr(n)

	case "CommaExpr":
		for _, c := range n.Children {
			a.analyzeExpr(c)
		}

		if len(n.Children) == 0 {
			n.Type = "I64"
		} else {
			n.Type = n.Children[len(n.Children)-1].Type
		}

		return n.Type

	case "CallExpr":
		return a.analyzeCallExpr(n)

	case "LaneExpr":
		return a.analyzeLaneExpr(n)

	case "MemberExpr":
		return a.analyzeMemberExpr(n)

	case "IndexExpr":
		if len(n.Children) == 2 {
			a.analyzeExpr(n.Children[0])
			a.analyzeExpr(n.Children[1])
		}

		n.Type = "I64"

		return n.Type
	}

	return "I64"
}

func (a *analyzer) analyzeUnaryExpr(n *ast.Node) string {
	if len(n.Children) == 0 {
		return n.Type
	}

	childTy := a.analyzeExpr(n.Children[0])
	childInfo := parseTypeInfo(childTy)

	switch n.Text {
	case "!":
		if !isNumeric(childInfo) && childInfo.Kind != KindPointer && childInfo.Kind != KindUnknown {
			a.errorf("operator ! requires scalar operand")
		}

		n.Type = "Bool"
	case "&":
		n.Type = addPointerLevel(childTy)
	case "*":
		if childInfo.Kind != KindPointer && childInfo.Kind != KindUnknown {
			a.errorf("operator * requires pointer operand")
		}

		n.Type = removePointerLevel(childTy)
		if n.Type == "" {
			n.Type = "I64"
		}
	case "~":
		if !(childInfo.Kind == KindBool || childInfo.Kind == KindInt || childInfo.Kind == KindUInt || childInfo.Kind == KindUnknown) {
			a.errorf("operator ~ requires integer-like operand")
		}

		n.Type = childTy
	case "+", "-":
		if !isNumeric(childInfo) && childInfo.Kind != KindUnknown {
			a.errorf("unary " + n.Text + " requires numeric operand")
		}

		n.Type = childTy
	case "++", "--":
		if !isNumeric(childInfo) && childInfo.Kind != KindPointer && childInfo.Kind != KindUnknown {
			a.errorf("operator " + n.Text + " requires numeric or pointer operand")
		}

		n.Type = childTy
	default:
		n.Type = childTy
	}

	return n.Type
}

func (a *analyzer) analyzeBinaryExpr(n *ast.Node) string {
	if len(n.Children) != 2 {
		a.errorf("invalid binary expression")
	}

	a.analyzeExpr(n.Children[0])
	a.analyzeExpr(n.Children[1])
	lhsTy, rhsTy := n.Children[0].Type, n.Children[1].Type
	lhsInfo, rhsInfo := parseTypeInfo(lhsTy), parseTypeInfo(rhsTy)

	if isRelationalOp(n.Text) || n.Text == "==" || n.Text == "!=" {
		if !canImplicitConvert(lhsTy, rhsTy) && !canImplicitConvert(rhsTy, lhsTy) {
			a.errorf("comparison requires implicitly comparable operands: " + lhsTy + " vs " + rhsTy)
		}

		n.Type = "Bool"
		if n.Children[0].Kind == "BinaryExpr" && isRelationalOp(n.Children[0].Text) {
			n.Type = "Bool(chained)"
		}

		return n.Type
	}

	if n.Text == "&&" || n.Text == "||" {
		lhsOK := isNumeric(lhsInfo) || lhsInfo.Kind == KindPointer || lhsInfo.Kind == KindUnknown
		rhsOK := isNumeric(rhsInfo) || rhsInfo.Kind == KindPointer || rhsInfo.Kind == KindUnknown

		if !lhsOK || !rhsOK {
			a.errorf("logical operators require scalar operands")
		}

		n.Type = "Bool"

		return n.Type
	}

	if !canImplicitConvert(lhsTy, rhsTy) && !canImplicitConvert(rhsTy, lhsTy) {
		a.errorf("binary operator " + n.Text + " requires compatible operands: " + lhsTy + " vs " + rhsTy)
	}

	switch n.Text {
	case "+", "-", "*", "/", "%":
		lhsPtr, rhsPtr := lhsInfo.Kind == KindPointer, rhsInfo.Kind == KindPointer

		switch {
		case !lhsPtr && !rhsPtr:
			n.Type = promoteIntegerResultType(lhsTy, rhsTy)
		case n.Text == "+":
			switch {
			case lhsPtr && isIntegralLike(rhsInfo):
				n.Type = lhsTy
			case rhsPtr && isIntegralLike(lhsInfo):
				n.Type = rhsTy
			default:
				a.errorf("pointer addition requires one pointer and one integer operand")
			}
		case n.Text == "-":
			switch {
			case lhsPtr && isIntegralLike(rhsInfo):
				n.Type = lhsTy
			case lhsPtr && rhsPtr:
				n.Type = "I64"
			default:
				a.errorf("pointer subtraction requires pointer-int or pointer-pointer")
			}
		default:
			a.errorf("pointer arithmetic supports only + and -")
		}
	case "&", "|", "^", "<<", ">>":
		if !isIntegralLike(lhsInfo) || !isIntegralLike(rhsInfo) {
			a.errorf("bitwise/shift operators require integral operands")
		}

		n.Type = promoteIntegerResultType(lhsTy, rhsTy)
	default:
		n.Type = promoteIntegerResultType(lhsTy, rhsTy)
	}

	return n.Type
}

func (a *analyzer) analyzeCallExpr(n *ast.Node) string {
	if len(n.Children) < 2 {
		a.errorf("invalid call expression")
	}

	if n.Children[1].Kind != "CallArgs" {
		a.errorf("invalid call argument list")
	}

	callee := n.Children[0]
	argList := n.Children[1]

	_, localShadow := a.lookupLocalOnly(callee.Text)
	sig, isNamedFn := a.functions[callee.Text]
	directNamedCall := callee.Kind == "Identifier" && isNamedFn && !localShadow

	if directNamedCall {
		fnName := callee.Text
		paramI := 0

		for _, arg := range argList.Children {
			if paramI >= len(sig.Params) {
				a.errorf("too many arguments for function: " + fnName)
			}

			if arg.Kind == "EmptyArg" {
				if !sig.Params[paramI].HasDefault {
					a.errorf("missing argument without default at position " + strconv.Itoa(paramI+1) + " in call to " + fnName)
				}
			} else {
				argTy := a.analyzeExpr(arg)
				if !canImplicitConvert(argTy, sig.Params[paramI].Type) {
					a.errorf("argument type mismatch at position " + strconv.Itoa(paramI+1) + " in call to " + fnName +
						": cannot convert " + argTy + " to " + sig.Params[paramI].Type)
				}
			}

			paramI++
		}

		for paramI < len(sig.Params) {
			if !sig.Params[paramI].HasDefault {
				a.errorf("missing required argument at position " + strconv.Itoa(paramI+1) + " in call to " + fnName)
			}

			paramI++
		}

		n.Type = sig.ReturnType

		return n.Type
	}

	calleeTy := a.analyzeExpr(callee)
	calleeInfo := parseTypeInfo(calleeTy)

	if calleeInfo.Kind != KindPointer && calleeInfo.Kind != KindUnknown && !strings.HasPrefix(calleeTy, "fn ") {
		a.errorf("call target is not callable: " + calleeTy)
	}

	for _, arg := range argList.Children {
		if arg.Kind == "EmptyArg" {
			a.errorf("sparse/default call arguments require a direct named function")
		}

		a.analyzeExpr(arg)
	}

	n.Type = inferCallReturnTypeFromCalleeType(calleeTy)

	return n.Type
}

func (a *analyzer) analyzeLaneExpr(n *ast.Node) string {
	if len(n.Children) != 2 {
		a.errorf("lane access requires base and index expression")
	}

	baseTy := a.analyzeExpr(n.Children[0])
	baseInfo := parseTypeInfo(baseTy)

	if !isIntegralLike(baseInfo) && baseInfo.Kind != KindUnknown {
		a.errorf("lane base must be integral-like, got: " + baseTy)
	}

	indexTy := a.analyzeExpr(n.Children[1])
	indexInfo := parseTypeInfo(indexTy)

	if !isIntegralLike(indexInfo) && indexInfo.Kind != KindUnknown {
		a.errorf("lane index must be integral, got: " + indexTy)
	}

	laneTy := laneElementType(n.Text)
	if laneTy == "" {
		a.errorf("unknown lane selector: " + n.Text)
	}

	laneBits := laneElementBits(n.Text)
	if laneBits <= 0 {
		a.errorf("invalid lane selector width: " + n.Text)
	}

	if baseInfo.Kind != KindUnknown {
		if baseInfo.Bits <= 0 || laneBits > baseInfo.Bits {
			a.errorf("lane selector '" + n.Text + "' is wider than base type " + baseTy)
		}

		laneCount := baseInfo.Bits / laneBits
		if laneCount <= 0 {
			a.errorf("invalid lane count for selector '" + n.Text + "' on " + baseTy)
		}

		if laneIndex, ok := tryParseIntLiteral(n.Children[1]); ok {
			if laneIndex < 0 || laneIndex >= int64(laneCount) {
				a.errorf("lane index out of range for selector '" + n.Text + "': " + strconv.FormatInt(laneIndex, 10))
			}
		}
	}

	n.Type = laneTy

	return n.Type
}

func (a *analyzer) analyzeMemberExpr(n *ast.Node) string {
	if len(n.Children) > 0 {
		baseTy := a.analyzeExpr(n.Children[0])
		aggregateName := normalizeAggregateTypeName(baseTy)

		if members, ok := a.classMembers[aggregateName]; ok {
			memberTy, ok := members[n.Text]
			if !ok {
				a.errorf("unknown member '" + n.Text + "' on " + aggregateName)
			}

			n.Type = memberTy

			return n.Type
		}
	}

	n.Type = "I64"

	return n.Type
}
