package hir

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
)

func isStringLiteralText(text string) bool {
	t := strings.TrimSpace(text)

	return len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"'
}

func inlineAsmConstraintText(text string) string {
	c := strings.TrimSpace(text)
	if len(c) >= 2 && c[0] == '"' && c[len(c)-1] == '"' {
		return c[1 : len(c)-1]
	}

	return c
}

func inlineAsmConstraintNeedsOperand(text string) bool {
	c := inlineAsmConstraintText(text)
	if c == "" {
		return false
	}

	if c[0] == '=' || c[0] == '~' {
		return false
	}

	if len(c) >= 3 && c[0] == '{' && c[len(c)-1] == '}' {
		return false
	}

	return true
}

// quoteStringLiteral re-escapes a lowered string for HIR text output.
func quoteStringLiteral(s string) string {
	var b strings.Builder

	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(s[i])
		}
	}

	b.WriteByte('"')

	return b.String()
}

// isLastClassDefaultExpr reports whether a default-argument expression
// is the `lastclass` sentinel, which resolves to the normalized type
// name of the previous resolved argument rather than a literal value.
func isLastClassDefaultExpr(n *ast.Node) bool {
	return n != nil && n.Kind == "Identifier" && n.Text == "lastclass"
}

// normalizeLastClassTypeName strips pointer markers and the class/union
// keyword prefix from a type string, defaulting to I64.
func normalizeLastClassTypeName(ty string) string {
	t := strings.TrimSpace(ty)
	t = strings.TrimRight(t, "*")
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "class ")
	t = strings.TrimPrefix(t, "union ")
	t = strings.TrimSpace(t)

	if t == "" {
		return "I64"
	}

	return t
}

// lowerExpr lowers one expression node into its closed HIR shape.
func (l *lowerer) lowerExpr(expr *ast.Node) Expr {
	switch expr.Kind {
	case "Literal":
		return l.lowerLiteral(expr)

	case "DollarExpr":
		text := expr.Text
		if text == "" {
			text = "$"
		}

		return Expr{Kind: ExprDollar, Text: text, Type: "I64"}

	case "Identifier":
		return Expr{Kind: ExprVar, Text: expr.Text, Type: typeOr(expr.Type, "I64")}

	case "AssignExpr":
		if len(expr.Children) != 2 {
			l.errorf("invalid assignment expression in lowering")
		}

		lhs, rhs := l.lowerExpr(expr.Children[0]), l.lowerExpr(expr.Children[1])

		return Expr{Kind: ExprAssign, Text: expr.Text, Children: []Expr{lhs, rhs}, Type: typeOr(expr.Type, "I64")}

	case "UnaryExpr":
		if len(expr.Children) != 1 {
			l.errorf("invalid unary expression in lowering")
		}

		return Expr{Kind: ExprUnary, Text: expr.Text, Children: []Expr{l.lowerExpr(expr.Children[0])}, Type: typeOr(expr.Type, "I64")}

	case "BinaryExpr":
		if len(expr.Children) != 2 {
			l.errorf("invalid binary expression in lowering")
		}

		lhs, rhs := l.lowerExpr(expr.Children[0]), l.lowerExpr(expr.Children[1])

		return Expr{Kind: ExprBinary, Text: expr.Text, Children: []Expr{lhs, rhs}, Type: typeOr(expr.Type, "I64")}

	case "CastExpr":
		if len(expr.Children) != 1 {
			l.errorf("invalid cast expression in lowering")
		}

		return Expr{Kind: ExprCast, Text: expr.Text, Children: []Expr{l.lowerExpr(expr.Children[0])}, Type: typeOr(expr.Type, "I64")}

	case "PostfixExpr":
		if len(expr.Children) != 1 {
			l.errorf("invalid postfix expression in lowering")
		}

		return Expr{Kind: ExprPostfix, Text: expr.Text, Children: []Expr{l.lowerExpr(expr.Children[0])}, Type: typeOr(expr.Type, "I64")}

	case "LaneExpr":
		if len(expr.Children) != 2 {
			l.errorf("invalid lane expression in lowering")
		}

		base, index := l.lowerExpr(expr.Children[0]), l.lowerExpr(expr.Children[1])

		return Expr{Kind: ExprLane, Text: expr.Text, Children: []Expr{base, index}, Type: typeOr(expr.Type, "I64")}

	case "MemberExpr":
		if len(expr.Children) != 1 {
			l.errorf("invalid member expression in lowering")
		}

		return Expr{Kind: ExprMember, Text: expr.Text, Children: []Expr{l.lowerExpr(expr.Children[0])}, Type: typeOr(expr.Type, "I64")}

	case "IndexExpr":
		if len(expr.Children) != 2 {
			l.errorf("invalid index expression in lowering")
		}

		base, index := l.lowerExpr(expr.Children[0]), l.lowerExpr(expr.Children[1])

		return Expr{Kind: ExprIndex, Text: expr.Text, Children: []Expr{base, index}, Type: typeOr(expr.Type, "I64")}

	case "CallExpr":
		return l.lowerCallExpr(expr)

	case "CommaExpr":
		if len(expr.Children) == 0 {
			l.errorf("invalid empty comma expression in lowering")
		}

		out := Expr{Kind: ExprComma, Text: ",", Type: typeOr(expr.Type, "I64")}
		for _, child := range expr.Children {
			out.Children = append(out.Children, l.lowerExpr(child))
		}

		return out
	}

	l.errorf("unsupported expression in lowering: " + expr.Kind)

	return Expr{}
}

func (l *lowerer) lowerLiteral(expr *ast.Node) Expr {
	if expr.Text != "" && expr.Text[0] >= '0' && expr.Text[0] <= '9' {
		return Expr{Kind: ExprIntLiteral, Text: expr.Text, Type: "I64"}
	}

	if expr.Text != "" && expr.Text[0] == '\'' {
		return Expr{Kind: ExprIntLiteral, Text: strconv.FormatInt(parseCharLiteralToInt(l, expr.Text), 10), Type: "I64"}
	}

	if expr.Text != "" && expr.Text[0] == '"' {
		return Expr{Kind: ExprStringLiteral, Text: expr.Text, Type: "U8*"}
	}

	l.errorf("unsupported literal in lowering: " + expr.Text)

	return Expr{}
}

func (l *lowerer) lowerCallExpr(expr *ast.Node) Expr {
	if len(expr.Children) < 2 {
		l.errorf("invalid call expression in lowering")
	}

	if expr.Children[1].Kind != "CallArgs" {
		l.errorf("invalid call argument list in lowering")
	}

	calleeExpr := expr.Children[0]
	argList := expr.Children[1]

	var sig *functionSig

	directCall := false

	if calleeExpr.Kind == "Identifier" {
		if existing, ok := l.functions[calleeExpr.Text]; ok {
			sig = existing
			directCall = true
		} else {
			calleeTy := strings.TrimSpace(calleeExpr.Type)
			typedCallablePointer := strings.Contains(calleeTy, "*") || strings.HasPrefix(calleeTy, "fn ")

			if !typedCallablePointer {
				synthesized := &functionSig{
					Name:        calleeExpr.Text,
					ReturnType:  typeOr(expr.Type, "I64"),
					LinkageKind: "external",
				}

				argIdx := 0

				for _, arg := range argList.Children {
					if arg.Kind == "EmptyArg" {
						l.errorf("cannot synthesize signature for default-argument call: " + calleeExpr.Text)
					}

					argTy := typeOr(stripDeclModifiers(arg.Type), "I64")
					synthesized.Params = append(synthesized.Params, paramSig{Type: argTy, Name: "p" + strconv.Itoa(argIdx)})
					argIdx++
				}

				l.functions[calleeExpr.Text] = synthesized
				l.functionOrder = append(l.functionOrder, calleeExpr.Text)
				sig = synthesized
				directCall = true
			}
		}
	}

	if !directCall {
		call := Expr{Kind: ExprCall, Type: typeOr(expr.Type, "I64")}
		call.Children = append(call.Children, l.lowerExpr(calleeExpr))

		for _, arg := range argList.Children {
			if arg.Kind == "EmptyArg" {
				l.errorf("indirect call does not support sparse/default arguments")
			}

			call.Children = append(call.Children, l.lowerExpr(arg))
		}

		return call
	}

	fnName := calleeExpr.Text

	call := Expr{Kind: ExprCall, Text: fnName, Type: typeOr(expr.Type, "I64")}

	var resolvedArgTypes []string

	paramIdx := 0

	for _, arg := range argList.Children {
		if paramIdx >= len(sig.Params) {
			l.errorf("too many arguments in lowering call: " + call.Text)
		}

		if arg.Kind == "EmptyArg" {
			l.lowerDefaultArg(sig, paramIdx, resolvedArgTypes, &call)
			resolvedArgTypes = append(resolvedArgTypes, sig.Params[paramIdx].Type)
			paramIdx++

			continue
		}

		call.Children = append(call.Children, l.lowerExpr(arg))
		resolvedArgTypes = append(resolvedArgTypes, typeOr(arg.Type, sig.Params[paramIdx].Type))
		paramIdx++
	}

	for paramIdx < len(sig.Params) {
		if !sig.Params[paramIdx].HasDefault {
			l.errorf("missing required trailing argument during lowering for function: " + call.Text)
		}

		l.lowerDefaultArg(sig, paramIdx, resolvedArgTypes, &call)
		resolvedArgTypes = append(resolvedArgTypes, sig.Params[paramIdx].Type)
		paramIdx++
	}

	return call
}

func (l *lowerer) lowerDefaultArg(sig *functionSig, paramIdx int, resolvedArgTypes []string, call *Expr) {
	if !sig.Params[paramIdx].HasDefault {
		l.errorf("missing default argument during lowering for function: " + call.Text)
	}

	if isLastClassDefaultExpr(sig.Params[paramIdx].DefaultExpr) {
		if paramIdx == 0 || len(resolvedArgTypes) == 0 {
			l.errorf("lastclass default requires a previous argument type: " + call.Text)
		}

		lastclass := normalizeLastClassTypeName(resolvedArgTypes[paramIdx-1])
		call.Children = append(call.Children, Expr{Kind: ExprStringLiteral, Text: quoteStringLiteral(lastclass), Type: "U8*"})

		return
	}

	call.Children = append(call.Children, l.lowerExpr(sig.Params[paramIdx].DefaultExpr))
}

func typeOr(ty, fallback string) string {
	if ty == "" {
		return fallback
	}

	return ty
}
