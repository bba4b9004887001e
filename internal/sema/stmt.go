package sema

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
)

func (a *analyzer) analyzeTopLevel(n *ast.Node) {
	switch n.Kind {
	case "FunctionDecl":
		a.analyzeFunction(n)
	case "VarDecl":
		a.analyzeVarDecl(n)
	case "VarDeclList":
		for _, item := range n.Children {
			if item.Kind == "VarDecl" {
				a.analyzeVarDecl(item)
			}
		}
	case "LinkageDecl", "TypeAliasDecl":
		// nothing further to check: collected in the signature/global pass.
	case "ClassDecl":
		for _, trailing := range n.Children {
			if trailing.Kind == "VarDecl" {
				a.analyzeVarDecl(trailing)
			}
		}
	default:
		a.analyzeStatement(n)
	}
}

func (a *analyzer) analyzeFunction(fn *ast.Node) {
	retTy, fnName := parseTypedNameFromNode(fn)
	if fnName == "" {
		a.errorf("invalid function name")
	}

	a.validateDeclModifiers(retTy, "function declaration")

	a.labels = map[string]bool{}
	a.gotoTargets = nil
	a.labelPositions = map[string]labelInfo{}
	a.gotoInfos = nil
	a.initDeclInfos = nil

	var body *ast.Node

	for _, c := range fn.Children {
		if c.Kind == "Block" {
			body = c

			break
		}
	}

	if body != nil {
		a.collectLabels(body)
		nextIndex := 0
		a.collectGotoLegalityInfo(body, 0, &nextIndex)
	}

	normalizedRetTy := stripDeclModifiers(retTy)
	if normalizedRetTy == "" {
		normalizedRetTy = "I64"
	}

	a.currentReturnType = normalizedRetTy
	a.inFunction = true
	a.pushScope()

	if sig, ok := a.functions[fnName]; ok {
		for _, p := range sig.Params {
			a.declareLocal(p.Name, p.Type)
		}
	}

	if body != nil {
		a.analyzeStatement(body)
	}

	for _, target := range a.gotoTargets {
		if !a.labels[target] {
			a.errorf("goto target label not found in function: " + target)
		}
	}

	a.validateGotoLegality()

	a.popScope()
	a.inFunction = false
	a.currentReturnType = ""
}

func (a *analyzer) collectLabels(n *ast.Node) {
	if n.Kind == "LabelStmt" {
		if a.labels[n.Text] {
			a.errorf("duplicate label in function: " + n.Text)
		}

		a.labels[n.Text] = true
	}

	for _, c := range n.Children {
		a.collectLabels(c)
	}
}

func (a *analyzer) collectGotoLegalityInfo(n *ast.Node, depth int, nextIndex *int) {
	if n.Kind == "Block" {
		for _, c := range n.Children {
			a.collectGotoLegalityInfo(c, depth+1, nextIndex)
		}

		return
	}

	thisIndex := -1
	if isStatementNodeKind(n.Kind) {
		thisIndex = *nextIndex
		*nextIndex++
	}

	switch {
	case n.Kind == "LabelStmt":
		a.labelPositions[n.Text] = labelInfo{index: thisIndex, depth: depth}
	case n.Kind == "GotoStmt":
		a.gotoTargets = append(a.gotoTargets, n.Text)
		a.gotoInfos = append(a.gotoInfos, gotoInfo{target: n.Text, index: thisIndex, depth: depth})
	case n.Kind == "VarDecl" && findVarInitializer(n) != nil:
		_, name := parseTypedNameFromNode(n)
		if name == "" {
			name = n.Text
		}

		a.initDeclInfos = append(a.initDeclInfos, initDeclInfo{name: name, index: thisIndex, depth: depth})
	}

	for _, c := range n.Children {
		a.collectGotoLegalityInfo(c, depth, nextIndex)
	}
}

func (a *analyzer) validateGotoLegality() {
	for _, g := range a.gotoInfos {
		label, ok := a.labelPositions[g.target]
		if !ok {
			continue
		}

		if label.depth > g.depth {
			a.errorf("goto jumps into deeper scope: " + g.target)
		}

		if label.index > g.index {
			for _, init := range a.initDeclInfos {
				if init.index > g.index && init.index < label.index {
					a.errorf("goto jumps across initialized declaration: " + init.name)
				}
			}
		}
	}
}

func (a *analyzer) analyzeStatement(n *ast.Node) {
	switch n.Kind {
	case "Block":
		a.pushScope()

		for _, c := range n.Children {
			a.analyzeStatement(c)
		}

		a.popScope()

	case "VarDecl":
		a.analyzeVarDecl(n)

	case "VarDeclList":
		for _, item := range n.Children {
			if item.Kind == "VarDecl" {
				a.analyzeVarDecl(item)
			}
		}

	case "PrintStmt":
		a.analyzePrintStmt(n)

	case "ExprStmt":
		a.analyzeExprStmt(n)

	case "IfStmt", "WhileStmt":
		if len(n.Children) > 0 {
			a.analyzeExpr(n.Children[0])
		}

		for i := 1; i < len(n.Children); i++ {
			a.analyzeStatement(n.Children[i])
		}

	case "ForStmt":
		for _, c := range n.Children {
			switch {
			case c.Kind == "Init" || c.Kind == "Cond" || c.Kind == "Inc":
				continue
			case c.Kind == "Block" || strings.Contains(c.Kind, "Stmt"):
				a.analyzeStatement(c)
			default:
				a.analyzeExpr(c)
			}
		}

	case "DoWhileStmt":
		if len(n.Children) > 0 {
			a.analyzeStatement(n.Children[0])
		}

		if len(n.Children) > 1 {
			a.analyzeExpr(n.Children[1])
		}

	case "SwitchStmt":
		if len(n.Children) > 0 {
			a.analyzeExpr(n.Children[0])
		}

		if len(n.Children) > 1 {
			a.analyzeStatement(n.Children[1])
		}

	case "CaseClause":
		for _, c := range n.Children {
			if strings.Contains(c.Kind, "Stmt") || c.Kind == "Block" {
				a.analyzeStatement(c)
			} else {
				a.analyzeExpr(c)
			}
		}

	case "DefaultClause", "LockStmt":
		for _, c := range n.Children {
			a.analyzeStatement(c)
		}

	case "AsmStmt":
		a.analyzeAsmStmt(n)

	case "LinkageDecl", "TypeAliasDecl":
		// nothing to check.

	case "TryStmt":
		if len(n.Children) != 2 {
			a.errorf("try statement requires both try and catch bodies")
		}

		a.analyzeStatement(n.Children[0])
		a.analyzeStatement(n.Children[1])

	case "ThrowStmt":
		if len(n.Children) != 1 {
			a.errorf("throw requires exactly one payload expression")
		}

		payloadTy := a.analyzeExpr(n.Children[0])
		if !isThrowable(parseTypeInfo(payloadTy)) {
			a.errorf("throw payload must be integral-like, got: " + payloadTy)
		}

		n.Type = "I64"

	case "GotoStmt":
		// legality already validated at function scope.

	case "ReturnStmt":
		if len(n.Children) > 0 {
			exprTy := a.analyzeExpr(n.Children[0])
			if a.currentReturnType != "" && !canImplicitConvert(exprTy, a.currentReturnType) {
				a.errorf("return type mismatch: cannot convert " + exprTy + " to " + a.currentReturnType)
			}

			n.Type = exprTy
		} else {
			n.Type = "U0"
		}

	case "LabelStmt":
		if len(n.Children) > 0 {
			a.analyzeStatement(n.Children[0])
		}
	}
}

func (a *analyzer) analyzeExprStmt(n *ast.Node) {
	if len(n.Children) == 0 {
		return
	}

	expr := n.Children[0]
	if expr.Kind == "Identifier" {
		if sig, ok := a.functions[expr.Text]; ok {
			allDefault := true

			for _, p := range sig.Params {
				if !p.HasDefault {
					allDefault = false

					break
				}
			}

			if !allDefault {
				a.errorf("function call without parentheses requires defaults for all params: " + expr.Text)
			}

			n.Kind = "NoParenCallStmt"
			n.Type = sig.ReturnType

			return
		}
	}

	n.Type = a.analyzeExpr(expr)
}

func (a *analyzer) analyzeAsmStmt(n *ast.Node) {
	if n.Text == "" && len(n.Children) == 0 {
		a.errorf("inline asm requires non-empty body/template")
	}

	if len(n.Children) == 0 {
		if strings.TrimSpace(n.Text) == "" {
			a.errorf("inline asm block body cannot be empty")
		}

		return
	}

	awaitingOperand := false
	awaitingConstraint := ""

	for i, arg := range n.Children {
		if arg.Kind != "AsmArg" {
			a.errorf("inline asm argument node must be AsmArg")
		}

		if strings.TrimSpace(arg.Text) == "" {
			a.errorf("inline asm argument cannot be empty")
		}

		if len(arg.Children) != 1 {
			a.errorf("inline asm argument must parse as an expression")
		}

		argExpr := arg.Children[0]
		arg.Type = a.analyzeExpr(argExpr)

		if i == 0 {
			if !isStringLiteralText(argExpr.Text) {
				a.errorf("inline asm first argument must be a string-literal template")
			}

			continue
		}

		if isStringLiteralText(argExpr.Text) {
			if awaitingOperand {
				a.errorf("inline asm input constraint requires operand expression: " + awaitingConstraint)
			}

			if inlineAsmConstraintNeedsOperand(argExpr.Text) {
				awaitingOperand = true
				awaitingConstraint = inlineAsmConstraintText(argExpr.Text)
			} else {
				awaitingOperand = false
				awaitingConstraint = ""
			}

			continue
		}

		if !awaitingOperand {
			a.errorf("inline asm operand expression must follow an input constraint string")
		}

		awaitingOperand = false
		awaitingConstraint = ""
	}

	if awaitingOperand {
		a.errorf("inline asm input constraint requires operand expression: " + awaitingConstraint)
	}
}

type printFormatSpec struct {
	conv              byte
	widthFromArg      bool
	precisionFromArg  bool
}

// collectPrintFormatSpecifiers walks a quoted format literal's
// printf-style conversions, per spec §4.4's print-format validation.
func collectPrintFormatSpecifiers(formatLiteral string) ([]printFormatSpec, string) {
	var specs []printFormatSpec

	text := strings.TrimSpace(formatLiteral)
	if !isStringLiteralText(text) {
		return nil, "print format must be a string literal"
	}

	stop := len(text) - 1
	i := 1

	for i < stop {
		c := text[i]

		if c == '\\' {
			if i+1 < stop {
				i += 2
			} else {
				i++
			}

			continue
		}

		if c != '%' {
			i++

			continue
		}

		if i+1 >= stop {
			return nil, "dangling '%' in print format string"
		}

		i++
		if text[i] == '%' {
			i++

			continue
		}

		for i < stop && strings.ContainsRune("-+ #0'", rune(text[i])) {
			i++
		}

		var spec printFormatSpec

		if i < stop && text[i] == '*' {
			spec.widthFromArg = true
			i++
		}

		for i < stop && isDigit(text[i]) {
			i++
		}

		if i < stop && text[i] == '.' {
			i++

			if i < stop && text[i] == '*' {
				spec.precisionFromArg = true
				i++
			}

			for i < stop && isDigit(text[i]) {
				i++
			}
		}

		for i < stop {
			lm := text[i]
			if lm == 'h' || lm == 'l' || lm == 'j' || lm == 't' || lm == 'L' || lm == 'q' {
				i++

				if (lm == 'h' || lm == 'l') && i < stop && text[i] == lm {
					i++
				}

				continue
			}

			break
		}

		if i >= stop {
			return nil, "incomplete print format conversion"
		}

		conv := text[i]
		i++

		switch conv {
		case 'd', 'i', 'u', 'x', 'X', 'o', 'b', 'c', 's', 'p', 'P', 'z', 'f', 'F', 'e', 'E', 'g', 'G':
			spec.conv = conv
			specs = append(specs, spec)
		default:
			return nil, "unsupported print conversion '%" + string(conv) + "'"
		}
	}

	return specs, ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func printSpecifierAcceptsType(spec byte, argInfo TypeInfo) bool {
	if argInfo.Kind == KindUnknown {
		return true
	}

	switch spec {
	case 'd', 'i', 'c':
		return isIntegralLike(argInfo)
	case 'u', 'x', 'X', 'o', 'b', 'p', 'P', 'z':
		return isIntegralLike(argInfo) || argInfo.Kind == KindPointer
	case 's':
		return argInfo.Kind == KindPointer
	case 'f', 'F', 'e', 'E', 'g', 'G':
		return isNumeric(argInfo)
	default:
		return false
	}
}

func (a *analyzer) analyzePrintStmt(n *ast.Node) {
	if len(n.Children) == 0 {
		a.errorf("print statement requires a format expression")
	}

	formatNode := n.Children[0]
	formatTy := a.analyzeExpr(formatNode)

	argTypes := make([]string, 0, len(n.Children)-1)
	for i := 1; i < len(n.Children); i++ {
		argTypes = append(argTypes, a.analyzeExpr(n.Children[i]))
	}

	if formatNode.Kind != "Literal" {
		fmtInfo := parseTypeInfo(formatTy)
		if fmtInfo.Kind != KindPointer && fmtInfo.Kind != KindUnknown {
			a.errorf("dynamic print format must be pointer-like, got: " + formatTy)
		}

		n.Type = "U0"

		return
	}

	if isCharLiteralText(formatNode.Text) {
		if len(argTypes) != 0 {
			a.errorf("char-literal print form does not take format arguments")
		}

		n.Type = "U0"

		return
	}

	if !isStringLiteralText(formatNode.Text) {
		a.errorf("print format must be a string or char literal")
	}

	if strings.TrimSpace(formatNode.Text) == `""` && len(argTypes) != 0 {
		dynFmtInfo := parseTypeInfo(argTypes[0])
		if dynFmtInfo.Kind != KindPointer && dynFmtInfo.Kind != KindUnknown {
			a.errorf("dynamic print format expression must be pointer-like, got: " + argTypes[0])
		}

		n.Type = "U0"

		return
	}

	specs, formatErr := collectPrintFormatSpecifiers(formatNode.Text)
	if formatErr != "" {
		a.errorf(formatErr)
	}

	expectedArgs := 0

	for _, spec := range specs {
		if spec.widthFromArg {
			expectedArgs++
		}

		if spec.precisionFromArg {
			expectedArgs++
		}

		if spec.conv == 'z' {
			expectedArgs += 2
		} else {
			expectedArgs++
		}
	}

	if expectedArgs != len(argTypes) {
		a.errorf("print argument count mismatch: format expects " + strconv.Itoa(expectedArgs) +
			", got " + strconv.Itoa(len(argTypes)))
	}

	argIndex := 0

	for _, spec := range specs {
		if spec.widthFromArg {
			widthInfo := parseTypeInfo(argTypes[argIndex])
			if !isIntegralLike(widthInfo) && widthInfo.Kind != KindUnknown {
				a.errorf("print width argument " + strconv.Itoa(argIndex+1) + " must be integral-like, got: " + argTypes[argIndex])
			}

			argIndex++
		}

		if spec.precisionFromArg {
			precisionInfo := parseTypeInfo(argTypes[argIndex])
			if !isIntegralLike(precisionInfo) && precisionInfo.Kind != KindUnknown {
				a.errorf("print precision argument " + strconv.Itoa(argIndex+1) + " must be integral-like, got: " + argTypes[argIndex])
			}

			argIndex++
		}

		if spec.conv == 'z' {
			idxInfo := parseTypeInfo(argTypes[argIndex])
			if !printSpecifierAcceptsType('z', idxInfo) {
				a.errorf("print argument " + strconv.Itoa(argIndex+1) + " has incompatible type " +
					argTypes[argIndex] + " for conversion '%z'")
			}

			tableInfo := parseTypeInfo(argTypes[argIndex+1])
			if tableInfo.Kind != KindPointer && tableInfo.Kind != KindUnknown {
				a.errorf("print argument " + strconv.Itoa(argIndex+2) + " must be pointer-like for conversion '%z'")
			}

			argIndex += 2

			continue
		}

		argInfo := parseTypeInfo(argTypes[argIndex])
		if !printSpecifierAcceptsType(spec.conv, argInfo) {
			a.errorf("print argument " + strconv.Itoa(argIndex+1) + " has incompatible type " +
				argTypes[argIndex] + " for conversion '%" + string(spec.conv) + "'")
		}

		argIndex++
	}

	n.Type = "U0"
}

func (a *analyzer) analyzeVarDecl(n *ast.Node) {
	declTy, name := parseTypedNameFromNode(n)
	if name == "" {
		a.errorf("invalid variable declaration: " + n.Text)
	}

	a.validateDeclModifiers(declTy, "variable declaration")
	normalizedDeclTy := stripDeclModifiers(declTy)
	resolvedType := normalizedDeclTy

	if resolvedType == "" {
		resolvedType = "I64"
	}

	if a.inFunction {
		a.declareLocal(name, resolvedType)
	} else if existing, ok := a.globalSymbols[name]; !ok {
		a.declareGlobal(name, resolvedType)
	} else if existing != resolvedType {
		a.errorf("conflicting global declaration type for: " + name)
	}

	n.Type = resolvedType

	init := findVarInitializer(n)
	if init != nil {
		initTy := a.analyzeExpr(init)
		if !canImplicitConvert(initTy, n.Type) {
			a.errorf("initializer type mismatch for " + name + ": cannot convert " + initTy + " to " + n.Type)
		}

		init.Type = initTy
	}
}
