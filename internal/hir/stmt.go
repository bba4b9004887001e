package hir

import (
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
)

// lowerStmt lowers one statement node, appending zero or more HIR
// statements to out. topLevel distinguishes global VarDecl storage
// class from local, per spec §4.5's decl_storage field.
func (l *lowerer) lowerStmt(stmt *ast.Node, out *[]Stmt, topLevel bool) {
	switch stmt.Kind {
	case "EmptyStmt":
		return

	case "VarDeclList":
		for _, child := range stmt.Children {
			if child.Kind == "VarDecl" {
				l.lowerStmt(child, out, topLevel)
			}
		}

		return

	case "LockStmt":
		hs := Stmt{Kind: StmtLock}
		for _, child := range stmt.Children {
			l.lowerStmt(child, &hs.FlowThen, false)
		}

		*out = append(*out, hs)

		return

	case "VarDecl":
		hs := Stmt{Kind: StmtVarDecl}
		ty, name := parseTypedNameFromNode(stmt)
		normalizedDeclTy := stripDeclModifiers(ty)
		hs.Type = normalizedDeclTy
		if hs.Type == "" {
			hs.Type = "I64"
		}

		hs.Name = name
		hs.DeclIsGlobal = topLevel
		isStatic := hasDeclModifier(stmt.Text, "static")

		switch {
		case topLevel && isStatic:
			hs.DeclStorage = "static-global"
		case topLevel:
			hs.DeclStorage = "global"
		case isStatic:
			hs.DeclStorage = "static-local"
		default:
			hs.DeclStorage = "local"
		}

		init := findVarInitializer(stmt)
		hs.DeclHasConstInitializer = init != nil && isConstInitializerExpr(init)
		if init != nil {
			hs.Expr = l.lowerExpr(init)
		}

		*out = append(*out, hs)

		return

	case "ReturnStmt":
		hs := Stmt{Kind: StmtReturn, Type: stmt.Type}
		if len(stmt.Children) > 0 {
			hs.Expr = l.lowerExpr(stmt.Children[0])
		}

		*out = append(*out, hs)

		return

	case "BreakStmt":
		*out = append(*out, Stmt{Kind: StmtBreak})

		return

	case "ThrowStmt":
		hs := Stmt{Kind: StmtThrow, ExceptionRegionID: -1}
		if len(l.exceptionRegionStack) > 0 {
			hs.ExceptionRegionID = l.exceptionRegionStack[len(l.exceptionRegionStack)-1]
		}

		if len(stmt.Children) > 0 {
			hs.Expr = l.lowerExpr(stmt.Children[0])
		}

		*out = append(*out, hs)

		return

	case "AsmStmt":
		*out = append(*out, l.lowerAsmStmt(stmt))

		return

	case "TryStmt":
		*out = append(*out, l.lowerTryStmt(stmt))

		return

	case "IfStmt":
		hs := Stmt{Kind: StmtIf}
		if len(stmt.Children) > 0 {
			hs.FlowCond = l.lowerExpr(stmt.Children[0])
		}

		if len(stmt.Children) > 1 {
			l.lowerStmt(stmt.Children[1], &hs.FlowThen, false)
		}

		if len(stmt.Children) > 2 {
			l.lowerStmt(stmt.Children[2], &hs.FlowElse, false)
		}

		*out = append(*out, hs)

		return

	case "WhileStmt":
		hs := Stmt{Kind: StmtWhile}
		if len(stmt.Children) > 0 {
			hs.FlowCond = l.lowerExpr(stmt.Children[0])
		}

		if len(stmt.Children) > 1 {
			l.lowerStmt(stmt.Children[1], &hs.FlowThen, false)
		}

		*out = append(*out, hs)

		return

	case "DoWhileStmt":
		hs := Stmt{Kind: StmtDoWhile}
		if len(stmt.Children) > 0 {
			l.lowerStmt(stmt.Children[0], &hs.FlowThen, false)
		}

		if len(stmt.Children) > 1 {
			hs.FlowCond = l.lowerExpr(stmt.Children[1])
		}

		*out = append(*out, hs)

		return

	case "ForStmt":
		l.lowerForStmt(stmt, out)

		return

	case "SwitchStmt":
		*out = append(*out, l.lowerSwitchStmt(stmt))

		return

	case "LabelStmt":
		*out = append(*out, Stmt{Kind: StmtLabel, LabelName: stmt.Text})
		if len(stmt.Children) > 0 {
			l.lowerStmt(stmt.Children[0], out, topLevel)
		}

		return

	case "GotoStmt":
		*out = append(*out, Stmt{Kind: StmtGoto, GotoTarget: stmt.Text})

		return

	case "ClassDecl":
		hs := Stmt{Kind: StmtMetadataDecl, MetadataName: stmt.Text}
		for _, meta := range stmt.Children {
			hs.MetadataPayload = append(hs.MetadataPayload, meta.Text)
		}

		*out = append(*out, hs)

		return

	case "TypeAliasDecl":
		*out = append(*out, Stmt{Kind: StmtMetadataDecl, MetadataName: "typedef", MetadataPayload: []string{stmt.Text}})

		return

	case "LinkageDecl":
		hs := Stmt{Kind: StmtLinkageDecl, LinkageKind: stmt.Text}
		if len(stmt.Children) > 0 {
			hs.LinkageSymbol = stmt.Children[0].Text
		}

		*out = append(*out, hs)

		return

	case "NoParenCallStmt":
		if len(stmt.Children) == 0 || stmt.Children[0].Kind != "Identifier" {
			l.errorf("invalid no-paren call statement")
		}

		*out = append(*out, Stmt{Kind: StmtNoParenCall, Name: stmt.Children[0].Text, Type: stmt.Type})

		return

	case "PrintStmt":
		*out = append(*out, l.lowerPrintStmt(stmt))

		return

	case "ExprStmt":
		l.lowerExprStmtKind(stmt, out)

		return

	case "Block":
		for _, child := range stmt.Children {
			l.lowerStmt(child, out, false)
		}

		return

	case "StartLabel", "EndLabel":
		// Parser markers for HolyC switch compatibility; not emitted as
		// executable statements in this lowering.
		return
	}

	l.errorf("unsupported statement in lowering: " + stmt.Kind)
}

func (l *lowerer) lowerAsmStmt(stmt *ast.Node) Stmt {
	hs := Stmt{Kind: StmtInlineAsm, AsmTemplate: stmt.Text}

	if len(stmt.Children) == 0 {
		return hs
	}

	templateArg := stmt.Children[0]
	if len(templateArg.Children) > 0 {
		hs.AsmTemplate = templateArg.Children[0].Text
	}

	awaitingOperand := false

	for i := 1; i < len(stmt.Children); i++ {
		arg := stmt.Children[i]
		if len(arg.Children) == 0 {
			l.errorf("invalid inline asm argument in HIR lowering")
		}

		argExpr := arg.Children[0]

		if isStringLiteralText(argExpr.Text) {
			if awaitingOperand {
				l.errorf("inline asm input constraint requires operand in HIR lowering: " +
					inlineAsmConstraintText(hs.AsmConstraints[len(hs.AsmConstraints)-1]))
			}

			hs.AsmConstraints = append(hs.AsmConstraints, argExpr.Text)
			hs.AsmOperands = append(hs.AsmOperands, Expr{})
			hs.AsmOperandPresent = append(hs.AsmOperandPresent, false)
			awaitingOperand = inlineAsmConstraintNeedsOperand(argExpr.Text)

			continue
		}

		if !awaitingOperand || len(hs.AsmConstraints) == 0 {
			l.errorf("inline asm operand must follow input constraint in HIR lowering")
		}

		idx := len(hs.AsmConstraints) - 1
		hs.AsmOperands[idx] = l.lowerExpr(argExpr)
		hs.AsmOperandPresent[idx] = true
		awaitingOperand = false
	}

	if awaitingOperand {
		l.errorf("inline asm input constraint requires operand in HIR lowering: " +
			inlineAsmConstraintText(hs.AsmConstraints[len(hs.AsmConstraints)-1]))
	}

	return hs
}

func (l *lowerer) lowerTryStmt(stmt *ast.Node) Stmt {
	hs := Stmt{Kind: StmtTryCatch, ExceptionParentRegionID: -1}
	if len(l.exceptionRegionStack) > 0 {
		hs.ExceptionParentRegionID = l.exceptionRegionStack[len(l.exceptionRegionStack)-1]
	}

	hs.ExceptionRegionID = l.nextExceptionRegionID
	l.nextExceptionRegionID++
	l.exceptionRegionStack = append(l.exceptionRegionStack, hs.ExceptionRegionID)

	if len(stmt.Children) > 0 {
		l.lowerStmt(stmt.Children[0], &hs.TryBody, false)
	}

	l.exceptionRegionStack = l.exceptionRegionStack[:len(l.exceptionRegionStack)-1]

	if len(stmt.Children) > 1 {
		if hs.ExceptionParentRegionID >= 0 {
			l.exceptionRegionStack = append(l.exceptionRegionStack, hs.ExceptionParentRegionID)
			l.lowerStmt(stmt.Children[1], &hs.CatchBody, false)
			l.exceptionRegionStack = l.exceptionRegionStack[:len(l.exceptionRegionStack)-1]
		} else {
			l.lowerStmt(stmt.Children[1], &hs.CatchBody, false)
		}
	}

	return hs
}

func (l *lowerer) lowerForStmt(stmt *ast.Node, out *[]Stmt) {
	if len(stmt.Children) > 0 && stmt.Children[0].Kind != "Init" {
		l.lowerExprAsStmt(stmt.Children[0], out)
	}

	hs := Stmt{Kind: StmtWhile}

	if len(stmt.Children) > 1 && stmt.Children[1].Kind != "Cond" {
		hs.FlowCond = l.lowerExpr(stmt.Children[1])
	} else {
		hs.FlowCond = Expr{Kind: ExprIntLiteral, Text: "1", Type: "I64"}
	}

	if len(stmt.Children) > 3 {
		l.lowerStmt(stmt.Children[3], &hs.FlowThen, false)
	}

	if len(stmt.Children) > 2 && stmt.Children[2].Kind != "Inc" {
		l.lowerExprAsStmt(stmt.Children[2], &hs.FlowThen)
	}

	*out = append(*out, hs)
}

func (l *lowerer) lowerSwitchStmt(stmt *ast.Node) Stmt {
	hs := Stmt{Kind: StmtSwitch}
	if len(stmt.Children) > 0 {
		hs.SwitchCond = l.lowerExpr(stmt.Children[0])
	}

	if len(stmt.Children) <= 1 || stmt.Children[1].Kind != "Block" {
		return hs
	}

	currentCase := -1

	for _, item := range stmt.Children[1].Children {
		switch {
		case item.Kind == "CaseClause":
			flags := 0

			var begin, end int64

			switch item.Text {
			case "null-case":
				flags |= 1
			case "range-case":
				flags |= 2
			}

			if len(item.Children) > 0 {
				if flags&1 == 0 {
					begin = parseConstIntExpr(l, item.Children[0])
					end = begin
				}

				if flags&2 != 0 && len(item.Children) > 1 {
					end = parseConstIntExpr(l, item.Children[1])
				}
			}

			hs.SwitchCaseFlags = append(hs.SwitchCaseFlags, flags)
			hs.SwitchCaseBegin = append(hs.SwitchCaseBegin, begin)
			hs.SwitchCaseEnd = append(hs.SwitchCaseEnd, end)
			hs.SwitchCaseBodies = append(hs.SwitchCaseBodies, nil)
			currentCase = len(hs.SwitchCaseBodies) - 1

			if len(item.Children) > 0 {
				firstStmt := item.Children[len(item.Children)-1]
				l.lowerStmt(firstStmt, &hs.SwitchCaseBodies[currentCase], false)
			}

		case item.Kind == "DefaultClause":
			if len(item.Children) > 0 {
				l.lowerStmt(item.Children[0], &hs.SwitchDefault, false)
			}

		case currentCase >= 0:
			l.lowerStmt(item, &hs.SwitchCaseBodies[currentCase], false)

		default:
			l.lowerStmt(item, &hs.SwitchDefault, false)
		}
	}

	return hs
}

func (l *lowerer) lowerPrintStmt(stmt *ast.Node) Stmt {
	if len(stmt.Children) == 0 {
		l.errorf("invalid print statement in lowering")
	}

	formatIndex, argBegin := 0, 1
	if len(stmt.Children) > 1 && stmt.Children[0].Kind == "Literal" && strings.TrimSpace(stmt.Children[0].Text) == `""` {
		// Normalize HolyC dynamic-format forwarding form: `"" fmt,*args`.
		formatIndex, argBegin = 1, 2
	}

	hs := Stmt{Kind: StmtPrint}
	hs.PrintFormat = l.lowerExpr(stmt.Children[formatIndex])

	if stmt.Children[formatIndex].Kind == "Literal" {
		hs.Name = stmt.Children[formatIndex].Text
	}

	for i := argBegin; i < len(stmt.Children); i++ {
		hs.PrintArgs = append(hs.PrintArgs, l.lowerExpr(stmt.Children[i]))
	}

	return hs
}

func (l *lowerer) lowerExprStmtKind(stmt *ast.Node, out *[]Stmt) {
	if len(stmt.Children) == 0 {
		return
	}

	expr := stmt.Children[0]

	if expr.Kind == "AssignExpr" && len(expr.Children) == 2 && expr.Children[0].Kind == "Identifier" {
		*out = append(*out, Stmt{
			Kind:     StmtAssign,
			Name:     expr.Children[0].Text,
			AssignOp: expr.Text,
			Expr:     l.lowerExpr(expr.Children[1]),
			Type:     expr.Type,
		})

		return
	}

	*out = append(*out, Stmt{Kind: StmtExpr, Expr: l.lowerExpr(expr), Type: stmt.Type})
}

func (l *lowerer) lowerExprAsStmt(expr *ast.Node, out *[]Stmt) {
	if expr.Kind == "AssignExpr" && len(expr.Children) == 2 && expr.Children[0].Kind == "Identifier" {
		*out = append(*out, Stmt{
			Kind:     StmtAssign,
			Name:     expr.Children[0].Text,
			AssignOp: expr.Text,
			Expr:     l.lowerExpr(expr.Children[1]),
			Type:     expr.Type,
		})

		return
	}

	*out = append(*out, Stmt{Kind: StmtExpr, Expr: l.lowerExpr(expr), Type: expr.Type})
}

func parseConstIntExpr(l *lowerer, n *ast.Node) int64 {
	if n.Kind != "Literal" {
		l.errorf("switch case requires literal constants")
	}

	if n.Text != "" && n.Text[0] == '\'' {
		return parseCharLiteralToInt(l, n.Text)
	}

	if v, ok := tryParseInt(n.Text); ok {
		return v
	}

	l.errorf("invalid integer literal: " + n.Text)

	return 0
}

func parseCharLiteralToInt(l *lowerer, text string) int64 {
	if len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
		l.errorf("invalid char literal: " + text)
	}

	body := text[1 : len(text)-1]
	if body == "" {
		return 0
	}

	if len(body) >= 2 && body[0] == '\\' {
		switch body[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case 'r':
			return '\r'
		case '\\':
			return '\\'
		case '\'':
			return '\''
		default:
			return int64(body[1])
		}
	}

	return int64(body[0])
}

func isConstInitializerExpr(n *ast.Node) bool {
	switch n.Kind {
	case "Literal":
		return true
	case "UnaryExpr":
		return len(n.Children) == 1 && isConstInitializerExpr(n.Children[0])
	case "BinaryExpr":
		return len(n.Children) == 2 && isConstInitializerExpr(n.Children[0]) && isConstInitializerExpr(n.Children[1])
	case "CastExpr":
		return len(n.Children) == 1 && isConstInitializerExpr(n.Children[0])
	case "CommaExpr":
		if len(n.Children) == 0 {
			return false
		}

		for _, c := range n.Children {
			if !isConstInitializerExpr(c) {
				return false
			}
		}

		return true
	}

	return false
}

func splitWhitespace(text string) []string {
	return strings.Fields(text)
}

func (l *lowerer) collectClassReflection(classNode *ast.Node, table *ReflectionTable) {
	_, className := parseTypedName(classNode.Text)
	if className == "" {
		return
	}

	for _, field := range classNode.Children {
		if field.Kind != "FieldDecl" {
			continue
		}

		fieldType, fieldName := parseTypedNameFromNode(field)
		if fieldName == "" {
			continue
		}

		entry := ReflectionField{AggregateName: className, FieldName: fieldName}
		normalizedFieldTy := stripDeclModifiers(fieldType)
		entry.FieldType = normalizedFieldTy
		if entry.FieldType == "" {
			entry.FieldType = "I64"
		}

		for _, child := range field.Children {
			if child.Kind == "FieldMetaTokens" {
				entry.Annotations = splitWhitespace(child.Text)
			}
		}

		table.Fields = append(table.Fields, entry)
	}
}
