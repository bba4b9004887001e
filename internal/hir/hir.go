// Package hir lowers the typed *ast.Node tree produced by sema into the
// closed variant sets described in spec §4.5: HIRExpr/HIRStmt carry a
// fixed Kind enum instead of the open string Kind used through parsing
// and type-checking, so every downstream phase (the IR builder) switches
// over a finite, exhaustively-checkable set of shapes.
package hir

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/diag"
)

type ExprKind int

const (
	ExprIntLiteral ExprKind = iota
	ExprStringLiteral
	ExprDollar
	ExprVar
	ExprAssign
	ExprUnary
	ExprBinary
	ExprCall
	ExprCast
	ExprPostfix
	ExprLane
	ExprMember
	ExprIndex
	ExprComma
)

// Expr is a single HIR expression node: a fixed Kind, the operator/name
// text it carries, its lowered children, and its resolved type string.
type Expr struct {
	Kind     ExprKind
	Text     string
	Children []Expr
	Type     string
}

type StmtKind int

const (
	StmtVarDecl StmtKind = iota
	StmtAssign
	StmtReturn
	StmtExpr
	StmtNoParenCall
	StmtPrint
	StmtLock
	StmtThrow
	StmtTryCatch
	StmtBreak
	StmtSwitch
	StmtIf
	StmtWhile
	StmtDoWhile
	StmtLabel
	StmtGoto
	StmtInlineAsm
	StmtMetadataDecl
	StmtLinkageDecl
)

// Stmt is a single HIR statement. Not every field is meaningful for
// every Kind; which ones apply is documented per-Kind at the call sites
// in stmt.go, mirroring the single wide struct the lowering is grounded
// on rather than one Go type per statement kind.
type Stmt struct {
	Kind     StmtKind
	Name     string
	Type     string
	DeclStorage              string // "global" / "static-global" / "local" / "static-local"
	DeclIsGlobal             bool
	DeclHasConstInitializer  bool
	AssignOp                 string
	Expr                     Expr
	PrintFormat              Expr
	PrintArgs                []Expr
	TryBody                  []Stmt
	CatchBody                []Stmt
	SwitchCond               Expr
	SwitchCaseBegin          []int64
	SwitchCaseEnd            []int64
	SwitchCaseFlags          []int // bit 0: null-case, bit 1: range-case
	SwitchCaseBodies         [][]Stmt
	SwitchDefault            []Stmt
	FlowCond                 Expr
	FlowThen                 []Stmt
	FlowElse                 []Stmt
	LabelName                string
	GotoTarget               string
	AsmTemplate              string
	AsmConstraints           []string
	AsmOperands              []Expr
	AsmOperandPresent         []bool
	MetadataName              string
	MetadataPayload           []string
	LinkageKind               string
	LinkageSymbol             string
	ExceptionRegionID         int
	ExceptionParentRegionID   int
}

type Param struct {
	Type string
	Name string
}

type Function struct {
	Name        string
	ReturnType  string
	LinkageKind string
	Params      []Param
	Body        []Stmt
}

type FunctionDecl struct {
	Name        string
	ReturnType  string
	LinkageKind string
	Params      []Param
}

type ReflectionField struct {
	AggregateName string
	FieldName     string
	FieldType     string
	Annotations   []string
}

type ReflectionTable struct {
	TypeAliases []string
	Fields      []ReflectionField
}

type Module struct {
	TopLevelItems []Stmt
	Functions     []Function
	FunctionDecls []FunctionDecl
	Reflection    ReflectionTable
}

type paramSig struct {
	Type        string
	Name        string
	HasDefault  bool
	DefaultExpr *ast.Node
}

type functionSig struct {
	ReturnType  string
	Name        string
	Params      []paramSig
	LinkageKind string
	Imported    bool
}

// hirError unwinds to LowerToHir on the first lowering failure,
// mirroring the throw-on-first-error style of the lowerer this package
// is grounded on.
type hirError struct{ d *diag.Diagnostic }

type lowerer struct {
	filename string

	functions     map[string]*functionSig
	functionOrder []string

	nextExceptionRegionID int
	exceptionRegionStack  []int
}

func (l *lowerer) errorf(msg string) {
	panic(hirError{d: diag.Err("HC4001").At(l.filename, 0, 0).Msg(msg).Build()})
}

// LowerToHir lowers a sema-checked program into an HIR module, per spec
// §4.5.
func LowerToHir(program *ast.Node, filename string) (module *Module, diagOut *diag.Diagnostic) {
	l := &lowerer{
		filename:              filename,
		functions:             map[string]*functionSig{},
		nextExceptionRegionID: 1,
	}

	defer func() {
		if r := recover(); r != nil {
			if he, ok := r.(hirError); ok {
				diagOut = he.d
				return
			}
			panic(r)
		}
	}()

	m := l.lowerModule(program)

	return m, nil
}

func (l *lowerer) lowerModule(program *ast.Node) *Module {
	l.collectFunctionSignatures(program)

	module := &Module{}

	for _, child := range program.Children {
		switch child.Kind {
		case "FunctionDecl":
			if findChildByKind(child, "Block") == nil {
				continue
			}

			module.Functions = append(module.Functions, l.lowerFunction(child))

			continue

		case "ClassDecl":
			l.collectClassReflection(child, &module.Reflection)

			hs := Stmt{Kind: StmtMetadataDecl, MetadataName: child.Text}
			for _, meta := range child.Children {
				if meta.Kind == "VarDecl" {
					continue
				}

				hs.MetadataPayload = append(hs.MetadataPayload, meta.Text)
			}

			module.TopLevelItems = append(module.TopLevelItems, hs)

			for _, trailing := range child.Children {
				if trailing.Kind != "VarDecl" {
					continue
				}

				l.lowerStmt(trailing, &module.TopLevelItems, true)
			}

			continue

		case "TypeAliasDecl":
			module.Reflection.TypeAliases = append(module.Reflection.TypeAliases, child.Text)
			module.TopLevelItems = append(module.TopLevelItems, Stmt{
				Kind:            StmtMetadataDecl,
				MetadataName:    "typedef",
				MetadataPayload: []string{child.Text},
			})

			continue

		case "LinkageDecl":
			hs := Stmt{Kind: StmtLinkageDecl, LinkageKind: child.Text}
			if len(child.Children) > 0 {
				hs.LinkageSymbol = child.Children[0].Text
			}

			module.TopLevelItems = append(module.TopLevelItems, hs)

			continue

		case "ExprStmt":
			if len(child.Children) > 0 && child.Children[0].Kind == "Identifier" {
				switch child.Children[0].Text {
				case "extern", "import", "_extern", "_import", "export", "_export":
					module.TopLevelItems = append(module.TopLevelItems, Stmt{
						Kind:        StmtLinkageDecl,
						LinkageKind: child.Children[0].Text,
					})

					continue
				}
			}

		case "StartLabel", "EndLabel":
			module.TopLevelItems = append(module.TopLevelItems, Stmt{Kind: StmtMetadataDecl, MetadataName: child.Kind})

			continue
		}

		l.lowerStmt(child, &module.TopLevelItems, true)
	}

	module.FunctionDecls = make([]FunctionDecl, 0, len(l.functionOrder))
	for _, fnName := range l.functionOrder {
		sig, ok := l.functions[fnName]
		if !ok {
			continue
		}

		decl := FunctionDecl{Name: sig.Name, ReturnType: sig.ReturnType, LinkageKind: sig.LinkageKind}
		for _, param := range sig.Params {
			decl.Params = append(decl.Params, Param{Type: param.Type, Name: param.Name})
		}

		module.FunctionDecls = append(module.FunctionDecls, decl)
	}

	return module
}

func (l *lowerer) collectFunctionSignatures(program *ast.Node) {
	l.functions = map[string]*functionSig{}
	l.functionOrder = nil

	for _, child := range program.Children {
		if child.Kind != "FunctionDecl" {
			continue
		}

		retTy, fnName := parseTypedNameFromNode(child)
		if fnName == "" {
			l.errorf("invalid function declaration in lowering: " + child.Text)
		}

		sig := &functionSig{}
		normalizedRetTy := stripDeclModifiers(retTy)
		sig.ReturnType = normalizedRetTy
		if sig.ReturnType == "" {
			sig.ReturnType = "I64"
		}

		sig.Name = fnName
		sig.LinkageKind = resolveFunctionLinkageKind(retTy)
		sig.Imported = hasDeclModifier(retTy, "import") || hasDeclModifier(retTy, "_import")

		if params := findChildByKind(child, "ParamList"); params != nil {
			for _, p := range params.Children {
				paramTy, paramName := parseTypedNameFromNode(p)
				if paramName == "" {
					l.errorf("invalid function parameter in lowering: " + p.Text)
				}

				defaultExpr := findChildByKind(p, "Default")
				normalizedParamTy := stripDeclModifiers(paramTy)
				if normalizedParamTy == "" {
					normalizedParamTy = "I64"
				}

				var lowered *ast.Node
				if defaultExpr != nil {
					if len(defaultExpr.Children) == 0 {
						l.errorf("invalid default argument expression in lowering: " + p.Text)
					}

					lowered = defaultExpr.Children[0]
				}

				sig.Params = append(sig.Params, paramSig{
					Type:        normalizedParamTy,
					Name:        paramName,
					HasDefault:  defaultExpr != nil,
					DefaultExpr: lowered,
				})
			}
		}

		if existing, ok := l.functions[sig.Name]; !ok {
			l.functions[sig.Name] = sig
			l.functionOrder = append(l.functionOrder, sig.Name)
		} else {
			if existing.ReturnType != sig.ReturnType || len(existing.Params) != len(sig.Params) {
				l.errorf("conflicting function declaration in lowering: " + sig.Name)
			}

			for i := range sig.Params {
				if existing.Params[i].Type != sig.Params[i].Type || existing.Params[i].Name != sig.Params[i].Name {
					l.errorf("conflicting function declaration in lowering: " + sig.Name)
				}
			}

			if existing.LinkageKind != sig.LinkageKind && (existing.LinkageKind == "internal" || sig.LinkageKind == "internal") {
				l.errorf("conflicting function linkage in lowering: " + sig.Name)
			}
		}

		hasBody := findChildByKind(child, "Block") != nil
		if hasBody && sig.Imported {
			l.errorf("import linkage function cannot have a definition in lowering: " + sig.Name)
		}
	}
}

func (l *lowerer) lowerFunction(fn *ast.Node) Function {
	retTy, fnName := parseTypedNameFromNode(fn)
	if fnName == "" {
		l.errorf("invalid function in HIR lowering: " + fn.Text)
	}

	out := Function{Name: fnName}
	normalizedRetTy := stripDeclModifiers(retTy)
	out.ReturnType = normalizedRetTy
	if out.ReturnType == "" {
		out.ReturnType = "I64"
	}

	if sig, ok := l.functions[fnName]; ok {
		out.LinkageKind = sig.LinkageKind
	} else {
		out.LinkageKind = resolveFunctionLinkageKind(retTy)
	}

	l.nextExceptionRegionID = 1
	l.exceptionRegionStack = nil

	if params := findChildByKind(fn, "ParamList"); params != nil {
		for _, p := range params.Children {
			pTy, pName := parseTypedNameFromNode(p)
			if pName == "" {
				l.errorf("invalid parameter in HIR lowering: " + p.Text)
			}

			normalizedParamTy := stripDeclModifiers(pTy)
			if normalizedParamTy == "" {
				normalizedParamTy = "I64"
			}

			out.Params = append(out.Params, Param{Type: normalizedParamTy, Name: pName})
		}
	}

	body := findChildByKind(fn, "Block")
	if body == nil {
		l.errorf("missing function body in HIR lowering: " + fn.Text)
	}

	for _, stmt := range body.Children {
		l.lowerStmt(stmt, &out.Body, false)
	}

	return out
}

// parseTypedName splits a space-joined declarator string into its type
// and name parts, a fallback for node shapes (ClassDecl text, LinkageDecl
// payloads) that never went through the parser's own DeclType/DeclName
// split.
func parseTypedName(text string) (typ, name string) {
	toks := strings.Fields(strings.TrimSpace(text))
	if len(toks) == 0 {
		return "", ""
	}

	for i := 0; i+3 < len(toks); i++ {
		if toks[i] == "(" && (toks[i+1] == "*" || toks[i+1] == "&") && isIdent(toks[i+2]) && toks[i+3] == ")" {
			return strings.Join(toks[:i], " "), toks[i+2]
		}
	}

	for i := len(toks) - 1; i >= 0; i-- {
		if !isIdent(toks[i]) {
			continue
		}

		if i > 0 && toks[i-1] == "::" {
			continue
		}

		return strings.Join(toks[:i], " "), toks[i]
	}

	return "", ""
}

func isIdent(tok string) bool {
	if tok == "" {
		return false
	}

	c := tok[0]
	if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_') {
		return false
	}

	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}

func findChildByKind(n *ast.Node, kind string) *ast.Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}

	return nil
}

func findVarInitializer(n *ast.Node) *ast.Node {
	for _, c := range n.Children {
		if c.Kind != "DeclType" && c.Kind != "DeclName" {
			return c
		}
	}

	return nil
}

func parseTypedNameFromNode(n *ast.Node) (typ, name string) {
	declType, declName := findChildByKind(n, "DeclType"), findChildByKind(n, "DeclName")
	if declName != nil && declName.Text != "" {
		if declType != nil {
			typ = declType.Text
		}

		return typ, declName.Text
	}

	return parseTypedName(n.Text)
}

var compatModifiers = map[string]bool{
	"public": true, "interrupt": true, "noreg": true, "reg": true, "no_warn": true,
	"static": true, "extern": true, "import": true, "_extern": true, "_import": true,
	"export": true, "_export": true,
}

// stripDeclModifiers removes the legacy compatibility/linkage modifier
// keywords from a declarator's type text, leaving the bare type.
func stripDeclModifiers(declText string) string {
	var kept []string
	for _, tok := range strings.Fields(declText) {
		if compatModifiers[tok] {
			continue
		}

		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

func hasDeclModifier(declText, modifier string) bool {
	for _, tok := range strings.Fields(declText) {
		if tok == modifier {
			return true
		}
	}

	return false
}

func resolveFunctionLinkageKind(declText string) string {
	if hasDeclModifier(declText, "static") {
		return "internal"
	}

	return "external"
}

func tryParseInt(text string) (int64, bool) {
	v, err := strconv.ParseInt(text, 0, 64)
	if err == nil {
		return v, true
	}

	uv, uerr := strconv.ParseUint(text, 0, 64)
	if uerr == nil {
		return int64(uv), true
	}

	return 0, false
}
