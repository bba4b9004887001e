package sema

import (
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
)

// parseTypedName splits a space-joined declarator string into its type
// and name parts, used for LinkageDecl/ClassDecl text that never went
// through the parser's attachDeclParts (those already carry DeclType/
// DeclName children, read directly by parseTypedNameFromNode).
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

// parseTypedNameFromNode prefers the parser's own DeclType/DeclName
// split, falling back to re-deriving it from raw text for nodes (class
// declarations, linkage payloads) the parser doesn't split that way.
func parseTypedNameFromNode(n *ast.Node) (typ, name string) {
	declType, declName := findChildByKind(n, "DeclType"), findChildByKind(n, "DeclName")
	if declName != nil && declName.Text != "" {
		typ = ""
		if declType != nil {
			typ = declType.Text
		}

		return typ, declName.Text
	}

	return parseTypedName(n.Text)
}

// collectFunctionSignatures runs a first pass over top-level
// FunctionDecl nodes, so forward references across functions resolve
// without a separate declaration-order requirement.
func (a *analyzer) collectFunctionSignatures(program *ast.Node) {
	for _, child := range program.Children {
		if child.Kind != "FunctionDecl" {
			continue
		}

		retTy, fnName := parseTypedNameFromNode(child)
		if fnName == "" {
			a.errorf("invalid function declaration: " + child.Text)
		}

		a.validateDeclModifiers(retTy, "function declaration")

		sig := &FunctionSig{}
		normalizedRetTy := stripDeclModifiers(retTy)
		sig.ReturnType = normalizedRetTy
		if sig.ReturnType == "" {
			sig.ReturnType = "I64"
		}

		sig.Name = fnName
		sig.LinkageKind = resolveFunctionLinkageKind(retTy)
		sig.Imported = isImportLinkage(retTy)

		if params := findChildByKind(child, "ParamList"); params != nil {
			for _, p := range params.Children {
				paramTy, paramName := parseTypedNameFromNode(p)
				if paramName == "" {
					a.errorf("invalid parameter declaration: " + p.Text)
				}

				a.validateDeclModifiers(paramTy, "parameter declaration")
				normalizedParamTy := stripDeclModifiers(paramTy)

				if normalizedParamTy == "" {
					normalizedParamTy = "I64"
				}

				hasDefault := findChildByKind(p, "Default") != nil
				sig.Params = append(sig.Params, ParamSig{Type: normalizedParamTy, Name: paramName, HasDefault: hasDefault})
			}
		}

		hasBody := findChildByKind(child, "Block") != nil
		if hasBody && sig.Imported {
			a.errorf("import linkage function cannot have a definition: " + sig.Name)
		}

		if existing, ok := a.functions[sig.Name]; !ok {
			a.functions[sig.Name] = sig
		} else {
			if !sameSignature(existing, sig) {
				a.errorf("conflicting function declaration for: " + sig.Name)
			}

			if existing.LinkageKind != sig.LinkageKind &&
				(existing.LinkageKind == "internal" || sig.LinkageKind == "internal") {
				a.errorf("conflicting function linkage for: " + sig.Name)
			}

			if existing.Imported != sig.Imported && hasBody {
				a.errorf("conflicting import linkage declaration for: " + sig.Name)
			}
		}

		if hasBody {
			if a.functionDefinitions[sig.Name] {
				a.errorf("duplicate function definition for: " + sig.Name)
			}

			a.functionDefinitions[sig.Name] = true
		}
	}
}

func (a *analyzer) collectGlobalSymbols(program *ast.Node) {
	for _, child := range program.Children {
		switch child.Kind {
		case "VarDecl":
			a.collectGlobalVarDecl(child)
		case "VarDeclList":
			for _, item := range child.Children {
				if item.Kind == "VarDecl" {
					a.collectGlobalVarDecl(item)
				}
			}
		case "LinkageDecl":
			if len(child.Children) == 0 {
				continue
			}

			a.validateLinkageKind(child.Text, "linkage declaration")
			declSpec := child.Children[0].Text
			declTy, name := parseTypedName(declSpec)

			if name == "" {
				continue
			}

			a.validateDeclModifiers(declTy, "linkage declaration")
			normalizedDeclTy := stripDeclModifiers(declTy)

			if normalizedDeclTy == "" {
				normalizedDeclTy = "I64"
			}

			a.declareImported(name, normalizedDeclTy, child.Text)
		case "ClassDecl":
			a.collectClassDecl(child)
		}
	}
}

func (a *analyzer) collectGlobalVarDecl(n *ast.Node) {
	declTy, name := parseTypedNameFromNode(n)
	if name == "" {
		a.errorf("invalid global variable declaration: " + n.Text)
	}

	a.validateDeclModifiers(declTy, "global variable declaration")
	normalizedDeclTy := stripDeclModifiers(declTy)

	if normalizedDeclTy == "" {
		normalizedDeclTy = "I64"
	}

	a.declareGlobal(name, normalizedDeclTy)
}

func (a *analyzer) collectClassDecl(n *ast.Node) {
	_, className := parseTypedName(n.Text)
	if className == "" {
		return
	}

	if _, ok := a.classMembers[className]; ok {
		a.errorf("duplicate class/union declaration: " + className)
	}

	isUnion := strings.HasPrefix(n.Text, "union ")
	members := map[string]string{}
	offsets := map[string]int{}

	layoutSize, runningOffset := 0, 0

	for _, field := range n.Children {
		if field.Kind != "FieldDecl" {
			continue
		}

		fieldTy, fieldName := parseTypedNameFromNode(field)
		if fieldName == "" {
			continue
		}

		a.validateDeclModifiers(fieldTy, "field declaration")

		if _, ok := members[fieldName]; ok {
			a.errorf("duplicate field in " + className + ": " + fieldName)
		}

		normalizedFieldTy := stripDeclModifiers(fieldTy)
		if normalizedFieldTy == "" {
			normalizedFieldTy = "I64"
		}

		members[fieldName] = normalizedFieldTy

		if isUnion {
			offsets[fieldName] = 0

			if sz := estimateTypeSize(members[fieldName]); sz > layoutSize {
				layoutSize = sz
			}
		} else {
			offsets[fieldName] = runningOffset
			runningOffset += estimateTypeSize(members[fieldName])
			layoutSize = runningOffset
		}
	}

	a.classMembers[className] = members
	a.classFieldOffsets[className] = offsets
	a.classLayoutSizes[className] = layoutSize

	for _, trailing := range n.Children {
		if trailing.Kind != "VarDecl" {
			continue
		}

		declTy, name := parseTypedNameFromNode(trailing)
		if name == "" {
			a.errorf("invalid global variable declaration: " + trailing.Text)
		}

		if declTy == "" {
			declTy = className
		}

		a.declareGlobal(name, declTy)
	}
}
