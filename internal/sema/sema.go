// Package sema implements the semantic analyzer from spec §4.4: symbol
// tables, type inference/checking, print-format validation, goto
// legality, and the strict/permissive modifier gate, mutating the
// parser's *ast.Node trees in place (Type field) rather than building a
// second typed tree.
package sema

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/diag"
)

// ValueKind classifies a type for the purposes of implicit-conversion
// and operator-applicability checks; it deliberately collapses every
// integer width into KindInt/KindUInt since HolyC's arithmetic is 64-bit
// centric (spec §4.4, "Integer promotion").
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindBool
	KindInt
	KindUInt
	KindFloat
	KindPointer
)

// TypeInfo is the resolved shape of a HolyC type string.
type TypeInfo struct {
	Kind ValueKind
	Bits int
}

// ParamSig and FunctionSig describe a collected function signature.
type ParamSig struct {
	Type       string
	Name       string
	HasDefault bool
}

type FunctionSig struct {
	ReturnType  string
	Name        string
	Params      []ParamSig
	LinkageKind string // "external" or "internal"
	Imported    bool
}

type labelInfo struct {
	index int
	depth int
}

type gotoInfo struct {
	target string
	index  int
	depth  int
}

type initDeclInfo struct {
	name  string
	index int
	depth int
}

// semaError is panicked to unwind to Analyze on the first diagnostic,
// mirroring the throw-on-first-error style of the analyzer this package
// is grounded on.
type semaError struct{ d *diag.Diagnostic }

type analyzer struct {
	filename   string
	strictMode bool

	currentReturnType string
	inFunction        bool

	functions           map[string]*FunctionSig
	functionDefinitions map[string]bool
	globalSymbols       map[string]string
	importedSymbols     map[string]string
	classMembers        map[string]map[string]string
	classFieldOffsets   map[string]map[string]int
	classLayoutSizes    map[string]int

	labelPositions map[string]labelInfo
	gotoInfos      []gotoInfo
	initDeclInfos  []initDeclInfo
	labels         map[string]bool
	gotoTargets    []string

	scopes []map[string]string
}

// Analyze type-checks program in place and returns it, or the first
// diagnostic raised. strictMode gates the legacy compatibility
// modifiers (public/interrupt/noreg/reg/no_warn and the underscore-
// prefixed linkage spellings) per spec §4.4's strict/permissive split.
func Analyze(program *ast.Node, filename string, strictMode bool) (result *ast.Node, diagOut *diag.Diagnostic) {
	a := &analyzer{
		filename:             filename,
		strictMode:           strictMode,
		functions:            map[string]*FunctionSig{},
		functionDefinitions:  map[string]bool{},
		globalSymbols:        map[string]string{},
		importedSymbols:      map[string]string{},
		classMembers:         map[string]map[string]string{},
		classFieldOffsets:    map[string]map[string]int{},
		classLayoutSizes:     map[string]int{},
		labels:               map[string]bool{},
	}

	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(semaError); ok {
				diagOut = se.d

				return
			}

			panic(r)
		}
	}()

	if program.Kind != "Program" {
		a.errorf("internal semantic error: expected program node")
	}

	a.bootstrapRuntimeBuiltins()
	a.collectFunctionSignatures(program)
	a.collectGlobalSymbols(program)

	for _, child := range program.Children {
		a.analyzeTopLevel(child)
	}

	return program, nil
}

func (a *analyzer) errorf(msg string) {
	panic(semaError{d: diag.Err("HC3001").At(a.filename, 0, 0).Msg("semantic error: " + msg).Build()})
}

func (a *analyzer) errorAt(line, col int, code, msg string) {
	panic(semaError{d: diag.Err(code).At(a.filename, line, col).Msg(msg).Build()})
}

// --- type system -----------------------------------------------------

func hasPointerMarker(typ string) bool { return strings.Contains(typ, "*") }

func addPointerLevel(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "I64*"
	}

	if strings.HasSuffix(base, "*") {
		return base + "*"
	}

	return base + " *"
}

func removePointerLevel(ptr string) string {
	ptr = strings.TrimSpace(ptr)

	star := strings.LastIndex(ptr, "*")
	if star < 0 {
		return ptr
	}

	return strings.TrimSpace(ptr[:star])
}

func estimateTypeSize(typ string) int {
	info := parseTypeInfo(typ)

	switch {
	case info.Kind == KindPointer || info.Kind == KindUnknown:
		return 8
	case info.Kind == KindFloat:
		return 8
	case info.Bits <= 8:
		return 1
	case info.Bits <= 16:
		return 2
	case info.Bits <= 32:
		return 4
	default:
		return 8
	}
}

func normalizeAggregateTypeName(typ string) string {
	typ = strings.TrimSpace(typ)
	for strings.HasSuffix(typ, "*") {
		typ = strings.TrimSpace(strings.TrimSuffix(typ, "*"))
	}

	switch {
	case strings.HasPrefix(typ, "class "):
		return strings.TrimSpace(typ[len("class "):])
	case strings.HasPrefix(typ, "union "):
		return strings.TrimSpace(typ[len("union "):])
	default:
		return typ
	}
}

func parseTypeInfo(typ string) TypeInfo {
	ty := strings.TrimSpace(typ)
	if ty == "" {
		return TypeInfo{}
	}

	if hasPointerMarker(ty) {
		return TypeInfo{Kind: KindPointer, Bits: 64}
	}

	switch ty {
	case "Bool", "Bool(chained)":
		return TypeInfo{Kind: KindBool, Bits: 1}
	case "F64":
		return TypeInfo{Kind: KindFloat, Bits: 64}
	case "I8":
		return TypeInfo{Kind: KindInt, Bits: 8}
	case "U8":
		return TypeInfo{Kind: KindUInt, Bits: 8}
	case "I16":
		return TypeInfo{Kind: KindInt, Bits: 16}
	case "U16":
		return TypeInfo{Kind: KindUInt, Bits: 16}
	case "I32":
		return TypeInfo{Kind: KindInt, Bits: 32}
	case "U32":
		return TypeInfo{Kind: KindUInt, Bits: 32}
	case "I64":
		return TypeInfo{Kind: KindInt, Bits: 64}
	case "U64":
		return TypeInfo{Kind: KindUInt, Bits: 64}
	default:
		return TypeInfo{}
	}
}

func laneElementType(lane string) string {
	switch strings.TrimSpace(lane) {
	case "i8", "I8":
		return "I8"
	case "u8", "U8":
		return "U8"
	case "i16", "I16":
		return "I16"
	case "u16", "U16":
		return "U16"
	case "i32", "I32":
		return "I32"
	case "u32", "U32":
		return "U32"
	case "i64", "I64":
		return "I64"
	case "u64", "U64":
		return "U64"
	default:
		return ""
	}
}

func laneElementBits(lane string) int {
	switch strings.TrimSpace(lane) {
	case "i8", "I8", "u8", "U8":
		return 8
	case "i16", "I16", "u16", "U16":
		return 16
	case "i32", "I32", "u32", "U32":
		return 32
	case "i64", "I64", "u64", "U64":
		return 64
	default:
		return 0
	}
}

func tryParseIntLiteral(n *ast.Node) (int64, bool) {
	if n == nil || n.Kind != "Literal" || n.Text == "" {
		return 0, false
	}

	if n.Text[0] == '"' || n.Text[0] == '\'' {
		return 0, false
	}

	v, err := strconv.ParseInt(n.Text, 0, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func isNumeric(t TypeInfo) bool {
	return t.Kind == KindBool || t.Kind == KindInt || t.Kind == KindUInt || t.Kind == KindFloat
}

func isIntegralLike(t TypeInfo) bool {
	return t.Kind == KindBool || t.Kind == KindInt || t.Kind == KindUInt
}

func isThrowable(t TypeInfo) bool {
	return t.Kind == KindUnknown || isIntegralLike(t)
}

func isStringLiteralText(text string) bool {
	t := strings.TrimSpace(text)

	return len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"'
}

func isCharLiteralText(text string) bool {
	t := strings.TrimSpace(text)

	return len(t) >= 3 && t[0] == '\'' && t[len(t)-1] == '\''
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

func promoteIntegerResultType(lhs, rhs string) string {
	l, r := parseTypeInfo(lhs), parseTypeInfo(rhs)
	if !isIntegralLike(l) || !isIntegralLike(r) {
		return "I64"
	}

	if l.Kind == KindUInt || r.Kind == KindUInt {
		return "U64"
	}

	return "I64"
}

func canImplicitConvert(from, to string) bool {
	f, t := parseTypeInfo(from), parseTypeInfo(to)

	if f.Kind == KindUnknown || t.Kind == KindUnknown {
		return true
	}

	if f.Kind == t.Kind {
		return true
	}

	if isNumeric(f) && isNumeric(t) {
		return true
	}

	fromIntegral := f.Kind == KindBool || f.Kind == KindInt || f.Kind == KindUInt
	toIntegral := t.Kind == KindBool || t.Kind == KindInt || t.Kind == KindUInt

	if (f.Kind == KindPointer && toIntegral) || (t.Kind == KindPointer && fromIntegral) {
		return true
	}

	return false
}

func sameSignature(a, b *FunctionSig) bool {
	if a.ReturnType != b.ReturnType || len(a.Params) != len(b.Params) {
		return false
	}

	for i := range a.Params {
		if a.Params[i].Type != b.Params[i].Type || a.Params[i].Name != b.Params[i].Name {
			return false
		}
	}

	return true
}

func trimTrailingPointerMarkers(typ string) string {
	typ = strings.TrimSpace(typ)
	for strings.HasSuffix(typ, "*") {
		typ = strings.TrimSpace(typ[:len(typ)-1])
	}

	return typ
}

func inferCallReturnTypeFromCalleeType(calleeType string) string {
	normalized := strings.TrimSpace(calleeType)

	if strings.HasPrefix(normalized, "fn ") {
		ret := trimTrailingPointerMarkers(normalized[3:])
		if ret == "" {
			return "I64"
		}

		return ret
	}

	if parseTypeInfo(normalized).Kind == KindPointer {
		return "I64"
	}

	if normalized == "" {
		return "I64"
	}

	return normalized
}

var compatModifiers = map[string]bool{
	"public": true, "interrupt": true, "noreg": true, "reg": true, "no_warn": true,
	"static": true, "extern": true, "import": true, "_extern": true, "_import": true,
	"export": true, "_export": true,
}

var permissiveOnlyModifiers = map[string]bool{
	"public": true, "interrupt": true, "noreg": true, "reg": true, "no_warn": true,
	"_extern": true, "_import": true, "_export": true,
}

func hasDeclModifier(declText, modifier string) bool {
	for _, tok := range strings.Fields(declText) {
		if tok == modifier {
			return true
		}
	}

	return false
}

func isImportLinkage(declText string) bool {
	return hasDeclModifier(declText, "import") || hasDeclModifier(declText, "_import")
}

func resolveFunctionLinkageKind(declText string) string {
	if hasDeclModifier(declText, "static") {
		return "internal"
	}

	return "external"
}

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

func (a *analyzer) validateDeclModifiers(declText, context string) {
	if !a.strictMode {
		return
	}

	for _, tok := range strings.Fields(declText) {
		if permissiveOnlyModifiers[tok] {
			a.errorf("strict mode rejects compatibility modifier '" + tok + "' in " + context +
				"; pass --permissive to enable it")
		}
	}
}

func (a *analyzer) validateLinkageKind(linkageKind, context string) {
	if !a.strictMode {
		return
	}

	switch linkageKind {
	case "_extern", "_import", "_export":
		a.errorf("strict mode rejects compatibility linkage '" + linkageKind + "' in " + context +
			"; pass --permissive to enable it")
	}
}

func isStatementNodeKind(kind string) bool {
	switch kind {
	case "VarDecl", "VarDeclList", "Block", "CaseClause", "DefaultClause", "LabelStmt",
		"TypeAliasDecl", "LinkageDecl", "ClassDecl", "EmptyStmt":
		return true
	}

	return strings.HasSuffix(kind, "Stmt")
}

// --- scopes ------------------------------------------------------------

func (a *analyzer) pushScope() { a.scopes = append(a.scopes, map[string]string{}) }

func (a *analyzer) popScope() {
	if len(a.scopes) > 0 {
		a.scopes = a.scopes[:len(a.scopes)-1]
	}
}

func (a *analyzer) declareLocal(name, typ string) {
	if len(a.scopes) == 0 {
		a.pushScope()
	}

	top := a.scopes[len(a.scopes)-1]
	if _, ok := top[name]; ok {
		a.errorf("duplicate declaration: " + name)
	}

	top[name] = typ
}

func (a *analyzer) declareGlobal(name, typ string) {
	if _, ok := a.globalSymbols[name]; ok {
		a.errorf("duplicate global declaration: " + name)
	}

	if _, ok := a.functions[name]; ok {
		a.errorf("global declaration conflicts with function symbol: " + name)
	}

	if importedTy, ok := a.importedSymbols[name]; ok {
		if importedTy != typ {
			a.errorf("global declaration type conflicts with imported symbol: " + name)
		}

		delete(a.importedSymbols, name)
	}

	a.globalSymbols[name] = typ
}

func (a *analyzer) declareImported(name, typ, linkageKind string) {
	if existing, ok := a.globalSymbols[name]; ok {
		if existing != typ {
			a.errorf("imported symbol conflicts with global declaration: " + name)
		}

		return
	}

	if _, ok := a.functions[name]; ok {
		a.errorf("imported symbol conflicts with function symbol: " + name)
	}

	switch linkageKind {
	case "extern", "_extern", "import", "_import", "export", "_export":
	default:
		a.errorf("unsupported linkage declaration: " + linkageKind)
	}

	if existing, ok := a.importedSymbols[name]; ok {
		if existing != typ {
			a.errorf("conflicting imported symbol declaration: " + name)
		}

		return
	}

	a.importedSymbols[name] = typ
}

func (a *analyzer) lookup(name string) (string, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if t, ok := a.scopes[i][name]; ok {
			return t, true
		}
	}

	if t, ok := a.globalSymbols[name]; ok {
		return t, true
	}

	if t, ok := a.importedSymbols[name]; ok {
		return t, true
	}

	return "", false
}

func (a *analyzer) lookupLocalOnly(name string) (string, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if t, ok := a.scopes[i][name]; ok {
			return t, true
		}
	}

	return "", false
}

// bootstrapRuntimeBuiltins seeds the globals/functions/aggregates every
// HolyC program can reference without a declaration: the boolean and
// NULL constants, the current-process Fs/Gs context pointers, and the
// small set of reflection/job-control runtime entry points spec §4.4
// and §7 call out by name.
func (a *analyzer) bootstrapRuntimeBuiltins() {
	addGlobal := func(name, typ string) {
		if _, ok := a.globalSymbols[name]; !ok {
			a.globalSymbols[name] = typ
		}
	}

	addFn := func(name, ret string, params []ParamSig) {
		if _, ok := a.functions[name]; ok {
			return
		}

		a.functions[name] = &FunctionSig{ReturnType: ret, Name: name, Params: params, LinkageKind: "external"}
	}

	addGlobal("TRUE", "Bool")
	addGlobal("FALSE", "Bool")
	addGlobal("NULL", "U8*")
	addGlobal("YorN", "Bool")
	addGlobal("tS", "F64")
	addGlobal("RED", "I64")
	addGlobal("HTT_CLASS", "I64")
	addGlobal("Fs", "FsCtx *")
	addGlobal("Gs", "FsCtx *")

	if _, ok := a.classMembers["FsCtx"]; !ok {
		a.classMembers["FsCtx"] = map[string]string{
			"except_ch": "I64", "except_callers": "U8**", "catch_except": "Bool", "hash_table": "U8*",
		}
		a.classFieldOffsets["FsCtx"] = map[string]int{
			"except_ch": 0, "except_callers": 8, "catch_except": 16, "hash_table": 24,
		}
		a.classLayoutSizes["FsCtx"] = 32
	}

	if _, ok := a.classMembers["CHashClass"]; !ok {
		a.classMembers["CHashClass"] = map[string]string{"member_lst_and_root": "CMemberLst *"}
		a.classFieldOffsets["CHashClass"] = map[string]int{"member_lst_and_root": 0}
		a.classLayoutSizes["CHashClass"] = 8
	}

	if _, ok := a.classMembers["CMemberLst"]; !ok {
		a.classMembers["CMemberLst"] = map[string]string{"str": "U8*", "offset": "I64", "next": "CMemberLst *"}
		a.classFieldOffsets["CMemberLst"] = map[string]int{"str": 0, "offset": 8, "next": 16}
		a.classLayoutSizes["CMemberLst"] = 24
	}

	addFn("PressAKey", "U0", nil)
	addFn("ClassRep", "U0", []ParamSig{{"U8*", "ptr", false}})
	addFn("ClassRepD", "U0", []ParamSig{{"U8*", "ptr", false}})
	addFn("HashFind", "CHashClass *", []ParamSig{{"U8*", "name", false}, {"U8*", "table", false}, {"I64", "kind", false}})
	addFn("MemberMetaData", "I64", []ParamSig{{"U8*", "key", false}, {"CMemberLst *", "ml", false}})
	addFn("MemberMetaFind", "I64", []ParamSig{{"U8*", "key", false}, {"CMemberLst *", "ml", false}})
	addFn("JobQue", "CJob *", []ParamSig{{"U8*", "fn", false}, {"U8*", "arg", false}, {"I64", "cpu", false}, {"I64", "flags", false}})
	addFn("JobResGet", "I64", []ParamSig{{"CJob *", "job", false}})
	addFn("CallStkGrow", "I64", []ParamSig{
		{"I64", "stack_min", false}, {"I64", "stack_max", false}, {"U8*", "fn", false},
		{"I64", "a0", true}, {"I64", "a1", true}, {"I64", "a2", true},
	})
	addFn("Spawn", "I64", []ParamSig{
		{"U8*", "fn", false}, {"U8*", "data", false}, {"U8*", "task_name", true},
		{"I64", "target_cpu", true}, {"I64", "parent", true}, {"I64", "stk_size", true}, {"I64", "flags", true},
	})
	addFn("hc_task_spawn", "I64", []ParamSig{{"U8*", "task_name", false}})
	addFn("hc_spawn_wait_all", "U0", nil)
	addFn("hc_malloc", "U8*", []ParamSig{{"I64", "size", false}})
	addFn("hc_free", "U0", []ParamSig{{"U8*", "ptr", false}})
	addFn("hc_memcpy", "U8*", []ParamSig{{"U8*", "dst", false}, {"U8*", "src", false}, {"I64", "size", false}})
	addFn("hc_memset", "U8*", []ParamSig{{"U8*", "dst", false}, {"I64", "value", false}, {"I64", "size", false}})
	addFn("hc_print_str", "U0", []ParamSig{{"U8*", "text", false}})
	addFn("hc_put_char", "U0", []ParamSig{{"I64", "ch", false}})
	addFn("hc_runtime_abi_version", "I64", nil)
	addFn("hc_exception_payload", "I64", nil)
	addFn("hc_exception_active", "I64", nil)
	addFn("hc_try_depth", "I64", nil)
	addFn("hc_reflection_field_count", "I64", nil)
}
