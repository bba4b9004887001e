package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/hir"
)

// irError unwinds to Build on the first lowering failure, mirroring
// the throw-on-first-error style the rest of this compiler's phases
// use (see internal/sema and internal/hir).
type irError struct{ d *diag.Diagnostic }

// structLayout is a named aggregate's field table: the HIR field type
// per name, the mapped IR element type per name, and the GEP index
// (always 0 for a union, whose fields alias the same storage).
type structLayout struct {
	Name      string
	IsUnion   bool
	FieldType map[string]string
	FieldIR   map[string]string
	FieldIdx  map[string]int
}

type localVar struct {
	Ptr  string
	Type string
}

type builder struct {
	filename string
	mod      *Module

	structs map[string]*structLayout

	globalType map[string]string
	funcSig    map[string]*hir.FunctionDecl

	stringLits    map[string]string
	stringCounter int

	fn           *Function
	block        *BasicBlock
	valueCounter int
	blockCounter map[string]int
	locals       map[string]localVar
	labelBlocks  map[string]*BasicBlock
	breakTargets []string
}

func (b *builder) errorf(format string, args ...interface{}) {
	panic(irError{d: diag.Err("HC5001").At(b.filename, 0, 0).Msg(format, args...).Build()})
}

// Build lowers an HIR module into the textual IR described in spec
// §4.6.
func Build(m *hir.Module, moduleName, filename string) (mod *Module, diagOut *diag.Diagnostic) {
	b := &builder{
		filename:   filename,
		mod:        &Module{Name: moduleName},
		structs:    map[string]*structLayout{},
		globalType: map[string]string{},
		funcSig:    map[string]*hir.FunctionDecl{},
		stringLits: map[string]string{},
	}

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(irError); ok {
				diagOut = ie.d
				return
			}

			panic(r)
		}
	}()

	b.buildStructs(m)
	b.buildFunctionSigs(m)
	b.buildGlobals(m)
	b.buildReflectionTable(m)
	b.buildFunctionPrototypes(m)

	for i := range m.Functions {
		b.buildFunction(&m.Functions[i])
	}

	b.buildHostMainWrapper(m)
	b.injectReflectionRegistration(m)

	return b.mod, nil
}

// ensureFunctionDecl registers an external declaration for a runtime
// ABI symbol the lowering calls implicitly (Print/Throw/Try/Catch and
// reflection registration), matching original_source/runtime/
// hc_runtime.h's signatures, unless the module already declares or
// defines a function under that name.
func (b *builder) ensureFunctionDecl(name, retTy string, paramTypes []string, variadic bool) {
	if b.mod.FunctionByName(name) != nil {
		return
	}

	params := make([]Param, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = Param{Type: t, Name: fmt.Sprintf("a%d", i)}
	}

	b.mod.Functions = append(b.mod.Functions, &Function{
		Name: name, ReturnType: retTy, Params: params, Variadic: variadic, IsDeclaration: true,
	})
}

// injectReflectionRegistration makes sure hc_register_reflection_table
// runs before any user code when the module carries a reflection
// table: it prepends the call to the entry block of whichever function
// ends up named "main" (either the user's own or the synthesized host
// wrapper), the one place every execution path passes through first.
func (b *builder) injectReflectionRegistration(m *hir.Module) {
	if len(m.Reflection.Fields) == 0 {
		return
	}

	b.ensureFunctionDecl("hc_register_reflection_table", "void", []string{"ptr", "i64"}, false)

	main := b.mod.FunctionByName("main")
	if main == nil || len(main.Blocks) == 0 {
		return
	}

	call := &Call{
		RetTy: "void", Callee: "hc_register_reflection_table",
		ArgTypes: []string{"ptr", "i64"}, Args: []string{"@hc_reflection_table_data", "@hc_reflection_table_count"},
	}

	entry := main.Blocks[0]
	entry.Instrs = append([]Instr{call}, entry.Instrs...)
}

// buildStructs derives a named aggregate layout per class/union from
// the metadata-decl/reflection-table pair hir.LowerToHir emits for
// each ClassDecl: the reflection table itself carries no union flag,
// so the union-vs-class distinction is re-derived here from the
// accompanying metadata decl's "union "/"class " prefix, the same text
// internal/sema's own collectClassDecl switches on.
func (b *builder) buildStructs(m *hir.Module) {
	order := []string{}
	isUnion := map[string]bool{}

	for _, item := range m.TopLevelItems {
		if item.Kind != hir.StmtMetadataDecl {
			continue
		}

		name := item.MetadataName

		var structName string

		var union bool

		switch {
		case strings.HasPrefix(name, "union "):
			structName, union = strings.TrimSpace(strings.TrimPrefix(name, "union ")), true
		case strings.HasPrefix(name, "class "):
			structName, union = strings.TrimSpace(strings.TrimPrefix(name, "class ")), false
		default:
			continue
		}

		if structName == "" {
			continue
		}

		if _, ok := isUnion[structName]; ok {
			continue
		}

		isUnion[structName] = union
		order = append(order, structName)
	}

	for _, structName := range order {
		layout := &structLayout{
			Name:      structName,
			IsUnion:   isUnion[structName],
			FieldType: map[string]string{},
			FieldIR:   map[string]string{},
			FieldIdx:  map[string]int{},
		}

		var fieldNames []string

		for _, f := range m.Reflection.Fields {
			if f.AggregateName != structName {
				continue
			}

			fieldNames = append(fieldNames, f.FieldName)
			layout.FieldType[f.FieldName] = f.FieldType
			layout.FieldIR[f.FieldName] = b.irType(f.FieldType)
		}

		st := &StructType{Name: structName}

		if layout.IsUnion {
			widest, widestSize := "i64", 0

			for _, fn := range fieldNames {
				ty := layout.FieldIR[fn]
				layout.FieldIdx[fn] = 0

				if sz := irTypeSize(ty); sz > widestSize {
					widestSize, widest = sz, ty
				}
			}

			if len(fieldNames) > 0 {
				st.Fields = []string{widest}
			} else {
				st.Fields = []string{"i64"}
			}
		} else {
			for i, fn := range fieldNames {
				layout.FieldIdx[fn] = i
				st.Fields = append(st.Fields, layout.FieldIR[fn])
			}

			if len(st.Fields) == 0 {
				st.Fields = []string{"i64"}
			}
		}

		b.structs[structName] = layout
		b.mod.Structs = append(b.mod.Structs, st)
	}
}

func (b *builder) buildFunctionSigs(m *hir.Module) {
	for i := range m.FunctionDecls {
		d := m.FunctionDecls[i]
		b.funcSig[d.Name] = &d
	}

	for i := range m.Functions {
		fn := m.Functions[i]
		b.funcSig[fn.Name] = &hir.FunctionDecl{
			Name: fn.Name, ReturnType: fn.ReturnType, LinkageKind: fn.LinkageKind, Params: fn.Params,
		}
	}
}

// buildGlobals emits one Global per top-level StmtVarDecl (constant-
// folded initializer when the HIR lowerer flagged one, otherwise a
// zero initializer) and registers a placeholder external global for
// any linkage-decl symbol not already known as a function.
func (b *builder) buildGlobals(m *hir.Module) {
	for _, item := range m.TopLevelItems {
		switch item.Kind {
		case hir.StmtVarDecl:
			ty := b.irType(item.Type)

			g := &Global{Name: item.Name, Type: ty}
			if item.DeclStorage == "static-global" {
				g.Linkage = Internal
			} else {
				g.Linkage = External
			}

			if hasExpr(item.Expr) && item.DeclHasConstInitializer {
				g.Initializer = b.foldConstExpr(item.Expr, ty)
			} else {
				g.Initializer = zeroInitializer(ty)
			}

			b.mod.Globals = append(b.mod.Globals, g)
			b.globalType[item.Name] = ty

		case hir.StmtLinkageDecl:
			if item.LinkageSymbol == "" {
				continue
			}

			if _, ok := b.funcSig[item.LinkageSymbol]; ok {
				continue
			}

			if _, ok := b.globalType[item.LinkageSymbol]; ok {
				continue
			}

			b.mod.Globals = append(b.mod.Globals, &Global{Name: item.LinkageSymbol, Type: "i64", IsDeclaration: true})
			b.globalType[item.LinkageSymbol] = "i64"
		}
	}
}

// foldConstExpr evaluates a global initializer expression to a literal
// IR constant text. Per spec §4.6 this only needs to cover literals,
// address-of-a-global, integer-only arithmetic/bitwise/short-circuit
// operators, unary !/~/-, and a comma expression's last child.
func (b *builder) foldConstExpr(e hir.Expr, ty string) string {
	switch e.Kind {
	case hir.ExprIntLiteral:
		v, ok := tryParseIntText(e.Text)
		if !ok {
			b.errorf("invalid constant integer literal: %s", e.Text)
		}

		if ty == "double" {
			return strconv.FormatFloat(float64(v), 'f', 1, 64)
		}

		return strconv.FormatInt(v, 10)

	case hir.ExprStringLiteral:
		return "@" + b.internString(decodeStringLiteral(e.Text))

	case hir.ExprCast:
		return b.foldConstExpr(e.Children[0], b.irType(e.Text))

	case hir.ExprUnary:
		switch e.Text {
		case "&":
			if e.Children[0].Kind == hir.ExprVar {
				return "@" + e.Children[0].Text
			}

			b.errorf("unsupported address-of target in constant initializer")
		case "-":
			return strconv.FormatInt(-b.foldConstInt(e.Children[0]), 10)
		case "~":
			return strconv.FormatInt(^b.foldConstInt(e.Children[0]), 10)
		case "!":
			return boolLit(b.foldConstInt(e.Children[0]) == 0)
		}

	case hir.ExprBinary:
		lv, rv := b.foldConstInt(e.Children[0]), b.foldConstInt(e.Children[1])

		switch e.Text {
		case "+":
			return strconv.FormatInt(lv+rv, 10)
		case "-":
			return strconv.FormatInt(lv-rv, 10)
		case "*":
			return strconv.FormatInt(lv*rv, 10)
		case "/":
			if rv == 0 {
				return "0"
			}

			return strconv.FormatInt(lv/rv, 10)
		case "%":
			if rv == 0 {
				return "0"
			}

			return strconv.FormatInt(lv%rv, 10)
		case "&":
			return strconv.FormatInt(lv&rv, 10)
		case "|":
			return strconv.FormatInt(lv|rv, 10)
		case "^":
			return strconv.FormatInt(lv^rv, 10)
		case "<<":
			return strconv.FormatInt(lv<<uint(rv), 10)
		case ">>":
			return strconv.FormatInt(lv>>uint(rv), 10)
		case "&&":
			return boolLit(lv != 0 && rv != 0)
		case "||":
			return boolLit(lv != 0 || rv != 0)
		case "==":
			return boolLit(lv == rv)
		case "!=":
			return boolLit(lv != rv)
		case "<":
			return boolLit(lv < rv)
		case "<=":
			return boolLit(lv <= rv)
		case ">":
			return boolLit(lv > rv)
		case ">=":
			return boolLit(lv >= rv)
		}

	case hir.ExprComma:
		if len(e.Children) == 0 {
			b.errorf("invalid constant comma expression")
		}

		return b.foldConstExpr(e.Children[len(e.Children)-1], ty)
	}

	b.errorf("unsupported constant initializer expression")

	return "0"
}

func (b *builder) foldConstInt(e hir.Expr) int64 {
	v, ok := tryParseIntText(b.foldConstExpr(e, "i64"))
	if !ok {
		b.errorf("constant initializer did not fold to an integer")
	}

	return v
}

// buildReflectionTable emits the private unnamed_addr array of
// hc_reflection_field records the runtime's hc_register_reflection_table
// call (see original_source/runtime/hc_runtime.h) expects, plus the
// pointer/count pair runtimeshim's startup code passes to it.
func (b *builder) buildReflectionTable(m *hir.Module) {
	if len(m.Reflection.Fields) == 0 {
		return
	}

	b.mod.Structs = append(b.mod.Structs, &StructType{
		Name: "hc_reflection_field", Fields: []string{"ptr", "ptr", "ptr", "ptr"},
	})

	entries := make([]string, len(m.Reflection.Fields))

	for i, f := range m.Reflection.Fields {
		aggName := b.internString(f.AggregateName)
		fieldName := b.internString(f.FieldName)
		fieldType := b.internString(f.FieldType)
		annotations := b.internString(strings.Join(f.Annotations, " "))

		entries[i] = fmt.Sprintf("{ ptr @%s, ptr @%s, ptr @%s, ptr @%s }", aggName, fieldName, fieldType, annotations)
	}

	arrTy := fmt.Sprintf("[%d x %%hc_reflection_field]", len(entries))

	b.mod.Globals = append(b.mod.Globals, &Global{
		Name: "hc_reflection_table_data", Type: arrTy, Linkage: Private, Constant: true, UnnamedAddr: true,
		Initializer: "[ " + strings.Join(entries, ", ") + " ]",
	})

	b.mod.Globals = append(b.mod.Globals, &Global{
		Name: "hc_reflection_table_count", Type: "i64", Linkage: Private, Constant: true,
		Initializer: strconv.Itoa(len(entries)),
	})
}

// internString deduplicates string literals by decoded text into one
// private constant i8 array global per distinct value.
func (b *builder) internString(s string) string {
	if name, ok := b.stringLits[s]; ok {
		return name
	}

	name := fmt.Sprintf("str.%d", b.stringCounter)
	b.stringCounter++
	b.stringLits[s] = name

	data := s + "\x00"

	b.mod.Globals = append(b.mod.Globals, &Global{
		Name: name, Type: fmt.Sprintf("[%d x i8]", len(data)), Linkage: Private, Constant: true, UnnamedAddr: true,
		Initializer: "c" + quoteBytes(data),
	})

	return name
}

// buildFunctionPrototypes emits a declare for every function_decl that
// has no matching definition in this module (imported runtime/library
// functions, and this translation unit's own forward declarations of
// functions defined elsewhere).
func (b *builder) buildFunctionPrototypes(m *hir.Module) {
	defined := map[string]bool{}
	for _, fn := range m.Functions {
		defined[fn.Name] = true
	}

	for _, d := range m.FunctionDecls {
		if defined[d.Name] {
			continue
		}

		params := make([]Param, len(d.Params))
		for i, p := range d.Params {
			params[i] = Param{Type: b.irType(p.Type), Name: p.Name}
		}

		b.mod.Functions = append(b.mod.Functions, &Function{
			Name: d.Name, ReturnType: b.irType(d.ReturnType), Params: params,
			Linkage: irLinkage(d.LinkageKind), IsDeclaration: true,
		})
	}
}

// buildFunction lowers one hir.Function's body into a CFG, following
// the entry-block-parameter-alloca convention: every parameter gets a
// stack slot up front so later statements can take its address
// uniformly, the same convention an unoptimized LLVM -O0 frontend uses
// before mem2reg ever runs.
func (b *builder) buildFunction(hfn *hir.Function) {
	params := make([]Param, len(hfn.Params))
	for i, p := range hfn.Params {
		params[i] = Param{Type: b.irType(p.Type), Name: p.Name}
	}

	fn := &Function{
		Name: hfn.Name, ReturnType: b.irType(hfn.ReturnType), Params: params, Linkage: irLinkage(hfn.LinkageKind),
	}

	b.fn = fn
	b.valueCounter = 0
	b.blockCounter = map[string]int{}
	b.locals = map[string]localVar{}
	b.labelBlocks = map[string]*BasicBlock{}
	b.breakTargets = nil

	entry := b.newBlock("entry")
	b.setBlock(entry)

	for _, p := range hfn.Params {
		ty := b.irType(p.Type)

		slot := b.newValue()
		b.emit(&Alloca{Dst: slot, Type: ty})
		b.emit(&Store{Ty: ty, Val: "%" + p.Name, Ptr: "%" + slot})
		b.locals[p.Name] = localVar{Ptr: "%" + slot, Type: ty}
	}

	b.emitStmts(hfn.Body)

	if !blockTerminated(b.block) {
		if fn.ReturnType == "void" {
			b.emit(RetVoid{})
		} else {
			b.emit(&Ret{Ty: fn.ReturnType, Val: zeroInitializer(fn.ReturnType)})
		}
	}

	b.mod.Functions = append(b.mod.Functions, fn)
}

// buildHostMainWrapper synthesizes a process-entry `main` when the
// module defines `Main` but not `main`, matching the host-process
// convention spec §4.6 requires for a direct AOT/JIT executable. The
// wrapper always accepts the host's own `(int argc, char **argv)`, and
// forwards up to as many of them as Main itself declares, casting
// argc's width to whatever integer type Main asks for - spec §4.6's
// "calls Main with up to two parameters, casting argc/argv/pointer
// shapes as needed."
func (b *builder) buildHostMainWrapper(m *hir.Module) {
	var holycMain *hir.Function

	for i := range m.Functions {
		if m.Functions[i].Name == "Main" {
			holycMain = &m.Functions[i]
		}

		if m.Functions[i].Name == "main" {
			return
		}
	}

	if holycMain == nil {
		return
	}

	fn := &Function{
		Name:       "main",
		ReturnType: "i32",
		Linkage:    External,
		Params:     []Param{{Type: "i32", Name: "argc"}, {Type: "ptr", Name: "argv"}},
	}
	b.fn = fn
	b.valueCounter = 0
	b.blockCounter = map[string]int{}
	b.locals = map[string]localVar{}
	b.labelBlocks = map[string]*BasicBlock{}
	b.breakTargets = nil

	entry := b.newBlock("entry")
	b.setBlock(entry)

	argTypes := make([]string, 0, 2)
	args := make([]string, 0, 2)

	if len(holycMain.Params) > 0 {
		argcTy := b.irType(holycMain.Params[0].Type)
		argTypes = append(argTypes, argcTy)
		args = append(args, b.coerce("%argc", "i32", argcTy))
	}

	if len(holycMain.Params) > 1 {
		argvTy := b.irType(holycMain.Params[1].Type)
		argTypes = append(argTypes, argvTy)
		args = append(args, "%argv")
	}

	retTy := b.irType(holycMain.ReturnType)

	if retTy == "void" {
		b.emit(&Call{RetTy: "void", Callee: "Main", ArgTypes: argTypes, Args: args})
		b.emit(&Ret{Ty: "i32", Val: "0"})
	} else {
		dst := b.newValue()
		b.emit(&Call{Dst: dst, RetTy: retTy, Callee: "Main", ArgTypes: argTypes, Args: args})

		status := b.coerce("%"+dst, retTy, "i32")
		b.emit(&Ret{Ty: "i32", Val: status})
	}

	b.mod.Functions = append(b.mod.Functions, fn)
}

// newValue returns the next unused SSA name (without the leading %).
func (b *builder) newValue() string {
	v := "v" + strconv.Itoa(b.valueCounter)
	b.valueCounter++

	return v
}

// newBlockLabel returns a fresh, disambiguated block label: the first
// use of a prefix keeps the bare name (if.then, while.cond, ...), and
// later uses within the same function get a numeric suffix, following
// the same convention an unoptimized C frontend's block naming does.
func (b *builder) newBlockLabel(prefix string) string {
	n := b.blockCounter[prefix]
	b.blockCounter[prefix] = n + 1

	if n == 0 {
		return prefix
	}

	return fmt.Sprintf("%s%d", prefix, n+1)
}

func (b *builder) newBlock(label string) *BasicBlock {
	blk := &BasicBlock{Label: label}
	b.fn.Blocks = append(b.fn.Blocks, blk)

	return blk
}

func (b *builder) setBlock(blk *BasicBlock) { b.block = blk }

func blockTerminated(blk *BasicBlock) bool {
	if blk == nil || len(blk.Instrs) == 0 {
		return false
	}

	switch blk.Instrs[len(blk.Instrs)-1].(type) {
	case *Br, *CondBr, *Ret, RetVoid, Unreachable:
		return true
	default:
		return false
	}
}

// emit appends an instruction to the current block unless it is
// already terminated, so dead code after a break/goto/return silently
// produces no instructions instead of appending past a terminator.
func (b *builder) emit(in Instr) {
	if blockTerminated(b.block) {
		return
	}

	b.block.Instrs = append(b.block.Instrs, in)
}

func (b *builder) lvalue(name string) (string, string) {
	if lv, ok := b.locals[name]; ok {
		return lv.Ptr, lv.Type
	}

	if ty, ok := b.globalType[name]; ok {
		return "@" + name, ty
	}

	if _, ok := b.funcSig[name]; ok {
		// A function name used where an address is expected (&Fn passed
		// to Spawn/JobQue, say) is already its own symbol address - no
		// load needed, same as a global.
		return "@" + name, "ptr"
	}

	b.errorf("undefined variable in IR lowering: %s", name)

	return "", "i64"
}

func (b *builder) labelBlockFor(name string) *BasicBlock {
	if blk, ok := b.labelBlocks[name]; ok {
		return blk
	}

	blk := b.newBlock("label_" + name)
	b.labelBlocks[name] = blk

	return blk
}

func (b *builder) ensureTryFrameStruct() {
	if _, ok := b.structs["hc_try_frame"]; ok {
		return
	}

	b.structs["hc_try_frame"] = &structLayout{Name: "hc_try_frame"}
	// jmp_buf's exact layout is the linked C runtime's ABI detail; this
	// IR only needs to reserve storage of the right size/alignment and
	// defers to hc_try_push/hc_try_pop for the real setjmp semantics.
	b.mod.Structs = append(b.mod.Structs, &StructType{Name: "hc_try_frame", Fields: []string{"[216 x i8]"}})
}

// coerce converts val from ir type "from" to ir type "to", emitting
// whichever instruction the conversion needs (sext/trunc/bitcast/
// ptrtoint/inttoptr/sitofp/fptosi), or returning val unchanged when the
// types already match.
func (b *builder) coerce(val, from, to string) string {
	if from == to || from == "" || to == "" {
		return val
	}

	dst := b.newValue()

	switch {
	case from == "ptr" && to != "ptr" && to != "double":
		b.emit(&Cast{Dst: dst, Op: "ptrtoint", FromTy: from, Val: val, ToTy: to})
	case to == "ptr" && from != "ptr":
		b.emit(&Cast{Dst: dst, Op: "inttoptr", FromTy: from, Val: val, ToTy: to})
	case from == "double" && to != "double":
		b.emit(&Cast{Dst: dst, Op: "fptosi", FromTy: from, Val: val, ToTy: to})
	case to == "double" && from != "double":
		b.emit(&Cast{Dst: dst, Op: "sitofp", FromTy: from, Val: val, ToTy: to})
	case from == "i1" && intWidth(to) > 1:
		// i1 always widens with zext: a signed extension of a true i1
		// (bit pattern 1) would read as -1, not 1.
		b.emit(&Cast{Dst: dst, Op: "zext", FromTy: from, Val: val, ToTy: to})
	case intWidth(from) < intWidth(to):
		b.emit(&Cast{Dst: dst, Op: "sext", FromTy: from, Val: val, ToTy: to})
	case intWidth(from) > intWidth(to):
		b.emit(&Cast{Dst: dst, Op: "trunc", FromTy: from, Val: val, ToTy: to})
	default:
		b.emit(&Cast{Dst: dst, Op: "bitcast", FromTy: from, Val: val, ToTy: to})
	}

	return "%" + dst
}

func (b *builder) toBool(val, ty string) string {
	if ty == "i1" {
		return val
	}

	dst := b.newValue()

	if ty == "double" {
		b.emit(&FCmp{Dst: dst, Pred: "one", Ty: ty, LHS: val, RHS: "0.0"})
		return "%" + dst
	}

	if ty == "ptr" {
		b.emit(&ICmp{Dst: dst, Pred: "ne", Ty: "ptr", LHS: val, RHS: "null"})
		return "%" + dst
	}

	b.emit(&ICmp{Dst: dst, Pred: "ne", Ty: ty, LHS: val, RHS: "0"})

	return "%" + dst
}
