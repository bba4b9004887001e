package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ir"
)

// transpileToC renders mod as standalone C11 source for the AOT build
// path: one C function per ir.Function, SSA registers as function-
// local variables (int64_t, or double for float-typed values), basic
// blocks as labels reached by goto, and getelementptr resolved to
// constant byte offsets computed the same way evalGEP resolves them at
// interpretation time. It is deliberately not a general LLVM-IR-to-C
// transform - only the instruction and constant shapes internal/ir's
// own builder ever emits need to round-trip here.
func transpileToC(mod *ir.Module) (string, error) {
	lo := newLayouts(mod)
	t := &transpiler{mod: mod, lo: lo}

	var b strings.Builder

	fmt.Fprintf(&b, "/* transpiled from module %q */\n", mod.Name)
	b.WriteString("#include <stdint.h>\n#include <stddef.h>\n#include <stdlib.h>\n#include <string.h>\n\n")

	for _, st := range mod.Structs {
		b.WriteString(t.structDecl(st))
	}

	b.WriteString("\n")

	for _, fn := range mod.Functions {
		b.WriteString(t.funcProto(fn))
		b.WriteString(";\n")
	}

	b.WriteString("\n")

	for _, g := range mod.Globals {
		s, err := t.globalDecl(g)
		if err != nil {
			return "", fmt.Errorf("global %s: %w", g.Name, err)
		}

		b.WriteString(s)
	}

	b.WriteString("\n")

	for _, fn := range mod.Functions {
		var s string
		var err error

		if fn.IsDeclaration {
			s, err = t.wrapperDef(fn)
		} else {
			s, err = t.funcDef(fn)
		}

		if err != nil {
			return "", fmt.Errorf("function %s: %w", fn.Name, err)
		}

		b.WriteString(s)
		b.WriteString("\n")
	}

	return b.String(), nil
}

type transpiler struct {
	mod *ir.Module
	lo  *layouts
}

func cIdent(s string) string {
	var b strings.Builder

	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}

	return out
}

func globalVar(name string) string { return "g_" + cIdent(name) }
func funcName(name string) string  { return "fn_" + cIdent(name) }
func blockLabel(name string) string { return "L_" + cIdent(name) }
func regVar(name string) string     { return "v_" + cIdent(name) }

// cScalarType is the universal register representation: every IR value
// is either a double or a 64-bit integer slot, matching the
// interpreter's own uint64-register model (eval/runBlock in interp.go)
// so both execution paths agree on truncation and sign behavior.
func cScalarType(ty string) string {
	if ty == "double" {
		return "double"
	}

	return "int64_t"
}

// cFieldType is the real, width-accurate C type used inside struct and
// array declarations, where layout (not register convenience) matters.
func (t *transpiler) cFieldType(ty string) string {
	ty = strings.TrimSpace(ty)

	switch ty {
	case "i1", "i8":
		return "int8_t"
	case "i16":
		return "int16_t"
	case "i32":
		return "int32_t"
	case "i64":
		return "int64_t"
	case "double":
		return "double"
	case "ptr":
		return "void *"
	}

	if strings.HasPrefix(ty, "%") {
		return "struct " + cIdent(ty[1:])
	}

	if strings.HasPrefix(ty, "[") {
		elem := elemTypeOf(ty)
		return t.cFieldType(elem)
	}

	return "int64_t"
}

func arrayLen(ty string) (int64, string) {
	inner := strings.TrimSuffix(strings.TrimPrefix(ty, "["), "]")
	parts := strings.SplitN(inner, " x ", 2)

	if len(parts) != 2 {
		return 0, "i8"
	}

	n, _ := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)

	return n, strings.TrimSpace(parts[1])
}

func (t *transpiler) structDecl(st *ir.StructType) string {
	var b strings.Builder

	fmt.Fprintf(&b, "struct %s {\n", cIdent(st.Name))

	for i, f := range st.Fields {
		if strings.HasPrefix(f, "[") {
			n, elem := arrayLen(f)
			fmt.Fprintf(&b, "  %s f%d[%d];\n", t.cFieldType(elem), i, n)
		} else {
			fmt.Fprintf(&b, "  %s f%d;\n", t.cFieldType(f), i)
		}
	}

	b.WriteString("};\n")

	return b.String()
}

// globalDecl emits a real, typed C global so that pointer-valued fields
// (e.g. a reflection table entry's "ptr @str.0") become genuine address-
// of expressions resolved by the linker, instead of a baked-in address
// the way the interpreter's own materializeConst can get away with.
func (t *transpiler) globalDecl(g *ir.Global) (string, error) {
	if g.IsDeclaration {
		return fmt.Sprintf("extern %s %s;\n", t.cFieldType(g.Type), globalVar(g.Name)), nil
	}

	if strings.HasPrefix(strings.TrimSpace(g.Initializer), "c\"") {
		data := decodeQuotedBytes(g.Initializer)

		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = strconv.Itoa(int(b))
		}

		return fmt.Sprintf("static unsigned char %s[%d] = {%s};\n", globalVar(g.Name), len(data), strings.Join(parts, ",")), nil
	}

	init, err := t.constExpr(g.Type, g.Initializer)
	if err != nil {
		return "", err
	}

	ctype := t.cFieldType(g.Type)
	if strings.HasPrefix(g.Type, "[") {
		n, elem := arrayLen(g.Type)
		return fmt.Sprintf("static %s %s[%d] = %s;\n", t.cFieldType(elem), globalVar(g.Name), n, init), nil
	}

	return fmt.Sprintf("static %s %s = %s;\n", ctype, globalVar(g.Name), init), nil
}

// constExpr renders one textual constant (struct/array literal, scalar,
// "@name" reference, or a bare string constant) into C initializer
// syntax, recursing through nested aggregates the same way
// materializeConst recurses through them into bytes.
func (t *transpiler) constExpr(ty, text string) (string, error) {
	text = strings.TrimSpace(text)

	switch {
	case text == "" || text == "null" || text == "zeroinitializer":
		return "{0}", nil

	case strings.HasPrefix(text, "@"):
		name := text[1:]
		if fn := t.mod.FunctionByName(name); fn != nil {
			return fmt.Sprintf("(void *)&%s", funcName(name)), nil
		}

		return fmt.Sprintf("(void *)&%s", globalVar(name)), nil

	case strings.HasPrefix(text, "c\""):
		data := decodeQuotedBytes(text)
		parts := make([]string, len(data))

		for i, b := range data {
			parts[i] = strconv.Itoa(int(b))
		}

		return "{" + strings.Join(parts, ",") + "}", nil

	case strings.HasPrefix(text, "["):
		elem := elemTypeOf(ty)
		inner := strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")

		var parts []string

		for _, el := range splitTopLevel(inner) {
			s, err := t.constExpr(elem, el)
			if err != nil {
				return "", err
			}

			parts = append(parts, s)
		}

		return "{" + strings.Join(parts, ",") + "}", nil

	case strings.HasPrefix(text, "{"):
		name := strings.TrimPrefix(ty, "%")
		lo := t.lo.of(name)

		inner := strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}")
		entries := splitTopLevel(inner)

		var parts []string

		for i, entry := range entries {
			if i >= len(lo.fields) {
				break
			}

			fieldTy := lo.fields[i]
			val := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(entry), fieldTy))

			s, err := t.constExpr(fieldTy, val)
			if err != nil {
				return "", err
			}

			parts = append(parts, s)
		}

		return "{" + strings.Join(parts, ",") + "}", nil

	case ty == "double":
		return text, nil

	default:
		return "(" + text + ")", nil
	}
}

func (t *transpiler) funcProto(fn *ir.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = cScalarType(p.Type)
	}

	if len(params) == 0 && !fn.Variadic {
		params = []string{"void"}
	}

	if fn.Variadic {
		params = append(params, "...")
	}

	ret := "void"
	if fn.ReturnType != "void" {
		ret = cScalarType(fn.ReturnType)
	}

	return fmt.Sprintf("%s %s(%s)", ret, funcName(fn.Name), strings.Join(params, ", "))
}

// regInfo is one SSA register's declared C type and, for Alloca
// results, the byte size of its backing local buffer.
type regInfo struct {
	cType      string
	allocaSize int64
	isAlloca   bool
}

func (t *transpiler) collectRegs(fn *ir.Function) map[string]regInfo {
	regs := map[string]regInfo{}

	add := func(name, ty string) {
		if name == "" {
			return
		}

		regs[name] = regInfo{cType: cScalarType(ty)}
	}

	for _, p := range fn.Params {
		add(p.Name, p.Type)
	}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch in := instr.(type) {
			case *ir.Alloca:
				regs[in.Dst] = regInfo{cType: "int64_t", isAlloca: true, allocaSize: t.lo.sizeOf(in.Type)}
			case *ir.Load:
				add(in.Dst, in.Ty)
			case *ir.ICmp:
				add(in.Dst, "i1")
			case *ir.FCmp:
				add(in.Dst, "i1")
			case *ir.BinOp:
				add(in.Dst, in.Ty)
			case *ir.Cast:
				add(in.Dst, in.ToTy)
			case *ir.GEP:
				add(in.Dst, "ptr")
			case *ir.Call:
				if in.Dst != "" {
					add(in.Dst, in.RetTy)
				}
			case *ir.AtomicRMW:
				add(in.Dst, in.Ty)
			case *ir.InlineAsm:
				if in.Dst != "" {
					add(in.Dst, in.RetTy)
				}
			case *ir.Phi:
				add(in.Dst, in.Ty)
			}
		}
	}

	return regs
}

// funcDefHeader is funcProto with parameter names attached, since the
// definition (unlike the forward declaration) needs each parameter
// bound to the same regVar name its body references.
func (t *transpiler) funcDefHeader(fn *ir.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %s", cScalarType(p.Type), regVar(p.Name))
	}

	if len(params) == 0 && !fn.Variadic {
		params = []string{"void"}
	}

	if fn.Variadic {
		params = append(params, "...")
	}

	ret := "void"
	if fn.ReturnType != "void" {
		ret = cScalarType(fn.ReturnType)
	}

	return fmt.Sprintf("%s %s(%s)", ret, funcName(fn.Name), strings.Join(params, ", "))
}

func (t *transpiler) funcDef(fn *ir.Function) (string, error) {
	regs := t.collectRegs(fn)

	blockID := map[string]int{}
	for i, b := range fn.Blocks {
		blockID[b.Label] = i
	}

	var b strings.Builder

	b.WriteString(t.funcDefHeader(fn))
	b.WriteString(" {\n")
	b.WriteString("  int64_t __prev_block = -1;\n")

	paramSet := map[string]bool{}
	for _, p := range fn.Params {
		paramSet[p.Name] = true
	}

	for name, info := range regs {
		if paramSet[name] {
			continue
		}

		if info.isAlloca {
			fmt.Fprintf(&b, "  unsigned char __buf_%s[%d];\n", cIdent(name), info.allocaSize)
		}

		fmt.Fprintf(&b, "  %s %s = 0;\n", info.cType, regVar(name))
	}

	for _, blk := range fn.Blocks {
		fmt.Fprintf(&b, "%s:\n", blockLabel(blk.Label))

		for idx, instr := range blk.Instrs {
			s, err := t.stmt(fn, blk, idx, instr, regs, blockID)
			if err != nil {
				return "", err
			}

			b.WriteString(s)
		}
	}

	b.WriteString("}\n")

	return b.String(), nil
}

// wrapperDef gives a "declare"d function (a runtime ABI symbol) a real
// fn_<name> body so that taking its address with "@name" in a non-call
// context (a function-pointer-typed global or reflection field) has
// something valid to point at, forwarding straight into the same
// argument convention callStmt's direct-call path already uses.
func (t *transpiler) wrapperDef(fn *ir.Function) (string, error) {
	argTypes := make([]string, len(fn.Params))
	argExprs := make([]string, len(fn.Params))

	for i, p := range fn.Params {
		argTypes[i] = p.Type
		argExprs[i] = "%" + p.Name
	}

	synth := &ir.Call{Callee: fn.Name, RetTy: fn.ReturnType, ArgTypes: argTypes, Args: argExprs}

	expr, err := t.intrinsicCallExpr(synth)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString(t.funcDefHeader(fn))
	b.WriteString(" {\n")

	if fn.ReturnType == "void" {
		fmt.Fprintf(&b, "  %s;\n", expr)
	} else {
		fmt.Fprintf(&b, "  return %s;\n", expr)
	}

	b.WriteString("}\n")

	return b.String(), nil
}

func (t *transpiler) operand(ty, text string) string {
	text = strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "%"):
		return regVar(text[1:])

	case strings.HasPrefix(text, "@"):
		name := text[1:]
		if fn := t.mod.FunctionByName(name); fn != nil {
			return fmt.Sprintf("((int64_t)(intptr_t)&%s)", funcName(name))
		}

		return fmt.Sprintf("((int64_t)(intptr_t)&%s)", globalVar(name))

	case text == "null", text == "false":
		return "0"

	case text == "true":
		return "1"

	case ty == "double":
		return "(" + text + ")"

	default:
		return "((int64_t)(" + text + "))"
	}
}

func icmpPredConst(pred string) string {
	m := map[string]string{
		"eq": "HC_EQ", "ne": "HC_NE", "slt": "HC_SLT", "sle": "HC_SLE",
		"sgt": "HC_SGT", "sge": "HC_SGE", "ult": "HC_ULT", "ule": "HC_ULE",
		"ugt": "HC_UGT", "uge": "HC_UGE",
	}

	return m[pred]
}

func fcmpPredConst(pred string) string {
	m := map[string]string{
		"eq": "HC_FEQ", "ne": "HC_FNE", "lt": "HC_FLT",
		"le": "HC_FLE", "gt": "HC_FGT", "ge": "HC_FGE",
	}

	return m[pred]
}

func binOpConst(op string) string {
	m := map[string]string{
		"add": "HC_ADD", "sub": "HC_SUB", "mul": "HC_MUL", "sdiv": "HC_SDIV",
		"srem": "HC_SREM", "udiv": "HC_UDIV", "urem": "HC_UREM", "and": "HC_AND",
		"or": "HC_OR", "xor": "HC_XOR", "shl": "HC_SHL", "ashr": "HC_ASHR", "lshr": "HC_LSHR",
	}

	return m[op]
}

func fBinOpConst(op string) string {
	m := map[string]string{"fadd": "HC_FADD", "fsub": "HC_FSUB", "fmul": "HC_FMUL", "fdiv": "HC_FDIV"}
	return m[op]
}

func (t *transpiler) stmt(fn *ir.Function, blk *ir.BasicBlock, idx int, instr ir.Instr, regs map[string]regInfo, blockID map[string]int) (string, error) {
	indent := "  "

	switch in := instr.(type) {
	case *ir.Alloca:
		return fmt.Sprintf("%s%s = (int64_t)(intptr_t)__buf_%s;\n", indent, regVar(in.Dst), cIdent(in.Dst)), nil

	case *ir.Store:
		size := t.lo.sizeOf(in.Ty)
		ptr := t.operand("ptr", in.Ptr)

		if in.Ty == "double" {
			val := t.operand(in.Ty, in.Val)
			return fmt.Sprintf("%s{ double __t = %s; memcpy((void*)(intptr_t)%s, &__t, %d); }\n", indent, val, ptr, size), nil
		}

		val := t.operand(in.Ty, in.Val)
		return fmt.Sprintf("%s{ int64_t __t = %s; memcpy((void*)(intptr_t)%s, &__t, %d); }\n", indent, val, ptr, size), nil

	case *ir.Load:
		size := t.lo.sizeOf(in.Ty)
		ptr := t.operand("ptr", in.Ptr)

		if in.Ty == "double" {
			return fmt.Sprintf("%s{ double __t = 0; memcpy(&__t, (void*)(intptr_t)%s, %d); %s = __t; }\n", indent, ptr, size, regVar(in.Dst)), nil
		}

		return fmt.Sprintf("%s{ int64_t __t = 0; memcpy(&__t, (void*)(intptr_t)%s, %d); %s = __t; }\n", indent, ptr, size, regVar(in.Dst)), nil

	case *ir.Br:
		return fmt.Sprintf("%s__prev_block = %d; goto %s;\n", indent, blockID[blk.Label], blockLabel(in.Target)), nil

	case *ir.CondBr:
		cond := t.operand("i1", in.Cond)
		bid := blockID[blk.Label]

		return fmt.Sprintf("%sif (%s) { __prev_block = %d; goto %s; } else { __prev_block = %d; goto %s; }\n",
			indent, cond, bid, blockLabel(in.True), bid, blockLabel(in.False)), nil

	case *ir.Ret:
		return fmt.Sprintf("%sreturn %s;\n", indent, t.operand(in.Ty, in.Val)), nil

	case ir.RetVoid:
		return indent + "return;\n", nil

	case ir.Unreachable:
		return indent + "abort();\n", nil

	case *ir.ICmp:
		lhs := t.operand(in.Ty, in.LHS)
		rhs := t.operand(in.Ty, in.RHS)

		return fmt.Sprintf("%s%s = hc_icmp(%s, %d, %s, %s);\n", indent, regVar(in.Dst), icmpPredConst(in.Pred), intWidthOf(in.Ty), lhs, rhs), nil

	case *ir.FCmp:
		lhs := t.operand(in.Ty, in.LHS)
		rhs := t.operand(in.Ty, in.RHS)

		return fmt.Sprintf("%s%s = hc_fcmp(%s, %s, %s);\n", indent, regVar(in.Dst), fcmpPredConst(in.Pred), lhs, rhs), nil

	case *ir.BinOp:
		lhs := t.operand(in.Ty, in.LHS)
		rhs := t.operand(in.Ty, in.RHS)

		if in.Ty == "double" {
			return fmt.Sprintf("%s%s = hc_fbinop(%s, %s, %s);\n", indent, regVar(in.Dst), fBinOpConst(in.Op), lhs, rhs), nil
		}

		return fmt.Sprintf("%s%s = hc_binop(%s, %d, %s, %s);\n", indent, regVar(in.Dst), binOpConst(in.Op), intWidthOf(in.Ty), lhs, rhs), nil

	case *ir.Cast:
		return t.castStmt(in)

	case *ir.GEP:
		return t.gepStmt(in)

	case *ir.Call:
		return t.callStmt(fn, in)

	case *ir.AtomicRMW:
		ptr := t.operand("ptr", in.Ptr)
		val := t.operand(in.Ty, in.Val)

		builtin := "__atomic_fetch_add"
		switch in.Op {
		case "xchg":
			builtin = "__atomic_exchange_n"
		case "sub", "and", "or", "xor":
			builtin = "__atomic_fetch_" + in.Op
		}

		return fmt.Sprintf("%s%s = %s((int64_t*)(intptr_t)%s, %s, __ATOMIC_SEQ_CST);\n", indent, regVar(in.Dst), builtin, ptr, val), nil

	case *ir.InlineAsm:
		if in.Dst != "" {
			return fmt.Sprintf("%s/* inline asm not executed in AOT build: %q */ %s = 0;\n", indent, in.Template, regVar(in.Dst)), nil
		}

		return fmt.Sprintf("%s/* inline asm not executed in AOT build: %q */\n", indent, in.Template), nil

	case *ir.Phi:
		var b strings.Builder

		for i, inc := range in.Incoming {
			kw := "if"
			if i > 0 {
				kw = "else if"
			}

			fmt.Fprintf(&b, "%s%s (__prev_block == %d) { %s = %s; }\n", indent, kw, blockID[inc.Block], regVar(in.Dst), t.operand(in.Ty, inc.Val))
		}

		return b.String(), nil

	case *ir.Comment:
		return "", nil

	default:
		return "", fmt.Errorf("unhandled IR instruction %T", in)
	}
}

func (t *transpiler) castStmt(in *ir.Cast) (string, error) {
	dst := regVar(in.Dst)

	switch in.Op {
	case "fptosi":
		val := t.operand(in.FromTy, in.Val)
		return fmt.Sprintf("  %s = (int64_t)%s;\n", dst, val), nil

	case "sitofp":
		val := t.operand(in.FromTy, in.Val)
		return fmt.Sprintf("  %s = (double)hc_signext(%s, %d);\n", dst, val, intWidthOf(in.FromTy)), nil

	case "ptrtoint", "inttoptr", "bitcast":
		val := t.operand(in.FromTy, in.Val)
		return fmt.Sprintf("  %s = %s;\n", dst, val), nil

	case "sext":
		val := t.operand(in.FromTy, in.Val)
		return fmt.Sprintf("  %s = (int64_t)hc_mask((uint64_t)hc_signext(%s, %d), %d);\n", dst, val, intWidthOf(in.FromTy), intWidthOf(in.ToTy)), nil

	default: // trunc, zext
		val := t.operand(in.FromTy, in.Val)
		width := intWidthOf(in.ToTy)

		if in.Op == "zext" {
			width = intWidthOf(in.FromTy)
		}

		return fmt.Sprintf("  %s = (int64_t)hc_mask((uint64_t)%s, %d);\n", dst, val, width), nil
	}
}

// gepStmt mirrors evalGEP's algorithm exactly, but resolved at
// transpile time wherever a field index is a literal (always true for
// the struct-descent shape internal/ir's builder emits).
func (t *transpiler) gepStmt(in *ir.GEP) (string, error) {
	base := t.operand("ptr", in.Ptr)

	if len(in.Indices) == 0 {
		return fmt.Sprintf("  %s = %s;\n", regVar(in.Dst), base), nil
	}

	idx0 := t.operand(in.IndexTypes[0], in.Indices[0])
	expr := fmt.Sprintf("(%s) + (%s) * %d", base, idx0, t.lo.sizeOf(in.ElemTy))

	curTy := in.ElemTy

	for i := 1; i < len(in.Indices); i++ {
		if curTy != "" && curTy[0] == '%' {
			n, err := strconv.Atoi(strings.TrimSpace(in.Indices[i]))
			if err != nil {
				return "", fmt.Errorf("non-constant field index into %s", curTy)
			}

			off, fieldTy := t.lo.fieldOffset(curTy[1:], n)
			expr = fmt.Sprintf("(%s) + %d", expr, off)
			curTy = fieldTy

			continue
		}

		idx := t.operand(in.IndexTypes[i], in.Indices[i])
		expr = fmt.Sprintf("(%s) + (%s) * %d", expr, idx, t.lo.sizeOf(curTy))
	}

	return fmt.Sprintf("  %s = %s;\n", regVar(in.Dst), expr), nil
}

func (t *transpiler) callStmt(caller *ir.Function, in *ir.Call) (string, error) {
	var callee *ir.Function

	if !in.Indirect {
		callee = t.mod.FunctionByName(in.Callee)
	}

	var expr string
	var err error

	if callee != nil && callee.IsDeclaration {
		expr, err = t.intrinsicCallExpr(in)
		if err != nil {
			return "", err
		}
	} else if in.Indirect {
		expr = t.indirectCallExpr(in)
	} else if callee != nil {
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = t.operand(in.ArgTypes[i], a)
		}

		expr = fmt.Sprintf("%s(%s)", funcName(in.Callee), strings.Join(args, ", "))
	} else {
		return "", fmt.Errorf("call to undefined function %q in %s", in.Callee, caller.Name)
	}

	if in.Dst == "" {
		return "  " + expr + ";\n", nil
	}

	return fmt.Sprintf("  %s = %s;\n", regVar(in.Dst), expr), nil
}

func (t *transpiler) indirectCallExpr(in *ir.Call) string {
	callee := t.operand("ptr", in.Callee)

	params := make([]string, len(in.ArgTypes))
	for i, ty := range in.ArgTypes {
		params[i] = cScalarType(ty)
	}

	if len(params) == 0 {
		params = []string{"void"}
	}

	ret := "void"
	if in.RetTy != "void" {
		ret = cScalarType(in.RetTy)
	}

	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = t.operand(in.ArgTypes[i], a)
	}

	return fmt.Sprintf("((%s (*)(%s))(intptr_t)%s)(%s)", ret, strings.Join(params, ", "), callee, strings.Join(args, ", "))
}

// intrinsicCallExpr mirrors execCtx.callIntrinsic's argument selection
// (calls.go) for the runtime ABI symbols runtime_c.go actually
// implements, so the generated call site matches the real C function's
// narrower signature (e.g. CallStkGrow only consumes args[2:6] of the
// call site's full argument list).
func (t *transpiler) intrinsicCallExpr(in *ir.Call) (string, error) {
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = t.operand(in.ArgTypes[i], a)
	}

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}

		return "0"
	}

	switch in.Callee {
	case "hc_print_str":
		return fmt.Sprintf("(hc_print_str((const char*)(intptr_t)%s), (int64_t)0)", arg(0)), nil

	case "hc_put_char":
		return fmt.Sprintf("(hc_put_char(%s), (int64_t)0)", arg(0)), nil

	case "hc_print_fmt":
		rest := "0"
		if len(args) > 1 {
			slots := make([]string, 0, len(args)-1)
			for i := 1; i < len(args); i++ {
				if in.ArgTypes[i] == "double" {
					slots = append(slots, fmt.Sprintf("((union { double d; int64_t i; }){ .d = %s }).i", args[i]))
				} else {
					slots = append(slots, args[i])
				}
			}

			rest = strings.Join(slots, ", ")
		}

		return fmt.Sprintf("(hc_print_fmt((const char*)(intptr_t)%s, (int64_t[]){%s}, %d), (int64_t)0)", arg(0), rest, len(args)-1), nil

	case "hc_try_push":
		return fmt.Sprintf("(hc_try_push((hc_try_frame*)(intptr_t)%s), (int64_t)0)", arg(0)), nil

	case "hc_try_pop":
		return fmt.Sprintf("(hc_try_pop((hc_try_frame*)(intptr_t)%s), (int64_t)0)", arg(0)), nil

	case "hc_throw_i64":
		return fmt.Sprintf("(hc_throw_i64(%s), (int64_t)0)", arg(0)), nil

	case "hc_exception_payload":
		return "hc_exception_payload()", nil

	case "hc_exception_active":
		return "hc_exception_active()", nil

	case "hc_try_depth":
		return "hc_try_depth()", nil

	case "hc_runtime_abi_version":
		return "hc_runtime_abi_version()", nil

	case "hc_register_reflection_table":
		return fmt.Sprintf("(hc_register_reflection_table(%s, %s), (int64_t)0)", arg(0), arg(1)), nil

	case "hc_reflection_field_count":
		return "hc_reflection_field_count()", nil

	case "hc_malloc":
		return fmt.Sprintf("hc_malloc(%s)", arg(0)), nil

	case "hc_free":
		return fmt.Sprintf("(hc_free(%s), (int64_t)0)", arg(0)), nil

	case "hc_memcpy":
		return fmt.Sprintf("hc_memcpy(%s, %s, %s)", arg(0), arg(1), arg(2)), nil

	case "hc_memset":
		return fmt.Sprintf("hc_memset(%s, %s, %s)", arg(0), arg(1), arg(2)), nil

	case "HashFind":
		return fmt.Sprintf("HashFind((const char*)(intptr_t)%s)", arg(0)), nil

	case "MemberMetaData":
		return fmt.Sprintf("MemberMetaData((const char*)(intptr_t)%s, %s)", arg(0), arg(1)), nil

	case "MemberMetaFind":
		return fmt.Sprintf("MemberMetaFind((const char*)(intptr_t)%s, %s)", arg(0), arg(1)), nil

	case "JobQue":
		return fmt.Sprintf("JobQue(%s, %s)", arg(0), arg(1)), nil

	case "JobResGet":
		return fmt.Sprintf("JobResGet(%s)", arg(0)), nil

	case "CallStkGrow":
		return fmt.Sprintf("CallStkGrow(%s, %s, %s, %s)", arg(2), arg(3), arg(4), arg(5)), nil

	case "Spawn":
		return fmt.Sprintf("Spawn(%s, %s)", arg(0), arg(1)), nil

	case "hc_task_spawn":
		return fmt.Sprintf("hc_task_spawn((const char*)(intptr_t)%s)", arg(0)), nil

	case "hc_spawn_wait_all":
		return "(hc_spawn_wait_all(), (int64_t)0)", nil

	case "PressAKey", "ClassRep", "ClassRepD":
		return "(int64_t)0", nil

	default:
		return "", fmt.Errorf("unimplemented runtime intrinsic %q in AOT build", in.Callee)
	}
}
