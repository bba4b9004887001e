package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads back a Module's own String() output. It is not a general
// LLVM-IR parser - the grammar it accepts is exactly what this
// package's String() methods produce - but that is the only text this
// IR's "backend glue" ever round-trips: internal/backend's
// NormalizeIr/LoadIrJit/BuildExecutableFromIr all take the textual form
// spec §4.7 specifies, even though the only producer of that text is
// this same package.
func Parse(text string) (*Module, error) {
	lines := strings.Split(text, "\n")
	mod := &Module{}

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		switch {
		case line == "":
			i++

		case strings.HasPrefix(line, `; module `):
			name, err := strconv.Unquote(strings.TrimPrefix(line, "; module "))
			if err != nil {
				return nil, fmt.Errorf("line %d: bad module header: %w", i+1, err)
			}

			mod.Name = name
			i++

		case strings.HasPrefix(line, ";"):
			i++

		case strings.HasPrefix(line, "%") && strings.Contains(line, "= type {"):
			st, err := parseStructType(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}

			mod.Structs = append(mod.Structs, st)
			i++

		case strings.HasPrefix(line, "@"):
			g, err := parseGlobal(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}

			mod.Globals = append(mod.Globals, g)
			i++

		case strings.HasPrefix(line, "declare "):
			fn, err := parseFunctionSig(strings.TrimPrefix(line, "declare "))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}

			fn.IsDeclaration = true
			mod.Functions = append(mod.Functions, fn)
			i++

		case strings.HasPrefix(line, "define "):
			fn, next, err := parseFunctionDef(lines, i)
			if err != nil {
				return nil, err
			}

			mod.Functions = append(mod.Functions, fn)
			i = next

		default:
			return nil, fmt.Errorf("line %d: unexpected top-level text %q", i+1, line)
		}
	}

	return mod, nil
}

func parseStructType(line string) (*StructType, error) {
	idx := strings.Index(line, " = type {")
	if idx < 0 || !strings.HasPrefix(line, "%") {
		return nil, fmt.Errorf("malformed struct type %q", line)
	}

	name := line[1:idx]

	body := strings.TrimSuffix(strings.TrimSpace(line[idx+len(" = type {"):]), "}")
	body = strings.TrimSpace(body)

	var fields []string
	if body != "" {
		for _, f := range splitTopLevelComma(body) {
			fields = append(fields, strings.TrimSpace(f))
		}
	}

	return &StructType{Name: name, Fields: fields}, nil
}

func parseGlobal(line string) (*Global, error) {
	idx := strings.Index(line, " = ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed global %q", line)
	}

	name := line[1:idx]
	rest := line[idx+3:]

	if strings.HasPrefix(rest, "external global ") {
		ty, _ := readTypeToken(strings.TrimPrefix(rest, "external global "))
		return &Global{Name: name, Type: ty, IsDeclaration: true}, nil
	}

	g := &Global{Name: name, Linkage: External}

	for _, lk := range []struct {
		text    string
		linkage Linkage
	}{{"internal ", Internal}, {"private ", Private}} {
		if strings.HasPrefix(rest, lk.text) {
			g.Linkage = lk.linkage
			rest = rest[len(lk.text):]

			break
		}
	}

	if strings.HasPrefix(rest, "unnamed_addr ") {
		g.UnnamedAddr = true
		rest = rest[len("unnamed_addr "):]
	}

	switch {
	case strings.HasPrefix(rest, "constant "):
		g.Constant = true
		rest = rest[len("constant "):]
	case strings.HasPrefix(rest, "global "):
		rest = rest[len("global "):]
	default:
		return nil, fmt.Errorf("malformed global %q: expected \"global\"/\"constant\"", line)
	}

	ty, rest2 := readTypeToken(rest)
	g.Type = ty
	g.Initializer = strings.TrimSpace(rest2)

	return g, nil
}

// readTypeToken reads one IR type token off the front of s: a
// bracketed "[N x T]" array type (the only shape with an embedded
// space), or otherwise the next word up to a space or comma. rest
// keeps whatever delimiter followed - call skipSep on it before using
// it as the next field.
func readTypeToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " ")

	if strings.HasPrefix(s, "[") {
		depth := 0

		for i, c := range s {
			switch c {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return s[:i+1], s[i+1:]
				}
			}
		}

		return s, ""
	}

	idx := strings.IndexAny(s, " ,")
	if idx < 0 {
		return s, ""
	}

	return s[:idx], s[idx:]
}

// skipSep trims the separator after a type token: any spaces, then an
// optional comma, then any spaces.
func skipSep(s string) string {
	s = strings.TrimLeft(s, " ")
	s = strings.TrimPrefix(s, ",")

	return strings.TrimLeft(s, " ")
}

// splitTopLevelComma splits s on ", " while respecting [], {}, () and
// quoted-string nesting depth, the same bracket-aware rule
// internal/backend's constant-initializer parser uses.
func splitTopLevelComma(s string) []string {
	var parts []string

	depth := 0
	inStr := false
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			continue
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1

			if start < len(s) && s[start] == ' ' {
				start++
			}
		}
	}

	parts = append(parts, s[start:])

	return parts
}

func parseFunctionSig(sig string) (*Function, error) {
	fn := &Function{Linkage: External}

	for _, lk := range []struct {
		text    string
		linkage Linkage
	}{{"internal ", Internal}, {"private ", Private}} {
		if strings.HasPrefix(sig, lk.text) {
			fn.Linkage = lk.linkage
			sig = sig[len(lk.text):]

			break
		}
	}

	retTy, rest := readTypeToken(sig)
	fn.ReturnType = retTy

	atIdx := strings.IndexByte(rest, '@')
	if atIdx < 0 {
		return nil, fmt.Errorf("malformed function signature %q", sig)
	}

	rest = rest[atIdx+1:]

	parenIdx := strings.IndexByte(rest, '(')
	if parenIdx < 0 {
		return nil, fmt.Errorf("malformed function signature: missing '(' in %q", rest)
	}

	fn.Name = rest[:parenIdx]

	closeIdx := strings.LastIndexByte(rest, ')')
	if closeIdx < 0 {
		return nil, fmt.Errorf("malformed function signature: missing ')' in %q", rest)
	}

	paramText := strings.TrimSpace(rest[parenIdx+1 : closeIdx])
	if paramText == "" {
		return fn, nil
	}

	for _, p := range splitTopLevelComma(paramText) {
		p = strings.TrimSpace(p)
		if p == "..." {
			fn.Variadic = true
			continue
		}

		ty, nameTok := readTypeToken(p)
		fn.Params = append(fn.Params, Param{Type: ty, Name: strings.TrimPrefix(strings.TrimSpace(nameTok), "%")})
	}

	return fn, nil
}

// parseFunctionDef consumes a "define ... {" header at lines[start] and
// every line up to (and including) its closing "}", returning the
// parsed Function and the index of the line following it.
func parseFunctionDef(lines []string, start int) (*Function, int, error) {
	header := strings.TrimSpace(lines[start])

	sig := strings.TrimPrefix(header, "define ")
	sig = strings.TrimSuffix(strings.TrimSpace(sig), "{")
	sig = strings.TrimSpace(sig)

	fn, err := parseFunctionSig(sig)
	if err != nil {
		return nil, 0, fmt.Errorf("line %d: %w", start+1, err)
	}

	i := start + 1

	var block *BasicBlock

	for i < len(lines) {
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)

		if trimmed == "}" {
			return fn, i + 1, nil
		}

		if strings.HasSuffix(trimmed, ":") && !strings.HasPrefix(raw, "  ") {
			block = &BasicBlock{Label: strings.TrimSuffix(trimmed, ":")}
			fn.Blocks = append(fn.Blocks, block)
			i++

			continue
		}

		if trimmed == "" {
			i++
			continue
		}

		if block == nil {
			return nil, 0, fmt.Errorf("line %d: instruction outside any block", i+1)
		}

		instr, err := parseInstr(trimmed)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", i+1, err)
		}

		block.Instrs = append(block.Instrs, instr)
		i++
	}

	return nil, 0, fmt.Errorf("line %d: function %q missing closing \"}\"", start+1, fn.Name)
}

var binOps = map[string]bool{
	"add": true, "sub": true, "mul": true, "sdiv": true, "srem": true,
	"udiv": true, "urem": true, "and": true, "or": true, "xor": true,
	"shl": true, "ashr": true, "lshr": true,
	"fadd": true, "fsub": true, "fmul": true, "fdiv": true,
}

var castOps = map[string]bool{
	"trunc": true, "sext": true, "zext": true, "fptosi": true,
	"sitofp": true, "ptrtoint": true, "inttoptr": true, "bitcast": true,
}

func parseInstr(line string) (Instr, error) {
	if strings.HasPrefix(line, "; ") || line == ";" {
		return &Comment{Text: strings.TrimPrefix(line, "; ")}, nil
	}

	if line == "ret void" {
		return RetVoid{}, nil
	}

	if line == "unreachable" {
		return Unreachable{}, nil
	}

	if strings.HasPrefix(line, "ret ") {
		parts := strings.SplitN(strings.TrimPrefix(line, "ret "), " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed ret %q", line)
		}

		return &Ret{Ty: parts[0], Val: parts[1]}, nil
	}

	if strings.HasPrefix(line, "br label %") {
		return &Br{Target: strings.TrimPrefix(line, "br label %")}, nil
	}

	if strings.HasPrefix(line, "br i1 ") {
		rest := strings.TrimPrefix(line, "br i1 ")

		commaIdx := strings.Index(rest, ", label %")
		if commaIdx < 0 {
			return nil, fmt.Errorf("malformed condbr %q", line)
		}

		cond := rest[:commaIdx]
		rest = rest[commaIdx+len(", label %"):]

		commaIdx2 := strings.Index(rest, ", label %")
		if commaIdx2 < 0 {
			return nil, fmt.Errorf("malformed condbr %q", line)
		}

		return &CondBr{Cond: cond, True: rest[:commaIdx2], False: rest[commaIdx2+len(", label %"):]}, nil
	}

	if strings.HasPrefix(line, "store ") {
		rest := strings.TrimPrefix(line, "store ")

		ty, rest := readTypeToken(rest)
		rest = skipSep(rest)

		ptrIdx := strings.Index(rest, ", ptr ")
		if ptrIdx < 0 {
			return nil, fmt.Errorf("malformed store %q", line)
		}

		return &Store{Ty: ty, Val: rest[:ptrIdx], Ptr: rest[ptrIdx+len(", ptr "):]}, nil
	}

	if strings.HasPrefix(line, "call ") {
		return parseCall(line)
	}

	dst, rhs, ok := splitAssign(line)
	if !ok {
		return nil, fmt.Errorf("unrecognized instruction %q", line)
	}

	switch {
	case strings.HasPrefix(rhs, "alloca "):
		return &Alloca{Dst: dst, Type: strings.TrimPrefix(rhs, "alloca ")}, nil

	case strings.HasPrefix(rhs, "load "):
		body := strings.TrimPrefix(rhs, "load ")

		ty, body := readTypeToken(body)
		body = skipSep(body)
		body = strings.TrimPrefix(body, "ptr ")

		return &Load{Dst: dst, Ty: ty, Ptr: body}, nil

	case strings.HasPrefix(rhs, "icmp "):
		return parseCmp(dst, strings.TrimPrefix(rhs, "icmp "), false)

	case strings.HasPrefix(rhs, "fcmp "):
		return parseCmp(dst, strings.TrimPrefix(rhs, "fcmp "), true)

	case strings.HasPrefix(rhs, "getelementptr "):
		return parseGEPInstr(dst, strings.TrimPrefix(rhs, "getelementptr "))

	case strings.HasPrefix(rhs, "atomicrmw "):
		return parseAtomicRMW(dst, strings.TrimPrefix(rhs, "atomicrmw "))

	case strings.HasPrefix(rhs, "phi "):
		return parsePhi(dst, strings.TrimPrefix(rhs, "phi "))

	case strings.HasPrefix(rhs, "call "):
		instr, err := parseCall("call " + strings.TrimPrefix(rhs, "call "))
		if err != nil {
			return nil, err
		}

		switch v := instr.(type) {
		case *Call:
			v.Dst = dst
		case *InlineAsm:
			v.Dst = dst
		}

		return instr, nil

	default:
		if op, rest, isCast := matchOp(rhs, castOps); isCast {
			return parseCast(dst, op, rest)
		}

		if op, rest, isBin := matchOp(rhs, binOps); isBin {
			return parseBinOp(dst, op, rest)
		}

		return nil, fmt.Errorf("unrecognized assignment %q", line)
	}
}

// splitAssign splits "%dst = rhs" into its two halves.
func splitAssign(line string) (dst, rhs string, ok bool) {
	if !strings.HasPrefix(line, "%") {
		return "", "", false
	}

	idx := strings.Index(line, " = ")
	if idx < 0 {
		return "", "", false
	}

	return line[1:idx], line[idx+3:], true
}

func matchOp(rhs string, set map[string]bool) (op, rest string, ok bool) {
	sp := strings.IndexByte(rhs, ' ')
	if sp < 0 {
		return "", "", false
	}

	op = rhs[:sp]
	if !set[op] {
		return "", "", false
	}

	return op, rhs[sp+1:], true
}

func parseBinOp(dst, op, rest string) (Instr, error) {
	ty, rest := readTypeToken(rest)
	rest = skipSep(rest)

	idx := strings.Index(rest, ", ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed binop operand %q", rest)
	}

	return &BinOp{Dst: dst, Op: op, Ty: ty, LHS: rest[:idx], RHS: rest[idx+2:]}, nil
}

func parseCast(dst, op, rest string) (Instr, error) {
	fromTy, rest := readTypeToken(rest)
	rest = skipSep(rest)

	idx := strings.Index(rest, " to ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed cast %q", rest)
	}

	val := rest[:idx]
	toTy := rest[idx+len(" to "):]

	return &Cast{Dst: dst, Op: op, FromTy: fromTy, Val: val, ToTy: toTy}, nil
}

func parseCmp(dst, rest string, isFloat bool) (Instr, error) {
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("malformed cmp %q", rest)
	}

	pred := rest[:sp]
	ty, rest2 := readTypeToken(rest[sp+1:])
	rest2 = skipSep(rest2)

	idx := strings.Index(rest2, ", ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed cmp operands %q", rest2)
	}

	lhs, rhsVal := rest2[:idx], rest2[idx+2:]

	if isFloat {
		return &FCmp{Dst: dst, Pred: pred, Ty: ty, LHS: lhs, RHS: rhsVal}, nil
	}

	return &ICmp{Dst: dst, Pred: pred, Ty: ty, LHS: lhs, RHS: rhsVal}, nil
}

func parseGEPInstr(dst, rest string) (Instr, error) {
	elemTy, rest := readTypeToken(rest)
	rest = skipSep(rest)
	rest = strings.TrimPrefix(rest, "ptr ")

	idx := strings.Index(rest, ", ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed getelementptr %q", rest)
	}

	ptr := rest[:idx]
	idxText := rest[idx+2:]

	g := &GEP{Dst: dst, ElemTy: elemTy, Ptr: ptr}

	for _, part := range splitTopLevelComma(idxText) {
		ty, val := readTypeToken(strings.TrimSpace(part))
		val = skipSep(val)
		g.IndexTypes = append(g.IndexTypes, ty)
		g.Indices = append(g.Indices, val)
	}

	return g, nil
}

func parseAtomicRMW(dst, rest string) (Instr, error) {
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("malformed atomicrmw %q", rest)
	}

	op := rest[:sp]
	rest = strings.TrimPrefix(rest[sp+1:], "ptr ")

	idx := strings.Index(rest, ", ")
	if idx < 0 {
		return nil, fmt.Errorf("malformed atomicrmw operand %q", rest)
	}

	ptr := rest[:idx]

	ty, val := readTypeToken(rest[idx+2:])
	val = skipSep(val)
	val = strings.TrimSuffix(val, "seq_cst")
	val = strings.TrimSpace(val)

	return &AtomicRMW{Dst: dst, Op: op, Ty: ty, Ptr: ptr, Val: val}, nil
}

func parsePhi(dst, rest string) (Instr, error) {
	ty, rest := readTypeToken(rest)
	rest = skipSep(rest)

	p := &Phi{Dst: dst, Ty: ty}

	for _, part := range splitTopLevelComma(rest) {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, "]")
		part = strings.TrimSpace(part)

		idx := strings.LastIndex(part, ", %")
		if idx < 0 {
			return nil, fmt.Errorf("malformed phi entry %q", part)
		}

		p.Incoming = append(p.Incoming, PhiIncoming{Val: part[:idx], Block: part[idx+len(", %"):]})
	}

	return p, nil
}

// parseCall parses both the void and assigned forms of "call", and the
// raw-asm form InlineAsm.String() emits under the same "call" prefix.
func parseCall(line string) (Instr, error) {
	dst := ""
	rest := line

	if d, r, ok := splitAssign(line); ok && strings.HasPrefix(r, "call ") {
		dst, rest = d, r
	}

	rest = strings.TrimPrefix(rest, "call ")

	retTy, rest := readTypeToken(rest)
	rest = skipSep(rest)

	if strings.HasPrefix(rest, "asm ") {
		return parseInlineAsm(dst, retTy, strings.TrimPrefix(rest, "asm "))
	}

	parenIdx := strings.IndexByte(rest, '(')
	if parenIdx < 0 {
		return nil, fmt.Errorf("malformed call %q", line)
	}

	calleeTok := strings.TrimSpace(rest[:parenIdx])

	closeIdx := strings.LastIndexByte(rest, ')')
	if closeIdx < 0 {
		return nil, fmt.Errorf("malformed call %q", line)
	}

	argText := strings.TrimSpace(rest[parenIdx+1 : closeIdx])

	c := &Call{Dst: dst, RetTy: retTy}

	if strings.HasPrefix(calleeTok, "@") {
		c.Callee = calleeTok[1:]
	} else {
		c.Indirect = true
		c.Callee = calleeTok
	}

	if argText != "" {
		for _, a := range splitTopLevelComma(argText) {
			ty, val := readTypeToken(strings.TrimSpace(a))
			val = skipSep(val)
			c.ArgTypes = append(c.ArgTypes, ty)
			c.Args = append(c.Args, val)
		}
	}

	return c, nil
}

// parseInlineAsm parses `asm "TEMPLATE", "CONSTRAINTS"(ARGS)`.
func parseInlineAsm(dst, retTy, rest string) (Instr, error) {
	template, rest, err := readQuoted(rest)
	if err != nil {
		return nil, err
	}

	rest = strings.TrimPrefix(strings.TrimSpace(rest), ",")
	rest = strings.TrimSpace(rest)

	constraints, rest, err := readQuoted(rest)
	if err != nil {
		return nil, err
	}

	rest = strings.TrimSpace(rest)

	parenIdx := strings.IndexByte(rest, '(')
	closeIdx := strings.LastIndexByte(rest, ')')

	if parenIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("malformed inline asm call")
	}

	argText := strings.TrimSpace(rest[parenIdx+1 : closeIdx])

	a := &InlineAsm{Dst: dst, RetTy: retTy, Template: template, Constraints: constraints}

	if argText != "" {
		for _, arg := range splitTopLevelComma(argText) {
			ty, val := readTypeToken(strings.TrimSpace(arg))
			val = skipSep(val)
			a.ArgTypes = append(a.ArgTypes, ty)
			a.Args = append(a.Args, val)
		}
	}

	return a, nil
}

// readQuoted reads a Go-syntax quoted string off the front of s
// (InlineAsm's template/constraints are written with %q) and returns
// its decoded text plus whatever follows.
func readQuoted(s string) (text, rest string, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return "", s, fmt.Errorf("expected quoted string in %q", s)
	}

	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}

		if s[i] == '"' {
			decoded, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", "", err
			}

			return decoded, s[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("unterminated quoted string in %q", s)
}
