// Package preprocessor implements spec §4.1: directive handling, macro
// expansion, the include graph with cycle detection, the #if arithmetic
// evaluator, and the restricted #exe mini-interpreter.
package preprocessor

import (
	"fmt"
	"strings"

	"github.com/holyc-lang/holycc/internal/diag"
)

// Mode selects which of #ifjit/#ifaot is true, per spec §4.1.
type Mode string

const (
	ModeJIT Mode = "jit"
	ModeAOT Mode = "aot"
)

// Options configures one preprocessing run.
type Options struct {
	Mode           Mode
	IncludeRoots   []string
	FS             FileSystem
	CmdLine        string
	ErrorOnDivZero bool // open question §9.1; not read: #if division or modulo by zero always evaluates to 0
}

const maxIncludeDepth = 64

// condFrame is one entry of the #if/#ifdef/.../#endif stack.
type condFrame struct {
	branchTaken bool
	matchedAny  bool
	line        int
}

// Preprocessor runs one source file (and everything it transitively
// includes) through directive processing and macro expansion.
type Preprocessor struct {
	opts    Options
	macros  *MacroTable
	stack   []condFrame
	incPath []string // canonical include chain for cycle detection/display
	out     strings.Builder
}

// New creates a Preprocessor with a fresh macro table.
func New(opts Options) *Preprocessor {
	if opts.FS == nil {
		opts.FS = OSFileSystem{}
	}

	return &Preprocessor{opts: opts, macros: NewMacroTable()}
}

// Macros exposes the macro table so callers (the REPL, mainly) can seed
// built-in defines before running a file.
func (p *Preprocessor) Macros() *MacroTable { return p.macros }

func (p *Preprocessor) emitting() bool {
	for _, f := range p.stack {
		if !f.branchTaken {
			return false
		}
	}

	return true
}

// Run preprocesses source text read from filename and returns the fully
// expanded text, or a diagnostic on the first failure.
func (p *Preprocessor) Run(source, filename string) (string, *diag.Diagnostic) {
	var out strings.Builder
	if d := p.process(source, filename, &out); d != nil {
		return "", d
	}

	if len(p.stack) != 0 {
		f := p.stack[len(p.stack)-1]

		return "", diag.Err("HC1002").At(filename, f.line, 1).
			Msg("missing #endif").Build()
	}

	return out.String(), nil
}

func (p *Preprocessor) process(source, filename string, out *strings.Builder) *diag.Diagnostic {
	lines := strings.Split(source, "\n")

	for idx := 0; idx < len(lines); idx++ {
		lineNo := idx + 1
		raw := lines[idx]
		trimmed := strings.TrimLeft(raw, " \t")

		if strings.HasPrefix(trimmed, "#") {
			consumed, d := p.directive(trimmed, lines, idx, filename, out)
			if d != nil {
				return d
			}

			idx = consumed

			if idx != len(lines)-1 {
				out.WriteString("\n")
			}

			continue
		}

		if p.emitting() {
			ctx := builtinContext{file: filename, dir: p.opts.FS.Dir(filename), line: lineNo, cmdLine: p.opts.CmdLine}
			out.WriteString(p.macros.ExpandLine(raw, ctx))
		}

		if idx != len(lines)-1 {
			out.WriteString("\n")
		}
	}

	return nil
}

// directive dispatches a single directive line (trimmed, still
// starting with '#') and returns the index of the last source line it
// consumed (itself, or further lines for multi-line #exe blocks).
func (p *Preprocessor) directive(trimmed string, lines []string, idx int, filename string, out *strings.Builder) (int, *diag.Diagnostic) {
	lineNo := idx + 1
	body := strings.TrimSpace(trimmed[1:])

	name, rest := splitDirective(body)

	switch name {
	case "include":
		if !p.emitting() {
			return idx, nil
		}

		return idx, p.doInclude(rest, filename, lineNo, out)

	case "define":
		if !p.emitting() {
			return idx, nil
		}

		return idx, p.doDefine(rest, filename, lineNo)

	case "ifdef":
		return idx, p.pushCond(p.macros.Has(strings.TrimSpace(rest)), lineNo)
	case "ifndef":
		return idx, p.pushCond(!p.macros.Has(strings.TrimSpace(rest)), lineNo)
	case "ifjit":
		return idx, p.pushCond(p.opts.Mode == ModeJIT, lineNo)
	case "ifaot":
		return idx, p.pushCond(p.opts.Mode == ModeAOT, lineNo)
	case "if":
		v, d := p.evalCond(rest, filename, lineNo)
		if d != nil {
			return idx, d
		}

		return idx, p.pushCond(v != 0, lineNo)

	case "elif":
		if len(p.stack) == 0 {
			return idx, diag.Err("HC1005").At(filename, lineNo, 1).Msg("stray #elif").Build()
		}

		f := &p.stack[len(p.stack)-1]

		if f.matchedAny {
			f.branchTaken = false

			return idx, nil
		}

		v, d := p.evalCond(rest, filename, lineNo)
		if d != nil {
			return idx, d
		}

		f.branchTaken = v != 0
		if f.branchTaken {
			f.matchedAny = true
		}

		return idx, nil

	case "else":
		if len(p.stack) == 0 {
			return idx, diag.Err("HC1004").At(filename, lineNo, 1).Msg("stray #else").Build()
		}

		f := &p.stack[len(p.stack)-1]
		f.branchTaken = !f.matchedAny
		f.matchedAny = true

		return idx, nil

	case "endif":
		if len(p.stack) == 0 {
			return idx, diag.Err("HC1006").At(filename, lineNo, 1).Msg("stray #endif").Build()
		}

		p.stack = p.stack[:len(p.stack)-1]

		return idx, nil

	case "assert":
		if !p.emitting() {
			return idx, nil
		}

		v, d := p.evalCond(rest, filename, lineNo)
		if d != nil {
			return idx, d
		}

		if v == 0 {
			return idx, diag.Err("HC1008").At(filename, lineNo, 1).Msg("#assert failed").Build()
		}

		return idx, nil

	case "exe":
		if !p.emitting() {
			end, _ := findBracedBlock(lines, idx)

			return end, nil
		}

		return p.doExe(lines, idx, filename, out)

	default:
		return idx, diag.Err("HC1009").At(filename, lineNo, 1).
			Msg("unsupported directive #" + name).Build()
	}
}

func splitDirective(body string) (name, rest string) {
	i := 0
	for i < len(body) && (isIfIdentCont(body[i])) {
		i++
	}

	return body[:i], strings.TrimSpace(body[i:])
}

func (p *Preprocessor) pushCond(v bool, line int) *diag.Diagnostic {
	p.stack = append(p.stack, condFrame{branchTaken: v, matchedAny: v, line: line})

	return nil
}

func (p *Preprocessor) evalCond(expr, filename string, line int) (int64, *diag.Diagnostic) {
	// Deliberately not macro-expanded up front: defined(X) needs to see
	// the raw identifier X, and evalIfExpr resolves plain identifiers
	// against the macro table itself (spec §4.1).
	v, err := evalIfExpr(expr, p.macros)
	if err != nil {
		ee, _ := err.(*exprError)
		code := "HC1016"

		if ee != nil {
			code = ee.code
		}

		return 0, diag.Err(code).At(filename, line, 1).Msg(err.Error()).Build()
	}

	return v, nil
}

func (p *Preprocessor) doDefine(rest, filename string, line int) *diag.Diagnostic {
	if rest == "" {
		return diag.Err("HC1026").At(filename, line, 1).Msg("#define requires a macro name").Build()
	}

	i := 0
	for i < len(rest) && isIfIdentCont(rest[i]) {
		i++
	}

	if i == 0 || !isIfIdentStart(rune(rest[0])) {
		return diag.Err("HC1027").At(filename, line, 1).Msg("invalid macro name in #define").Build()
	}

	name := rest[:i]
	m := &Macro{Name: name}

	if i < len(rest) && rest[i] == '(' {
		m.FunctionLike = true

		close := strings.IndexByte(rest[i:], ')')
		if close < 0 {
			return diag.Err("HC1030").At(filename, line, 1).Msg("unterminated macro parameter list").Build()
		}

		paramsText := rest[i+1 : i+close]

		if strings.TrimSpace(paramsText) != "" {
			for _, param := range strings.Split(paramsText, ",") {
				param = strings.TrimSpace(param)
				if param == "" {
					return diag.Err("HC1028").At(filename, line, 1).
						Msg("empty parameter in function-like macro: " + name).Build()
				}

				m.Params = append(m.Params, param)
			}
		}

		m.Body = strings.TrimSpace(rest[i+close+1:])
	} else {
		m.Body = strings.TrimSpace(rest[i:])
	}

	p.macros.Define(m)

	return nil
}

func (p *Preprocessor) doInclude(rest, filename string, line int, out *strings.Builder) *diag.Diagnostic {
	path, ok := unquotePath(rest)
	if !ok {
		return diag.Err("HC1031").At(filename, line, 1).Msg("malformed #include target").Build()
	}

	if len(p.incPath) == 0 {
		p.incPath = append(p.incPath, filename)
	}

	if len(p.incPath) >= maxIncludeDepth {
		return diag.Err("HC1001").At(filename, line, 1).Msg("preprocessor include depth exceeded").Build()
	}

	resolved, ferr := p.resolveInclude(filename, path)
	if ferr != nil {
		return diag.Err("HC1007").At(filename, line, 1).
			Msg("include not found: " + path).
			Help("checked %s and configured include roots", p.opts.FS.Dir(filename)).Build()
	}

	for _, seen := range p.incPath {
		if seen == resolved {
			chain := append(append([]string{}, p.incPath...), resolved)

			return diag.Err("HC1023").At(filename, line, 1).
				Msg("include cycle detected: " + strings.Join(chain, " -> ")).Build()
		}
	}

	data, err := p.opts.FS.ReadFile(resolved)
	if err != nil {
		return diag.Err("HC1007").At(filename, line, 1).Msg("include not found: " + path).Build()
	}

	p.incPath = append(p.incPath, resolved)
	d := p.process(string(data), resolved, out)
	p.incPath = p.incPath[:len(p.incPath)-1]

	return d
}

func (p *Preprocessor) resolveInclude(fromFile, path string) (string, error) {
	fs := p.opts.FS

	candidate := fs.Join(fs.Dir(fromFile), path)
	if _, err := fs.ReadFile(candidate); err == nil {
		return candidate, nil
	}

	for _, root := range p.opts.IncludeRoots {
		candidate = fs.Join(root, path)
		if _, err := fs.ReadFile(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("not found")
}

func unquotePath(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		return rest[1 : len(rest)-1], true
	}

	if len(rest) >= 2 && rest[0] == '<' && rest[len(rest)-1] == '>' {
		return rest[1 : len(rest)-1], true
	}

	return "", false
}
