// Package repl implements spec.md §6.3's REPL protocol: prompt
// management, incomplete-input detection, declaration/executable cell
// classification, and history persistence. Grounded on
// cmd/orizon-repl/main.go's REPL struct (scanner-driven Run loop,
// :command dispatch, --history/--max-history flags) generalized from
// Orizon's line-at-a-time evaluator to HolyC's declaration-catalog /
// JIT-session model.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/backend"
	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/hir"
	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/parser"
	"github.com/holyc-lang/holycc/internal/sema"
)

const (
	primaryPrompt     = "holyc> "
	continuationPrompt = "...> "
)

// REPL is one interactive session: the running declaration catalog, the
// backend JIT session it feeds, and line history.
type REPL struct {
	strict      bool
	sessionName string
	historyPath string
	maxHistory  int

	prelude     []string // accumulated decl-only cell source texts, in entry order
	execCounter int
	history     []string

	out io.Writer
	in  *bufio.Scanner
}

// New creates a REPL reading from in and writing to out.
func New(in io.Reader, out io.Writer, strict bool, sessionName, historyPath string, maxHistory int) *REPL {
	if sessionName == "" {
		sessionName = backend.ReplSession
	}

	return &REPL{
		strict:      strict,
		sessionName: sessionName,
		historyPath: historyPath,
		maxHistory:  maxHistory,
		out:         out,
		in:          bufio.NewScanner(in),
	}
}

func (r *REPL) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// Run drives the read-eval-print loop until EOF or :quit.
func (r *REPL) Run() {
	r.LoadHistory()

	for {
		cell, ok := r.readCell()
		if !ok {
			break
		}

		if cell == "" {
			continue
		}

		r.history = append(r.history, cell)
		if len(r.history) > r.maxHistory && r.maxHistory > 0 {
			r.history = r.history[len(r.history)-r.maxHistory:]
		}

		trimmed := strings.TrimSpace(cell)
		if strings.HasPrefix(trimmed, ":") {
			if r.handleCommand(trimmed) {
				break
			}

			continue
		}

		r.evalCell(cell)
	}

	r.SaveHistory()
}

// readCell reads one logical cell: either an explicit :{ ... :} block, or
// lines accumulated until the input is syntactically complete. Returns
// ok=false on EOF with nothing pending.
func (r *REPL) readCell() (string, bool) {
	r.printf(primaryPrompt)

	if !r.in.Scan() {
		return "", false
	}

	first := r.in.Text()

	if strings.TrimSpace(first) == ":{" {
		var b strings.Builder

		for {
			r.printf(continuationPrompt)

			if !r.in.Scan() {
				break
			}

			line := r.in.Text()
			if strings.TrimSpace(line) == ":}" {
				break
			}

			b.WriteString(line)
			b.WriteString("\n")
		}

		return b.String(), true
	}

	buf := first

	for isIncomplete(buf) {
		r.printf(continuationPrompt)

		if !r.in.Scan() {
			break
		}

		buf += "\n" + r.in.Text()
	}

	return buf, true
}

// isIncomplete reports whether buf looks like a syntactically
// unfinished cell: unbalanced (){}[] outside strings/comments, or an
// unterminated string/char literal/block comment - the bracket-balance
// heuristic spec.md §6.3 names alongside "diagnostics that point at
// EOF".
func isIncomplete(buf string) bool {
	depth := 0
	inString, inChar, inLineComment, inBlockComment := false, false, false, false

	runes := []rune(buf)

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
			}

			continue
		}

		if inBlockComment {
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}

			continue
		}

		if inString {
			if c == '\\' {
				i++
				continue
			}

			if c == '"' {
				inString = false
			}

			continue
		}

		if inChar {
			if c == '\\' {
				i++
				continue
			}

			if c == '\'' {
				inChar = false
			}

			continue
		}

		switch {
		case c == '"':
			inString = true
		case c == '\'':
			inChar = true
		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			inLineComment = true
			i++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			inBlockComment = true
			i++
		case c == '(' || c == '{' || c == '[':
			depth++
		case c == ')' || c == '}' || c == ']':
			depth--
		}
	}

	return depth > 0 || inString || inChar || inBlockComment
}

// declShapedKinds are the top-level ast.Node kinds that keep a cell in
// the declaration catalog rather than promoting it to an executable
// wrapper: typedefs, class decls, linkage decls, global var decls, and
// function declarations/definitions (prototypes and bodies both count -
// a defined function is still a declaration other cells can call).
var declShapedKinds = map[string]bool{
	"TypeAliasDecl": true,
	"ClassDecl":     true,
	"LinkageDecl":   true,
	"VarDecl":       true,
	"FunctionDecl":  true,
}

func isDeclShaped(prog *ast.Node) bool {
	if prog == nil || len(prog.Children) == 0 {
		return false
	}

	for _, c := range prog.Children {
		if !declShapedKinds[c.Kind] {
			return false
		}
	}

	return true
}

// evalCell classifies cell and either adds it to the prelude or compiles
// and executes it, printing any diagnostic and leaving the session
// untouched on failure per spec §7.
func (r *REPL) evalCell(cell string) {
	preludeText := r.preludeSource()

	if prog, d := parser.Parse(preludeText+cell, "<repl>"); d == nil && isDeclShaped(prog) {
		if _, sd := sema.Analyze(prog, "<repl>", r.strict); sd != nil {
			r.printf("%s\n", sd.Format())
			return
		}

		r.prelude = append(r.prelude, cell)

		return
	}

	r.execCounter++

	source, isExprForm := r.wrapExec(cell, r.execCounter)

	result, ok := r.compileAndRun(source, fmt.Sprintf("__repl_exec_%d", r.execCounter))
	if !ok {
		return
	}

	if isExprForm {
		r.printf("%s\n", result)
	}
}

func (r *REPL) preludeSource() string {
	return strings.Join(r.prelude, "\n") + "\n"
}

// wrapExec implements spec §6.3's cell-wrapping rule: a cell that
// reduces to a single expression statement becomes
// `I64 __repl_exec_N() { return EXPR; }`; anything else becomes
// `I64 __repl_exec_N() { ...; return 0; }`.
func (r *REPL) wrapExec(cell string, n int) (source string, isExprForm bool) {
	expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell), ";"))

	exprForm := fmt.Sprintf("%sI64 __repl_exec_%d() {\nreturn %s;\n}\n", r.preludeSource(), n, expr)
	if _, d := parser.Parse(exprForm, "<repl>"); d == nil {
		return exprForm, true
	}

	stmtForm := fmt.Sprintf("%sI64 __repl_exec_%d() {\n%s\nreturn 0;\n}\n", r.preludeSource(), n, cell)

	return stmtForm, false
}

// compileAndRun runs the full pipeline over source and, on success,
// executes entry in this session's persistent JIT session
// (reset_after_run=false, so declared globals/state survive).
func (r *REPL) compileAndRun(source, entry string) (string, bool) {
	prog, d := parser.Parse(source, "<repl>")
	if d != nil {
		r.printf("%s\n", d.Format())
		return "", false
	}

	prog, d = sema.Analyze(prog, "<repl>", r.strict)
	if d != nil {
		r.printf("%s\n", d.Format())
		return "", false
	}

	m, d := hir.LowerToHir(prog, "<repl>")
	if d != nil {
		r.printf("%s\n", d.Format())
		return "", false
	}

	mod, d := ir.Build(m, "repl", "<repl>")
	if d != nil {
		r.printf("%s\n", d.Format())
		return "", false
	}

	result := backend.ExecuteIrJit(mod.String(), r.sessionName, false, entry)
	if !result.OK {
		r.printf("%s\n", diag.Err("HC0007").At("<repl>", 0, 0).Msg("%s", result.Output).Build().Format())
		return "", false
	}

	return result.Output, true
}

func (r *REPL) handleCommand(cmd string) (quit bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case ":help":
		r.printHelp()
	case ":quit", ":q":
		return true
	case ":reset":
		backend.ResetJitSession(r.sessionName)
		r.prelude = nil
		r.execCounter = 0
		r.printf("session reset\n")
	case ":strict":
		r.strict = true
		r.printf("strict\n")
	case ":permissive":
		r.strict = false
		r.printf("permissive\n")
	case ":load":
		if len(fields) < 2 {
			r.printf("usage: :load PATH\n")
			return false
		}

		if err := r.LoadFile(fields[1]); err != nil {
			r.printf("error loading %s: %v\n", fields[1], err)
		}
	default:
		r.printf("unknown command: %s (try :help)\n", fields[0])
	}

	return false
}

func (r *REPL) printHelp() {
	r.printf("Commands:\n")
	r.printf("  :help              show this help\n")
	r.printf("  :quit, :q          exit the REPL\n")
	r.printf("  :reset             dispose the JIT session and declaration catalog\n")
	r.printf("  :strict            switch to strict mode\n")
	r.printf("  :permissive        switch to permissive mode\n")
	r.printf("  :load PATH         load and evaluate a file\n")
	r.printf("  :{ ... :}          explicit multi-line cell\n")
}

// LoadFile reads path and evaluates its contents as a single cell, the
// way :load does.
func (r *REPL) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r.evalCell(string(data))

	return nil
}

// LoadHistory reads r.historyPath into memory, matching
// cmd/orizon-repl/main.go's --history persistence. A missing file is not
// an error.
func (r *REPL) LoadHistory() {
	if r.historyPath == "" {
		return
	}

	data, err := os.ReadFile(r.historyPath)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			r.history = append(r.history, line)
		}
	}
}

// SaveHistory persists r.history to r.historyPath.
func (r *REPL) SaveHistory() {
	if r.historyPath == "" || len(r.history) == 0 {
		return
	}

	_ = os.WriteFile(r.historyPath, []byte(strings.Join(r.history, "\n")+"\n"), 0o644)
}
