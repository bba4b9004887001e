package preprocessor

import (
	"strings"

	"github.com/holyc-lang/holycc/internal/diag"
)

// findBracedBlock locates the outermost "{ ... }" beginning at or after
// lines[idx] (the #exe directive line) and returns the index of the
// last source line the block occupies, or an error flag if unterminated.
func findBracedBlock(lines []string, idx int) (int, bool) {
	depth := 0
	started := false

	for i := idx; i < len(lines); i++ {
		line := lines[i]
		j := 0

		for j < len(line) {
			c := line[j]

			switch {
			case c == '"':
				j = scanStringLiteral(line, j)

				continue
			case c == '\'':
				j = scanCharLiteral(line, j)

				continue
			case c == '{':
				depth++
				started = true
			case c == '}':
				depth--

				if started && depth == 0 {
					return i, true
				}
			}

			j++
		}
	}

	return len(lines) - 1, false
}

// doExe interprets a "#exe { ... }" block (spec §4.1) and appends any
// generated text directly to out.
func (p *Preprocessor) doExe(lines []string, idx int, filename string, out *strings.Builder) (int, *diag.Diagnostic) {
	startLine := idx + 1

	end, ok := findBracedBlock(lines, idx)
	if !ok {
		return end, diag.Err("HC1018").At(filename, startLine, 1).Msg("unterminated #exe block").Build()
	}

	block := strings.Join(lines[idx:end+1], "\n")

	open := strings.IndexByte(block, '{')
	closeIdx := strings.LastIndexByte(block, '}')

	if open < 0 || closeIdx < 0 || closeIdx <= open {
		return end, diag.Err("HC1018").At(filename, startLine, 1).Msg("#exe requires a braced block body").Build()
	}

	body := block[open+1 : closeIdx]

	toks := tokenizeExe(body)
	ip := &exeInterp{toks: toks, macros: p.macros, file: filename, line: startLine}

	if d := ip.runBlock(); d != nil {
		return end, d
	}

	if ip.cur().kind != "eof" {
		return end, diag.Err("HC1024").At(filename, startLine, 1).Msg("trailing tokens after #exe block").Build()
	}

	out.WriteString(ip.out.String())

	return end, nil
}

type exeToken struct {
	kind string // ident, string, lparen, rparen, lbrace, rbrace, semicolon, eof
	text string
}

func tokenizeExe(body string) []exeToken {
	var toks []exeToken

	i := 0
	for i < len(body) {
		c := body[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(body) && body[i+1] == '/':
			for i < len(body) && body[i] != '\n' {
				i++
			}
		case c == '"':
			j := scanStringLiteral(body, i)
			toks = append(toks, exeToken{"string", body[i+1 : j-1]})
			i = j
		case c == '(':
			toks = append(toks, exeToken{"lparen", "("})
			i++
		case c == ')':
			toks = append(toks, exeToken{"rparen", ")"})
			i++
		case c == '{':
			toks = append(toks, exeToken{"lbrace", "{"})
			i++
		case c == '}':
			toks = append(toks, exeToken{"rbrace", "}"})
			i++
		case c == ';':
			toks = append(toks, exeToken{"semicolon", ";"})
			i++
		case isIfIdentStart(rune(c)):
			j := i
			for j < len(body) && isIfIdentCont(body[j]) {
				j++
			}

			toks = append(toks, exeToken{"ident", body[i:j]})
			i = j
		default:
			j := i
			for j < len(body) && body[j] != ' ' && body[j] != '\t' && body[j] != '\n' &&
				body[j] != '(' && body[j] != ')' && body[j] != ';' && body[j] != '{' && body[j] != '}' {
				j++
			}

			if j == i {
				j++
			}

			toks = append(toks, exeToken{"raw", body[i:j]})
			i = j
		}
	}

	toks = append(toks, exeToken{"eof", ""})

	return toks
}

// exeInterp walks the tokenized #exe body and accumulates generated
// text into out.
type exeInterp struct {
	toks   []exeToken
	pos    int
	macros *MacroTable
	file   string
	line   int
	out    strings.Builder
}

func (ip *exeInterp) cur() exeToken { return ip.toks[ip.pos] }

func (ip *exeInterp) advance() exeToken {
	t := ip.toks[ip.pos]
	if ip.pos < len(ip.toks)-1 {
		ip.pos++
	}

	return t
}

func (ip *exeInterp) fail(code, msg string) *diag.Diagnostic {
	return diag.Err(code).At(ip.file, ip.line, 1).Msg(msg).Build()
}

func (ip *exeInterp) runBlock() *diag.Diagnostic {
	for ip.cur().kind != "eof" && ip.cur().kind != "rbrace" {
		if d := ip.runStmt(); d != nil {
			return d
		}
	}

	return nil
}

func (ip *exeInterp) runStmt() *diag.Diagnostic {
	tok := ip.cur()

	switch tok.kind {
	case "lbrace":
		ip.advance()

		if d := ip.runBlock(); d != nil {
			return d
		}

		if ip.cur().kind != "rbrace" {
			return ip.fail("HC1020", "unterminated block in #exe block")
		}

		ip.advance()

		return nil

	case "ident":
		if tok.text == "if" {
			return ip.runIf()
		}

		return ip.runCall()

	default:
		return ip.fail("HC1033", "internal macro call parse error")
	}
}

func (ip *exeInterp) runIf() *diag.Diagnostic {
	ip.advance() // 'if'

	if ip.cur().kind != "lparen" {
		return ip.fail("HC1020", "expected '(' for if")
	}

	ip.advance()

	exprToks := ip.collectUntilMatchingParen()

	cond, err := evalIfExpr(joinExeTokens(exprToks), ip.macros)
	if err != nil {
		return ip.fail("HC1016", "malformed #if expression")
	}

	if ip.cur().kind != "rparen" {
		return ip.fail("HC1020", "expected ')' for if")
	}

	ip.advance()

	// Decide which branch to actually run, but we must still parse both
	// to keep the token cursor correct.
	takeThen := cond != 0

	if d := ip.runConditional(takeThen); d != nil {
		return d
	}

	if ip.cur().kind == "ident" && ip.cur().text == "else" {
		ip.advance()

		if d := ip.runConditional(!takeThen); d != nil {
			return d
		}
	}

	return nil
}

// runConditional executes the next statement (recording output) if
// active is true, and merely skips/parses it (discarding output)
// otherwise.
func (ip *exeInterp) runConditional(active bool) *diag.Diagnostic {
	if active {
		return ip.runStmt()
	}

	saved := ip.out
	ip.out = strings.Builder{}
	d := ip.runStmt()
	ip.out = saved

	return d
}

func (ip *exeInterp) collectUntilMatchingParen() []exeToken {
	depth := 1

	var toks []exeToken

	for ip.cur().kind != "eof" {
		if ip.cur().kind == "lparen" {
			depth++
		}

		if ip.cur().kind == "rparen" {
			depth--

			if depth == 0 {
				break
			}
		}

		toks = append(toks, ip.advance())
	}

	return toks
}

func joinExeTokens(toks []exeToken) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		if t.kind == "string" {
			parts[i] = "\"" + t.text + "\""
		} else {
			parts[i] = t.text
		}
	}

	return strings.Join(parts, " ")
}

var exeBuiltinCalls = map[string]bool{
	"StreamPrint": true, "StreamDoc": true, "StreamExePrint": true,
	"Option": true, "Cd": true,
}

func (ip *exeInterp) runCall() *diag.Diagnostic {
	callee := ip.advance().text

	if !exeBuiltinCalls[callee] {
		return ip.fail("HC1019", "unsupported #exe call: "+callee)
	}

	if ip.cur().kind != "lparen" {
		return ip.fail("HC1020", "expected '(' for #exe call")
	}

	ip.advance()

	argToks := ip.collectUntilMatchingParen()

	if ip.cur().kind != "rparen" {
		return ip.fail("HC1020", "unterminated #exe call")
	}

	ip.advance()

	if ip.cur().kind != "semicolon" {
		return ip.fail("HC1024", "#exe call must end with ';'")
	}

	ip.advance()

	switch callee {
	case "StreamPrint", "StreamDoc", "StreamExePrint":
		text, d := ip.evalStringArg(argToks)
		if d != nil {
			return d
		}

		ip.out.WriteString(text)
	case "Option", "Cd":
		// no-op placeholders per spec §4.1
	}

	return nil
}

// evalStringArg expands macros in the argument tokens, then requires
// the result to be one or more adjacent "..." literals, concatenated
// with backslash-escapes decoded.
func (ip *exeInterp) evalStringArg(argToks []exeToken) (string, *diag.Diagnostic) {
	var b strings.Builder

	for _, t := range argToks {
		switch t.kind {
		case "string":
			b.WriteString(decodeEscapes(ip.macros.ExpandLine(t.text, builtinContext{})))
		case "raw", "ident":
			expanded := ip.macros.ExpandLine(t.text, builtinContext{})
			b.WriteString(decodeEscapes(trimQuotes(expanded)))
		}
	}

	if b.Len() == 0 && len(argToks) > 0 {
		return "", ip.fail("HC1021", "#exe call argument must evaluate to a string")
	}

	return b.String(), nil
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}

func decodeEscapes(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++

			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[i])
			}

			continue
		}

		b.WriteByte(s[i])
	}

	return b.String()
}
