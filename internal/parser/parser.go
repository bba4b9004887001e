// Package parser implements the HolyC recursive-descent parser from
// spec §4.3: a tokenize-fully-then-cursor design over the lexer's
// token stream, producing the untyped *ast.Node trees the semantic
// analyzer mutates in place.
package parser

import (
	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/lexer"
)

// Parser walks a fully-tokenized source file with an index cursor,
// which is what lets LooksLikeFunctionDecl/LooksLikeVarDecl/
// LooksLikeCastType scan arbitrarily far ahead without unreading.
type Parser struct {
	toks   []lexer.Token
	pos    int
	file   string
	anonAggregate int
	err    *diag.Diagnostic
}

// Parse tokenizes and parses source, returning the Program node or the
// first diagnostic raised (lexical or syntactic).
func Parse(source, filename string) (*ast.Node, *diag.Diagnostic) {
	lx := lexer.New(source, filename)
	toks := lx.All()

	if d := lx.Err(); d != nil {
		return nil, d
	}

	p := &Parser{toks: toks, file: filename}

	prog := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}

	return prog, nil
}

func (p *Parser) parseProgram() *ast.Node {
	prog := ast.New("Program", p.file, 1, 1)

	for !p.isEnd() && p.err == nil {
		prog.Add(p.parseTopLevel())
	}

	return prog
}

func (p *Parser) isEnd() bool { return p.peek(0).Type == lexer.TokenEnd }

// peek returns the token at pos+offset, clamped to the trailing End
// sentinel so lookahead past the stream never indexes out of range.
func (p *Parser) peek(offset int) lexer.Token {
	want := p.pos + offset
	if want >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}

	return p.toks[want]
}

func (p *Parser) advance() lexer.Token {
	t := p.peek(0)
	if !p.isEnd() {
		p.pos++
	}

	return t
}

func (p *Parser) match(text string) bool {
	if p.peek(0).Literal == text {
		p.advance()

		return true
	}

	return false
}

func (p *Parser) expect(text string) lexer.Token {
	if p.peek(0).Literal != text {
		p.fail("HC2101", "expected '"+text+"'")

		return p.peek(0)
	}

	return p.advance()
}

// fail records the first diagnostic only; subsequent parser calls keep
// running (to avoid nil derefs) but every caller checks p.err before
// trusting what they built.
func (p *Parser) fail(code, msg string) {
	if p.err != nil {
		return
	}

	tok := p.peek(0)
	p.err = diag.Err(code).At(p.file, tok.Span.Start.Line, tok.Span.Start.Column).Msg(msg).Build()
}

func (p *Parser) node(kind, text string) *ast.Node {
	tok := p.peek(0)

	return ast.New(kind, text, tok.Span.Start.Line, tok.Span.Start.Column)
}

func joinToks(toks []string) string {
	out := ""
	for i, t := range toks {
		if i > 0 {
			out += " "
		}

		out += t
	}

	return out
}

var builtinTypes = map[string]bool{
	"U0": true, "I8": true, "U8": true, "I16": true, "U16": true,
	"I32": true, "U32": true, "I64": true, "U64": true, "F64": true, "Bool": true,
}

var declModifiers = map[string]bool{
	"extern": true, "import": true, "_extern": true, "_import": true,
	"export": true, "_export": true, "public": true, "interrupt": true,
	"noreg": true, "reg": true, "no_warn": true, "static": true,
}

var linkageKeywords = map[string]bool{
	"extern": true, "import": true, "_extern": true, "_import": true,
	"export": true, "_export": true,
}

var laneSelectors = map[string]bool{
	"i8": true, "u8": true, "i16": true, "u16": true, "i32": true, "u32": true, "i64": true, "u64": true,
	"I8": true, "U8": true, "I16": true, "U16": true, "I32": true, "U32": true, "I64": true, "U64": true,
}

func isIdentifierToken(tok lexer.Token) bool {
	return tok.Type == lexer.TokenIdentifier
}

// parseTopLevel dispatches between a function declaration and any
// other statement, since HolyC top level is statements-or-functions.
func (p *Parser) parseTopLevel() *ast.Node {
	if p.looksLikeFunctionDecl() {
		return p.parseFunctionDecl()
	}

	return p.parseStatement()
}

// looksLikeFunctionDecl scans ahead for "<type-ish tokens> name ( ... )"
// followed by '{' or ';', without committing the cursor.
func (p *Parser) looksLikeFunctionDecl() bool {
	if p.isEnd() {
		return false
	}

	i := p.pos
	sawType, sawName := false, false

	for i < len(p.toks) {
		t := p.toks[i]

		switch {
		case t.Type == lexer.TokenKeyword:
			sawType = true
			i++
		case t.Type == lexer.TokenIdentifier:
			if !sawType {
				sawType = true
				i++

				continue
			}

			sawName = true
			i++
		case t.Literal == "*" || t.Literal == "&":
			i++
		default:
			return false
		}

		if sawName {
			break
		}
	}

	if !sawType || !sawName || i >= len(p.toks) || p.toks[i].Literal != "(" {
		return false
	}

	depth := 0

	for i < len(p.toks) {
		switch p.toks[i].Literal {
		case "(":
			depth++
		case ")":
			depth--
		}

		i++

		if depth == 0 {
			break
		}
	}

	if i >= len(p.toks) {
		return false
	}

	return p.toks[i].Literal == "{" || p.toks[i].Literal == ";"
}

func (p *Parser) parseBlock() *ast.Node {
	block := p.node("Block", "")
	p.expect("{")

	for !p.isEnd() && p.peek(0).Literal != "}" && p.err == nil {
		block.Add(p.parseStatement())
	}

	p.expect("}")

	return block
}
