// Package lexer implements the HolyC lexical analyzer described in
// spec §4.2: identifiers/keywords, numbers, strings, chars, punctuation
// and an end-of-stream sentinel, with comment skipping and greedy
// multi-character punctuation matching.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/position"
)

// TokenType enumerates the token categories named in spec §4.2.
type TokenType int

const (
	TokenEnd TokenType = iota
	TokenIdentifier
	TokenKeyword
	TokenNumber
	TokenString
	TokenChar
	TokenPunct
)

func (t TokenType) String() string {
	switch t {
	case TokenEnd:
		return "End"
	case TokenIdentifier:
		return "Identifier"
	case TokenKeyword:
		return "Keyword"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenChar:
		return "Char"
	case TokenPunct:
		return "Punct"
	default:
		return "Unknown"
	}
}

// Token is a single lexical unit together with its source span.
type Token struct {
	Type    TokenType
	Literal string
	Span    position.Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Type, t.Literal, t.Span.Start)
}

// keywords is the fixed keyword set from spec §4.2: primitive type
// names plus HolyC-specific identifiers. Anything else that looks like
// an identifier lexes as TokenIdentifier.
var keywords = map[string]bool{
	"I8": true, "U8": true, "I16": true, "U16": true,
	"I32": true, "U32": true, "I64": true, "U64": true,
	"F64": true, "Bool": true, "U0": true,

	"lock": true, "try": true, "catch": true, "throw": true,
	"lastclass": true, "class": true, "union": true, "typedef": true,
	"asm": true,

	"static": true, "extern": true, "import": true,
	"_extern": true, "_import": true, "export": true, "_export": true,
	"public": true, "interrupt": true, "noreg": true, "reg": true,
	"no_warn": true, "start": true, "end": true,

	"if": true, "else": true, "while": true, "do": true, "for": true,
	"switch": true, "case": true, "default": true, "break": true,
	"continue": true, "goto": true, "return": true,
}

// punctTable lists multi-character punctuation in descending length so
// the lexer's greedy match always prefers the longest operator.
var punctTable = []string{
	"<<=", ">>=", "...",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"++", "--", "->",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "~",
	"&", "|", "^", "(", ")", "{", "}", "[", "]",
	";", ",", ".", ":", "?",
}

// Lexer scans preprocessed HolyC source text into a token stream.
type Lexer struct {
	src      string
	file     string
	pos      int
	line     int
	col      int
	lastDiag *diag.Diagnostic
}

// New creates a Lexer over already-preprocessed source text.
func New(src, file string) *Lexer {
	return &Lexer{src: src, file: file, pos: 0, line: 1, col: 1}
}

// Err returns the last lexical diagnostic, if any.
func (l *Lexer) Err() *diag.Diagnostic { return l.lastDiag }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}

	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}

	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++

	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return c
}

func (l *Lexer) here() position.Position {
	return position.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) fail(code, msg string) Token {
	start := l.here()
	l.lastDiag = diag.Err(code).At(l.file, start.Line, start.Column).Msg(msg).Build()

	return Token{Type: TokenEnd, Literal: "", Span: position.Single(start)}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		c := l.peekByte()

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByteAt(1) == '*':
			start := l.here()
			l.advance()
			l.advance()

			closed := false

			for l.pos < len(l.src) {
				if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
					l.advance()
					l.advance()

					closed = true

					break
				}

				l.advance()
			}

			if !closed {
				l.lastDiag = diag.Err("HC2001").At(l.file, start.Line, start.Column).
					Msg("unterminated block comment").Build()

				return
			}
		default:
			return
		}
	}
}

// Next scans and returns the next token. Once the source is exhausted
// it returns TokenEnd repeatedly.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()

	if l.lastDiag != nil {
		return Token{Type: TokenEnd, Span: position.Single(l.here())}
	}

	if l.pos >= len(l.src) {
		return Token{Type: TokenEnd, Span: position.Single(l.here())}
	}

	start := l.here()
	c := l.peekByte()

	switch {
	case isIdentStart(c):
		return l.lexIdentifier(start)
	case isDigit(c):
		return l.lexNumber(start)
	case c == '"':
		return l.lexString(start)
	case c == '\'':
		return l.lexChar(start)
	default:
		return l.lexPunct(start)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) lexIdentifier(start position.Position) Token {
	begin := l.pos

	for l.pos < len(l.src) {
		c := l.peekByte()
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				break
			}

			for i := 0; i < size; i++ {
				l.advance()
			}

			continue
		}

		if !isIdentCont(c) {
			break
		}

		l.advance()
	}

	text := l.src[begin:l.pos]
	tt := TokenIdentifier

	if keywords[text] {
		tt = TokenKeyword
	}

	return Token{Type: tt, Literal: text, Span: position.Span{Start: start, End: l.here()}}
}

// lexNumber consumes an initial digit run, an optional ".", and then
// identifier-continuation characters for base prefixes (0x, 0b) and
// suffixes (U, L, UL, ...), per spec §4.2, but stops before "..".
func (l *Lexer) lexNumber(start position.Position) Token {
	begin := l.pos

	l.advance() // first digit

	for l.pos < len(l.src) {
		c := l.peekByte()

		if c == '.' {
			if l.peekByteAt(1) == '.' {
				break
			}

			l.advance()

			continue
		}

		if isIdentCont(c) {
			l.advance()

			continue
		}

		break
	}

	text := l.src[begin:l.pos]

	return Token{Type: TokenNumber, Literal: text, Span: position.Span{Start: start, End: l.here()}}
}

func (l *Lexer) lexString(start position.Position) Token {
	l.advance() // opening quote

	var b strings.Builder

	for {
		if l.pos >= len(l.src) {
			l.lastDiag = diag.Err("HC2002").At(l.file, start.Line, start.Column).
				Msg("unterminated string literal").Build()

			return Token{Type: TokenEnd, Span: position.Single(start)}
		}

		c := l.peekByte()

		if c == '"' {
			l.advance()

			break
		}

		if c == '\n' {
			l.lastDiag = diag.Err("HC2002").At(l.file, start.Line, start.Column).
				Msg("unterminated string literal").Build()

			return Token{Type: TokenEnd, Span: position.Single(start)}
		}

		if c == '\\' {
			b.WriteByte(l.advance())

			if l.pos < len(l.src) {
				b.WriteByte(l.advance())
			}

			continue
		}

		b.WriteByte(l.advance())
	}

	return Token{Type: TokenString, Literal: b.String(), Span: position.Span{Start: start, End: l.here()}}
}

func (l *Lexer) lexChar(start position.Position) Token {
	l.advance() // opening quote

	var b strings.Builder

	for {
		if l.pos >= len(l.src) || l.peekByte() == '\n' {
			l.lastDiag = diag.Err("HC2003").At(l.file, start.Line, start.Column).
				Msg("unterminated char literal").Build()

			return Token{Type: TokenEnd, Span: position.Single(start)}
		}

		c := l.peekByte()

		if c == '\'' {
			l.advance()

			break
		}

		if c == '\\' {
			b.WriteByte(l.advance())

			if l.pos < len(l.src) {
				b.WriteByte(l.advance())
			}

			continue
		}

		b.WriteByte(l.advance())
	}

	return Token{Type: TokenChar, Literal: b.String(), Span: position.Span{Start: start, End: l.here()}}
}

func (l *Lexer) lexPunct(start position.Position) Token {
	rest := l.src[l.pos:]

	for _, p := range punctTable {
		if strings.HasPrefix(rest, p) {
			for range p {
				l.advance()
			}

			return Token{Type: TokenPunct, Literal: p, Span: position.Span{Start: start, End: l.here()}}
		}
	}

	return l.fail("HC2004", fmt.Sprintf("unexpected character %q", rest[:1]))
}

// All tokenizes the entire remaining stream, stopping at the first
// lexical error or TokenEnd (TokenEnd is included as the final entry).
func (l *Lexer) All() []Token {
	var toks []Token

	for {
		tok := l.Next()
		toks = append(toks, tok)

		if tok.Type == TokenEnd {
			break
		}
	}

	return toks
}
