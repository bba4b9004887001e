package parser

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/lexer"
)

// parseFunctionDecl consumes a return-type/name signature up to the
// parameter list, then either a ';' (declaration only) or a body.
func (p *Parser) parseFunctionDecl() *ast.Node {
	fn := p.node("FunctionDecl", "")

	var sig []string
	for !p.isEnd() && p.peek(0).Literal != "(" {
		sig = append(sig, p.advance().Literal)
	}

	if len(sig) == 0 {
		p.fail("HC2102", "expected function signature")

		return fn
	}

	fn.Text = joinToks(sig)
	p.expect("(")
	fn.Add(p.parseParamList())
	p.expect(")")

	if p.match(";") {
		attachDeclParts(fn, sig)

		return fn
	}

	fn.Add(p.parseBlock())
	attachDeclParts(fn, sig)

	return fn
}

// parseParamList parses comma-separated parameters, each possibly
// carrying a "= expr" default (HolyC's lastclass sentinel per spec
// §4.3 is resolved later, in sema, from the Default child's text).
func (p *Parser) parseParamList() *ast.Node {
	params := p.node("ParamList", "")

	if p.peek(0).Literal == ")" {
		return params
	}

	for !p.isEnd() {
		if p.peek(0).Literal == ")" {
			break
		}

		var left []string
		var right []lexer.Token

		hasDefault := false
		nested := 0

		for !p.isEnd() {
			lit := p.peek(0).Literal

			switch {
			case lit == "(" || lit == "[" || lit == "{":
				nested++
				left = append(left, p.advance().Literal)
			case lit == ")" || lit == "]" || lit == "}":
				if nested == 0 && lit == ")" {
					goto doneLeft
				}

				if nested > 0 {
					nested--
				}

				left = append(left, p.advance().Literal)
			case nested == 0 && lit == ",":
				goto doneLeft
			case nested == 0 && lit == "=":
				hasDefault = true
				p.advance()

				goto doneLeft
			default:
				left = append(left, p.advance().Literal)
			}
		}

	doneLeft:
		nested = 0

		for hasDefault && !p.isEnd() {
			lit := p.peek(0).Literal

			switch {
			case lit == "(" || lit == "[" || lit == "{":
				nested++
				right = append(right, p.advance())
			case lit == ")" || lit == "]" || lit == "}":
				if nested == 0 && lit == ")" {
					goto doneRight
				}

				if nested > 0 {
					nested--
				}

				right = append(right, p.advance())
			case nested == 0 && lit == ",":
				goto doneRight
			default:
				right = append(right, p.advance())
			}
		}

	doneRight:
		param := p.node("Param", joinToks(left))
		attachDeclParts(param, left)

		if hasDefault {
			if len(right) == 0 {
				p.fail("HC2103", "expected default argument expression")

				return params
			}

			defExpr := p.parseExpressionFromTokens(right)
			defNode := p.node("Default", joinTokenLiterals(right))
			defNode.Add(defExpr)
			param.Add(defNode)
		}

		params.Add(param)

		if !p.match(",") {
			break
		}
	}

	return params
}

// parseClassDecl handles both the class/union body and, when present,
// the trailing declarator list (spec §4.3's "class body optionally
// acts as a type specifier for following declarators").
func (p *Parser) parseClassDecl() *ast.Node {
	n := p.node("ClassDecl", p.advance().Literal)

	if isIdentifierToken(p.peek(0)) {
		n.Text += " " + p.advance().Literal
	}

	if p.match("{") {
		for !p.isEnd() && p.peek(0).Literal != "}" && p.err == nil {
			switch {
			case p.peek(0).Type == lexer.TokenKeyword && (p.peek(0).Literal == "class" || p.peek(0).Literal == "union"):
				n.Add(p.parseClassDecl())

				continue
			case p.match("typedef"):
				n.Add(p.parseTypeAliasDecl())

				continue
			case p.match(";"):
				continue
			}

			var fieldToks []string
			nested := 0

			for !p.isEnd() {
				lit := p.peek(0).Literal

				if lit == "{" || lit == "(" || lit == "[" {
					nested++
				} else if lit == "}" || lit == ")" || lit == "]" {
					if nested == 0 && lit == "}" {
						break
					}

					if nested > 0 {
						nested--
					}
				}

				if nested == 0 && lit == ";" {
					break
				}

				fieldToks = append(fieldToks, p.advance().Literal)
			}

			if len(fieldToks) > 0 {
				n.Add(p.buildFieldDeclNode(fieldToks))
			}

			p.match(";")
		}

		p.expect("}")
	}

	if p.match(";") {
		return n
	}

	aggregateName := extractAggregateName(n.Text)
	if aggregateName == "" {
		p.anonAggregate++
		aggregateName = "__holyc_anon_aggregate_" + strconv.Itoa(p.anonAggregate)
		n.Text += " " + aggregateName
	}

	for !p.isEnd() && p.err == nil {
		var declToks []string

		for !p.isEnd() && p.peek(0).Literal != ";" && p.peek(0).Literal != "," && p.peek(0).Literal != "=" {
			declToks = append(declToks, p.advance().Literal)
		}

		if len(declToks) == 0 {
			p.fail("HC2104", "expected trailing declarator")

			return n
		}

		full := append([]string{aggregateName}, declToks...)
		trailing := p.node("VarDecl", joinToks(full))
		attachDeclParts(trailing, full)

		if p.match("=") {
			trailing.Add(p.parseAssign())
		}

		n.Add(trailing)

		if p.match(",") {
			continue
		}

		p.expect(";")

		break
	}

	return n
}

func (p *Parser) parseTypeAliasDecl() *ast.Node {
	decl := p.node("TypeAliasDecl", "")

	var parts []string
	for !p.isEnd() && p.peek(0).Literal != ";" {
		parts = append(parts, p.advance().Literal)
	}

	if len(parts) < 2 {
		p.fail("HC2105", "expected typedef declaration")

		return decl
	}

	decl.Text = joinToks(parts)
	p.expect(";")

	return decl
}

func (p *Parser) parseLinkageDecl() *ast.Node {
	decl := p.node("LinkageDecl", p.advance().Literal)

	var payload []string
	for !p.isEnd() && p.peek(0).Literal != ";" {
		payload = append(payload, p.advance().Literal)
	}

	if len(payload) == 0 {
		p.fail("HC2106", "expected linkage declaration payload")

		return decl
	}

	decl.Add(p.node("DeclSpec", joinToks(payload)))
	p.expect(";")

	return decl
}

func (p *Parser) hasTopLevelCommaInDecl() bool {
	depth := 0

	for i := p.pos; i < len(p.toks); i++ {
		lit := p.toks[i].Literal

		switch lit {
		case "{", "(", "[":
			depth++
		case "}", ")", "]":
			if depth > 0 {
				depth--
			}
		}

		if depth == 0 && lit == ";" {
			return false
		}

		if depth == 0 && lit == "," {
			return true
		}
	}

	return false
}

func (p *Parser) parseVarDecl() *ast.Node {
	if p.hasTopLevelCommaInDecl() {
		return p.parseVarDeclList()
	}

	decl := p.node("VarDecl", "")

	var left []string
	for !p.isEnd() && p.peek(0).Literal != ";" && p.peek(0).Literal != "=" {
		left = append(left, p.advance().Literal)
	}

	if len(left) < 2 {
		p.fail("HC2107", "expected variable declaration")

		return decl
	}

	decl.Text = joinToks(left)
	attachDeclParts(decl, left)

	if p.match("=") {
		decl.Add(p.parseExpression())
	}

	p.expect(";")

	return decl
}

func (p *Parser) parseVarDeclList() *ast.Node {
	list := p.node("VarDeclList", "")

	var base []string

	for !p.isEnd() && p.err == nil {
		var declToks []string
		for !p.isEnd() && p.peek(0).Literal != ";" && p.peek(0).Literal != "," && p.peek(0).Literal != "=" {
			declToks = append(declToks, p.advance().Literal)
		}

		if len(declToks) == 0 {
			p.fail("HC2108", "expected variable declarator")

			return list
		}

		var full []string

		if len(base) == 0 {
			if len(declToks) < 2 {
				p.fail("HC2107", "expected variable declaration")

				return list
			}

			base = extractBaseDeclTokensForList(declToks)
			full = declToks
		} else {
			full = append(append([]string{}, base...), declToks...)
		}

		decl := p.node("VarDecl", joinToks(full))
		attachDeclParts(decl, full)

		if p.match("=") {
			decl.Add(p.parseAssign())
		}

		list.Add(decl)

		if p.match(",") {
			continue
		}

		p.expect(";")

		break
	}

	return list
}

// attachDeclParts locates the declarator's name among decl's type
// tokens and splits off DeclType/DeclName children, handling the
// "(*name)(...)" function-pointer shape specially since the name sits
// inside parens there rather than at the end (spec §4.3).
func attachDeclParts(decl *ast.Node, declToks []string) {
	if decl == nil || len(declToks) == 0 {
		return
	}

	nameIndex := -1

	for i := 0; i+3 < len(declToks); i++ {
		if declToks[i] == "(" && (declToks[i+1] == "*" || declToks[i+1] == "&") &&
			isIdentifierText(declToks[i+2]) && declToks[i+3] == ")" {
			nameIndex = i + 2

			break
		}
	}

	if nameIndex < 0 {
		for i := len(declToks) - 1; i >= 0; i-- {
			if !isIdentifierText(declToks[i]) {
				continue
			}

			if i > 0 && declToks[i-1] == "::" {
				continue
			}

			nameIndex = i

			break
		}
	}

	if nameIndex < 0 {
		return
	}

	typeToks := declToks[:nameIndex]
	decl.Add(ast.New("DeclType", joinToks(typeToks), decl.Line, decl.Column))
	decl.Add(ast.New("DeclName", declToks[nameIndex], decl.Line, decl.Column))
}

func extractBaseDeclTokensForList(firstDeclToks []string) []string {
	if len(firstDeclToks) == 0 {
		return nil
	}

	nameIndex := -1

	for i := len(firstDeclToks) - 1; i >= 0; i-- {
		if isIdentifierText(firstDeclToks[i]) {
			nameIndex = i

			break
		}
	}

	if nameIndex < 0 {
		if len(firstDeclToks) == 1 {
			return firstDeclToks
		}

		return firstDeclToks[:len(firstDeclToks)-1]
	}

	baseEnd := nameIndex
	for baseEnd > 0 && (firstDeclToks[baseEnd-1] == "*" || firstDeclToks[baseEnd-1] == "&") {
		baseEnd--
	}

	if baseEnd == 0 {
		baseEnd = 1
	}

	return firstDeclToks[:baseEnd]
}

func extractAggregateName(classText string) string {
	fields := strings.Fields(classText)
	if len(fields) < 2 {
		return ""
	}

	if fields[0] == "class" || fields[0] == "union" {
		return fields[1]
	}

	return ""
}

// buildFieldDeclNode splits a class/union field's raw token run into
// its declarator and any trailing metadata tokens (bit-field widths,
// alignment annotations) per spec §4.3's field grammar.
func (p *Parser) buildFieldDeclNode(fieldToks []string) *ast.Node {
	if len(fieldToks) == 0 {
		return p.node("FieldDecl", "")
	}

	split := len(fieldToks)
	nameIndex := -1

	if len(fieldToks) > 1 && isIdentifierText(fieldToks[1]) {
		nameIndex = 1
	} else {
		for i, t := range fieldToks {
			if !isIdentifierText(t) {
				continue
			}

			if i > 0 && (fieldToks[i-1] == "*" || fieldToks[i-1] == "&" || fieldToks[i-1] == "(") {
				nameIndex = i

				break
			}
		}
	}

	if nameIndex < 0 {
		for i, t := range fieldToks {
			if isIdentifierText(t) {
				nameIndex = i

				break
			}
		}
	}

	if nameIndex >= 0 {
		split = nameIndex + 1

		for split < len(fieldToks) {
			switch fieldToks[split] {
			case "[":
				depth := 0

				for split < len(fieldToks) {
					if fieldToks[split] == "[" {
						depth++
					} else if fieldToks[split] == "]" {
						depth--

						if depth == 0 {
							split++

							break
						}
					}

					split++
				}

				continue
			case "(":
				depth := 0

				for split < len(fieldToks) {
					if fieldToks[split] == "(" {
						depth++
					} else if fieldToks[split] == ")" {
						depth--

						if depth == 0 {
							split++

							break
						}
					}

					split++
				}

				continue
			}

			break
		}
	}

	field := p.node("FieldDecl", joinToks(fieldToks))

	if split == len(fieldToks) {
		attachDeclParts(field, fieldToks)

		return field
	}

	declToks := fieldToks[:split]
	metaToks := fieldToks[split:]
	field.Text = joinToks(declToks)
	attachDeclParts(field, declToks)
	field.Add(p.node("FieldMetaTokens", joinToks(metaToks)))

	return field
}

func isIdentifierText(tok string) bool {
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

func joinTokenLiterals(toks []lexer.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Literal
	}

	return joinToks(parts)
}
