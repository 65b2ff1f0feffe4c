package parser

import (
	"fmt"
	"strings"

	"github.com/riky126/ptmlc/internal/ast"
	"github.com/riky126/ptmlc/internal/diagnostics"
	"github.com/riky126/ptmlc/internal/lexer"
)

// state stores parser progress while consuming tokenizer output.
type state struct {
	file   string
	tokens []lexer.Token
	index  int
}

// Parse converts a token stream into an AST rooted at a Fragment.
func Parse(file string, tokens []lexer.Token) (ast.Fragment, error) {
	s := &state{file: file, tokens: tokens}

	root := ast.Fragment{Position: ast.Position{Line: 1, Column: 1}}
	if len(tokens) > 0 {
		root.Position = pos(tokens[0])
	}

	for s.current().Kind != lexer.TokenEOF {
		node, err := s.parseNode()
		if err != nil {
			return ast.Fragment{}, err
		}
		if node == nil {
			tok := s.current()
			return ast.Fragment{}, diagnostics.Syntax("PARSE_UNEXPECTED_TOKEN", file, tok.Line, tok.Col,
				fmt.Sprintf("unexpected %s token at top level", tok.Kind), tok.Text)
		}
		if dropWhitespace(node) {
			continue
		}
		root.Children = append(root.Children, node)
	}
	return root, nil
}

// dropWhitespace reports whether node is an indentation-only text run.
// Whitespace containing a newline between structural siblings carries no
// content; interior whitespace is preserved verbatim.
func dropWhitespace(node ast.Node) bool {
	text, ok := node.(ast.Text)
	if !ok {
		return false
	}
	return strings.TrimSpace(text.Value) == "" && strings.Contains(text.Value, "\n")
}

func pos(tok lexer.Token) ast.Position {
	return ast.Position{Line: tok.Line, Column: tok.Col}
}

func (s *state) current() lexer.Token {
	if s.index < len(s.tokens) {
		return s.tokens[s.index]
	}
	return lexer.Token{Kind: lexer.TokenEOF}
}

func (s *state) advance() lexer.Token {
	tok := s.current()
	if s.index < len(s.tokens) {
		s.index++
	}
	return tok
}

func (s *state) match(kind lexer.TokenKind) bool {
	if s.current().Kind == kind {
		s.index++
		return true
	}
	return false
}

// clauseAhead reports whether one of kinds follows, looking past
// whitespace-only text. On a match the whitespace is consumed, so clause
// keywords separated from a closing brace by spaces still attach; otherwise
// the position is left untouched and the whitespace stays text.
func (s *state) clauseAhead(kinds ...lexer.TokenKind) bool {
	i := s.index
	for i < len(s.tokens) && s.tokens[i].Kind == lexer.TokenText &&
		strings.TrimSpace(s.tokens[i].Text) == "" {
		i++
	}
	if i >= len(s.tokens) {
		return false
	}
	for _, kind := range kinds {
		if s.tokens[i].Kind == kind {
			s.index = i
			return true
		}
	}
	return false
}

func (s *state) expect(kind lexer.TokenKind) (lexer.Token, error) {
	tok := s.current()
	if tok.Kind != kind {
		return lexer.Token{}, diagnostics.Syntax("PARSE_UNEXPECTED_TOKEN", s.file, tok.Line, tok.Col,
			fmt.Sprintf("expected %s, got %s", kind, tok.Kind), tok.Text)
	}
	s.advance()
	return tok, nil
}

// parseNode dispatches on the current token kind. A nil node with nil error
// means the token does not start a node (callers treat it as a stop).
func (s *state) parseNode() (ast.Node, error) {
	tok := s.current()
	switch tok.Kind {
	case lexer.TokenTagOpenStart:
		return s.parseElement()
	case lexer.TokenText:
		s.advance()
		return ast.Text{Position: pos(tok), Value: tok.Text}, nil
	case lexer.TokenExprStart:
		return s.parseExpression()
	case lexer.TokenDirIf:
		return s.parseIf()
	case lexer.TokenDirForeach:
		return s.parseForeach()
	case lexer.TokenDirSwitch:
		return s.parseSwitch()
	default:
		return nil, nil
	}
}

// parseChildren parses sibling nodes until a token that cannot start a node.
func (s *state) parseChildren() ([]ast.Node, error) {
	var children []ast.Node
	for {
		node, err := s.parseNode()
		if err != nil {
			return nil, err
		}
		if node == nil {
			return children, nil
		}
		if dropWhitespace(node) {
			continue
		}
		children = append(children, node)
	}
}

// parseExpression consumes @{ body }.
func (s *state) parseExpression() (ast.Node, error) {
	start, err := s.expect(lexer.TokenExprStart)
	if err != nil {
		return nil, err
	}
	body, err := s.expect(lexer.TokenExprBody)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.TokenExprEnd); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body.Text) == "" {
		return nil, diagnostics.Syntax("PARSE_EMPTY_EXPR", s.file, start.Line, start.Col,
			"empty @{ } expression", "@{}")
	}
	return ast.Expression{Position: pos(start), Code: body.Text}, nil
}

// parseElement consumes an element or fragment, including its children and
// matching close tag. Capitalized tag names are component invocations.
func (s *state) parseElement() (ast.Node, error) {
	open, err := s.expect(lexer.TokenTagOpenStart)
	if err != nil {
		return nil, err
	}

	// <> starts a fragment: no tag name before the closing angle.
	if s.current().Kind == lexer.TokenTagOpenEnd {
		s.advance()
		children, err := s.parseChildren()
		if err != nil {
			return nil, err
		}
		if err := s.expectFragmentClose(open); err != nil {
			return nil, err
		}
		return ast.Fragment{Position: pos(open), Children: children}, nil
	}

	nameTok, err := s.expect(lexer.TokenTagName)
	if err != nil {
		return nil, err
	}
	el := ast.Element{
		Position:    pos(open),
		Tag:         nameTok.Text,
		IsComponent: isComponentTag(nameTok.Text),
	}

	if err := s.parseAttrs(&el); err != nil {
		return nil, err
	}

	if s.match(lexer.TokenTagSelfClose) {
		el.SelfClosed = true
		return el, nil
	}
	if _, err := s.expect(lexer.TokenTagOpenEnd); err != nil {
		return nil, err
	}

	children, err := s.parseChildren()
	if err != nil {
		return nil, err
	}
	el.Children = children

	closeTok, err := s.expect(lexer.TokenTagCloseStart)
	if err != nil {
		return nil, err
	}
	closeName, err := s.expect(lexer.TokenTagName)
	if err != nil {
		return nil, err
	}
	if closeName.Text != el.Tag {
		return nil, diagnostics.Syntax("PARSE_TAG_MISMATCH", s.file, closeTok.Line, closeTok.Col,
			fmt.Sprintf("closing tag </%s> does not match <%s> opened at line %d", closeName.Text, el.Tag, open.Line),
			"</"+closeName.Text+">")
	}
	if _, err := s.expect(lexer.TokenTagOpenEnd); err != nil {
		return nil, err
	}
	return el, nil
}

func (s *state) expectFragmentClose(open lexer.Token) error {
	closeTok, err := s.expect(lexer.TokenTagCloseStart)
	if err != nil {
		return err
	}
	if s.current().Kind == lexer.TokenTagName {
		name := s.current()
		return diagnostics.Syntax("PARSE_TAG_MISMATCH", s.file, closeTok.Line, closeTok.Col,
			fmt.Sprintf("closing tag </%s> does not match fragment <> opened at line %d", name.Text, open.Line),
			"</"+name.Text+">")
	}
	_, err = s.expect(lexer.TokenTagOpenEnd)
	return err
}

// parseAttrs consumes attributes and spreads in declaration order.
func (s *state) parseAttrs(el *ast.Element) error {
	for {
		tok := s.current()
		switch tok.Kind {
		case lexer.TokenAttrName:
			s.advance()
			value, err := s.parseAttrValue(tok)
			if err != nil {
				return err
			}
			el.Attrs = append(el.Attrs, ast.Attr{Name: tok.Text, Value: value})
		case lexer.TokenAttrSpread:
			s.advance()
			expr := strings.TrimSpace(tok.Text)
			expr = strings.TrimPrefix(expr, "**")
			expr = strings.TrimPrefix(expr, "...")
			if strings.TrimSpace(expr) == "" {
				return diagnostics.Syntax("PARSE_EMPTY_SPREAD", s.file, tok.Line, tok.Col,
					"empty spread attribute", tok.Text)
			}
			el.Spreads = append(el.Spreads, strings.TrimSpace(expr))
		default:
			return nil
		}
	}
}

func (s *state) parseAttrValue(name lexer.Token) (ast.AttrValue, error) {
	switch {
	case s.match(lexer.TokenAttrEq):
		tok := s.current()
		switch tok.Kind {
		case lexer.TokenAttrValue:
			s.advance()
			return ast.AttrValue{Static: tok.Text}, nil
		case lexer.TokenExprStart:
			node, err := s.parseExpression()
			if err != nil {
				return ast.AttrValue{}, err
			}
			return ast.AttrValue{Expr: node.(ast.Expression).Code, Dynamic: true}, nil
		default:
			return ast.AttrValue{}, diagnostics.Syntax("PARSE_BAD_ATTR_VALUE", s.file, tok.Line, tok.Col,
				fmt.Sprintf("expected attribute value for %q", name.Text), tok.Text)
		}
	case s.match(lexer.TokenAttrExprEq):
		tok, err := s.expect(lexer.TokenAttrExprValue)
		if err != nil {
			return ast.AttrValue{}, err
		}
		if strings.TrimSpace(tok.Text) == "" {
			return ast.AttrValue{}, diagnostics.Syntax("PARSE_BAD_ATTR_VALUE", s.file, tok.Line, tok.Col,
				fmt.Sprintf("expected expression after %s:=", name.Text), "")
		}
		return ast.AttrValue{Expr: tok.Text, Dynamic: true}, nil
	default:
		// Bare attribute: boolean true.
		return ast.AttrValue{Expr: "True", Dynamic: true}, nil
	}
}

// parseBlock consumes { children } for a directive body. Clause keywords
// without a header expression leave the space before the brace as a text
// token, so the lookahead drops it first.
func (s *state) parseBlock() ([]ast.Node, error) {
	s.clauseAhead(lexer.TokenBlockOpen)
	if _, err := s.expect(lexer.TokenBlockOpen); err != nil {
		return nil, err
	}
	children, err := s.parseChildren()
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.TokenBlockClose); err != nil {
		return nil, err
	}
	return children, nil
}

// parseIf consumes @if cond {...} with optional @elif chain and @else clause.
func (s *state) parseIf() (ast.Node, error) {
	dir, err := s.expect(lexer.TokenDirIf)
	if err != nil {
		return nil, err
	}
	cond, err := s.directiveCondition(dir)
	if err != nil {
		return nil, err
	}
	then, err := s.parseBlock()
	if err != nil {
		return nil, err
	}
	node := ast.If{Position: pos(dir), Cond: cond, Then: then}

	for s.clauseAhead(lexer.TokenDirElif) {
		elifTok := s.advance()
		elifCond, err := s.directiveCondition(elifTok)
		if err != nil {
			return nil, err
		}
		body, err := s.parseBlock()
		if err != nil {
			return nil, err
		}
		node.ElifBranches = append(node.ElifBranches, ast.ElifBranch{
			Position: pos(elifTok),
			Cond:     elifCond,
			Children: body,
		})
	}

	if s.clauseAhead(lexer.TokenDirElse) {
		s.advance()
		elseBody, err := s.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	return node, nil
}

// directiveCondition expects the header expression a directive was scanned with.
func (s *state) directiveCondition(dir lexer.Token) (string, error) {
	tok := s.current()
	if tok.Kind != lexer.TokenExprBody || strings.TrimSpace(tok.Text) == "" {
		return "", diagnostics.Syntax("PARSE_MISSING_CONDITION", s.file, dir.Line, dir.Col,
			fmt.Sprintf("%s requires a condition expression", dir.Text), dir.Text)
	}
	s.advance()
	return tok.Text, nil
}

// parseForeach consumes @foreach item[, index] in seq[, key=e][, fallback=e]
// { ... } with an optional trailing "-> fallback { ... }" clause.
func (s *state) parseForeach() (ast.Node, error) {
	dir, err := s.expect(lexer.TokenDirForeach)
	if err != nil {
		return nil, err
	}
	itemTok, err := s.expect(lexer.TokenExprBody)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.TokenKeywordIn); err != nil {
		return nil, err
	}
	seqTok, err := s.expect(lexer.TokenExprBody)
	if err != nil {
		return nil, err
	}

	node := ast.ForEach{Position: pos(dir), SeqExpr: seqTok.Text}
	item, index, hasIndex := strings.Cut(itemTok.Text, ",")
	node.ItemVar = strings.TrimSpace(item)
	if hasIndex {
		node.IndexVar = strings.TrimSpace(index)
	}
	if node.ItemVar == "" {
		return nil, diagnostics.Syntax("PARSE_BAD_FOREACH", s.file, dir.Line, dir.Col,
			"@foreach requires an item variable", itemTok.Text)
	}
	if strings.TrimSpace(node.SeqExpr) == "" {
		return nil, diagnostics.Syntax("PARSE_BAD_FOREACH", s.file, dir.Line, dir.Col,
			"@foreach requires an iterable expression", "")
	}

	for {
		switch s.current().Kind {
		case lexer.TokenKeywordKey:
			s.advance()
			keyTok, err := s.expect(lexer.TokenExprBody)
			if err != nil {
				return nil, err
			}
			node.KeyExpr = keyTok.Text
			continue
		case lexer.TokenKeywordFall:
			s.advance()
			fallTok, err := s.expect(lexer.TokenExprBody)
			if err != nil {
				return nil, err
			}
			node.FallbackExpr = fallTok.Text
			continue
		}
		break
	}

	children, err := s.parseBlock()
	if err != nil {
		return nil, err
	}
	node.Children = children

	// Trailing "-> fallback { ... }" clause.
	if s.clauseAhead(lexer.TokenArrow) {
		arrow := s.advance()
		if _, err := s.expect(lexer.TokenKeywordFall); err != nil {
			return nil, diagnostics.Syntax("PARSE_BAD_FALLBACK", s.file, arrow.Line, arrow.Col,
				"expected 'fallback { ... }' after '->'", "->")
		}
		fallback, err := s.parseBlock()
		if err != nil {
			return nil, err
		}
		node.FallbackChildren = fallback
	}
	return node, nil
}

// parseSwitch consumes @switch subject? { @match expr {...}* @fallback {...}? }.
func (s *state) parseSwitch() (ast.Node, error) {
	dir, err := s.expect(lexer.TokenDirSwitch)
	if err != nil {
		return nil, err
	}
	node := ast.Switch{Position: pos(dir)}
	if s.current().Kind == lexer.TokenExprBody {
		node.SubjectExpr = s.advance().Text
	}

	if _, err := s.expect(lexer.TokenBlockOpen); err != nil {
		return nil, err
	}
	for {
		switch s.current().Kind {
		case lexer.TokenDirMatch:
			matchTok := s.advance()
			when, err := s.directiveCondition(matchTok)
			if err != nil {
				return nil, err
			}
			body, err := s.parseBlock()
			if err != nil {
				return nil, err
			}
			node.Cases = append(node.Cases, ast.MatchCase{
				Position: pos(matchTok),
				WhenExpr: when,
				Children: body,
			})
		case lexer.TokenDirFallback:
			fallTok := s.advance()
			if node.Fallback != nil {
				return nil, diagnostics.Syntax("PARSE_DUPLICATE_FALLBACK", s.file, fallTok.Line, fallTok.Col,
					"@switch allows a single @fallback arm", fallTok.Text)
			}
			body, err := s.parseBlock()
			if err != nil {
				return nil, err
			}
			node.Fallback = body
		case lexer.TokenText:
			// Whitespace between arms is insignificant.
			if strings.TrimSpace(s.current().Text) == "" {
				s.advance()
				continue
			}
			tok := s.current()
			return nil, diagnostics.Syntax("PARSE_BAD_SWITCH_BODY", s.file, tok.Line, tok.Col,
				"@switch body may contain only @match and @fallback arms", tok.Text)
		case lexer.TokenBlockClose:
			s.advance()
			if len(node.Cases) == 0 {
				return nil, diagnostics.Syntax("PARSE_EMPTY_SWITCH", s.file, dir.Line, dir.Col,
					"@switch requires at least one @match arm", dir.Text)
			}
			return node, nil
		default:
			tok := s.current()
			return nil, diagnostics.Syntax("PARSE_BAD_SWITCH_BODY", s.file, tok.Line, tok.Col,
				fmt.Sprintf("unexpected %s in @switch body", tok.Kind), tok.Text)
		}
	}
}

// isComponentTag reports whether a tag name is a component invocation.
func isComponentTag(tag string) bool {
	if tag == "" {
		return false
	}
	first := tag[0]
	return first >= 'A' && first <= 'Z'
}
