package lexer

import (
	"fmt"
	"strings"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

// TokenKind describes the syntactic category emitted by the tokenizer.
type TokenKind string

const (
	TokenTagOpenStart  TokenKind = "tag_open_start"  // <
	TokenTagOpenEnd    TokenKind = "tag_open_end"    // >
	TokenTagCloseStart TokenKind = "tag_close_start" // </
	TokenTagSelfClose  TokenKind = "tag_self_close"  // />
	TokenTagName       TokenKind = "tag_name"
	TokenAttrName      TokenKind = "attr_name"
	TokenAttrEq        TokenKind = "attr_eq"      // =
	TokenAttrExprEq    TokenKind = "attr_expr_eq" // :=
	TokenAttrValue     TokenKind = "attr_value"
	TokenAttrExprValue TokenKind = "attr_expr_value"
	TokenAttrSpread    TokenKind = "attr_spread" // @{**expr} inside a tag
	TokenText          TokenKind = "text"
	TokenExprStart     TokenKind = "expr_start" // @{
	TokenExprBody      TokenKind = "expr_body"
	TokenExprEnd       TokenKind = "expr_end" // }
	TokenDirIf         TokenKind = "directive_if"
	TokenDirElif       TokenKind = "directive_elif"
	TokenDirElse       TokenKind = "directive_else"
	TokenDirForeach    TokenKind = "directive_foreach"
	TokenDirSwitch     TokenKind = "directive_switch"
	TokenDirMatch      TokenKind = "directive_match"
	TokenDirFallback   TokenKind = "directive_fallback"
	TokenKeywordIn     TokenKind = "keyword_in"
	TokenKeywordKey    TokenKind = "keyword_key"
	TokenKeywordFall   TokenKind = "keyword_fallback"
	TokenArrow         TokenKind = "arrow" // ->
	TokenBlockOpen     TokenKind = "block_open"
	TokenBlockClose    TokenKind = "block_close"
	TokenEOF           TokenKind = "eof"
)

// Token represents one lexical unit with source coordinates.
type Token struct {
	Kind TokenKind
	Text string
	Line int
	Col  int
}

// scanner performs streaming lexical analysis over one template block.
type scanner struct {
	src    string
	file   string
	index  int
	line   int
	column int
	tokens []Token
}

// Tokenize scans template text into a token stream.
// baseLine is the 1-based source line the text starts on, so emitted
// positions point into the enclosing file.
func Tokenize(file string, src string, baseLine int) ([]Token, error) {
	if baseLine < 1 {
		baseLine = 1
	}
	s := &scanner{
		src:    src,
		file:   file,
		line:   baseLine,
		column: 1,
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.tokens, nil
}

func (s *scanner) run() error {
	for !s.eof() {
		ch := s.src[s.index]
		switch {
		case ch == '<':
			if s.hasPrefix("<!--") {
				if err := s.skipHTMLComment(); err != nil {
					return err
				}
			} else if s.hasPrefix("</>") {
				s.emit(TokenTagCloseStart, "</")
				s.advance(2)
				s.emit(TokenTagOpenEnd, ">")
				s.advance(1)
			} else if s.hasPrefix("</") {
				if err := s.scanCloseTag(); err != nil {
					return err
				}
			} else if s.hasPrefix("<>") {
				s.emit(TokenTagOpenStart, "<")
				s.advance(1)
				s.emit(TokenTagOpenEnd, ">")
				s.advance(1)
			} else {
				if err := s.scanOpenTag(); err != nil {
					return err
				}
			}
		case ch == '{':
			s.emit(TokenBlockOpen, "{")
			s.advance(1)
		case ch == '}':
			s.emit(TokenBlockClose, "}")
			s.advance(1)
		case ch == '@':
			if s.hasPrefix("@{") {
				if err := s.scanExpression(); err != nil {
					return err
				}
			} else if err := s.scanDirective(); err != nil {
				return err
			}
		case s.hasPrefix("/*"):
			s.skipBlockComment()
		case ch == '#':
			s.skipLineComment()
		case s.hasPrefix("->"):
			s.scanArrowClause()
		default:
			s.scanText()
		}
	}
	s.emit(TokenEOF, "")
	return nil
}

// scanText consumes literal text until the next structural construct.
func (s *scanner) scanText() {
	startLine, startCol := s.line, s.column
	start := s.index
	for !s.eof() {
		ch := s.src[s.index]
		if ch == '<' || ch == '@' || ch == '{' || ch == '}' || ch == '#' {
			break
		}
		if s.hasPrefix("->") {
			break
		}
		s.advance(1)
	}
	if text := s.src[start:s.index]; text != "" {
		s.tokens = append(s.tokens, Token{Kind: TokenText, Text: text, Line: startLine, Col: startCol})
	}
}

// scanOpenTag consumes "<name attr.. >" or "<name attr.. />".
func (s *scanner) scanOpenTag() error {
	startLine, startCol := s.line, s.column
	s.emit(TokenTagOpenStart, "<")
	s.advance(1)
	s.scanIdentifier(TokenTagName)

	for {
		s.skipWhitespace()
		if s.eof() {
			return diagnostics.Syntax("LEX_UNCLOSED_TAG", s.file, startLine, startCol,
				"unterminated tag", s.excerpt(startLine))
		}
		ch := s.src[s.index]
		switch {
		case ch == '>':
			s.emit(TokenTagOpenEnd, ">")
			s.advance(1)
			return nil
		case s.hasPrefix("/>"):
			s.emit(TokenTagSelfClose, "/>")
			s.advance(2)
			return nil
		case s.hasPrefix("@{"):
			if err := s.scanSpreadAttr(); err != nil {
				return err
			}
		case isIdentChar(ch):
			if err := s.scanAttr(); err != nil {
				return err
			}
		default:
			return diagnostics.Syntax("LEX_BAD_TAG_CHAR", s.file, s.line, s.column,
				fmt.Sprintf("unexpected character %q in tag", ch), s.excerpt(s.line))
		}
	}
}

// scanAttr consumes one attribute: name, name="v", name=@{e} or name:=e.
func (s *scanner) scanAttr() error {
	s.scanIdentifier(TokenAttrName)
	s.skipWhitespace()
	switch {
	case s.hasPrefix(":="):
		s.emit(TokenAttrExprEq, ":=")
		s.advance(2)
		s.skipWhitespace()
		s.scanUnquotedAttrExpr()
	case !s.eof() && s.src[s.index] == '=':
		s.emit(TokenAttrEq, "=")
		s.advance(1)
		s.skipWhitespace()
		return s.scanAttrValue()
	}
	// Bare attribute name: boolean attribute, nothing more to emit.
	return nil
}

// scanAttrValue consumes a quoted literal or an @{expr} dynamic value.
func (s *scanner) scanAttrValue() error {
	if s.eof() {
		return diagnostics.Syntax("LEX_MISSING_ATTR_VALUE", s.file, s.line, s.column,
			"attribute value expected", s.excerpt(s.line))
	}
	ch := s.src[s.index]
	if ch == '"' || ch == '\'' {
		startLine, startCol := s.line, s.column
		quote := ch
		s.advance(1)
		start := s.index
		for !s.eof() && s.src[s.index] != quote {
			s.advance(1)
		}
		if s.eof() {
			return diagnostics.Syntax("LEX_UNCLOSED_ATTR_VALUE", s.file, startLine, startCol,
				"unterminated quoted attribute value", s.excerpt(startLine))
		}
		value := s.src[start:s.index]
		s.tokens = append(s.tokens, Token{Kind: TokenAttrValue, Text: value, Line: startLine, Col: startCol})
		s.advance(1)
		return nil
	}
	if s.hasPrefix("@{") {
		return s.scanExpression()
	}
	return diagnostics.Syntax("LEX_MISSING_ATTR_VALUE", s.file, s.line, s.column,
		fmt.Sprintf("attribute value expected, found %q", ch), s.excerpt(s.line))
}

// scanUnquotedAttrExpr consumes the value after := up to whitespace or tag end.
func (s *scanner) scanUnquotedAttrExpr() {
	startLine, startCol := s.line, s.column
	start := s.index
	quote := byte(0)
	for !s.eof() {
		ch := s.src[s.index]
		if quote != 0 {
			if ch == quote && s.src[s.index-1] != '\\' {
				quote = 0
			}
			s.advance(1)
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			s.advance(1)
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '>' || s.hasPrefix("/>") {
			break
		}
		s.advance(1)
	}
	s.tokens = append(s.tokens, Token{Kind: TokenAttrExprValue, Text: s.src[start:s.index], Line: startLine, Col: startCol})
}

// scanSpreadAttr consumes @{...} inside a tag and emits an attr_spread token.
func (s *scanner) scanSpreadAttr() error {
	startLine, startCol := s.line, s.column
	body, err := s.scanBracedExpr()
	if err != nil {
		return err
	}
	s.tokens = append(s.tokens, Token{Kind: TokenAttrSpread, Text: body, Line: startLine, Col: startCol})
	return nil
}

// scanCloseTag consumes "</name>".
func (s *scanner) scanCloseTag() error {
	startLine, startCol := s.line, s.column
	s.emit(TokenTagCloseStart, "</")
	s.advance(2)
	s.skipWhitespace()
	s.scanIdentifier(TokenTagName)
	s.skipWhitespace()
	if s.eof() || s.src[s.index] != '>' {
		return diagnostics.Syntax("LEX_UNCLOSED_TAG", s.file, startLine, startCol,
			"unterminated closing tag", s.excerpt(startLine))
	}
	s.emit(TokenTagOpenEnd, ">")
	s.advance(1)
	return nil
}

// scanExpression consumes @{...} with nested brace and string awareness.
func (s *scanner) scanExpression() error {
	startLine, startCol := s.line, s.column
	s.emit(TokenExprStart, "@{")
	body, err := s.scanBracedExpr()
	if err != nil {
		return err
	}
	s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: body, Line: startLine, Col: startCol})
	s.emit(TokenExprEnd, "}")
	return nil
}

// scanBracedExpr consumes "@{ ... }" and returns the trimmed body. Nested
// literal braces (dict and set literals) do not terminate the expression.
func (s *scanner) scanBracedExpr() (string, error) {
	startLine, startCol := s.line, s.column
	s.advance(2) // @{
	start := s.index
	depth := 1
	quote := byte(0)
	for !s.eof() {
		ch := s.src[s.index]
		if quote != 0 {
			if ch == quote && s.src[s.index-1] != '\\' {
				quote = 0
			}
			s.advance(1)
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := strings.TrimSpace(s.src[start:s.index])
				s.advance(1)
				return body, nil
			}
		}
		s.advance(1)
	}
	return "", diagnostics.Syntax("LEX_UNCLOSED_EXPR", s.file, startLine, startCol,
		"unterminated @{ expression", s.excerpt(startLine))
}

var directiveKinds = map[string]TokenKind{
	"if":       TokenDirIf,
	"elif":     TokenDirElif,
	"else":     TokenDirElse,
	"foreach":  TokenDirForeach,
	"switch":   TokenDirSwitch,
	"match":    TokenDirMatch,
	"fallback": TokenDirFallback,
}

// scanDirective consumes "@word" plus the directive header when one applies.
func (s *scanner) scanDirective() error {
	startLine, startCol := s.line, s.column
	start := s.index
	s.advance(1) // @
	for !s.eof() && isAlpha(s.src[s.index]) {
		s.advance(1)
	}
	word := s.src[start+1 : s.index]

	kind, ok := directiveKinds[word]
	if !ok {
		// Not a recognized directive: treat the run as literal text.
		s.tokens = append(s.tokens, Token{Kind: TokenText, Text: s.src[start:s.index], Line: startLine, Col: startCol})
		return nil
	}
	s.tokens = append(s.tokens, Token{Kind: kind, Text: "@" + word, Line: startLine, Col: startCol})

	switch kind {
	case TokenDirIf, TokenDirElif, TokenDirSwitch, TokenDirMatch:
		s.scanDirectiveHeader()
	case TokenDirForeach:
		return s.scanForeachHeader(startLine, startCol)
	}
	return nil
}

// scanDirectiveHeader consumes the expression between a directive and its {.
func (s *scanner) scanDirectiveHeader() {
	s.skipWhitespace()
	startLine, startCol := s.line, s.column
	start := s.index
	quote := byte(0)
	for !s.eof() {
		ch := s.src[s.index]
		if quote != 0 {
			if ch == quote && s.src[s.index-1] != '\\' {
				quote = 0
			}
			s.advance(1)
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			s.advance(1)
			continue
		}
		if ch == '{' {
			break
		}
		s.advance(1)
	}
	cond := strings.TrimSpace(s.src[start:s.index])
	if cond != "" {
		s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: cond, Line: startLine, Col: startCol})
	}
}

// scanForeachHeader consumes "item[, index] in seq[, key=e][, fallback=e]".
func (s *scanner) scanForeachHeader(dirLine, dirCol int) error {
	s.skipWhitespace()
	startLine, startCol := s.line, s.column
	start := s.index
	for !s.eof() && s.src[s.index] != '{' {
		s.advance(1)
	}
	header := strings.TrimSpace(s.src[start:s.index])

	item, rest, found := strings.Cut(header, " in ")
	if !found {
		return diagnostics.Syntax("LEX_BAD_FOREACH", s.file, dirLine, dirCol,
			"@foreach requires 'item in iterable'", header)
	}
	s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: strings.TrimSpace(item), Line: startLine, Col: startCol})
	s.tokens = append(s.tokens, Token{Kind: TokenKeywordIn, Text: "in", Line: startLine, Col: startCol})

	parts := splitForeachTail(rest)
	if len(parts) == 0 || parts[0] == "" {
		return diagnostics.Syntax("LEX_BAD_FOREACH", s.file, dirLine, dirCol,
			"@foreach requires an iterable expression", header)
	}
	s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: parts[0], Line: startLine, Col: startCol})
	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, "key="):
			s.tokens = append(s.tokens, Token{Kind: TokenKeywordKey, Text: "key", Line: startLine, Col: startCol})
			s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: strings.TrimSpace(part[len("key="):]), Line: startLine, Col: startCol})
		case strings.HasPrefix(part, "fallback="):
			s.tokens = append(s.tokens, Token{Kind: TokenKeywordFall, Text: "fallback", Line: startLine, Col: startCol})
			s.tokens = append(s.tokens, Token{Kind: TokenExprBody, Text: strings.TrimSpace(part[len("fallback="):]), Line: startLine, Col: startCol})
		}
	}
	return nil
}

// splitForeachTail splits the iterable expression from trailing key= and
// fallback= clauses, respecting nesting and string literals. Commas that do
// not introduce one of those clauses belong to the iterable expression.
func splitForeachTail(rest string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	quote := byte(0)

	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if quote != 0 {
			current.WriteByte(ch)
			if ch == quote && rest[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			current.WriteByte(ch)
		case ch == '(' || ch == '[' || ch == '{':
			depth++
			current.WriteByte(ch)
		case ch == ')' || ch == ']' || ch == '}':
			depth--
			current.WriteByte(ch)
		case ch == ',' && depth == 0:
			ahead := strings.TrimSpace(rest[i+1:])
			if strings.HasPrefix(ahead, "key=") || strings.HasPrefix(ahead, "fallback=") {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteByte(ch)
			}
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// scanArrowClause consumes "->" and, when followed by a fallback keyword,
// normalizes it so the parser sees arrow + keyword_fallback.
func (s *scanner) scanArrowClause() {
	s.emit(TokenArrow, "->")
	s.advance(2)
	save := *s
	s.skipWhitespace()
	word := s.peekWord()
	if word == "fallback" || word == "@fallback" {
		line, col := s.line, s.column
		s.advance(len(word))
		s.tokens = append(s.tokens, Token{Kind: TokenKeywordFall, Text: "fallback", Line: line, Col: col})
		return
	}
	*s = save
}

func (s *scanner) peekWord() string {
	i := s.index
	if i < len(s.src) && s.src[i] == '@' {
		i++
	}
	start := i
	for i < len(s.src) && isAlpha(s.src[i]) {
		i++
	}
	if s.index < len(s.src) && s.src[s.index] == '@' {
		return "@" + s.src[start:i]
	}
	return s.src[start:i]
}

func (s *scanner) skipBlockComment() {
	s.advance(2)
	for !s.eof() {
		if s.hasPrefix("*/") {
			s.advance(2)
			return
		}
		s.advance(1)
	}
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.src[s.index] != '\n' {
		s.advance(1)
	}
}

func (s *scanner) skipHTMLComment() error {
	startLine, startCol := s.line, s.column
	s.advance(4)
	for !s.eof() {
		if s.hasPrefix("-->") {
			s.advance(3)
			return nil
		}
		s.advance(1)
	}
	return diagnostics.Syntax("LEX_UNCLOSED_COMMENT", s.file, startLine, startCol,
		"unterminated HTML comment", s.excerpt(startLine))
}

// scanIdentifier consumes a tag or attribute identifier. ':' is part of an
// identifier unless it starts the := operator.
func (s *scanner) scanIdentifier(kind TokenKind) {
	startLine, startCol := s.line, s.column
	start := s.index
	for !s.eof() {
		ch := s.src[s.index]
		if !isIdentChar(ch) {
			break
		}
		if ch == ':' && s.index+1 < len(s.src) && s.src[s.index+1] == '=' {
			break
		}
		s.advance(1)
	}
	s.tokens = append(s.tokens, Token{Kind: kind, Text: s.src[start:s.index], Line: startLine, Col: startCol})
}

func (s *scanner) skipWhitespace() {
	for !s.eof() {
		ch := s.src[s.index]
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			return
		}
		s.advance(1)
	}
}

func (s *scanner) emit(kind TokenKind, text string) {
	s.tokens = append(s.tokens, Token{Kind: kind, Text: text, Line: s.line, Col: s.column})
}

func (s *scanner) hasPrefix(prefix string) bool {
	return strings.HasPrefix(s.src[s.index:], prefix)
}

func (s *scanner) eof() bool {
	return s.index >= len(s.src)
}

// advance moves n bytes forward updating line/column counters.
func (s *scanner) advance(n int) {
	for i := 0; i < n && s.index < len(s.src); i++ {
		if s.src[s.index] == '\n' {
			s.line++
			s.column = 1
		} else {
			s.column++
		}
		s.index++
	}
}

// excerpt returns the source line for diagnostics, truncated for display.
func (s *scanner) excerpt(line int) string {
	lines := strings.Split(s.src, "\n")
	// s.line counts from baseLine; map back into the block text.
	idx := line - (s.tokensBaseLine())
	if idx < 0 || idx >= len(lines) {
		return ""
	}
	excerpt := strings.TrimSpace(lines[idx])
	if len(excerpt) > 60 {
		excerpt = excerpt[:60] + "..."
	}
	return excerpt
}

func (s *scanner) tokensBaseLine() int {
	base := s.line
	for i := 0; i < s.index; i++ {
		if s.src[i] == '\n' {
			base--
		}
	}
	return base
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') || ch == '-' || ch == '_' || ch == ':' || ch == '.'
}
