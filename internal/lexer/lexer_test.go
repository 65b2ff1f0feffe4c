package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeElementWithInterpolation(t *testing.T) {
	tokens, err := Tokenize("card.ptml", `<div class="card">@{title}</div>`, 1)
	require.NoError(t, err)
	require.Equal(t, []TokenKind{
		TokenTagOpenStart, TokenTagName, TokenAttrName, TokenAttrEq, TokenAttrValue, TokenTagOpenEnd,
		TokenExprStart, TokenExprBody, TokenExprEnd,
		TokenTagCloseStart, TokenTagName, TokenTagOpenEnd,
		TokenEOF,
	}, kinds(tokens))
	require.Equal(t, "card", tokens[4].Text)
	require.Equal(t, "title", tokens[7].Text)
}

func TestTokenizeAttributeForms(t *testing.T) {
	tokens, err := Tokenize("a.ptml", `<input value=@{name} disabled bound:=state.text @{**extra} />`, 1)
	require.NoError(t, err)

	want := []TokenKind{
		TokenTagOpenStart, TokenTagName,
		TokenAttrName, TokenAttrEq, TokenExprStart, TokenExprBody, TokenExprEnd,
		TokenAttrName,
		TokenAttrName, TokenAttrExprEq, TokenAttrExprValue,
		TokenAttrSpread,
		TokenTagSelfClose,
		TokenEOF,
	}
	require.Equal(t, want, kinds(tokens))
	require.Equal(t, "disabled", tokens[7].Text)
	require.Equal(t, "state.text", tokens[10].Text)
	require.Equal(t, "**extra", tokens[11].Text)
}

func TestTokenizeFragment(t *testing.T) {
	tokens, err := Tokenize("a.ptml", `<>text</>`, 1)
	require.NoError(t, err)
	require.Equal(t, []TokenKind{
		TokenTagOpenStart, TokenTagOpenEnd,
		TokenText,
		TokenTagCloseStart, TokenTagOpenEnd,
		TokenEOF,
	}, kinds(tokens))
}

func TestTokenizeIfElifElse(t *testing.T) {
	src := `@if count > 0 {<b>yes</b>} @elif count == 0 {zero} @else {no}`
	tokens, err := Tokenize("a.ptml", src, 1)
	require.NoError(t, err)

	require.Equal(t, TokenDirIf, tokens[0].Kind)
	require.Equal(t, TokenExprBody, tokens[1].Kind)
	require.Equal(t, "count > 0", tokens[1].Text)

	var dirs []TokenKind
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenDirIf, TokenDirElif, TokenDirElse:
			dirs = append(dirs, tok.Kind)
		}
	}
	require.Equal(t, []TokenKind{TokenDirIf, TokenDirElif, TokenDirElse}, dirs)
}

func TestTokenizeForeachHeader(t *testing.T) {
	src := `@foreach item, i in filter(items, key), key=item.id, fallback=empty {<li>@{item}</li>}`
	tokens, err := Tokenize("a.ptml", src, 1)
	require.NoError(t, err)

	require.Equal(t, TokenDirForeach, tokens[0].Kind)
	require.Equal(t, "item, i", tokens[1].Text)
	require.Equal(t, TokenKeywordIn, tokens[2].Kind)
	// The call argument comma stays inside the iterable expression.
	require.Equal(t, "filter(items, key)", tokens[3].Text)
	require.Equal(t, TokenKeywordKey, tokens[4].Kind)
	require.Equal(t, "item.id", tokens[5].Text)
	require.Equal(t, TokenKeywordFall, tokens[6].Kind)
	require.Equal(t, "empty", tokens[7].Text)
	require.Equal(t, TokenBlockOpen, tokens[8].Kind)
}

func TestTokenizeForeachArrowFallback(t *testing.T) {
	src := `@foreach x in xs {<li>@{x}</li>} -> fallback {<p>none</p>}`
	tokens, err := Tokenize("a.ptml", src, 1)
	require.NoError(t, err)

	var sawArrow, sawFall bool
	for _, tok := range tokens {
		if tok.Kind == TokenArrow {
			sawArrow = true
		}
		if tok.Kind == TokenKeywordFall {
			sawFall = true
		}
	}
	require.True(t, sawArrow)
	require.True(t, sawFall)
}

func TestTokenizeForeachWithoutInFails(t *testing.T) {
	_, err := Tokenize("a.ptml", `@foreach items {x}`, 1)
	require.Error(t, err)
	diag, ok := err.(diagnostics.Diagnostic)
	require.True(t, ok)
	require.Equal(t, "LEX_BAD_FOREACH", diag.Code)
}

func TestTokenizeSwitchSubject(t *testing.T) {
	src := `@switch status {@match "open" {a} @fallback {b}}`
	tokens, err := Tokenize("a.ptml", src, 1)
	require.NoError(t, err)

	require.Equal(t, TokenDirSwitch, tokens[0].Kind)
	require.Equal(t, "status", tokens[1].Text)
	require.Equal(t, TokenBlockOpen, tokens[2].Kind)
	require.Equal(t, TokenDirMatch, tokens[3].Kind)
	require.Equal(t, `"open"`, tokens[4].Text)
}

func TestTokenizeCommentsAreSkipped(t *testing.T) {
	src := "/* block */<div># hash note\n<!-- html -->text</div>"
	tokens, err := Tokenize("a.ptml", src, 1)
	require.NoError(t, err)
	for _, tok := range tokens {
		if tok.Kind == TokenText {
			require.NotContains(t, tok.Text, "note")
			require.NotContains(t, tok.Text, "html")
		}
	}
}

func TestTokenizeNestedExpressionBraces(t *testing.T) {
	tokens, err := Tokenize("a.ptml", `@{ {"a": 1}["a"] }`, 1)
	require.NoError(t, err)
	require.Equal(t, TokenExprBody, tokens[1].Kind)
	require.Equal(t, `{"a": 1}["a"]`, tokens[1].Text)
}

func TestTokenizeReportsLineAndColumn(t *testing.T) {
	_, err := Tokenize("broken.ptml", "<div>\n  @{missing", 1)
	require.Error(t, err)
	diag, ok := err.(diagnostics.Diagnostic)
	require.True(t, ok)
	require.Equal(t, "LEX_UNCLOSED_EXPR", diag.Code)
	require.Equal(t, 2, diag.Line)
}

func TestTokenizeBaseLineOffset(t *testing.T) {
	tokens, err := Tokenize("a.ptml", "\n<div></div>", 10)
	require.NoError(t, err)
	require.Equal(t, TokenText, tokens[0].Kind)
	require.Equal(t, 10, tokens[0].Line)
	require.Equal(t, TokenTagOpenStart, tokens[1].Kind)
	require.Equal(t, 11, tokens[1].Line)
}

func TestTokenizeUnclosedTag(t *testing.T) {
	_, err := Tokenize("a.ptml", `<div class="x"`, 1)
	require.Error(t, err)
	diag, ok := err.(diagnostics.Diagnostic)
	require.True(t, ok)
	require.Equal(t, "LEX_UNCLOSED_TAG", diag.Code)
}
