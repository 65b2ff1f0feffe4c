package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riky126/ptmlc/internal/ast"
	"github.com/riky126/ptmlc/internal/diagnostics"
	"github.com/riky126/ptmlc/internal/lexer"
)

func parse(t *testing.T, src string) ast.Fragment {
	t.Helper()
	tokens, err := lexer.Tokenize("test.ptml", src, 1)
	require.NoError(t, err)
	root, err := Parse("test.ptml", tokens)
	require.NoError(t, err)
	return root
}

func parseErr(t *testing.T, src string) diagnostics.Diagnostic {
	t.Helper()
	tokens, err := lexer.Tokenize("test.ptml", src, 1)
	require.NoError(t, err)
	_, err = Parse("test.ptml", tokens)
	require.Error(t, err)
	diag, ok := err.(diagnostics.Diagnostic)
	require.True(t, ok)
	return diag
}

func TestParseNestedElements(t *testing.T) {
	root := parse(t, `<div class="card"><h1>@{title}</h1></div>`)
	require.Len(t, root.Children, 1)

	div, ok := root.Children[0].(ast.Element)
	require.True(t, ok)
	require.Equal(t, "div", div.Tag)
	require.False(t, div.IsComponent)
	require.Len(t, div.Attrs, 1)
	require.Equal(t, "class", div.Attrs[0].Name)
	require.Equal(t, "card", div.Attrs[0].Value.Static)

	h1, ok := div.Children[0].(ast.Element)
	require.True(t, ok)
	expr, ok := h1.Children[0].(ast.Expression)
	require.True(t, ok)
	require.Equal(t, "title", expr.Code)
}

func TestParseComponentInvocation(t *testing.T) {
	root := parse(t, `<Card title="Hi" count=@{n} active><p>body</p></Card>`)
	card, ok := root.Children[0].(ast.Element)
	require.True(t, ok)
	require.True(t, card.IsComponent)
	require.Len(t, card.Attrs, 3)
	require.True(t, card.Attrs[1].Value.Dynamic)
	require.Equal(t, "n", card.Attrs[1].Value.Expr)
	// Bare attribute binds boolean true.
	require.True(t, card.Attrs[2].Value.Dynamic)
	require.Equal(t, "True", card.Attrs[2].Value.Expr)
}

func TestParseSpreadAndBoundAttrs(t *testing.T) {
	root := parse(t, `<input @{**extra} value:=state.text />`)
	el, ok := root.Children[0].(ast.Element)
	require.True(t, ok)
	require.True(t, el.SelfClosed)
	require.Equal(t, []string{"extra"}, el.Spreads)
	require.Equal(t, "state.text", el.Attrs[0].Value.Expr)
}

func TestParseFragment(t *testing.T) {
	root := parse(t, `<><p>a</p><p>b</p></>`)
	frag, ok := root.Children[0].(ast.Fragment)
	require.True(t, ok)
	require.Len(t, frag.Children, 2)
}

func TestParseTagMismatch(t *testing.T) {
	diag := parseErr(t, "<div>\n  <p>text</div>\n</p>")
	require.Equal(t, "PARSE_TAG_MISMATCH", diag.Code)
	require.Contains(t, diag.Message, "</div>")
	require.Contains(t, diag.Message, "<p>")
	require.Contains(t, diag.Message, "line 2")
}

func TestParseIfElifElse(t *testing.T) {
	root := parse(t, `@if a {<b>1</b>} @elif b {two} @elif c {three} @else {none}`)
	node, ok := root.Children[0].(ast.If)
	require.True(t, ok)
	require.Equal(t, "a", node.Cond)
	require.Len(t, node.ElifBranches, 2)
	require.Equal(t, "b", node.ElifBranches[0].Cond)
	require.Equal(t, "c", node.ElifBranches[1].Cond)
	require.Len(t, node.Else, 1)
}

func TestParseClauseBraceSpacing(t *testing.T) {
	// Clause keywords carry no header expression, so the space before their
	// opening brace reaches the parser as a text token.
	root := parse(t, `@if a {<b>1</b>} @else {none}`)
	cond := root.Children[0].(ast.If)
	require.Len(t, cond.Else, 1)

	root = parse(t, "@foreach x in xs {<li>@{x}</li>} -> fallback\n{<p>none</p>}")
	loop := root.Children[0].(ast.ForEach)
	require.Len(t, loop.FallbackChildren, 1)

	root = parse(t, "@switch s {\n\t@match \"a\" {x}\n\t@fallback\n\t{y}\n}")
	sw := root.Children[0].(ast.Switch)
	require.Len(t, sw.Fallback, 1)
}

func TestParseIfMissingCondition(t *testing.T) {
	diag := parseErr(t, `@if {x}`)
	require.Equal(t, "PARSE_MISSING_CONDITION", diag.Code)
}

func TestParseForeachFull(t *testing.T) {
	root := parse(t, `@foreach item, i in items, key=item.id {<li>@{item}</li>} -> fallback {<p>none</p>}`)
	node, ok := root.Children[0].(ast.ForEach)
	require.True(t, ok)
	require.Equal(t, "item", node.ItemVar)
	require.Equal(t, "i", node.IndexVar)
	require.Equal(t, "items", node.SeqExpr)
	require.Equal(t, "item.id", node.KeyExpr)
	require.Len(t, node.Children, 1)
	require.Len(t, node.FallbackChildren, 1)
}

func TestParseForeachFallbackExpr(t *testing.T) {
	root := parse(t, `@foreach x in xs, fallback=placeholder {<li>@{x}</li>}`)
	node, ok := root.Children[0].(ast.ForEach)
	require.True(t, ok)
	require.Equal(t, "placeholder", node.FallbackExpr)
	require.Empty(t, node.FallbackChildren)
}

func TestParseSwitchWithSubject(t *testing.T) {
	root := parse(t, `@switch status {
	@match "open" {<p>open</p>}
	@match "done" {<p>done</p>}
	@fallback {<p>other</p>}
}`)
	node, ok := root.Children[0].(ast.Switch)
	require.True(t, ok)
	require.Equal(t, "status", node.SubjectExpr)
	require.Len(t, node.Cases, 2)
	require.Equal(t, `"open"`, node.Cases[0].WhenExpr)
	require.Len(t, node.Fallback, 1)
}

func TestParseSwitchWithoutSubject(t *testing.T) {
	root := parse(t, `@switch {@match a > 1 {x}}`)
	node, ok := root.Children[0].(ast.Switch)
	require.True(t, ok)
	require.Empty(t, node.SubjectExpr)
	require.Equal(t, "a > 1", node.Cases[0].WhenExpr)
}

func TestParseEmptySwitch(t *testing.T) {
	diag := parseErr(t, `@switch s {}`)
	require.Equal(t, "PARSE_EMPTY_SWITCH", diag.Code)
}

func TestParseWhitespaceHandling(t *testing.T) {
	// Indentation-only runs between siblings disappear; interior text stays.
	root := parse(t, "<div>\n    <p>one two</p>\n</div>")
	div := root.Children[0].(ast.Element)
	require.Len(t, div.Children, 1)

	p := div.Children[0].(ast.Element)
	text := p.Children[0].(ast.Text)
	require.Equal(t, "one two", text.Value)
}

func TestParseEmptyExpression(t *testing.T) {
	diag := parseErr(t, `<div>@{   }</div>`)
	require.Equal(t, "PARSE_EMPTY_EXPR", diag.Code)
}
