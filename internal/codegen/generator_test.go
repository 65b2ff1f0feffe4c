package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riky126/ptmlc/internal/lexer"
	"github.com/riky126/ptmlc/internal/parser"
)

func generate(t *testing.T, src string) (string, *Generator) {
	t.Helper()
	tokens, err := lexer.Tokenize("test.ptml", src, 1)
	require.NoError(t, err)
	root, err := parser.Parse("test.ptml", tokens)
	require.NoError(t, err)

	gen := NewGenerator("test.ptml")
	expr, err := gen.Generate(root)
	require.NoError(t, err)
	return Serialize(expr), gen
}

func TestGenerateHostElement(t *testing.T) {
	out, _ := generate(t, `<div class="card" onclick=@{handler}>@{n}</div>`)
	require.Equal(t,
		`makeElement("div", {"class": "card", "onclick": lambda: handler}, [lambda: n])`,
		out)
}

func TestGenerateComponentInvocation(t *testing.T) {
	out, _ := generate(t, `<Card title="Hi" count=@{n}><p>@{body}</p></Card>`)
	require.Equal(t,
		`invokeComponent(Card, {"title": "Hi", "count": n}, lambda: makeElement("p", {}, [lambda: body]))`,
		out)
}

func TestGenerateComponentWithoutChildren(t *testing.T) {
	out, _ := generate(t, `<Badge kind="new" />`)
	require.Equal(t, `invokeComponent(Badge, {"kind": "new"}, None)`, out)
}

func TestGenerateSpreadAttrsExpandFirst(t *testing.T) {
	out, _ := generate(t, `<div @{**extra} id="x">@{y}</div>`)
	require.Equal(t,
		`makeElement("div", {**extra, "id": "x"}, [lambda: y])`,
		out)
}

func TestGenerateInterpolatedStaticAttr(t *testing.T) {
	out, _ := generate(t, `<div class="btn @{kind}">@{x}</div>`)
	require.Equal(t,
		`makeElement("div", {"class": f"btn {kind}"}, [lambda: x])`,
		out)
}

func TestGenerateStaticSubtreeHoisted(t *testing.T) {
	out, gen := generate(t, `<div id=@{x}><li>one</li><li>one</li></div>`)
	require.Equal(t,
		`makeElement("div", {"id": lambda: x}, [_static0, _static0])`,
		out)

	consts := gen.Constants()
	require.Len(t, consts, 1)
	require.Equal(t, "_static0", consts[0].Name)
	require.Equal(t, `makeElement("li", {}, ["one"])`, consts[0].Code)
}

func TestGenerateFullyStaticTemplate(t *testing.T) {
	out, gen := generate(t, `<ul><li>a</li><li>b</li></ul>`)
	require.Equal(t, "_static0", out)
	require.Len(t, gen.Constants(), 1)
}

func TestGenerateIfElifElse(t *testing.T) {
	out, gen := generate(t, `@if a {@{one}} @elif b {@{two}} @else {@{three}}`)
	require.Equal(t,
		`conditional(lambda: a, lambda: lambda: one, conditional(lambda: b, lambda: lambda: two, lambda: lambda: three))`,
		out)
	require.True(t, gen.UsedSymbols()[SymConditional])
}

func TestGenerateIfWithoutElse(t *testing.T) {
	out, _ := generate(t, `@if ready {<span>@{x}</span>}`)
	require.Equal(t,
		`conditional(lambda: ready, lambda: makeElement("span", {}, [lambda: x]), None)`,
		out)
}

func TestGenerateForeach(t *testing.T) {
	out, gen := generate(t, `@foreach item, i in items, key=item.id {<li>@{item}</li>} -> fallback {<p>none</p>}`)
	require.Equal(t,
		`iterate(items, item.id, lambda item, i: makeElement("li", {}, [lambda: item]), fallback=lambda: _static0)`,
		out)
	require.True(t, gen.UsedSymbols()[SymIterate])
	require.Len(t, gen.Constants(), 1)
}

func TestGenerateForeachDefaultIndex(t *testing.T) {
	out, _ := generate(t, `@foreach x in xs {@{x}}`)
	require.Equal(t, `iterate(xs, lambda x, index: lambda: x)`, out)
}

func TestGenerateSwitchWithSubject(t *testing.T) {
	out, gen := generate(t, `@switch status {@match "open" {open} @fallback {other}}`)
	require.Equal(t,
		`selectFirst([(lambda: (status) == ("open"), lambda: "open")], lambda: "other")`,
		out)
	require.True(t, gen.UsedSymbols()[SymSelectFirst])
}

func TestGenerateSwitchWithoutSubject(t *testing.T) {
	out, _ := generate(t, `@switch {@match a > 1 {big}}`)
	require.Equal(t,
		`selectFirst([(lambda: a > 1, lambda: "big")])`,
		out)
}

func TestGenerateTextCollapsesNewlines(t *testing.T) {
	out, gen := generate(t, "<p>one\ntwo   three</p>")
	require.Equal(t, `_static0`, out)
	require.Equal(t, `makeElement("p", {}, ["one two three"])`, gen.Constants()[0].Code)
}

func TestGenerateArrowFunctionAttr(t *testing.T) {
	out, _ := generate(t, `<button onclick=@{(e) -> handle(e)}>@{x}</button>`)
	require.Equal(t,
		`makeElement("button", {"onclick": lambda e: handle(e)}, [lambda: x])`,
		out)
}

func TestGenerateInlineMarkupInExpression(t *testing.T) {
	out, gen := generate(t, `<div>@{lambda: <b>hi</b>}</div>`)
	require.Contains(t, out, "lambda: _static0")
	require.Len(t, gen.Constants(), 1)
	require.Equal(t, `makeElement("b", {}, ["hi"])`, gen.Constants()[0].Code)
}

func TestGenerateComparisonIsNotMarkup(t *testing.T) {
	out, _ := generate(t, `<div>@{a < b and c > d}</div>`)
	require.Equal(t, `makeElement("div", {}, [lambda: a < b and c > d])`, out)
}

func TestGenerateSiblingsBecomeList(t *testing.T) {
	out, _ := generate(t, `<p>@{a}</p><p>@{b}</p>`)
	require.Equal(t,
		`[makeElement("p", {}, [lambda: a]), makeElement("p", {}, [lambda: b])]`,
		out)
}

func TestGenerateFeatures(t *testing.T) {
	_, gen := generate(t, `@if a {<Card x=@{y} />} @else {text}`)
	features := gen.Features()
	require.Contains(t, features, "directive:if")
	require.Contains(t, features, "directive:else")
	require.Contains(t, features, "node:component")
}
