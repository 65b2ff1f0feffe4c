package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riky126/ptmlc/internal/blocks"
)

func TestAssembleComponentUnit(t *testing.T) {
	gen := NewGenerator("card.ptml")
	spec := blocks.ComponentSpec{
		Name:      "Card",
		PropsName: "props",
		Props: []blocks.PropSpec{
			{Name: "title", Type: "str", Default: `"Untitled"`, HasDefault: true},
			{Name: "count", Type: "int", Default: "None"},
		},
		Imports: []string{"from utils.time import now"},
		Body: []blocks.BodyLine{
			{Text: "stamp = now()", Line: 7},
		},
		TemplateLine: 12,
	}
	body := Call{Fn: SymMakeElement, Args: []Expr{Str{Value: "div"}, Dict{}, List{}}}

	asm := Assembler{RuntimeModule: "metafor.runtime"}
	unit := asm.Assemble(spec, body, gen)

	want := `from metafor.runtime import makeElement, invokeComponent, defineComponent
from utils.time import now

def Card(props):
    title = props.get("title", "Untitled")
    count = props.get("count", None)
    stamp = now()
    return makeElement("div", {}, [])

Card = defineComponent(Card)
`
	require.Equal(t, want, unit.Source)
	require.Equal(t, "Card", unit.ComponentName)

	// Body statement on generated line 7 maps back to source line 7; the
	// return maps to the template opening.
	require.Equal(t, 7, unit.LineMap[7])
	require.Equal(t, 12, unit.LineMap[8])
}

func TestAssemblePageUnitWithRoute(t *testing.T) {
	gen := NewGenerator("home.ptml")
	spec := blocks.ComponentSpec{
		Name:      "Home",
		PropsName: "props",
		IsPage:    true,
		RouteURI:  "/home",
	}
	asm := Assembler{RuntimeModule: "metafor.runtime"}
	unit := asm.Assemble(spec, Raw{Code: "None"}, gen)

	require.True(t, strings.HasPrefix(unit.Source, "# route: /home\n"))
	require.Contains(t, unit.Source, "from metafor.runtime import makeElement, invokeComponent, definePage")
	require.Contains(t, unit.Source, `Home = definePage("/home", Home)`)
	require.Equal(t, "/home", unit.RouteURI)
}

func TestAssembleConditionalImports(t *testing.T) {
	gen := NewGenerator("a.ptml")
	gen.used[SymConditional] = true
	gen.used[SymIterate] = true

	asm := Assembler{RuntimeModule: "metafor.runtime"}
	unit := asm.Assemble(blocks.ComponentSpec{Name: "A", PropsName: "props"}, Raw{Code: "None"}, gen)

	require.Contains(t, unit.Source,
		"from metafor.runtime import makeElement, invokeComponent, conditional, iterate, defineComponent")
	require.NotContains(t, unit.Source, "selectFirst")
}

func TestAssembleHoistedConstants(t *testing.T) {
	gen := NewGenerator("a.ptml")
	ref := gen.hoist(Call{Fn: SymMakeElement, Args: []Expr{Str{Value: "li"}, Dict{}, List{Items: []Expr{Str{Value: "x"}}}}})

	asm := Assembler{RuntimeModule: "metafor.runtime"}
	unit := asm.Assemble(blocks.ComponentSpec{Name: "A", PropsName: "props"}, ref, gen)

	require.Contains(t, unit.Source, `_static0 = makeElement("li", {}, ["x"])`)
	require.Contains(t, unit.Source, "    return _static0")
	require.Equal(t, 1, unit.ConstantCount)
}

func TestAssembleStyleAndContext(t *testing.T) {
	gen := NewGenerator("app.ptml")
	spec := blocks.ComponentSpec{
		Name:      "App",
		PropsName: "props",
		Style: &blocks.StyleSpec{
			Scope:    "scoped",
			Language: "css",
			Src:      "app.css",
			Text:     ".app { margin: 0; }",
		},
		ContextBindings: []blocks.ContextBinding{
			{ContextRef: "ThemeContext", WrapperName: "Root", ValueExpr: "dark_theme"},
			{ContextRef: "UserContext", WrapperName: "Inner", ValueExpr: "current_user"},
		},
	}

	asm := Assembler{RuntimeModule: "metafor.runtime"}
	unit := asm.Assemble(spec, Raw{Code: "None"}, gen)

	require.Contains(t, unit.Source, `_style_src = """.app { margin: 0; }"""`)
	require.Contains(t, unit.Source, `_styles = loadStyle(_style_src, path="app.css", scope="scoped", lang="css")`)
	require.Contains(t, unit.Source, "    return withStyle(None, _styles)")
	// First declared binding wraps outermost.
	require.Contains(t, unit.Source,
		"Root = provideContext(ThemeContext, dark_theme, provideContext(UserContext, current_user, App))")
	require.Contains(t, unit.Source, "loadStyle, withStyle, provideContext")
}

func TestAssembleLineComments(t *testing.T) {
	gen := NewGenerator("a.ptml")
	spec := blocks.ComponentSpec{
		Name:      "A",
		PropsName: "props",
		Body:      []blocks.BodyLine{{Text: "x = 1", Line: 9}},
	}
	asm := Assembler{RuntimeModule: "metafor.runtime", EmitLineComments: true}
	unit := asm.Assemble(spec, Raw{Code: "None"}, gen)
	require.Contains(t, unit.Source, "    x = 1  # line 9")
}
