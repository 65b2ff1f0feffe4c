package codegen

import (
	"fmt"
	"strings"

	"github.com/riky126/ptmlc/internal/blocks"
)

// CompiledUnit is the assembled output for one source file.
type CompiledUnit struct {
	Source        string
	LineMap       map[int]int
	ComponentName string
	PropsName     string
	RouteURI      string
	ConstantCount int
	Features      []string
}

// Assembler stitches the pieces of a compiled component into one host-language
// unit: imports, style and static constants, the component function, and the
// registration tail.
type Assembler struct {
	// RuntimeModule is the import path the generated unit loads runtime
	// symbols from.
	RuntimeModule string

	// EmitLineComments appends "# line N" markers to body statements.
	EmitLineComments bool
}

// symbolOrder fixes the import line layout so recompiles are byte-identical.
var symbolOrder = []string{
	SymMakeElement,
	SymInvokeComponent,
	SymConditional,
	SymIterate,
	SymSelectFirst,
	SymLoadStyle,
	SymWithStyle,
	SymProvideContext,
	SymDefineComponent,
	SymDefinePage,
}

// Assemble renders the unit for one component. body is the generated template
// expression; gen carries the hoisted constants and conditional runtime
// symbols the template needed.
func (a *Assembler) Assemble(spec blocks.ComponentSpec, body Expr, gen *Generator) CompiledUnit {
	unit := CompiledUnit{
		LineMap:       map[int]int{},
		ComponentName: spec.Name,
		PropsName:     spec.PropsName,
		RouteURI:      spec.RouteURI,
		ConstantCount: len(gen.Constants()),
		Features:      gen.Features(),
	}

	used := map[string]bool{
		SymMakeElement:     true,
		SymInvokeComponent: true,
	}
	for sym := range gen.UsedSymbols() {
		used[sym] = true
	}
	if spec.IsPage {
		used[SymDefinePage] = true
	} else {
		used[SymDefineComponent] = true
	}
	if spec.Style != nil {
		used[SymLoadStyle] = true
		used[SymWithStyle] = true
	}
	if len(spec.ContextBindings) > 0 {
		used[SymProvideContext] = true
	}

	var lines []string
	lineno := 0 // 1-based line number of the last emitted line
	emit := func(line string) {
		lines = append(lines, line)
		lineno += 1 + strings.Count(line, "\n")
	}

	if spec.IsPage && spec.RouteURI != "" {
		emit("# route: " + spec.RouteURI)
	}
	emit(a.importLine(used))
	for _, imp := range spec.Imports {
		emit(imp)
	}
	emit("")

	styleVar := a.emitStyle(emit, spec.Style)

	for _, c := range gen.Constants() {
		emit(c.Name + " = " + c.Code)
	}
	if len(gen.Constants()) > 0 {
		emit("")
	}

	emit(fmt.Sprintf("def %s(%s):", spec.Name, spec.PropsName))
	for _, prop := range spec.Props {
		emit(fmt.Sprintf("    %s = %s.get(%q, %s)", prop.Name, spec.PropsName, prop.Name, prop.Default))
	}

	for _, stmt := range spec.Body {
		line := "    " + stmt.Text
		if a.EmitLineComments {
			line += fmt.Sprintf("  # line %d", stmt.Line)
		}
		emit(line)
		unit.LineMap[lineno] = stmt.Line
	}

	root := Serialize(body)
	if styleVar != "" {
		root = fmt.Sprintf("%s(%s, %s)", SymWithStyle, root, styleVar)
	}
	emit("    return " + root)
	if spec.TemplateLine > 0 {
		unit.LineMap[lineno] = spec.TemplateLine
	}

	emit("")
	a.emitRegistration(emit, spec)

	unit.Source = strings.Join(lines, "\n") + "\n"
	return unit
}

func (a *Assembler) importLine(used map[string]bool) string {
	var symbols []string
	for _, sym := range symbolOrder {
		if used[sym] {
			symbols = append(symbols, sym)
		}
	}
	return "from " + a.RuntimeModule + " import " + strings.Join(symbols, ", ")
}

// emitStyle writes the style constants and returns the variable holding the
// combined styles, or "" when the component has none.
func (a *Assembler) emitStyle(emit func(string), style *blocks.StyleSpec) string {
	if style == nil {
		return ""
	}
	call := Call{Fn: SymLoadStyle}
	if style.Text != "" {
		emit(`_style_src = """` + style.Text + `"""`)
		call.Args = append(call.Args, Raw{Code: "_style_src"})
	}
	path := style.Name
	if path == "" {
		path = style.Src
	}
	if path != "" {
		call.KwArgs = append(call.KwArgs, KwArg{Name: "path", Value: Str{Value: path}})
	}
	call.KwArgs = append(call.KwArgs,
		KwArg{Name: "scope", Value: Str{Value: style.Scope}},
		KwArg{Name: "lang", Value: Str{Value: style.Language}},
	)
	emit("_styles = " + Serialize(call))
	emit("")
	return "_styles"
}

// emitRegistration writes the registration tail. Context providers nest with
// the first declared binding outermost; a wrapper named "self" rebinds the
// component itself.
func (a *Assembler) emitRegistration(emit func(string), spec blocks.ComponentSpec) {
	if spec.IsPage {
		emit(fmt.Sprintf("%s = %s(%q, %s)", spec.Name, SymDefinePage, spec.RouteURI, spec.Name))
	} else {
		emit(fmt.Sprintf("%s = %s(%s)", spec.Name, SymDefineComponent, spec.Name))
	}

	if len(spec.ContextBindings) == 0 {
		return
	}
	wrapped := spec.Name
	for i := len(spec.ContextBindings) - 1; i >= 0; i-- {
		b := spec.ContextBindings[i]
		wrapped = fmt.Sprintf("%s(%s, %s, %s)", SymProvideContext, b.ContextRef, b.ValueExpr, wrapped)
	}
	target := spec.ContextBindings[0].WrapperName
	if target == "" || target == "self" {
		target = spec.Name
	}
	emit(target + " = " + wrapped)
}
