package codegen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/riky126/ptmlc/internal/ast"
	"github.com/riky126/ptmlc/internal/diagnostics"
	"github.com/riky126/ptmlc/internal/lexer"
	"github.com/riky126/ptmlc/internal/parser"
)

// Runtime entry points the generated unit calls. These names are the
// compiler's half of the runtime contract.
const (
	SymMakeElement     = "makeElement"
	SymInvokeComponent = "invokeComponent"
	SymConditional     = "conditional"
	SymIterate         = "iterate"
	SymSelectFirst     = "selectFirst"
	SymDefineComponent = "defineComponent"
	SymDefinePage      = "definePage"
	SymLoadStyle       = "loadStyle"
	SymWithStyle       = "withStyle"
	SymProvideContext  = "provideContext"
)

// Constant is one hoisted static subtree shared across the unit.
type Constant struct {
	Name string
	Code string
}

// Generator turns template ASTs into output expression trees. One Generator
// serves one compile call: hoisted constants and used runtime symbols
// accumulate across the main template and any inline fragments.
type Generator struct {
	file          string
	constants     []Constant
	constBySerial map[string]string
	used          map[string]bool
	features      map[string]bool
}

// NewGenerator builds a fresh per-compile generator.
func NewGenerator(file string) *Generator {
	return &Generator{
		file:          file,
		constBySerial: map[string]string{},
		used:          map[string]bool{},
		features:      map[string]bool{},
	}
}

// Constants returns hoisted constants in first-use order.
func (g *Generator) Constants() []Constant { return g.constants }

// UsedSymbols reports whether a conditional runtime symbol was emitted.
func (g *Generator) UsedSymbols() map[string]bool { return g.used }

// Features returns sorted feature tags seen during generation, for reports.
func (g *Generator) Features() []string { return sortedKeys(g.features) }

// Generate maps a parsed template to its output expression. A fragment root
// with several children becomes an ordered list literal; an empty template
// generates the host null literal.
func (g *Generator) Generate(root ast.Fragment) (Expr, error) {
	return g.generateNodes(root.Children)
}

func (g *Generator) generateNodes(nodes []ast.Node) (Expr, error) {
	var parts []Expr
	for _, node := range nodes {
		expr, err := g.visit(node)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			parts = append(parts, expr)
		}
	}
	switch len(parts) {
	case 0:
		return Raw{Code: "None"}, nil
	case 1:
		return parts[0], nil
	default:
		return List{Items: parts}, nil
	}
}

func (g *Generator) visit(node ast.Node) (Expr, error) {
	switch n := node.(type) {
	case ast.Element:
		return g.visitElement(n)
	case ast.Text:
		return g.visitText(n), nil
	case ast.Expression:
		return g.visitExpression(n)
	case ast.If:
		return g.visitIf(n)
	case ast.ForEach:
		return g.visitForEach(n)
	case ast.Switch:
		return g.visitSwitch(n)
	case ast.Fragment:
		g.features["node:fragment"] = true
		return g.generateNodes(n.Children)
	default:
		return nil, diagnostics.Syntax("GEN_UNKNOWN_NODE", g.file, node.Pos().Line, node.Pos().Column,
			fmt.Sprintf("cannot generate code for node type %T", node), "")
	}
}

func (g *Generator) visitElement(el ast.Element) (Expr, error) {
	if el.IsComponent {
		return g.visitComponent(el)
	}
	g.features["node:element"] = true

	if isStaticSubtree(el) {
		expr := g.buildStaticElement(el)
		return g.hoist(expr), nil
	}

	attrs, err := g.buildAttrs(el, true)
	if err != nil {
		return nil, err
	}
	children, err := g.generateNodes(el.Children)
	if err != nil {
		return nil, err
	}
	childList := asChildList(children)
	return Call{Fn: SymMakeElement, Args: []Expr{Str{Value: el.Tag}, attrs, childList}}, nil
}

func (g *Generator) visitComponent(el ast.Element) (Expr, error) {
	g.features["node:component"] = true
	props, err := g.buildAttrs(el, false)
	if err != nil {
		return nil, err
	}

	childrenThunk := Expr(Raw{Code: "None"})
	if len(el.Children) > 0 {
		children, err := g.generateNodes(el.Children)
		if err != nil {
			return nil, err
		}
		childrenThunk = Lambda{Body: children}
	}
	return Call{Fn: SymInvokeComponent, Args: []Expr{Raw{Code: el.Tag}, props, childrenThunk}}, nil
}

// buildAttrs folds attributes and spreads into a mapping in declaration
// order. lazy wraps dynamic bindings in thunks (host elements); component
// props pass values through unwrapped.
func (g *Generator) buildAttrs(el ast.Element, lazy bool) (Expr, error) {
	dict := Dict{}
	for _, spread := range el.Spreads {
		dict.Spreads = append(dict.Spreads, g.transformExpression(spread))
	}
	for _, attr := range el.Attrs {
		value, err := g.attrValueExpr(el, attr, lazy)
		if err != nil {
			return nil, err
		}
		dict.Pairs = append(dict.Pairs, Pair{Key: attr.Name, Value: value})
	}
	return dict, nil
}

func (g *Generator) attrValueExpr(el ast.Element, attr ast.Attr, lazy bool) (Expr, error) {
	v := attr.Value
	if !v.Dynamic {
		if strings.Contains(v.Static, "@{") {
			return formatString(v.Static), nil
		}
		return Str{Value: v.Static}, nil
	}
	if strings.TrimSpace(v.Expr) == "" {
		return nil, diagnostics.Syntax("GEN_EMPTY_EXPR", g.file, el.Position.Line, el.Position.Column,
			fmt.Sprintf("empty expression bound to attribute %q", attr.Name), attr.Name)
	}
	code := g.transformExpression(v.Expr)
	if !lazy || isBareLiteral(code) || strings.HasPrefix(code, "lambda") {
		return Raw{Code: code}, nil
	}
	return Lambda{Body: Raw{Code: code}}, nil
}

// formatString turns "btn @{kind}" into the host format literal
// f"btn {kind}", escaping literal braces.
func formatString(value string) FString {
	escaped := strings.ReplaceAll(value, "{", "{{")
	escaped = strings.ReplaceAll(escaped, "}", "}}")
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	re := regexp.MustCompile(`@\{\{(.*?)\}\}`)
	return FString{Value: re.ReplaceAllString(escaped, "{$1}")}
}

// visitText collapses interior whitespace runs the way HTML rendering does.
// Indentation-only runs were already dropped by the parser.
func (g *Generator) visitText(n ast.Text) Expr {
	g.features["node:text"] = true
	value := strings.ReplaceAll(n.Value, "\n", " ")
	value = whitespaceRunRe.ReplaceAllString(value, " ")
	return Str{Value: value}
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

func (g *Generator) visitExpression(n ast.Expression) (Expr, error) {
	if strings.TrimSpace(n.Code) == "" {
		return nil, diagnostics.Syntax("GEN_EMPTY_EXPR", g.file, n.Position.Line, n.Position.Column,
			"empty @{ } expression", "@{}")
	}
	g.features["node:interpolation"] = true
	return Lambda{Body: Raw{Code: g.transformExpression(n.Code)}}, nil
}

func (g *Generator) visitIf(n ast.If) (Expr, error) {
	g.features["directive:if"] = true
	g.used[SymConditional] = true

	if strings.TrimSpace(n.Cond) == "" {
		return nil, diagnostics.Syntax("GEN_MISSING_CONDITION", g.file, n.Position.Line, n.Position.Column,
			"@if requires a condition expression", "@if")
	}

	// Build the else chain inside out: the last elif is the innermost
	// fallback, the declared @else the final one.
	fallback := Expr(Raw{Code: "None"})
	if len(n.Else) > 0 {
		g.features["directive:else"] = true
		elseBody, err := g.generateNodes(n.Else)
		if err != nil {
			return nil, err
		}
		fallback = Lambda{Body: elseBody}
	}
	for i := len(n.ElifBranches) - 1; i >= 0; i-- {
		branch := n.ElifBranches[i]
		g.features["directive:elif"] = true
		body, err := g.generateNodes(branch.Children)
		if err != nil {
			return nil, err
		}
		fallback = Call{Fn: SymConditional, Args: []Expr{
			Lambda{Body: Raw{Code: g.transformExpression(branch.Cond)}},
			Lambda{Body: body},
			fallback,
		}}
	}

	then, err := g.generateNodes(n.Then)
	if err != nil {
		return nil, err
	}
	return Call{Fn: SymConditional, Args: []Expr{
		Lambda{Body: Raw{Code: g.transformExpression(n.Cond)}},
		Lambda{Body: then},
		fallback,
	}}, nil
}

func (g *Generator) visitForEach(n ast.ForEach) (Expr, error) {
	g.features["directive:foreach"] = true
	g.used[SymIterate] = true

	if n.ItemVar == "" || strings.TrimSpace(n.SeqExpr) == "" {
		return nil, diagnostics.Syntax("GEN_BAD_FOREACH", g.file, n.Position.Line, n.Position.Column,
			"@foreach requires an item variable and an iterable expression", "@foreach")
	}

	body, err := g.generateNodes(n.Children)
	if err != nil {
		return nil, err
	}
	indexVar := n.IndexVar
	if indexVar == "" {
		indexVar = "index"
	}
	itemThunk := Lambda{Params: n.ItemVar + ", " + indexVar, Body: body}

	args := []Expr{Raw{Code: g.transformExpression(n.SeqExpr)}}
	if n.KeyExpr != "" {
		args = append(args, Raw{Code: g.transformExpression(n.KeyExpr)})
	}
	args = append(args, itemThunk)

	call := Call{Fn: SymIterate, Args: args}
	switch {
	case len(n.FallbackChildren) > 0:
		fallback, err := g.generateNodes(n.FallbackChildren)
		if err != nil {
			return nil, err
		}
		call.KwArgs = append(call.KwArgs, KwArg{Name: "fallback", Value: Lambda{Body: fallback}})
	case n.FallbackExpr != "":
		call.KwArgs = append(call.KwArgs, KwArg{Name: "fallback", Value: Raw{Code: g.transformExpression(n.FallbackExpr)}})
	}
	return call, nil
}

func (g *Generator) visitSwitch(n ast.Switch) (Expr, error) {
	g.features["directive:switch"] = true
	g.used[SymSelectFirst] = true

	if len(n.Cases) == 0 {
		return nil, diagnostics.Syntax("GEN_EMPTY_SWITCH", g.file, n.Position.Line, n.Position.Column,
			"@switch requires at least one @match arm", "@switch")
	}

	var cases []Expr
	for _, c := range n.Cases {
		if strings.TrimSpace(c.WhenExpr) == "" {
			return nil, diagnostics.Syntax("GEN_MISSING_CONDITION", g.file, c.Position.Line, c.Position.Column,
				"@match requires an expression", "@match")
		}
		when := g.transformExpression(c.WhenExpr)
		if n.SubjectExpr != "" {
			subject := g.transformExpression(n.SubjectExpr)
			when = "(" + subject + ") == (" + when + ")"
		}
		body, err := g.generateNodes(c.Children)
		if err != nil {
			return nil, err
		}
		cases = append(cases, Tuple{Items: []Expr{
			Lambda{Body: Raw{Code: when}},
			Lambda{Body: body},
		}})
	}

	args := []Expr{List{Items: cases}}
	if n.Fallback != nil {
		body, err := g.generateNodes(n.Fallback)
		if err != nil {
			return nil, err
		}
		args = append(args, Lambda{Body: body})
	}
	return Call{Fn: SymSelectFirst, Args: args}, nil
}

// hoist registers a static subtree as a shared constant, reusing an existing
// constant when an identical subtree was seen before.
func (g *Generator) hoist(expr Expr) Expr {
	serial := Serialize(expr)
	if name, ok := g.constBySerial[serial]; ok {
		return ConstRef{Name: name}
	}
	name := fmt.Sprintf("_static%d", len(g.constants))
	g.constants = append(g.constants, Constant{Name: name, Code: serial})
	g.constBySerial[serial] = name
	return ConstRef{Name: name}
}

// buildStaticElement renders a static subtree inline, without hoisting its
// descendants separately.
func (g *Generator) buildStaticElement(el ast.Element) Expr {
	dict := Dict{}
	for _, attr := range el.Attrs {
		dict.Pairs = append(dict.Pairs, Pair{Key: attr.Name, Value: Str{Value: attr.Value.Static}})
	}
	var children []Expr
	for _, child := range el.Children {
		switch c := child.(type) {
		case ast.Element:
			children = append(children, g.buildStaticElement(c))
		case ast.Text:
			children = append(children, g.visitText(c))
		}
	}
	return Call{Fn: SymMakeElement, Args: []Expr{Str{Value: el.Tag}, dict, List{Items: children}}}
}

// isStaticSubtree reports whether an element contains only host elements and
// text, with no dynamic attributes, spreads, expressions, or directives.
func isStaticSubtree(el ast.Element) bool {
	if el.IsComponent || len(el.Spreads) > 0 {
		return false
	}
	for _, attr := range el.Attrs {
		if attr.Value.Dynamic || strings.Contains(attr.Value.Static, "@{") {
			return false
		}
	}
	for _, child := range el.Children {
		switch c := child.(type) {
		case ast.Element:
			if !isStaticSubtree(c) {
				return false
			}
		case ast.Text:
		default:
			return false
		}
	}
	return true
}

var arrowFnRe = regexp.MustCompile(`(?s)^\s*\(?\s*([^\)]*?)\s*\)?\s*->\s*(.+)$`)
var lambdaPrefixRe = regexp.MustCompile(`(?s)^\s*(lambda[^:]*:)(.*)$`)

// transformExpression rewrites host expression sugar: arrow functions become
// host lambdas, and inline template markup embedded in an expression is
// compiled through the regular pipeline.
func (g *Generator) transformExpression(code string) string {
	expr := strings.TrimSpace(code)
	if expr == "" {
		return expr
	}

	if inner, ok := stripOuterParens(expr); ok {
		transformed := g.transformExpression(inner)
		if transformed != inner {
			return "(" + transformed + ")"
		}
	}

	if strings.Contains(expr, "->") {
		if match := arrowFnRe.FindStringSubmatch(expr); match != nil {
			return "lambda " + strings.TrimSpace(match[1]) + ": " + strings.TrimSpace(match[2])
		}
	}

	if strings.Contains(expr, "<") && strings.Contains(expr, ">") {
		prefix := ""
		content := expr
		if match := lambdaPrefixRe.FindStringSubmatch(expr); match != nil {
			prefix = match[1] + " "
			content = match[2]
		}
		if strings.HasPrefix(strings.TrimSpace(content), "<") {
			if compiled, ok := g.tryInlineMarkup(strings.TrimSpace(content)); ok {
				return prefix + compiled
			}
		}
	}
	return expr
}

// tryInlineMarkup compiles markup embedded in an expression. A failed parse
// leaves the expression untouched: "a < b" is not markup.
func (g *Generator) tryInlineMarkup(content string) (string, bool) {
	tokens, err := lexer.Tokenize(g.file, content, 1)
	if err != nil {
		return "", false
	}
	root, err := parser.Parse(g.file, tokens)
	if err != nil {
		return "", false
	}
	hasElement := false
	for _, node := range root.Children {
		if _, ok := node.(ast.Element); ok {
			hasElement = true
			break
		}
	}
	if !hasElement {
		return "", false
	}
	expr, err := g.Generate(root)
	if err != nil {
		return "", false
	}
	return Serialize(expr), true
}

func stripOuterParens(expr string) (string, bool) {
	if !strings.HasPrefix(expr, "(") || !strings.HasSuffix(expr, ")") {
		return "", false
	}
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i < len(expr)-1 {
				return "", false
			}
		}
	}
	if depth != 0 {
		return "", false
	}
	return strings.TrimSpace(expr[1 : len(expr)-1]), true
}

// asChildList normalizes generated children to a list literal so the element
// constructor always receives a sequence.
func asChildList(children Expr) Expr {
	switch c := children.(type) {
	case List:
		return c
	case Raw:
		if c.Code == "None" {
			return List{}
		}
	}
	return List{Items: []Expr{children}}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isBareLiteral(code string) bool {
	switch code {
	case "True", "False", "None":
		return true
	}
	return false
}
