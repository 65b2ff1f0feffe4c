package blocks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

// PropSpec is one declared component prop.
type PropSpec struct {
	Name       string
	Type       string
	Default    string
	HasDefault bool
}

// ContextBinding is one provider wrapper declared with a context block.
type ContextBinding struct {
	ContextRef  string
	WrapperName string
	ValueName   string
	ValueExpr   string
	StartLine   int
}

// StyleSpec is the style block payload.
type StyleSpec struct {
	Language string
	Scope    string
	Src      string
	Name     string
	Text     string
}

// BodyLine is one verbatim logic statement with its original source line.
type BodyLine struct {
	Text string
	Line int
}

// ComponentSpec is the processed form of a source file, minus the compiled
// template.
type ComponentSpec struct {
	Name            string
	IsPage          bool
	RouteURI        string
	PropsName       string
	HasPropsBlock   bool
	Props           []PropSpec
	Imports         []string
	Body            []BodyLine
	ContextBindings []ContextBinding
	Style           *StyleSpec

	TemplateText string
	TemplateLine int
}

// InlineExpander compiles an inline template fragment found inside logic and
// returns the expression text to substitute for it.
type InlineExpander func(text string, baseLine int) (string, error)

var propLineRe = regexp.MustCompile(`^@prop\s+([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(.+)$`)

// Process consumes a block parse result and produces a ComponentSpec.
func Process(file string, parsed ParseResult, expand InlineExpander) (ComponentSpec, error) {
	spec := ComponentSpec{Name: "Component", PropsName: "props"}

	if block, ok := parsed.Blocks[KindProps]; ok {
		spec.HasPropsBlock = true
		spec.PropsName = block.Name
	}

	if err := extractMetadata(file, parsed, &spec); err != nil {
		return ComponentSpec{}, err
	}

	if block, ok := parsed.Blocks[KindTemplate]; ok {
		spec.TemplateText = block.Content
		spec.TemplateLine = block.StartLine
	}

	if block, ok := parsed.Blocks[KindStyle]; ok {
		spec.Style = parseStyleBlock(block)
	}

	ordered := []Block{}
	if block, ok := parsed.Blocks[KindProps]; ok {
		ordered = append(ordered, block)
	}
	if block, ok := parsed.Blocks[KindComponent]; ok && block.Content != "" {
		ordered = append(ordered, block)
	}
	if block, ok := parsed.Blocks[KindPage]; ok && block.Content != "" {
		ordered = append(ordered, block)
	}
	for _, block := range ordered {
		if err := processLogicBlock(file, block, &spec, expand); err != nil {
			return ComponentSpec{}, err
		}
	}

	for _, ctx := range parsed.ContextBlocks {
		binding, err := processContextBlock(file, ctx)
		if err != nil {
			return ComponentSpec{}, err
		}
		spec.ContextBindings = append(spec.ContextBindings, binding)
	}

	return spec, nil
}

func extractMetadata(file string, parsed ParseResult, spec *ComponentSpec) error {
	if block, ok := parsed.Blocks[KindComponent]; ok {
		if name := strings.Trim(strings.TrimSpace(block.Args), `"'`); name != "" {
			spec.Name = name
		}
		return nil
	}
	block := parsed.Blocks[KindPage]
	spec.IsPage = true
	parts := splitTopLevelCommas(block.Args)
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return diagnostics.Structure("BLOCK_PAGE_ARGS", file, block.StartLine,
			"@page requires a route URI argument")
	}
	spec.RouteURI = strings.Trim(strings.TrimSpace(parts[0]), `"'`)
	if len(parts) >= 2 {
		if name := strings.Trim(strings.TrimSpace(parts[1]), `"'`); name != "" {
			spec.Name = name
		}
	}
	return nil
}

func processLogicBlock(file string, block Block, spec *ComponentSpec, expand InlineExpander) error {
	content, err := expandInlineTemplates(file, block.Content, block.StartLine, expand)
	if err != nil {
		return err
	}

	for i, line := range dedent(content) {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		originalLine := block.StartLine + i

		switch {
		case strings.HasPrefix(stripped, "from ") || strings.HasPrefix(stripped, "import "):
			spec.Imports = append(spec.Imports, stripped)
		case strings.HasPrefix(stripped, "@prop "):
			prop, err := parsePropLine(file, stripped, originalLine)
			if err != nil {
				return err
			}
			spec.Props = append(spec.Props, prop)
		default:
			rewritten, err := rewriteBodyLine(file, line, spec, originalLine)
			if err != nil {
				return err
			}
			spec.Body = append(spec.Body, BodyLine{Text: strings.TrimRight(rewritten, " \t"), Line: originalLine})
		}
	}
	return nil
}

func parsePropLine(file string, line string, originalLine int) (PropSpec, error) {
	match := propLineRe.FindStringSubmatch(line)
	if match == nil {
		return PropSpec{}, diagnostics.Syntax("PROP_MALFORMED", file, originalLine, 0,
			"prop declaration must be '@prop name: type [= default]'", line)
	}
	prop := PropSpec{Name: match[1]}
	rest := match[2]
	if typ, def, ok := strings.Cut(rest, "="); ok {
		prop.Type = strings.TrimSpace(typ)
		prop.Default = strings.TrimSpace(def)
		prop.HasDefault = true
	} else {
		prop.Type = strings.TrimSpace(rest)
		prop.Default = "None"
	}
	if prop.Type == "" {
		return PropSpec{}, diagnostics.Syntax("PROP_MALFORMED", file, originalLine, 0,
			"prop declaration is missing a type", line)
	}
	return prop, nil
}

// rewriteBodyLine resolves @props references against the declared props
// block name.
func rewriteBodyLine(file string, line string, spec *ComponentSpec, originalLine int) (string, error) {
	if strings.Contains(line, "@props") && spec.PropsName != "props" {
		return "", diagnostics.Structure("PROPS_NAME_MISMATCH", file, originalLine,
			fmt.Sprintf("cannot use @props when the props block is named @%s", spec.PropsName))
	}
	if strings.Contains(line, "@props") && !spec.HasPropsBlock {
		return "", diagnostics.Structure("PROPS_UNDECLARED", file, originalLine,
			"cannot use @props when no @props block is defined")
	}
	if !spec.HasPropsBlock {
		wordRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(spec.PropsName) + `\b`)
		if wordRe.MatchString(line) {
			return "", diagnostics.Structure("PROPS_UNDECLARED", file, originalLine,
				fmt.Sprintf("cannot access %q when no @%s block is defined", spec.PropsName, spec.PropsName))
		}
	}
	if spec.HasPropsBlock {
		line = strings.ReplaceAll(line, "@"+spec.PropsName, spec.PropsName)
	}
	return line, nil
}

func processContextBlock(file string, block Block) (ContextBinding, error) {
	binding := ContextBinding{
		ContextRef:  strings.TrimSpace(block.Args),
		WrapperName: block.WrapperName,
		StartLine:   block.StartLine,
	}
	if binding.WrapperName == "" {
		return ContextBinding{}, diagnostics.Structure("CONTEXT_NO_WRAPPER", file, block.StartLine,
			"context block is missing a wrapper name (e.g. @MyApp)")
	}
	if binding.ContextRef == "" {
		return ContextBinding{}, diagnostics.Structure("CONTEXT_NO_REF", file, block.StartLine,
			"context block is missing its context reference (e.g. @context(ThemeContext))")
	}

	for _, line := range dedent(block.Content) {
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, "@value ") {
			continue
		}
		name, expr, ok := strings.Cut(stripped[len("@value "):], "=")
		if ok {
			binding.ValueName = strings.TrimSpace(name)
			binding.ValueExpr = strings.TrimSpace(expr)
		}
	}
	if binding.ValueExpr == "" {
		return ContextBinding{}, diagnostics.Structure("CONTEXT_NO_VALUE", file, block.StartLine,
			"context block is missing a @value declaration")
	}
	return binding, nil
}

func parseStyleBlock(block Block) *StyleSpec {
	spec := &StyleSpec{Scope: "scoped", Language: "css", Text: strings.TrimSpace(block.Content)}
	for _, part := range splitTopLevelCommas(block.Args) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch strings.TrimSpace(key) {
		case "src":
			spec.Src = value
		case "name":
			spec.Name = value
		case "scope":
			spec.Scope = value
		case "lang":
			spec.Language = value
		}
	}
	return spec
}

// expandInlineTemplates replaces @t{...} blocks and @: tag shorthands inside
// logic with the compiled expression text. Expansion recurses through the
// expander, bounded by the source size.
func expandInlineTemplates(file string, content string, baseLine int, expand InlineExpander) (string, error) {
	if expand == nil {
		return content, nil
	}
	var out strings.Builder
	pos := 0
	for pos < len(content) {
		tIdx := indexFrom(content, "@t{", pos)
		tagIdx := indexFrom(content, "@:", pos)
		if tIdx < 0 && tagIdx < 0 {
			out.WriteString(content[pos:])
			break
		}

		if tIdx >= 0 && (tagIdx < 0 || tIdx < tagIdx) {
			out.WriteString(content[pos:tIdx])
			open := tIdx + len("@t")
			end, ok := matchDelims(content, open, '{', '}')
			if !ok {
				return "", diagnostics.Syntax("INLINE_UNCLOSED", file, baseLine+lineAt(content, tIdx)-1, 0,
					"unterminated inline template block @t{", excerptAt(content, tIdx))
			}
			compiled, err := expand(content[open+1:end], baseLine+lineAt(content, open)-1)
			if err != nil {
				return "", err
			}
			out.WriteString(compiled)
			pos = end + 1
			continue
		}

		out.WriteString(content[pos:tagIdx])
		cur := skipSpaces(content, tagIdx+2)
		if cur >= len(content) || content[cur] != '<' {
			out.WriteString(content[tagIdx:cur])
			pos = cur
			continue
		}
		end := findInlineTagEnd(content, cur)
		if end < 0 {
			return "", diagnostics.Syntax("INLINE_UNCLOSED", file, baseLine+lineAt(content, tagIdx)-1, 0,
				"unterminated inline template tag after @:", excerptAt(content, tagIdx))
		}
		compiled, err := expand(content[cur:end], baseLine+lineAt(content, cur)-1)
		if err != nil {
			return "", err
		}
		out.WriteString(compiled)
		pos = end
	}
	return out.String(), nil
}

// findInlineTagEnd scans one balanced tag starting at '<', tracking nesting,
// string literals, @{ } expressions, comments and self-closing tags.
func findInlineTagEnd(content string, start int) int {
	pos := start
	depth := 0
	quote := byte(0)
	for pos < len(content) {
		ch := content[pos]
		if quote != 0 {
			if ch == quote && content[pos-1] != '\\' {
				quote = 0
			}
			pos++
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			pos++
		case ch == '@' && pos+1 < len(content) && content[pos+1] == '{':
			end, ok := matchDelims(content, pos+1, '{', '}')
			if !ok {
				return -1
			}
			pos = end + 1
		case strings.HasPrefix(content[pos:], "<!--"):
			end := indexFrom(content, "-->", pos+4)
			if end < 0 {
				return -1
			}
			pos = end + 3
		case strings.HasPrefix(content[pos:], "</"):
			depth--
			end := indexFrom(content, ">", pos)
			if end < 0 {
				return -1
			}
			pos = end + 1
			if depth == 0 {
				return pos
			}
		case ch == '<':
			depth++
			pos++
		case ch == '>' && pos > 0 && content[pos-1] == '/':
			depth--
			pos++
			if depth == 0 {
				return pos
			}
		default:
			pos++
		}
	}
	return -1
}

func indexFrom(s string, sub string, from int) int {
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return idx + from
}

// dedent strips the common leading whitespace shared by all non-empty lines.
func dedent(content string) []string {
	lines := strings.Split(content, "\n")
	margin := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= margin && strings.TrimLeft(line[:margin], " \t") == "" {
			out[i] = line[margin:]
		} else {
			out[i] = line
		}
	}
	return out
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	quote := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote && s[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(parts) > 0 {
		parts = append(parts, rest)
	}
	return parts
}
