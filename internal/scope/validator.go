// Package scope checks the generated unit for references to names that no
// import, prop, assignment, or parameter ever defines. The scan is lexical:
// it collects every binding anywhere in the unit first, then flags loads that
// match nothing. That errs toward silence on shadowing games, which is the
// right trade for a validator whose findings are advisory.
package scope

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

// keywords of the host language, never reported.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// builtins the host runtime provides implicitly, plus the ambient globals a
// browser-hosted unit can reach.
var builtins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true,
	"callable": true, "chr": true, "dict": true, "dir": true, "divmod": true,
	"enumerate": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "hasattr": true, "hash": true,
	"hex": true, "id": true, "int": true, "isinstance": true, "issubclass": true,
	"iter": true, "len": true, "list": true, "map": true, "max": true,
	"min": true, "next": true, "object": true, "oct": true, "ord": true,
	"pow": true, "print": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "slice": true, "sorted": true,
	"str": true, "sum": true, "tuple": true, "type": true, "zip": true,
	"Exception": true, "ValueError": true, "TypeError": true, "KeyError": true,
	"IndexError": true, "AttributeError": true, "StopIteration": true,
	"console": true, "window": true, "document": true, "js": true,
}

var (
	identRe      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	importFromRe = regexp.MustCompile(`^\s*from\s+[\w.]+\s+import\s+(.+)$`)
	importRe     = regexp.MustCompile(`^\s*import\s+(.+)$`)
	defRe        = regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	classRe      = regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`)
	assignRe     = regexp.MustCompile(`^\s*\(?\s*([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s*\)?\s*(?::[^=]+)?(?:[-+*/]?=)[^=]`)
	lambdaRe     = regexp.MustCompile(`\blambda\b([^:]*):`)
	forTargetRe  = regexp.MustCompile(`\bfor\s+([A-Za-z_][\w,\s]*?)\s+in\b`)
	exceptAsRe   = regexp.MustCompile(`\bexcept\b[^:]*\bas\s+([A-Za-z_]\w*)`)
	withAsRe     = regexp.MustCompile(`\bas\s+([A-Za-z_]\w*)`)
)

// Validate scans generated unit source and returns one diagnostic per
// undefined name occurrence, with lines mapped back to the original source
// through lineMap. Findings are KindName and never abort compilation on
// their own.
func Validate(file, source string, lineMap map[int]int, componentName, propsName string) []diagnostics.Diagnostic {
	lines := strings.Split(source, "\n")
	defined := collectBindings(lines)
	defined[componentName] = true
	defined[propsName] = true

	var found []diagnostics.Diagnostic
	seen := map[string]bool{}
	inString := byte(0)
	for i, raw := range lines {
		line, next := stripStringsAndComments(raw, inString)
		inString = next
		if importFromRe.MatchString(line) || importRe.MatchString(line) {
			continue
		}

		if m := assignRe.FindStringSubmatch(line); m != nil {
			for _, target := range strings.Split(m[1], ",") {
				if name := strings.TrimSpace(target); name == propsName {
					orig := originalLine(lineMap, i+1)
					found = append(found, diagnostics.New(diagnostics.KindName, "SCOPE_PROPS_SHADOWED", file, orig, 0,
						fmt.Sprintf("%q is already bound as the props parameter of %s", propsName, componentName), strings.TrimSpace(raw)))
				}
			}
		}

		for _, loc := range identRe.FindAllStringIndex(line, -1) {
			name := line[loc[0]:loc[1]]
			if keywords[name] || builtins[name] || defined[name] {
				continue
			}
			if !isLoad(line, loc[0], loc[1]) {
				continue
			}
			orig := originalLine(lineMap, i+1)
			key := fmt.Sprintf("%s:%d", name, orig)
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, diagnostics.UndefinedName(file, orig, name, strings.TrimSpace(raw)))
		}
	}
	return found
}

// collectBindings gathers every name the unit binds, in any scope.
func collectBindings(lines []string) map[string]bool {
	defined := map[string]bool{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && name != "_" && identRe.MatchString(name) {
			defined[name] = true
		}
	}
	inString := byte(0)
	for _, raw := range lines {
		line, next := stripStringsAndComments(raw, inString)
		inString = next

		if m := importFromRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				add(importedName(part))
			}
			continue
		}
		if m := importRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				add(importedName(part))
			}
			continue
		}
		if m := defRe.FindStringSubmatch(line); m != nil {
			add(m[1])
			addParams(add, m[2])
		}
		if m := classRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		if m := assignRe.FindStringSubmatch(line); m != nil {
			for _, target := range strings.Split(m[1], ",") {
				add(target)
			}
		}
		for _, m := range lambdaRe.FindAllStringSubmatch(line, -1) {
			addParams(add, m[1])
		}
		for _, m := range forTargetRe.FindAllStringSubmatch(line, -1) {
			for _, target := range strings.Split(m[1], ",") {
				add(strings.Trim(strings.TrimSpace(target), "()"))
			}
		}
		if m := exceptAsRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		if strings.Contains(line, "with ") {
			for _, m := range withAsRe.FindAllStringSubmatch(line, -1) {
				add(m[1])
			}
		}
	}
	return defined
}

// importedName extracts the bound name from one import clause: the alias if
// present, else the first path segment.
func importedName(clause string) string {
	clause = strings.TrimSpace(clause)
	if idx := strings.Index(clause, " as "); idx >= 0 {
		return strings.TrimSpace(clause[idx+4:])
	}
	if idx := strings.IndexByte(clause, '.'); idx >= 0 {
		clause = clause[:idx]
	}
	return clause
}

// addParams splits a parameter list, dropping defaults, annotations, and
// star markers.
func addParams(add func(string), params string) {
	for _, param := range strings.Split(params, ",") {
		param = strings.TrimSpace(param)
		param = strings.TrimLeft(param, "*")
		if idx := strings.IndexAny(param, ":="); idx >= 0 {
			param = param[:idx]
		}
		add(param)
	}
}

// isLoad reports whether the identifier at [start,end) reads a value, as
// opposed to naming an attribute, a keyword argument, or a binding.
func isLoad(line string, start, end int) bool {
	before := strings.TrimRight(line[:start], " \t")
	if strings.HasSuffix(before, ".") {
		return false
	}
	if end < len(line) && (line[end] == '"' || line[end] == '\'') {
		// String literal prefix such as f"..." or r'...'.
		return false
	}
	after := strings.TrimLeft(line[end:], " \t")
	if strings.HasPrefix(after, "=") && !strings.HasPrefix(after, "==") {
		// Keyword argument inside a call, or an assignment target.
		return false
	}
	if strings.HasSuffix(before, "def ") || strings.HasSuffix(before, "class ") ||
		strings.HasSuffix(before, "as ") || strings.HasSuffix(before, "lambda ") {
		return false
	}
	return true
}

// stripStringsAndComments blanks out string literals and trailing comments so
// identifier matching only sees code. inString carries the quote byte of an
// open triple-quoted literal across lines (0 when closed).
func stripStringsAndComments(line string, inString byte) (string, byte) {
	var sb strings.Builder
	i := 0
	if inString != 0 {
		closer := strings.Repeat(string(inString), 3)
		idx := strings.Index(line, closer)
		if idx < 0 {
			return "", inString
		}
		sb.WriteString(strings.Repeat(" ", idx+3))
		i = idx + 3
		inString = 0
	}
	for i < len(line) {
		c := line[i]
		switch {
		case c == '#':
			return sb.String(), 0
		case c == '"' || c == '\'':
			if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				closer := strings.Repeat(string(c), 3)
				idx := strings.Index(line[i+3:], closer)
				if idx < 0 {
					return sb.String(), c
				}
				skip := 3 + idx + 3
				sb.WriteString(strings.Repeat(" ", skip))
				i += skip
				continue
			}
			j := i + 1
			for j < len(line) {
				if line[j] == '\\' {
					j += 2
					continue
				}
				if line[j] == c {
					break
				}
				j++
			}
			if j >= len(line) {
				return sb.String(), 0
			}
			sb.WriteString(strings.Repeat(" ", j-i+1))
			i = j + 1
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), 0
}

func originalLine(lineMap map[int]int, generated int) int {
	if orig, ok := lineMap[generated]; ok {
		return orig
	}
	return generated
}
