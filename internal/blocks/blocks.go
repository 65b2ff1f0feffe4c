package blocks

import (
	"fmt"
	"strings"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

// Kind names a recognized top-level block.
type Kind string

const (
	KindComponent Kind = "component"
	KindPage      Kind = "page"
	KindProps     Kind = "props"
	KindTemplate  Kind = "template"
	KindStyle     Kind = "style"
	KindContext   Kind = "context"
)

// reserved maps block identifiers to kinds. "ptml" is the historical name
// for the template block and remains accepted.
var reserved = map[string]Kind{
	"component": KindComponent,
	"page":      KindPage,
	"template":  KindTemplate,
	"ptml":      KindTemplate,
	"style":     KindStyle,
	"context":   KindContext,
}

// Block is one named top-level section of a source file.
type Block struct {
	Kind      Kind
	Name      string // identifier as written; differs from Kind for custom props blocks
	Args      string // raw argument text without surrounding parens
	Content   string
	StartLine int

	// WrapperName is set for context blocks only: the @Name following
	// the @context(...) argument list.
	WrapperName string
}

// ParseResult is the outcome of splitting a source file into blocks.
type ParseResult struct {
	Blocks        map[Kind]Block
	PropsName     string // identifier of the props block, "" when absent
	ContextBlocks []Block
}

// Parse splits raw source into named top-level blocks. The scan recognizes
// '@' ident ['(' args ')'] ws '{' content '}', matching braces while
// respecting string literals and backslash escapes so nested directive
// blocks inside content do not terminate early.
func Parse(file string, source string) (ParseResult, error) {
	result := ParseResult{Blocks: map[Kind]Block{}}

	pos := 0
	lastBlockEnd := 0
	for pos < len(source) {
		at := strings.IndexByte(source[pos:], '@')
		if at < 0 {
			break
		}
		at += pos
		pos = at + 1

		start := pos
		for pos < len(source) && isWordByte(source[pos]) {
			pos++
		}
		name := source[start:pos]
		if name == "" {
			continue
		}

		kind, isReserved := reserved[name]

		if kind == KindContext {
			// Context blocks must be introduced by the '<--' wrapper marker.
			preceding := source[lastBlockEnd:at]
			if !strings.Contains(preceding, "<-") {
				return ParseResult{}, diagnostics.Structure("BLOCK_CONTEXT_MARKER", file, lineAt(source, at),
					"@context block must be preceded by '<--'")
			}
		}

		pos = skipSpaces(source, pos)

		args := ""
		if pos < len(source) && source[pos] == '(' {
			end, ok := matchDelims(source, pos, '(', ')')
			if !ok {
				return ParseResult{}, diagnostics.Syntax("BLOCK_UNCLOSED_ARGS", file, lineAt(source, pos), 0,
					fmt.Sprintf("unterminated argument list for @%s", name), excerptAt(source, pos))
			}
			args = strings.TrimSpace(source[pos+1 : end])
			pos = skipSpaces(source, end+1)
		}

		wrapper := ""
		if kind == KindContext && pos < len(source) && source[pos] == '@' {
			pos++
			start := pos
			for pos < len(source) && isWordByte(source[pos]) {
				pos++
			}
			wrapper = source[start:pos]
			pos = skipSpaces(source, pos)
		}

		if pos >= len(source) || source[pos] != '{' {
			// @component("Name") and @page("/uri") may omit a logic body.
			// Anything else without a brace body is stray text, not a block.
			if kind == KindComponent || kind == KindPage {
				if _, dup := result.Blocks[kind]; dup {
					return ParseResult{}, diagnostics.Structure("BLOCK_DUPLICATE", file, lineAt(source, at),
						fmt.Sprintf("duplicate @%s block", name))
				}
				result.Blocks[kind] = Block{
					Kind:      kind,
					Name:      name,
					Args:      args,
					StartLine: lineAt(source, at),
				}
				lastBlockEnd = pos
			}
			continue
		}

		end, ok := matchDelims(source, pos, '{', '}')
		if !ok {
			return ParseResult{}, diagnostics.Syntax("BLOCK_UNCLOSED_BRACE", file, lineAt(source, pos), 0,
				fmt.Sprintf("unterminated @%s block", name), excerptAt(source, pos))
		}

		block := Block{
			Kind:        kind,
			Name:        name,
			Args:        args,
			Content:     source[pos+1 : end],
			StartLine:   lineAt(source, pos),
			WrapperName: wrapper,
		}
		if !isReserved {
			block.Kind = KindProps
		}

		if block.Kind == KindContext {
			result.ContextBlocks = append(result.ContextBlocks, block)
		} else {
			if _, dup := result.Blocks[block.Kind]; dup {
				return ParseResult{}, diagnostics.Structure("BLOCK_DUPLICATE", file, block.StartLine,
					fmt.Sprintf("duplicate @%s block", name))
			}
			result.Blocks[block.Kind] = block
			if block.Kind == KindProps {
				result.PropsName = name
			}
		}

		pos = end + 1
		lastBlockEnd = pos
	}

	if err := validateStructure(file, result); err != nil {
		return ParseResult{}, err
	}
	return result, nil
}

func validateStructure(file string, r ParseResult) error {
	_, hasComponent := r.Blocks[KindComponent]
	_, hasPage := r.Blocks[KindPage]
	if hasComponent && hasPage {
		return diagnostics.Structure("BLOCK_COMPONENT_AND_PAGE", file, 0,
			"a file cannot contain both @component and @page blocks")
	}
	if !hasComponent && !hasPage {
		return diagnostics.Structure("BLOCK_NO_COMPONENT", file, 0,
			"file must contain either a @component or @page block")
	}
	if _, ok := r.Blocks[KindTemplate]; !ok {
		return diagnostics.Structure("BLOCK_NO_TEMPLATE", file, 0,
			"file must contain a @template block")
	}
	return nil
}

// matchDelims returns the index of the delimiter closing source[open],
// counting depth while skipping string literals and backslash escapes. An
// apostrophe in template prose reads as an unterminated literal, so a failed
// quote-aware scan retries with plain depth counting before giving up.
func matchDelims(source string, open int, openCh byte, closeCh byte) (int, bool) {
	if end, ok := scanDelims(source, open, openCh, closeCh, true); ok {
		return end, true
	}
	return scanDelims(source, open, openCh, closeCh, false)
}

func scanDelims(source string, open int, openCh byte, closeCh byte, quoteAware bool) (int, bool) {
	depth := 0
	quote := byte(0)
	for i := open; i < len(source); i++ {
		ch := source[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			if quoteAware {
				quote = ch
			}
		case '\\':
			i++
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func skipSpaces(source string, pos int) int {
	for pos < len(source) {
		ch := source[pos]
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			break
		}
		pos++
	}
	return pos
}

func isWordByte(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(source string, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return strings.Count(source[:offset], "\n") + 1
}

func excerptAt(source string, offset int) string {
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[offset:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += offset
	}
	excerpt := strings.TrimSpace(source[start:end])
	if len(excerpt) > 60 {
		excerpt = excerpt[:60] + "..."
	}
	return excerpt
}
