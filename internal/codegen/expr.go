package codegen

import (
	"strconv"
	"strings"
)

// Expr is one node of the structured output tree. The tree is built by the
// generator and serialized exactly once by the assembler, which keeps
// hoisting and dedup tree-level transforms instead of string surgery.
type Expr interface {
	write(sb *strings.Builder)
}

// Raw is a verbatim host-language expression.
type Raw struct {
	Code string
}

func (e Raw) write(sb *strings.Builder) { sb.WriteString(e.Code) }

// Str is a quoted host string literal.
type Str struct {
	Value string
}

func (e Str) write(sb *strings.Builder) { sb.WriteString(strconv.Quote(e.Value)) }

// FString is a host format-string literal with embedded {expr} fields.
type FString struct {
	Value string
}

func (e FString) write(sb *strings.Builder) {
	sb.WriteString("f")
	sb.WriteString(`"`)
	sb.WriteString(e.Value)
	sb.WriteString(`"`)
}

// List is an ordered list literal.
type List struct {
	Items []Expr
}

func (e List) write(sb *strings.Builder) {
	sb.WriteString("[")
	for i, item := range e.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		item.write(sb)
	}
	sb.WriteString("]")
}

// Pair is one key/value entry of a Dict.
type Pair struct {
	Key   string
	Value Expr
}

// Dict is a mapping literal preserving declaration order. Spread entries
// expand before keyed entries so explicit keys win.
type Dict struct {
	Spreads []string
	Pairs   []Pair
}

func (e Dict) write(sb *strings.Builder) {
	sb.WriteString("{")
	first := true
	for _, spread := range e.Spreads {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString("**")
		sb.WriteString(spread)
	}
	for _, pair := range e.Pairs {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(strconv.Quote(pair.Key))
		sb.WriteString(": ")
		pair.Value.write(sb)
	}
	sb.WriteString("}")
}

// KwArg is a keyword argument of a Call.
type KwArg struct {
	Name  string
	Value Expr
}

// Call is a host function call with positional and keyword arguments.
type Call struct {
	Fn     string
	Args   []Expr
	KwArgs []KwArg
}

func (e Call) write(sb *strings.Builder) {
	sb.WriteString(e.Fn)
	sb.WriteString("(")
	first := true
	for _, arg := range e.Args {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		arg.write(sb)
	}
	for _, kw := range e.KwArgs {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(kw.Name)
		sb.WriteString("=")
		kw.Value.write(sb)
	}
	sb.WriteString(")")
}

// Lambda is a deferred host expression.
type Lambda struct {
	Params string
	Body   Expr
}

func (e Lambda) write(sb *strings.Builder) {
	sb.WriteString("lambda")
	if e.Params != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Params)
	}
	sb.WriteString(": ")
	e.Body.write(sb)
}

// Tuple is a fixed-arity tuple literal.
type Tuple struct {
	Items []Expr
}

func (e Tuple) write(sb *strings.Builder) {
	sb.WriteString("(")
	for i, item := range e.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		item.write(sb)
	}
	sb.WriteString(")")
}

// ConstRef references a hoisted shared constant by name.
type ConstRef struct {
	Name string
}

func (e ConstRef) write(sb *strings.Builder) { sb.WriteString(e.Name) }

// Serialize renders an output tree to host source text.
func Serialize(e Expr) string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}
