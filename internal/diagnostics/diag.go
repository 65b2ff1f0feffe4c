package diagnostics

import "fmt"

// Kind classifies a diagnostic by the contract it violates.
type Kind string

const (
	KindSyntax    Kind = "syntax"
	KindStructure Kind = "structure"
	KindName      Kind = "name"
	KindOption    Kind = "option"
)

// Diagnostic is a structured compile error with source metadata.
type Diagnostic struct {
	Kind    Kind
	Code    string
	Message string
	File    string
	Line    int
	Column  int
	Snippet string
}

// Error implements the error interface with location and error code formatting.
func (d Diagnostic) Error() string {
	location := d.File
	if d.Line > 0 {
		if d.Column > 0 {
			location = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
		} else {
			location = fmt.Sprintf("%s:%d", d.File, d.Line)
		}
	}
	if d.Code == "" {
		return fmt.Sprintf("%s: %s", location, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", location, d.Code, d.Message)
}

// Fatal reports whether this diagnostic aborts compilation of its file.
// Undefined-name findings are collected without aborting.
func (d Diagnostic) Fatal() bool {
	return d.Kind != KindName
}

// New constructs a Diagnostic value.
func New(kind Kind, code string, file string, line int, column int, msg string, snippet string) Diagnostic {
	return Diagnostic{
		Kind:    kind,
		Code:    code,
		Message: msg,
		File:    file,
		Line:    line,
		Column:  column,
		Snippet: snippet,
	}
}

// Syntax builds a syntax-kind diagnostic.
func Syntax(code string, file string, line int, column int, msg string, snippet string) Diagnostic {
	return New(KindSyntax, code, file, line, column, msg, snippet)
}

// Structure builds a structure-kind diagnostic.
func Structure(code string, file string, line int, msg string) Diagnostic {
	return New(KindStructure, code, file, line, 0, msg, "")
}

// UndefinedName builds a name-kind diagnostic for one unresolved identifier.
func UndefinedName(file string, line int, name string, snippet string) Diagnostic {
	return New(KindName, "NAME_UNDEFINED", file, line, 0,
		fmt.Sprintf("undefined name %q", name), snippet)
}

// Option builds an option-kind diagnostic for an invalid compile option.
func Option(file string, msg string) Diagnostic {
	return New(KindOption, "OPTION_INVALID", file, 0, 0, msg, "")
}
