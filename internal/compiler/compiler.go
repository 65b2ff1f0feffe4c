// Package compiler drives the full pipeline for one source file: block
// parsing, block processing, template compilation, unit assembly, and scope
// validation. Each call is independent; compiling one file never observes
// state from another.
package compiler

import (
	"fmt"
	"regexp"

	"github.com/riky126/ptmlc/internal/blocks"
	"github.com/riky126/ptmlc/internal/codegen"
	"github.com/riky126/ptmlc/internal/diagnostics"
	"github.com/riky126/ptmlc/internal/lexer"
	"github.com/riky126/ptmlc/internal/parser"
	"github.com/riky126/ptmlc/internal/scope"
)

// DefaultRuntimeModule is the import path generated units load the runtime
// from when no override is given.
const DefaultRuntimeModule = "metafor.runtime"

// Options tune a compile call. The zero value selects defaults.
type Options struct {
	// RuntimeModule overrides the runtime import path.
	RuntimeModule string

	// EmitLineComments appends source line markers to generated body
	// statements.
	EmitLineComments bool
}

// Result is a successful compile: the assembled unit plus any advisory
// findings from scope validation.
type Result struct {
	Unit     codegen.CompiledUnit
	Warnings []diagnostics.Diagnostic
}

var modulePathRe = regexp.MustCompile(`^[A-Za-z_]\w*(\.[A-Za-z_]\w*)*$`)

// Compile turns one source file into a generated unit. Syntax and structure
// problems abort with an error; undefined-name findings come back in
// Result.Warnings and leave the unit usable.
func Compile(source string, filename string, opts Options) (Result, error) {
	if opts.RuntimeModule == "" {
		opts.RuntimeModule = DefaultRuntimeModule
	}
	if !modulePathRe.MatchString(opts.RuntimeModule) {
		return Result{}, diagnostics.Option(filename,
			fmt.Sprintf("runtime module path %q is not a dotted identifier path", opts.RuntimeModule))
	}

	parsed, err := blocks.Parse(filename, source)
	if err != nil {
		return Result{}, err
	}

	gen := codegen.NewGenerator(filename)

	// Inline templates inside logic compile through the same generator, so
	// hoisted constants stay unique across the whole unit.
	expand := func(text string, baseLine int) (string, error) {
		expr, err := compileTemplate(gen, filename, text, baseLine)
		if err != nil {
			return "", err
		}
		return codegen.Serialize(expr), nil
	}

	spec, err := blocks.Process(filename, parsed, expand)
	if err != nil {
		return Result{}, err
	}

	body := codegen.Expr(codegen.Raw{Code: "None"})
	if spec.TemplateText != "" {
		body, err = compileTemplate(gen, filename, spec.TemplateText, spec.TemplateLine)
		if err != nil {
			return Result{}, err
		}
	}

	asm := codegen.Assembler{
		RuntimeModule:    opts.RuntimeModule,
		EmitLineComments: opts.EmitLineComments,
	}
	unit := asm.Assemble(spec, body, gen)

	warnings := scope.Validate(filename, unit.Source, unit.LineMap, spec.Name, spec.PropsName)
	return Result{Unit: unit, Warnings: warnings}, nil
}

func compileTemplate(gen *codegen.Generator, filename string, text string, baseLine int) (codegen.Expr, error) {
	tokens, err := lexer.Tokenize(filename, text, baseLine)
	if err != nil {
		return nil, err
	}
	root, err := parser.Parse(filename, tokens)
	if err != nil {
		return nil, err
	}
	return gen.Generate(root)
}
