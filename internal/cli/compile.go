package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/riky126/ptmlc/internal/compiler"
	"github.com/riky126/ptmlc/internal/config"
	"github.com/riky126/ptmlc/internal/fswalk"
	"github.com/riky126/ptmlc/internal/report"
)

func writeReports(cfg config.Config, summary report.Summary, files []report.FileItem) error {
	if cfg.ReportJSON != "" {
		if err := report.WriteJSON(cfg.ReportJSON, report.NewJSONReport(summary, files)); err != nil {
			return err
		}
	}
	if cfg.ReportCSV != "" {
		if err := report.WriteCSV(cfg.ReportCSV, files); err != nil {
			return err
		}
	}
	return nil
}

func runCompile(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	files, err := fswalk.DiscoverSources(cfg.In, cfg.Glob)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files matched %q under %q", cfg.Glob, cfg.In)
	}

	// Each file compiles independently, so the batch fans out across workers.
	// Results land in a slot per input index, keeping report order stable
	// whatever order workers finish in.
	fileItems := make([]report.FileItem, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			item := compileOne(cfg, f)
			fileItems[i] = item

			if cfg.Strict {
				switch item.Status {
				case report.StatusCompileError, report.StatusWriteError:
					return newExitError(ExitCodeCompileFailed,
						fmt.Errorf("compile failed on %s", f.RelPath))
				case report.StatusWarnings:
					return newExitError(ExitCodeValidationFailed,
						fmt.Errorf("validation failed on %s", f.RelPath))
				}
			}
			return nil
		})
	}
	strictErr := g.Wait()

	var compiled, compileFailed, withWarnings int
	for _, item := range fileItems {
		switch item.Status {
		case report.StatusCompiled:
			compiled++
		case report.StatusWarnings:
			compiled++
			withWarnings++
		case report.StatusCompileError, report.StatusWriteError:
			compileFailed++
		}
	}

	slog.Info(
		"compile summary",
		"discovered", len(files),
		"compiled", compiled,
		"compile_failed", compileFailed,
		"with_warnings", withWarnings,
		"input", filepath.Clean(cfg.In),
		"output", filepath.Clean(cfg.Out),
	)

	summary := report.Summary{
		Discovered:    len(files),
		Compiled:      compiled,
		CompileFailed: compileFailed,
		WithWarnings:  withWarnings,
	}

	// In strict mode workers bail early, so drop the empty slots of files
	// that never ran before reporting.
	reported := fileItems[:0:0]
	for _, item := range fileItems {
		if item.File != "" {
			reported = append(reported, item)
		}
	}
	if err := writeReports(cfg, summary, reported); err != nil {
		return fmt.Errorf("write report artifacts: %w", err)
	}
	if cfg.ReportJSON != "" || cfg.ReportCSV != "" {
		slog.Info("reports written", "json", cfg.ReportJSON, "csv", cfg.ReportCSV)
	}

	if strictErr != nil {
		return strictErr
	}
	if compileFailed > 0 {
		return newExitError(ExitCodeCompileFailed,
			fmt.Errorf("compilation finished with %d failed files", compileFailed))
	}
	return nil
}

// compileOne compiles a single source file and writes its unit. All failure
// modes land in the returned report item; nothing here aborts the batch.
func compileOne(cfg config.Config, f fswalk.SourceFile) report.FileItem {
	item := report.FileItem{File: f.RelPath}

	raw, err := os.ReadFile(f.AbsPath)
	if err != nil {
		item.Status = report.StatusCompileError
		item.Diagnostics = []report.DiagnosticItem{report.ToDiagnosticItem(f.RelPath, err)}
		slog.Warn("read failed", "file", f.RelPath, "error", err)
		return item
	}

	result, err := compiler.Compile(string(raw), f.RelPath, compiler.Options{
		RuntimeModule:    cfg.RuntimeModule,
		EmitLineComments: cfg.LineComments,
	})
	if err != nil {
		item.Status = report.StatusCompileError
		item.Diagnostics = []report.DiagnosticItem{report.ToDiagnosticItem(f.RelPath, err)}
		slog.Warn("compile failed", "file", f.RelPath, "error", err)
		return item
	}

	item.Component = result.Unit.ComponentName
	item.Route = result.Unit.RouteURI
	item.FeaturesDetected = result.Unit.Features
	item.HoistedConstants = result.Unit.ConstantCount

	outPath := fswalk.MirrorOutputPath(cfg.Out, f.RelPath, cfg.Ext)
	if err := fswalk.EnsureParentDir(outPath); err != nil {
		item.Status = report.StatusWriteError
		item.Diagnostics = []report.DiagnosticItem{report.ToDiagnosticItem(f.RelPath, err)}
		return item
	}
	if err := os.WriteFile(outPath, []byte(result.Unit.Source), 0o644); err != nil {
		item.Status = report.StatusWriteError
		item.Diagnostics = []report.DiagnosticItem{report.ToDiagnosticItem(f.RelPath, err)}
		return item
	}
	item.OutputPath = outPath

	if len(result.Warnings) > 0 {
		item.Status = report.StatusWarnings
		for _, w := range result.Warnings {
			item.Diagnostics = append(item.Diagnostics, report.FromDiagnostic(w))
		}
		slog.Warn("compiled with warnings", "file", f.RelPath, "warnings", len(result.Warnings))
	} else {
		item.Status = report.StatusCompiled
	}
	slog.Debug("compiled", "file", f.RelPath, "component", item.Component, "output", outPath)
	return item
}
