package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/riky126/ptmlc/internal/diagnostics"
)

// FileStatus is the per-file processing status used in reports.
type FileStatus string

const (
	StatusCompiled     FileStatus = "compiled"
	StatusWarnings     FileStatus = "compiled_with_warnings"
	StatusCompileError FileStatus = "failed_compile"
	StatusWriteError   FileStatus = "failed_write"
)

// DiagnosticItem is the report-friendly representation of one diagnostic.
type DiagnosticItem struct {
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// FileItem describes compilation of one source file.
type FileItem struct {
	File             string           `json:"file"`
	Status           FileStatus       `json:"status"`
	Component        string           `json:"component,omitempty"`
	Route            string           `json:"route,omitempty"`
	Diagnostics      []DiagnosticItem `json:"diagnostics,omitempty"`
	FeaturesDetected []string         `json:"features_detected,omitempty"`
	HoistedConstants int              `json:"hoisted_constants"`
	OutputPath       string           `json:"output_path,omitempty"`
}

// Summary contains aggregate counters for a compile run.
type Summary struct {
	Discovered    int `json:"discovered"`
	Compiled      int `json:"compiled"`
	CompileFailed int `json:"compile_failed"`
	WithWarnings  int `json:"with_warnings"`
}

// JSONReport is the structured report persisted by --report-json.
type JSONReport struct {
	GeneratedAt string     `json:"generated_at"`
	Summary     Summary    `json:"summary"`
	Files       []FileItem `json:"files"`
}

// NewJSONReport builds a report payload with RFC3339 generation timestamp.
func NewJSONReport(summary Summary, files []FileItem) JSONReport {
	return JSONReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Summary:     summary,
		Files:       files,
	}
}

// ToDiagnosticItem converts an error to a typed report diagnostic.
func ToDiagnosticItem(file string, err error) DiagnosticItem {
	if d, ok := err.(diagnostics.Diagnostic); ok {
		return FromDiagnostic(d)
	}
	return DiagnosticItem{
		Code:    "ERROR",
		Message: err.Error(),
		File:    file,
	}
}

// FromDiagnostic flattens a diagnostic into its report form.
func FromDiagnostic(d diagnostics.Diagnostic) DiagnosticItem {
	return DiagnosticItem{
		Kind:    string(d.Kind),
		Code:    d.Code,
		Message: d.Message,
		File:    d.File,
		Line:    d.Line,
		Column:  d.Column,
		Snippet: d.Snippet,
	}
}

// WriteJSON writes the full JSON report if path is non-empty.
func WriteJSON(path string, report JSONReport) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return os.WriteFile(path, raw, 0o644)
}

func intToString(v int) string {
	return strconv.Itoa(v)
}

// WriteCSV writes the flattened CSV report if path is non-empty.
func WriteCSV(path string, files []FileItem) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	defer w.Flush()

	header := []string{
		"file",
		"status",
		"component",
		"route",
		"diagnostics_count",
		"features_count",
		"hoisted_constants",
		"output_path",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	copied := append([]FileItem(nil), files...)
	sort.Slice(copied, func(i, j int) bool { return copied[i].File < copied[j].File })

	for _, item := range copied {
		row := []string{
			item.File,
			string(item.Status),
			item.Component,
			item.Route,
			intToString(len(item.Diagnostics)),
			intToString(len(item.FeaturesDetected)),
			intToString(item.HoistedConstants),
			item.OutputPath,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
