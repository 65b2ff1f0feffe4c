package cli

import (
	"github.com/riky126/ptmlc/internal/config"
	"github.com/riky126/ptmlc/internal/logging"
	"github.com/spf13/cobra"
)

// NewRootCmd wires CLI flags to configuration and executes compilation.
func NewRootCmd() *cobra.Command {
	cfg := config.Default()
	verbose := false

	cmd := &cobra.Command{
		Use:           "ptmlc",
		Short:         "Compile PTML component files to runtime units",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Configure(verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.In, "in", "", "Input root directory containing .ptml sources")
	cmd.Flags().StringVar(&cfg.Out, "out", "", "Output root directory for compiled units")
	cmd.Flags().StringVar(&cfg.Glob, "glob", cfg.Glob, "Glob pattern relative to --in (supports **)")
	cmd.Flags().StringVar(&cfg.Ext, "ext", cfg.Ext, "Output file extension (example: .py)")
	cmd.Flags().IntVar(&cfg.Jobs, "jobs", cfg.Jobs, "Number of concurrent compile workers (0 = all CPUs)")
	cmd.Flags().BoolVar(&cfg.Strict, "strict", cfg.Strict, "Stop at the first failure and fail on warnings")
	cmd.Flags().StringVar(&cfg.RuntimeModule, "runtime-module", cfg.RuntimeModule, "Runtime import path for generated units")
	cmd.Flags().BoolVar(&cfg.LineComments, "line-comments", cfg.LineComments, "Append source line markers to generated statements")
	cmd.Flags().StringVar(&cfg.ReportJSON, "report-json", "", "Optional JSON report output path")
	cmd.Flags().StringVar(&cfg.ReportCSV, "report-csv", "", "Optional CSV report output path")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
