package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultGlob      = "**/*.ptml"
	DefaultOutputExt = ".py"
)

// Config stores runtime options for one compile run.
type Config struct {
	In   string
	Out  string
	Glob string
	Ext  string

	ReportJSON string
	ReportCSV  string

	RuntimeModule string
	LineComments  bool

	Jobs   int
	Strict bool
}

// Default returns baseline configuration values used by CLI flags.
func Default() Config {
	return Config{
		Glob: DefaultGlob,
		Ext:  DefaultOutputExt,
		Jobs: 1,
	}
}

// Validate normalizes and checks the configuration before execution.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.In) == "" {
		return fmt.Errorf("--in is required")
	}
	if strings.TrimSpace(c.Out) == "" {
		return fmt.Errorf("--out is required")
	}

	if strings.TrimSpace(c.Glob) == "" {
		c.Glob = DefaultGlob
	}
	if strings.TrimSpace(c.Ext) == "" {
		c.Ext = DefaultOutputExt
	}
	if !strings.HasPrefix(c.Ext, ".") {
		return fmt.Errorf("--ext must start with '.', got %q", c.Ext)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("--jobs must be positive, got %d", c.Jobs)
	}
	if c.Jobs == 0 {
		c.Jobs = runtime.GOMAXPROCS(0)
	}

	c.In = filepath.Clean(c.In)
	c.Out = filepath.Clean(c.Out)

	info, err := os.Stat(c.In)
	if err != nil {
		return fmt.Errorf("input path %q is not accessible: %w", c.In, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %q must be a directory", c.In)
	}

	return nil
}
