package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riky126/ptmlc/internal/config"
	"github.com/riky126/ptmlc/internal/report"
)

const cardSource = `@component("Card")

@state {
    @prop title: str = "Untitled"
    @prop count: int = 0

    def label():
        return title
}

@template {
    <div class="card">
        <h1>@{title}</h1>
        <span>@{count}</span>
    </div>
}
`

const homeSource = `@page("/home", "Home")

@deps {
    from components.card import Card
}

@template {
    <main>
        <Card title="Welcome" />
    </main>
}
`

func mustWrite(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestRunCompileEndToEndAndReports(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	mustWrite(t, filepath.Join(in, "card.ptml"), cardSource)
	mustWrite(t, filepath.Join(in, "pages", "home.ptml"), homeSource)

	cfg := config.Default()
	cfg.In = in
	cfg.Out = out
	cfg.ReportJSON = filepath.Join(root, "report", "report.json")
	cfg.ReportCSV = filepath.Join(root, "report", "report.csv")

	require.NoError(t, runCompile(context.Background(), cfg))

	assertExists(t, filepath.Join(out, "card.py"))
	assertExists(t, filepath.Join(out, "pages", "home.py"))
	assertExists(t, cfg.ReportJSON)
	assertExists(t, cfg.ReportCSV)

	card, err := os.ReadFile(filepath.Join(out, "card.py"))
	require.NoError(t, err)
	require.Contains(t, string(card), "def Card(state):")
	require.Contains(t, string(card), `title = state.get("title", "Untitled")`)
	require.Contains(t, string(card), "Card = defineComponent(Card)")

	home, err := os.ReadFile(filepath.Join(out, "pages", "home.py"))
	require.NoError(t, err)
	require.Contains(t, string(home), "# route: /home")
	require.Contains(t, string(home), `Home = definePage("/home", Home)`)
	require.Contains(t, string(home), `invokeComponent(Card,`)

	raw, err := os.ReadFile(cfg.ReportJSON)
	require.NoError(t, err)
	var rep report.JSONReport
	require.NoError(t, json.Unmarshal(raw, &rep))
	require.Equal(t, 2, rep.Summary.Discovered)
	require.Equal(t, 0, rep.Summary.CompileFailed)
	require.Len(t, rep.Files, 2)
	require.Equal(t, "card.ptml", rep.Files[0].File)
}

func TestRunCompileFailureReturnsExitCode2(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	mustWrite(t, filepath.Join(in, "broken.ptml"), `@component("Broken")

@template {
    <div>
}
`)
	mustWrite(t, filepath.Join(in, "card.ptml"), cardSource)

	cfg := config.Default()
	cfg.In = in
	cfg.Out = out

	err := runCompile(context.Background(), cfg)
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, ExitCodeCompileFailed, exitErr.Code)

	// One failure does not stop the batch outside strict mode.
	assertExists(t, filepath.Join(out, "card.py"))
}

func TestRunCompileStrictWarningsReturnExitCode3(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	mustWrite(t, filepath.Join(in, "card.ptml"), `@component("Card")

@template {
    <div>@{missing_name}</div>
}
`)

	cfg := config.Default()
	cfg.In = in
	cfg.Out = out
	cfg.Strict = true

	err := runCompile(context.Background(), cfg)
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, ExitCodeValidationFailed, exitErr.Code)

	// The unit still lands on disk; undefined names are advisory.
	assertExists(t, filepath.Join(out, "card.py"))
}

func TestRunCompileParallelIsDeterministic(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	mustWrite(t, filepath.Join(in, "card.ptml"), cardSource)
	mustWrite(t, filepath.Join(in, "pages", "home.ptml"), homeSource)

	compileTo := func(out string, jobs int) map[string]string {
		cfg := config.Default()
		cfg.In = in
		cfg.Out = out
		cfg.Jobs = jobs
		require.NoError(t, runCompile(context.Background(), cfg))

		units := map[string]string{}
		for _, rel := range []string{"card.py", filepath.Join("pages", "home.py")} {
			raw, err := os.ReadFile(filepath.Join(out, rel))
			require.NoError(t, err)
			units[rel] = string(raw)
		}
		return units
	}

	first := compileTo(filepath.Join(root, "out1"), 1)
	second := compileTo(filepath.Join(root, "out2"), 4)
	require.Equal(t, first, second)
}
