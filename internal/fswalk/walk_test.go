package fswalk

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustWrite(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverSources(t *testing.T) {
	root := t.TempDir()

	mustWrite(t, filepath.Join(root, "card.ptml"), "a")
	mustWrite(t, filepath.Join(root, "pages", "home.ptml"), "b")
	mustWrite(t, filepath.Join(root, "pages", "notes.txt"), "c")

	got, err := DiscoverSources(root, "**/*.ptml")
	require.NoError(t, err)

	var rel []string
	for _, f := range got {
		rel = append(rel, filepath.ToSlash(f.RelPath))
	}

	want := []string{"card.ptml", "pages/home.ptml"}
	require.True(t, slices.Equal(rel, want))
}

func TestDiscoverSourcesDefaultPattern(t *testing.T) {
	root := t.TempDir()

	mustWrite(t, filepath.Join(root, "a.ptml"), "a")
	mustWrite(t, filepath.Join(root, "b.html"), "b")

	got, err := DiscoverSources(root, "  ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a.ptml", filepath.ToSlash(got[0].RelPath))
}

func TestMirrorOutputPath(t *testing.T) {
	got := filepath.ToSlash(MirrorOutputPath("out", "pages/home.ptml", ".py"))
	want := "out/pages/home.py"
	require.Equal(t, want, got)
}
