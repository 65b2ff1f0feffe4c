package fswalk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceFile stores absolute and root-relative paths for one source file.
type SourceFile struct {
	AbsPath string
	RelPath string
}

// normalizePattern returns a usable glob and defaults to **/*.ptml.
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "**/*.ptml"
	}
	return filepath.ToSlash(pattern)
}

// DiscoverSources finds files under root matching the glob pattern, sorted by
// relative path so batch runs see a stable order.
func DiscoverSources(root string, pattern string) ([]SourceFile, error) {
	root = filepath.Clean(root)
	matcher := normalizePattern(pattern)

	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("compute relative path for %q: %w", path, err)
		}

		matched, err := doublestar.PathMatch(matcher, filepath.ToSlash(relPath))
		if err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if !matched {
			return nil
		}

		files = append(files, SourceFile{
			AbsPath: path,
			RelPath: relPath,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	return files, nil
}

// MirrorOutputPath maps a relative input path to an output path and extension.
func MirrorOutputPath(outRoot string, relPath string, ext string) string {
	cleanRel := filepath.Clean(relPath)
	if ext != "" {
		oldExt := filepath.Ext(cleanRel)
		cleanRel = strings.TrimSuffix(cleanRel, oldExt) + ext
	}
	return filepath.Join(outRoot, cleanRel)
}

// EnsureParentDir creates the parent directory tree for a target file path.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
