package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoldenFixtures(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join("..", "..", "testdata", "fixtures", "*.ptml"))
	require.NoError(t, err)
	require.NotEmpty(t, fixtures)

	for _, inputPath := range fixtures {
		base := strings.TrimSuffix(inputPath, ".ptml")
		expectedPath := base + ".expected.py"

		inputRaw, err := os.ReadFile(inputPath)
		require.NoError(t, err)
		expectedRaw, err := os.ReadFile(expectedPath)
		require.NoError(t, err)

		result, err := Compile(string(inputRaw), filepath.Base(inputPath), Options{})
		require.NoError(t, err)
		require.Equal(t, string(expectedRaw), result.Unit.Source)
	}
}
