package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()

	for _, path := range paths {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("export {}\n"), 0o644))
	}
}

func TestFindMatchesGlobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/header.test.tsx",
		"src/deep/util.test.ts",
		"src/header.tsx",
		"docs/readme.md",
	)

	finder := NewFinder(root, []string{"**/*.test.{ts,tsx}"})
	found, err := finder.Find()
	require.NoError(t, err)

	assert.Equal(t, []string{"src/deep/util.test.ts", "src/header.test.tsx"}, found)
}

func TestFindSkipsDependencyDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/app.test.js",
		"node_modules/pkg/index.test.js",
		"dist/bundle.test.js",
	)

	finder := NewFinder(root, []string{"**/*.test.js"})
	found, err := finder.Find()
	require.NoError(t, err)

	assert.Equal(t, []string{"src/app.test.js"}, found)
}

func TestFindMissingRoot(t *testing.T) {
	finder := NewFinder(filepath.Join(t.TempDir(), "absent"), []string{"**/*"})

	_, err := finder.Find()
	assert.Error(t, err)
}

func TestFindIgnoresBlankPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/app.test.js")

	finder := NewFinder(root, []string{"  ", "**/*.test.js"})
	found, err := finder.Find()
	require.NoError(t, err)

	assert.Len(t, found, 1)
}
