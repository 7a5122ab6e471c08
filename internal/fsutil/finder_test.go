package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestFindFilesByExtension(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.hcl":          "",
		"a.hcl":          "",
		"nested/c.hcl":   "",
		"nested/note.md": "",
	})

	files, err := FindFilesByExtension(root, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "nested", "c.hcl"),
	}, files)
}

func TestFindFilesByExtensionMissingRoot(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "gone"), ".hcl")
	assert.Error(t, err)
}

func TestFindFilesByExtensionPanicsOnEmptyExtension(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = FindFilesByExtension(t.TempDir(), "")
	})
}

func TestFindNamedFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"greeter/module.hcl":        "",
		"metrics/module.hcl":        "",
		"metrics/extras/module.hcl": "",
		"metrics/readme.hcl":        "",
	})

	files, err := FindNamedFiles(root, "module.hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "greeter", "module.hcl"),
		filepath.Join(root, "metrics", "extras", "module.hcl"),
		filepath.Join(root, "metrics", "module.hcl"),
	}, files)
}
