package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.jpg", "b.webp", "d.jpeg", "e.bmp", "notes.txt", "UPPER.PNG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o755))

	paths, err := ListImageFiles(dir)
	require.NoError(t, err)

	want := []string{"a.jpg", "b.webp", "c.png", "d.jpeg", "e.bmp"}
	require.Len(t, paths, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
	}
}

func TestListImageFilesMissingDir(t *testing.T) {
	_, err := ListImageFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
