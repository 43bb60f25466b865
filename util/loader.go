// Package util - File system helpers.
package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-matte/images"
)

// ListImageFiles returns the image files directly inside dir.
//
// Only regular files whose extension is a supported lower-case image extension are listed;
// sub-directories are not descended into.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []string: Full paths, sorted lexicographically.
//   - error: Error if the directory cannot be read.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := images.FormatFromPath(path); ok {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	return paths, nil
}
