package images

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Save encodes img to path, choosing the format from the file extension.
//
// WebP output is lossless so masks survive a round trip; every other extension
// (png, jpg, jpeg, bmp, gif, tif, tiff) is delegated to imaging.
//
// Arguments:
//   - img: The image to write.
//   - path: The destination file.
//
// Returns:
//   - error: An error if the extension is unsupported or the write fails.
func Save(img image.Image, path string) error {
	if strings.ToLower(filepath.Ext(path)) != ".webp" {
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("saving %s: %w", path, err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := webp.Encode(f, img, &webp.Options{Lossless: true}); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
