package images

import (
	"path/filepath"
	"strings"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
)

// extensions maps lower-case file extensions to formats accepted as calibration/input images.
var extensions = map[string]ImageFormat{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".bmp":  FormatBMP,
	".webp": FormatWebP,
}

// FormatFromPath returns the image format implied by the extension of path.
//
// The match is case-sensitive, the same way a "*.jpg" glob is on a case-sensitive file system.
//
// Returns:
//   - ImageFormat: The matched format.
//   - bool: False when the extension is not a supported image extension.
func FormatFromPath(path string) (ImageFormat, bool) {
	f, ok := extensions[filepath.Ext(path)]
	return f, ok
}

// IsURL reports whether ref should be fetched over HTTP instead of read from disk.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
