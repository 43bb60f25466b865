package images

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-matte/common"
)

// Resample identifies a resampling filter by its conventional integer code, the same codes
// stored in a preprocessor config's "resample" key.
type Resample int

const (
	// ResampleNearest picks the nearest source pixel.
	ResampleNearest Resample = 0
	// ResampleLanczos is a 3-lobe Lanczos window.
	ResampleLanczos Resample = 1
	// ResampleBilinear is linear interpolation on both axes.
	ResampleBilinear Resample = 2
	// ResampleBicubic is cubic interpolation on both axes.
	ResampleBicubic Resample = 3
	// ResampleBox averages the source pixels under the destination pixel.
	ResampleBox Resample = 4
	// ResampleHamming is a Hamming-windowed sinc.
	ResampleHamming Resample = 5
)

// String returns the filter name.
func (r Resample) String() string {
	switch r {
	case ResampleNearest:
		return "nearest"
	case ResampleLanczos:
		return "lanczos"
	case ResampleBilinear:
		return "bilinear"
	case ResampleBicubic:
		return "bicubic"
	case ResampleBox:
		return "box"
	case ResampleHamming:
		return "hamming"
	default:
		return fmt.Sprintf("resample(%d)", int(r))
	}
}

// Interpolation maps the filter to its resize kernel.
//
// Box and Hamming have no equivalent kernel; they are rejected instead of approximated so a
// mismatched training pipeline fails loudly.
//
// Returns:
//   - resize.InterpolationFunction: The kernel.
//   - error: common.ErrConfig for unsupported codes.
func (r Resample) Interpolation() (resize.InterpolationFunction, error) {
	switch r {
	case ResampleNearest:
		return resize.NearestNeighbor, nil
	case ResampleLanczos:
		return resize.Lanczos3, nil
	case ResampleBilinear:
		return resize.Bilinear, nil
	case ResampleBicubic:
		return resize.Bicubic, nil
	default:
		return 0, fmt.Errorf("%w: unsupported resample filter %s", common.ErrConfig, r)
	}
}

// Resize scales img to exactly width x height without preserving the aspect ratio.
//
// Arguments:
//   - img: The source image.
//   - width: The target width, must be positive.
//   - height: The target height, must be positive.
//   - filter: The resampling filter.
//
// Returns:
//   - image.Image: The resized image. *image.RGBA and *image.Gray inputs keep their type.
//   - error: common.ErrConfig for non-positive dimensions or an unsupported filter.
func Resize(img image.Image, width, height int, filter Resample) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions: width=%d, height=%d", common.ErrConfig, width, height)
	}
	interp, err := filter.Interpolation()
	if err != nil {
		return nil, err
	}
	return resize.Resize(uint(width), uint(height), img, interp), nil
}
