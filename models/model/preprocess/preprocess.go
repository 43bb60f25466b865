// Package preprocess turns decoded images into normalized NCHW model inputs.
package preprocess

import (
	"image"

	"github.com/nvr-ai/go-matte/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Result is a preprocessed image.
type Result struct {
	// Tensor is the float32 input tensor with shape [1, 3, Height, Width].
	Tensor *tensor.Dense
	// OriginalWidth is the width of the image before resizing.
	OriginalWidth int
	// OriginalHeight is the height of the image before resizing.
	OriginalHeight int
}

// Preprocess converts img into a model input tensor.
//
// The image is converted to RGB, resized to exactly cfg.Width x cfg.Height with cfg.Resample,
// then every value is rescaled and standardized per channel and written in CHW order.
//
// Arguments:
//   - img: The input image.
//   - cfg: The preprocessing configuration.
//
// Returns:
//   - *Result: The tensor and the original image size.
//   - error: common.ErrConfig for an invalid configuration.
func Preprocess(img image.Image, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	if img == nil {
		return nil, errors.New("preprocess: image is nil")
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()

	resized, err := images.Resize(images.AsRGB(img), cfg.Width, cfg.Height, cfg.Resample)
	if err != nil {
		return nil, errors.Wrap(err, "resize")
	}

	data := toCHW(images.AsRGB(resized), cfg)

	return &Result{
		Tensor:         tensor.New(tensor.WithShape(1, 3, cfg.Height, cfg.Width), tensor.WithBacking(data)),
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
	}, nil
}

// toCHW rescales and standardizes rgb into a planar channel-major buffer.
func toCHW(rgb *image.RGBA, cfg Config) []float32 {
	width, height := cfg.Width, cfg.Height
	plane := width * height
	data := make([]float32, 3*plane)

	origin := rgb.Bounds().Min
	for y := 0; y < height; y++ {
		row := rgb.PixOffset(origin.X, origin.Y+y)
		for x := 0; x < width; x++ {
			i := row + 4*x
			o := y*width + x
			for c := 0; c < 3; c++ {
				v := float32(rgb.Pix[i+c]) * cfg.RescaleFactor
				data[c*plane+o] = (v - cfg.Mean[c]) / cfg.Std[c]
			}
		}
	}

	return data
}
