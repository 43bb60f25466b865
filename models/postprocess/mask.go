// Package postprocess - Turns segmentation logits into alpha masks and cutouts.
package postprocess

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"gorgonia.org/tensor"
)

// Mask converts model logits into an 8-bit alpha mask at the original image size.
//
// Rank 4 logits are reduced to [0, 0], rank 3 to [0]; rank 2 logits are used as they are.
// Each logit goes through a sigmoid, is scaled to [0, 255], clipped and truncated. The mask is
// resized back with bilinear interpolation regardless of the forward resize filter.
//
// Arguments:
//   - logits: The float32 model output.
//   - width: The original image width.
//   - height: The original image height.
//
// Returns:
//   - *image.Gray: The mask, width x height.
//   - error: common.ErrShape for any other rank, a non-float32 tensor or empty dims.
func Mask(logits *tensor.Dense, width, height int) (*image.Gray, error) {
	if logits == nil {
		return nil, fmt.Errorf("%w: nil logits", common.ErrShape)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", common.ErrShape, width, height)
	}

	h, w, err := spatialDims(logits.Shape())
	if err != nil {
		return nil, err
	}

	data, ok := logits.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: logits must be float32, got %v", common.ErrShape, logits.Dtype())
	}
	if len(data) < h*w {
		return nil, fmt.Errorf("%w: logits hold %d values, need %d", common.ErrShape, len(data), h*w)
	}

	small := image.NewGray(image.Rect(0, 0, w, h))
	for i, x := range data[:h*w] {
		small.Pix[i] = toByte(Sigmoid(x) * 255)
	}

	resized, err := images.Resize(small, width, height, images.ResampleBilinear)
	if err != nil {
		return nil, err
	}
	if g, ok := resized.(*image.Gray); ok {
		return g, nil
	}
	return toGray(resized), nil
}

// spatialDims resolves the [H, W] plane selected from a rank 2, 3 or 4 shape. The leading
// axes are indexed at zero, so the plane is the first H*W values in row-major order.
func spatialDims(shape tensor.Shape) (int, int, error) {
	var h, w int
	switch len(shape) {
	case 4:
		if shape[0] < 1 || shape[1] < 1 {
			return 0, 0, fmt.Errorf("%w: empty leading axes in %v", common.ErrShape, shape)
		}
		h, w = shape[2], shape[3]
	case 3:
		if shape[0] < 1 {
			return 0, 0, fmt.Errorf("%w: empty leading axis in %v", common.ErrShape, shape)
		}
		h, w = shape[1], shape[2]
	case 2:
		h, w = shape[0], shape[1]
	default:
		return 0, 0, fmt.Errorf("%w: expected logits of rank 2, 3 or 4, got %v", common.ErrShape, shape)
	}
	if h < 1 || w < 1 {
		return 0, 0, fmt.Errorf("%w: empty spatial dims in %v", common.ErrShape, shape)
	}
	return h, w, nil
}

// Sigmoid is the logistic function in float32.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// toByte clips v to [0, 255] and truncates it. NaN maps to 0.
func toByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Pix[g.PixOffset(x, y)] = uint8(r >> 8)
		}
	}
	return g
}
