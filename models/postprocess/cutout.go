package postprocess

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-matte/common"
)

// Cutout returns a copy of rgb whose alpha channel is replaced by mask.
//
// Arguments:
//   - rgb: The original image. It is not modified.
//   - mask: The alpha mask, same size as rgb.
//
// Returns:
//   - *image.NRGBA: The non-premultiplied RGBA cutout.
//   - error: common.ErrShape when the sizes differ.
func Cutout(rgb image.Image, mask *image.Gray) (*image.NRGBA, error) {
	if rgb == nil || mask == nil {
		return nil, fmt.Errorf("%w: nil image or mask", common.ErrShape)
	}
	ib, mb := rgb.Bounds(), mask.Bounds()
	if ib.Dx() != mb.Dx() || ib.Dy() != mb.Dy() {
		return nil, fmt.Errorf("%w: mask is %dx%d, image is %dx%d",
			common.ErrShape, mb.Dx(), mb.Dy(), ib.Dx(), ib.Dy())
	}

	out := imaging.Clone(rgb)
	for y := 0; y < ib.Dy(); y++ {
		row := out.PixOffset(0, y)
		for x := 0; x < ib.Dx(); x++ {
			out.Pix[row+4*x+3] = mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y
		}
	}
	return out, nil
}
