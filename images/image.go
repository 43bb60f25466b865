// Package images - Image loading, conversion, resampling and encoding for the matting pipeline.
package images

import (
	"image"
	"image/color"
)

// ToRGB copies img into an origin-anchored *image.RGBA with every pixel fully opaque.
//
// Alpha is discarded rather than composited: a translucent pixel keeps its straight
// (non-premultiplied) color. This mirrors a plain "convert to RGB" and is what the model
// was trained against.
//
// Arguments:
//   - img: Any decoded image.
//
// Returns:
//   - *image.RGBA: An opaque copy whose bounds start at (0, 0).
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}

	return dst
}

// AsRGB returns img itself when it is already an opaque *image.RGBA anchored at (0, 0), and a
// ToRGB copy otherwise.
func AsRGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) && rgba.Opaque() {
		return rgba
	}
	return ToRGB(img)
}
