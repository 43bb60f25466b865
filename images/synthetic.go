package images

import (
	"image"
	"math"

	rng "github.com/leesper/go_rng"
)

// Synthetic image parameters: a diagonal gradient weighted 0.6 on x and 0.4 on y, lifted by
// 0.2 and perturbed by per-pixel per-channel gaussian noise.
const (
	syntheticWeightX = 0.6
	syntheticWeightY = 0.4
	syntheticOffset  = 0.2
	syntheticSigma   = 0.15
)

// NoiseSource draws normally distributed values.
type NoiseSource interface {
	Gaussian(mean, stddev float64) float64
}

// NewNoise returns a gaussian generator seeded with seed.
func NewNoise(seed int64) NoiseSource {
	return rng.NewGaussianGenerator(seed)
}

// Synthetic renders a width x height calibration image: a diagonal gradient plus gaussian noise,
// scaled to [0, 255], clipped and truncated.
//
// The gradient is deterministic; the noise makes images differ from one another while
// staying in the same value distribution.
//
// Arguments:
//   - width: Image width in pixels.
//   - height: Image height in pixels.
//   - noise: The gaussian source, drawn once per pixel per channel in row-major RGB order.
//
// Returns:
//   - *image.RGBA: An opaque image.
func Synthetic(width, height int, noise NoiseSource) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		yf := fraction(y, height)
		for x := 0; x < width; x++ {
			base := syntheticWeightX*fraction(x, width) + syntheticWeightY*yf
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := (base + noise.Gaussian(0, syntheticSigma) + syntheticOffset) * 255
				img.Pix[i+c] = clipUint8(v)
			}
			img.Pix[i+3] = 0xff
		}
	}

	return img
}

// fraction spreads i over [0, 1] the way linspace(0, 1, n) does.
func fraction(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func clipUint8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
