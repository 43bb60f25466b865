package postprocess

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func filled(v float32, shape ...int) *tensor.Dense {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = v
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func uniform(t *testing.T, mask *image.Gray, want uint8) {
	t.Helper()
	for i, v := range mask.Pix {
		if v != want {
			t.Fatalf("pixel %d = %d, want %d", i, v, want)
		}
	}
}

// TestMaskConstantLogits validates the sigmoid mapping and the resize back to the original size.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMaskConstantLogits(t *testing.T) {
	tests := []struct {
		name  string
		logit float32
		shape []int
		want  uint8
	}{
		{"zeros rank 4", 0, []int{1, 1, 8, 8}, 127},
		{"zeros rank 3", 0, []int{1, 8, 8}, 127},
		{"zeros rank 2", 0, []int{8, 8}, 127},
		{"large positive", 50, []int{1, 1, 8, 8}, 255},
		{"large negative", -50, []int{1, 1, 8, 8}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := Mask(filled(tt.logit, tt.shape...), 37, 21)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 37, 21), mask.Bounds())
			uniform(t, mask, tt.want)
		})
	}
}

// TestMaskSelectsFirstPlane validates that batch and channel axes are indexed at zero.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMaskSelectsFirstPlane(t *testing.T) {
	data := make([]float32, 2*2*2)
	for i := 4; i < 8; i++ {
		data[i] = 50
	}
	logits := tensor.New(tensor.WithShape(1, 2, 2, 2), tensor.WithBacking(data))

	mask, err := Mask(logits, 2, 2)
	require.NoError(t, err)
	uniform(t, mask, 127)
}

// TestMaskNaN validates that NaN logits produce zero alpha.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMaskNaN(t *testing.T) {
	mask, err := Mask(filled(float32(math.NaN()), 1, 1, 4, 4), 4, 4)
	require.NoError(t, err)
	uniform(t, mask, 0)
}

// TestMaskShapeErrors validates rejection of unusable logits.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMaskShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		logits *tensor.Dense
	}{
		{"nil", nil},
		{"rank 1", filled(0, 16)},
		{"rank 5", filled(0, 1, 1, 1, 4, 4)},
		{"float64", tensor.New(tensor.WithShape(1, 4, 4), tensor.WithBacking(make([]float64, 16)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Mask(tt.logits, 4, 4)
			assert.ErrorIs(t, err, common.ErrShape)
		})
	}

	_, _, err := spatialDims(tensor.Shape{1, 1, 0, 4})
	assert.ErrorIs(t, err, common.ErrShape)
	_, _, err = spatialDims(tensor.Shape{0, 4, 4})
	assert.ErrorIs(t, err, common.ErrShape)
}

// TestSigmoid validates the logistic function at reference points.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestSigmoid(t *testing.T) {
	assert.Equal(t, float32(0.5), Sigmoid(0))
	assert.InDelta(t, 0.7310586, Sigmoid(1), 1e-6)
	assert.InDelta(t, 0.2689414, Sigmoid(-1), 1e-6)
}

// TestCutout validates alpha replacement and that the source image is left untouched.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestCutout(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i], rgb.Pix[i+1], rgb.Pix[i+2], rgb.Pix[i+3] = 10, 20, 30, 255
	}

	t.Run("opaque mask keeps colors", func(t *testing.T) {
		mask := image.NewGray(rgb.Bounds())
		for i := range mask.Pix {
			mask.Pix[i] = 255
		}
		out, err := Cutout(rgb, mask)
		require.NoError(t, err)
		assert.Equal(t, rgb.Pix, out.Pix)
	})

	t.Run("alpha from mask", func(t *testing.T) {
		mask := image.NewGray(rgb.Bounds())
		mask.SetGray(1, 1, color.Gray{Y: 99})

		out, err := Cutout(rgb, mask)
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 99}, out.NRGBAAt(1, 1))
		assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 0}, out.NRGBAAt(0, 0))
		assert.Equal(t, uint8(255), rgb.Pix[3], "source must not change")
	})

	t.Run("size mismatch", func(t *testing.T) {
		_, err := Cutout(rgb, image.NewGray(image.Rect(0, 0, 2, 2)))
		assert.ErrorIs(t, err, common.ErrShape)
	})
}

// TestStats validates mask statistics.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestStats(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 2, 2))
	copy(mask.Pix, []uint8{0, 100, 200, 100})

	s := Stats(mask)
	assert.Equal(t, uint8(0), s.Min)
	assert.Equal(t, uint8(200), s.Max)
	assert.InDelta(t, 100.0, s.Mean, 1e-9)

	assert.Equal(t, MaskStats{}, Stats(image.NewGray(image.Rect(0, 0, 0, 0))))
}
