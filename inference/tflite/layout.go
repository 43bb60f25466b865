package tflite

import (
	"fmt"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layout is the memory order of a rank 4 image tensor.
type Layout string

const (
	// NCHW is channels first.
	NCHW Layout = "NCHW"
	// NHWC is channels last, the usual TFLite converter output.
	NHWC Layout = "NHWC"
)

// DetectLayout picks the layout of a model input shape: [1, 3, H, W] or [1, H, W, 3].
func DetectLayout(shape []int) (Layout, error) {
	if len(shape) != 4 {
		return "", fmt.Errorf("%w: input rank %d, want 4", common.ErrShape, len(shape))
	}
	switch {
	case shape[1] == 3:
		return NCHW, nil
	case shape[3] == 3:
		return NHWC, nil
	}
	return "", fmt.Errorf("%w: input %v has no 3-channel axis", common.ErrShape, shape)
}

// Spatial returns the height and width of a shape in this layout.
func (l Layout) Spatial(shape []int) (int, int) {
	if len(shape) != 4 {
		return 0, 0
	}
	if l == NHWC {
		return shape[1], shape[2]
	}
	return shape[2], shape[3]
}

// Dims converts an NCHW shape into this layout.
func (l Layout) Dims(nchw tensor.Shape) []int {
	if l == NHWC && len(nchw) == 4 {
		return []int{nchw[0], nchw[2], nchw[3], nchw[1]}
	}
	return append([]int(nil), nchw...)
}

// FromNCHW returns the backing data of an NCHW tensor in this layout.
func (l Layout) FromNCHW(input *tensor.Dense) ([]float32, error) {
	if input == nil || len(input.Shape()) != 4 {
		return nil, fmt.Errorf("%w: input must be rank 4", common.ErrShape)
	}
	if _, ok := input.Data().([]float32); !ok {
		return nil, fmt.Errorf("%w: input must be float32, got %v", common.ErrShape, input.Dtype())
	}

	t := input
	if l == NHWC {
		t = input.Clone().(*tensor.Dense)
		if err := t.T(0, 2, 3, 1); err != nil {
			return nil, errors.Wrap(err, "transposing input")
		}
		if err := t.Transpose(); err != nil {
			return nil, errors.Wrap(err, "transposing input")
		}
	}
	return append([]float32(nil), t.Data().([]float32)...), nil
}

// ToNCHWOutput wraps output values as [1, 1, H, W]. A [1, H, W, 1] output is reinterpreted,
// which needs no copy because a single channel has the same order in both layouts.
func ToNCHWOutput(shape []int, values []float32) (*tensor.Dense, error) {
	var dims []int
	switch {
	case len(shape) == 4 && shape[3] == 1:
		dims = []int{shape[0], 1, shape[1], shape[2]}
	case len(shape) >= 2 && len(shape) <= 4:
		dims = append([]int(nil), shape...)
	default:
		return nil, fmt.Errorf("%w: output rank %d", common.ErrShape, len(shape))
	}

	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != len(values) || n == 0 {
		return nil, fmt.Errorf("%w: output %v holds %d values", common.ErrShape, shape, len(values))
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(values)), nil
}
