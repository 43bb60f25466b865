package opencv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// TestParseTarget validates target names and their DNN mapping.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		backend gocv.NetBackendType
		target  gocv.NetTargetType
	}{
		{"", gocv.NetBackendOpenCV, gocv.NetTargetCPU},
		{"CPU", gocv.NetBackendOpenCV, gocv.NetTargetCPU},
		{"cuda", gocv.NetBackendCUDA, gocv.NetTargetCUDA},
		{"cuda-fp16", gocv.NetBackendCUDA, gocv.NetTargetCUDAFP16},
		{"openvino", gocv.NetBackendOpenVINO, gocv.NetTargetCPU},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			target, err := ParseTarget(tt.in)
			require.NoError(t, err)
			backend, device := target.Net()
			assert.Equal(t, tt.backend, backend)
			assert.Equal(t, tt.target, device)
		})
	}

	_, err := ParseTarget("vulkan")
	assert.ErrorIs(t, err, common.ErrConfig)
}

// TestOutputTensor validates copying and shape checks.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestOutputTensor(t *testing.T) {
	values := []float32{1, 2, 3, 4}
	out, err := OutputTensor([]int{1, 1, 2, 2}, values)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())

	values[0] = 9
	assert.Equal(t, float32(1), out.Data().([]float32)[0])

	_, err = OutputTensor([]int{1, 1, 2, 3}, values)
	assert.ErrorIs(t, err, common.ErrShape)
	_, err = OutputTensor([]int{4}, values)
	assert.ErrorIs(t, err, common.ErrShape)
}

// TestNewMissingModel validates the missing-file error.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestNewMissingModel(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.onnx"), Options{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// TestNewUnreadableModel validates that stat failures other than a missing file are reported
// before OpenCV is asked to load anything.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestNewUnreadableModel(t *testing.T) {
	dir := t.TempDir()

	_, err := New(dir, Options{})
	assert.ErrorIs(t, err, common.ErrInvalidModel)

	file := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = New(filepath.Join(file, "child.onnx"), Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "reading model")
}
