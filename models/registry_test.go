package models

import (
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolve validates alias lookup and raw repository ids.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		repo string
	}{
		{"birefnet", "onnx-community/BiRefNet-ONNX"},
		{"BiRefNet-Lite", "onnx-community/BiRefNet_lite-ONNX"},
		{"birefnet-portrait", "onnx-community/BiRefNet-portrait-ONNX"},
		{"acme/Matting-ONNX", "acme/Matting-ONNX"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec := Resolve(tt.in)
			assert.Equal(t, tt.repo, spec.Repo)
			assert.Equal(t, "preprocessor_config.json", spec.Files.Config)

			weights, err := spec.Weights(model.PrecisionFP32)
			require.NoError(t, err)
			assert.Equal(t, "onnx/model.onnx", weights)
		})
	}

	_, err := model.Spec{Repo: "x"}.Weights(model.PrecisionFP16)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Equal(t, []model.Name{"birefnet", "birefnet-lite", "birefnet-portrait"}, Names())
}

// TestParsePrecision validates precision names.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestParsePrecision(t *testing.T) {
	p, err := model.ParsePrecision("fp16")
	require.NoError(t, err)
	assert.Equal(t, model.PrecisionFP16, p)

	p, err = model.ParsePrecision("")
	require.NoError(t, err)
	assert.Equal(t, model.PrecisionFP32, p)

	_, err = model.ParsePrecision("bf16")
	assert.ErrorIs(t, err, common.ErrConfig)
}
