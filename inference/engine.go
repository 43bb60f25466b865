// Package inference - Inference backend interface and the matting pipeline built on it.
package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvr-ai/go-matte/common"
	"gorgonia.org/tensor"
)

// Backend runs a segmentation model on one preprocessed tensor.
type Backend interface {
	// Name identifies the runtime, e.g. "onnxruntime".
	Name() string
	// InputName is the model input the tensor is bound to.
	InputName() string
	// OutputName is the model output that is returned.
	OutputName() string
	// Run executes the model. The input is [1, 3, H, W] float32; the output is float32 logits.
	Run(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	// Close releases native resources.
	Close() error
}

// InputSizer is implemented by backends whose model fixes the spatial input size.
type InputSizer interface {
	InputSize() (height, width int, ok bool)
}

// BackendType selects a Backend implementation.
type BackendType string

const (
	// BackendORT runs models through ONNX Runtime.
	BackendORT BackendType = "ort"
	// BackendTFLite runs models through TensorFlow Lite.
	BackendTFLite BackendType = "tflite"
	// BackendOpenCV runs models through the OpenCV DNN module.
	BackendOpenCV BackendType = "opencv"
)

// Backends is a list of all supported backends.
var Backends = []BackendType{BackendORT, BackendTFLite, BackendOpenCV}

// ParseBackendType validates a backend name.
func ParseBackendType(s string) (BackendType, error) {
	for _, b := range Backends {
		if strings.EqualFold(s, string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown backend %q (want one of %v)", common.ErrConfig, s, Backends)
}
