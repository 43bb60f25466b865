// Package opencv - OpenCV DNN backend for ONNX segmentation models.
package opencv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Target selects the DNN backend and compute target pair.
type Target string

const (
	TargetCPU      Target = "cpu"
	TargetCUDA     Target = "cuda"
	TargetCUDAFP16 Target = "cuda-fp16"
	TargetOpenVINO Target = "openvino"
)

// Targets lists the supported targets.
var Targets = []Target{TargetCPU, TargetCUDA, TargetCUDAFP16, TargetOpenVINO}

// ParseTarget validates a target name. The empty string selects TargetCPU.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return TargetCPU, nil
	}
	for _, t := range Targets {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown opencv target %q (want one of %v)", common.ErrConfig, s, Targets)
}

// Net returns the gocv backend and target for t.
func (t Target) Net() (gocv.NetBackendType, gocv.NetTargetType) {
	switch t {
	case TargetCUDA:
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case TargetCUDAFP16:
		return gocv.NetBackendCUDA, gocv.NetTargetCUDAFP16
	case TargetOpenVINO:
		return gocv.NetBackendOpenVINO, gocv.NetTargetCPU
	default:
		return gocv.NetBackendOpenCV, gocv.NetTargetCPU
	}
}

// Options configures the network.
type Options struct {
	Target Target
	// InputName binds the blob to a named input; empty uses the first input.
	InputName string
	// OutputName selects the output layer; empty uses the network's last layer.
	OutputName string
	Logger     *slog.Logger
}

// Backend runs an ONNX model through the OpenCV DNN module.
type Backend struct {
	net        gocv.Net
	inputName  string
	outputName string
	mu         sync.Mutex
}

// New loads the ONNX model at path.
//
// Arguments:
//   - path: The .onnx model file.
//   - opts: Target and tensor names.
//
// Returns:
//   - *Backend: The backend.
//   - error: common.ErrNotFound for a missing file, common.ErrInvalidModel when OpenCV rejects it.
func New(path string, opts Options) (*Backend, error) {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: model %s", common.ErrNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrInvalidModel, path)
	}
	target, err := ParseTarget(string(opts.Target))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: opencv cannot load %s", common.ErrInvalidModel, path)
	}

	backend, device := target.Net()
	net.SetPreferableBackend(backend)
	net.SetPreferableTarget(device)

	logger.Info("opencv net ready", "model", path, "target", target)
	return &Backend{net: net, inputName: opts.InputName, outputName: opts.OutputName}, nil
}

// Name returns the runtime name.
func (b *Backend) Name() string { return "opencv" }

// InputName returns the configured input name.
func (b *Backend) InputName() string { return b.inputName }

// OutputName returns the configured output name.
func (b *Backend) OutputName() string { return b.outputName }

// Run forwards a [1, 3, H, W] tensor through the network.
func (b *Backend) Run(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: input must be float32, got %v", common.ErrShape, input.Dtype())
	}

	blob := gocv.NewMatWithSizes([]int(input.Shape()), gocv.MatTypeCV32F)
	defer blob.Close()
	ptr, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "input blob")
	}
	copy(ptr, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.net.SetInput(blob, b.inputName)
	out := b.net.Forward(b.outputName)
	defer out.Close()
	if out.Empty() {
		return nil, errors.New("opencv forward returned an empty blob")
	}

	values, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: output: %v", common.ErrShape, err)
	}
	return OutputTensor(out.Size(), values)
}

// OutputTensor copies a forward result into a dense tensor of the given dims.
func OutputTensor(dims []int, values []float32) (*tensor.Dense, error) {
	if len(dims) < 2 || len(dims) > 4 {
		return nil, fmt.Errorf("%w: output rank %d", common.ErrShape, len(dims))
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n == 0 || n != len(values) {
		return nil, fmt.Errorf("%w: output %v holds %d values", common.ErrShape, dims, len(values))
	}
	backing := append([]float32(nil), values...)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing)), nil
}

// Close releases the network.
func (b *Backend) Close() error {
	return b.net.Close()
}
