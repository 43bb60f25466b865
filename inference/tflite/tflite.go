// Package tflite - TensorFlow Lite backend with an optional Edge TPU delegate.
package tflite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/edgetpu"
	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultThreads is the interpreter thread count when none is given.
const DefaultThreads = 4

// Options configures the interpreter.
type Options struct {
	// Threads is the interpreter thread count; values below 1 use DefaultThreads.
	Threads int
	// EdgeTPU tries the first Edge TPU device as a delegate.
	EdgeTPU bool
	Logger  *slog.Logger
}

// Backend runs a .tflite segmentation model.
type Backend struct {
	model   *tflite.Model
	interp  *tflite.Interpreter
	layout  Layout
	mu      sync.Mutex
	logger  *slog.Logger
	edgeTPU bool
}

// New loads the model at path and allocates its tensors.
//
// When EdgeTPU is set and no device is found, or the interpreter cannot be created with the
// delegate, the failure is logged and the interpreter is created CPU-only.
//
// Arguments:
//   - path: The .tflite model file.
//   - opts: Interpreter options.
//
// Returns:
//   - *Backend: The backend.
//   - error: common.ErrInvalidModel when the model cannot be loaded or allocated.
func New(path string, opts Options) (*Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threads := opts.Threads
	if threads < 1 {
		threads = DefaultThreads
	}

	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load %s", common.ErrInvalidModel, path)
	}

	b := &Backend{model: model, logger: logger}
	if opts.EdgeTPU {
		interp, err := newInterpreter(model, threads, true)
		if err == nil {
			b.interp, b.edgeTPU = interp, true
		} else {
			logger.Warn("edge tpu unavailable, using cpu", "error", fmt.Errorf("%w: %v", common.ErrProvider, err))
		}
	}
	if b.interp == nil {
		interp, err := newInterpreter(model, threads, false)
		if err != nil {
			model.Delete()
			return nil, errors.Wrap(err, path)
		}
		b.interp = interp
	}

	if b.interp.GetInputTensorCount() < 1 || b.interp.GetOutputTensorCount() < 1 {
		b.Close()
		return nil, fmt.Errorf("%w: %s has no input or output tensor", common.ErrInvalidModel, path)
	}

	layout, err := DetectLayout(tensorShape(b.interp.GetInputTensor(0)))
	if err != nil {
		b.Close()
		return nil, err
	}
	b.layout = layout

	logger.Info("tflite interpreter ready",
		"model", path, "threads", threads, "edgetpu", b.edgeTPU, "layout", layout)
	return b, nil
}

func newInterpreter(model *tflite.Model, threads int, tpu bool) (*tflite.Interpreter, error) {
	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	options.SetNumThread(threads)

	if tpu {
		devices, err := edgetpu.DeviceList()
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, errors.New("no edge tpu devices found")
		}
		options.AddDelegate(edgetpu.New(devices[0]))
	}

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		return nil, fmt.Errorf("%w: cannot create interpreter", common.ErrInvalidModel)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		return nil, fmt.Errorf("%w: allocate tensors: %v", common.ErrInvalidModel, status)
	}
	return interp, nil
}

func tensorShape(t *tflite.Tensor) []int {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}

// Name returns the runtime name.
func (b *Backend) Name() string { return "tflite" }

// InputName returns the model input tensor name.
func (b *Backend) InputName() string { return b.interp.GetInputTensor(0).Name() }

// OutputName returns the model output tensor name.
func (b *Backend) OutputName() string { return b.interp.GetOutputTensor(0).Name() }

// InputSize reports the model's spatial input size.
func (b *Backend) InputSize() (int, int, bool) {
	h, w := b.layout.Spatial(tensorShape(b.interp.GetInputTensor(0)))
	return h, w, h > 0 && w > 0
}

// Run executes the interpreter on a [1, 3, H, W] tensor and returns [1, 1, H, W] logits.
func (b *Backend) Run(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := b.layout.FromNCHW(input)
	if err != nil {
		return nil, err
	}
	want := b.layout.Dims(input.Shape())

	b.mu.Lock()
	defer b.mu.Unlock()

	in := b.interp.GetInputTensor(0)
	if !sameShape(tensorShape(in), want) {
		dims := make([]int32, len(want))
		for i, d := range want {
			dims[i] = int32(d)
		}
		if status := b.interp.ResizeInputTensor(0, dims); status != tflite.OK {
			return nil, fmt.Errorf("%w: resize input to %v: %v", common.ErrShape, want, status)
		}
		if status := b.interp.AllocateTensors(); status != tflite.OK {
			return nil, fmt.Errorf("%w: allocate tensors: %v", common.ErrShape, status)
		}
		in = b.interp.GetInputTensor(0)
	}

	if in.Type() != tflite.Float32 {
		return nil, fmt.Errorf("%w: input tensor type %v is not float32", common.ErrShape, in.Type())
	}
	if err := in.SetFloat32s(data); err != nil {
		return nil, errors.Wrap(err, "setting input")
	}
	if status := b.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke failed: %v", status)
	}

	out := b.interp.GetOutputTensor(0)
	if out.Type() != tflite.Float32 {
		return nil, fmt.Errorf("%w: output tensor type %v is not float32", common.ErrShape, out.Type())
	}
	values := append([]float32(nil), out.Float32s()...)
	return ToNCHWOutput(tensorShape(out), values)
}

// Close releases the interpreter and model.
func (b *Backend) Close() error {
	if b.interp != nil {
		b.interp.Delete()
		b.interp = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
