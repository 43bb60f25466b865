package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/nvr-ai/go-matte/common"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	envOnce sync.Once
	envErr  error
)

// InitEnvironment loads the ONNX Runtime shared library once per process.
func InitEnvironment() error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(GetSharedLibPath())
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// DestroyEnvironment releases the ONNX Runtime environment. Call it once, after every session is
// closed.
func DestroyEnvironment() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Options configures NewSession.
type Options struct {
	// Providers in priority order. Empty means DefaultProviders().
	Providers []Provider `json:"providers" yaml:"providers"`
	// ProviderOptions holds per-provider settings.
	ProviderOptions ProviderOptions `json:"provider_options" yaml:"provider_options"`
	// Optimization holds graph and threading settings. IntraOpNumThreads falls back to
	// ORT_NUM_THREADS when zero.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`
	// InputName overrides the model's first input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName overrides the model's first output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// Logger receives provider fallbacks. Nil means slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// Session is an ONNX Runtime inference session over one image input and one mask output.
type Session struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	inputDims  ort.Shape
	providers  []Provider
	logger     *slog.Logger
}

// NewSession creates an ONNX Runtime session for the model at modelPath.
//
// Input and output names default to the model's first input and output. Providers are appended
// in order; a provider that cannot be appended is skipped, and if the session cannot be created
// with the requested providers it is created again on the CPU alone.
//
// Arguments:
//   - modelPath: The path to the ONNX model file.
//   - opts: Providers, threading and name overrides.
//
// Returns:
//   - *Session: The session. The caller must Close it.
//   - error: common.ErrNotFound for a missing model, or the CPU session failure.
func NewSession(modelPath string, opts Options) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: model %s", common.ErrNotFound, modelPath)
		}
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := InitEnvironment(); err != nil {
		return nil, fmt.Errorf("error initializing ORT environment from %s: %w", GetSharedLibPath(), err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model inputs and outputs: %w", err)
	}
	inputName, outputName, inputDims, err := resolveIO(inputs, outputs, opts.InputName, opts.OutputName)
	if err != nil {
		return nil, err
	}

	config := opts.Optimization
	if config.GraphOptimizationLevel == 0 && config.ExecutionMode == 0 {
		threads := config.IntraOpNumThreads
		config = DefaultOptimizationConfig()
		config.IntraOpNumThreads = threads
		config.InterOpNumThreads = opts.Optimization.InterOpNumThreads
	}
	if config.IntraOpNumThreads == 0 {
		config.IntraOpNumThreads = threadsFromEnv(os.Getenv(ThreadsEnv))
	}

	list := opts.Providers
	if len(list) == 0 {
		list = DefaultProviders()
	}

	s := &Session{
		inputName:  inputName,
		outputName: outputName,
		inputDims:  inputDims,
		logger:     logger,
	}

	session, err := s.create(modelPath, config, list, opts.ProviderOptions)
	if err != nil && !OnlyCPU(list) {
		logger.Warn("session creation failed, retrying on CPU",
			"providers", list, "error", fmt.Errorf("%w: %w", common.ErrProvider, err))
		list = []Provider{CPUExecutionProvider}
		session, err = s.create(modelPath, config, list, opts.ProviderOptions)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	s.session = session
	s.providers = list
	logger.Debug("onnxruntime session ready",
		"model", modelPath, "input", inputName, "output", outputName, "providers", list)
	return s, nil
}

func (s *Session) create(
	modelPath string,
	config OptimizationConfig,
	list []Provider,
	popts ProviderOptions,
) (*ort.DynamicAdvancedSession, error) {
	options, _, err := OptimizedSessionOptions(config, list, popts, s.logger)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	return ort.NewDynamicAdvancedSession(modelPath, []string{s.inputName}, []string{s.outputName}, options)
}

// resolveIO picks the input and output names and remembers the input dims.
func resolveIO(inputs, outputs []ort.InputOutputInfo, inName, outName string) (string, string, ort.Shape, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", nil, fmt.Errorf("%w: model has %d inputs and %d outputs",
			common.ErrInvalidModel, len(inputs), len(outputs))
	}

	if inName == "" {
		inName = inputs[0].Name
	}
	if outName == "" {
		outName = outputs[0].Name
	}

	var dims ort.Shape
	for _, in := range inputs {
		if in.Name == inName {
			dims = in.Dimensions
			break
		}
	}
	return inName, outName, dims, nil
}

func threadsFromEnv(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Name returns "onnxruntime".
func (s *Session) Name() string { return "onnxruntime" }

// InputName returns the bound input name.
func (s *Session) InputName() string { return s.inputName }

// OutputName returns the bound output name.
func (s *Session) OutputName() string { return s.outputName }

// Providers returns the providers the session was created with.
func (s *Session) Providers() []Provider { return s.providers }

// InputSize reports the spatial size of an NCHW input when the model fixes it.
func (s *Session) InputSize() (int, int, bool) {
	return fixedSize(s.inputDims)
}

func fixedSize(dims ort.Shape) (int, int, bool) {
	if len(dims) != 4 || dims[2] <= 0 || dims[3] <= 0 {
		return 0, 0, false
	}
	return int(dims[2]), int(dims[3]), true
}

// Run feeds input to the model and returns a copy of its output.
//
// Arguments:
//   - ctx: Checked before the call; ONNX Runtime itself cannot be interrupted.
//   - input: A float32 tensor, normally [1, 3, H, W].
//
// Returns:
//   - *tensor.Dense: The float32 output.
//   - error: common.ErrShape for a non-float32 input or output.
func (s *Session) Run(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: input must be float32, got %v", common.ErrShape, input.Dtype())
	}
	shape := make([]int64, len(input.Shape()))
	for i, d := range input.Shape() {
		shape[i] = int64(d)
	}

	in, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %s is %T, want float32 tensor", common.ErrShape, s.outputName, outputs[0])
	}

	result := make([]float32, len(out.GetData()))
	copy(result, out.GetData())

	dims := make([]int, len(out.GetShape()))
	for i, d := range out.GetShape() {
		dims[i] = int(d)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(result)), nil
}

// Close releases the native session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("error destroying ORT session: %w", err)
	}
	return nil
}
