package providers

import (
	"fmt"
	"log/slog"

	"github.com/nvr-ai/go-matte/common"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime session settings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// ExecutionMode controls sequential vs parallel execution.
	ExecutionMode ort.ExecutionMode `json:"execution_mode" yaml:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ORT decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets ORT decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns extended graph optimizations with sequential execution.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
	}
}

// ProviderOptions carries the per-provider settings applied when that provider is requested.
type ProviderOptions struct {
	CUDA     CUDAOptions     `json:"cuda" yaml:"cuda"`
	TensorRT TensorRTOptions `json:"tensorrt" yaml:"tensorrt"`
	CoreML   CoreMLOptions   `json:"coreml" yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	// DirectMLDevice is the DirectML adapter index.
	DirectMLDevice int `json:"directml_device" yaml:"directml_device"`
}

// OptimizedSessionOptions builds session options and appends the requested providers in order.
//
// A provider that cannot be appended is logged and reported as a common.ErrProvider failure; the
// remaining providers are still tried.
//
// Arguments:
//   - config: Optimization configuration to apply.
//   - list: Providers in priority order.
//   - popts: Per-provider settings.
//   - logger: Receives provider failures.
//
// Returns:
//   - *ort.SessionOptions: Configured session options. The caller must Destroy them.
//   - []error: One common.ErrProvider error per provider that could not be appended.
//   - error: A failure creating or configuring the options themselves.
func OptimizedSessionOptions(
	config OptimizationConfig,
	list []Provider,
	popts ProviderOptions,
	logger *slog.Logger,
) (*ort.SessionOptions, []error, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session options: %w", err)
	}

	if err := configure(options, config); err != nil {
		options.Destroy()
		return nil, nil, err
	}

	var failed []error
	for _, p := range list {
		if err := appendProvider(options, p, popts); err != nil {
			perr := fmt.Errorf("%w: %s: %w", common.ErrProvider, p, err)
			logger.Warn("execution provider unavailable", "provider", string(p), "error", err)
			failed = append(failed, perr)
		}
	}

	return options, failed, nil
}

func configure(options *ort.SessionOptions, config OptimizationConfig) error {
	if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
		return fmt.Errorf("setting graph optimization level: %w", err)
	}
	if err := options.SetExecutionMode(config.ExecutionMode); err != nil {
		return fmt.Errorf("setting execution mode: %w", err)
	}
	if config.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
			return fmt.Errorf("setting intra-op threads: %w", err)
		}
	}
	if config.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
			return fmt.Errorf("setting inter-op threads: %w", err)
		}
	}
	return nil
}

// appendProvider enables one provider. The CPU provider is implicit and never fails.
func appendProvider(options *ort.SessionOptions, p Provider, popts ProviderOptions) error {
	switch p {
	case CPUExecutionProvider:
		return nil
	case CUDAExecutionProvider:
		return appendCUDA(options, popts.CUDA)
	case TensorRTExecutionProvider:
		return appendTensorRT(options, popts.TensorRT)
	case CoreMLExecutionProvider:
		return options.AppendExecutionProviderCoreML(popts.CoreML.Flags())
	case OpenVINOExecutionProvider:
		return options.AppendExecutionProviderOpenVINO(popts.OpenVINO.values())
	case DirectMLExecutionProvider:
		return options.AppendExecutionProviderDirectML(popts.DirectMLDevice)
	default:
		return fmt.Errorf("unsupported execution provider: %s", p)
	}
}
