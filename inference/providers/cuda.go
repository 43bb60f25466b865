package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// The size limit of the device memory arena in bytes. Zero leaves the default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// The strategy for extending the device memory arena: kNextPowerOfTwo or kSameAsRequested.
	ArenaExtendStrategy string `json:"arena_extend_strategy" yaml:"arena_extend_strategy"`
	// The type of search done for cuDNN convolution algorithms: EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `json:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search"`
	// Whether to do copies in the default stream.
	DoCopyInDefaultStream bool `json:"do_copy_in_default_stream" yaml:"do_copy_in_default_stream"`
}

// values renders the options as ORT provider option keys.
func (o CUDAOptions) values() map[string]string {
	m := map[string]string{
		"device_id":                 fmt.Sprintf("%d", o.DeviceID),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	if o.ArenaExtendStrategy != "" {
		m["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		m["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return m
}

// appendCUDA enables the CUDA provider on options.
func appendCUDA(options *ort.SessionOptions, o CUDAOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := cuda.Update(o.values()); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}

// TensorRTOptions contains arguments for the TensorRT provider.
type TensorRTOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// Enables FP16 kernels.
	FP16 bool `json:"fp16" yaml:"fp16"`
	// Directory for cached engines. Empty disables the cache.
	EngineCachePath string `json:"engine_cache_path" yaml:"engine_cache_path"`
}

func (o TensorRTOptions) values() map[string]string {
	m := map[string]string{
		"device_id":       fmt.Sprintf("%d", o.DeviceID),
		"trt_fp16_enable": boolFlag(o.FP16),
	}
	if o.EngineCachePath != "" {
		m["trt_engine_cache_enable"] = "1"
		m["trt_engine_cache_path"] = o.EngineCachePath
	}
	return m
}

func appendTensorRT(options *ort.SessionOptions, o TensorRTOptions) error {
	trt, err := ort.NewTensorRTProviderOptions()
	if err != nil {
		return err
	}
	defer trt.Destroy()

	if err := trt.Update(o.values()); err != nil {
		return err
	}
	return options.AppendExecutionProviderTensorRT(trt)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
