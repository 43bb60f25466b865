// Package providers - ONNX Runtime sessions and execution provider selection.
package providers

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-matte/common"
)

// Provider is an ONNX Runtime execution provider name.
type Provider string

const (
	// CUDAExecutionProvider uses NVIDIA CUDA for GPU acceleration.
	CUDAExecutionProvider Provider = "CUDAExecutionProvider"

	// TensorRTExecutionProvider uses NVIDIA TensorRT for optimized inference.
	TensorRTExecutionProvider Provider = "TensorrtExecutionProvider"

	// CoreMLExecutionProvider uses Apple CoreML for macOS/iOS acceleration.
	CoreMLExecutionProvider Provider = "CoreMLExecutionProvider"

	// OpenVINOExecutionProvider uses Intel OpenVINO for inference optimization.
	OpenVINOExecutionProvider Provider = "OpenVINOExecutionProvider"

	// DirectMLExecutionProvider uses DirectML on Windows.
	DirectMLExecutionProvider Provider = "DmlExecutionProvider"

	// CPUExecutionProvider uses the CPU. It is always available.
	CPUExecutionProvider Provider = "CPUExecutionProvider"
)

// aliases maps short lower-case names to providers.
var aliases = map[string]Provider{
	"cuda":     CUDAExecutionProvider,
	"tensorrt": TensorRTExecutionProvider,
	"trt":      TensorRTExecutionProvider,
	"coreml":   CoreMLExecutionProvider,
	"openvino": OpenVINOExecutionProvider,
	"dml":      DirectMLExecutionProvider,
	"directml": DirectMLExecutionProvider,
	"cpu":      CPUExecutionProvider,
}

// DefaultProviders is the provider order used when none is configured.
func DefaultProviders() []Provider {
	return []Provider{CUDAExecutionProvider, CPUExecutionProvider}
}

// ParseProvider resolves a full provider name or a short alias such as "cuda".
func ParseProvider(name string) (Provider, error) {
	name = strings.TrimSpace(name)
	if p, ok := aliases[strings.ToLower(name)]; ok {
		return p, nil
	}
	for _, p := range aliases {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown execution provider %q", common.ErrConfig, name)
}

// ParseProviders resolves a list of provider names, dropping empty entries and duplicates.
//
// Arguments:
//   - names: Provider names or aliases in priority order.
//
// Returns:
//   - []Provider: The providers, or DefaultProviders when names is empty.
//   - error: common.ErrConfig for an unknown name.
func ParseProviders(names []string) ([]Provider, error) {
	var out []Provider
	seen := make(map[Provider]bool)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := ParseProvider(name)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return DefaultProviders(), nil
	}
	return out, nil
}

// OnlyCPU reports whether the list asks for nothing but the CPU provider.
func OnlyCPU(list []Provider) bool {
	for _, p := range list {
		if p != CPUExecutionProvider {
			return false
		}
	}
	return true
}
