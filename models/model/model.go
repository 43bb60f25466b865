// Package model - Definitions of hosted matting models and their files.
package model

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-matte/common"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameBiRefNet is the general-purpose BiRefNet.
	ModelNameBiRefNet Name = "birefnet"
	// ModelNameBiRefNetLite is the Swin-T BiRefNet variant.
	ModelNameBiRefNetLite Name = "birefnet-lite"
	// ModelNameBiRefNetPortrait is BiRefNet fine-tuned for portraits.
	ModelNameBiRefNetPortrait Name = "birefnet-portrait"
)

// Precision represents the stored precision of the model weights.
type Precision string

const (
	// PrecisionFP32 represents 32-bit floating point weights.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 represents 16-bit floating point weights.
	PrecisionFP16 Precision = "FP16"
	// PrecisionINT8 represents 8-bit integer QDQ weights.
	PrecisionINT8 Precision = "INT8"
)

// ParsePrecision validates a precision name, case-insensitively. The empty string is FP32.
func ParsePrecision(s string) (Precision, error) {
	if s == "" {
		return PrecisionFP32, nil
	}
	switch p := Precision(strings.ToUpper(s)); p {
	case PrecisionFP32, PrecisionFP16, PrecisionINT8:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown precision %q", common.ErrConfig, s)
}

// Files names the hub files of a model repository.
type Files struct {
	// Config is the preprocessor configuration JSON.
	Config string `json:"config" yaml:"config"`
	// Weights maps each published precision to its ONNX file.
	Weights map[Precision]string `json:"weights" yaml:"weights"`
}

// Spec describes a hosted model.
type Spec struct {
	Name  Name   `json:"name" yaml:"name"`
	Repo  string `json:"repo" yaml:"repo"`
	Files Files  `json:"files" yaml:"files"`
	// InputSize is the square training resolution.
	InputSize int `json:"input_size" yaml:"input_size"`
}

// Weights returns the model file for precision p.
//
// Returns:
//   - string: The file path within the repository.
//   - error: common.ErrNotFound when the repository does not publish p.
func (s Spec) Weights(p Precision) (string, error) {
	if f, ok := s.Files.Weights[p]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s has no %s weights", common.ErrNotFound, s.Repo, p)
}
