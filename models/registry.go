// Package models - Registry of hosted matting models.
package models

import (
	"sort"
	"strings"

	"github.com/nvr-ai/go-matte/models/model"
)

// DefaultConfigFile is the preprocessor configuration file of onnx-community repositories.
const DefaultConfigFile = "preprocessor_config.json"

// DefaultWeights are the ONNX files published by onnx-community repositories.
var DefaultWeights = map[model.Precision]string{
	model.PrecisionFP32: "onnx/model.onnx",
	model.PrecisionFP16: "onnx/model_fp16.onnx",
	model.PrecisionINT8: "onnx/model_quantized.onnx",
}

var registry = map[model.Name]model.Spec{
	model.ModelNameBiRefNet:         hosted(model.ModelNameBiRefNet, "onnx-community/BiRefNet-ONNX"),
	model.ModelNameBiRefNetLite:     hosted(model.ModelNameBiRefNetLite, "onnx-community/BiRefNet_lite-ONNX"),
	model.ModelNameBiRefNetPortrait: hosted(model.ModelNameBiRefNetPortrait, "onnx-community/BiRefNet-portrait-ONNX"),
}

func hosted(name model.Name, repo string) model.Spec {
	return model.Spec{
		Name:      name,
		Repo:      repo,
		Files:     model.Files{Config: DefaultConfigFile, Weights: DefaultWeights},
		InputSize: 1024,
	}
}

// Resolve maps a registry alias or a raw repository id to a model spec.
//
// Aliases are matched case-insensitively. Any other value is treated as a repository id with
// the default file layout.
//
// Arguments:
//   - repo: An alias such as "birefnet-lite" or a repository id such as "org/Model-ONNX".
//
// Returns:
//   - model.Spec: The resolved model.
func Resolve(repo string) model.Spec {
	if spec, ok := registry[model.Name(strings.ToLower(repo))]; ok {
		return spec
	}
	return model.Spec{
		Name:  model.Name(repo),
		Repo:  repo,
		Files: model.Files{Config: DefaultConfigFile, Weights: DefaultWeights},
	}
}

// Names lists the registry aliases in sorted order.
func Names() []model.Name {
	names := make([]model.Name, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
