package quantize

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
)

// Method is the calibration statistic used to pick activation ranges.
type Method string

const (
	MethodMinMax  Method = "minmax"
	MethodEntropy Method = "entropy"
)

// ParseMethod validates a calibration method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case MethodMinMax, MethodEntropy:
		return m, nil
	case "":
		return MethodMinMax, nil
	}
	return "", fmt.Errorf("%w: unknown calibration method %q (want minmax or entropy)", common.ErrConfig, s)
}

// Fixed quantization scheme.
const (
	FormatQDQ           = "QDQ"
	ActivationTypeUInt8 = "QUInt8"
	WeightTypeInt8      = "QInt8"
)

// Manifest is handed to the external quantizer. It names the float model, the output path and
// the calibration samples in the order they are to be replayed.
type Manifest struct {
	ModelInput     string   `json:"model_input"`
	ModelOutput    string   `json:"model_output"`
	InputName      string   `json:"input_name"`
	QuantFormat    string   `json:"quant_format"`
	ActivationType string   `json:"activation_type"`
	WeightType     string   `json:"weight_type"`
	PerChannel     bool     `json:"per_channel"`
	Method         Method   `json:"calibrate_method"`
	Shape          []int    `json:"shape"`
	Samples        []string `json:"samples"`
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrConfig, path, err)
	}
	return &m, nil
}
