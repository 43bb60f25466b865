package server

import (
	"fmt"
	"os"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration file.
type Config struct {
	// Listen is the TCP address to serve on.
	Listen string `yaml:"listen"`
	// Backend is one of ort, tflite, opencv.
	Backend string `yaml:"backend"`
	// Model is a local model file.
	Model string `yaml:"model"`
	// Repo is a registry alias or hub repository id.
	Repo string `yaml:"repo"`
	// Precision selects the weights downloaded for Repo.
	Precision string `yaml:"precision"`
	// PPJSON is a local preprocessor configuration file.
	PPJSON string `yaml:"pp_json"`
	// UseDefaultPP uses the default normalization when no configuration file is available.
	UseDefaultPP bool `yaml:"use_default_pp"`
	// Providers is the ordered ONNX Runtime provider list.
	Providers []string `yaml:"providers"`
	// Threads is the TFLite interpreter thread count.
	Threads int `yaml:"threads"`
	// EdgeTPU enables the TFLite Edge TPU delegate.
	EdgeTPU bool `yaml:"edgetpu"`
	// OpenCVTarget is the OpenCV DNN target.
	OpenCVTarget string `yaml:"opencv_target"`
	// InputName and OutputName override the model's first input and output.
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
	// MaxUploadMB caps request bodies.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:      "127.0.0.1:8080",
		Backend:     "ort",
		MaxUploadMB: 32,
	}
}

// LoadConfig reads a YAML configuration over the defaults.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: common.ErrNotFound for a missing file, common.ErrConfig for bad YAML or values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: config %s", common.ErrNotFound, path)
		}
		return cfg, errors.Wrapf(err, "reading %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", common.ErrConfig, path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports whether the configuration can be served.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is empty", common.ErrConfig)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: max_upload_mb must be positive, got %d", common.ErrConfig, c.MaxUploadMB)
	}
	return nil
}
