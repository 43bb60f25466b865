package preprocess

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"github.com/pkg/errors"
)

// DefaultRescaleFactor maps 8-bit pixel values onto [0, 1].
const DefaultRescaleFactor float32 = 1.0 / 255.0

var (
	// DefaultMean is the ImageNet per-channel mean, RGB order.
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	// DefaultStd is the ImageNet per-channel standard deviation, RGB order.
	DefaultStd = [3]float32{0.229, 0.224, 0.225}
)

// Config describes how an image is turned into a model input tensor.
type Config struct {
	// Height is the target input height.
	Height int `json:"height" yaml:"height"`
	// Width is the target input width.
	Width int `json:"width" yaml:"width"`
	// RescaleFactor multiplies each raw pixel value before normalization.
	RescaleFactor float32 `json:"rescale_factor" yaml:"rescale_factor"`
	// Mean is subtracted per channel after rescaling.
	Mean [3]float32 `json:"image_mean" yaml:"image_mean"`
	// Std divides per channel after the mean is subtracted.
	Std [3]float32 `json:"image_std" yaml:"image_std"`
	// Resample is the forward resize filter.
	Resample images.Resample `json:"resample" yaml:"resample"`
}

// DefaultConfig returns the ImageNet normalization at the given input size with bilinear
// resampling.
//
// Arguments:
//   - height: Target input height.
//   - width: Target input width.
//
// Returns:
//   - Config: The configuration.
func DefaultConfig(height, width int) Config {
	return Config{
		Height:        height,
		Width:         width,
		RescaleFactor: DefaultRescaleFactor,
		Mean:          DefaultMean,
		Std:           DefaultStd,
		Resample:      images.ResampleBilinear,
	}
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	if c.Height <= 0 || c.Width <= 0 {
		return fmt.Errorf("%w: input size must be positive, got %dx%d", common.ErrConfig, c.Width, c.Height)
	}
	for i, s := range c.Std {
		if s == 0 {
			return fmt.Errorf("%w: image_std[%d] is zero", common.ErrConfig, i)
		}
	}
	if _, err := c.Resample.Interpolation(); err != nil {
		return err
	}
	return nil
}

// fileConfig mirrors preprocessor_config.json. Pointers distinguish missing keys from zeros.
type fileConfig struct {
	Size *struct {
		Height *int `json:"height"`
		Width  *int `json:"width"`
	} `json:"size"`
	RescaleFactor *float32  `json:"rescale_factor"`
	ImageMean     []float32 `json:"image_mean"`
	ImageStd      []float32 `json:"image_std"`
	Resample      *int      `json:"resample"`
}

// ParseConfig decodes a preprocessor_config.json document.
//
// Every key is optional. Missing keys take the values of DefaultConfig(defaultHeight,
// defaultWidth).
//
// Arguments:
//   - data: The JSON document.
//   - defaultHeight: Height used when size.height is missing.
//   - defaultWidth: Width used when size.width is missing.
//
// Returns:
//   - Config: The validated configuration.
//   - error: common.ErrConfig for malformed JSON, wrong vector lengths or invalid values.
func ParseConfig(data []byte, defaultHeight, defaultWidth int) (Config, error) {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("%w: preprocessor config: %w", common.ErrConfig, err)
	}

	cfg := DefaultConfig(defaultHeight, defaultWidth)
	if fc.Size != nil {
		if fc.Size.Height != nil {
			cfg.Height = *fc.Size.Height
		}
		if fc.Size.Width != nil {
			cfg.Width = *fc.Size.Width
		}
	}
	if fc.RescaleFactor != nil {
		cfg.RescaleFactor = *fc.RescaleFactor
	}
	if fc.ImageMean != nil {
		if len(fc.ImageMean) != 3 {
			return Config{}, fmt.Errorf("%w: image_mean needs 3 values, got %d", common.ErrConfig, len(fc.ImageMean))
		}
		copy(cfg.Mean[:], fc.ImageMean)
	}
	if fc.ImageStd != nil {
		if len(fc.ImageStd) != 3 {
			return Config{}, fmt.Errorf("%w: image_std needs 3 values, got %d", common.ErrConfig, len(fc.ImageStd))
		}
		copy(cfg.Std[:], fc.ImageStd)
	}
	if fc.Resample != nil {
		cfg.Resample = images.Resample(*fc.Resample)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a preprocessor_config.json file.
func LoadConfig(path string, defaultHeight, defaultWidth int) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: preprocessor config %s", common.ErrNotFound, path)
		}
		return Config{}, errors.Wrapf(err, "reading preprocessor config %s", path)
	}
	cfg, err := ParseConfig(data, defaultHeight, defaultWidth)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}
