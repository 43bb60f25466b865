// Package calibration builds the calibration sample sequence used by static INT8 quantization.
package calibration

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"github.com/nvr-ai/go-matte/models/model/preprocess"
	"github.com/nvr-ai/go-matte/util"
	"github.com/schollz/progressbar/v3"
	"gorgonia.org/tensor"
)

// Loader resolves a path or URL to an RGB image.
type Loader func(ctx context.Context, ref string) (*image.RGBA, error)

// Options configures Build.
type Options struct {
	// InputName is the model input the samples are keyed by.
	InputName string `json:"input_name" yaml:"input_name"`
	// Height is the sample height. It overrides Config.Height.
	Height int `json:"height" yaml:"height"`
	// Width is the sample width. It overrides Config.Width.
	Width int `json:"width" yaml:"width"`
	// Dir is a directory of calibration images.
	Dir string `json:"dir" yaml:"dir"`
	// Image is a single image path or URL, repeated Repeats times.
	Image string `json:"image" yaml:"image"`
	// Repeats is how many samples the single image produces; values below 1 mean 1.
	Repeats int `json:"repeats" yaml:"repeats"`
	// Synthetic is how many synthetic images to generate when no other source yields images.
	Synthetic int `json:"synthetic" yaml:"synthetic"`
	// Config holds the normalization. The zero value means the default normalization.
	Config *preprocess.Config `json:"-" yaml:"-"`
	// Loader loads the Dir and Image entries. Nil means images.Load.
	Loader Loader `json:"-" yaml:"-"`
	// Seed seeds the synthetic noise. Zero means a time-based seed.
	Seed int64 `json:"seed" yaml:"seed"`
	// Logger receives progress and warnings. Nil means slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Progress draws a progress bar on stderr while preprocessing.
	Progress bool `json:"progress" yaml:"progress"`
}

// sourceFunc yields the images of one calibration source, or none.
type sourceFunc func(ctx context.Context) ([]image.Image, error)

type builder struct {
	opts   Options
	cfg    preprocess.Config
	load   Loader
	logger *slog.Logger
}

// Build prepares every calibration sample up front.
//
// Sources are tried in order: the image directory, the single image, then synthetic images.
// The first source that yields at least one image is used and the rest are skipped.
//
// Arguments:
//   - ctx: Cancels remote loads and the preprocessing loop.
//   - opts: Sources, sizes and normalization.
//
// Returns:
//   - *Reader: The prepared sample sequence.
//   - error: common.ErrNoSamples when no source yields an image, common.ErrConfig for bad
//     options.
func Build(ctx context.Context, opts Options) (*Reader, error) {
	b, err := newBuilder(opts)
	if err != nil {
		return nil, err
	}

	sources := []struct {
		name string
		fn   sourceFunc
	}{
		{"dir", b.fromDir},
		{"image", b.fromImage},
		{"synthetic", b.fromSynthetic},
	}

	for _, src := range sources {
		imgs, err := src.fn(ctx)
		if err != nil {
			return nil, err
		}
		if len(imgs) == 0 {
			continue
		}

		samples, err := b.preprocess(ctx, imgs)
		if err != nil {
			return nil, err
		}
		b.logger.Info("calibration samples prepared", "source", src.name, "count", len(samples))
		return &Reader{samples: samples}, nil
	}

	return nil, fmt.Errorf("%w: provide a calibration directory, an image or synthetic > 0", common.ErrNoSamples)
}

func newBuilder(opts Options) (*builder, error) {
	if opts.InputName == "" {
		return nil, fmt.Errorf("%w: calibration input name is empty", common.ErrConfig)
	}

	cfg := preprocess.DefaultConfig(opts.Height, opts.Width)
	if opts.Config != nil {
		cfg = *opts.Config
		cfg.Height, cfg.Width = opts.Height, opts.Width
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &builder{opts: opts, cfg: cfg, load: opts.Loader, logger: opts.Logger}
	if b.load == nil {
		b.load = images.Load
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

func (b *builder) fromDir(ctx context.Context) ([]image.Image, error) {
	if b.opts.Dir == "" {
		return nil, nil
	}

	paths, err := util.ListImageFiles(b.opts.Dir)
	if err != nil {
		b.logger.Warn("calibration directory unreadable", "dir", b.opts.Dir, "error", err)
		return nil, nil
	}

	var imgs []image.Image
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := b.load(ctx, path)
		if err != nil {
			b.logger.Debug("skipping calibration image", "path", path, "error", err)
			continue
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

func (b *builder) fromImage(ctx context.Context) ([]image.Image, error) {
	if b.opts.Image == "" {
		return nil, nil
	}

	img, err := b.load(ctx, b.opts.Image)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.logger.Warn("calibration image failed to load", "image", b.opts.Image, "error", err)
		return nil, nil
	}

	n := max(1, b.opts.Repeats)
	imgs := make([]image.Image, n)
	for i := range imgs {
		imgs[i] = img
	}
	return imgs, nil
}

func (b *builder) fromSynthetic(ctx context.Context) ([]image.Image, error) {
	if b.opts.Synthetic <= 0 {
		return nil, nil
	}

	seed := b.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	noise := images.NewNoise(seed)

	imgs := make([]image.Image, b.opts.Synthetic)
	for i := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		imgs[i] = images.Synthetic(b.cfg.Width, b.cfg.Height, noise)
	}
	return imgs, nil
}

func (b *builder) preprocess(ctx context.Context, imgs []image.Image) ([]Sample, error) {
	var bar *progressbar.ProgressBar
	if b.opts.Progress {
		bar = progressbar.NewOptions(len(imgs),
			progressbar.OptionSetDescription("Calibration"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		defer bar.Finish()
	}

	samples := make([]Sample, 0, len(imgs))
	var last image.Image
	var lastTensor *tensor.Dense
	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Repeated images share one preprocessing pass.
		if img != last {
			res, err := preprocess.Preprocess(img, b.cfg)
			if err != nil {
				return nil, err
			}
			last, lastTensor = img, res.Tensor
		}
		samples = append(samples, Sample{b.opts.InputName: lastTensor.Clone().(*tensor.Dense)})

		if bar != nil {
			bar.Add(1)
		}
	}
	return samples, nil
}
