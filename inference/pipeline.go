package inference

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/models/model/preprocess"
	"github.com/nvr-ai/go-matte/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Timings records how long each pipeline stage took.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Postprocess
}

// Result is the outcome of one matting run.
type Result struct {
	// Mask is the alpha mask at the original image size.
	Mask *image.Gray
	// Stats summarizes Mask.
	Stats postprocess.MaskStats
	// InputShape is the shape fed to the backend.
	InputShape []int
	// OutputShape is the shape the backend returned.
	OutputShape []int
	// Timings per stage.
	Timings Timings
}

// Pipeline runs preprocess, inference and postprocess for one backend.
//
// A Pipeline holds no per-call state; serializing calls is the backend's or caller's concern.
type Pipeline struct {
	Config  preprocess.Config
	Backend Backend
	Logger  *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Preprocess converts img into the backend's input tensor.
func (p *Pipeline) Preprocess(img image.Image) (*preprocess.Result, error) {
	return preprocess.Preprocess(img, p.Config)
}

// Run executes the backend.
func (p *Pipeline) Run(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("%w: pipeline has no backend", common.ErrConfig)
	}
	out, err := p.Backend.Run(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "%s inference", p.Backend.Name())
	}
	return out, nil
}

// Postprocess converts logits into a mask of width x height.
func (p *Pipeline) Postprocess(logits *tensor.Dense, width, height int) (*image.Gray, error) {
	return postprocess.Mask(logits, width, height)
}

// Matte produces the alpha mask of img.
//
// Arguments:
//   - ctx: Cancels the run between stages.
//   - img: The input image.
//
// Returns:
//   - *Result: The mask, its statistics, tensor shapes and stage timings.
//   - error: Any stage failure.
func (p *Pipeline) Matte(ctx context.Context, img image.Image) (*Result, error) {
	var timings Timings

	start := time.Now()
	pre, err := p.Preprocess(img)
	if err != nil {
		return nil, err
	}
	timings.Preprocess = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	out, err := p.Run(ctx, pre.Tensor)
	if err != nil {
		return nil, err
	}
	timings.Inference = time.Since(start)

	start = time.Now()
	mask, err := p.Postprocess(out, pre.OriginalWidth, pre.OriginalHeight)
	if err != nil {
		return nil, err
	}
	timings.Postprocess = time.Since(start)

	result := &Result{
		Mask:        mask,
		Stats:       postprocess.Stats(mask),
		InputShape:  []int(pre.Tensor.Shape().Clone()),
		OutputShape: []int(out.Shape().Clone()),
		Timings:     timings,
	}

	p.logger().Debug("matte complete",
		"backend", p.Backend.Name(),
		"input_shape", result.InputShape,
		"output_shape", result.OutputShape,
		"preprocess", timings.Preprocess,
		"inference", timings.Inference,
		"postprocess", timings.Postprocess,
	)
	return result, nil
}

// Cutout combines img with mask into an RGBA cutout.
func (p *Pipeline) Cutout(img image.Image, mask *image.Gray) (*image.NRGBA, error) {
	return postprocess.Cutout(img, mask)
}
