// Package quantize - Static INT8 QDQ quantization driver.
//
// The driver prepares everything a quantizer needs: a float model (upcast from FP16 when
// asked), the model's image input name and the calibration samples, exported as .npy files
// alongside a JSON manifest. The quantization itself is delegated to a Quantizer.
package quantize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/models/calibration"
	"github.com/nvr-ai/go-matte/onnx"
	"github.com/pkg/errors"
)

// DefaultOutput is the quantized model path when none is given.
const DefaultOutput = "model_int8_qdq.onnx"

// Options configures Run.
type Options struct {
	// FloatModel is an FP32 model. It is used as is.
	FloatModel string
	// FP16Model is an FP16 model, used together with Upcast.
	FP16Model string
	// Upcast converts FP16Model to FP32 before quantization.
	Upcast bool
	// Out is the quantized model path. Empty means DefaultOutput.
	Out string
	// InputName overrides the detected image input.
	InputName string
	// PerChannel quantizes weights per output channel.
	PerChannel bool
	// Method is the calibration statistic.
	Method Method
	// WorkDir receives the manifest and samples and is kept. Empty means a temporary directory
	// that is removed once the quantizer returns.
	WorkDir string
	// Calibration configures the sample sources; its InputName is filled in by Run.
	Calibration calibration.Options
	Quantizer   Quantizer
	Logger      *slog.Logger
}

// Report describes a completed run.
type Report struct {
	FloatModel string
	Upcast     int
	InputName  string
	Samples    int
	// Manifest is empty when the work directory was temporary.
	Manifest string
	Out        string
}

// Run quantizes a model.
//
// Arguments:
//   - ctx: Cancels calibration and the quantizer.
//   - opts: Model, calibration and quantization settings.
//
// Returns:
//   - *Report: Paths and counts of the run.
//   - error: common.ErrConfig for inconsistent model flags, common.ErrNoSamples when calibration
//     is empty. The quantizer is not invoked in either case.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Quantizer == nil {
		return nil, fmt.Errorf("%w: no quantizer", common.ErrConfig)
	}
	method, err := ParseMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}

	report := &Report{Out: opts.Out}
	if report.Out == "" {
		report.Out = DefaultOutput
	}

	report.FloatModel, report.Upcast, err = floatModel(opts)
	if err != nil {
		return nil, err
	}

	report.InputName = opts.InputName
	if report.InputName == "" {
		report.InputName, err = onnx.DetectInput(report.FloatModel)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("quantization input", "name", report.InputName)

	calib := opts.Calibration
	calib.InputName = report.InputName
	if calib.Logger == nil {
		calib.Logger = logger
	}
	reader, err := calibration.Build(ctx, calib)
	if err != nil {
		return nil, err
	}
	report.Samples = reader.Len()

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = os.MkdirTemp("", "matte-quantize-*"); err != nil {
			return nil, errors.Wrap(err, "creating work directory")
		}
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				logger.Warn("removing work directory", "dir", workDir, "error", err)
			}
		}()
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating work directory")
	}

	manifest := &Manifest{
		ModelInput:     absPath(report.FloatModel),
		ModelOutput:    absPath(report.Out),
		InputName:      report.InputName,
		QuantFormat:    FormatQDQ,
		ActivationType: ActivationTypeUInt8,
		WeightType:     WeightTypeInt8,
		PerChannel:     opts.PerChannel,
		Method:         method,
	}
	if err := exportSamples(reader, workDir, manifest); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(workDir, "manifest.json")
	if err := manifest.Save(manifestPath); err != nil {
		return nil, err
	}

	logger.Info("running quantizer", "manifest", manifestPath, "samples", report.Samples, "method", method)
	if err := opts.Quantizer.Quantize(ctx, manifestPath); err != nil {
		return nil, err
	}
	if opts.WorkDir != "" {
		report.Manifest = manifestPath
	}
	return report, nil
}

// floatModel resolves the FP32 model to quantize, upcasting when requested.
func floatModel(opts Options) (string, int, error) {
	if opts.Upcast {
		if opts.FP16Model == "" {
			return "", 0, fmt.Errorf("%w: upcast needs an fp16 model", common.ErrConfig)
		}
		out := onnx.UpcastPath(opts.FP16Model)
		n, err := onnx.UpcastFile(opts.FP16Model, out)
		if err != nil {
			return "", 0, err
		}
		return out, n, nil
	}
	if opts.FloatModel == "" {
		return "", 0, fmt.Errorf("%w: provide a float model, or an fp16 model with upcast", common.ErrConfig)
	}
	if _, err := os.Stat(opts.FloatModel); err != nil {
		return "", 0, fmt.Errorf("%w: model %s", common.ErrNotFound, opts.FloatModel)
	}
	return opts.FloatModel, 0, nil
}

// exportSamples writes each sample as sample_NNNN.npy and records them in m.
func exportSamples(reader *calibration.Reader, dir string, m *Manifest) error {
	reader.Rewind()
	defer reader.Rewind()

	for i := 0; ; i++ {
		sample, ok := reader.Next()
		if !ok {
			return nil
		}
		t := sample[m.InputName]
		if t == nil {
			return fmt.Errorf("%w: sample %d has no %q entry", common.ErrShape, i, m.InputName)
		}
		if m.Shape == nil {
			m.Shape = []int(t.Shape().Clone())
		}
		name := fmt.Sprintf("sample_%04d.npy", i)
		if err := SaveNPY(filepath.Join(dir, name), t); err != nil {
			return err
		}
		m.Samples = append(m.Samples, name)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
