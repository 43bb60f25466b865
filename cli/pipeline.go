package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/inference"
	"github.com/nvr-ai/go-matte/inference/opencv"
	"github.com/nvr-ai/go-matte/inference/providers"
	"github.com/nvr-ai/go-matte/inference/tflite"
	"github.com/nvr-ai/go-matte/models"
	"github.com/nvr-ai/go-matte/models/model"
	"github.com/nvr-ai/go-matte/models/model/preprocess"
	"github.com/spf13/pflag"
)

// DefaultPPSize is the input size of the default normalization when the model does not fix one.
const DefaultPPSize = 512

// fallbackConfigSize fills in a missing size key of a preprocessor config.
const fallbackConfigSize = 1024

// modelFlags select a model, its preprocessing and the backend that runs it.
type modelFlags struct {
	backend      string
	repo         string
	model        string
	precision    string
	ppJSON       string
	useDefaultPP bool
	providers    []string
	threads      int
	edgeTPU      bool
	opencvTarget string
	inputName    string
	outputName   string
}

func (f *modelFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.backend, "backend", string(inference.BackendORT), "Inference backend: ort, tflite or opencv")
	fs.StringVar(&f.repo, "repo", "", "Hub repository id or alias (birefnet, birefnet-lite, birefnet-portrait)")
	fs.StringVar(&f.model, "model", "", "Local model file")
	fs.StringVar(&f.precision, "precision", "fp32", "Weights to download with --repo: fp32, fp16 or int8")
	fs.StringVar(&f.ppJSON, "pp-json", "", "Local preprocessor_config.json")
	fs.BoolVar(&f.useDefaultPP, "use-default-pp", false, "Use ImageNet normalization when no preprocessor config is available")
	fs.StringSliceVar(&f.providers, "providers", nil, "ONNX Runtime providers in priority order (default CUDA,CPU)")
	fs.IntVar(&f.threads, "threads", tflite.DefaultThreads, "TFLite interpreter threads")
	fs.BoolVar(&f.edgeTPU, "edgetpu", false, "Try the Edge TPU delegate (tflite)")
	fs.StringVar(&f.opencvTarget, "opencv-target", string(opencv.TargetCPU), "OpenCV DNN target: cpu, cuda, cuda-fp16 or openvino")
	fs.StringVar(&f.inputName, "input-name", "", "Model input name (default: first input)")
	fs.StringVar(&f.outputName, "output-name", "", "Model output name (default: first output)")
}

// downloader fetches hub files.
type downloader interface {
	Download(ctx context.Context, repo, file string) (string, error)
}

// resolveModel returns the local model path: --model, else the --repo download.
func (f *modelFlags) resolveModel(ctx context.Context, hub downloader) (string, error) {
	if f.model != "" {
		if _, err := os.Stat(f.model); err != nil {
			return "", fmt.Errorf("%w: model %s", common.ErrNotFound, f.model)
		}
		return f.model, nil
	}
	if f.repo == "" {
		return "", fmt.Errorf("%w: provide --model or --repo", common.ErrConfig)
	}
	precision, err := model.ParsePrecision(f.precision)
	if err != nil {
		return "", err
	}
	file, err := models.Resolve(f.repo).Weights(precision)
	if err != nil {
		return "", err
	}
	return hub.Download(ctx, models.Resolve(f.repo).Repo, file)
}

// resolveConfig returns the preprocessing config: --pp-json, else the --repo config, else the
// default normalization when --use-default-pp is set. A fixed model input size takes the place
// of the defaults.
func (f *modelFlags) resolveConfig(ctx context.Context, hub downloader, height, width int, fixed bool) (preprocess.Config, error) {
	defH, defW := fallbackConfigSize, fallbackConfigSize
	if fixed {
		defH, defW = height, width
	}

	switch {
	case f.ppJSON != "":
		return preprocess.LoadConfig(f.ppJSON, defH, defW)
	case f.repo != "":
		spec := models.Resolve(f.repo)
		path, err := hub.Download(ctx, spec.Repo, spec.Files.Config)
		if err != nil {
			return preprocess.Config{}, err
		}
		return preprocess.LoadConfig(path, defH, defW)
	case f.useDefaultPP:
		if fixed {
			return preprocess.DefaultConfig(height, width), nil
		}
		return preprocess.DefaultConfig(DefaultPPSize, DefaultPPSize), nil
	}
	return preprocess.Config{}, fmt.Errorf("%w: provide --pp-json, --repo or --use-default-pp", common.ErrConfig)
}

// openBackend creates the selected backend for the model at path.
func (f *modelFlags) openBackend(path string, logger *slog.Logger) (inference.Backend, error) {
	kind, err := inference.ParseBackendType(f.backend)
	if err != nil {
		return nil, err
	}

	switch kind {
	case inference.BackendTFLite:
		b, err := tflite.New(path, tflite.Options{Threads: f.threads, EdgeTPU: f.edgeTPU, Logger: logger})
		if err != nil {
			return nil, err
		}
		return b, nil
	case inference.BackendOpenCV:
		target, err := opencv.ParseTarget(f.opencvTarget)
		if err != nil {
			return nil, err
		}
		b, err := opencv.New(path, opencv.Options{
			Target: target, InputName: f.inputName, OutputName: f.outputName, Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		list, err := providers.ParseProviders(f.providers)
		if err != nil {
			return nil, err
		}
		s, err := providers.NewSession(path, providers.Options{
			Providers:  list,
			InputName:  f.inputName,
			OutputName: f.outputName,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// buildPipeline resolves the model and config and opens the backend.
func (f *modelFlags) buildPipeline(ctx context.Context, hub downloader, logger *slog.Logger) (*inference.Pipeline, error) {
	path, err := f.resolveModel(ctx, hub)
	if err != nil {
		return nil, err
	}

	backend, err := f.openBackend(path, logger)
	return inference.NewPipelineBuilder().
		WithBackend(backend, err).
		WithConfig(func(h, w int, fixed bool) (preprocess.Config, error) {
			return f.resolveConfig(ctx, hub, h, w, fixed)
		}).
		WithLogger(logger).
		Build()
}
