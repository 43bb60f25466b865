package cli

import (
	"fmt"
	"log/slog"

	"github.com/nvr-ai/go-matte/models/calibration"
	"github.com/nvr-ai/go-matte/quantize"
	"github.com/spf13/cobra"
)

type quantizeFlags struct {
	floatModel string
	fp16Model  string
	upcast     bool
	out        string
	inputName  string
	height     int
	width      int
	calibDir   string
	image      string
	repeats    int
	synthetic  int
	seed       int64
	perChannel bool
	method     string
	quantizer  string
	workDir    string
}

func newQuantizeCmd() *cobra.Command {
	f := &quantizeFlags{}
	cmd := &cobra.Command{
		Use:   "quantize",
		Short: "Statically quantize a model to INT8 QDQ",
		Long: "Prepares the float model and calibration samples, then runs the external quantizer with " +
			"the path of a JSON manifest as its last argument.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := quantize.ParseMethod(f.method)
			if err != nil {
				return err
			}
			q, err := quantize.NewExecQuantizer(f.quantizer)
			if err != nil {
				return err
			}
			q.Stdout, q.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()

			report, err := quantize.Run(cmd.Context(), quantize.Options{
				FloatModel: f.floatModel,
				FP16Model:  f.fp16Model,
				Upcast:     f.upcast,
				Out:        f.out,
				InputName:  f.inputName,
				PerChannel: f.perChannel,
				Method:     method,
				WorkDir:    f.workDir,
				Calibration: calibration.Options{
					Height:    f.height,
					Width:     f.width,
					Dir:       f.calibDir,
					Image:     f.image,
					Repeats:   f.repeats,
					Synthetic: f.synthetic,
					Seed:      f.seed,
					Progress:  true,
				},
				Quantizer: q,
				Logger:    slog.Default(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.upcast {
				fmt.Fprintf(out, "[fp16->fp32] %d tensors -> %s\n", report.Upcast, report.FloatModel)
			}
			fmt.Fprintf(out, "[info] input: %s\n", report.InputName)
			fmt.Fprintf(out, "[calib] %d samples prepared.\n", report.Samples)
			fmt.Fprintf(out, "[done] saved: %s\n", report.Out)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.floatModel, "float-model", "", "FP32 model to quantize")
	fs.StringVar(&f.fp16Model, "fp16-model", "", "FP16 model, used with --upcast")
	fs.BoolVar(&f.upcast, "upcast", false, "Convert --fp16-model initializers to FP32 first")
	fs.StringVar(&f.out, "out", quantize.DefaultOutput, "Quantized model path")
	fs.StringVar(&f.inputName, "input-name", "", "Model input name (default: detected)")
	fs.IntVar(&f.height, "height", 1024, "Calibration input height")
	fs.IntVar(&f.width, "width", 1024, "Calibration input width")
	fs.StringVar(&f.calibDir, "calib-dir", "", "Directory of calibration images")
	fs.StringVar(&f.image, "image", "", "Single calibration image path or URL")
	fs.IntVar(&f.repeats, "repeats", 32, "Samples produced from --image")
	fs.IntVar(&f.synthetic, "synthetic", 64, "Synthetic samples when no image source is usable")
	fs.Int64Var(&f.seed, "seed", 0, "Synthetic noise seed (default: time based)")
	fs.BoolVar(&f.perChannel, "per-channel", false, "Quantize weights per channel")
	fs.StringVar(&f.method, "method", string(quantize.MethodMinMax), "Calibration method: minmax or entropy")
	fs.StringVar(&f.quantizer, "quantizer", "", "Quantizer command (default $"+quantize.EnvQuantizer+")")
	fs.StringVar(&f.workDir, "work-dir", "", "Directory kept with the manifest and samples (default: a temporary directory, removed afterwards)")

	return cmd
}
