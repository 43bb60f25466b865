package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nvr-ai/go-matte/benchmark"
	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"github.com/spf13/cobra"
)

type benchFlags struct {
	modelFlags
	image  string
	opts   benchmark.Options
	asJSON bool
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure matting latency of a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.image == "" {
				return fmt.Errorf("%w: --image is required", common.ErrConfig)
			}
			ctx := cmd.Context()
			logger := slog.Default()

			p, err := f.buildPipeline(ctx, g.hub(), logger)
			if err != nil {
				return err
			}
			defer p.Backend.Close()

			img, err := images.Load(ctx, f.image)
			if err != nil {
				return err
			}

			report, err := benchmark.Run(ctx, p, img, f.opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintf(out, "backend %s, input %v, %d iterations\n", report.Backend, report.InputShape, report.Iterations)
			fmt.Fprintf(out, "preprocess  mean %v\n", report.Preprocess.Mean)
			fmt.Fprintf(out, "inference   mean %v  min %v  max %v\n", report.Inference.Mean, report.Inference.Min, report.Inference.Max)
			fmt.Fprintf(out, "postprocess mean %v\n", report.Postprocess.Mean)
			fmt.Fprintf(out, "total       p50 %v  p95 %v  %.2f fps\n", report.P50, report.P95, report.FramesPerSecond)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.image, "image", "", "Image path or URL (required)")
	cmd.Flags().IntVar(&f.opts.Iterations, "iterations", 10, "Measured runs")
	cmd.Flags().IntVar(&f.opts.Warmup, "warmup", 2, "Unmeasured runs before measuring")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the report as JSON")
	return cmd
}
