package cli

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"github.com/nvr-ai/go-matte/inference"
	"github.com/spf13/cobra"
)

type inferFlags struct {
	modelFlags
	image      string
	saveMask   string
	saveCutout string
}

func newInferCmd(g *globalFlags) *cobra.Command {
	f := &inferFlags{}
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Predict the alpha mask of an image",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model IO -> input: '%s', output: '%s'\n", p.Backend.InputName(), p.Backend.OutputName())

			img, err := images.Load(ctx, f.image)
			if err != nil {
				return err
			}

			result, err := p.Matte(ctx, img)
			if err != nil {
				return err
			}
			return f.save(out, p, img, result)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.image, "image", "", "Image path or URL (required)")
	cmd.Flags().StringVar(&f.saveMask, "save-mask", "mask.png", "Output path of the mask")
	cmd.Flags().StringVar(&f.saveCutout, "save-cutout", "", "Optional output path of the RGBA cutout")
	return cmd
}

// save writes the mask, the optional cutout and the mask statistics.
func (f *inferFlags) save(out io.Writer, p *inference.Pipeline, img image.Image, result *inference.Result) error {
	if err := images.Save(result.Mask, f.saveMask); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved mask: %s\n", f.saveMask)

	if f.saveCutout != "" {
		cutout, err := p.Cutout(img, result.Mask)
		if err != nil {
			return err
		}
		if err := images.Save(cutout, f.saveCutout); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved RGBA cutout: %s\n", f.saveCutout)
	}

	fmt.Fprintf(out, "Mask stats -> min %d  max %d  mean %.2f\n", result.Stats.Min, result.Stats.Max, result.Stats.Mean)
	return nil
}
