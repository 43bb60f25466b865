package cli

import (
	"fmt"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/onnx"
	"github.com/spf13/cobra"
)

func newUpcastCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "upcast",
		Short: "Rewrite FP16 initializers of an ONNX model as FP32",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return fmt.Errorf("%w: --in is required", common.ErrConfig)
			}
			if out == "" {
				out = onnx.UpcastPath(in)
			}
			n, err := onnx.UpcastFile(in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[fp16->fp32] %d tensors -> %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "FP16 model (required)")
	cmd.Flags().StringVar(&out, "out", "", "Output model (default <in>_fp32_tmp.onnx)")
	return cmd
}
