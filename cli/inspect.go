package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/onnx"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var path string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the inputs, outputs and initializer types of an ONNX model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("%w: --model is required", common.ErrConfig)
			}
			info, err := onnx.InspectFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "ir_version: %d\n", info.IRVersion)
			for _, domain := range sortedKeys(info.Opsets) {
				name := domain
				if name == "" {
					name = "ai.onnx"
				}
				fmt.Fprintf(out, "opset %s: %d\n", name, info.Opsets[domain])
			}
			for _, in := range info.Inputs {
				fmt.Fprintf(out, "input  %s %s %s\n", in.Name, in.ElemType, in.Shape())
			}
			for _, o := range info.Outputs {
				fmt.Fprintf(out, "output %s %s %s\n", o.Name, o.ElemType, o.Shape())
			}
			types := make([]onnx.DataType, 0, len(info.Initializers))
			for dt := range info.Initializers {
				types = append(types, dt)
			}
			sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
			for _, dt := range types {
				fmt.Fprintf(out, "initializers %s: %d\n", dt, info.Initializers[dt])
			}
			if name, err := info.ImageInput(); err == nil {
				fmt.Fprintf(out, "image input: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "ONNX model (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
