// Package cli - The matte command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/hub"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	cacheDir string
}

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "matte",
		Short:         "Alpha matting with BiRefNet segmentation models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(g.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.cacheDir, "cache-dir", "", "Model cache directory (default $"+hub.EnvCacheDir+" or the user cache)")

	root.AddCommand(
		newInferCmd(g),
		newQuantizeCmd(),
		newUpcastCmd(),
		newInspectCmd(),
		newServeCmd(g),
		newBenchCmd(g),
	)
	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%w: invalid log level %q", common.ErrConfig, s)
	}
	return level, nil
}

func (g *globalFlags) hub() *hub.Client {
	opts := []hub.ClientOption{hub.WithProgress(os.Stderr), hub.WithLogger(slog.Default())}
	if g.cacheDir != "" {
		opts = append(opts, hub.WithCacheDir(g.cacheDir))
	}
	return hub.NewClient(opts...)
}
