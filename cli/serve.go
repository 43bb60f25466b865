package cli

import (
	"log/slog"

	"github.com/nvr-ai/go-matte/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type serveFlags struct {
	modelFlags
	config      string
	listen      string
	maxUploadMB int64
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve matting over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if f.config != "" {
				var err error
				if cfg, err = server.LoadConfig(f.config); err != nil {
					return err
				}
			}
			f.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			mf := fromServerConfig(cfg)
			ctx := cmd.Context()
			logger := slog.Default()

			p, err := mf.buildPipeline(ctx, g.hub(), logger)
			if err != nil {
				return err
			}
			defer p.Backend.Close()

			return server.New(p, cfg.MaxUploadMB, logger).ListenAndServe(ctx, cfg.Listen)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.config, "config", "", "YAML service configuration")
	cmd.Flags().StringVar(&f.listen, "listen", server.DefaultConfig().Listen, "Listen address")
	cmd.Flags().Int64Var(&f.maxUploadMB, "max-upload-mb", server.DefaultConfig().MaxUploadMB, "Request body limit in MiB")
	return cmd
}

// apply overrides cfg with every flag given on the command line.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *server.Config) {
	fs.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "listen":
			cfg.Listen = f.listen
		case "max-upload-mb":
			cfg.MaxUploadMB = f.maxUploadMB
		case "backend":
			cfg.Backend = f.backend
		case "model":
			cfg.Model = f.model
		case "repo":
			cfg.Repo = f.repo
		case "pp-json":
			cfg.PPJSON = f.ppJSON
		case "use-default-pp":
			cfg.UseDefaultPP = f.useDefaultPP
		case "providers":
			cfg.Providers = f.providers
		case "threads":
			cfg.Threads = f.threads
		case "edgetpu":
			cfg.EdgeTPU = f.edgeTPU
		case "opencv-target":
			cfg.OpenCVTarget = f.opencvTarget
		case "precision":
			cfg.Precision = f.precision
		case "input-name":
			cfg.InputName = f.inputName
		case "output-name":
			cfg.OutputName = f.outputName
		}
	})
	if cfg.Threads == 0 {
		cfg.Threads = f.threads
	}
	if cfg.OpenCVTarget == "" {
		cfg.OpenCVTarget = f.opencvTarget
	}
	if cfg.Backend == "" {
		cfg.Backend = f.backend
	}
	if cfg.Precision == "" {
		cfg.Precision = f.precision
	}
}

// fromServerConfig maps the service configuration onto model flags.
func fromServerConfig(cfg server.Config) *modelFlags {
	return &modelFlags{
		backend:      cfg.Backend,
		repo:         cfg.Repo,
		model:        cfg.Model,
		precision:    cfg.Precision,
		ppJSON:       cfg.PPJSON,
		useDefaultPP: cfg.UseDefaultPP,
		providers:    cfg.Providers,
		threads:      cfg.Threads,
		edgeTPU:      cfg.EdgeTPU,
		opencvTarget: cfg.OpenCVTarget,
		inputName:    cfg.InputName,
		outputName:   cfg.OutputName,
	}
}
