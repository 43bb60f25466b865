package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/models"
	"github.com/nvr-ai/go-matte/models/model"
	"github.com/nvr-ai/go-matte/quantize"
	"github.com/nvr-ai/go-matte/server"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHub serves fixed file contents and records every request.
type fakeHub struct {
	dir   string
	files map[string]string
	calls []string
}

func (h *fakeHub) Download(_ context.Context, repo, file string) (string, error) {
	h.calls = append(h.calls, repo+"/"+file)
	body, ok := h.files[file]
	if !ok {
		return "", common.ErrNotFound
	}
	path := filepath.Join(h.dir, filepath.Base(file))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestParseLevel validates log level parsing.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestParseLevel(t *testing.T) {
	level, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = parseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = parseLevel("loud")
	assert.ErrorIs(t, err, common.ErrConfig)
}

// TestResolveConfigOrder validates the precedence of --pp-json, --repo and --use-default-pp.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestResolveConfigOrder(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "local.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"size": {"height": 256, "width": 320}}`), 0o644))

	hub := &fakeHub{dir: t.TempDir(), files: map[string]string{
		models.DefaultConfigFile: `{"size": {"height": 1024, "width": 1024}, "image_mean": [0.5, 0.5, 0.5]}`,
	}}
	ctx := context.Background()

	t.Run("pp-json wins", func(t *testing.T) {
		f := &modelFlags{ppJSON: local, repo: "birefnet", useDefaultPP: true}
		cfg, err := f.resolveConfig(ctx, hub, 0, 0, false)
		require.NoError(t, err)
		assert.Equal(t, 256, cfg.Height)
		assert.Equal(t, 320, cfg.Width)
		assert.Empty(t, hub.calls)
	})

	t.Run("repo config", func(t *testing.T) {
		f := &modelFlags{repo: "birefnet", useDefaultPP: true}
		cfg, err := f.resolveConfig(ctx, hub, 0, 0, false)
		require.NoError(t, err)
		assert.Equal(t, 1024, cfg.Height)
		assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, cfg.Mean)
		require.Len(t, hub.calls, 1)
		assert.Equal(t, models.Resolve("birefnet").Repo+"/"+models.DefaultConfigFile, hub.calls[0])
	})

	t.Run("default normalization", func(t *testing.T) {
		f := &modelFlags{useDefaultPP: true}
		cfg, err := f.resolveConfig(ctx, hub, 0, 0, false)
		require.NoError(t, err)
		assert.Equal(t, DefaultPPSize, cfg.Height)
		assert.Equal(t, DefaultPPSize, cfg.Width)
	})

	t.Run("fixed model size", func(t *testing.T) {
		f := &modelFlags{useDefaultPP: true}
		cfg, err := f.resolveConfig(ctx, hub, 768, 640, true)
		require.NoError(t, err)
		assert.Equal(t, 768, cfg.Height)
		assert.Equal(t, 640, cfg.Width)
	})

	t.Run("missing size keys", func(t *testing.T) {
		partial := filepath.Join(dir, "partial.json")
		require.NoError(t, os.WriteFile(partial, []byte(`{"rescale_factor": 0.5}`), 0o644))
		f := &modelFlags{ppJSON: partial}
		cfg, err := f.resolveConfig(ctx, hub, 0, 0, false)
		require.NoError(t, err)
		assert.Equal(t, fallbackConfigSize, cfg.Height)
		assert.Equal(t, float32(0.5), cfg.RescaleFactor)
	})

	t.Run("nothing given", func(t *testing.T) {
		_, err := (&modelFlags{}).resolveConfig(ctx, hub, 0, 0, false)
		assert.ErrorIs(t, err, common.ErrConfig)
	})
}

// TestResolveModel validates local paths, hub downloads and precision selection.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestResolveModel(t *testing.T) {
	ctx := context.Background()
	hub := &fakeHub{dir: t.TempDir(), files: map[string]string{
		models.DefaultWeights[model.PrecisionFP16]: "weights",
	}}

	_, err := (&modelFlags{}).resolveModel(ctx, hub)
	assert.ErrorIs(t, err, common.ErrConfig)

	_, err = (&modelFlags{model: filepath.Join(t.TempDir(), "missing.onnx")}).resolveModel(ctx, hub)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = (&modelFlags{repo: "birefnet", precision: "fp64"}).resolveModel(ctx, hub)
	assert.ErrorIs(t, err, common.ErrConfig)

	path, err := (&modelFlags{repo: "birefnet-lite", precision: "fp16"}).resolveModel(ctx, hub)
	require.NoError(t, err)
	assert.FileExists(t, path)
	require.Len(t, hub.calls, 1)
	assert.Equal(t, models.Resolve("birefnet-lite").Repo+"/"+models.DefaultWeights[model.PrecisionFP16], hub.calls[0])
}

// TestServeFlagsOverrideConfig validates that only flags given on the command line override the
// YAML configuration.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestServeFlagsOverrideConfig(t *testing.T) {
	f := &serveFlags{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	f.register(fs)
	fs.StringVar(&f.listen, "listen", "127.0.0.1:8080", "")
	fs.Int64Var(&f.maxUploadMB, "max-upload-mb", 32, "")
	require.NoError(t, fs.Parse([]string{"--listen", ":9000", "--input-name", "pixel_values"}))

	cfg := server.DefaultConfig()
	cfg.Repo = "birefnet-portrait"
	cfg.MaxUploadMB = 8
	f.apply(fs, &cfg)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, int64(8), cfg.MaxUploadMB)
	assert.Equal(t, "birefnet-portrait", cfg.Repo)
	assert.Equal(t, "pixel_values", cfg.InputName)
	assert.Equal(t, "fp32", cfg.Precision)

	mf := fromServerConfig(cfg)
	assert.Equal(t, "birefnet-portrait", mf.repo)
	assert.Equal(t, "pixel_values", mf.inputName)
	assert.Equal(t, cfg.Backend, mf.backend)
}

// TestCommandValidation validates the argument checks that run before any model is opened.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestCommandValidation(t *testing.T) {
	t.Setenv(quantize.EnvQuantizer, "")
	garbage := filepath.Join(t.TempDir(), "garbage.onnx")
	require.NoError(t, os.WriteFile(garbage, []byte{0xff, 0xff, 0xff}, 0o644))

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"infer without image", []string{"infer", "--use-default-pp"}, common.ErrConfig},
		{"bench without image", []string{"bench"}, common.ErrConfig},
		{"upcast without input", []string{"upcast"}, common.ErrConfig},
		{"upcast missing file", []string{"upcast", "--in", filepath.Join(t.TempDir(), "none.onnx")}, common.ErrNotFound},
		{"inspect without model", []string{"inspect"}, common.ErrConfig},
		{"inspect garbage", []string{"inspect", "--model", garbage}, common.ErrInvalidModel},
		{"quantize without quantizer", []string{"quantize", "--float-model", garbage}, common.ErrConfig},
		{"quantize bad method", []string{"quantize", "--method", "kl"}, common.ErrConfig},
		{"bad log level", []string{"--log-level", "loud", "inspect", "--model", garbage}, common.ErrConfig},
		{"unknown backend", []string{"infer", "--image", "x.png", "--model", garbage, "--backend", "tpu"}, common.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
