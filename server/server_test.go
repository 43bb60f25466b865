package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/inference"
	"github.com/nvr-ai/go-matte/models/model/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// constBackend returns a logit plane of a single value.
type constBackend struct{ logit float32 }

func (b constBackend) Name() string       { return "const" }
func (b constBackend) InputName() string  { return "input_image" }
func (b constBackend) OutputName() string { return "output_image" }
func (b constBackend) Close() error       { return nil }

func (b constBackend) Run(_ context.Context, in *tensor.Dense) (*tensor.Dense, error) {
	h, w := in.Shape()[2], in.Shape()[3]
	data := make([]float32, h*w)
	for i := range data {
		data[i] = b.logit
	}
	return tensor.New(tensor.WithShape(1, 1, h, w), tensor.WithBacking(data)), nil
}

func newTestServer(logit float32) *Server {
	p := &inference.Pipeline{Config: preprocess.DefaultConfig(16, 16), Backend: constBackend{logit: logit}}
	return New(p, 1, nil)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// TestMatteRawBody validates that the mask comes back as a PNG at the original size.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMatteRawBody(t *testing.T) {
	s := newTestServer(50)
	req := httptest.NewRequest(http.MethodPost, "/v1/matte", bytes.NewReader(pngBytes(t, 30, 12)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "255", rec.Header().Get("X-Mask-Min"))
	assert.Equal(t, "255", rec.Header().Get("X-Mask-Max"))
	assert.Equal(t, "255.000", rec.Header().Get("X-Mask-Mean"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	mask, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 12), mask.Bounds())
}

// TestMatteMultipartCutout validates the multipart field and the cutout output.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMatteMultipartCutout(t *testing.T) {
	s := newTestServer(-50)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "in.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 8, 6))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/matte?output=cutout", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))

	out, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), out.Bounds())
	_, _, _, a := out.At(3, 3).RGBA()
	assert.Zero(t, a)
}

// TestMatteErrors validates client error statuses.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestMatteErrors(t *testing.T) {
	s := newTestServer(0)

	tests := []struct {
		name string
		url  string
		body []byte
		want int
	}{
		{"bad output", "/v1/matte?output=trimap", pngBytes(t, 4, 4), http.StatusBadRequest},
		{"empty body", "/v1/matte", nil, http.StatusBadRequest},
		{"not an image", "/v1/matte", []byte("hello"), http.StatusBadRequest},
		{"too large", "/v1/matte", make([]byte, 2<<20), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/octet-stream")
			rec := httptest.NewRecorder()
			s.Routes().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matte", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestInfoAndHealth validates the metadata endpoints.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestInfoAndHealth(t *testing.T) {
	s := newTestServer(0)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		Backend   string            `json:"backend"`
		InputName string            `json:"input_name"`
		Config    preprocess.Config `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "const", info.Backend)
	assert.Equal(t, "input_image", info.InputName)
	assert.Equal(t, 16, info.Config.Height)
}

// TestLoadConfig validates YAML loading over defaults.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
backend: tflite
repo: birefnet-lite
providers: [CPUExecutionProvider]
threads: 2
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "tflite", cfg.Backend)
	assert.Equal(t, "birefnet-lite", cfg.Repo)
	assert.Equal(t, []string{"CPUExecutionProvider"}, cfg.Providers)
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, int64(32), cfg.MaxUploadMB)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, os.WriteFile(path, []byte("max_upload_mb: 0\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, common.ErrConfig)

	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, common.ErrConfig)
}
