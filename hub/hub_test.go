package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDownload validates the resolve URL, bearer auth and caching.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestDownload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/org/Model-ONNX/resolve/main/onnx/model.onnx", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	cache := t.TempDir()
	c := NewClient(WithBaseURL(srv.URL+"/"), WithCacheDir(cache), WithToken("secret"))

	path, err := c.Download(context.Background(), "org/Model-ONNX", "onnx/model.onnx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "models--org--Model-ONNX", "snapshots", "main", "onnx", "model.onnx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	_, err = c.Download(context.Background(), "org/Model-ONNX", "onnx/model.onnx")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

// TestDownloadErrors validates fetch and argument failures.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestDownloadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	cache := t.TempDir()
	c := NewClient(WithBaseURL(srv.URL), WithCacheDir(cache))

	_, err := c.Download(context.Background(), "org/none", "preprocessor_config.json")
	assert.ErrorIs(t, err, common.ErrFetch)
	assert.NoFileExists(t, c.CachePath("org/none", "preprocessor_config.json"))

	_, err = c.Download(context.Background(), "", "x")
	assert.ErrorIs(t, err, common.ErrConfig)
	_, err = c.Download(context.Background(), "org/m", "../escape")
	assert.ErrorIs(t, err, common.ErrConfig)

	srv.Close()
	_, err = c.Download(context.Background(), "org/m", "f.json")
	assert.ErrorIs(t, err, common.ErrFetch)
}

// TestNewClientEnvironment validates environment overrides.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestNewClientEnvironment(t *testing.T) {
	t.Setenv(EnvEndpoint, "http://mirror.local/")
	t.Setenv(EnvCacheDir, "/tmp/matte-cache")
	t.Setenv(EnvToken, "tok")

	c := NewClient(WithRevision("v2"))
	assert.Equal(t, "http://mirror.local/org/m/resolve/v2/a.json", c.URL("org/m", "a.json"))
	assert.Equal(t, filepath.Join("/tmp/matte-cache", "models--org--m", "snapshots", "v2", "a.json"),
		c.CachePath("org/m", "a.json"))
	assert.Equal(t, "tok", c.token)
}
