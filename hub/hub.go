// Package hub - Model hub file fetcher with an on-disk cache.
package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

const (
	// DefaultEndpoint is the hub base URL.
	DefaultEndpoint = "https://huggingface.co"
	// DefaultRevision is the branch files are resolved from.
	DefaultRevision = "main"
	// DefaultTimeout bounds a single download, including large model files.
	DefaultTimeout = 30 * time.Minute

	EnvToken    = "HF_TOKEN"
	EnvEndpoint = "MATTE_HUB_ENDPOINT"
	EnvCacheDir = "MATTE_CACHE_DIR"
)

// Client downloads repository files and caches them by repository and revision.
type Client struct {
	baseURL  string
	cacheDir string
	token    string
	revision string
	http     *http.Client
	progress io.Writer
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the hub endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithCacheDir overrides the cache root.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) { c.cacheDir = dir }
}

// WithToken sets the bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithRevision resolves files from a branch, tag or commit other than main.
func WithRevision(revision string) ClientOption {
	return func(c *Client) { c.revision = revision }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.http = client }
}

// WithProgress renders a byte progress bar on w while downloading.
func WithProgress(w io.Writer) ClientOption {
	return func(c *Client) { c.progress = w }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// DefaultCacheDir returns $MATTE_CACHE_DIR, or go-matte/hub under the user cache directory.
func DefaultCacheDir() string {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "go-matte", "hub")
}

// NewClient creates a client from the environment and the given options.
//
// Arguments:
//   - options: Overrides applied after the environment.
//
// Returns:
//   - *Client: The client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultEndpoint,
		cacheDir: DefaultCacheDir(),
		token:    os.Getenv(EnvToken),
		revision: DefaultRevision,
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}
	if endpoint := os.Getenv(EnvEndpoint); endpoint != "" {
		c.baseURL = strings.TrimSuffix(endpoint, "/")
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// CachePath returns where file of repo is stored locally.
func (c *Client) CachePath(repo, file string) string {
	dir := "models--" + strings.ReplaceAll(repo, "/", "--")
	return filepath.Join(c.cacheDir, dir, "snapshots", c.revision, filepath.FromSlash(file))
}

// URL returns the resolve URL of file in repo.
func (c *Client) URL(repo, file string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, c.revision, file)
}

// Download returns the local path of file in repo, fetching it on a cache miss.
//
// Arguments:
//   - ctx: Cancels the transfer.
//   - repo: Repository id, e.g. "onnx-community/BiRefNet-ONNX".
//   - file: Path within the repository, e.g. "onnx/model.onnx".
//
// Returns:
//   - string: The cached file path.
//   - error: common.ErrConfig for empty ids, common.ErrFetch for transport or HTTP failures.
func (c *Client) Download(ctx context.Context, repo, file string) (string, error) {
	if err := validate(repo, file); err != nil {
		return "", err
	}

	target := c.CachePath(repo, file)
	if _, err := os.Stat(target); err == nil {
		c.logger.Debug("hub cache hit", "repo", repo, "file", file, "path", target)
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrap(err, "creating cache directory")
	}

	url := c.URL(repo, file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Info("downloading", "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", common.ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s: status %d %s", common.ErrFetch, url, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	var dst io.Writer = tmp
	if c.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(file),
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		dst = io.MultiWriter(tmp, bar)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", fmt.Errorf("%w: %s: %v", common.ErrFetch, url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing temp file")
	}
	tmp = nil
	if err := os.Rename(tmpPath, target); err != nil {
		return "", errors.Wrap(err, "moving download into cache")
	}
	return target, nil
}

func validate(repo, file string) error {
	if repo == "" || file == "" {
		return fmt.Errorf("%w: repository and file are required", common.ErrConfig)
	}
	if strings.Contains(repo, "..") || strings.Contains(file, "..") {
		return fmt.Errorf("%w: invalid path %s/%s", common.ErrConfig, repo, file)
	}
	return nil
}
