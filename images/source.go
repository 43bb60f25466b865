package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nvr-ai/go-matte/common"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultFetchTimeout bounds connect and read time for remote images.
const DefaultFetchTimeout = 30 * time.Second

// Source resolves a path-or-URL reference to a decoded RGB image.
type Source struct {
	// Client is used for http(s) references.
	Client *http.Client
}

// NewSource creates a Source whose HTTP client uses DefaultFetchTimeout.
func NewSource() *Source {
	return &Source{Client: &http.Client{Timeout: DefaultFetchTimeout}}
}

var defaultSource = NewSource()

// Load resolves ref with the default Source.
func Load(ctx context.Context, ref string) (*image.RGBA, error) {
	return defaultSource.Load(ctx, ref)
}

// Load resolves ref to an opaque RGB image.
//
// Arguments:
//   - ctx: Cancels a remote fetch.
//   - ref: A local file path or an http(s) URL.
//
// Returns:
//   - *image.RGBA: The decoded image converted to RGB.
//   - error: common.ErrNotFound for a missing file, common.ErrFetch for network or HTTP
//     status failures, common.ErrDecode for undecodable bytes.
func (s *Source) Load(ctx context.Context, ref string) (*image.RGBA, error) {
	if IsURL(ref) {
		data, err := s.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		return Decode(bytes.NewReader(data))
	}
	return DecodeFile(ref)
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrFetch, url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: unexpected status %s", common.ErrFetch, url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", common.ErrFetch, url, err)
	}
	return data, nil
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: image %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode decodes JPEG, PNG, GIF, BMP or WebP data and converts the result to RGB.
func Decode(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecode, err)
	}
	return ToRGB(img), nil
}
