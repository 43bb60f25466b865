package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-matte/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 128})
		}
	}
	return img
}

// TestToRGB validates alpha removal and origin anchoring.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestToRGB(t *testing.T) {
	src := gradient(5, 3).SubImage(image.Rect(1, 1, 5, 3))

	rgb := ToRGB(src)
	require.Equal(t, image.Rect(0, 0, 4, 2), rgb.Bounds())

	got := rgb.RGBAAt(0, 0)
	assert.Equal(t, color.RGBA{R: 1, G: 1, B: 7, A: 255}, got)
}

// TestAsRGB validates that only opaque origin-anchored RGBA images are passed through uncopied.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestAsRGB(t *testing.T) {
	opaque := ToRGB(gradient(6, 4))
	assert.Same(t, opaque, AsRGB(opaque))

	shifted := opaque.SubImage(image.Rect(1, 1, 6, 4))
	got := AsRGB(shifted)
	assert.NotSame(t, opaque, got)
	assert.Equal(t, image.Rect(0, 0, 5, 3), got.Bounds())
	assert.Equal(t, opaque.RGBAAt(1, 1), got.RGBAAt(0, 0))

	translucent := image.NewRGBA(image.Rect(0, 0, 2, 2))
	translucent.SetRGBA(0, 0, color.RGBA{R: 64, A: 128})
	got = AsRGB(translucent)
	assert.NotSame(t, translucent, got)
	assert.Equal(t, color.RGBA{R: 127, A: 255}, got.RGBAAt(0, 0))
}

// TestResampleInterpolation validates the mapping from filter codes to kernels.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestResampleInterpolation(t *testing.T) {
	for _, r := range []Resample{ResampleNearest, ResampleLanczos, ResampleBilinear, ResampleBicubic} {
		_, err := r.Interpolation()
		assert.NoError(t, err, r.String())
	}
	for _, r := range []Resample{ResampleBox, ResampleHamming, Resample(9)} {
		_, err := r.Interpolation()
		assert.ErrorIs(t, err, common.ErrConfig, r.String())
	}
}

// TestResize validates exact output dimensions and type preservation.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestResize(t *testing.T) {
	out, err := Resize(ToRGB(gradient(64, 48)), 17, 9, ResampleBilinear)
	require.NoError(t, err)
	assert.Equal(t, 17, out.Bounds().Dx())
	assert.Equal(t, 9, out.Bounds().Dy())
	assert.IsType(t, &image.RGBA{}, out)

	gray, err := Resize(image.NewGray(image.Rect(0, 0, 8, 8)), 20, 10, ResampleBilinear)
	require.NoError(t, err)
	assert.IsType(t, &image.Gray{}, gray)

	_, err = Resize(gradient(4, 4), 0, 4, ResampleBilinear)
	assert.ErrorIs(t, err, common.ErrConfig)
}

// TestLoadFile validates local path resolution and its error paths.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, gradient(6, 4)), 0o644))

	img, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, uint8(255), img.RGBAAt(2, 2).A)

	_, err = Load(context.Background(), filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = Load(context.Background(), garbage)
	assert.ErrorIs(t, err, common.ErrDecode)
}

// TestLoadURL validates remote fetching, HTTP status handling and decode failures.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestLoadURL(t *testing.T) {
	payload := encodePNG(t, gradient(3, 2))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write(payload)
		case "/bad.png":
			w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := &Source{Client: srv.Client()}

	img, err := src.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = src.Load(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, common.ErrFetch)

	_, err = src.Load(context.Background(), srv.URL+"/bad.png")
	assert.ErrorIs(t, err, common.ErrDecode)
}

// TestFormatFromPath validates the case-sensitive extension match used for directory scans.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("a/b/c.jpeg")
	assert.True(t, ok)
	assert.Equal(t, FormatJPEG, f)

	_, ok = FormatFromPath("c.JPG")
	assert.False(t, ok)

	_, ok = FormatFromPath("notes.txt")
	assert.False(t, ok)

	assert.True(t, IsURL("https://example.com/x.png"))
	assert.False(t, IsURL("/tmp/x.png"))
}

// TestSynthetic validates size, opacity and the value range of synthetic images.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestSynthetic(t *testing.T) {
	img := Synthetic(16, 8, NewNoise(42))
	require.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())

	var top, bottom int
	for i := 0; i < len(img.Pix); i += 4 {
		assert.Equal(t, uint8(255), img.Pix[i+3])
	}
	for x := 0; x < 16; x++ {
		top += int(img.RGBAAt(x, 0).R)
		bottom += int(img.RGBAAt(x, 7).R)
	}
	assert.Greater(t, bottom, top, "gradient should brighten towards the bottom")

	same := Synthetic(16, 8, NewNoise(42))
	assert.Equal(t, img.Pix, same.Pix, "equal seeds should give equal images")

	one := Synthetic(1, 1, zeroNoise{})
	assert.Equal(t, uint8(51), one.Pix[0])
}

type zeroNoise struct{}

func (zeroNoise) Gaussian(float64, float64) float64 { return 0 }

// TestSave validates extension-driven encoding, including lossless WebP.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestSave(t *testing.T) {
	dir := t.TempDir()
	src := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 10)
	}

	for _, name := range []string{"mask.png", "mask.webp", "mask.bmp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(src, path), name)

		img, err := DecodeFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, src.Bounds(), img.Bounds(), name)
		assert.Equal(t, uint8(120), img.RGBAAt(2, 2).R, name)
	}
}
