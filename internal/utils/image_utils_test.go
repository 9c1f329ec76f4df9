package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.webp", true},
		{"g.txt", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	dir := t.TempDir()
	p := writeTempPNG(t, dir, 10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 10, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Positive(t, meta.SizeBytes)
	assert.InDelta(t, 0.5, meta.AspectRatio, 1e-9)
}

func TestLoadImage_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not an image"), 0o600))
	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	for name, path := range map[string]string{
		"empty path":   "",
		"missing file": filepath.Join(dir, "nope.png"),
		"garbage":      garbage,
		"zero bytes":   empty,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadImage(path)
			require.Error(t, err)
			var decErr *ImageDecodeError
			assert.True(t, errors.As(err, &decErr), "expected ImageDecodeError, got %T", err)
		})
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))))

	img, format, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 7, img.Bounds().Dx())

	_, _, err = DecodeImage(bytes.NewReader([]byte{0x00, 0x01}))
	var decErr *ImageDecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Empty(t, decErr.Path)
}

func TestSaveImage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, SaveImage(src, path))

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, src.Bounds(), img.Bounds())
}

func TestNewBox_OrdersCorners(t *testing.T) {
	b := NewBox(30, 40, 10, 20)
	assert.Equal(t, Box{MinX: 10, MinY: 20, MaxX: 30, MaxY: 40}, b)
	assert.InDelta(t, 20.0, b.Width(), 1e-9)
	assert.InDelta(t, 20.0, b.Height(), 1e-9)
}

func TestBox_ToRectClamps(t *testing.T) {
	b := Box{MinX: -5.5, MinY: 2.2, MaxX: 120.1, MaxY: 8.7}
	r := b.ToRect(image.Rect(0, 0, 100, 50))
	assert.Equal(t, image.Rect(0, 2, 100, 9), r)
}

func TestDrawRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	red := color.RGBA{R: 255, A: 255}
	DrawRect(img, image.Rect(2, 2, 8, 8), red, 1)

	assert.Equal(t, red, img.RGBAAt(2, 2))
	assert.Equal(t, red, img.RGBAAt(7, 7))
	assert.Equal(t, red, img.RGBAAt(5, 2))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(5, 5), "interior stays untouched")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
}

func TestDrawLabel_StaysInBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	bg := color.RGBA{B: 255, A: 255}
	assert.NotPanics(t, func() {
		DrawLabel(img, image.Pt(35, 0), "person 0.87", color.White, bg)
	})
	painted := 0
	for y := range 20 {
		for x := range 40 {
			if img.RGBAAt(x, y) != (color.RGBA{}) {
				painted++
			}
		}
	}
	assert.Positive(t, painted)

	untouched := image.NewRGBA(image.Rect(0, 0, 5, 5))
	DrawLabel(untouched, image.Pt(0, 0), "", color.White, bg)
	assert.Equal(t, color.RGBA{}, untouched.RGBAAt(0, 0))
}
