package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize     = ImageSize{320, 240}
	LandscapeSize = ImageSize{640, 480}
	PortraitSize  = ImageSize{300, 600}
	SquareSize    = ImageSize{416, 416}
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// GradientImage returns an image whose red channel follows x, green follows y
// and blue is fixed, so every pixel position is distinguishable.
func GradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)), //nolint:gosec // bounded to 0..255
				G: uint8(y * 255 / max(h-1, 1)), //nolint:gosec // bounded to 0..255
				B: 64,
				A: 255,
			})
		}
	}
	return img
}

// WriteImage encodes img into dir/name (PNG or JPEG by extension) and returns
// the full path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec // G304: test-controlled path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	default:
		require.NoError(t, png.Encode(f, img))
	}
	return path
}

// WriteSolidPNG writes a solid w x h PNG into dir and returns its path.
func WriteSolidPNG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()
	return WriteImage(t, dir, name, SolidImage(w, h, c))
}
