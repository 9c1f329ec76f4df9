package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string
	Format      string
	SizeBytes   int64
	Width       int
	Height      int
	AspectRatio float64
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// Every failure is reported as an *ImageDecodeError.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: errors.New("empty path")}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Path: path, Err: err}
	}

	img, format, err := decodeBytes(data)
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Path: path, Err: err}
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:        path,
		Format:      format,
		SizeBytes:   int64(len(data)),
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
	return img, meta, nil
}

// DecodeImage decodes an in-memory image stream such as an HTTP upload.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", &ImageDecodeError{Err: err}
	}
	img, format, err := decodeBytes(data)
	if err != nil {
		return nil, "", &ImageDecodeError{Err: err}
	}
	return img, format, nil
}

func decodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("zero-area image: %dx%d", cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// SaveImage encodes img to path, picking the format from the extension.
func SaveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := imaging.Save(img, path); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
