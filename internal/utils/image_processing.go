package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageDecodeError is returned when a source image cannot be read, cannot be
// decoded, or has zero area.
type ImageDecodeError struct {
	Path string // empty for in-memory sources
	Err  error
}

func (e *ImageDecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image decode error: %v", e.Err)
	}
	return fmt.Sprintf("image decode error for %s: %v", e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// DefaultFillColor is the letterbox padding color used by YOLO-style models.
var DefaultFillColor = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// Letterboxed is a fixed-size canvas holding a centered, aspect-preserving copy
// of a source image.
type Letterboxed struct {
	Image *image.NRGBA

	Width  int // canvas width, always the requested target width
	Height int // canvas height, always the requested target height

	ContentWidth  int
	ContentHeight int
	PadLeft       int
	PadTop        int
	Scale         float64

	SourceWidth  int
	SourceHeight int
}

// Letterbox resizes img to fit inside a targetWidth x targetHeight canvas while
// preserving its aspect ratio, then centers it on a canvas filled with fill.
//
// Content dimensions are floor(src*scale) where scale is the smaller of the two
// axis ratios, so the content never exceeds the canvas. The axis that limits the
// scale always spans the full canvas.
func Letterbox(img image.Image, targetWidth, targetHeight int, fill color.Color,
	filter imaging.ResampleFilter,
) (*Letterboxed, error) {
	if img == nil {
		return nil, &ImageDecodeError{Err: errors.New("input image is nil")}
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight),
		}
	}

	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()
	if iw <= 0 || ih <= 0 {
		return nil, &ImageDecodeError{Err: fmt.Errorf("zero-area image: %dx%d", iw, ih)}
	}
	if fill == nil {
		fill = DefaultFillColor
	}

	nw, nh, scale := LetterboxSize(iw, ih, targetWidth, targetHeight)

	var content *image.NRGBA
	if nw == iw && nh == ih {
		content = imaging.Clone(img)
	} else {
		content = imaging.Resize(img, nw, nh, filter)
	}

	padLeft := (targetWidth - nw) / 2
	padTop := (targetHeight - nh) / 2

	canvas := imaging.New(targetWidth, targetHeight, fill)
	canvas = imaging.Overlay(canvas, content, image.Pt(padLeft, padTop), 1.0)

	return &Letterboxed{
		Image:         canvas,
		Width:         targetWidth,
		Height:        targetHeight,
		ContentWidth:  nw,
		ContentHeight: nh,
		PadLeft:       padLeft,
		PadTop:        padTop,
		Scale:         scale,
		SourceWidth:   iw,
		SourceHeight:  ih,
	}, nil
}

// LetterboxSize computes the scaled content size for a source of iw x ih
// placed into a targetWidth x targetHeight canvas.
func LetterboxSize(iw, ih, targetWidth, targetHeight int) (int, int, float64) {
	scaleX := float64(targetWidth) / float64(iw)
	scaleY := float64(targetHeight) / float64(ih)
	scale := math.Min(scaleX, scaleY)

	nw := int(math.Floor(float64(iw) * scale))
	nh := int(math.Floor(float64(ih) * scale))

	// iw*(W/iw) can land one ulp under W.
	if scaleX <= scaleY {
		nw = targetWidth
	}
	if scaleY <= scaleX {
		nh = targetHeight
	}

	nw = clampInt(nw, 1, targetWidth)
	nh = clampInt(nh, 1, targetHeight)
	return nw, nh, scale
}

// ToSource maps a point in canvas coordinates back to source image pixels.
func (l *Letterboxed) ToSource(x, y float64) (float64, float64) {
	sx := float64(l.ContentWidth) / float64(l.SourceWidth)
	sy := float64(l.ContentHeight) / float64(l.SourceHeight)
	return (x - float64(l.PadLeft)) / sx, (y - float64(l.PadTop)) / sy
}

// BoxToSource maps a canvas-space box back into the source image, clamped to
// the source bounds.
func (l *Letterboxed) BoxToSource(b Box) Box {
	x1, y1 := l.ToSource(b.MinX, b.MinY)
	x2, y2 := l.ToSource(b.MaxX, b.MaxY)
	out := NewBox(x1, y1, x2, y2)
	out.MinX = clampFloat(out.MinX, 0, float64(l.SourceWidth))
	out.MaxX = clampFloat(out.MaxX, 0, float64(l.SourceWidth))
	out.MinY = clampFloat(out.MinY, 0, float64(l.SourceHeight))
	out.MaxY = clampFloat(out.MaxY, 0, float64(l.SourceHeight))
	return out
}

// RGBBytes returns the pixels of img as a row-major interleaved RGB buffer
// (3 bytes per pixel). Alpha is dropped.
func RGBBytes(img *image.NRGBA) []uint8 {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	out := make([]uint8, b.Dx()*b.Dy()*3)
	RGBBytesInto(out, img)
	return out
}

// RGBBytesInto writes the RGB pixels of img into dst and returns the number of
// bytes written. dst must hold at least width*height*3 bytes.
func RGBBytesInto(dst []uint8, img *image.NRGBA) int {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h * 3
	if len(dst) < n {
		panic(fmt.Sprintf("utils: RGBBytesInto needs %d bytes, got %d", n, len(dst)))
	}
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		out := dst[y*w*3 : (y+1)*w*3]
		for x := range w {
			out[x*3] = row[x*4]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}
	return n
}

// ParseResampleFilter maps a filter name to an imaging resampling filter.
func ParseResampleFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "catmullrom", "bicubic":
		return imaging.CatmullRom, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "linear", "bilinear":
		return imaging.Linear, nil
	case "box":
		return imaging.Box, nil
	case "lanczos":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter: %s", name)
	}
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	//nolint:gosec // G115: Sscanf %02x bounds each channel to 0..255
	return color.NRGBA{R: uint8(rv), G: uint8(gv), B: uint8(bv), A: 255}, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
