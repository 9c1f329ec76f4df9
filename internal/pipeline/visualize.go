package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/yolodet/internal/utils"
	"github.com/disintegration/imaging"
)

// OverlayOptions controls overlay rendering.
type OverlayOptions struct {
	BoxColor  color.Color // nil picks a color per class
	Thickness int
	Labels    bool
}

// DefaultOverlayOptions returns per-class colors, 2px boxes and labels.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{Thickness: 2, Labels: true}
}

var classPalette = []color.NRGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 255, G: 225, B: 25, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
	{R: 210, G: 245, B: 60, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
}

// ClassColor returns a stable palette color for a class index.
func ClassColor(class int) color.NRGBA {
	if class < 0 {
		class = -class
	}
	return classPalette[class%len(classPalette)]
}

// RenderOverlay draws the source-space boxes of res over a copy of img.
// Detections without a SourceBox are skipped.
func RenderOverlay(img image.Image, res *ImageResult, opts OverlayOptions) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	if res == nil {
		return dst
	}
	bounds := dst.Bounds()
	for _, d := range res.Detections {
		if d.SourceBox == nil {
			continue
		}
		col := opts.BoxColor
		if col == nil {
			col = ClassColor(d.ClassIndex)
		}
		rect := d.SourceBox.toUtils().ToRect(bounds)
		utils.DrawRect(dst, rect, col, opts.Thickness)
		if opts.Labels {
			text := fmt.Sprintf("%s %.2f", d.Label, d.Score)
			utils.DrawLabel(dst, rect.Min, text, color.White, col)
		}
	}
	return dst
}
