package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawLabel renders text on a filled background whose top-left corner sits at
// pt, shifted so it stays inside dst.
func DrawLabel(dst draw.Image, pt image.Point, text string, fg, bg color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	const pad = 2
	w := font.MeasureString(face, text).Ceil() + 2*pad
	h := face.Metrics().Height.Ceil() + 2*pad

	bounds := dst.Bounds()
	x := clampInt(pt.X, bounds.Min.X, max(bounds.Min.X, bounds.Max.X-w))
	y := pt.Y - h
	if y < bounds.Min.Y {
		y = pt.Y
	}
	y = clampInt(y, bounds.Min.Y, max(bounds.Min.Y, bounds.Max.Y-h))

	bgRect := image.Rect(x, y, x+w, y+h).Intersect(bounds)
	draw.Draw(dst, bgRect, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+pad, y+pad+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
