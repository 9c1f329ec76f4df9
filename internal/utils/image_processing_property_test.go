package utils

import (
	"testing"

	"github.com/disintegration/imaging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLetterboxSize_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("content fits the canvas", prop.ForAll(
		func(iw, ih, tw, th int) bool {
			nw, nh, _ := LetterboxSize(iw, ih, tw, th)
			return nw >= 1 && nh >= 1 && nw <= tw && nh <= th
		},
		gen.IntRange(1, 5000), gen.IntRange(1, 5000), gen.IntRange(1, 1024), gen.IntRange(1, 1024),
	))

	properties.Property("padding lies on at most one axis", prop.ForAll(
		func(iw, ih, tw, th int) bool {
			nw, nh, _ := LetterboxSize(iw, ih, tw, th)
			return nw == tw || nh == th
		},
		gen.IntRange(1, 5000), gen.IntRange(1, 5000), gen.IntRange(1, 1024), gen.IntRange(1, 1024),
	))

	properties.Property("content never exceeds the floor of the scaled source", prop.ForAll(
		func(iw, ih int) bool {
			nw, nh, scale := LetterboxSize(iw, ih, 416, 416)
			wOK := nw == 1 || float64(nw) <= float64(iw)*scale+1e-6
			hOK := nh == 1 || float64(nh) <= float64(ih)*scale+1e-6
			return wOK && hOK
		},
		gen.IntRange(1, 5000), gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}

func TestLetterbox_CanvasProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("canvas is always the target size and content is centered", prop.ForAll(
		func(iw, ih int) bool {
			lb, err := Letterbox(solidImage(iw, ih, DefaultFillColor), 64, 48, nil, imaging.NearestNeighbor)
			if err != nil {
				return false
			}
			b := lb.Image.Bounds()
			if b.Dx() != 64 || b.Dy() != 48 {
				return false
			}
			return lb.PadLeft == (64-lb.ContentWidth)/2 && lb.PadTop == (48-lb.ContentHeight)/2
		},
		gen.IntRange(1, 300), gen.IntRange(1, 300),
	))

	properties.TestingRun(t)
}
