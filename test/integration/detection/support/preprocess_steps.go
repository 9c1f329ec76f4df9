package support

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

func (tc *TestContext) registerPreprocessSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a (\d+)x(\d+) solid image$`, tc.aSolidImage)
	sc.Step(`^a (\d+)x(\d+) gradient image$`, tc.aGradientImage)
	sc.Step(`^no source image$`, func() error { tc.Source = nil; return nil })
	sc.Step(`^it is letterboxed to (\d+)x(\d+)$`, tc.itIsLetterboxedTo)
	sc.Step(`^it is preprocessed for a (\d+)x(\d+) model$`, tc.itIsPreprocessedFor)
	sc.Step(`^the canvas is (\d+)x(\d+)$`, tc.theCanvasIs)
	sc.Step(`^the content is (\d+)x(\d+)$`, tc.theContentIs)
	sc.Step(`^the content is offset by (\d+) columns and (\d+) rows$`, tc.theContentIsOffsetBy)
	sc.Step(`^the pixel at (\d+),(\d+) has the fill color$`, tc.thePixelHasFillColor)
	sc.Step(`^the tensor shape is 1x3x(\d+)x(\d+)$`, tc.theTensorShapeIs)
	sc.Step(`^the size input is (\d+)x(\d+)$`, tc.theSizeInputIs)
	sc.Step(`^every tensor value lies between 0 and 1$`, tc.everyTensorValueInUnitRange)
	sc.Step(`^the tensor matches the planarized canvas$`, tc.theTensorMatchesCanvas)
	sc.Step(`^an interleaved (\d+)x(\d+)x(\d+) buffer of distinct values$`, tc.anInterleavedBuffer)
	sc.Step(`^planarizing it moves every value exactly once$`, tc.planarizingIsBijective)
	sc.Step(`^it is planarized$`, tc.itIsPlanarized)
	sc.Step(`^the call fails$`, tc.theCallFails)
}

func (tc *TestContext) itIsLetterboxedTo(w, h int) error {
	tc.Letterboxed, tc.LastError = utils.Letterbox(tc.Source, w, h, utils.DefaultFillColor,
		pipeline.DefaultPreprocessConfig().Filter)
	return nil
}

func (tc *TestContext) itIsPreprocessedFor(w, h int) error {
	cfg := pipeline.DefaultPreprocessConfig()
	cfg.TargetWidth, cfg.TargetHeight = w, h
	tc.Preprocessed, tc.LastError = pipeline.PreprocessImage(context.Background(), tc.Source, cfg)
	if tc.Preprocessed != nil {
		tc.Letterboxed = tc.Preprocessed.Letterbox
	}
	return nil
}

func (tc *TestContext) letterbox() (*utils.Letterboxed, error) {
	if tc.LastError != nil {
		return nil, fmt.Errorf("letterbox failed: %w", tc.LastError)
	}
	if tc.Letterboxed == nil {
		return nil, fmt.Errorf("no letterboxed image")
	}
	return tc.Letterboxed, nil
}

func (tc *TestContext) theCanvasIs(w, h int) error {
	lb, err := tc.letterbox()
	if err != nil {
		return err
	}
	b := lb.Image.Bounds()
	if b.Dx() != w || b.Dy() != h || lb.Width != w || lb.Height != h {
		return fmt.Errorf("canvas is %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
	}
	return nil
}

func (tc *TestContext) theContentIs(w, h int) error {
	lb, err := tc.letterbox()
	if err != nil {
		return err
	}
	if lb.ContentWidth != w || lb.ContentHeight != h {
		return fmt.Errorf("content is %dx%d, want %dx%d", lb.ContentWidth, lb.ContentHeight, w, h)
	}
	return nil
}

func (tc *TestContext) theContentIsOffsetBy(left, top int) error {
	lb, err := tc.letterbox()
	if err != nil {
		return err
	}
	if lb.PadLeft != left || lb.PadTop != top {
		return fmt.Errorf("content offset is (%d, %d), want (%d, %d)", lb.PadLeft, lb.PadTop, left, top)
	}
	return nil
}

func (tc *TestContext) thePixelHasFillColor(x, y int) error {
	lb, err := tc.letterbox()
	if err != nil {
		return err
	}
	if got := lb.Image.NRGBAAt(x, y); got != utils.DefaultFillColor {
		return fmt.Errorf("pixel (%d, %d) is %v, want %v", x, y, got, utils.DefaultFillColor)
	}
	return nil
}

func (tc *TestContext) preprocessed() (*pipeline.Preprocessed, error) {
	if tc.LastError != nil {
		return nil, fmt.Errorf("preprocess failed: %w", tc.LastError)
	}
	if tc.Preprocessed == nil {
		return nil, fmt.Errorf("nothing was preprocessed")
	}
	return tc.Preprocessed, nil
}

func (tc *TestContext) theTensorShapeIs(h, w int) error {
	p, err := tc.preprocessed()
	if err != nil {
		return err
	}
	want := []int64{1, 3, int64(h), int64(w)}
	if fmt.Sprint(p.Tensor.Shape) != fmt.Sprint(want) {
		return fmt.Errorf("tensor shape is %v, want %v", p.Tensor.Shape, want)
	}
	if len(p.Tensor.Data) != 3*h*w {
		return fmt.Errorf("tensor holds %d values, want %d", len(p.Tensor.Data), 3*h*w)
	}
	return nil
}

func (tc *TestContext) theSizeInputIs(h, w int) error {
	p, err := tc.preprocessed()
	if err != nil {
		return err
	}
	size := p.ImageSizeTensor()
	if len(size.Data) != 2 || size.Data[0] != float32(h) || size.Data[1] != float32(w) {
		return fmt.Errorf("size input is %v, want [%d %d]", size.Data, h, w)
	}
	return nil
}

func (tc *TestContext) everyTensorValueInUnitRange() error {
	p, err := tc.preprocessed()
	if err != nil {
		return err
	}
	for i, v := range p.Tensor.Data {
		if v < 0 || v > 1 {
			return fmt.Errorf("tensor value %d is %f", i, v)
		}
	}
	return nil
}

func (tc *TestContext) theTensorMatchesCanvas() error {
	p, err := tc.preprocessed()
	if err != nil {
		return err
	}
	lb := p.Letterbox
	plane := lb.Width * lb.Height
	for _, pt := range [][2]int{{0, 0}, {lb.Width / 2, lb.Height / 2}, {lb.Width - 1, lb.Height - 1}} {
		px := lb.Image.NRGBAAt(pt[0], pt[1])
		idx := pt[1]*lb.Width + pt[0]
		for ch, want := range []uint8{px.R, px.G, px.B} {
			if got := p.Tensor.Data[ch*plane+idx]; !near(float64(got), float64(want)/255) {
				return fmt.Errorf("channel %d at %v is %f, want %f", ch, pt, got, float64(want)/255)
			}
		}
	}
	return nil
}

func (tc *TestContext) anInterleavedBuffer(h, w, c int) error {
	buf := make([]float32, h*w*c)
	for i := range buf {
		buf[i] = float32(i)
	}
	tc.Interleaved = buf
	tc.InterleavedDims = [3]int{h, w, c}
	return nil
}

func (tc *TestContext) itIsPlanarized() error {
	h, w, c := tc.InterleavedDims[0], tc.InterleavedDims[1], tc.InterleavedDims[2]
	_, tc.LastError = onnx.Planarize(tc.Interleaved, h, w, c)
	return nil
}

func (tc *TestContext) planarizingIsBijective() error {
	if tc.Interleaved == nil {
		return fmt.Errorf("no interleaved buffer")
	}
	h, w, c := tc.InterleavedDims[0], tc.InterleavedDims[1], tc.InterleavedDims[2]

	out, err := onnx.Planarize(tc.Interleaved, h, w, c)
	if err != nil {
		return err
	}
	seen := make([]bool, len(out))
	for _, v := range out {
		i := int(v)
		if seen[i] {
			return fmt.Errorf("value %d appears twice", i)
		}
		seen[i] = true
	}
	plane := h * w
	for y := range h {
		for x := range w {
			for ch := range c {
				if out[ch*plane+y*w+x] != tc.Interleaved[(y*w+x)*c+ch] {
					return fmt.Errorf("value at (%d, %d, %d) moved to the wrong place", y, x, ch)
				}
			}
		}
	}
	return nil
}
