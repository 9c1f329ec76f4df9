package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
	"github.com/MeKo-Tech/yolodet/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessImage_LandscapeShapes(t *testing.T) {
	img := testutil.SolidImage(640, 480, color.NRGBA{R: 255, G: 0, B: 0, A: 255})

	pre, err := PreprocessImage(context.Background(), img, DefaultPreprocessConfig())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 416, 416}, pre.Tensor.Shape)
	assert.Len(t, pre.Tensor.Data, 3*416*416)
	assert.Equal(t, [2]int{416, 416}, pre.ContentSize)
	assert.Equal(t, 312, pre.Letterbox.ContentHeight)
	assert.Equal(t, 52, pre.Letterbox.PadTop)
	assert.Equal(t, 0, pre.Letterbox.PadLeft)

	size := pre.ImageSizeTensor()
	assert.Equal(t, []int64{1, 2}, size.Shape)
	assert.Equal(t, []float32{416, 416}, size.Data)
}

func TestPreprocessImage_PlanarLayoutAndPadding(t *testing.T) {
	img := testutil.SolidImage(640, 480, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	cfg := DefaultPreprocessConfig()
	cfg.Filter = imaging.NearestNeighbor

	pre, err := PreprocessImage(context.Background(), img, cfg)
	require.NoError(t, err)

	const w, h = 416, 416
	plane := w * h
	at := func(c, y, x int) float32 { return pre.Tensor.Data[c*plane+y*w+x] }

	// Content region: red, green, blue planes.
	assert.InDelta(t, 1.0, at(0, 200, 200), 1e-6)
	assert.InDelta(t, 0.0, at(1, 200, 200), 1e-6)
	assert.InDelta(t, 51.0/255.0, at(2, 200, 200), 1e-6)

	// Top padding rows are gray in every plane.
	for c := range 3 {
		assert.InDelta(t, 128.0/255.0, at(c, 10, 10), 1e-6)
		assert.InDelta(t, 128.0/255.0, at(c, 415, 10), 1e-6)
	}
}

func TestPreprocessImage_ValuesInUnitRange(t *testing.T) {
	img := testutil.GradientImage(300, 600)

	pre, err := PreprocessImage(context.Background(), img, DefaultPreprocessConfig())
	require.NoError(t, err)
	require.NoError(t, onnx.VerifyImageTensor(pre.Tensor))

	lo, hi, _ := onnx.TensorStats(pre.Tensor.Data)
	assert.GreaterOrEqual(t, lo, float32(0))
	assert.LessOrEqual(t, hi, float32(1))
	assert.Equal(t, 104, pre.Letterbox.PadLeft)
}

func TestPreprocessImage_PooledBuffersAndDebugStats(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })

	red := testutil.SolidImage(416, 416, color.NRGBA{R: 255, A: 255})
	blue := testutil.SolidImage(416, 416, color.NRGBA{B: 255, A: 255})

	// The second call reuses the pooled byte buffer from the first.
	first, err := PreprocessImage(context.Background(), red, DefaultPreprocessConfig())
	require.NoError(t, err)
	second, err := PreprocessImage(context.Background(), blue, DefaultPreprocessConfig())
	require.NoError(t, err)

	plane := 416 * 416
	assert.InDelta(t, 1.0, first.Tensor.Data[0], 0.01)
	assert.InDelta(t, 0.0, first.Tensor.Data[2*plane], 0.01)
	assert.InDelta(t, 0.0, second.Tensor.Data[0], 0.01)
	assert.InDelta(t, 1.0, second.Tensor.Data[2*plane+plane-1], 0.01)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Preprocessed image"))
	assert.Contains(t, out, "min=")
	assert.Contains(t, out, "max=")
	assert.Contains(t, out, "mean=")
}

func TestPreprocessImage_CustomTarget(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.TargetWidth, cfg.TargetHeight = 320, 192

	pre, err := PreprocessImage(context.Background(), testutil.GradientImage(100, 100), cfg)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 192, 320}, pre.Tensor.Shape)
	assert.Equal(t, [2]int{192, 320}, pre.ContentSize)
	assert.Equal(t, 192, pre.Letterbox.ContentWidth)
	assert.Equal(t, 64, pre.Letterbox.PadLeft)
}

func TestPreprocessImage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pre, err := PreprocessImage(ctx, testutil.GradientImage(10, 10), DefaultPreprocessConfig())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, pre)
}

func TestPreprocess_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteImage(t, dir, "landscape.png", testutil.GradientImage(640, 480))

	pre, err := Preprocess(context.Background(), path, DefaultPreprocessConfig())
	require.NoError(t, err)
	assert.Equal(t, 640, pre.Letterbox.SourceWidth)
	assert.Equal(t, 480, pre.Letterbox.SourceHeight)
}

func TestPreprocess_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Preprocess(context.Background(), filepath.Join(t.TempDir(), "nope.png"), DefaultPreprocessConfig())
		var decErr *utils.ImageDecodeError
		require.True(t, errors.As(err, &decErr))
	})

	t.Run("cancelled before decode", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Preprocess(ctx, "does-not-matter.png", DefaultPreprocessConfig())
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid target", func(t *testing.T) {
		cfg := DefaultPreprocessConfig()
		cfg.TargetWidth = 0
		_, err := PreprocessImage(context.Background(), testutil.GradientImage(8, 8), cfg)
		var procErr *utils.ImageProcessingError
		require.True(t, errors.As(err, &procErr))
	})
}
