package pipeline

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
	"github.com/MeKo-Tech/yolodet/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWithFake(t *testing.T, fake *testutil.FakeEngine, mutate func(*Builder)) *Pipeline {
	t.Helper()
	b := NewBuilder().WithModelsDir(t.TempDir()).WithEngine(fake)
	if mutate != nil {
		mutate(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBuilder_Defaults(t *testing.T) {
	cfg := NewBuilder().Config()
	assert.Equal(t, 416, cfg.Preprocess.TargetWidth)
	assert.Equal(t, 416, cfg.Preprocess.TargetHeight)
	assert.Equal(t, utils.DefaultFillColor, cfg.Preprocess.Fill)
	assert.Equal(t, BoxOrderYXYX, cfg.Postprocess.BoxOrder)
	assert.True(t, cfg.Postprocess.MapToSource)
	assert.Equal(t, detector.DefaultIONames(), cfg.Detector.IONames)
}

func TestBuilder_Setters(t *testing.T) {
	names := detector.DefaultIONames()
	names.Image = "images"

	b := NewBuilder()
	assert.Same(t, b, b.WithTargetSize(320, 256))
	assert.Same(t, b, b.WithModelPath("/custom/model.onnx"))
	assert.Same(t, b, b.WithModelPath(""))
	assert.Same(t, b, b.WithIONames(names))
	assert.Same(t, b, b.WithThreads(4))
	assert.Same(t, b, b.WithThreads(-1))
	assert.Same(t, b, b.WithWarmupIterations(2))
	assert.Same(t, b, b.WithGPU(true))

	cfg := b.Config()
	assert.Equal(t, 320, cfg.Preprocess.TargetWidth)
	assert.Equal(t, 256, cfg.Detector.InputHeight)
	assert.Equal(t, "/custom/model.onnx", cfg.Detector.ModelPath)
	assert.Equal(t, "images", cfg.Detector.IONames.Image)
	assert.Equal(t, 4, cfg.Detector.NumThreads)
	assert.Equal(t, 2, cfg.Detector.WarmupIterations)
	assert.True(t, cfg.Detector.GPU.UseGPU)
}

func TestBuilder_BuildErrors(t *testing.T) {
	t.Run("bad box order", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Postprocess.BoxOrder = "xywh"
		_, err := NewBuilder().WithConfig(cfg).WithEngine(&testutil.FakeEngine{}).Build()
		require.Error(t, err)
	})

	t.Run("missing classes file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ClassesFile = filepath.Join(t.TempDir(), "absent.names")
		_, err := NewBuilder().WithConfig(cfg).WithEngine(&testutil.FakeEngine{}).Build()
		require.Error(t, err)
	})

	t.Run("missing model without engine", func(t *testing.T) {
		_, err := NewBuilder().
			WithModelsDir(t.TempDir()).
			WithModelPath(filepath.Join(t.TempDir(), "absent.onnx")).
			Build()
		require.Error(t, err)
	})
}

func TestBuilder_ResolvesDefaultModelInModelsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yolov3.onnx"), []byte("x"), 0o600))

	p, err := NewBuilder().WithModelsDir(dir).WithEngine(&testutil.FakeEngine{}).Build()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "yolov3.onnx"), p.Config().Detector.ModelPath)
}

func TestPipeline_DetectImage(t *testing.T) {
	fake := &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 0, Score: 0.9, Box: [4]float32{52, 0, 364, 416}},
		testutil.FakeDetection{Class: 2, Score: 0.6, Box: [4]float32{104, 104, 208, 208}},
	)}
	p := buildWithFake(t, fake, nil)

	res, err := p.DetectImage(context.Background(), testutil.GradientImage(640, 480))
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Calls())
	in := fake.LastInputs()
	assert.Equal(t, []int64{1, 3, 416, 416}, in.Image.Shape)
	assert.Equal(t, []float32{416, 416}, in.ImageSize.Data)

	assert.Equal(t, 640, res.Width)
	assert.Equal(t, 480, res.Height)
	require.Len(t, res.Detections, 2)

	person := res.Detections[0]
	assert.Equal(t, 0, person.ClassIndex)
	assert.Equal(t, "person", person.Label)
	assert.InDelta(t, 0.9, person.Score, 1e-6)
	assert.Equal(t, [4]float32{52, 0, 364, 416}, person.Box)
	require.NotNil(t, person.SourceBox)
	assert.InDelta(t, 0, person.SourceBox.X1, 1e-6)
	assert.InDelta(t, 0, person.SourceBox.Y1, 1e-6)
	assert.InDelta(t, 640, person.SourceBox.X2, 1e-6)
	assert.InDelta(t, 480, person.SourceBox.Y2, 1e-6)

	car := res.Detections[1]
	assert.Equal(t, "car", car.Label)
	require.NotNil(t, car.SourceBox)
	assert.InDelta(t, 160, car.SourceBox.X1, 1e-3)
	assert.InDelta(t, 80, car.SourceBox.Y1, 1e-3)
	assert.InDelta(t, 320, car.SourceBox.X2, 1e-3)
	assert.InDelta(t, 240, car.SourceBox.Y2, 1e-3)

	assert.Positive(t, res.Processing.TotalNs)
	assert.GreaterOrEqual(t, res.Processing.TotalNs, res.Processing.InferenceNs)
}

func TestPipeline_DetectImage_XYXYOrder(t *testing.T) {
	fake := &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 1, Score: 0.5, Box: [4]float32{0, 52, 416, 364}},
	)}
	p := buildWithFake(t, fake, func(b *Builder) {
		cfg := b.Config()
		cfg.Postprocess.BoxOrder = BoxOrderXYXY
		b.WithConfig(cfg)
	})

	res, err := p.DetectImage(context.Background(), testutil.GradientImage(640, 480))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	sb := res.Detections[0].SourceBox
	require.NotNil(t, sb)
	assert.InDelta(t, 640, sb.X2, 1e-6)
	assert.InDelta(t, 480, sb.Y2, 1e-6)
}

func TestPipeline_NoSourceMapping(t *testing.T) {
	fake := &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 5, Score: 0.7, Box: [4]float32{1, 2, 3, 4}},
	)}
	p := buildWithFake(t, fake, func(b *Builder) {
		cfg := b.Config()
		cfg.Postprocess.MapToSource = false
		b.WithConfig(cfg)
	})

	res, err := p.DetectImage(context.Background(), testutil.GradientImage(50, 50))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Nil(t, res.Detections[0].SourceBox)
	assert.Equal(t, "bus", res.Detections[0].Label)
}

func TestPipeline_EmptyOutputs(t *testing.T) {
	p := buildWithFake(t, &testutil.FakeEngine{}, nil)

	res, err := p.DetectImage(context.Background(), testutil.GradientImage(32, 32))
	require.NoError(t, err)
	require.NotNil(t, res.Detections)
	assert.Empty(t, res.Detections)
}

func TestPipeline_CustomClasses(t *testing.T) {
	dir := t.TempDir()
	classes := filepath.Join(dir, "custom.names")
	require.NoError(t, os.WriteFile(classes, []byte("cat\ndog\n"), 0o600))

	fake := &testutil.FakeEngine{Outputs: testutil.MakeOutputs(3,
		testutil.FakeDetection{Class: 1, Score: 0.8},
		testutil.FakeDetection{Class: 2, Score: 0.4},
	)}
	p := buildWithFake(t, fake, func(b *Builder) {
		cfg := b.Config()
		cfg.ClassesFile = classes
		b.WithConfig(cfg)
	})

	res, err := p.DetectImage(context.Background(), testutil.GradientImage(20, 20))
	require.NoError(t, err)
	require.Len(t, res.Detections, 2)
	assert.Equal(t, "dog", res.Detections[0].Label)
	assert.Equal(t, "class_2", res.Detections[1].Label)
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("engine error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		p := buildWithFake(t, &testutil.FakeEngine{Err: boom}, nil)
		_, err := p.DetectImage(context.Background(), testutil.GradientImage(8, 8))
		require.ErrorIs(t, err, boom)
	})

	t.Run("index out of range", func(t *testing.T) {
		out := testutil.MakeOutputs(2, testutil.FakeDetection{Class: 1, Score: 0.3})
		out.Indices[0] = append(out.Indices[0], detector.IndexTuple{Batch: 0, Class: 9, Slot: 0})
		p := buildWithFake(t, &testutil.FakeEngine{Outputs: out}, nil)

		_, err := p.DetectImage(context.Background(), testutil.GradientImage(8, 8))
		var idxErr *detector.DetectionIndexError
		require.ErrorAs(t, err, &idxErr)
		assert.Equal(t, 1, idxErr.Position)
	})

	t.Run("deadline", func(t *testing.T) {
		p := buildWithFake(t, &testutil.FakeEngine{Delay: time.Second}, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := p.DetectImage(ctx, testutil.GradientImage(8, 8))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed pipeline", func(t *testing.T) {
		fake := &testutil.FakeEngine{}
		p, err := NewBuilder().WithEngine(fake).Build()
		require.NoError(t, err)
		require.NoError(t, p.Close())
		assert.True(t, fake.Closed())
		require.NoError(t, p.Close())

		_, err = p.DetectImage(context.Background(), testutil.GradientImage(8, 8))
		require.Error(t, err)
	})
}

func TestPipeline_Detect_File(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSolidPNG(t, dir, "blue.png", 200, 100, color.NRGBA{B: 255, A: 255})

	fake := &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 16, Score: 0.75, Box: [4]float32{104, 0, 312, 416}},
	)}
	p := buildWithFake(t, fake, nil)

	res, err := p.Detect(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 100, res.Height)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, "dog", res.Detections[0].Label)
	assert.InDelta(t, 100, res.Detections[0].SourceBox.Y2, 1e-6)

	_, err = p.Detect(context.Background(), filepath.Join(dir, "missing.png"))
	var decErr *utils.ImageDecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestPipeline_Info(t *testing.T) {
	p := buildWithFake(t, &testutil.FakeEngine{}, nil)
	info := p.Info()
	assert.Equal(t, 416, info["target_width"])
	assert.Equal(t, 80, info["num_classes"])
	assert.Equal(t, BoxOrderYXYX, info["box_order"])
	model, ok := info["model"].(detector.ModelInfo)
	require.True(t, ok)
	assert.Equal(t, "fake.onnx", model.ModelPath)
}

func TestCanvasBox(t *testing.T) {
	raw := [4]float32{10, 20, 30, 40}
	assert.Equal(t, utils.Box{MinX: 20, MinY: 10, MaxX: 40, MaxY: 30}, CanvasBox(raw, BoxOrderYXYX))
	assert.Equal(t, utils.Box{MinX: 10, MinY: 20, MaxX: 30, MaxY: 40}, CanvasBox(raw, BoxOrderXYXY))
}
