package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// Stage benchmark names registered by AddPreprocessStages.
const (
	StageLetterbox  = "letterbox"
	StageNormalize  = "normalize"
	StagePlanarize  = "planarize"
	StagePreprocess = "preprocess"
	StagePipeline   = "pipeline"
)

// SyntheticImage returns a w x h image with a colour ramp, for runs without
// an input file.
func SyntheticImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)), //nolint:gosec // bounded to 0..255
				G: uint8(y * 255 / max(h-1, 1)), //nolint:gosec // bounded to 0..255
				B: 96,
				A: 255,
			})
		}
	}
	return img
}

// AddPreprocessStages registers one benchmark per preprocessing stage plus
// the composed preprocess call. Each stage runs on the output of the previous
// one, prepared once up front.
func AddPreprocessStages(s *Suite, img image.Image, cfg pipeline.PreprocessConfig) error {
	lb, err := utils.Letterbox(img, cfg.TargetWidth, cfg.TargetHeight, cfg.Fill, cfg.Filter)
	if err != nil {
		return fmt.Errorf("prepare letterbox: %w", err)
	}
	px := utils.RGBBytes(lb.Image)
	norm := onnx.Normalize(px)
	planar := make([]float32, len(norm))

	s.Add(StageLetterbox, func(context.Context) error {
		_, err := utils.Letterbox(img, cfg.TargetWidth, cfg.TargetHeight, cfg.Fill, cfg.Filter)
		return err
	})
	s.Add(StageNormalize, func(context.Context) error {
		onnx.NormalizeInto(norm, px)
		return nil
	})
	s.Add(StagePlanarize, func(context.Context) error {
		return onnx.PlanarizeInto(planar, norm, lb.Height, lb.Width, 3)
	})
	s.Add(StagePreprocess, func(ctx context.Context) error {
		_, err := pipeline.PreprocessImage(ctx, img, cfg)
		return err
	})
	return nil
}

// ImageDetector is the part of *pipeline.Pipeline the pipeline benchmark uses.
type ImageDetector interface {
	DetectImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
}

// StageBreakdown is the mean time spent in each pipeline stage.
type StageBreakdown struct {
	Preprocess  time.Duration `json:"preprocess_ns"`
	Inference   time.Duration `json:"inference_ns"`
	Postprocess time.Duration `json:"postprocess_ns"`
	Detections  int           `json:"detections"`
}

// PipelineRecorder wraps a detector so its per-stage timings accumulate across
// benchmark iterations.
type PipelineRecorder struct {
	det   ImageDetector
	img   image.Image
	runs  int
	sum   StageBreakdown
	lastN int
}

// NewPipelineRecorder returns a recorder running det on img.
func NewPipelineRecorder(det ImageDetector, img image.Image) *PipelineRecorder {
	return &PipelineRecorder{det: det, img: img}
}

// Run is a Func performing one detection.
func (r *PipelineRecorder) Run(ctx context.Context) error {
	res, err := r.det.DetectImage(ctx, r.img)
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("detector returned no result")
	}
	r.runs++
	r.sum.Preprocess += time.Duration(res.Processing.PreprocessNs)
	r.sum.Inference += time.Duration(res.Processing.InferenceNs)
	r.sum.Postprocess += time.Duration(res.Processing.PostprocessNs)
	r.lastN = len(res.Detections)
	return nil
}

// Warmup runs n untimed detections and resets the accumulated timings.
func (r *PipelineRecorder) Warmup(ctx context.Context, n int) error {
	for range n {
		if err := r.Run(ctx); err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
	}
	r.runs, r.sum = 0, StageBreakdown{}
	return nil
}

// Breakdown returns the mean stage timings of the recorded runs.
func (r *PipelineRecorder) Breakdown() StageBreakdown {
	if r.runs == 0 {
		return StageBreakdown{}
	}
	n := time.Duration(r.runs)
	return StageBreakdown{
		Preprocess:  r.sum.Preprocess / n,
		Inference:   r.sum.Inference / n,
		Postprocess: r.sum.Postprocess / n,
		Detections:  r.lastN,
	}
}
