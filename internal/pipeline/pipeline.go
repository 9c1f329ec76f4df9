package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/models"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// Box orders understood by PostprocessConfig.
const (
	BoxOrderYXYX = "yxyx"
	BoxOrderXYXY = "xyxy"
)

// PostprocessConfig controls how raw boxes are interpreted for labelled output.
type PostprocessConfig struct {
	BoxOrder    string // order of the four raw box values
	MapToSource bool   // add SourceBox by undoing the letterbox
}

// Config holds configuration for the detection pipeline.
type Config struct {
	ModelsDir   string
	ClassesFile string // optional; COCO-80 when empty
	Preprocess  PreprocessConfig
	Postprocess PostprocessConfig
	Detector    detector.Config
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	det.ModelPath = models.DefaultModelFile
	return Config{
		ModelsDir:   models.GetModelsDir(""),
		Preprocess:  DefaultPreprocessConfig(),
		Postprocess: PostprocessConfig{BoxOrder: BoxOrderYXYX, MapToSource: true},
		Detector:    det,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Preprocess.TargetWidth <= 0 || c.Preprocess.TargetHeight <= 0 {
		return fmt.Errorf("target size must be positive, got %dx%d",
			c.Preprocess.TargetWidth, c.Preprocess.TargetHeight)
	}
	switch c.Postprocess.BoxOrder {
	case BoxOrderYXYX, BoxOrderXYXY:
	default:
		return fmt.Errorf("unknown box order %q", c.Postprocess.BoxOrder)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine detector.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithModelsDir sets the models directory used to resolve relative model paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	return b
}

// WithModelPath sets the detector model path.
func (b *Builder) WithModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
	}
	return b
}

// WithTargetSize sets the letterbox canvas and model input size.
func (b *Builder) WithTargetSize(w, h int) *Builder {
	b.cfg.Preprocess.TargetWidth = w
	b.cfg.Preprocess.TargetHeight = h
	b.cfg.Detector.InputWidth = w
	b.cfg.Detector.InputHeight = h
	return b
}

// WithIONames sets the graph input and output names.
func (b *Builder) WithIONames(names detector.IONames) *Builder {
	b.cfg.Detector.IONames = names
	return b
}

// WithThreads sets the intra-op thread count.
func (b *Builder) WithThreads(n int) *Builder {
	if n >= 0 {
		b.cfg.Detector.NumThreads = n
	}
	return b
}

// WithWarmupIterations sets warmup runs performed after the model loads.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.Detector.WarmupIterations = n
	}
	return b
}

// WithGPU enables or disables CUDA.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	return b
}

// WithEngine injects an engine instead of loading the ONNX model.
func (b *Builder) WithEngine(e detector.Engine) *Builder {
	b.engine = e
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build resolves model paths, loads the class labels and the engine.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	cfg.Detector.ModelPath = models.ResolveModelPath(cfg.ModelsDir, cfg.Detector.ModelPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classes := models.DefaultClasses()
	if cfg.ClassesFile != "" {
		cs, err := models.LoadClassFile(cfg.ClassesFile)
		if err != nil {
			return nil, err
		}
		classes = cs
	}

	engine := b.engine
	if engine == nil {
		e, err := detector.NewONNXEngine(cfg.Detector)
		if err != nil {
			return nil, fmt.Errorf("init detector: %w", err)
		}
		engine = e
	}

	return &Pipeline{cfg: cfg, engine: engine, classes: classes}, nil
}

// Pipeline runs preprocess, inference and postprocess for single images.
// It is safe for concurrent use when its engine is.
type Pipeline struct {
	cfg     Config
	engine  detector.Engine
	classes *models.ClassSet
}

// Close releases the engine.
func (p *Pipeline) Close() error {
	if p.engine == nil {
		return nil
	}
	err := p.engine.Close()
	p.engine = nil
	return err
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Classes returns the class label set.
func (p *Pipeline) Classes() *models.ClassSet { return p.classes }

// Info returns key pipeline properties and model info.
func (p *Pipeline) Info() map[string]any {
	info := map[string]any{
		"models_dir":    p.cfg.ModelsDir,
		"target_width":  p.cfg.Preprocess.TargetWidth,
		"target_height": p.cfg.Preprocess.TargetHeight,
		"box_order":     p.cfg.Postprocess.BoxOrder,
		"num_classes":   p.classes.Len(),
	}
	if d, ok := p.engine.(detector.Describer); ok {
		info["model"] = d.ModelInfo()
	}
	return info
}

// Detect runs the full detection flow on the image at path.
func (p *Pipeline) Detect(ctx context.Context, path string) (*ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	res, err := p.DetectImage(ctx, img)
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

// DetectImage runs the full detection flow on a decoded image.
func (p *Pipeline) DetectImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	if p.engine == nil {
		return nil, errors.New("pipeline not initialized")
	}
	start := time.Now()

	pre, err := PreprocessImage(ctx, img, p.cfg.Preprocess)
	if err != nil {
		return nil, err
	}
	preDone := time.Now()

	raw, err := p.engine.Run(ctx, detector.Inputs{Image: pre.Tensor, ImageSize: pre.ImageSizeTensor()})
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	infDone := time.Now()

	dets, err := raw.Postprocess()
	if err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}

	res := &ImageResult{
		Width:      pre.Letterbox.SourceWidth,
		Height:     pre.Letterbox.SourceHeight,
		Detections: p.label(dets, pre.Letterbox),
	}
	end := time.Now()
	res.Processing.PreprocessNs = preDone.Sub(start).Nanoseconds()
	res.Processing.InferenceNs = infDone.Sub(preDone).Nanoseconds()
	res.Processing.PostprocessNs = end.Sub(infDone).Nanoseconds()
	res.Processing.TotalNs = end.Sub(start).Nanoseconds()

	slog.Debug("Detection complete",
		"detections", len(res.Detections),
		"width", res.Width, "height", res.Height,
		"total_ms", float64(res.Processing.TotalNs)/1e6)
	return res, nil
}

func (p *Pipeline) label(dets *detector.Detections, lb *utils.Letterboxed) []DetectionResult {
	out := make([]DetectionResult, 0, dets.Len())
	for _, d := range dets.Records() {
		r := DetectionResult{
			ClassIndex: d.ClassIndex,
			Label:      p.classes.Name(d.ClassIndex),
			Score:      d.Score,
			Box:        d.Box,
		}
		if p.cfg.Postprocess.MapToSource && lb != nil {
			src := boxFromUtils(lb.BoxToSource(CanvasBox(d.Box, p.cfg.Postprocess.BoxOrder)))
			r.SourceBox = &src
		}
		out = append(out, r)
	}
	return out
}

// CanvasBox reads a raw model box in the given order as canvas coordinates.
func CanvasBox(raw [4]float32, order string) utils.Box {
	if order == BoxOrderXYXY {
		return utils.NewBox(float64(raw[0]), float64(raw[1]), float64(raw[2]), float64(raw[3]))
	}
	return utils.NewBox(float64(raw[1]), float64(raw[0]), float64(raw[3]), float64(raw[2]))
}
