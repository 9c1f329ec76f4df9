package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/yolodet/internal/mempool"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/utils"
	"github.com/disintegration/imaging"
)

const channels = 3

// PreprocessConfig controls how a source image becomes a model input tensor.
type PreprocessConfig struct {
	TargetWidth  int
	TargetHeight int
	Fill         color.NRGBA
	Filter       imaging.ResampleFilter
}

// DefaultPreprocessConfig returns the 416x416 gray-letterbox setup.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		TargetWidth:  416,
		TargetHeight: 416,
		Fill:         utils.DefaultFillColor,
		Filter:       imaging.CatmullRom,
	}
}

// Preprocessed is a model-ready tensor plus the letterbox geometry needed to
// map results back to the source image.
type Preprocessed struct {
	Tensor      onnx.Tensor // [1, 3, H, W]
	ContentSize [2]int      // (height, width) of the canvas fed to the model
	Letterbox   *utils.Letterboxed
}

// ImageSizeTensor returns the [1, 2] (height, width) companion input.
func (p *Preprocessed) ImageSizeTensor() onnx.Tensor {
	return onnx.NewImageSizeTensor(p.ContentSize[0], p.ContentSize[1])
}

// Preprocess loads the image at path and converts it into a planar tensor.
// Cancellation is honoured between stages; a cancelled call returns ctx.Err()
// and no tensor.
func Preprocess(ctx context.Context, path string, cfg PreprocessConfig) (*Preprocessed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return PreprocessImage(ctx, img, cfg)
}

// PreprocessImage runs the letterbox, normalize and planarize stages on an
// already decoded image.
func PreprocessImage(ctx context.Context, img image.Image, cfg PreprocessConfig) (*Preprocessed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lb, err := utils.Letterbox(img, cfg.TargetWidth, cfg.TargetHeight, cfg.Fill, cfg.Filter)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, w := lb.Height, lb.Width
	px := mempool.GetUint8(h * w * channels)
	px = px[:utils.RGBBytesInto(px, lb.Image)]

	scratch := mempool.GetFloat32(len(px))
	defer mempool.PutFloat32(scratch)
	onnx.NormalizeInto(scratch, px)
	mempool.PutUint8(px)

	planar, err := onnx.Planarize(scratch, h, w, channels)
	if err != nil {
		return nil, fmt.Errorf("planarize: %w", err)
	}
	tensor, err := onnx.NewImageTensor(planar, channels, h, w)
	if err != nil {
		return nil, err
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		lo, hi, mean := onnx.TensorStats(tensor.Data)
		slog.Debug("Preprocessed image",
			"width", w, "height", h,
			"pad_left", lb.PadLeft, "pad_top", lb.PadTop,
			"min", lo, "max", hi, "mean", mean)
	}

	return &Preprocessed{
		Tensor:      tensor,
		ContentSize: [2]int{h, w},
		Letterbox:   lb,
	}, nil
}
