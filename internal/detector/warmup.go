package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// Warmup runs iterations forward passes of a blank width x height image to
// reduce first-request latency.
func Warmup(ctx context.Context, e Engine, width, height, iterations int) error {
	if iterations <= 0 {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid warmup size %dx%d", width, height)
	}

	img, err := onnx.NewImageTensor(make([]float32, 3*width*height), 3, height, width)
	if err != nil {
		return err
	}
	in := Inputs{Image: img, ImageSize: onnx.NewImageSizeTensor(height, width)}

	start := time.Now()
	for i := range iterations {
		if _, err := e.Run(ctx, in); err != nil {
			return fmt.Errorf("warmup iteration %d: %w", i+1, err)
		}
	}
	slog.Debug("Detector warmup complete", "iterations", iterations, "duration", time.Since(start))
	return nil
}
