package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// processSingleImage loads path, runs detection and optionally writes an overlay.
func processSingleImage(ctx context.Context, det Detector, path string, cfg *Config) (*pipeline.ImageResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}

	res, err := det.DetectImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed for %s: %w", path, err)
	}
	res.Path = path

	if cfg.OverlayDir != "" {
		out := OverlayPath(cfg.OverlayDir, path)
		if err := utils.SaveImage(pipeline.RenderOverlay(img, res, cfg.Overlay), out); err != nil {
			slog.Warn("Failed to save overlay", "path", out, "error", err)
		}
	}
	return res, nil
}

// OverlayPath returns <dir>/<name>_overlay.png for the given source image.
func OverlayPath(dir, source string) string {
	base := filepath.Base(source)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}
