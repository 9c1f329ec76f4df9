package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/batch"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Detect objects in image files",
	Long: `Process one or more image files and print the detected objects.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP

Examples:
  yolodet image street.jpg
  yolodet image a.png b.png --format json
  yolodet image street.jpg --overlay-dir overlays --output results.json --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runImageCommand,
}

func init() {
	rootCmd.AddCommand(imageCmd)
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}

	cfg := GetConfig()
	opts, err := overlayOptions(cfg)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx := commandContext(cmd)
	results := make([]*pipeline.ImageResult, 0, len(args))
	for _, path := range args {
		res, err := detectFile(ctx, p, path, cfg.Output.OverlayDir, opts)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	return writeResults(cmd.OutOrStdout(), results, cfg.Output.Format, cfg.Output.File)
}

// detectFile runs p on one image and optionally writes its overlay.
func detectFile(ctx context.Context, p *pipeline.Pipeline, path, overlayDir string,
	opts pipeline.OverlayOptions,
) (*pipeline.ImageResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	res, err := p.DetectImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed for %s: %w", path, err)
	}
	res.Path = path
	slog.Debug("Image processed", "path", path, "detections", len(res.Detections))

	if overlayDir != "" {
		out := batch.OverlayPath(overlayDir, path)
		if err := utils.SaveImage(pipeline.RenderOverlay(img, res, opts), out); err != nil {
			return nil, fmt.Errorf("failed to write overlay for %s: %w", path, err)
		}
		slog.Info("Overlay written", "path", out)
	}
	return res, nil
}
