package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/yolodet/internal/config"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// writeResults formats results and writes them to file, or to w when file
// is empty.
func writeResults(w io.Writer, results []*pipeline.ImageResult, format, file string) error {
	out, err := pipeline.Format(results, format)
	if err != nil {
		return err
	}
	return writeOutput(w, out, file)
}

func writeOutput(w io.Writer, out, file string) error {
	if file == "" {
		if _, err := io.WriteString(w, out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(file, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Results written", "file", file)
	return nil
}

// overlayOptions builds overlay rendering options from the output config.
func overlayOptions(cfg *config.Config) (pipeline.OverlayOptions, error) {
	opts := pipeline.DefaultOverlayOptions()
	if cfg.Output.BoxColor != "" {
		c, err := utils.ParseHexColor(cfg.Output.BoxColor)
		if err != nil {
			return opts, fmt.Errorf("invalid box color: %w", err)
		}
		opts.BoxColor = c
	}
	return opts, nil
}
