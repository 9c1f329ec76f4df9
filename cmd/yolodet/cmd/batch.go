package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/batch"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Detect objects in many images in parallel",
	Long: `Process image files and directories with a pool of workers.

Directories are scanned for supported images (JPEG, PNG, GIF, BMP, TIFF, WebP).
Results keep the order of the discovered files.

Examples:
  yolodet batch photos/
  yolodet batch photos/ --recursive --workers 8 --progress
  yolodet batch a.jpg b.jpg --format csv --output detections.csv
  yolodet batch photos/ --include "*.jpg" --exclude "thumb_*" --continue-on-error`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.IntP("workers", "w", 4, "number of parallel workers (0 = one per CPU)")
	f.BoolP("recursive", "r", false, "scan directories recursively")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.Bool("continue-on-error", false, "keep going when an image fails")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.Bool("stats", false, "print batch statistics on stderr")

	bindFlags(f.Lookup, map[string]string{
		"workers":           "batch.workers",
		"recursive":         "batch.recursive",
		"include":           "batch.include",
		"exclude":           "batch.exclude",
		"continue-on-error": "batch.continue_on_error",
	})
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	bc, err := cfg.ToBatchConfig()
	if err != nil {
		return err
	}
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		bc.Progress = batch.NewConsoleProgress(cmd.ErrOrStderr(), "Detecting: ", bc.ProgressInterval)
	} else {
		bc.Progress = batch.NewLogProgress(slog.Default(), slog.LevelDebug, 10)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	res, runErr := batch.ProcessBatch(commandContext(cmd), p, args, bc)
	if res == nil {
		if errors.Is(runErr, batch.ErrNoImages) {
			return fmt.Errorf("no supported images found in %v", args)
		}
		return runErr
	}

	if err := res.SaveResults(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.File); err != nil {
		return err
	}
	for _, f := range res.Failures {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", f)
	}
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		res.PrintStats(cmd.ErrOrStderr())
	}
	return runErr
}
