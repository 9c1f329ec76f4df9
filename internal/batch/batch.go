// Package batch runs detection over many image files with a worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// Result holds the result of batch processing.
type Result struct {
	Results     []*pipeline.ImageResult // input order; nil where the image failed
	Failures    []Failure
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// ProcessBatch discovers images under inputs and runs det on each of them.
// On a stop-on-error failure the partial Result is returned with the error.
func ProcessBatch(ctx context.Context, det Detector, inputs []string, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	files, err := DiscoverImageFiles(inputs, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	progress := cfg.Progress
	if progress == nil {
		if cfg.ShowProgress && !cfg.Quiet {
			progress = NewConsoleProgress(os.Stderr, "Detecting: ", cfg.ProgressInterval)
		} else {
			progress = NoOpProgress{}
		}
	}

	workers := cfg.workerCount(len(files))
	slog.Info("Starting batch", "images", len(files), "workers", workers)

	progress.OnStart(len(files))
	start := time.Now()
	results, failures, runErr := runParallel(ctx, det, files, cfg, progress)
	progress.OnComplete()

	res := &Result{
		Results:     results,
		Failures:    failures,
		ImagePaths:  files,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}
	if runErr != nil {
		return res, fmt.Errorf("batch processing failed: %w", runErr)
	}
	return res, nil
}

// Succeeded returns the non-nil results in input order.
func (r *Result) Succeeded() []*pipeline.ImageResult {
	out := make([]*pipeline.ImageResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// FormatResults formats the successful results in the given format.
func (r *Result) FormatResults(format string) (string, error) {
	return pipeline.Format(r.Succeeded(), format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile == "" {
		_, err = io.WriteString(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Results written", "file", outputFile)
	return nil
}
