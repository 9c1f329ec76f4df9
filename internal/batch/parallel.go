package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
)

// Detector runs detection on one decoded image. *pipeline.Pipeline satisfies it.
type Detector interface {
	DetectImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
}

// Failure records one image that could not be processed.
type Failure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

type job struct {
	index int
	path  string
}

type jobResult struct {
	index  int
	result *pipeline.ImageResult
	err    error
}

// runParallel processes paths on a worker pool and returns results in input
// order. A failed image leaves a nil slot. Without ContinueOnError the first
// failure cancels the remaining work and is returned.
func runParallel(ctx context.Context, det Detector, paths []string, cfg *Config,
	progress ProgressCallback,
) ([]*pipeline.ImageResult, []Failure, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := cfg.workerCount(len(paths))
	jobs := make(chan job)
	results := make(chan jobResult, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, det, cfg, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- job{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*pipeline.ImageResult, len(paths))
	var failures []Failure
	var firstErr error
	done := 0

	for r := range results {
		done++
		if r.err != nil && ctx.Err() != nil && errors.Is(r.err, ctx.Err()) {
			// Aborted by cancellation, not a failure of the image itself.
			continue
		}
		if r.err != nil {
			f := Failure{Path: paths[r.index], Err: r.err}
			failures = append(failures, f)
			progress.OnError(f.Path, f.Err)
			if !cfg.ContinueOnError && firstErr == nil {
				firstErr = f
				cancel()
			}
		} else {
			ordered[r.index] = r.result
		}
		progress.OnProgress(done, len(paths))
	}

	if firstErr != nil {
		return ordered, failures, firstErr
	}
	if err := ctx.Err(); err != nil {
		return ordered, failures, err
	}
	return ordered, failures, nil
}

func worker(ctx context.Context, det Detector, cfg *Config, jobs <-chan job, results chan<- jobResult) {
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			res, err := processSingleImage(ctx, det, j.path, cfg)
			select {
			case results <- jobResult{index: j.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
