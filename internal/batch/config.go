package batch

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	Workers         int // 0 = runtime.NumCPU()
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	OverlayDir string
	Overlay    pipeline.OverlayOptions

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	Progress         ProgressCallback // overrides ShowProgress when set
}

// DefaultConfig returns batch defaults: one worker per CPU, stop on first error.
func DefaultConfig() *Config {
	return &Config{
		Workers:          runtime.NumCPU(),
		Overlay:          pipeline.DefaultOverlayOptions(),
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("batch config is nil")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval must be >= 0, got %v", c.ProgressInterval)
	}
	return nil
}

func (c *Config) workerCount(jobs int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, jobs))
}
