package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/yolodet/internal/models"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// Config holds configuration for the ONNX detector engine.
type Config struct {
	ModelPath        string         // Path to the ONNX model
	LibraryPath      string         // ONNX Runtime shared library; empty to auto-detect
	IONames          IONames        // Graph input/output names
	InputWidth       int            // Model input width (default: 416)
	InputHeight      int            // Model input height (default: 416)
	NumThreads       int            // Intra-op threads (default: 0 for auto)
	WarmupIterations int            // Warmup runs after load
	GPU              onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:   models.ResolveModelPath("", ""),
		IONames:     DefaultIONames(),
		InputWidth:  416,
		InputHeight: 416,
		GPU:         onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	if c.WarmupIterations < 0 {
		return fmt.Errorf("warmup iterations must be >= 0, got %d", c.WarmupIterations)
	}
	if err := c.IONames.Validate(); err != nil {
		return err
	}
	return onnx.ValidateGPUConfig(c.GPU)
}
