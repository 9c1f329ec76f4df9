package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/yolodet/internal/batch"
	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/server"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

const infoLevel = "info"

var (
	validLogLevels = []string{"debug", infoLevel, "warn", "error"}
	validBoxOrders = []string{pipeline.BoxOrderYXYX, pipeline.BoxOrderXYXY}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	pre := pipeline.DefaultPreprocessConfig()
	srv := server.DefaultConfig()
	return Config{
		LogLevel: infoLevel,
		Model: ModelConfig{
			// Empty resolves through YOLODET_MODELS_DIR or <project root>/models.
			ModelsDir: "",
			IONames:   detector.DefaultIONames(),
			GPU: GPUConfig{
				MemoryLimit: "auto",
			},
		},
		Preprocess: PreprocessConfig{
			Width:  pre.TargetWidth,
			Height: pre.TargetHeight,
			Fill:   "#808080",
			Filter: "catmullrom",
		},
		Postprocess: PostprocessConfig{
			BoxOrder:    pipeline.BoxOrderYXYX,
			MapToSource: true,
		},
		Output: OutputConfig{
			Format: pipeline.FormatText,
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigin:      srv.CORSOrigin,
			MaxUploadMB:     int(srv.MaxUploadMB),
			TimeoutSec:      srv.TimeoutSec,
			ShutdownTimeout: srv.ShutdownTimeoutSec,
			OverlayEnabled:  srv.OverlayEnabled,

			RateLimitPerMinute: srv.RateLimitPerMinute,
			RateLimitPerHour:   srv.RateLimitPerHour,
			DailyUploadMB:      int(srv.DailyUploadMB),
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(pipeline.SupportedFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(pipeline.SupportedFormats, ", "))
	}

	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validatePreprocess(); err != nil {
		return err
	}
	if !slices.Contains(validBoxOrders, c.Postprocess.BoxOrder) {
		return fmt.Errorf("invalid box order: %s (must be one of: %s)",
			c.Postprocess.BoxOrder, strings.Join(validBoxOrders, ", "))
	}
	if c.Output.BoxColor != "" {
		if _, err := utils.ParseHexColor(c.Output.BoxColor); err != nil {
			return fmt.Errorf("invalid output box color: %w", err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be >= 0)", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitPerHour < 0 || c.Server.DailyUploadMB < 0 {
		return fmt.Errorf("invalid rate limit: per minute %d, per hour %d, daily upload %d MB (must be >= 0)",
			c.Server.RateLimitPerMinute, c.Server.RateLimitPerHour, c.Server.DailyUploadMB)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid batch workers: %d (must be >= 0)", c.Batch.Workers)
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model num_threads: %d (must be >= 0)", c.Model.NumThreads)
	}
	if c.Model.WarmupIterations < 0 {
		return fmt.Errorf("invalid model warmup_iterations: %d (must be >= 0)", c.Model.WarmupIterations)
	}
	if err := c.Model.IONames.Validate(); err != nil {
		return fmt.Errorf("invalid model io_names: %w", err)
	}
	if c.Model.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be >= 0)", c.Model.GPU.Device)
	}
	if _, err := parseMemoryLimit(c.Model.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return nil
}

func (c *Config) validatePreprocess() error {
	if c.Preprocess.Width <= 0 || c.Preprocess.Height <= 0 {
		return fmt.Errorf("invalid preprocess size: %dx%d (must be positive)",
			c.Preprocess.Width, c.Preprocess.Height)
	}
	if _, err := utils.ParseHexColor(c.Preprocess.Fill); err != nil {
		return fmt.Errorf("invalid preprocess fill: %w", err)
	}
	if _, err := utils.ParseResampleFilter(c.Preprocess.Filter); err != nil {
		return fmt.Errorf("invalid preprocess filter: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if c.Model.ModelsDir != "" {
		cfg.ModelsDir = c.Model.ModelsDir
	}
	cfg.ClassesFile = c.Postprocess.ClassesFile

	fill, err := utils.ParseHexColor(c.Preprocess.Fill)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("preprocess fill: %w", err)
	}
	filter, err := utils.ParseResampleFilter(c.Preprocess.Filter)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("preprocess filter: %w", err)
	}
	cfg.Preprocess = pipeline.PreprocessConfig{
		TargetWidth:  c.Preprocess.Width,
		TargetHeight: c.Preprocess.Height,
		Fill:         fill,
		Filter:       filter,
	}
	cfg.Postprocess = pipeline.PostprocessConfig{
		BoxOrder:    c.Postprocess.BoxOrder,
		MapToSource: c.Postprocess.MapToSource,
	}

	det, err := c.toDetectorConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.Detector = det
	return cfg, nil
}

func (c *Config) toDetectorConfig() (detector.Config, error) {
	cfg := detector.DefaultConfig()
	// Resolved against the models directory when the pipeline is built.
	cfg.ModelPath = c.Model.Path
	cfg.LibraryPath = c.Model.LibraryPath
	cfg.IONames = c.Model.IONames
	cfg.InputWidth = c.Preprocess.Width
	cfg.InputHeight = c.Preprocess.Height
	cfg.NumThreads = c.Model.NumThreads
	cfg.WarmupIterations = c.Model.WarmupIterations

	limit, err := parseMemoryLimit(c.Model.GPU.MemoryLimit)
	if err != nil {
		return detector.Config{}, fmt.Errorf("GPU memory limit: %w", err)
	}
	gpu := onnx.DefaultGPUConfig()
	gpu.UseGPU = c.Model.GPU.Enabled
	gpu.DeviceID = c.Model.GPU.Device
	gpu.GPUMemLimit = limit
	cfg.GPU = gpu
	return cfg, nil
}

// ToServerConfig converts the config to the server configuration format.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:               c.Server.Host,
		Port:               c.Server.Port,
		CORSOrigin:         c.Server.CORSOrigin,
		MaxUploadMB:        int64(c.Server.MaxUploadMB),
		TimeoutSec:         c.Server.TimeoutSec,
		ShutdownTimeoutSec: c.Server.ShutdownTimeout,
		OverlayEnabled:     c.Server.OverlayEnabled,
		OverlayBoxColor:    c.Output.BoxColor,
		RateLimitPerMinute: c.Server.RateLimitPerMinute,
		RateLimitPerHour:   c.Server.RateLimitPerHour,
		DailyUploadMB:      int64(c.Server.DailyUploadMB),
	}
}

// ToBatchConfig converts the config to the batch configuration format.
// Progress reporting is left to the caller.
func (c *Config) ToBatchConfig() (*batch.Config, error) {
	cfg := batch.DefaultConfig()
	if c.Batch.Workers > 0 {
		cfg.Workers = c.Batch.Workers
	}
	cfg.Recursive = c.Batch.Recursive
	cfg.IncludePatterns = c.Batch.Include
	cfg.ExcludePatterns = c.Batch.Exclude
	cfg.ContinueOnError = c.Batch.ContinueOnError
	cfg.OverlayDir = c.Output.OverlayDir
	if c.Output.BoxColor != "" {
		col, err := utils.ParseHexColor(c.Output.BoxColor)
		if err != nil {
			return nil, fmt.Errorf("output box color: %w", err)
		}
		cfg.Overlay.BoxColor = col
	}
	return cfg, nil
}

// parseMemoryLimit converts limits like "512MB" or "2GB" to bytes.
// "auto" and "" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	limit = strings.ToUpper(strings.TrimSpace(limit))
	if limit == "" || limit == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(limit, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(limit, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, errors.New("memory limit must end with one of: B, KB, MB, GB")
}
