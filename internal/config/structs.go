//nolint:lll
package config

import "github.com/MeKo-Tech/yolodet/internal/detector"

// Config represents the complete configuration for yolodet.
// It covers every command (image, batch, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Model       ModelConfig       `mapstructure:"model" yaml:"model" json:"model"`
	Preprocess  PreprocessConfig  `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Postprocess PostprocessConfig `mapstructure:"postprocess" yaml:"postprocess" json:"postprocess"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Batch       BatchConfig       `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ModelConfig selects the ONNX model and how it is run.
type ModelConfig struct {
	Path             string           `mapstructure:"path" yaml:"path" json:"path"`
	ModelsDir        string           `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LibraryPath      string           `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	IONames          detector.IONames `mapstructure:"io_names" yaml:"io_names" json:"io_names"`
	NumThreads       int              `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	WarmupIterations int              `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
	GPU              GPUConfig        `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// PreprocessConfig controls the letterbox transform.
type PreprocessConfig struct {
	Width  int    `mapstructure:"width" yaml:"width" json:"width"`
	Height int    `mapstructure:"height" yaml:"height" json:"height"`
	Fill   string `mapstructure:"fill" yaml:"fill" json:"fill"`
	Filter string `mapstructure:"filter" yaml:"filter" json:"filter"`
}

// PostprocessConfig controls how raw detections are interpreted.
type PostprocessConfig struct {
	BoxOrder    string `mapstructure:"box_order" yaml:"box_order" json:"box_order"`
	MapToSource bool   `mapstructure:"map_to_source" yaml:"map_to_source" json:"map_to_source"`
	ClassesFile string `mapstructure:"classes_file" yaml:"classes_file" json:"classes_file"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	BoxColor   string `mapstructure:"box_color" yaml:"box_color" json:"box_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`

	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitPerHour   int `mapstructure:"rate_limit_per_hour" yaml:"rate_limit_per_hour" json:"rate_limit_per_hour"`
	DailyUploadMB      int `mapstructure:"daily_upload_mb" yaml:"daily_upload_mb" json:"daily_upload_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
