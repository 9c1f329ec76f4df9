package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "yolodet"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "YOLODET"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the CLI are honored.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the configuration from the search paths, the environment and
// defaults, then validates it. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the standard search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that AutomaticEnv can resolve it
// during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("model.path", d.Model.Path)
	l.v.SetDefault("model.models_dir", d.Model.ModelsDir)
	l.v.SetDefault("model.library_path", d.Model.LibraryPath)
	l.v.SetDefault("model.io_names.image", d.Model.IONames.Image)
	l.v.SetDefault("model.io_names.image_size", d.Model.IONames.ImageSize)
	l.v.SetDefault("model.io_names.indices", d.Model.IONames.Indices)
	l.v.SetDefault("model.io_names.scores", d.Model.IONames.Scores)
	l.v.SetDefault("model.io_names.boxes", d.Model.IONames.Boxes)
	l.v.SetDefault("model.num_threads", d.Model.NumThreads)
	l.v.SetDefault("model.warmup_iterations", d.Model.WarmupIterations)
	l.v.SetDefault("model.gpu.enabled", d.Model.GPU.Enabled)
	l.v.SetDefault("model.gpu.device", d.Model.GPU.Device)
	l.v.SetDefault("model.gpu.memory_limit", d.Model.GPU.MemoryLimit)

	l.v.SetDefault("preprocess.width", d.Preprocess.Width)
	l.v.SetDefault("preprocess.height", d.Preprocess.Height)
	l.v.SetDefault("preprocess.fill", d.Preprocess.Fill)
	l.v.SetDefault("preprocess.filter", d.Preprocess.Filter)

	l.v.SetDefault("postprocess.box_order", d.Postprocess.BoxOrder)
	l.v.SetDefault("postprocess.map_to_source", d.Postprocess.MapToSource)
	l.v.SetDefault("postprocess.classes_file", d.Postprocess.ClassesFile)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
	l.v.SetDefault("output.box_color", d.Output.BoxColor)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.overlay_enabled", d.Server.OverlayEnabled)
	l.v.SetDefault("server.rate_limit_per_minute", d.Server.RateLimitPerMinute)
	l.v.SetDefault("server.rate_limit_per_hour", d.Server.RateLimitPerHour)
	l.v.SetDefault("server.daily_upload_mb", d.Server.DailyUploadMB)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.include", d.Batch.Include)
	l.v.SetDefault("batch.exclude", d.Batch.Exclude)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)
}

// GetResolvedConfig returns the current resolved settings for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteConfig writes cfg as YAML to w.
func WriteConfig(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the default configuration to filename.
// It refuses to overwrite an existing file unless force is set.
func GenerateDefaultConfigFile(filename string, force bool) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if !force {
		if _, err := os.Stat(filename); err == nil {
			return fmt.Errorf("config file already exists: %s", filename)
		}
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	f, err := os.Create(filename) //nolint:gosec // G304: user-chosen output path
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := WriteConfig(f, DefaultConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && configDir != "" {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, filepath.Join("/etc", ConfigFileName))
}

// PrintConfigInfo writes where configuration was loaded from.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s_\n", EnvPrefix)
}
