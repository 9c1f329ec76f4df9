package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/yolodet/internal/config"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Destination of the structured logs.
	logOutput io.Writer = os.Stdout
)

// newPipeline builds the detection pipeline for cfg. Tests replace it to
// inject a fake engine.
var newPipeline = func(cfg *config.Config) (*pipeline.Pipeline, error) {
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.NewBuilder().WithConfig(pc).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return p, nil
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "yolodet",
	Short: "YOLO object detection with ONNX Runtime",
	Long: `yolodet runs a YOLOv3 ONNX model with an embedded NMS layer on images.

Images are letterboxed onto the model canvas with gray padding, normalized to
[0, 1] and passed to the model as planar NCHW tensors. The NMS index tuples
the model returns are turned into labelled detections.

Examples:
  yolodet image street.jpg
  yolodet batch photos/ --recursive --format csv --output detections.csv
  yolodet serve --port 8080`,
	Version: version.Get().String(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "",
		"config file (default is yolodet.yaml in ., $HOME, $XDG_CONFIG_HOME/yolodet, /etc/yolodet)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	// Model
	pf.String("models-dir", "", "directory containing ONNX models (also YOLODET_MODELS_DIR)")
	pf.StringP("model", "m", "", "ONNX model path, absolute or relative to the models directory")
	pf.String("library-path", "", "ONNX Runtime shared library (auto-detected when empty)")
	pf.String("classes", "", "class labels file, one per line (COCO-80 when empty)")
	pf.Int("threads", 0, "intra-op threads (0 = runtime default)")
	pf.Int("warmup", 0, "warmup inference runs after loading the model")
	pf.Bool("gpu", false, "use the CUDA execution provider")
	pf.Int("gpu-device", 0, "CUDA device ID")

	// Preprocess and postprocess
	pf.Int("width", 416, "model input width")
	pf.Int("height", 416, "model input height")
	pf.String("filter", "catmullrom", "resample filter: catmullrom, linear, nearest, box, lanczos")
	pf.String("box-order", pipeline.BoxOrderYXYX, "order of raw box values: yxyx or xyxy")

	// Output
	pf.StringP("format", "f", pipeline.FormatText, "output format: text, json, yaml, csv")
	pf.StringP("output", "o", "", "write results to this file instead of stdout")
	pf.String("overlay-dir", "", "write PNG overlays with the detected boxes to this directory")
	pf.String("box-color", "", "overlay box color (hex); per-class colors when empty")

	bindFlags(pf.Lookup, map[string]string{
		"verbose":      "verbose",
		"log-level":    "log_level",
		"models-dir":   "model.models_dir",
		"model":        "model.path",
		"library-path": "model.library_path",
		"classes":      "postprocess.classes_file",
		"threads":      "model.num_threads",
		"warmup":       "model.warmup_iterations",
		"gpu":          "model.gpu.enabled",
		"gpu-device":   "model.gpu.device",
		"width":        "preprocess.width",
		"height":       "preprocess.height",
		"filter":       "preprocess.filter",
		"box-order":    "postprocess.box_order",
		"format":       "output.format",
		"output":       "output.file",
		"overlay-dir":  "output.overlay_dir",
		"box-color":    "output.box_color",
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(globalConfig, logOutput)
		return nil
	}
}

// flagBindings records every viper key bound to a flag.
var flagBindings = map[string]*pflag.Flag{}

// bindFlags binds flags to viper keys. Binding only fails for a nil flag,
// which is a programming error.
func bindFlags(lookup func(string) *pflag.Flag, keys map[string]string) {
	for name, key := range keys {
		flag := lookup(name)
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
		flagBindings[key] = flag
	}
}

// initConfig reads in config file and ENV variables.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs the default JSON logger at the configured level.
func setupLogging(cfg *config.Config, w io.Writer) {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConfig returns the global configuration, loading it on first use.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
