package config

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.False(t, cfg.Verbose)

	assert.Empty(t, cfg.Model.Path)
	assert.Equal(t, detector.DefaultIONames(), cfg.Model.IONames)
	assert.Equal(t, "auto", cfg.Model.GPU.MemoryLimit)

	assert.Equal(t, 416, cfg.Preprocess.Width)
	assert.Equal(t, 416, cfg.Preprocess.Height)
	assert.Equal(t, "#808080", cfg.Preprocess.Fill)
	assert.Equal(t, "catmullrom", cfg.Preprocess.Filter)

	assert.Equal(t, pipeline.BoxOrderYXYX, cfg.Postprocess.BoxOrder)
	assert.True(t, cfg.Postprocess.MapToSource)

	assert.Equal(t, "text", cfg.Output.Format)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.Equal(t, 4, cfg.Batch.Workers)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty output format", func(c *Config) { c.Output.Format = "" }, ""},
		{"xyxy order", func(c *Config) { c.Postprocess.BoxOrder = "xyxy" }, ""},
		{"memory limit", func(c *Config) { c.Model.GPU.MemoryLimit = "2GB" }, ""},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"threads", func(c *Config) { c.Model.NumThreads = -1 }, "num_threads"},
		{"warmup", func(c *Config) { c.Model.WarmupIterations = -2 }, "warmup_iterations"},
		{"io names", func(c *Config) { c.Model.IONames.Boxes = "" }, "io_names"},
		{"gpu device", func(c *Config) { c.Model.GPU.Device = -1 }, "GPU device"},
		{"gpu memory", func(c *Config) { c.Model.GPU.MemoryLimit = "lots" }, "GPU memory limit"},
		{"width", func(c *Config) { c.Preprocess.Width = 0 }, "preprocess size"},
		{"fill", func(c *Config) { c.Preprocess.Fill = "gray" }, "preprocess fill"},
		{"filter", func(c *Config) { c.Preprocess.Filter = "sinc" }, "preprocess filter"},
		{"box order", func(c *Config) { c.Postprocess.BoxOrder = "xywh" }, "invalid box order"},
		{"box color", func(c *Config) { c.Output.BoxColor = "#12" }, "box color"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = -1 }, "shutdown timeout"},
		{"rate limit", func(c *Config) { c.Server.RateLimitPerMinute = -1 }, "invalid rate limit"},
		{"daily upload", func(c *Config) { c.Server.DailyUploadMB = -5 }, "invalid rate limit"},
		{"workers", func(c *Config) { c.Batch.Workers = -1 }, "batch workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.ModelsDir = "/opt/models"
	cfg.Model.Path = "tiny.onnx"
	cfg.Model.LibraryPath = "/usr/lib/libonnxruntime.so"
	cfg.Model.NumThreads = 2
	cfg.Model.WarmupIterations = 3
	cfg.Model.GPU = GPUConfig{Enabled: true, Device: 1, MemoryLimit: "512MB"}
	cfg.Preprocess = PreprocessConfig{Width: 320, Height: 192, Fill: "#000000", Filter: "nearest"}
	cfg.Postprocess = PostprocessConfig{BoxOrder: "xyxy", ClassesFile: "classes.txt"}

	pc, err := cfg.ToPipelineConfig()
	require.NoError(t, err)

	assert.Equal(t, "/opt/models", pc.ModelsDir)
	assert.Equal(t, "classes.txt", pc.ClassesFile)
	assert.Equal(t, 320, pc.Preprocess.TargetWidth)
	assert.Equal(t, 192, pc.Preprocess.TargetHeight)
	assert.Equal(t, color.NRGBA{A: 255}, pc.Preprocess.Fill)
	assert.Equal(t, imaging.NearestNeighbor.Support, pc.Preprocess.Filter.Support)
	assert.Equal(t, pipeline.BoxOrderXYXY, pc.Postprocess.BoxOrder)
	assert.False(t, pc.Postprocess.MapToSource)

	det := pc.Detector
	assert.Equal(t, "tiny.onnx", det.ModelPath)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", det.LibraryPath)
	assert.Equal(t, 320, det.InputWidth)
	assert.Equal(t, 192, det.InputHeight)
	assert.Equal(t, 2, det.NumThreads)
	assert.Equal(t, 3, det.WarmupIterations)
	assert.True(t, det.GPU.UseGPU)
	assert.Equal(t, 1, det.GPU.DeviceID)
	assert.Equal(t, uint64(512<<20), det.GPU.GPUMemLimit)
	assert.Equal(t, detector.DefaultIONames(), det.IONames)
}

func TestToPipelineConfig_DefaultModelPathLeftForResolution(t *testing.T) {
	cfg := DefaultConfig()
	pc, err := cfg.ToPipelineConfig()
	require.NoError(t, err)
	assert.Empty(t, pc.Detector.ModelPath)
	assert.NotEmpty(t, pc.ModelsDir)
}

func TestToPipelineConfig_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocess.Fill = "nope"
	_, err := cfg.ToPipelineConfig()
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Preprocess.Filter = "nope"
	_, err = cfg.ToPipelineConfig()
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Model.GPU.MemoryLimit = "12XB"
	_, err = cfg.ToPipelineConfig()
	require.Error(t, err)
}

func TestToServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server = ServerConfig{
		Host: "0.0.0.0", Port: 9000, CORSOrigin: "https://example.com",
		MaxUploadMB: 10, TimeoutSec: 5, ShutdownTimeout: 2, OverlayEnabled: false,
		RateLimitPerMinute: 30, RateLimitPerHour: 600, DailyUploadMB: 100,
	}
	cfg.Output.BoxColor = "#00FF00"

	sc := cfg.ToServerConfig()
	assert.Equal(t, "0.0.0.0", sc.Host)
	assert.Equal(t, 9000, sc.Port)
	assert.Equal(t, "https://example.com", sc.CORSOrigin)
	assert.Equal(t, int64(10), sc.MaxUploadMB)
	assert.Equal(t, 5, sc.TimeoutSec)
	assert.Equal(t, 2, sc.ShutdownTimeoutSec)
	assert.False(t, sc.OverlayEnabled)
	assert.Equal(t, "#00FF00", sc.OverlayBoxColor)
	assert.Equal(t, 30, sc.RateLimitPerMinute)
	assert.Equal(t, 600, sc.RateLimitPerHour)
	assert.Equal(t, int64(100), sc.DailyUploadMB)
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch = BatchConfig{
		Workers: 3, Recursive: true,
		Include: []string{"*.jpg"}, Exclude: []string{"skip_*"},
		ContinueOnError: true,
	}
	cfg.Output.OverlayDir = "out"
	cfg.Output.BoxColor = "#FF0000"

	bc, err := cfg.ToBatchConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, bc.Workers)
	assert.True(t, bc.Recursive)
	assert.Equal(t, []string{"*.jpg"}, bc.IncludePatterns)
	assert.Equal(t, []string{"skip_*"}, bc.ExcludePatterns)
	assert.True(t, bc.ContinueOnError)
	assert.Equal(t, "out", bc.OverlayDir)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, bc.Overlay.BoxColor)
	require.NoError(t, bc.Validate())

	cfg.Batch.Workers = 0
	bc, err = cfg.ToBatchConfig()
	require.NoError(t, err)
	assert.Positive(t, bc.Workers)

	cfg.Output.BoxColor = "bad"
	_, err = cfg.ToBatchConfig()
	require.Error(t, err)
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"AUTO", 0, false},
		{"1024B", 1024, false},
		{"4KB", 4 << 10, false},
		{"512mb", 512 << 20, false},
		{"1.5GB", 3 << 29, false},
		{"GB", 0, true},
		{"-1MB", 0, true},
		{"12", 0, true},
		{"ten MB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
