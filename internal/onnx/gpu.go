package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig holds configuration for GPU acceleration using CUDA.
type GPUConfig struct {
	UseGPU                bool   // Enable GPU acceleration
	DeviceID              int    // CUDA device ID (default: 0)
	GPUMemLimit           uint64 // GPU memory limit in bytes (0 = unlimited)
	ArenaExtendStrategy   string // "kNextPowerOfTwo" or "kSameAsRequested"
	CUDNNConvAlgoSearch   string // "EXHAUSTIVE", "HEURISTIC", or "DEFAULT"
	DoCopyInDefaultStream bool
}

// DefaultGPUConfig returns default GPU configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy:   "kNextPowerOfTwo",
		CUDNNConvAlgoSearch:   "DEFAULT",
		DoCopyInDefaultStream: true,
	}
}

// ProviderSettings returns the CUDA provider option map for cfg.
func (cfg GPUConfig) ProviderSettings() map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(cfg.DeviceID),
		"do_copy_in_default_stream": "0",
	}
	if cfg.DoCopyInDefaultStream {
		settings["do_copy_in_default_stream"] = "1"
	}
	if cfg.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(cfg.GPUMemLimit, 10)
	}
	if cfg.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = cfg.ArenaExtendStrategy
	}
	if cfg.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = cfg.CUDNNConvAlgoSearch
	}
	return settings
}

// ConfigureSessionForGPU appends the CUDA execution provider to sessionOptions.
// It is a no-op when cfg.UseGPU is false.
func ConfigureSessionForGPU(sessionOptions *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if destroyErr := cudaOpts.Destroy(); destroyErr != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", destroyErr)
		}
	}()

	if err := cudaOpts.Update(cfg.ProviderSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := sessionOptions.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	if cfg.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", cfg.DeviceID)
	}
	switch cfg.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
	default:
		return fmt.Errorf("invalid arena extend strategy: %s (must be 'kNextPowerOfTwo' or "+
			"'kSameAsRequested')", cfg.ArenaExtendStrategy)
	}
	switch cfg.CUDNNConvAlgoSearch {
	case "", "EXHAUSTIVE", "HEURISTIC", "DEFAULT":
	default:
		return fmt.Errorf("invalid CUDNN conv algo search: %s (must be 'EXHAUSTIVE', 'HEURISTIC', or "+
			"'DEFAULT')", cfg.CUDNNConvAlgoSearch)
	}
	return nil
}
