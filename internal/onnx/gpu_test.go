package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGPUConfig(t *testing.T) {
	cfg := DefaultGPUConfig()
	assert.False(t, cfg.UseGPU)
	assert.Equal(t, 0, cfg.DeviceID)
	assert.Equal(t, "kNextPowerOfTwo", cfg.ArenaExtendStrategy)
	assert.Equal(t, "DEFAULT", cfg.CUDNNConvAlgoSearch)
	assert.True(t, cfg.DoCopyInDefaultStream)
}

func TestGPUConfig_ProviderSettings(t *testing.T) {
	cfg := DefaultGPUConfig()
	cfg.DeviceID = 1
	cfg.GPUMemLimit = 1 << 30
	cfg.DoCopyInDefaultStream = false

	s := cfg.ProviderSettings()
	assert.Equal(t, "1", s["device_id"])
	assert.Equal(t, "1073741824", s["gpu_mem_limit"])
	assert.Equal(t, "0", s["do_copy_in_default_stream"])
	assert.Equal(t, "kNextPowerOfTwo", s["arena_extend_strategy"])
}

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{name: "cpu default", config: DefaultGPUConfig()},
		{name: "cpu ignores bad fields", config: GPUConfig{DeviceID: -4, ArenaExtendStrategy: "nope"}},
		{name: "valid gpu", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested", CUDNNConvAlgoSearch: "HEURISTIC"}},
		{name: "negative device", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: true},
		{name: "bad arena strategy", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "invalid"}, wantErr: true},
		{name: "bad algo search", config: GPUConfig{UseGPU: true, CUDNNConvAlgoSearch: "invalid"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigureSessionForGPU_DisabledIsNoop(t *testing.T) {
	assert.NoError(t, ConfigureSessionForGPU(nil, DefaultGPUConfig()))
}

func TestGetSystemLibraryPaths(t *testing.T) {
	assert.Len(t, getSystemLibraryPaths(true), 4)
	assert.Len(t, getSystemLibraryPaths(false), 3)
	assert.Contains(t, getSystemLibraryPaths(true)[0], "gpu")
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	require.NoError(t, err)
	switch runtime.GOOS {
	case osLinux:
		assert.Equal(t, libLinux, name)
	case osDarwin:
		assert.Equal(t, libDarwin, name)
	case osWindows:
		assert.Equal(t, libWindows, name)
	}
}

func TestFindProjectRoot(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "project")
	subDir := filepath.Join(projectDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module test\n"), 0o644))

	t.Chdir(subDir)

	root, err := findProjectRoot()
	require.NoError(t, err)
	// macOS temp dirs resolve through /private
	want, _ := filepath.EvalSymlinks(projectDir)
	got, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, want, got)
}

func TestResolveLibraryPath_Explicit(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte("fake"), 0o644))

	got, err := ResolveLibraryPath(lib, false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	_, err = ResolveLibraryPath(filepath.Join(t.TempDir(), "missing.so"), false)
	assert.Error(t, err)
}

func TestResolveLibraryPath_EnvVar(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "custom.so")
	require.NoError(t, os.WriteFile(lib, []byte("fake"), 0o644))
	t.Setenv(LibraryEnvVar, lib)

	got, err := ResolveLibraryPath("", true)
	require.NoError(t, err)
	assert.Equal(t, lib, got)
}

func TestReleaseEnvironment_WithoutAcquire(t *testing.T) {
	assert.NoError(t, ReleaseEnvironment())
}
