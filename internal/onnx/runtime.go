package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// LibraryEnvVar overrides shared library discovery when set.
const LibraryEnvVar = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

func getSystemLibraryPaths(useGPU bool) []string {
	if useGPU {
		return []string{
			"/opt/onnxruntime/gpu/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolveLibraryPath finds the ONNX Runtime shared library. An explicit path
// wins, then LibraryEnvVar, then system locations, then ./onnxruntime under
// the project root.
func ResolveLibraryPath(explicit string, useGPU bool) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("ONNX Runtime library not found at %s", explicit)
		}
		return explicit, nil
	}
	if env := os.Getenv(LibraryEnvVar); env != "" && fileExists(env) {
		return env, nil
	}
	for _, p := range getSystemLibraryPaths(useGPU) {
		if fileExists(p) {
			return p, nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return "", err
	}
	libName, err := getLibraryName()
	if err != nil {
		return "", err
	}
	if useGPU {
		if p := filepath.Join(root, "onnxruntime", "gpu", "lib", libName); fileExists(p) {
			return p, nil
		}
	}
	p := filepath.Join(root, "onnxruntime", "lib", libName)
	if !fileExists(p) {
		return "", fmt.Errorf("ONNX Runtime library not found at %s", p)
	}
	return p, nil
}

var (
	envMu   sync.Mutex
	envRefs int
)

// AcquireEnvironment initializes the process-wide ONNX Runtime environment on
// first use. Every successful call must be paired with ReleaseEnvironment.
func AcquireEnvironment(libPath string, useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs > 0 {
		envRefs++
		return nil
	}

	path, err := ResolveLibraryPath(libPath, useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(path)
	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}
	slog.Debug("onnx runtime initialized", "library", path)
	envRefs = 1
	return nil
}

// ReleaseEnvironment drops one reference and tears the environment down when
// the last one is released.
func ReleaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs > 0 {
		return nil
	}
	if err := onnxruntime_go.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX Runtime environment: %w", err)
	}
	return nil
}
