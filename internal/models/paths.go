package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultModelFile is the YOLOv3 export with the NMS layer attached.
	DefaultModelFile = "yolov3.onnx"

	// DefaultModelsDir is the models directory relative to the project root.
	DefaultModelsDir = "models"

	// EnvModelsDir overrides the models directory.
	EnvModelsDir = "YOLODET_MODELS_DIR"
)

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath returns modelPath unchanged when it is set, otherwise the
// default model file inside the models directory. Relative model paths that do
// not exist as given are looked up in the models directory.
func ResolveModelPath(modelsDir, modelPath string) string {
	if modelPath == "" {
		return filepath.Join(GetModelsDir(modelsDir), DefaultModelFile)
	}
	if filepath.IsAbs(modelPath) {
		return modelPath
	}
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath
	}
	candidate := filepath.Join(GetModelsDir(modelsDir), modelPath)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return modelPath
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	info, err := os.Stat(modelPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	if err != nil {
		return fmt.Errorf("cannot stat model file %s: %w", modelPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", modelPath)
	}
	return nil
}
