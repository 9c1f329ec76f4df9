package detector

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// Inputs are the two tensors fed to the detector graph.
type Inputs struct {
	Image     onnx.Tensor // [1, 3, H, W]
	ImageSize onnx.Tensor // [1, 2] as (height, width)
}

// Validate checks the tensor shapes.
func (in Inputs) Validate() error {
	if err := onnx.VerifyImageTensor(in.Image); err != nil {
		return fmt.Errorf("invalid image tensor: %w", err)
	}
	if len(in.ImageSize.Shape) != 2 || in.ImageSize.Shape[0] != 1 || in.ImageSize.Shape[1] != 2 ||
		len(in.ImageSize.Data) != 2 {
		return fmt.Errorf("image size tensor must be [1 2], got %v with %d values",
			in.ImageSize.Shape, len(in.ImageSize.Data))
	}
	return nil
}

// Engine runs the detector graph. Implementations must be safe for concurrent
// use.
type Engine interface {
	Run(ctx context.Context, in Inputs) (*RawOutputs, error)
	Close() error
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	ModelPath   string             `json:"model_path"`
	IONames     IONames            `json:"io_names"`
	InputShapes map[string][]int64 `json:"input_shapes,omitempty"`
	OutputTypes map[string]string  `json:"output_types,omitempty"`
	InputWidth  int                `json:"input_width"`
	InputHeight int                `json:"input_height"`
	NumThreads  int                `json:"num_threads"`
	GPU         bool               `json:"gpu"`
}

// Describer is implemented by engines that can report model metadata.
type Describer interface {
	ModelInfo() ModelInfo
}
