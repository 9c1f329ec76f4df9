package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/yolodet/internal/models"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// ONNXEngine runs a YOLO NMS graph with ONNX Runtime. Run calls are serialized.
type ONNXEngine struct {
	config  Config
	session *onnxruntime_go.DynamicAdvancedSession
	inputs  map[string]onnxruntime_go.InputOutputInfo
	outputs map[string]onnxruntime_go.InputOutputInfo
	mu      sync.Mutex
}

// NewONNXEngine loads the model and creates the session.
func NewONNXEngine(cfg Config) (*ONNXEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateModelExists(cfg.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector engine",
		"model_path", cfg.ModelPath,
		"gpu_enabled", cfg.GPU.UseGPU,
		"num_threads", cfg.NumThreads,
		"outputs", cfg.IONames.Outputs())

	if err := onnx.AcquireEnvironment(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, fmt.Errorf("failed to set up ONNX Runtime: %w", err)
	}

	inputs, outputs, err := modelIO(cfg.ModelPath, cfg.IONames)
	if err != nil {
		_ = onnx.ReleaseEnvironment()
		return nil, err
	}

	session, err := createSession(cfg)
	if err != nil {
		_ = onnx.ReleaseEnvironment()
		return nil, err
	}

	e := &ONNXEngine{config: cfg, session: session, inputs: inputs, outputs: outputs}

	if cfg.WarmupIterations > 0 {
		if err := Warmup(context.Background(), e, cfg.InputWidth, cfg.InputHeight, cfg.WarmupIterations); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("warmup failed: %w", err)
		}
	}

	slog.Debug("Detector engine initialized")
	return e, nil
}

// Run feeds in to the graph and decodes the three NMS outputs.
func (e *ONNXEngine) Run(ctx context.Context, in Inputs) (*RawOutputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrEngineClosed
	}

	imageTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(in.Image.Shape...), in.Image.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	defer destroyValue(imageTensor, "image input")

	sizeTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(in.ImageSize.Shape...), in.ImageSize.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create image size tensor: %w", err)
	}
	defer destroyValue(sizeTensor, "image size input")

	// nil outputs are allocated by ONNX Runtime.
	outputs := []onnxruntime_go.Value{nil, nil, nil}
	if err := e.session.Run([]onnxruntime_go.Value{imageTensor, sizeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				destroyValue(o, "output")
			}
		}
	}()

	var missing []string
	for i, name := range e.config.IONames.Outputs() {
		if outputs[i] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingOutputError{Names: missing}
	}

	raw, err := decodeOutputs(outputs[0], outputs[1], outputs[2])
	if err != nil {
		return nil, err
	}
	if len(raw.Indices) > 1 {
		slog.Debug("index tensor has extra groups; only the first is used", "groups", len(raw.Indices))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return raw, nil
}

// Close releases the session. It is safe to call more than once.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	if err := e.session.Destroy(); err != nil {
		slog.Warn("failed to destroy detector session", "error", err)
	}
	e.session = nil
	return onnx.ReleaseEnvironment()
}

// ModelInfo returns metadata about the loaded model.
func (e *ONNXEngine) ModelInfo() ModelInfo {
	info := ModelInfo{
		ModelPath:   e.config.ModelPath,
		IONames:     e.config.IONames,
		InputShapes: make(map[string][]int64, len(e.inputs)),
		OutputTypes: make(map[string]string, len(e.outputs)),
		InputWidth:  e.config.InputWidth,
		InputHeight: e.config.InputHeight,
		NumThreads:  e.config.NumThreads,
		GPU:         e.config.GPU.UseGPU,
	}
	for name, in := range e.inputs {
		info.InputShapes[name] = append([]int64(nil), in.Dimensions...)
	}
	for name, out := range e.outputs {
		info.OutputTypes[name] = fmt.Sprint(out.DataType)
	}
	return info
}

func destroyValue(v onnxruntime_go.Value, what string) {
	if err := v.Destroy(); err != nil {
		slog.Warn("failed to destroy tensor", "tensor", what, "error", err)
	}
}

func decodeOutputs(indicesV, scoresV, boxesV onnxruntime_go.Value) (*RawOutputs, error) {
	var indices [][]IndexTuple
	var err error
	switch t := indicesV.(type) {
	case *onnxruntime_go.Tensor[int32]:
		indices, err = decodeIndices(t.GetShape(), widen(t.GetData()))
	case *onnxruntime_go.Tensor[int64]:
		indices, err = decodeIndices(t.GetShape(), t.GetData())
	default:
		return nil, fmt.Errorf("expected int32 or int64 index tensor, got %T", indicesV)
	}
	if err != nil {
		return nil, err
	}

	scoresT, ok := scoresV.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("expected float32 score tensor, got %T", scoresV)
	}
	scores, err := decodeScores(scoresT.GetShape(), scoresT.GetData())
	if err != nil {
		return nil, err
	}

	boxesT, ok := boxesV.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("expected float32 box tensor, got %T", boxesV)
	}
	boxes, err := decodeBoxes(boxesT.GetShape(), boxesT.GetData())
	if err != nil {
		return nil, err
	}

	return &RawOutputs{Indices: indices, Scores: scores, Boxes: boxes}, nil
}

func widen(in []int32) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

// decodeIndices accepts [G, N, 3] or [N, 3] index data.
func decodeIndices(shape []int64, data []int64) ([][]IndexTuple, error) {
	var groups, n int
	switch len(shape) {
	case 3:
		groups, n = int(shape[0]), int(shape[1])
		if shape[2] != 3 {
			return nil, fmt.Errorf("index tensor last dimension must be 3, got shape %v", shape)
		}
	case 2:
		groups, n = 1, int(shape[0])
		if shape[1] != 3 {
			return nil, fmt.Errorf("index tensor last dimension must be 3, got shape %v", shape)
		}
	default:
		return nil, fmt.Errorf("index tensor must be rank 2 or 3, got shape %v", shape)
	}
	if len(data) != groups*n*3 {
		return nil, &onnx.ShapeMismatchError{Op: "indices", Got: len(data), Expected: groups * n * 3, Shape: []int{groups, n, 3}}
	}

	out := make([][]IndexTuple, groups)
	for g := range groups {
		out[g] = make([]IndexTuple, n)
		for i := range n {
			off := (g*n + i) * 3
			out[g][i] = IndexTuple{Batch: int(data[off]), Class: int(data[off+1]), Slot: int(data[off+2])}
		}
	}
	return out, nil
}

func decodeScores(shape []int64, data []float32) (ScoreTensor, error) {
	if len(shape) != 3 {
		return ScoreTensor{}, fmt.Errorf("score tensor must be rank 3, got shape %v", shape)
	}
	return NewScoreTensor(data, int(shape[0]), int(shape[1]), int(shape[2]))
}

func decodeBoxes(shape []int64, data []float32) (BoxTensor, error) {
	if len(shape) != 3 || shape[2] != 4 {
		return BoxTensor{}, fmt.Errorf("box tensor must be [batches slots 4], got shape %v", shape)
	}
	return NewBoxTensor(data, int(shape[0]), int(shape[1]))
}
