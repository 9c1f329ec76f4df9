package detector

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// modelIO reads the graph's input and output metadata and checks that every
// configured name is present.
func modelIO(modelPath string, names IONames) (map[string]onnxruntime_go.InputOutputInfo,
	map[string]onnxruntime_go.InputOutputInfo, error,
) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}

	in := make(map[string]onnxruntime_go.InputOutputInfo, len(inputs))
	for _, i := range inputs {
		in[i.Name] = i
	}
	out := make(map[string]onnxruntime_go.InputOutputInfo, len(outputs))
	for _, o := range outputs {
		out[o.Name] = o
	}

	for _, n := range names.Inputs() {
		if _, ok := in[n]; !ok {
			return nil, nil, fmt.Errorf("model has no input named %q (have %v)", n, sortedKeys(in))
		}
	}
	var missing []string
	for _, n := range names.Outputs() {
		if _, ok := out[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &MissingOutputError{Names: missing}
	}
	return in, out, nil
}

func sortedKeys(m map[string]onnxruntime_go.InputOutputInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func createSession(cfg Config) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(sessionOptions, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}

	if cfg.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		cfg.IONames.Inputs(), cfg.IONames.Outputs(), sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}
