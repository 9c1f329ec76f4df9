package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// FakeEngine is a detector.Engine that returns canned outputs.
type FakeEngine struct {
	Outputs *detector.RawOutputs
	Err     error
	Delay   time.Duration
	Info    *detector.ModelInfo

	mu     sync.Mutex
	calls  int
	last   detector.Inputs
	closed bool
}

// Run records the call and returns the configured outputs. Delay honours ctx.
func (f *FakeEngine) Run(ctx context.Context, in detector.Inputs) (*detector.RawOutputs, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls++
	f.last = in
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.Outputs == nil {
		return &detector.RawOutputs{}, nil
	}
	return f.Outputs, nil
}

// Close marks the engine closed.
func (f *FakeEngine) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// ModelInfo returns Info, or a stub describing the default IO names.
func (f *FakeEngine) ModelInfo() detector.ModelInfo {
	if f.Info != nil {
		return *f.Info
	}
	return detector.ModelInfo{
		ModelPath:   "fake.onnx",
		IONames:     detector.DefaultIONames(),
		InputWidth:  416,
		InputHeight: 416,
	}
}

// Calls returns how many times Run was invoked.
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastInputs returns the inputs of the most recent Run.
func (f *FakeEngine) LastInputs() detector.Inputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Closed reports whether Close was called.
func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeDetection places one detection into MakeOutputs.
type FakeDetection struct {
	Class int
	Score float32
	Box   [4]float32
}

// MakeOutputs builds single-batch NMS outputs with classes score rows. Each
// detection gets its own box slot, in order.
func MakeOutputs(classes int, dets ...FakeDetection) *detector.RawOutputs {
	slots := max(len(dets), 1)
	scores, _ := detector.NewScoreTensor(make([]float32, classes*slots), 1, classes, slots)
	boxes, _ := detector.NewBoxTensor(make([]float32, slots*4), 1, slots)

	group := make([]detector.IndexTuple, len(dets))
	for i, d := range dets {
		scores.Data[d.Class*slots+i] = d.Score
		copy(boxes.Data[i*4:i*4+4], d.Box[:])
		group[i] = detector.IndexTuple{Batch: 0, Class: d.Class, Slot: i}
	}
	return &detector.RawOutputs{Indices: [][]detector.IndexTuple{group}, Scores: scores, Boxes: boxes}
}

// BlankInputs returns valid engine inputs for a w x h canvas.
func BlankInputs(w, h int) detector.Inputs {
	img, _ := onnx.NewImageTensor(make([]float32, 3*w*h), 3, h, w)
	return detector.Inputs{Image: img, ImageSize: onnx.NewImageSizeTensor(h, w)}
}
