// Package support holds the step definitions for the detection feature suite.
package support

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Source       image.Image
	Letterboxed  *utils.Letterboxed
	Preprocessed *pipeline.Preprocessed

	Interleaved     []float32
	InterleavedDims [3]int // height, width, channels

	Outputs    *detector.RawOutputs
	Detections *detector.Detections

	Engine   *testutil.FakeEngine
	BoxOrder string
	Result   *pipeline.ImageResult

	LastError error
}

// NewTestContext returns an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Register wires every step definition into sc.
func (tc *TestContext) Register(sc *godog.ScenarioContext) {
	tc.registerPreprocessSteps(sc)
	tc.registerPostprocessSteps(sc)
	tc.registerPipelineSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		*tc = TestContext{}
		return ctx, nil
	})
}

func (tc *TestContext) aSolidImage(w, h int) error {
	tc.Source = testutil.SolidImage(w, h, color.White)
	return nil
}

func (tc *TestContext) aGradientImage(w, h int) error {
	tc.Source = testutil.GradientImage(w, h)
	return nil
}

func (tc *TestContext) theCallFails() error {
	if tc.LastError == nil {
		return fmt.Errorf("expected an error, got none")
	}
	return nil
}

// parseBox reads "a, b, c, d" into four floats.
func parseBox(s string) ([4]float64, error) {
	var out [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("box %q must have 4 values", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, fmt.Errorf("box %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}
