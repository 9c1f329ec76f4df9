package support

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
)

func (tc *TestContext) registerPipelineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a detector that finds class (\d+) with score ([\d.]+) at "([^"]*)"$`, tc.aDetectorThatFinds)
	sc.Step(`^the pipeline uses "([^"]*)" box order$`, tc.thePipelineUsesBoxOrder)
	sc.Step(`^objects are detected in the image$`, tc.objectsAreDetected)
	sc.Step(`^the result is labelled "([^"]*)" with source box "([^"]*)"$`, tc.theResultIsLabelled)
}

func (tc *TestContext) aDetectorThatFinds(class int, score float64, box string) error {
	b, err := parseBox(box)
	if err != nil {
		return err
	}
	tc.Engine = &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80, testutil.FakeDetection{
		Class: class,
		Score: float32(score),
		Box:   [4]float32{float32(b[0]), float32(b[1]), float32(b[2]), float32(b[3])},
	})}
	return nil
}

func (tc *TestContext) thePipelineUsesBoxOrder(order string) error {
	tc.BoxOrder = order
	return nil
}

func (tc *TestContext) objectsAreDetected() error {
	if tc.Engine == nil {
		return fmt.Errorf("no detector configured")
	}
	cfg := pipeline.DefaultConfig()
	if tc.BoxOrder != "" {
		cfg.Postprocess.BoxOrder = tc.BoxOrder
	}
	p, err := pipeline.NewBuilder().WithConfig(cfg).WithEngine(tc.Engine).Build()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	tc.Result, tc.LastError = p.DetectImage(context.Background(), tc.Source)
	return nil
}

func (tc *TestContext) theResultIsLabelled(label, box string) error {
	if tc.LastError != nil {
		return fmt.Errorf("detection failed: %w", tc.LastError)
	}
	want, err := parseBox(box)
	if err != nil {
		return err
	}
	if len(tc.Result.Detections) != 1 {
		return fmt.Errorf("got %d detections, want 1", len(tc.Result.Detections))
	}
	d := tc.Result.Detections[0]
	if d.Label != label {
		return fmt.Errorf("label is %q, want %q", d.Label, label)
	}
	if d.SourceBox == nil {
		return fmt.Errorf("no source box")
	}
	got := [4]float64{d.SourceBox.X1, d.SourceBox.Y1, d.SourceBox.X2, d.SourceBox.Y2}
	for i := range want {
		if !near(got[i], want[i]) {
			return fmt.Errorf("source box is %v, want %v", got, want)
		}
	}
	return nil
}
