package support

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/yolodet/internal/detector"
)

func (tc *TestContext) registerPostprocessSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the model outputs:$`, tc.theModelOutputs)
	sc.Step(`^model outputs without an index tensor$`, tc.outputsWithoutIndices)
	sc.Step(`^the outputs are postprocessed$`, tc.theOutputsArePostprocessed)
	sc.Step(`^there (?:is|are) (\d+) detections?$`, tc.thereAreDetections)
	sc.Step(`^detection (\d+) has class (\d+), score ([\d.]+) and box "([^"]*)"$`, tc.detectionHas)
	sc.Step(`^postprocessing fails at index tuple (\d+)$`, tc.postprocessingFailsAt)
}

func (tc *TestContext) theModelOutputs(doc *godog.DocString) error {
	var nested detector.NestedOutputs
	if err := json.Unmarshal([]byte(doc.Content), &nested); err != nil {
		return fmt.Errorf("invalid outputs document: %w", err)
	}
	raw, err := nested.Raw()
	if err != nil {
		return err
	}
	tc.Outputs = raw
	return nil
}

func (tc *TestContext) outputsWithoutIndices() error {
	scores, err := detector.NewScoreTensor([]float32{0.5}, 1, 1, 1)
	if err != nil {
		return err
	}
	boxes, err := detector.NewBoxTensor([]float32{1, 2, 3, 4}, 1, 1)
	if err != nil {
		return err
	}
	tc.Outputs = &detector.RawOutputs{Indices: nil, Scores: scores, Boxes: boxes}
	return nil
}

func (tc *TestContext) theOutputsArePostprocessed() error {
	tc.Detections, tc.LastError = tc.Outputs.Postprocess()
	return nil
}

func (tc *TestContext) thereAreDetections(n int) error {
	if tc.LastError != nil {
		return fmt.Errorf("postprocess failed: %w", tc.LastError)
	}
	if tc.Detections == nil {
		return errors.New("no detections were produced")
	}
	if tc.Detections.Len() != n {
		return fmt.Errorf("got %d detections, want %d", tc.Detections.Len(), n)
	}
	if len(tc.Detections.Scores) != n || len(tc.Detections.Boxes) != n {
		return errors.New("detection columns have different lengths")
	}
	return nil
}

func (tc *TestContext) detectionHas(pos, class int, score float64, box string) error {
	want, err := parseBox(box)
	if err != nil {
		return err
	}
	records := tc.Detections.Records()
	if pos < 1 || pos > len(records) {
		return fmt.Errorf("detection %d does not exist", pos)
	}
	d := records[pos-1]
	if d.ClassIndex != class {
		return fmt.Errorf("class is %d, want %d", d.ClassIndex, class)
	}
	if !near(float64(d.Score), score) {
		return fmt.Errorf("score is %f, want %f", d.Score, score)
	}
	for i := range want {
		if !near(float64(d.Box[i]), want[i]) {
			return fmt.Errorf("box is %v, want %v", d.Box, want)
		}
	}
	return nil
}

func (tc *TestContext) postprocessingFailsAt(pos int) error {
	var idxErr *detector.DetectionIndexError
	if !errors.As(tc.LastError, &idxErr) {
		return fmt.Errorf("expected a detection index error, got %v", tc.LastError)
	}
	if idxErr.Position != pos {
		return fmt.Errorf("error is at tuple %d, want %d", idxErr.Position, pos)
	}
	if tc.Detections != nil {
		return errors.New("a failed call must not return detections")
	}
	return nil
}
