package detector

import "fmt"

// Postprocess turns NMS index tuples into a flat detection list.
//
// Only the first index group is consumed. Tuples are visited in order and
// nothing is sorted, thresholded or suppressed. Nil or empty indices yield an
// empty, non-nil result. An out-of-range tuple fails the whole call with a
// *DetectionIndexError.
func Postprocess(indices [][]IndexTuple, scores ScoreTensor, boxes BoxTensor) (*Detections, error) {
	if len(indices) == 0 || len(indices[0]) == 0 {
		return &Detections{Classes: []int{}, Scores: []float32{}, Boxes: [][4]float32{}}, nil
	}

	group := indices[0]
	out := &Detections{
		Classes: make([]int, 0, len(group)),
		Scores:  make([]float32, 0, len(group)),
		Boxes:   make([][4]float32, 0, len(group)),
	}
	for i, tup := range group {
		score, ok := scores.At(tup.Batch, tup.Class, tup.Slot)
		if !ok {
			return nil, &DetectionIndexError{
				Position: i,
				Tuple:    tup,
				Reason:   fmt.Sprintf("outside score tensor of shape %v", scores.Shape()),
			}
		}
		box, ok := boxes.At(tup.Batch, tup.Slot)
		if !ok {
			return nil, &DetectionIndexError{
				Position: i,
				Tuple:    tup,
				Reason:   fmt.Sprintf("outside box tensor of shape %v", boxes.Shape()),
			}
		}
		out.Classes = append(out.Classes, tup.Class)
		out.Scores = append(out.Scores, score)
		out.Boxes = append(out.Boxes, box)
	}
	return out, nil
}

// Postprocess applies the package-level Postprocess to r.
func (r *RawOutputs) Postprocess() (*Detections, error) {
	if r == nil {
		return Postprocess(nil, ScoreTensor{}, BoxTensor{})
	}
	return Postprocess(r.Indices, r.Scores, r.Boxes)
}
