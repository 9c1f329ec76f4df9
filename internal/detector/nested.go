package detector

import (
	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// NestedOutputs is the nested-array form of RawOutputs, as produced by
// runtimes that expose tensors as JSON arrays.
type NestedOutputs struct {
	Indices [][][]int     `json:"indices" yaml:"indices"`
	Scores  [][][]float32 `json:"scores"  yaml:"scores"`
	Boxes   [][][]float32 `json:"boxes"   yaml:"boxes"`
}

// Raw converts n into dense tensors. Ragged arrays and index entries that are
// not triples are rejected with *onnx.ShapeMismatchError.
//
// When the first index group is absent or empty nothing can be selected, so
// scores and boxes are not inspected and the result has no detections.
func (n NestedOutputs) Raw() (*RawOutputs, error) {
	if len(n.Indices) == 0 || len(n.Indices[0]) == 0 {
		return &RawOutputs{}, nil
	}

	indices := make([][]IndexTuple, len(n.Indices))
	for g, group := range n.Indices {
		indices[g] = make([]IndexTuple, len(group))
		for i, tup := range group {
			if len(tup) != 3 {
				return nil, &onnx.ShapeMismatchError{Op: "indices", Got: len(tup), Expected: 3, Shape: []int{g, i, 3}}
			}
			indices[g][i] = IndexTuple{Batch: tup[0], Class: tup[1], Slot: tup[2]}
		}
	}

	scores, err := scoresFromNested(n.Scores)
	if err != nil {
		return nil, err
	}
	boxes, err := boxesFromNested(n.Boxes)
	if err != nil {
		return nil, err
	}
	return &RawOutputs{Indices: indices, Scores: scores, Boxes: boxes}, nil
}

func scoresFromNested(v [][][]float32) (ScoreTensor, error) {
	batches := len(v)
	var classes, slots int
	if batches > 0 {
		classes = len(v[0])
		if classes > 0 {
			slots = len(v[0][0])
		}
	}
	data := make([]float32, 0, batches*classes*slots)
	for _, b := range v {
		if len(b) != classes {
			return ScoreTensor{}, &onnx.ShapeMismatchError{Op: "scores", Got: len(b), Expected: classes, Shape: []int{batches, classes, slots}}
		}
		for _, c := range b {
			if len(c) != slots {
				return ScoreTensor{}, &onnx.ShapeMismatchError{Op: "scores", Got: len(c), Expected: slots, Shape: []int{batches, classes, slots}}
			}
			data = append(data, c...)
		}
	}
	return NewScoreTensor(data, batches, classes, slots)
}

func boxesFromNested(v [][][]float32) (BoxTensor, error) {
	batches := len(v)
	var slots int
	if batches > 0 {
		slots = len(v[0])
	}
	data := make([]float32, 0, batches*slots*4)
	for _, b := range v {
		if len(b) != slots {
			return BoxTensor{}, &onnx.ShapeMismatchError{Op: "boxes", Got: len(b), Expected: slots, Shape: []int{batches, slots, 4}}
		}
		for _, box := range b {
			if len(box) != 4 {
				return BoxTensor{}, &onnx.ShapeMismatchError{Op: "boxes", Got: len(box), Expected: 4, Shape: []int{batches, slots, 4}}
			}
			data = append(data, box...)
		}
	}
	return NewBoxTensor(data, batches, slots)
}
