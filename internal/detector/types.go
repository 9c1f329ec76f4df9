package detector

import (
	"fmt"

	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// IndexTuple addresses one kept detection in the NMS outputs: the batch, the
// class and the box slot.
type IndexTuple struct {
	Batch int `json:"batch"`
	Class int `json:"class"`
	Slot  int `json:"slot"`
}

// ScoreTensor is a dense [batches, classes, slots] float32 tensor.
type ScoreTensor struct {
	Data    []float32
	Batches int
	Classes int
	Slots   int
}

// NewScoreTensor wraps data with the given [batches, classes, slots] shape.
func NewScoreTensor(data []float32, batches, classes, slots int) (ScoreTensor, error) {
	if batches < 0 || classes < 0 || slots < 0 || len(data) != batches*classes*slots {
		return ScoreTensor{}, &onnx.ShapeMismatchError{
			Op: "scores", Got: len(data), Expected: batches * classes * slots,
			Shape: []int{batches, classes, slots},
		}
	}
	return ScoreTensor{Data: data, Batches: batches, Classes: classes, Slots: slots}, nil
}

// At returns scores[b][c][s]. ok is false when any index is out of range.
func (t ScoreTensor) At(b, c, s int) (float32, bool) {
	if b < 0 || b >= t.Batches || c < 0 || c >= t.Classes || s < 0 || s >= t.Slots {
		return 0, false
	}
	off := (b*t.Classes+c)*t.Slots + s
	if off >= len(t.Data) {
		return 0, false
	}
	return t.Data[off], true
}

// Shape returns [batches, classes, slots].
func (t ScoreTensor) Shape() []int { return []int{t.Batches, t.Classes, t.Slots} }

// BoxTensor is a dense [batches, slots, 4] float32 tensor.
type BoxTensor struct {
	Data    []float32
	Batches int
	Slots   int
}

// NewBoxTensor wraps data with the given [batches, slots, 4] shape.
func NewBoxTensor(data []float32, batches, slots int) (BoxTensor, error) {
	if batches < 0 || slots < 0 || len(data) != batches*slots*4 {
		return BoxTensor{}, &onnx.ShapeMismatchError{
			Op: "boxes", Got: len(data), Expected: batches * slots * 4,
			Shape: []int{batches, slots, 4},
		}
	}
	return BoxTensor{Data: data, Batches: batches, Slots: slots}, nil
}

// At returns boxes[b][s]. ok is false when any index is out of range.
func (t BoxTensor) At(b, s int) ([4]float32, bool) {
	if b < 0 || b >= t.Batches || s < 0 || s >= t.Slots {
		return [4]float32{}, false
	}
	off := (b*t.Slots + s) * 4
	if off+4 > len(t.Data) {
		return [4]float32{}, false
	}
	return [4]float32(t.Data[off : off+4]), true
}

// Shape returns [batches, slots, 4].
func (t BoxTensor) Shape() []int { return []int{t.Batches, t.Slots, 4} }

// RawOutputs are the three NMS outputs of the detector graph.
type RawOutputs struct {
	Indices [][]IndexTuple // outer slice is the index tensor's leading group
	Scores  ScoreTensor
	Boxes   BoxTensor
}

// Detection is one kept detection. Box is in model output space.
type Detection struct {
	ClassIndex int        `json:"class_index"`
	Score      float32    `json:"score"`
	Box        [4]float32 `json:"box"`
}

// Detections holds the three parallel result sequences.
type Detections struct {
	Classes []int
	Scores  []float32
	Boxes   [][4]float32
}

// Len returns the number of detections.
func (d *Detections) Len() int { return len(d.Classes) }

// Records zips the parallel sequences into Detection values.
func (d *Detections) Records() []Detection {
	out := make([]Detection, len(d.Classes))
	for i := range d.Classes {
		out[i] = Detection{ClassIndex: d.Classes[i], Score: d.Scores[i], Box: d.Boxes[i]}
	}
	return out
}

// IONames are the graph input and output names the engine binds to.
type IONames struct {
	Image     string `mapstructure:"image"      yaml:"image"      json:"image"`
	ImageSize string `mapstructure:"image_size" yaml:"image_size" json:"image_size"`
	Indices   string `mapstructure:"indices"    yaml:"indices"    json:"indices"`
	Scores    string `mapstructure:"scores"     yaml:"scores"     json:"scores"`
	Boxes     string `mapstructure:"boxes"      yaml:"boxes"      json:"boxes"`
}

// DefaultIONames returns the names used by the keras2onnx YOLOv3 export.
func DefaultIONames() IONames {
	return IONames{
		Image:     "input_1",
		ImageSize: "image_shape",
		Indices:   "yolonms_layer_1",
		Scores:    "yolonms_layer_1:1",
		Boxes:     "yolonms_layer_1:2",
	}
}

// Inputs returns the input names in session order.
func (n IONames) Inputs() []string { return []string{n.Image, n.ImageSize} }

// Outputs returns the output names in session order.
func (n IONames) Outputs() []string { return []string{n.Indices, n.Scores, n.Boxes} }

// Validate reports an empty or duplicated name.
func (n IONames) Validate() error {
	seen := make(map[string]struct{}, 5)
	for _, name := range append(n.Inputs(), n.Outputs()...) {
		if name == "" {
			return fmt.Errorf("io names must not be empty: %+v", n)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate io name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
