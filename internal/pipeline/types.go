package pipeline

import (
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// BoxXYXY is an axis-aligned box in pixel coordinates.
type BoxXYXY struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

func boxFromUtils(b utils.Box) BoxXYXY {
	return BoxXYXY{X1: b.MinX, Y1: b.MinY, X2: b.MaxX, Y2: b.MaxY}
}

func (b BoxXYXY) toUtils() utils.Box {
	return utils.NewBox(b.X1, b.Y1, b.X2, b.Y2)
}

// DetectionResult is one labelled detection.
type DetectionResult struct {
	ClassIndex int        `json:"class_index" yaml:"class_index"`
	Label      string     `json:"label"       yaml:"label"`
	Score      float32    `json:"score"       yaml:"score"`
	Box        [4]float32 `json:"box"         yaml:"box"` // raw model output
	SourceBox  *BoxXYXY   `json:"source_box,omitempty" yaml:"source_box,omitempty"`
}

// ImageResult is the per-image detection output.
type ImageResult struct {
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"`
	Width      int               `json:"width"          yaml:"width"`
	Height     int               `json:"height"         yaml:"height"`
	Detections []DetectionResult `json:"detections"     yaml:"detections"`
	Processing struct {
		PreprocessNs  int64 `json:"preprocess_ns"  yaml:"preprocess_ns"`
		InferenceNs   int64 `json:"inference_ns"   yaml:"inference_ns"`
		PostprocessNs int64 `json:"postprocess_ns" yaml:"postprocess_ns"`
		TotalNs       int64 `json:"total_ns"       yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}
