package models

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// COCOClasses are the 80 COCO labels in YOLOv3 output order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"sofa", "pottedplant", "bed", "diningtable", "toilet", "tvmonitor", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// ClassSet maps model class indices to names.
type ClassSet struct {
	names     []string
	nameToIdx map[string]int
}

// NewClassSet builds a ClassSet from names in index order.
func NewClassSet(names []string) *ClassSet {
	s := &ClassSet{names: append([]string(nil), names...), nameToIdx: make(map[string]int, len(names))}
	for i, n := range s.names {
		s.nameToIdx[n] = i
	}
	return s
}

// DefaultClasses returns the COCO-80 class set.
func DefaultClasses() *ClassSet { return NewClassSet(COCOClasses) }

// LoadClassFile reads one label per line. Blank lines and lines starting with
// '#' are skipped.
func LoadClassFile(path string) (*ClassSet, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-provided labels file
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("class file %s has no labels", path)
	}
	return NewClassSet(names), nil
}

// Len returns the number of classes.
func (s *ClassSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Name returns the label for idx, or "class_<idx>" when idx is unknown.
func (s *ClassSet) Name(idx int) string {
	if s != nil && idx >= 0 && idx < len(s.names) {
		return s.names[idx]
	}
	return "class_" + strconv.Itoa(idx)
}

// Index returns the class index for name.
func (s *ClassSet) Index(name string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.nameToIdx[name]
	return i, ok
}

// Names returns a copy of the labels in index order.
func (s *ClassSet) Names() []string {
	return append([]string(nil), s.names...)
}
