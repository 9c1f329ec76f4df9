package onnx

import (
	"errors"
	"fmt"
)

// Tensor represents a simple float32 tensor prepared for ONNX input.
// Data layout is row-major, with NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// NumElements returns the product of the shape dimensions.
func (t Tensor) NumElements() int {
	return NumElements(t.Shape)
}

// NumElements returns the product of shape, or 0 for an empty shape.
func NumElements(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return int(n)
}

// ShapeMismatchError reports a buffer whose length does not match the
// dimensions it is declared to have.
type ShapeMismatchError struct {
	Op       string
	Got      int
	Expected int
	Shape    []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: buffer length %d does not match shape %v (want %d)", e.Op, e.Got, e.Shape, e.Expected)
}

// Normalize maps 8-bit channel values onto [0, 1] by dividing by 255.
func Normalize(px []uint8) []float32 {
	out := make([]float32, len(px))
	NormalizeInto(out, px)
	return out
}

// NormalizeInto writes Normalize(px) into dst, which must be at least len(px).
func NormalizeInto(dst []float32, px []uint8) {
	_ = dst[:len(px)]
	for i, v := range px {
		dst[i] = float32(v) / 255.0
	}
}

// Denormalize is the inverse of Normalize, rounding to the nearest byte and
// clamping values outside [0, 1].
func Denormalize(v []float32) []uint8 {
	out := make([]uint8, len(v))
	for i, f := range v {
		x := f*255.0 + 0.5
		switch {
		case x <= 0:
			out[i] = 0
		case x >= 255:
			out[i] = 255
		default:
			out[i] = uint8(x)
		}
	}
	return out
}

// Planarize converts an interleaved HWC buffer into planar CHW order:
// out[c*H*W + y*W + x] = buf[y*W*C + x*C + c]. Every dimension must be
// positive.
func Planarize(buf []float32, h, w, c int) ([]float32, error) {
	if err := checkHWC("planarize", buf, h, w, c); err != nil {
		return nil, err
	}
	out := make([]float32, len(buf))
	planarizeInto(out, buf, h, w, c)
	return out, nil
}

// PlanarizeInto is Planarize writing into a caller-owned dst of equal length.
func PlanarizeInto(dst, buf []float32, h, w, c int) error {
	if err := checkHWC("planarize", buf, h, w, c); err != nil {
		return err
	}
	if len(dst) != len(buf) {
		return &ShapeMismatchError{Op: "planarize", Got: len(dst), Expected: len(buf), Shape: []int{c, h, w}}
	}
	planarizeInto(dst, buf, h, w, c)
	return nil
}

func planarizeInto(dst, buf []float32, h, w, c int) {
	plane := h * w
	for y := range h {
		for x := range w {
			src := (y*w + x) * c
			pix := y*w + x
			for ch := range c {
				dst[ch*plane+pix] = buf[src+ch]
			}
		}
	}
}

// Interleave converts planar CHW back into interleaved HWC. It is the exact
// inverse of Planarize.
func Interleave(buf []float32, h, w, c int) ([]float32, error) {
	if err := checkHWC("interleave", buf, h, w, c); err != nil {
		return nil, err
	}
	plane := h * w
	out := make([]float32, len(buf))
	for ch := range c {
		for pix := range plane {
			out[pix*c+ch] = buf[ch*plane+pix]
		}
	}
	return out, nil
}

func checkHWC(op string, buf []float32, h, w, c int) error {
	if h <= 0 || w <= 0 || c <= 0 {
		return &ShapeMismatchError{Op: op, Got: len(buf), Expected: -1, Shape: []int{h, w, c}}
	}
	if want := h * w * c; len(buf) != want {
		return &ShapeMismatchError{Op: op, Got: len(buf), Expected: want, Shape: []int{h, w, c}}
	}
	return nil
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, &ShapeMismatchError{Op: "image tensor", Got: len(data), Expected: expected, Shape: []int{c, h, w}}
	}
	shape := []int64{1, int64(c), int64(h), int64(w)}
	return Tensor{Data: data, Shape: shape}, nil
}

// NewImageSizeTensor builds the [1, 2] (height, width) tensor YOLO NMS graphs
// take alongside the image.
func NewImageSizeTensor(h, w int) Tensor {
	return Tensor{Data: []float32{float32(h), float32(w)}, Shape: []int64{1, 2}}
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks data length matches the provided NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	if expected := t.NumElements(); len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// TensorStats computes simple statistics for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
