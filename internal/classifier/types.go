package classifier

import (
	"fmt"
	"slices"
	"strings"
)

// DataType is the element type of a model tensor.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeUInt8
	TypeFloat32
)

func (d DataType) String() string {
	switch d {
	case TypeUInt8:
		return "uint8"
	case TypeFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// TensorSpec describes a tensor shape and element type. Image inputs are
// NHWC [1, H, W, C]; classification outputs are [1, N].
type TensorSpec struct {
	Shape []int
	Type  DataType
}

// Elements returns the number of values the tensor holds.
func (s TensorSpec) Elements() int {
	if len(s.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

func (s TensorSpec) dim(i int) int {
	if i < 0 || i >= len(s.Shape) {
		return 0
	}
	return s.Shape[i]
}

// Height of an NHWC image tensor.
func (s TensorSpec) Height() int { return s.dim(1) }

// Width of an NHWC image tensor.
func (s TensorSpec) Width() int { return s.dim(2) }

// Channels of an NHWC image tensor.
func (s TensorSpec) Channels() int { return s.dim(3) }

// Classes is the size of the last dimension, the class count of an output tensor.
func (s TensorSpec) Classes() int { return s.dim(len(s.Shape) - 1) }

// Equal reports whether both specs have the same type and shape.
func (s TensorSpec) Equal(o TensorSpec) bool {
	return s.Type == o.Type && slices.Equal(s.Shape, o.Shape)
}

func (s TensorSpec) String() string {
	dims := make([]string, len(s.Shape))
	for i, d := range s.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s[%s]", s.Type, strings.Join(dims, ","))
}

// Tensor is a flat buffer of either uint8 or float32 values laid out
// according to Spec.
type Tensor struct {
	Spec    TensorSpec
	UInt8   []uint8
	Float32 []float32
}

// NewTensor allocates a zeroed tensor for spec.
func NewTensor(spec TensorSpec) *Tensor {
	t := &Tensor{Spec: spec}
	switch spec.Type {
	case TypeUInt8:
		t.UInt8 = make([]uint8, spec.Elements())
	case TypeFloat32:
		t.Float32 = make([]float32, spec.Elements())
	}
	return t
}

// Len returns the number of stored values.
func (t *Tensor) Len() int {
	if t.Spec.Type == TypeUInt8 {
		return len(t.UInt8)
	}
	return len(t.Float32)
}

// At returns value i as float32 regardless of the element type.
func (t *Tensor) At(i int) float32 {
	if t.Spec.Type == TypeUInt8 {
		return float32(t.UInt8[i])
	}
	return t.Float32[i]
}

// validate checks that the buffer matches the spec.
func (t *Tensor) validate(spec TensorSpec) error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrShapeMismatch)
	}
	if !t.Spec.Equal(spec) {
		return fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch, t.Spec, spec)
	}
	if t.Len() != spec.Elements() {
		return fmt.Errorf("%w: buffer holds %d values, want %d", ErrShapeMismatch, t.Len(), spec.Elements())
	}
	return nil
}

// Normalization is an affine transform (v - Mean) / Std.
type Normalization struct {
	Mean float32 `json:"mean"`
	Std  float32 `json:"std"`
}

// Identity leaves values untouched.
var Identity = Normalization{Mean: 0, Std: 1}

// Apply normalizes v. A zero Std is treated as 1.
func (n Normalization) Apply(v float32) float32 {
	if n.Std == 0 {
		return v - n.Mean
	}
	return (v - n.Mean) / n.Std
}

// DefaultOutputNormalization returns the dequantization constants for a model
// output of type t: 8-bit outputs map [0, 255] onto [0, 1], float outputs
// are already probabilities.
func DefaultOutputNormalization(t DataType) Normalization {
	if t == TypeUInt8 {
		return Normalization{Mean: 0, Std: 255}
	}
	return Identity
}

// Recognition is a single ranked result. It is a value type; copies handed
// to callers cannot affect the classifier.
type Recognition struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// NewRecognition returns a Recognition for label with the given confidence.
func NewRecognition(label string, confidence float32) Recognition {
	return Recognition{Label: label, Confidence: confidence}
}

// String formats the result for display, e.g. "cat (100.0%)".
func (r Recognition) String() string {
	return fmt.Sprintf("%s (%.1f%%)", r.Label, r.Confidence*100)
}
