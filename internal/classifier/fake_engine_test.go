package classifier

import (
	"image"
	"image/color"
	"slices"
	"sync"
	"sync/atomic"
)

// fakeEngine returns a fixed output for every input.
type fakeEngine struct {
	input  TensorSpec
	output TensorSpec
	out    *Tensor
	err    error

	mu     sync.Mutex
	last   *Tensor
	runs   atomic.Int32
	closed atomic.Bool
}

func newFakeEngine(h, w int, inType DataType, scores []uint8) *fakeEngine {
	outSpec := TensorSpec{Shape: []int{1, len(scores)}, Type: TypeUInt8}
	return &fakeEngine{
		input:  TensorSpec{Shape: []int{1, h, w, 3}, Type: inType},
		output: outSpec,
		out:    &Tensor{Spec: outSpec, UInt8: slices.Clone(scores)},
	}
}

func newFakeFloatEngine(h, w int, scores []float32) *fakeEngine {
	outSpec := TensorSpec{Shape: []int{1, len(scores)}, Type: TypeFloat32}
	return &fakeEngine{
		input:  TensorSpec{Shape: []int{1, h, w, 3}, Type: TypeFloat32},
		output: outSpec,
		out:    &Tensor{Spec: outSpec, Float32: slices.Clone(scores)},
	}
}

func (f *fakeEngine) InputSpec() TensorSpec  { return f.input }
func (f *fakeEngine) OutputSpec() TensorSpec { return f.output }

func (f *fakeEngine) Run(input *Tensor) (*Tensor, error) {
	if err := input.validate(f.input); err != nil {
		return nil, err
	}
	f.runs.Add(1)
	f.mu.Lock()
	f.last = input
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Tensor{
		Spec:    f.out.Spec,
		UInt8:   slices.Clone(f.out.UInt8),
		Float32: slices.Clone(f.out.Float32),
	}, nil
}

func (f *fakeEngine) Close() { f.closed.Store(true) }

func (f *fakeEngine) lastInput() *Tensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// solid returns a w x h image filled with c.
func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
