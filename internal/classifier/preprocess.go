package classifier

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/tphakala/imageclassifier-go/internal/imageops"
)

// rgbChannels is the only input channel count supported.
const rgbChannels = 3

// Preprocessor turns a decoded photo into the model's input tensor.
type Preprocessor struct {
	spec   TensorSpec
	norm   Normalization
	method imageops.Method
	fill   color.Color
}

// NewPreprocessor returns a Preprocessor for an NHWC RGB input spec.
func NewPreprocessor(spec TensorSpec, norm Normalization, method imageops.Method) (*Preprocessor, error) {
	if len(spec.Shape) != 4 || spec.Shape[0] != 1 {
		return nil, fmt.Errorf("%w: input must be [1,H,W,C], got %s", ErrShapeMismatch, spec)
	}
	if spec.Channels() != rgbChannels {
		return nil, fmt.Errorf("%w: input must have %d channels, got %d", ErrShapeMismatch, rgbChannels, spec.Channels())
	}
	if spec.Height() <= 0 || spec.Width() <= 0 {
		return nil, fmt.Errorf("%w: input has empty spatial dimensions %s", ErrShapeMismatch, spec)
	}
	if spec.Type != TypeUInt8 && spec.Type != TypeFloat32 {
		return nil, fmt.Errorf("%w: unsupported input type %s", ErrShapeMismatch, spec.Type)
	}
	if norm.Std == 0 {
		norm.Std = 1
	}

	return &Preprocessor{
		spec:   spec,
		norm:   norm,
		method: method,
		fill:   color.Black,
	}, nil
}

// Spec returns the tensor spec Process produces.
func (p *Preprocessor) Spec() TensorSpec { return p.spec }

// Process center crops or pads img to a square of its shorter side, resizes
// it to the model input, rotates it counter-clockwise by the whole quarter
// turns in orientation and writes the normalized pixels in NHWC order.
func (p *Preprocessor) Process(img image.Image, orientation int) (*Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImageDecode)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	h, w := p.spec.Height(), p.spec.Width()
	turns := imageops.QuarterTurns(orientation)

	square := imageops.SquareCrop(img, p.fill)

	// An odd number of quarter turns swaps the axes, so resize to the
	// transposed size and let the rotation land on (w, h).
	rw, rh := w, h
	if turns%2 == 1 {
		rw, rh = h, w
	}
	resized := imageops.Resize(square, rw, rh, p.method)
	rotated := imageops.Rot90(resized, turns)

	return p.pack(rotated)
}

// pack writes the RGB channels of img into a new input tensor.
func (p *Preprocessor) pack(img *image.NRGBA) (*Tensor, error) {
	h, w := p.spec.Height(), p.spec.Width()
	if img.Rect.Dx() != w || img.Rect.Dy() != h {
		return nil, fmt.Errorf("%w: preprocessed image is %dx%d, want %dx%d",
			ErrShapeMismatch, img.Rect.Dx(), img.Rect.Dy(), w, h)
	}

	t := NewTensor(p.spec)
	i := 0
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			px := row[x*4 : x*4+rgbChannels]
			for _, v := range px {
				n := p.norm.Apply(float32(v))
				if p.spec.Type == TypeUInt8 {
					t.UInt8[i] = clampUInt8(n)
				} else {
					t.Float32[i] = n
				}
				i++
			}
		}
	}

	return t, nil
}

// clampUInt8 clamps v into [0, 255] and truncates the fraction.
func clampUInt8(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
