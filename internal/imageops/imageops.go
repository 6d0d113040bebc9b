// Package imageops implements the geometric image operations used to prepare
// photos for classification: center crop-or-pad, resize and quarter-turn rotation.
package imageops

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// Method selects the resampling filter used by Resize
type Method int

const (
	MethodNearest Method = iota
	MethodBilinear
)

// ParseMethod maps a config string to a Method. Empty selects nearest neighbor.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "nearest":
		return MethodNearest, nil
	case "bilinear":
		return MethodBilinear, nil
	default:
		return MethodNearest, fmt.Errorf("unknown resize method %q", s)
	}
}

func (m Method) String() string {
	if m == MethodBilinear {
		return "bilinear"
	}
	return "nearest"
}

func (m Method) filter() imaging.ResampleFilter {
	if m == MethodBilinear {
		return imaging.Linear
	}
	return imaging.NearestNeighbor
}

// CropOrPad returns a w x h image centered on img. Axes larger than the target
// are cropped, smaller ones are padded with fill. Offsets round toward the
// top-left, so a 4 pixel axis cropped to 3 drops its last pixel.
func CropOrPad(img image.Image, w, h int, fill color.Color) *image.NRGBA {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	cropW, cropH := min(srcW, w), min(srcH, h)
	x0 := b.Min.X + (srcW-cropW)/2
	y0 := b.Min.Y + (srcH-cropH)/2
	cropped := imaging.Crop(img, image.Rect(x0, y0, x0+cropW, y0+cropH))

	if cropW == w && cropH == h {
		return cropped
	}

	canvas := imaging.New(w, h, fill)
	return imaging.Paste(canvas, cropped, image.Pt((w-cropW)/2, (h-cropH)/2))
}

// SquareCrop crops or pads img to a square whose side is its shorter edge.
func SquareCrop(img image.Image, fill color.Color) *image.NRGBA {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	return CropOrPad(img, side, side, fill)
}

// Resize scales img to exactly w x h with the given method.
func Resize(img image.Image, w, h int, method Method) *image.NRGBA {
	return imaging.Resize(img, w, h, method.filter())
}

// QuarterTurns converts an orientation in degrees into a number of
// counter-clockwise quarter turns in [0, 3]. Partial turns are floored,
// so 135 is one turn, 45 is none and -90 is three.
func QuarterTurns(degrees int) int {
	turns := degrees / 90
	if degrees%90 != 0 && degrees < 0 {
		turns--
	}
	return ((turns % 4) + 4) % 4
}

// Rot90 rotates img counter-clockwise by k quarter turns. k may be negative.
func Rot90(img image.Image, k int) *image.NRGBA {
	switch ((k % 4) + 4) % 4 {
	case 1:
		return imaging.Rotate90(img)
	case 2:
		return imaging.Rotate180(img)
	case 3:
		return imaging.Rotate270(img)
	default:
		return imaging.Clone(img)
	}
}
