package imageops

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripes returns a w x h image whose pixel at column x has red value x*10
// and green value y*10.
func stripes(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), A: 255})
		}
	}
	return img
}

func at(img *image.NRGBA, x, y int) color.NRGBA {
	return img.NRGBAAt(x, y)
}

func TestQuarterTurns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		degrees, want int
	}{
		{0, 0},
		{45, 0},
		{89, 0},
		{90, 1},
		{135, 1},
		{180, 2},
		{270, 3},
		{360, 0},
		{450, 1},
		{-90, 3},
		{-45, 3},
		{-180, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuarterTurns(tt.degrees), "degrees %d", tt.degrees)
	}
}

func TestCropOrPadCrop(t *testing.T) {
	t.Parallel()

	out := CropOrPad(stripes(4, 2), 2, 2, color.Black)
	require.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, uint8(10), at(out, 0, 0).R)
	assert.Equal(t, uint8(20), at(out, 1, 1).R)
	assert.Equal(t, uint8(10), at(out, 1, 1).G)
}

func TestCropOrPadPad(t *testing.T) {
	t.Parallel()

	out := CropOrPad(stripes(2, 2), 4, 3, color.Black)
	require.Equal(t, image.Rect(0, 0, 4, 3), out.Bounds())

	// source lands at offset (1, 0)
	assert.Equal(t, color.NRGBA{A: 255}, at(out, 0, 0))
	assert.Equal(t, color.NRGBA{R: 0, G: 0, A: 255}, at(out, 1, 0))
	assert.Equal(t, color.NRGBA{R: 10, G: 10, A: 255}, at(out, 2, 1))
	assert.Equal(t, color.NRGBA{A: 255}, at(out, 3, 2))
}

func TestCropOrPadNonZeroOrigin(t *testing.T) {
	t.Parallel()

	src := stripes(6, 6).SubImage(image.Rect(2, 2, 6, 4))
	out := CropOrPad(src, 2, 2, color.Black)
	require.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, uint8(30), at(out, 0, 0).R)
	assert.Equal(t, uint8(20), at(out, 0, 0).G)
}

func TestSquareCrop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, side int
	}{
		{640, 480, 480},
		{480, 640, 480},
		{7, 7, 7},
		{1, 9, 1},
	}
	for _, tt := range tests {
		out := SquareCrop(stripes(tt.w, tt.h), color.Black)
		assert.Equal(t, image.Rect(0, 0, tt.side, tt.side), out.Bounds(), "%dx%d", tt.w, tt.h)
	}
}

func TestResizeNearestMethodReplicatesPixels(t *testing.T) {
	t.Parallel()

	out := Resize(stripes(2, 2), 4, 4, MethodNearest)
	require.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	for y := range 4 {
		for x := range 4 {
			want := color.NRGBA{R: uint8(x / 2 * 10), G: uint8(y / 2 * 10), A: 255}
			assert.Equal(t, want, at(out, x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestResizeNearestMethodDownscaleKeepsSourceValues(t *testing.T) {
	t.Parallel()

	out := Resize(stripes(8, 8), 3, 5, MethodNearest)
	require.Equal(t, image.Rect(0, 0, 3, 5), out.Bounds())
	for y := range 5 {
		for x := range 3 {
			c := at(out, x, y)
			assert.Zero(t, c.R%10, "nearest sampling must not blend")
			assert.Zero(t, c.G%10, "nearest sampling must not blend")
		}
	}
}

func TestRot90CounterClockwise(t *testing.T) {
	t.Parallel()

	src := stripes(2, 1) // R: [0, 10]

	one := Rot90(src, 1)
	require.Equal(t, image.Rect(0, 0, 1, 2), one.Bounds())
	assert.Equal(t, uint8(10), at(one, 0, 0).R)
	assert.Equal(t, uint8(0), at(one, 0, 1).R)

	three := Rot90(src, -1)
	require.Equal(t, image.Rect(0, 0, 1, 2), three.Bounds())
	assert.Equal(t, uint8(0), at(three, 0, 0).R)
	assert.Equal(t, uint8(10), at(three, 0, 1).R)

	two := Rot90(src, 6)
	assert.Equal(t, uint8(10), at(two, 0, 0).R)

	same := Rot90(src, 4)
	assert.Equal(t, src.Pix, same.Pix)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodNearest, m)

	m, err = ParseMethod("Bilinear")
	require.NoError(t, err)
	assert.Equal(t, MethodBilinear, m)
	assert.Equal(t, "bilinear", m.String())

	_, err = ParseMethod("lanczos")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stripes(3, 2)))

	img, err := Decode(&buf, DecodeOptions{AutoOrient: true})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = Decode(bytes.NewReader([]byte("not an image")), DecodeOptions{})
	require.ErrorIs(t, err, ErrImageDecode)
}

func TestDecodeFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, stripes(4, 4)))
	require.NoError(t, f.Close())

	img, err := DecodeFile(path, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.jpg"), DecodeOptions{})
	require.ErrorIs(t, err, ErrImageDecode)
}
