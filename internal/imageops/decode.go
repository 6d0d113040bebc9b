package imageops

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/tphakala/imageclassifier-go/internal/errors"
)

// ErrImageDecode is returned when a photo cannot be decoded into an RGB raster.
var ErrImageDecode = errors.NewStd("image decode failed")

// DecodeOptions controls Decode
type DecodeOptions struct {
	// AutoOrient applies the EXIF orientation tag so the raster is upright.
	AutoOrient bool
}

// Decode reads a JPEG, PNG, GIF, BMP, TIFF or WebP image from r.
func Decode(r io.Reader, opts DecodeOptions) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(opts.AutoOrient))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrImageDecode, err)).
			Component("imageops").
			Category(errors.CategoryImageDecode).
			Build()
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errors.New(fmt.Errorf("%w: empty image", ErrImageDecode)).
			Component("imageops").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return img, nil
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string, opts DecodeOptions) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(opts.AutoOrient))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrImageDecode, err)).
			Component("imageops").
			Category(errors.CategoryImageDecode).
			FileContext(path, 0).
			Build()
	}
	return img, nil
}
