package labelinfo

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

	"github.com/tphakala/imageclassifier-go/internal/errors"
)

func writeAssets(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, textDir), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, imageDir), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, textDir, "cat.txt"), []byte("  A small feline.\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, textDir, "dog.txt"), []byte("Loyal."), 0o600))

	writePNG(t, filepath.Join(root, imageDir, "cat.png"), 200, 100)
	writePNG(t, filepath.Join(root, imageDir, "bird.png"), 16, 16)

	return root
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLookup(t *testing.T) {
	t.Parallel()

	s := NewStore(Config{Root: writeAssets(t)})

	tests := []struct {
		label    string
		want     Entry
		notFound bool
	}{
		{label: "cat", want: Entry{Label: "cat", Description: "A small feline.", HasImage: true}},
		{label: "dog", want: Entry{Label: "dog", Description: "Loyal.", HasImage: false}},
		{label: "bird", want: Entry{Label: "bird", HasImage: true}},
		{label: "fish", notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, err := s.Lookup(tt.label)
			if tt.notFound {
				require.ErrorIs(t, err, ErrNotFound)
				assert.True(t, errors.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestLookupCaches(t *testing.T) {
	t.Parallel()

	root := writeAssets(t)
	s := NewStore(Config{Root: root})

	first, err := s.Lookup("dog")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, textDir, "dog.txt")))

	second, err := s.Lookup("dog")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	items, hits, misses := s.Stats()
	assert.Equal(t, 1, items)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	s.Clear()
	_, err = s.Lookup("dog")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidLabels(t *testing.T) {
	t.Parallel()

	s := NewStore(Config{Root: writeAssets(t)})
	for _, label := range []string{"", ".", "..", "../etc/passwd", `a\b`, "a/b"} {
		_, err := s.Lookup(label)
		assert.ErrorIs(t, err, ErrInvalidLabel, label)
		_, err = s.Image(label)
		assert.ErrorIs(t, err, ErrInvalidLabel, label)
	}
}

func TestImageOriginal(t *testing.T) {
	t.Parallel()

	root := writeAssets(t)
	s := NewStore(Config{Root: root})

	img, err := s.Image("cat")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	raw, err := os.ReadFile(filepath.Join(root, imageDir, "cat.png"))
	require.NoError(t, err)
	assert.Equal(t, raw, img.Data)

	_, err = s.Image("dog")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageThumbnail(t *testing.T) {
	t.Parallel()

	s := NewStore(Config{Root: writeAssets(t), ThumbnailSize: 50})

	img, err := s.Image("cat")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
	assert.Equal(t, 25, decoded.Bounds().Dy())

	// smaller images are served untouched
	small, err := s.Image("bird")
	require.NoError(t, err)
	decoded, err = png.Decode(bytes.NewReader(small.Data))
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Bounds().Dx())
}
