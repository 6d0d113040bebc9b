package analysis

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
)

// recognizerFunc adapts a function to classifier.Recognizer.
type recognizerFunc func(ctx context.Context, img image.Image, orientation int) ([]classifier.Recognition, error)

func (f recognizerFunc) RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]classifier.Recognition, error) {
	return f(ctx, img, orientation)
}

// fixedEngine returns the same uint8 scores for every input.
type fixedEngine struct {
	scores []uint8
}

func (e *fixedEngine) InputSpec() classifier.TensorSpec {
	return classifier.TensorSpec{Shape: []int{1, 2, 2, 3}, Type: classifier.TypeUInt8}
}

func (e *fixedEngine) OutputSpec() classifier.TensorSpec {
	return classifier.TensorSpec{Shape: []int{1, len(e.scores)}, Type: classifier.TypeUInt8}
}

func (e *fixedEngine) Run(*classifier.Tensor) (*classifier.Tensor, error) {
	return &classifier.Tensor{Spec: e.OutputSpec(), UInt8: slices.Clone(e.scores)}, nil
}

func (e *fixedEngine) Close() {}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestCollectImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "sub", "a.JPG"), 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	explicit := filepath.Join(dir, "notes.txt")
	files, err := CollectImages([]string{dir, explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "a.JPG"),
		explicit,
	}, files)

	_, err = CollectImages([]string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}

func TestClassifyFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	wide := filepath.Join(dir, "wide.png")
	bad := filepath.Join(dir, "bad.png")
	writePNG(t, good, 2, 2)
	writePNG(t, wide, 6, 3)
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))

	var calls atomic.Int32
	rec := recognizerFunc(func(_ context.Context, img image.Image, orientation int) ([]classifier.Recognition, error) {
		calls.Add(1)
		assert.Equal(t, 270, orientation)
		label := "square"
		if img.Bounds().Dx() != img.Bounds().Dy() {
			label = "wide"
		}
		return []classifier.Recognition{{Label: label, Confidence: 1}}, nil
	})

	results, err := ClassifyFiles(t.Context(), rec, []string{good, bad, wide}, 2, FileOptions{Orientation: 270})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, 2, calls.Load())

	assert.Equal(t, good, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "square", results[0].Recognitions[0].Label)

	assert.ErrorIs(t, results[1].Err, classifier.ErrImageDecode)
	assert.Empty(t, results[1].Recognitions)

	assert.Equal(t, "wide", results[2].Recognitions[0].Label)
}

func TestClassifyFilesCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 2, 2)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	rec := recognizerFunc(func(ctx context.Context, _ image.Image, _ int) ([]classifier.Recognition, error) {
		return nil, ctx.Err()
	})
	_, err := ClassifyFiles(ctx, rec, []string{path, path}, 1, FileOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

// Replaces os.Stdout, so it must not run in parallel.
func TestClassifyAndWriteJSONOnStdout(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	bad := filepath.Join(dir, "bad.png")
	writePNG(t, good, 4, 4)
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))

	stdout, err := os.Create(filepath.Join(dir, "stdout.json"))
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = stdout
	t.Cleanup(func() {
		os.Stdout = orig
		_ = stdout.Close()
	})

	settings := &conf.Settings{}
	settings.Classifier.Workers = 1
	settings.Classifier.QueueSize = 4

	// Three labels against the default five results also logs a clamp warning.
	provider := classifier.NewProvider(nil)
	require.NoError(t, provider.Load(func() (*classifier.Classifier, error) {
		return classifier.New(&fixedEngine{scores: []uint8{255, 0, 128}}, []string{"cat", "dog", "bird"})
	}))
	defer provider.Close()

	err = classifyAndWrite(t.Context(), settings, provider, []string{good, bad}, FormatJSON, FileOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(stdout.Name())
	require.NoError(t, err)

	var decoded []struct {
		Path         string                   `json:"path"`
		Recognitions []classifier.Recognition `json:"recognitions"`
		Error        string                   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded), "stdout must hold only the JSON document:\n%s", data)
	require.Len(t, decoded, 2)

	assert.Equal(t, good, decoded[0].Path)
	require.Len(t, decoded[0].Recognitions, 3)
	assert.Equal(t, "cat", decoded[0].Recognitions[0].Label)
	assert.Equal(t, "bird", decoded[0].Recognitions[1].Label)

	assert.Equal(t, bad, decoded[1].Path)
	assert.NotEmpty(t, decoded[1].Error)
}
