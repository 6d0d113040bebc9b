package analysis

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/errors"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.tflite")
	s.Classifier.LabelPath = filepath.Join(t.TempDir(), "missing.txt")
	s.Classifier.MaxResults = 5
	s.Classifier.ResizeMethod = "nearest"
	s.Classifier.Normalization.ImageStd = 1
	s.Classifier.Workers = 1
	s.Classifier.QueueSize = 4
	return s
}

func TestClassifierOptions(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	opts, err := ClassifierOptions(s, nil)
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	s.Classifier.ResizeMethod = "lanczos9"
	_, err = ClassifierOptions(s, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resizemethod")
}

func TestEngineOptions(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Classifier.Threads = 3
	s.Classifier.UseXNNPACK = true
	assert.Equal(t, classifier.EngineOptions{Threads: 3, UseXNNPACK: true}, EngineOptions(s))
}

func TestNewProviderFailedLoad(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider(testSettings(t), nil)
	require.Error(t, err)
	require.NotNil(t, provider)
	t.Cleanup(provider.Close)

	assert.ErrorIs(t, err, classifier.ErrModelLoad)
	assert.Equal(t, classifier.StateFailed, provider.State())

	_, err = provider.Classifier()
	assert.ErrorIs(t, err, classifier.ErrClassifierUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestLoaderRejectsBadResizeMethod(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Classifier.ResizeMethod = "cubic-ish"
	_, err := Loader(s, nil)()
	assert.ErrorIs(t, err, classifier.ErrModelLoad)
}
