package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildKeepsSentinelChain(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("model load failed")
	ee := New(fmt.Errorf("reading model: %w", sentinel)).
		Component("classifier").
		Category(CategoryModelLoad).
		ModelContext("/models/mobilenet.tflite", 1001).
		Build()

	require.ErrorIs(t, ee, sentinel)
	assert.True(t, IsCategory(ee, CategoryModelLoad))
	assert.False(t, IsNotFound(ee))

	ctx := ee.GetContext()
	assert.Equal(t, "tflite", ctx["model_file"])
	assert.Equal(t, 1001, ctx["label_count"])

	// Wrapping an enhanced error again inherits its category
	outer := New(fmt.Errorf("startup: %w", ee)).Build()
	assert.Equal(t, CategoryModelLoad, outer.Category)
}

func TestIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryNotFound).Build()
	b := New(NewStd("b")).Category(CategoryNotFound).Build()
	c := New(NewStd("c")).Category(CategoryValidation).Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestPriorityFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{PriorityHigh, PriorityHigh},
		{"urgent", PriorityMedium},
		{"", ""},
	}
	for _, tt := range tests {
		ee := New(NewStd("x")).Priority(tt.in).Build()
		assert.Equal(t, tt.want, ee.Priority, "priority %q", tt.in)
	}
}

func TestFileContextOmitsPath(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).FileContext("/home/user/photos/cat.JPG", 2*1024*1024).Build()
	ctx := ee.GetContext()

	assert.Equal(t, "jpg", ctx["file_extension"])
	assert.Equal(t, "medium", ctx["file_size_category"])
	for _, v := range ctx {
		assert.NotContains(t, fmt.Sprint(v), "/home/user")
	}
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	got := scrubMessage("fetch https://api.example.com/v1?api_key=secret failed token=abc123")
	assert.NotContains(t, got, "secret")
	assert.NotContains(t, got, "abc123")

	got = scrubMessage("open /home/alice/models/custom.tflite: no such file")
	assert.NotContains(t, got, "alice")
	assert.Contains(t, got, "custom.tflite")
}

// Not parallel: mutates the global reporter.
func TestReporterReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("boom")).Component("api").Category(CategoryHTTP).Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}
