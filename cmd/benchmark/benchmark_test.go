package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetPerformanceRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{2 * time.Second, "❌ Very Poor"},
		{600 * time.Millisecond, "⚠️ Poor"},
		{300 * time.Millisecond, "👍 Decent"},
		{100 * time.Millisecond, "✨ Good"},
		{20 * time.Millisecond, "🏆 Excellent"},
		{5 * time.Millisecond, "🚀 Superb"},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			t.Parallel()
			got, _ := getPerformanceRating(tt.d)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoiseImageDeterministic(t *testing.T) {
	t.Parallel()

	a := noiseImage(4, 3)
	b := noiseImage(4, 3)
	assert.Equal(t, a, b)
	assert.Equal(t, 4, a.Bounds().Dx())
	assert.Equal(t, 3, a.Bounds().Dy())
}
