package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Classifier.SetModelLoaded(true)
	m.Classifier.RecordTopLabel("tabby")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "imageclassifier_model_loaded 1")
	assert.Contains(t, body, `imageclassifier_top_recognitions_total{label="tabby"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
