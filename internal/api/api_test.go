package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/datastore"
	"github.com/tphakala/imageclassifier-go/internal/labelinfo"
	"github.com/tphakala/imageclassifier-go/internal/observability"
)

// stubEngine returns fixed uint8 scores.
type stubEngine struct {
	scores []uint8
}

func (s *stubEngine) InputSpec() classifier.TensorSpec {
	return classifier.TensorSpec{Shape: []int{1, 4, 4, 3}, Type: classifier.TypeUInt8}
}

func (s *stubEngine) OutputSpec() classifier.TensorSpec {
	return classifier.TensorSpec{Shape: []int{1, len(s.scores)}, Type: classifier.TypeUInt8}
}

func (s *stubEngine) Run(*classifier.Tensor) (*classifier.Tensor, error) {
	return &classifier.Tensor{Spec: s.OutputSpec(), UInt8: slices.Clone(s.scores)}, nil
}

func (s *stubEngine) Close() {}

type testEnv struct {
	e          *echo.Echo
	controller *Controller
	scheduler  *classifier.Scheduler
	store      *datastore.SQLiteStore
}

func setupTestEnvironment(t *testing.T, loaded bool, opts ...Option) *testEnv {
	t.Helper()

	provider := classifier.NewProvider(nil)
	if loaded {
		require.NoError(t, provider.Load(func() (*classifier.Classifier, error) {
			return classifier.New(&stubEngine{scores: []uint8{255, 0, 128}}, []string{"cat", "dog", "bird"})
		}))
	}

	scheduler := classifier.NewScheduler(provider, 1, 4)
	t.Cleanup(scheduler.Stop)

	settings := &conf.Settings{}
	settings.WebServer.MaxUploadMB = 1

	e := NewEcho()
	controller := New(e, settings, provider, scheduler, opts...)
	return &testEnv{e: e, controller: controller, scheduler: scheduler}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func classifyRequest(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile(formImage, "photo.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, apiPrefix+"/classify", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestClassify(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(classifyRequest(t, pngBytes(t, 8, 6), map[string]string{"orientation": "90"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.RequestID)
	assert.Equal(t, 90, resp.Orientation)
	require.Len(t, resp.Recognitions, 3)
	assert.Equal(t, "cat", resp.Recognitions[0].Label)
	assert.Equal(t, "bird", resp.Recognitions[1].Label)
	assert.InDelta(t, 0.502, resp.Recognitions[1].Confidence, 1e-3)
}

func TestClassifyKeepsClientRequestID(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	req := classifyRequest(t, pngBytes(t, 4, 4), nil)
	req.Header.Set(echo.HeaderXRequestID, "client-id")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-id", rec.Header().Get(echo.HeaderXRequestID))
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		loaded bool
		data   []byte
		fields map[string]string
		want   int
	}{
		{"missing image", true, nil, nil, http.StatusBadRequest},
		{"bad orientation", true, []byte("x"), map[string]string{"orientation": "up"}, http.StatusBadRequest},
		{"undecodable image", true, []byte("not an image"), nil, http.StatusBadRequest},
		{"too large", true, bytes.Repeat([]byte("a"), 2<<20), nil, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestEnvironment(t, tt.loaded)
			rec := env.do(classifyRequest(t, tt.data, tt.fields))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Code)
			assert.Len(t, resp.CorrelationID, 8)
		})
	}
}

func TestClassifyUnavailable(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, false)

	rec := env.do(classifyRequest(t, pngBytes(t, 4, 4), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndStatus(t *testing.T) {
	t.Parallel()

	ready := setupTestEnvironment(t, true)
	rec := ready.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	rec = ready.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/status", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Classifier struct {
			State  string `json:"state"`
			Labels int    `json:"labels"`
		} `json:"classifier"`
		History bool `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Classifier.State)
	assert.Equal(t, 3, status.Classifier.Labels)
	assert.False(t, status.History)

	failed := setupTestEnvironment(t, false)
	rec = failed.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/health", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unloaded"`)
}

func TestListLabels(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"labels":["cat","dog","bird"],"count":3}`, rec.Body.String())
}

func TestLabelDetails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "text"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "text", "cat.txt"), []byte("A cat."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "images", "cat.png"), pngBytes(t, 4, 4), 0o600))

	env := setupTestEnvironment(t, true, WithLabelStore(labelinfo.NewStore(labelinfo.Config{Root: root})))

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels/cat", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"label":"cat","description":"A cat.","has_image":true}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels/cat/image", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels/fish", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels/..", http.NoBody))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, rec.Code)
}

func TestLabelDetailsDisabled(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/labels/cat", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	store := datastore.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	env := setupTestEnvironment(t, true, WithDatastore(store))

	for range 3 {
		rec := env.do(classifyRequest(t, pngBytes(t, 4, 4), nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history?limit=2", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var captures []datastore.Capture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &captures))
	require.Len(t, captures, 2)
	assert.Equal(t, "cat", captures[0].TopLabel)
	assert.Len(t, captures[0].Results, 3)

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history?label=dog", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var none []datastore.Capture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &none))
	assert.Empty(t, none)

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history/stats?since=1h", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)

	id := captures[0].ID
	path := apiPrefix + "/history/" + itoa(id)
	rec = env.do(httptest.NewRequest(http.MethodGet, path, http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, path, http.NoBody))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, path, http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history?limit=x", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history/stats?since=-1h", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/history", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	env := setupTestEnvironment(t, true, WithMetrics(m))

	rec := env.do(classifyRequest(t, pngBytes(t, 4, 4), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "imageclassifier_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	req := httptest.NewRequest(http.MethodGet, apiPrefix+"/health", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := env.do(req)

	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(echo.HeaderXFrameOptions))
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSystemInfo(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, apiPrefix+"/system", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var info SystemInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Positive(t, info.NumCPU)
	assert.NotEmpty(t, info.GoVersion)
}
