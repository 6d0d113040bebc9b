package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/datastore"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/mqtt"
)

const (
	// formImage is the multipart field holding the photo.
	formImage = "image"
	// formOrientation is the sensor orientation in degrees.
	formOrientation = "orientation"
	// formAutoOrient applies EXIF orientation before classification.
	formAutoOrient = "auto_orient"

	sourceHTTP = "http"

	publishTimeout = 5 * time.Second
)

// ClassifyResponse is the reply of POST /classify.
type ClassifyResponse struct {
	RequestID    string                   `json:"request_id"`
	Recognitions []classifier.Recognition `json:"recognitions"`
	DurationMS   float64                  `json:"duration_ms"`
	Orientation  int                      `json:"orientation"`
}

// Classify handles POST /api/v1/classify with a multipart photo upload.
func (c *Controller) Classify(ctx echo.Context) error {
	start := time.Now()
	id := requestID(ctx)

	orientation := 0
	if v := ctx.FormValue(formOrientation); v != "" {
		deg, err := strconv.Atoi(v)
		if err != nil {
			return c.HandleError(ctx, err, "orientation must be an integer number of degrees", http.StatusBadRequest)
		}
		orientation = deg
	}
	autoOrient, _ := strconv.ParseBool(ctx.FormValue(formAutoOrient))

	fileHeader, err := ctx.FormFile(formImage)
	if err != nil {
		return c.HandleError(ctx, err, "multipart field \"image\" is required", http.StatusBadRequest)
	}
	if c.metrics != nil {
		c.metrics.HTTP.RecordUpload(fileHeader.Size)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.HandleError(ctx, err, "failed to read upload", http.StatusBadRequest)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			c.log.Debug("failed to close upload", logger.Error(cerr))
		}
	}()

	img, err := imageops.Decode(file, imageops.DecodeOptions{AutoOrient: autoOrient})
	if err != nil {
		return c.HandleError(ctx, err, "could not decode image", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	recs, err := c.Recognizer.RecognizeContext(reqCtx, img, orientation)
	if err != nil {
		message, code := classifyErrorStatus(err)
		return c.HandleError(ctx, err, message, code)
	}
	took := time.Since(start)

	c.record(reqCtx, id, fileHeader.Filename, orientation, recs, took)

	return ctx.JSON(http.StatusOK, ClassifyResponse{
		RequestID:    id,
		Recognitions: recs,
		DurationMS:   float64(took.Microseconds()) / 1000,
		Orientation:  orientation,
	})
}

// record stores the result in history and publishes it. Failures are logged
// and never fail the request.
func (c *Controller) record(ctx context.Context, id, fileName string, orientation int, recs []classifier.Recognition, took time.Duration) {
	log := c.log.WithContext(ctx)

	if c.DS != nil {
		model := ""
		if c.Provider != nil {
			model = c.Provider.Status().ModelPath
		}
		capture, results := datastore.NewCapture(id, sourceHTTP, fileName, model, orientation, recs, took)
		if err := c.DS.Save(capture, results); err != nil {
			log.Warn("failed to save history", logger.Error(err))
		}
	}

	if c.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		err := c.Publisher.Publish(pubCtx, mqtt.RecognitionMessage{
			RequestID:    id,
			Source:       sourceHTTP,
			FileName:     fileName,
			Orientation:  orientation,
			Recognitions: recs,
			DurationMS:   float64(took.Microseconds()) / 1000,
		})
		if err != nil {
			log.Debug("failed to publish recognition", logger.Error(err))
		}
	}
}

// classifyErrorStatus maps a recognition error onto an HTTP status.
func classifyErrorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, classifier.ErrImageDecode):
		return "could not decode image", http.StatusBadRequest
	case errors.Is(err, classifier.ErrClassifierUnavailable):
		return "classifier is not available", http.StatusServiceUnavailable
	case errors.Is(err, classifier.ErrSchedulerStopped):
		return "server is shutting down", http.StatusServiceUnavailable
	case errors.Is(err, classifier.ErrQueueFull):
		return "too many pending requests", http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request cancelled", http.StatusRequestTimeout
	default:
		return "classification failed", http.StatusInternalServerError
	}
}
