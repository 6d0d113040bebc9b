package classifier

import (
	"fmt"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
)

// Sentinel errors. Errors returned by this package wrap one of these so
// callers can match with errors.Is.
var (
	// ErrModelLoad means the model container or labels could not be loaded,
	// or the two disagree on the number of classes.
	ErrModelLoad = errors.NewStd("model load failed")

	// ErrImageDecode means the supplied photo could not be turned into pixels.
	ErrImageDecode = imageops.ErrImageDecode

	// ErrInsufficientLabels means fewer labels exist than results were requested.
	ErrInsufficientLabels = errors.NewStd("fewer labels than requested results")

	// ErrShapeMismatch means a tensor did not match the shape or type the model declares.
	ErrShapeMismatch = errors.NewStd("tensor shape mismatch")

	// ErrClassifierUnavailable is returned when no model is loaded.
	ErrClassifierUnavailable = errors.NewStd("classifier unavailable")

	ErrSchedulerStopped = errors.NewStd("scheduler stopped")
	ErrQueueFull        = errors.NewStd("recognition queue is full")
)

const componentName = "classifier"

// modelLoadError wraps err as ErrModelLoad with model context attached.
func modelLoadError(err error, modelPath string, labelCount int) error {
	return errors.New(fmt.Errorf("%w: %w", ErrModelLoad, err)).
		Component(componentName).
		Category(errors.CategoryModelLoad).
		ModelContext(modelPath, labelCount).
		Build()
}
