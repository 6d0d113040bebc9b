// Package classifier turns photos into ranked label recognitions using a
// quantized image classification model.
package classifier

import (
	"context"
	"fmt"
	"image"
	"os"
	"slices"
	"time"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

// DefaultMaxResults is the number of recognitions returned per photo.
const DefaultMaxResults = 5

// topLabelRecorder is implemented by recorders that count winning labels.
type topLabelRecorder interface {
	RecordTopLabel(label string)
}

// Classifier holds a loaded model and its labels. Recognize may be called
// from several goroutines; inference itself is serialized by the engine.
type Classifier struct {
	engine     Engine
	labels     []string
	pre        *Preprocessor
	inputNorm  Normalization
	outputNorm Normalization
	method     imageops.Method
	maxResults int
	modelPath  string
	recorder   metrics.Recorder
	log        logger.Logger

	outputNormSet bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMaxResults sets how many recognitions are returned. Values <= 0 are ignored.
func WithMaxResults(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithInputNormalization sets the pixel normalization applied before inference.
func WithInputNormalization(n Normalization) Option {
	return func(c *Classifier) { c.inputNorm = n }
}

// WithOutputNormalization sets the dequantization applied to raw outputs.
// Without it the constants are derived from the output tensor type.
func WithOutputNormalization(n Normalization) Option {
	return func(c *Classifier) {
		c.outputNorm = n
		c.outputNormSet = true
	}
}

// WithResizeMethod selects the resampling filter used during preprocessing.
func WithResizeMethod(m imageops.Method) Option {
	return func(c *Classifier) { c.method = m }
}

// WithRecorder reports operation counts and durations to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Classifier) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

// WithModelPath records the model location for logging and error context.
func WithModelPath(path string) Option {
	return func(c *Classifier) { c.modelPath = path }
}

// New builds a Classifier around engine. The number of labels must equal the
// class count of the engine output or ErrModelLoad is returned.
func New(engine Engine, labels []string, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		engine:     engine,
		labels:     slices.Clone(labels),
		inputNorm:  Identity,
		method:     imageops.MethodNearest,
		maxResults: DefaultMaxResults,
		recorder:   metrics.NoopRecorder{},
		log:        GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if engine == nil {
		return nil, modelLoadError(fmt.Errorf("no inference engine"), c.modelPath, len(labels))
	}
	if len(c.labels) == 0 {
		return nil, modelLoadError(fmt.Errorf("no labels"), c.modelPath, 0)
	}

	out := engine.OutputSpec()
	if classes := out.Classes(); classes != len(c.labels) || out.Elements() != classes {
		return nil, modelLoadError(
			fmt.Errorf("model has %d outputs but %d labels were loaded", out.Elements(), len(c.labels)),
			c.modelPath, len(c.labels))
	}

	pre, err := NewPreprocessor(engine.InputSpec(), c.inputNorm, c.method)
	if err != nil {
		return nil, modelLoadError(err, c.modelPath, len(c.labels))
	}
	c.pre = pre

	if !c.outputNormSet || c.outputNorm.Std == 0 {
		derived := DefaultOutputNormalization(out.Type)
		if c.outputNormSet {
			derived.Mean = c.outputNorm.Mean
		}
		c.outputNorm = derived
	}

	if err := CheckTopK(len(c.labels), c.maxResults); err != nil {
		c.log.Warn("results will be clamped to the label count",
			logger.Error(err),
			logger.Int("labels", len(c.labels)),
			logger.Int("max_results", c.maxResults))
	}

	return c, nil
}

// Load reads the model container and labels from disk and builds a
// Classifier backed by TensorFlow Lite.
func Load(modelPath, labelPath string, engineOpts EngineOptions, opts ...Option) (*Classifier, error) {
	start := time.Now()

	labels, err := LoadLabelFile(labelPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: read model: %w", ErrModelLoad, err)).
			Component(componentName).
			Category(errors.CategoryModelLoad).
			ModelContext(modelPath, len(labels)).
			Timing("model-load", time.Since(start)).
			Build()
	}

	engineOpts.ModelPath = modelPath
	engine, err := NewTFLiteEngine(modelData, engineOpts)
	if err != nil {
		return nil, err
	}

	c, err := New(engine, labels, append([]Option{WithModelPath(modelPath)}, opts...)...)
	if err != nil {
		engine.Close()
		return nil, err
	}

	c.log.Info("model loaded",
		logger.String("model", modelPath),
		logger.Int("labels", len(labels)),
		logger.String("input", engine.InputSpec().String()),
		logger.Duration("duration", time.Since(start)))

	return c, nil
}

// Labels returns a copy of the label list in class index order.
func (c *Classifier) Labels() []string { return slices.Clone(c.labels) }

// MaxResults returns the configured result count.
func (c *Classifier) MaxResults() int { return c.maxResults }

// InputSpec returns the model input tensor.
func (c *Classifier) InputSpec() TensorSpec { return c.engine.InputSpec() }

// OutputSpec returns the model output tensor.
func (c *Classifier) OutputSpec() TensorSpec { return c.engine.OutputSpec() }

// Normalization returns the input and output normalization in effect.
func (c *Classifier) Normalization() (input, output Normalization) {
	return c.inputNorm, c.outputNorm
}

// ModelPath returns the path the model was loaded from, if any.
func (c *Classifier) ModelPath() string { return c.modelPath }

// Recognize classifies img taken at the given sensor orientation in degrees.
func (c *Classifier) Recognize(img image.Image, orientation int) ([]Recognition, error) {
	return c.RecognizeContext(context.Background(), img, orientation)
}

// RecognizeContext is Recognize with cancellation checked before and after
// inference. Inference itself cannot be interrupted.
func (c *Classifier) RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]Recognition, error) {
	start := time.Now()

	results, err := c.recognize(ctx, img, orientation)
	c.recorder.RecordDuration(metrics.OpRecognize, time.Since(start).Seconds())
	if err != nil {
		c.recorder.RecordOperation(metrics.OpRecognize, metrics.StatusError)
		c.recorder.RecordError(metrics.OpRecognize, errorType(err))
		return nil, err
	}
	c.recorder.RecordOperation(metrics.OpRecognize, metrics.StatusSuccess)
	if tl, ok := c.recorder.(topLabelRecorder); ok && len(results) > 0 {
		tl.RecordTopLabel(results[0].Label)
	}

	c.log.WithContext(ctx).Debug("recognition complete",
		logger.Int("results", len(results)),
		logger.Duration("duration", time.Since(start)))

	return results, nil
}

func (c *Classifier) recognize(ctx context.Context, img image.Image, orientation int) ([]Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stageStart := time.Now()
	input, err := c.pre.Process(img, orientation)
	if err != nil {
		return nil, err
	}
	c.recorder.RecordDuration(metrics.OpPreprocess, time.Since(stageStart).Seconds())

	stageStart = time.Now()
	output, err := c.engine.Run(input)
	if err != nil {
		return nil, err
	}
	c.recorder.RecordDuration(metrics.OpInvoke, time.Since(stageStart).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stageStart = time.Now()
	scores := DequantizeTensor(output, c.outputNorm)
	recs, err := PairLabels(c.labels, scores)
	if err != nil {
		return nil, err
	}
	ranked := Rank(recs, c.maxResults)
	c.recorder.RecordDuration(metrics.OpPostprocess, time.Since(stageStart).Seconds())

	return ranked, nil
}

// Close releases the engine.
func (c *Classifier) Close() {
	c.engine.Close()
}

// errorType maps err onto a short label for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrImageDecode):
		return "decode"
	case errors.Is(err, ErrShapeMismatch):
		return "shape"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.IsCategory(err, errors.CategoryInference):
		return "inference"
	default:
		return "other"
	}
}
