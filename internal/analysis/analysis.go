// Package analysis wires configuration into the classifier and runs the
// file and server entry points.
package analysis

import (
	"fmt"
	"sync"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

var (
	analysisLogger     logger.Logger
	analysisLoggerOnce sync.Once
)

// GetLogger returns the analysis package logger
func GetLogger() logger.Logger {
	analysisLoggerOnce.Do(func() {
		analysisLogger = logger.Global().Module("analysis")
	})
	return analysisLogger
}

// ClassifierOptions translates settings into classifier options. rec may be nil.
func ClassifierOptions(settings *conf.Settings, rec *metrics.ClassifierMetrics) ([]classifier.Option, error) {
	cs := settings.Classifier

	method, err := imageops.ParseMethod(cs.ResizeMethod)
	if err != nil {
		return nil, fmt.Errorf("classifier.resizemethod: %w", err)
	}

	opts := []classifier.Option{
		classifier.WithMaxResults(cs.MaxResults),
		classifier.WithResizeMethod(method),
		classifier.WithInputNormalization(classifier.Normalization{
			Mean: cs.Normalization.ImageMean,
			Std:  cs.Normalization.ImageStd,
		}),
		classifier.WithOutputNormalization(classifier.Normalization{
			Mean: cs.Normalization.ProbabilityMean,
			Std:  cs.Normalization.ProbabilityStd,
		}),
	}
	if rec != nil {
		opts = append(opts, classifier.WithRecorder(rec))
	}
	return opts, nil
}

// EngineOptions returns the inference runtime options from settings.
func EngineOptions(settings *conf.Settings) classifier.EngineOptions {
	return classifier.EngineOptions{
		Threads:    settings.Classifier.Threads,
		UseXNNPACK: settings.Classifier.UseXNNPACK,
	}
}

// Loader returns a function that loads the configured model and labels.
func Loader(settings *conf.Settings, rec *metrics.ClassifierMetrics) func() (*classifier.Classifier, error) {
	return func() (*classifier.Classifier, error) {
		opts, err := ClassifierOptions(settings, rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", classifier.ErrModelLoad, err)
		}
		return classifier.Load(
			conf.ExpandPath(settings.Classifier.ModelPath),
			conf.ExpandPath(settings.Classifier.LabelPath),
			EngineOptions(settings),
			opts...)
	}
}

// NewProvider loads the configured classifier into a new Provider. A load
// failure leaves the provider in classifier.StateFailed and is returned.
func NewProvider(settings *conf.Settings, rec *metrics.ClassifierMetrics) (*classifier.Provider, error) {
	var gauge classifier.ModelLoadedGauge
	if rec != nil {
		gauge = rec
	}
	provider := classifier.NewProvider(gauge)
	return provider, provider.Load(Loader(settings, rec))
}
