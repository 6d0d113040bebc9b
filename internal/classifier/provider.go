package classifier

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// State is the availability of the classifier behind a Provider.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of a Provider.
type Status struct {
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	ModelPath  string    `json:"model_path,omitempty"`
	Labels     int       `json:"labels"`
	MaxResults int       `json:"max_results"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
}

// ModelLoadedGauge is implemented by recorders that expose a model-loaded gauge.
type ModelLoadedGauge interface {
	SetModelLoaded(loaded bool)
}

// Provider owns the classifier lifecycle so the rest of the application can
// run, and report why, when the model could not be loaded.
type Provider struct {
	mu         sync.RWMutex
	state      State
	classifier *Classifier
	err        error
	loadedAt   time.Time
	gauge      ModelLoadedGauge
}

// NewProvider returns a Provider in StateUnloaded. gauge may be nil.
func NewProvider(gauge ModelLoadedGauge) *Provider {
	return &Provider{gauge: gauge}
}

// Load runs loader and swaps in the new classifier on success. A classifier
// that is already loaded keeps serving while loader runs and stays in place
// when the reload fails; the failure is then reported by Status. Without a
// previous classifier a failure leaves the provider in StateFailed.
func (p *Provider) Load(loader func() (*Classifier, error)) error {
	p.mu.Lock()
	if p.classifier == nil {
		p.state = StateLoading
	}
	p.mu.Unlock()

	c, err := loader()
	if err == nil && c == nil {
		err = fmt.Errorf("%w: loader returned no classifier", ErrModelLoad)
	}

	p.mu.Lock()
	var old *Classifier
	switch {
	case err == nil:
		old = p.classifier
		p.state = StateReady
		p.err = nil
		p.classifier = c
		p.loadedAt = time.Now()
	case p.classifier != nil:
		p.err = err
	default:
		p.state = StateFailed
		p.err = err
	}
	ready := p.classifier != nil
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if p.gauge != nil {
		p.gauge.SetModelLoaded(ready)
	}

	if err != nil {
		if ready {
			GetLogger().Error("classifier reload failed, keeping previous model", logger.Error(err))
		} else {
			GetLogger().Error("classifier unavailable", logger.Error(err))
		}
	}
	return err
}

// Classifier returns the loaded classifier or ErrClassifierUnavailable
// wrapping the load error.
func (p *Provider) Classifier() (*Classifier, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state == StateReady {
		return p.classifier, nil
	}

	var err error
	if p.err != nil {
		err = fmt.Errorf("%w: %w", ErrClassifierUnavailable, p.err)
	} else {
		err = fmt.Errorf("%w: model %s", ErrClassifierUnavailable, p.state)
	}
	return nil, errors.New(err).
		Component(componentName).
		Category(errors.CategoryState).
		Context("state", p.state.String()).
		Build()
}

// RecognizeContext classifies img with the current classifier.
func (p *Provider) RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]Recognition, error) {
	c, err := p.Classifier()
	if err != nil {
		return nil, err
	}
	return c.RecognizeContext(ctx, img, orientation)
}

// State returns the current state.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Status returns a snapshot for reporting.
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{State: p.state}
	if p.err != nil {
		st.Error = p.err.Error()
	}
	if c := p.classifier; c != nil {
		st.ModelPath = c.ModelPath()
		st.Labels = len(c.labels)
		st.MaxResults = c.maxResults
		st.Input = c.InputSpec().String()
		st.Output = c.OutputSpec().String()
		st.LoadedAt = p.loadedAt
	}
	return st
}

// Close releases the classifier and returns the provider to StateUnloaded.
func (p *Provider) Close() {
	p.mu.Lock()
	c := p.classifier
	p.classifier = nil
	p.state = StateUnloaded
	p.err = nil
	p.mu.Unlock()

	if c != nil {
		c.Close()
	}
	if p.gauge != nil {
		p.gauge.SetModelLoaded(false)
	}
}
