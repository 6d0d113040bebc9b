package metrics

import "sync"

// Recorder defines a minimal interface for recording metrics so components
// can depend on an abstraction rather than concrete collectors.
type Recorder interface {
	// RecordOperation records an operation outcome, e.g. ("recognize", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}

// TestRecorder captures recorded metrics in memory for assertions in tests.
type TestRecorder struct {
	mu         sync.RWMutex
	operations map[string]map[string]int
	durations  map[string][]float64
	errors     map[string]map[string]int
}

// NewTestRecorder creates an empty TestRecorder
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations: make(map[string]map[string]int),
		durations:  make(map[string][]float64),
		errors:     make(map[string]map[string]int),
	}
}

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors[operation] == nil {
		r.errors[operation] = make(map[string]int)
	}
	r.errors[operation][errorType]++
}

// OperationCount returns how often operation finished with status
func (r *TestRecorder) OperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operations[operation][status]
}

// DurationCount returns the number of durations recorded for operation
func (r *TestRecorder) DurationCount(operation string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.durations[operation])
}

// ErrorCount returns the number of errors of errorType recorded for operation
func (r *TestRecorder) ErrorCount(operation, errorType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errors[operation][errorType]
}
