package classifier

import (
	"fmt"
	"sync"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/imageclassifier-go/internal/cpuspec"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// EngineOptions configures the TensorFlow Lite interpreter.
type EngineOptions struct {
	// Threads is the interpreter thread count, 0 picks one from the CPU topology.
	Threads int
	// UseXNNPACK enables the XNNPACK delegate when the runtime provides it.
	UseXNNPACK bool
	// ModelPath is only used for error context and logging.
	ModelPath string
}

// TFLiteEngine runs a TensorFlow Lite model. The interpreter is not
// re-entrant so Run calls are serialized.
type TFLiteEngine struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	input       TensorSpec
	output      TensorSpec
	threads     int
	xnnpack     bool
}

// NewTFLiteEngine builds an interpreter for modelData and allocates its tensors.
func NewTFLiteEngine(modelData []byte, opts EngineOptions) (*TFLiteEngine, error) {
	log := GetLogger()

	if len(modelData) == 0 {
		return nil, modelLoadError(fmt.Errorf("model data is empty"), opts.ModelPath, 0)
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("%w: cannot load TensorFlow Lite model", ErrModelLoad)).
			Component(componentName).
			Category(errors.CategoryModelInit).
			ModelContext(opts.ModelPath, 0).
			Context("model_size_kb", len(modelData)/1024).
			Context("use_xnnpack", opts.UseXNNPACK).
			Build()
	}

	e := &TFLiteEngine{model: model, threads: cpuspec.ThreadCount(opts.Threads)}
	e.options = tflite.NewInterpreterOptions()

	if opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, e.threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("Failed to create XNNPACK delegate, falling back to default CPU")
			e.options.SetNumThread(e.threads)
		} else {
			e.options.AddDelegate(delegate)
			e.options.SetNumThread(1)
			e.xnnpack = true
		}
	} else {
		e.options.SetNumThread(e.threads)
	}

	e.options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	e.interpreter = tflite.NewInterpreter(model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, modelLoadError(fmt.Errorf("cannot create interpreter"), opts.ModelPath, 0)
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, modelLoadError(fmt.Errorf("tensor allocation failed"), opts.ModelPath, 0)
	}

	var err error
	if e.input, err = tensorSpec(e.interpreter.GetInputTensor(0)); err != nil {
		e.Close()
		return nil, modelLoadError(fmt.Errorf("input tensor: %w", err), opts.ModelPath, 0)
	}
	if e.output, err = tensorSpec(e.interpreter.GetOutputTensor(0)); err != nil {
		e.Close()
		return nil, modelLoadError(fmt.Errorf("output tensor: %w", err), opts.ModelPath, 0)
	}
	if len(e.input.Shape) != 4 {
		e.Close()
		return nil, modelLoadError(fmt.Errorf("input tensor must be NHWC, got %s", e.input), opts.ModelPath, 0)
	}

	log.Info("TFLite interpreter initialized",
		logger.String("input", e.input.String()),
		logger.String("output", e.output.String()),
		logger.Int("threads", e.threads),
		logger.Bool("xnnpack", e.xnnpack))

	return e, nil
}

// tensorSpec reads the shape and element type of t.
func tensorSpec(t *tflite.Tensor) (TensorSpec, error) {
	if t == nil {
		return TensorSpec{}, fmt.Errorf("tensor not found")
	}

	spec := TensorSpec{Shape: make([]int, t.NumDims())}
	for i := range spec.Shape {
		spec.Shape[i] = t.Dim(i)
	}

	switch t.Type() {
	case tflite.UInt8:
		spec.Type = TypeUInt8
	case tflite.Float32:
		spec.Type = TypeFloat32
	default:
		return TensorSpec{}, fmt.Errorf("unsupported tensor type %v", t.Type())
	}

	if spec.Elements() == 0 {
		return TensorSpec{}, fmt.Errorf("tensor has no elements")
	}
	return spec, nil
}

// InputSpec returns the declared input tensor.
func (e *TFLiteEngine) InputSpec() TensorSpec { return e.input }

// OutputSpec returns the declared output tensor.
func (e *TFLiteEngine) OutputSpec() TensorSpec { return e.output }

// Threads returns the interpreter thread count in use.
func (e *TFLiteEngine) Threads() int { return e.threads }

// Run copies input into the interpreter, invokes it and copies the output out.
func (e *TFLiteEngine) Run(input *Tensor) (*Tensor, error) {
	if err := input.validate(e.input); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter == nil {
		return nil, fmt.Errorf("%w: interpreter closed", ErrClassifierUnavailable)
	}

	in := e.interpreter.GetInputTensor(0)
	switch e.input.Type {
	case TypeUInt8:
		copy(in.UInt8s(), input.UInt8)
	case TypeFloat32:
		copy(in.Float32s(), input.Float32)
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component(componentName).
			Category(errors.CategoryInference).
			Build()
	}

	out := e.interpreter.GetOutputTensor(0)
	result := NewTensor(e.output)
	switch e.output.Type {
	case TypeUInt8:
		copy(result.UInt8, out.UInt8s())
	case TypeFloat32:
		copy(result.Float32, out.Float32s())
	}

	return result, nil
}

// Close releases the interpreter, its options and the model. It is safe to
// call more than once.
func (e *TFLiteEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}
