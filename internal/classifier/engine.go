package classifier

// Engine runs a single synchronous forward pass of a loaded model.
// Implementations must reject an input whose spec differs from InputSpec
// with ErrShapeMismatch.
type Engine interface {
	InputSpec() TensorSpec
	OutputSpec() TensorSpec
	Run(input *Tensor) (*Tensor, error)
	Close()
}
