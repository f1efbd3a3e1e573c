// Package nn provides the trainable-parameter type the Ember optimizers
// operate on.
package nn

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// A Parameter owns its value tensor and carries an externally supplied
// gradient of the same shape. Optimizers read the gradient and mutate the
// value in place; they never write the gradient.
//
// Example:
//
//	w, _ := tensor.FromSlice([]float32{0.5}, tensor.Shape{1})
//	param := nn.NewParameter("weight", w)
//	param.SetGrad(gradTensor)
//	// optimizer.Step() consumes param.Grad()
type Parameter struct {
	name   string            // Parameter name (e.g., "weight", "bias")
	tensor *tensor.RawTensor // The parameter tensor
	grad   *tensor.RawTensor // Gradient tensor, set before each step
}

// NewParameter creates a new trainable parameter.
//
// The tensor should be initialized before creating the Parameter. The
// gradient starts nil and is attached per step with SetGrad.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if none is attached.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad attaches a gradient tensor.
//
// The gradient is read-only from the optimizer's perspective; callers may
// reuse the buffer across steps as long as they refill it first.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad detaches the gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
