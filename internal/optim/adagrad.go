package optim

import (
	"fmt"
	"math"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Adagrad is the reference implementation of the update rule: a plain
// elementwise loop with float64 working precision and no dependency on the
// fused kernels. The differential harness treats it as the trusted baseline.
//
// Reference: "Adaptive Subgradient Methods for Online Learning and
// Stochastic Optimization" (Duchi, Hazan & Singer, 2011)
//
// Only float32 and float64 storage is supported. A half-precision baseline
// would itself be numerically unstable, so narrow candidates are compared
// against a float32 FusedAdagrad instead (see the difftest package).
type Adagrad struct {
	params []*nn.Parameter
	cfg    Config
	t      int                                 // Completed steps
	sums   map[*nn.Parameter]*tensor.RawTensor // Float64 squared-gradient accumulators
}

// NewAdagrad creates the reference optimizer.
//
// Accumulators are allocated at construction, initialized to zero, and live
// for the lifetime of the optimizer.
func NewAdagrad(params []*nn.Parameter, config Config) (*Adagrad, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	sums := make(map[*nn.Parameter]*tensor.RawTensor, len(params))
	for i, p := range params {
		dt := p.Tensor().DType()
		if dt != tensor.Float32 && dt != tensor.Float64 {
			return nil, fmt.Errorf("%w: reference adagrad does not support %s storage (parameter %d)",
				ErrInvalidConfig, dt, i)
		}
		sums[p] = tensor.Zeros(p.Tensor().Shape(), tensor.Float64)
	}

	return &Adagrad{
		params: params,
		cfg:    config,
		sums:   sums,
	}, nil
}

// Step performs a single optimization step over all owned parameters.
//
// Parameters with no attached gradient are skipped. Shape disagreement
// aborts the step with ErrDimensionMismatch.
func (o *Adagrad) Step() error {
	for i, p := range o.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if err := checkStep(i, p, grad); err != nil {
			return err
		}
		o.update(p, grad)
	}
	o.t++
	return nil
}

// update runs the plain per-element loop for a single parameter.
func (o *Adagrad) update(p *nn.Parameter, grad *tensor.RawTensor) {
	lr, eps, wd := o.cfg.LR, o.cfg.Eps, o.cfg.WeightDecay
	acc := o.sums[p].AsFloat64()

	switch p.Tensor().DType() {
	case tensor.Float32:
		param := p.Tensor().AsFloat32()
		g := grad.AsFloat32()
		for i := range param {
			gi := float64(g[i])
			if wd != 0 {
				gi += wd * float64(param[i])
			}
			acc[i] += gi * gi
			param[i] = float32(float64(param[i]) - lr*gi/(math.Sqrt(acc[i])+eps))
		}
	case tensor.Float64:
		param := p.Tensor().AsFloat64()
		g := grad.AsFloat64()
		for i := range param {
			gi := g[i]
			if wd != 0 {
				gi += wd * param[i]
			}
			acc[i] += gi * gi
			param[i] -= lr * gi / (math.Sqrt(acc[i]) + eps)
		}
	}
}

// ZeroGrad detaches gradients from all parameters.
func (o *Adagrad) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (o *Adagrad) GetLR() float64 {
	return o.cfg.LR
}

// SetLR updates the learning rate.
func (o *Adagrad) SetLR(lr float64) {
	o.cfg.LR = lr
}

// GetStep returns the number of completed steps.
func (o *Adagrad) GetStep() int {
	return o.t
}

// Accumulator exposes the squared-gradient state for a parameter, or nil if
// the parameter is not owned by this optimizer. Used by tests to check the
// monotonicity invariant.
func (o *Adagrad) Accumulator(p *nn.Parameter) *tensor.RawTensor {
	return o.sums[p]
}

// StateDict returns the optimizer state for serialization.
//
// Accumulator buffers are exported under "sum.{param_index}" keys.
func (o *Adagrad) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(o.params))
	for i, p := range o.params {
		stateDict[fmt.Sprintf("sum.%d", i)] = o.sums[p]
	}
	return stateDict
}

// LoadStateDict restores accumulator buffers from serialization.
//
// Missing entries leave the zero-initialized accumulator in place. Returns
// an error if an accumulator shape doesn't match its parameter.
func (o *Adagrad) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, p := range o.params {
		raw, exists := stateDict[fmt.Sprintf("sum.%d", i)]
		if !exists {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("accumulator shape mismatch for parameter %d: expected %v, got %v",
				i, p.Tensor().Shape(), raw.Shape())
		}
		o.sums[p] = tensor.Cast(raw, tensor.Float64)
	}
	return nil
}
