// Package optim implements the Adagrad parameter-update rule in two forms:
// a plain reference loop and a fused, data-parallel kernel.
//
// Both follow the same update:
//
//	g    = grad + weight_decay * param        // if weight_decay != 0
//	acc' = acc + g*g
//	p'   = p - lr * g / (sqrt(acc') + eps)
//
// The accumulator is owned per parameter, starts at zero, and is
// monotonically non-decreasing across steps.
//
// Example usage:
//
//	opt, err := optim.NewFusedAdagrad(params, optim.Config{LR: 5e-4, Eps: 1e-8})
//	if err != nil { ... }
//	for range iters {
//	    fillGradients(params)
//	    if err := opt.Step(); err != nil { ... }
//	    opt.ZeroGrad()
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Sentinel errors for construction and step failures.
var (
	// ErrInvalidConfig is returned at construction for non-positive epsilon
	// or a negative learning rate.
	ErrInvalidConfig = errors.New("invalid optimizer config")

	// ErrDimensionMismatch is returned by Step when a gradient's shape
	// disagrees with its parameter. The step aborts without touching the
	// remaining parameters.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Optimizer is the base interface for the update-rule implementations.
type Optimizer interface {
	// Step applies one update to all owned parameters in place, consuming
	// each parameter's attached gradient. Parameters with no gradient are
	// skipped.
	Step() error

	// ZeroGrad detaches all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config holds the Adagrad hyperparameters.
//
// Zero values mean "use the default" (LR 1e-2, Eps 1e-10, WeightDecay 0);
// explicitly negative values are rejected at construction.
type Config struct {
	LR          float64 // Learning rate
	Eps         float64 // Added to sqrt(accumulator) to avoid division by zero
	WeightDecay float64 // L2 penalty folded into the gradient
}

// withDefaults fills unset fields with the conventional Adagrad defaults.
func (c Config) withDefaults() Config {
	if c.LR == 0 {
		c.LR = 1e-2
	}
	if c.Eps == 0 {
		c.Eps = 1e-10
	}
	return c
}

// validate runs after defaulting, so Eps > 0 unless the caller passed a
// negative value explicitly.
func (c Config) validate() error {
	if c.Eps <= 0 {
		return fmt.Errorf("%w: eps must be > 0, got %g", ErrInvalidConfig, c.Eps)
	}
	if c.LR < 0 {
		return fmt.Errorf("%w: learning rate must be >= 0, got %g", ErrInvalidConfig, c.LR)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("%w: weight decay must be >= 0, got %g", ErrInvalidConfig, c.WeightDecay)
	}
	return nil
}

// checkStep validates one parameter/gradient pair before a kernel runs.
func checkStep(idx int, p *nn.Parameter, grad *tensor.RawTensor) error {
	if !grad.Shape().Equal(p.Tensor().Shape()) {
		return fmt.Errorf("%w: parameter %d (%s): grad shape %v vs param shape %v",
			ErrDimensionMismatch, idx, p.Name(), grad.Shape(), p.Tensor().Shape())
	}
	return nil
}
