package optim

import (
	"fmt"
	"math"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// FusedAdagrad applies the Adagrad update as a single fused pass per
// parameter: effective gradient, square-accumulate, and parameter update run
// in one loop over the storage, chunked across workers. Elements are
// independent, so chunk boundaries cannot change the result.
//
// Storage dtypes float32, float64, float16 and bfloat16 are supported. For
// the 16-bit formats the kernel loads each element to float32, computes in
// float32, and rounds the result back to storage precision; the accumulator
// for those parameters is kept in float32 so the squared-gradient sum does
// not saturate at storage width.
type FusedAdagrad struct {
	params   []*nn.Parameter
	cfg      Config
	t        int
	sums     map[*nn.Parameter]*tensor.RawTensor
	parallel parallel.Config
}

// NewFusedAdagrad creates the fused optimizer. Accumulators are allocated at
// construction in the working dtype of each parameter.
func NewFusedAdagrad(params []*nn.Parameter, config Config) (*FusedAdagrad, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	sums := make(map[*nn.Parameter]*tensor.RawTensor, len(params))
	for _, p := range params {
		sums[p] = tensor.Zeros(p.Tensor().Shape(), accumulatorDType(p.Tensor().DType()))
	}

	return &FusedAdagrad{
		params:   params,
		cfg:      config,
		sums:     sums,
		parallel: parallel.DefaultConfig(),
	}, nil
}

// accumulatorDType picks the state dtype for a given storage dtype.
func accumulatorDType(dt tensor.DataType) tensor.DataType {
	if dt.IsNarrow() {
		return tensor.Float32
	}
	return dt
}

// SetParallelism overrides the worker configuration. Useful for benchmarks
// and for forcing sequential execution in tests.
func (o *FusedAdagrad) SetParallelism(cfg parallel.Config) {
	o.parallel = cfg
}

// Step performs a single fused optimization step over all owned parameters.
//
// Parameters with no attached gradient are skipped. Shape disagreement
// aborts the step with ErrDimensionMismatch before any kernel runs for the
// offending parameter.
func (o *FusedAdagrad) Step() error {
	for i, p := range o.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if err := checkStep(i, p, grad); err != nil {
			return err
		}
		if grad.DType() != p.Tensor().DType() {
			return fmt.Errorf("%w: parameter %d (%s): grad dtype %s vs param dtype %s",
				ErrDimensionMismatch, i, p.Name(), grad.DType(), p.Tensor().DType())
		}
		o.launch(p, grad)
	}
	o.t++
	return nil
}

// launch dispatches the kernel for one parameter. ForChunks waits for every
// worker before returning, so the buffers are fully written when Step's
// caller reads them back.
func (o *FusedAdagrad) launch(p *nn.Parameter, grad *tensor.RawTensor) {
	n := p.Tensor().NumElements()
	acc := o.sums[p]

	switch p.Tensor().DType() {
	case tensor.Float32:
		param, g, a := p.Tensor().AsFloat32(), grad.AsFloat32(), acc.AsFloat32()
		lr, eps, wd := float32(o.cfg.LR), float32(o.cfg.Eps), float32(o.cfg.WeightDecay)
		parallel.ForChunks(n, func(start, end int) {
			adagradKernel(param[start:end], g[start:end], a[start:end], lr, eps, wd)
		}, o.parallel)
	case tensor.Float64:
		param, g, a := p.Tensor().AsFloat64(), grad.AsFloat64(), acc.AsFloat64()
		parallel.ForChunks(n, func(start, end int) {
			adagradKernel(param[start:end], g[start:end], a[start:end], o.cfg.LR, o.cfg.Eps, o.cfg.WeightDecay)
		}, o.parallel)
	case tensor.Float16:
		param, g, a := p.Tensor().AsUint16(), grad.AsUint16(), acc.AsFloat32()
		lr, eps, wd := float32(o.cfg.LR), float32(o.cfg.Eps), float32(o.cfg.WeightDecay)
		parallel.ForChunks(n, func(start, end int) {
			adagradKernelNarrow(param[start:end], g[start:end], a[start:end],
				tensor.Float16ToFloat32, tensor.Float32ToFloat16, lr, eps, wd)
		}, o.parallel)
	case tensor.BFloat16:
		param, g, a := p.Tensor().AsUint16(), grad.AsUint16(), acc.AsFloat32()
		lr, eps, wd := float32(o.cfg.LR), float32(o.cfg.Eps), float32(o.cfg.WeightDecay)
		parallel.ForChunks(n, func(start, end int) {
			adagradKernelNarrow(param[start:end], g[start:end], a[start:end],
				tensor.BFloat16ToFloat32, tensor.Float32ToBFloat16, lr, eps, wd)
		}, o.parallel)
	}
}

// float is the compute-precision constraint for the fused kernels.
type float interface {
	~float32 | ~float64
}

// adagradKernel is the fused update for storage == compute precision.
// One load/store pair per element; no cross-element dependencies.
func adagradKernel[T float](param, grad, acc []T, lr, eps, wd T) {
	for i := range param {
		g := grad[i]
		if wd != 0 {
			g += wd * param[i]
		}
		acc[i] += g * g
		param[i] -= lr * g / (T(math.Sqrt(float64(acc[i]))) + eps)
	}
}

// adagradKernelNarrow is the fused update for 16-bit storage with float32
// compute precision. The load/store pair parameterizes the storage format,
// so float16 and bfloat16 share one kernel body.
func adagradKernelNarrow(param, grad []uint16, acc []float32,
	load func(uint16) float32, store func(float32) uint16,
	lr, eps, wd float32,
) {
	for i := range param {
		p := load(param[i])
		g := load(grad[i])
		if wd != 0 {
			g += wd * p
		}
		acc[i] += g * g
		param[i] = store(p - lr*g/(float32(math.Sqrt(float64(acc[i])))+eps))
	}
}

// ZeroGrad detaches gradients from all parameters.
func (o *FusedAdagrad) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (o *FusedAdagrad) GetLR() float64 {
	return o.cfg.LR
}

// SetLR updates the learning rate.
func (o *FusedAdagrad) SetLR(lr float64) {
	o.cfg.LR = lr
}

// GetStep returns the number of completed steps.
func (o *FusedAdagrad) GetStep() int {
	return o.t
}

// Accumulator exposes the squared-gradient state for a parameter, or nil if
// the parameter is not owned by this optimizer.
func (o *FusedAdagrad) Accumulator(p *nn.Parameter) *tensor.RawTensor {
	return o.sums[p]
}

// StateDict returns the optimizer state for serialization.
//
// Accumulator buffers are exported under "sum.{param_index}" keys.
func (o *FusedAdagrad) StateDict() map[string]*tensor.RawTensor {
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
func (o *FusedAdagrad) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, p := range o.params {
		raw, exists := stateDict[fmt.Sprintf("sum.%d", i)]
		if !exists {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("accumulator shape mismatch for parameter %d: expected %v, got %v",
				i, p.Tensor().Shape(), raw.Shape())
		}
		o.sums[p] = tensor.Cast(raw, accumulatorDType(p.Tensor().DType()))
	}
	return nil
}
