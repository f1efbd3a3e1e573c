// Package difftest drives a reference and a candidate optimizer over the
// same stochastic gradient stream and checks that their parameters agree
// within tolerance.
//
// The state machine per case is
//
//	Init -> (GenGrads -> StepBoth -> MaxDiff) x Iters -> pass/fail
//
// with fail-fast on the first violating iteration.
package difftest

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// DefaultSeed matches the seed the suite has always run with. Override it
// through Options.
const DefaultSeed = 9876

// ToleranceSpec controls the acceptance criteria for one case.
type ToleranceSpec struct {
	MaxAbsDiff float64 // Max allowed elementwise |ref - tst|
	MaxRelDiff float64 // Max allowed |ref - tst| / |ref|; <= 0 disables the check
	Iters      int     // Number of gradient/step/compare rounds
	RelFloor   float64 // Elements with |ref| below this are abs-only
}

// DefaultTolerance returns the standard acceptance criteria: abs 1e-6,
// rel 1, 7 iterations.
//
// RelFloor guards the relative comparison against near-zero reference
// values, where a sub-tolerance absolute difference would otherwise show up
// as an arbitrarily large relative one.
func DefaultTolerance() ToleranceSpec {
	return ToleranceSpec{
		MaxAbsDiff: 1e-6,
		MaxRelDiff: 1,
		Iters:      7,
		RelFloor:   1e-6,
	}
}

// Options configures a differential case.
type Options struct {
	Seed   int64           // Random seed; 0 means DefaultSeed
	DType  tensor.DataType // Candidate storage dtype
	Config optim.Config    // Hyperparameters, shared by both sides
	Tol    ToleranceSpec   // Zero value means DefaultTolerance

	// FusedBaseline compares against a float32 FusedAdagrad instead of the
	// standard reference. Required for 16-bit candidates: a narrow reference
	// is numerically unstable, so the float32 fused optimizer is the gold
	// standard there, with a widened absolute tolerance set by the caller.
	FusedBaseline bool

	// Parallel overrides worker configuration for the candidate (and the
	// baseline when FusedBaseline is set). Zero value means defaults.
	Parallel *parallel.Config
}

// ToleranceError reports the first violating iteration of a run.
type ToleranceError struct {
	Iter       int     // Violating iteration (0-based)
	MaxAbsDiff float64 // Observed max absolute difference
	MaxRelDiff float64 // Observed max relative difference
	Spec       ToleranceSpec
}

func (e *ToleranceError) Error() string {
	if e.MaxAbsDiff > e.Spec.MaxAbsDiff {
		return fmt.Sprintf("iteration %d: max abs diff %.3e exceeds %.3e (max rel diff %.3e)",
			e.Iter, e.MaxAbsDiff, e.Spec.MaxAbsDiff, e.MaxRelDiff)
	}
	return fmt.Sprintf("iteration %d: max rel diff %.3e exceeds %.3e (max abs diff %.3e)",
		e.Iter, e.MaxRelDiff, e.Spec.MaxRelDiff, e.MaxAbsDiff)
}

// Report holds the observed diffs for one iteration.
type Report struct {
	Iter       int
	MaxAbsDiff float64
	MaxRelDiff float64
}

// Harness owns the reference and candidate parameter sets and steps them in
// lockstep. Each case constructs a fresh Harness; nothing is shared.
type Harness struct {
	opts      Options
	rng       *rand.Rand
	refParams []*nn.Parameter
	tstParams []*nn.Parameter
	refOpt    optim.Optimizer
	tstOpt    optim.Optimizer
}

// New builds a harness for the given parameter shapes.
//
// Initial values are drawn once in the candidate dtype; the reference side
// receives a float32 cast of those exact values when FusedBaseline is set,
// otherwise a same-dtype deep copy. Both sides therefore start from
// literally the same numbers.
func New(shapes []tensor.Shape, opts Options) (*Harness, error) {
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.Tol == (ToleranceSpec{}) {
		opts.Tol = DefaultTolerance()
	}
	if opts.DType.IsNarrow() && !opts.FusedBaseline {
		return nil, fmt.Errorf("%s candidate requires a fused float32 baseline", opts.DType)
	}

	h := &Harness{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)), //nolint:gosec // G404: deterministic test stream
	}

	for i, shape := range shapes {
		init := tensor.Rand(shape, opts.DType, h.rng)

		ref := init.CloneData()
		if opts.FusedBaseline {
			ref = tensor.Cast(init, tensor.Float32)
		}
		h.refParams = append(h.refParams, nn.NewParameter(fmt.Sprintf("ref.%d", i), ref))
		h.tstParams = append(h.tstParams, nn.NewParameter(fmt.Sprintf("tst.%d", i), init.CloneData()))
	}

	tst, err := optim.NewFusedAdagrad(h.tstParams, opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Parallel != nil {
		tst.SetParallelism(*opts.Parallel)
	}
	h.tstOpt = tst

	if opts.FusedBaseline {
		refOpt, err := optim.NewFusedAdagrad(h.refParams, opts.Config)
		if err != nil {
			return nil, err
		}
		if opts.Parallel != nil {
			refOpt.SetParallelism(*opts.Parallel)
		}
		h.refOpt = refOpt
	} else {
		refOpt, err := optim.NewAdagrad(h.refParams, opts.Config)
		if err != nil {
			return nil, err
		}
		h.refOpt = refOpt
	}

	return h, nil
}

// Tolerance returns the effective (defaulted) tolerance spec.
func (h *Harness) Tolerance() ToleranceSpec { return h.opts.Tol }

// RefParams returns the reference parameter set.
func (h *Harness) RefParams() []*nn.Parameter { return h.refParams }

// TstParams returns the candidate parameter set.
func (h *Harness) TstParams() []*nn.Parameter { return h.tstParams }

// GenGrads draws one random gradient per parameter pair.
//
// The draw happens in the candidate dtype; the reference consumes the
// float32 cast of the already-rounded values when running against a fused
// baseline, so both sides see the same stochastic source.
func (h *Harness) GenGrads() {
	for i, tst := range h.tstParams {
		grad := tensor.Rand(tst.Tensor().Shape(), h.opts.DType, h.rng)
		tst.SetGrad(grad)

		if h.opts.FusedBaseline {
			h.refParams[i].SetGrad(tensor.Cast(grad, tensor.Float32))
		} else {
			h.refParams[i].SetGrad(grad)
		}
	}
}

// StepBoth advances the reference and candidate optimizers by one step.
func (h *Harness) StepBoth() error {
	if err := h.refOpt.Step(); err != nil {
		return fmt.Errorf("reference step: %w", err)
	}
	if err := h.tstOpt.Step(); err != nil {
		return fmt.Errorf("candidate step: %w", err)
	}
	return nil
}

// MaxDiff computes the elementwise max absolute and max relative difference
// across all parameter pairs, with the candidate cast to the reference
// dtype before differencing.
//
// Elements whose reference magnitude is under RelFloor are excluded from
// the relative diff; their absolute diff still counts.
func (h *Harness) MaxDiff() (maxAbs, maxRel float64) {
	floor := h.opts.Tol.RelFloor
	for i, ref := range h.refParams {
		refT := ref.Tensor()
		tstT := tensor.Cast(h.tstParams[i].Tensor(), refT.DType())

		// The reference side is always float32 or float64 storage.
		switch refT.DType() {
		case tensor.Float32:
			r, s := refT.AsFloat32(), tstT.AsFloat32()
			for j := range r {
				maxAbs, maxRel = accumDiff(float64(r[j]), float64(s[j]), floor, maxAbs, maxRel)
			}
		case tensor.Float64:
			r, s := refT.AsFloat64(), tstT.AsFloat64()
			for j := range r {
				maxAbs, maxRel = accumDiff(r[j], s[j], floor, maxAbs, maxRel)
			}
		}
		tstT.Release()
	}
	return maxAbs, maxRel
}

// accumDiff folds one element pair into the running maxima.
func accumDiff(r, s, floor, maxAbs, maxRel float64) (float64, float64) {
	d := math.Abs(r - s)
	if d > maxAbs {
		maxAbs = d
	}
	if ar := math.Abs(r); ar >= floor {
		if rel := d / ar; rel > maxRel {
			maxRel = rel
		}
	}
	return maxAbs, maxRel
}

// Run executes the full iteration sequence, failing fast on the first
// tolerance violation. The returned reports cover every completed
// iteration, including the violating one.
func (h *Harness) Run() ([]Report, error) {
	tol := h.opts.Tol
	reports := make([]Report, 0, tol.Iters)

	for iter := 0; iter < tol.Iters; iter++ {
		h.GenGrads()
		if err := h.StepBoth(); err != nil {
			return reports, err
		}

		maxAbs, maxRel := h.MaxDiff()
		reports = append(reports, Report{Iter: iter, MaxAbsDiff: maxAbs, MaxRelDiff: maxRel})

		if maxAbs > tol.MaxAbsDiff || (tol.MaxRelDiff > 0 && maxRel > tol.MaxRelDiff) {
			return reports, &ToleranceError{
				Iter:       iter,
				MaxAbsDiff: maxAbs,
				MaxRelDiff: maxRel,
				Spec:       tol,
			}
		}
	}
	return reports, nil
}
