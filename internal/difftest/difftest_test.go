package difftest_test

import (
	"testing"

	"github.com/ember-ml/ember/internal/difftest"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCase builds a harness, runs it to completion, and fails the test on
// the first violating iteration with its observed diffs.
func runCase(t *testing.T, shapes []tensor.Shape, opts difftest.Options) []difftest.Report {
	t.Helper()

	h, err := difftest.New(shapes, opts)
	require.NoError(t, err)

	reports, err := h.Run()
	require.NoError(t, err)
	require.Len(t, reports, h.Tolerance().Iters)
	return reports
}

// TestFloat compares the fused float32 kernel against the reference over a
// single large tensor with weight decay enabled.
func TestFloat(t *testing.T) {
	runCase(t, []tensor.Shape{{278011}}, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
	})
}

// TestFloat64 covers the double-precision storage path.
func TestFloat64(t *testing.T) {
	runCase(t, []tensor.Shape{{10007}}, difftest.Options{
		DType:  tensor.Float64,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
	})
}

// TestBFloat16 compares bfloat16 computation against float32 as the gold
// standard, using the fused optimizer for both sides. The standard
// reference is not used here: a half-precision baseline is itself
// numerically unstable, so the tolerance is widened and the relative check
// disabled.
func TestBFloat16(t *testing.T) {
	tol := difftest.DefaultTolerance()
	tol.MaxAbsDiff = 1e-2
	tol.MaxRelDiff = 0 // abs-only

	runCase(t, []tensor.Shape{{278011}}, difftest.Options{
		DType:         tensor.BFloat16,
		Config:        optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
		Tol:           tol,
		FusedBaseline: true,
	})
}

// TestFloat16 runs the same widened-tolerance route for IEEE half precision.
func TestFloat16(t *testing.T) {
	tol := difftest.DefaultTolerance()
	tol.MaxAbsDiff = 1e-2
	tol.MaxRelDiff = 0 // abs-only

	runCase(t, []tensor.Shape{{278011}}, difftest.Options{
		DType:         tensor.Float16,
		Config:        optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
		Tol:           tol,
		FusedBaseline: true,
	})
}

// TestMultiParams drives a realistic multi-tensor parameter set: embedding,
// bias, projection and scalar shapes stepped together.
func TestMultiParams(t *testing.T) {
	if testing.Short() {
		t.Skip("44M-element parameter set; skipped in -short mode")
	}

	shapes := []tensor.Shape{
		{4096, 1024},
		{4096},
		{4096, 2048},
		{32320, 1024},
		{1},
	}
	runCase(t, shapes, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8},
	})
}

// TestAdagradOption exercises the degenerate single-element case with
// non-default hyperparameters.
func TestAdagradOption(t *testing.T) {
	runCase(t, []tensor.Shape{{1}}, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 0.01, Eps: 3e-6},
	})
}

// TestDeterminism: two runs from the same seed must produce bit-identical
// final parameters on both sides.
func TestDeterminism(t *testing.T) {
	opts := difftest.Options{
		Seed:   1234,
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
	}
	shapes := []tensor.Shape{{4096}, {257}}

	a, err := difftest.New(shapes, opts)
	require.NoError(t, err)
	b, err := difftest.New(shapes, opts)
	require.NoError(t, err)

	_, err = a.Run()
	require.NoError(t, err)
	_, err = b.Run()
	require.NoError(t, err)

	for i := range a.TstParams() {
		av := a.TstParams()[i].Tensor().AsFloat32()
		bv := b.TstParams()[i].Tensor().AsFloat32()
		for j := range av {
			require.Equal(t, av[j], bv[j], "candidate param %d element %d differs between seeded runs", i, j)
		}

		ar := a.RefParams()[i].Tensor().AsFloat32()
		br := b.RefParams()[i].Tensor().AsFloat32()
		for j := range ar {
			require.Equal(t, ar[j], br[j], "reference param %d element %d differs between seeded runs", i, j)
		}
	}
}

// TestToleranceViolation plants a divergence between the two sides and
// checks that the first iteration reports it with its diffs.
func TestToleranceViolation(t *testing.T) {
	h, err := difftest.New([]tensor.Shape{{1024}}, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8, WeightDecay: 1e-5},
	})
	require.NoError(t, err)

	// Knock one candidate element well past the absolute tolerance.
	h.TstParams()[0].Tensor().AsFloat32()[0] += 1e-3

	reports, err := h.Run()
	require.Error(t, err)

	var tolErr *difftest.ToleranceError
	require.ErrorAs(t, err, &tolErr)
	assert.Equal(t, 0, tolErr.Iter, "planted divergence must trip the first compare")
	assert.Greater(t, tolErr.MaxAbsDiff, 1e-4)
	assert.Contains(t, tolErr.Error(), "max abs diff")
	require.NotEmpty(t, reports)
	assert.Equal(t, tolErr.MaxAbsDiff, reports[len(reports)-1].MaxAbsDiff)
}

// TestRelFloorGuard: a near-zero reference value must not produce a
// spurious relative failure.
func TestRelFloorGuard(t *testing.T) {
	h, err := difftest.New([]tensor.Shape{{4}}, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8},
	})
	require.NoError(t, err)

	// Plant a tiny reference value with a 100% relative (but tiny absolute)
	// divergence against the candidate.
	h.RefParams()[0].Tensor().AsFloat32()[0] = 1e-9
	h.TstParams()[0].Tensor().AsFloat32()[0] = 2e-9

	maxAbs, maxRel := h.MaxDiff()
	assert.InDelta(t, 1e-9, maxAbs, 1e-12)
	assert.Zero(t, maxRel, "sub-floor elements must be excluded from the relative diff")
}

// TestNarrowNeedsFusedBaseline: 16-bit candidates cannot run against the
// standard reference.
func TestNarrowNeedsFusedBaseline(t *testing.T) {
	_, err := difftest.New([]tensor.Shape{{8}}, difftest.Options{
		DType:  tensor.Float16,
		Config: optim.Config{LR: 0.01, Eps: 1e-8},
	})
	require.Error(t, err)
}

// TestAbsDiffsShrinkWithIterations is a sanity check on the report stream:
// diffs stay bounded and every iteration is reported in order.
func TestReportsOrdered(t *testing.T) {
	reports := runCase(t, []tensor.Shape{{2048}}, difftest.Options{
		DType:  tensor.Float32,
		Config: optim.Config{LR: 5e-4, Eps: 1e-8},
	})

	for i, r := range reports {
		assert.Equal(t, i, r.Iter)
	}
}
