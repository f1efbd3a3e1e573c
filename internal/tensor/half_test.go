package tensor

import (
	"math"
	"testing"
)

func TestFloat16RoundTrip_Exact(t *testing.T) {
	// Values exactly representable in binary16 survive a round trip.
	values := []float32{0, 1, -1, 0.5, 2048, 65504, -65504, 0.000030517578125}

	for _, v := range values {
		got := Float16ToFloat32(Float32ToFloat16(v))
		if got != v {
			t.Errorf("f16 round trip of %g = %g", v, got)
		}
	}
}

func TestFloat16Rounding(t *testing.T) {
	// 1 + 2^-11 is exactly halfway between 1.0 and the next f16 value;
	// nearest-even rounds down to 1.0.
	halfway := float32(1.0 + 1.0/2048.0)
	if got := Float16ToFloat32(Float32ToFloat16(halfway)); got != 1.0 {
		t.Errorf("nearest-even of %g = %g, want 1", halfway, got)
	}

	// Just above halfway rounds up.
	above := float32(1.0 + 1.5/2048.0)
	want := float32(1.0 + 1.0/1024.0)
	if got := Float16ToFloat32(Float32ToFloat16(above)); got != want {
		t.Errorf("round of %g = %g, want %g", above, got, want)
	}
}

func TestFloat16Specials(t *testing.T) {
	inf := float32(math.Inf(1))
	if got := Float16ToFloat32(Float32ToFloat16(inf)); !math.IsInf(float64(got), 1) {
		t.Errorf("+Inf round trip = %g", got)
	}
	if got := Float16ToFloat32(Float32ToFloat16(float32(math.Inf(-1)))); !math.IsInf(float64(got), -1) {
		t.Errorf("-Inf round trip = %g", got)
	}
	if got := Float16ToFloat32(Float32ToFloat16(float32(math.NaN()))); !math.IsNaN(float64(got)) {
		t.Errorf("NaN round trip = %g", got)
	}

	// Overflow saturates to Inf.
	if got := Float16ToFloat32(Float32ToFloat16(1e6)); !math.IsInf(float64(got), 1) {
		t.Errorf("f16 overflow = %g, want +Inf", got)
	}

	// Tiny values flush to zero.
	if got := Float16ToFloat32(Float32ToFloat16(1e-10)); got != 0 {
		t.Errorf("f16 underflow = %g, want 0", got)
	}
}

func TestFloat16Subnormals(t *testing.T) {
	// Smallest positive subnormal: 2^-24.
	tiny := float32(5.960464477539063e-08)
	if got := Float16ToFloat32(Float32ToFloat16(tiny)); got != tiny {
		t.Errorf("smallest subnormal round trip = %g, want %g", got, tiny)
	}
}

func TestFloat16RelativeError(t *testing.T) {
	// Rounding error over [0,1) stays within half a ulp (2^-11 relative).
	for i := 0; i < 1000; i++ {
		v := float32(i) / 1000.0
		got := Float16ToFloat32(Float32ToFloat16(v))
		diff := math.Abs(float64(got - v))
		if diff > 1.0/2048.0 {
			t.Fatalf("f16(%g) = %g, error %g exceeds 2^-11", v, got, diff)
		}
	}
}

func TestBFloat16RoundTrip_Exact(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, 256, -1.5, 0.0078125}

	for _, v := range values {
		got := BFloat16ToFloat32(Float32ToBFloat16(v))
		if got != v {
			t.Errorf("bf16 round trip of %g = %g", v, got)
		}
	}
}

func TestBFloat16Rounding(t *testing.T) {
	// bf16 keeps 8 mantissa bits (incl. implicit); 1 + 2^-9 rounds to 1 by
	// nearest-even, 1 + 3*2^-9 rounds up to 1 + 2^-7.
	if got := BFloat16ToFloat32(Float32ToBFloat16(1.0 + 1.0/512.0)); got != 1.0 {
		t.Errorf("nearest-even halfway = %g, want 1", got)
	}
	want := float32(1.0 + 1.0/128.0)
	if got := BFloat16ToFloat32(Float32ToBFloat16(1.0 + 3.0/512.0)); got != want {
		t.Errorf("round up = %g, want %g", got, want)
	}
}

func TestBFloat16Specials(t *testing.T) {
	if got := BFloat16ToFloat32(Float32ToBFloat16(float32(math.Inf(1)))); !math.IsInf(float64(got), 1) {
		t.Errorf("+Inf round trip = %g", got)
	}
	if got := BFloat16ToFloat32(Float32ToBFloat16(float32(math.NaN()))); !math.IsNaN(float64(got)) {
		t.Errorf("NaN round trip = %g", got)
	}
}
