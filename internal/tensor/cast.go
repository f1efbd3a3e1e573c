package tensor

// Cast converts a tensor to a different float dtype, returning a new tensor.
//
// Widening casts (f16/bf16 -> f32, f32 -> f64) are exact; narrowing casts
// round to nearest-even through the half codecs. Casting to the same dtype
// returns a deep copy so callers can mutate the result freely.
func Cast(t *RawTensor, dtype DataType) *RawTensor {
	if t.dtype == dtype {
		return t.CloneData()
	}

	out := Zeros(t.shape, dtype)
	n := t.NumElements()

	// Typed fast paths for the pairs the optimizer and harness actually hit.
	switch {
	case t.dtype == Float16 && dtype == Float32:
		src, dst := t.AsUint16(), out.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = Float16ToFloat32(src[i])
		}
	case t.dtype == BFloat16 && dtype == Float32:
		src, dst := t.AsUint16(), out.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = BFloat16ToFloat32(src[i])
		}
	case t.dtype == Float32 && dtype == Float16:
		src, dst := t.AsFloat32(), out.AsUint16()
		for i := 0; i < n; i++ {
			dst[i] = Float32ToFloat16(src[i])
		}
	case t.dtype == Float32 && dtype == BFloat16:
		src, dst := t.AsFloat32(), out.AsUint16()
		for i := 0; i < n; i++ {
			dst[i] = Float32ToBFloat16(src[i])
		}
	case t.dtype == Float32 && dtype == Float64:
		src, dst := t.AsFloat32(), out.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = float64(src[i])
		}
	case t.dtype == Float64 && dtype == Float32:
		src, dst := t.AsFloat64(), out.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = float32(src[i])
		}
	default:
		for i := 0; i < n; i++ {
			storeAt(out, i, loadAt(t, i))
		}
	}
	return out
}

// loadAt reads element i widened to float64, the widest supported precision.
func loadAt(t *RawTensor, i int) float64 {
	switch t.dtype {
	case Float32:
		return float64(t.AsFloat32()[i])
	case Float64:
		return t.AsFloat64()[i]
	case Float16:
		return float64(Float16ToFloat32(t.AsUint16()[i]))
	case BFloat16:
		return float64(BFloat16ToFloat32(t.AsUint16()[i]))
	default:
		panic("unknown data type")
	}
}

// storeAt writes element i, rounding to the storage dtype.
func storeAt(t *RawTensor, i int, v float64) {
	switch t.dtype {
	case Float32:
		t.AsFloat32()[i] = float32(v)
	case Float64:
		t.AsFloat64()[i] = v
	case Float16:
		t.AsUint16()[i] = Float32ToFloat16(float32(v))
	case BFloat16:
		t.AsUint16()[i] = Float32ToBFloat16(float32(v))
	default:
		panic("unknown data type")
	}
}

// At returns element i of t widened to float64. Convenience for tests and the
// differential harness; kernels use the typed accessors directly.
func At(t *RawTensor, i int) float64 {
	return loadAt(t, i)
}

// SetAt stores v into element i of t, rounding to the storage dtype.
func SetAt(t *RawTensor, i int, v float64) {
	storeAt(t, i, v)
}
