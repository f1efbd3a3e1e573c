package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float32)
func Zeros(shape Shape, dtype DataType) *RawTensor {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	// Data is already zero-initialized by make()
	return raw
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(tensor.Shape{3, 3}, 3.14, tensor.Float32)
func Full(shape Shape, value float64, dtype DataType) *RawTensor {
	t := Zeros(shape, dtype)
	switch dtype {
	case Float32:
		data := t.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	case Float16:
		data := t.AsUint16()
		v := Float32ToFloat16(float32(value))
		for i := range data {
			data[i] = v
		}
	case BFloat16:
		data := t.AsUint16()
		v := Float32ToBFloat16(float32(value))
		for i := range data {
			data[i] = v
		}
	}
	return t
}

// FromSlice creates a Float32 tensor from raw values.
// The slice length must match the shape's element count.
func FromSlice(values []float32, shape Shape) (*RawTensor, error) {
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d doesn't match shape %v (%d elements)",
			len(values), shape, shape.NumElements())
	}
	t := Zeros(shape, Float32)
	copy(t.AsFloat32(), values)
	return t, nil
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
//
// The caller supplies the random source, so a fixed seed reproduces the exact
// value sequence across runs. Values are drawn as float64 and rounded once to
// the storage dtype; two tensors of different dtypes drawn from sources with
// the same seed therefore start from the same stochastic stream.
// Note: uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
//
// Example:
//
//	rng := rand.New(rand.NewSource(9876))
//	t := tensor.Rand(tensor.Shape{10, 10}, tensor.Float32, rng)
func Rand(shape Shape, dtype DataType, rng *rand.Rand) *RawTensor {
	t := Zeros(shape, dtype)
	switch dtype {
	case Float32:
		data := t.AsFloat32()
		for i := range data {
			data[i] = float32(rng.Float64()) //nolint:gosec // G404: ML uses math/rand intentionally
		}
	case Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = rng.Float64() //nolint:gosec // G404: ML uses math/rand intentionally
		}
	case Float16:
		data := t.AsUint16()
		for i := range data {
			data[i] = Float32ToFloat16(float32(rng.Float64())) //nolint:gosec // G404
		}
	case BFloat16:
		data := t.AsUint16()
		for i := range data {
			data[i] = Float32ToBFloat16(float32(rng.Float64())) //nolint:gosec // G404
		}
	}
	return t
}
