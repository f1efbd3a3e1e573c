// Copyright 2025 Ember ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/ember-ml/ember/internal/tensor"
)

// Shape describes tensor dimensions.
type Shape = tensor.Shape

// DataType identifies the storage dtype of a tensor.
type DataType = tensor.DataType

// Storage dtypes.
const (
	Float32  = tensor.Float32
	Float64  = tensor.Float64
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
)

// ParseDataType maps a dtype name ("float32", "bf16", ...) to its DataType.
func ParseDataType(name string) (DataType, bool) {
	return tensor.ParseDataType(name)
}

// RawTensor is a flat, contiguous, reference-counted buffer with a shape.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32() // zero-copy typed view
//	clone := raw.Clone()    // shares the buffer via reference counting
type RawTensor = tensor.RawTensor

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// Zeros returns a zero-filled tensor. It panics on an invalid shape.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	return tensor.Zeros(shape, dtype)
}

// Full returns a tensor filled with value, rounded to the storage dtype.
func Full(shape Shape, value float64, dtype DataType) *RawTensor {
	return tensor.Full(shape, value, dtype)
}

// FromSlice builds a float32 tensor from values.
func FromSlice(values []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(values, shape)
}

// Rand fills a tensor with uniform [0, 1) values drawn from rng. The draw
// sequence is the same for every dtype; narrow dtypes round each value once.
func Rand(shape Shape, dtype DataType, rng *rand.Rand) *RawTensor {
	return tensor.Rand(shape, dtype, rng)
}

// Cast converts a tensor to the given dtype. Same-dtype casts deep-copy.
func Cast(t *RawTensor, dtype DataType) *RawTensor {
	return tensor.Cast(t, dtype)
}

// Float16ToFloat32 decodes an IEEE 754 half-precision value.
func Float16ToFloat32(h uint16) float32 { return tensor.Float16ToFloat32(h) }

// Float32ToFloat16 encodes to half precision with round-to-nearest-even.
func Float32ToFloat16(f float32) uint16 { return tensor.Float32ToFloat16(f) }

// BFloat16ToFloat32 decodes a bfloat16 value.
func BFloat16ToFloat32(b uint16) float32 { return tensor.BFloat16ToFloat32(b) }

// Float32ToBFloat16 encodes to bfloat16 with round-to-nearest-even.
func Float32ToBFloat16(f float32) uint16 { return tensor.Float32ToBFloat16(f) }
