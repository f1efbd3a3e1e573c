// Copyright 2025 Ember ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the storage substrate for Ember optimizers.
//
// # Overview
//
// Tensors here are flat, contiguous, reference-counted buffers with a shape
// attached. This package provides:
//   - RawTensor with zero-copy typed accessors (AsFloat32, AsFloat64, AsUint16)
//   - Four storage dtypes: float32, float64, float16, bfloat16
//   - Seeded random initialization that is dtype-independent
//   - Conversions between storage dtypes, including the 16-bit codecs
//
// # Basic Usage
//
//	import (
//	    "math/rand"
//
//	    "github.com/ember-ml/ember/tensor"
//	)
//
//	func main() {
//	    rng := rand.New(rand.NewSource(42))
//	    t := tensor.Rand(tensor.Shape{4096, 1024}, tensor.Float32, rng)
//	    data := t.AsFloat32() // zero-copy view
//	    _ = data
//	}
//
// # Narrow dtypes
//
// Float16 and BFloat16 values are stored as raw uint16 lanes; use AsUint16
// together with Float16ToFloat32 / BFloat16ToFloat32 to read them, or Cast
// to widen a whole tensor.
package tensor
