// Copyright 2025 Ember ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the parameter container shared by Ember optimizers.
package nn

import (
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Parameter is a named tensor with an optional gradient.
type Parameter = nn.Parameter

// NewParameter wraps a tensor as a trainable parameter.
//
// Example:
//
//	t := tensor.Rand(tensor.Shape{4096}, tensor.Float32, rng)
//	p := nn.NewParameter("weight", t)
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}
