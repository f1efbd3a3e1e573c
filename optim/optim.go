// Copyright 2025 Ember ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides Adagrad optimizers for the Ember framework.
//
// Two implementations share one update rule. Adagrad is the trusted
// reference: a plain per-element loop carried out in float64. FusedAdagrad
// is the production kernel: a single fused pass per parameter, parallelized
// across chunks, with mixed-precision support for float16 and bfloat16
// storage.
package optim

import (
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
)

// Optimizer is the common interface of all optimizers.
type Optimizer = optim.Optimizer

// Config holds the Adagrad hyperparameters.
type Config = optim.Config

// Sentinel errors returned by optimizer constructors and Step.
var (
	ErrInvalidConfig     = optim.ErrInvalidConfig
	ErrDimensionMismatch = optim.ErrDimensionMismatch
)

// Adagrad is the reference implementation.
type Adagrad = optim.Adagrad

// NewAdagrad creates the reference Adagrad optimizer.
//
// Example:
//
//	opt, err := optim.NewAdagrad(params, optim.Config{
//	    LR:  5e-4,
//	    Eps: 1e-8,
//	})
func NewAdagrad(params []*nn.Parameter, config Config) (*Adagrad, error) {
	return optim.NewAdagrad(params, config)
}

// FusedAdagrad is the fused, parallel implementation.
type FusedAdagrad = optim.FusedAdagrad

// NewFusedAdagrad creates the fused Adagrad optimizer.
func NewFusedAdagrad(params []*nn.Parameter, config Config) (*FusedAdagrad, error) {
	return optim.NewFusedAdagrad(params, config)
}
