// Copyright 2026 Scanrev Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loop provides the checkpointed, reverse-mode differentiable bounded
// loop.
//
// A Checkpointed loop applies a pure step function n times. Forward results
// are bit-identical to the naive unrolled loop; the backward pass reverses
// the trajectory from a sparse set of checkpoints with selective
// recomputation, holding O(log n) states for the default schedule instead of
// all n.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	step := func(s *state.State) *state.State {
//	    x := s.Get("x")
//	    return state.New().Set("x", backend.Tanh(x))
//	}
//	l, err := loop.NewCheckpointed(backend, step, 1000)
//	final, err := l.Forward(s0)
//	final, ctIn, paramGrads, err := l.VJP(s0, cotangent)
package loop

import (
	"github.com/scanrev-ml/scanrev/autodiff"
	"github.com/scanrev-ml/scanrev/internal/loop"
	"github.com/scanrev-ml/scanrev/tensor"
)

// StepFunc advances the loop state by one step. It must be pure and built
// from the backend's operations; the backward pass replays it.
type StepFunc = loop.StepFunc

// Primitive is the dispatch boundary for a host differentiation layer: a
// custom differentiation rule calls Forward and Backward here instead of
// tracing the loop's recursive implementation.
type Primitive = loop.Primitive

// Checkpointed is a bounded loop with a treeverse-style backward pass.
type Checkpointed = loop.Checkpointed

// Unrolled is the naive reference loop: one long tape over every step.
type Unrolled = loop.Unrolled

// ParamGrads maps captured parameter tensors to their accumulated cotangents.
type ParamGrads = loop.ParamGrads

// Stats reports checkpoint and recomputation counts for the most recent
// invocation.
type Stats = loop.Stats

// Schedule decides checkpoint placement and backward subdivision.
type Schedule = loop.Schedule

// Option configures a Checkpointed loop.
type Option = loop.Option

// Sentinel errors; test with errors.Is.
var (
	ErrShapeMismatch   = loop.ErrShapeMismatch
	ErrRecursionBudget = loop.ErrRecursionBudget
)

// Defaults for the bisection schedule and the recursion safety bound.
const (
	DefaultLeafSpan        = loop.DefaultLeafSpan
	DefaultRecursionBudget = loop.DefaultRecursionBudget
)

// NewCheckpointed creates a checkpointed loop applying step n times.
func NewCheckpointed(backend autodiff.BackwardCapable, step StepFunc, n int, opts ...Option) (*Checkpointed, error) {
	return loop.NewCheckpointed(backend, step, n, opts...)
}

// NewUnrolled creates a naive unrolled loop applying step n times.
func NewUnrolled(backend autodiff.BackwardCapable, step StepFunc, n int, params ...*tensor.RawTensor) (*Unrolled, error) {
	return loop.NewUnrolled(backend, step, n, params...)
}

// Bisection returns the recursive-bisection ("treeverse") schedule:
// O(log n) live checkpoints, O(n log n) total recomputation.
func Bisection(leafSpan int) Schedule {
	return loop.Bisection(leafSpan)
}

// Chunked returns the fixed-stride schedule: with the default stride of
// ceil(sqrt(n)), O(sqrt n) stored checkpoints and one extra forward pass.
func Chunked(stride int) Schedule {
	return loop.Chunked(stride)
}

// WithSchedule selects the checkpoint schedule.
func WithSchedule(s Schedule) Option {
	return loop.WithSchedule(s)
}

// WithRecursionBudget bounds the backward recursion depth.
func WithRecursionBudget(depth int) Option {
	return loop.WithRecursionBudget(depth)
}

// WithParameters registers tensors the step function closes over.
func WithParameters(params ...*tensor.RawTensor) Option {
	return loop.WithParameters(params...)
}
