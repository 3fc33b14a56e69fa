// Copyright 2026 Scanrev Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package state provides the tree-structured loop state: an ordered tree of
// named tensor leaves that flattens deterministically and compares
// structurally.
//
// Example:
//
//	x, _ := tensor.FromSlice([]float64{0, 0, 0}, tensor.Shape{3}, tensor.CPU)
//	v, _ := tensor.FromSlice([]float64{1, 1, 1}, tensor.Shape{3}, tensor.CPU)
//	s := state.New().Set("x", x).Set("v", v)
package state

import (
	"github.com/scanrev-ml/scanrev/internal/state"
	"github.com/scanrev-ml/scanrev/tensor"
)

// State is an ordered tree of named fields, each a leaf tensor or a nested
// sub-state.
type State = state.State

// Field is a single named entry of a State.
type Field = state.Field

// New creates an empty state.
func New() *State {
	return state.New()
}

// FromLeaves builds a state with the template's structure from a depth-first
// leaf list.
func FromLeaves(template *State, leaves []*tensor.RawTensor) *State {
	return state.FromLeaves(template, leaves)
}

// CheckSameStructure reports the first structural difference between two
// states, or nil when their structures match.
func CheckSameStructure(a, b *State) error {
	return state.CheckSameStructure(a, b)
}
