// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface: the forward result is
// computed by the backend, and Backward computes input cotangents given the
// output cotangent (the reverse-mode chain rule, one link at a time).
package ops

import "github.com/scanrev-ml/scanrev/internal/tensor"

// Operation represents a differentiable operation in the recorded computation.
// Each operation keeps its inputs and output from the forward pass and
// computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	// A nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
