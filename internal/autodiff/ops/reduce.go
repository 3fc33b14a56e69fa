package ops

import "github.com/scanrev-ml/scanrev/internal/tensor"

// SumOp represents a total reduction: output = sum(x), shape {1}.
//
// Backward: every element contributes with weight 1, so the scalar output
// gradient is broadcast to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward computes the input gradient for sum.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	var g float64
	switch outputGrad.DType() {
	case tensor.Float32:
		g = float64(outputGrad.AsFloat32()[0])
	case tensor.Float64:
		g = outputGrad.AsFloat64()[0]
	}
	return []*tensor.RawTensor{tensor.FullLike(op.input, g)}
}

// Inputs returns the input tensors.
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }
