package state

import (
	"github.com/pkg/errors"

	"github.com/scanrev-ml/scanrev/internal/tensor"
)

// ZerosLike returns a state with the same structure and zero-valued leaves.
// This is the additive identity of the cotangent algebra.
func (s *State) ZerosLike() *State {
	return s.Map(tensor.ZerosLike)
}

// Map returns a state with the same structure whose leaves are f(leaf).
func (s *State) Map(f func(*tensor.RawTensor) *tensor.RawTensor) *State {
	out := New()
	for _, fld := range s.fields {
		if fld.Sub != nil {
			out.SetSub(fld.Name, fld.Sub.Map(f))
		} else {
			out.Set(fld.Name, f(fld.Leaf))
		}
	}
	return out
}

// Add returns the element-wise sum of two structurally equal states.
// Inputs are not modified.
func (s *State) Add(other *State, backend tensor.Backend) (*State, error) {
	if err := CheckSameStructure(s, other); err != nil {
		return nil, errors.Wrap(err, "state add")
	}
	leavesA := s.Leaves()
	leavesB := other.Leaves()
	sums := make([]*tensor.RawTensor, len(leavesA))
	for i := range leavesA {
		// ForceNonUnique keeps the backend off the inplace path: both inputs
		// must survive the addition.
		releaseA := leavesA[i].ForceNonUnique()
		releaseB := leavesB[i].ForceNonUnique()
		sums[i] = backend.Add(leavesA[i], leavesB[i])
		releaseA()
		releaseB()
	}
	return FromLeaves(s, sums), nil
}

// Scale returns the state with every leaf multiplied by v.
func (s *State) Scale(v float64, backend tensor.Backend) *State {
	return s.Map(func(leaf *tensor.RawTensor) *tensor.RawTensor {
		return backend.MulScalar(leaf, v)
	})
}
