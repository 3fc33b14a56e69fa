package loop

import (
	"github.com/pkg/errors"

	"github.com/scanrev-ml/scanrev/internal/autodiff"
	"github.com/scanrev-ml/scanrev/internal/state"
	"github.com/scanrev-ml/scanrev/internal/tensor"
)

// Unrolled is the naive loop: every step is recorded on one long tape and the
// backward pass walks all of it. Memory grows linearly with the step count.
//
// It implements Primitive with the same contracts as Checkpointed and serves
// as the reference the checkpointed loop is equivalent to, and as the sane
// choice when n is small enough that recomputation would cost more than
// storage.
type Unrolled struct {
	backend autodiff.BackwardCapable
	step    StepFunc
	n       int
	params  []*tensor.RawTensor
}

// NewUnrolled creates an unrolled loop applying step n times.
func NewUnrolled(backend autodiff.BackwardCapable, step StepFunc, n int, params ...*tensor.RawTensor) (*Unrolled, error) {
	if n < 0 {
		return nil, errors.Errorf("step count must be non-negative, got %d", n)
	}
	if step == nil {
		return nil, errors.New("step function must not be nil")
	}
	return &Unrolled{backend: backend, step: step, n: n, params: params}, nil
}

// Forward applies the step function n times and returns the final state.
func (u *Unrolled) Forward(initial *state.State) (*state.State, error) {
	tape := u.backend.GetTape()
	tape.StopRecording()
	tape.Clear()

	cur := initial
	for i := 0; i < u.n; i++ {
		next, err := u.applyStep(cur, i)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Backward produces the cotangent with respect to the initial state.
func (u *Unrolled) Backward(initial, cotangent *state.State) (*state.State, error) {
	_, ctIn, _, err := u.VJP(initial, cotangent)
	return ctIn, err
}

// VJP records the whole loop on one tape and differentiates through all n
// steps at once.
func (u *Unrolled) VJP(initial, cotangent *state.State) (final, inputCotangent *state.State, paramGrads ParamGrads, err error) {
	if err := state.CheckSameStructure(initial, cotangent); err != nil {
		return nil, nil, nil, errors.Wrapf(ErrShapeMismatch, "cotangent does not match state structure: %s", err)
	}

	pg := make(ParamGrads, len(u.params))
	for _, p := range u.params {
		pg[p] = tensor.ZerosLike(p)
	}

	if u.n == 0 {
		return initial, cotangent, pg, nil
	}

	tape := u.backend.GetTape()
	tape.Clear()
	tape.StartRecording()

	cur := initial
	for i := 0; i < u.n; i++ {
		next, stepErr := u.applyStep(cur, i)
		if stepErr != nil {
			tape.StopRecording()
			tape.Clear()
			return nil, nil, nil, stepErr
		}
		cur = next
	}
	tape.StopRecording()

	outLeaves := cur.Leaves()
	ctLeaves := cotangent.Leaves()
	seeds := make(map[*tensor.RawTensor]*tensor.RawTensor, len(outLeaves))
	for i, leaf := range outLeaves {
		if existing, ok := seeds[leaf]; ok {
			seeds[leaf] = u.backend.Add(existing, ctLeaves[i])
		} else {
			seeds[leaf] = ctLeaves[i]
		}
	}

	grads := tape.BackwardSeeded(seeds, u.backend)
	tape.Clear()

	inLeaves := initial.Leaves()
	ctInLeaves := make([]*tensor.RawTensor, len(inLeaves))
	for i, leaf := range inLeaves {
		if g, ok := grads[leaf]; ok {
			ctInLeaves[i] = g
		} else {
			ctInLeaves[i] = tensor.ZerosLike(leaf)
		}
	}

	// The tape accumulates per-step parameter contributions across the whole
	// recording, so each parameter's cotangent is already the sum over steps.
	for _, p := range u.params {
		if g, ok := grads[p]; ok {
			pg[p] = g
		}
	}

	return cur, state.FromLeaves(initial, ctInLeaves), pg, nil
}

func (u *Unrolled) applyStep(s *state.State, idx int) (*state.State, error) {
	out := u.step(s)
	if out == nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "step %d returned a nil state", idx)
	}
	if err := state.CheckSameStructure(s, out); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "step %d: %s", idx, err)
	}
	return out, nil
}
