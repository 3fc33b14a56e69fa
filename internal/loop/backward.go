package loop

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/scanrev-ml/scanrev/internal/state"
	"github.com/scanrev-ml/scanrev/internal/tensor"
)

// forwardWithCheckpoints runs the forward pass, snapshotting the states the
// schedule asks for. Checkpoint index i holds the state before step i.
func (l *Checkpointed) forwardWithCheckpoints(initial *state.State) (*state.State, map[int]*state.State, error) {
	want := make(map[int]bool, l.n)
	for _, idx := range l.cfg.sched.Checkpoints(l.n) {
		if idx > 0 && idx < l.n {
			want[idx] = true
		}
	}
	klog.V(2).Infof("loop forward: %d steps, schedule %s storing %d checkpoints",
		l.n, l.cfg.sched.Name(), len(want))

	ckpts := make(map[int]*state.State, len(want))
	cur := initial
	for i := 0; i < l.n; i++ {
		if want[i] {
			ckpts[i] = cur.Clone()
			l.stats.CheckpointsStored++
			l.hold(1)
		}
		next, err := l.applyStep(cur, i, false)
		if err != nil {
			for _, snap := range ckpts {
				snap.Release()
			}
			return nil, nil, err
		}
		cur = next
	}
	return cur, ckpts, nil
}

// vjpRange reverses steps [lo, hi): given the state at lo and the cotangent at
// hi, it returns the cotangent at lo and the parameter cotangents the range
// contributed. States missing from ckpts are reconstructed by recomputing
// forward from sLo.
func (l *Checkpointed) vjpRange(
	lo, hi int,
	sLo, cotangent *state.State,
	depth int,
	ckpts map[int]*state.State,
) (*state.State, ParamGrads, error) {
	if depth > l.cfg.budget {
		return nil, nil, errors.Wrapf(ErrRecursionBudget,
			"depth %d over range [%d, %d), budget is %d", depth, lo, hi, l.cfg.budget)
	}
	if depth > l.stats.MaxDepth {
		l.stats.MaxDepth = depth
	}

	if hi-lo <= l.cfg.sched.LeafSpan(l.n) {
		return l.reverseLeaf(lo, hi, sLo, cotangent)
	}

	mid := l.cfg.sched.Split(lo, hi, l.n)
	if mid <= lo || mid >= hi {
		return nil, nil, errors.Errorf("schedule %s returned split %d outside (%d, %d)",
			l.cfg.sched.Name(), mid, lo, hi)
	}

	sMid, cached := ckpts[mid]
	if cached {
		delete(ckpts, mid) // consumed; this range now owns the snapshot
	} else {
		adv, err := l.advance(sLo, lo, mid, true)
		if err != nil {
			return nil, nil, err
		}
		// Own a clone rather than the step output itself: a field the step
		// passes through untouched aliases a caller-owned tensor, which the
		// Release below must not free.
		sMid = adv.Clone()
		l.stats.CheckpointsRecomputed++
		l.hold(1)
	}
	klog.V(2).Infof("loop backward: split [%d, %d) at %d (cached=%v, depth=%d)",
		lo, hi, mid, cached, depth)

	ctMid, pgRight, err := l.vjpRange(mid, hi, sMid, cotangent, depth+1, ckpts)
	sMid.Release()
	l.unhold(1)
	if err != nil {
		return nil, nil, err
	}

	ctLo, pgLeft, err := l.vjpRange(lo, mid, sLo, ctMid, depth+1, ckpts)
	if err != nil {
		return nil, nil, err
	}

	return ctLo, l.mergeParamGrads(pgLeft, pgRight), nil
}

// reverseLeaf reverses a leaf range directly: recompute [lo, hi) recording
// every intermediate state, then walk the recorded states backward applying
// each step's VJP.
func (l *Checkpointed) reverseLeaf(lo, hi int, sLo, cotangent *state.State) (*state.State, ParamGrads, error) {
	span := hi - lo

	// states[i] holds the state before step lo+i. Recorded entries are clones
	// owned by this range; a step output may alias caller-owned tensors
	// through a passthrough field, so the outputs themselves are never
	// released. states[0] is the caller's sLo.
	states := make([]*state.State, span)
	states[0] = sLo
	cur := sLo
	for i := 0; i < span-1; i++ {
		next, err := l.applyStep(cur, lo+i, true)
		if err != nil {
			l.releaseRecorded(states)
			return nil, nil, err
		}
		states[i+1] = next.Clone()
		cur = next
	}
	l.hold(span - 1) // the recorded buffer, excluding caller-owned sLo

	ct := cotangent
	var pg ParamGrads
	for i := span - 1; i >= 0; i-- {
		ctPrev, pgStep, err := l.stepVJP(states[i], lo+i, ct)
		if err != nil {
			l.releaseRecorded(states)
			l.unhold(span - 1)
			return nil, nil, err
		}
		ct = ctPrev
		pg = l.mergeParamGrads(pg, pgStep)
	}
	l.releaseRecorded(states)
	l.unhold(span - 1)

	return ct, pg, nil
}

// releaseRecorded drops the range-owned snapshots; index 0 is caller-owned.
func (l *Checkpointed) releaseRecorded(states []*state.State) {
	for _, s := range states[1:] {
		if s != nil {
			s.Release()
		}
	}
}

// stepVJP differentiates a single step: replay it under a recording tape,
// seed the output leaves with the cotangent, and pull back to the input
// leaves and registered parameters.
func (l *Checkpointed) stepVJP(s *state.State, idx int, cotangent *state.State) (*state.State, ParamGrads, error) {
	tape := l.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	out := l.step(s)
	tape.StopRecording()

	if out == nil {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "step %d returned a nil state", idx)
	}
	if err := state.CheckSameStructure(s, out); err != nil {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "step %d: %s", idx, err)
	}
	l.stats.StepCalls++
	l.stats.VJPSteps++

	outLeaves := out.Leaves()
	ctLeaves := cotangent.Leaves()
	seeds := make(map[*tensor.RawTensor]*tensor.RawTensor, len(outLeaves))
	for i, leaf := range outLeaves {
		if existing, ok := seeds[leaf]; ok {
			// The step returned the same tensor for two fields; their
			// cotangents sum.
			seeds[leaf] = l.backend.Add(existing, ctLeaves[i])
		} else {
			seeds[leaf] = ctLeaves[i]
		}
	}

	grads := tape.BackwardSeeded(seeds, l.backend)
	tape.Clear()

	inLeaves := s.Leaves()
	ctInLeaves := make([]*tensor.RawTensor, len(inLeaves))
	for i, leaf := range inLeaves {
		if g, ok := grads[leaf]; ok {
			ctInLeaves[i] = g
		} else {
			ctInLeaves[i] = tensor.ZerosLike(leaf)
		}
	}

	var pg ParamGrads
	for _, p := range l.cfg.params {
		if g, ok := grads[p]; ok {
			if pg == nil {
				pg = make(ParamGrads, len(l.cfg.params))
			}
			pg[p] = g
		}
	}

	return state.FromLeaves(s, ctInLeaves), pg, nil
}

// mergeParamGrads sums two parameter cotangent sets functionally: the result
// is a fresh map and neither input is modified, so sibling ranges stay
// independent.
func (l *Checkpointed) mergeParamGrads(a, b ParamGrads) ParamGrads {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	merged := make(ParamGrads, len(a)+len(b))
	for p, g := range a {
		merged[p] = g
	}
	for p, g := range b {
		if existing, ok := merged[p]; ok {
			merged[p] = l.backend.Add(existing, g)
		} else {
			merged[p] = g
		}
	}
	return merged
}
