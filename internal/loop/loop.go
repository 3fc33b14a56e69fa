// Package loop implements a checkpointed, reverse-mode differentiable
// bounded loop.
//
// Checkpointed applies a step function n times. Its forward pass is
// bit-identical to the naive unrolled loop; its backward pass reconstructs
// intermediate states from a sparse set of checkpoints by selective
// recomputation ("treeverse"), so gradients through very long loops never
// materialize all n intermediate states at once.
//
// The construct registers with a differentiation layer through the Primitive
// interface: a host calls Forward and Backward at this boundary instead of
// tracing the recursive implementation.
package loop

import (
	"github.com/pkg/errors"

	"github.com/scanrev-ml/scanrev/internal/autodiff"
	"github.com/scanrev-ml/scanrev/internal/state"
	"github.com/scanrev-ml/scanrev/internal/tensor"
)

// StepFunc advances the loop state by one step.
//
// It must be pure: built only from the backend's operations, no side effects,
// no mutation of its input, and no dependence on shared mutable values — the
// backward pass replays it, so a step may run several times per logical
// iteration. It may close over parameter tensors; register them with
// WithParameters to receive their accumulated cotangents.
type StepFunc func(*state.State) *state.State

// Primitive is the dispatch boundary for a host differentiation layer: when a
// transformation encounters the loop it calls these two operations instead of
// unrolling and differentiating the loop body naively.
type Primitive interface {
	// Forward produces the state after all steps.
	Forward(initial *state.State) (*state.State, error)

	// Backward produces the cotangent with respect to the initial state given
	// the cotangent with respect to the final state.
	Backward(initial, cotangent *state.State) (*state.State, error)
}

// ParamGrads maps captured parameter tensors to their accumulated cotangents.
// A parameter used at every step receives the sum of its per-step local
// cotangents (the weight-sharing rule).
type ParamGrads map[*tensor.RawTensor]*tensor.RawTensor

// Get returns the cotangent for p, or nil if p was not registered.
func (pg ParamGrads) Get(p *tensor.RawTensor) *tensor.RawTensor {
	return pg[p]
}

// DefaultRecursionBudget bounds the backward recursion depth unless
// overridden. Bisection stays within it for any representable n; a chunked
// schedule over a very long loop may need a larger budget.
const DefaultRecursionBudget = 1024

type config struct {
	sched  Schedule
	budget int
	params []*tensor.RawTensor
}

// Option configures a Checkpointed loop.
type Option func(*config)

// WithSchedule selects the checkpoint schedule. Default: Bisection(DefaultLeafSpan).
func WithSchedule(s Schedule) Option {
	return func(c *config) { c.sched = s }
}

// WithRecursionBudget bounds the backward recursion depth.
// The loop fails fast with ErrRecursionBudget when the schedule needs more.
func WithRecursionBudget(depth int) Option {
	return func(c *config) { c.budget = depth }
}

// WithParameters registers tensors the step function closes over, so the
// backward pass accumulates and reports their cotangents.
func WithParameters(params ...*tensor.RawTensor) Option {
	return func(c *config) { c.params = append(c.params, params...) }
}

// Checkpointed is a bounded loop with a treeverse-style backward pass.
// It implements Primitive. Not safe for concurrent use: the backend tape and
// the stats counters are owned by one invocation at a time.
type Checkpointed struct {
	backend autodiff.BackwardCapable
	step    StepFunc
	n       int
	cfg     config

	stats Stats
	live  int
}

// NewCheckpointed creates a checkpointed loop applying step n times.
func NewCheckpointed(backend autodiff.BackwardCapable, step StepFunc, n int, opts ...Option) (*Checkpointed, error) {
	if n < 0 {
		return nil, errors.Errorf("step count must be non-negative, got %d", n)
	}
	if step == nil {
		return nil, errors.New("step function must not be nil")
	}

	cfg := config{
		sched:  Bisection(DefaultLeafSpan),
		budget: DefaultRecursionBudget,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.budget < 1 {
		return nil, errors.Errorf("recursion budget must be positive, got %d", cfg.budget)
	}

	return &Checkpointed{
		backend: backend,
		step:    step,
		n:       n,
		cfg:     cfg,
	}, nil
}

// NumSteps returns the configured step count.
func (l *Checkpointed) NumSteps() int { return l.n }

// Schedule returns the configured checkpoint schedule.
func (l *Checkpointed) Schedule() Schedule { return l.cfg.sched }

// Stats returns the cost counters of the most recent Forward or VJP call.
func (l *Checkpointed) Stats() Stats { return l.stats }

// Forward applies the step function n times and returns the final state.
//
// No checkpoints are stored: plain forward evaluation is exactly the naive
// unrolled loop, so results are bit-identical to n direct step applications.
func (l *Checkpointed) Forward(initial *state.State) (*state.State, error) {
	l.resetStats()
	l.quiesceTape()

	if l.n == 0 {
		return initial, nil
	}
	return l.advance(initial, 0, l.n, false)
}

// Backward produces the cotangent with respect to the initial state given the
// cotangent with respect to the final state. See VJP for parameter cotangents.
func (l *Checkpointed) Backward(initial, cotangent *state.State) (*state.State, error) {
	_, ctIn, _, err := l.VJP(initial, cotangent)
	return ctIn, err
}

// VJP runs the loop forward — storing the schedule's checkpoints — and then
// backward, returning the final state, the cotangent with respect to the
// initial state, and the accumulated cotangents of registered parameters.
//
// The backward pass recursively subdivides the step range: a range below the
// schedule's leaf span is recomputed with every intermediate state recorded
// and reversed directly; anything larger is split, with the right half
// reversed before the left so each sub-range starts from a reconstructed
// state. Parameter cotangents from sibling ranges are summed functionally;
// no accumulator is shared between unfinished ranges.
func (l *Checkpointed) VJP(initial, cotangent *state.State) (final, inputCotangent *state.State, paramGrads ParamGrads, err error) {
	l.resetStats()
	l.quiesceTape()

	if err := state.CheckSameStructure(initial, cotangent); err != nil {
		return nil, nil, nil, errors.Wrapf(ErrShapeMismatch, "cotangent does not match state structure: %s", err)
	}

	if l.n == 0 {
		// Zero steps: identity forward, identity cotangent, zero parameter
		// contribution from the (never-executed) loop body.
		return initial, cotangent, l.zeroParamGrads(), nil
	}

	if need := l.cfg.sched.Depth(l.n); need > l.cfg.budget {
		return nil, nil, nil, errors.Wrapf(ErrRecursionBudget,
			"schedule %s needs depth %d for %d steps, budget is %d",
			l.cfg.sched.Name(), need, l.n, l.cfg.budget)
	}

	final, ckpts, err := l.forwardWithCheckpoints(initial)
	if err != nil {
		return nil, nil, nil, err
	}

	inputCotangent, paramGrads, err = l.vjpRange(0, l.n, initial, cotangent, 1, ckpts)

	// A custom schedule may store checkpoints the subdivision never consumed.
	for _, snap := range ckpts {
		snap.Release()
		l.unhold(1)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	paramGrads = l.fillZeroParamGrads(paramGrads)
	return final, inputCotangent, paramGrads, nil
}

// resetStats starts a fresh invocation's accounting.
func (l *Checkpointed) resetStats() {
	l.stats = Stats{}
	l.live = 0
}

// quiesceTape takes ownership of the backend tape: nothing is recorded except
// inside per-step VJP replays.
func (l *Checkpointed) quiesceTape() {
	tape := l.backend.GetTape()
	tape.StopRecording()
	tape.Clear()
}

// applyStep runs one step and validates that the structure survived.
func (l *Checkpointed) applyStep(s *state.State, idx int, recomputed bool) (*state.State, error) {
	out := l.step(s)
	if out == nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "step %d returned a nil state", idx)
	}
	if err := state.CheckSameStructure(s, out); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "step %d: %s", idx, err)
	}
	l.stats.StepCalls++
	if recomputed {
		l.stats.RecomputedSteps++
	}
	return out, nil
}

// advance applies steps [from, to) without storing anything.
func (l *Checkpointed) advance(s *state.State, from, to int, recomputed bool) (*state.State, error) {
	cur := s
	for i := from; i < to; i++ {
		next, err := l.applyStep(cur, i, recomputed)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// zeroParamGrads returns a zero cotangent for every registered parameter.
func (l *Checkpointed) zeroParamGrads() ParamGrads {
	pg := make(ParamGrads, len(l.cfg.params))
	for _, p := range l.cfg.params {
		pg[p] = tensor.ZerosLike(p)
	}
	return pg
}

// fillZeroParamGrads completes pg with zeros for parameters no step touched.
func (l *Checkpointed) fillZeroParamGrads(pg ParamGrads) ParamGrads {
	for _, p := range l.cfg.params {
		if _, ok := pg[p]; !ok {
			pg[p] = tensor.ZerosLike(p)
		}
	}
	return pg
}
