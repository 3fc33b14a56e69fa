package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanrev-ml/scanrev/internal/autodiff"
	"github.com/scanrev-ml/scanrev/internal/backend/cpu"
	"github.com/scanrev-ml/scanrev/internal/state"
	"github.com/scanrev-ml/scanrev/internal/tensor"
)

func newBackend() *autodiff.AutodiffBackend[*cpu.CPUBackend] {
	return autodiff.New(cpu.New())
}

func vec64(t *testing.T, data ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, tensor.Shape{len(data)}, tensor.CPU)
	require.NoError(t, err)
	return r
}

// oscillatorState is the recurring test fixture: a damped-oscillator state
// {x, v} with two elements per leaf.
func oscillatorState(t *testing.T) *state.State {
	t.Helper()
	return state.New().
		Set("x", vec64(t, 1.0, -0.5)).
		Set("v", vec64(t, 0.0, 0.3))
}

// oscillatorStep builds x' = x + dt*v, v' = v - dt*omega*x.
func oscillatorStep(be autodiff.BackwardCapable, omega *tensor.RawTensor, dt float64) StepFunc {
	return func(s *state.State) *state.State {
		x, v := s.Get("x"), s.Get("v")
		nx := be.Add(x, be.MulScalar(v, dt))
		nv := be.Sub(v, be.MulScalar(be.Mul(omega, x), dt))
		return state.New().Set("x", nx).Set("v", nv)
	}
}

// nonlinStep builds a step with a tanh nonlinearity so gradients have no
// accidental structure: x' = tanh(a*x) + 0.1*v, v' = v - 0.05*x.
func nonlinStep(be autodiff.BackwardCapable, a *tensor.RawTensor) StepFunc {
	return func(s *state.State) *state.State {
		x, v := s.Get("x"), s.Get("v")
		nx := be.Add(be.Tanh(be.Mul(a, x)), be.MulScalar(v, 0.1))
		nv := be.Sub(v, be.MulScalar(x, 0.05))
		return state.New().Set("x", nx).Set("v", nv)
	}
}

func assertStatesEqual(t *testing.T, want, got *state.State) {
	t.Helper()
	require.NoError(t, state.CheckSameStructure(want, got))
	wl, gl := want.Leaves(), got.Leaves()
	for i := range wl {
		assert.True(t, wl[i].Equal(gl[i]), "leaf %d differs: %v vs %v",
			i, wl[i].AsFloat64(), gl[i].AsFloat64())
	}
}

func assertStatesClose(t *testing.T, want, got *state.State, tol float64) {
	t.Helper()
	require.NoError(t, state.CheckSameStructure(want, got))
	wl, gl := want.Leaves(), got.Leaves()
	for i := range wl {
		wd, gd := wl[i].AsFloat64(), gl[i].AsFloat64()
		for j := range wd {
			assert.InDelta(t, wd[j], gd[j], tol, "leaf %d element %d", i, j)
		}
	}
}

func TestNewCheckpointed_Validation(t *testing.T) {
	be := newBackend()
	step := func(s *state.State) *state.State { return s }

	_, err := NewCheckpointed(be, step, -1)
	assert.Error(t, err)

	_, err = NewCheckpointed(be, nil, 3)
	assert.Error(t, err)

	_, err = NewCheckpointed(be, step, 3, WithRecursionBudget(0))
	assert.Error(t, err)

	l, err := NewCheckpointed(be, step, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumSteps())
	assert.Equal(t, "bisection", l.Schedule().Name())
}

// TestForward_MatchesNaiveUnrolling tests that Forward is exactly the n-fold
// step composition, for a spread of step counts.
func TestForward_MatchesNaiveUnrolling(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100} {
		be := newBackend()
		omega := vec64(t, 0.8, 1.3)
		step := oscillatorStep(be, omega, 0.01)

		// Naive composition with the same backend and step.
		want := oscillatorState(t)
		for i := 0; i < n; i++ {
			want = step(want)
		}

		l, err := NewCheckpointed(be, step, n)
		require.NoError(t, err)
		got, err := l.Forward(oscillatorState(t))
		require.NoError(t, err, "n=%d", n)

		assertStatesEqual(t, want, got)
	}
}

func TestForward_ZeroStepsIsIdentity(t *testing.T) {
	be := newBackend()
	step := oscillatorStep(be, vec64(t, 1, 1), 0.01)
	l, err := NewCheckpointed(be, step, 0)
	require.NoError(t, err)

	s := oscillatorState(t)
	out, err := l.Forward(s)
	require.NoError(t, err)
	assert.Same(t, s, out)
	assert.Zero(t, l.Stats().StepCalls)
}

func TestVJP_ZeroSteps(t *testing.T) {
	be := newBackend()
	omega := vec64(t, 1, 1)
	step := oscillatorStep(be, omega, 0.01)
	l, err := NewCheckpointed(be, step, 0, WithParameters(omega))
	require.NoError(t, err)

	s := oscillatorState(t)
	ct := oscillatorState(t)
	final, ctIn, pg, err := l.VJP(s, ct)
	require.NoError(t, err)

	assert.Same(t, s, final)
	assert.Same(t, ct, ctIn)

	g := pg.Get(omega)
	require.NotNil(t, g)
	for _, v := range g.AsFloat64() {
		assert.Zero(t, v)
	}
}

func TestVJP_FinalMatchesForward(t *testing.T) {
	be := newBackend()
	a := vec64(t, 0.7, 0.7)
	step := nonlinStep(be, a)

	l, err := NewCheckpointed(be, step, 13)
	require.NoError(t, err)

	fwd, err := l.Forward(oscillatorState(t))
	require.NoError(t, err)

	final, _, _, err := l.VJP(oscillatorState(t), oscillatorState(t).ZerosLike())
	require.NoError(t, err)

	assertStatesEqual(t, fwd, final)
}

func TestShapeMismatch_ExtraField(t *testing.T) {
	be := newBackend()
	bad := func(s *state.State) *state.State {
		return state.New().
			Set("x", s.Get("x")).
			Set("v", s.Get("v")).
			Set("extra", tensor.ZerosLike(s.Get("x")))
	}

	l, err := NewCheckpointed(be, bad, 3)
	require.NoError(t, err)

	_, err = l.Forward(oscillatorState(t))
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, _, _, err = l.VJP(oscillatorState(t), oscillatorState(t).ZerosLike())
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestShapeMismatch_ChangedLeafShape(t *testing.T) {
	be := newBackend()
	bad := func(s *state.State) *state.State {
		shrunk, _ := tensor.FromSlice([]float64{1}, tensor.Shape{1}, tensor.CPU)
		return state.New().
			Set("x", shrunk).
			Set("v", s.Get("v"))
	}

	l, err := NewCheckpointed(be, bad, 2)
	require.NoError(t, err)

	_, err = l.Forward(oscillatorState(t))
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "step 0")
}

func TestShapeMismatch_NilStep(t *testing.T) {
	be := newBackend()
	bad := func(s *state.State) *state.State { return nil }

	l, err := NewCheckpointed(be, bad, 1)
	require.NoError(t, err)

	_, err = l.Forward(oscillatorState(t))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestShapeMismatch_Cotangent(t *testing.T) {
	be := newBackend()
	step := oscillatorStep(be, vec64(t, 1, 1), 0.01)
	l, err := NewCheckpointed(be, step, 4)
	require.NoError(t, err)

	badCt := state.New().Set("x", vec64(t, 1, 2))
	_, _, _, err = l.VJP(oscillatorState(t), badCt)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRecursionBudget_FailsFast(t *testing.T) {
	be := newBackend()
	calls := 0
	step := func(s *state.State) *state.State {
		calls++
		return s.Clone()
	}

	l, err := NewCheckpointed(be, step, 100,
		WithSchedule(Bisection(1)), WithRecursionBudget(3))
	require.NoError(t, err)

	_, _, _, err = l.VJP(oscillatorState(t), oscillatorState(t).ZerosLike())
	require.ErrorIs(t, err, ErrRecursionBudget)
	assert.Zero(t, calls, "budget check must run before any step")
}

func TestRecursionBudget_SufficientBudgetSucceeds(t *testing.T) {
	be := newBackend()
	step := oscillatorStep(be, vec64(t, 1, 1), 0.01)

	l, err := NewCheckpointed(be, step, 100,
		WithSchedule(Bisection(1)), WithRecursionBudget(16))
	require.NoError(t, err)

	_, _, _, err = l.VJP(oscillatorState(t), oscillatorState(t).ZerosLike())
	require.NoError(t, err)
}

// TestIdentityPassthroughField tests a step that returns one field untouched,
// pointer and all: its cotangent must flow through unchanged.
func TestIdentityPassthroughField(t *testing.T) {
	be := newBackend()
	step := func(s *state.State) *state.State {
		return state.New().
			Set("x", be.MulScalar(s.Get("x"), 0.9)).
			Set("v", s.Get("v"))
	}

	l, err := NewCheckpointed(be, step, 5)
	require.NoError(t, err)

	ct := state.New().
		Set("x", vec64(t, 1, 1)).
		Set("v", vec64(t, 2, -3))

	_, ctIn, _, err := l.VJP(oscillatorState(t), ct)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, -3}, ctIn.Get("v").AsFloat64())
	// d(0.9^5 x)/dx = 0.9^5
	want := 0.9 * 0.9 * 0.9 * 0.9 * 0.9
	for _, v := range ctIn.Get("x").AsFloat64() {
		assert.InDelta(t, want, v, 1e-12)
	}
}

// TestIdentityPassthroughField_BeyondLeafSpan drives the passthrough case
// through the split/recompute path: reconstructed split states alias the
// caller's untouched tensor, and releasing them must not free it.
func TestIdentityPassthroughField_BeyondLeafSpan(t *testing.T) {
	for name, sched := range map[string]Schedule{
		"bisection": Bisection(DefaultLeafSpan),
		"chunked":   Chunked(4),
	} {
		t.Run(name, func(t *testing.T) {
			be := newBackend()
			step := func(s *state.State) *state.State {
				return state.New().
					Set("x", be.Add(s.Get("x"), be.MulScalar(s.Get("v"), 0.01))).
					Set("v", s.Get("v"))
			}

			const n = 20
			l, err := NewCheckpointed(be, step, n, WithSchedule(sched))
			require.NoError(t, err)

			s0 := oscillatorState(t)
			ct := state.New().
				Set("x", vec64(t, 1, 1)).
				Set("v", vec64(t, 2, -3))

			_, ctIn, _, err := l.VJP(s0, ct)
			require.NoError(t, err)

			// The caller's tensors survive the backward pass intact, with no
			// stray references left on the passthrough leaf.
			assert.Equal(t, []float64{1, -0.5}, s0.Get("x").AsFloat64())
			assert.Equal(t, []float64{0, 0.3}, s0.Get("v").AsFloat64())
			assert.True(t, s0.Get("v").IsUnique())

			// x_n = x_0 + n*dt*v_0, v_n = v_0: dx_n/dx_0 = 1 and the
			// passthrough cotangent picks up n*dt from x on top of its seed.
			for _, v := range ctIn.Get("x").AsFloat64() {
				assert.InDelta(t, 1.0, v, 1e-12)
			}
			wantV := []float64{2 + n*0.01, -3 + n*0.01}
			for i, v := range ctIn.Get("v").AsFloat64() {
				assert.InDelta(t, wantV[i], v, 1e-12)
			}
		})
	}
}

// TestInputsSurviveVJP tests that the initial state and cotangent are not
// mutated by the backward pass.
func TestInputsSurviveVJP(t *testing.T) {
	be := newBackend()
	a := vec64(t, 0.5, 0.5)
	step := nonlinStep(be, a)

	l, err := NewCheckpointed(be, step, 10, WithParameters(a))
	require.NoError(t, err)

	s := oscillatorState(t)
	ct := state.New().
		Set("x", vec64(t, 1, -1)).
		Set("v", vec64(t, 0.5, 0.5))

	_, _, _, err = l.VJP(s, ct)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, -0.5}, s.Get("x").AsFloat64())
	assert.Equal(t, []float64{0, 0.3}, s.Get("v").AsFloat64())
	assert.Equal(t, []float64{1, -1}, ct.Get("x").AsFloat64())
	assert.Equal(t, []float64{0.5, 0.5}, ct.Get("v").AsFloat64())
	assert.Equal(t, []float64{0.5, 0.5}, a.AsFloat64())
}
