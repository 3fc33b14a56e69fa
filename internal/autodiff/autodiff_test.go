package autodiff

import (
	"math"
	"testing"

	"github.com/scanrev-ml/scanrev/internal/backend/cpu"
	"github.com/scanrev-ml/scanrev/internal/tensor"
)

func scalar64(t *testing.T, v float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice([]float64{v}, tensor.Shape{1}, tensor.CPU)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return r
}

func assertScalar(t *testing.T, got *tensor.RawTensor, want float64) {
	t.Helper()
	if got == nil {
		t.Fatal("got nil tensor")
	}
	v := got.AsFloat64()[0]
	if math.Abs(v-want) > 1e-12 {
		t.Errorf("value = %g, want %g", v, want)
	}
}

func TestRecordingOnlyWhenEnabled(t *testing.T) {
	ad := New(cpu.New())
	a := scalar64(t, 2)
	b := scalar64(t, 3)

	ad.Add(a, b)
	if ad.GetTape().NumOps() != 0 {
		t.Error("ops should not be recorded before StartRecording")
	}

	ad.GetTape().StartRecording()
	ad.Add(a, b)
	ad.GetTape().StopRecording()
	ad.Add(a, b)

	if got := ad.GetTape().NumOps(); got != 1 {
		t.Errorf("NumOps() = %d, want 1", got)
	}
}

// TestBackward_Mul tests d(a*b)/da = b, d(a*b)/db = a.
func TestBackward_Mul(t *testing.T) {
	ad := New(cpu.New())
	a := scalar64(t, 2)
	b := scalar64(t, 3)

	ad.GetTape().StartRecording()
	out := ad.Mul(a, b)
	ad.GetTape().StopRecording()

	assertScalar(t, out, 6)

	grads := ad.GetTape().Backward(scalar64(t, 1), ad)
	assertScalar(t, grads[a], 3)
	assertScalar(t, grads[b], 2)
}

// TestBackward_Chain tests the chain rule through a two-op composition:
// y = tanh(a * x), dy/dx = a * (1 - tanh^2(a*x)).
func TestBackward_Chain(t *testing.T) {
	ad := New(cpu.New())
	a := scalar64(t, 0.5)
	x := scalar64(t, 1.2)

	ad.GetTape().StartRecording()
	y := ad.Tanh(ad.Mul(a, x))
	ad.GetTape().StopRecording()

	th := math.Tanh(0.5 * 1.2)
	assertScalar(t, y, th)

	grads := ad.GetTape().Backward(scalar64(t, 1), ad)
	if math.Abs(grads[x].AsFloat64()[0]-0.5*(1-th*th)) > 1e-12 {
		t.Errorf("dy/dx = %g, want %g", grads[x].AsFloat64()[0], 0.5*(1-th*th))
	}
	if math.Abs(grads[a].AsFloat64()[0]-1.2*(1-th*th)) > 1e-12 {
		t.Errorf("dy/da = %g, want %g", grads[a].AsFloat64()[0], 1.2*(1-th*th))
	}
}

// TestBackward_FanOut tests gradient accumulation when one tensor feeds
// two operations: y = x*x, dy/dx = 2x.
func TestBackward_FanOut(t *testing.T) {
	ad := New(cpu.New())
	x := scalar64(t, 3)

	ad.GetTape().StartRecording()
	out := ad.Mul(x, x)
	ad.GetTape().StopRecording()

	assertScalar(t, out, 9)

	grads := ad.GetTape().Backward(scalar64(t, 1), ad)
	assertScalar(t, grads[x], 6)
}

// TestBackwardSeeded_MultipleOutputs seeds two independent outputs at once,
// the way a tree-valued step result is differentiated.
func TestBackwardSeeded_MultipleOutputs(t *testing.T) {
	ad := New(cpu.New())
	x := scalar64(t, 2)
	y := scalar64(t, 5)

	ad.GetTape().StartRecording()
	outA := ad.MulScalar(x, 3) // 3x
	outB := ad.Mul(x, y)       // xy
	ad.GetTape().StopRecording()

	grads := ad.GetTape().BackwardSeeded(map[*tensor.RawTensor]*tensor.RawTensor{
		outA: scalar64(t, 1),
		outB: scalar64(t, 1),
	}, ad)

	// dx = 3 + y = 8, dy = x = 2
	assertScalar(t, grads[x], 8)
	assertScalar(t, grads[y], 2)
}

// TestBackwardSeeded_Passthrough tests that a seed for a tensor no operation
// produced survives the backward pass untouched.
func TestBackwardSeeded_Passthrough(t *testing.T) {
	ad := New(cpu.New())
	x := scalar64(t, 2)
	untouched := scalar64(t, 7)

	ad.GetTape().StartRecording()
	ad.MulScalar(x, 2)
	ad.GetTape().StopRecording()

	seed := scalar64(t, 4)
	grads := ad.GetTape().BackwardSeeded(map[*tensor.RawTensor]*tensor.RawTensor{
		untouched: seed,
	}, ad)

	if grads[untouched] != seed {
		t.Error("seed for an untouched tensor should pass through unchanged")
	}
}

// TestForceNonUnique_ProtectsInputs tests that the recording wrapper never
// lets the CPU inplace path overwrite an operand.
func TestForceNonUnique_ProtectsInputs(t *testing.T) {
	ad := New(cpu.New())
	a := scalar64(t, 2)
	b := scalar64(t, 3)

	out := ad.Add(a, b)
	assertScalar(t, out, 5)
	assertScalar(t, a, 2)
	assertScalar(t, b, 3)
	if out == a || out == b {
		t.Error("wrapped op should allocate a fresh output")
	}
}

func TestTapeClear(t *testing.T) {
	ad := New(cpu.New())
	x := scalar64(t, 1)

	ad.GetTape().StartRecording()
	ad.AddScalar(x, 1)
	ad.GetTape().Clear()
	if ad.GetTape().NumOps() != 0 {
		t.Error("Clear should drop all recorded operations")
	}
	if !ad.GetTape().IsRecording() {
		t.Error("Clear should preserve recording state")
	}
}

// TestBackward_Div tests quotient-rule gradients: d(a/b)/da = 1/b,
// d(a/b)/db = -a/b^2.
func TestBackward_Div(t *testing.T) {
	ad := New(cpu.New())
	a := scalar64(t, 6)
	b := scalar64(t, 2)

	ad.GetTape().StartRecording()
	out := ad.Div(a, b)
	ad.GetTape().StopRecording()

	assertScalar(t, out, 3)

	grads := ad.GetTape().Backward(scalar64(t, 1), ad)
	assertScalar(t, grads[a], 0.5)
	assertScalar(t, grads[b], -1.5)
}

// TestBackward_MatMul tests gradients of C = A@B against hand values.
func TestBackward_MatMul(t *testing.T) {
	ad := New(cpu.New())
	a, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
	b, _ := tensor.FromSlice([]float64{5, 6, 7, 8}, tensor.Shape{2, 2}, tensor.CPU)

	ad.GetTape().StartRecording()
	ad.MatMul(a, b)
	ad.GetTape().StopRecording()

	ones, _ := tensor.FromSlice([]float64{1, 1, 1, 1}, tensor.Shape{2, 2}, tensor.CPU)
	grads := ad.GetTape().Backward(ones, ad)

	// dA = ones @ B^T, dB = A^T @ ones
	wantA := []float64{11, 15, 11, 15}
	wantB := []float64{4, 4, 6, 6}
	for i, v := range grads[a].AsFloat64() {
		if math.Abs(v-wantA[i]) > 1e-12 {
			t.Errorf("dA[%d] = %g, want %g", i, v, wantA[i])
		}
	}
	for i, v := range grads[b].AsFloat64() {
		if math.Abs(v-wantB[i]) > 1e-12 {
			t.Errorf("dB[%d] = %g, want %g", i, v, wantB[i])
		}
	}
}
