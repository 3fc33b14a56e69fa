package tensor

import "testing"

// TestNewRaw_ZeroInitialized tests that new tensors start zeroed.
func TestNewRaw_ZeroInitialized(t *testing.T) {
	r, err := NewRaw(Shape{2, 3}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if r.NumElements() != 6 {
		t.Errorf("NumElements() = %d, want 6", r.NumElements())
	}
	if r.ByteSize() != 24 {
		t.Errorf("ByteSize() = %d, want 24", r.ByteSize())
	}
	for i, v := range r.AsFloat32() {
		if v != 0 {
			t.Errorf("element %d = %f, want 0", i, v)
		}
	}
}

// TestNewRaw_InvalidShape tests shape validation.
func TestNewRaw_InvalidShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, -1}, Float32, CPU); err == nil {
		t.Error("NewRaw with negative dimension should fail")
	}
	if _, err := NewRaw(Shape{0}, Float64, CPU); err == nil {
		t.Error("NewRaw with zero dimension should fail")
	}
}

// TestFromSlice tests tensor creation from Go slices.
func TestFromSlice(t *testing.T) {
	r, err := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2}, CPU)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if r.DType() != Float64 {
		t.Errorf("DType() = %s, want float64", r.DType())
	}
	data := r.AsFloat64()
	for i, want := range []float64{1, 2, 3, 4} {
		if data[i] != want {
			t.Errorf("element %d = %f, want %f", i, data[i], want)
		}
	}

	// Length mismatch
	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU); err == nil {
		t.Error("FromSlice with wrong data length should fail")
	}
}

// TestClone_SharesBuffer tests copy-on-write reference counting.
func TestClone_SharesBuffer(t *testing.T) {
	r, _ := FromSlice([]float32{1, 2}, Shape{2}, CPU)
	if !r.IsUnique() {
		t.Error("fresh tensor should be unique")
	}

	c := r.Clone()
	if r.IsUnique() || c.IsUnique() {
		t.Error("tensor with a live clone should not be unique")
	}

	// Clone sees the same data
	if c.AsFloat32()[1] != 2 {
		t.Errorf("clone data = %f, want 2", c.AsFloat32()[1])
	}

	c.Release()
	if !r.IsUnique() {
		t.Error("tensor should be unique again after clone release")
	}
}

// TestForceNonUnique tests the temporary refcount bump.
func TestForceNonUnique(t *testing.T) {
	r, _ := FromSlice([]float32{1}, Shape{1}, CPU)

	release := r.ForceNonUnique()
	if r.IsUnique() {
		t.Error("tensor should not be unique while forced")
	}
	release()
	if !r.IsUnique() {
		t.Error("tensor should be unique after release")
	}
}

// TestEqual tests exact bitwise equality.
func TestEqual(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2, 3}, Shape{3}, CPU)
	b, _ := FromSlice([]float64{1, 2, 3}, Shape{3}, CPU)
	c, _ := FromSlice([]float64{1, 2, 4}, Shape{3}, CPU)
	d, _ := FromSlice([]float64{1, 2, 3}, Shape{3, 1}, CPU)

	if !a.Equal(b) {
		t.Error("identical tensors should be Equal")
	}
	if a.Equal(c) {
		t.Error("tensors with different values should not be Equal")
	}
	if a.Equal(d) {
		t.Error("tensors with different shapes should not be Equal")
	}
}

// TestFullAndZerosLike tests constant-filled creation helpers.
func TestFullAndZerosLike(t *testing.T) {
	f, err := Full(Shape{3}, 2.5, Float64, CPU)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	for i, v := range f.AsFloat64() {
		if v != 2.5 {
			t.Errorf("element %d = %f, want 2.5", i, v)
		}
	}

	z := ZerosLike(f)
	if !z.Shape().Equal(f.Shape()) || z.DType() != f.DType() {
		t.Error("ZerosLike should preserve shape and dtype")
	}
	for i, v := range z.AsFloat64() {
		if v != 0 {
			t.Errorf("element %d = %f, want 0", i, v)
		}
	}

	o := FullLike(f, 1)
	for i, v := range o.AsFloat64() {
		if v != 1 {
			t.Errorf("element %d = %f, want 1", i, v)
		}
	}
}
