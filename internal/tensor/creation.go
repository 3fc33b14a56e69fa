package tensor

import "fmt"

// FromSlice creates a RawTensor from a Go slice. The data is copied.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %s (%d elements)",
			len(data), shape, shape.NumElements())
	}

	var dummy T
	dtype := inferDataType(dummy)

	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range data {
			dst[i] = float32(v)
		}
	case Float64:
		dst := t.AsFloat64()
		for i, v := range data {
			dst[i] = float64(v)
		}
	}

	return t, nil
}

// Full creates a RawTensor filled with a constant value.
func Full(shape Shape, value float64, dtype DataType, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	Fill(t, value)
	return t, nil
}

// Fill sets every element of t to value.
func Fill(t *RawTensor, value float64) {
	switch t.DType() {
	case Float32:
		data := t.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	}
}

// ZerosLike creates a zero-filled tensor with the same shape, dtype, and device as t.
func ZerosLike(t *RawTensor) *RawTensor {
	z, err := NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("zeros-like: %v", err)) // t's shape already validated
	}
	return z
}

// FullLike creates a constant-filled tensor with the same shape, dtype, and device as t.
func FullLike(t *RawTensor, value float64) *RawTensor {
	f := ZerosLike(t)
	Fill(f, value)
	return f
}
