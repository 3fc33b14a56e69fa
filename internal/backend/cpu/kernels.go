package cpu

import "golang.org/x/exp/constraints"

// mapBinary applies f element-wise: dst[i] = f(a[i], b[i]).
// dst may alias a for inplace operation.
func mapBinary[T constraints.Float](dst, a, b []T, f func(x, y T) T) {
	for i := range dst {
		dst[i] = f(a[i], b[i])
	}
}

// mapUnary applies f element-wise: dst[i] = f(src[i]).
func mapUnary[T constraints.Float](dst, src []T, f func(x T) T) {
	for i := range dst {
		dst[i] = f(src[i])
	}
}

// sumKernel returns the total sum of src.
func sumKernel[T constraints.Float](src []T) T {
	var acc T
	for _, v := range src {
		acc += v
	}
	return acc
}

// matmulKernel computes dst = a @ b for row-major 2D data.
// a is [m, k], b is [k, n], dst is [m, n].
func matmulKernel[T constraints.Float](dst, a, b []T, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var acc T
			for p := 0; p < k; p++ {
				acc += a[i*k+p] * b[p*n+j]
			}
			dst[i*n+j] = acc
		}
	}
}

// transposeKernel computes dst = src^T for row-major 2D data.
// src is [m, n], dst is [n, m].
func transposeKernel[T constraints.Float](dst, src []T, m, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			dst[j*m+i] = src[i*n+j]
		}
	}
}
