package loop

import "math"

// Schedule decides where checkpoints are stored during the forward pass and
// how the backward pass subdivides a step range.
//
// The contract (the sufficiency invariant): for any range the backward pass
// visits, the checkpoints the schedule stores, plus recomputation from them,
// must be able to reconstruct every step's state; Split must return a point
// strictly inside (lo, hi); ranges no longer than LeafSpan are recomputed in
// full and reversed directly.
type Schedule interface {
	// Name identifies the schedule in logs and stats.
	Name() string

	// Checkpoints returns the step indices (strictly between 0 and n,
	// ascending) whose states the forward pass stores. Index i means the
	// state before step i.
	Checkpoints(n int) []int

	// Split returns the subdivision point for the backward pass over [lo, hi),
	// with lo < Split < hi. Ranges of LeafSpan or fewer steps are never split.
	Split(lo, hi, n int) int

	// LeafSpan returns the largest range reversed directly: recomputed once
	// with every intermediate state recorded, then walked backward.
	LeafSpan(n int) int

	// Depth estimates the worst-case backward recursion depth for n steps,
	// used to fail fast against the recursion budget.
	Depth(n int) int
}

// DefaultLeafSpan is the bisection leaf granularity used when none is given.
// Below this span, recording every state is cheaper than further subdivision.
const DefaultLeafSpan = 8

// Bisection returns the recursive-bisection ("treeverse") schedule.
//
// The forward pass stores the checkpoint spine the first backward descent
// needs: the midpoints of successively halved right ranges, O(log n) states.
// The backward pass halves each range recursively, recomputing left-half
// midpoints from the nearest earlier state as it goes.
//
// Trade-off: O(log n) live checkpoints against O(n log n) total step
// recomputation. This is the default schedule.
func Bisection(leafSpan int) Schedule {
	if leafSpan < 1 {
		leafSpan = DefaultLeafSpan
	}
	return bisection{leaf: leafSpan}
}

type bisection struct {
	leaf int
}

func (b bisection) Name() string { return "bisection" }

func (b bisection) Checkpoints(n int) []int {
	var ckpts []int
	lo, hi := 0, n
	for hi-lo > b.leaf {
		mid := lo + (hi-lo)/2
		ckpts = append(ckpts, mid)
		lo = mid
	}
	return ckpts
}

func (b bisection) Split(lo, hi, n int) int {
	return lo + (hi-lo)/2
}

func (b bisection) LeafSpan(n int) int { return b.leaf }

func (b bisection) Depth(n int) int {
	d := 1
	span := n
	for span > b.leaf {
		span = (span + 1) / 2
		d++
	}
	return d
}

// Chunked returns the fixed-stride schedule: the forward pass stores every
// stride-th state, and the backward pass reverses one chunk at a time with no
// recomputation beyond the chunk being reversed.
//
// With stride <= 0 the stride defaults to ceil(sqrt(n)), giving the classic
// O(sqrt n) storage / one extra forward pass trade-off. Recursion depth is
// n/stride, so large n with a small stride needs a raised recursion budget.
func Chunked(stride int) Schedule {
	return chunked{stride: stride}
}

type chunked struct {
	stride int
}

func (c chunked) Name() string { return "chunked" }

func (c chunked) strideFor(n int) int {
	if c.stride > 0 {
		return c.stride
	}
	s := int(math.Ceil(math.Sqrt(float64(n))))
	if s < 1 {
		s = 1
	}
	return s
}

func (c chunked) Checkpoints(n int) []int {
	stride := c.strideFor(n)
	var ckpts []int
	for i := stride; i < n; i += stride {
		ckpts = append(ckpts, i)
	}
	return ckpts
}

func (c chunked) Split(lo, hi, n int) int {
	stride := c.strideFor(n)
	// Split at the last stored checkpoint before hi, so the right range is a
	// single chunk and the left range still begins at a stored state.
	mid := (hi - 1) / stride * stride
	if mid <= lo {
		mid = lo + (hi-lo)/2
	}
	return mid
}

func (c chunked) LeafSpan(n int) int { return c.strideFor(n) }

func (c chunked) Depth(n int) int {
	stride := c.strideFor(n)
	return (n+stride-1)/stride + 1
}
