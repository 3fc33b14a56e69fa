package loop

import "github.com/pkg/errors"

// Sentinel errors. Both are fatal to the invocation that raised them:
// differentiating a malformed loop body is not a transient condition, and a
// schedule that cannot fit the recursion budget will not fit it on retry.
var (
	// ErrShapeMismatch reports that the step function produced a state whose
	// structure (field names, nesting, leaf shapes, or dtypes) disagrees with
	// its input, or that a supplied cotangent does not match the state
	// structure. Detected when the offending state is consumed, so the error
	// may surface one step after the violating call.
	ErrShapeMismatch = errors.New("step changed the loop state structure")

	// ErrRecursionBudget reports that the checkpoint schedule combined with
	// the step count implies a backward recursion deeper than the configured
	// bound. Raised before any recomputation work is done.
	ErrRecursionBudget = errors.New("checkpoint recursion exceeds budget")
)
