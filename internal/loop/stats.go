package loop

// Stats reports the cost of the most recent Forward or VJP invocation.
// Checkpoint and recomputation counts are the user-observable side of the
// schedule trade-off: sub-linear checkpoint growth is part of the contract.
type Stats struct {
	// StepCalls is the total number of step function invocations, including
	// recomputation and per-step VJP replays.
	StepCalls int

	// RecomputedSteps counts forward step applications performed solely to
	// reconstruct states during the backward pass.
	RecomputedSteps int

	// VJPSteps counts steps differentiated (each logical step exactly once).
	VJPSteps int

	// CheckpointsStored counts state snapshots saved during the forward pass.
	// Grows sub-linearly in the step count for the built-in schedules.
	CheckpointsStored int

	// CheckpointsRecomputed counts snapshots materialized during the backward
	// pass because the needed state was not stored.
	CheckpointsRecomputed int

	// PeakLiveCheckpoints is the maximum number of state snapshots held
	// simultaneously, including the leaf recording buffer. This is the
	// memory-relevant quantity the schedule bounds.
	PeakLiveCheckpoints int

	// MaxDepth is the deepest backward recursion reached.
	MaxDepth int
}

// hold registers k snapshots as live and updates the peak.
func (l *Checkpointed) hold(k int) {
	l.live += k
	if l.live > l.stats.PeakLiveCheckpoints {
		l.stats.PeakLiveCheckpoints = l.live
	}
}

// unhold releases k live snapshots.
func (l *Checkpointed) unhold(k int) {
	l.live -= k
}
