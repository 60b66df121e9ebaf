package item

// ApplyPartial captures the observable story of one item while it moves
// through the phases of apply: discovery of the stored and live current
// states, the target state, the computed diff, the apply-check result, and
// finally (on success) the applied state. Fields are pointers so a phase
// that has not yet run is distinguishable from one that produced a
// zero-valued result.
type ApplyPartial[S any, D any] struct {
	StateCurrentStored *S
	StateCurrent       *S
	StateTarget        *S
	StateDiff          *D
	ApplyCheck         *ApplyCheck
	StateApplied       *S
}

// Apply is the fully-populated form of ApplyPartial, constructed only once
// every required field is present.
type Apply[S any, D any] struct {
	StateCurrentStored *S
	StateCurrent       S
	StateTarget        S
	StateDiff          D
	ApplyCheck         ApplyCheck
	StateApplied       S
}

// Complete attempts to promote p into a fully-populated Apply, returning
// false if any required field (current, target, diff, apply-check, applied)
// is still absent. StateCurrentStored may remain nil: first-time discovery
// has no prior stored state to compare against.
func (p ApplyPartial[S, D]) Complete() (Apply[S, D], bool) {
	if p.StateCurrent == nil || p.StateTarget == nil || p.StateDiff == nil ||
		p.ApplyCheck == nil || p.StateApplied == nil {
		return Apply[S, D]{}, false
	}
	return Apply[S, D]{
		StateCurrentStored: p.StateCurrentStored,
		StateCurrent:       *p.StateCurrent,
		StateTarget:        *p.StateTarget,
		StateDiff:          *p.StateDiff,
		ApplyCheck:         *p.ApplyCheck,
		StateApplied:       *p.StateApplied,
	}, true
}
