package core

import (
	"fmt"

	"growthcore/pkg/domain"
)

// GuardResult represents the outcome of a lifecycle guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts a rejected guard result into a validation error.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return &domain.ValidationError{Field: "status", Reason: r.Reason}
}

// LifecyclePolicy decides whether an experiment may move between states.
type LifecyclePolicy interface {
	CanTransition(from, to Status) GuardResult
}

// PermissiveLifecycle allows any transition between known states.
type PermissiveLifecycle struct{}

// CanTransition rejects only unknown target states.
func (PermissiveLifecycle) CanTransition(_, to Status) GuardResult {
	if !to.Valid() {
		return GuardResult{Reason: fmt.Sprintf("unknown status %q", to)}
	}
	return GuardResult{Allowed: true}
}

// StrictLifecycle allows only forward moves. Finished states are final, and
// Analysis is the only state that may move to a Finished state.
// Re-asserting the current state is always allowed.
type StrictLifecycle struct{}

// CanTransition evaluates the forward-only ordering.
func (StrictLifecycle) CanTransition(from, to Status) GuardResult {
	if !to.Valid() {
		return GuardResult{Reason: fmt.Sprintf("unknown status %q", to)}
	}
	if from == to {
		return GuardResult{Allowed: true}
	}
	if from.Finished() {
		return GuardResult{Reason: fmt.Sprintf("experiment is %s; finished experiments cannot change status", from)}
	}
	if to.Finished() && from != domain.StatusAnalysis {
		return GuardResult{Reason: fmt.Sprintf("cannot finish from %s; move to %s first", from, domain.StatusAnalysis)}
	}
	if to.Rank() < from.Rank() {
		return GuardResult{Reason: fmt.Sprintf("cannot move back from %s to %s", from, to)}
	}
	return GuardResult{Allowed: true}
}
