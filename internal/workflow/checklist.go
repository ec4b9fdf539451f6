package workflow

import (
	"context"

	"github.com/minhphan/garageflow/internal/models"
)

// NewChecklistMachine builds the review machine for a checklist in its
// current backend status. releaseReady guards the approve transition: the
// machine will refuse APPROVE while inventory is insufficient or still
// being checked.
func NewChecklistMachine(status string, releaseReady GuardFunc) *Machine {
	builder := NewBuilder().
		PermitIf(StatePendingReview, TriggerApprove, StateApproved, releaseReady).
		Permit(StatePendingReview, TriggerReject, StateRejected)

	return builder.Build(StateFromChecklistStatus(status))
}

// StateFromChecklistStatus maps a backend checklist status onto a review
// state. "pending" and "check_in" are both reviewable.
func StateFromChecklistStatus(status string) State {
	switch models.NormalizeChecklistStatus(status) {
	case models.ChecklistStatusApproved:
		return StateApproved
	case models.ChecklistStatusRejected:
		return StateRejected
	default:
		return StatePendingReview
	}
}

// ChecklistStatusFromState maps a review state back to the backend status
// vocabulary.
func ChecklistStatusFromState(state State) string {
	switch state {
	case StateApproved:
		return models.ChecklistStatusApproved
	case StateRejected:
		return models.ChecklistStatusRejected
	default:
		return models.ChecklistStatusPending
	}
}

// guard helper used by tests and callers that precompute readiness.
func StaticGuard(allow bool) GuardFunc {
	return func(context.Context) bool { return allow }
}
