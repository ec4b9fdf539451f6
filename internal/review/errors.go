package review

import "errors"

var (
	// ErrChecklistNotFound is returned when the backend has no checklist
	// with the requested id.
	ErrChecklistNotFound = errors.New("checklist not found")

	// ErrReviewNotOpened is returned when an action needs a review session
	// that was never opened.
	ErrReviewNotOpened = errors.New("review session not opened")

	// ErrNotReleaseReady is returned when approval is attempted while the
	// aggregate gate is not satisfied. No backend call is made.
	ErrNotReleaseReady = errors.New("checklist is not release-ready")

	// ErrEmptyReason is returned when a rejection reason is empty after
	// trimming.
	ErrEmptyReason = errors.New("rejection reason must not be empty")

	// ErrReviewInFlight is returned when an approve or reject is already
	// running for the same checklist.
	ErrReviewInFlight = errors.New("another review action is in flight for this checklist")

	// ErrAlreadyReviewed is returned when the checklist has already
	// reached a terminal state.
	ErrAlreadyReviewed = errors.New("checklist has already been reviewed")

	// ErrBackendMutation wraps accept/reject failures from the operations
	// backend. The checklist state is left unchanged.
	ErrBackendMutation = errors.New("backend mutation failed")
)
