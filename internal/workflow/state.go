package workflow

// State represents a checklist review state
type State string

const (
	// StatePendingReview covers both the backend "pending" and "check_in"
	// statuses: the checklist is waiting for a reviewer decision.
	StatePendingReview State = "PENDING_REVIEW"

	// StateApproved is terminal; settlement may follow but the review
	// itself is done.
	StateApproved State = "APPROVED"

	// StateRejected is terminal; no settlement path exists.
	StateRejected State = "REJECTED"
)

var validStates = map[State]bool{
	StatePendingReview: true,
	StateApproved:      true,
	StateRejected:      true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a known review state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
