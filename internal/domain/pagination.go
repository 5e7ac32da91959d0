package domain

// PaginationOutcome is the terminal state of a reveal loop.
type PaginationOutcome string

const (
	// OutcomeExhausted means the reveal control disappeared or never became interactable.
	OutcomeExhausted PaginationOutcome = "exhausted"
	// OutcomeLimitReached means the configured number of reveals was performed.
	OutcomeLimitReached PaginationOutcome = "limit-reached"
	// OutcomeError means an interaction failed; links seen so far are still returned.
	OutcomeError PaginationOutcome = "error"
)

// PaginationState tracks one listing job's reveal loop.
type PaginationState struct {
	Reveals    int
	MaxReveals int
	Outcome    PaginationOutcome
}

// Done reports whether the loop has reached a terminal outcome.
func (s PaginationState) Done() bool {
	return s.Outcome != ""
}
