package shared

import "errors"

// Lifecycle statuses used by fiscal years, entries and tax declarations.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusDraft     = "draft"
	StatusValidated = "validated"
	StatusSubmitted = "submitted"
)

// ErrInvalidTransition indicates status change not allowed.
var ErrInvalidTransition = errors.New("status transition invalid")

// Every lifecycle is a single forward step into a terminal state.
var transitions = map[string][]string{
	StatusOpen:  {StatusClosed},
	StatusDraft: {StatusValidated, StatusSubmitted},
}

// ValidateTransition checks a status change. Repeating a terminal transition
// is reported as a conflict, like any other disallowed move.
func ValidateTransition(current, target string) error {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return nil
		}
	}
	return ConflictError(ErrInvalidTransition, "%s -> %s", current, target)
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}
