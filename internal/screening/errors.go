package screening

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocument is returned when a decision is recorded with nothing on screen
	ErrNoDocument = errors.New("no document loaded")

	// ErrStaleTicket is returned when a fetch result arrives for a superseded request
	ErrStaleTicket = errors.New("stale fetch ticket")

	// ErrUnknownLabel is returned for a label that is neither relevant nor irrelevant
	ErrUnknownLabel = errors.New("unknown label")
)

// TransitionError represents an action that is not allowed in the current phase
type TransitionError struct {
	From   Phase
	Action string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s while %s: %s", e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s while %s", e.Action, e.From)
}
