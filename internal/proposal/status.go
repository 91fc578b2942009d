// Package proposal holds the proposal lifecycle: the status adjacency table
// every status change is checked against, and the append-only history that an
// accepted change produces. Clients consult the same table before sending a
// status update and the server re-validates it inside the write transaction.
package proposal

import (
	"fmt"
	"strings"

	"proposaldesk/internal/record"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusWon       Status = "WON"
	StatusLost      Status = "LOST"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPending,
	StatusSubmitted,
	StatusWon,
	StatusLost,
	StatusCancelled,
}

// transitions must stay identical on client and server.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusDraft, StatusSubmitted, StatusCancelled},
	StatusSubmitted: {StatusWon, StatusLost, StatusCancelled},
	StatusWon:       {StatusCancelled},
	StatusLost:      {StatusCancelled},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", &record.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", value)}
	}
	return status, nil
}

// ValidTransitions returns the statuses reachable from s. The slice is a copy.
func ValidTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsValidTransition reports whether from -> to is a genuine, allowed change.
// Same-state transitions are never valid.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionError describes why from -> to is rejected, or returns "" when it
// is allowed.
func TransitionError(from, to Status) string {
	switch {
	case !from.Valid():
		return fmt.Sprintf("unknown current status %q", from)
	case !to.Valid():
		return fmt.Sprintf("unknown target status %q", to)
	case from == to:
		return fmt.Sprintf("proposal is already %s", from)
	case from.Terminal():
		return fmt.Sprintf("%s proposals cannot change status", from)
	case IsValidTransition(from, to):
		return ""
	}
	allowed := make([]string, 0, len(transitions[from]))
	for _, s := range transitions[from] {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("cannot move a proposal from %s to %s; allowed: %s", from, to, strings.Join(allowed, ", "))
}

// TransitionErr is the validation failure returned by CheckTransition.
type TransitionErr struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionErr) Error() string {
	return "invalid transition: " + e.Reason
}

func (e *TransitionErr) Is(target error) bool {
	return target == record.ErrValidation
}

// CheckTransition is IsValidTransition in error form.
func CheckTransition(from, to Status) error {
	if reason := TransitionError(from, to); reason != "" {
		return &TransitionErr{From: from, To: to, Reason: reason}
	}
	return nil
}
