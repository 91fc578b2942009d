// Package record carries the optimistic-concurrency contract shared by the
// server and its clients: version-stamped updates, the conflict signal, and
// the error categories a caller must be able to tell apart.
package record

import (
	"errors"
	"fmt"
)

var (
	ErrConflict   = errors.New("version conflict")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("record not found")
	// ErrRefused marks a request the server will keep turning down however
	// often it is sent: missing permission, bad credentials.
	ErrRefused = errors.New("request refused")
)

// ConflictError reports that the submitted version no longer matches the
// stored one. Current is the server's version at rejection time.
type ConflictError struct {
	ID        string
	Submitted int
	Current   int
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("record %s: submitted version %d, current version %d", e.ID, e.Submitted, e.Current)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError is a rejection that happened before anything was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransientError wraps failures expected to clear up on their own: no
// connectivity, timeouts, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a version conflict, returning it when so.
func IsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
