package autosave

import (
	"errors"
	"time"

	"proposaldesk/internal/record"
)

type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusSaving  Status = "SAVING"
	StatusSaved   Status = "SAVED"
	StatusOffline Status = "OFFLINE"
	StatusError   Status = "ERROR"
)

// Kind separates the failure categories a caller has to treat differently.
type Kind int

const (
	KindNone Kind = iota
	// KindTransient failures clear up on reconnect or the next change.
	KindTransient
	// KindConflict means the server holds a newer version; only an explicit
	// re-fetch can clear it.
	KindConflict
	// KindValidation means the change was rejected before anything was
	// written.
	KindValidation
	// KindRefused means the server will not accept this save at all: the
	// record is gone or the user may not write it.
	KindRefused
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindRefused:
		return "refused"
	default:
		return "none"
	}
}

// Classify maps a save error onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, record.ErrConflict):
		return KindConflict
	case errors.Is(err, record.ErrValidation):
		return KindValidation
	case errors.Is(err, record.ErrNotFound), errors.Is(err, record.ErrRefused):
		return KindRefused
	default:
		return KindTransient
	}
}

// State is the snapshot a presentation layer renders.
type State struct {
	Status    Status
	LastSaved *time.Time
	Err       error
	Kind      Kind
	Offline   bool
}

func (s State) Conflict() bool {
	return s.Status == StatusError && s.Kind == KindConflict
}

// Notice is the single user-facing message a State maps to.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeSavedLocally
	NoticeRetrying
	NoticeConflict
	NoticeInvalid
	NoticeRefused
)

func (s State) Notice() Notice {
	switch {
	case s.Status == StatusOffline:
		return NoticeSavedLocally
	case s.Status != StatusError:
		return NoticeNone
	case s.Kind == KindConflict:
		return NoticeConflict
	case s.Kind == KindValidation:
		return NoticeInvalid
	case s.Kind == KindRefused:
		return NoticeRefused
	default:
		return NoticeRetrying
	}
}

func (n Notice) Message() string {
	switch n {
	case NoticeSavedLocally:
		return "Saved locally, will sync when online"
	case NoticeRetrying:
		return "Save failed, retrying"
	case NoticeConflict:
		return "Someone else changed this. Reload to continue"
	case NoticeInvalid:
		return "Change rejected"
	case NoticeRefused:
		return "Save refused, your text is kept locally"
	default:
		return ""
	}
}
