package proposal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"proposaldesk/internal/record"
)

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusDraft, StatusSubmitted, false},
		{StatusDraft, StatusCancelled, true},
		{StatusPending, StatusDraft, true},
		{StatusPending, StatusSubmitted, true},
		{StatusSubmitted, StatusWon, true},
		{StatusSubmitted, StatusLost, true},
		{StatusSubmitted, StatusDraft, false},
		{StatusWon, StatusCancelled, true},
		{StatusWon, StatusLost, false},
		{StatusLost, StatusCancelled, true},
		{StatusLost, StatusWon, false},
		{StatusCancelled, StatusDraft, false},
		{Status("ARCHIVED"), StatusDraft, false},
	}
	for _, tc := range cases {
		if got := IsValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSameStateIsNeverValid(t *testing.T) {
	for _, s := range Statuses {
		if IsValidTransition(s, s) {
			t.Errorf("IsValidTransition(%s, %s) = true", s, s)
		}
		if TransitionError(s, s) == "" {
			t.Errorf("TransitionError(%s, %s) is empty", s, s)
		}
	}
}

func TestValidTransitions(t *testing.T) {
	if got := ValidTransitions(StatusCancelled); len(got) != 0 {
		t.Fatalf("expected no transitions out of CANCELLED, got %v", got)
	}
	for _, s := range []Status{StatusWon, StatusLost} {
		got := ValidTransitions(s)
		if len(got) != 1 || got[0] != StatusCancelled {
			t.Fatalf("expected %s -> [CANCELLED], got %v", s, got)
		}
	}

	got := ValidTransitions(StatusDraft)
	got[0] = StatusWon
	if ValidTransitions(StatusDraft)[0] != StatusPending {
		t.Fatal("ValidTransitions must return a copy")
	}
}

func TestTransitionErrorMessages(t *testing.T) {
	if msg := TransitionError(StatusDraft, StatusPending); msg != "" {
		t.Fatalf("expected empty message for a valid transition, got %q", msg)
	}
	if msg := TransitionError(StatusCancelled, StatusDraft); !strings.Contains(msg, "cannot change status") {
		t.Fatalf("unexpected terminal message %q", msg)
	}
	msg := TransitionError(StatusDraft, StatusSubmitted)
	if !strings.Contains(msg, "DRAFT to SUBMITTED") || !strings.Contains(msg, "PENDING, CANCELLED") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCheckTransitionIsValidationError(t *testing.T) {
	err := CheckTransition(StatusDraft, StatusWon)
	if !errors.Is(err, record.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if errors.Is(err, record.ErrConflict) {
		t.Fatal("transition errors must not look like conflicts")
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" pending ")
	if err != nil || s != StatusPending {
		t.Fatalf("ParseStatus() = %v, %v", s, err)
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, record.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyAppendsHistoryAndBumpsVersion(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New("co_1", " Bid ", "body", "avery", at)

	next, entry, err := Apply(p, StatusPending, "avery", " ready for review ", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next.Status != StatusPending || next.Version != p.Version+1 {
		t.Fatalf("unexpected proposal after apply: %+v", next)
	}
	if entry.From != StatusDraft || entry.To != StatusPending || entry.By != "avery" || entry.Note != "ready for review" {
		t.Fatalf("unexpected history entry: %+v", entry)
	}
	if p.Status != StatusDraft {
		t.Fatal("Apply must not mutate its input")
	}

	unchanged, _, err := Apply(next, StatusPending, "avery", "", at)
	if err == nil {
		t.Fatal("expected same-state apply to fail")
	}
	if unchanged.Version != next.Version {
		t.Fatal("rejected apply must not bump version")
	}
}
