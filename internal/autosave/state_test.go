package autosave

import (
	"errors"
	"fmt"
	"testing"

	"proposaldesk/internal/record"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"conflict", &record.ConflictError{ID: "p1", Submitted: 1, Current: 2}, KindConflict},
		{"validation", &record.ValidationError{Field: "title", Reason: "is required"}, KindValidation},
		{"not found", fmt.Errorf("PUT /proposals/p1: %w", record.ErrNotFound), KindRefused},
		{"refused", fmt.Errorf("PUT /proposals/p1: %w", record.ErrRefused), KindRefused},
		{"transient", &record.TransientError{Op: "PUT /proposals/p1", Err: errors.New("connection reset")}, KindTransient},
		{"unknown", errors.New("boom"), KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRefusedStateNotice(t *testing.T) {
	state := State{Status: StatusError, Kind: KindRefused, Err: record.ErrRefused}
	if state.Notice() != NoticeRefused {
		t.Fatalf("Notice() = %v", state.Notice())
	}
	if state.Notice() == NoticeRetrying {
		t.Fatal("a refused save must not claim to be retried")
	}
}
