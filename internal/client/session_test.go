package client

import (
	"context"
	"testing"
	"time"

	"proposaldesk/internal/autosave"
	"proposaldesk/internal/connectivity"
	"proposaldesk/internal/offline"
	"proposaldesk/internal/proposal"
)

// leaveOfflineDraft edits p in a session that never reaches the server and
// closes it, the way a desk window shut while offline does.
func leaveOfflineDraft(t *testing.T, c *Client, p proposal.Proposal, backups offline.Store, text string) {
	t.Helper()
	monitor := connectivity.NewMonitor(false, nil)
	s := c.OpenSession(context.Background(), p, backups, monitor, autosave.Options{Delay: 10 * time.Millisecond})
	s.Autosave.Change(proposal.Content{Title: p.Title, Content: text})
	waitForState(t, s.Autosave, func(st autosave.State) bool { return st.Status == autosave.StatusOffline })
	s.Close()
}

func TestRestoredDraftConflictsWithNewerServerCopy(t *testing.T) {
	srv, svc := newTestAPI(t)
	ana := newTestClient(t, srv, svc, "ana")
	ben := newTestClient(t, srv, svc, "ben")
	ctx := context.Background()
	backups := offline.NewMemoryStore()
	defer backups.Close()

	p := seedProposal(t, ana)
	leaveOfflineDraft(t, ana, p, backups, "ana offline")

	if _, err := ben.UpdateProposal(ctx, p.ID, p.Version, proposal.Content{Title: "Bridge", Content: "ben v2"}); err != nil {
		t.Fatalf("UpdateProposal() error = %v", err)
	}

	current, err := ana.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	s := ana.OpenSession(ctx, current, backups, connectivity.NewMonitor(true, nil), autosave.Options{Delay: 10 * time.Millisecond})
	defer s.Close()
	if s.Restored == nil || s.Restored.Content != "ana offline" {
		t.Fatalf("Restored = %+v", s.Restored)
	}

	state := waitForState(t, s.Autosave, autosave.State.Conflict)
	if state.Notice() != autosave.NoticeConflict {
		t.Fatalf("Notice() = %v", state.Notice())
	}
	stored, err := ben.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	if stored.Content != "ben v2" || stored.Version != 2 {
		t.Fatalf("replayed backup overwrote the newer copy: %+v", stored)
	}

	fresh, err := s.Tracker.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	rejected, ok := s.Autosave.Resolve(fresh)
	if !ok || rejected.Content != "ana offline" {
		t.Fatalf("Resolve() = %+v, %v", rejected, ok)
	}
	if _, ok := autosave.LoadPending[proposal.Content](ctx, backups, BackupKey(p.ID), nil); ok {
		t.Fatal("backup must be gone after Resolve")
	}
}

func TestRestoredDraftSavesWhenNothingChanged(t *testing.T) {
	srv, svc := newTestAPI(t)
	ana := newTestClient(t, srv, svc, "ana")
	ctx := context.Background()
	backups := offline.NewMemoryStore()
	defer backups.Close()

	p := seedProposal(t, ana)
	leaveOfflineDraft(t, ana, p, backups, "ana offline")

	pending, ok := autosave.LoadPending[proposal.Content](ctx, backups, BackupKey(p.ID), nil)
	if !ok || pending.Base != p.Version {
		t.Fatalf("LoadPending() = %+v, %v; want base %d", pending, ok, p.Version)
	}

	s := ana.OpenSession(ctx, p, backups, connectivity.NewMonitor(true, nil), autosave.Options{Delay: 10 * time.Millisecond})
	defer s.Close()
	waitForState(t, s.Autosave, func(st autosave.State) bool { return st.Status == autosave.StatusSaved })

	stored, err := ana.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	if stored.Content != "ana offline" || stored.Version != 2 {
		t.Fatalf("unexpected stored proposal %+v", stored)
	}
	if _, ok := autosave.LoadPending[proposal.Content](ctx, backups, BackupKey(p.ID), nil); ok {
		t.Fatal("backup must be cleared after the replay saved")
	}
}

func TestRestoredDraftWithoutBaseIsTreatedAsFirstVersion(t *testing.T) {
	srv, svc := newTestAPI(t)
	ana := newTestClient(t, srv, svc, "ana")
	ctx := context.Background()
	backups := offline.NewMemoryStore()
	defer backups.Close()

	p := seedProposal(t, ana)
	updated, err := ana.UpdateProposal(ctx, p.ID, p.Version, proposal.Content{Title: "Bridge", Content: "v2"})
	if err != nil {
		t.Fatalf("UpdateProposal() error = %v", err)
	}
	legacy := offline.Bind[proposal.Content](ctx, backups, BackupKey(p.ID), nil)
	if err := legacy.Set(ctx, proposal.Content{Title: "Bridge", Content: "old draft"}); err != nil {
		t.Fatalf("seed backup: %v", err)
	}
	legacy.Close()

	s := ana.OpenSession(ctx, updated, backups, connectivity.NewMonitor(true, nil), autosave.Options{Delay: 10 * time.Millisecond})
	defer s.Close()
	waitForState(t, s.Autosave, autosave.State.Conflict)
	stored, err := ana.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	if stored.Content != "v2" {
		t.Fatalf("backup without a base overwrote version %d: %+v", updated.Version, stored)
	}
}
