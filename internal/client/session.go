package client

import (
	"context"
	"log/slog"

	"proposaldesk/internal/autosave"
	"proposaldesk/internal/connectivity"
	"proposaldesk/internal/offline"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

// Session is one editor's autosaving view of a proposal.
type Session struct {
	Proposal proposal.Proposal
	Tracker  *record.Tracker[proposal.Content]
	Autosave *autosave.Controller[proposal.Content]
	// Restored is the draft an earlier session left in the backup, already
	// queued for saving. The editor shows it instead of the server copy.
	Restored *proposal.Content
}

// BackupKey names the offline backup of proposal id.
func BackupKey(id string) string {
	return "proposal:" + id
}

// OpenSession starts autosaving current. A backup that differs from the
// server copy is queued again against the version it was written on, so if
// anyone saved in between the replay ends in a conflict and the draft comes
// back through Resolve.
func (c *Client) OpenSession(ctx context.Context, current proposal.Proposal, backups offline.Store, signal connectivity.Signal, opts autosave.Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := BackupKey(current.ID)
	s := &Session{Proposal: current}

	version := current.Version
	if pending, ok := autosave.LoadPending[proposal.Content](ctx, backups, key, logger); ok && pending.Value != current.Body() {
		// Versions start at 1; a backup without a base can only be trusted
		// against a record nobody has changed since it was created.
		version = max(pending.Base, 1)
		draft := pending.Value
		s.Restored = &draft
	}

	s.Tracker = c.proposalTracker(current.ID, version)
	opts.Version = s.Tracker.Version
	s.Autosave = autosave.New(ctx, key, s.Tracker.Save, backups, signal, opts)
	if s.Restored != nil {
		logger.Info("client: restoring unsaved draft", "proposal", current.ID, "base", version, "current", current.Version)
		s.Autosave.Change(*s.Restored)
	}
	return s
}

// Close stops autosaving; any unsaved draft stays in the backup.
func (s *Session) Close() {
	s.Autosave.Close()
}
