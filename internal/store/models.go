package store

import (
	"context"
	"time"

	"proposaldesk/internal/company"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

// Store is the versioned persistence the API service runs on. Every update
// takes the version the caller last observed and fails with
// *record.ConflictError when the stored version differs; a missing row is
// record.ErrNotFound.
type Store interface {
	Ping(ctx context.Context) error

	CreateCompany(ctx context.Context, c company.Company) error
	GetCompany(ctx context.Context, id string) (company.Company, error)
	UpdateCompany(ctx context.Context, id string, version int, profile company.Profile, by string, at time.Time) (company.Company, error)

	CreateProposal(ctx context.Context, p proposal.Proposal) error
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	UpdateProposalContent(ctx context.Context, id string, version int, content proposal.Content, at time.Time) (proposal.Proposal, error)
	// TransitionProposal changes status through proposal.Apply and appends
	// the history entry in the same write.
	TransitionProposal(ctx context.Context, id string, version int, to proposal.Status, by, note string, at time.Time) (proposal.Proposal, proposal.HistoryEntry, error)
	ListHistory(ctx context.Context, proposalID string) ([]proposal.HistoryEntry, error)
}

func conflict(id string, submitted, current int) error {
	return &record.ConflictError{ID: id, Submitted: submitted, Current: current}
}
