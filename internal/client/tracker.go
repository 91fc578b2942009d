package client

import (
	"context"

	"proposaldesk/internal/company"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

// ProposalTracker follows the version of p's content for repeated saves.
func (c *Client) ProposalTracker(p proposal.Proposal) *record.Tracker[proposal.Content] {
	return c.proposalTracker(p.ID, p.Version)
}

func (c *Client) proposalTracker(id string, version int) *record.Tracker[proposal.Content] {
	return record.NewTracker(version,
		func(ctx context.Context, version int, content proposal.Content) (int, error) {
			updated, err := c.UpdateProposal(ctx, id, version, content)
			if err != nil {
				return 0, err
			}
			return updated.Version, nil
		},
		func(ctx context.Context) (proposal.Content, int, error) {
			current, err := c.GetProposal(ctx, id)
			if err != nil {
				return proposal.Content{}, 0, err
			}
			return current.Body(), current.Version, nil
		},
	)
}

// CompanyTracker follows the version of co's profile for repeated saves.
func (c *Client) CompanyTracker(co company.Company) *record.Tracker[company.Profile] {
	id := co.ID
	return record.NewTracker(co.Version,
		func(ctx context.Context, version int, profile company.Profile) (int, error) {
			updated, err := c.UpdateCompany(ctx, id, version, profile)
			if err != nil {
				return 0, err
			}
			return updated.Version, nil
		},
		func(ctx context.Context) (company.Profile, int, error) {
			current, err := c.GetCompany(ctx, id)
			if err != nil {
				return company.Profile{}, 0, err
			}
			return current.Profile(), current.Version, nil
		},
	)
}
