package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"proposaldesk/internal/company"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

// MemoryStore is a Store for development and tests. It applies the same
// version rules as PostgresStore under one mutex.
type MemoryStore struct {
	mu        sync.Mutex
	companies map[string]company.Company
	proposals map[string]proposal.Proposal
	history   map[string][]proposal.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[string]company.Company),
		proposals: make(map[string]proposal.Proposal),
		history:   make(map[string][]proposal.HistoryEntry),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneCompany(c company.Company) company.Company {
	c.Data = append(json.RawMessage(nil), c.Data...)
	return c
}

func (s *MemoryStore) CreateCompany(_ context.Context, c company.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.companies[c.ID]; exists {
		return &record.ValidationError{Field: "id", Reason: "already exists"}
	}
	s.companies[c.ID] = cloneCompany(c)
	return nil
}

func (s *MemoryStore) GetCompany(_ context.Context, id string) (company.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return company.Company{}, record.ErrNotFound
	}
	return cloneCompany(c), nil
}

func (s *MemoryStore) UpdateCompany(_ context.Context, id string, version int, profile company.Profile, by string, at time.Time) (company.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return company.Company{}, record.ErrNotFound
	}
	if c.Version != version {
		return company.Company{}, conflict(id, version, c.Version)
	}
	c.Name = profile.Name
	c.Data = profile.Data
	c.UpdatedBy = by
	c.UpdatedAt = at
	c.Version++
	s.companies[id] = cloneCompany(c)
	return cloneCompany(c), nil
}

func (s *MemoryStore) CreateProposal(_ context.Context, p proposal.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[p.CompanyID]; !ok {
		return &record.ValidationError{Field: "companyId", Reason: "unknown company"}
	}
	if _, exists := s.proposals[p.ID]; exists {
		return &record.ValidationError{Field: "id", Reason: "already exists"}
	}
	s.proposals[p.ID] = p
	return nil
}

func (s *MemoryStore) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, record.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpdateProposalContent(_ context.Context, id string, version int, content proposal.Content, at time.Time) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, record.ErrNotFound
	}
	if p.Version != version {
		return proposal.Proposal{}, conflict(id, version, p.Version)
	}
	p.Title = content.Title
	p.Content = content.Content
	p.UpdatedAt = at
	p.Version++
	s.proposals[id] = p
	return p, nil
}

func (s *MemoryStore) TransitionProposal(_ context.Context, id string, version int, to proposal.Status, by, note string, at time.Time) (proposal.Proposal, proposal.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, proposal.HistoryEntry{}, record.ErrNotFound
	}
	if p.Version != version {
		return proposal.Proposal{}, proposal.HistoryEntry{}, conflict(id, version, p.Version)
	}
	next, entry, err := proposal.Apply(p, to, by, note, at)
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	s.proposals[id] = next
	s.history[id] = append(s.history[id], entry)
	return next, entry, nil
}

func (s *MemoryStore) ListHistory(_ context.Context, proposalID string) ([]proposal.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proposal.HistoryEntry{}, s.history[proposalID]...), nil
}
