package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"proposaldesk/internal/auth"
	"proposaldesk/internal/company"
	"proposaldesk/internal/config"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/rbac"
	"proposaldesk/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

// Service enforces permissions and the version and transition rules on top
// of a store.Store.
type Service struct {
	cfg   config.Config
	store store.Store
	now   func() time.Time
}

func NewService(cfg config.Config, dataStore store.Store) *Service {
	return &Service{cfg: cfg, store: dataStore, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IssueToken mints a bearer token for name with the given role.
func (s *Service) IssueToken(name, role string) (string, error) {
	return auth.IssueToken([]byte(s.cfg.JWTSecret), "", strings.TrimSpace(name), string(rbac.Normalize(role)), s.cfg.AccessTTL)
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	session := Session{
		Token:    token,
		UserID:   claims.Subject,
		UserName: claims.Name,
		Role:     string(rbac.Normalize(claims.Role)),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) require(session Session, action rbac.Action) error {
	if !s.Can(session.Role, action) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}

func requireVersion(version int) error {
	if version < 1 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "version is required", map[string]any{"field": "version"})
	}
	return nil
}

func (s *Service) CreateCompany(ctx context.Context, session Session, profile company.Profile) (company.Company, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return company.Company{}, err
	}
	c, err := company.New(profile, session.UserName, s.now())
	if err != nil {
		return company.Company{}, err
	}
	if err := s.store.CreateCompany(ctx, c); err != nil {
		return company.Company{}, err
	}
	return c, nil
}

func (s *Service) GetCompany(ctx context.Context, session Session, id string) (company.Company, error) {
	if err := s.require(session, rbac.ActionRead); err != nil {
		return company.Company{}, err
	}
	return s.store.GetCompany(ctx, id)
}

func (s *Service) UpdateCompany(ctx context.Context, session Session, id string, version int, profile company.Profile) (company.Company, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return company.Company{}, err
	}
	if err := requireVersion(version); err != nil {
		return company.Company{}, err
	}
	profile, err := profile.Normalize()
	if err != nil {
		return company.Company{}, err
	}
	updated, err := s.store.UpdateCompany(ctx, id, version, profile, session.UserName, s.now())
	if err != nil {
		return company.Company{}, err
	}
	return updated, nil
}

func (s *Service) CreateProposal(ctx context.Context, session Session, companyID string, content proposal.Content) (proposal.Proposal, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return proposal.Proposal{}, err
	}
	content, err := content.Normalize()
	if err != nil {
		return proposal.Proposal{}, err
	}
	p := proposal.New(strings.TrimSpace(companyID), content.Title, content.Content, session.UserName, s.now())
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (s *Service) GetProposal(ctx context.Context, session Session, id string) (proposal.Proposal, error) {
	if err := s.require(session, rbac.ActionRead); err != nil {
		return proposal.Proposal{}, err
	}
	return s.store.GetProposal(ctx, id)
}

func (s *Service) UpdateProposal(ctx context.Context, session Session, id string, version int, content proposal.Content) (proposal.Proposal, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return proposal.Proposal{}, err
	}
	if err := requireVersion(version); err != nil {
		return proposal.Proposal{}, err
	}
	content, err := content.Normalize()
	if err != nil {
		return proposal.Proposal{}, err
	}
	return s.store.UpdateProposalContent(ctx, id, version, content, s.now())
}

// TransitionProposal changes status. The store re-checks the transition
// against the locked row, so a stale client cannot slip an illegal change
// through between read and write.
func (s *Service) TransitionProposal(ctx context.Context, session Session, id string, version int, status, note string) (proposal.Proposal, proposal.HistoryEntry, error) {
	if err := s.require(session, rbac.ActionTransition); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	if err := requireVersion(version); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	to, err := proposal.ParseStatus(status)
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	next, entry, err := s.store.TransitionProposal(ctx, id, version, to, session.UserName, note, s.now())
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	log.Printf("proposal %s: %s -> %s by %s (version %d)", next.ID, entry.From, entry.To, entry.By, next.Version)
	return next, entry, nil
}

func (s *Service) ProposalHistory(ctx context.Context, session Session, id string) ([]proposal.HistoryEntry, error) {
	if err := s.require(session, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetProposal(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// ProposalTransitions returns the proposal's current status and the statuses
// it may move to next.
func (s *Service) ProposalTransitions(ctx context.Context, session Session, id string) (proposal.Proposal, []proposal.Status, error) {
	p, err := s.GetProposal(ctx, session, id)
	if err != nil {
		return proposal.Proposal{}, nil, err
	}
	return p, proposal.ValidTransitions(p.Status), nil
}
