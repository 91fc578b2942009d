package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proposaldesk/internal/company"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const companyColumns = `id, name, data, version, updated_by, created_at, updated_at`

func scanCompany(row rowScanner) (company.Company, error) {
	var (
		c    company.Company
		data []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &data, &c.Version, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return company.Company{}, err
	}
	c.Data = json.RawMessage(data)
	return c, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c company.Company) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, data, version, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)
	`, c.ID, c.Name, string(c.Data), c.Version, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return &record.ValidationError{Field: "id", Reason: "already exists"}
	}
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (company.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=$1`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return company.Company{}, record.ErrNotFound
	}
	if err != nil {
		return company.Company{}, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, id string, version int, profile company.Profile, by string, at time.Time) (company.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE companies
		SET name=$3, data=$4::jsonb, updated_by=$5, updated_at=$6, version=version+1
		WHERE id=$1 AND version=$2
		RETURNING `+companyColumns, id, version, profile.Name, string(profile.Data), by, at)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return company.Company{}, s.missedUpdate(ctx, "companies", id, version)
	}
	if err != nil {
		return company.Company{}, fmt.Errorf("update company: %w", err)
	}
	return c, nil
}

const proposalColumns = `id, company_id, title, content, status, version, created_by, created_at, updated_at`

func scanProposal(row rowScanner) (proposal.Proposal, error) {
	var (
		p      proposal.Proposal
		status string
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Title, &p.Content, &status, &p.Version, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return proposal.Proposal{}, err
	}
	p.Status = proposal.Status(status)
	return p, nil
}

func (s *PostgresStore) CreateProposal(ctx context.Context, p proposal.Proposal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, company_id, title, content, status, version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.CompanyID, p.Title, p.Content, string(p.Status), p.Version, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	switch pgCode(err) {
	case codeForeignKeyViolation:
		return &record.ValidationError{Field: "companyId", Reason: "unknown company"}
	case codeUniqueViolation:
		return &record.ValidationError{Field: "id", Reason: "already exists"}
	}
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Proposal{}, record.ErrNotFound
	}
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProposalContent(ctx context.Context, id string, version int, content proposal.Content, at time.Time) (proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE proposals
		SET title=$3, content=$4, updated_at=$5, version=version+1
		WHERE id=$1 AND version=$2
		RETURNING `+proposalColumns, id, version, content.Title, content.Content, at)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Proposal{}, s.missedUpdate(ctx, "proposals", id, version)
	}
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("update proposal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) TransitionProposal(ctx context.Context, id string, version int, to proposal.Status, by, note string, at time.Time) (proposal.Proposal, proposal.HistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanProposal(tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Proposal{}, proposal.HistoryEntry{}, record.ErrNotFound
	}
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, fmt.Errorf("lock proposal: %w", err)
	}
	if current.Version != version {
		return proposal.Proposal{}, proposal.HistoryEntry{}, conflict(id, version, current.Version)
	}

	next, entry, err := proposal.Apply(current, to, by, note, at)
	if err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE proposals SET status=$2, version=$3, updated_at=$4 WHERE id=$1
	`, next.ID, string(next.Status), next.Version, next.UpdatedAt); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, fmt.Errorf("update proposal status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO proposal_history (id, proposal_id, from_status, to_status, changed_at, changed_by, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.ProposalID, string(entry.From), string(entry.To), entry.At, entry.By, entry.Note); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, fmt.Errorf("insert proposal history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, fmt.Errorf("commit transition: %w", err)
	}
	return next, entry, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, proposalID string) ([]proposal.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, from_status, to_status, changed_at, changed_by, note
		FROM proposal_history
		WHERE proposal_id=$1
		ORDER BY changed_at ASC, id ASC
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list proposal history: %w", err)
	}
	defer rows.Close()

	entries := make([]proposal.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry    proposal.HistoryEntry
			from, to string
		)
		if err := rows.Scan(&entry.ID, &entry.ProposalID, &from, &to, &entry.At, &entry.By, &entry.Note); err != nil {
			return nil, fmt.Errorf("scan proposal history: %w", err)
		}
		entry.From = proposal.Status(from)
		entry.To = proposal.Status(to)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal history: %w", err)
	}
	return entries, nil
}

// missedUpdate explains a version-guarded UPDATE that matched no row.
// table is one of the fixed table names above, never caller input.
func (s *PostgresStore) missedUpdate(ctx context.Context, table, id string, submitted int) error {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return record.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s version: %w", table, err)
	}
	return conflict(id, submitted, current)
}
