package proposal

import (
	"strings"
	"time"

	"proposaldesk/internal/record"
	"proposaldesk/internal/util"
)

type Proposal struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	Version   int       `json:"version"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryEntry is one accepted status change. Entries are never edited or
// deleted.
type HistoryEntry struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposalId"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	At         time.Time `json:"at"`
	By         string    `json:"by"`
	Note       string    `json:"note,omitempty"`
}

// New returns a DRAFT proposal at version 1.
func New(companyID, title, content, createdBy string, at time.Time) Proposal {
	return Proposal{
		ID:        util.NewID("prop"),
		CompanyID: companyID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		Status:    StatusDraft,
		Version:   1,
		CreatedBy: createdBy,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Apply moves p to status to. It is the only place a status changes: the
// returned proposal has its version bumped and the history entry records the
// change.
func Apply(p Proposal, to Status, by, note string, at time.Time) (Proposal, HistoryEntry, error) {
	if err := CheckTransition(p.Status, to); err != nil {
		return p, HistoryEntry{}, err
	}
	entry := HistoryEntry{
		ID:         util.NewID("hist"),
		ProposalID: p.ID,
		From:       p.Status,
		To:         to,
		At:         at,
		By:         by,
		Note:       strings.TrimSpace(note),
	}
	next := p
	next.Status = to
	next.Version = p.Version + 1
	next.UpdatedAt = at
	return next, entry, nil
}

// Content is the editable body of a proposal. Status is changed only through
// Apply.
type Content struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (c Content) Normalize() (Content, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return c, &record.ValidationError{Field: "title", Reason: "is required"}
	}
	return c, nil
}

func (p Proposal) Body() Content {
	return Content{Title: p.Title, Content: p.Content}
}
