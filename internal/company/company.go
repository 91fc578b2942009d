// Package company holds the company profile record edited alongside
// proposals.
package company

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"proposaldesk/internal/record"
	"proposaldesk/internal/util"
)

type Company struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Version   int             `json:"version"`
	UpdatedBy string          `json:"updatedBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Profile is the editable part of a company.
type Profile struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Normalize trims the name and defaults empty or null data to an empty
// object.
func (p Profile) Normalize() (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, &record.ValidationError{Field: "name", Reason: "is required"}
	}
	if trimmed := bytes.TrimSpace(p.Data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.Data = json.RawMessage(`{}`)
	}
	if !json.Valid(p.Data) {
		return p, &record.ValidationError{Field: "data", Reason: "must be valid JSON"}
	}
	var obj map[string]any
	if err := json.Unmarshal(p.Data, &obj); err != nil {
		return p, &record.ValidationError{Field: "data", Reason: "must be a JSON object"}
	}
	return p, nil
}

// New returns a company at version 1.
func New(profile Profile, createdBy string, at time.Time) (Company, error) {
	profile, err := profile.Normalize()
	if err != nil {
		return Company{}, err
	}
	return Company{
		ID:        util.NewID("comp"),
		Name:      profile.Name,
		Data:      profile.Data,
		Version:   1,
		UpdatedBy: createdBy,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

func (c Company) Profile() Profile {
	return Profile{Name: c.Name, Data: c.Data}
}
