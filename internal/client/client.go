// Package client talks to the proposal desk API and translates its responses
// into the record error taxonomy, so callers such as the autosave controller
// can tell a conflict from a validation rejection from a transient failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proposaldesk/internal/company"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL authenticating with token. httpClient may
// be nil.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// APIError is a non-2xx response that fits no more specific category.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// Is reports client errors other than timeouts and rate limits as
// record.ErrRefused; sending the same request again cannot succeed.
func (e *APIError) Is(target error) bool {
	if target != record.ErrRefused {
		return false
	}
	return e.Status >= 400 && e.Status < 500 &&
		e.Status != http.StatusRequestTimeout && e.Status != http.StatusTooManyRequests
}

type errorResponse struct {
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &record.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &record.TransientError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode %s: %w", op, err)
		}
		return nil
	}
	return decodeError(op, resp.StatusCode, payload)
}

func decodeError(op string, status int, payload []byte) error {
	var body errorResponse
	_ = json.Unmarshal(payload, &body)
	if body.Error == "" {
		body.Error = http.StatusText(status)
	}
	apiErr := &APIError{Status: status, Code: body.Code, Message: body.Error}

	switch {
	case status == http.StatusConflict && body.Code == "VERSION_CONFLICT":
		var details struct {
			ID               string `json:"id"`
			CurrentVersion   int    `json:"currentVersion"`
			SubmittedVersion int    `json:"submittedVersion"`
		}
		_ = json.Unmarshal(body.Details, &details)
		return &record.ConflictError{ID: details.ID, Submitted: details.SubmittedVersion, Current: details.CurrentVersion}
	case status == http.StatusUnprocessableEntity && body.Code == "INVALID_TRANSITION":
		var details struct {
			From proposal.Status `json:"from"`
			To   proposal.Status `json:"to"`
		}
		_ = json.Unmarshal(body.Details, &details)
		return &proposal.TransitionErr{From: details.From, To: details.To, Reason: body.Error}
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return &record.ValidationError{Reason: body.Error}
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, record.ErrNotFound)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return &record.TransientError{Op: op, Err: apiErr}
	default:
		return apiErr
	}
}

// Health reports whether the API answers. It is the check behind the
// connectivity probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) CreateCompany(ctx context.Context, profile company.Profile) (company.Company, error) {
	var out company.Company
	err := c.do(ctx, http.MethodPost, "/api/companies", profile, &out)
	return out, err
}

func (c *Client) GetCompany(ctx context.Context, id string) (company.Company, error) {
	var out company.Company
	err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(id), nil, &out)
	return out, err
}

// UpdateCompany submits profile against version, the version last observed.
func (c *Client) UpdateCompany(ctx context.Context, id string, version int, profile company.Profile) (company.Company, error) {
	body := map[string]any{"version": version, "name": profile.Name, "data": profile.Data}
	var out company.Company
	err := c.do(ctx, http.MethodPut, "/api/companies/"+url.PathEscape(id), body, &out)
	return out, err
}

func (c *Client) CreateProposal(ctx context.Context, companyID string, content proposal.Content) (proposal.Proposal, error) {
	body := map[string]any{"companyId": companyID, "title": content.Title, "content": content.Content}
	var out proposal.Proposal
	err := c.do(ctx, http.MethodPost, "/api/proposals", body, &out)
	return out, err
}

func (c *Client) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	var out proposal.Proposal
	err := c.do(ctx, http.MethodGet, "/api/proposals/"+url.PathEscape(id), nil, &out)
	return out, err
}

// UpdateProposal submits content against version, the version last observed.
func (c *Client) UpdateProposal(ctx context.Context, id string, version int, content proposal.Content) (proposal.Proposal, error) {
	body := map[string]any{"version": version, "title": content.Title, "content": content.Content}
	var out proposal.Proposal
	err := c.do(ctx, http.MethodPut, "/api/proposals/"+url.PathEscape(id), body, &out)
	return out, err
}

// TransitionProposal moves current to status to. Transitions the lifecycle
// table rejects fail here without a request being sent.
func (c *Client) TransitionProposal(ctx context.Context, current proposal.Proposal, to proposal.Status, note string) (proposal.Proposal, proposal.HistoryEntry, error) {
	if err := proposal.CheckTransition(current.Status, to); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	body := map[string]any{"version": current.Version, "status": to, "note": note}
	var out struct {
		Proposal proposal.Proposal     `json:"proposal"`
		History  proposal.HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/proposals/"+url.PathEscape(current.ID)+"/status", body, &out); err != nil {
		return proposal.Proposal{}, proposal.HistoryEntry{}, err
	}
	return out.Proposal, out.History, nil
}

func (c *Client) ProposalHistory(ctx context.Context, id string) ([]proposal.HistoryEntry, error) {
	var out struct {
		History []proposal.HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/proposals/"+url.PathEscape(id)+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}
