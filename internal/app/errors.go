package app

import (
	"errors"
	"fmt"
	"net/http"

	"proposaldesk/internal/auth"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/record"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if conflict, ok := record.IsConflict(err); ok {
		return http.StatusConflict, "VERSION_CONFLICT", "Record was changed by someone else; reload to continue", map[string]any{
			"id":               conflict.ID,
			"currentVersion":   conflict.Current,
			"submittedVersion": conflict.Submitted,
		}
	}
	var transitionErr *proposal.TransitionErr
	if errors.As(err, &transitionErr) {
		allowed := proposal.ValidTransitions(transitionErr.From)
		return http.StatusUnprocessableEntity, "INVALID_TRANSITION", transitionErr.Reason, map[string]any{
			"from":    transitionErr.From,
			"to":      transitionErr.To,
			"allowed": allowed,
		}
	}
	var validationErr *record.ValidationError
	if errors.As(err, &validationErr) {
		var details any
		if validationErr.Field != "" {
			details = map[string]any{"field": validationErr.Field}
		}
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(), details
	}
	if errors.Is(err, record.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
