// Package workflow defines the upstream workflow record contract.
// Records arrive from the sync collaborator as loosely-populated JSON;
// every optional field has a documented zero default so downstream
// extraction never branches on field presence.
package workflow

import (
	"errors"
	"strings"
)

// Record errors.
var (
	// ErrMissingWorkflowID is returned when a record has no workflow id.
	ErrMissingWorkflowID = errors.New("workflow record missing workflow_id")
)

// Record is one completed automated-workflow run.
// WorkflowID is the only required field. Text fields default to the
// empty string, numeric fields to zero.
type Record struct {
	WorkflowID      string  `json:"workflow_id"`
	Description     string  `json:"description"`
	TemplateHint    string  `json:"template_hint"`
	FailureMessage  string  `json:"failure_message"`
	TotalTokens     int64   `json:"total_tokens"`
	TotalCost       float64 `json:"total_cost"`
	DurationSeconds float64 `json:"duration_seconds"`
	ErrorCount      int     `json:"error_count"`
	RetryCount      int     `json:"retry_count"`
}

// Normalized returns a copy with trimmed text fields and negative
// numeric fields clamped to zero.
func (r Record) Normalized() Record {
	r.WorkflowID = strings.TrimSpace(r.WorkflowID)
	r.Description = strings.TrimSpace(r.Description)
	r.TemplateHint = strings.TrimSpace(r.TemplateHint)
	r.FailureMessage = strings.TrimSpace(r.FailureMessage)
	if r.TotalTokens < 0 {
		r.TotalTokens = 0
	}
	if r.TotalCost < 0 {
		r.TotalCost = 0
	}
	if r.DurationSeconds < 0 {
		r.DurationSeconds = 0
	}
	if r.ErrorCount < 0 {
		r.ErrorCount = 0
	}
	if r.RetryCount < 0 {
		r.RetryCount = 0
	}
	return r
}

// Validate checks the required fields.
func (r Record) Validate() error {
	if strings.TrimSpace(r.WorkflowID) == "" {
		return ErrMissingWorkflowID
	}
	return nil
}
