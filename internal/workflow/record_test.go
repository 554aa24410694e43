package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, Record{WorkflowID: "wf-1"}.Validate())
	assert.ErrorIs(t, Record{}.Validate(), ErrMissingWorkflowID)
	assert.ErrorIs(t, Record{WorkflowID: "   "}.Validate(), ErrMissingWorkflowID)
}

func TestRecordNormalized(t *testing.T) {
	r := Record{
		WorkflowID:      "  wf-1  ",
		Description:     "\trun tests\n",
		TemplateHint:    " nightly ",
		FailureMessage:  " boom ",
		TotalTokens:     -5,
		TotalCost:       -0.1,
		DurationSeconds: -1,
		ErrorCount:      -2,
		RetryCount:      -3,
	}

	n := r.Normalized()
	assert.Equal(t, "wf-1", n.WorkflowID)
	assert.Equal(t, "run tests", n.Description)
	assert.Equal(t, "nightly", n.TemplateHint)
	assert.Equal(t, "boom", n.FailureMessage)
	assert.Zero(t, n.TotalTokens)
	assert.Zero(t, n.TotalCost)
	assert.Zero(t, n.DurationSeconds)
	assert.Zero(t, n.ErrorCount)
	assert.Zero(t, n.RetryCount)

	// Original is untouched.
	assert.Equal(t, "  wf-1  ", r.WorkflowID)
}

func TestRecordDecodeDefaults(t *testing.T) {
	// Sparse upstream JSON: only the id present.
	var r Record
	assert.NoError(t, json.Unmarshal([]byte(`{"workflow_id":"wf-9"}`), &r))
	assert.NoError(t, r.Validate())
	assert.Empty(t, r.Description)
	assert.Zero(t, r.TotalCost)
}
