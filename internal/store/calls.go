package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ToolCall is one routing attempt against an external tool. Rows are
// immutable once written; a call record is always inserted fully
// populated in a single statement, never patched up afterwards.
type ToolCall struct {
	ID            int64
	ToolCallID    string
	WorkflowID    string
	ToolName      string
	CalledAt      time.Time
	CompletedAt   time.Time
	DurationMs    int64
	Success       bool
	ResultPayload string
	ErrorMessage  string
	TokensSaved   float64
	CostSaved     float64
}

// RecordToolCall persists a routing attempt.
func (s *Store) RecordToolCall(call ToolCall) error {
	if call.ToolCallID == "" {
		return errors.New("tool call id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	successInt := 0
	if call.Success {
		successInt = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO tool_calls
		(tool_call_id, workflow_id, tool_name, called_at, completed_at,
		 duration_ms, success, result_payload, error_message, tokens_saved, cost_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ToolCallID, call.WorkflowID, call.ToolName,
		call.CalledAt.UTC().Format(sqliteTimeFormat),
		call.CompletedAt.UTC().Format(sqliteTimeFormat),
		call.DurationMs, successInt, call.ResultPayload, call.ErrorMessage,
		call.TokensSaved, call.CostSaved)
	if err != nil {
		return fmt.Errorf("failed to record tool call: %w", err)
	}

	s.log.Debug("tool call recorded",
		zap.String("tool_call_id", call.ToolCallID),
		zap.String("tool", call.ToolName),
		zap.Bool("success", call.Success))
	return nil
}

// GetToolCall fetches a routing attempt by its call id.
func (s *Store) GetToolCall(toolCallID string) (*ToolCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(toolCallSelect+` WHERE tool_call_id = ?`, toolCallID)
	call, err := scanToolCall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tool call not found: %s", toolCallID)
	}
	return call, err
}

// ListToolCalls returns the most recent calls for a tool, newest first.
func (s *Store) ListToolCalls(toolName string, limit int) ([]ToolCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(toolCallSelect+`
		WHERE tool_name = ? ORDER BY called_at DESC, id DESC LIMIT ?`, toolName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		call, err := scanToolCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *call)
	}
	return calls, rows.Err()
}

// ToolReliability returns a tool's historical success rate in [0, 1]
// and the number of recorded calls. Feeds future reliability-aware
// fallback policies; with no history the rate is 0.
func (s *Store) ToolReliability(toolName string) (rate float64, calls int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(success), 0)
		FROM tool_calls WHERE tool_name = ?`, toolName).Scan(&calls, &rate)
	return rate, calls, err
}

const toolCallSelect = `
	SELECT id, tool_call_id, workflow_id, tool_name, called_at, completed_at,
	       duration_ms, success, result_payload, error_message, tokens_saved, cost_saved
	FROM tool_calls`

func scanToolCall(scan func(dest ...any) error) (*ToolCall, error) {
	var call ToolCall
	var successInt int
	var calledAt, completedAt string
	var workflowID, payload, errMsg sql.NullString

	err := scan(&call.ID, &call.ToolCallID, &workflowID, &call.ToolName,
		&calledAt, &completedAt, &call.DurationMs, &successInt,
		&payload, &errMsg, &call.TokensSaved, &call.CostSaved)
	if err != nil {
		return nil, err
	}

	call.WorkflowID = workflowID.String
	call.ResultPayload = payload.String
	call.ErrorMessage = errMsg.String
	call.Success = successInt == 1
	call.CalledAt = parseSQLiteTime(calledAt)
	call.CompletedAt = parseSQLiteTime(completedAt)
	return &call, nil
}
