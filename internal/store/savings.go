package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SavingsEntry is one row of the append-only cost ledger.
type SavingsEntry struct {
	ID               int64
	OptimizationKind string
	WorkflowID       string
	ToolCallID       string
	PatternID        int64 // 0 when not attributable to a pattern
	TokensSaved      float64
	CostSaved        float64
	Note             string
	LoggedAt         time.Time
}

// KindTotals aggregates savings for one optimization kind.
type KindTotals struct {
	Entries     int64
	TokensSaved float64
	CostSaved   float64
}

// SavingsSummary is the ledger rollup.
type SavingsSummary struct {
	Entries     int64
	TokensSaved float64
	CostSaved   float64
	ByKind      map[string]KindTotals
}

// AppendSavings writes one ledger entry. The ledger is strictly
// append-only; there is no update or delete path.
func (s *Store) AppendSavings(entry SavingsEntry) error {
	if entry.OptimizationKind == "" {
		return errors.New("optimization kind cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var patternID any
	if entry.PatternID > 0 {
		patternID = entry.PatternID
	}
	var toolCallID any
	if entry.ToolCallID != "" {
		toolCallID = entry.ToolCallID
	}

	_, err := s.db.Exec(`
		INSERT INTO cost_savings_log
		(optimization_kind, workflow_id, tool_call_id, pattern_id, tokens_saved, cost_saved, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.OptimizationKind, entry.WorkflowID, toolCallID, patternID,
		entry.TokensSaved, entry.CostSaved, entry.Note)
	if err != nil {
		return fmt.Errorf("failed to append savings entry: %w", err)
	}

	s.log.Debug("savings recorded",
		zap.String("kind", entry.OptimizationKind),
		zap.Float64("tokens_saved", entry.TokensSaved),
		zap.Float64("cost_saved", entry.CostSaved))
	return nil
}

// SavingsSummary rolls up the ledger, total and per optimization kind.
func (s *Store) SavingsSummary() (*SavingsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &SavingsSummary{ByKind: make(map[string]KindTotals)}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(tokens_saved), 0), COALESCE(SUM(cost_saved), 0)
		FROM cost_savings_log`).
		Scan(&summary.Entries, &summary.TokensSaved, &summary.CostSaved)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT optimization_kind, COUNT(*), COALESCE(SUM(tokens_saved), 0), COALESCE(SUM(cost_saved), 0)
		FROM cost_savings_log GROUP BY optimization_kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var totals KindTotals
		if err := rows.Scan(&kind, &totals.Entries, &totals.TokensSaved, &totals.CostSaved); err != nil {
			return nil, err
		}
		summary.ByKind[kind] = totals
	}
	return summary, rows.Err()
}

// ListSavings returns recent ledger entries, newest first.
func (s *Store) ListSavings(limit int) ([]SavingsEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, optimization_kind, workflow_id, tool_call_id, pattern_id,
		       tokens_saved, cost_saved, note, logged_at
		FROM cost_savings_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SavingsEntry
	for rows.Next() {
		var e SavingsEntry
		var workflowID, toolCallID, note sql.NullString
		var patternID sql.NullInt64
		var loggedAt string
		if err := rows.Scan(&e.ID, &e.OptimizationKind, &workflowID, &toolCallID,
			&patternID, &e.TokensSaved, &e.CostSaved, &note, &loggedAt); err != nil {
			return nil, err
		}
		e.WorkflowID = workflowID.String
		e.ToolCallID = toolCallID.String
		e.PatternID = patternID.Int64
		e.Note = note.String
		e.LoggedAt = parseSQLiteTime(loggedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
