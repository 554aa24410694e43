package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"patrol/internal/scoring"
	"patrol/internal/signature"
	"patrol/internal/stats"
	"patrol/internal/workflow"
)

// Status is a pattern's automation lifecycle state.
type Status string

const (
	StatusDetected    Status = "detected"
	StatusCandidate   Status = "candidate"
	StatusActive      Status = "active"
	StatusImplemented Status = "implemented"
	StatusDeprecated  Status = "deprecated"
)

// validTransitions encodes the forward-only lifecycle. Deprecation is
// reachable from any live state; nothing leaves deprecated or
// implemented.
var validTransitions = map[Status][]Status{
	StatusDetected:  {StatusCandidate, StatusDeprecated},
	StatusCandidate: {StatusActive, StatusDeprecated},
	StatusActive:    {StatusImplemented, StatusDeprecated},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OperationPattern is one row per distinct signature. Rows are created
// on first detection and never deleted.
type OperationPattern struct {
	ID               int64
	Signature        string
	Category         string
	OccurrenceCount  int64
	AvgTokensGeneric float64
	AvgCostGeneric   float64
	AvgTokensTool    float64
	AvgCostTool      float64
	PotentialSavings float64
	ConfidenceScore  float64
	AutomationStatus Status
	BoundToolName    string
	CreatedAt        time.Time
	LastSeen         time.Time
}

// RecordOccurrence is the idempotency boundary of the detection flow.
// It upserts the pattern row for sig and inserts the (pattern, workflow)
// occurrence with an insert-if-absent keyed on the unique constraint,
// all in one transaction. Re-invoking with the same pair is a no-op for
// both occurrence_count and occurrence rows. Returns whether the
// pattern row was newly created and whether the occurrence row was
// actually inserted; recorded is false on a replay, and the caller must
// not fold the record's metrics into the statistics again.
func (s *Store) RecordOccurrence(sig string, rec workflow.Record, characteristics string) (patternID int64, isNew, recorded bool, err error) {
	if !signature.Validate(sig) {
		return 0, false, false, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	if err := rec.Validate(); err != nil {
		return 0, false, false, err
	}
	rec = rec.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`SELECT id FROM operation_patterns WHERE signature = ?`, sig).Scan(&patternID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(`
			INSERT INTO operation_patterns (signature, category, occurrence_count, automation_status)
			VALUES (?, ?, 1, ?)`,
			sig, string(signature.CategoryOf(sig)), string(StatusDetected))
		if err != nil {
			return 0, false, false, fmt.Errorf("failed to create pattern: %w", err)
		}
		patternID, err = res.LastInsertId()
		if err != nil {
			return 0, false, false, err
		}
		isNew = true
		s.log.Info("new pattern detected",
			zap.String("signature", sig),
			zap.Int64("pattern_id", patternID))
	case err != nil:
		return 0, false, false, fmt.Errorf("failed to look up pattern: %w", err)
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO pattern_occurrences
		(pattern_id, workflow_id, similarity_score, matched_characteristics,
		 duration_seconds, error_count, retry_count)
		VALUES (?, ?, 100, ?, ?, ?, ?)`,
		patternID, rec.WorkflowID, characteristics,
		rec.DurationSeconds, rec.ErrorCount, rec.RetryCount)
	if err != nil {
		return 0, false, false, fmt.Errorf("failed to insert occurrence: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, false, false, err
	}

	if inserted == 0 {
		// Duplicate occurrence: absorbed silently, and for a new pattern
		// this cannot happen. Nothing else to touch.
		s.log.Debug("duplicate occurrence ignored",
			zap.String("signature", sig),
			zap.String("workflow_id", rec.WorkflowID))
		return patternID, isNew, false, tx.Commit()
	}

	if !isNew {
		if _, err := tx.Exec(`
			UPDATE operation_patterns
			SET occurrence_count = occurrence_count + 1,
			    last_seen = CURRENT_TIMESTAMP
			WHERE id = ?`, patternID); err != nil {
			return 0, false, false, fmt.Errorf("failed to increment occurrence count: %w", err)
		}
	}

	return patternID, isNew, true, tx.Commit()
}

// UpdateStatistics folds the workflow's token and cost metrics into the
// pattern's running averages, refreshes the tool-path estimates and
// potential savings, and recomputes the confidence score. Zero or
// missing metric inputs fold in as zero.
func (s *Store) UpdateStatistics(patternID int64, rec workflow.Record) error {
	rec = rec.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	var avgTokens, avgCost float64
	err = tx.QueryRow(`
		SELECT occurrence_count, avg_tokens_generic, avg_cost_generic
		FROM operation_patterns WHERE id = ?`, patternID).
		Scan(&count, &avgTokens, &avgCost)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id=%d", ErrPatternNotFound, patternID)
	}
	if err != nil {
		return err
	}
	if count < 1 {
		count = 1
	}

	// The occurrence for rec was already recorded, so the incremental
	// mean resumes at count-1 observations.
	tokens := stats.Resume(count-1, avgTokens)
	tokens.Update(float64(rec.TotalTokens))
	cost := stats.Resume(count-1, avgCost)
	cost.Update(rec.TotalCost)

	toolTokens := tokens.Value * s.discount
	toolCost := cost.Value * s.discount
	potential := (cost.Value - toolCost) * float64(count)

	metrics, err := occurrenceMetricsTx(tx, patternID)
	if err != nil {
		return err
	}
	confidence := s.scorer.Score(metrics)

	if _, err := tx.Exec(`
		UPDATE operation_patterns
		SET avg_tokens_generic = ?, avg_cost_generic = ?,
		    avg_tokens_tool = ?, avg_cost_tool = ?,
		    potential_savings = ?, confidence_score = ?
		WHERE id = ?`,
		tokens.Value, cost.Value, toolTokens, toolCost,
		potential, confidence, patternID); err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}

	return tx.Commit()
}

// OccurrenceMetrics aggregates a pattern's occurrence history for
// confidence scoring. Duration statistics only consider occurrences
// with a positive duration; an all-zero column means no duration data.
func (s *Store) OccurrenceMetrics(patternID int64) (scoring.OccurrenceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return occurrenceMetricsTx(s.db, patternID)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func occurrenceMetricsTx(q queryRower, patternID int64) (scoring.OccurrenceMetrics, error) {
	var m scoring.OccurrenceMetrics
	var avgDur, avgDurSq float64
	err := q.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN duration_seconds > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(CASE WHEN duration_seconds > 0 THEN duration_seconds END), 0),
		       COALESCE(AVG(CASE WHEN duration_seconds > 0 THEN duration_seconds * duration_seconds END), 0),
		       COALESCE(AVG(error_count), 0),
		       COALESCE(AVG(retry_count), 0)
		FROM pattern_occurrences WHERE pattern_id = ?`, patternID).
		Scan(&m.Occurrences, &m.DurationSamples, &avgDur, &avgDurSq, &m.AvgErrors, &m.AvgRetries)
	if err != nil {
		return m, fmt.Errorf("failed to aggregate occurrence metrics: %w", err)
	}

	variance := avgDurSq - avgDur*avgDur
	if variance < 0 {
		// Floating point noise on identical durations.
		variance = 0
	}
	m.DurationVariance = variance
	return m, nil
}

// GetPatternByID fetches a pattern row.
func (s *Store) GetPatternByID(id int64) (*OperationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(patternSelect+` WHERE id = ?`, id)
	return scanPattern(row)
}

// GetPatternBySignature fetches a pattern row by its unique signature.
func (s *Store) GetPatternBySignature(sig string) (*OperationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(patternSelect+` WHERE signature = ?`, sig)
	return scanPattern(row)
}

// PatternFilter narrows ListPatterns.
type PatternFilter struct {
	Status        Status
	MinConfidence float64
}

// ListPatterns returns patterns matching the filter, ordered by
// potential savings descending then id.
func (s *Store) ListPatterns(filter PatternFilter) ([]OperationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := patternSelect + ` WHERE confidence_score >= ?`
	args := []any{filter.MinConfidence}
	if filter.Status != "" {
		query += ` AND automation_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY potential_savings DESC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []OperationPattern
	for rows.Next() {
		p, err := scanPatternRows(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// TransitionStatus moves a pattern's automation status along the
// forward-only lifecycle. Disallowed moves return ErrInvalidTransition.
func (s *Store) TransitionStatus(patternID int64, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var from Status
	err = tx.QueryRow(`SELECT automation_status FROM operation_patterns WHERE id = ?`, patternID).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id=%d", ErrPatternNotFound, patternID)
	}
	if err != nil {
		return err
	}

	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if _, err := tx.Exec(`UPDATE operation_patterns SET automation_status = ? WHERE id = ?`,
		string(to), patternID); err != nil {
		return err
	}

	s.log.Info("pattern status transition",
		zap.Int64("pattern_id", patternID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return tx.Commit()
}

// BindTool links a pattern to a registered tool.
func (s *Store) BindTool(patternID int64, toolName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM registered_tools WHERE tool_name = ?`, toolName).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	res, err := s.db.Exec(`UPDATE operation_patterns SET bound_tool_name = ? WHERE id = ?`, toolName, patternID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id=%d", ErrPatternNotFound, patternID)
	}
	return nil
}

const patternSelect = `
	SELECT id, signature, category, occurrence_count,
	       avg_tokens_generic, avg_cost_generic, avg_tokens_tool, avg_cost_tool,
	       potential_savings, confidence_score, automation_status,
	       bound_tool_name, created_at, last_seen
	FROM operation_patterns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatternInto(sc rowScanner) (*OperationPattern, error) {
	var p OperationPattern
	var bound sql.NullString
	var createdAt, lastSeen string

	err := sc.Scan(
		&p.ID, &p.Signature, &p.Category, &p.OccurrenceCount,
		&p.AvgTokensGeneric, &p.AvgCostGeneric, &p.AvgTokensTool, &p.AvgCostTool,
		&p.PotentialSavings, &p.ConfidenceScore, (*string)(&p.AutomationStatus),
		&bound, &createdAt, &lastSeen,
	)
	if err != nil {
		return nil, err
	}

	if bound.Valid {
		p.BoundToolName = bound.String
	}
	p.CreatedAt = parseSQLiteTime(createdAt)
	p.LastSeen = parseSQLiteTime(lastSeen)
	return &p, nil
}

func scanPattern(row *sql.Row) (*OperationPattern, error) {
	p, err := scanPatternInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatternNotFound
	}
	return p, err
}

func scanPatternRows(rows *sql.Rows) (*OperationPattern, error) {
	return scanPatternInto(rows)
}
