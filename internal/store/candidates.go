package store

import (
	"errors"

	"go.uber.org/zap"
)

// ToolCandidate is a pattern eligible for routing: status active,
// confidence at or above the threshold, bound to an active tool.
type ToolCandidate struct {
	PatternID  int64
	Signature  string
	Confidence float64
	Tool       RegisteredTool
}

// ListToolCandidates returns routing candidates ordered by ascending
// pattern id, which is the stable tie-break key the matcher relies on.
// Candidates whose tool has a malformed trigger vocabulary are skipped
// with a warning rather than failing the whole query.
func (s *Store) ListToolCandidates(minConfidence float64) ([]ToolCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT p.id, p.signature, p.confidence_score,
		       t.id, t.tool_name, t.script_reference, t.trigger_vocabulary, t.status
		FROM operation_patterns p
		JOIN registered_tools t ON t.tool_name = p.bound_tool_name
		WHERE p.automation_status = ? AND p.confidence_score >= ? AND t.status = ?
		ORDER BY p.id ASC`,
		string(StatusActive), minConfidence, string(ToolActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []ToolCandidate
	for rows.Next() {
		var c ToolCandidate
		var vocab string
		if err := rows.Scan(&c.PatternID, &c.Signature, &c.Confidence,
			&c.Tool.ID, &c.Tool.ToolName, &c.Tool.ScriptReference, &vocab,
			(*string)(&c.Tool.Status)); err != nil {
			return nil, err
		}
		tool, err := decodeVocabulary(&c.Tool, vocab)
		if err != nil {
			if errors.Is(err, ErrMalformedTriggerVocabulary) {
				s.log.Warn("skipping candidate with malformed trigger vocabulary",
					zap.String("tool", c.Tool.ToolName),
					zap.Int64("pattern_id", c.PatternID))
				continue
			}
			return nil, err
		}
		c.Tool = *tool
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
