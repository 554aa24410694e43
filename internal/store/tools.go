package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ToolStatus is a registered tool's availability state.
type ToolStatus string

const (
	ToolActive       ToolStatus = "active"
	ToolExperimental ToolStatus = "experimental"
	ToolInactive     ToolStatus = "inactive"
)

// RegisteredTool is an external executable that patterns can be bound
// to. TriggerVocabulary is an ordered list of strings matched against
// routing input.
type RegisteredTool struct {
	ID                int64
	ToolName          string
	ScriptReference   string
	TriggerVocabulary []string
	Status            ToolStatus
}

// RegisterTool inserts or updates a tool definition. Registration is an
// upsert keyed on tool_name so re-running a registration script is safe.
func (s *Store) RegisterTool(tool RegisteredTool) error {
	if strings.TrimSpace(tool.ToolName) == "" {
		return errors.New("tool name cannot be empty")
	}
	if strings.TrimSpace(tool.ScriptReference) == "" {
		return errors.New("tool script reference cannot be empty")
	}
	if tool.Status == "" {
		tool.Status = ToolExperimental
	}

	vocab, err := json.Marshal(tool.TriggerVocabulary)
	if err != nil {
		return fmt.Errorf("failed to encode trigger vocabulary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO registered_tools (tool_name, script_reference, trigger_vocabulary, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tool_name) DO UPDATE SET
			script_reference = excluded.script_reference,
			trigger_vocabulary = excluded.trigger_vocabulary,
			status = excluded.status`,
		tool.ToolName, tool.ScriptReference, string(vocab), string(tool.Status))
	if err != nil {
		return fmt.Errorf("failed to register tool: %w", err)
	}

	s.log.Info("tool registered",
		zap.String("tool", tool.ToolName),
		zap.String("status", string(tool.Status)),
		zap.Int("triggers", len(tool.TriggerVocabulary)))
	return nil
}

// GetTool fetches a tool by name.
func (s *Store) GetTool(name string) (*RegisteredTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, tool_name, script_reference, trigger_vocabulary, status
		FROM registered_tools WHERE tool_name = ?`, name)

	tool, err := scanTool(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, err
}

// ListTools returns all registered tools ordered by name.
func (s *Store) ListTools() ([]RegisteredTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, tool_name, script_reference, trigger_vocabulary, status
		FROM registered_tools ORDER BY tool_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []RegisteredTool
	for rows.Next() {
		tool, err := scanTool(rows.Scan)
		if err != nil {
			// A malformed row must not hide the rest of the registry.
			if errors.Is(err, ErrMalformedTriggerVocabulary) {
				s.log.Warn("skipping tool with malformed trigger vocabulary", zap.Error(err))
				continue
			}
			return nil, err
		}
		tools = append(tools, *tool)
	}
	return tools, rows.Err()
}

// SetToolStatus updates a tool's availability state.
func (s *Store) SetToolStatus(name string, status ToolStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE registered_tools SET status = ? WHERE tool_name = ?`,
		string(status), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return nil
}

func scanTool(scan func(dest ...any) error) (*RegisteredTool, error) {
	var tool RegisteredTool
	var vocab string
	if err := scan(&tool.ID, &tool.ToolName, &tool.ScriptReference, &vocab, (*string)(&tool.Status)); err != nil {
		return nil, err
	}
	return decodeVocabulary(&tool, vocab)
}

// decodeVocabulary fills in the trigger vocabulary from its stored JSON
// form, preserving order.
func decodeVocabulary(tool *RegisteredTool, vocab string) (*RegisteredTool, error) {
	if err := json.Unmarshal([]byte(vocab), &tool.TriggerVocabulary); err != nil {
		return nil, fmt.Errorf("%w: tool %s: %v", ErrMalformedTriggerVocabulary, tool.ToolName, err)
	}
	return tool, nil
}
