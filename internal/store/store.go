// Package store persists operation patterns, their occurrences, the
// registered tools, tool call records, and the cost-savings ledger in
// SQLite.
//
// The store is the idempotency boundary for pattern detection: the
// UNIQUE(pattern_id, workflow_id) constraint on occurrences makes
// re-processing a workflow a storage-level no-op, and every logical
// operation runs in a single transaction so a crash mid-update cannot
// leave an occurrence count without its occurrence row.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"patrol/internal/scoring"

	_ "github.com/mattn/go-sqlite3"
)

// Store errors.
var (
	// ErrPatternNotFound is returned when a pattern id or signature is unknown.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidSignature is returned for malformed signatures.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid automation status transition")

	// ErrMalformedTriggerVocabulary is returned when a tool's stored
	// trigger vocabulary cannot be decoded.
	ErrMalformedTriggerVocabulary = errors.New("malformed trigger vocabulary")
)

// defaultToolCostDiscount is the estimated tool-path cost as a fraction
// of the generic-path average. Empirical placeholder pending real tool
// telemetry; override via Options.
const defaultToolCostDiscount = 0.05

// sqliteTimeFormat is the layout CURRENT_TIMESTAMP produces.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// Options configures a Store.
type Options struct {
	// ToolCostDiscount is the fraction of the generic-path average
	// attributed to the tool path. Defaults to 0.05.
	ToolCostDiscount float64

	// Logger for store operations. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Store is the SQLite-backed pattern store.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	dbPath   string
	discount float64
	scorer   *scoring.Scorer
	log      *zap.Logger
}

// Open initializes the SQLite database at the given path. Use ":memory:"
// for an isolated in-memory store.
func Open(path string, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	discount := opts.ToolCostDiscount
	if discount <= 0 || discount >= 1 {
		discount = defaultToolCostDiscount
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Debug("failed to enable sqlite foreign_keys", zap.Error(err))
	}

	s := &Store{
		db:       db,
		dbPath:   path,
		discount: discount,
		scorer:   scoring.NewScorer(log),
		log:      log,
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("pattern store opened",
		zap.String("path", path),
		zap.Float64("tool_cost_discount", discount))
	return s, nil
}

// initialize creates the required tables and runs migrations.
func (s *Store) initialize() error {
	patternsTable := `
	CREATE TABLE IF NOT EXISTS operation_patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		signature TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		occurrence_count INTEGER NOT NULL DEFAULT 0,
		avg_tokens_generic REAL NOT NULL DEFAULT 0,
		avg_cost_generic REAL NOT NULL DEFAULT 0,
		avg_tokens_tool REAL NOT NULL DEFAULT 0,
		avg_cost_tool REAL NOT NULL DEFAULT 0,
		potential_savings REAL NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 10,
		automation_status TEXT NOT NULL DEFAULT 'detected',
		bound_tool_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_status ON operation_patterns(automation_status);
	CREATE INDEX IF NOT EXISTS idx_patterns_confidence ON operation_patterns(confidence_score);
	CREATE INDEX IF NOT EXISTS idx_patterns_category ON operation_patterns(category);
	`

	// UNIQUE(pattern_id, workflow_id) is the insert-if-absent primitive
	// the idempotent detection flow relies on.
	occurrencesTable := `
	CREATE TABLE IF NOT EXISTS pattern_occurrences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern_id INTEGER NOT NULL REFERENCES operation_patterns(id),
		workflow_id TEXT NOT NULL,
		similarity_score REAL NOT NULL DEFAULT 100,
		matched_characteristics TEXT,
		detected_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pattern_id, workflow_id)
	);
	CREATE INDEX IF NOT EXISTS idx_occurrences_pattern ON pattern_occurrences(pattern_id);
	CREATE INDEX IF NOT EXISTS idx_occurrences_workflow ON pattern_occurrences(workflow_id);
	`

	toolsTable := `
	CREATE TABLE IF NOT EXISTS registered_tools (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool_name TEXT NOT NULL UNIQUE,
		script_reference TEXT NOT NULL,
		trigger_vocabulary TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'experimental',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	callsTable := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool_call_id TEXT NOT NULL UNIQUE,
		workflow_id TEXT,
		tool_name TEXT NOT NULL,
		called_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		result_payload TEXT,
		error_message TEXT,
		tokens_saved REAL NOT NULL DEFAULT 0,
		cost_saved REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool_name);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_workflow ON tool_calls(workflow_id);
	`

	savingsTable := `
	CREATE TABLE IF NOT EXISTS cost_savings_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		optimization_kind TEXT NOT NULL,
		workflow_id TEXT,
		tool_call_id TEXT,
		pattern_id INTEGER,
		tokens_saved REAL NOT NULL DEFAULT 0,
		cost_saved REAL NOT NULL DEFAULT 0,
		note TEXT,
		logged_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_savings_kind ON cost_savings_log(optimization_kind);
	`

	for _, table := range []string{
		patternsTable,
		occurrencesTable,
		toolsTable,
		callsTable,
		savingsTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := runMigrations(s.db, s.log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.log.Debug("closing pattern store", zap.String("path", s.dbPath))
	return s.db.Close()
}

// DB returns the underlying SQL database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func parseSQLiteTime(v string) time.Time {
	t, err := time.Parse(sqliteTimeFormat, v)
	if err != nil {
		// Some drivers hand back RFC3339 when the value was bound from Go.
		t, _ = time.Parse(time.RFC3339, v)
	}
	return t
}
