package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migration is one idempotent schema change applied in order.
type migration struct {
	version int
	name    string
	apply   func(db *sql.DB) error
}

// migrations run after base table creation. Early databases stored
// per-occurrence run metrics only inside matched_characteristics JSON;
// the scorer now reads them from dedicated columns so consistency and
// reliability aggregate in one SQL pass.
var migrations = []migration{
	{
		version: 1,
		name:    "occurrence run metric columns",
		apply: func(db *sql.DB) error {
			for _, col := range []struct{ name, ddl string }{
				{"duration_seconds", "ALTER TABLE pattern_occurrences ADD COLUMN duration_seconds REAL NOT NULL DEFAULT 0"},
				{"error_count", "ALTER TABLE pattern_occurrences ADD COLUMN error_count INTEGER NOT NULL DEFAULT 0"},
				{"retry_count", "ALTER TABLE pattern_occurrences ADD COLUMN retry_count INTEGER NOT NULL DEFAULT 0"},
			} {
				exists, err := columnExists(db, "pattern_occurrences", col.name)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := db.Exec(col.ddl); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// runMigrations applies any unapplied migrations, tracking progress in
// schema_migrations.
func runMigrations(db *sql.DB, log *zap.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return err
		}
		if applied > 0 {
			continue
		}

		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return err
		}
		log.Debug("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

// columnExists checks PRAGMA table_info for a column.
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
