package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial report-history tables.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at       TEXT NOT NULL,
			period_days    INTEGER NOT NULL,
			total_failures INTEGER NOT NULL,
			total_sessions INTEGER NOT NULL,
			summary        TEXT NOT NULL,
			version        TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS report_patterns (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id         INTEGER NOT NULL REFERENCES reports(id),
			pattern_type      TEXT NOT NULL,
			pattern_key       TEXT NOT NULL,
			occurrences       INTEGER NOT NULL,
			affected_sessions INTEGER NOT NULL,
			severity          TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_report_patterns_report ON report_patterns(report_id)`,
		`CREATE INDEX IF NOT EXISTS idx_report_patterns_type ON report_patterns(pattern_type, pattern_key)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	// Set schema version.
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
