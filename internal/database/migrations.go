package database

import (
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations contains all SQLite database migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_jobs_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				company TEXT NOT NULL,
				status TEXT NOT NULL,
				post_count INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				started_at TEXT,
				completed_at TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
			CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
			CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create_post_analyses_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS post_analyses (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id TEXT NOT NULL,
				post_id TEXT NOT NULL,
				analysis TEXT NOT NULL,
				created_at TEXT NOT NULL,
				FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_post_analyses_job_id ON post_analyses(job_id);
			CREATE INDEX IF NOT EXISTS idx_post_analyses_post_id ON post_analyses(post_id);
		`,
	},
	{
		Version: 3,
		Name:    "create_summaries_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id TEXT NOT NULL,
				company TEXT NOT NULL,
				summary TEXT NOT NULL,
				created_at TEXT NOT NULL,
				FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_summaries_job_id ON summaries(job_id);
			CREATE INDEX IF NOT EXISTS idx_summaries_company ON summaries(company);
			CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries(created_at);
		`,
	},
}

// Migrate runs all pending SQLite migrations
func (db *DB) Migrate() error {
	log.Println("Creating schema_version table...")
	// Ensure schema_version table exists
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	log.Println("Checking current schema version...")
	// Get current version
	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	log.Printf("Current schema version: %d", currentVersion)

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			log.Printf("Skipping migration %d (already applied)", migration.Version)
			continue
		}

		log.Printf("Applying migration %d: %s", migration.Version, migration.Name)
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Printf("✓ Applied migration %d: %s", migration.Version, migration.Name)
	}

	log.Println("All migrations complete")
	return nil
}
