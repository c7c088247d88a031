// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration. SQL is embedded
// in-binary: the cache lives on-device, so no migrations directory ships
// with the application.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL DEFAULT '',
	elder_id TEXT NOT NULL,
	caregiver_id TEXT NOT NULL,
	scheduled_date TEXT NOT NULL,
	scheduled_start TEXT NOT NULL DEFAULT '',
	scheduled_end TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'scheduled',
	actual_check_in INTEGER NOT NULL DEFAULT 0,
	actual_check_out INTEGER NOT NULL DEFAULT 0,
	check_in_lat REAL NOT NULL DEFAULT 0,
	check_in_lon REAL NOT NULL DEFAULT 0,
	check_out_lat REAL NOT NULL DEFAULT 0,
	check_out_lon REAL NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	local_updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_server_id
	ON assignments(server_id) WHERE server_id != '';
CREATE INDEX IF NOT EXISTS idx_assignments_date ON assignments(scheduled_date);

CREATE TABLE IF NOT EXISTS assignment_tasks (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL DEFAULT '',
	assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	task_id TEXT NOT NULL,
	name TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	required INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	completed_at INTEGER NOT NULL DEFAULT 0,
	skip_reason TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	local_updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignment_tasks_server_id
	ON assignment_tasks(server_id) WHERE server_id != '';
CREATE INDEX IF NOT EXISTS idx_assignment_tasks_assignment
	ON assignment_tasks(assignment_id);

CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL DEFAULT '',
	assignment_id TEXT NOT NULL,
	elder_id TEXT NOT NULL,
	category TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT '',
	is_flagged INTEGER NOT NULL DEFAULT 0,
	photo_ref TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	local_updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_observations_assignment
	ON observations(assignment_id);
CREATE INDEX IF NOT EXISTS idx_observations_flagged
	ON observations(is_flagged) WHERE is_flagged = 1;

CREATE TABLE IF NOT EXISTS elder_cache (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	photo_url TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	lat REAL NOT NULL DEFAULT 0,
	lon REAL NOT NULL DEFAULT 0,
	phone TEXT NOT NULL DEFAULT '',
	medical_notes TEXT NOT NULL DEFAULT '',
	special_instructions TEXT NOT NULL DEFAULT '',
	cached_at INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_elder_cache_server_id
	ON elder_cache(server_id) WHERE server_id != '';

CREATE TABLE IF NOT EXISTS sync_queue (
	id TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	operation TEXT NOT NULL,
	record_id TEXT NOT NULL,
	server_id TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status
	ON sync_queue(status, created_at);
`

// migrations lists every schema version in order. Append-only.
var migrations = []Migration{
	{Version: 1, Description: "initial_schema", SQL: schemaV1},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in version order.
func (m *Migrator) Up() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", mig.Version, err)
		}
	}

	return nil
}

// apply runs a single migration inside a transaction.
func (m *Migrator) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	hash := sha256.Sum256([]byte(mig.SQL))
	checksum := hex.EncodeToString(hash[:])

	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, mig.Version, time.Now().Unix(), mig.Description, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
