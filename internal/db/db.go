// Package db provides database connection management and operations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/carebridge/carebridge-core/internal/errors"
)

// DB wraps the sql.DB with CareBridge-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the on-device SQLite cache.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - A single writer connection (SQLite has no concurrent writers)
//
// Open is idempotent for a given dataDir. Any failure is reported as
// STORAGE_UNAVAILABLE so the host application can run with sync disabled
// instead of crashing; callers must treat a nil *DB as "no offline support".
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable,
			"failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "carebridge.db")

	// modernc.org/sqlite is pure Go, so the same backend works on every
	// target the host app ships to. A platform where even this fails
	// (read-only filesystem, denied sandbox) surfaces here, not later.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable,
			"failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable,
			"failed to enable WAL mode", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable,
			"failed to enable foreign keys", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Execer is the subset of database operations shared by *sql.DB and
// *sql.Tx. Mutation helpers take an Execer so the same statement can run
// standalone or inside a transaction.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a transaction with all-or-nothing commit
// semantics. If fn returns an error or the commit fails, every write is
// rolled back and the caller sees TRANSACTION_ABORTED.
func (db *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransactionAborted,
			"failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return apperrors.Wrap(apperrors.ErrTransactionAborted,
				fmt.Sprintf("rollback failed after: %v", err), rbErr)
		}
		// Guard violations and similar typed errors pass through intact.
		if _, ok := err.(*apperrors.AppError); ok {
			return err
		}
		return apperrors.Wrap(apperrors.ErrTransactionAborted,
			"transaction rolled back", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrTransactionAborted,
			"commit failed", err)
	}

	return nil
}

// ResetAll destructively wipes every table and reapplies the schema.
// Used only for recovery and testing.
func (db *DB) ResetAll() error {
	tables := []string{
		"sync_queue", "observations", "assignment_tasks",
		"assignments", "elder_cache", "schema_migrations",
	}
	for _, table := range tables {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}

	migrator := NewMigrator(db.DB)
	if err := migrator.Initialize(); err != nil {
		return fmt.Errorf("failed to reinitialize schema ledger: %w", err)
	}
	return migrator.Up()
}
