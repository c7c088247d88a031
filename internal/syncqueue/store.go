// Package syncqueue provides the durable sync queue and its
// reconciliation manager.
package syncqueue

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/uuid"
)

// Operation represents a queued remote operation type.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Status represents the lifecycle status of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Stats summarizes queue contents per status.
type Stats struct {
	Pending   int `json:"pending"`
	Syncing   int `json:"syncing"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// Store is the durable FIFO log of pending remote operations. Ordering
// is insertion order; there are no priority lanes.
type Store struct {
	db *db.DB
}

// NewStore creates a queue store over the local database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const queueColumns = `id, table_name, operation, record_id, server_id,
	payload, status, retry_count, last_error, created_at`

func scanItem(s interface{ Scan(...interface{}) error }) (*models.SyncQueueItem, error) {
	item := &models.SyncQueueItem{}
	var payload string
	err := s.Scan(&item.ID, &item.TableName, &item.Operation, &item.RecordID,
		&item.ServerID, &payload, &item.Status, &item.RetryCount,
		&item.LastError, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Payload = json.RawMessage(payload)
	return item, nil
}

// Enqueue appends a pending item describing one mutation. It takes an
// Execer so callers can (and in the entity-record path must) pair it with
// the row write inside a single transaction.
func (s *Store) Enqueue(ex db.Execer, tableName string, op Operation,
	recordID models.UUID, serverID string, payload json.RawMessage) (*models.SyncQueueItem, error) {

	if payload == nil {
		payload = json.RawMessage("{}")
	}

	item := &models.SyncQueueItem{
		ID:        models.UUID(uuid.New()),
		TableName: tableName,
		Operation: string(op),
		RecordID:  recordID,
		ServerID:  serverID,
		Payload:   payload,
		Status:    string(StatusPending),
		CreatedAt: time.Now().Unix(),
	}

	query := `
	INSERT INTO sync_queue (` + queueColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?)
	`
	_, err := ex.Exec(query, item.ID, item.TableName, item.Operation, item.RecordID,
		item.ServerID, string(item.Payload), item.Status, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get retrieves one queue item by id.
func (s *Store) Get(id string) (*models.SyncQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE id = ?`
	item, err := scanItem(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrQueueItemNotFound, id)
	}
	return item, err
}

// listByStatus returns items matching the statuses in insertion order.
func (s *Store) listByStatus(statuses ...Status) ([]*models.SyncQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE status IN (`
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args[i] = string(st)
	}
	query += ") ORDER BY rowid"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.SyncQueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListPending returns pending and syncing items in FIFO order. Items
// stuck in syncing (after a crash mid-drain) are included so the next
// drain picks them up again.
func (s *Store) ListPending() ([]*models.SyncQueueItem, error) {
	return s.listByStatus(StatusPending, StatusSyncing)
}

// ListFailed returns items that exhausted the retry cap.
func (s *Store) ListFailed() ([]*models.SyncQueueItem, error) {
	return s.listByStatus(StatusFailed)
}

// MarkSyncing marks an item as in flight.
func (s *Store) MarkSyncing(id string) error {
	return s.setStatus(s.db, id, StatusSyncing)
}

// MarkCompleted marks an item done. It takes an Execer because the
// manager pairs it with flipping the originating row to synced inside
// one transaction.
func (s *Store) MarkCompleted(ex db.Execer, id string) error {
	return s.setStatus(ex, id, StatusCompleted)
}

func (s *Store) setStatus(ex db.Execer, id string, status Status) error {
	res, err := ex.Exec("UPDATE sync_queue SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	return s.requireItem(res, id)
}

// MarkFailed records one failed attempt: retry count increments, the
// error message is retained, and status goes back to pending unless the
// cap is reached, in which case it becomes failed. Returns the new retry
// count and status.
func (s *Store) MarkFailed(id, errMsg string) (int, Status, error) {
	query := `
	UPDATE sync_queue SET
		retry_count = retry_count + 1,
		last_error = ?,
		status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END
	WHERE id = ?
	`
	res, err := s.db.Exec(query, errMsg, MaxRetries,
		string(StatusFailed), string(StatusPending), id)
	if err != nil {
		return 0, "", err
	}
	if err := s.requireItem(res, id); err != nil {
		return 0, "", err
	}

	var retryCount int
	var status string
	err = s.db.QueryRow("SELECT retry_count, status FROM sync_queue WHERE id = ?", id).
		Scan(&retryCount, &status)
	return retryCount, Status(status), err
}

// ResetToPending resets one failed item for another round of retries,
// clearing the retry count and error.
func (s *Store) ResetToPending(id string) error {
	res, err := s.db.Exec(`
		UPDATE sync_queue SET status = ?, retry_count = 0, last_error = ''
		WHERE id = ?`, string(StatusPending), id)
	if err != nil {
		return err
	}
	return s.requireItem(res, id)
}

// ResetAllFailed resets every failed item to pending and returns how
// many were reset.
func (s *Store) ResetAllFailed() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE sync_queue SET status = ?, retry_count = 0, last_error = ''
		WHERE status = ?`, string(StatusPending), string(StatusFailed))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeCompleted deletes completed items. Safe at any time; completed
// items carry no further obligation. Run by the maintenance pass, not
// the manager.
func (s *Store) PurgeCompleted() (int64, error) {
	res, err := s.db.Exec("DELETE FROM sync_queue WHERE status = ?", string(StatusCompleted))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetStats returns per-status item counts.
func (s *Store) GetStats() (Stats, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusSyncing:
			stats.Syncing = count
		case StatusFailed:
			stats.Failed = count
		case StatusCompleted:
			stats.Completed = count
		}
	}
	return stats, rows.Err()
}

func (s *Store) requireItem(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.New(apperrors.ErrQueueItemNotFound, id)
	}
	return nil
}
