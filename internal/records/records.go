// Package records implements the entity operations of the offline-first
// core. Every mutation updates the local row and appends a sync queue
// item inside one transaction, so a row change and its pending remote
// operation are never observed apart.
package records

import (
	"database/sql"
	"encoding/json"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// Records exposes the guarded mutation operations the host application
// calls. Reads pass through to the repository; writes always pair the
// row update with a queue append.
type Records struct {
	database *db.DB
	repo     *db.Repository
	queue    *syncqueue.Store
}

// New creates the records layer over an open database.
func New(database *db.DB, repo *db.Repository, queue *syncqueue.Store) *Records {
	return &Records{
		database: database,
		repo:     repo,
		queue:    queue,
	}
}

// mutate encodes the payload, then runs the row write and the queue
// append as one transaction.
func (r *Records) mutate(table string, op syncqueue.Operation, recordID models.UUID,
	serverID string, payload interface{}, write func(tx *sql.Tx) error) error {

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode sync payload", err)
	}

	return r.database.WithTx(func(tx *sql.Tx) error {
		if err := write(tx); err != nil {
			return err
		}
		_, err := r.queue.Enqueue(tx, table, op, recordID, serverID, body)
		return err
	})
}

// notFound normalizes a missing-row read into a coded error.
func notFound(err error, kind, id string) error {
	if err == sql.ErrNoRows {
		return apperrors.New(apperrors.ErrNotFound, kind+" not found: "+id)
	}
	return err
}
