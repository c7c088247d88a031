package records

import (
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// GetTask retrieves an assignment task by local id.
func (r *Records) GetTask(id string) (*models.AssignmentTask, error) {
	t, err := r.repo.GetAssignmentTask(id)
	if err != nil {
		return nil, notFound(err, "assignment task", id)
	}
	return t, nil
}

// ListTasksForAssignment returns the tasks of one assignment.
func (r *Records) ListTasksForAssignment(assignmentID string) ([]*models.AssignmentTask, error) {
	return r.repo.ListTasksForAssignment(assignmentID)
}

// CompleteTask marks a pending task done, with optional notes.
func (r *Records) CompleteTask(id, notes string) (*models.AssignmentTask, error) {
	t, err := r.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !t.CanComplete() {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot complete task in status %s", t.Status))
	}

	t.Status = models.TaskCompleted
	t.CompletedAt = time.Now().Unix()
	t.Notes = notes
	t.Touch()

	payload := map[string]interface{}{
		"status":       t.Status,
		"completed_at": t.CompletedAt,
		"notes":        t.Notes,
	}
	if err := r.saveTask(t, payload); err != nil {
		return nil, err
	}
	return t, nil
}

// SkipTask marks a pending task skipped with a reason.
func (r *Records) SkipTask(id, reason string) (*models.AssignmentTask, error) {
	t, err := r.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !t.CanComplete() {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot skip task in status %s", t.Status))
	}

	t.Status = models.TaskSkipped
	t.SkipReason = reason
	t.Touch()

	payload := map[string]interface{}{
		"status":      t.Status,
		"skip_reason": t.SkipReason,
	}
	if err := r.saveTask(t, payload); err != nil {
		return nil, err
	}
	return t, nil
}

// UndoTask reverts a completion or skip, returning the task to pending
// and clearing its completion metadata.
func (r *Records) UndoTask(id string) (*models.AssignmentTask, error) {
	t, err := r.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !t.CanUndo() {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot undo task in status %s", t.Status))
	}

	t.Status = models.TaskPending
	t.CompletedAt = 0
	t.SkipReason = ""
	t.Touch()

	payload := map[string]interface{}{
		"status":       t.Status,
		"completed_at": 0,
		"skip_reason":  "",
	}
	if err := r.saveTask(t, payload); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Records) saveTask(t *models.AssignmentTask, payload map[string]interface{}) error {
	return r.mutate(t.TableName(), syncqueue.OperationUpdate, t.ID, t.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateAssignmentTask(tx, t) })
}
