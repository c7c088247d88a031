package records

import (
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// GetAssignment retrieves an assignment by local id.
func (r *Records) GetAssignment(id string) (*models.Assignment, error) {
	a, err := r.repo.GetAssignment(id)
	if err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return a, nil
}

// ListAssignmentsByDate returns assignments scheduled in [from, to],
// both YYYY-MM-DD.
func (r *Records) ListAssignmentsByDate(from, to string) ([]*models.Assignment, error) {
	return r.repo.ListAssignmentsByDate(from, to)
}

// CheckIn records arrival at a visit. Only permitted from scheduled
// with no prior check-in.
func (r *Records) CheckIn(id string, lat, lon float64) (*models.Assignment, error) {
	a, err := r.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	if !a.CanCheckIn() {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot check in from status %s", a.Status))
	}

	a.Status = models.AssignmentInProgress
	a.ActualCheckIn = time.Now().Unix()
	a.CheckInLat = lat
	a.CheckInLon = lon
	a.Touch()

	payload := map[string]interface{}{
		"status":          a.Status,
		"actual_check_in": a.ActualCheckIn,
		"check_in_lat":    a.CheckInLat,
		"check_in_lon":    a.CheckInLon,
	}
	err = r.mutate(a.TableName(), syncqueue.OperationUpdate, a.ID, a.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateAssignment(tx, a) })
	if err != nil {
		return nil, err
	}

	logging.Info("Checked in to assignment", map[string]interface{}{
		"assignment_id": string(a.ID),
	})
	return a, nil
}

// CheckOut records departure from a visit. Only permitted from
// in_progress with a check-in recorded and no prior check-out.
func (r *Records) CheckOut(id string, lat, lon float64) (*models.Assignment, error) {
	a, err := r.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	if !a.CanCheckOut() {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot check out from status %s", a.Status))
	}

	a.Status = models.AssignmentCompleted
	a.ActualCheckOut = time.Now().Unix()
	a.CheckOutLat = lat
	a.CheckOutLon = lon
	a.Touch()

	payload := map[string]interface{}{
		"status":           a.Status,
		"actual_check_out": a.ActualCheckOut,
		"check_out_lat":    a.CheckOutLat,
		"check_out_lon":    a.CheckOutLon,
	}
	err = r.mutate(a.TableName(), syncqueue.OperationUpdate, a.ID, a.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateAssignment(tx, a) })
	if err != nil {
		return nil, err
	}

	logging.Info("Checked out of assignment", map[string]interface{}{
		"assignment_id": string(a.ID),
	})
	return a, nil
}

// SetAssignmentNotes replaces the visit notes.
func (r *Records) SetAssignmentNotes(id, notes string) (*models.Assignment, error) {
	a, err := r.GetAssignment(id)
	if err != nil {
		return nil, err
	}

	a.Notes = notes
	a.Touch()

	payload := map[string]interface{}{"notes": a.Notes}
	err = r.mutate(a.TableName(), syncqueue.OperationUpdate, a.ID, a.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateAssignment(tx, a) })
	if err != nil {
		return nil, err
	}
	return a, nil
}
