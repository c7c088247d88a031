package records

import (
	"database/sql"
	"time"

	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
	"github.com/carebridge/carebridge-core/internal/uuid"
)

// ObservationUpdate carries a merge-style partial update. Nil fields
// are left untouched.
type ObservationUpdate struct {
	Category *models.ObservationCategory
	Value    *string
	Note     *string
	PhotoRef *string
}

// GetObservation retrieves an observation by local id.
func (r *Records) GetObservation(id string) (*models.Observation, error) {
	o, err := r.repo.GetObservation(id)
	if err != nil {
		return nil, notFound(err, "observation", id)
	}
	return o, nil
}

// ListFlaggedObservations returns observations flagged for follow-up.
func (r *Records) ListFlaggedObservations() ([]*models.Observation, error) {
	return r.repo.ListFlaggedObservations()
}

// CreateObservation records a new observation and queues its remote
// create. The server id stays empty until that create round-trips.
func (r *Records) CreateObservation(o *models.Observation) error {
	if !models.ValidObservationCategory(o.Category) {
		return apperrors.New(apperrors.ErrValidation,
			"unknown observation category: "+string(o.Category))
	}
	if o.AssignmentID == "" || o.ElderID == "" {
		return apperrors.New(apperrors.ErrValidation,
			"observation requires an assignment and an elder")
	}

	if o.ID == "" {
		o.ID = models.UUID(uuid.New())
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = time.Now().Unix()
	}
	o.ServerID = ""
	o.Touch()

	err := r.mutate(o.TableName(), syncqueue.OperationCreate, o.ID, "", o,
		func(tx *sql.Tx) error { return r.repo.CreateObservation(tx, o) })
	if err != nil {
		return err
	}

	logging.Info("Created observation", map[string]interface{}{
		"observation_id": string(o.ID),
		"category":       string(o.Category),
	})
	return nil
}

// UpdateObservation applies a partial update to an observation.
func (r *Records) UpdateObservation(id string, update ObservationUpdate) (*models.Observation, error) {
	o, err := r.GetObservation(id)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{}
	if update.Category != nil {
		if !models.ValidObservationCategory(*update.Category) {
			return nil, apperrors.New(apperrors.ErrValidation,
				"unknown observation category: "+string(*update.Category))
		}
		o.Category = *update.Category
		payload["category"] = o.Category
	}
	if update.Value != nil {
		o.Value = *update.Value
		payload["value"] = o.Value
	}
	if update.Note != nil {
		o.Note = *update.Note
		payload["note"] = o.Note
	}
	if update.PhotoRef != nil {
		o.PhotoRef = *update.PhotoRef
		payload["photo_ref"] = o.PhotoRef
	}
	if len(payload) == 0 {
		return o, nil
	}
	o.Touch()

	err = r.mutate(o.TableName(), syncqueue.OperationUpdate, o.ID, o.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateObservation(tx, o) })
	if err != nil {
		return nil, err
	}
	return o, nil
}

// FlagObservation marks an observation for follow-up.
func (r *Records) FlagObservation(id string) (*models.Observation, error) {
	return r.setFlag(id, true)
}

// UnflagObservation clears the follow-up flag.
func (r *Records) UnflagObservation(id string) (*models.Observation, error) {
	return r.setFlag(id, false)
}

func (r *Records) setFlag(id string, flagged bool) (*models.Observation, error) {
	o, err := r.GetObservation(id)
	if err != nil {
		return nil, err
	}
	if o.IsFlagged == flagged {
		return o, nil
	}

	o.IsFlagged = flagged
	o.Touch()

	payload := map[string]interface{}{"is_flagged": o.IsFlagged}
	err = r.mutate(o.TableName(), syncqueue.OperationUpdate, o.ID, o.ServerID, payload,
		func(tx *sql.Tx) error { return r.repo.UpdateObservation(tx, o) })
	if err != nil {
		return nil, err
	}
	return o, nil
}
