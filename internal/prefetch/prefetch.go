// Package prefetch bulk-loads upcoming assignments and related
// reference data into the local store before connectivity is lost.
// It is a read-repair pass: rows with unsynced local edits are never
// overwritten.
package prefetch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/remote"
)

// DefaultDaysAhead is the prefetch window when none is given.
const DefaultDaysAhead = 7

// Options controls what one prefetch pass loads.
type Options struct {
	DaysAhead     int
	IncludeTasks  bool
	IncludeElders bool
}

// Summary reports how many rows a pass refreshed.
type Summary struct {
	Assignments int `json:"assignments"`
	Tasks       int `json:"tasks"`
	Elders      int `json:"elders"`
}

// Prefetcher loads a caregiver's upcoming work from the remote service.
type Prefetcher struct {
	database *db.DB
	repo     *db.Repository
	service  remote.Service
}

// New creates a prefetcher.
func New(database *db.DB, repo *db.Repository, service remote.Service) *Prefetcher {
	return &Prefetcher{
		database: database,
		repo:     repo,
		service:  service,
	}
}

// remoteVisit is the wire shape of a visit row. Unknown fields are
// ignored; the remote schema is not ours to enforce.
type remoteVisit struct {
	ID             string  `json:"id"`
	ElderID        string  `json:"elder_id"`
	CaregiverID    string  `json:"caregiver_id"`
	ScheduledDate  string  `json:"scheduled_date"`
	ScheduledStart string  `json:"scheduled_start"`
	ScheduledEnd   string  `json:"scheduled_end"`
	Status         string  `json:"status"`
	ActualCheckIn  int64   `json:"actual_check_in"`
	ActualCheckOut int64   `json:"actual_check_out"`
	CheckInLat     float64 `json:"check_in_lat"`
	CheckInLon     float64 `json:"check_in_lon"`
	CheckOutLat    float64 `json:"check_out_lat"`
	CheckOutLon    float64 `json:"check_out_lon"`
	Notes          string  `json:"notes"`
}

type remoteVisitTask struct {
	ID          string `json:"id"`
	VisitID     string `json:"visit_id"`
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Required    bool   `json:"required"`
	Status      string `json:"status"`
	CompletedAt int64  `json:"completed_at"`
	SkipReason  string `json:"skip_reason"`
	Notes       string `json:"notes"`
}

type remoteElder struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	PhotoURL            string  `json:"photo_url"`
	Address             string  `json:"address"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
	Phone               string  `json:"phone"`
	MedicalNotes        string  `json:"medical_notes"`
	SpecialInstructions string  `json:"special_instructions"`
}

// decodeRow round-trips a generic row into a typed wire struct.
func decodeRow(row remote.Row, out interface{}) error {
	body, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Prefetch loads the caregiver's visits for the coming window, plus
// tasks and elder reference data when requested, and merges them into
// the local store. Rows with pending local changes win; prefetch yields.
func (p *Prefetcher) Prefetch(ctx context.Context, caregiverID string, opts Options) (Summary, error) {
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = DefaultDaysAhead
	}

	now := time.Now()
	filter := map[string]string{
		"caregiver_id": caregiverID,
		"date_from":    now.Format("2006-01-02"),
		"date_to":      now.AddDate(0, 0, opts.DaysAhead).Format("2006-01-02"),
	}

	visitRows, err := p.service.Query(ctx, "visits", filter)
	if err != nil {
		return Summary{}, apperrors.Wrap(apperrors.ErrPrefetchFailed, "failed to fetch visits", err)
	}

	var taskRows, elderRows []remote.Row
	if opts.IncludeTasks {
		taskRows, err = p.service.Query(ctx, "visit_tasks", filter)
		if err != nil {
			return Summary{}, apperrors.Wrap(apperrors.ErrPrefetchFailed, "failed to fetch visit tasks", err)
		}
	}
	if opts.IncludeElders {
		elderRows, err = p.service.Query(ctx, "elders", map[string]string{"caregiver_id": caregiverID})
		if err != nil {
			return Summary{}, apperrors.Wrap(apperrors.ErrPrefetchFailed, "failed to fetch elders", err)
		}
	}

	var summary Summary
	err = p.database.WithTx(func(tx *sql.Tx) error {
		// visit remote id -> local assignment id, for task parenting
		visitLocal := make(map[string]models.UUID, len(visitRows))

		for _, row := range visitRows {
			var v remoteVisit
			if err := decodeRow(row, &v); err != nil {
				return err
			}
			if v.ID == "" {
				continue
			}

			a := &models.Assignment{
				ServerID:       v.ID,
				ElderID:        models.UUID(v.ElderID),
				CaregiverID:    v.CaregiverID,
				ScheduledDate:  v.ScheduledDate,
				ScheduledStart: v.ScheduledStart,
				ScheduledEnd:   v.ScheduledEnd,
				Status:         models.AssignmentStatus(v.Status),
				ActualCheckIn:  v.ActualCheckIn,
				ActualCheckOut: v.ActualCheckOut,
				CheckInLat:     v.CheckInLat,
				CheckInLon:     v.CheckInLon,
				CheckOutLat:    v.CheckOutLat,
				CheckOutLon:    v.CheckOutLon,
				Notes:          v.Notes,
			}
			if a.Status == "" {
				a.Status = models.AssignmentScheduled
			}
			if err := p.repo.UpsertAssignmentIfSynced(tx, a); err != nil {
				return err
			}

			localID, err := p.repo.AssignmentIDForServerID(tx, v.ID)
			if err != nil {
				return err
			}
			visitLocal[v.ID] = localID
			summary.Assignments++
		}

		for _, row := range taskRows {
			var vt remoteVisitTask
			if err := decodeRow(row, &vt); err != nil {
				return err
			}
			localAssignment, ok := visitLocal[vt.VisitID]
			if !ok || vt.ID == "" {
				continue
			}

			t := &models.AssignmentTask{
				ServerID:     vt.ID,
				AssignmentID: localAssignment,
				TaskID:       vt.TaskID,
				Name:         vt.Name,
				Icon:         vt.Icon,
				Category:     vt.Category,
				Required:     vt.Required,
				Status:       models.TaskStatus(vt.Status),
				CompletedAt:  vt.CompletedAt,
				SkipReason:   vt.SkipReason,
				Notes:        vt.Notes,
			}
			if t.Status == "" {
				t.Status = models.TaskPending
			}
			if err := p.repo.UpsertTaskIfSynced(tx, t); err != nil {
				return err
			}
			summary.Tasks++
		}

		for _, row := range elderRows {
			var re remoteElder
			if err := decodeRow(row, &re); err != nil {
				return err
			}
			if re.ID == "" {
				continue
			}

			e := &models.ElderCache{
				ServerID:            re.ID,
				Name:                re.Name,
				PhotoURL:            re.PhotoURL,
				Address:             re.Address,
				Lat:                 re.Lat,
				Lon:                 re.Lon,
				Phone:               re.Phone,
				MedicalNotes:        re.MedicalNotes,
				SpecialInstructions: re.SpecialInstructions,
			}
			if err := p.repo.UpsertElder(tx, e); err != nil {
				return err
			}
			summary.Elders++
		}
		return nil
	})
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrTransactionAborted {
			err = apperrors.Wrap(apperrors.ErrPrefetchFailed, "failed to merge prefetched rows", err)
		}
		return Summary{}, err
	}

	logging.Info("Prefetch finished", map[string]interface{}{
		"caregiver_id": caregiverID,
		"days_ahead":   opts.DaysAhead,
		"assignments":  summary.Assignments,
		"tasks":        summary.Tasks,
		"elders":       summary.Elders,
	})
	return summary, nil
}
