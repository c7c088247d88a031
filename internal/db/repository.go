// Package db provides CRUD repository operations for the sync core models.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/uuid"
)

// Repository provides row-level operations for all local tables.
// Reads run against the connection; writes take an Execer so the caller
// decides whether they run standalone or inside a transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// =====================================================
// Assignment Operations
// =====================================================

const assignmentColumns = `id, server_id, elder_id, caregiver_id, scheduled_date,
	scheduled_start, scheduled_end, status, actual_check_in, actual_check_out,
	check_in_lat, check_in_lon, check_out_lat, check_out_lon, notes,
	synced, local_updated_at`

func scanAssignment(s scanner) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := s.Scan(&a.ID, &a.ServerID, &a.ElderID, &a.CaregiverID, &a.ScheduledDate,
		&a.ScheduledStart, &a.ScheduledEnd, &a.Status, &a.ActualCheckIn, &a.ActualCheckOut,
		&a.CheckInLat, &a.CheckInLon, &a.CheckOutLat, &a.CheckOutLon, &a.Notes,
		&a.Synced, &a.LocalUpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAssignment inserts a new assignment row, generating the local id
// if absent.
func (r *Repository) CreateAssignment(ex Execer, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = models.UUID(uuid.New())
	}
	if a.LocalUpdatedAt == 0 {
		a.LocalUpdatedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO assignments (` + assignmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.Exec(query, a.ID, a.ServerID, a.ElderID, a.CaregiverID, a.ScheduledDate,
		a.ScheduledStart, a.ScheduledEnd, a.Status, a.ActualCheckIn, a.ActualCheckOut,
		a.CheckInLat, a.CheckInLon, a.CheckOutLat, a.CheckOutLon, a.Notes,
		a.Synced, a.LocalUpdatedAt)
	return err
}

// GetAssignment retrieves an assignment by local id.
func (r *Repository) GetAssignment(id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ?`
	return scanAssignment(r.db.QueryRow(query, id))
}

// GetAssignmentByServerID retrieves an assignment by remote id.
func (r *Repository) GetAssignmentByServerID(serverID string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE server_id = ?`
	return scanAssignment(r.db.QueryRow(query, serverID))
}

// ListAssignmentsByDate returns assignments with scheduled_date in
// [from, to], ordered by date and start time.
func (r *Repository) ListAssignmentsByDate(from, to string) ([]*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE scheduled_date >= ? AND scheduled_date <= ?
		ORDER BY scheduled_date, scheduled_start`
	rows, err := r.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateAssignment writes every mutable column of an assignment row.
func (r *Repository) UpdateAssignment(ex Execer, a *models.Assignment) error {
	query := `
	UPDATE assignments SET server_id = ?, elder_id = ?, caregiver_id = ?,
		scheduled_date = ?, scheduled_start = ?, scheduled_end = ?, status = ?,
		actual_check_in = ?, actual_check_out = ?,
		check_in_lat = ?, check_in_lon = ?, check_out_lat = ?, check_out_lon = ?,
		notes = ?, synced = ?, local_updated_at = ?
	WHERE id = ?
	`
	res, err := ex.Exec(query, a.ServerID, a.ElderID, a.CaregiverID,
		a.ScheduledDate, a.ScheduledStart, a.ScheduledEnd, a.Status,
		a.ActualCheckIn, a.ActualCheckOut,
		a.CheckInLat, a.CheckInLon, a.CheckOutLat, a.CheckOutLon,
		a.Notes, a.Synced, a.LocalUpdatedAt, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "assignment", string(a.ID))
}

// UpsertAssignmentIfSynced inserts a prefetched assignment, or updates the
// existing row for the same remote record only when it has no unsynced
// local edits. Rows with pending local changes are left untouched.
func (r *Repository) UpsertAssignmentIfSynced(ex Execer, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = models.UUID(uuid.New())
	}

	query := `
	INSERT INTO assignments (` + assignmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(server_id) WHERE server_id != '' DO UPDATE SET
		elder_id = excluded.elder_id,
		caregiver_id = excluded.caregiver_id,
		scheduled_date = excluded.scheduled_date,
		scheduled_start = excluded.scheduled_start,
		scheduled_end = excluded.scheduled_end,
		status = excluded.status,
		actual_check_in = excluded.actual_check_in,
		actual_check_out = excluded.actual_check_out,
		check_in_lat = excluded.check_in_lat,
		check_in_lon = excluded.check_in_lon,
		check_out_lat = excluded.check_out_lat,
		check_out_lon = excluded.check_out_lon,
		notes = excluded.notes,
		synced = 1,
		local_updated_at = excluded.local_updated_at
	WHERE assignments.synced = 1
	`
	_, err := ex.Exec(query, a.ID, a.ServerID, a.ElderID, a.CaregiverID, a.ScheduledDate,
		a.ScheduledStart, a.ScheduledEnd, a.Status, a.ActualCheckIn, a.ActualCheckOut,
		a.CheckInLat, a.CheckInLon, a.CheckOutLat, a.CheckOutLon, a.Notes,
		time.Now().Unix())
	return err
}

// =====================================================
// AssignmentTask Operations
// =====================================================

const taskColumns = `id, server_id, assignment_id, task_id, name, icon, category,
	required, status, completed_at, skip_reason, notes, synced, local_updated_at`

func scanTask(s scanner) (*models.AssignmentTask, error) {
	t := &models.AssignmentTask{}
	err := s.Scan(&t.ID, &t.ServerID, &t.AssignmentID, &t.TaskID, &t.Name, &t.Icon,
		&t.Category, &t.Required, &t.Status, &t.CompletedAt, &t.SkipReason, &t.Notes,
		&t.Synced, &t.LocalUpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateAssignmentTask inserts a new task row.
func (r *Repository) CreateAssignmentTask(ex Execer, t *models.AssignmentTask) error {
	if t.ID == "" {
		t.ID = models.UUID(uuid.New())
	}
	if t.LocalUpdatedAt == 0 {
		t.LocalUpdatedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO assignment_tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.Exec(query, t.ID, t.ServerID, t.AssignmentID, t.TaskID, t.Name, t.Icon,
		t.Category, t.Required, t.Status, t.CompletedAt, t.SkipReason, t.Notes,
		t.Synced, t.LocalUpdatedAt)
	return err
}

// GetAssignmentTask retrieves a task by local id.
func (r *Repository) GetAssignmentTask(id string) (*models.AssignmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM assignment_tasks WHERE id = ?`
	return scanTask(r.db.QueryRow(query, id))
}

// ListTasksForAssignment returns all tasks of one assignment.
func (r *Repository) ListTasksForAssignment(assignmentID string) ([]*models.AssignmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM assignment_tasks
		WHERE assignment_id = ? ORDER BY task_id`
	rows, err := r.db.Query(query, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.AssignmentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// UpdateAssignmentTask writes every mutable column of a task row.
func (r *Repository) UpdateAssignmentTask(ex Execer, t *models.AssignmentTask) error {
	query := `
	UPDATE assignment_tasks SET server_id = ?, task_id = ?, name = ?, icon = ?,
		category = ?, required = ?, status = ?, completed_at = ?,
		skip_reason = ?, notes = ?, synced = ?, local_updated_at = ?
	WHERE id = ?
	`
	res, err := ex.Exec(query, t.ServerID, t.TaskID, t.Name, t.Icon,
		t.Category, t.Required, t.Status, t.CompletedAt,
		t.SkipReason, t.Notes, t.Synced, t.LocalUpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "assignment task", string(t.ID))
}

// UpsertTaskIfSynced inserts a prefetched task, or refreshes the existing
// row for the same remote record only when it carries no unsynced edits.
func (r *Repository) UpsertTaskIfSynced(ex Execer, t *models.AssignmentTask) error {
	if t.ID == "" {
		t.ID = models.UUID(uuid.New())
	}

	query := `
	INSERT INTO assignment_tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(server_id) WHERE server_id != '' DO UPDATE SET
		task_id = excluded.task_id,
		name = excluded.name,
		icon = excluded.icon,
		category = excluded.category,
		required = excluded.required,
		status = excluded.status,
		completed_at = excluded.completed_at,
		skip_reason = excluded.skip_reason,
		notes = excluded.notes,
		synced = 1,
		local_updated_at = excluded.local_updated_at
	WHERE assignment_tasks.synced = 1
	`
	_, err := ex.Exec(query, t.ID, t.ServerID, t.AssignmentID, t.TaskID, t.Name, t.Icon,
		t.Category, t.Required, t.Status, t.CompletedAt, t.SkipReason, t.Notes,
		time.Now().Unix())
	return err
}

// =====================================================
// Observation Operations
// =====================================================

const observationColumns = `id, server_id, assignment_id, elder_id, category,
	value, note, is_flagged, photo_ref, created_at, synced, local_updated_at`

func scanObservation(s scanner) (*models.Observation, error) {
	o := &models.Observation{}
	err := s.Scan(&o.ID, &o.ServerID, &o.AssignmentID, &o.ElderID, &o.Category,
		&o.Value, &o.Note, &o.IsFlagged, &o.PhotoRef, &o.CreatedAt,
		&o.Synced, &o.LocalUpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateObservation inserts a new observation row.
func (r *Repository) CreateObservation(ex Execer, o *models.Observation) error {
	if o.ID == "" {
		o.ID = models.UUID(uuid.New())
	}
	now := time.Now().Unix()
	if o.CreatedAt == 0 {
		o.CreatedAt = now
	}
	if o.LocalUpdatedAt == 0 {
		o.LocalUpdatedAt = now
	}

	query := `
	INSERT INTO observations (` + observationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.Exec(query, o.ID, o.ServerID, o.AssignmentID, o.ElderID, o.Category,
		o.Value, o.Note, o.IsFlagged, o.PhotoRef, o.CreatedAt,
		o.Synced, o.LocalUpdatedAt)
	return err
}

// GetObservation retrieves an observation by local id.
func (r *Repository) GetObservation(id string) (*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = ?`
	return scanObservation(r.db.QueryRow(query, id))
}

// UpdateObservation writes every mutable column of an observation row.
func (r *Repository) UpdateObservation(ex Execer, o *models.Observation) error {
	query := `
	UPDATE observations SET server_id = ?, category = ?, value = ?, note = ?,
		is_flagged = ?, photo_ref = ?, synced = ?, local_updated_at = ?
	WHERE id = ?
	`
	res, err := ex.Exec(query, o.ServerID, o.Category, o.Value, o.Note,
		o.IsFlagged, o.PhotoRef, o.Synced, o.LocalUpdatedAt, o.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "observation", string(o.ID))
}

// ListFlaggedObservations returns all flagged observations, newest first.
func (r *Repository) ListFlaggedObservations() ([]*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE is_flagged = 1 ORDER BY created_at DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// =====================================================
// ElderCache Operations
// =====================================================

const elderColumns = `id, server_id, name, photo_url, address, lat, lon,
	phone, medical_notes, special_instructions, cached_at`

func scanElder(s scanner) (*models.ElderCache, error) {
	e := &models.ElderCache{}
	err := s.Scan(&e.ID, &e.ServerID, &e.Name, &e.PhotoURL, &e.Address, &e.Lat, &e.Lon,
		&e.Phone, &e.MedicalNotes, &e.SpecialInstructions, &e.CachedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpsertElder replaces the cached elder row wholesale and stamps cached_at.
// The elder cache has no local mutation path, so no synced guard applies.
func (r *Repository) UpsertElder(ex Execer, e *models.ElderCache) error {
	if e.ID == "" {
		e.ID = models.UUID(uuid.New())
	}
	e.CachedAt = time.Now().Unix()

	query := `
	INSERT INTO elder_cache (` + elderColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(server_id) WHERE server_id != '' DO UPDATE SET
		name = excluded.name,
		photo_url = excluded.photo_url,
		address = excluded.address,
		lat = excluded.lat,
		lon = excluded.lon,
		phone = excluded.phone,
		medical_notes = excluded.medical_notes,
		special_instructions = excluded.special_instructions,
		cached_at = excluded.cached_at
	`
	_, err := ex.Exec(query, e.ID, e.ServerID, e.Name, e.PhotoURL, e.Address, e.Lat, e.Lon,
		e.Phone, e.MedicalNotes, e.SpecialInstructions, e.CachedAt)
	return err
}

// GetElderByServerID retrieves a cached elder by remote id.
func (r *Repository) GetElderByServerID(serverID string) (*models.ElderCache, error) {
	query := `SELECT ` + elderColumns + ` FROM elder_cache WHERE server_id = ?`
	return scanElder(r.db.QueryRow(query, serverID))
}

// PurgeStaleElders removes cache rows older than the cutoff and returns
// how many were deleted.
func (r *Repository) PurgeStaleElders(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM elder_cache WHERE cached_at < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =====================================================
// Cross-table helpers
// =====================================================

// MarkSynced flips a row to synced and records the remote id the backend
// assigned. Used by the sync manager after a queue item completes.
func (r *Repository) MarkSynced(ex Execer, table, recordID, serverID string) error {
	var query string
	switch table {
	case models.Assignment{}.TableName():
		query = "UPDATE assignments SET synced = 1, server_id = ? WHERE id = ?"
	case models.AssignmentTask{}.TableName():
		query = "UPDATE assignment_tasks SET synced = 1, server_id = ? WHERE id = ?"
	case models.Observation{}.TableName():
		query = "UPDATE observations SET synced = 1, server_id = ? WHERE id = ?"
	default:
		return fmt.Errorf("unknown local table: %s", table)
	}

	_, err := ex.Exec(query, serverID, recordID)
	return err
}

// AssignmentIDForServerID resolves the local id of an assignment by its
// remote id. Takes an Execer so prefetch can call it inside the merge
// transaction.
func (r *Repository) AssignmentIDForServerID(ex Execer, serverID string) (models.UUID, error) {
	var id models.UUID
	err := ex.QueryRow("SELECT id FROM assignments WHERE server_id = ?", serverID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// ServerIDFor returns the stored remote id of a local row, or empty
// string when the row has not round-tripped a create yet.
func (r *Repository) ServerIDFor(table, recordID string) (string, error) {
	var query string
	switch table {
	case models.Assignment{}.TableName():
		query = "SELECT server_id FROM assignments WHERE id = ?"
	case models.AssignmentTask{}.TableName():
		query = "SELECT server_id FROM assignment_tasks WHERE id = ?"
	case models.Observation{}.TableName():
		query = "SELECT server_id FROM observations WHERE id = ?"
	default:
		return "", fmt.Errorf("unknown local table: %s", table)
	}

	var serverID string
	err := r.db.QueryRow(query, recordID).Scan(&serverID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return serverID, err
}

// requireRow converts a zero-rows-affected update into an error.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
