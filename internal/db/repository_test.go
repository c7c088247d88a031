// Package db provides unit tests for repository CRUD operations.
package db

import (
	"testing"
	"time"

	"github.com/carebridge/carebridge-core/internal/models"
)

// TestAssignmentCRUD tests create, read and update of assignments.
func TestAssignmentCRUD(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	a := &models.Assignment{
		ServerID:      "visit-1",
		ElderID:       "elder-1",
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-09-01",
		ScheduledStart: "09:00",
		ScheduledEnd:   "10:00",
		Status:        models.AssignmentScheduled,
		Synced:        true,
	}

	if err := repo.CreateAssignment(database.DB, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID == "" {
		t.Fatal("Expected local id to be generated")
	}

	got, err := repo.GetAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ServerID != "visit-1" || got.Status != models.AssignmentScheduled {
		t.Errorf("Unexpected row: %+v", got)
	}

	got.Notes = "gate code 4411"
	got.Touch()
	if err := repo.UpdateAssignment(database.DB, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := repo.GetAssignmentByServerID("visit-1")
	if err != nil {
		t.Fatalf("GetByServerID failed: %v", err)
	}
	if updated.Notes != "gate code 4411" {
		t.Errorf("Expected notes update, got %q", updated.Notes)
	}
	if updated.Synced {
		t.Error("Expected Touch to mark row unsynced")
	}
}

// TestListAssignmentsByDate tests the date-window listing.
func TestListAssignmentsByDate(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	for i, date := range []string{"2026-09-01", "2026-09-03", "2026-09-20"} {
		a := &models.Assignment{
			ServerID:      "visit-" + date,
			ElderID:       "elder-1",
			CaregiverID:   "cg-1",
			ScheduledDate: date,
			Status:        models.AssignmentScheduled,
		}
		if err := repo.CreateAssignment(database.DB, a); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	list, err := repo.ListAssignmentsByDate("2026-09-01", "2026-09-07")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 assignments in window, got %d", len(list))
	}
}

// TestUpsertAssignmentIfSynced tests the prefetch non-clobber rule.
func TestUpsertAssignmentIfSynced(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	// Synced row: prefetch may overwrite.
	a := &models.Assignment{
		ServerID:      "visit-1",
		ElderID:       "elder-1",
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-09-01",
		Status:        models.AssignmentScheduled,
		Synced:        true,
	}
	if err := repo.CreateAssignment(database.DB, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	remote := &models.Assignment{
		ServerID:      "visit-1",
		ElderID:       "elder-1",
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-09-02", // rescheduled remotely
		Status:        models.AssignmentScheduled,
	}
	if err := repo.UpsertAssignmentIfSynced(database.DB, remote); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := repo.GetAssignmentByServerID("visit-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ScheduledDate != "2026-09-02" {
		t.Errorf("Expected synced row to be refreshed, got date %s", got.ScheduledDate)
	}

	// Unsynced local edit: prefetch must yield.
	got.Status = models.AssignmentInProgress
	got.Touch()
	if err := repo.UpdateAssignment(database.DB, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	conflicting := &models.Assignment{
		ServerID:      "visit-1",
		ElderID:       "elder-1",
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-09-05",
		Status:        models.AssignmentCancelled,
	}
	if err := repo.UpsertAssignmentIfSynced(database.DB, conflicting); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	after, err := repo.GetAssignmentByServerID("visit-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if after.Status != models.AssignmentInProgress || after.ScheduledDate != "2026-09-02" {
		t.Errorf("Prefetch clobbered unsynced local edits: %+v", after)
	}
}

// TestTaskCRUDAndCascade tests task rows and the assignment foreign key.
func TestTaskCRUDAndCascade(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	a := &models.Assignment{
		ElderID:       "elder-1",
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-09-01",
		Status:        models.AssignmentScheduled,
	}
	if err := repo.CreateAssignment(database.DB, a); err != nil {
		t.Fatalf("Create assignment failed: %v", err)
	}

	task := &models.AssignmentTask{
		AssignmentID: a.ID,
		TaskID:       "meds-morning",
		Name:         "Morning medication",
		Required:     true,
		Status:       models.TaskPending,
	}
	if err := repo.CreateAssignmentTask(database.DB, task); err != nil {
		t.Fatalf("Create task failed: %v", err)
	}

	tasks, err := repo.ListTasksForAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Morning medication" {
		t.Errorf("Unexpected task list: %+v", tasks)
	}

	// Deleting the parent cascades to tasks.
	if _, err := database.Exec("DELETE FROM assignments WHERE id = ?", a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	tasks, err = repo.ListTasksForAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected cascade delete, found %d tasks", len(tasks))
	}
}

// TestObservationCRUD tests observation create, update and flag listing.
func TestObservationCRUD(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	o := &models.Observation{
		AssignmentID: "assignment-1",
		ElderID:      "elder-1",
		Category:     models.ObservationMood,
		Note:         "cheerful this morning",
	}
	if err := repo.CreateObservation(database.DB, o); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if o.ID == "" || o.CreatedAt == 0 {
		t.Fatal("Expected id and created_at to be stamped")
	}

	o.IsFlagged = true
	o.Touch()
	if err := repo.UpdateObservation(database.DB, o); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	flagged, err := repo.ListFlaggedObservations()
	if err != nil {
		t.Fatalf("ListFlagged failed: %v", err)
	}
	if len(flagged) != 1 || flagged[0].ID != o.ID {
		t.Errorf("Unexpected flagged list: %+v", flagged)
	}
}

// TestElderUpsertAndPurge tests wholesale replace and stale purging.
func TestElderUpsertAndPurge(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	e := &models.ElderCache{
		ServerID: "elder-1",
		Name:     "Rosa Delgado",
		Phone:    "555-0100",
	}
	if err := repo.UpsertElder(database.DB, e); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Second upsert for the same remote elder replaces, not duplicates.
	e2 := &models.ElderCache{
		ServerID: "elder-1",
		Name:     "Rosa Delgado",
		Phone:    "555-0199",
	}
	if err := repo.UpsertElder(database.DB, e2); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := repo.GetElderByServerID("elder-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Phone != "555-0199" {
		t.Errorf("Expected wholesale replace, got phone %s", got.Phone)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM elder_cache").Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 elder row, got %d", count)
	}

	// Purge with a future cutoff removes the row.
	n, err := repo.PurgeStaleElders(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged row, got %d", n)
	}
}

// TestMarkSynced tests the cross-table synced flip.
func TestMarkSynced(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)

	o := &models.Observation{
		AssignmentID: "assignment-1",
		ElderID:      "elder-1",
		Category:     models.ObservationPain,
	}
	if err := repo.CreateObservation(database.DB, o); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.MarkSynced(database.DB, "observations", string(o.ID), "obs-9"); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	got, err := repo.GetObservation(string(o.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Synced || got.ServerID != "obs-9" {
		t.Errorf("Expected synced row with server id, got %+v", got)
	}

	if err := repo.MarkSynced(database.DB, "nope", "x", "y"); err == nil {
		t.Error("Expected error for unknown table")
	}
}
