package records

import (
	"encoding/json"
	"testing"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
	"github.com/carebridge/carebridge-core/internal/uuid"
)

func newTestRecords(t *testing.T) (*Records, *syncqueue.Store, *db.DB) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo := db.NewRepository(database.DB)
	queue := syncqueue.NewStore(database)
	return New(database, repo, queue), queue, database
}

func seedAssignment(t *testing.T, r *Records, database *db.DB, status models.AssignmentStatus) *models.Assignment {
	t.Helper()

	a := &models.Assignment{
		ID:            models.UUID(uuid.New()),
		ElderID:       models.UUID(uuid.New()),
		CaregiverID:   "cg-1",
		ScheduledDate: "2026-08-30",
		Status:        status,
		Synced:        true,
	}
	if err := r.repo.CreateAssignment(database, a); err != nil {
		t.Fatalf("Failed to seed assignment: %v", err)
	}
	return a
}

func seedTask(t *testing.T, r *Records, database *db.DB, assignmentID models.UUID, status models.TaskStatus) *models.AssignmentTask {
	t.Helper()

	task := &models.AssignmentTask{
		ID:           models.UUID(uuid.New()),
		AssignmentID: assignmentID,
		TaskID:       "medication-morning",
		Name:         "Morning medication",
		Status:       status,
		Synced:       true,
	}
	if err := r.repo.CreateAssignmentTask(database, task); err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	return task
}

func pendingItems(t *testing.T, queue *syncqueue.Store) []*models.SyncQueueItem {
	t.Helper()

	items, err := queue.ListPending()
	if err != nil {
		t.Fatalf("Failed to list pending items: %v", err)
	}
	return items
}

func TestCheckInUpdatesRowAndEnqueues(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentScheduled)

	got, err := r.CheckIn(string(a.ID), 40.7, -74.0)
	if err != nil {
		t.Fatalf("Check-in failed: %v", err)
	}
	if got.Status != models.AssignmentInProgress {
		t.Errorf("Expected status in_progress, got %s", got.Status)
	}
	if !got.HasCheckIn() {
		t.Error("Expected check-in timestamp to be set")
	}

	row, err := r.GetAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("Failed to reload assignment: %v", err)
	}
	if row.Synced {
		t.Error("Expected row to be marked unsynced")
	}
	if row.CheckInLat != 40.7 || row.CheckInLon != -74.0 {
		t.Errorf("Expected coordinates stored, got %f,%f", row.CheckInLat, row.CheckInLon)
	}

	items := pendingItems(t, queue)
	if len(items) != 1 {
		t.Fatalf("Expected 1 queue item, got %d", len(items))
	}
	item := items[0]
	if item.TableName != "assignments" || item.Operation != string(syncqueue.OperationUpdate) {
		t.Errorf("Expected assignments update item, got %s %s", item.TableName, item.Operation)
	}
	if item.RecordID != a.ID {
		t.Errorf("Expected record id %s, got %s", a.ID, item.RecordID)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if payload["status"] != "in_progress" {
		t.Errorf("Expected payload status in_progress, got %v", payload["status"])
	}
}

func TestCheckInGuardRejectsWrongStatus(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentCompleted)

	_, err := r.CheckIn(string(a.ID), 0, 0)
	if !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected INVALID_TRANSITION, got %v", err)
	}

	// A rejected mutation must leave no trace.
	if items := pendingItems(t, queue); len(items) != 0 {
		t.Errorf("Expected no queue items after rejected check-in, got %d", len(items))
	}
	row, err := r.GetAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("Failed to reload assignment: %v", err)
	}
	if !row.Synced {
		t.Error("Expected row untouched by rejected check-in")
	}
}

func TestCheckOutRequiresCheckIn(t *testing.T) {
	r, _, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)

	_, err := r.CheckOut(string(a.ID), 0, 0)
	if !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected INVALID_TRANSITION without check-in, got %v", err)
	}
}

func TestCheckInThenCheckOut(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentScheduled)

	if _, err := r.CheckIn(string(a.ID), 1, 2); err != nil {
		t.Fatalf("Check-in failed: %v", err)
	}
	got, err := r.CheckOut(string(a.ID), 3, 4)
	if err != nil {
		t.Fatalf("Check-out failed: %v", err)
	}
	if got.Status != models.AssignmentCompleted {
		t.Errorf("Expected status completed, got %s", got.Status)
	}
	if !got.HasCheckOut() {
		t.Error("Expected check-out timestamp to be set")
	}

	// Two mutations, two queue items, in order.
	items := pendingItems(t, queue)
	if len(items) != 2 {
		t.Fatalf("Expected 2 queue items, got %d", len(items))
	}
}

func TestSetAssignmentNotes(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentScheduled)

	got, err := r.SetAssignmentNotes(string(a.ID), "front door code 4821")
	if err != nil {
		t.Fatalf("Failed to set notes: %v", err)
	}
	if got.Notes != "front door code 4821" {
		t.Errorf("Expected notes stored, got %q", got.Notes)
	}
	if len(pendingItems(t, queue)) != 1 {
		t.Error("Expected notes change to enqueue sync work")
	}
}

func TestCompleteSkipUndoTask(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)
	task := seedTask(t, r, database, a.ID, models.TaskPending)

	done, err := r.CompleteTask(string(task.ID), "took all meds")
	if err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}
	if done.Status != models.TaskCompleted || done.CompletedAt == 0 {
		t.Errorf("Expected completed task with timestamp, got %+v", done)
	}

	if _, err := r.CompleteTask(string(task.ID), ""); !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected INVALID_TRANSITION on double complete, got %v", err)
	}

	undone, err := r.UndoTask(string(task.ID))
	if err != nil {
		t.Fatalf("Failed to undo task: %v", err)
	}
	if undone.Status != models.TaskPending || undone.CompletedAt != 0 || undone.SkipReason != "" {
		t.Errorf("Expected undo to clear completion metadata, got %+v", undone)
	}

	skipped, err := r.SkipTask(string(task.ID), "elder asleep")
	if err != nil {
		t.Fatalf("Failed to skip task: %v", err)
	}
	if skipped.Status != models.TaskSkipped || skipped.SkipReason != "elder asleep" {
		t.Errorf("Expected skipped task with reason, got %+v", skipped)
	}

	if items := pendingItems(t, queue); len(items) != 3 {
		t.Errorf("Expected 3 queue items for 3 mutations, got %d", len(items))
	}
}

func TestUndoRequiresCompletedOrSkipped(t *testing.T) {
	r, _, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)
	task := seedTask(t, r, database, a.ID, models.TaskPending)

	if _, err := r.UndoTask(string(task.ID)); !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected INVALID_TRANSITION, got %v", err)
	}
}

func TestCreateObservation(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)

	o := &models.Observation{
		AssignmentID: a.ID,
		ElderID:      a.ElderID,
		Category:     models.ObservationMood,
		Note:         "cheerful this morning",
	}
	if err := r.CreateObservation(o); err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}
	if o.ID == "" || o.CreatedAt == 0 {
		t.Errorf("Expected id and timestamp assigned, got %+v", o)
	}

	items := pendingItems(t, queue)
	if len(items) != 1 {
		t.Fatalf("Expected 1 queue item, got %d", len(items))
	}
	if items[0].Operation != string(syncqueue.OperationCreate) {
		t.Errorf("Expected create operation, got %s", items[0].Operation)
	}
	if items[0].ServerID != "" {
		t.Errorf("Expected no server id on offline create, got %q", items[0].ServerID)
	}
}

func TestCreateObservationRejectsUnknownCategory(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)

	o := &models.Observation{
		AssignmentID: a.ID,
		ElderID:      a.ElderID,
		Category:     "haircut",
	}
	if err := r.CreateObservation(o); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected VALIDATION_ERROR, got %v", err)
	}
	if len(pendingItems(t, queue)) != 0 {
		t.Error("Expected no queue item for rejected observation")
	}
}

func TestUpdateObservationPartial(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)

	o := &models.Observation{
		AssignmentID: a.ID,
		ElderID:      a.ElderID,
		Category:     models.ObservationPain,
		Value:        "3",
	}
	if err := r.CreateObservation(o); err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	newValue := "7"
	got, err := r.UpdateObservation(string(o.ID), ObservationUpdate{Value: &newValue})
	if err != nil {
		t.Fatalf("Failed to update observation: %v", err)
	}
	if got.Value != "7" {
		t.Errorf("Expected value updated, got %q", got.Value)
	}
	if got.Note != "" || got.Category != models.ObservationPain {
		t.Errorf("Expected untouched fields preserved, got %+v", got)
	}

	// Empty update is a no-op and enqueues nothing.
	before := len(pendingItems(t, queue))
	if _, err := r.UpdateObservation(string(o.ID), ObservationUpdate{}); err != nil {
		t.Fatalf("Empty update failed: %v", err)
	}
	if after := len(pendingItems(t, queue)); after != before {
		t.Errorf("Expected empty update to enqueue nothing, got %d -> %d", before, after)
	}
}

func TestFlagUnflagObservation(t *testing.T) {
	r, queue, database := newTestRecords(t)
	a := seedAssignment(t, r, database, models.AssignmentInProgress)

	o := &models.Observation{
		AssignmentID: a.ID,
		ElderID:      a.ElderID,
		Category:     models.ObservationSkin,
		Note:         "bruising on left arm",
	}
	if err := r.CreateObservation(o); err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}

	flagged, err := r.FlagObservation(string(o.ID))
	if err != nil {
		t.Fatalf("Failed to flag observation: %v", err)
	}
	if !flagged.IsFlagged {
		t.Error("Expected observation flagged")
	}

	listed, err := r.ListFlaggedObservations()
	if err != nil {
		t.Fatalf("Failed to list flagged: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("Expected 1 flagged observation, got %d", len(listed))
	}

	// Flagging an already-flagged row is a no-op.
	before := len(pendingItems(t, queue))
	if _, err := r.FlagObservation(string(o.ID)); err != nil {
		t.Fatalf("Re-flag failed: %v", err)
	}
	if after := len(pendingItems(t, queue)); after != before {
		t.Error("Expected re-flag to enqueue nothing")
	}

	unflagged, err := r.UnflagObservation(string(o.ID))
	if err != nil {
		t.Fatalf("Failed to unflag observation: %v", err)
	}
	if unflagged.IsFlagged {
		t.Error("Expected observation unflagged")
	}
}

func TestGetElderAndStaleness(t *testing.T) {
	r, _, _ := newTestRecords(t)

	e := &models.ElderCache{
		ID:       models.UUID(uuid.New()),
		ServerID: "elder-1",
		Name:     "Rosa Martinez",
	}
	if err := r.UpsertElder(e); err != nil {
		t.Fatalf("Failed to upsert elder: %v", err)
	}

	got, err := r.GetElder("elder-1")
	if err != nil {
		t.Fatalf("Failed to get elder: %v", err)
	}
	if got.IsStale() {
		t.Error("Expected freshly cached elder to be fresh")
	}

	if _, err := r.GetElder("no-such-elder"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestMissingRecordsReturnNotFound(t *testing.T) {
	r, _, _ := newTestRecords(t)

	if _, err := r.GetAssignment(uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
	if _, err := r.CheckIn(uuid.New(), 0, 0); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
	if _, err := r.CompleteTask(uuid.New(), ""); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}
