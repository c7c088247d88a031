package prefetch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/remote"
)

// stubService serves canned rows per resource.
type stubService struct {
	rows map[string][]remote.Row
	err  error
}

func (s *stubService) Create(ctx context.Context, resource string, payload json.RawMessage) (remote.Row, error) {
	return nil, nil
}

func (s *stubService) Update(ctx context.Context, resource, id string, payload json.RawMessage) error {
	return nil
}

func (s *stubService) Delete(ctx context.Context, resource, id string) error {
	return nil
}

func (s *stubService) Query(ctx context.Context, resource string, filter map[string]string) ([]remote.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[resource], nil
}

func newTestPrefetcher(t *testing.T, svc remote.Service) (*Prefetcher, *db.Repository, *db.DB) {
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
	return New(database, repo, svc), repo, database
}

func visitRow(id, elderID string) remote.Row {
	return remote.Row{
		"id":             id,
		"elder_id":       elderID,
		"caregiver_id":   "cg-1",
		"scheduled_date": "2026-09-01",
		"status":         "scheduled",
	}
}

func TestPrefetchInsertsUpcomingWork(t *testing.T) {
	svc := &stubService{rows: map[string][]remote.Row{
		"visits": {visitRow("v-1", "e-1"), visitRow("v-2", "e-1")},
		"visit_tasks": {
			{"id": "vt-1", "visit_id": "v-1", "task_id": "meds", "name": "Morning medication", "required": true},
		},
		"elders": {
			{"id": "e-1", "name": "Rosa Martinez", "phone": "555-0100"},
		},
	}}
	p, repo, _ := newTestPrefetcher(t, svc)

	summary, err := p.Prefetch(context.Background(), "cg-1",
		Options{IncludeTasks: true, IncludeElders: true})
	if err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}
	if summary.Assignments != 2 || summary.Tasks != 1 || summary.Elders != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	a, err := repo.GetAssignmentByServerID("v-1")
	if err != nil {
		t.Fatalf("Failed to load prefetched assignment: %v", err)
	}
	if !a.Synced {
		t.Error("Expected prefetched assignment to be synced")
	}

	tasks, err := repo.ListTasksForAssignment(string(a.ID))
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ServerID != "vt-1" {
		t.Errorf("Expected task parented to local assignment, got %+v", tasks)
	}

	elder, err := repo.GetElderByServerID("e-1")
	if err != nil {
		t.Fatalf("Failed to load cached elder: %v", err)
	}
	if elder.Name != "Rosa Martinez" || elder.CachedAt == 0 {
		t.Errorf("Expected cached elder with timestamp, got %+v", elder)
	}
}

func TestPrefetchRefreshesSyncedRow(t *testing.T) {
	svc := &stubService{rows: map[string][]remote.Row{
		"visits": {visitRow("v-1", "e-1")},
	}}
	p, repo, _ := newTestPrefetcher(t, svc)

	if _, err := p.Prefetch(context.Background(), "cg-1", Options{}); err != nil {
		t.Fatalf("First prefetch failed: %v", err)
	}

	row := visitRow("v-1", "e-1")
	row["notes"] = "bring groceries"
	svc.rows["visits"] = []remote.Row{row}

	if _, err := p.Prefetch(context.Background(), "cg-1", Options{}); err != nil {
		t.Fatalf("Second prefetch failed: %v", err)
	}

	a, err := repo.GetAssignmentByServerID("v-1")
	if err != nil {
		t.Fatalf("Failed to load assignment: %v", err)
	}
	if a.Notes != "bring groceries" {
		t.Errorf("Expected synced row refreshed, got notes %q", a.Notes)
	}
}

func TestPrefetchYieldsToLocalEdits(t *testing.T) {
	svc := &stubService{rows: map[string][]remote.Row{
		"visits": {visitRow("v-1", "e-1")},
	}}
	p, repo, database := newTestPrefetcher(t, svc)

	if _, err := p.Prefetch(context.Background(), "cg-1", Options{}); err != nil {
		t.Fatalf("First prefetch failed: %v", err)
	}

	// Simulate a local check-in that has not synced yet.
	a, err := repo.GetAssignmentByServerID("v-1")
	if err != nil {
		t.Fatalf("Failed to load assignment: %v", err)
	}
	a.Status = models.AssignmentInProgress
	a.ActualCheckIn = 1700000000
	a.Touch()
	if err := repo.UpdateAssignment(database, a); err != nil {
		t.Fatalf("Failed to apply local edit: %v", err)
	}

	if _, err := p.Prefetch(context.Background(), "cg-1", Options{}); err != nil {
		t.Fatalf("Second prefetch failed: %v", err)
	}

	got, err := repo.GetAssignmentByServerID("v-1")
	if err != nil {
		t.Fatalf("Failed to reload assignment: %v", err)
	}
	if got.Status != models.AssignmentInProgress || got.ActualCheckIn != 1700000000 {
		t.Errorf("Expected unsynced local edit preserved, got %+v", got)
	}
}

func TestPrefetchSkipsOrphanTasks(t *testing.T) {
	svc := &stubService{rows: map[string][]remote.Row{
		"visits": {visitRow("v-1", "e-1")},
		"visit_tasks": {
			{"id": "vt-1", "visit_id": "v-1", "task_id": "meds", "name": "Medication"},
			{"id": "vt-2", "visit_id": "v-unknown", "task_id": "meal", "name": "Meal prep"},
		},
	}}
	p, _, _ := newTestPrefetcher(t, svc)

	summary, err := p.Prefetch(context.Background(), "cg-1", Options{IncludeTasks: true})
	if err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}
	if summary.Tasks != 1 {
		t.Errorf("Expected orphan task skipped, got %d tasks", summary.Tasks)
	}
}

func TestPrefetchRemoteFailure(t *testing.T) {
	svc := &stubService{err: apperrors.New(apperrors.ErrRemoteOperation, "backend unreachable")}
	p, _, _ := newTestPrefetcher(t, svc)

	_, err := p.Prefetch(context.Background(), "cg-1", Options{})
	if !apperrors.Is(err, apperrors.ErrPrefetchFailed) {
		t.Errorf("Expected PREFETCH_FAILED, got %v", err)
	}
}

func TestPrefetchDefaultWindow(t *testing.T) {
	svc := &stubService{rows: map[string][]remote.Row{}}
	p, _, _ := newTestPrefetcher(t, svc)

	summary, err := p.Prefetch(context.Background(), "cg-1", Options{})
	if err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}
	if summary.Assignments != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}
