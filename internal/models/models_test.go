// Package models provides unit tests for the sync core data models.
package models

import (
	"testing"
	"time"
)

// TestAssignmentCheckInGuard tests the check-in guard predicate.
func TestAssignmentCheckInGuard(t *testing.T) {
	a := &Assignment{Status: AssignmentScheduled}

	if !a.CanCheckIn() {
		t.Error("Expected CanCheckIn for scheduled assignment without check-in")
	}

	a.ActualCheckIn = time.Now().Unix()
	if a.CanCheckIn() {
		t.Error("Expected CanCheckIn false once a check-in is recorded")
	}

	for _, status := range []AssignmentStatus{
		AssignmentInProgress, AssignmentCompleted, AssignmentCancelled, AssignmentMissed,
	} {
		a := &Assignment{Status: status}
		if a.CanCheckIn() {
			t.Errorf("Expected CanCheckIn false for status %s", status)
		}
	}
}

// TestAssignmentCheckOutGuard tests the check-out guard predicate.
func TestAssignmentCheckOutGuard(t *testing.T) {
	a := &Assignment{Status: AssignmentInProgress, ActualCheckIn: time.Now().Unix()}

	if !a.CanCheckOut() {
		t.Error("Expected CanCheckOut for in-progress assignment with check-in")
	}

	// No check-in recorded
	b := &Assignment{Status: AssignmentInProgress}
	if b.CanCheckOut() {
		t.Error("Expected CanCheckOut false without a recorded check-in")
	}

	// Already checked out
	a.ActualCheckOut = time.Now().Unix()
	if a.CanCheckOut() {
		t.Error("Expected CanCheckOut false once checked out")
	}

	// Wrong status
	c := &Assignment{Status: AssignmentScheduled, ActualCheckIn: time.Now().Unix()}
	if c.CanCheckOut() {
		t.Error("Expected CanCheckOut false for scheduled assignment")
	}
}

// TestAssignmentTouch tests that Touch flips synced and stamps the clock.
func TestAssignmentTouch(t *testing.T) {
	a := &Assignment{Synced: true}

	before := time.Now().Unix()
	a.Touch()

	if a.Synced {
		t.Error("Expected Touch to mark assignment unsynced")
	}
	if a.LocalUpdatedAt < before {
		t.Errorf("Expected LocalUpdatedAt >= %d, got %d", before, a.LocalUpdatedAt)
	}
}

// TestTaskGuards tests complete/undo guard predicates.
func TestTaskGuards(t *testing.T) {
	task := &AssignmentTask{Status: TaskPending}

	if !task.CanComplete() {
		t.Error("Expected CanComplete for pending task")
	}
	if task.CanUndo() {
		t.Error("Expected CanUndo false for pending task")
	}

	task.Status = TaskCompleted
	if task.CanComplete() {
		t.Error("Expected CanComplete false for completed task")
	}
	if !task.CanUndo() {
		t.Error("Expected CanUndo for completed task")
	}

	task.Status = TaskSkipped
	if !task.CanUndo() {
		t.Error("Expected CanUndo for skipped task")
	}
}

// TestObservationCategories tests category validation.
func TestObservationCategories(t *testing.T) {
	valid := []ObservationCategory{
		ObservationMood, ObservationMobility, ObservationAppetite,
		ObservationMedication, ObservationSkin, ObservationSleep,
		ObservationPain, ObservationCognitive, ObservationSocial,
		ObservationOther,
	}

	for _, c := range valid {
		if !ValidObservationCategory(c) {
			t.Errorf("Expected %s to be a valid category", c)
		}
	}

	if ValidObservationCategory("temperature") {
		t.Error("Expected unknown category to be invalid")
	}
}

// TestElderCacheStaleness tests the 24h freshness window.
func TestElderCacheStaleness(t *testing.T) {
	now := time.Now()

	fresh := &ElderCache{CachedAt: now.Add(-23 * time.Hour).Unix()}
	if fresh.IsStaleAt(now) {
		t.Error("Expected row cached 23h ago to be fresh")
	}

	stale := &ElderCache{CachedAt: now.Add(-25 * time.Hour).Unix()}
	if !stale.IsStaleAt(now) {
		t.Error("Expected row cached 25h ago to be stale")
	}
}

// TestUUIDScan tests the sql.Scanner implementation.
func TestUUIDScan(t *testing.T) {
	var u UUID

	if err := u.Scan([]byte("abc-123")); err != nil {
		t.Fatalf("Scan bytes failed: %v", err)
	}
	if u.String() != "abc-123" {
		t.Errorf("Expected abc-123, got %s", u)
	}

	if err := u.Scan(nil); err != nil {
		t.Fatalf("Scan nil failed: %v", err)
	}
	if u != "" {
		t.Errorf("Expected empty UUID after nil scan, got %s", u)
	}
}
