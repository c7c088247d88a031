// Package models provides data model definitions for the CareBridge sync core.
package models

import "time"

// TaskStatus represents the lifecycle state of an assignment task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
)

// AssignmentTask represents one task within an assignment.
type AssignmentTask struct {
	ID             UUID       `db:"id" json:"id"`
	ServerID       string     `db:"server_id" json:"server_id,omitempty"`
	AssignmentID   UUID       `db:"assignment_id" json:"assignment_id"`
	TaskID         string     `db:"task_id" json:"task_id"`
	Name           string     `db:"name" json:"name"`
	Icon           string     `db:"icon" json:"icon,omitempty"`
	Category       string     `db:"category" json:"category,omitempty"`
	Required       bool       `db:"required" json:"required"`
	Status         TaskStatus `db:"status" json:"status"`
	CompletedAt    int64      `db:"completed_at" json:"completed_at,omitempty"`
	SkipReason     string     `db:"skip_reason" json:"skip_reason,omitempty"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	Synced         bool       `db:"synced" json:"synced"`
	LocalUpdatedAt int64      `db:"local_updated_at" json:"local_updated_at"`
}

// TableName returns the table name for AssignmentTask.
func (AssignmentTask) TableName() string {
	return "assignment_tasks"
}

// CanComplete reports whether the task can be completed or skipped.
func (t *AssignmentTask) CanComplete() bool {
	return t.Status == TaskPending
}

// CanUndo reports whether a completion or skip can be reverted.
func (t *AssignmentTask) CanUndo() bool {
	return t.Status == TaskCompleted || t.Status == TaskSkipped
}

// CompletedTime returns the completion timestamp as time.Time.
func (t *AssignmentTask) CompletedTime() time.Time {
	return time.Unix(t.CompletedAt, 0)
}

// Touch stamps the local-mutation timestamp and marks the row unsynced.
func (t *AssignmentTask) Touch() {
	t.LocalUpdatedAt = time.Now().Unix()
	t.Synced = false
}
