// Package models provides data model definitions for the CareBridge sync core.
package models

import "time"

// AssignmentStatus represents the lifecycle state of a visit.
type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "scheduled"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
	AssignmentMissed     AssignmentStatus = "missed"
)

// Assignment represents a scheduled caregiving visit cached on-device.
// Timestamps are unix seconds; a zero ActualCheckIn/ActualCheckOut means
// the event has not happened yet.
type Assignment struct {
	ID             UUID             `db:"id" json:"id"`
	ServerID       string           `db:"server_id" json:"server_id,omitempty"`
	ElderID        UUID             `db:"elder_id" json:"elder_id"`
	CaregiverID    string           `db:"caregiver_id" json:"caregiver_id"`
	ScheduledDate  string           `db:"scheduled_date" json:"scheduled_date"` // YYYY-MM-DD
	ScheduledStart string           `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   string           `db:"scheduled_end" json:"scheduled_end"`
	Status         AssignmentStatus `db:"status" json:"status"`
	ActualCheckIn  int64            `db:"actual_check_in" json:"actual_check_in,omitempty"`
	ActualCheckOut int64            `db:"actual_check_out" json:"actual_check_out,omitempty"`
	CheckInLat     float64          `db:"check_in_lat" json:"check_in_lat,omitempty"`
	CheckInLon     float64          `db:"check_in_lon" json:"check_in_lon,omitempty"`
	CheckOutLat    float64          `db:"check_out_lat" json:"check_out_lat,omitempty"`
	CheckOutLon    float64          `db:"check_out_lon" json:"check_out_lon,omitempty"`
	Notes          string           `db:"notes" json:"notes,omitempty"`
	Synced         bool             `db:"synced" json:"synced"`
	LocalUpdatedAt int64            `db:"local_updated_at" json:"local_updated_at"`
}

// TableName returns the table name for Assignment.
func (Assignment) TableName() string {
	return "assignments"
}

// HasCheckIn reports whether a check-in has been recorded.
func (a *Assignment) HasCheckIn() bool {
	return a.ActualCheckIn > 0
}

// HasCheckOut reports whether a check-out has been recorded.
func (a *Assignment) HasCheckOut() bool {
	return a.ActualCheckOut > 0
}

// CanCheckIn reports whether a check-in is permitted from the current state.
func (a *Assignment) CanCheckIn() bool {
	return a.Status == AssignmentScheduled && !a.HasCheckIn()
}

// CanCheckOut reports whether a check-out is permitted from the current state.
func (a *Assignment) CanCheckOut() bool {
	return a.Status == AssignmentInProgress && a.HasCheckIn() && !a.HasCheckOut()
}

// CheckInTime returns the check-in timestamp as time.Time.
func (a *Assignment) CheckInTime() time.Time {
	return time.Unix(a.ActualCheckIn, 0)
}

// CheckOutTime returns the check-out timestamp as time.Time.
func (a *Assignment) CheckOutTime() time.Time {
	return time.Unix(a.ActualCheckOut, 0)
}

// Touch stamps the local-mutation timestamp and marks the row unsynced.
func (a *Assignment) Touch() {
	a.LocalUpdatedAt = time.Now().Unix()
	a.Synced = false
}
