// Package models provides data model definitions for the CareBridge sync core.
package models

import "time"

// ObservationCategory classifies a caregiver observation.
type ObservationCategory string

const (
	ObservationMood       ObservationCategory = "mood"
	ObservationMobility   ObservationCategory = "mobility"
	ObservationAppetite   ObservationCategory = "appetite"
	ObservationMedication ObservationCategory = "medication"
	ObservationSkin       ObservationCategory = "skin"
	ObservationSleep      ObservationCategory = "sleep"
	ObservationPain       ObservationCategory = "pain"
	ObservationCognitive  ObservationCategory = "cognitive"
	ObservationSocial     ObservationCategory = "social"
	ObservationOther      ObservationCategory = "other"
)

// ValidObservationCategory reports whether c is a known category.
func ValidObservationCategory(c ObservationCategory) bool {
	switch c {
	case ObservationMood, ObservationMobility, ObservationAppetite,
		ObservationMedication, ObservationSkin, ObservationSleep,
		ObservationPain, ObservationCognitive, ObservationSocial,
		ObservationOther:
		return true
	}
	return false
}

// Observation represents a caregiver-authored note or measurement tied to
// a visit and an elder. ServerID stays empty until the create operation
// round-trips, since observations may be authored entirely offline.
type Observation struct {
	ID             UUID                `db:"id" json:"id"`
	ServerID       string              `db:"server_id" json:"server_id,omitempty"`
	AssignmentID   UUID                `db:"assignment_id" json:"assignment_id"`
	ElderID        UUID                `db:"elder_id" json:"elder_id"`
	Category       ObservationCategory `db:"category" json:"category"`
	Value          string              `db:"value" json:"value,omitempty"`
	Note           string              `db:"note" json:"note,omitempty"`
	IsFlagged      bool                `db:"is_flagged" json:"is_flagged"`
	PhotoRef       string              `db:"photo_ref" json:"photo_ref,omitempty"`
	CreatedAt      int64               `db:"created_at" json:"created_at"`
	Synced         bool                `db:"synced" json:"synced"`
	LocalUpdatedAt int64               `db:"local_updated_at" json:"local_updated_at"`
}

// TableName returns the table name for Observation.
func (Observation) TableName() string {
	return "observations"
}

// CreatedTime returns the creation timestamp as time.Time.
func (o *Observation) CreatedTime() time.Time {
	return time.Unix(o.CreatedAt, 0)
}

// Touch stamps the local-mutation timestamp and marks the row unsynced.
func (o *Observation) Touch() {
	o.LocalUpdatedAt = time.Now().Unix()
	o.Synced = false
}
