// Package models provides data model definitions for the CareBridge sync core.
package models

import "time"

// ElderCacheFreshness is how long a cached elder row is treated as
// authoritative. Older rows are advisory only.
const ElderCacheFreshness = 24 * time.Hour

// ElderCache is a read-mostly projection of elder reference data. It has
// no mutation path from the device; prefetch overwrites it wholesale.
type ElderCache struct {
	ID                  UUID    `db:"id" json:"id"`
	ServerID            string  `db:"server_id" json:"server_id"`
	Name                string  `db:"name" json:"name"`
	PhotoURL            string  `db:"photo_url" json:"photo_url,omitempty"`
	Address             string  `db:"address" json:"address,omitempty"`
	Lat                 float64 `db:"lat" json:"lat,omitempty"`
	Lon                 float64 `db:"lon" json:"lon,omitempty"`
	Phone               string  `db:"phone" json:"phone,omitempty"`
	MedicalNotes        string  `db:"medical_notes" json:"medical_notes,omitempty"`
	SpecialInstructions string  `db:"special_instructions" json:"special_instructions,omitempty"`
	CachedAt            int64   `db:"cached_at" json:"cached_at"`
}

// TableName returns the table name for ElderCache.
func (ElderCache) TableName() string {
	return "elder_cache"
}

// CachedTime returns the cache timestamp as time.Time.
func (e *ElderCache) CachedTime() time.Time {
	return time.Unix(e.CachedAt, 0)
}

// IsStale reports whether the row is older than the freshness window
// and should not be treated as authoritative.
func (e *ElderCache) IsStale() bool {
	return e.IsStaleAt(time.Now())
}

// IsStaleAt reports staleness relative to the given instant.
func (e *ElderCache) IsStaleAt(now time.Time) bool {
	return now.Sub(e.CachedTime()) > ElderCacheFreshness
}
